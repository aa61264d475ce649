package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// ReportFilter bounds a movement report. PartyID is the supplier for inward
// reports and the branch for outward reports.
type ReportFilter struct {
	From    time.Time
	To      time.Time
	PartyID string
}

// InwardRow is one received lot in the inward report
type InwardRow struct {
	ReceiptID     string          `db:"receipt_id" json:"receipt_id"`
	PurchaseDate  time.Time       `db:"purchase_date" json:"purchase_date"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	SupplierID    string          `db:"supplier_id" json:"supplier_id"`
	SupplierName  string          `db:"supplier_name" json:"supplier_name"`
	LotID         string          `db:"lot_id" json:"lot_id"`
	ProductCode   string          `db:"product_code" json:"product_code"`
	ProductName   string          `db:"product_name" json:"product_name"`
	ExpiryDate    time.Time       `db:"expiry_date" json:"expiry_date"`
	Quantity      int             `db:"quantity" json:"quantity"`
	Total         decimal.Decimal `db:"total" json:"total"`
}

// OutwardRow is one shipment line in the outward report
type OutwardRow struct {
	TransactionID   string    `db:"transaction_id" json:"transaction_id"`
	TransactionDate time.Time `db:"transaction_date" json:"transaction_date"`
	InvoiceNumber   string    `db:"invoice_number" json:"invoice_number"`
	BranchID        string    `db:"branch_id" json:"branch_id"`
	BranchName      string    `db:"branch_name" json:"branch_name"`
	ProductCode     string    `db:"product_code" json:"product_code"`
	ProductName     string    `db:"product_name" json:"product_name"`
	Quantity        int       `db:"quantity" json:"quantity"`
}

// ProductSummary totals every movement of one product
type ProductSummary struct {
	ProductID   string `db:"product_id" json:"product_id"`
	ProductCode string `db:"product_code" json:"product_code"`
	ProductName string `db:"product_name" json:"product_name"`
	Received    int    `db:"received" json:"received"`
	Shipped     int    `db:"shipped" json:"shipped"`
	Expired     int    `db:"expired" json:"expired"`
	Defective   int    `db:"defective" json:"defective"`
	Remaining   int    `db:"remaining" json:"remaining"`
}

// ReportRepository runs read-only movement reports
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Inward lists lots received between From and To inclusive
func (r *ReportRepository) Inward(ctx context.Context, filter ReportFilter) ([]*InwardRow, error) {
	var rows []*InwardRow
	query := `
		SELECT r.id AS receipt_id, r.purchase_date, r.invoice_number,
			s.id AS supplier_id, s.name AS supplier_name,
			l.id AS lot_id, p.code AS product_code, p.name AS product_name,
			l.expiry_date, l.purchased_quantity AS quantity, l.total
		FROM lots l
		JOIN receipts r ON r.id = l.receipt_id
		JOIN suppliers s ON s.id = r.supplier_id
		JOIN products p ON p.id = l.product_id
		WHERE r.purchase_date BETWEEN $1 AND $2
		AND ($3 = '' OR s.id::text = $3)
		ORDER BY r.purchase_date, r.invoice_number, l.lot_seq
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, filter.From, filter.To, filter.PartyID); err != nil {
		return nil, err
	}
	return rows, nil
}

// Outward lists shipment lines dated between From and To inclusive
func (r *ReportRepository) Outward(ctx context.Context, filter ReportFilter) ([]*OutwardRow, error) {
	var rows []*OutwardRow
	query := `
		SELECT t.id AS transaction_id, t.transaction_date, t.invoice_number,
			b.id AS branch_id, b.name AS branch_name,
			p.code AS product_code, p.name AS product_name, ln.qty_requested AS quantity
		FROM outbound_lines ln
		JOIN outbound_transactions t ON t.id = ln.transaction_id
		JOIN branches b ON b.id = t.branch_id
		JOIN products p ON p.id = ln.product_id
		WHERE t.transaction_date BETWEEN $1 AND $2
		AND ($3 = '' OR b.id::text = $3)
		ORDER BY t.transaction_date, t.invoice_number, ln.line_no
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, filter.From, filter.To, filter.PartyID); err != nil {
		return nil, err
	}
	return rows, nil
}

// ProductSummary totals a product's receipts, shipments and dispositions
func (r *ReportRepository) ProductSummary(ctx context.Context, productID string) (*ProductSummary, error) {
	var s ProductSummary
	query := `
		SELECT p.id AS product_id, p.code AS product_code, p.name AS product_name,
			COALESCE((SELECT SUM(purchased_quantity) FROM lots WHERE product_id = p.id), 0) AS received,
			COALESCE((SELECT SUM(qty_requested) FROM outbound_lines WHERE product_id = p.id), 0) AS shipped,
			COALESCE((SELECT SUM(quantity) FROM stock_dispositions WHERE product_id = p.id AND cause = 'expired'), 0) AS expired,
			COALESCE((SELECT SUM(quantity) FROM stock_dispositions WHERE product_id = p.id AND cause = 'defective'), 0) AS defective,
			COALESCE((SELECT remaining_quantity FROM total_stocks WHERE product_id = p.id), 0) AS remaining
		FROM products p
		WHERE p.id = $1
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &s, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &s, nil
}
