package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// OutboundTransaction is a shipment of stock to a branch
type OutboundTransaction struct {
	ID              string    `db:"id" json:"id"`
	BranchID        string    `db:"branch_id" json:"branch_id"`
	TransactionDate time.Time `db:"transaction_date" json:"transaction_date"`
	InvoiceNumber   string    `db:"invoice_number" json:"invoice_number"`
	BranchInCharge  string    `db:"branch_in_charge" json:"branch_in_charge"`
	Remarks         *string   `db:"remarks" json:"remarks,omitempty"`
	PerformedBy     *string   `db:"performed_by" json:"performed_by,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	Lines []*OutboundLine `db:"-" json:"lines,omitempty"`
}

// OutboundLine is one product requested on a shipment
type OutboundLine struct {
	ID            string `db:"id" json:"id"`
	TransactionID string `db:"transaction_id" json:"transaction_id"`
	LineNo        int    `db:"line_no" json:"line_no"`
	ProductID     string `db:"product_id" json:"product_id"`
	QtyRequested  int    `db:"qty_requested" json:"qty_requested"`

	Allocations []*OutboundAllocation `db:"-" json:"allocations,omitempty"`
}

// OutboundAllocation is the part of a line taken from one lot
type OutboundAllocation struct {
	ID         string    `db:"id" json:"id"`
	LineID     string    `db:"line_id" json:"line_id"`
	LotID      string    `db:"lot_id" json:"lot_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	ExpiryDate time.Time `db:"expiry_date" json:"expiry_date"`
}

// ShipmentFilter narrows a shipment listing
type ShipmentFilter struct {
	BranchID string
	From     *time.Time
	To       *time.Time
}

// ShipmentRepository handles outbound transactions
type ShipmentRepository struct {
	db *database.DB
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *database.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// CreateTransaction creates the shipment header
func (r *ShipmentRepository) CreateTransaction(ctx context.Context, tx *OutboundTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	query := `
		INSERT INTO outbound_transactions (
			id, branch_id, transaction_date, invoice_number, branch_in_charge, remarks, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		tx.ID, tx.BranchID, tx.TransactionDate, tx.InvoiceNumber, tx.BranchInCharge, tx.Remarks, tx.PerformedBy,
	).Scan(&tx.CreatedAt)
	return database.Classify(err)
}

// CreateLine records a shipment line
func (r *ShipmentRepository) CreateLine(ctx context.Context, line *OutboundLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}

	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO outbound_lines (id, transaction_id, line_no, product_id, qty_requested)
		VALUES ($1, $2, $3, $4, $5)
	`, line.ID, line.TransactionID, line.LineNo, line.ProductID, line.QtyRequested)
	return database.Classify(err)
}

// CreateAllocation records which lot a line drew from
func (r *ShipmentRepository) CreateAllocation(ctx context.Context, a *OutboundAllocation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO outbound_allocations (id, line_id, lot_id, quantity)
		VALUES ($1, $2, $3, $4)
	`, a.ID, a.LineID, a.LotID, a.Quantity)
	return database.Classify(err)
}

// GetByID gets a shipment with its lines and their allocations
func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*OutboundTransaction, error) {
	var tx OutboundTransaction
	if err := r.db.Conn(ctx).GetContext(ctx, &tx, `SELECT * FROM outbound_transactions WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("outbound transaction")
		}
		return nil, err
	}

	var lines []*OutboundLine
	if err := r.db.Conn(ctx).SelectContext(ctx, &lines,
		`SELECT * FROM outbound_lines WHERE transaction_id = $1 ORDER BY line_no`, id); err != nil {
		return nil, err
	}

	var allocations []*OutboundAllocation
	if err := r.db.Conn(ctx).SelectContext(ctx, &allocations, `
		SELECT a.*, l.expiry_date FROM outbound_allocations a
		JOIN outbound_lines ln ON ln.id = a.line_id
		JOIN lots l ON l.id = a.lot_id
		WHERE ln.transaction_id = $1
		ORDER BY ln.line_no, l.expiry_date, l.lot_seq
	`, id); err != nil {
		return nil, err
	}

	byLine := make(map[string]*OutboundLine, len(lines))
	for _, line := range lines {
		byLine[line.ID] = line
	}
	for _, a := range allocations {
		if line, ok := byLine[a.LineID]; ok {
			line.Allocations = append(line.Allocations, a)
		}
	}

	tx.Lines = lines
	return &tx, nil
}

// List lists shipment headers, newest first
func (r *ShipmentRepository) List(ctx context.Context, filter ShipmentFilter, limit, offset int) ([]*OutboundTransaction, int64, error) {
	where := `
		WHERE ($1 = '' OR branch_id::text = $1)
		AND ($2::date IS NULL OR transaction_date >= $2::date)
		AND ($3::date IS NULL OR transaction_date <= $3::date)
	`
	args := []interface{}{filter.BranchID, filter.From, filter.To}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM outbound_transactions `+where, args...); err != nil {
		return nil, 0, err
	}

	var txs []*OutboundTransaction
	query := `SELECT * FROM outbound_transactions ` + where + ` ORDER BY transaction_date DESC, created_at DESC LIMIT $4 OFFSET $5`
	if err := r.db.Conn(ctx).SelectContext(ctx, &txs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
