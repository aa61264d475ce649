package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// Receipt is the header of an inbound delivery from a supplier
type Receipt struct {
	ID            string     `db:"id" json:"id"`
	SupplierID    string     `db:"supplier_id" json:"supplier_id"`
	PurchaseDate  time.Time  `db:"purchase_date" json:"purchase_date"`
	SupplierDate  *time.Time `db:"supplier_date" json:"supplier_date,omitempty"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	Remarks       *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedBy     *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Lots []*Lot `db:"-" json:"lots,omitempty"`
}

// ReceiptFilter narrows a receipt listing
type ReceiptFilter struct {
	SupplierID string
	From       *time.Time
	To         *time.Time
}

// ReceiptRepository handles receipt persistence
type ReceiptRepository struct {
	db *database.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *database.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Create creates a new receipt header
func (r *ReceiptRepository) Create(ctx context.Context, rc *Receipt) error {
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO receipts (id, supplier_id, purchase_date, supplier_date, invoice_number, remarks, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		rc.ID, rc.SupplierID, rc.PurchaseDate, rc.SupplierDate, rc.InvoiceNumber, rc.Remarks, rc.CreatedBy,
	).Scan(&rc.CreatedAt, &rc.UpdatedAt)
	return database.Classify(err)
}

// GetByID gets a receipt header by ID
func (r *ReceiptRepository) GetByID(ctx context.Context, id string) (*Receipt, error) {
	return r.get(ctx, `SELECT * FROM receipts WHERE id = $1`, id)
}

// GetForUpdate gets a receipt header and locks it until the transaction ends
func (r *ReceiptRepository) GetForUpdate(ctx context.Context, id string) (*Receipt, error) {
	return r.get(ctx, `SELECT * FROM receipts WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReceiptRepository) get(ctx context.Context, query, id string) (*Receipt, error) {
	var rc Receipt
	if err := r.db.Conn(ctx).GetContext(ctx, &rc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("receipt")
		}
		return nil, err
	}
	return &rc, nil
}

// Update updates the receipt header fields
func (r *ReceiptRepository) Update(ctx context.Context, rc *Receipt) error {
	query := `
		UPDATE receipts SET
			supplier_id = $2, purchase_date = $3, supplier_date = $4,
			invoice_number = $5, remarks = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		rc.ID, rc.SupplierID, rc.PurchaseDate, rc.SupplierDate, rc.InvoiceNumber, rc.Remarks,
	).Scan(&rc.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("receipt")
	}
	return database.Classify(err)
}

// Delete deletes a receipt; its lots go with it
func (r *ReceiptRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	if err != nil {
		return database.Classify(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("receipt")
	}
	return nil
}

// List lists receipt headers, newest purchase first
func (r *ReceiptRepository) List(ctx context.Context, filter ReceiptFilter, limit, offset int) ([]*Receipt, int64, error) {
	where := `
		WHERE ($1 = '' OR supplier_id::text = $1)
		AND ($2::date IS NULL OR purchase_date >= $2::date)
		AND ($3::date IS NULL OR purchase_date <= $3::date)
	`
	args := []interface{}{filter.SupplierID, filter.From, filter.To}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM receipts `+where, args...); err != nil {
		return nil, 0, err
	}

	var receipts []*Receipt
	query := `SELECT * FROM receipts ` + where + ` ORDER BY purchase_date DESC, created_at DESC LIMIT $4 OFFSET $5`
	if err := r.db.Conn(ctx).SelectContext(ctx, &receipts, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}
