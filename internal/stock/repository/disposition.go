package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/pkg/database"
)

// Disposition causes
const (
	CauseExpired   = "expired"
	CauseDefective = "defective"
)

// Disposition records stock removed from one lot for a reason other than
// shipping. One dispose call writes one record per lot it touched, all
// sharing a BatchID.
type Disposition struct {
	ID          string     `db:"id" json:"id"`
	BatchID     string     `db:"batch_id" json:"batch_id"`
	ProductID   string     `db:"product_id" json:"product_id"`
	LotID       *string    `db:"lot_id" json:"lot_id,omitempty"`
	Cause       string     `db:"cause" json:"cause"`
	Quantity    int        `db:"quantity" json:"quantity"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Remarks     *string    `db:"remarks" json:"remarks,omitempty"`
	PerformedBy *string    `db:"performed_by" json:"performed_by,omitempty"`
	RemovedAt   time.Time  `db:"removed_at" json:"removed_at"`
}

// DispositionFilter narrows a disposition listing
type DispositionFilter struct {
	Cause     string
	ProductID string
}

// DispositionRepository handles disposition records
type DispositionRepository struct {
	db *database.DB
}

// NewDispositionRepository creates a new disposition repository
func NewDispositionRepository(db *database.DB) *DispositionRepository {
	return &DispositionRepository{db: db}
}

// Create records a disposition
func (r *DispositionRepository) Create(ctx context.Context, d *Disposition) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_dispositions (
			id, batch_id, product_id, lot_id, cause, quantity, expiry_date, remarks, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING removed_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		d.ID, d.BatchID, d.ProductID, d.LotID, d.Cause, d.Quantity, d.ExpiryDate, d.Remarks, d.PerformedBy,
	).Scan(&d.RemovedAt)
	return database.Classify(err)
}

// List lists dispositions, most recent first
func (r *DispositionRepository) List(ctx context.Context, filter DispositionFilter, limit, offset int) ([]*Disposition, int64, error) {
	where := `
		WHERE ($1 = '' OR cause = $1)
		AND ($2 = '' OR product_id::text = $2)
	`
	args := []interface{}{filter.Cause, filter.ProductID}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_dispositions `+where, args...); err != nil {
		return nil, 0, err
	}

	var records []*Disposition
	query := `SELECT * FROM stock_dispositions ` + where + ` ORDER BY removed_at DESC, id LIMIT $3 OFFSET $4`
	if err := r.db.Conn(ctx).SelectContext(ctx, &records, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListByBatch lists the records written by one dispose call
func (r *DispositionRepository) ListByBatch(ctx context.Context, batchID string) ([]*Disposition, error) {
	var records []*Disposition
	query := `SELECT * FROM stock_dispositions WHERE batch_id = $1 ORDER BY removed_at, id`
	if err := r.db.Conn(ctx).SelectContext(ctx, &records, query, batchID); err != nil {
		return nil, err
	}
	return records, nil
}
