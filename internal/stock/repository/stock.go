package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// TotalStock is the per-product aggregate over all lots
type TotalStock struct {
	ID                string    `db:"id" json:"id"`
	ProductID         string    `db:"product_id" json:"product_id"`
	TotalQuantity     int       `db:"total_quantity" json:"total_quantity"`
	RemainingQuantity int       `db:"remaining_quantity" json:"remaining_quantity"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// TotalStockView is an aggregate row joined with its product
type TotalStockView struct {
	TotalStock
	ProductCode string `db:"product_code" json:"product_code"`
	ProductName string `db:"product_name" json:"product_name"`
}

// StockRepository handles the aggregate stock index
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Ensure creates the product's aggregate row if it is missing
func (r *StockRepository) Ensure(ctx context.Context, productID string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO total_stocks (id, product_id, total_quantity, remaining_quantity)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (product_id) DO NOTHING
	`, uuid.New().String(), productID)
	return database.Classify(err)
}

// EnsureForUpdate creates the aggregate row if needed and locks it
func (r *StockRepository) EnsureForUpdate(ctx context.Context, productID string) (*TotalStock, error) {
	if err := r.Ensure(ctx, productID); err != nil {
		return nil, err
	}
	return r.GetForUpdate(ctx, productID)
}

// GetForUpdate gets the product's aggregate row and locks it until the
// transaction ends. Every stock mutation for a product serializes here.
func (r *StockRepository) GetForUpdate(ctx context.Context, productID string) (*TotalStock, error) {
	return r.get(ctx, `SELECT * FROM total_stocks WHERE product_id = $1 FOR UPDATE`, productID)
}

// GetByProduct gets the product's aggregate row
func (r *StockRepository) GetByProduct(ctx context.Context, productID string) (*TotalStock, error) {
	return r.get(ctx, `SELECT * FROM total_stocks WHERE product_id = $1`, productID)
}

func (r *StockRepository) get(ctx context.Context, query, productID string) (*TotalStock, error) {
	var ts TotalStock
	if err := r.db.Conn(ctx).GetContext(ctx, &ts, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock")
		}
		return nil, err
	}
	return &ts, nil
}

// GetByProductCode gets the aggregate of an active product looked up by code
func (r *StockRepository) GetByProductCode(ctx context.Context, code string) (*TotalStockView, error) {
	var v TotalStockView
	query := `
		SELECT t.*, p.code AS product_code, p.name AS product_name
		FROM total_stocks t
		JOIN products p ON p.id = t.product_id
		WHERE p.code = $1 AND p.is_active = TRUE
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &v, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock")
		}
		return nil, err
	}
	return &v, nil
}

// Adjust moves the aggregate's total and remaining quantities by the given deltas
func (r *StockRepository) Adjust(ctx context.Context, productID string, totalDelta, remainingDelta int) (*TotalStock, error) {
	var ts TotalStock
	query := `
		UPDATE total_stocks SET
			total_quantity = total_quantity + $2,
			remaining_quantity = remaining_quantity + $3,
			updated_at = NOW()
		WHERE product_id = $1
		RETURNING *
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &ts, query, productID, totalDelta, remainingDelta); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock")
		}
		return nil, database.Classify(err)
	}
	return &ts, nil
}

// Zero clears a product's aggregate quantities
func (r *StockRepository) Zero(ctx context.Context, productID string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE total_stocks SET total_quantity = 0, remaining_quantity = 0, updated_at = NOW()
		WHERE product_id = $1
	`, productID)
	return err
}

// List lists the aggregates of active products ordered by product code
func (r *StockRepository) List(ctx context.Context, limit, offset int) ([]*TotalStockView, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*) FROM total_stocks t
		JOIN products p ON p.id = t.product_id
		WHERE p.is_active = TRUE
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, err
	}

	var stocks []*TotalStockView
	query := `
		SELECT t.*, p.code AS product_code, p.name AS product_name
		FROM total_stocks t
		JOIN products p ON p.id = t.product_id
		WHERE p.is_active = TRUE
		ORDER BY p.code
		LIMIT $1 OFFSET $2
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &stocks, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return stocks, total, nil
}
