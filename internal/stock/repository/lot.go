package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// Lot is a quantity of one product received together, sharing manufacturing
// and expiry dates
type Lot struct {
	ID                string          `db:"id" json:"id"`
	LotSeq            int64           `db:"lot_seq" json:"-"`
	ReceiptID         string          `db:"receipt_id" json:"receipt_id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	ManufacturingDate time.Time       `db:"manufacturing_date" json:"manufacturing_date"`
	ExpiryDate        time.Time       `db:"expiry_date" json:"expiry_date"`
	PurchasedQuantity int             `db:"purchased_quantity" json:"purchased_quantity"`
	RemainingQuantity int             `db:"remaining_quantity" json:"remaining_quantity"`
	Total             decimal.Decimal `db:"total" json:"total"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Depleted reports whether any of the lot has been drawn down
func (l *Lot) Depleted() bool {
	return l.RemainingQuantity != l.PurchasedQuantity
}

// InventoryLot is a lot joined with its product and receipt for listings
type InventoryLot struct {
	Lot
	ProductCode   string    `db:"product_code" json:"product_code"`
	ProductName   string    `db:"product_name" json:"product_name"`
	SupplierID    string    `db:"supplier_id" json:"supplier_id"`
	SupplierName  string    `db:"supplier_name" json:"supplier_name"`
	InvoiceNumber string    `db:"invoice_number" json:"invoice_number"`
	PurchaseDate  time.Time `db:"purchase_date" json:"purchase_date"`
}

// InventoryFilter narrows an inventory listing. ExpiredOnly keeps lots with
// expiry_date before Today.
type InventoryFilter struct {
	ProductID   string
	ExpiredOnly bool
	Today       time.Time
}

const inventorySelect = `
	SELECT l.*, p.code AS product_code, p.name AS product_name,
		r.supplier_id, s.name AS supplier_name, r.invoice_number, r.purchase_date
	FROM lots l
	JOIN products p ON p.id = l.product_id
	JOIN receipts r ON r.id = l.receipt_id
	JOIN suppliers s ON s.id = r.supplier_id
`

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, receipt_id, product_id, manufacturing_date, expiry_date,
			purchased_quantity, remaining_quantity, total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING lot_seq, created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		lot.ID, lot.ReceiptID, lot.ProductID, lot.ManufacturingDate, lot.ExpiryDate,
		lot.PurchasedQuantity, lot.RemainingQuantity, lot.Total,
	).Scan(&lot.LotSeq, &lot.CreatedAt, &lot.UpdatedAt)
	return database.Classify(err)
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	return r.get(ctx, `SELECT * FROM lots WHERE id = $1`, id)
}

// GetForUpdate gets a lot and locks it until the transaction ends
func (r *LotRepository) GetForUpdate(ctx context.Context, id string) (*Lot, error) {
	return r.get(ctx, `SELECT * FROM lots WHERE id = $1 FOR UPDATE`, id)
}

func (r *LotRepository) get(ctx context.Context, query, id string) (*Lot, error) {
	var lot Lot
	if err := r.db.Conn(ctx).GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// FindMergeCandidate locks the oldest lot of the product with the same dates
// received from the same supplier. It returns nil when there is none.
func (r *LotRepository) FindMergeCandidate(ctx context.Context, productID string, mfg, exp time.Time, supplierID string) (*Lot, error) {
	var lot Lot
	query := `
		SELECT l.* FROM lots l
		JOIN receipts r ON r.id = l.receipt_id
		WHERE l.product_id = $1 AND l.manufacturing_date = $2 AND l.expiry_date = $3
		AND r.supplier_id = $4
		ORDER BY l.lot_seq
		LIMIT 1
		FOR UPDATE OF l
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &lot, query, productID, mfg, exp, supplierID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lot, nil
}

// AddQuantity merges a received quantity onto an existing lot
func (r *LotRepository) AddQuantity(ctx context.Context, lot *Lot, qty int, total decimal.Decimal) error {
	query := `
		UPDATE lots SET
			purchased_quantity = purchased_quantity + $2,
			remaining_quantity = remaining_quantity + $2,
			total = total + $3,
			updated_at = NOW()
		WHERE id = $1
		RETURNING purchased_quantity, remaining_quantity, total, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query, lot.ID, qty, total).
		Scan(&lot.PurchasedQuantity, &lot.RemainingQuantity, &lot.Total, &lot.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("lot")
	}
	return database.Classify(err)
}

// ListByReceipt lists a receipt's lots in creation order. With forUpdate the
// rows stay locked until the transaction ends.
func (r *LotRepository) ListByReceipt(ctx context.Context, receiptID string, forUpdate bool) ([]*Lot, error) {
	query := `SELECT * FROM lots WHERE receipt_id = $1 ORDER BY lot_seq`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var lots []*Lot
	if err := r.db.Conn(ctx).SelectContext(ctx, &lots, query, receiptID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListForAllocation locks the product's lots that still hold stock, earliest
// expiry first with creation order breaking ties. A non-nil expiredBefore
// keeps only lots expiring strictly before it.
func (r *LotRepository) ListForAllocation(ctx context.Context, productID string, expiredBefore *time.Time) ([]*Lot, error) {
	query := `
		SELECT * FROM lots
		WHERE product_id = $1 AND remaining_quantity > 0
		AND ($2::date IS NULL OR expiry_date < $2::date)
		ORDER BY expiry_date, lot_seq
		FOR UPDATE
	`

	var lots []*Lot
	if err := r.db.Conn(ctx).SelectContext(ctx, &lots, query, productID, expiredBefore); err != nil {
		return nil, err
	}
	return lots, nil
}

// Debit takes qty off a lot's remaining quantity
func (r *LotRepository) Debit(ctx context.Context, id string, qty int) (int, error) {
	var remaining int
	query := `
		UPDATE lots SET remaining_quantity = remaining_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND remaining_quantity >= $2
		RETURNING remaining_quantity
	`
	if err := r.db.Conn(ctx).QueryRowxContext(ctx, query, id, qty).Scan(&remaining); err != nil {
		if err == sql.ErrNoRows {
			return 0, errors.Conflict("lot does not hold the quantity being debited")
		}
		return 0, database.Classify(err)
	}
	return remaining, nil
}

// Update rewrites a lot's dates, quantities and total
func (r *LotRepository) Update(ctx context.Context, lot *Lot) error {
	query := `
		UPDATE lots SET
			manufacturing_date = $2, expiry_date = $3,
			purchased_quantity = $4, remaining_quantity = $5, total = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		lot.ID, lot.ManufacturingDate, lot.ExpiryDate,
		lot.PurchasedQuantity, lot.RemainingQuantity, lot.Total,
	).Scan(&lot.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("lot")
	}
	return database.Classify(err)
}

// Delete deletes a lot
func (r *LotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM lots WHERE id = $1`, id)
	if err != nil {
		return database.Classify(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}
	return nil
}

// ZeroByProduct clears the remaining quantity of every lot of a product and
// returns how many lots it touched
func (r *LotRepository) ZeroByProduct(ctx context.Context, productID string) (int64, error) {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE lots SET remaining_quantity = 0, updated_at = NOW()
		WHERE product_id = $1 AND remaining_quantity > 0
	`, productID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SumRemaining adds up the remaining quantity across a product's lots
func (r *LotRepository) SumRemaining(ctx context.Context, productID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(remaining_quantity) FROM lots WHERE product_id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &total, query, productID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListInventory lists lots with their product and receipt, earliest expiry first
func (r *LotRepository) ListInventory(ctx context.Context, filter InventoryFilter, limit, offset int) ([]*InventoryLot, int64, error) {
	var expiredBefore *time.Time
	if filter.ExpiredOnly {
		expiredBefore = &filter.Today
	}

	where := `
		WHERE ($1 = '' OR l.product_id::text = $1)
		AND ($2::date IS NULL OR l.expiry_date < $2::date)
	`
	args := []interface{}{filter.ProductID, expiredBefore}

	var total int64
	countQuery := `SELECT COUNT(*) FROM lots l ` + where
	if err := r.db.Conn(ctx).GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	var lots []*InventoryLot
	query := inventorySelect + where + ` ORDER BY l.expiry_date, l.lot_seq LIMIT $3 OFFSET $4`
	if err := r.db.Conn(ctx).SelectContext(ctx, &lots, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	return lots, total, nil
}

// ListExpiredWithStock lists lots past their expiry date that still hold stock
func (r *LotRepository) ListExpiredWithStock(ctx context.Context, today time.Time) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := inventorySelect + `
		WHERE l.remaining_quantity > 0 AND l.expiry_date < $1
		ORDER BY l.expiry_date, l.lot_seq
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &lots, query, today); err != nil {
		return nil, err
	}
	return lots, nil
}
