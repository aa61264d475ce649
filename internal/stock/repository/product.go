package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// Product is the ledger's copy of a catalog product
type Product struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Barcode   *string   `db:"barcode" json:"barcode,omitempty"`
	Name      string    `db:"name" json:"name"`
	Category  *string   `db:"category" json:"category,omitempty"`
	Brand     *string   `db:"brand" json:"brand,omitempty"`
	UnitType  *string   `db:"unit_type" json:"unit_type,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Supplier represents a supplier
type Supplier struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	ContactPerson *string   `db:"contact_person" json:"contact_person,omitempty"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	Address       *string   `db:"address" json:"address,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Branch represents a branch stock is shipped to
type Branch struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert inserts a product or refreshes its catalog fields
func (r *ProductRepository) Upsert(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, code, barcode, name, category, brand, unit_type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, barcode = EXCLUDED.barcode, name = EXCLUDED.name,
			category = EXCLUDED.category, brand = EXCLUDED.brand, unit_type = EXCLUDED.unit_type,
			is_active = TRUE, updated_at = NOW()
		RETURNING is_active, created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		p.ID, p.Code, p.Barcode, p.Name, p.Category, p.Brand, p.UnitType,
	).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return database.Classify(err)
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// GetActive gets a product that can still take stock movements
func (r *ProductRepository) GetActive(ctx context.Context, id string) (*Product, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errors.NotFound("product")
	}
	return p, nil
}

// GetByCode gets a product by its code
func (r *ProductRepository) GetByCode(ctx context.Context, code string) (*Product, error) {
	var p Product
	query := `SELECT * FROM products WHERE code = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &p, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// List lists active products ordered by code
func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]*Product, int64, error) {
	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM products WHERE is_active = TRUE`); err != nil {
		return nil, 0, err
	}

	var products []*Product
	query := `SELECT * FROM products WHERE is_active = TRUE ORDER BY code LIMIT $1 OFFSET $2`
	if err := r.db.Conn(ctx).SelectContext(ctx, &products, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// SearchCodes returns up to limit active products whose code contains q
func (r *ProductRepository) SearchCodes(ctx context.Context, q string, limit int) ([]*Product, error) {
	var products []*Product
	query := `
		SELECT * FROM products
		WHERE is_active = TRUE AND code ILIKE '%' || $1 || '%'
		ORDER BY code
		LIMIT $2
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &products, query, q, limit); err != nil {
		return nil, err
	}
	return products, nil
}

// Deactivate marks a product inactive
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}
	return nil
}

// SupplierRepository handles supplier persistence
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Upsert inserts or updates a supplier
func (r *SupplierRepository) Upsert(ctx context.Context, s *Supplier) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
		INSERT INTO suppliers (id, name, contact_person, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, contact_person = EXCLUDED.contact_person,
			phone = EXCLUDED.phone, address = EXCLUDED.address, updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		s.ID, s.Name, s.ContactPerson, s.Phone, s.Address,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return database.Classify(err)
}

// GetByID gets a supplier by ID
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*Supplier, error) {
	var s Supplier
	if err := r.db.Conn(ctx).GetContext(ctx, &s, `SELECT * FROM suppliers WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("supplier")
		}
		return nil, err
	}
	return &s, nil
}

// List lists all suppliers
func (r *SupplierRepository) List(ctx context.Context) ([]*Supplier, error) {
	var suppliers []*Supplier
	if err := r.db.Conn(ctx).SelectContext(ctx, &suppliers, `SELECT * FROM suppliers ORDER BY name`); err != nil {
		return nil, err
	}
	return suppliers, nil
}

// BranchRepository handles branch persistence
type BranchRepository struct {
	db *database.DB
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *database.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// Upsert inserts or updates a branch
func (r *BranchRepository) Upsert(ctx context.Context, b *Branch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO branches (id, code, name, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, address = EXCLUDED.address, updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		b.ID, b.Code, b.Name, b.Address,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return database.Classify(err)
}

// GetByID gets a branch by ID
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*Branch, error) {
	var b Branch
	if err := r.db.Conn(ctx).GetContext(ctx, &b, `SELECT * FROM branches WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("branch")
		}
		return nil, err
	}
	return &b, nil
}

// List lists all branches
func (r *BranchRepository) List(ctx context.Context) ([]*Branch, error) {
	var branches []*Branch
	if err := r.db.Conn(ctx).SelectContext(ctx, &branches, `SELECT * FROM branches ORDER BY code`); err != nil {
		return nil, err
	}
	return branches, nil
}
