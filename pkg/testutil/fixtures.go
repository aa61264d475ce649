package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/pkg/database"
)

// ProductFixture represents test product data
type ProductFixture struct {
	ID   string
	Code string
	Name string
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID   string
	Name string
}

// BranchFixture represents test branch data
type BranchFixture struct {
	ID   string
	Code string
	Name string
}

// FixtureFactory inserts reference data with unique defaults
type FixtureFactory struct {
	db       *database.DB
	mu       sync.Mutex
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory(db *database.DB) *FixtureFactory {
	return &FixtureFactory{db: db}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// Product inserts an active product
func (f *FixtureFactory) Product(t *testing.T, ctx context.Context, opts ...func(*ProductFixture)) ProductFixture {
	t.Helper()
	seq := f.nextSeq()

	p := ProductFixture{
		ID:   uuid.New().String(),
		Code: fmt.Sprintf("P-%05d", seq),
		Name: fmt.Sprintf("Test Product %d", seq),
	}
	for _, opt := range opts {
		opt(&p)
	}

	_, err := f.db.ExecContext(ctx,
		`INSERT INTO products (id, code, name, is_active) VALUES ($1, $2, $3, TRUE)`,
		p.ID, p.Code, p.Name)
	if err != nil {
		t.Fatalf("failed to insert product fixture: %v", err)
	}
	return p
}

// WithProductCode sets the product code
func WithProductCode(code string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Code = code
	}
}

// Supplier inserts a supplier
func (f *FixtureFactory) Supplier(t *testing.T, ctx context.Context) SupplierFixture {
	t.Helper()
	seq := f.nextSeq()

	s := SupplierFixture{
		ID:   uuid.New().String(),
		Name: fmt.Sprintf("Test Supplier %d", seq),
	}

	_, err := f.db.ExecContext(ctx, `INSERT INTO suppliers (id, name) VALUES ($1, $2)`, s.ID, s.Name)
	if err != nil {
		t.Fatalf("failed to insert supplier fixture: %v", err)
	}
	return s
}

// Branch inserts a branch
func (f *FixtureFactory) Branch(t *testing.T, ctx context.Context) BranchFixture {
	t.Helper()
	seq := f.nextSeq()

	b := BranchFixture{
		ID:   uuid.New().String(),
		Code: fmt.Sprintf("BR-%03d", seq),
		Name: fmt.Sprintf("Test Branch %d", seq),
	}

	_, err := f.db.ExecContext(ctx,
		`INSERT INTO branches (id, code, name) VALUES ($1, $2, $3)`, b.ID, b.Code, b.Name)
	if err != nil {
		t.Fatalf("failed to insert branch fixture: %v", err)
	}
	return b
}
