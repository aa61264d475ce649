package repository

import (
	"context"
	"fmt"

	"github.com/stockledger/stockledger-backend/pkg/database"
)

// schema is applied in order; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		code VARCHAR(50) NOT NULL,
		barcode VARCHAR(100),
		name VARCHAR(255) NOT NULL,
		category VARCHAR(100),
		brand VARCHAR(100),
		unit_type VARCHAR(50),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT products_code_key UNIQUE (code)
	)`,

	`CREATE TABLE IF NOT EXISTS suppliers (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		contact_person VARCHAR(255),
		phone VARCHAR(50),
		address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS branches (
		id UUID PRIMARY KEY,
		code VARCHAR(20) NOT NULL,
		name VARCHAR(255) NOT NULL,
		address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT branches_code_key UNIQUE (code)
	)`,

	`CREATE TABLE IF NOT EXISTS receipts (
		id UUID PRIMARY KEY,
		supplier_id UUID NOT NULL REFERENCES suppliers(id),
		purchase_date DATE NOT NULL,
		supplier_date DATE,
		invoice_number VARCHAR(100) NOT NULL,
		remarks TEXT,
		created_by VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// lot_seq breaks expiry ties in creation order
	`CREATE TABLE IF NOT EXISTS lots (
		id UUID PRIMARY KEY,
		lot_seq BIGINT GENERATED ALWAYS AS IDENTITY,
		receipt_id UUID NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id),
		manufacturing_date DATE NOT NULL,
		expiry_date DATE NOT NULL,
		purchased_quantity INTEGER NOT NULL,
		remaining_quantity INTEGER NOT NULL,
		total NUMERIC(14, 2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT lots_lot_seq_key UNIQUE (lot_seq),
		CONSTRAINT lots_quantity_positive CHECK (purchased_quantity > 0),
		CONSTRAINT lots_remaining_nonnegative CHECK (remaining_quantity >= 0),
		CONSTRAINT lots_remaining_le_purchased CHECK (remaining_quantity <= purchased_quantity)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_lots_fefo ON lots (product_id, expiry_date, lot_seq) WHERE remaining_quantity > 0`,
	`CREATE INDEX IF NOT EXISTS idx_lots_merge ON lots (product_id, manufacturing_date, expiry_date)`,
	`CREATE INDEX IF NOT EXISTS idx_lots_receipt ON lots (receipt_id)`,

	`CREATE TABLE IF NOT EXISTS total_stocks (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL REFERENCES products(id),
		total_quantity INTEGER NOT NULL DEFAULT 0,
		remaining_quantity INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT total_stocks_product_key UNIQUE (product_id),
		CONSTRAINT total_stocks_total_nonnegative CHECK (total_quantity >= 0),
		CONSTRAINT total_stocks_remaining_nonnegative CHECK (remaining_quantity >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS stock_dispositions (
		id UUID PRIMARY KEY,
		batch_id UUID NOT NULL,
		product_id UUID NOT NULL REFERENCES products(id),
		lot_id UUID REFERENCES lots(id) ON DELETE SET NULL,
		cause VARCHAR(20) NOT NULL,
		quantity INTEGER NOT NULL,
		expiry_date DATE,
		remarks TEXT,
		performed_by VARCHAR(100),
		removed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT stock_dispositions_cause_valid CHECK (cause IN ('expired', 'defective')),
		CONSTRAINT stock_dispositions_quantity_positive CHECK (quantity > 0)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_stock_dispositions_cause ON stock_dispositions (cause, removed_at DESC)`,

	`CREATE TABLE IF NOT EXISTS outbound_transactions (
		id UUID PRIMARY KEY,
		branch_id UUID NOT NULL REFERENCES branches(id),
		transaction_date DATE NOT NULL,
		invoice_number VARCHAR(255) NOT NULL,
		branch_in_charge VARCHAR(255) NOT NULL,
		remarks TEXT,
		performed_by VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS outbound_lines (
		id UUID PRIMARY KEY,
		transaction_id UUID NOT NULL REFERENCES outbound_transactions(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		product_id UUID NOT NULL REFERENCES products(id),
		qty_requested INTEGER NOT NULL,
		CONSTRAINT outbound_lines_quantity_positive CHECK (qty_requested > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS outbound_allocations (
		id UUID PRIMARY KEY,
		line_id UUID NOT NULL REFERENCES outbound_lines(id) ON DELETE CASCADE,
		lot_id UUID NOT NULL REFERENCES lots(id),
		quantity INTEGER NOT NULL,
		CONSTRAINT outbound_allocations_quantity_positive CHECK (quantity > 0)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_outbound_lines_transaction ON outbound_lines (transaction_id, line_no)`,
	`CREATE INDEX IF NOT EXISTS idx_outbound_allocations_line ON outbound_allocations (line_id)`,
}

// Tables lists the ledger's tables, children first
var Tables = []string{
	"outbound_allocations",
	"outbound_lines",
	"outbound_transactions",
	"stock_dispositions",
	"total_stocks",
	"lots",
	"receipts",
	"branches",
	"suppliers",
	"products",
}

// Migrate creates the ledger schema if it does not exist
func Migrate(ctx context.Context, db *database.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	return nil
}
