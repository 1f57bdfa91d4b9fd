package database

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_intent_id TEXT,
		email TEXT NOT NULL,
		subtotal NUMERIC(12,2) NOT NULL,
		tax NUMERIC(12,2) NOT NULL,
		shipping NUMERIC(12,2) NOT NULL,
		discount NUMERIC(12,2) NOT NULL,
		total NUMERIC(12,2) NOT NULL,
		currency TEXT NOT NULL,
		shipping_address JSONB NOT NULL,
		billing_address JSONB,
		notes TEXT NOT NULL DEFAULT '',
		tracking_number TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		variant_id TEXT,
		name TEXT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		line_total NUMERIC(12,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_stuck ON orders (updated_at)
		WHERE status = 'pending' AND payment_status = 'pending'`,
}

// Migrate applies the schema at startup. Statements are idempotent so the
// service can be restarted against an already-provisioned database.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	logger.Info().Int("statements", len(migrations)).Msg("schema migrations applied")
	return nil
}
