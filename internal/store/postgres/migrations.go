package postgres

import (
	"context"
	"fmt"
)

var migrations = []struct {
	name string
	sql  string
}{
	{"create_settings", `
CREATE TABLE IF NOT EXISTS settings (
    id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    rates      JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`},
	{"create_sequence_counters", `
CREATE TABLE IF NOT EXISTS sequence_counters (
    name       TEXT PRIMARY KEY,
    last_value BIGINT NOT NULL DEFAULT 0 CHECK (last_value >= 0)
)`},
	{"create_inventory_items", `
CREATE TABLE IF NOT EXISTS inventory_items (
    sku         TEXT PRIMARY KEY,
    category_id TEXT NOT NULL DEFAULT '',
    item        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inventory_items_category ON inventory_items (category_id)`},
	{"create_sold_items", `
CREATE TABLE IF NOT EXISTS sold_items (
    sku        TEXT PRIMARY KEY,
    invoice_id TEXT NOT NULL,
    sold_at    TIMESTAMPTZ NOT NULL,
    item       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sold_items_invoice ON sold_items (invoice_id)`},
	{"create_customers", `
CREATE TABLE IF NOT EXISTS customers (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    phone      TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`},
	{"create_invoices", `
CREATE TABLE IF NOT EXISTS invoices (
    id              TEXT PRIMARY KEY,
    customer_id     TEXT,
    customer_name   TEXT NOT NULL DEFAULT '',
    customer_phone  TEXT,
    subtotal        NUMERIC(18,2) NOT NULL,
    discount        NUMERIC(18,2) NOT NULL DEFAULT 0,
    grand_total     NUMERIC(18,2) NOT NULL,
    amount_paid     NUMERIC(18,2) NOT NULL DEFAULT 0,
    balance_due     NUMERIC(18,2) NOT NULL,
    lines           JSONB NOT NULL,
    rate_snapshot   JSONB NOT NULL,
    payment_history JSONB NOT NULL DEFAULT '[]',
    source_order_id TEXT,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices (customer_id)`},
	{"create_ledger_postings", `
CREATE TABLE IF NOT EXISTS ledger_postings (
    id                      TEXT PRIMARY KEY,
    entity_id               TEXT NOT NULL,
    entity_kind             TEXT NOT NULL,
    posted_at               TIMESTAMPTZ NOT NULL,
    description             TEXT NOT NULL DEFAULT '',
    invoice_ref             TEXT,
    cash_owed_by_entity     NUMERIC(18,2) NOT NULL DEFAULT 0,
    cash_owed_to_entity     NUMERIC(18,2) NOT NULL DEFAULT 0,
    material_owed_by_entity NUMERIC(18,3) NOT NULL DEFAULT 0,
    material_owed_to_entity NUMERIC(18,3) NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ledger_postings_entity ON ledger_postings (entity_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_ledger_postings_invoice ON ledger_postings (invoice_ref)`},
	{"create_orders", `
CREATE TABLE IF NOT EXISTS orders (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    order_doc  JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`},
}

// Migrate creates the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}
