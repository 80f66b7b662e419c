package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"karatpos/internal/domain"
	"karatpos/internal/store"
)

type tx struct {
	store.Phase
	tx *sql.Tx
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetSettings(ctx context.Context) (domain.Settings, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Settings{}, err
	}
	var raw []byte
	if err := t.tx.QueryRowContext(ctx, `SELECT rates FROM settings WHERE id = 1`).Scan(&raw); err != nil {
		return domain.Settings{}, mapError(err)
	}
	var settings domain.Settings
	if err := json.Unmarshal(raw, &settings.Rates); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (t *tx) GetCounter(ctx context.Context, name string) (domain.SequenceCounter, error) {
	if err := t.BeginRead(); err != nil {
		return domain.SequenceCounter{}, err
	}
	counter := domain.SequenceCounter{Name: name}
	err := t.tx.QueryRowContext(ctx, `
		SELECT last_value FROM sequence_counters WHERE name = $1 FOR UPDATE
	`, name).Scan(&counter.LastValue)
	if err != nil {
		return domain.SequenceCounter{}, mapError(err)
	}
	return counter, nil
}

func (t *tx) GetInventoryItem(ctx context.Context, sku string) (domain.Item, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Item{}, err
	}
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT item FROM inventory_items WHERE sku = $1 FOR UPDATE
	`, sku).Scan(&raw)
	if err != nil {
		return domain.Item{}, mapError(err)
	}
	var item domain.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func (t *tx) ListInventory(ctx context.Context) ([]domain.Item, error) {
	if err := t.BeginRead(); err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT item FROM inventory_items ORDER BY sku`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, mapError(err)
		}
		var item domain.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return items, nil
}

func (t *tx) GetSoldItem(ctx context.Context, sku string) (domain.SoldItem, error) {
	if err := t.BeginRead(); err != nil {
		return domain.SoldItem{}, err
	}
	var sold domain.SoldItem
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT invoice_id, sold_at, item FROM sold_items WHERE sku = $1 FOR UPDATE
	`, sku).Scan(&sold.InvoiceID, &sold.SoldAt, &raw)
	if err != nil {
		return domain.SoldItem{}, mapError(err)
	}
	if err := json.Unmarshal(raw, &sold.Item); err != nil {
		return domain.SoldItem{}, err
	}
	return sold, nil
}

func (t *tx) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Customer{}, err
	}
	var c domain.Customer
	var phone sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &phone, &c.CreatedAt)
	if err != nil {
		return domain.Customer{}, mapError(err)
	}
	c.Phone = phone.String
	return c, nil
}

func (t *tx) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Invoice{}, err
	}
	var inv domain.Invoice
	var customerID, customerPhone, sourceOrderID sql.NullString
	var lines, snapshot, payments []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, customer_phone, subtotal, discount, grand_total,
		       amount_paid, balance_due, lines, rate_snapshot, payment_history, source_order_id,
		       created_at, updated_at
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&inv.ID, &customerID, &inv.CustomerName, &customerPhone, &inv.Subtotal, &inv.Discount, &inv.GrandTotal,
		&inv.AmountPaid, &inv.BalanceDue, &lines, &snapshot, &payments, &sourceOrderID,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invoice{}, mapError(err)
	}
	inv.CustomerID = customerID.String
	inv.CustomerPhone = customerPhone.String
	inv.SourceOrderID = sourceOrderID.String
	if err := json.Unmarshal(lines, &inv.Lines); err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(snapshot, &inv.RateSnapshot); err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(payments, &inv.PaymentHistory); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (t *tx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Order{}, err
	}
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT order_doc FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&raw)
	if err != nil {
		return domain.Order{}, mapError(err)
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

const postingColumns = `
	id, entity_id, entity_kind, posted_at, description, invoice_ref,
	cash_owed_by_entity, cash_owed_to_entity, material_owed_by_entity, material_owed_to_entity`

func (t *tx) ListPostingsByEntity(ctx context.Context, entityID string) ([]domain.LedgerPosting, error) {
	return t.listPostings(ctx, `SELECT`+postingColumns+` FROM ledger_postings WHERE entity_id = $1 ORDER BY posted_at, id`, entityID)
}

func (t *tx) ListPostingsByInvoice(ctx context.Context, invoiceID string) ([]domain.LedgerPosting, error) {
	return t.listPostings(ctx, `SELECT`+postingColumns+` FROM ledger_postings WHERE invoice_ref = $1 ORDER BY posted_at, id`, invoiceID)
}

func (t *tx) listPostings(ctx context.Context, query string, arg string) ([]domain.LedgerPosting, error) {
	if err := t.BeginRead(); err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	postings := make([]domain.LedgerPosting, 0, 16)
	for rows.Next() {
		var p domain.LedgerPosting
		var kind string
		var invoiceRef sql.NullString
		if err := rows.Scan(
			&p.ID, &p.EntityID, &kind, &p.Timestamp, &p.Description, &invoiceRef,
			&p.CashOwedByEntity, &p.CashOwedToEntity, &p.MaterialOwedByEntity, &p.MaterialOwedToEntity,
		); err != nil {
			return nil, mapError(err)
		}
		p.EntityKind = domain.EntityKind(kind)
		p.InvoiceRef = invoiceRef.String
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return postings, nil
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.BeginWrite()
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (t *tx) PutSettings(ctx context.Context, settings domain.Settings) error {
	raw, err := json.Marshal(settings.Rates)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO settings (id, rates, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET rates = EXCLUDED.rates, updated_at = EXCLUDED.updated_at
	`, string(raw), settings.Rates.UpdatedAt)
	return err
}

func (t *tx) PutCounter(ctx context.Context, counter domain.SequenceCounter) error {
	_, err := t.exec(ctx, `
		INSERT INTO sequence_counters (name, last_value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET last_value = EXCLUDED.last_value
	`, counter.Name, counter.LastValue)
	return err
}

func (t *tx) PutInventoryItem(ctx context.Context, item domain.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO inventory_items (sku, category_id, item) VALUES ($1, $2, $3)
		ON CONFLICT (sku) DO UPDATE SET category_id = EXCLUDED.category_id, item = EXCLUDED.item
	`, item.SKU, item.CategoryID, string(raw))
	return err
}

// DeleteInventoryItem treats a missing row as a conflict: the row was read
// earlier in this transaction, so someone else removed it.
func (t *tx) DeleteInventoryItem(ctx context.Context, sku string) error {
	res, err := t.exec(ctx, `DELETE FROM inventory_items WHERE sku = $1`, sku)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (t *tx) PutSoldItem(ctx context.Context, sold domain.SoldItem) error {
	raw, err := json.Marshal(sold.Item)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO sold_items (sku, invoice_id, sold_at, item) VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE SET invoice_id = EXCLUDED.invoice_id, sold_at = EXCLUDED.sold_at, item = EXCLUDED.item
	`, sold.Item.SKU, sold.InvoiceID, sold.SoldAt, string(raw))
	return err
}

func (t *tx) DeleteSoldItem(ctx context.Context, sku string) error {
	_, err := t.exec(ctx, `DELETE FROM sold_items WHERE sku = $1`, sku)
	return err
}

func (t *tx) PutCustomer(ctx context.Context, c domain.Customer) error {
	_, err := t.exec(ctx, `
		INSERT INTO customers (id, name, phone, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone
	`, c.ID, c.Name, nullIfEmpty(c.Phone), c.CreatedAt)
	return err
}

func (t *tx) PutInvoice(ctx context.Context, inv domain.Invoice) error {
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(inv.RateSnapshot)
	if err != nil {
		return err
	}
	payments := inv.PaymentHistory
	if payments == nil {
		payments = []domain.Payment{}
	}
	history, err := json.Marshal(payments)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO invoices (
			id, customer_id, customer_name, customer_phone, subtotal, discount, grand_total,
			amount_paid, balance_due, lines, rate_snapshot, payment_history, source_order_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			amount_paid = EXCLUDED.amount_paid,
			balance_due = EXCLUDED.balance_due,
			payment_history = EXCLUDED.payment_history,
			updated_at = EXCLUDED.updated_at
	`,
		inv.ID, nullIfEmpty(inv.CustomerID), inv.CustomerName, nullIfEmpty(inv.CustomerPhone),
		inv.Subtotal, inv.Discount, inv.GrandTotal, inv.AmountPaid, inv.BalanceDue,
		string(lines), string(snapshot), string(history), nullIfEmpty(inv.SourceOrderID),
		inv.CreatedAt, inv.UpdatedAt,
	)
	return err
}

func (t *tx) DeleteInvoice(ctx context.Context, id string) error {
	_, err := t.exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

func (t *tx) AppendPosting(ctx context.Context, p domain.LedgerPosting) error {
	_, err := t.exec(ctx, `
		INSERT INTO ledger_postings (`+postingColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.ID, p.EntityID, string(p.EntityKind), p.Timestamp, p.Description, nullIfEmpty(p.InvoiceRef),
		p.CashOwedByEntity, p.CashOwedToEntity, p.MaterialOwedByEntity, p.MaterialOwedToEntity,
	)
	return err
}

func (t *tx) DeletePosting(ctx context.Context, id string) error {
	_, err := t.exec(ctx, `DELETE FROM ledger_postings WHERE id = $1`, id)
	return err
}

func (t *tx) PutOrder(ctx context.Context, order domain.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO orders (id, status, order_doc, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, order_doc = EXCLUDED.order_doc, updated_at = EXCLUDED.updated_at
	`, order.ID, string(order.Status), string(raw), order.CreatedAt, order.UpdatedAt)
	return err
}
