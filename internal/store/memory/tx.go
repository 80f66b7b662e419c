package memory

import (
	"context"
	"fmt"
	"sort"

	"karatpos/internal/domain"
	"karatpos/internal/store"
)

type tx struct {
	store.Phase
	s       *Store
	reads   map[string]uint64
	ops     []func(*Store)
	touched []string
}

var _ store.Tx = (*tx)(nil)

// observe records the version of key the first time it is read. Must hold s.mu.
func (t *tx) observe(keys ...string) {
	for _, key := range keys {
		if _, seen := t.reads[key]; !seen {
			t.reads[key] = t.s.versions[key]
		}
	}
}

func (t *tx) read(keys ...string) (func(), error) {
	if err := t.BeginRead(); err != nil {
		return nil, err
	}
	t.s.mu.RLock()
	t.observe(keys...)
	return t.s.mu.RUnlock, nil
}

func (t *tx) write(op func(*Store), keys ...string) error {
	t.BeginWrite()
	t.ops = append(t.ops, op)
	t.touched = append(t.touched, keys...)
	return nil
}

func (t *tx) commit() error {
	if len(t.ops) == 0 {
		return nil
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range t.reads {
		if s.versions[key] != version {
			return fmt.Errorf("%w: %s changed", store.ErrConflict, key)
		}
	}
	for _, op := range t.ops {
		op(s)
	}
	for _, key := range t.touched {
		s.versions[key]++
	}
	return nil
}

func (t *tx) GetSettings(_ context.Context) (domain.Settings, error) {
	unlock, err := t.read(keySettings)
	if err != nil {
		return domain.Settings{}, err
	}
	defer unlock()
	if t.s.settings == nil {
		return domain.Settings{}, store.ErrNotFound
	}
	return domain.Settings{Rates: t.s.settings.Rates.Clone()}, nil
}

func (t *tx) GetCounter(_ context.Context, name string) (domain.SequenceCounter, error) {
	unlock, err := t.read(prefixCounter + name)
	if err != nil {
		return domain.SequenceCounter{}, err
	}
	defer unlock()
	value, ok := t.s.counters[name]
	if !ok {
		return domain.SequenceCounter{}, store.ErrNotFound
	}
	return domain.SequenceCounter{Name: name, LastValue: value}, nil
}

func (t *tx) GetInventoryItem(_ context.Context, sku string) (domain.Item, error) {
	unlock, err := t.read(prefixInventory + sku)
	if err != nil {
		return domain.Item{}, err
	}
	defer unlock()
	item, ok := t.s.inventory[sku]
	if !ok {
		return domain.Item{}, store.ErrNotFound
	}
	return item.Clone(), nil
}

func (t *tx) ListInventory(_ context.Context) ([]domain.Item, error) {
	unlock, err := t.read(collInventory)
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]domain.Item, 0, len(t.s.inventory))
	for _, item := range t.s.inventory {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (t *tx) GetSoldItem(_ context.Context, sku string) (domain.SoldItem, error) {
	unlock, err := t.read(prefixSold + sku)
	if err != nil {
		return domain.SoldItem{}, err
	}
	defer unlock()
	sold, ok := t.s.sold[sku]
	if !ok {
		return domain.SoldItem{}, store.ErrNotFound
	}
	sold.Item = sold.Item.Clone()
	return sold, nil
}

func (t *tx) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	unlock, err := t.read(prefixCustomer + id)
	if err != nil {
		return domain.Customer{}, err
	}
	defer unlock()
	customer, ok := t.s.customers[id]
	if !ok {
		return domain.Customer{}, store.ErrNotFound
	}
	return customer, nil
}

func (t *tx) GetInvoice(_ context.Context, id string) (domain.Invoice, error) {
	unlock, err := t.read(prefixInvoice + id)
	if err != nil {
		return domain.Invoice{}, err
	}
	defer unlock()
	invoice, ok := t.s.invoices[id]
	if !ok {
		return domain.Invoice{}, store.ErrNotFound
	}
	return invoice.Clone(), nil
}

func (t *tx) GetOrder(_ context.Context, id string) (domain.Order, error) {
	unlock, err := t.read(prefixOrder + id)
	if err != nil {
		return domain.Order{}, err
	}
	defer unlock()
	order, ok := t.s.orders[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return order.Clone(), nil
}

func (t *tx) ListPostingsByEntity(_ context.Context, entityID string) ([]domain.LedgerPosting, error) {
	return t.listPostings(func(p domain.LedgerPosting) bool { return p.EntityID == entityID })
}

func (t *tx) ListPostingsByInvoice(_ context.Context, invoiceID string) ([]domain.LedgerPosting, error) {
	return t.listPostings(func(p domain.LedgerPosting) bool { return p.InvoiceRef == invoiceID })
}

func (t *tx) listPostings(match func(domain.LedgerPosting) bool) ([]domain.LedgerPosting, error) {
	unlock, err := t.read(collPostings)
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]domain.LedgerPosting, 0)
	for _, p := range t.s.postings {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) PutSettings(_ context.Context, settings domain.Settings) error {
	settings.Rates = settings.Rates.Clone()
	return t.write(func(s *Store) { s.settings = &settings }, keySettings)
}

func (t *tx) PutCounter(_ context.Context, counter domain.SequenceCounter) error {
	return t.write(func(s *Store) { s.counters[counter.Name] = counter.LastValue }, prefixCounter+counter.Name)
}

func (t *tx) PutInventoryItem(_ context.Context, item domain.Item) error {
	item = item.Clone()
	return t.write(func(s *Store) { s.inventory[item.SKU] = item }, prefixInventory+item.SKU, collInventory)
}

func (t *tx) DeleteInventoryItem(_ context.Context, sku string) error {
	return t.write(func(s *Store) { delete(s.inventory, sku) }, prefixInventory+sku, collInventory)
}

func (t *tx) PutSoldItem(_ context.Context, sold domain.SoldItem) error {
	sold.Item = sold.Item.Clone()
	return t.write(func(s *Store) { s.sold[sold.Item.SKU] = sold }, prefixSold+sold.Item.SKU)
}

func (t *tx) DeleteSoldItem(_ context.Context, sku string) error {
	return t.write(func(s *Store) { delete(s.sold, sku) }, prefixSold+sku)
}

func (t *tx) PutCustomer(_ context.Context, customer domain.Customer) error {
	return t.write(func(s *Store) { s.customers[customer.ID] = customer }, prefixCustomer+customer.ID)
}

func (t *tx) PutInvoice(_ context.Context, invoice domain.Invoice) error {
	invoice = invoice.Clone()
	return t.write(func(s *Store) { s.invoices[invoice.ID] = invoice }, prefixInvoice+invoice.ID)
}

func (t *tx) DeleteInvoice(_ context.Context, id string) error {
	return t.write(func(s *Store) { delete(s.invoices, id) }, prefixInvoice+id)
}

func (t *tx) AppendPosting(_ context.Context, posting domain.LedgerPosting) error {
	return t.write(func(s *Store) { s.postings[posting.ID] = posting }, prefixPosting+posting.ID, collPostings)
}

func (t *tx) DeletePosting(_ context.Context, id string) error {
	return t.write(func(s *Store) { delete(s.postings, id) }, prefixPosting+id, collPostings)
}

func (t *tx) PutOrder(_ context.Context, order domain.Order) error {
	order = order.Clone()
	return t.write(func(s *Store) { s.orders[order.ID] = order }, prefixOrder+order.ID)
}
