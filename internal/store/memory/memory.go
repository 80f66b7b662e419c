package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"karatpos/internal/domain"
	"karatpos/internal/store"
	"karatpos/internal/xid"
)

const (
	keySettings     = "settings"
	collInventory   = "coll:inventory"
	collPostings    = "coll:postings"
	prefixCounter   = "counter:"
	prefixInventory = "inventory:"
	prefixSold      = "sold:"
	prefixCustomer  = "customer:"
	prefixInvoice   = "invoice:"
	prefixOrder     = "order:"
	prefixPosting   = "posting:"
)

// Store is an in-process store with optimistic concurrency. Every document
// key carries a version; a transaction records the versions it read and
// commits only if none of them moved.
type Store struct {
	mu        sync.RWMutex
	versions  map[string]uint64
	settings  *domain.Settings
	counters  map[string]int64
	inventory map[string]domain.Item
	sold      map[string]domain.SoldItem
	customers map[string]domain.Customer
	invoices  map[string]domain.Invoice
	orders    map[string]domain.Order
	postings  map[string]domain.LedgerPosting
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		versions:  make(map[string]uint64),
		counters:  make(map[string]int64),
		inventory: make(map[string]domain.Item),
		sold:      make(map[string]domain.SoldItem),
		customers: make(map[string]domain.Customer),
		invoices:  make(map[string]domain.Invoice),
		orders:    make(map[string]domain.Order),
		postings:  make(map[string]domain.LedgerPosting),
	}
}

// NewSeeded returns a store with demo rates and a handful of inventory pieces.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	s.settings = &domain.Settings{Rates: domain.RateTable{
		Entries: []domain.RateEntry{
			{Material: domain.MaterialGold, PurityTier: domain.Tier18K, UnitPricePerGram: 170},
			{Material: domain.MaterialGold, PurityTier: domain.Tier21K, UnitPricePerGram: 200},
			{Material: domain.MaterialGold, PurityTier: domain.Tier22K, UnitPricePerGram: 210},
			{Material: domain.MaterialGold, PurityTier: domain.Tier24K, UnitPricePerGram: 230},
			{Material: domain.MaterialPlatinum, UnitPricePerGram: 95},
			{Material: domain.MaterialSilver, UnitPricePerGram: 3},
		},
		UpdatedAt: now,
	}}

	seed := []domain.Item{
		{DisplayName: "Plain band 21k", CategoryID: "rings", PrimaryMaterial: domain.MaterialGold, PurityTier: domain.Tier21K, GrossWeightGrams: 10, WastagePercentage: 10, LaborCharge: 500},
		{DisplayName: "Solitaire ring 18k", CategoryID: "rings", PrimaryMaterial: domain.MaterialGold, PurityTier: domain.Tier18K, GrossWeightGrams: 4.2, HasGemstones: true, GemstoneWeightGrams: 0.4, WastagePercentage: 12, LaborCharge: 650, HasDiamonds: true, DiamondCharge: 4200},
		{DisplayName: "Rope chain 22k", CategoryID: "chains", PrimaryMaterial: domain.MaterialGold, PurityTier: domain.Tier22K, GrossWeightGrams: 18.5, WastagePercentage: 8, LaborCharge: 900},
		{DisplayName: "Anklet pair", CategoryID: "anklets", PrimaryMaterial: domain.MaterialSilver, GrossWeightGrams: 42, WastagePercentage: 10, LaborCharge: 120},
		{DisplayName: "10g coin 24k", CategoryID: domain.CategoryBullionCoin, PrimaryMaterial: domain.MaterialGold, PurityTier: domain.Tier24K, GrossWeightGrams: 10, WastagePercentage: 3, LaborCharge: 150},
	}
	for _, item := range seed {
		prefix := xid.CategoryPrefix(item.CategoryID)
		counter := xid.SKUCounter(prefix)
		s.counters[counter]++
		item.SKU = xid.Sequence(prefix, s.counters[counter])
		s.inventory[item.SKU] = item
	}
	return s
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		s:     s,
		reads: make(map[string]uint64),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

// Snapshot helpers used by tests and seeding checks. They bypass transactions.

func (s *Store) InventorySKUs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.inventory))
	for sku := range s.inventory {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}

func (s *Store) PostingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.postings)
}

func (s *Store) InvoiceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}

func (s *Store) SoldCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sold)
}

func (s *Store) CounterValue(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[name]
}
