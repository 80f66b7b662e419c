package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"karatpos/internal/domain"
	"karatpos/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("KARATPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set KARATPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestInventoryMovesToSoldArchiveAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("ITST-%d", stamp)
	invoiceID := fmt.Sprintf("INV-IT-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE sku = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sold_items WHERE sku = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM ledger_postings WHERE invoice_ref = $1`, invoiceID)
	})

	item := domain.Item{SKU: sku, DisplayName: "Integration ring", CategoryID: "rings", PrimaryMaterial: domain.MaterialGold, PurityTier: domain.Tier21K, GrossWeightGrams: 10}
	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutInventoryItem(ctx, item)
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		live, err := tx.GetInventoryItem(ctx, sku)
		if err != nil {
			return err
		}
		inv := domain.Invoice{
			ID: invoiceID, CustomerName: domain.WalkInName,
			Lines:      []domain.InvoiceLine{{Item: live, Quantity: 1}},
			Subtotal:   decimal.NewFromInt(2700),
			Discount:   decimal.Zero,
			GrandTotal: decimal.NewFromInt(2700),
			CreatedAt:  now, UpdatedAt: now,
		}
		inv.Recompute()
		if err := tx.DeleteInventoryItem(ctx, sku); err != nil {
			return err
		}
		if err := tx.PutSoldItem(ctx, domain.SoldItem{Item: live, InvoiceID: invoiceID, SoldAt: now}); err != nil {
			return err
		}
		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.AppendPosting(ctx, domain.LedgerPosting{
			ID: fmt.Sprintf("pst_it_%d", stamp), EntityID: domain.WalkInEntityID, EntityKind: domain.EntityCustomer,
			Timestamp: now, InvoiceRef: invoiceID, CashOwedByEntity: inv.GrandTotal,
			CashOwedToEntity: decimal.Zero, MaterialOwedByEntity: decimal.Zero, MaterialOwedToEntity: decimal.Zero,
		})
	})
	if err != nil {
		t.Fatalf("sale tx: %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetInventoryItem(ctx, sku); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected item removed from inventory, got %v", err)
		}
		inv, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.BalanceDue.Equal(decimal.NewFromInt(2700)) {
			t.Fatalf("expected balance 2700, got %s", inv.BalanceDue)
		}
		postings, err := tx.ListPostingsByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if len(postings) != 1 {
			t.Fatalf("expected 1 posting, got %d", len(postings))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify tx: %v", err)
	}
}

func TestReadAfterWriteRejected(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	name := fmt.Sprintf("it-counter-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sequence_counters WHERE name = $1`, name)
	})

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutCounter(ctx, domain.SequenceCounter{Name: name, LastValue: 1}); err != nil {
			return err
		}
		_, err := tx.GetCounter(ctx, name)
		return err
	})
	if !errors.Is(err, store.ErrReadAfterWrite) {
		t.Fatalf("expected ErrReadAfterWrite, got %v", err)
	}
}
