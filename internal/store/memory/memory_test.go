package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karatpos/internal/domain"
	"karatpos/internal/store"
)

func TestSeededStoreHasRatesAndInventory(t *testing.T) {
	s := NewSeeded()
	assert.Contains(t, s.InventorySKUs(), "RIN-000001")
	assert.Contains(t, s.InventorySKUs(), "BUL-000001")
	assert.Equal(t, int64(2), s.CounterValue("sku:RIN"))

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		settings, err := tx.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, 200.0, settings.Rates.RateFor(domain.MaterialGold, domain.Tier21K))
		return nil
	})
	require.NoError(t, err)
}

func TestReadAfterWriteIsRejected(t *testing.T) {
	s := NewSeeded()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutCounter(ctx, domain.SequenceCounter{Name: "invoice", LastValue: 1}); err != nil {
			return err
		}
		_, err := tx.GetCounter(ctx, "invoice")
		return err
	})
	require.ErrorIs(t, err, store.ErrReadAfterWrite)
	assert.Equal(t, int64(0), s.CounterValue("invoice"), "aborted writes must not apply")
}

func TestFailedBodyDiscardsWrites(t *testing.T) {
	s := NewSeeded()
	boom := errors.New("boom")
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.DeleteInventoryItem(ctx, "RIN-000001"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, s.InventorySKUs(), "RIN-000001")
}

func TestConcurrentWriteToReadKeyConflicts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, outer store.Tx) error {
		if _, err := outer.GetInventoryItem(ctx, "RIN-000001"); err != nil {
			return err
		}
		// another terminal sells the same piece first
		inner := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.GetInventoryItem(ctx, "RIN-000001"); err != nil {
				return err
			}
			return tx.DeleteInventoryItem(ctx, "RIN-000001")
		})
		require.NoError(t, inner)
		return outer.DeleteInventoryItem(ctx, "RIN-000001")
	})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestListQueriesConflictOnCollectionChange(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, outer store.Tx) error {
		postings, err := outer.ListPostingsByInvoice(ctx, "INV-000001")
		if err != nil {
			return err
		}
		require.Empty(t, postings)
		inner := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.AppendPosting(ctx, domain.LedgerPosting{ID: "p1", EntityID: "c1", InvoiceRef: "INV-000001"})
		})
		require.NoError(t, inner)
		return outer.DeleteInvoice(ctx, "INV-000001")
	})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestRunRetriesConflictsUntilCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	policy := store.RetryPolicy{MaxAttempts: 200, InitialInterval: 1, MaxInterval: 2}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Run(ctx, s, policy, func(ctx context.Context, tx store.Tx) error {
				c, err := tx.GetCounter(ctx, "invoice")
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				c.Name = "invoice"
				c.LastValue++
				return tx.PutCounter(ctx, c)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(workers), s.CounterValue("invoice"))
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	inv := domain.Invoice{ID: "INV-000001", Lines: []domain.InvoiceLine{{Item: domain.Item{SKU: "A"}}}}
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutInvoice(ctx, inv)
	}))
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetInvoice(ctx, "INV-000001")
		require.NoError(t, err)
		got.Lines[0].Item.SKU = "mutated"
		return nil
	}))
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetInvoice(ctx, "INV-000001")
		require.NoError(t, err)
		assert.Equal(t, "A", got.Lines[0].Item.SKU)
		return nil
	}))
}
