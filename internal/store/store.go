package store

import (
	"context"
	"errors"

	"karatpos/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a document read by the transaction changed before commit.
	ErrConflict = errors.New("transaction conflict")
	// ErrReadAfterWrite is returned by any read issued after the transaction's first write.
	ErrReadAfterWrite = errors.New("read issued after write")
	ErrPersistence    = errors.New("store unavailable")
)

// Reader holds the transaction's read set. Every read must precede the first write.
type Reader interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	GetCounter(ctx context.Context, name string) (domain.SequenceCounter, error)
	GetInventoryItem(ctx context.Context, sku string) (domain.Item, error)
	ListInventory(ctx context.Context) ([]domain.Item, error)
	GetSoldItem(ctx context.Context, sku string) (domain.SoldItem, error)
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	GetInvoice(ctx context.Context, id string) (domain.Invoice, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListPostingsByEntity(ctx context.Context, entityID string) ([]domain.LedgerPosting, error)
	ListPostingsByInvoice(ctx context.Context, invoiceID string) ([]domain.LedgerPosting, error)
}

type Writer interface {
	PutSettings(ctx context.Context, settings domain.Settings) error
	PutCounter(ctx context.Context, counter domain.SequenceCounter) error
	PutInventoryItem(ctx context.Context, item domain.Item) error
	DeleteInventoryItem(ctx context.Context, sku string) error
	PutSoldItem(ctx context.Context, sold domain.SoldItem) error
	DeleteSoldItem(ctx context.Context, sku string) error
	PutCustomer(ctx context.Context, customer domain.Customer) error
	PutInvoice(ctx context.Context, invoice domain.Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
	AppendPosting(ctx context.Context, posting domain.LedgerPosting) error
	DeletePosting(ctx context.Context, id string) error
	PutOrder(ctx context.Context, order domain.Order) error
}

type Tx interface {
	Reader
	Writer
}

// TxFunc is the body of one business operation. It may run several times
// when conflicts are retried, so it must not have effects outside tx.
type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	// RunInTx runs fn once, committing its writes atomically when fn returns
	// nil and discarding them otherwise.
	RunInTx(ctx context.Context, fn TxFunc) error
	Close() error
}

// Phase tracks the read-then-write ordering of a transaction. Backends embed it.
type Phase struct {
	wrote bool
}

func (p *Phase) BeginRead() error {
	if p.wrote {
		return ErrReadAfterWrite
	}
	return nil
}

func (p *Phase) BeginWrite() {
	p.wrote = true
}

func (p *Phase) Wrote() bool {
	return p.wrote
}
