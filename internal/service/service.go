package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"karatpos/internal/cache"
	"karatpos/internal/domain"
	"karatpos/internal/quote"
	"karatpos/internal/store"
)

var (
	ErrItemUnavailable     = errors.New("item no longer available")
	ErrOperationFailed     = errors.New("operation failed, please retry")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrOrderNotFinalizable = errors.New("order cannot be finalized")
	ErrAdminRequired       = errors.New("admin role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrAdminRequired
	}
	return nil
}

type Options struct {
	Retry   store.RetryPolicy
	CartTTL time.Duration
}

// Service holds the coordinators. It is built once at startup and shared by
// every request; all state lives behind the injected store and cart store.
type Service struct {
	store   store.Store
	quotes  *quote.Engine
	carts   cache.CartStore
	retry   store.RetryPolicy
	cartTTL time.Duration
	now     func() time.Time
}

func New(st store.Store, quotes *quote.Engine, carts cache.CartStore, opts Options) *Service {
	if quotes == nil {
		quotes = quote.NewEngine(nil, 0, true)
	}
	if carts == nil {
		carts = cache.NewMemoryCartStore()
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = store.DefaultRetryPolicy(0)
	}
	if opts.CartTTL <= 0 {
		opts.CartTTL = 12 * time.Hour
	}

	return &Service{
		store:   st,
		quotes:  quotes,
		carts:   carts,
		retry:   opts.Retry,
		cartTTL: opts.CartTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// run executes fn with conflict retry. Exhausted retries surface as
// ErrOperationFailed so callers see a single retryable failure.
func (s *Service) run(ctx context.Context, op string, fn store.TxFunc) error {
	err := store.Run(ctx, s.store, s.retry, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		log.Printf("[service] WARN: %s gave up after %d attempts: %v", op, s.retry.MaxAttempts, err)
		return fmt.Errorf("%w: %w", ErrOperationFailed, err)
	case errors.Is(err, store.ErrPersistence):
		log.Printf("[service] ERROR: %s: %v", op, err)
	}
	return err
}

func readSettings(ctx context.Context, tx store.Reader) (domain.Settings, error) {
	settings, err := tx.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Settings{Rates: domain.RateTable{Entries: []domain.RateEntry{}}}, nil
	}
	return settings, err
}

func readCounter(ctx context.Context, tx store.Reader, name string) (domain.SequenceCounter, error) {
	counter, err := tx.GetCounter(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SequenceCounter{Name: name}, nil
	}
	return counter, err
}

func (s *Service) loadRates(ctx context.Context) (domain.RateTable, error) {
	var rates domain.RateTable
	err := s.run(ctx, "load rates", func(ctx context.Context, tx store.Tx) error {
		settings, err := readSettings(ctx, tx)
		if err != nil {
			return err
		}
		rates = settings.Rates
		return nil
	})
	return rates, err
}

func (s *Service) GetRates(ctx context.Context) (domain.RateTable, error) {
	return s.quotes.Rates(ctx, s.loadRates)
}

// UpdateRates sets each given (material, tier) rate independently. Pairs not
// named keep their current value.
func (s *Service) UpdateRates(ctx context.Context, req domain.UpdateRatesRequest) (domain.RateTable, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.RateTable{}, err
	}
	if len(req.Entries) == 0 {
		return domain.RateTable{}, domain.Invalid("entries", "at least one rate is required")
	}
	for i, e := range req.Entries {
		if err := e.Validate(); err != nil {
			return domain.RateTable{}, fmt.Errorf("entries[%d]: %w", i, err)
		}
	}

	var updated domain.RateTable
	err := s.run(ctx, "update rates", func(ctx context.Context, tx store.Tx) error {
		settings, err := readSettings(ctx, tx)
		if err != nil {
			return err
		}
		updated = settings.Rates.WithOverrides(req.Entries)
		updated.UpdatedAt = s.now()
		return tx.PutSettings(ctx, domain.Settings{Rates: updated})
	})
	if err != nil {
		return domain.RateTable{}, err
	}

	s.quotes.Invalidate(ctx)
	if actor, ok := ActorFromContext(ctx); ok {
		log.Printf("[service] rates updated by %s (%d entries)", actor.Username, len(req.Entries))
	}
	return updated, nil
}

// Quote prices a cart against current rates without opening a write transaction.
func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	rates, err := s.GetRates(ctx)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	return s.quotes.Quote(rates, req)
}

func (s *Service) SaveCart(ctx context.Context, terminalID string, req domain.SaveCartRequest) (domain.Cart, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return domain.Cart{}, domain.Invalid("terminal_id", "is required")
	}
	for i, item := range req.Items {
		if err := item.Validate(); err != nil {
			return domain.Cart{}, fmt.Errorf("items[%d]: %w", i, err)
		}
	}

	cart := domain.Cart{TerminalID: terminalID, Items: req.Items, UpdatedAt: s.now()}
	if cart.Items == nil {
		cart.Items = []domain.Item{}
	}
	if err := s.carts.SaveCart(ctx, cart, s.cartTTL); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// GetCart returns the terminal's saved cart, or an empty one.
func (s *Service) GetCart(ctx context.Context, terminalID string) (domain.Cart, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return domain.Cart{}, domain.Invalid("terminal_id", "is required")
	}
	cart, ok, err := s.carts.GetCart(ctx, terminalID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !ok {
		return domain.Cart{TerminalID: terminalID, Items: []domain.Item{}}, nil
	}
	return *cart, nil
}

func (s *Service) clearCart(ctx context.Context, terminalID string) {
	if terminalID == "" {
		return
	}
	if err := s.carts.ClearCart(ctx, terminalID); err != nil {
		log.Printf("[service] WARN: failed to clear cart terminal=%s: %v", terminalID, err)
	}
}
