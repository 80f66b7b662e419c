package cache

import (
	"context"
	"sync"
	"time"

	"karatpos/internal/domain"
)

type RateCache interface {
	GetRates(ctx context.Context) (*domain.RateTable, bool, error)
	SetRates(ctx context.Context, rates *domain.RateTable, ttl time.Duration) error
	InvalidateRates(ctx context.Context) error
}

// CartStore keeps each terminal's in-progress cart between requests.
type CartStore interface {
	GetCart(ctx context.Context, terminalID string) (*domain.Cart, bool, error)
	SaveCart(ctx context.Context, cart domain.Cart, ttl time.Duration) error
	ClearCart(ctx context.Context, terminalID string) error
}

type NoopRateCache struct{}

func (NoopRateCache) GetRates(_ context.Context) (*domain.RateTable, bool, error) {
	return nil, false, nil
}

func (NoopRateCache) SetRates(_ context.Context, _ *domain.RateTable, _ time.Duration) error {
	return nil
}

func (NoopRateCache) InvalidateRates(_ context.Context) error {
	return nil
}

type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string]memoryCart
	now   func() time.Time
}

type memoryCart struct {
	cart      domain.Cart
	expiresAt time.Time
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]memoryCart), now: time.Now}
}

func (m *MemoryCartStore) GetCart(_ context.Context, terminalID string) (*domain.Cart, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.carts[terminalID]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.carts, terminalID)
		return nil, false, nil
	}
	cart := cloneCart(entry.cart)
	return &cart, true, nil
}

func (m *MemoryCartStore) SaveCart(_ context.Context, cart domain.Cart, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryCart{cart: cloneCart(cart)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.carts[cart.TerminalID] = entry
	return nil
}

func (m *MemoryCartStore) ClearCart(_ context.Context, terminalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, terminalID)
	return nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	out := cart
	out.Items = make([]domain.Item, len(cart.Items))
	for i, item := range cart.Items {
		out.Items[i] = item.Clone()
	}
	return out
}
