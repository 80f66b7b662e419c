package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"karatpos/internal/domain"
	"karatpos/internal/store"
	"karatpos/internal/xid"
)

// AddInventoryItem stores a new piece under the next SKU for its category.
// Any SKU on the request is ignored.
func (s *Service) AddInventoryItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	item.DisplayName = strings.TrimSpace(item.DisplayName)
	item.CategoryID = strings.TrimSpace(item.CategoryID)
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}
	prefix := xid.CategoryPrefix(item.CategoryID)
	counterName := xid.SKUCounter(prefix)

	var created domain.Item
	err := s.run(ctx, "add inventory item", func(ctx context.Context, tx store.Tx) error {
		counter, err := readCounter(ctx, tx, counterName)
		if err != nil {
			return err
		}

		// Skip numbers already taken by records loaded outside the counter.
		next := counter.LastValue
		for {
			next++
			_, err := tx.GetInventoryItem(ctx, xid.Sequence(prefix, next))
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
		}

		created = item.Clone()
		created.SKU = xid.Sequence(prefix, next)
		if err := tx.PutCounter(ctx, domain.SequenceCounter{Name: counterName, LastValue: next}); err != nil {
			return err
		}
		return tx.PutInventoryItem(ctx, created)
	})
	if err != nil {
		return domain.Item{}, err
	}
	return created, nil
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	err := s.run(ctx, "list inventory", func(ctx context.Context, tx store.Tx) error {
		var err error
		items, err = tx.ListInventory(ctx)
		return err
	})
	return items, err
}

func (s *Service) GetInventoryItem(ctx context.Context, sku string) (domain.Item, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	var item domain.Item
	err := s.run(ctx, "get inventory item", func(ctx context.Context, tx store.Tx) error {
		var err error
		item, err = tx.GetInventoryItem(ctx, sku)
		return err
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("inventory item %s: %w", sku, err)
	}
	return item, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.Invalid("name", "is required")
	}

	customer := domain.Customer{
		ID:        xid.New(xid.PrefixCustomer),
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now(),
	}
	err := s.run(ctx, "create customer", func(ctx context.Context, tx store.Tx) error {
		return tx.PutCustomer(ctx, customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var customer domain.Customer
	err := s.run(ctx, "get customer", func(ctx context.Context, tx store.Tx) error {
		var err error
		customer, err = tx.GetCustomer(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", id, err)
	}
	return customer, nil
}

// resolveCustomer reads the named customer, or synthesizes a new record from
// the given name. With neither, the sale is booked to the walk-in entity.
// The returned flag is true when the record must be written.
func resolveCustomer(ctx context.Context, tx store.Reader, info domain.CustomerInfo, now time.Time) (domain.Customer, bool, error) {
	if info.CustomerID != "" {
		customer, err := tx.GetCustomer(ctx, info.CustomerID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Customer{}, false, domain.Invalid("customer.customer_id", "unknown customer %q", info.CustomerID)
		}
		return customer, false, err
	}
	if info.Name != "" {
		return domain.Customer{
			ID:        xid.New(xid.PrefixCustomer),
			Name:      info.Name,
			Phone:     info.Phone,
			CreatedAt: now,
		}, true, nil
	}
	return domain.Customer{Name: domain.WalkInName}, false, nil
}

func normalizeCustomer(info domain.CustomerInfo) domain.CustomerInfo {
	return domain.CustomerInfo{
		CustomerID: strings.TrimSpace(info.CustomerID),
		Name:       strings.TrimSpace(info.Name),
		Phone:      strings.TrimSpace(info.Phone),
	}
}
