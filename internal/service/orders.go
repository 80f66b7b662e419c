package service

import (
	"context"
	"fmt"
	"strings"

	"karatpos/internal/domain"
	"karatpos/internal/quote"
	"karatpos/internal/store"
	"karatpos/internal/xid"
)

// CreateOrder books a custom order against the rates in force now. The rate
// table is frozen on the order and used again at finalization.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if len(req.Lines) == 0 {
		return domain.Order{}, domain.Invalid("lines", "order has no lines")
	}
	for i, line := range req.Lines {
		if err := line.Validate(); err != nil {
			return domain.Order{}, fmt.Errorf("lines[%d]: %w", i, err)
		}
	}
	for _, o := range req.RateOverrides {
		if err := o.Validate(); err != nil {
			return domain.Order{}, fmt.Errorf("rate_overrides: %w", err)
		}
	}
	if err := domain.NonNegative("advance_cash", req.AdvanceCash); err != nil {
		return domain.Order{}, err
	}
	if err := domain.NonNegative("advance_material_value", req.AdvanceMaterialValue); err != nil {
		return domain.Order{}, err
	}
	customerInfo := normalizeCustomer(req.Customer)

	var created domain.Order
	err := s.run(ctx, "create order", func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		settings, err := readSettings(ctx, tx)
		if err != nil {
			return err
		}
		counter, err := readCounter(ctx, tx, domain.CounterOrder)
		if err != nil {
			return err
		}
		customer, isNew, err := resolveCustomer(ctx, tx, customerInfo, now)
		if err != nil {
			return err
		}

		snapshot := settings.Rates.WithOverrides(req.RateOverrides)
		if err := quote.CheckRates(req.Lines, snapshot); err != nil {
			return err
		}
		_, estimate, err := s.quotes.PriceCart(req.Lines, snapshot)
		if err != nil {
			return err
		}

		next := counter.LastValue + 1
		order := domain.Order{
			ID:                   xid.Sequence(domain.OrderPrefix, next),
			Status:               domain.OrderPending,
			CustomerID:           customer.ID,
			CustomerName:         customer.Name,
			CustomerPhone:        customer.Phone,
			AdvanceCash:          req.AdvanceCash,
			AdvanceMaterialValue: req.AdvanceMaterialValue,
			RateSnapshot:         snapshot,
			EstimatedTotal:       estimate,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		order.Lines = make([]domain.Item, len(req.Lines))
		for i, line := range req.Lines {
			order.Lines[i] = line.Clone()
		}

		if isNew {
			if err := tx.PutCustomer(ctx, customer); err != nil {
				return err
			}
		}
		if err := tx.PutCounter(ctx, domain.SequenceCounter{Name: domain.CounterOrder, LastValue: next}); err != nil {
			return err
		}
		if err := tx.PutOrder(ctx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return created, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := s.run(ctx, "get order", func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
	}
	return order, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id string, req domain.UpdateOrderStatusRequest) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if !req.Status.Valid() {
		return domain.Order{}, domain.Invalid("status", "unknown status %q", req.Status)
	}

	var updated domain.Order
	err := s.run(ctx, "update order status", func(ctx context.Context, tx store.Tx) error {
		order, err := tx.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("order %s: %w", id, err)
		}
		if !order.Status.CanTransitionTo(req.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, req.Status)
		}
		order.Status = req.Status
		order.UpdatedAt = s.now()
		if err := tx.PutOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// FinalizeOrder reprices each order line at its final measurements against
// the order's frozen rates and issues the invoice. The advance is seeded as
// the first payment; the discount is applied once, in GrandTotal. Order
// pieces were never inventory, so no inventory or sold-archive record moves.
func (s *Service) FinalizeOrder(ctx context.Context, id string, req domain.FinalizeOrderRequest) (domain.Invoice, error) {
	id = strings.TrimSpace(id)
	if err := domain.NonNegative("extra_discount", req.ExtraDiscount); err != nil {
		return domain.Invoice{}, err
	}
	for i, m := range req.Measurements {
		if err := m.Validate(); err != nil {
			return domain.Invoice{}, fmt.Errorf("measurements[%d]: %w", i, err)
		}
	}

	var invoice domain.Invoice
	err := s.run(ctx, "finalize order", func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		order, err := tx.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("order %s: %w", id, err)
		}
		if !order.Status.Open() {
			return fmt.Errorf("%w: %s is %s", ErrOrderNotFinalizable, order.ID, order.Status)
		}
		if len(req.Measurements) != len(order.Lines) {
			return domain.Invalid("measurements", "got %d, order has %d lines", len(req.Measurements), len(order.Lines))
		}
		counter, err := readCounter(ctx, tx, domain.CounterInvoice)
		if err != nil {
			return err
		}

		items := make([]domain.Item, len(order.Lines))
		for i, line := range order.Lines {
			items[i] = req.Measurements[i].ApplyTo(line)
		}
		if err := quote.CheckRates(items, order.RateSnapshot); err != nil {
			return err
		}
		lines, subtotal, err := s.quotes.PriceCart(items, order.RateSnapshot)
		if err != nil {
			return err
		}
		if err := quote.CheckDiscount(req.ExtraDiscount, subtotal); err != nil {
			return err
		}

		next := counter.LastValue + 1
		customer := domain.Customer{ID: order.CustomerID, Name: order.CustomerName, Phone: order.CustomerPhone}
		inv := newInvoice(xid.Sequence(domain.InvoicePrefix, next), customer, lines, subtotal, req.ExtraDiscount, order.RateSnapshot, now)
		inv.SourceOrderID = order.ID
		if advance := order.Advance(); advance.IsPositive() {
			inv.PaymentHistory = append(inv.PaymentHistory, domain.Payment{
				Amount:    advance,
				Timestamp: now,
				Note:      "Advance on " + order.ID,
			})
			inv.Recompute()
		}

		order.Status = domain.OrderCompleted
		order.InvoiceID = inv.ID
		order.UpdatedAt = now

		if err := tx.PutCounter(ctx, domain.SequenceCounter{Name: domain.CounterInvoice, LastValue: next}); err != nil {
			return err
		}
		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		posting := invoicePosting(inv, "Order "+order.ID+" finalized as "+inv.ID, inv.GrandTotal, inv.AmountPaid, now)
		if err := tx.AppendPosting(ctx, posting); err != nil {
			return err
		}
		if err := tx.PutOrder(ctx, order); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}
