package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"karatpos/internal/domain"
	"karatpos/internal/quote"
	"karatpos/internal/store"
	"karatpos/internal/xid"
)

func validateCart(cart []domain.Item) error {
	if len(cart) == 0 {
		return domain.Invalid("cart", "cart is empty")
	}
	seen := make(map[string]struct{}, len(cart))
	for i, item := range cart {
		if strings.TrimSpace(item.SKU) == "" {
			return domain.Invalid(fmt.Sprintf("cart[%d].sku", i), "is required")
		}
		if _, dup := seen[item.SKU]; dup {
			return domain.Invalid(fmt.Sprintf("cart[%d].sku", i), "%s appears more than once", item.SKU)
		}
		seen[item.SKU] = struct{}{}
	}
	return nil
}

// CreateInvoice sells the cart: every piece leaves inventory for the sold
// archive, the invoice and its ledger posting are written, and the invoice
// counter advances, all in one transaction. The terminal's cart is cleared
// only after commit.
func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	if err := validateCart(req.Cart); err != nil {
		return domain.Invoice{}, err
	}
	customerInfo := normalizeCustomer(req.Customer)
	replaces := strings.TrimSpace(req.ReplacesInvoiceID)

	// Local price pass on the caller's cart, before any transaction.
	rates, err := s.GetRates(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	if _, err := s.quotes.Quote(rates, domain.QuoteRequest{
		Cart:          req.Cart,
		RateOverrides: req.RateOverrides,
		Discount:      req.Discount,
	}); err != nil {
		return domain.Invoice{}, err
	}

	var invoice domain.Invoice
	err = s.run(ctx, "create invoice", func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		// Read phase.
		settings, err := readSettings(ctx, tx)
		if err != nil {
			return err
		}
		counter, err := readCounter(ctx, tx, domain.CounterInvoice)
		if err != nil {
			return err
		}
		if replaces != "" {
			if err := requireReversed(ctx, tx, replaces); err != nil {
				return err
			}
		}
		records := make([]domain.Item, 0, len(req.Cart))
		items := make([]domain.Item, 0, len(req.Cart))
		fromArchive := make([]bool, 0, len(req.Cart))
		for _, line := range req.Cart {
			live, archived, err := readSellable(ctx, tx, line.SKU, replaces)
			if err != nil {
				return err
			}
			records = append(records, live)
			items = append(items, live.WithCommercialTerms(line))
			fromArchive = append(fromArchive, archived)
		}
		customer, isNew, err := resolveCustomer(ctx, tx, customerInfo, now)
		if err != nil {
			return err
		}

		// Compute phase.
		resolved := settings.Rates.WithOverrides(req.RateOverrides)
		if err := quote.CheckRates(items, resolved); err != nil {
			return err
		}
		lines, subtotal, err := s.quotes.PriceCart(items, resolved)
		if err != nil {
			return err
		}
		if err := quote.CheckDiscount(req.Discount, subtotal); err != nil {
			return err
		}
		next := counter.LastValue + 1
		inv := newInvoice(xid.Sequence(domain.InvoicePrefix, next), customer, lines, subtotal, req.Discount, resolved, now)

		// Write phase.
		if isNew {
			if err := tx.PutCustomer(ctx, customer); err != nil {
				return err
			}
		}
		if err := tx.PutCounter(ctx, domain.SequenceCounter{Name: domain.CounterInvoice, LastValue: next}); err != nil {
			return err
		}
		// The archive keeps the inventory record as it was; the counter
		// terms live only on the invoice line.
		for i, record := range records {
			if !fromArchive[i] {
				if err := tx.DeleteInventoryItem(ctx, record.SKU); err != nil {
					return err
				}
			}
			if err := tx.PutSoldItem(ctx, domain.SoldItem{Item: record, InvoiceID: inv.ID, SoldAt: now}); err != nil {
				return err
			}
		}
		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.AppendPosting(ctx, invoicePosting(inv, "Sale "+inv.ID, inv.GrandTotal, decimal.Zero, now)); err != nil {
			return err
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.clearCart(ctx, strings.TrimSpace(req.TerminalID))
	return invoice, nil
}

// requireReversed fails unless the invoice being replaced is gone. Reading it
// also puts it in the transaction's read set.
func requireReversed(ctx context.Context, tx store.Reader, invoiceID string) error {
	_, err := tx.GetInvoice(ctx, invoiceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	return fmt.Errorf("%w: invoice %s has not been reversed", ErrItemUnavailable, invoiceID)
}

// readSellable returns the inventory record for sku. When the record is gone
// but the piece was held back by reversing replacesInvoiceID, the archived
// record is returned instead and archived is true.
func readSellable(ctx context.Context, tx store.Reader, sku, replacesInvoiceID string) (domain.Item, bool, error) {
	item, err := tx.GetInventoryItem(ctx, sku)
	if err == nil {
		return item, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Item{}, false, err
	}
	if replacesInvoiceID == "" {
		return domain.Item{}, false, fmt.Errorf("%w: %s", ErrItemUnavailable, sku)
	}

	sold, err := tx.GetSoldItem(ctx, sku)
	if errors.Is(err, store.ErrNotFound) || (err == nil && sold.InvoiceID != replacesInvoiceID) {
		return domain.Item{}, false, fmt.Errorf("%w: %s", ErrItemUnavailable, sku)
	}
	if err != nil {
		return domain.Item{}, false, err
	}
	return sold.Item, true, nil
}

func newInvoice(id string, customer domain.Customer, lines []domain.InvoiceLine, subtotal, discount decimal.Decimal, rates domain.RateTable, now time.Time) domain.Invoice {
	inv := domain.Invoice{
		ID:             id,
		CustomerID:     customer.ID,
		CustomerName:   customer.Name,
		CustomerPhone:  customer.Phone,
		Lines:          lines,
		Subtotal:       subtotal,
		Discount:       discount,
		GrandTotal:     subtotal.Sub(discount),
		RateSnapshot:   rates.Clone(),
		PaymentHistory: []domain.Payment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inv.Recompute()
	return inv
}

func invoicePosting(inv domain.Invoice, description string, owedBy, owedTo decimal.Decimal, now time.Time) domain.LedgerPosting {
	return domain.LedgerPosting{
		ID:                   xid.New(xid.PrefixPosting),
		EntityID:             inv.LedgerEntityID(),
		EntityKind:           domain.EntityCustomer,
		Timestamp:            now,
		Description:          description,
		InvoiceRef:           inv.ID,
		CashOwedByEntity:     owedBy,
		CashOwedToEntity:     owedTo,
		MaterialOwedByEntity: decimal.Zero,
		MaterialOwedToEntity: decimal.Zero,
	}
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.run(ctx, "get invoice", func(ctx context.Context, tx store.Tx) error {
		var err error
		invoice, err = tx.GetInvoice(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", id, err)
	}
	return invoice, nil
}

// RecordPayment appends a payment and credits the customer's ledger.
// BalanceDue is not clamped; a negative value is an overpayment.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, req domain.RecordPaymentRequest) (domain.Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if !req.Amount.IsPositive() {
		return domain.Invoice{}, domain.Invalid("amount", "must be positive")
	}

	var updated domain.Invoice
	err := s.run(ctx, "record payment", func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		inv, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", invoiceID, err)
		}

		inv.PaymentHistory = append(inv.PaymentHistory, domain.Payment{
			Amount:    req.Amount,
			Timestamp: now,
			Note:      strings.TrimSpace(req.Note),
		})
		inv.Recompute()
		inv.UpdatedAt = now

		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.AppendPosting(ctx, invoicePosting(inv, "Payment on "+inv.ID, decimal.Zero, req.Amount, now)); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return updated, nil
}

// ReverseSale undoes a sale. A missing invoice is a no-op. With
// keepOutOfInventory the pieces stay in the sold archive so an edited sale
// naming this invoice in ReplacesInvoiceID can take them over.
func (s *Service) ReverseSale(ctx context.Context, invoiceID string, keepOutOfInventory bool) (domain.ReverseSaleResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ReverseSaleResult{}, err
	}
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return domain.ReverseSaleResult{}, domain.Invalid("invoice_id", "is required")
	}

	var result domain.ReverseSaleResult
	err := s.run(ctx, "reverse sale", func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		res := domain.ReverseSaleResult{InvoiceID: invoiceID, RestoredSKUs: []string{}}

		inv, err := tx.GetInvoice(ctx, invoiceID)
		if errors.Is(err, store.ErrNotFound) {
			result = res
			return nil
		}
		if err != nil {
			return err
		}
		postings, err := tx.ListPostingsByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}

		var order *domain.Order
		var restore []domain.Item
		var archived []string
		switch {
		case inv.SourceOrderID != "":
			o, err := tx.GetOrder(ctx, inv.SourceOrderID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err == nil {
				order = &o
			}
		case !keepOutOfInventory:
			for _, line := range inv.Lines {
				sold, err := tx.GetSoldItem(ctx, line.Item.SKU)
				switch {
				case errors.Is(err, store.ErrNotFound):
					// No archive record; a one-off fixed price must not become the default.
					item := line.Item.Clone()
					item.ManualPriceOverride = nil
					restore = append(restore, item)
				case err != nil:
					return err
				case sold.InvoiceID == invoiceID:
					restore = append(restore, sold.Item)
					archived = append(archived, sold.Item.SKU)
				default:
					// Resold under a later invoice.
					log.Printf("[service] WARN: reverse %s skips %s, now sold on %s", invoiceID, line.Item.SKU, sold.InvoiceID)
				}
			}
		}

		for _, item := range restore {
			if err := tx.PutInventoryItem(ctx, item); err != nil {
				return err
			}
			res.RestoredSKUs = append(res.RestoredSKUs, item.SKU)
		}
		for _, sku := range archived {
			if err := tx.DeleteSoldItem(ctx, sku); err != nil {
				return err
			}
		}
		for _, p := range postings {
			if err := tx.DeletePosting(ctx, p.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteInvoice(ctx, invoiceID); err != nil {
			return err
		}
		if order != nil {
			order.Status = domain.OrderInProgress
			order.InvoiceID = ""
			order.UpdatedAt = now
			if err := tx.PutOrder(ctx, *order); err != nil {
				return err
			}
		}

		res.Reversed = true
		res.PostingsRemoved = len(postings)
		result = res
		return nil
	})
	if err != nil {
		return domain.ReverseSaleResult{}, err
	}
	if result.Reversed {
		actor, _ := ActorFromContext(ctx)
		log.Printf("[service] invoice %s reversed by %s (restored=%d postings=%d)", invoiceID, actor.Username, len(result.RestoredSKUs), result.PostingsRemoved)
	}
	return result, nil
}
