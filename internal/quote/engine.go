// Package quote runs the local price pass over a cart: the figures shown at
// the counter before any transaction is opened, and the same per-line pricing
// the coordinators repeat inside their transactions.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"karatpos/internal/cache"
	"karatpos/internal/domain"
	"karatpos/internal/pricing"
)

// RateLoader reads the authoritative rate table, typically from the store.
type RateLoader func(ctx context.Context) (domain.RateTable, error)

type Engine struct {
	cache    cache.RateCache
	cacheTTL time.Duration
	strict   bool
}

// NewEngine builds an engine. With strict set, a computation fault on any line
// fails the whole cart; otherwise the line is priced at zero and logged.
func NewEngine(rateCache cache.RateCache, cacheTTL time.Duration, strict bool) *Engine {
	if rateCache == nil {
		rateCache = cache.NoopRateCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Engine{
		cache:    rateCache,
		cacheTTL: cacheTTL,
		strict:   strict,
	}
}

func (e *Engine) Strict() bool {
	return e.strict
}

// Rates returns the cached rate table, loading and caching it on a miss.
// Cache failures are logged and fall through to load.
func (e *Engine) Rates(ctx context.Context, load RateLoader) (domain.RateTable, error) {
	cached, ok, err := e.cache.GetRates(ctx)
	if err != nil {
		log.Printf("[quote] WARN: rate cache read failed: %v", err)
	}
	if err == nil && ok {
		return *cached, nil
	}

	rates, err := load(ctx)
	if err != nil {
		return domain.RateTable{}, err
	}
	if err := e.cache.SetRates(ctx, &rates, e.cacheTTL); err != nil {
		log.Printf("[quote] WARN: rate cache write failed: %v", err)
	}
	return rates, nil
}

func (e *Engine) Invalidate(ctx context.Context) {
	if err := e.cache.InvalidateRates(ctx); err != nil {
		log.Printf("[quote] WARN: rate cache invalidation failed: %v", err)
	}
}

// Quote validates and prices a cart against rates with the request's
// overrides applied.
func (e *Engine) Quote(rates domain.RateTable, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	if len(req.Cart) == 0 {
		return domain.QuoteResponse{}, domain.Invalid("cart", "cart is empty")
	}
	for i, item := range req.Cart {
		if err := item.Validate(); err != nil {
			return domain.QuoteResponse{}, fmt.Errorf("cart[%d]: %w", i, err)
		}
	}
	for _, o := range req.RateOverrides {
		if err := o.Validate(); err != nil {
			return domain.QuoteResponse{}, fmt.Errorf("rate_overrides: %w", err)
		}
	}
	if err := domain.NonNegative("discount", req.Discount); err != nil {
		return domain.QuoteResponse{}, err
	}

	resolved := rates.WithOverrides(req.RateOverrides)
	if err := CheckRates(req.Cart, resolved); err != nil {
		return domain.QuoteResponse{}, err
	}

	lines, subtotal, err := e.PriceCart(req.Cart, resolved)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	if err := CheckDiscount(req.Discount, subtotal); err != nil {
		return domain.QuoteResponse{}, err
	}

	resp := domain.QuoteResponse{
		Lines:      make([]domain.QuoteLine, 0, len(lines)),
		Subtotal:   subtotal,
		Discount:   req.Discount,
		GrandTotal: subtotal.Sub(req.Discount),
		Rates:      resolved,
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, domain.QuoteLine{SKU: line.Item.SKU, Cost: line.Cost})
	}
	return resp, nil
}

// PriceCart prices every item as one invoice line and sums the subtotal.
func (e *Engine) PriceCart(items []domain.Item, rates domain.RateTable) ([]domain.InvoiceLine, decimal.Decimal, error) {
	lines := make([]domain.InvoiceLine, 0, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		cost, err := pricing.Price(item, rates)
		if err != nil {
			if !errors.Is(err, pricing.ErrComputationFault) || e.strict {
				return nil, decimal.Zero, fmt.Errorf("line %d (%s): %w", i, item.SKU, err)
			}
			log.Printf("[quote] WARN: computation fault on line %d (%s), priced at zero", i, item.SKU)
		}
		lines = append(lines, domain.InvoiceLine{Item: item.Clone(), Cost: cost, Quantity: 1})
		subtotal = subtotal.Add(cost.TotalPrice)
	}
	return lines, subtotal, nil
}

// CheckRates requires a positive rate for every metal a cart line is priced by.
// Manually priced lines need no rate.
func CheckRates(items []domain.Item, rates domain.RateTable) error {
	for _, item := range items {
		if item.ManuallyPriced() {
			continue
		}
		if rates.RateFor(item.PrimaryMaterial, item.PurityTier) <= 0 {
			return domain.Invalid("rates", "no positive rate for %s", rateLabel(item.PrimaryMaterial, item.PurityTier))
		}
		if item.HasSecondaryMetal() && rates.RateFor(item.SecondaryMaterial, item.SecondaryPurityTier) <= 0 {
			return domain.Invalid("rates", "no positive rate for %s", rateLabel(item.SecondaryMaterial, item.SecondaryPurityTier))
		}
	}
	return nil
}

func CheckDiscount(discount, subtotal decimal.Decimal) error {
	if discount.IsNegative() {
		return domain.Invalid("discount", "must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		return domain.Invalid("discount", "%s exceeds subtotal %s", discount.StringFixed(2), subtotal.StringFixed(2))
	}
	return nil
}

func rateLabel(m domain.Material, tier domain.PurityTier) string {
	if m.Tiered() {
		return fmt.Sprintf("%s %s", m, tier)
	}
	return string(m)
}
