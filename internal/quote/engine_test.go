package quote

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karatpos/internal/domain"
	"karatpos/internal/pricing"
)

type countingCache struct {
	rates   *domain.RateTable
	sets    int
	cleared int
	failGet bool
}

func (c *countingCache) GetRates(_ context.Context) (*domain.RateTable, bool, error) {
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	if c.rates == nil {
		return nil, false, nil
	}
	out := c.rates.Clone()
	return &out, true, nil
}

func (c *countingCache) SetRates(_ context.Context, rates *domain.RateTable, _ time.Duration) error {
	out := rates.Clone()
	c.rates = &out
	c.sets++
	return nil
}

func (c *countingCache) InvalidateRates(_ context.Context) error {
	c.rates = nil
	c.cleared++
	return nil
}

func shopRates() domain.RateTable {
	return domain.RateTable{Entries: []domain.RateEntry{
		{Material: domain.MaterialGold, PurityTier: domain.Tier21K, UnitPricePerGram: 200},
		{Material: domain.MaterialGold, PurityTier: domain.Tier22K, UnitPricePerGram: 210},
		{Material: domain.MaterialSilver, UnitPricePerGram: 3},
	}}
}

func ring() domain.Item {
	return domain.Item{
		SKU:               "RIN-000001",
		DisplayName:       "Plain band",
		CategoryID:        "ring",
		PrimaryMaterial:   domain.MaterialGold,
		PurityTier:        domain.Tier21K,
		GrossWeightGrams:  10,
		WastagePercentage: 10,
		LaborCharge:       500,
	}
}

func TestRatesLoadsOnceAndCaches(t *testing.T) {
	c := &countingCache{}
	engine := NewEngine(c, time.Minute, true)
	loads := 0
	load := func(context.Context) (domain.RateTable, error) {
		loads++
		return shopRates(), nil
	}

	first, err := engine.Rates(context.Background(), load)
	require.NoError(t, err)
	second, err := engine.Rates(context.Background(), load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, c.sets)
	assert.Equal(t, first.Entries, second.Entries)

	engine.Invalidate(context.Background())
	_, err = engine.Rates(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, 1, c.cleared)
}

func TestRatesFallsThroughOnCacheError(t *testing.T) {
	engine := NewEngine(&countingCache{failGet: true}, time.Minute, true)
	rates, err := engine.Rates(context.Background(), func(context.Context) (domain.RateTable, error) {
		return shopRates(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, rates.RateFor(domain.MaterialGold, domain.Tier21K))
}

func TestQuoteTotals(t *testing.T) {
	engine := NewEngine(nil, 0, true)
	resp, err := engine.Quote(shopRates(), domain.QuoteRequest{
		Cart:     []domain.Item{ring()},
		Discount: decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "RIN-000001", resp.Lines[0].SKU)
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(2700)), resp.Subtotal.String())
	assert.True(t, resp.GrandTotal.Equal(decimal.NewFromInt(2500)), resp.GrandTotal.String())
}

func TestQuoteAppliesOverrides(t *testing.T) {
	engine := NewEngine(nil, 0, true)
	resp, err := engine.Quote(shopRates(), domain.QuoteRequest{
		Cart: []domain.Item{ring()},
		RateOverrides: []domain.RateEntry{
			{Material: domain.MaterialGold, PurityTier: domain.Tier21K, UnitPricePerGram: 250},
		},
	})
	require.NoError(t, err)
	// 250*10 + 250 wastage + 500 labor
	assert.True(t, resp.GrandTotal.Equal(decimal.NewFromInt(3250)), resp.GrandTotal.String())
	assert.Equal(t, 250.0, resp.Rates.RateFor(domain.MaterialGold, domain.Tier21K))
}

func TestQuoteRejections(t *testing.T) {
	engine := NewEngine(nil, 0, true)

	cases := map[string]domain.QuoteRequest{
		"empty cart": {},
		"negative discount": {
			Cart:     []domain.Item{ring()},
			Discount: decimal.NewFromInt(-1),
		},
		"discount above subtotal": {
			Cart:     []domain.Item{ring()},
			Discount: decimal.NewFromInt(2701),
		},
		"missing rate": {
			Cart: []domain.Item{func() domain.Item {
				item := ring()
				item.PurityTier = domain.Tier18K
				return item
			}()},
		},
		"bad item": {
			Cart: []domain.Item{{DisplayName: "", PrimaryMaterial: domain.MaterialGold}},
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Quote(shopRates(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCheckRatesSkipsManualLines(t *testing.T) {
	item := ring()
	item.PurityTier = domain.Tier18K
	item.ManualPriceOverride = &domain.ManualPriceOverride{Enabled: true, FixedPrice: 999}

	assert.NoError(t, CheckRates([]domain.Item{item}, shopRates()))
}

func TestPriceCartFaultHandling(t *testing.T) {
	faulty := ring()
	faulty.SKU = "RIN-000009"
	rates := domain.RateTable{Entries: []domain.RateEntry{
		{Material: domain.MaterialGold, PurityTier: domain.Tier21K, UnitPricePerGram: math.MaxFloat64},
	}}

	_, _, err := NewEngine(nil, 0, true).PriceCart([]domain.Item{faulty}, rates)
	require.ErrorIs(t, err, pricing.ErrComputationFault)
	assert.Contains(t, err.Error(), "RIN-000009")

	lines, subtotal, err := NewEngine(nil, 0, false).PriceCart([]domain.Item{faulty}, rates)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, subtotal.IsZero())
	assert.True(t, lines[0].Cost.TotalPrice.IsZero())
}
