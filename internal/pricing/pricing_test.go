package pricing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karatpos/internal/domain"
)

func testRates() domain.RateTable {
	return domain.RateTable{Entries: []domain.RateEntry{
		{Material: domain.MaterialGold, PurityTier: domain.Tier18K, UnitPricePerGram: 170},
		{Material: domain.MaterialGold, PurityTier: domain.Tier21K, UnitPricePerGram: 200},
		{Material: domain.MaterialGold, PurityTier: domain.Tier22K, UnitPricePerGram: 210},
		{Material: domain.MaterialGold, PurityTier: domain.Tier24K, UnitPricePerGram: 230},
		{Material: domain.MaterialSilver, UnitPricePerGram: 3},
		{Material: domain.MaterialPlatinum, UnitPricePerGram: 95},
	}}
}

func ringItem() domain.Item {
	return domain.Item{
		SKU:               "RIN-000001",
		DisplayName:       "Plain band",
		CategoryID:        "rings",
		PrimaryMaterial:   domain.MaterialGold,
		PurityTier:        domain.Tier21K,
		GrossWeightGrams:  10,
		WastagePercentage: 10,
		LaborCharge:       500,
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestPriceBasicGoldItem(t *testing.T) {
	got, err := Price(ringItem(), testRates())
	require.NoError(t, err)

	assert.True(t, got.MetalCost.Equal(dec(t, "2000")), "metal %s", got.MetalCost)
	assert.True(t, got.WastageCost.Equal(dec(t, "200")), "wastage %s", got.WastageCost)
	assert.True(t, got.LaborCharge.Equal(dec(t, "500")))
	assert.True(t, got.TotalPrice.Equal(dec(t, "2700")), "total %s", got.TotalPrice)
}

func TestPriceTiersAreIndependent(t *testing.T) {
	item := ringItem()
	item.WastagePercentage = 0
	item.LaborCharge = 0

	item.PurityTier = domain.Tier22K
	got22, err := Price(item, testRates())
	require.NoError(t, err)
	item.PurityTier = domain.Tier24K
	got24, err := Price(item, testRates())
	require.NoError(t, err)

	assert.True(t, got22.TotalPrice.Equal(dec(t, "2100")))
	assert.True(t, got24.TotalPrice.Equal(dec(t, "2300")))
}

func TestPriceManualOverrideWins(t *testing.T) {
	item := ringItem()
	item.HasDiamonds = true
	item.DiamondCharge = 9000
	item.ManualPriceOverride = &domain.ManualPriceOverride{Enabled: true, FixedPrice: 1234.5}

	got, err := Price(item, testRates())
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(dec(t, "1234.5")))
	assert.True(t, got.MetalCost.IsZero())
	assert.True(t, got.WastageCost.IsZero())
	assert.True(t, got.DiamondCharge.IsZero())
}

func TestPriceDisabledOverrideIgnored(t *testing.T) {
	item := ringItem()
	item.ManualPriceOverride = &domain.ManualPriceOverride{Enabled: false, FixedPrice: 1}

	got, err := Price(item, testRates())
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(dec(t, "2700")))
}

func TestPriceBullionCoinDropsMarkup(t *testing.T) {
	item := ringItem()
	item.CategoryID = domain.CategoryBullionCoin
	item.PurityTier = domain.Tier24K
	item.HasDiamonds = true
	item.DiamondCharge = 100
	item.GemstoneCharge = 50
	item.MiscCharge = 25

	got, err := Price(item, testRates())
	require.NoError(t, err)
	assert.True(t, got.WastageCost.IsZero())
	assert.True(t, got.LaborCharge.IsZero())
	assert.True(t, got.DiamondCharge.IsZero())
	assert.True(t, got.GemstoneCharge.IsZero())
	assert.True(t, got.MiscCharge.IsZero())
	assert.True(t, got.TotalPrice.Equal(dec(t, "2300")))
}

func TestPriceSilverCarriesNoWastage(t *testing.T) {
	item := domain.Item{
		DisplayName:       "Anklet",
		CategoryID:        "anklets",
		PrimaryMaterial:   domain.MaterialSilver,
		GrossWeightGrams:  40,
		WastagePercentage: 12,
		LaborCharge:       80,
	}

	got, err := Price(item, testRates())
	require.NoError(t, err)
	assert.True(t, got.MetalCost.Equal(dec(t, "120")))
	assert.True(t, got.WastageCost.IsZero())
	assert.True(t, got.TotalPrice.Equal(dec(t, "200")))
}

func TestPriceSecondaryMetalAndStones(t *testing.T) {
	item := ringItem()
	item.GemstoneWeightGrams = 2
	item.HasGemstones = true
	item.GemstoneCharge = 300
	item.SecondaryMaterial = domain.MaterialPlatinum
	item.SecondaryWeightGrams = 1
	item.WastagePercentage = 5
	item.HasDiamonds = false
	item.DiamondCharge = 700

	got, err := Price(item, testRates())
	require.NoError(t, err)
	// (10-2)*200 + 1*95 = 1695; wastage 5% = 84.75
	assert.True(t, got.MetalCost.Equal(dec(t, "1695")))
	assert.True(t, got.WastageCost.Equal(dec(t, "84.75")))
	assert.True(t, got.DiamondCharge.IsZero(), "diamond charge only applies with diamonds")
	assert.True(t, got.TotalPrice.Equal(dec(t, "2579.75")))
}

func TestPriceUnconfiguredRateIsZero(t *testing.T) {
	item := ringItem()
	got, err := Price(item, domain.RateTable{})
	require.NoError(t, err)
	assert.True(t, got.MetalCost.IsZero())
	assert.True(t, got.TotalPrice.Equal(dec(t, "500")))
}

func TestPriceNonFiniteIsComputationFault(t *testing.T) {
	rates := domain.RateTable{Entries: []domain.RateEntry{
		{Material: domain.MaterialGold, PurityTier: domain.Tier21K, UnitPricePerGram: math.MaxFloat64},
	}}

	got, err := Price(ringItem(), rates)
	require.ErrorIs(t, err, ErrComputationFault)
	assert.True(t, got.TotalPrice.IsZero())
	assert.True(t, got.MetalCost.IsZero())
}

func TestPriceIsDeterministicAndNonNegative(t *testing.T) {
	items := []domain.Item{ringItem()}
	coin := ringItem()
	coin.CategoryID = domain.CategoryBullionCoin
	items = append(items, coin)

	for _, item := range items {
		first, err := Price(item, testRates())
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Price(item, testRates())
			require.NoError(t, err)
			assert.True(t, first.TotalPrice.Equal(again.TotalPrice))
		}
		assert.False(t, first.TotalPrice.IsNegative())
	}
}
