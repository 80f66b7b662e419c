// Package pricing turns item attributes and a rate snapshot into a cost
// breakdown. It performs no I/O and returns the same result for the same input.
package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"karatpos/internal/domain"
)

// ErrComputationFault is returned when an intermediate value is NaN or infinite.
var ErrComputationFault = errors.New("pricing: non-finite result")

// Price computes the breakdown for one item. On a computation fault the
// breakdown is all zero and ErrComputationFault is returned.
func Price(item domain.Item, rates domain.RateTable) (domain.CostBreakdown, error) {
	if item.ManuallyPriced() {
		fixed := item.ManualPriceOverride.FixedPrice
		if !finite(fixed) {
			return zero(), ErrComputationFault
		}
		out := zero()
		out.TotalPrice = money(fixed)
		return out, nil
	}

	netPrimary := math.Max(0, item.GrossWeightGrams-item.GemstoneWeightGrams)
	primaryCost := netPrimary * rates.RateFor(item.PrimaryMaterial, item.PurityTier)

	secondaryCost := 0.0
	if item.HasSecondaryMetal() {
		secondaryCost = item.SecondaryWeightGrams * rates.RateFor(item.SecondaryMaterial, item.SecondaryPurityTier)
	}
	metal := primaryCost + secondaryCost

	wastagePct := item.WastagePercentage
	labor := item.LaborCharge
	diamond := item.DiamondCharge
	gemstone := item.GemstoneCharge
	misc := item.MiscCharge

	if item.IsBullionCoin() && item.PrimaryMaterial.Tiered() {
		wastagePct, labor, diamond, gemstone, misc = 0, 0, 0, 0, 0
	}
	if !item.PrimaryMaterial.CarriesWastage() {
		wastagePct = 0
	}
	wastage := metal * wastagePct / 100
	if !item.HasDiamonds {
		diamond = 0
	}

	for _, v := range []float64{netPrimary, primaryCost, secondaryCost, metal, wastage, labor, diamond, gemstone, misc} {
		if !finite(v) {
			return zero(), ErrComputationFault
		}
	}
	if total := metal + wastage + labor + diamond + gemstone + misc; !finite(total) {
		return zero(), ErrComputationFault
	}

	out := domain.CostBreakdown{
		MetalCost:      money(metal),
		WastageCost:    money(wastage),
		LaborCharge:    money(labor),
		DiamondCharge:  money(diamond),
		GemstoneCharge: money(gemstone),
		MiscCharge:     money(misc),
	}
	out.TotalPrice = out.MetalCost.
		Add(out.WastageCost).
		Add(out.LaborCharge).
		Add(out.DiamondCharge).
		Add(out.GemstoneCharge).
		Add(out.MiscCharge)
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// money rounds to two decimal places so line totals add up exactly on the invoice.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func zero() domain.CostBreakdown {
	return domain.CostBreakdown{
		MetalCost:      decimal.Zero,
		WastageCost:    decimal.Zero,
		LaborCharge:    decimal.Zero,
		DiamondCharge:  decimal.Zero,
		GemstoneCharge: decimal.Zero,
		MiscCharge:     decimal.Zero,
		TotalPrice:     decimal.Zero,
	}
}
