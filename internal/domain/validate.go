package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("validation failed")

// ValidationError is raised before any transaction is opened.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.DisplayName) == "" {
		return Invalid("display_name", "is required")
	}
	if !i.PrimaryMaterial.Valid() {
		return Invalid("primary_material", "unknown material %q", i.PrimaryMaterial)
	}
	if i.PrimaryMaterial.Tiered() && !i.PurityTier.Valid() {
		return Invalid("purity_tier", "unknown purity tier %q for %s", i.PurityTier, i.PrimaryMaterial)
	}
	if i.HasSecondaryMetal() {
		if !i.SecondaryMaterial.Valid() {
			return Invalid("secondary_material", "unknown material %q", i.SecondaryMaterial)
		}
		if i.SecondaryMaterial.Tiered() && !i.SecondaryPurityTier.Valid() {
			return Invalid("secondary_purity_tier", "unknown purity tier %q for %s", i.SecondaryPurityTier, i.SecondaryMaterial)
		}
	}
	amounts := []struct {
		field string
		value float64
	}{
		{"gross_weight_grams", i.GrossWeightGrams},
		{"secondary_weight_grams", i.SecondaryWeightGrams},
		{"gemstone_weight_grams", i.GemstoneWeightGrams},
		{"wastage_percentage", i.WastagePercentage},
		{"labor_charge", i.LaborCharge},
		{"diamond_charge", i.DiamondCharge},
		{"gemstone_charge", i.GemstoneCharge},
		{"misc_charge", i.MiscCharge},
	}
	for _, a := range amounts {
		if math.IsNaN(a.value) || math.IsInf(a.value, 0) || a.value < 0 {
			return Invalid(a.field, "must be a non-negative number")
		}
	}
	if i.GemstoneWeightGrams > i.GrossWeightGrams {
		return Invalid("gemstone_weight_grams", "exceeds gross weight")
	}
	if o := i.ManualPriceOverride; o != nil && o.Enabled {
		if math.IsNaN(o.FixedPrice) || math.IsInf(o.FixedPrice, 0) || o.FixedPrice < 0 {
			return Invalid("manual_price_override.fixed_price", "must be a non-negative number")
		}
	}
	return nil
}

func (m FinalMeasurement) Validate() error {
	probe := Item{
		DisplayName:          "measurement",
		PrimaryMaterial:      MaterialSilver,
		GrossWeightGrams:     m.GrossWeightGrams,
		GemstoneWeightGrams:  m.GemstoneWeightGrams,
		SecondaryWeightGrams: m.SecondaryWeightGrams,
		LaborCharge:          m.LaborCharge,
		DiamondCharge:        m.DiamondCharge,
		GemstoneCharge:       m.GemstoneCharge,
		MiscCharge:           m.MiscCharge,
	}
	return probe.Validate()
}

func (e RateEntry) Validate() error {
	if !e.Material.Valid() {
		return Invalid("material", "unknown material %q", e.Material)
	}
	if e.Material.Tiered() && !e.PurityTier.Valid() {
		return Invalid("purity_tier", "unknown purity tier %q for %s", e.PurityTier, e.Material)
	}
	if math.IsNaN(e.UnitPricePerGram) || math.IsInf(e.UnitPricePerGram, 0) || e.UnitPricePerGram < 0 {
		return Invalid("unit_price_per_gram", "must be a non-negative number")
	}
	return nil
}

// NonNegative validates a money or weight field.
func NonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return Invalid(field, "must not be negative")
	}
	return nil
}
