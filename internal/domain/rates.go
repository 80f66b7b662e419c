package domain

import (
	"sort"
	"time"
)

type Material string

const (
	MaterialGold     Material = "gold"
	MaterialSilver   Material = "silver"
	MaterialPlatinum Material = "platinum"
)

func (m Material) Valid() bool {
	switch m {
	case MaterialGold, MaterialSilver, MaterialPlatinum:
		return true
	}
	return false
}

// Tiered reports whether the material is priced per purity tier.
func (m Material) Tiered() bool {
	return m == MaterialGold
}

// CarriesWastage is false for the base metal, whose wastage is never billed.
func (m Material) CarriesWastage() bool {
	return m != MaterialSilver
}

type PurityTier string

const (
	Tier18K PurityTier = "18k"
	Tier21K PurityTier = "21k"
	Tier22K PurityTier = "22k"
	Tier24K PurityTier = "24k"
)

var PurityTiers = []PurityTier{Tier18K, Tier21K, Tier22K, Tier24K}

func (t PurityTier) Valid() bool {
	for _, tier := range PurityTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// RateEntry prices one (material, tier) pair. Non-tiered materials carry an empty tier.
type RateEntry struct {
	Material         Material   `json:"material"`
	PurityTier       PurityTier `json:"purity_tier,omitempty"`
	UnitPricePerGram float64    `json:"unit_price_per_gram"`
}

func (e RateEntry) matches(m Material, tier PurityTier) bool {
	if e.Material != m {
		return false
	}
	if !m.Tiered() {
		return true
	}
	return e.PurityTier == tier
}

// Normalized drops the tier from non-tiered materials.
func (e RateEntry) Normalized() RateEntry {
	if !e.Material.Tiered() {
		e.PurityTier = ""
	}
	return e
}

type RateTable struct {
	Entries   []RateEntry `json:"entries"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RateFor returns the unit price per gram, or 0 when the pair is not configured.
func (t RateTable) RateFor(m Material, tier PurityTier) float64 {
	for _, e := range t.Entries {
		if e.matches(m, tier) {
			return e.UnitPricePerGram
		}
	}
	return 0
}

// WithOverrides returns a copy of the table where each override replaces the
// entry for the same (material, tier) pair, or is added when absent.
func (t RateTable) WithOverrides(overrides []RateEntry) RateTable {
	out := t.Clone()
	for _, o := range overrides {
		o = o.Normalized()
		replaced := false
		for i, e := range out.Entries {
			if e.matches(o.Material, o.PurityTier) {
				out.Entries[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out.Entries = append(out.Entries, o)
		}
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		if out.Entries[i].Material != out.Entries[j].Material {
			return out.Entries[i].Material < out.Entries[j].Material
		}
		return out.Entries[i].PurityTier < out.Entries[j].PurityTier
	})
	return out
}

func (t RateTable) Clone() RateTable {
	out := t
	out.Entries = append([]RateEntry(nil), t.Entries...)
	if out.Entries == nil {
		out.Entries = []RateEntry{}
	}
	return out
}
