package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Open orders can still be worked on or finalized.
func (s OrderStatus) Open() bool {
	return s == OrderPending || s == OrderInProgress
}

// CanTransitionTo covers manual status changes. Completed is only reached
// through finalization and is rejected here.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch next {
	case OrderInProgress:
		return s == OrderPending
	case OrderCancelled:
		return s.Open()
	case OrderPending:
		return s == OrderInProgress
	}
	return false
}

type Order struct {
	ID                   string          `json:"id"`
	Status               OrderStatus     `json:"status"`
	CustomerID           string          `json:"customer_id,omitempty"`
	CustomerName         string          `json:"customer_name"`
	CustomerPhone        string          `json:"customer_phone,omitempty"`
	Lines                []Item          `json:"lines"`
	AdvanceCash          decimal.Decimal `json:"advance_cash"`
	AdvanceMaterialValue decimal.Decimal `json:"advance_material_value"`
	RateSnapshot         RateTable       `json:"rate_snapshot"`
	EstimatedTotal       decimal.Decimal `json:"estimated_total"`
	InvoiceID            string          `json:"invoice_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (o Order) Advance() decimal.Decimal {
	return o.AdvanceCash.Add(o.AdvanceMaterialValue)
}

func (o Order) Clone() Order {
	out := o
	out.Lines = make([]Item, len(o.Lines))
	for i, line := range o.Lines {
		out.Lines[i] = line.Clone()
	}
	out.RateSnapshot = o.RateSnapshot.Clone()
	return out
}

// FinalMeasurement carries the as-built figures for one order line.
type FinalMeasurement struct {
	GrossWeightGrams     float64 `json:"gross_weight_grams"`
	GemstoneWeightGrams  float64 `json:"gemstone_weight_grams"`
	SecondaryWeightGrams float64 `json:"secondary_weight_grams"`
	LaborCharge          float64 `json:"labor_charge"`
	DiamondCharge        float64 `json:"diamond_charge"`
	GemstoneCharge       float64 `json:"gemstone_charge"`
	MiscCharge           float64 `json:"misc_charge"`
}

func (m FinalMeasurement) ApplyTo(item Item) Item {
	out := item.Clone()
	out.GrossWeightGrams = m.GrossWeightGrams
	out.GemstoneWeightGrams = m.GemstoneWeightGrams
	out.HasGemstones = m.GemstoneWeightGrams > 0 || item.HasGemstones
	if item.HasSecondaryMetal() {
		out.SecondaryWeightGrams = m.SecondaryWeightGrams
	}
	out.LaborCharge = m.LaborCharge
	out.DiamondCharge = m.DiamondCharge
	out.HasDiamonds = m.DiamondCharge > 0 || item.HasDiamonds
	out.GemstoneCharge = m.GemstoneCharge
	out.MiscCharge = m.MiscCharge
	return out
}
