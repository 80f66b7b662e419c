package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryBullionCoin = "bullion-coin"

	CounterInvoice = "invoice"
	CounterOrder   = "order"

	InvoicePrefix = "INV"
	OrderPrefix   = "ORD"

	// WalkInEntityID receives ledger postings for sales without a customer record.
	WalkInEntityID = "walk-in"
	WalkInName     = "Walk-in"
)

type ManualPriceOverride struct {
	Enabled    bool    `json:"enabled"`
	FixedPrice float64 `json:"fixed_price"`
}

// Item is the shared shape of inventory records, cart lines and order line estimates.
type Item struct {
	SKU                  string               `json:"sku"`
	DisplayName          string               `json:"display_name"`
	CategoryID           string               `json:"category_id"`
	PrimaryMaterial      Material             `json:"primary_material"`
	PurityTier           PurityTier           `json:"purity_tier,omitempty"`
	GrossWeightGrams     float64              `json:"gross_weight_grams"`
	SecondaryMaterial    Material             `json:"secondary_material,omitempty"`
	SecondaryPurityTier  PurityTier           `json:"secondary_purity_tier,omitempty"`
	SecondaryWeightGrams float64              `json:"secondary_weight_grams,omitempty"`
	HasGemstones         bool                 `json:"has_gemstones"`
	GemstoneWeightGrams  float64              `json:"gemstone_weight_grams"`
	WastagePercentage    float64              `json:"wastage_percentage"`
	LaborCharge          float64              `json:"labor_charge"`
	HasDiamonds          bool                 `json:"has_diamonds"`
	DiamondCharge        float64              `json:"diamond_charge"`
	GemstoneCharge       float64              `json:"gemstone_charge"`
	MiscCharge           float64              `json:"misc_charge"`
	ManualPriceOverride  *ManualPriceOverride `json:"manual_price_override,omitempty"`
}

func (i Item) IsBullionCoin() bool {
	return i.CategoryID == CategoryBullionCoin
}

func (i Item) HasSecondaryMetal() bool {
	return i.SecondaryMaterial != ""
}

func (i Item) ManuallyPriced() bool {
	return i.ManualPriceOverride != nil && i.ManualPriceOverride.Enabled
}

func (i Item) Clone() Item {
	out := i
	if i.ManualPriceOverride != nil {
		override := *i.ManualPriceOverride
		out.ManualPriceOverride = &override
	}
	return out
}

// WithCommercialTerms keeps the receiver's physical attributes (weights,
// materials, tiers, category) and takes the terms negotiated at the counter
// from cartLine.
func (i Item) WithCommercialTerms(cartLine Item) Item {
	out := i.Clone()
	out.WastagePercentage = cartLine.WastagePercentage
	out.LaborCharge = cartLine.LaborCharge
	out.HasDiamonds = cartLine.HasDiamonds
	out.DiamondCharge = cartLine.DiamondCharge
	out.GemstoneCharge = cartLine.GemstoneCharge
	out.MiscCharge = cartLine.MiscCharge
	out.ManualPriceOverride = nil
	if cartLine.ManualPriceOverride != nil {
		override := *cartLine.ManualPriceOverride
		out.ManualPriceOverride = &override
	}
	return out
}

// CostBreakdown is derived from an Item and a rate snapshot. It is never stored on its own.
type CostBreakdown struct {
	MetalCost      decimal.Decimal `json:"metal_cost"`
	WastageCost    decimal.Decimal `json:"wastage_cost"`
	LaborCharge    decimal.Decimal `json:"labor_charge"`
	DiamondCharge  decimal.Decimal `json:"diamond_charge"`
	GemstoneCharge decimal.Decimal `json:"gemstone_charge"`
	MiscCharge     decimal.Decimal `json:"misc_charge"`
	TotalPrice     decimal.Decimal `json:"total_price"`
}

type InvoiceLine struct {
	Item     Item          `json:"item"`
	Cost     CostBreakdown `json:"cost"`
	Quantity int           `json:"quantity"`
}

type Payment struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Note      string          `json:"note,omitempty"`
}

type Invoice struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id,omitempty"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone,omitempty"`
	Lines          []InvoiceLine   `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
	RateSnapshot   RateTable       `json:"rate_snapshot"`
	PaymentHistory []Payment       `json:"payment_history"`
	SourceOrderID  string          `json:"source_order_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Recompute derives AmountPaid and BalanceDue from the payment history.
// BalanceDue is left negative on overpayment.
func (inv *Invoice) Recompute() {
	paid := decimal.Zero
	for _, p := range inv.PaymentHistory {
		paid = paid.Add(p.Amount)
	}
	inv.AmountPaid = paid
	inv.BalanceDue = inv.GrandTotal.Sub(paid)
}

func (inv Invoice) LedgerEntityID() string {
	if inv.CustomerID == "" {
		return WalkInEntityID
	}
	return inv.CustomerID
}

func (inv Invoice) Clone() Invoice {
	out := inv
	out.Lines = make([]InvoiceLine, len(inv.Lines))
	for i, line := range inv.Lines {
		line.Item = line.Item.Clone()
		out.Lines[i] = line
	}
	out.PaymentHistory = append([]Payment(nil), inv.PaymentHistory...)
	if out.PaymentHistory == nil {
		out.PaymentHistory = []Payment{}
	}
	out.RateSnapshot = inv.RateSnapshot.Clone()
	return out
}

type SoldItem struct {
	Item      Item      `json:"item"`
	InvoiceID string    `json:"invoice_id"`
	SoldAt    time.Time `json:"sold_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SequenceCounter struct {
	Name      string `json:"name"`
	LastValue int64  `json:"last_value"`
}

type Settings struct {
	Rates RateTable `json:"rates"`
}

type Cart struct {
	TerminalID string    `json:"terminal_id"`
	Items      []Item    `json:"items"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
