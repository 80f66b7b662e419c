package domain

import (
	"github.com/shopspring/decimal"
)

type CustomerInfo struct {
	CustomerID string `json:"customer_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type CreateInvoiceRequest struct {
	TerminalID    string          `json:"terminal_id,omitempty"`
	Cart          []Item          `json:"cart"`
	Customer      CustomerInfo    `json:"customer"`
	RateOverrides []RateEntry     `json:"rate_overrides,omitempty"`
	Discount      decimal.Decimal `json:"discount"`

	// ReplacesInvoiceID names an invoice reversed with KeepOutOfInventory.
	// Its sold-archive records are accepted in place of inventory records.
	ReplacesInvoiceID string `json:"replaces_invoice_id,omitempty"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

type ReverseSaleRequest struct {
	ManagerPIN         string `json:"manager_pin"`
	KeepOutOfInventory bool   `json:"keep_out_of_inventory"`
}

type ReverseSaleResult struct {
	InvoiceID       string   `json:"invoice_id"`
	Reversed        bool     `json:"reversed"`
	RestoredSKUs    []string `json:"restored_skus"`
	PostingsRemoved int      `json:"postings_removed"`
}

type CreateOrderRequest struct {
	Customer             CustomerInfo    `json:"customer"`
	Lines                []Item          `json:"lines"`
	RateOverrides        []RateEntry     `json:"rate_overrides,omitempty"`
	AdvanceCash          decimal.Decimal `json:"advance_cash"`
	AdvanceMaterialValue decimal.Decimal `json:"advance_material_value"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}

type FinalizeOrderRequest struct {
	Measurements  []FinalMeasurement `json:"measurements"`
	ExtraDiscount decimal.Decimal    `json:"extra_discount"`
}

type ArtisanPostingRequest struct {
	ArtisanID             string          `json:"artisan_id"`
	Description           string          `json:"description,omitempty"`
	MaterialIssuedGrams   decimal.Decimal `json:"material_issued_grams"`
	MaterialReturnedGrams decimal.Decimal `json:"material_returned_grams"`
	LaborBilled           decimal.Decimal `json:"labor_billed"`
	CashPaid              decimal.Decimal `json:"cash_paid"`
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type UpdateRatesRequest struct {
	Entries []RateEntry `json:"entries"`
}

type QuoteRequest struct {
	Cart          []Item          `json:"cart"`
	RateOverrides []RateEntry     `json:"rate_overrides,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
}

type QuoteLine struct {
	SKU  string        `json:"sku"`
	Cost CostBreakdown `json:"cost"`
}

type QuoteResponse struct {
	Lines      []QuoteLine     `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Rates      RateTable       `json:"rates"`
}

type SaveCartRequest struct {
	Items []Item `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
