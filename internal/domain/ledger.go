package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntityKind string

const (
	EntityCustomer EntityKind = "customer"
	EntityArtisan  EntityKind = "artisan"
)

// LedgerPosting records money and material owed between the shop and one
// entity. Postings are only ever appended, or removed together with the
// invoice named by InvoiceRef.
type LedgerPosting struct {
	ID                   string          `json:"id"`
	EntityID             string          `json:"entity_id"`
	EntityKind           EntityKind      `json:"entity_kind"`
	Timestamp            time.Time       `json:"timestamp"`
	Description          string          `json:"description"`
	InvoiceRef           string          `json:"invoice_ref,omitempty"`
	CashOwedByEntity     decimal.Decimal `json:"cash_owed_by_entity"`
	CashOwedToEntity     decimal.Decimal `json:"cash_owed_to_entity"`
	MaterialOwedByEntity decimal.Decimal `json:"material_owed_by_entity"`
	MaterialOwedToEntity decimal.Decimal `json:"material_owed_to_entity"`
}

// Balance is positive when the entity owes the shop.
type Balance struct {
	EntityID string          `json:"entity_id"`
	Cash     decimal.Decimal `json:"cash"`
	Material decimal.Decimal `json:"material"`
	Postings int             `json:"postings"`
}

func SumPostings(entityID string, postings []LedgerPosting) Balance {
	bal := Balance{EntityID: entityID, Cash: decimal.Zero, Material: decimal.Zero}
	for _, p := range postings {
		if p.EntityID != entityID {
			continue
		}
		bal.Cash = bal.Cash.Add(p.CashOwedByEntity).Sub(p.CashOwedToEntity)
		bal.Material = bal.Material.Add(p.MaterialOwedByEntity).Sub(p.MaterialOwedToEntity)
		bal.Postings++
	}
	return bal
}
