package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"karatpos/internal/domain"
	"karatpos/internal/store"
	"karatpos/internal/xid"
)

func (s *Service) GetBalance(ctx context.Context, entityID string) (domain.Balance, error) {
	postings, err := s.ListPostings(ctx, entityID)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.SumPostings(strings.TrimSpace(entityID), postings), nil
}

func (s *Service) ListPostings(ctx context.Context, entityID string) ([]domain.LedgerPosting, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, domain.Invalid("entity_id", "is required")
	}

	var postings []domain.LedgerPosting
	err := s.run(ctx, "list postings", func(ctx context.Context, tx store.Tx) error {
		var err error
		postings, err = tx.ListPostingsByEntity(ctx, entityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if postings == nil {
		postings = []domain.LedgerPosting{}
	}
	return postings, nil
}

// RecordArtisanPosting books material and cash movements with an artisan.
// Material issued and cash paid raise what the artisan owes the shop;
// material returned and labor billed lower it.
func (s *Service) RecordArtisanPosting(ctx context.Context, req domain.ArtisanPostingRequest) (domain.LedgerPosting, error) {
	artisanID := strings.TrimSpace(req.ArtisanID)
	if artisanID == "" {
		return domain.LedgerPosting{}, domain.Invalid("artisan_id", "is required")
	}
	for _, a := range []struct {
		field string
		value decimal.Decimal
	}{
		{"material_issued_grams", req.MaterialIssuedGrams},
		{"material_returned_grams", req.MaterialReturnedGrams},
		{"labor_billed", req.LaborBilled},
		{"cash_paid", req.CashPaid},
	} {
		if err := domain.NonNegative(a.field, a.value); err != nil {
			return domain.LedgerPosting{}, err
		}
	}
	if req.MaterialIssuedGrams.IsZero() && req.MaterialReturnedGrams.IsZero() &&
		req.LaborBilled.IsZero() && req.CashPaid.IsZero() {
		return domain.LedgerPosting{}, domain.Invalid("", "posting moves nothing")
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Artisan settlement"
	}
	posting := domain.LedgerPosting{
		ID:                   xid.New(xid.PrefixPosting),
		EntityID:             artisanID,
		EntityKind:           domain.EntityArtisan,
		Timestamp:            s.now(),
		Description:          description,
		CashOwedByEntity:     req.CashPaid,
		CashOwedToEntity:     req.LaborBilled,
		MaterialOwedByEntity: req.MaterialIssuedGrams,
		MaterialOwedToEntity: req.MaterialReturnedGrams,
	}
	err := s.run(ctx, "record artisan posting", func(ctx context.Context, tx store.Tx) error {
		return tx.AppendPosting(ctx, posting)
	})
	if err != nil {
		return domain.LedgerPosting{}, err
	}
	return posting, nil
}
