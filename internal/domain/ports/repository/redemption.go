package repository

import (
	"context"

	"subscription-discount-engine/internal/domain/model"
)

type DiscountRedemptionRepository interface {
	Insert(ctx context.Context, tx Tx, r *model.DiscountRedemption) error
	// FindByProviderSubscriptionID is the idempotency lookup for webhook
	// replays; returns domain.ErrNotFound when unseen.
	FindByProviderSubscriptionID(ctx context.Context, tx Tx, providerSubID string) (*model.DiscountRedemption, error)
	CountByCodeAndEmail(ctx context.Context, tx Tx, codeID, email string) (int, error)
}
