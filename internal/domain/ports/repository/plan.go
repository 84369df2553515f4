package repository

import (
	"context"

	"subscription-discount-engine/internal/domain/model"
)

type SubscriptionPlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	FindDefault(ctx context.Context, tx Tx) (*model.SubscriptionPlan, error)
	List(ctx context.Context, tx Tx) ([]*model.SubscriptionPlan, error)
}
