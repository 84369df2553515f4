package model

import (
	"time"

	"subscription-discount-engine/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// SubscriptionPlan represents a purchasable plan with a fixed billing cycle
// and price in whole-currency units (two decimal places).
//
// Plans are never deleted while a discount code references them; admins may
// change the price, everything else is immutable once referenced. Exactly one
// plan is the default at any time (enforced by the schema's partial unique
// index).
type SubscriptionPlan struct {
	ID           string
	Name         string
	Price        float64
	Currency     string
	BillingCycle BillingCycle
	TrialPrice   *float64
	TrialDays    *int
	IsDefault    bool
	IsActive     bool
	CreatedAt    time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(id, name string, price float64, currency string, cycle BillingCycle) (*SubscriptionPlan, error) {
	if id == "" || name == "" || price <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if cycle != BillingCycleMonthly && cycle != BillingCycleYearly {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionPlan{
		ID:           id,
		Name:         name,
		Price:        price,
		Currency:     currency,
		BillingCycle: cycle,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}
