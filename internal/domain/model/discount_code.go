package model

import (
	"strings"
	"time"

	"subscription-discount-engine/internal/domain"
)

// BenefitType selects how a code discounts its plan's price.
type BenefitType string

const (
	BenefitPercentage  BenefitType = "percentage"   // value = percent off
	BenefitFixedAmount BenefitType = "fixed_amount" // value = amount off, capped at plan price
	BenefitFreeTrial   BenefitType = "free_trial"   // value = trial months, price drops to zero
)

// CodeStatus is the admin-facing state of a code, always derived from stored
// fields and never itself stored.
type CodeStatus string

const (
	CodeStatusActive    CodeStatus = "active"
	CodeStatusUnused    CodeStatus = "unused"
	CodeStatusExhausted CodeStatus = "exhausted"
	CodeStatusExpired   CodeStatus = "expired"
	CodeStatusInactive  CodeStatus = "inactive"
	CodeStatusError     CodeStatus = "error"
)

const DefaultGracePeriodMinutes = 30

// DiscountCode is a limited-use promotional code bound to a single plan.
//
// CurrentUses counts completed redemptions and only ever grows. ReservedUses
// counts live, unexpired reservations and must always equal that live count;
// every mutation of either counter happens inside a row-locked transaction.
type DiscountCode struct {
	ID                 string
	Code               string // unique, stored uppercase
	PlanID             string
	BenefitType        BenefitType
	BenefitValue       float64 // percent, amount, or trial months depending on BenefitType
	MaxUses            *int    // nil = unlimited
	CurrentUses        int
	ReservedUses       int
	MaxUsesPerCustomer int
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	IsActive           bool
	DeactivatedAt      *time.Time
	GracePeriodMinutes int
	CreatedAt          time.Time
}

// NormalizeCode maps caller input onto the stored code form.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewDiscountCode validates and constructs a code.
func NewDiscountCode(id, code, planID string, benefit BenefitType, value float64) (*DiscountCode, error) {
	code = NormalizeCode(code)
	if id == "" || code == "" || planID == "" || value <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	switch benefit {
	case BenefitPercentage, BenefitFixedAmount, BenefitFreeTrial:
	default:
		return nil, domain.ErrInvalidArgument
	}
	return &DiscountCode{
		ID:                 id,
		Code:               code,
		PlanID:             planID,
		BenefitType:        benefit,
		BenefitValue:       value,
		MaxUsesPerCustomer: 1,
		IsActive:           true,
		GracePeriodMinutes: DefaultGracePeriodMinutes,
		CreatedAt:          time.Now(),
	}, nil
}

// Redeemable reports whether the code is active, or deactivated but still
// within its grace period at `now`.
func (c *DiscountCode) Redeemable(now time.Time) bool {
	if c.IsActive {
		return true
	}
	if c.DeactivatedAt == nil {
		return false
	}
	grace := time.Duration(c.GracePeriodMinutes) * time.Minute
	return !now.After(c.DeactivatedAt.Add(grace))
}

// HasCapacity reports whether at least one usage slot remains.
func (c *DiscountCode) HasCapacity() bool {
	if c.MaxUses == nil {
		return true
	}
	return c.CurrentUses+c.ReservedUses < *c.MaxUses
}

// Status derives the admin-facing state from the code, its plan and the clock.
// Precedence: error > inactive > expired > exhausted > unused > active.
func (c *DiscountCode) Status(plan *SubscriptionPlan, now time.Time) CodeStatus {
	if plan.IsZero() || !plan.IsActive {
		return CodeStatusError
	}
	if !c.Redeemable(now) {
		return CodeStatusInactive
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return CodeStatusExpired
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return CodeStatusExhausted
	}
	if c.CurrentUses == 0 {
		return CodeStatusUnused
	}
	return CodeStatusActive
}
