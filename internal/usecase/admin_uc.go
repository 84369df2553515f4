package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

// CodeView is the admin-UI projection of a code: stored fields plus the
// derived status. Status is computed here on every read, never stored.
type CodeView struct {
	Code               string           `json:"code"`
	PlanID             string           `json:"plan_id"`
	PlanName           string           `json:"plan_name"`
	BenefitType        model.BenefitType `json:"benefit_type"`
	BenefitValue       float64          `json:"benefit_value"`
	MaxUses            *int             `json:"max_uses"`
	CurrentUses        int              `json:"current_uses"`
	ReservedUses       int              `json:"reserved_uses"`
	MaxUsesPerCustomer int              `json:"max_uses_per_customer"`
	ValidFrom          *time.Time       `json:"valid_from"`
	ValidUntil         *time.Time       `json:"valid_until"`
	Status             model.CodeStatus `json:"status"`
}

type AdminUseCase interface {
	ListCodes(ctx context.Context) ([]*CodeView, error)
	GetCode(ctx context.Context, code string) (*CodeView, error)
}

type adminUC struct {
	codes repository.DiscountCodeRepository
	plans repository.SubscriptionPlanRepository
	now   func() time.Time
	log   *zerolog.Logger
}

func NewAdminUseCase(codes repository.DiscountCodeRepository, plans repository.SubscriptionPlanRepository, logger *zerolog.Logger) *adminUC {
	l := logger.With().Str("component", "AdminUC").Logger()
	return &adminUC{codes: codes, plans: plans, now: time.Now, log: &l}
}

func (u *adminUC) ListCodes(ctx context.Context) ([]*CodeView, error) {
	codes, err := u.codes.List(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := make([]*CodeView, 0, len(codes))
	for _, c := range codes {
		out = append(out, u.view(ctx, c))
	}
	return out, nil
}

func (u *adminUC) GetCode(ctx context.Context, code string) (*CodeView, error) {
	c, err := u.codes.FindByCode(ctx, repository.NoTX, model.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	return u.view(ctx, c), nil
}

func (u *adminUC) view(ctx context.Context, c *model.DiscountCode) *CodeView {
	v := &CodeView{
		Code:               c.Code,
		PlanID:             c.PlanID,
		BenefitType:        c.BenefitType,
		BenefitValue:       c.BenefitValue,
		MaxUses:            c.MaxUses,
		CurrentUses:        c.CurrentUses,
		ReservedUses:       c.ReservedUses,
		MaxUsesPerCustomer: c.MaxUsesPerCustomer,
		ValidFrom:          c.ValidFrom,
		ValidUntil:         c.ValidUntil,
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, c.PlanID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Err(err).Str("code", c.Code).Msg("plan lookup failed while deriving status")
	}
	v.Status = c.Status(plan, u.now())
	if !plan.IsZero() {
		v.PlanName = plan.Name
	}
	return v
}
