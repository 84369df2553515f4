package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ ReservationUseCase = (*reservationUC)(nil)

// PlanSummary is the slice of plan data a checkout caller needs.
type PlanSummary struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	BillingCycle    model.BillingCycle `json:"billing_cycle"`
	DiscountedPrice float64            `json:"discounted_price"`
}

// ReserveResult is returned on a successful reservation; the caller hands
// ReservationID to the external checkout flow.
type ReserveResult struct {
	ReservationID  string      `json:"reservation_id"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Plan           PlanSummary `json:"plan"`
	OriginalPrice  float64     `json:"original_price"`
	Savings        float64     `json:"savings"`
	SavingsPercent *int        `json:"savings_percent,omitempty"`
}

type ReservationUseCase interface {
	// Reserve validates a code for a customer and, on success, atomically
	// holds one usage slot for the reservation TTL. All validation and the
	// counter increment happen inside one row-locked transaction so that
	// concurrent checkouts can never jointly exceed max_uses.
	Reserve(ctx context.Context, code, customerEmail string) (*ReserveResult, error)
}

type reservationUC struct {
	codes        repository.DiscountCodeRepository
	plans        repository.SubscriptionPlanRepository
	reservations repository.DiscountReservationRepository
	redemptions  repository.DiscountRedemptionRepository
	tm           repository.TransactionManager
	ttl          time.Duration
	now          func() time.Time
	log          *zerolog.Logger
}

func NewReservationUseCase(
	codes repository.DiscountCodeRepository,
	plans repository.SubscriptionPlanRepository,
	reservations repository.DiscountReservationRepository,
	redemptions repository.DiscountRedemptionRepository,
	tm repository.TransactionManager,
	ttl time.Duration,
	logger *zerolog.Logger,
) *reservationUC {
	if ttl <= 0 {
		ttl = model.ReservationTTL
	}
	l := logger.With().Str("component", "ReservationUC").Logger()
	return &reservationUC{
		codes:        codes,
		plans:        plans,
		reservations: reservations,
		redemptions:  redemptions,
		tm:           tm,
		ttl:          ttl,
		now:          time.Now,
		log:          &l,
	}
}

func (u *reservationUC) Reserve(ctx context.Context, rawCode, customerEmail string) (*ReserveResult, error) {
	code := model.NormalizeCode(rawCode)
	email := model.NormalizeEmail(customerEmail)
	if code == "" || email == "" {
		return nil, domain.NewValidationError(domain.CodeInvalidRequest, "code and email are required")
	}

	var res *ReserveResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = u.reserveTx(ctx, tx, code, email)
		return err
	})
	if err != nil {
		if ve := domain.AsValidation(err); ve != nil {
			u.log.Info().Str("code", code).Str("error_code", string(ve.Code)).Msg("reservation rejected")
		} else if errors.Is(err, domain.ErrCodeLocked) {
			u.log.Info().Str("code", code).Msg("code row locked; caller should retry")
		} else {
			u.log.Error().Err(err).Str("code", code).Msg("reservation failed")
		}
		return nil, err
	}

	u.log.Info().Str("code", code).Str("reservation_id", res.ReservationID).Msg("slot reserved")
	return res, nil
}

// reserveTx runs the ordered validation chain (first failure wins) and, if
// every check passes, increments reserved_uses and inserts the hold as one
// atomic unit under the code's row lock.
func (u *reservationUC) reserveTx(ctx context.Context, tx repository.Tx, code, email string) (*ReserveResult, error) {
	dc, err := u.codes.LockByCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, u.invalidCode(ctx, tx, code)
	}
	if err != nil {
		return nil, err // includes domain.ErrCodeLocked
	}

	now := u.now()
	if !dc.Redeemable(now) {
		return nil, domain.NewValidationError(domain.CodeInactive, "this discount code is no longer active")
	}
	if dc.ValidFrom != nil && now.Before(*dc.ValidFrom) {
		return nil, domain.NewValidationError(domain.CodeNotYetValid, "this discount code is not valid yet")
	}
	if dc.ValidUntil != nil && now.After(*dc.ValidUntil) {
		ve := domain.NewValidationError(domain.CodeExpired, "this discount code has expired")
		ve.ValidUntil = dc.ValidUntil
		return nil, ve
	}

	plan, err := u.plans.FindByID(ctx, tx, dc.PlanID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if plan.IsZero() || !plan.IsActive {
		return nil, domain.NewValidationError(domain.CodePlanUnavailable, "the plan for this code is currently unavailable")
	}

	if !dc.HasCapacity() {
		return nil, domain.NewValidationError(domain.CodeMaxUses, "this discount code has reached its usage limit")
	}

	// A duplicate in-flight checkout for the same pair outranks the
	// per-customer cap: the customer holding the slot should be told to
	// finish that checkout, not that the code is spent.
	existing, err := u.reservations.FindLiveByCodeAndEmail(ctx, tx, dc.ID, email, now)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewValidationError(domain.CodeReservationExists, "a checkout with this code is already in progress for this email")
	}

	redeemed, err := u.redemptions.CountByCodeAndEmail(ctx, tx, dc.ID, email)
	if err != nil {
		return nil, err
	}
	if redeemed >= dc.MaxUsesPerCustomer {
		return nil, domain.NewValidationError(domain.CodeAlreadyUsed, "this discount code was already used by this customer")
	}

	if err := u.codes.AdjustUses(ctx, tx, dc.ID, 0, +1); err != nil {
		return nil, err
	}
	r, err := model.NewDiscountReservation(ulid.Make().String(), dc.ID, email, now, u.ttl)
	if err != nil {
		return nil, err
	}
	if err := u.reservations.Insert(ctx, tx, r); err != nil {
		return nil, err
	}

	q := model.Price(plan.Price, dc.BenefitType, dc.BenefitValue)
	res := &ReserveResult{
		ReservationID: r.ID,
		ExpiresAt:     r.ExpiresAt,
		Plan: PlanSummary{
			ID:              plan.ID,
			Name:            plan.Name,
			BillingCycle:    plan.BillingCycle,
			DiscountedPrice: q.FinalPrice,
		},
		OriginalPrice: model.Round2(plan.Price),
		Savings:       q.Savings,
	}
	if pct, ok := model.SavingsPercent(q.Savings, plan.Price); ok {
		res.SavingsPercent = &pct
	}
	return res, nil
}

// invalidCode builds the INVALID_CODE rejection, attaching a typo suggestion
// when one clears the matcher's thresholds. Suggestion lookup failures degrade
// to "no suggestion" rather than masking the rejection.
func (u *reservationUC) invalidCode(ctx context.Context, tx repository.Tx, code string) error {
	ve := domain.NewValidationError(domain.CodeInvalidCode, fmt.Sprintf("discount code %q was not found", code))
	active, err := u.codes.ListActiveCodes(ctx, tx)
	if err != nil {
		u.log.Warn().Err(err).Msg("active code listing for suggestion failed")
		return ve
	}
	if s, ok := SuggestCode(code, active); ok {
		ve.Suggestion = s
	}
	return ve
}
