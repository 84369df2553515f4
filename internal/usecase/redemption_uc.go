package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

// RedeemInput identifies the purchase reported by the payment provider's
// webhook. Either ReservationID or CustomerEmail+Code must be set.
type RedeemInput struct {
	ReservationID          string
	CustomerEmail          string
	Code                   string
	ProviderSubscriptionID string
}

type RedeemResult struct {
	RedemptionID     string    `json:"redemption_id"`
	CodeID           string    `json:"code_id"`
	RedeemedAt       time.Time `json:"redeemed_at"`
	AlreadyProcessed bool      `json:"already_processed"`
}

type RedemptionUseCase interface {
	// Redeem converts a reservation into a permanent redemption. Idempotent:
	// replaying the same provider subscription id returns the first result
	// without mutating state. A lapsed reservation still converts when the
	// code has remaining capacity, so a slow provider never double-charges
	// discount capacity nor loses a paid purchase.
	Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error)
}

type redemptionUC struct {
	codes        repository.DiscountCodeRepository
	reservations repository.DiscountReservationRepository
	redemptions  repository.DiscountRedemptionRepository
	tm           repository.TransactionManager
	now          func() time.Time
	log          *zerolog.Logger
}

func NewRedemptionUseCase(
	codes repository.DiscountCodeRepository,
	reservations repository.DiscountReservationRepository,
	redemptions repository.DiscountRedemptionRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *redemptionUC {
	l := logger.With().Str("component", "RedemptionUC").Logger()
	return &redemptionUC{
		codes:        codes,
		reservations: reservations,
		redemptions:  redemptions,
		tm:           tm,
		now:          time.Now,
		log:          &l,
	}
}

func (u *redemptionUC) Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error) {
	if in.ProviderSubscriptionID == "" {
		return nil, domain.NewValidationError(domain.CodeInvalidRequest, "provider subscription id is required")
	}
	if in.ReservationID == "" && (in.CustomerEmail == "" || in.Code == "") {
		return nil, domain.NewValidationError(domain.CodeInvalidRequest, "a reservation id or customer email plus code is required")
	}

	var res *RedeemResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = u.redeemTx(ctx, tx, in)
		return err
	})
	if err != nil {
		if ve := domain.AsValidation(err); ve != nil {
			u.log.Info().Str("provider_subscription_id", in.ProviderSubscriptionID).
				Str("error_code", string(ve.Code)).Msg("redemption rejected")
		} else {
			u.log.Error().Err(err).Str("provider_subscription_id", in.ProviderSubscriptionID).Msg("redemption failed")
		}
		return nil, err
	}

	u.log.Info().Str("redemption_id", res.RedemptionID).Bool("replay", res.AlreadyProcessed).Msg("redemption processed")
	return res, nil
}

func (u *redemptionUC) redeemTx(ctx context.Context, tx repository.Tx, in RedeemInput) (*RedeemResult, error) {
	// Idempotency first: a webhook replay returns the original outcome and
	// touches nothing.
	if res, err := u.replayOf(ctx, tx, in.ProviderSubscriptionID); res != nil || err != nil {
		return res, err
	}

	r, codeID, email, err := u.resolveReservation(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	// Lock order matches the reaper (reservation row, then code row), so the
	// two can never deadlock; the reserve path only ever locks the code.
	dc, err := u.codes.LockByID(ctx, tx, codeID)
	if err != nil {
		return nil, err
	}

	// The first idempotency check reads a snapshot taken before any lock; a
	// concurrent duplicate delivery may have committed while this one waited
	// for the rows. Re-check under the lock before rejecting or converting.
	if res, err := u.replayOf(ctx, tx, in.ProviderSubscriptionID); res != nil || err != nil {
		return res, err
	}

	if r != nil && r.RedeemedAt != nil {
		// Spent under a different provider id; a conflict, not a replay.
		return nil, domain.NewValidationError(domain.CodeAlreadyUsed, "this reservation was already redeemed")
	}

	now := u.now()
	red := &model.DiscountRedemption{
		ID:                     uuid.NewString(),
		CodeID:                 dc.ID,
		CustomerEmail:          email,
		ProviderSubscriptionID: in.ProviderSubscriptionID,
		RedeemedAt:             now,
	}

	switch {
	case r != nil && r.ReapedAt == nil:
		// Normal conversion, including a lapsed-but-unswept hold: its slot is
		// still counted in reserved_uses and moves to current_uses, so the
		// cap cannot be exceeded. Marking it redeemed stops the reaper from
		// releasing the slot a second time.
		if r.Live(now) {
			red.ReservationID = &r.ID
		}
		if res, err := u.insertNew(ctx, tx, red); res != nil || err != nil {
			return res, err
		}
		if err := u.reservations.MarkRedeemed(ctx, tx, r.ID, now); err != nil {
			return nil, err
		}
		if err := u.codes.AdjustUses(ctx, tx, dc.ID, +1, -1); err != nil {
			return nil, err
		}
	default:
		// The hold lapsed and its slot was already released (or was never
		// found by email+code). The payment still completed, so convert
		// directly against the code, but only under remaining capacity.
		if !dc.HasCapacity() {
			return nil, domain.NewValidationError(domain.CodeMaxUses, "this discount code has reached its usage limit")
		}
		if res, err := u.insertNew(ctx, tx, red); res != nil || err != nil {
			return res, err
		}
		if err := u.codes.AdjustUses(ctx, tx, dc.ID, +1, 0); err != nil {
			return nil, err
		}
	}

	return &RedeemResult{
		RedemptionID: red.ID,
		CodeID:       red.CodeID,
		RedeemedAt:   red.RedeemedAt,
	}, nil
}

// replayOf returns the committed outcome for a provider subscription id, or
// nil when the id is unseen.
func (u *redemptionUC) replayOf(ctx context.Context, tx repository.Tx, providerSubID string) (*RedeemResult, error) {
	existing, err := u.redemptions.FindByProviderSubscriptionID(ctx, tx, providerSubID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &RedeemResult{
		RedemptionID:     existing.ID,
		CodeID:           existing.CodeID,
		RedeemedAt:       existing.RedeemedAt,
		AlreadyProcessed: true,
	}, nil
}

// insertNew writes the redemption row. A unique violation on the provider id
// means a concurrent duplicate committed first; that delivery's outcome is
// returned as a replay. Runs before any counter or reservation mutation so a
// conflicting transaction commits no side effects.
func (u *redemptionUC) insertNew(ctx context.Context, tx repository.Tx, red *model.DiscountRedemption) (*RedeemResult, error) {
	err := u.redemptions.Insert(ctx, tx, red)
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		if res, rerr := u.replayOf(ctx, tx, red.ProviderSubscriptionID); rerr == nil && res != nil {
			return res, nil
		}
	}
	return nil, err
}

// resolveReservation locates the reservation (may be nil for the lapsed
// email+code path) plus the code id and customer email to redeem against.
func (u *redemptionUC) resolveReservation(ctx context.Context, tx repository.Tx, in RedeemInput) (*model.DiscountReservation, string, string, error) {
	if in.ReservationID != "" {
		r, err := u.reservations.LockByID(ctx, tx, in.ReservationID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", "", domain.NewValidationError(domain.CodeInvalidRequest, "unknown reservation")
		}
		if err != nil {
			return nil, "", "", err
		}
		return r, r.CodeID, r.CustomerEmail, nil
	}

	code := model.NormalizeCode(in.Code)
	email := model.NormalizeEmail(in.CustomerEmail)
	dc, err := u.codes.FindByCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", "", domain.NewValidationError(domain.CodeInvalidCode, "discount code was not found")
	}
	if err != nil {
		return nil, "", "", err
	}

	r, err := u.reservations.FindLiveByCodeAndEmail(ctx, tx, dc.ID, email, u.now())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, "", "", err
	}
	if r != nil {
		if r, err = u.reservations.LockByID(ctx, tx, r.ID); err != nil {
			return nil, "", "", err
		}
	}
	return r, dc.ID, email, nil
}
