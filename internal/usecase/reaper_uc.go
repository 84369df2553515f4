package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ ReaperUseCase = (*reaperUC)(nil)

const defaultReapBatch = 100

type ReaperUseCase interface {
	// Sweep releases the slots of reservations whose TTL elapsed without
	// conversion: reserved_uses is decremented, current_uses untouched.
	// Safe to run concurrently with itself and with reserve/redeem traffic;
	// a redemption committing in the same instant wins because candidates
	// are selected with SKIP LOCKED and re-filtered on redeemed_at.
	Sweep(ctx context.Context, now time.Time) (released int, err error)
}

type reaperUC struct {
	codes        repository.DiscountCodeRepository
	reservations repository.DiscountReservationRepository
	tm           repository.TransactionManager
	batch        int
	log          *zerolog.Logger
}

func NewReaperUseCase(
	codes repository.DiscountCodeRepository,
	reservations repository.DiscountReservationRepository,
	tm repository.TransactionManager,
	batchSize int,
	logger *zerolog.Logger,
) *reaperUC {
	if batchSize <= 0 {
		batchSize = defaultReapBatch
	}
	l := logger.With().Str("component", "ReaperUC").Logger()
	return &reaperUC{
		codes:        codes,
		reservations: reservations,
		tm:           tm,
		batch:        batchSize,
		log:          &l,
	}
}

func (u *reaperUC) Sweep(ctx context.Context, now time.Time) (int, error) {
	released := 0
	for {
		n, err := u.sweepBatch(ctx, now)
		released += n
		if err != nil {
			return released, err
		}
		if n < u.batch {
			if released > 0 {
				u.log.Info().Int("released", released).Msg("expired reservations swept")
			}
			return released, nil
		}
	}
}

// sweepBatch releases up to `batch` lapsed holds in one transaction. Each
// batch is its own transaction so a long backlog never holds row locks for
// the whole sweep.
func (u *reaperUC) sweepBatch(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		expired, err := u.reservations.ListExpiredForUpdate(ctx, tx, now, u.batch)
		if err != nil {
			return err
		}
		for _, r := range expired {
			if r.RedeemedAt != nil {
				// Redemption won the race between selection and here.
				continue
			}
			if err := u.codes.AdjustUses(ctx, tx, r.CodeID, 0, -1); err != nil {
				return err
			}
			if err := u.reservations.MarkReaped(ctx, tx, r.ID, now); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
