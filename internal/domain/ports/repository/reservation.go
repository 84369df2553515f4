package repository

import (
	"context"
	"time"

	"subscription-discount-engine/internal/domain/model"
)

type DiscountReservationRepository interface {
	Insert(ctx context.Context, tx Tx, r *model.DiscountReservation) error
	// LockByID takes a FOR UPDATE row lock on one reservation.
	LockByID(ctx context.Context, tx Tx, id string) (*model.DiscountReservation, error)
	// FindLiveByCodeAndEmail returns the live hold for a (code, email) pair,
	// or domain.ErrNotFound. At most one live hold exists per pair.
	FindLiveByCodeAndEmail(ctx context.Context, tx Tx, codeID, email string, now time.Time) (*model.DiscountReservation, error)
	CountLiveByCode(ctx context.Context, tx Tx, codeID string, now time.Time) (int, error)
	// ListExpiredForUpdate selects lapsed, unredeemed, unreaped holds with
	// FOR UPDATE SKIP LOCKED so concurrent sweeps and redemptions never queue
	// behind each other.
	ListExpiredForUpdate(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.DiscountReservation, error)
	MarkRedeemed(ctx context.Context, tx Tx, id string, at time.Time) error
	MarkReaped(ctx context.Context, tx Tx, id string, at time.Time) error
}
