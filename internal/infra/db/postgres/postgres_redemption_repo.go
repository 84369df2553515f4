package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.DiscountRedemptionRepository = (*redemptionRepo)(nil)

type redemptionRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionRepo(pool *pgxpool.Pool) *redemptionRepo {
	return &redemptionRepo{pool: pool}
}

const redemptionColumns = `id, code_id, customer_email, reservation_id, provider_subscription_id, redeemed_at`

func (r *redemptionRepo) Insert(ctx context.Context, tx repository.Tx, red *model.DiscountRedemption) error {
	const q = `
INSERT INTO discount_redemptions (id, code_id, customer_email, reservation_id, provider_subscription_id, redeemed_at)
VALUES ($1,$2,$3,$4,$5,$6);`

	_, err := execSQL(ctx, r.pool, tx, q,
		red.ID, red.CodeID, red.CustomerEmail, red.ReservationID, red.ProviderSubscriptionID, red.RedeemedAt,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		if isUniqueViolation(err) {
			// Concurrent webhook delivery for the same provider subscription.
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *redemptionRepo) FindByProviderSubscriptionID(ctx context.Context, tx repository.Tx, providerSubID string) (*model.DiscountRedemption, error) {
	const q = `SELECT ` + redemptionColumns + ` FROM discount_redemptions WHERE provider_subscription_id=$1;`

	row, err := pickRow(ctx, r.pool, tx, q, providerSubID)
	if err != nil {
		return nil, err
	}
	red := &model.DiscountRedemption{}
	err = row.Scan(&red.ID, &red.CodeID, &red.CustomerEmail, &red.ReservationID, &red.ProviderSubscriptionID, &red.RedeemedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return red, nil
}

func (r *redemptionRepo) CountByCodeAndEmail(ctx context.Context, tx repository.Tx, codeID, email string) (int, error) {
	const q = `SELECT COUNT(*) FROM discount_redemptions WHERE code_id=$1 AND customer_email=$2;`

	row, err := pickRow(ctx, r.pool, tx, q, codeID, email)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
