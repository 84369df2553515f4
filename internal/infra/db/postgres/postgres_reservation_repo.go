package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.DiscountReservationRepository = (*reservationRepo)(nil)

type reservationRepo struct {
	pool *pgxpool.Pool
}

func NewReservationRepo(pool *pgxpool.Pool) *reservationRepo {
	return &reservationRepo{pool: pool}
}

const reservationColumns = `id, code_id, customer_email, created_at, expires_at, redeemed_at, reaped_at`

func (r *reservationRepo) Insert(ctx context.Context, tx repository.Tx, res *model.DiscountReservation) error {
	const q = `
INSERT INTO discount_reservations (id, code_id, customer_email, created_at, expires_at, redeemed_at, reaped_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q,
		res.ID, res.CodeID, res.CustomerEmail, res.CreatedAt, res.ExpiresAt, res.RedeemedAt, res.ReapedAt,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *reservationRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.DiscountReservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM discount_reservations WHERE id=$1 FOR UPDATE;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *reservationRepo) FindLiveByCodeAndEmail(ctx context.Context, tx repository.Tx, codeID, email string, now time.Time) (*model.DiscountReservation, error) {
	const q = `
SELECT ` + reservationColumns + `
  FROM discount_reservations
 WHERE code_id=$1 AND customer_email=$2
   AND redeemed_at IS NULL AND reaped_at IS NULL AND expires_at > $3
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, codeID, email, now)
}

func (r *reservationRepo) CountLiveByCode(ctx context.Context, tx repository.Tx, codeID string, now time.Time) (int, error) {
	const q = `
SELECT COUNT(*) FROM discount_reservations
 WHERE code_id=$1 AND redeemed_at IS NULL AND reaped_at IS NULL AND expires_at > $2;`

	row, err := pickRow(ctx, r.pool, tx, q, codeID, now)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *reservationRepo) ListExpiredForUpdate(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.DiscountReservation, error) {
	const q = `
SELECT ` + reservationColumns + `
  FROM discount_reservations
 WHERE redeemed_at IS NULL AND reaped_at IS NULL AND expires_at <= $1
 ORDER BY expires_at ASC
 LIMIT $2
 FOR UPDATE SKIP LOCKED;`

	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.DiscountReservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// MarkRedeemed retires a hold exactly once; a second attempt reports not found.
func (r *reservationRepo) MarkRedeemed(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE discount_reservations SET redeemed_at=$2 WHERE id=$1 AND redeemed_at IS NULL;`
	return r.mark(ctx, tx, q, id, at)
}

func (r *reservationRepo) MarkReaped(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE discount_reservations SET reaped_at=$2 WHERE id=$1 AND reaped_at IS NULL AND redeemed_at IS NULL;`
	return r.mark(ctx, tx, q, id, at)
}

func (r *reservationRepo) mark(ctx context.Context, tx repository.Tx, q, id string, at time.Time) error {
	tag, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *reservationRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.DiscountReservation, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanReservation(row)
}

func scanReservation(row pgx.Row) (*model.DiscountReservation, error) {
	res := &model.DiscountReservation{}
	err := row.Scan(&res.ID, &res.CodeID, &res.CustomerEmail, &res.CreatedAt, &res.ExpiresAt, &res.RedeemedAt, &res.ReapedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return res, nil
}
