package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.DiscountCodeRepository = (*discountCodeRepo)(nil)

type discountCodeRepo struct {
	pool *pgxpool.Pool
}

func NewDiscountCodeRepo(pool *pgxpool.Pool) *discountCodeRepo {
	return &discountCodeRepo{pool: pool}
}

const codeColumns = `id, code, plan_id, benefit_type, benefit_value, max_uses, current_uses, reserved_uses,
       max_uses_per_customer, valid_from, valid_until, is_active, deactivated_at, grace_period_minutes, created_at`

func (r *discountCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.DiscountCode) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
INSERT INTO discount_codes (id, code, plan_id, benefit_type, benefit_value, max_uses, current_uses, reserved_uses,
  max_uses_per_customer, valid_from, valid_until, is_active, deactivated_at, grace_period_minutes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  max_uses=EXCLUDED.max_uses, max_uses_per_customer=EXCLUDED.max_uses_per_customer,
  valid_from=EXCLUDED.valid_from, valid_until=EXCLUDED.valid_until,
  is_active=EXCLUDED.is_active, deactivated_at=EXCLUDED.deactivated_at,
  grace_period_minutes=EXCLUDED.grace_period_minutes;`

	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.Code, c.PlanID, c.BenefitType, c.BenefitValue, c.MaxUses, c.CurrentUses, c.ReservedUses,
		c.MaxUsesPerCustomer, c.ValidFrom, c.ValidUntil, c.IsActive, c.DeactivatedAt, c.GracePeriodMinutes, c.CreatedAt,
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

func (r *discountCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM discount_codes WHERE code=$1;`
	return r.queryOne(ctx, tx, q, code)
}

// LockByCode acquires the row lock that serializes all slot accounting for a
// code. NOWAIT turns lock contention into an immediate, retryable condition
// instead of queueing checkout requests behind each other.
func (r *discountCodeRepo) LockByCode(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM discount_codes WHERE code=$1 FOR UPDATE NOWAIT;`
	return r.queryOne(ctx, tx, q, code)
}

// LockByID blocks until the row lock is granted; used by the redemption
// converter, which must always run to completion.
func (r *discountCodeRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.DiscountCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM discount_codes WHERE id=$1 FOR UPDATE;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *discountCodeRepo) ListActiveCodes(ctx context.Context, tx repository.Tx) ([]string, error) {
	const q = `SELECT code FROM discount_codes WHERE is_active ORDER BY code ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *discountCodeRepo) List(ctx context.Context, tx repository.Tx) ([]*model.DiscountCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM discount_codes ORDER BY code ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.DiscountCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *discountCodeRepo) AdjustUses(ctx context.Context, tx repository.Tx, codeID string, currentDelta, reservedDelta int) error {
	const q = `
UPDATE discount_codes
   SET current_uses = current_uses + $2,
       reserved_uses = reserved_uses + $3
 WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, codeID, currentDelta, reservedDelta)
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

func (r *discountCodeRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.DiscountCode, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	c, err := scanCode(row)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCode(row pgx.Row) (*model.DiscountCode, error) {
	c := &model.DiscountCode{}
	var benefit string
	err := row.Scan(
		&c.ID, &c.Code, &c.PlanID, &benefit, &c.BenefitValue, &c.MaxUses, &c.CurrentUses, &c.ReservedUses,
		&c.MaxUsesPerCustomer, &c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.DeactivatedAt, &c.GracePeriodMinutes, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if isLockNotAvailable(err) {
			return nil, domain.ErrCodeLocked
		}
		return nil, domain.ErrReadDatabaseRow
	}
	c.BenefitType = model.BenefitType(benefit)
	return c, nil
}
