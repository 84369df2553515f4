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
var _ repository.SubscriptionPlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, price, currency, billing_cycle, trial_price, trial_days, is_default, is_active, created_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const q = `
INSERT INTO subscription_plans (id, name, price, currency, billing_cycle, trial_price, trial_days, is_default, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name, price=EXCLUDED.price, currency=EXCLUDED.currency,
  billing_cycle=EXCLUDED.billing_cycle, trial_price=EXCLUDED.trial_price,
  trial_days=EXCLUDED.trial_days, is_default=EXCLUDED.is_default, is_active=EXCLUDED.is_active;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Price, p.Currency, p.BillingCycle, p.TrialPrice, p.TrialDays, p.IsDefault, p.IsActive, p.CreatedAt,
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

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *planRepo) FindDefault(ctx context.Context, tx repository.Tx) (*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans WHERE is_default AND is_active LIMIT 1;`
	return r.queryOne(ctx, tx, q)
}

func (r *planRepo) List(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *planRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.SubscriptionPlan, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func scanPlan(row pgx.Row) (*model.SubscriptionPlan, error) {
	p := &model.SubscriptionPlan{}
	var cycle string
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &cycle, &p.TrialPrice, &p.TrialDays, &p.IsDefault, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.BillingCycle = model.BillingCycle(cycle)
	return p, nil
}
