package repository

import (
	"context"

	"subscription-discount-engine/internal/domain/model"
)

type DiscountCodeRepository interface {
	Save(ctx context.Context, tx Tx, c *model.DiscountCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.DiscountCode, error)
	// LockByCode takes a FOR UPDATE NOWAIT row lock; returns
	// domain.ErrCodeLocked when another checkout holds the row.
	LockByCode(ctx context.Context, tx Tx, code string) (*model.DiscountCode, error)
	// LockByID takes a plain FOR UPDATE row lock, waiting for the holder.
	LockByID(ctx context.Context, tx Tx, id string) (*model.DiscountCode, error)
	// ListActiveCodes returns active code strings in lexicographic order.
	ListActiveCodes(ctx context.Context, tx Tx) ([]string, error)
	List(ctx context.Context, tx Tx) ([]*model.DiscountCode, error)
	// AdjustUses applies deltas to current_uses / reserved_uses on one row.
	// Callers must hold the row lock.
	AdjustUses(ctx context.Context, tx Tx, codeID string, currentDelta, reservedDelta int) error
}
