package model

import (
	"time"

	"subscription-discount-engine/internal/domain"
)

// DiscountRedemption is the permanent record of a completed, paid use of a
// code. ProviderSubscriptionID is the idempotency key for webhook replays;
// redemption rows are never deleted.
type DiscountRedemption struct {
	ID                     string
	CodeID                 string
	CustomerEmail          string
	ReservationID          *string // nil when the originating hold had lapsed
	ProviderSubscriptionID string
	RedeemedAt             time.Time
}

func NewDiscountRedemption(id, codeID, email, providerSubID string, reservationID *string, at time.Time) (*DiscountRedemption, error) {
	email = NormalizeEmail(email)
	if id == "" || codeID == "" || email == "" || providerSubID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &DiscountRedemption{
		ID:                     id,
		CodeID:                 codeID,
		CustomerEmail:          email,
		ReservationID:          reservationID,
		ProviderSubscriptionID: providerSubID,
		RedeemedAt:             at,
	}, nil
}
