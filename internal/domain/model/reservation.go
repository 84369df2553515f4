package model

import (
	"strings"
	"time"

	"subscription-discount-engine/internal/domain"
)

// ReservationTTL is the default lifetime of a checkout hold.
const ReservationTTL = 15 * time.Minute

// DiscountReservation is a time-boxed hold on one usage slot of a code,
// created during checkout validation. It either converts into a redemption
// exactly once or lapses and is released by the reaper.
type DiscountReservation struct {
	ID            string // ULID, time-sortable
	CodeID        string
	CustomerEmail string // stored lowercase
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RedeemedAt    *time.Time // set exactly once, by the redemption converter
	ReapedAt      *time.Time // set by the expiry reaper after the slot is released
}

// NormalizeEmail maps caller input onto the stored email form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewDiscountReservation constructs a hold expiring ttl after now.
func NewDiscountReservation(id, codeID, email string, now time.Time, ttl time.Duration) (*DiscountReservation, error) {
	email = NormalizeEmail(email)
	if id == "" || codeID == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if ttl <= 0 {
		ttl = ReservationTTL
	}
	return &DiscountReservation{
		ID:            id,
		CodeID:        codeID,
		CustomerEmail: email,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

// Live reports whether the hold still occupies a slot at `now`.
func (r *DiscountReservation) Live(now time.Time) bool {
	return r.RedeemedAt == nil && r.ReapedAt == nil && r.ExpiresAt.After(now)
}
