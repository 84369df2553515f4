package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"subscription-discount-engine/internal/domain"
)

func init() {
	register(
		reservationsTotal,
		redemptionsTotal,
		reservationsReapedTotal,
		rateLimitDeniedTotal,
	)
}

var (
	reservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discount_reservations_total",
			Help: "Reservation attempts by outcome (reserved or rejection code).",
		},
		[]string{"outcome"},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discount_redemptions_total",
			Help: "Redemption webhook outcomes.",
		},
		[]string{"result"}, // 'converted', 'replayed', 'rejected'
	)

	reservationsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discount_reservations_reaped_total",
			Help: "Expired reservations released by the reaper.",
		},
	)

	rateLimitDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Requests denied by the rate limiter, per scope.",
		},
		[]string{"scope"},
	)
)

func IncReservation(outcome string) {
	reservationsTotal.WithLabelValues(outcome).Inc()
}

func IncReservationRejected(code domain.ErrorCode) {
	reservationsTotal.WithLabelValues(string(code)).Inc()
}

func IncRedemption(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}

func AddReservationsReaped(n int) {
	reservationsReapedTotal.Add(float64(n))
}

func IncRateLimitDenied(scope string) {
	rateLimitDeniedTotal.WithLabelValues(scope).Inc()
}
