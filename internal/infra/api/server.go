package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/config"
	"subscription-discount-engine/internal/infra/metrics"
	red "subscription-discount-engine/internal/infra/redis"
	"subscription-discount-engine/internal/usecase"
)

// Server is the public checkout-facing HTTP surface: code validation/
// reservation, the payment provider's subscription webhook, and the cron
// collaborator's sweep trigger.
type Server struct {
	reserveUC usecase.ReservationUseCase
	redeemUC  usecase.RedemptionUseCase
	reaperUC  usecase.ReaperUseCase
	limiter   *red.RateLimiter
	limits    config.LimitsConfig
	log       *zerolog.Logger
}

func NewServer(
	reserveUC usecase.ReservationUseCase,
	redeemUC usecase.RedemptionUseCase,
	reaperUC usecase.ReaperUseCase,
	limiter *red.RateLimiter,
	limits config.LimitsConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "PublicAPI").Logger()
	return &Server{
		reserveUC: reserveUC,
		redeemUC:  redeemUC,
		reaperUC:  reaperUC,
		limiter:   limiter,
		limits:    limits,
		log:       &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/discounts/validate", s.handleValidate)
		r.Post("/webhooks/subscription", s.handleWebhook)
		r.Post("/internal/reaper/sweep", s.handleSweep)
	})
	return r
}

// observe records per-route request metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveHTTPRequest(route, ww.Status(), float64(time.Since(start).Milliseconds()))
	})
}
