package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/infra/metrics"
	"subscription-discount-engine/internal/usecase"
)

const (
	maxCodeLen  = 100
	maxEmailLen = 255
)

type validateRequest struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

type webhookRequest struct {
	ReservationID          string `json:"reservation_id"`
	CustomerEmail          string `json:"customer_email"`
	Code                   string `json:"code"`
	ProviderSubscriptionID string `json:"provider_subscription_id"`
}

type errorBody struct {
	Code       domain.ErrorCode `json:"code"`
	Message    string           `json:"message"`
	Suggestion string           `json:"suggestion,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "validate", s.limits.ValidatePerMinute) {
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, &errorBody{Code: domain.CodeInvalidRequest, Message: "invalid request body"})
		return
	}
	if msg := validateInput(req.Code, req.Email); msg != "" {
		writeError(w, http.StatusBadRequest, &errorBody{Code: domain.CodeInvalidRequest, Message: msg})
		return
	}

	res, err := s.reserveUC.Reserve(r.Context(), req.Code, req.Email)
	if err != nil {
		s.writeReserveError(w, err)
		return
	}
	metrics.IncReservation("reserved")
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: res})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "webhook", s.limits.WebhookPerMinute) {
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, &errorBody{Code: domain.CodeInvalidRequest, Message: "invalid request body"})
		return
	}

	res, err := s.redeemUC.Redeem(r.Context(), usecase.RedeemInput{
		ReservationID:          req.ReservationID,
		CustomerEmail:          req.CustomerEmail,
		Code:                   req.Code,
		ProviderSubscriptionID: req.ProviderSubscriptionID,
	})
	if err != nil {
		if ve := domain.AsValidation(err); ve != nil {
			metrics.IncRedemption("rejected")
			writeError(w, http.StatusBadRequest, validationBody(ve))
			return
		}
		s.writeInternalError(w, err)
		return
	}
	if res.AlreadyProcessed {
		metrics.IncRedemption("replayed")
	} else {
		metrics.IncRedemption("converted")
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: res})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	// The cron collaborator fires this a few times per hour; anything faster
	// is abuse of an endpoint that takes row locks.
	if !s.allow(w, r, "sweep", s.limits.SweepPerMinute) {
		return
	}

	released, err := s.reaperUC.Sweep(r.Context(), time.Now())
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	metrics.AddReservationsReaped(released)
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

// allow applies the rate-limit gate for one scope. Denials answer 429 with a
// Retry-After consistent with the window's remaining time.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, scope string, limit int) bool {
	window := time.Duration(s.limits.WindowMinutes) * time.Minute
	d := s.limiter.Check(r.Context(), scope+":"+clientIP(r), limit, window)
	if d.Allowed {
		return true
	}
	metrics.IncRateLimitDenied(scope)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(d.RetryAfter.Seconds())+1))
	writeError(w, http.StatusTooManyRequests, &errorBody{
		Code:    domain.CodeInvalidRequest,
		Message: "too many requests; please retry later",
	})
	return false
}

func (s *Server) writeReserveError(w http.ResponseWriter, err error) {
	if ve := domain.AsValidation(err); ve != nil {
		metrics.IncReservationRejected(ve.Code)
		writeError(w, http.StatusBadRequest, validationBody(ve))
		return
	}
	if errors.Is(err, domain.ErrCodeLocked) {
		metrics.IncReservationRejected(domain.CodeCodeLocked)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, &errorBody{
			Code:    domain.CodeCodeLocked,
			Message: "the code is being redeemed by another checkout; please retry",
		})
		return
	}
	s.writeInternalError(w, err)
}

// writeInternalError answers with a generic message; store internals are
// logged server-side only.
func (s *Server) writeInternalError(w http.ResponseWriter, err error) {
	code := domain.CodeInternalError
	if errors.Is(err, domain.ErrOperationFailed) || errors.Is(err, domain.ErrReadDatabaseRow) {
		code = domain.CodeDatabaseError
	}
	s.log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, &errorBody{Code: code, Message: "an internal error occurred"})
}

func validationBody(ve *domain.ValidationError) *errorBody {
	return &errorBody{
		Code:       ve.Code,
		Message:    ve.Message,
		Suggestion: ve.Suggestion,
		ExpiresAt:  ve.ValidUntil,
	}
}

func validateInput(code, email string) string {
	code = strings.TrimSpace(code)
	email = strings.TrimSpace(email)
	if code == "" || len(code) > maxCodeLen {
		return fmt.Sprintf("code is required and must be at most %d characters", maxCodeLen)
	}
	if email == "" || len(email) > maxEmailLen || !emailShaped(email) {
		return "a valid email address is required"
	}
	return ""
}

// emailShaped is a cheap RFC-shaped check; real verification belongs to the
// checkout flow, not the discount engine.
func emailShaped(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	dom := s[at+1:]
	return strings.Contains(dom, ".") && !strings.HasPrefix(dom, ".") && !strings.HasSuffix(dom, ".")
}

func clientIP(r *http.Request) string {
	// middleware.RealIP has already folded X-Forwarded-For into RemoteAddr.
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body *errorBody) {
	writeJSON(w, status, envelope{Success: false, Error: body})
}
