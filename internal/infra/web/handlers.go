package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/usecase"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// loginHandler exchanges the configured API key for a short-lived session.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.apiKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to mint session token")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// codesListHandler serves all codes with their derived status.
func codesListHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := adminUC.ListCodes(r.Context())
		if err != nil {
			http.Error(w, "Failed to list codes", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(struct {
			Codes []*usecase.CodeView `json:"codes"`
			Total int                 `json:"total"`
		}{Codes: views, Total: len(views)})
	}
}

// codeGetHandler serves a single code looked up by its (normalized) code string.
func codeGetHandler(adminUC usecase.AdminUseCase, code string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := adminUC.GetCode(r.Context(), code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Code not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to get code", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(view)
	}
}
