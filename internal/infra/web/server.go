package web

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/usecase"
)

// Server is the operator-facing admin API. It lives on its own listener so
// the public checkout surface never exposes these routes.
type Server struct {
	adminUC usecase.AdminUseCase
	auth    *AuthManager
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(adminUC usecase.AdminUseCase, auth *AuthManager, apiKey string, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{adminUC: adminUC, auth: auth, apiKey: apiKey, log: &l}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/auth/login", s.loginHandler)
	mux.HandleFunc("/api/v1/auth/logout", s.logoutHandler)

	codesRouter := s.authMiddleware(s.codesRouter())
	mux.Handle("/api/v1/codes", codesRouter)
	mux.Handle("/api/v1/codes/", codesRouter)
}

// authMiddleware requires a valid operator session (cookie or Bearer JWT).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != "operator" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// codesRouter acts as a sub-router for /api/v1/codes
func (s *Server) codesRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/v1/codes")
		path = strings.Trim(path, "/")

		if path == "" { // Path is /api/v1/codes
			codesListHandler(s.adminUC)(w, r)
		} else { // Path is /api/v1/codes/{code}
			codeGetHandler(s.adminUC, path)(w, r)
		}
	})
}
