package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/usecase"
)

type stubAdminUC struct {
	views []*usecase.CodeView
	err   error
}

func (s *stubAdminUC) ListCodes(ctx context.Context) ([]*usecase.CodeView, error) {
	return s.views, s.err
}

func (s *stubAdminUC) GetCode(ctx context.Context, code string) (*usecase.CodeView, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, v := range s.views {
		if v.Code == model.NormalizeCode(code) {
			return v, nil
		}
	}
	return nil, domain.ErrNotFound
}

const testAPIKey = "test-api-key"

func newTestMux(uc usecase.AdminUseCase) *http.ServeMux {
	l := zerolog.Nop()
	auth := NewAuthManager("test-secret", false, 30*time.Minute)
	srv := NewServer(uc, auth, testAPIKey, &l)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return mux
}

func login(t *testing.T, mux *http.ServeMux, apiKey string) (string, int) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"api_key": apiKey})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return "", rec.Code
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out["token"], rec.Code
}

func TestLogin(t *testing.T) {
	t.Parallel()

	mux := newTestMux(&stubAdminUC{})

	token, status := login(t, mux, testAPIKey)
	if status != http.StatusOK || token == "" {
		t.Fatalf("login: status=%d token=%q", status, token)
	}

	if _, status := login(t, mux, "wrong-key"); status != http.StatusForbidden {
		t.Fatalf("wrong key: status = %d, want 403", status)
	}
}

func TestCodesRequireAuth(t *testing.T) {
	t.Parallel()

	mux := newTestMux(&stubAdminUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/codes", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestListCodes(t *testing.T) {
	t.Parallel()

	uc := &stubAdminUC{views: []*usecase.CodeView{
		{Code: "SAVE10", Status: model.CodeStatusActive},
		{Code: "WELCOME", Status: model.CodeStatusUnused},
	}}
	mux := newTestMux(uc)
	token, _ := login(t, mux, testAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var out struct {
		Codes []*usecase.CodeView `json:"codes"`
		Total int                 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Codes) != 2 {
		t.Fatalf("unexpected listing: %+v", out)
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	uc := &stubAdminUC{views: []*usecase.CodeView{
		{Code: "WELCOME", Status: model.CodeStatusActive, CurrentUses: 3},
	}}
	mux := newTestMux(uc)
	token, _ := login(t, mux, testAPIKey)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/api/v1/codes/WELCOME")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var view usecase.CodeView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Code != "WELCOME" || view.CurrentUses != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}

	if rec := get("/api/v1/codes/NOPE"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing code: status = %d, want 404", rec.Code)
	}
}

func TestSessionCookieAuth(t *testing.T) {
	t.Parallel()

	mux := newTestMux(&stubAdminUC{})

	body, _ := json.Marshal(map[string]string{"api_key": testAPIKey})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	loginRec := httptest.NewRecorder()
	mux.ServeHTTP(loginRec, loginReq)
	cookies := loginRec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie auth: status = %d, want 200", rec.Code)
	}
}
