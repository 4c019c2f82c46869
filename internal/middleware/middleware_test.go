package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/auth"
	"github.com/hanapbuhay/backend/internal/middleware"
)

type stubValidator struct {
	ident auth.Identity
	err   error
}

func (s stubValidator) ValidateToken(context.Context, string) (auth.Identity, error) {
	return s.ident, s.err
}

func okHandler(t *testing.T, wantID uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := middleware.IdentityFromCtx(r.Context())
		if !ok {
			t.Error("identity missing from context")
		}
		if ident.AccountID != wantID {
			t.Errorf("account = %s, want %s", ident.AccountID, wantID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	accountID := uuid.New()
	mw := middleware.Auth(stubValidator{ident: auth.Identity{AccountID: accountID}})
	handler := mw(okHandler(t, accountID))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	r.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer: status = %d", w.Code)
	}

	bad := middleware.Auth(stubValidator{err: auth.ErrInvalidToken})(okHandler(t, accountID))
	r = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	r.Header.Set("Authorization", "Bearer expired")
	w = httptest.NewRecorder()
	bad.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := middleware.RequireAdmin(next)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/disputes/x/resolve", nil)
	r = r.WithContext(middleware.WithIdentity(r.Context(), auth.Identity{AccountID: uuid.New()}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/v1/disputes/x/resolve", nil)
	r = r.WithContext(middleware.WithIdentity(r.Context(), auth.Identity{AccountID: uuid.New(), IsAdmin: true}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("admin: status = %d", w.Code)
	}
}

type fixedLimiter struct {
	ok  bool
	err error
}

func (f fixedLimiter) Allow(context.Context, string) (bool, error) { return f.ok, f.err }

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	blocked := middleware.RateLimit(fixedLimiter{ok: false}, nil)(next)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	blocked.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: status = %d", w.Code)
	}

	// Limiter failure lets the request through.
	failing := middleware.RateLimit(fixedLimiter{ok: true, err: errors.New("redis down")}, nil)(next)
	w = httptest.NewRecorder()
	failing.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fail-open: status = %d", w.Code)
	}
}
