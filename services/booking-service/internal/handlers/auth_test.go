package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bookable-app/bookable/libs/auth"
)

func TestRequireAdmin(t *testing.T) {
	const secret = "test-secret"
	h := NewAuthHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), secret, time.Hour)

	var gotTenant string
	protected := h.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("claims missing from context")
		}
		gotTenant = claims.TenantID
		w.WriteHeader(http.StatusOK)
	})

	token, err := auth.SignHS256(auth.Claims{
		Sub:      "admin-1",
		TenantID: "t-1",
		Role:     "admin",
		Iat:      time.Now().Unix(),
		Exp:      time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protected(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}
	if gotTenant != "t-1" {
		t.Fatalf("tenant id not propagated, got %q", gotTenant)
	}

	rec = httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token+"tampered")
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with tampered token, got %d", rec.Code)
	}

	expired, err := auth.SignHS256(auth.Claims{
		Sub:      "admin-1",
		TenantID: "t-1",
		Role:     "admin",
		Iat:      time.Now().Add(-2 * time.Hour).Unix(),
		Exp:      time.Now().Add(-time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with expired token, got %d", rec.Code)
	}
}
