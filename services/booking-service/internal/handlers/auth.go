package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookable-app/bookable/libs/auth"
	"github.com/bookable-app/bookable/services/booking-service/internal/storage"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

// AuthHandler issues admin tokens and guards the admin surface.
type AuthHandler struct {
	tenants  *storage.TenantRepository
	logger   *slog.Logger
	secret   string
	tokenTTL time.Duration
}

func NewAuthHandler(tenants *storage.TenantRepository, logger *slog.Logger, secret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthHandler{tenants: tenants, logger: logger, secret: secret, tokenTTL: tokenTTL}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TenantID  string `json:"tenant_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// Login handles POST /api/v1/admin/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	admin, err := h.tenants.AdminByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("admin lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := time.Now()
	exp := now.Add(h.tokenTTL)
	token, err := auth.SignHS256(auth.Claims{
		Sub:      admin.ID,
		TenantID: admin.TenantID,
		Role:     "admin",
		Iat:      now.Unix(),
		Exp:      exp.Unix(),
	}, h.secret)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("admin logged in", "tenant_id", admin.TenantID, "admin_id", admin.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TenantID:  admin.TenantID,
		ExpiresAt: exp.Unix(),
	})
}

// RequireAdmin verifies the bearer token and stashes the claims in the
// request context.
func (h *AuthHandler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := auth.ParseAndVerifyHS256(strings.TrimPrefix(header, "Bearer "), h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// ClaimsFromContext returns the admin claims set by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
