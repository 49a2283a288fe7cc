package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/libs/auth"
)

type ctxKey int

const claimsKey ctxKey = iota

// ClaimsFromContext returns the verified identity claims attached by
// RequireAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// Authenticator verifies bearer tokens from the external identity
// provider and gates handlers on them. It issues nothing itself.
type Authenticator struct {
	secret string
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// RequireAuth rejects requests without a valid bearer token and makes
// the claims available via ClaimsFromContext.
func (a *Authenticator) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.verify(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "authentication required",
				Code:  string(apperr.KindAuthRequired),
			})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// RequireRole is RequireAuth plus a role gate.
func (a *Authenticator) RequireRole(role model.Role, next http.HandlerFunc) http.HandlerFunc {
	return a.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if claims.Role != string(role) && claims.Role != string(model.RoleAdmin) {
			writeJSON(w, http.StatusForbidden, errorResponse{
				Error: "this endpoint requires the " + string(role) + " role",
				Code:  string(apperr.KindPermissionDenied),
			})
			return
		}
		next(w, r)
	})
}

func (a *Authenticator) verify(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, auth.ErrInvalidToken
	}
	return auth.ParseAndVerifyHS256(strings.TrimSpace(token), a.secret)
}
