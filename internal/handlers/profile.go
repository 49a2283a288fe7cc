package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/storage"
)

type ProfileHandler struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewProfileHandler(store *storage.Store, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{store: store, logger: logger}
}

type profileResponse struct {
	ProfileID string `json:"profile_id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

// Me serves GET /api/v1/me: the caller's own profile.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindAuthRequired, "authentication required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	p, err := h.store.Profile(ctx, claims.Sub)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		ProfileID: p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName(),
		Role:      string(p.Role),
		AvatarURL: p.AvatarURL,
	})
}

// UpdateMe serves POST /api/v1/me/update. Display fields only; role
// changes belong to the identity provider.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindAuthRequired, "authentication required"))
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)
	if req.FirstName == "" && req.LastName == "" {
		http.Error(w, "first_name or last_name is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	if err := h.store.UpdateProfile(ctx, claims.Sub, req.FirstName, req.LastName, req.AvatarURL); err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.store.Profile(ctx, claims.Sub)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		ProfileID: p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName(),
		Role:      string(p.Role),
		AvatarURL: p.AvatarURL,
	})
}
