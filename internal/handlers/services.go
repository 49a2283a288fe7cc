package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/internal/storage"
	"github.com/smartpro-app/smartpro-backend/libs/auth"
)

type ServiceHandler struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewServiceHandler(store *storage.Store, logger *slog.Logger) *ServiceHandler {
	return &ServiceHandler{store: store, logger: logger}
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          bool   `json:"active"`

	ProviderID        string `json:"provider_id"`
	ProviderName      string `json:"provider_name,omitempty"`
	ProviderAvatarURL string `json:"provider_avatar_url,omitempty"`
}

func serviceToItem(svc model.Service) serviceItem {
	item := serviceItem{
		ServiceID:       svc.ID,
		Name:            svc.Name,
		Description:     svc.Description,
		Price:           svc.Price,
		DurationMinutes: svc.DurationMins,
		Active:          svc.Active,
		ProviderID:      svc.ProviderID,
	}
	if svc.Provider != nil {
		item.ProviderName = svc.Provider.FullName
		item.ProviderAvatarURL = svc.Provider.AvatarURL
	}
	return item
}

type upsertServiceRequest struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          *bool  `json:"active"`
}

type deactivateServiceRequest struct {
	ServiceID string `json:"service_id"`
}

// List serves GET /api/v1/services: the public catalog of active
// services in name order with provider summaries.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	services, err := h.store.ListActiveServices(ctx, limitParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]serviceItem, 0, len(services))
	for _, svc := range services {
		items = append(items, serviceToItem(svc))
	}
	writeJSON(w, http.StatusOK, items)
}

// ProviderList serves GET /api/v1/provider/services: the caller's own
// services, active or not.
func (h *ServiceHandler) ProviderList(w http.ResponseWriter, r *http.Request) {
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
	services, err := h.store.ListServicesByProvider(ctx, claims.Sub, limitParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]serviceItem, 0, len(services))
	for _, svc := range services {
		items = append(items, serviceToItem(svc))
	}
	writeJSON(w, http.StatusOK, items)
}

// Create serves POST /api/v1/provider/services.
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, claims, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	svc := model.Service{
		ProviderID:   claims.Sub,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		DurationMins: req.DurationMinutes,
		Active:       active,
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	if err := h.store.CreateService(ctx, &svc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("service created", "service_id", svc.ID, "provider_id", svc.ProviderID)
	writeJSON(w, http.StatusCreated, serviceToItem(svc))
}

// Update serves POST /api/v1/provider/services/update. Duration changes
// affect future bookings only; existing rows keep their frozen end times.
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, claims, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}
	if req.ServiceID == "" {
		http.Error(w, "service_id is required", http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	svc := model.Service{
		ID:           req.ServiceID,
		ProviderID:   claims.Sub,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		DurationMins: req.DurationMinutes,
		Active:       active,
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	if err := h.store.UpdateService(ctx, &svc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, serviceToItem(svc))
}

// Deactivate serves POST /api/v1/provider/services/deactivate. The
// service disappears from the catalog; its bookings are untouched.
func (h *ServiceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindAuthRequired, "authentication required"))
		return
	}

	var req deactivateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		http.Error(w, "service_id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	if err := h.store.DeactivateService(ctx, req.ServiceID, claims.Sub); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ServiceHandler) decodeUpsert(w http.ResponseWriter, r *http.Request) (upsertServiceRequest, *auth.Claims, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return upsertServiceRequest{}, nil, false
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindAuthRequired, "authentication required"))
		return upsertServiceRequest{}, nil, false
	}

	var req upsertServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return upsertServiceRequest{}, nil, false
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Price = strings.TrimSpace(req.Price)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return upsertServiceRequest{}, nil, false
	}
	if req.Price == "" {
		req.Price = "0"
	}
	return req, claims, true
}
