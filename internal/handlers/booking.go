package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/booking"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/internal/storage"
)

// Bound on the record-store round trips handlers make directly (the
// manager bounds its own calls).
const listTimeout = 15 * time.Second

type BookingHandler struct {
	manager *booking.Manager
	store   *storage.Store
	logger  *slog.Logger
}

func NewBookingHandler(manager *booking.Manager, store *storage.Store, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{manager: manager, store: store, logger: logger}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Label     string `json:"label"`
}

type createBookingRequest struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // RFC3339
	Notes     string `json:"notes"`
}

type bookingActionRequest struct {
	BookingID string `json:"booking_id"`
}

type bookingItem struct {
	BookingID   string `json:"booking_id"`
	ServiceID   string `json:"service_id"`
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`

	ServiceName     string `json:"service_name,omitempty"`
	ServicePrice    string `json:"service_price,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	PersonName      string `json:"person_name,omitempty"`
	PersonAvatarURL string `json:"person_avatar_url,omitempty"`
}

func bookingToItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:   b.ID,
		ServiceID:   b.ServiceID,
		BookingDate: b.BookingDate.Format("2006-01-02"),
		StartTime:   b.StartTime.UTC().Format(time.RFC3339),
		EndTime:     b.EndTime.UTC().Format(time.RFC3339),
		Status:      string(b.Status),
		StatusLabel: b.Status.Label(),
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.Service != nil {
		item.ServiceName = b.Service.Name
		item.ServicePrice = b.Service.Price
		item.DurationMinutes = b.Service.DurationMins
	}
	if b.Provider != nil {
		item.PersonName = b.Provider.FullName
		item.PersonAvatarURL = b.Provider.AvatarURL
	}
	return item
}

// Slots serves GET /api/v1/slots?service_id=...&date=YYYY-MM-DD.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if serviceID == "" || dateStr == "" {
		http.Error(w, "service_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.manager.AvailableSlots(r.Context(), serviceID, date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// A fully booked day is an empty list, never an error.
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Label:     s.Label,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Create serves POST /api/v1/bookings for the authenticated client.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindAuthRequired, "authentication required"))
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		http.Error(w, "service_id is required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time, want RFC3339", http.StatusBadRequest)
		return
	}

	b, err := h.manager.Create(r.Context(), claims.Sub, req.ServiceID, date, start.UTC(), strings.TrimSpace(req.Notes))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingToItem(b))
}

// ListMine serves GET /api/v1/bookings: the caller's own bookings,
// newest date first.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
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
	bookings, err := h.store.ListBookingsByClient(ctx, claims.Sub, limitParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingItems(bookings))
}

// Cancel serves POST /api/v1/bookings/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, bookingID, callerID string) (model.Booking, error) {
		return h.manager.Cancel(ctx, bookingID, callerID)
	})
}

// ProviderList serves GET /api/v1/provider/bookings.
func (h *BookingHandler) ProviderList(w http.ResponseWriter, r *http.Request) {
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
	bookings, err := h.store.ListBookingsByProvider(ctx, claims.Sub, limitParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingItems(bookings))
}

// ProviderConfirm serves POST /api/v1/provider/bookings/confirm.
func (h *BookingHandler) ProviderConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, bookingID, callerID string) (model.Booking, error) {
		return h.manager.Confirm(ctx, bookingID, callerID)
	})
}

// ProviderComplete serves POST /api/v1/provider/bookings/complete.
func (h *BookingHandler) ProviderComplete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, bookingID, callerID string) (model.Booking, error) {
		return h.manager.Complete(ctx, bookingID, callerID)
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, bookingID, callerID string) (model.Booking, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindAuthRequired, "authentication required"))
		return
	}

	var req bookingActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id is required", http.StatusBadRequest)
		return
	}

	b, err := apply(r.Context(), req.BookingID, claims.Sub)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingToItem(b))
}

func bookingItems(bookings []model.Booking) []bookingItem {
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, bookingToItem(b))
	}
	return items
}

func limitParam(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 200 {
		return 0
	}
	return n
}
