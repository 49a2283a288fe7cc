package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/availability"
	"github.com/smartpro-app/smartpro-backend/internal/booking"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/libs/auth"
)

const testSecret = "handler-test-secret"

func notFoundErr(msg string) error {
	return apperr.New(apperr.KindNotFound, msg)
}

type memStore struct {
	services map[string]model.Service
	bookings map[string]model.Booking
	busy     []availability.Interval
}

func (m *memStore) Service(_ context.Context, id string) (model.Service, error) {
	svc, ok := m.services[id]
	if !ok {
		return model.Service{}, notFoundErr("service not found")
	}
	return svc, nil
}

func (m *memStore) BookedIntervals(_ context.Context, _ string, _ time.Time) ([]availability.Interval, error) {
	return m.busy, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *model.Booking) error {
	b.ID = "bk-created"
	m.bookings[b.ID] = *b
	m.busy = append(m.busy, availability.Interval{Start: b.StartTime, End: b.EndTime})
	return nil
}

func (m *memStore) Booking(_ context.Context, id string) (model.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, notFoundErr("booking not found")
	}
	return b, nil
}

func (m *memStore) TransitionBooking(_ context.Context, id string, to model.Status, _ model.TransitionFilter, _ string) (model.Booking, error) {
	b := m.bookings[id]
	b.Status = to
	m.bookings[id] = b
	return b, nil
}

func newTestMux(t *testing.T, store *memStore) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	manager := booking.NewManager(store, logger, booking.Config{})
	bookingHandler := NewBookingHandler(manager, nil, logger)
	authn := NewAuthenticator(testSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/bookings", authn.RequireRole(model.RoleClient, bookingHandler.Create))
	mux.HandleFunc("/api/v1/bookings/cancel", authn.RequireRole(model.RoleClient, bookingHandler.Cancel))
	mux.HandleFunc("/api/v1/provider/bookings/confirm", authn.RequireRole(model.RoleProvider, bookingHandler.ProviderConfirm))
	return mux
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Role: role,
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func storeWithService() *memStore {
	return &memStore{
		services: map[string]model.Service{
			"svc-1": {
				ID:           "svc-1",
				ProviderID:   "prov-1",
				Name:         "Consultation",
				DurationMins: 30,
				Active:       true,
			},
		},
		bookings: map[string]model.Booking{},
	}
}

func TestSlotsEndpoint(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?service_id=svc-1&date=2999-06-15", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var items []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 16 {
		t.Fatalf("got %d slots, want 16", len(items))
	}
	if items[0].Label != "9:00 AM - 9:30 AM" {
		t.Fatalf("label = %q", items[0].Label)
	}
}

func TestSlotsUnknownService(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?service_id=nope&date=2999-06-15", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "not_found" {
		t.Fatalf("code = %q, want not_found", resp.Code)
	}
}

func TestSlotsRejectsBadDate(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?service_id=svc-1&date=June+15", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateBookingEndpoint(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	body := `{"service_id":"svc-1","date":"2999-06-15","start_time":"2999-06-15T10:00:00Z","notes":"first visit"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "cli-1", "client"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var item bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Status != "pending" || item.StatusLabel != "Pending" {
		t.Fatalf("status = %q/%q, want pending/Pending", item.Status, item.StatusLabel)
	}
	if item.EndTime != "2999-06-15T10:30:00Z" {
		t.Fatalf("end_time = %q, want 10:30Z", item.EndTime)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	store := storeWithService()
	mux := newTestMux(t, store)

	body := `{"service_id":"svc-1","date":"2999-06-15","start_time":"2999-06-15T10:00:00Z"}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+signToken(t, "cli-1", "client"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d; body %s", i, rec.Code, want, rec.Body.String())
		}
	}
}

func TestCreateBookingRequiresToken(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "authentication_required" {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestProviderEndpointRejectsClientRole(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/provider/bookings/confirm", strings.NewReader(`{"booking_id":"bk-1"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "cli-1", "client"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestProviderEndpointAdminOverride(t *testing.T) {
	store := storeWithService()
	store.bookings["bk-1"] = model.Booking{
		ID:         "bk-1",
		ClientID:   "cli-1",
		ProviderID: "adm-1",
		Status:     model.StatusPending,
	}
	mux := newTestMux(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/provider/bookings/confirm", strings.NewReader(`{"booking_id":"bk-1"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "adm-1", "admin"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestCancelByOtherClientForbidden(t *testing.T) {
	store := storeWithService()
	store.bookings["bk-1"] = model.Booking{
		ID:         "bk-1",
		ClientID:   "cli-1",
		ProviderID: "prov-1",
		Status:     model.StatusPending,
	}
	mux := newTestMux(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/cancel", strings.NewReader(`{"booking_id":"bk-1"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "cli-2", "client"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403; body %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "permission_denied" {
		t.Fatalf("code = %q, want permission_denied", resp.Code)
	}
}

func TestSlotsMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, storeWithService())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/slots", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
