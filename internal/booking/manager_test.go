package booking

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/availability"
	"github.com/smartpro-app/smartpro-backend/internal/model"
)

type fakeStore struct {
	services map[string]model.Service
	bookings map[string]model.Booking
	busy     []availability.Interval

	created     []model.Booking
	transitions []string
}

func (f *fakeStore) Service(_ context.Context, id string) (model.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return model.Service{}, apperr.New(apperr.KindNotFound, "service not found")
	}
	return svc, nil
}

func (f *fakeStore) BookedIntervals(_ context.Context, _ string, _ time.Time) ([]availability.Interval, error) {
	return f.busy, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b *model.Booking) error {
	b.ID = "bk-new"
	f.created = append(f.created, *b)
	return nil
}

func (f *fakeStore) Booking(_ context.Context, id string) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, apperr.New(apperr.KindNotFound, "booking not found")
	}
	return b, nil
}

func (f *fakeStore) TransitionBooking(_ context.Context, id string, to model.Status, filter model.TransitionFilter, eventType string) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	if filter.ClientID != "" && filter.ClientID != b.ClientID {
		return model.Booking{}, pgx.ErrNoRows
	}
	if filter.ProviderID != "" && filter.ProviderID != b.ProviderID {
		return model.Booking{}, pgx.ErrNoRows
	}
	if len(filter.From) > 0 {
		matched := false
		for _, st := range filter.From {
			if b.Status == st {
				matched = true
			}
		}
		if !matched {
			return model.Booking{}, pgx.ErrNoRows
		}
	}
	b.Status = to
	f.bookings[id] = b
	f.transitions = append(f.transitions, eventType)
	return b, nil
}

var testDate = time.Date(2026, time.September, 14, 0, 0, 0, 0, time.UTC)

func slotAt(h, m int) time.Time {
	return time.Date(2026, time.September, 14, h, m, 0, 0, time.UTC)
}

func newTestManager(store Store) *Manager {
	m := NewManager(store, slog.New(slog.DiscardHandler), Config{})
	// Pin the clock well before the test date so no slots are skipped.
	m.now = func() time.Time { return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC) }
	return m
}

func activeService() model.Service {
	return model.Service{
		ID:           "svc-1",
		ProviderID:   "prov-1",
		Name:         "Deep Clean",
		DurationMins: 30,
		Active:       true,
	}
}

func TestAvailableSlotsExcludesBooked(t *testing.T) {
	store := &fakeStore{
		services: map[string]model.Service{"svc-1": activeService()},
		busy:     []availability.Interval{{Start: slotAt(10, 0), End: slotAt(10, 30)}},
	}
	m := newTestManager(store)

	slots, err := m.AvailableSlots(context.Background(), "svc-1", testDate)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("got %d slots, want 15", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(slotAt(10, 0)) {
			t.Fatalf("booked slot 10:00 still offered")
		}
	}
}

func TestAvailableSlotsUnknownService(t *testing.T) {
	m := newTestManager(&fakeStore{services: map[string]model.Service{}})

	_, err := m.AvailableSlots(context.Background(), "nope", testDate)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not_found", err)
	}
}

func TestAvailableSlotsInactiveService(t *testing.T) {
	svc := activeService()
	svc.Active = false
	m := newTestManager(&fakeStore{services: map[string]model.Service{"svc-1": svc}})

	_, err := m.AvailableSlots(context.Background(), "svc-1", testDate)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not_found", err)
	}
}

func TestAvailableSlotsRejectsBadDuration(t *testing.T) {
	svc := activeService()
	svc.DurationMins = 0
	m := newTestManager(&fakeStore{services: map[string]model.Service{"svc-1": svc}})

	_, err := m.AvailableSlots(context.Background(), "svc-1", testDate)
	if !apperr.IsKind(err, apperr.KindInvalidService) {
		t.Fatalf("got %v, want invalid_service_configuration", err)
	}
}

func TestCreatePendingBooking(t *testing.T) {
	store := &fakeStore{services: map[string]model.Service{"svc-1": activeService()}}
	m := newTestManager(store)

	b, err := m.Create(context.Background(), "cli-1", "svc-1", testDate, slotAt(11, 0), "gate code 4411")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
	if !b.EndTime.Equal(slotAt(11, 30)) {
		t.Fatalf("end = %v, want 11:30", b.EndTime)
	}
	if !b.BookingDate.Equal(testDate) {
		t.Fatalf("booking date = %v, want midnight UTC", b.BookingDate)
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d rows, want 1", len(store.created))
	}
}

func TestCreateRequiresAuth(t *testing.T) {
	m := newTestManager(&fakeStore{services: map[string]model.Service{"svc-1": activeService()}})

	_, err := m.Create(context.Background(), "", "svc-1", testDate, slotAt(11, 0), "")
	if !apperr.IsKind(err, apperr.KindAuthRequired) {
		t.Fatalf("got %v, want authentication_required", err)
	}
}

func TestCreateRejectsTakenSlot(t *testing.T) {
	store := &fakeStore{
		services: map[string]model.Service{"svc-1": activeService()},
		busy:     []availability.Interval{{Start: slotAt(11, 0), End: slotAt(11, 30)}},
	}
	m := newTestManager(store)

	_, err := m.Create(context.Background(), "cli-1", "svc-1", testDate, slotAt(11, 0), "")
	if !apperr.IsKind(err, apperr.KindSlotUnavailable) {
		t.Fatalf("got %v, want slot_unavailable", err)
	}
}

func TestCreateAllowsBackToBack(t *testing.T) {
	store := &fakeStore{
		services: map[string]model.Service{"svc-1": activeService()},
		busy:     []availability.Interval{{Start: slotAt(10, 30), End: slotAt(11, 0)}},
	}
	m := newTestManager(store)

	if _, err := m.Create(context.Background(), "cli-1", "svc-1", testDate, slotAt(11, 0), ""); err != nil {
		t.Fatalf("back-to-back booking rejected: %v", err)
	}
}

func TestCreateRejectsOutsideHours(t *testing.T) {
	m := newTestManager(&fakeStore{services: map[string]model.Service{"svc-1": activeService()}})

	for _, start := range []time.Time{slotAt(8, 30), slotAt(16, 45), slotAt(17, 0)} {
		if _, err := m.Create(context.Background(), "cli-1", "svc-1", testDate, start, ""); !apperr.IsKind(err, apperr.KindSlotUnavailable) {
			t.Fatalf("start %v: got %v, want slot_unavailable", start, err)
		}
	}
}

func TestCreateRejectsOffGridStart(t *testing.T) {
	m := newTestManager(&fakeStore{services: map[string]model.Service{"svc-1": activeService()}})

	_, err := m.Create(context.Background(), "cli-1", "svc-1", testDate, slotAt(11, 10), "")
	if !apperr.IsKind(err, apperr.KindSlotUnavailable) {
		t.Fatalf("got %v, want slot_unavailable", err)
	}
}

func pendingBooking() model.Booking {
	return model.Booking{
		ID:          "bk-1",
		ClientID:    "cli-1",
		ProviderID:  "prov-1",
		ServiceID:   "svc-1",
		BookingDate: testDate,
		StartTime:   slotAt(11, 0),
		EndTime:     slotAt(11, 30),
		Status:      model.StatusPending,
	}
}

func TestCancelByOwner(t *testing.T) {
	store := &fakeStore{bookings: map[string]model.Booking{"bk-1": pendingBooking()}}
	m := newTestManager(store)

	b, err := m.Cancel(context.Background(), "bk-1", "cli-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if b.Status != model.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", b.Status)
	}
	if len(store.transitions) != 1 || store.transitions[0] != "booking.cancelled.v1" {
		t.Fatalf("events = %v, want [booking.cancelled.v1]", store.transitions)
	}
}

func TestCancelByOtherClient(t *testing.T) {
	store := &fakeStore{bookings: map[string]model.Booking{"bk-1": pendingBooking()}}
	m := newTestManager(store)

	_, err := m.Cancel(context.Background(), "bk-1", "cli-2")
	if !apperr.IsKind(err, apperr.KindPermissionDenied) {
		t.Fatalf("got %v, want permission_denied", err)
	}
	if got := store.bookings["bk-1"].Status; got != model.StatusPending {
		t.Fatalf("booking mutated to %s", got)
	}
}

func TestCancelCompletedBooking(t *testing.T) {
	b := pendingBooking()
	b.Status = model.StatusCompleted
	m := newTestManager(&fakeStore{bookings: map[string]model.Booking{"bk-1": b}})

	_, err := m.Cancel(context.Background(), "bk-1", "cli-1")
	if !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("got %v, want invalid_transition", err)
	}
}

func TestCancelMissingBooking(t *testing.T) {
	m := newTestManager(&fakeStore{bookings: map[string]model.Booking{}})

	_, err := m.Cancel(context.Background(), "bk-1", "cli-1")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not_found", err)
	}
}

func TestConfirmPendingBooking(t *testing.T) {
	store := &fakeStore{bookings: map[string]model.Booking{"bk-1": pendingBooking()}}
	m := newTestManager(store)

	b, err := m.Confirm(context.Background(), "bk-1", "prov-1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", b.Status)
	}
}

func TestConfirmByOtherProvider(t *testing.T) {
	m := newTestManager(&fakeStore{bookings: map[string]model.Booking{"bk-1": pendingBooking()}})

	_, err := m.Confirm(context.Background(), "bk-1", "prov-2")
	if !apperr.IsKind(err, apperr.KindPermissionDenied) {
		t.Fatalf("got %v, want permission_denied", err)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	store := &fakeStore{bookings: map[string]model.Booking{"bk-1": pendingBooking()}}
	m := newTestManager(store)

	if _, err := m.Complete(context.Background(), "bk-1", "prov-1"); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("got %v, want invalid_transition", err)
	}

	if _, err := m.Confirm(context.Background(), "bk-1", "prov-1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	b, err := m.Complete(context.Background(), "bk-1", "prov-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if b.Status != model.StatusCompleted {
		t.Fatalf("status = %s, want completed", b.Status)
	}
}

type racingStore struct {
	fakeStore
}

func (r *racingStore) TransitionBooking(_ context.Context, _ string, _ model.Status, _ model.TransitionFilter, _ string) (model.Booking, error) {
	return model.Booking{}, pgx.ErrNoRows
}

func TestCancelLosesRace(t *testing.T) {
	store := &racingStore{fakeStore{bookings: map[string]model.Booking{"bk-1": pendingBooking()}}}
	m := newTestManager(store)

	_, err := m.Cancel(context.Background(), "bk-1", "cli-1")
	if !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("got %v, want invalid_transition", err)
	}
}
