// Package booking implements the appointment lifecycle: slot
// availability for a provider's service on a date, creation of pending
// bookings, and the status transitions clients and providers may apply.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/availability"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/internal/outbox"
	"github.com/smartpro-app/smartpro-backend/internal/storage"
)

// Store is the record-store surface the manager needs. Implemented by
// storage.Store; tests substitute fakes.
type Store interface {
	Service(ctx context.Context, id string) (model.Service, error)
	BookedIntervals(ctx context.Context, providerID string, date time.Time) ([]availability.Interval, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	Booking(ctx context.Context, id string) (model.Booking, error)
	TransitionBooking(ctx context.Context, id string, to model.Status, filter model.TransitionFilter, eventType string) (model.Booking, error)
}

// Hours is the daily business-hours window as offsets from midnight.
type Hours struct {
	Open  time.Duration
	Close time.Duration
}

type Config struct {
	Hours       Hours
	Step        time.Duration // slot grid interval
	CallTimeout time.Duration // bound on each record-store round trip
}

type Manager struct {
	store   Store
	logger  *slog.Logger
	hours   Hours
	step    time.Duration
	timeout time.Duration
	now     func() time.Time
}

func NewManager(store Store, logger *slog.Logger, cfg Config) *Manager {
	if cfg.Hours.Close <= cfg.Hours.Open {
		cfg.Hours = Hours{Open: 9 * time.Hour, Close: 17 * time.Hour}
	}
	if cfg.Step <= 0 {
		cfg.Step = 30 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Manager{
		store:   store,
		logger:  logger,
		hours:   cfg.Hours,
		step:    cfg.Step,
		timeout: cfg.CallTimeout,
		now:     time.Now,
	}
}

func (m *Manager) window(date time.Time) (time.Time, time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(m.hours.Open), day.Add(m.hours.Close)
}

// AvailableSlots enumerates the free slots for a service on a date.
// The result is recomputed from the current booking set on every call;
// a fully booked day is an empty list, not an error.
func (m *Manager) AvailableSlots(ctx context.Context, serviceID string, date time.Time) ([]availability.Slot, error) {
	svc, err := m.resolveService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	busy, err := m.store.BookedIntervals(callCtx, svc.ProviderID, date)
	if err != nil {
		return nil, err
	}

	open, close := m.window(date)
	duration := time.Duration(svc.DurationMins) * time.Minute
	return availability.Slots(open, close, duration, m.step, busy, m.now().UTC()), nil
}

// Create inserts a pending booking for the given slot start. The end
// time is computed here from the service's current duration and frozen
// on the row. The conflict check runs again immediately before insert;
// the storage-level unique index settles any race the check misses.
func (m *Manager) Create(ctx context.Context, clientID, serviceID string, date, start time.Time, notes string) (model.Booking, error) {
	if clientID == "" {
		return model.Booking{}, apperr.New(apperr.KindAuthRequired, "sign in to book a service")
	}

	svc, err := m.resolveService(ctx, serviceID)
	if err != nil {
		return model.Booking{}, err
	}

	open, close := m.window(date)
	duration := time.Duration(svc.DurationMins) * time.Minute
	end := start.Add(duration)

	if start.Before(open) || end.After(close) {
		return model.Booking{}, apperr.New(apperr.KindSlotUnavailable, "time slot is outside business hours")
	}
	if start.Sub(open)%m.step != 0 {
		return model.Booking{}, apperr.New(apperr.KindSlotUnavailable, "time slot does not match the booking grid")
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	busy, err := m.store.BookedIntervals(callCtx, svc.ProviderID, date)
	cancel()
	if err != nil {
		return model.Booking{}, err
	}
	if availability.OverlapsAny(start, end, busy) {
		return model.Booking{}, apperr.New(apperr.KindSlotUnavailable, "time slot is no longer available")
	}

	b := model.Booking{
		ClientID:    clientID,
		ProviderID:  svc.ProviderID,
		ServiceID:   svc.ID,
		BookingDate: time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:   start,
		EndTime:     end,
		Status:      model.StatusPending,
		Notes:       notes,
	}

	callCtx, cancel = context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.store.CreateBooking(callCtx, &b); err != nil {
		return model.Booking{}, err
	}
	m.logger.Info("booking created",
		"booking_id", b.ID,
		"provider_id", b.ProviderID,
		"service_id", b.ServiceID,
		"start", b.StartTime,
	)
	return b, nil
}

// Cancel sets a booking to cancelled on behalf of the client who owns
// it. Cancellation is a status change; rows are never deleted.
func (m *Manager) Cancel(ctx context.Context, bookingID, clientID string) (model.Booking, error) {
	if clientID == "" {
		return model.Booking{}, apperr.New(apperr.KindAuthRequired, "sign in to manage bookings")
	}

	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.ClientID != clientID {
		return model.Booking{}, apperr.New(apperr.KindPermissionDenied, "bookings can only be cancelled by the client who made them")
	}
	if !model.CanTransition(b.Status, model.StatusCancelled) {
		return model.Booking{}, apperr.Newf(apperr.KindInvalidTransition, "a %s booking cannot be cancelled", b.Status)
	}

	return m.transition(ctx, bookingID, model.StatusCancelled, model.TransitionFilter{
		ClientID: clientID,
		From:     []model.Status{model.StatusPending, model.StatusConfirmed},
	}, outbox.EventBookingCancelled)
}

// Confirm is the provider accepting a pending booking.
func (m *Manager) Confirm(ctx context.Context, bookingID, providerID string) (model.Booking, error) {
	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.ProviderID != providerID {
		return model.Booking{}, apperr.New(apperr.KindPermissionDenied, "bookings can only be confirmed by their provider")
	}
	if !model.CanTransition(b.Status, model.StatusConfirmed) {
		return model.Booking{}, apperr.Newf(apperr.KindInvalidTransition, "a %s booking cannot be confirmed", b.Status)
	}

	return m.transition(ctx, bookingID, model.StatusConfirmed, model.TransitionFilter{
		ProviderID: providerID,
		From:       []model.Status{model.StatusPending},
	}, outbox.EventBookingConfirmed)
}

// Complete marks a confirmed booking as done.
func (m *Manager) Complete(ctx context.Context, bookingID, providerID string) (model.Booking, error) {
	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.ProviderID != providerID {
		return model.Booking{}, apperr.New(apperr.KindPermissionDenied, "bookings can only be completed by their provider")
	}
	if !model.CanTransition(b.Status, model.StatusCompleted) {
		return model.Booking{}, apperr.Newf(apperr.KindInvalidTransition, "a %s booking cannot be completed", b.Status)
	}

	return m.transition(ctx, bookingID, model.StatusCompleted, model.TransitionFilter{
		ProviderID: providerID,
		From:       []model.Status{model.StatusConfirmed},
	}, outbox.EventBookingCompleted)
}

func (m *Manager) resolveService(ctx context.Context, serviceID string) (model.Service, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	svc, err := m.store.Service(callCtx, serviceID)
	if err != nil {
		return model.Service{}, err
	}
	if svc.DurationMins <= 0 {
		return model.Service{}, apperr.New(apperr.KindInvalidService, "service has a non-positive duration")
	}
	if !svc.Active {
		return model.Service{}, apperr.New(apperr.KindNotFound, "service is not available")
	}
	return svc, nil
}

func (m *Manager) getBooking(ctx context.Context, id string) (model.Booking, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.Booking(callCtx, id)
}

func (m *Manager) transition(ctx context.Context, id string, to model.Status, filter model.TransitionFilter, eventType string) (model.Booking, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	b, err := m.store.TransitionBooking(callCtx, id, to, filter, eventType)
	if storage.NoRowMatched(err) {
		// The row moved between our read and the guarded update.
		return model.Booking{}, apperr.New(apperr.KindInvalidTransition, "booking status changed, reload and try again")
	}
	if err != nil {
		return model.Booking{}, err
	}
	m.logger.Info("booking transitioned", "booking_id", b.ID, "status", b.Status)
	return b, nil
}
