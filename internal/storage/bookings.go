package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/availability"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/internal/outbox"
)

// BookedIntervals returns only the start/end of a provider's
// non-cancelled bookings for a date. This is the availability read path
// and deliberately fetches nothing else.
func (s *Store) BookedIntervals(ctx context.Context, providerID string, date time.Time) ([]availability.Interval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE provider_id = $1
			AND booking_date = $2::date
			AND status <> 'cancelled'
		ORDER BY start_time ASC
	`, providerID, date)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()

	var intervals []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, classify(err, "")
		}
		intervals = append(intervals, iv)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "")
	}
	return intervals, nil
}

// CreateBooking inserts one pending row and its requested event in a
// single transaction. The partial unique index on
// (provider_id, booking_date, start_time) is the authority on slot
// exclusivity; losing that race surfaces as slot_unavailable.
func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err, "")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, client_id, provider_id, service_id, booking_date, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, b.ID, b.ClientID, b.ProviderID, b.ServiceID, b.BookingDate, b.StartTime, b.EndTime, b.Status, b.Notes).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if IsConflict(err) {
			return apperr.New(apperr.KindSlotUnavailable, "time slot is no longer available")
		}
		return classify(err, "")
	}

	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     outbox.EventBookingRequested,
		Payload:       bookingEventPayload(b),
	}); err != nil {
		return classify(err, "")
	}
	return classify(tx.Commit(ctx), "")
}

func (s *Store) Booking(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, client_id::text, provider_id::text, service_id::text,
			booking_date, start_time, end_time, status, notes, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(
		&b.ID,
		&b.ClientID,
		&b.ProviderID,
		&b.ServiceID,
		&b.BookingDate,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, classify(err, "booking not found")
	}
	return b, nil
}

// TransitionBooking applies a status change plus its lifecycle event in
// one transaction. The filter is baked into the UPDATE, so a row that
// changed owner or status since the caller looked at it simply does not
// match and pgx reports no rows.
func (s *Store) TransitionBooking(ctx context.Context, id string, to model.Status, filter model.TransitionFilter, eventType string) (model.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, classify(err, "")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1`
	args := []any{id, to}
	if len(filter.From) > 0 {
		from := make([]string, 0, len(filter.From))
		for _, st := range filter.From {
			from = append(from, string(st))
		}
		args = append(args, from)
		query += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		query += ` AND client_id = $` + strconv.Itoa(len(args))
	}
	if filter.ProviderID != "" {
		args = append(args, filter.ProviderID)
		query += ` AND provider_id = $` + strconv.Itoa(len(args))
	}
	query += `
		RETURNING id::text, client_id::text, provider_id::text, service_id::text,
			booking_date, start_time, end_time, status, notes, created_at, updated_at`

	var b model.Booking
	err = tx.QueryRow(ctx, query, args...).Scan(
		&b.ID,
		&b.ClientID,
		&b.ProviderID,
		&b.ServiceID,
		&b.BookingDate,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, pgx.ErrNoRows
		}
		return model.Booking{}, classify(err, "")
	}

	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       bookingEventPayload(&b),
	}); err != nil {
		return model.Booking{}, classify(err, "")
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, classify(err, "")
	}
	return b, nil
}

// NoRowMatched reports whether a TransitionBooking call found no row
// satisfying its filter.
func NoRowMatched(err error) bool {
	return IsNotFound(err)
}

// ListBookingsByClient returns a client's bookings, newest date first,
// earliest start first within a date, with joined service and provider
// summaries.
func (s *Store) ListBookingsByClient(ctx context.Context, clientID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT b.id::text, b.client_id::text, b.provider_id::text, b.service_id::text,
			b.booking_date, b.start_time, b.end_time, b.status, b.notes, b.created_at, b.updated_at,
			s.name, s.price::text, s.duration_minutes,
			trim(concat_ws(' ', p.first_name, p.last_name)), COALESCE(p.avatar_url, '')
		FROM bookings b
		JOIN provider_services s ON s.id = b.service_id
		JOIN profiles p ON p.id = b.provider_id
		WHERE b.client_id = $1
		ORDER BY b.booking_date DESC, b.start_time ASC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()
	return scanJoinedBookings(rows)
}

// ListBookingsByProvider feeds the provider dashboard.
func (s *Store) ListBookingsByProvider(ctx context.Context, providerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT b.id::text, b.client_id::text, b.provider_id::text, b.service_id::text,
			b.booking_date, b.start_time, b.end_time, b.status, b.notes, b.created_at, b.updated_at,
			s.name, s.price::text, s.duration_minutes,
			trim(concat_ws(' ', p.first_name, p.last_name)), COALESCE(p.avatar_url, '')
		FROM bookings b
		JOIN provider_services s ON s.id = b.service_id
		JOIN profiles p ON p.id = b.client_id
		WHERE b.provider_id = $1
		ORDER BY b.booking_date DESC, b.start_time ASC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()
	return scanJoinedBookings(rows)
}

func scanJoinedBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		var svc model.ServiceSummary
		var personName, avatarURL string
		if err := rows.Scan(
			&b.ID,
			&b.ClientID,
			&b.ProviderID,
			&b.ServiceID,
			&b.BookingDate,
			&b.StartTime,
			&b.EndTime,
			&b.Status,
			&b.Notes,
			&b.CreatedAt,
			&b.UpdatedAt,
			&svc.Name,
			&svc.Price,
			&svc.DurationMins,
			&personName,
			&avatarURL,
		); err != nil {
			return nil, classify(err, "")
		}
		b.Service = &svc
		b.Provider = &model.ProviderSummary{FullName: personName, AvatarURL: avatarURL}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "")
	}
	return bookings, nil
}

func bookingEventPayload(b *model.Booking) []byte {
	payload, err := json.Marshal(map[string]any{
		"booking_id":   b.ID,
		"client_id":    b.ClientID,
		"provider_id":  b.ProviderID,
		"service_id":   b.ServiceID,
		"booking_date": b.BookingDate.Format("2006-01-02"),
		"start_time":   b.StartTime.UTC().Format(time.RFC3339),
		"end_time":     b.EndTime.UTC().Format(time.RFC3339),
		"status":       b.Status,
	})
	if err != nil {
		return []byte("{}")
	}
	return payload
}

