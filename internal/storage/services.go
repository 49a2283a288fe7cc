package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/model"
)

func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	if svc.DurationMins <= 0 {
		return apperr.New(apperr.KindInvalidService, "service duration must be positive")
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO provider_services (id, provider_id, name, description, price, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		RETURNING created_at, updated_at
	`, svc.ID, svc.ProviderID, svc.Name, svc.Description, svc.Price, svc.DurationMins, svc.Active).
		Scan(&svc.CreatedAt, &svc.UpdatedAt)
	return classify(err, "")
}

// UpdateService rewrites a provider's service. Existing bookings keep
// the end times computed at creation; a duration change only affects
// future bookings.
func (s *Store) UpdateService(ctx context.Context, svc *model.Service) error {
	if svc.DurationMins <= 0 {
		return apperr.New(apperr.KindInvalidService, "service duration must be positive")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE provider_services
		SET name = $3,
			description = $4,
			price = $5::numeric,
			duration_minutes = $6,
			is_active = $7,
			updated_at = now()
		WHERE id = $1 AND provider_id = $2
	`, svc.ID, svc.ProviderID, svc.Name, svc.Description, svc.Price, svc.DurationMins, svc.Active)
	if err != nil {
		return classify(err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "service not found")
	}
	return nil
}

// DeactivateService hides a service from the catalog without touching
// its bookings. The ownership filter is part of the statement.
func (s *Store) DeactivateService(ctx context.Context, serviceID, providerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE provider_services
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND provider_id = $2
	`, serviceID, providerID)
	if err != nil {
		return classify(err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "service not found")
	}
	return nil
}

func (s *Store) Service(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, provider_id::text, name, description, price::text, duration_minutes, is_active, created_at, updated_at
		FROM provider_services
		WHERE id = $1
	`, id).Scan(
		&svc.ID,
		&svc.ProviderID,
		&svc.Name,
		&svc.Description,
		&svc.Price,
		&svc.DurationMins,
		&svc.Active,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		return model.Service{}, classify(err, "service not found")
	}
	return svc, nil
}

// ListActiveServices is the client-facing catalog: active services in
// name order, each with its provider summary.
func (s *Store) ListActiveServices(ctx context.Context, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT s.id::text, s.provider_id::text, s.name, s.description, s.price::text, s.duration_minutes, s.is_active,
			s.created_at, s.updated_at,
			trim(concat_ws(' ', p.first_name, p.last_name)), COALESCE(p.avatar_url, '')
		FROM provider_services s
		JOIN profiles p ON p.id = s.provider_id
		WHERE s.is_active = true
		ORDER BY s.name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		var providerName, avatarURL string
		if err := rows.Scan(
			&svc.ID,
			&svc.ProviderID,
			&svc.Name,
			&svc.Description,
			&svc.Price,
			&svc.DurationMins,
			&svc.Active,
			&svc.CreatedAt,
			&svc.UpdatedAt,
			&providerName,
			&avatarURL,
		); err != nil {
			return nil, classify(err, "")
		}
		svc.Provider = &model.ProviderSummary{ID: svc.ProviderID, FullName: providerName, AvatarURL: avatarURL}
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "")
	}
	return services, nil
}

// ListServicesByProvider returns a provider's own services, active or not.
func (s *Store) ListServicesByProvider(ctx context.Context, providerID string, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, provider_id::text, name, description, price::text, duration_minutes, is_active, created_at, updated_at
		FROM provider_services
		WHERE provider_id = $1
		ORDER BY name ASC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(
			&svc.ID,
			&svc.ProviderID,
			&svc.Name,
			&svc.Description,
			&svc.Price,
			&svc.DurationMins,
			&svc.Active,
			&svc.CreatedAt,
			&svc.UpdatedAt,
		); err != nil {
			return nil, classify(err, "")
		}
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "")
	}
	return services, nil
}
