package storage

import (
	"context"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/model"
)

func (s *Store) Profile(ctx context.Context, id string) (model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
			role, COALESCE(avatar_url, ''), created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.Role,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return model.Profile{}, classify(err, "profile not found")
	}
	return p, nil
}

// UpdateProfile rewrites the caller's own display fields. Role changes
// go through the identity provider, never this path.
func (s *Store) UpdateProfile(ctx context.Context, id, firstName, lastName, avatarURL string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET first_name = $2, last_name = $3, avatar_url = $4, updated_at = now()
		WHERE id = $1
	`, id, firstName, lastName, avatarURL)
	if err != nil {
		return classify(err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "profile not found")
	}
	return nil
}
