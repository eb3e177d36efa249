package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oplai/backend/internal/cache"
	"github.com/oplai/backend/internal/models"
)

const profileCacheTTL = 5 * time.Minute

// ProfileService mirrors auth-provider users into the profiles table and
// serves the per-request profile lookup, with a short redis cache in front.
type ProfileService struct {
	db    *pgxpool.Pool
	cache *cache.Cache
}

func NewProfileService(db *pgxpool.Pool, c *cache.Cache) *ProfileService {
	return &ProfileService{db: db, cache: c}
}

// Ensure returns the profile for the authenticated user, creating the row
// on first sight of a new identity.
func (s *ProfileService) Ensure(ctx context.Context, id uuid.UUID, email, fullName, avatarURL string) (*models.Profile, error) {
	cacheKey := cache.ProfileKey(id.String())
	if s.cache != nil {
		var cached models.Profile
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	var p models.Profile
	err := s.db.QueryRow(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
		 RETURNING id, email, full_name, avatar_url, created_at`,
		id, email, fullName, avatarURL,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, p, profileCacheTTL)
	}
	return &p, nil
}

func (s *ProfileService) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRow(ctx,
		"SELECT id, email, full_name, avatar_url, created_at FROM profiles WHERE id = $1", id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}
