package profile

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by mutations that target a missing profile row.
var ErrNotFound = errors.New("profile not found")

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Find looks up a profile by user id. A missing row is not an error.
func (s *PostgresStore) Find(ctx context.Context, id uuid.UUID) (Profile, bool, error) {
	const query = `
		SELECT id, username, avatar_url, points, level, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var p Profile
	if err := s.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}

	return p, true, nil
}

// Insert stores a new profile row. The upsert keeps a double-fire race on
// first login from failing with a duplicate-key error.
func (s *PostgresStore) Insert(ctx context.Context, p Profile) (Profile, error) {
	const query = `
		INSERT INTO profiles (id, username, avatar_url, points, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id, username, avatar_url, points, level, created_at, updated_at
	`

	var stored Profile
	err := s.db.GetContext(ctx, &stored, query,
		p.ID,
		p.Username,
		p.AvatarURL,
		p.Points,
		p.Level,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}

	return stored, nil
}

// Update writes the allowed editable fields and bumps updated_at.
func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, update Update) (Profile, error) {
	const query = `
		UPDATE profiles
		SET username = COALESCE($2, username),
		    avatar_url = COALESCE($3, avatar_url),
		    updated_at = $4
		WHERE id = $1
		RETURNING id, username, avatar_url, points, level, created_at, updated_at
	`

	var stored Profile
	err := s.db.GetContext(ctx, &stored, query, id, update.Username, update.AvatarURL, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}

	return stored, nil
}

// AddPoints increments the points balance and returns the updated row.
func (s *PostgresStore) AddPoints(ctx context.Context, id uuid.UUID, points int) (Profile, error) {
	const query = `
		UPDATE profiles
		SET points = points + $2, updated_at = $3
		WHERE id = $1
		RETURNING id, username, avatar_url, points, level, created_at, updated_at
	`

	var stored Profile
	err := s.db.GetContext(ctx, &stored, query, id, points, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}

	return stored, nil
}
