package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps profiles in an in-process map, ideal for local
// development or tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]Profile
}

// NewMemoryStore constructs a store seeded with optional initial profiles.
func NewMemoryStore(initial ...Profile) *MemoryStore {
	data := make(map[uuid.UUID]Profile, len(initial))
	for _, p := range initial {
		data[p.ID] = p
	}
	return &MemoryStore{data: data}
}

// Find looks up a profile by user id.
func (s *MemoryStore) Find(_ context.Context, id uuid.UUID) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[id]
	return p, ok, nil
}

// Insert stores a new profile row. An existing row wins, mirroring the
// Postgres upsert behavior under a first-login race.
func (s *MemoryStore) Insert(_ context.Context, p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[p.ID]; ok {
		return existing, nil
	}
	s.data[p.ID] = p
	return p, nil
}

// Update writes the allowed editable fields and bumps updated_at.
func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, update Update) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	if update.Username != nil {
		p.Username = *update.Username
	}
	if update.AvatarURL != nil {
		p.AvatarURL = *update.AvatarURL
	}
	p.UpdatedAt = time.Now().UTC()
	s.data[id] = p
	return p, nil
}

// AddPoints increments the points balance and returns the updated row.
func (s *MemoryStore) AddPoints(_ context.Context, id uuid.UUID, points int) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	p.Points += points
	p.UpdatedAt = time.Now().UTC()
	s.data[id] = p
	return p, nil
}
