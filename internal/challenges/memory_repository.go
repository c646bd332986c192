package challenges

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository stores challenges in an in-process map, ideal for local
// development or tests.
type InMemoryRepository struct {
	mu     sync.RWMutex
	data   map[uuid.UUID]Challenge
	order  []uuid.UUID
	solves map[uuid.UUID]map[uuid.UUID]Solve
}

// NewInMemoryRepository constructs a repository seeded with optional initial
// challenges.
func NewInMemoryRepository(initial []Challenge) *InMemoryRepository {
	data := make(map[uuid.UUID]Challenge)
	order := make([]uuid.UUID, 0, len(initial))
	for _, challenge := range initial {
		data[challenge.ID] = challenge
		order = append(order, challenge.ID)
	}
	return &InMemoryRepository{
		data:   data,
		order:  order,
		solves: make(map[uuid.UUID]map[uuid.UUID]Solve),
	}
}

// Create stores a new challenge.
func (r *InMemoryRepository) Create(_ context.Context, challenge Challenge) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[challenge.ID] = challenge
	r.order = append(r.order, challenge.ID)
	return challenge, nil
}

// Get returns a challenge by ID.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	challenge, ok := r.data[id]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return challenge, nil
}

// List returns stored challenges matching the options.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Challenge, 0, len(r.order))
	for _, id := range r.order {
		challenge, ok := r.data[id]
		if !ok {
			continue
		}
		if opts.Category != nil && challenge.Category != *opts.Category {
			continue
		}
		if opts.Difficulty != nil && challenge.Difficulty != *opts.Difficulty {
			continue
		}
		if opts.Query != nil && !matchesQuery(challenge, *opts.Query) {
			continue
		}
		list = append(list, challenge)
		if opts.Limit != nil && len(list) >= *opts.Limit {
			break
		}
	}
	return list, nil
}

// RecordSolve stores a solve and bumps the solve counter once per user.
func (r *InMemoryRepository) RecordSolve(_ context.Context, solve Solve) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.data[solve.ChallengeID]
	if !ok {
		return false, ErrNotFound
	}

	byUser, ok := r.solves[solve.ChallengeID]
	if !ok {
		byUser = make(map[uuid.UUID]Solve)
		r.solves[solve.ChallengeID] = byUser
	}
	if _, solved := byUser[solve.UserID]; solved {
		return false, nil
	}

	byUser[solve.UserID] = solve
	challenge.SolvedBy++
	r.data[solve.ChallengeID] = challenge
	return true, nil
}

// HasSolved reports whether the user has a recorded solve.
func (r *InMemoryRepository) HasSolved(_ context.Context, challengeID, userID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byUser, ok := r.solves[challengeID]
	if !ok {
		return false, nil
	}
	_, solved := byUser[userID]
	return solved, nil
}

func matchesQuery(challenge Challenge, query string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(challenge.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(challenge.Description), needle) {
		return true
	}
	for _, tag := range challenge.Tags {
		if strings.Contains(tag, needle) {
			return true
		}
	}
	return false
}
