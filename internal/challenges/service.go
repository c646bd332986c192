package challenges

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"cyberwhale/internal/profile"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 20000
	maxTags              = 10
	maxPoints            = 5000
)

// FlagMetrics counts flag submission outcomes.
type FlagMetrics interface {
	RecordFlagSubmission(outcome string)
}

type noopFlagMetrics struct{}

func (noopFlagMetrics) RecordFlagSubmission(string) {}

// Service orchestrates validation, persistence, and scoring for challenges.
type Service struct {
	repo     Repository
	profiles profile.Store
	metrics  FlagMetrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFlagMetrics wires a metrics sink for flag submissions.
func WithFlagMetrics(metrics FlagMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService wires a Service with the provided repository and profile store.
func NewService(repo Repository, profiles profile.Store, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, profiles: profiles, metrics: noopFlagMetrics{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and persists a new challenge.
func (s *Service) Create(ctx context.Context, input CreateInput) (Challenge, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Challenge{}, &ValidationError{Message: "title is required"}
	}
	if len(title) > maxTitleLength {
		return Challenge{}, &ValidationError{Message: fmt.Sprintf("title too long (max %d characters)", maxTitleLength)}
	}
	if len(input.Description) > maxDescriptionLength {
		return Challenge{}, &ValidationError{Message: "description too long"}
	}
	if !ValidCategory(input.Category) {
		return Challenge{}, &ValidationError{Message: "unknown category"}
	}
	if !ValidDifficulty(input.Difficulty) {
		return Challenge{}, &ValidationError{Message: "unknown difficulty"}
	}
	if input.Points <= 0 || input.Points > maxPoints {
		return Challenge{}, &ValidationError{Message: fmt.Sprintf("points must be between 1 and %d", maxPoints)}
	}
	flag := strings.TrimSpace(input.Flag)
	if flag == "" {
		return Challenge{}, &ValidationError{Message: "flag is required"}
	}
	if len(input.Tags) > maxTags {
		return Challenge{}, &ValidationError{Message: fmt.Sprintf("too many tags (max %d)", maxTags)}
	}
	if input.TimeLimit != nil && *input.TimeLimit <= 0 {
		return Challenge{}, &ValidationError{Message: "time limit must be positive"}
	}

	now := time.Now().UTC()
	challenge := Challenge{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Difficulty:  input.Difficulty,
		Points:      input.Points,
		Tags:        normalizeTags(input.Tags),
		FlagHash:    HashFlag(flag),
		TimeLimit:   input.TimeLimit,
		DownloadURL: strings.TrimSpace(input.DownloadURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return s.repo.Create(ctx, challenge)
}

// Get returns a single challenge by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Challenge, error) {
	return s.repo.Get(ctx, id)
}

// List returns challenges ordered by creation date descending.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Challenge, error) {
	if opts.Category != nil && !ValidCategory(*opts.Category) {
		return nil, &ValidationError{Message: "unknown category"}
	}
	if opts.Difficulty != nil && !ValidDifficulty(*opts.Difficulty) {
		return nil, &ValidationError{Message: "unknown difficulty"}
	}

	list, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(list, func(a, b Challenge) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list, nil
}

// SubmitResult describes the outcome of a flag submission.
type SubmitResult struct {
	Correct       bool `json:"correct"`
	AlreadySolved bool `json:"alreadySolved"`
	PointsAwarded int  `json:"pointsAwarded"`
}

// SubmitFlag checks a submitted flag and, on the first correct capture,
// records the solve and credits the challenge points to the user's profile.
func (s *Service) SubmitFlag(ctx context.Context, challengeID, userID uuid.UUID, flag string) (SubmitResult, error) {
	challenge, err := s.repo.Get(ctx, challengeID)
	if err != nil {
		return SubmitResult{}, err
	}

	submitted := HashFlag(strings.TrimSpace(flag))
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(challenge.FlagHash)) != 1 {
		s.metrics.RecordFlagSubmission("incorrect")
		return SubmitResult{Correct: false}, nil
	}

	recorded, err := s.repo.RecordSolve(ctx, Solve{
		ChallengeID: challengeID,
		UserID:      userID,
		SolvedAt:    time.Now().UTC(),
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("record solve: %w", err)
	}

	if !recorded {
		s.metrics.RecordFlagSubmission("repeat")
		return SubmitResult{Correct: true, AlreadySolved: true}, nil
	}

	if _, err := s.profiles.AddPoints(ctx, userID, challenge.Points); err != nil {
		// The solve is already on record; scoring catches up on the next
		// submission path that reads the profile. Report the failure.
		return SubmitResult{Correct: true, PointsAwarded: 0}, fmt.Errorf("award points: %w", err)
	}

	s.metrics.RecordFlagSubmission("correct")
	return SubmitResult{Correct: true, PointsAwarded: challenge.Points}, nil
}

// HasSolved reports whether the user already captured the challenge.
func (s *Service) HasSolved(ctx context.Context, challengeID, userID uuid.UUID) (bool, error) {
	return s.repo.HasSolved(ctx, challengeID, userID)
}

// HashFlag returns the canonical SHA-256 hex digest of a flag.
func HashFlag(flag string) string {
	sum := sha256.Sum256([]byte(flag))
	return hex.EncodeToString(sum[:])
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed != "" && !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}
