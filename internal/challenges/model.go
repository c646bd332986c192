package challenges

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a challenge cannot be located.
var ErrNotFound = errors.New("challenge not found")

// ErrValidation is returned when input validation fails.
var ErrValidation = errors.New("validation error")

// ValidationError wraps a validation message so callers can distinguish
// client errors from internal failures.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Category enumerates the CTF challenge categories.
type Category string

const (
	CategoryWeb           Category = "web"
	CategoryCrypto        Category = "crypto"
	CategoryOSINT         Category = "osint"
	CategorySteganography Category = "steganography"
	CategoryReverse       Category = "reverse-engineering"
	CategoryForensics     Category = "forensics"
	CategoryPwn           Category = "pwn"
	CategoryProgramming   Category = "programming"
	CategoryNetwork       Category = "network"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryWeb,
	CategoryCrypto,
	CategoryOSINT,
	CategorySteganography,
	CategoryReverse,
	CategoryForensics,
	CategoryPwn,
	CategoryProgramming,
	CategoryNetwork,
}

// ValidCategory reports whether the value is a known category.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Difficulty grades a challenge.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// ValidDifficulty reports whether the value is a known difficulty.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

// Challenge represents a CTF task. The flag is stored only as a SHA-256 hash
// and never serialized.
type Challenge struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Category    Category   `db:"category" json:"category"`
	Difficulty  Difficulty `db:"difficulty" json:"difficulty"`
	Points      int        `db:"points" json:"points"`
	Tags        []string   `db:"-" json:"tags"`
	FlagHash    string     `db:"flag_hash" json:"-"`
	SolvedBy    int        `db:"solved_by" json:"solvedBy"`
	TimeLimit   *int       `db:"time_limit" json:"timeLimit,omitempty"`
	DownloadURL string     `db:"download_url" json:"downloadUrl,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// CreateInput captures the data needed to publish a new challenge.
type CreateInput struct {
	Title       string
	Description string
	Category    Category
	Difficulty  Difficulty
	Points      int
	Tags        []string
	Flag        string
	TimeLimit   *int
	DownloadURL string
}

// ListOptions describes filters for listing challenges.
type ListOptions struct {
	Category   *Category
	Difficulty *Difficulty
	Query      *string
	Limit      *int
}

// Solve records that a user captured a challenge's flag.
type Solve struct {
	ChallengeID uuid.UUID `db:"challenge_id"`
	UserID      uuid.UUID `db:"user_id"`
	SolvedAt    time.Time `db:"solved_at"`
}

// Repository defines persistence operations for challenges and solves.
type Repository interface {
	Create(ctx context.Context, challenge Challenge) (Challenge, error)
	Get(ctx context.Context, id uuid.UUID) (Challenge, error)
	List(ctx context.Context, opts ListOptions) ([]Challenge, error)
	// RecordSolve stores a solve and bumps the solve counter. It reports
	// false without error when the user already solved the challenge.
	RecordSolve(ctx context.Context, solve Solve) (bool, error)
	HasSolved(ctx context.Context, challengeID, userID uuid.UUID) (bool, error)
}
