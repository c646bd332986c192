package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an article cannot be located.
var ErrNotFound = errors.New("article not found")

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

// Article is a knowledge base entry. Body holds sanitized HTML.
type Article struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Summary    string    `db:"summary" json:"summary"`
	Body       string    `db:"body" json:"body"`
	Category   string    `db:"category" json:"category"`
	Tags       []string  `db:"-" json:"tags"`
	Author     string    `db:"author" json:"author"`
	ReadMinute int       `db:"read_minutes" json:"readMinutes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// CreateInput captures the data needed to publish an article.
type CreateInput struct {
	Title    string
	Summary  string
	Body     string
	Category string
	Tags     []string
	Author   string
}

// ListOptions describes filters for listing articles.
type ListOptions struct {
	Category *string
	Query    *string
	Limit    *int
}

// Repository defines persistence operations for articles.
type Repository interface {
	Create(ctx context.Context, article Article) (Article, error)
	Get(ctx context.Context, id uuid.UUID) (Article, error)
	List(ctx context.Context, opts ListOptions) ([]Article, error)
}
