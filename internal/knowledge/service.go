package knowledge

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxTitleLength   = 200
	maxSummaryLength = 500
	maxBodyLength    = 200000
	maxTags          = 10

	wordsPerMinute = 200
)

// Service orchestrates validation, sanitization, and persistence for the
// knowledge base.
type Service struct {
	repo      Repository
	sanitizer *bluemonday.Policy
}

// NewService wires a Service with the provided repository. Article bodies are
// sanitized with a UGC policy before they are stored.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Create validates, sanitizes, and persists a new article.
func (s *Service) Create(ctx context.Context, input CreateInput) (Article, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Article{}, &ValidationError{Message: "title is required"}
	}
	if len(title) > maxTitleLength {
		return Article{}, &ValidationError{Message: fmt.Sprintf("title too long (max %d characters)", maxTitleLength)}
	}
	summary := strings.TrimSpace(input.Summary)
	if len(summary) > maxSummaryLength {
		return Article{}, &ValidationError{Message: "summary too long"}
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return Article{}, &ValidationError{Message: "body is required"}
	}
	if len(body) > maxBodyLength {
		return Article{}, &ValidationError{Message: "body too long"}
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return Article{}, &ValidationError{Message: "category is required"}
	}
	if len(input.Tags) > maxTags {
		return Article{}, &ValidationError{Message: fmt.Sprintf("too many tags (max %d)", maxTags)}
	}

	sanitized := s.sanitizer.Sanitize(body)

	now := time.Now().UTC()
	article := Article{
		ID:         uuid.New(),
		Title:      title,
		Summary:    s.sanitizer.Sanitize(summary),
		Body:       sanitized,
		Category:   strings.ToLower(category),
		Tags:       normalizeTags(input.Tags),
		Author:     strings.TrimSpace(input.Author),
		ReadMinute: ReadMinutes(sanitized),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return s.repo.Create(ctx, article)
}

// Get returns a single article by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Article, error) {
	return s.repo.Get(ctx, id)
}

// List returns articles ordered by creation date descending.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Article, error) {
	list, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(list, func(a, b Article) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list, nil
}

// ReadMinutes estimates reading time from the word count, with a floor of
// one minute.
func ReadMinutes(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
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
