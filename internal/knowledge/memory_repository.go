package knowledge

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository stores articles in an in-process map, ideal for local
// development or tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	data  map[uuid.UUID]Article
	order []uuid.UUID
}

// NewInMemoryRepository constructs a repository seeded with optional initial
// articles.
func NewInMemoryRepository(initial []Article) *InMemoryRepository {
	data := make(map[uuid.UUID]Article)
	order := make([]uuid.UUID, 0, len(initial))
	for _, article := range initial {
		data[article.ID] = article
		order = append(order, article.ID)
	}
	return &InMemoryRepository{data: data, order: order}
}

// Create stores a new article.
func (r *InMemoryRepository) Create(_ context.Context, article Article) (Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[article.ID] = article
	r.order = append(r.order, article.ID)
	return article, nil
}

// Get returns an article by ID.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	article, ok := r.data[id]
	if !ok {
		return Article{}, ErrNotFound
	}
	return article, nil
}

// List returns stored articles matching the options.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Article, 0, len(r.order))
	for _, id := range r.order {
		article, ok := r.data[id]
		if !ok {
			continue
		}
		if opts.Category != nil && article.Category != strings.ToLower(*opts.Category) {
			continue
		}
		if opts.Query != nil && !matchesQuery(article, *opts.Query) {
			continue
		}
		list = append(list, article)
		if opts.Limit != nil && len(list) >= *opts.Limit {
			break
		}
	}
	return list, nil
}

func matchesQuery(article Article, query string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(article.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(article.Summary), needle) {
		return true
	}
	for _, tag := range article.Tags {
		if strings.Contains(tag, needle) {
			return true
		}
	}
	return false
}
