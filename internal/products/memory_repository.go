package products

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository serves the product catalog from an in-process map. The
// catalog is read-only at runtime and seeded at startup.
type InMemoryRepository struct {
	mu    sync.RWMutex
	data  map[uuid.UUID]Product
	order []uuid.UUID
}

// NewInMemoryRepository constructs a repository seeded with the given
// products.
func NewInMemoryRepository(initial []Product) *InMemoryRepository {
	data := make(map[uuid.UUID]Product, len(initial))
	order := make([]uuid.UUID, 0, len(initial))
	for _, product := range initial {
		data[product.ID] = product
		order = append(order, product.ID)
	}
	return &InMemoryRepository{data: data, order: order}
}

// Get returns a product by ID.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.data[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return product, nil
}

// List returns products matching the options in seed order.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Product, 0, len(r.order))
	for _, id := range r.order {
		product, ok := r.data[id]
		if !ok {
			continue
		}
		if opts.Kind != nil && product.Kind != *opts.Kind {
			continue
		}
		if opts.AvailableOnly && !product.Available {
			continue
		}
		list = append(list, product)
	}
	return list, nil
}
