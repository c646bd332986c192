package products

import (
	"context"

	"github.com/google/uuid"
)

// Service exposes the product catalog.
type Service struct {
	repo Repository
}

// NewService wires a Service with the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single product by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products matching the options.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	if opts.Kind != nil && !ValidKind(*opts.Kind) {
		return []Product{}, nil
	}
	return s.repo.List(ctx, opts)
}
