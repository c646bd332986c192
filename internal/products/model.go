package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a product cannot be located.
var ErrNotFound = errors.New("product not found")

// Product is a storefront entry: a course, tool license, or merchandise
// item offered on the platform.
type Product struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Kind        Kind      `db:"kind" json:"kind"`
	PriceCents  int       `db:"price_cents" json:"priceCents"`
	Currency    string    `db:"currency" json:"currency"`
	ImageURL    string    `db:"image_url" json:"imageUrl,omitempty"`
	Available   bool      `db:"available" json:"available"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Kind classifies what is being sold.
type Kind string

const (
	KindCourse       Kind = "course"
	KindTool         Kind = "tool"
	KindMerchandise  Kind = "merchandise"
	KindSubscription Kind = "subscription"
)

// ValidKind reports whether the value is a known product kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindCourse, KindTool, KindMerchandise, KindSubscription:
		return true
	}
	return false
}

// ListOptions describes filters for listing products.
type ListOptions struct {
	Kind          *Kind
	AvailableOnly bool
}

// Repository defines read operations over the product catalog.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	List(ctx context.Context, opts ListOptions) ([]Product, error)
}
