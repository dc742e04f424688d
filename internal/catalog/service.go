package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	CreateBook(ctx context.Context, input BookInput) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, input BookInput) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context, filter Filter) ([]*Book, error)
	Search(ctx context.Context, query string, limit int) ([]*Book, error)

	CreateCategory(ctx context.Context, name string) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	AssignCategories(ctx context.Context, bookID uuid.UUID, categoryIDs []uuid.UUID) error

	// Invalidate drops a book from the read cache. The circulation service
	// calls it after flipping availability.
	Invalidate(id uuid.UUID)
}
