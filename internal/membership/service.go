package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, reg Registration) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error)
	LookupByNFC(ctx context.Context, cardID string) (*User, error)
	CreateLibrarian(ctx context.Context, name, email, password string) (*User, error)
}
