package engagement

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the engagement service.
type Service interface {
	CreateComplaint(ctx context.Context, userID uuid.UUID, subject, body string) (*Complaint, error)
	ListComplaints(ctx context.Context, status string, limit, offset int) ([]*Complaint, error)
	ResolveComplaint(ctx context.Context, id uuid.UUID) (*Complaint, error)

	CreateIdea(ctx context.Context, userID uuid.UUID, title, body string) (*Idea, error)
	ListIdeas(ctx context.Context, limit, offset int) ([]*Idea, error)

	CreateDemand(ctx context.Context, userID uuid.UUID, email string) (*SNDLDemand, error)
	ListDemands(ctx context.Context, status string, limit, offset int) ([]*SNDLDemand, error)
	DecideDemand(ctx context.Context, id, decidedBy uuid.UUID, approve bool) (*SNDLDemand, error)
}
