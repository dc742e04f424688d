package engagement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"unilib/internal/postgres"
)

var (
	ErrComplaintNotFound = errors.New("complaint not found")
	ErrDemandNotFound    = errors.New("sndl demand not found")
	ErrDemandDecided     = errors.New("sndl demand already decided")
	ErrDuplicateDemand   = errors.New("a pending sndl demand already exists for this user")
)

// service implements the Service interface.
type service struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewService creates a new engagement service instance.
func NewService(db *sqlx.DB, logger zerolog.Logger) Service {
	return &service{
		db:     db,
		logger: logger.With().Str("component", "engagement").Logger(),
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

// CreateComplaint files a complaint in OPEN state.
func (s *service) CreateComplaint(ctx context.Context, userID uuid.UUID, subject, body string) (*Complaint, error) {
	complaint := &Complaint{
		ID:        uuid.New(),
		UserID:    userID,
		Subject:   subject,
		Body:      body,
		Status:    ComplaintOpen,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO complaints (id, user_id, subject, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, complaint.ID, complaint.UserID, complaint.Subject, complaint.Body, complaint.Status, complaint.CreatedAt, complaint.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	return complaint, nil
}

// ListComplaints returns complaints, optionally filtered by status.
func (s *service) ListComplaints(ctx context.Context, status string, limit, offset int) ([]*Complaint, error) {
	var complaints []*Complaint
	var err error
	if status != "" {
		err = s.db.SelectContext(ctx, &complaints, `
			SELECT id, user_id, subject, body, status, created_at, updated_at
			FROM complaints WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, status, clampLimit(limit), max(offset, 0))
	} else {
		err = s.db.SelectContext(ctx, &complaints, `
			SELECT id, user_id, subject, body, status, created_at, updated_at
			FROM complaints ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, clampLimit(limit), max(offset, 0))
	}
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// ResolveComplaint marks a complaint RESOLVED.
func (s *service) ResolveComplaint(ctx context.Context, id uuid.UUID) (*Complaint, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE complaints SET status = $1, updated_at = NOW() WHERE id = $2
	`, ComplaintResolved, id)
	if err != nil {
		return nil, fmt.Errorf("resolve complaint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrComplaintNotFound
	}

	var complaint Complaint
	err = s.db.GetContext(ctx, &complaint, `
		SELECT id, user_id, subject, body, status, created_at, updated_at FROM complaints WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query complaint: %w", err)
	}
	return &complaint, nil
}

// CreateIdea records a suggestion.
func (s *service) CreateIdea(ctx context.Context, userID uuid.UUID, title, body string) (*Idea, error) {
	idea := &Idea{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ideas (id, user_id, title, body, created_at) VALUES ($1, $2, $3, $4, $5)
	`, idea.ID, idea.UserID, idea.Title, idea.Body, idea.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert idea: %w", err)
	}
	return idea, nil
}

// ListIdeas returns ideas newest first.
func (s *service) ListIdeas(ctx context.Context, limit, offset int) ([]*Idea, error) {
	var ideas []*Idea
	err := s.db.SelectContext(ctx, &ideas, `
		SELECT id, user_id, title, body, created_at FROM ideas ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	return ideas, nil
}

// CreateDemand opens an SNDL access demand. One pending demand per user.
func (s *service) CreateDemand(ctx context.Context, userID uuid.UUID, email string) (*SNDLDemand, error) {
	var pending bool
	err := s.db.GetContext(ctx, &pending, `
		SELECT EXISTS (SELECT 1 FROM sndl_demands WHERE user_id = $1 AND status = $2)
	`, userID, DemandPending)
	if err != nil {
		return nil, fmt.Errorf("check pending demand: %w", err)
	}
	if pending {
		return nil, ErrDuplicateDemand
	}

	demand := &SNDLDemand{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		Status:    DemandPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sndl_demands (id, user_id, email, status, created_at) VALUES ($1, $2, $3, $4, $5)
	`, demand.ID, demand.UserID, demand.Email, demand.Status, demand.CreatedAt)
	if err != nil {
		// A concurrent submission may slip past the EXISTS check; the
		// partial unique index settles it.
		if postgres.IsUniqueViolation(err) {
			return nil, ErrDuplicateDemand
		}
		return nil, fmt.Errorf("insert demand: %w", err)
	}
	return demand, nil
}

// ListDemands returns demands, optionally filtered by status.
func (s *service) ListDemands(ctx context.Context, status string, limit, offset int) ([]*SNDLDemand, error) {
	var demands []*SNDLDemand
	var err error
	if status != "" {
		err = s.db.SelectContext(ctx, &demands, `
			SELECT id, user_id, email, status, decided_by, decided_at, created_at
			FROM sndl_demands WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, status, clampLimit(limit), max(offset, 0))
	} else {
		err = s.db.SelectContext(ctx, &demands, `
			SELECT id, user_id, email, status, decided_by, decided_at, created_at
			FROM sndl_demands ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, clampLimit(limit), max(offset, 0))
	}
	if err != nil {
		return nil, fmt.Errorf("list demands: %w", err)
	}
	return demands, nil
}

// DecideDemand approves or rejects a pending demand. The conditional update
// keeps a demand from being decided twice.
func (s *service) DecideDemand(ctx context.Context, id, decidedBy uuid.UUID, approve bool) (*SNDLDemand, error) {
	status := DemandRejected
	if approve {
		status = DemandApproved
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sndl_demands SET status = $1, decided_by = $2, decided_at = NOW()
		WHERE id = $3 AND status = $4
	`, status, decidedBy, id, DemandPending)
	if err != nil {
		return nil, fmt.Errorf("decide demand: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var demand SNDLDemand
		err := s.db.GetContext(ctx, &demand, `
			SELECT id, user_id, email, status, decided_by, decided_at, created_at FROM sndl_demands WHERE id = $1
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDemandNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("query demand: %w", err)
		}
		return nil, ErrDemandDecided
	}

	s.logger.Info().Str("demand_id", id.String()).Str("status", status).Msg("sndl demand decided")

	var demand SNDLDemand
	err = s.db.GetContext(ctx, &demand, `
		SELECT id, user_id, email, status, decided_by, decided_at, created_at FROM sndl_demands WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query demand: %w", err)
	}
	return &demand, nil
}
