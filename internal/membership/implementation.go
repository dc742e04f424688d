package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNFCCardTaken       = errors.New("nfc card already assigned")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// service implements the Service interface.
type service struct {
	db          *sqlx.DB
	logger      zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(db *sqlx.DB, logger zerolog.Logger) Service {
	return &service{
		db:          db,
		logger:      logger.With().Str("component", "membership").Logger(),
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 30),
	}
}

const userColumns = `id, name, email, role, education_year, nfc_card_id, password_hash, password_salt, created_at, updated_at`

// Register creates a student account.
func (s *service) Register(ctx context.Context, reg Registration) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	return s.createUser(ctx, reg.Name, reg.Email, reg.Password, RoleStudent, reg.EducationYear)
}

// CreateLibrarian creates a staff account. Only reachable from librarian
// routes and the admin CLI.
func (s *service) CreateLibrarian(ctx context.Context, name, email, password string) (*User, error) {
	return s.createUser(ctx, name, email, password, RoleLibrarian, nil)
}

func (s *service) createUser(ctx context.Context, name, email, password, role string, educationYear *int) (*User, error) {
	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:            uuid.New(),
		Name:          name,
		Email:         email,
		Role:          role,
		EducationYear: educationYear,
		PasswordHash:  hash,
		PasswordSalt:  salt,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, education_year, password_hash, password_salt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Name, user.Email, user.Role, user.EducationYear, user.PasswordHash, user.PasswordSalt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", role).Msg("user created")
	return user, nil
}

// Authenticate verifies credentials and returns the user on success.
func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	ok, err := verifyPassword(password, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// GetUser retrieves a user by ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ListUsers returns users, optionally filtered by role.
func (s *service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var users []*User
	var err error
	if role != "" {
		err = s.db.SelectContext(ctx, &users, `
			SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, role, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &users, `
			SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateRole changes a user's role.
func (s *service) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*User, error) {
	if role != RoleStudent && role != RoleLibrarian {
		return nil, ErrInvalidRole
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2
	`, role, id)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUserNotFound
	}

	s.logger.Info().Str("user_id", id.String()).Str("role", role).Msg("role updated")
	return s.GetUser(ctx, id)
}

// UpdateProfile applies the non-nil fields of update.
func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.EducationYear != nil {
		user.EducationYear = update.EducationYear
	}
	if update.NFCCardID != nil {
		user.NFCCardID = update.NFCCardID
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET name = $1, education_year = $2, nfc_card_id = $3, updated_at = NOW() WHERE id = $4
	`, user.Name, user.EducationYear, user.NFCCardID, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrNFCCardTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return s.GetUser(ctx, id)
}

// LookupByNFC finds the user holding a card. Used by the front-desk scanner.
func (s *service) LookupByNFC(ctx context.Context, cardID string) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE nfc_card_id = $1`, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by nfc: %w", err)
	}
	return &user, nil
}
