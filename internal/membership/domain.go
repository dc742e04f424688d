package membership

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user can hold. Staff-only routes require RoleLibrarian.
const (
	RoleStudent   = "STUDENT"
	RoleLibrarian = "LIBRARIAN"
)

// User represents a platform account.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	Role          string    `json:"role" db:"role"`
	EducationYear *int      `json:"education_year,omitempty" db:"education_year"`
	NFCCardID     *string   `json:"nfc_card_id,omitempty" db:"nfc_card_id"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	PasswordSalt  string    `json:"-" db:"password_salt"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Registration is the input for creating a student account.
type Registration struct {
	Name          string
	Email         string
	Password      string
	EducationYear *int
}

// ProfileUpdate carries mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name          *string
	EducationYear *int
	NFCCardID     *string
}
