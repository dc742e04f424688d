// Package engagement holds the light approval-workflow records around the
// catalog: complaints, idea submissions, and SNDL access demands.
package engagement

import (
	"time"

	"github.com/google/uuid"
)

// Complaint statuses.
const (
	ComplaintOpen     = "OPEN"
	ComplaintResolved = "RESOLVED"
)

// SNDL demand statuses.
const (
	DemandPending  = "PENDING"
	DemandApproved = "APPROVED"
	DemandRejected = "REJECTED"
)

// Complaint is a user-filed issue handled by librarians.
type Complaint struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Idea is a free-form suggestion; no workflow beyond collection.
type Idea struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SNDLDemand tracks a request for an account on the national SNDL research
// database program.
type SNDLDemand struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Email     string     `json:"email" db:"email"`
	Status    string     `json:"status" db:"status"`
	DecidedBy *uuid.UUID `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
