package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Extension policy. A borrow can be extended at most MaxExtensions times,
// each by a whole number of weeks within [MinExtensionWeeks,
// MaxExtensionWeeks].
const (
	MinExtensionWeeks = 1
	MaxExtensionWeeks = 4
	MaxExtensions     = 3
)

// Borrow is one loan of one book. ReturnedAt is nil while the loan is
// active; "overdue" is always derived from DueDate, never stored.
type Borrow struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	BookID         uuid.UUID  `json:"book_id" db:"book_id"`
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	BorrowedAt     time.Time  `json:"borrowed_at" db:"borrowed_at"`
	DueDate        time.Time  `json:"due_date" db:"due_date"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty" db:"returned_at"`
	ExtensionCount int        `json:"extension_count" db:"extension_count"`
}

// Active reports whether the loan is still out.
func (b *Borrow) Active() bool {
	return b.ReturnedAt == nil
}

// Overdue reports whether the loan is active and past due at the given time.
func (b *Borrow) Overdue(now time.Time) bool {
	return b.Active() && b.DueDate.Before(now)
}

// Extension is one row of the append-only extension audit trail.
type Extension struct {
	ID              uuid.UUID `json:"id" db:"id"`
	BorrowID        uuid.UUID `json:"borrow_id" db:"borrow_id"`
	PreviousDueDate time.Time `json:"previous_due_date" db:"previous_due_date"`
	NewDueDate      time.Time `json:"new_due_date" db:"new_due_date"`
	Reason          *string   `json:"reason,omitempty" db:"reason"`
	ApprovedBy      *string   `json:"approved_by,omitempty" db:"approved_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ReturnReceipt is the payload returned when a loan is closed.
type ReturnReceipt struct {
	ID         uuid.UUID `json:"id"`
	ReturnedAt time.Time `json:"returnedAt"`
	BookID     uuid.UUID `json:"bookId"`
	BookTitle  string    `json:"bookTitle"`
}

// Filter narrows ListBorrows.
type Filter struct {
	UserID      uuid.UUID
	BookID      uuid.UUID
	ActiveOnly  bool
	OverdueOnly bool
	Limit       int
	Offset      int
}

// BookLentEvent is recorded in the ledger when a loan opens.
type BookLentEvent struct {
	BorrowID uuid.UUID `json:"borrow_id"`
	BookID   uuid.UUID `json:"book_id"`
	UserID   uuid.UUID `json:"user_id"`
	DueDate  time.Time `json:"due_date"`
}

// BorrowExtendedEvent is recorded when a due date is pushed forward.
type BorrowExtendedEvent struct {
	BorrowID        uuid.UUID `json:"borrow_id"`
	PreviousDueDate time.Time `json:"previous_due_date"`
	NewDueDate      time.Time `json:"new_due_date"`
	ExtensionCount  int       `json:"extension_count"`
}

// BookReturnedEvent is recorded when a loan closes.
type BookReturnedEvent struct {
	BorrowID   uuid.UUID `json:"borrow_id"`
	BookID     uuid.UUID `json:"book_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

// extendedDueDate computes the new due date: weeks are appended to the
// current due date, not to now, so consecutive extensions compound against
// the original schedule.
func extendedDueDate(current time.Time, weeks int) time.Time {
	return current.AddDate(0, 0, weeks*7)
}
