package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"unilib/pkg/ledger"
)

var (
	ErrBookNotFound         = errors.New("book not found")
	ErrBookNotAvailable     = errors.New("book not available")
	ErrBorrowNotFound       = errors.New("borrow record not found")
	ErrAlreadyReturned      = errors.New("book already returned")
	ErrCannotExtendReturned = errors.New("cannot extend a returned book")
	ErrExtensionLimit       = errors.New("maximum number of extensions reached (3)")
	ErrInvalidExtension     = errors.New("invalid extension period")
	ErrInvalidDueDate       = errors.New("due date must be in the future")
)

// Service owns the borrow lifecycle: the only multi-entity state machine in
// the system. A book is either Available (no active borrow, available flag
// true) or Borrowed (exactly one active borrow, flag false); every
// transition keeps both representations in step inside one transaction.
type Service interface {
	Lend(ctx context.Context, bookID, userID uuid.UUID, dueDate time.Time) (*Borrow, error)
	Extend(ctx context.Context, borrowID uuid.UUID, weeks int, reason, approvedBy string) (*Borrow, *Extension, error)
	Return(ctx context.Context, borrowID uuid.UUID) (*ReturnReceipt, error)
	GetBorrow(ctx context.Context, id uuid.UUID) (*Borrow, error)
	ListBorrows(ctx context.Context, filter Filter) ([]*Borrow, error)
	History(ctx context.Context, borrowID uuid.UUID) ([]ledger.Event, error)
}
