package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"unilib/pkg/ledger"
)

// Store is the persistence boundary of the lifecycle manager. Every state
// transition runs inside InTx so the borrow write, the book's availability
// flip and the ledger append commit or fail as one unit.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetBorrow(ctx context.Context, id uuid.UUID) (*Borrow, error)
	ListBorrows(ctx context.Context, filter Filter) ([]*Borrow, error)
	History(ctx context.Context, borrowID uuid.UUID) ([]ledger.Event, error)
}

// Tx exposes the row operations available inside a transition.
type Tx interface {
	// ClaimBook flips the book to unavailable. It fails with
	// ErrBookNotFound when the book does not exist and ErrBookNotAvailable
	// when the flag is already false, leaving nothing modified.
	ClaimBook(ctx context.Context, bookID uuid.UUID) error
	// ReleaseBook flips the book back to available.
	ReleaseBook(ctx context.Context, bookID uuid.UUID) error
	BookTitle(ctx context.Context, bookID uuid.UUID) (string, error)

	InsertBorrow(ctx context.Context, borrow *Borrow) error
	// BorrowForUpdate loads a borrow with a row lock so racing transitions
	// on the same loan serialize.
	BorrowForUpdate(ctx context.Context, id uuid.UUID) (*Borrow, error)
	UpdateBorrowDue(ctx context.Context, id uuid.UUID, dueDate time.Time, extensionCount int) error
	CloseBorrow(ctx context.Context, id uuid.UUID, returnedAt time.Time) error

	InsertExtension(ctx context.Context, extension *Extension) error
	AppendEvent(ctx context.Context, borrowID uuid.UUID, eventType string, version int, data any) error
}
