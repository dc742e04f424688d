package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"unilib/pkg/ledger"
)

// BookCache is the slice of the catalog service the lifecycle needs: cache
// invalidation after an availability flip.
type BookCache interface {
	Invalidate(id uuid.UUID)
}

// Publisher emits circulation events to interested consumers after a
// transition commits. Failures must not fail the transition.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// service implements the Service interface.
type service struct {
	store     Store
	cache     BookCache
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new circulation service instance. cache and publisher
// may be nil.
func NewService(store Store, cache BookCache, publisher Publisher, logger zerolog.Logger) Service {
	return &service{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With().Str("component", "circulation").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Lend opens a loan: Available -> Borrowed. The availability flip, the
// borrow insert and the ledger append are one transaction; the conditional
// update inside ClaimBook re-checks availability at write time so racing
// lends cannot both win.
func (s *service) Lend(ctx context.Context, bookID, userID uuid.UUID, dueDate time.Time) (*Borrow, error) {
	now := s.now()
	if !dueDate.After(now) {
		return nil, ErrInvalidDueDate
	}

	borrow := &Borrow{
		ID:             uuid.New(),
		BookID:         bookID,
		UserID:         userID,
		BorrowedAt:     now,
		DueDate:        dueDate,
		ExtensionCount: 0,
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.ClaimBook(ctx, bookID); err != nil {
			return err
		}
		if err := tx.InsertBorrow(ctx, borrow); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, borrow.ID, ledger.EventBookLent, 1, BookLentEvent{
			BorrowID: borrow.ID,
			BookID:   bookID,
			UserID:   userID,
			DueDate:  dueDate,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(bookID)
	s.publish(ctx, "circulation.lent", borrow)
	s.logger.Info().
		Str("borrow_id", borrow.ID.String()).
		Str("book_id", bookID.String()).
		Str("user_id", userID.String()).
		Time("due_date", dueDate).
		Msg("book lent")
	return borrow, nil
}

// Extend pushes an active loan's due date forward by whole weeks. The new
// due date compounds on the current one, not on now.
func (s *service) Extend(ctx context.Context, borrowID uuid.UUID, weeks int, reason, approvedBy string) (*Borrow, *Extension, error) {
	if weeks < MinExtensionWeeks || weeks > MaxExtensionWeeks {
		return nil, nil, ErrInvalidExtension
	}

	var (
		borrow    *Borrow
		extension *Extension
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		borrow, err = tx.BorrowForUpdate(ctx, borrowID)
		if err != nil {
			return err
		}
		if !borrow.Active() {
			return ErrCannotExtendReturned
		}
		if borrow.ExtensionCount >= MaxExtensions {
			return ErrExtensionLimit
		}

		previous := borrow.DueDate
		borrow.DueDate = extendedDueDate(previous, weeks)
		borrow.ExtensionCount++

		extension = &Extension{
			ID:              uuid.New(),
			BorrowID:        borrowID,
			PreviousDueDate: previous,
			NewDueDate:      borrow.DueDate,
			CreatedAt:       s.now(),
		}
		if reason != "" {
			extension.Reason = &reason
		}
		if approvedBy != "" {
			extension.ApprovedBy = &approvedBy
		}

		if err := tx.UpdateBorrowDue(ctx, borrowID, borrow.DueDate, borrow.ExtensionCount); err != nil {
			return err
		}
		if err := tx.InsertExtension(ctx, extension); err != nil {
			return err
		}
		// Ledger versions: 1 is the lend, extensions occupy 2..4.
		return tx.AppendEvent(ctx, borrowID, ledger.EventBorrowExtended, borrow.ExtensionCount+1, BorrowExtendedEvent{
			BorrowID:        borrowID,
			PreviousDueDate: extension.PreviousDueDate,
			NewDueDate:      extension.NewDueDate,
			ExtensionCount:  borrow.ExtensionCount,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, "circulation.extended", extension)
	s.logger.Info().
		Str("borrow_id", borrowID.String()).
		Int("extension_count", borrow.ExtensionCount).
		Time("due_date", borrow.DueDate).
		Msg("borrow extended")
	return borrow, extension, nil
}

// Return closes a loan: Borrowed -> Available. Closing the borrow and
// releasing the book commit together, so no reader can observe one without
// the other.
func (s *service) Return(ctx context.Context, borrowID uuid.UUID) (*ReturnReceipt, error) {
	var receipt *ReturnReceipt

	err := s.store.InTx(ctx, func(tx Tx) error {
		borrow, err := tx.BorrowForUpdate(ctx, borrowID)
		if err != nil {
			return err
		}
		if !borrow.Active() {
			return ErrAlreadyReturned
		}

		returnedAt := s.now()
		if err := tx.CloseBorrow(ctx, borrowID, returnedAt); err != nil {
			return err
		}
		if err := tx.ReleaseBook(ctx, borrow.BookID); err != nil {
			return err
		}

		title, err := tx.BookTitle(ctx, borrow.BookID)
		if err != nil {
			return err
		}

		receipt = &ReturnReceipt{
			ID:         borrowID,
			ReturnedAt: returnedAt,
			BookID:     borrow.BookID,
			BookTitle:  title,
		}

		// Version after the lend (1) and k extensions is k+2.
		return tx.AppendEvent(ctx, borrowID, ledger.EventBookReturned, borrow.ExtensionCount+2, BookReturnedEvent{
			BorrowID:   borrowID,
			BookID:     borrow.BookID,
			ReturnedAt: returnedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(receipt.BookID)
	s.publish(ctx, "circulation.returned", receipt)
	s.logger.Info().
		Str("borrow_id", borrowID.String()).
		Str("book_id", receipt.BookID.String()).
		Msg("book returned")
	return receipt, nil
}

// GetBorrow retrieves a borrow record.
func (s *service) GetBorrow(ctx context.Context, id uuid.UUID) (*Borrow, error) {
	return s.store.GetBorrow(ctx, id)
}

// ListBorrows returns borrow records matching the filter.
func (s *service) ListBorrows(ctx context.Context, filter Filter) ([]*Borrow, error) {
	return s.store.ListBorrows(ctx, filter)
}

// History replays a borrow's audit trail.
func (s *service) History(ctx context.Context, borrowID uuid.UUID) ([]ledger.Event, error) {
	if _, err := s.store.GetBorrow(ctx, borrowID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, borrowID)
}

func (s *service) invalidate(bookID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(bookID)
	}
}

func (s *service) publish(ctx context.Context, key string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Warn().Err(err).Str("routing_key", key).Msg("event publish failed")
	}
}
