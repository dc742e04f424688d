package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"unilib/internal/postgres"
	"unilib/pkg/ledger"
)

// pgStore is the Postgres Store. State transitions rely on three guards:
// the conditional update in ClaimBook, the partial unique index
// borrows_one_active_per_book, and FOR UPDATE row locks on borrows.
type pgStore struct {
	db     *sqlx.DB
	ledger *ledger.Ledger
}

func NewStore(db *sqlx.DB, l *ledger.Ledger) Store {
	return &pgStore{db: db, ledger: l}
}

func (s *pgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, s.db.DB, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx, ledger: s.ledger})
	})
}

const borrowColumns = `id, book_id, user_id, borrowed_at, due_date, returned_at, extension_count`

func (s *pgStore) GetBorrow(ctx context.Context, id uuid.UUID) (*Borrow, error) {
	var borrow Borrow
	err := s.db.GetContext(ctx, &borrow, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBorrowNotFound
		}
		return nil, fmt.Errorf("query borrow: %w", err)
	}
	return &borrow, nil
}

func (s *pgStore) ListBorrows(ctx context.Context, filter Filter) ([]*Borrow, error) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != uuid.Nil {
		where = append(where, "user_id = "+arg(filter.UserID))
	}
	if filter.BookID != uuid.Nil {
		where = append(where, "book_id = "+arg(filter.BookID))
	}
	if filter.ActiveOnly || filter.OverdueOnly {
		where = append(where, "returned_at IS NULL")
	}
	if filter.OverdueOnly {
		where = append(where, "due_date < NOW()")
	}

	query := `SELECT ` + borrowColumns + ` FROM borrows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY borrowed_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(max(filter.Offset, 0))

	var borrows []*Borrow
	if err := s.db.SelectContext(ctx, &borrows, query, args...); err != nil {
		return nil, fmt.Errorf("list borrows: %w", err)
	}
	return borrows, nil
}

func (s *pgStore) History(ctx context.Context, borrowID uuid.UUID) ([]ledger.Event, error) {
	return s.ledger.History(ctx, borrowID)
}

type pgTx struct {
	tx     *sql.Tx
	ledger *ledger.Ledger
}

func (t *pgTx) ClaimBook(ctx context.Context, bookID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE books SET available = FALSE, updated_at = NOW()
		WHERE id = $1 AND available
	`, bookID)
	if err != nil {
		return fmt.Errorf("claim book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return fmt.Errorf("check book: %w", err)
	}
	if !exists {
		return ErrBookNotFound
	}
	return ErrBookNotAvailable
}

func (t *pgTx) ReleaseBook(ctx context.Context, bookID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE books SET available = TRUE, updated_at = NOW() WHERE id = $1
	`, bookID)
	if err != nil {
		return fmt.Errorf("release book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (t *pgTx) BookTitle(ctx context.Context, bookID uuid.UUID) (string, error) {
	var title string
	err := t.tx.QueryRowContext(ctx, `SELECT title FROM books WHERE id = $1`, bookID).Scan(&title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrBookNotFound
		}
		return "", fmt.Errorf("query book title: %w", err)
	}
	return title, nil
}

func (t *pgTx) InsertBorrow(ctx context.Context, borrow *Borrow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO borrows (id, book_id, user_id, borrowed_at, due_date, extension_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, borrow.ID, borrow.BookID, borrow.UserID, borrow.BorrowedAt, borrow.DueDate, borrow.ExtensionCount)
	if err != nil {
		// The partial unique index rejects a second active borrow for the
		// same book: a racing lend beat us after our availability check.
		if postgres.IsUniqueViolation(err) {
			return ErrBookNotAvailable
		}
		return fmt.Errorf("insert borrow: %w", err)
	}
	return nil
}

func (t *pgTx) BorrowForUpdate(ctx context.Context, id uuid.UUID) (*Borrow, error) {
	var borrow Borrow
	err := t.tx.QueryRowContext(ctx, `
		SELECT `+borrowColumns+` FROM borrows WHERE id = $1 FOR UPDATE
	`, id).Scan(&borrow.ID, &borrow.BookID, &borrow.UserID, &borrow.BorrowedAt, &borrow.DueDate, &borrow.ReturnedAt, &borrow.ExtensionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBorrowNotFound
		}
		return nil, fmt.Errorf("lock borrow: %w", err)
	}
	return &borrow, nil
}

func (t *pgTx) UpdateBorrowDue(ctx context.Context, id uuid.UUID, dueDate time.Time, extensionCount int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE borrows SET due_date = $1, extension_count = $2 WHERE id = $3
	`, dueDate, extensionCount, id)
	if err != nil {
		return fmt.Errorf("update borrow: %w", err)
	}
	return nil
}

func (t *pgTx) CloseBorrow(ctx context.Context, id uuid.UUID, returnedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE borrows SET returned_at = $1 WHERE id = $2
	`, returnedAt, id)
	if err != nil {
		return fmt.Errorf("close borrow: %w", err)
	}
	return nil
}

func (t *pgTx) InsertExtension(ctx context.Context, extension *Extension) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO borrow_extensions (id, borrow_id, previous_due_date, new_due_date, reason, approved_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, extension.ID, extension.BorrowID, extension.PreviousDueDate, extension.NewDueDate, extension.Reason, extension.ApprovedBy, extension.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert extension: %w", err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, borrowID uuid.UUID, eventType string, version int, data any) error {
	return t.ledger.Append(ctx, t.tx, borrowID, eventType, version, data)
}
