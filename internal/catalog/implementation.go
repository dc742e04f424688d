package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"unilib/internal/postgres"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryExists    = errors.New("category already exists")
	ErrBookHasActiveLoan = errors.New("book has an active borrow")
	ErrBookHasHistory    = errors.New("book has borrow history")
)

const bookCacheSize = 256

// sort keys accepted by ListBooks; anything else falls back to created_at.
var sortColumns = map[string]string{
	"title":      "title ASC",
	"author":     "author ASC",
	"created_at": "created_at DESC",
	"published":  "published_year DESC NULLS LAST",
}

// service implements the Service interface.
type service struct {
	db     *sqlx.DB
	search *SearchIndex
	cache  *lru.Cache[uuid.UUID, *Book]
	logger zerolog.Logger
}

// NewService creates a new catalog service instance. search may be nil, in
// which case Search uses the database only.
func NewService(db *sqlx.DB, search *SearchIndex, logger zerolog.Logger) Service {
	cache, _ := lru.New[uuid.UUID, *Book](bookCacheSize)
	return &service{
		db:     db,
		search: search,
		cache:  cache,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

const bookColumns = `id, title, author, isbn, available, page_count, language, published_year, created_at, updated_at`

// CreateBook adds a book to the catalog, available by default.
func (s *service) CreateBook(ctx context.Context, input BookInput) (*Book, error) {
	book := &Book{
		ID:            uuid.New(),
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		Available:     true,
		PageCount:     input.PageCount,
		Language:      input.Language,
		PublishedYear: input.PublishedYear,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, isbn, available, page_count, language, published_year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, book.ID, book.Title, book.Author, book.ISBN, book.Available, book.PageCount, book.Language, book.PublishedYear, book.CreatedAt, book.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	s.indexBook(ctx, book)
	return book, nil
}

// GetBook retrieves a book, serving repeat lookups from the LRU cache.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	if book, ok := s.cache.Get(id); ok {
		return book, nil
	}

	var book Book
	err := s.db.GetContext(ctx, &book, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("query book: %w", err)
	}

	s.cache.Add(id, &book)
	return &book, nil
}

// UpdateBook replaces the editable fields of a book.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, input BookInput) (*Book, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET title = $1, author = $2, isbn = $3, page_count = $4, language = $5, published_year = $6, updated_at = NOW()
		WHERE id = $7
	`, input.Title, input.Author, input.ISBN, input.PageCount, input.Language, input.PublishedYear, id)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrBookNotFound
	}

	s.cache.Remove(id)
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	s.indexBook(ctx, book)
	return book, nil
}

// DeleteBook removes a book that has no active borrow.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	var active bool
	err := s.db.GetContext(ctx, &active, `
		SELECT EXISTS (SELECT 1 FROM borrows WHERE book_id = $1 AND returned_at IS NULL)
	`, id)
	if err != nil {
		return fmt.Errorf("check active borrows: %w", err)
	}
	if active {
		return ErrBookHasActiveLoan
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		// Closed loans still reference the book; keep the row.
		if postgres.IsForeignKeyViolation(err) {
			return ErrBookHasHistory
		}
		return fmt.Errorf("delete book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}

	s.cache.Remove(id)
	s.unindexBook(ctx, id)
	return nil
}

// ListBooks returns a filtered, sorted, paginated projection of the catalog.
func (s *service) ListBooks(ctx context.Context, filter Filter) ([]*Book, error) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR author ILIKE %s)", p, p))
	}
	if filter.Language != "" {
		where = append(where, "language = "+arg(filter.Language))
	}
	if filter.AvailableOnly {
		where = append(where, "available")
	}
	if filter.CategoryID != uuid.Nil {
		where = append(where, "id IN (SELECT book_id FROM book_categories WHERE category_id = "+arg(filter.CategoryID)+")")
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	order, ok := sortColumns[filter.Sort]
	if !ok {
		order = sortColumns["created_at"]
	}
	query += " ORDER BY " + order

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(max(filter.Offset, 0))

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// CreateCategory adds a category.
func (s *service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	category := &Category{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)
	`, category.ID, category.Name, category.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return category, nil
}

// ListCategories returns all categories.
func (s *service) ListCategories(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := s.db.SelectContext(ctx, &categories, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// AssignCategories replaces a book's category links.
func (s *service) AssignCategories(ctx context.Context, bookID uuid.UUID, categoryIDs []uuid.UUID) error {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_categories WHERE book_id = $1`, bookID); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}

	for _, categoryID := range categoryIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO book_categories (book_id, category_id) VALUES ($1, $2)
		`, bookID, categoryID)
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return ErrCategoryNotFound
			}
			return fmt.Errorf("link category: %w", err)
		}
	}

	return tx.Commit()
}

// Invalidate drops a book from the read cache.
func (s *service) Invalidate(id uuid.UUID) {
	s.cache.Remove(id)
}

func (s *service) indexBook(ctx context.Context, book *Book) {
	if s.search == nil {
		return
	}
	if err := s.search.Index(ctx, book); err != nil {
		s.logger.Warn().Err(err).Str("book_id", book.ID.String()).Msg("search index update failed")
	}
}

func (s *service) unindexBook(ctx context.Context, id uuid.UUID) {
	if s.search == nil {
		return
	}
	if err := s.search.Remove(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("book_id", id.String()).Msg("search index removal failed")
	}
}
