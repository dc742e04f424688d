package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const searchIndexUID = "books"

// SearchIndex fronts Meilisearch with a circuit breaker. When the breaker is
// open, or Meilisearch was never configured, queries fall through to
// Postgres full-text search.
type SearchIndex struct {
	index   meilisearch.IndexManager
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewSearchIndex wires the Meilisearch index. client may be nil.
func NewSearchIndex(client meilisearch.ServiceManager, logger zerolog.Logger) *SearchIndex {
	if client == nil {
		return nil
	}
	return &SearchIndex{
		index: client.Index(searchIndexUID),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "meilisearch",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		logger: logger.With().Str("component", "search").Logger(),
	}
}

type bookDocument struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn,omitempty"`
}

// Index upserts one book document.
func (si *SearchIndex) Index(ctx context.Context, book *Book) error {
	doc := bookDocument{
		ID:     book.ID.String(),
		Title:  book.Title,
		Author: book.Author,
	}
	if book.ISBN != nil {
		doc.ISBN = *book.ISBN
	}

	_, err := si.breaker.Execute(func() (any, error) {
		return si.index.AddDocumentsWithContext(ctx, []bookDocument{doc}, nil)
	})
	return err
}

// Remove deletes one book document.
func (si *SearchIndex) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := si.breaker.Execute(func() (any, error) {
		return si.index.DeleteDocumentWithContext(ctx, id.String())
	})
	return err
}

// query returns matching book IDs, or an error when Meilisearch is
// unavailable.
func (si *SearchIndex) query(ctx context.Context, q string, limit int) ([]uuid.UUID, error) {
	res, err := si.breaker.Execute(func() (any, error) {
		return si.index.SearchWithContext(ctx, q, &meilisearch.SearchRequest{Limit: int64(limit)})
	})
	if err != nil {
		return nil, err
	}

	resp, ok := res.(*meilisearch.SearchResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected search response type %T", res)
	}

	// Round-trip through JSON so the hit shape stays decoupled from the
	// client's internal representation.
	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("marshal hits: %w", err)
	}
	var docs []bookDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(docs))
	for _, doc := range docs {
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Search finds books by free-text query.
func (s *service) Search(ctx context.Context, query string, limit int) ([]*Book, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	if s.search != nil {
		ids, err := s.search.query(ctx, query, limit)
		switch {
		case err == nil:
			return s.booksByID(ctx, ids)
		case errors.Is(err, gobreaker.ErrOpenState):
			s.logger.Warn().Msg("search breaker open, falling back to database")
		default:
			s.logger.Warn().Err(err).Msg("search index query failed, falling back to database")
		}
	}

	return s.searchDatabase(ctx, query, limit)
}

func (s *service) booksByID(ctx context.Context, ids []uuid.UUID) ([]*Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+bookColumns+` FROM books WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}

	// Preserve the index's relevance ordering.
	byID := make(map[uuid.UUID]*Book, len(books))
	for _, book := range books {
		byID[book.ID] = book
	}
	ordered := make([]*Book, 0, len(books))
	for _, id := range ids {
		if book, ok := byID[id]; ok {
			ordered = append(ordered, book)
		}
	}
	return ordered, nil
}

func (s *service) searchDatabase(ctx context.Context, query string, limit int) ([]*Book, error) {
	var books []*Book
	err := s.db.SelectContext(ctx, &books, `
		SELECT `+bookColumns+`
		FROM books
		WHERE to_tsvector('english', title || ' ' || author) @@ plainto_tsquery('english', $1)
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}
	return books, nil
}
