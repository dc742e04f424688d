// Package ledger records circulation events as an append-only audit trail.
// Events are versioned per borrow and written inside the caller's
// transaction, so a ledger row commits if and only if the state change it
// describes commits.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrVersionConflict = errors.New("version conflict: concurrent writer won")
)

// Event types appended by the circulation service.
const (
	EventBookLent       = "book.lent"
	EventBorrowExtended = "borrow.extended"
	EventBookReturned   = "book.returned"
)

// Event is one row of the circulation audit trail.
type Event struct {
	ID          int64           `json:"id"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	EventData   json.RawMessage `json:"event_data"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Ledger appends and replays circulation events.
type Ledger struct {
	db     *sql.DB
	tracer trace.Tracer
}

func New(db *sql.DB) *Ledger {
	return &Ledger{
		db:     db,
		tracer: otel.Tracer("unilib/ledger"),
	}
}

// Append writes one event at the given version inside tx. A duplicate
// (aggregate_id, version) pair means another writer got there first and is
// reported as ErrVersionConflict.
func (l *Ledger) Append(ctx context.Context, tx *sql.Tx, aggregateID uuid.UUID, eventType string, version int, data any) error {
	ctx, span := l.tracer.Start(ctx, "ledger.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("event.type", eventType),
			attribute.Int("event.version", version),
		),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO circulation_events (aggregate_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, aggregateID, eventType, payload, version, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return ErrVersionConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// History returns all events for one borrow in version order.
func (l *Ledger) History(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.history",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, event_data, version, created_at
		FROM circulation_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.EventData, &event.Version, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// CurrentVersion returns the latest event version for a borrow, 0 when none.
func (l *Ledger) CurrentVersion(ctx context.Context, tx *sql.Tx, aggregateID uuid.UUID) (int, error) {
	var version int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM circulation_events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}
