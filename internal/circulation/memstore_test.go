package circulation

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"unilib/pkg/ledger"
)

// memStore is an in-memory Store for tests. A single mutex serializes
// transactions; InTx works on a deep copy and swaps it in on success, so a
// failed transition leaves no partial writes behind, same as a rolled-back
// database transaction.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	books      map[uuid.UUID]*memBook
	borrows    map[uuid.UUID]*Borrow
	extensions []*Extension
	events     []ledger.Event
	nextSeq    int64
}

type memBook struct {
	title     string
	available bool
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		books:   make(map[uuid.UUID]*memBook),
		borrows: make(map[uuid.UUID]*Borrow),
		nextSeq: 1,
	}}
}

// addBook registers an available book and returns its id.
func (m *memStore) addBook(title string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.state.books[id] = &memBook{title: title, available: true}
	return id
}

func (m *memStore) bookAvailable(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.books[id]
	return ok && b.available
}

func (m *memStore) borrowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.borrows)
}

func (s *memState) clone() *memState {
	next := &memState{
		books:      make(map[uuid.UUID]*memBook, len(s.books)),
		borrows:    make(map[uuid.UUID]*Borrow, len(s.borrows)),
		extensions: make([]*Extension, len(s.extensions)),
		events:     make([]ledger.Event, len(s.events)),
		nextSeq:    s.nextSeq,
	}
	for id, b := range s.books {
		cp := *b
		next.books[id] = &cp
	}
	for id, b := range s.borrows {
		cp := *b
		next.borrows[id] = &cp
	}
	copy(next.extensions, s.extensions)
	copy(next.events, s.events)
	return next
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.state.clone()
	if err := fn(&memTx{state: staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *memStore) GetBorrow(ctx context.Context, id uuid.UUID) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.borrows[id]
	if !ok {
		return nil, ErrBorrowNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBorrows(ctx context.Context, filter Filter) ([]*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []*Borrow
	for _, b := range m.state.borrows {
		if filter.UserID != uuid.Nil && b.UserID != filter.UserID {
			continue
		}
		if filter.BookID != uuid.Nil && b.BookID != filter.BookID {
			continue
		}
		if filter.ActiveOnly && !b.Active() {
			continue
		}
		if filter.OverdueOnly && !b.Overdue(now) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowedAt.After(out[j].BorrowedAt) })
	return out, nil
}

func (m *memStore) History(ctx context.Context, borrowID uuid.UUID) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Event
	for _, e := range m.state.events {
		if e.AggregateID == borrowID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type memTx struct {
	state *memState
}

func (t *memTx) ClaimBook(ctx context.Context, bookID uuid.UUID) error {
	b, ok := t.state.books[bookID]
	if !ok {
		return ErrBookNotFound
	}
	if !b.available {
		return ErrBookNotAvailable
	}
	b.available = false
	return nil
}

func (t *memTx) ReleaseBook(ctx context.Context, bookID uuid.UUID) error {
	b, ok := t.state.books[bookID]
	if !ok {
		return ErrBookNotFound
	}
	b.available = true
	return nil
}

func (t *memTx) BookTitle(ctx context.Context, bookID uuid.UUID) (string, error) {
	b, ok := t.state.books[bookID]
	if !ok {
		return "", ErrBookNotFound
	}
	return b.title, nil
}

func (t *memTx) InsertBorrow(ctx context.Context, borrow *Borrow) error {
	// Mirror of the partial unique index: one active borrow per book.
	for _, b := range t.state.borrows {
		if b.BookID == borrow.BookID && b.Active() {
			return ErrBookNotAvailable
		}
	}
	cp := *borrow
	t.state.borrows[borrow.ID] = &cp
	return nil
}

func (t *memTx) BorrowForUpdate(ctx context.Context, id uuid.UUID) (*Borrow, error) {
	b, ok := t.state.borrows[id]
	if !ok {
		return nil, ErrBorrowNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) UpdateBorrowDue(ctx context.Context, id uuid.UUID, dueDate time.Time, extensionCount int) error {
	b, ok := t.state.borrows[id]
	if !ok {
		return ErrBorrowNotFound
	}
	b.DueDate = dueDate
	b.ExtensionCount = extensionCount
	return nil
}

func (t *memTx) CloseBorrow(ctx context.Context, id uuid.UUID, returnedAt time.Time) error {
	b, ok := t.state.borrows[id]
	if !ok {
		return ErrBorrowNotFound
	}
	b.ReturnedAt = &returnedAt
	return nil
}

func (t *memTx) InsertExtension(ctx context.Context, extension *Extension) error {
	cp := *extension
	t.state.extensions = append(t.state.extensions, &cp)
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, borrowID uuid.UUID, eventType string, version int, data any) error {
	for _, e := range t.state.events {
		if e.AggregateID == borrowID && e.Version == version {
			return ledger.ErrVersionConflict
		}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	t.state.events = append(t.state.events, ledger.Event{
		ID:          t.state.nextSeq,
		AggregateID: borrowID,
		EventType:   eventType,
		EventData:   raw,
		Version:     version,
		CreatedAt:   time.Now().UTC(),
	})
	t.state.nextSeq++
	return nil
}
