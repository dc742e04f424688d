package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry. The available flag is owned by the circulation
// service while a borrow is outstanding; catalog only sets it at creation.
type Book struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	ISBN          *string   `json:"isbn,omitempty" db:"isbn"`
	Available     bool      `json:"available" db:"available"`
	PageCount     *int      `json:"page_count,omitempty" db:"page_count"`
	Language      string    `json:"language" db:"language"`
	PublishedYear *int      `json:"published_year,omitempty" db:"published_year"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Category groups books; membership is many-to-many.
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookInput is the payload for creating or replacing a book.
type BookInput struct {
	Title         string
	Author        string
	ISBN          *string
	PageCount     *int
	Language      string
	PublishedYear *int
}

// Filter narrows ListBooks. Zero values mean "no constraint".
type Filter struct {
	Query         string     // substring match on title or author
	CategoryID    uuid.UUID
	Language      string
	AvailableOnly bool
	Sort          string // one of the whitelisted sort keys
	Limit         int
	Offset        int
}
