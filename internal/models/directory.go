package models

import "gorm.io/datatypes"

// UserSummary is the slice of account data the negotiation core needs.
// Account management itself lives in another service.
type UserSummary struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	DisplayName string `gorm:"size:128" json:"display_name"`
}

// TableName maps the summary onto the shared users table.
func (UserSummary) TableName() string { return "users" }

// BookSummary carries the swap-eligibility view of a catalog book: who owns it
// and which offered books/genres its owner advertises as acceptable.
type BookSummary struct {
	ID                string                      `gorm:"primaryKey;size:64" json:"id"`
	Title             string                      `gorm:"size:255" json:"title"`
	OwnerID           string                      `gorm:"size:64;index" json:"owner_id"`
	SwappableBookIDs  datatypes.JSONSlice[string] `gorm:"type:json" json:"swappable_book_ids"`
	SwappableGenreIDs datatypes.JSONSlice[string] `gorm:"type:json" json:"swappable_genre_ids"`
}

// TableName maps the summary onto the shared books table.
func (BookSummary) TableName() string { return "books" }

// AcceptsBook reports whether the offered book is advertised as swappable.
func (b BookSummary) AcceptsBook(bookID string) bool {
	return containsString(b.SwappableBookIDs, bookID)
}

// AcceptsGenre reports whether the offered genre is advertised as swappable.
func (b BookSummary) AcceptsGenre(genreID string) bool {
	return containsString(b.SwappableGenreIDs, genreID)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
