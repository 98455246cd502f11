package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// UserLookup resolves user summaries from the shared users table. Account
// management lives elsewhere; this is read-only collaborator access.
type UserLookup struct {
	db *gorm.DB
}

// NewUserLookup constructs a read-only user lookup.
func NewUserLookup(db *gorm.DB) *UserLookup {
	return &UserLookup{db: db}
}

// Get returns the user summary or ErrNotFound.
func (r *UserLookup) Get(ctx context.Context, id string) (models.UserSummary, error) {
	var user models.UserSummary
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.UserSummary{}, ErrNotFound
		}
		return models.UserSummary{}, err
	}
	return user, nil
}

// BookLookup resolves swap-eligibility data from the shared books table.
type BookLookup struct {
	db *gorm.DB
}

// NewBookLookup constructs a read-only book lookup.
func NewBookLookup(db *gorm.DB) *BookLookup {
	return &BookLookup{db: db}
}

// Get returns the book summary or ErrNotFound.
func (r *BookLookup) Get(ctx context.Context, id string) (models.BookSummary, error) {
	var book models.BookSummary
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.BookSummary{}, ErrNotFound
		}
		return models.BookSummary{}, err
	}
	return book, nil
}
