// Package entity defines the domain models for the posts feature.
package entity

import (
	"math"
	"time"
)

// Post is a piece of user content. LikeCount only changes through likes.
type Post struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorID    uint      `json:"author_id"`
	ImageRef    *string   `json:"image_url"`
	LikeCount   int       `json:"like_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is immutable once created; it can only be deleted.
type Comment struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	AuthorID  uint      `json:"author_id"`
	PostID    uint      `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostFilter selects posts by optional, conjunctive predicates.
// Pagination applies only when both Page and Limit are positive; Page is 1-indexed.
type PostFilter struct {
	AuthorID     *uint
	StartDate    *time.Time
	EndDate      *time.Time
	SortByRecent bool
	Page         int
	Limit        int
}

// Paginated reports whether the filter asks for a single page.
func (f PostFilter) Paginated() bool {
	return f.Page > 0 && f.Limit > 0
}

// Offset is the number of rows skipped for the requested page.
// ok is false when the filter is not paginated or the offset does not fit in an int.
func (f PostFilter) Offset() (offset int, ok bool) {
	if !f.Paginated() {
		return 0, false
	}
	return PageOffset(f.Page, f.Limit)
}

// PageOffset returns (page-1)*limit for a 1-indexed page.
// ok is false for non-positive arguments or when the product overflows int;
// such a page lies past any stored row.
func PageOffset(page, limit int) (offset int, ok bool) {
	if page <= 0 || limit <= 0 {
		return 0, false
	}
	if page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}
