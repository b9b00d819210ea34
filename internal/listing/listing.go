// Package listing holds the paging and search parameters shared by every list endpoint.
package listing

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// DefaultPerPage is used when no page size is configured.
const DefaultPerPage = 20

// maxPerPage bounds client supplied page sizes.
const maxPerPage = 200

// Query is a 1-based page request with an optional free-text search.
type Query struct {
	Search  string
	Page    int
	PerPage int
}

// Normalize clamps page and page size and trims the search term.
func (q Query) Normalize(defaultPerPage int) Query {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Offset is the number of rows skipped before this page.
func (q Query) Offset() int { return (q.Page - 1) * q.PerPage }

// Like returns the search term as a contains pattern, with LIKE wildcards escaped.
func (q Query) Like() string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(q.Search)) + "%"
}

// Page is one page of results.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int   `json:"pages"`
}

// HasNext reports whether a later page exists.
func (p Page[T]) HasNext() bool { return p.Page < p.Pages }

// Find counts the rows matched by scope, then loads the requested page of them with the named
// associations preloaded. scope must already carry its filters and ordering.
func Find[T any](ctx context.Context, scope *gorm.DB, q Query, preloads ...string) (Page[T], error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).WithContext(ctx).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}
	items := make([]T, 0, q.PerPage)
	find := scope.Session(&gorm.Session{}).WithContext(ctx)
	for _, name := range preloads {
		find = find.Preload(name)
	}
	if err := find.Limit(q.PerPage).Offset(q.Offset()).Find(&items).Error; err != nil {
		return Page[T]{}, err
	}
	pages := int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
	return Page[T]{Items: items, Total: total, Page: q.Page, PerPage: q.PerPage, Pages: pages}, nil
}
