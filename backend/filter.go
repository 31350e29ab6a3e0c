package backend

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultPageSize is used when a filter carries no page size.
const DefaultPageSize = 10

// Sort directions
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// ListFilter selects one page of lists.
// Field names are the query parameter names of the list endpoint.
type ListFilter struct {
	CurrentPage   int      `json:"currentPage"`
	PageSize      int      `json:"pageSize"`
	SortBy        string   `json:"sortBy"`
	SortDirection string   `json:"sortDirection"`
	Username      string   `json:"username,omitempty"`
	Category      Category `json:"listCategory,omitempty"`
}

// TaskFilter selects one page of tasks.
type TaskFilter struct {
	CurrentPage   int        `json:"currentPage"`
	PageSize      int        `json:"pageSize"`
	SortBy        string     `json:"sortBy"`
	SortDirection string     `json:"sortDirection"`
	ListID        string     `json:"listId,omitempty"`
	Username      string     `json:"username,omitempty"`
	Unlisted      bool       `json:"unlisted,omitempty"`
	Status        TaskStatus `json:"taskStatus,omitempty"`
	Priority      Priority   `json:"taskPriority,omitempty"`
}

// sortColumns maps accepted sortBy values to a canonical key.
var sortColumns = map[string]string{
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
	"title":     "title",
	"listTitle": "title",
	"taskTitle": "title",
	"deadline":  "deadline",
	"priority":  "priority",
}

// Paging is the normalized pagination and ordering of a filter.
type Paging struct {
	Page    int    // 1-based
	Size    int    // > 0
	SortKey string // canonical sort key
	Desc    bool
	Offset  int
}

// NormalizePaging validates and fills defaults for paging parameters.
func NormalizePaging(page, size int, sortBy, direction string) (Paging, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	key := "createdAt"
	if sortBy != "" {
		k, ok := sortColumns[sortBy]
		if !ok {
			return Paging{}, fmt.Errorf("%w: unsupported sortBy %q", ErrInvalidRequest, sortBy)
		}
		key = k
	}
	var desc bool
	switch strings.ToUpper(direction) {
	case "", SortDesc:
		desc = true
	case SortAsc:
		desc = false
	default:
		return Paging{}, fmt.Errorf("%w: unsupported sortDirection %q", ErrInvalidRequest, direction)
	}
	return Paging{Page: page, Size: size, SortKey: key, Desc: desc, Offset: (page - 1) * size}, nil
}

// Paging returns the normalized paging of the list filter.
func (f ListFilter) Paging() (Paging, error) {
	return NormalizePaging(f.CurrentPage, f.PageSize, f.SortBy, f.SortDirection)
}

// Paging returns the normalized paging of the task filter.
func (f TaskFilter) Paging() (Paging, error) {
	return NormalizePaging(f.CurrentPage, f.PageSize, f.SortBy, f.SortDirection)
}

// TotalPages returns the number of pages needed for total elements.
func TotalPages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total == 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate sorts items with less (ascending) and returns the requested page.
// It is used by in-memory stores; SQL stores page in the query.
func Paginate[T any](items []T, p Paging, less func(a, b T) bool) Page[T] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if p.Desc {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})

	page := Page[T]{
		Content:       []T{},
		TotalPages:    TotalPages(len(sorted), p.Size),
		TotalElements: len(sorted),
		CurrentPage:   p.Page,
		PageSize:      p.Size,
	}
	if p.Offset >= len(sorted) {
		return page
	}
	end := p.Offset + p.Size
	if end > len(sorted) {
		end = len(sorted)
	}
	page.Content = append(page.Content, sorted[p.Offset:end]...)
	return page
}

// priorityRank orders priorities from LOW to HIGH.
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// LessTasks returns an ascending comparator for tasks on a canonical sort key.
func LessTasks(key string) func(a, b Task) bool {
	switch key {
	case "updatedAt":
		return func(a, b Task) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "title":
		return func(a, b Task) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "priority":
		return func(a, b Task) bool { return priorityRank(a.Priority) < priorityRank(b.Priority) }
	case "deadline":
		// Tasks without a deadline sort first
		return func(a, b Task) bool {
			if a.Deadline == nil || b.Deadline == nil {
				return a.Deadline == nil && b.Deadline != nil
			}
			return a.Deadline.Before(*b.Deadline)
		}
	default:
		return func(a, b Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

// LessLists returns an ascending comparator for lists on a canonical sort key.
func LessLists(key string) func(a, b List) bool {
	switch key {
	case "updatedAt":
		return func(a, b List) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "title":
		return func(a, b List) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		return func(a, b List) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

// MatchTask reports whether a task satisfies the non-paging parts of a filter.
func (f TaskFilter) MatchTask(t Task) bool {
	if f.ListID != "" && t.ListID != f.ListID {
		return false
	}
	if f.Unlisted && t.ListID != "" {
		return false
	}
	if f.Username != "" && t.Username != f.Username {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// MatchList reports whether a list satisfies the non-paging parts of a filter.
func (f ListFilter) MatchList(l List) bool {
	if f.Username != "" && l.Username != f.Username {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	return true
}
