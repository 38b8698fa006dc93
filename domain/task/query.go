package task

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTitleLength is the maximum title length in characters.
	MaxTitleLength = 255
	// MaxSearchLength is the maximum length of a free-text search string.
	MaxSearchLength = 255
	// MaxOwnerIDLength matches the width of the user_id column.
	MaxOwnerIDLength = 128
)

// NormalizeTitle trims surrounding whitespace and validates the result.
func NormalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", NewValidationError("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", NewValidationError("title", "must be at most 255 characters")
	}
	return title, nil
}

// NewTask is the input of a create operation. The owner is supplied separately
// by the caller context.
type NewTask struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Patch is a partial update. Omitted fields are left unchanged.
type Patch struct {
	Title       Optional[string]    `json:"title,omitzero"`
	Description Optional[string]    `json:"description,omitzero"`
	Status      Optional[Status]    `json:"status,omitzero"`
	Priority    Optional[Priority]  `json:"priority,omitzero"`
	DueDate     Optional[time.Time] `json:"due_date,omitzero"`
}

// Scope restricts reads to one owner unless it was built with AnyOwner.
type Scope struct {
	OwnerID  string `json:"owner_id,omitempty"`
	AnyOwner bool   `json:"any_owner,omitempty"`
}

// OwnedBy scopes a read to the tasks of ownerID.
func OwnedBy(ownerID string) Scope {
	return Scope{OwnerID: ownerID}
}

// AnyOwner disables owner scoping. Only elevated contexts may use it.
func AnyOwner() Scope {
	return Scope{AnyOwner: true}
}

// Allows reports whether t is visible under the scope.
func (s Scope) Allows(t *Task) bool {
	if s.AnyOwner {
		return true
	}
	return s.OwnerID != "" && t.UserID == s.OwnerID
}

// Filter selects tasks for listing. All set fields combine with AND; Search
// matches title OR description case-insensitively.
type Filter struct {
	OwnerID  string   `json:"owner_id"`
	Status   Status   `json:"status,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Search   string   `json:"search,omitempty"`
}

// Matches reports whether t satisfies the filter.
func (f Filter) Matches(t *Task) bool {
	if t.UserID != f.OwnerID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), needle)
}

// ListQuery is the input of a list operation.
type ListQuery struct {
	Filter
	Page int `json:"page"`
	Size int `json:"size"`
}

// Offset returns the zero-based offset of the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Size
}

// MaxPage is the highest page number whose offset fits in an int for the
// given page size.
func MaxPage(size int) int {
	if size < 1 {
		return 0
	}
	return (math.MaxInt-1)/size + 1
}

// Page is one page of a listing.
type Page struct {
	Tasks      []Task `json:"tasks"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	Size       int    `json:"size"`
	TotalPages int    `json:"total_pages"`
}

// TotalPages returns ceil(total/size), or 0 when there is nothing to page.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// StatusCounts maps every status to the number of tasks in it.
type StatusCounts map[Status]int64

// NewStatusCounts returns counts with every known status present at zero.
func NewStatusCounts() StatusCounts {
	counts := make(StatusCounts, len(AllStatuses()))
	for _, s := range AllStatuses() {
		counts[s] = 0
	}
	return counts
}
