package filecat

import (
	"fmt"
	"strconv"
	"time"
)

// FileFilter selects which active records ListFiles returns.
// The numeric values are part of the HTTP contract (?filter=1|2|3).
type FileFilter int

const (
	FilterAll          FileFilter = 1
	FilterCategorized  FileFilter = 2
	FilterToCategorize FileFilter = 3
)

// ParseFileFilter converts the query parameter form into a FileFilter.
// An empty string means FilterAll.
func ParseFileFilter(raw string) (FileFilter, error) {
	if raw == "" {
		return FilterAll, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError("filter", fmt.Sprintf("not a number: %q", raw))
	}
	f := FileFilter(n)
	if !f.Valid() {
		return 0, NewValidationError("filter", fmt.Sprintf("must be 1, 2 or 3, got %d", n))
	}
	return f, nil
}

// Valid reports whether f is one of the known filters.
func (f FileFilter) Valid() bool {
	return f == FilterAll || f == FilterCategorized || f == FilterToCategorize
}

func (f FileFilter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterCategorized:
		return "categorized"
	case FilterToCategorize:
		return "to-categorize"
	default:
		return fmt.Sprintf("filter(%d)", int(f))
	}
}

// FileRecord is one tracked filesystem entry and its categorization state.
//
// Invariant: NeedsCategorization == false implies Category != "".
type FileRecord struct {
	ID                  int64     `json:"id"`
	Path                string    `json:"path"`
	Name                string    `json:"name"`
	Size                int64     `json:"size"`
	ModifiedAt          time.Time `json:"modifiedAt"`
	Category            string    `json:"category,omitempty"`
	NeedsCategorization bool      `json:"needsCategorization"`
	IsNew               bool      `json:"isNew"`
	ExcludeFromMove     bool      `json:"excludeFromMove"`
	Deleted             bool      `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	LastSeenAt          time.Time `json:"lastSeenAt"`
}

// HasCategory reports whether a category is assigned.
func (r *FileRecord) HasCategory() bool {
	return r.Category != ""
}

// PendingMove reports whether the record shows up in the "ready to move" view:
// categorized and not excluded from moving.
func (r *FileRecord) PendingMove() bool {
	return !r.NeedsCategorization && r.HasCategory() && !r.ExcludeFromMove
}

// Matches reports whether the record belongs to the given filter.
func (r *FileRecord) Matches(f FileFilter) bool {
	switch f {
	case FilterCategorized:
		return !r.NeedsCategorization
	case FilterToCategorize:
		return r.NeedsCategorization
	default:
		return true
	}
}

// ConfigEntry is an environment-scoped key/value setting.
type ConfigEntry struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Environment string    `json:"environment"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Known configuration environments.
const (
	EnvironmentDev  = "dev"
	EnvironmentProd = "prod"
)

// ValidEnvironment reports whether env is a known configuration scope.
func ValidEnvironment(env string) bool {
	return env == EnvironmentDev || env == EnvironmentProd
}
