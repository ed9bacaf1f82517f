package advisory

import (
	"errors"
	"strings"
	"time"
)

// PageSize is fixed for every question list.
const PageSize = 5

const DateLayout = "2006-01-02"

type StatusFilter string

const (
	StatusAll        StatusFilter = "all"
	StatusFilterOpen StatusFilter = StatusFilter(StatusUnanswered)
	StatusFilterDone StatusFilter = StatusFilter(StatusAnswered)
)

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

var (
	ErrInvalidStatusFilter = errors.New("status must be all, belum_dijawab or dijawab")
	ErrInvalidSortOrder    = errors.New("sortBy must be newest or oldest")
	ErrInvalidDate         = errors.New("dates must use YYYY-MM-DD")
)

type Filter struct {
	Status   StatusFilter
	SortBy   SortOrder
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
}

// Normalize applies defaults: status all, newest first, page 1.
func (f Filter) Normalize() Filter {
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.SortBy == "" {
		f.SortBy = SortNewest
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func (f Filter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}

func (f Filter) Validate() error {
	switch f.Status {
	case "", StatusAll, StatusFilterOpen, StatusFilterDone:
	default:
		return ErrInvalidStatusFilter
	}
	switch f.SortBy {
	case "", SortNewest, SortOldest:
	default:
		return ErrInvalidSortOrder
	}
	return nil
}

// TotalPages is ceil(total / PageSize).
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// ParseDate reads a YYYY-MM-DD value; blank input yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &parsed, nil
}
