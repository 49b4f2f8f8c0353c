package calls

import (
	"fmt"
	"time"

	"callcenter-analytics/internal/apperr"
)

// Pagination bounds for the listing endpoint.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MinPage         = 1
	MinPageSize     = 1
	MaxPageSize     = 100
)

// ListFilter narrows the listing query. All fields are optional; date bounds
// apply to start_time.
type ListFilter struct {
	FromDate  *time.Time
	UntilDate *time.Time
	Status    string
	AgentID   string
	UserID    string
}

// Page is a raw page request as parsed from query parameters.
type Page struct {
	Page     int
	PageSize int
}

// Normalized clamps the request into valid bounds: page >= 1, pageSize in
// [1, 100], with defaults for zero values.
func (p Page) Normalized() Page {
	out := p
	if out.Page < MinPage {
		if out.Page == 0 {
			out.Page = DefaultPage
		} else {
			out.Page = MinPage
		}
	}
	if out.PageSize == 0 {
		out.PageSize = DefaultPageSize
	}
	if out.PageSize < MinPageSize {
		out.PageSize = MinPageSize
	}
	if out.PageSize > MaxPageSize {
		out.PageSize = MaxPageSize
	}
	return out
}

// Offset returns the row offset for a normalized page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Pagination is the metadata block returned alongside a page of results.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"pageSize"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewPagination derives page metadata from a normalized page and a total count.
func NewPagination(p Page, totalItems int) Pagination {
	totalPages := (totalItems + p.PageSize - 1) / p.PageSize
	return Pagination{
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     p.Page < totalPages,
		HasPrevious: p.Page > 1,
	}
}

// dateLayouts accepted for date-range query parameters.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDateRange validates optional fromDate/untilDate parameters.
// Empty strings mean the bound is absent. When both are present, fromDate
// must not be after untilDate.
func ParseDateRange(fromDate, untilDate string) (*time.Time, *time.Time, error) {
	var from, until *time.Time

	if fromDate != "" {
		t, err := parseDate(fromDate)
		if err != nil {
			return nil, nil, apperr.Validation("Invalid date format for fromDate. Use ISO 8601 format (e.g., 2024-01-01T00:00:00Z)")
		}
		from = &t
	}
	if untilDate != "" {
		t, err := parseDate(untilDate)
		if err != nil {
			return nil, nil, apperr.Validation("Invalid date format for untilDate. Use ISO 8601 format (e.g., 2024-01-01T00:00:00Z)")
		}
		until = &t
	}

	if from != nil && until != nil && from.After(*until) {
		return nil, nil, apperr.Validation("fromDate must be before untilDate")
	}
	return from, until, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
