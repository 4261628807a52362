// Package shared holds listing helpers common to the master-data modules.
package shared

// ListFilters narrows master-data listings.
type ListFilters struct {
	Search   string
	IsActive *bool
	Page     int
	Limit    int
	SortBy   string
	SortDir  string
}

// Offset returns the row offset implied by Page and Limit.
func (f ListFilters) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
