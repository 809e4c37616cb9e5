package query

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection parses asc/desc case-insensitively. Empty input yields "".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid direction %q (want asc or desc)", s)
	}
}

// Dimension is an enumerated filter axis.
type Dimension string

const (
	DimSource  Dimension = "source"
	DimAction  Dimension = "action"
	DimBrowser Dimension = "browser"
	DimHost    Dimension = "host"
	DimStatus  Dimension = "status"
	DimFolder  Dimension = "folder"
)

// DateRange bounds a query inclusively, in Unix milliseconds.
type DateRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Fragment is a caller-supplied predicate appended verbatim. The caller is
// responsible for its safety; Args bind to its placeholders in order.
type Fragment struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// Spec declares filters, sorting and grouping for one query.
type Spec struct {
	Search    string                 `json:"search,omitempty"`
	Filters   map[Dimension][]string `json:"filters,omitempty"`
	DateRange *DateRange             `json:"date_range,omitempty"`
	SortField string                 `json:"sort_field,omitempty"`
	SortDir   Direction              `json:"sort_dir,omitempty"`
	GroupBy   string                 `json:"group_by,omitempty"`
	GroupDir  Direction              `json:"group_dir,omitempty"`
	Advanced  []Fragment             `json:"advanced,omitempty"`
}

// Page limits the item query. Limit <= 0 means unlimited.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Query is a parameterized statement ready for the store.
type Query struct {
	SQL  string
	Args []any
}

// GroupCount is one row of a group-count or date-count query.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
