package query

import (
	"fmt"
	"strings"
)

// SortDirection is the direction of a single sort key.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

func (d SortDirection) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection parses "asc" or "desc" (case-insensitive). An empty string
// is ascending.
func ParseDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("%q: %w", s, ErrInvalidDirection)
	}
}

// SortingParameter is one key of a multi-key sort.
type SortingParameter struct {
	FieldName string
	Direction SortDirection
}

// Asc returns an ascending sort key on the named field.
func Asc(field string) SortingParameter {
	return SortingParameter{FieldName: field, Direction: Ascending}
}

// Desc returns a descending sort key on the named field.
func Desc(field string) SortingParameter {
	return SortingParameter{FieldName: field, Direction: Descending}
}

func (p SortingParameter) String() string {
	return p.FieldName + ":" + p.Direction.String()
}

// SortSpec is an ordered list of sort keys. The first entry is the primary
// key, every following entry breaks ties of the ones before it. Duplicate
// field names are not rejected.
type SortSpec []SortingParameter

// ParseSortSpec parses the comma separated form used by the HTTP API and the
// CLI, e.g. "Name:desc,ID". A missing direction means ascending.
func ParseSortSpec(s string) (SortSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var spec SortSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, _ := strings.Cut(part, ":")
		direction, err := ParseDirection(dir)
		if err != nil {
			return nil, err
		}
		spec = append(spec, SortingParameter{FieldName: strings.TrimSpace(name), Direction: direction})
	}
	return spec, nil
}

func (s SortSpec) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
