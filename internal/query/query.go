// Package query builds composite event queries from independent filter axes
// and guarantees results come back in the requested order even when the
// store path could not apply the sort itself.
package query

import (
	"errors"
	"sort"
	"time"

	"github.com/communityhub/events/internal/domain/event"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortField string

type SortDirection string

const (
	SortByDate  SortField = "date"
	SortByTitle SortField = "title"

	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

type Sort struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSort matches the public listing default: newest first.
func DefaultSort() Sort {
	return Sort{Field: SortByDate, Direction: Desc}
}

var ErrInvalidSort = errors.New("invalid sort specification")

// ParseSort validates stringly-typed sort params at the boundary. Empty
// inputs fall back to the defaults.
func ParseSort(field, direction string) (Sort, error) {
	s := DefaultSort()

	switch field {
	case "":
	case string(SortByDate):
		s.Field = SortByDate
	case string(SortByTitle):
		s.Field = SortByTitle
	default:
		return Sort{}, ErrInvalidSort
	}

	switch direction {
	case "":
	case string(Asc):
		s.Direction = Asc
	case string(Desc):
		s.Direction = Desc
	default:
		return Sort{}, ErrInvalidSort
	}

	return s, nil
}

// Filter combines the independent axes with AND semantics. Category "" or
// "all" disables the category predicate; nil dates disable their bound.
type Filter struct {
	Category   event.Category
	StartDate  *time.Time
	EndDate    *time.Time
	OnlyActive bool
}

// HasPredicates reports whether any store-side predicate is in play. When
// false the caller takes the unfiltered path and must re-sort client-side.
func (f Filter) HasPredicates() bool {
	return f.CategorySet() || f.StartDate != nil || f.EndDate != nil || f.OnlyActive
}

func (f Filter) CategorySet() bool {
	return f.Category != "" && f.Category != "all"
}

// StartBound is the inclusive lower bound at day granularity: midnight of
// the start date in its own location.
func (f Filter) StartBound() *time.Time {
	if f.StartDate == nil {
		return nil
	}
	d := *f.StartDate
	t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return &t
}

// EndBound is the inclusive upper bound: the last representable instant of
// the end date.
func (f Filter) EndBound() *time.Time {
	if f.EndDate == nil {
		return nil
	}
	d := *f.EndDate
	t := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), d.Location())
	return &t
}

// Matches applies the filter to a single event, mirroring the store-side
// predicates. The memory repository and tests rely on the two agreeing.
func (f Filter) Matches(e event.Event) bool {
	if f.CategorySet() && e.Category != f.Category {
		return false
	}
	if b := f.StartBound(); b != nil && e.Date.Before(*b) {
		return false
	}
	if b := f.EndBound(); b != nil && e.Date.After(*b) {
		return false
	}
	if f.OnlyActive && !e.IsActive {
		return false
	}
	return true
}

// titleCollator gives locale-aware, case-insensitive title ordering.
// collate.Collator is not safe for concurrent use, so take a fresh one
// per sort rather than sharing one behind a lock.
func titleCollator() *collate.Collator {
	return collate.New(language.English, collate.IgnoreCase)
}

// SortEvents orders events in place per the sort spec. Dates are compared
// as epoch milliseconds, matching the wire precision of the store; titles
// use collation rather than raw byte order. The sort is stable so records
// with equal keys keep their store order.
func SortEvents(events []event.Event, s Sort) {
	var less func(a, b event.Event) bool

	switch s.Field {
	case SortByTitle:
		col := titleCollator()
		less = func(a, b event.Event) bool {
			return col.CompareString(a.Title, b.Title) < 0
		}
	default:
		less = func(a, b event.Event) bool {
			return a.Date.UnixMilli() < b.Date.UnixMilli()
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if s.Direction == Desc {
			return less(events[j], events[i])
		}
		return less(events[i], events[j])
	})
}

// Apply runs the whole pipeline client-side: filter then sort. Used by the
// memory repository and as the safety net over unfiltered store reads.
func Apply(events []event.Event, f Filter, s Sort) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	SortEvents(out, s)
	return out
}
