package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"eventScope/internal/model"
)

// Order is the presentation order of the event table.
type Order int

const (
	Descending Order = iota
	Ascending
)

// ParseOrder accepts "asc" or "desc"; empty input selects Descending.
func ParseOrder(input string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	default:
		return Descending, fmt.Errorf("invalid order: %s", input)
	}
}

func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// SortByBlock returns a copy of events ordered by block number, then by log
// index, both in the requested direction. Remaining ties keep input order.
func SortByBlock(events []model.LogEvent, order Order) []model.LogEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.LogEvent) int {
		c := cmp.Or(
			cmp.Compare(a.BlockNumber, b.BlockNumber),
			cmp.Compare(a.LogIndex, b.LogIndex),
		)
		if order == Descending {
			return -c
		}
		return c
	})
	return out
}

// replayOrder is the ascending block order used to fold roles. Events sharing
// a block keep input order.
func replayOrder(events []model.LogEvent) []model.LogEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.LogEvent) int {
		return cmp.Compare(a.BlockNumber, b.BlockNumber)
	})
	return out
}
