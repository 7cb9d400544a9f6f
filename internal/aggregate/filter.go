package aggregate

import (
	"sort"

	"eventScope/internal/model"
)

// FilterOptions returns each distinct event name once, sorted by name.
func FilterOptions(events []model.LogEvent) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0)
	for _, event := range events {
		if _, ok := seen[event.Event]; ok {
			continue
		}
		seen[event.Event] = struct{}{}
		out = append(out, event.Event)
	}
	sort.Strings(out)
	return out
}

// FilterByName keeps the events whose name is listed. No names keeps everything.
func FilterByName(events []model.LogEvent, names ...string) []model.LogEvent {
	if len(names) == 0 {
		return events
	}
	allowed := make(map[string]struct{}, len(names))
	for _, name := range names {
		allowed[name] = struct{}{}
	}

	out := make([]model.LogEvent, 0, len(events))
	for _, event := range events {
		if _, ok := allowed[event.Event]; ok {
			out = append(out, event)
		}
	}
	return out
}
