package storage

import "eventScope/internal/model"

// Storage is an export sink for decoded events.
type Storage interface {
	PutEvents(events []model.LogEvent) error
}
