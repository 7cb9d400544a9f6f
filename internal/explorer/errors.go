package explorer

import (
	"errors"
	"fmt"
)

// ErrResolution marks a contract interface that could not be resolved.
var ErrResolution = errors.New("interface resolution failed")

// ResolutionError carries the upstream verdict for a non-success lookup.
type ResolutionError struct {
	Address    string
	HTTPStatus int
	Status     string
	Message    string
	Result     string
}

func (e *ResolutionError) Error() string {
	detail := e.Result
	if detail == "" {
		detail = e.Message
	}
	return fmt.Sprintf("resolve %s: status %s (http %d): %s", e.Address, e.Status, e.HTTPStatus, detail)
}

func (e *ResolutionError) Unwrap() error {
	return ErrResolution
}
