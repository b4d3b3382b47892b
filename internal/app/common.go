package app

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/gradebook/internal/ports/secondary"
)

// newID returns the ID of a locally created record.
func newID() string {
	return uuid.NewString()
}

// formatTime renders a timestamp for the port boundary; zero is "".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// found maps a repository lookup error to an existence flag. Errors other
// than ErrNotFound are returned.
func found(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, secondary.ErrNotFound) {
		return false, nil
	}
	return false, err
}
