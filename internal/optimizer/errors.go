package optimizer

import "errors"

var (
	// ErrTooManyTours is returned when a region holds more tours than the configured search ceiling.
	ErrTooManyTours = errors.New("region has too many tours for an exhaustive search")
	// ErrSearchAborted wraps the context error when a search is canceled or times out.
	ErrSearchAborted = errors.New("search aborted")
)
