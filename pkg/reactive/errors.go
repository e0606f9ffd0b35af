package reactive

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleDetected is matched by every *CycleError.
	ErrCycleDetected = errors.New("reactive: dependency cycle detected")

	// ErrReleased is returned when tracking on a released graph.
	ErrReleased = errors.New("reactive: graph released")
)

// CycleError is returned when a computed value is read while it is being
// computed, directly or through other computed values.
type CycleError struct {
	Graph string
	Cell  string
}

func (e *CycleError) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("reactive: dependency cycle through %q in %s", e.Cell, e.Graph)
	}
	return fmt.Sprintf("reactive: dependency cycle in %s", e.Graph)
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}
