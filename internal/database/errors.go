package database

import (
	"errors"
	"fmt"

	"github.com/shortify/shortify/internal/models"
)

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a link with a short code that is already taken.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when a link lookup, update or delete
	// targets a short code or id that doesn't exist. Ownership mismatches
	// are reported with the same error so existence isn't leaked.
	ErrLinkNotFound = errors.New("link not found")
	// ErrLimitExceeded is the sentinel matched by errors.Is against
	// LimitExceededError values.
	ErrLimitExceeded = errors.New("usage limit exceeded")
)

// LimitExceededError reports that a quota counter is at its plan limit.
// It carries the counter kind so callers can tell the user which quota
// ran out. Matches ErrLimitExceeded via errors.Is.
type LimitExceededError struct {
	Kind models.CounterKind
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("usage limit exceeded for %s", e.Kind)
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}
