package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrAuthExpired       = errors.New("session expired: re-authentication required")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrRefreshRejected   = errors.New("token refresh rejected")
	ErrPositionCollision = errors.New("position collision")
	ErrTransport         = errors.New("transport failure")
	ErrSaveRejected      = errors.New("save rejected")
	ErrStaleResponse     = errors.New("stale response discarded")
	ErrSessionClosed     = errors.New("edit session closed")
	ErrNotPermutation    = errors.New("page order is not a permutation of the loaded page")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrNoPageLoaded      = errors.New("no page loaded")
	ErrSaveInProgress    = errors.New("a save is already in progress")
)

// CollisionError lists the positions claimed by more than one variant.
type CollisionError struct {
	Collisions map[int][]VariantKey
}

func (e *CollisionError) Error() string {
	positions := make([]int, 0, len(e.Collisions))
	for pos := range e.Collisions {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	parts := make([]string, 0, len(positions))
	for _, pos := range positions {
		keys := make([]string, 0, len(e.Collisions[pos]))
		for _, k := range e.Collisions[pos] {
			keys = append(keys, k.String())
		}
		parts = append(parts, fmt.Sprintf("%d: [%s]", pos, strings.Join(keys, ", ")))
	}
	return fmt.Sprintf("position collision: %s", strings.Join(parts, "; "))
}

func (e *CollisionError) Unwrap() error { return ErrPositionCollision }

// TransportError wraps network failures and unusable responses from the remote API
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// SaveRejectedError carries the save endpoint's refusal verbatim
type SaveRejectedError struct {
	Status  int
	Message string
}

func (e *SaveRejectedError) Error() string {
	return fmt.Sprintf("save rejected (status %d): %s", e.Status, e.Message)
}

func (e *SaveRejectedError) Unwrap() error { return ErrSaveRejected }
