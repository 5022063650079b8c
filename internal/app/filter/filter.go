// Package filter provides the filter chain for track admission.
package filter

import (
	"context"
	"fmt"

	"github.com/osa030/vitality/internal/domain/track"
)

// Request represents a track about to join a session queue.
type Request struct {
	Track   track.QueuedTrack   // Track being added
	Current *track.QueuedTrack  // Track currently loaded, if any
	Queue   []track.QueuedTrack // Tracks waiting to be played
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duration_limit_exceeded", "queue_full"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Err returns nil for accepted results and a *RejectedError otherwise.
func (r Result) Err() error {
	if r.Accepted {
		return nil
	}
	return &RejectedError{Code: r.Code}
}

// RejectedError reports a track refused by a filter.
type RejectedError struct {
	Code string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("track rejected: %s", e.Code)
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check.
	Check(ctx context.Context, req Request) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
