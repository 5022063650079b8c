// Package session provides the per-guild playback session.
package session

// State represents the session playback state.
type State int

const (
	StateIdle      State = iota // Nothing loaded
	StatePlaying                // Track is playing
	StatePaused                 // Track is paused
	StateDestroyed              // Torn down, terminal
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// LoopMode governs what happens to a track when it finishes.
type LoopMode int

const (
	LoopNone  LoopMode = iota // Finished tracks are discarded
	LoopQueue                 // Finished tracks are re-appended to the tail
)

// String returns the string representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopNone:
		return "none"
	case LoopQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Outcome is the result of advancing a session after a track ended.
type Outcome int

const (
	OutcomeIgnored  Outcome = iota // Stale or non-advancing event
	OutcomeAdvanced                // Next track started
	OutcomeEnded                   // Queue ran out, session torn down
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeEnded:
		return "ended"
	default:
		return "unknown"
	}
}
