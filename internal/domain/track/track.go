// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents a playable track as reported by the audio node.
type Track struct {
	Encoded    string        // Opaque node handle used to start playback
	Identifier string        // Source-specific identifier
	Title      string        // Track title
	Author     string        // Artist / uploader
	Duration   time.Duration // Track length (zero for streams)
	URI        string        // Source URL
	ArtworkURL string        // Artwork URL
	SourceName string        // e.g. "youtube", "soundcloud", "spotify"
	IsStream   bool          // Live stream flag
}

// Requester represents the person who requested the track.
type Requester struct {
	ID   string // Chat user ID
	Name string // Display name
}

// Mention returns the chat mention for the requester.
func (r Requester) Mention() string {
	if r.ID == "" {
		return r.Name
	}
	return fmt.Sprintf("<@%s>", r.ID)
}

// QueuedTrack represents a track in a session queue.
type QueuedTrack struct {
	Track     Track     // Track info
	Requester Requester // Requester info
	AddedAt   time.Time // Time when added to queue
}

// Same reports whether both tracks refer to the same node handle.
func (t Track) Same(other Track) bool {
	if t.Encoded != "" || other.Encoded != "" {
		return t.Encoded == other.Encoded
	}
	return t.Identifier == other.Identifier
}

// FormatDuration renders a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Length returns the human-readable length, or "LIVE" for streams.
func (t Track) Length() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}
