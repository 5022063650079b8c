// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/vitality/internal/domain/track"
)

// Playlist represents a named collection of catalog tracks (a playlist or an album).
type Playlist struct {
	ID     string        // Catalog ID
	Name   string        // Display name
	URL    string        // Catalog URL
	Tracks []track.Track // Tracks in order
}

// TotalDuration returns the total duration of all non-stream tracks.
func TotalDuration(tracks []track.Track) time.Duration {
	var total time.Duration
	for _, t := range tracks {
		if t.IsStream {
			continue
		}
		total += t.Duration
	}
	return total
}

// TotalDuration returns the total duration of the playlist.
func (p *Playlist) TotalDuration() time.Duration {
	return TotalDuration(p.Tracks)
}
