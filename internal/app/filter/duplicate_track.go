package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/vitality/internal/domain/track"
)

// DuplicateTrackFilter checks for duplicate tracks in the queue and the
// currently loaded track.
// Detects:
// - Exact identifier matches
// - Remasters (normalized title + same main author)
// Excludes:
// - Cover songs (same title but different author)
type DuplicateTrackFilter struct{}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already queued or playing (remasters included); covers are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request) Result {
	requested := req.Track.Track

	candidates := req.Queue
	if req.Current != nil {
		candidates = append([]track.QueuedTrack{*req.Current}, req.Queue...)
	}

	for _, queued := range candidates {
		// 1. Exact identifier match
		if queued.Track.Identifier != "" && queued.Track.Identifier == requested.Identifier {
			return Reject("duplicate_track")
		}

		// 2. Remaster detection: normalized title + same author
		if isRemaster(queued.Track, requested) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// isRemaster checks if two tracks are the same song (remaster/different version).
func isRemaster(track1, track2 track.Track) bool {
	// If normalized titles don't match, they're different songs
	if normalizeTrackName(track1.Title) != normalizeTrackName(track2.Title) {
		return false
	}

	// Same normalized title with a different author is a cover (allowed)
	return isSameArtist(track1, track2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(official.*?\)`),       // "(Official Video)"
		regexp.MustCompile(`\s*\[official.*?\]`),       // "[Official Audio]"
		regexp.MustCompile(`\s*-\s*live\b`),            // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove extra whitespace
	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	return strings.TrimRight(normalized, " -")
}

// mainArtist returns the first credited author, without the " - Topic"
// suffix of auto-generated channels.
func mainArtist(author string) string {
	main, _, _ := strings.Cut(author, ",")
	main = strings.TrimSpace(main)
	main = strings.TrimSuffix(main, " - Topic")
	return strings.ToLower(main)
}

// isSameArtist checks if two tracks have the same main author.
func isSameArtist(track1, track2 track.Track) bool {
	a1, a2 := mainArtist(track1.Author), mainArtist(track2.Author)
	if a1 == "" || a2 == "" {
		return false
	}
	return a1 == a2
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return &DuplicateTrackFilter{}
	})
}
