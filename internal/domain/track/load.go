package track

// LoadType classifies the outcome of resolving a query.
type LoadType int

const (
	LoadTypeEmpty    LoadType = iota // Nothing matched
	LoadTypeTrack                    // A single direct track
	LoadTypePlaylist                 // A playlist (every track is relevant)
	LoadTypeSearch                   // Search results (first hit is relevant)
)

// String returns the string representation of the load type.
func (l LoadType) String() string {
	switch l {
	case LoadTypeEmpty:
		return "empty"
	case LoadTypeTrack:
		return "track"
	case LoadTypePlaylist:
		return "playlist"
	case LoadTypeSearch:
		return "search"
	default:
		return "unknown"
	}
}

// LoadResult is the uniform result of every resolution strategy.
type LoadResult struct {
	Type          LoadType
	Tracks        []Track
	PlaylistName  string // Only set for LoadTypePlaylist
	SelectedTrack int    // Index hint for playlists, -1 if none
}

// Empty returns a result with nothing matched.
func Empty() LoadResult {
	return LoadResult{Type: LoadTypeEmpty, SelectedTrack: -1}
}

// IsEmpty reports whether the result carries no playable tracks.
func (r LoadResult) IsEmpty() bool {
	return r.Type == LoadTypeEmpty || len(r.Tracks) == 0
}
