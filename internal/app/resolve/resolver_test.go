package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vitality/internal/domain/playlist"
	"github.com/osa030/vitality/internal/domain/track"
	"github.com/osa030/vitality/internal/infra/config"
)

type fakeLoader struct {
	mu      sync.Mutex
	calls   []string
	results map[string]track.LoadResult
	err     error
}

func (l *fakeLoader) LoadTracks(_ context.Context, identifier string) (track.LoadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, identifier)
	if l.err != nil {
		return track.Empty(), l.err
	}
	if r, ok := l.results[identifier]; ok {
		return r, nil
	}
	return track.Empty(), nil
}

func searchResult(encoded ...string) track.LoadResult {
	r := track.LoadResult{Type: track.LoadTypeSearch, SelectedTrack: -1}
	for _, e := range encoded {
		r.Tracks = append(r.Tracks, track.Track{Encoded: e, Identifier: "id-" + e, Title: "node " + e, Duration: time.Minute})
	}
	return r
}

func TestResolver_Identifier(t *testing.T) {
	r := New(&fakeLoader{}, "ytmsearch")

	tests := []struct {
		query    string
		expected string
	}{
		{"never gonna give you up", "ytmsearch:never gonna give you up"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"http://soundcloud.com/artist/song", "http://soundcloud.com/artist/song"},
		{"ftp://example.com/file", "ytmsearch:ftp://example.com/file"},
		{"www.youtube.com/watch", "ytmsearch:www.youtube.com/watch"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Identifier(tt.query))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("free text is searched on the default platform", func(t *testing.T) {
		loader := &fakeLoader{results: map[string]track.LoadResult{"scsearch:song": searchResult("a", "b")}}
		r := New(loader, "scsearch")

		result, err := r.Resolve(context.Background(), "  song ")
		require.NoError(t, err)
		assert.Equal(t, track.LoadTypeSearch, result.Type)
		assert.Len(t, result.Tracks, 2)
		assert.Equal(t, []string{"scsearch:song"}, loader.calls)
	})

	t.Run("empty query does not reach the node", func(t *testing.T) {
		loader := &fakeLoader{}
		r := New(loader, "ytsearch")

		result, err := r.Resolve(context.Background(), "   ")
		require.NoError(t, err)
		assert.True(t, result.IsEmpty())
		assert.Empty(t, loader.calls)
	})

	t.Run("loader error is returned", func(t *testing.T) {
		r := New(&fakeLoader{err: errors.New("node down")}, "ytsearch")

		_, err := r.Resolve(context.Background(), "song")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node down")
	})

	t.Run("matching source takes precedence", func(t *testing.T) {
		loader := &fakeLoader{results: map[string]track.LoadResult{"ytsearch:A Artist": searchResult("x")}}
		catalog := &fakeCatalog{tracks: map[string]track.Track{"abc": {Identifier: "abc", Title: "A", Author: "Artist"}}}
		r := New(loader, "ytsearch", NewSpotifySource(catalog, loader, "ytsearch", SpotifyConfig{MaxTracks: 10, Concurrency: 2}))

		result, err := r.Resolve(context.Background(), "https://open.spotify.com/track/abc")
		require.NoError(t, err)
		assert.Equal(t, track.LoadTypeTrack, result.Type)
		require.Len(t, result.Tracks, 1)
		assert.Equal(t, "x", result.Tracks[0].Encoded)
		assert.NotContains(t, loader.calls, "https://open.spotify.com/track/abc")
	})
}

type fakeCatalog struct {
	tracks    map[string]track.Track
	playlists map[string]*playlist.Playlist
	err       error
}

func (c *fakeCatalog) GetTrack(_ context.Context, id string) (*track.Track, error) {
	if c.err != nil {
		return nil, c.err
	}
	t, ok := c.tracks[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &t, nil
}

func (c *fakeCatalog) GetAlbum(_ context.Context, id string, limit int) (*playlist.Playlist, error) {
	return c.collection(id, limit)
}

func (c *fakeCatalog) GetPlaylist(_ context.Context, id string, limit int) (*playlist.Playlist, error) {
	return c.collection(id, limit)
}

func (c *fakeCatalog) collection(id string, limit int) (*playlist.Playlist, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.playlists[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *p
	if len(cp.Tracks) > limit {
		cp.Tracks = cp.Tracks[:limit]
	}
	return &cp, nil
}

func TestSpotifySource_Matches(t *testing.T) {
	s := NewSpotifySource(&fakeCatalog{}, &fakeLoader{}, "ytsearch", SpotifyConfig{MaxTracks: 1, Concurrency: 1})

	assert.True(t, s.Matches("https://open.spotify.com/track/abc"))
	assert.True(t, s.Matches("spotify:album:xyz"))
	assert.True(t, s.Matches("https://open.spotify.com/intl-ja/playlist/p1?si=1"))
	assert.False(t, s.Matches("https://www.youtube.com/watch?v=1"))
	assert.False(t, s.Matches("spotify"))
}

func TestSpotifySource_Track(t *testing.T) {
	loader := &fakeLoader{results: map[string]track.LoadResult{"ytsearch:Song Band": searchResult("enc")}}
	catalog := &fakeCatalog{tracks: map[string]track.Track{
		"t1": {Identifier: "t1", Title: "Song", Author: "Band", URI: "https://open.spotify.com/track/t1", ArtworkURL: "https://img/1", SourceName: "spotify"},
	}}
	s := NewSpotifySource(catalog, loader, "ytsearch", SpotifyConfig{MaxTracks: 10, Concurrency: 2})

	result, err := s.Resolve(context.Background(), "spotify:track:t1")
	require.NoError(t, err)
	require.Len(t, result.Tracks, 1)

	got := result.Tracks[0]
	assert.Equal(t, "enc", got.Encoded)
	assert.Equal(t, "id-enc", got.Identifier)
	assert.Equal(t, time.Minute, got.Duration)
	assert.Equal(t, "Song", got.Title)
	assert.Equal(t, "Band", got.Author)
	assert.Equal(t, "https://open.spotify.com/track/t1", got.URI)
	assert.Equal(t, "https://img/1", got.ArtworkURL)
}

func TestSpotifySource_TrackWithoutMirror(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string]track.Track{"t1": {Title: "Obscure", Author: "Nobody"}}}
	s := NewSpotifySource(catalog, &fakeLoader{}, "ytsearch", SpotifyConfig{MaxTracks: 10, Concurrency: 2})

	result, err := s.Resolve(context.Background(), "spotify:track:t1")
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestSpotifySource_Playlist(t *testing.T) {
	var catalogTracks []track.Track
	results := make(map[string]track.LoadResult)
	for i := range 8 {
		title := strings.Repeat("t", i+1)
		catalogTracks = append(catalogTracks, track.Track{Title: title, Author: "A"})
		// every third entry has no search hit
		if i%3 != 2 {
			results["ytsearch:"+title+" A"] = searchResult(title)
		}
	}
	loader := &fakeLoader{results: results}
	catalog := &fakeCatalog{playlists: map[string]*playlist.Playlist{
		"p1": {ID: "p1", Name: "Mix", Tracks: catalogTracks},
	}}
	s := NewSpotifySource(catalog, loader, "ytsearch", SpotifyConfig{MaxTracks: 100, Concurrency: 3})

	result, err := s.Resolve(context.Background(), "https://open.spotify.com/playlist/p1")
	require.NoError(t, err)
	assert.Equal(t, track.LoadTypePlaylist, result.Type)
	assert.Equal(t, "Mix", result.PlaylistName)

	var encoded []string
	for _, tr := range result.Tracks {
		encoded = append(encoded, tr.Encoded)
	}
	assert.Equal(t, []string{"t", "tt", "tttt", "ttttt", "ttttttt", "tttttttt"}, encoded)
}

func TestSpotifySource_AlbumLimit(t *testing.T) {
	loader := &fakeLoader{results: map[string]track.LoadResult{
		"ytsearch:one A": searchResult("1"),
		"ytsearch:two A": searchResult("2"),
	}}
	catalog := &fakeCatalog{playlists: map[string]*playlist.Playlist{
		"al": {Name: "Album", Tracks: []track.Track{{Title: "one", Author: "A"}, {Title: "two", Author: "A"}}},
	}}
	s := NewSpotifySource(catalog, loader, "ytsearch", SpotifyConfig{MaxTracks: 1, Concurrency: 1})

	result, err := s.Resolve(context.Background(), "spotify:album:al")
	require.NoError(t, err)
	require.Len(t, result.Tracks, 1)
	assert.Equal(t, "1", result.Tracks[0].Encoded)
}

func TestSpotifySource_NothingMirrored(t *testing.T) {
	catalog := &fakeCatalog{playlists: map[string]*playlist.Playlist{
		"p": {Name: "Ghosts", Tracks: []track.Track{{Title: "x"}}},
	}}
	s := NewSpotifySource(catalog, &fakeLoader{}, "ytsearch", SpotifyConfig{MaxTracks: 5, Concurrency: 1})

	result, err := s.Resolve(context.Background(), "spotify:playlist:p")
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestSpotifySource_CatalogError(t *testing.T) {
	s := NewSpotifySource(&fakeCatalog{err: errors.New("unauthorized")}, &fakeLoader{}, "ytsearch", SpotifyConfig{MaxTracks: 5, Concurrency: 1})

	_, err := s.Resolve(context.Background(), "spotify:playlist:p")
	require.Error(t, err)
}

func TestParseSpotifyConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		expected SpotifyConfig
	}{
		{
			name:     "defaults applied",
			settings: map[string]any{"client_id": "id", "client_secret": "secret"},
			expected: SpotifyConfig{ClientID: "id", ClientSecret: "secret", MaxTracks: 100, Concurrency: 5},
		},
		{
			name:     "explicit values",
			settings: map[string]any{"client_id": "id", "client_secret": "secret", "market": "JP", "max_tracks": 20, "concurrency": 2},
			expected: SpotifyConfig{ClientID: "id", ClientSecret: "secret", Market: "JP", MaxTracks: 20, Concurrency: 2},
		},
		{
			name:     "missing credentials",
			settings: map[string]any{"client_id": "id"},
			wantErr:  true,
		},
		{
			name:     "bad market",
			settings: map[string]any{"client_id": "id", "client_secret": "secret", "market": "JPN"},
			wantErr:  true,
		},
		{
			name:     "concurrency too high",
			settings: map[string]any{"client_id": "id", "client_secret": "secret", "concurrency": 50},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpotifyConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		r, err := NewFromConfig(context.Background(), config.ResolverConfig{DefaultSearchPlatform: "ytsearch"}, &fakeLoader{})
		require.NoError(t, err)
		assert.Empty(t, r.sources)
	})

	t.Run("unknown source type", func(t *testing.T) {
		_, err := NewFromConfig(context.Background(), config.ResolverConfig{
			DefaultSearchPlatform: "ytsearch",
			Sources:               []config.SourceConfig{{Type: "deezer"}},
		}, &fakeLoader{})
		assert.Error(t, err)
	})

	t.Run("spotify source", func(t *testing.T) {
		r, err := NewFromConfig(context.Background(), config.ResolverConfig{
			DefaultSearchPlatform: "ytsearch",
			Sources: []config.SourceConfig{{Type: "spotify", Settings: map[string]any{
				"client_id": "id", "client_secret": "secret",
			}}},
		}, &fakeLoader{})
		require.NoError(t, err)
		require.Len(t, r.sources, 1)
		assert.Equal(t, "spotify", r.sources[0].Name())
	})
}
