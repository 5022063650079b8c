// Package spotify provides a client for the Spotify catalog API.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/vitality/internal/domain/playlist"
	"github.com/osa030/vitality/internal/domain/track"
)

// LinkKind is the type of catalog entity a link points to.
type LinkKind string

const (
	LinkTrack    LinkKind = "track"
	LinkAlbum    LinkKind = "album"
	LinkPlaylist LinkKind = "playlist"
)

// Link is a parsed catalog URL or URI.
type Link struct {
	Kind LinkKind
	ID   string
}

// Client is a Spotify catalog client authenticated with client credentials.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// Token is fetched lazily and refreshed by the transport
	client := spotify.New(auth.Client(ctx))

	return &Client{
		client:     client,
		market:     cfg.Market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// ParseLink recognises track, album and playlist URLs and URIs.
func ParseLink(input string) (Link, bool) {
	input = strings.TrimSpace(input)
	for _, kind := range []LinkKind{LinkTrack, LinkAlbum, LinkPlaylist} {
		if id := extractID(input, kind); id != "" {
			return Link{Kind: kind, ID: id}, true
		}
	}
	return Link{}, false
}

func (c *Client) marketOpts() []spotify.RequestOption {
	if c.market == "" {
		return nil
	}
	return []spotify.RequestOption{spotify.Market(c.market)}
}

// GetTrack retrieves a single catalog track.
func (c *Client) GetTrack(ctx context.Context, id string) (*track.Track, error) {
	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), c.marketOpts()...)
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	t := convertTrack(result.SimpleTrack, result.Album.Images)
	return &t, nil
}

// GetAlbum retrieves an album and its tracks, up to limit.
func (c *Client) GetAlbum(ctx context.Context, id string, limit int) (*playlist.Playlist, error) {
	var album *spotify.FullAlbum
	err := c.retry(func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(id), c.marketOpts()...)
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	result := &playlist.Playlist{
		ID:   string(album.ID),
		Name: album.Name,
		URL:  c.URL(LinkAlbum, string(album.ID)),
	}

	offset := 0
	pageSize := 50
	for len(result.Tracks) < limit {
		var page *spotify.SimpleTrackPage
		err := c.retry(func() error {
			opts := append([]spotify.RequestOption{spotify.Limit(pageSize), spotify.Offset(offset)}, c.marketOpts()...)
			p, err := c.client.GetAlbumTracks(ctx, album.ID, opts...)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get album tracks")
		}

		for _, item := range page.Tracks {
			if len(result.Tracks) >= limit {
				break
			}
			result.Tracks = append(result.Tracks, convertTrack(item, album.Images))
		}

		if len(page.Tracks) < pageSize {
			break
		}
		offset += pageSize
	}

	return result, nil
}

// GetPlaylist retrieves a playlist and its tracks, up to limit. Episodes are skipped.
func (c *Client) GetPlaylist(ctx context.Context, id string, limit int) (*playlist.Playlist, error) {
	var info *spotify.FullPlaylist
	err := c.retry(func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(id), c.marketOpts()...)
		if err != nil {
			return err
		}
		info = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	result := &playlist.Playlist{
		ID:   string(info.ID),
		Name: info.Name,
		URL:  c.URL(LinkPlaylist, string(info.ID)),
	}

	offset := 0
	pageSize := 100
	for len(result.Tracks) < limit {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			opts := append([]spotify.RequestOption{spotify.Limit(pageSize), spotify.Offset(offset)}, c.marketOpts()...)
			p, err := c.client.GetPlaylistItems(ctx, info.ID, opts...)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			if len(result.Tracks) >= limit {
				break
			}
			// Only process tracks (exclude episodes)
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				t := item.Track.Track
				result.Tracks = append(result.Tracks, convertTrack(t.SimpleTrack, t.Album.Images))
			}
		}

		if len(page.Items) < pageSize {
			break
		}
		offset += pageSize
	}

	return result, nil
}

// URL returns the open.spotify.com URL for an entity.
func (c *Client) URL(kind LinkKind, id string) string {
	return fmt.Sprintf("https://open.spotify.com/%s/%s", kind, id)
}

// convertTrack converts a Spotify track to a catalog-only domain Track.
// The result has no node handle; it must be mirrored before it can play.
func convertTrack(t spotify.SimpleTrack, images []spotify.Image) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var artwork string
	if len(images) > 0 {
		artwork = images[0].URL
	}

	return track.Track{
		Identifier: string(t.ID),
		Title:      t.Name,
		Author:     strings.Join(artists, ", "),
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		URI:        fmt.Sprintf("https://open.spotify.com/track/%s", t.ID),
		ArtworkURL: artwork,
		SourceName: "spotify",
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractID extracts the entity ID from a Spotify URL or URI of the given kind.
// Returns an empty string if input is not such a link.
func extractID(input string, kind LinkKind) string {
	// Handle Spotify URI format: spotify:<kind>:ID
	uriPrefix := "spotify:" + string(kind) + ":"
	if strings.HasPrefix(input, uriPrefix) {
		return strings.TrimPrefix(input, uriPrefix)
	}

	// Handle URL format: https://open.spotify.com/<kind>/ID or https://open.spotify.com/intl-XX/<kind>/ID
	segment := "/" + string(kind) + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return ""
}
