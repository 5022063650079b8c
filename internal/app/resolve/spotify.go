package resolve

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/vitality/internal/domain/playlist"
	"github.com/osa030/vitality/internal/domain/track"
	"github.com/osa030/vitality/internal/infra/spotify"
)

// SpotifyConfig represents the settings of the Spotify source.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret" validate:"required"`
	Market       string `yaml:"market" mapstructure:"market" validate:"omitempty,len=2"`
	MaxTracks    int    `yaml:"max_tracks" mapstructure:"max_tracks" default:"100" validate:"gte=1,lte=1000"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency" default:"5" validate:"gte=1,lte=20"`
}

// ParseSpotifyConfig decodes, defaults and validates Spotify source settings.
func ParseSpotifyConfig(settings map[string]any) (SpotifyConfig, error) {
	var config SpotifyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return config, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return config, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return config, errors.Wrap(err, "validation failed")
	}
	return config, nil
}

// Catalog defines the Spotify operations needed by the source.
type Catalog interface {
	GetTrack(ctx context.Context, id string) (*track.Track, error)
	GetAlbum(ctx context.Context, id string, limit int) (*playlist.Playlist, error)
	GetPlaylist(ctx context.Context, id string, limit int) (*playlist.Playlist, error)
}

// SpotifySource resolves Spotify links by looking the entries up in the
// catalog and mirroring each one to the first node search hit.
type SpotifySource struct {
	catalog     Catalog
	loader      Loader
	platform    string
	maxTracks   int
	concurrency int
}

// NewSpotifySource creates a new Spotify source.
func NewSpotifySource(catalog Catalog, loader Loader, platform string, cfg SpotifyConfig) *SpotifySource {
	return &SpotifySource{
		catalog:     catalog,
		loader:      loader,
		platform:    platform,
		maxTracks:   cfg.MaxTracks,
		concurrency: cfg.Concurrency,
	}
}

func (s *SpotifySource) Name() string {
	return "spotify"
}

func (s *SpotifySource) Matches(query string) bool {
	_, ok := spotify.ParseLink(query)
	return ok
}

func (s *SpotifySource) Resolve(ctx context.Context, query string) (track.LoadResult, error) {
	link, ok := spotify.ParseLink(query)
	if !ok {
		return track.Empty(), nil
	}

	switch link.Kind {
	case spotify.LinkTrack:
		t, err := s.catalog.GetTrack(ctx, link.ID)
		if err != nil {
			return track.Empty(), err
		}
		mirrored, ok, err := s.mirror(ctx, *t)
		if err != nil || !ok {
			return track.Empty(), err
		}
		return track.LoadResult{Type: track.LoadTypeTrack, Tracks: []track.Track{mirrored}, SelectedTrack: -1}, nil

	case spotify.LinkAlbum, spotify.LinkPlaylist:
		var (
			pl  *playlist.Playlist
			err error
		)
		if link.Kind == spotify.LinkAlbum {
			pl, err = s.catalog.GetAlbum(ctx, link.ID, s.maxTracks)
		} else {
			pl, err = s.catalog.GetPlaylist(ctx, link.ID, s.maxTracks)
		}
		if err != nil {
			return track.Empty(), err
		}

		tracks, err := s.mirrorAll(ctx, pl.Tracks)
		if err != nil {
			return track.Empty(), err
		}
		if len(tracks) == 0 {
			return track.Empty(), nil
		}
		zlog.Info().Msgf("spotify collection mirrored: name=%s, catalog=%d, mirrored=%d", pl.Name, len(pl.Tracks), len(tracks))
		return track.LoadResult{Type: track.LoadTypePlaylist, Tracks: tracks, PlaylistName: pl.Name, SelectedTrack: -1}, nil

	default:
		return track.Empty(), errors.Newf("unsupported spotify link: %s", link.Kind)
	}
}

// mirrorAll mirrors catalog tracks concurrently, preserving order.
// Entries without a search hit are skipped.
func (s *SpotifySource) mirrorAll(ctx context.Context, catalog []track.Track) ([]track.Track, error) {
	results := make([]*track.Track, len(catalog))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ct := range catalog {
		g.Go(func() error {
			mirrored, ok, err := s.mirror(gctx, ct)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zlog.Warn().Err(err).Msgf("failed to mirror spotify track: title=%s", ct.Title)
				return nil
			}
			if ok {
				results[i] = &mirrored
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "mirroring cancelled")
	}

	tracks := make([]track.Track, 0, len(catalog))
	for _, t := range results {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	return tracks, nil
}

// mirror searches the node for a catalog track. The playable handle comes
// from the hit; display metadata comes from the catalog.
func (s *SpotifySource) mirror(ctx context.Context, ct track.Track) (track.Track, bool, error) {
	terms := strings.TrimSpace(ct.Title + " " + ct.Author)
	result, err := s.loader.LoadTracks(ctx, SearchIdentifier(s.platform, terms))
	if err != nil {
		return track.Track{}, false, errors.Wrapf(err, "search %q", terms)
	}
	if result.IsEmpty() {
		return track.Track{}, false, nil
	}

	hit := result.Tracks[0]
	hit.Title = ct.Title
	hit.Author = ct.Author
	hit.URI = ct.URI
	if ct.ArtworkURL != "" {
		hit.ArtworkURL = ct.ArtworkURL
	}
	return hit, true, nil
}
