// Package resolve turns user queries into playable tracks.
package resolve

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/domain/track"
)

// Loader loads tracks from the audio node.
// identifier is either a URL or a "<platform>:<terms>" search.
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (track.LoadResult, error)
}

// Source is an alternative resolution strategy selected by query shape.
type Source interface {
	// Name returns the source name (used in config).
	Name() string
	// Matches reports whether the source handles the query.
	Matches(query string) bool
	// Resolve resolves the query into node-playable tracks.
	Resolve(ctx context.Context, query string) (track.LoadResult, error)
}

// Resolver dispatches queries to the first matching source, falling back to
// the audio node.
type Resolver struct {
	loader   Loader
	platform string
	sources  []Source
}

// New creates a new resolver. Free-text queries are searched on platform.
func New(loader Loader, platform string, sources ...Source) *Resolver {
	return &Resolver{
		loader:   loader,
		platform: platform,
		sources:  sources,
	}
}

// Resolve resolves a query.
func (r *Resolver) Resolve(ctx context.Context, query string) (track.LoadResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return track.Empty(), nil
	}

	for _, s := range r.sources {
		if !s.Matches(query) {
			continue
		}
		zlog.Debug().Msgf("resolving via source: source=%s, query=%s", s.Name(), query)
		result, err := s.Resolve(ctx, query)
		if err != nil {
			return track.Empty(), errors.Wrapf(err, "source %s", s.Name())
		}
		return result, nil
	}

	result, err := r.loader.LoadTracks(ctx, r.Identifier(query))
	if err != nil {
		return track.Empty(), errors.Wrap(err, "failed to load tracks")
	}
	return result, nil
}

// Identifier returns what the node is asked to load for query.
func (r *Resolver) Identifier(query string) string {
	if IsURL(query) {
		return query
	}
	return SearchIdentifier(r.platform, query)
}

// SearchIdentifier builds a node search identifier.
func SearchIdentifier(platform, terms string) string {
	return platform + ":" + terms
}

// IsURL reports whether query is an absolute http(s) URL.
func IsURL(query string) bool {
	u, err := url.Parse(query)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
