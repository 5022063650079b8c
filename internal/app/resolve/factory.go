package resolve

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/infra/config"
	"github.com/osa030/vitality/internal/infra/spotify"
)

// NewFromConfig creates a resolver with the catalog sources listed in the configuration.
func NewFromConfig(ctx context.Context, cfg config.ResolverConfig, loader Loader) (*Resolver, error) {
	var sources []Source

	for i, scfg := range cfg.Sources {
		var source Source
		var err error
		zlog.Debug().Msgf("creating resolve source: index=%d type=%s", i+1, scfg.Type)
		switch scfg.Type {
		case "spotify":
			source, err = newSpotifySourceFromSettings(ctx, loader, cfg.DefaultSearchPlatform, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		sources = append(sources, source)
		zlog.Info().Msgf("registered resolve source: index=%d type=%s", i+1, scfg.Type)
	}

	return New(loader, cfg.DefaultSearchPlatform, sources...), nil
}

func newSpotifySourceFromSettings(ctx context.Context, loader Loader, platform string, settings map[string]any) (*SpotifySource, error) {
	scfg, err := ParseSpotifyConfig(settings)
	if err != nil {
		return nil, err
	}
	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     scfg.ClientID,
		ClientSecret: scfg.ClientSecret,
		Market:       scfg.Market,
	})
	if err != nil {
		return nil, err
	}
	return NewSpotifySource(client, loader, platform, scfg), nil
}
