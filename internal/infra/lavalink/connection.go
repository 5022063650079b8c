package lavalink

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/vitality/internal/domain/track"
)

// Connection drives the node player of one guild.
type Connection struct {
	client  *Client
	guildID snowflake.ID
}

// Play starts t unpaused at the given volume, replacing whatever is loaded.
func (c *Connection) Play(ctx context.Context, t track.Track, volume int) error {
	if t.Encoded == "" {
		return errors.Newf("track %q has no node handle", t.Title)
	}
	return c.client.client.Player(c.guildID).Update(ctx, playOpts(t, volume)...)
}

// playOpts builds the player update for a new track. The node keeps the
// paused flag across track changes, so it is always cleared.
func playOpts(t track.Track, volume int) []lavalink.PlayerUpdateOpt {
	return []lavalink.PlayerUpdateOpt{
		lavalink.WithEncodedTrack(t.Encoded),
		lavalink.WithVolume(volume),
		lavalink.WithPaused(false),
	}
}

// Pause pauses or resumes playback.
func (c *Connection) Pause(ctx context.Context, paused bool) error {
	return c.client.client.Player(c.guildID).Update(ctx, lavalink.WithPaused(paused))
}

// Stop unloads the current track. The node reports it ended as stopped.
func (c *Connection) Stop(ctx context.Context) error {
	return c.client.client.Player(c.guildID).Update(ctx, lavalink.WithNullTrack())
}

// SetVolume sets the player volume.
func (c *Connection) SetVolume(ctx context.Context, volume int) error {
	return c.client.client.Player(c.guildID).Update(ctx, lavalink.WithVolume(volume))
}

// Destroy removes the node player and leaves the voice channel.
func (c *Connection) Destroy(ctx context.Context) error {
	var err error
	if player := c.client.client.ExistingPlayer(c.guildID); player != nil {
		if derr := player.Destroy(ctx); derr != nil {
			err = errors.Wrap(derr, "failed to destroy player")
		}
	}
	if c.client.leaver != nil {
		if lerr := c.client.leaver.LeaveVoice(ctx, c.guildID.String()); lerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(lerr, "failed to leave voice channel"))
		}
	}
	return err
}
