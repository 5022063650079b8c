// Package lavalink adapts a disgolink client to the playback session model.
package lavalink

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/domain/audio"
	"github.com/osa030/vitality/internal/domain/track"
	"github.com/osa030/vitality/internal/infra/config"
)

// eventBuffer is the capacity of the event channel.
const eventBuffer = 64

// Errors
var (
	ErrNoNode = errors.New("no audio node available")
)

// VoiceLeaver disconnects the bot from a guild voice channel.
type VoiceLeaver interface {
	LeaveVoice(ctx context.Context, guildID string) error
}

// Client wraps a disgolink client and publishes lifecycle events.
type Client struct {
	client disgolink.Client
	leaver VoiceLeaver
	events chan audio.Event
	done   chan struct{}
}

// New creates a client for the bot user botUserID.
func New(botUserID string, leaver VoiceLeaver) (*Client, error) {
	userID, err := snowflake.Parse(botUserID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid bot user id %q", botUserID)
	}

	c := &Client{
		leaver: leaver,
		events: make(chan audio.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	c.client = disgolink.New(userID,
		disgolink.WithListenerFunc(c.onTrackStart),
		disgolink.WithListenerFunc(c.onTrackEnd),
		disgolink.WithListenerFunc(c.onTrackException),
		disgolink.WithListenerFunc(c.onTrackStuck),
		disgolink.WithListenerFunc(c.onWebSocketClosed),
	)
	return c, nil
}

// Events returns the lifecycle event stream.
func (c *Client) Events() <-chan audio.Event {
	return c.events
}

// AddNodes connects every configured node. It fails only if none connects.
func (c *Client) AddNodes(ctx context.Context, nodes []config.NodeConfig) error {
	connected := 0
	for _, n := range nodes {
		_, err := c.client.AddNode(ctx, disgolink.NodeConfig{
			Name:     n.Name,
			Address:  n.Address(),
			Password: n.Password,
			Secure:   n.Secure,
		})
		if err != nil {
			c.emit(audio.Event{Type: audio.EventNodeError, Node: n.Name, Err: err})
			continue
		}
		connected++
		c.emit(audio.Event{Type: audio.EventNodeConnect, Node: n.Name})
	}
	if connected == 0 {
		return ErrNoNode
	}
	return nil
}

// LoadTracks loads an identifier on the best available node.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (track.LoadResult, error) {
	node := c.client.BestNode()
	if node == nil {
		return track.Empty(), ErrNoNode
	}

	result, err := node.LoadTracks(ctx, identifier)
	if err != nil {
		return track.Empty(), errors.Wrapf(err, "load %q on node %s", identifier, node.Config().Name)
	}
	return convertLoadResult(result)
}

// Connection returns the player connection of a guild.
func (c *Client) Connection(guildID string) (*Connection, error) {
	id, err := snowflake.Parse(guildID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid guild id %q", guildID)
	}
	return &Connection{client: c, guildID: id}, nil
}

// ForwardVoiceState hands a gateway voice state update to the node.
func (c *Client) ForwardVoiceState(ctx context.Context, vs audio.VoiceState) {
	guildID, err := snowflake.Parse(vs.GuildID)
	if err != nil {
		zlog.Warn().Err(err).Msgf("dropping voice state: guild=%s", vs.GuildID)
		return
	}
	var channelID *snowflake.ID
	if vs.ChannelID != "" {
		id, err := snowflake.Parse(vs.ChannelID)
		if err != nil {
			zlog.Warn().Err(err).Msgf("dropping voice state: channel=%s", vs.ChannelID)
			return
		}
		channelID = &id
	}
	c.client.OnVoiceStateUpdate(ctx, guildID, channelID, vs.SessionID)
}

// ForwardVoiceServer hands a gateway voice server update to the node.
func (c *Client) ForwardVoiceServer(ctx context.Context, vs audio.VoiceServer) {
	guildID, err := snowflake.Parse(vs.GuildID)
	if err != nil {
		zlog.Warn().Err(err).Msgf("dropping voice server: guild=%s", vs.GuildID)
		return
	}
	c.client.OnVoiceServerUpdate(ctx, guildID, vs.Token, vs.Endpoint)
}

// Close disconnects every node.
func (c *Client) Close() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	c.client.Close()
}

// emit publishes an event unless the client is closed.
func (c *Client) emit(ev audio.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) onTrackStart(p disgolink.Player, e lavalink.TrackStartEvent) {
	t := convertTrack(e.Track)
	c.emit(audio.Event{Type: audio.EventTrackStart, GuildID: p.GuildID().String(), Track: &t})
}

func (c *Client) onTrackEnd(p disgolink.Player, e lavalink.TrackEndEvent) {
	t := convertTrack(e.Track)
	c.emit(audio.Event{
		Type:    audio.EventTrackEnd,
		GuildID: p.GuildID().String(),
		Track:   &t,
		Reason:  audio.EndReason(e.Reason),
	})
}

func (c *Client) onTrackException(p disgolink.Player, e lavalink.TrackExceptionEvent) {
	t := convertTrack(e.Track)
	c.emit(audio.Event{
		Type:    audio.EventTrackException,
		GuildID: p.GuildID().String(),
		Track:   &t,
		Err:     errors.Newf("%s (severity %s)", e.Exception.Message, e.Exception.Severity),
	})
}

func (c *Client) onTrackStuck(p disgolink.Player, e lavalink.TrackStuckEvent) {
	t := convertTrack(e.Track)
	c.emit(audio.Event{Type: audio.EventTrackStuck, GuildID: p.GuildID().String(), Track: &t})
}

func (c *Client) onWebSocketClosed(p disgolink.Player, e lavalink.WebSocketClosedEvent) {
	c.emit(audio.Event{
		Type:     audio.EventVoiceClosed,
		GuildID:  p.GuildID().String(),
		Code:     e.Code,
		ByRemote: e.ByRemote,
	})
}

// convertLoadResult converts a node load result. A load exception is an error.
func convertLoadResult(result *lavalink.LoadResult) (track.LoadResult, error) {
	if result == nil {
		return track.Empty(), nil
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return track.LoadResult{Type: track.LoadTypeTrack, Tracks: []track.Track{convertTrack(data)}, SelectedTrack: -1}, nil

	case lavalink.Playlist:
		tracks := make([]track.Track, len(data.Tracks))
		for i, t := range data.Tracks {
			tracks[i] = convertTrack(t)
		}
		return track.LoadResult{
			Type:          track.LoadTypePlaylist,
			Tracks:        tracks,
			PlaylistName:  data.Info.Name,
			SelectedTrack: data.Info.SelectedTrack,
		}, nil

	case lavalink.Search:
		tracks := make([]track.Track, len(data))
		for i, t := range data {
			tracks[i] = convertTrack(t)
		}
		return track.LoadResult{Type: track.LoadTypeSearch, Tracks: tracks, SelectedTrack: -1}, nil

	case lavalink.Exception:
		return track.Empty(), errors.Newf("node failed to load: %s", data.Message)

	default:
		return track.Empty(), nil
	}
}

// convertTrack converts a node track to a domain Track.
func convertTrack(t lavalink.Track) track.Track {
	result := track.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		SourceName: t.Info.SourceName,
		IsStream:   t.Info.IsStream,
	}
	if !t.Info.IsStream {
		result.Duration = time.Duration(t.Info.Length) * time.Millisecond
	}
	if t.Info.URI != nil {
		result.URI = *t.Info.URI
	}
	if t.Info.ArtworkURL != nil {
		result.ArtworkURL = *t.Info.ArtworkURL
	}
	return result
}
