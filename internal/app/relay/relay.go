// Package relay forwards voice signaling to the audio node and applies audio
// lifecycle events to guild sessions.
package relay

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/app/notification"
	"github.com/osa030/vitality/internal/app/session"
	"github.com/osa030/vitality/internal/app/session/registry"
	"github.com/osa030/vitality/internal/domain/audio"
	"github.com/osa030/vitality/internal/infra/logger"
)

// VoiceForwarder hands gateway voice signaling to the audio node.
type VoiceForwarder interface {
	ForwardVoiceState(ctx context.Context, vs audio.VoiceState)
	ForwardVoiceServer(ctx context.Context, vs audio.VoiceServer)
}

// Notifier delivers messages to text channels.
type Notifier interface {
	Notify(ctx context.Context, channelID string, msg notification.Message)
}

// Relay connects the gateway, the audio node and the session registry.
type Relay struct {
	botUserID string
	sessions  *registry.SessionRegistry
	forwarder VoiceForwarder
	notifier  Notifier
	formatter *notification.Formatter
}

// New creates a new relay for the bot user botUserID.
func New(botUserID string, sessions *registry.SessionRegistry, forwarder VoiceForwarder, notifier Notifier, formatter *notification.Formatter) *Relay {
	return &Relay{
		botUserID: botUserID,
		sessions:  sessions,
		forwarder: forwarder,
		notifier:  notifier,
		formatter: formatter,
	}
}

// HandleVoiceState processes a gateway voice state update. Only the bot's own
// state in a guild with a live session is relevant.
func (r *Relay) HandleVoiceState(ctx context.Context, vs audio.VoiceState) {
	if vs.UserID != r.botUserID {
		return
	}
	s, ok := r.sessions.Get(vs.GuildID)
	if !ok {
		return
	}

	if vs.ChannelID == "" {
		if s.VoiceJoined() {
			zlog.Warn().Msgf("bot left the voice channel: guild=%s", vs.GuildID)
			r.end(ctx, s, "voice disconnected")
			return
		}
	} else {
		s.MarkVoiceJoined()
	}

	r.forwarder.ForwardVoiceState(ctx, vs)
}

// HandleVoiceServer processes a gateway voice server update.
func (r *Relay) HandleVoiceServer(ctx context.Context, vs audio.VoiceServer) {
	if _, ok := r.sessions.Get(vs.GuildID); !ok {
		return
	}
	r.forwarder.ForwardVoiceServer(ctx, vs)
}

// Run applies audio events until ctx is done or events is closed.
func (r *Relay) Run(ctx context.Context, events <-chan audio.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Relay) handle(ctx context.Context, ev audio.Event) {
	defer logger.Recover("relay " + ev.Type.String())
	r.HandleEvent(ctx, ev)
}

// HandleEvent applies a single audio event.
func (r *Relay) HandleEvent(ctx context.Context, ev audio.Event) {
	switch ev.Type {
	case audio.EventNodeConnect:
		zlog.Info().Msgf("node connected: node=%s", ev.Node)
		return
	case audio.EventNodeError:
		// Sessions bound to the node are left alone.
		zlog.Warn().Err(ev.Err).Msgf("node error: node=%s", ev.Node)
		return
	}

	s, ok := r.sessions.Get(ev.GuildID)
	if !ok {
		zlog.Debug().Msgf("event for guild without session: guild=%s, event=%s", ev.GuildID, ev.Type)
		return
	}

	switch ev.Type {
	case audio.EventTrackStart:
		if ev.Track == nil {
			return
		}
		qt, ok := s.Started(*ev.Track)
		if !ok {
			zlog.Debug().Msgf("stale track start: guild=%s, title=%s", ev.GuildID, ev.Track.Title)
			return
		}
		zlog.Info().Msgf("track started: guild=%s, title=%s, requester=%s", ev.GuildID, qt.Track.Title, qt.Requester.Name)
		r.notifier.Notify(ctx, s.TextChannelID(), r.formatter.NowPlaying(qt))

	case audio.EventTrackEnd:
		if ev.Track == nil {
			return
		}
		outcome, err := s.Advance(ctx, *ev.Track, ev.Reason)
		if err != nil {
			zlog.Error().Err(err).Msgf("failed to advance queue: guild=%s", ev.GuildID)
		}
		zlog.Debug().Msgf("track ended: guild=%s, title=%s, reason=%s, outcome=%s", ev.GuildID, ev.Track.Title, ev.Reason, outcome)
		if outcome == session.OutcomeEnded {
			r.finish(ctx, s)
		}

	case audio.EventTrackException:
		title := "the track"
		if ev.Track != nil {
			title = "**" + ev.Track.Title + "**"
		}
		zlog.Error().Err(ev.Err).Msgf("track exception: guild=%s, title=%s", ev.GuildID, title)
		r.notifier.Notify(ctx, s.TextChannelID(), r.formatter.Error(fmt.Sprintf("Failed to play %s, skipping.", title)))

	case audio.EventTrackStuck:
		title := ""
		if ev.Track != nil {
			title = ev.Track.Title
		}
		zlog.Warn().Msgf("track stuck: guild=%s, title=%s", ev.GuildID, title)

	case audio.EventVoiceClosed:
		zlog.Warn().Msgf("voice connection closed: guild=%s, code=%d, remote=%t", ev.GuildID, ev.Code, ev.ByRemote)
		if ev.IsFatal() {
			r.end(ctx, s, fmt.Sprintf("voice closed with code %d", ev.Code))
		}
	}
}

// end destroys a session after a fatal error and announces it.
func (r *Relay) end(ctx context.Context, s *session.Session, cause string) {
	if err := s.Destroy(ctx); err != nil {
		if errors.Is(err, session.ErrSessionDestroyed) {
			return
		}
		zlog.Error().Err(err).Msgf("failed to destroy session: guild=%s, cause=%s", s.GuildID(), cause)
	}
	r.finish(ctx, s)
}

// finish removes a destroyed session and sends the queue-ended notice once.
func (r *Relay) finish(ctx context.Context, s *session.Session) {
	if !r.sessions.Remove(s.GuildID(), s) {
		return
	}
	zlog.Info().Msgf("queue ended: guild=%s, id=%s", s.GuildID(), s.ID())
	r.notifier.Notify(ctx, s.TextChannelID(), r.formatter.QueueEnded())
}
