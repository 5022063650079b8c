// Package router dispatches chat commands to guild sessions.
package router

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/app/command"
	"github.com/osa030/vitality/internal/app/filter"
	"github.com/osa030/vitality/internal/app/notification"
	"github.com/osa030/vitality/internal/app/session"
	"github.com/osa030/vitality/internal/app/session/registry"
	"github.com/osa030/vitality/internal/domain/track"
)

// User-facing reply texts.
const (
	msgNotInVoice      = "You must be in a voice channel!"
	msgNoQuery         = "Please provide a search query!"
	msgNoResults       = "No results found! Try with a different search term."
	msgPlayFailed      = "An error occurred while playing the track!"
	msgCommandFailed   = "An error occurred while running the command!"
	msgNothingPlaying  = "Nothing is playing!"
	msgNoMoreTracks    = "No more tracks to skip!"
	msgSkipped         = "Skipped the current track!"
	msgSkipStarted     = "Nothing was loaded, started the next track!"
	msgStopped         = "Stopped the music and cleared the queue!"
	msgCannotPause     = "Nothing is playing or already paused!"
	msgPaused          = "Paused the music!"
	msgNotPaused       = "Nothing is paused!"
	msgResumed         = "Resumed the music!"
	msgQueueEmpty      = "Queue is empty!"
	msgNoCurrent       = "Nothing is currently playing!"
	msgInvalidVolume   = "Invalid volume (0-100)!"
	msgNotEnough       = "Not enough tracks to shuffle!"
	msgShuffled        = "🔀 Shuffled the queue!"
	msgAlreadyEmpty    = "Queue is already empty!"
	msgCleared         = "Cleared the queue!"
	msgNoPlayer        = "No active player found!"
	msgTooFast         = "You're sending commands too fast!"
	msgNothingAccepted = "None of the tracks could be added to the queue!"
)

// rejectionTexts maps filter rejection codes to replies.
var rejectionTexts = map[string]string{
	"duration_limit_exceeded": "This track is too long or too short to be queued!",
	"queue_full":              "The queue is full!",
	"user_pending":            "You already have too many tracks waiting in the queue!",
	"duplicate_track":         "This track is already in the queue!",
}

// VoiceLocator finds the voice channel a user is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

// Notifier delivers replies to text channels.
type Notifier interface {
	Notify(ctx context.Context, channelID string, msg notification.Message)
}

// Resolver turns a query into tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) (track.LoadResult, error)
}

// Incoming is a chat message as received from the gateway.
type Incoming struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Content    string
}

// Invocation is a parsed command bound to its caller.
type Invocation struct {
	ID        string
	GuildID   string
	ChannelID string
	UserID    string
	UserName  string
	Command   command.Command
}

// Config represents router configuration.
type Config struct {
	Prefix     string
	RatePerSec float64 // Zero disables rate limiting
	Burst      int
}

// Deps holds the collaborators of the router.
type Deps struct {
	Sessions  *registry.SessionRegistry
	Resolver  Resolver
	Voice     VoiceLocator
	Notifier  Notifier
	Formatter *notification.Formatter
	Filters   *filter.Chain // Optional
}

// Router parses chat messages and runs the resulting commands.
type Router struct {
	prefix    string
	sessions  *registry.SessionRegistry
	resolver  Resolver
	voice     VoiceLocator
	notifier  Notifier
	formatter *notification.Formatter
	filters   *filter.Chain
	limiter   *userLimiter
}

// New creates a new router.
func New(cfg Config, deps Deps) *Router {
	r := &Router{
		prefix:    cfg.Prefix,
		sessions:  deps.Sessions,
		resolver:  deps.Resolver,
		voice:     deps.Voice,
		notifier:  deps.Notifier,
		formatter: deps.Formatter,
		filters:   deps.Filters,
	}
	if cfg.RatePerSec > 0 {
		r.limiter = newUserLimiter(cfg.RatePerSec, max(cfg.Burst, 1))
	}
	return r
}

// HandleMessage runs the command contained in m, if any, and replies exactly
// once. Bot messages, direct messages and unknown verbs are ignored.
func (r *Router) HandleMessage(ctx context.Context, m Incoming) {
	if m.AuthorBot || m.GuildID == "" {
		return
	}
	cmd, ok := command.Parse(r.prefix, m.Content)
	if !ok || cmd.Kind == command.KindUnknown {
		return
	}

	inv := Invocation{
		ID:        uuid.New().String(),
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.AuthorID,
		UserName:  m.AuthorName,
		Command:   cmd,
	}

	if r.limiter != nil && !r.limiter.Allow(inv.UserID) {
		zlog.Debug().Msgf("command rate limited: id=%s, guild=%s, user=%s", inv.ID, inv.GuildID, inv.UserID)
		r.notifier.Notify(ctx, inv.ChannelID, r.formatter.Error(msgTooFast))
		return
	}

	zlog.Info().Msgf("command received: id=%s, guild=%s, user=%s, command=%s, args=%d",
		inv.ID, inv.GuildID, inv.UserID, cmd.Kind, len(cmd.Args))

	start := time.Now()
	reply := r.Dispatch(ctx, inv)
	r.notifier.Notify(ctx, inv.ChannelID, reply)

	zlog.Debug().Msgf("command handled: id=%s, command=%s, elapsed=%v", inv.ID, cmd.Kind, time.Since(start))
}

// Dispatch runs an invocation and returns its reply.
func (r *Router) Dispatch(ctx context.Context, inv Invocation) notification.Message {
	var voiceChannelID string
	if inv.Command.Kind.RequiresVoice() {
		channelID, ok := r.voice.UserVoiceChannel(inv.GuildID, inv.UserID)
		if !ok {
			return r.formatter.Error(msgNotInVoice)
		}
		voiceChannelID = channelID
	}

	switch inv.Command.Kind {
	case command.KindHelp:
		return r.formatter.Help(r.prefix, command.Specs)
	case command.KindPlay:
		return r.play(ctx, inv, voiceChannelID)
	case command.KindPause:
		return r.pause(ctx, inv)
	case command.KindResume:
		return r.resume(ctx, inv)
	case command.KindSkip:
		return r.skip(ctx, inv)
	case command.KindStop:
		return r.stop(ctx, inv)
	case command.KindQueue:
		return r.queue(inv)
	case command.KindNowPlaying:
		return r.nowPlaying(inv)
	case command.KindVolume:
		return r.volume(ctx, inv)
	case command.KindShuffle:
		return r.shuffle(inv)
	case command.KindLoop:
		return r.loop(inv)
	case command.KindRemove:
		return r.remove(inv)
	case command.KindClear:
		return r.clear(inv)
	case command.KindStatus:
		return r.status(inv)
	case command.KindUnknown:
		return r.formatter.Error(fmt.Sprintf("Unknown command: %s", inv.Command.Verb))
	default:
		panic(fmt.Sprintf("unhandled command kind: %d", inv.Command.Kind))
	}
}

func (r *Router) play(ctx context.Context, inv Invocation, voiceChannelID string) notification.Message {
	query := inv.Command.Query()
	if query == "" {
		return r.formatter.Error(msgNoQuery)
	}

	// No session lock is held while the node resolves.
	result, err := r.resolver.Resolve(ctx, query)
	if err != nil {
		zlog.Error().Err(err).Msgf("failed to resolve query: id=%s, guild=%s, query=%s", inv.ID, inv.GuildID, query)
		return r.formatter.Error(msgPlayFailed)
	}
	if result.IsEmpty() {
		return r.formatter.Error(msgNoResults)
	}

	tracks := result.Tracks
	if result.Type != track.LoadTypePlaylist {
		tracks = tracks[:1]
	}
	requester := track.Requester{ID: inv.UserID, Name: inv.UserName}
	now := time.Now()
	queued := make([]track.QueuedTrack, len(tracks))
	for i, t := range tracks {
		queued[i] = track.QueuedTrack{Track: t, Requester: requester, AddedAt: now}
	}

	s, enqueued, err := r.enqueue(ctx, inv, voiceChannelID, queued)
	if err != nil {
		zlog.Error().Err(err).Msgf("failed to play: id=%s, guild=%s, query=%s", inv.ID, inv.GuildID, query)
		if s != nil && s.Snapshot().Current == nil {
			r.discard(ctx, s)
		}
		return r.formatter.Error(msgPlayFailed)
	}

	if len(enqueued.Added) == 0 {
		if s.Snapshot().State == session.StateIdle {
			r.discard(ctx, s)
		}
		if len(enqueued.Rejected) == 1 {
			return r.formatter.Error(rejectionText(enqueued.Rejected[0].Err))
		}
		return r.formatter.Error(msgNothingAccepted)
	}

	if result.Type == track.LoadTypePlaylist {
		added := make([]track.Track, len(enqueued.Added))
		for i, qt := range enqueued.Added {
			added[i] = qt.Track
		}
		reply := r.formatter.AddedPlaylist(result.PlaylistName, added)
		if n := len(enqueued.Rejected); n > 0 {
			reply.Footer = fmt.Sprintf("%d tracks were not added", n)
		}
		return reply
	}
	return r.formatter.AddedToQueue(enqueued.Added[0], enqueued.Position)
}

// enqueue adds tracks to the guild session, creating it if needed. A session
// destroyed while the query was resolving is replaced once.
func (r *Router) enqueue(ctx context.Context, inv Invocation, voiceChannelID string, tracks []track.QueuedTrack) (*session.Session, session.EnqueueResult, error) {
	admit := func(qt track.QueuedTrack, current *track.QueuedTrack, queue []track.QueuedTrack) error {
		if r.filters == nil {
			return nil
		}
		return r.filters.Execute(ctx, filter.Request{Track: qt, Current: current, Queue: queue}).Err()
	}

	var (
		s      *session.Session
		result session.EnqueueResult
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		s, _, err = r.sessions.GetOrCreate(ctx, inv.GuildID, voiceChannelID, inv.ChannelID)
		if err != nil {
			return nil, result, err
		}
		result, err = s.Enqueue(ctx, tracks, admit)
		if !errors.Is(err, session.ErrSessionDestroyed) {
			break
		}
		zlog.Debug().Msgf("session destroyed while resolving, retrying: id=%s, guild=%s", inv.ID, inv.GuildID)
	}
	return s, result, err
}

// discard removes a session that never started playing.
func (r *Router) discard(ctx context.Context, s *session.Session) {
	if err := s.Destroy(ctx); err != nil && !errors.Is(err, session.ErrSessionDestroyed) {
		zlog.Warn().Err(err).Msgf("failed to destroy idle session: guild=%s", s.GuildID())
	}
	r.sessions.Remove(s.GuildID(), s)
}

func rejectionText(err error) string {
	var rejected *filter.RejectedError
	if errors.As(err, &rejected) {
		if text, ok := rejectionTexts[rejected.Code]; ok {
			return text
		}
	}
	return msgNothingAccepted
}

func (r *Router) skip(ctx context.Context, inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNothingPlaying)
	}
	switch started, err := s.Skip(ctx); {
	case err == nil && started:
		return r.formatter.Success(msgSkipStarted)
	case err == nil:
		return r.formatter.Success(msgSkipped)
	case errors.Is(err, session.ErrNoNextTrack):
		return r.formatter.Error(msgNoMoreTracks)
	case errors.Is(err, session.ErrSessionDestroyed):
		return r.formatter.Error(msgNothingPlaying)
	default:
		return r.failed(inv, err)
	}
}

func (r *Router) stop(ctx context.Context, inv Invocation) notification.Message {
	switch err := r.sessions.Destroy(ctx, inv.GuildID); {
	case err == nil:
		return r.formatter.Success(msgStopped)
	case errors.Is(err, registry.ErrSessionNotFound):
		return r.formatter.Error(msgNothingPlaying)
	default:
		// The session is gone either way.
		zlog.Warn().Err(err).Msgf("session stopped with errors: id=%s, guild=%s", inv.ID, inv.GuildID)
		return r.formatter.Success(msgStopped)
	}
}

func (r *Router) pause(ctx context.Context, inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgCannotPause)
	}
	switch err := s.Pause(ctx); {
	case err == nil:
		return r.formatter.Success(msgPaused)
	case errors.Is(err, session.ErrAlreadyPaused), errors.Is(err, session.ErrSessionDestroyed):
		return r.formatter.Error(msgCannotPause)
	default:
		return r.failed(inv, err)
	}
}

func (r *Router) resume(ctx context.Context, inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNotPaused)
	}
	switch err := s.Resume(ctx); {
	case err == nil:
		return r.formatter.Success(msgResumed)
	case errors.Is(err, session.ErrNotPaused), errors.Is(err, session.ErrSessionDestroyed):
		return r.formatter.Error(msgNotPaused)
	default:
		return r.failed(inv, err)
	}
}

func (r *Router) queue(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgQueueEmpty)
	}
	snap := s.Snapshot()
	if snap.State == session.StateDestroyed || (len(snap.Queue) == 0 && snap.Current == nil) {
		return r.formatter.Error(msgQueueEmpty)
	}
	return r.formatter.QueueList(snap.Queue, snap.Current)
}

func (r *Router) nowPlaying(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNoCurrent)
	}
	snap := s.Snapshot()
	if snap.Current == nil {
		return r.formatter.Error(msgNoCurrent)
	}
	return r.formatter.NowPlaying(*snap.Current)
}

func (r *Router) volume(ctx context.Context, inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgInvalidVolume)
	}
	v, err := strconv.Atoi(inv.Command.Arg(0))
	if err != nil || v < session.MinVolume || v > session.MaxVolume {
		return r.formatter.Error(msgInvalidVolume)
	}
	switch set, err := s.SetVolume(ctx, v); {
	case err == nil:
		return r.formatter.Success(fmt.Sprintf("Set volume to %d%%", set))
	case errors.Is(err, session.ErrSessionDestroyed):
		return r.formatter.Error(msgInvalidVolume)
	default:
		return r.failed(inv, err)
	}
}

func (r *Router) shuffle(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNotEnough)
	}
	if err := s.Shuffle(); err != nil {
		return r.formatter.Error(msgNotEnough)
	}
	return r.formatter.Success(msgShuffled)
}

func (r *Router) loop(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNothingPlaying)
	}
	mode, err := s.ToggleLoop()
	if err != nil {
		return r.formatter.Error(msgNothingPlaying)
	}
	if mode == session.LoopQueue {
		return r.formatter.Success("Enabled loop mode!")
	}
	return r.formatter.Success("Disabled loop mode!")
}

func (r *Router) remove(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNothingPlaying)
	}
	pos, err := strconv.Atoi(inv.Command.Arg(0))
	if err != nil {
		return r.formatter.Error(invalidPosition(len(s.Snapshot().Queue)))
	}
	removed, n, err := s.Remove(pos)
	switch {
	case err == nil:
		return r.formatter.Success(fmt.Sprintf("Removed **%s** from the queue!", removed.Track.Title))
	case errors.Is(err, session.ErrInvalidPosition):
		return r.formatter.Error(invalidPosition(n))
	default:
		return r.formatter.Error(msgNothingPlaying)
	}
}

func invalidPosition(n int) string {
	return fmt.Sprintf("Invalid track number (1 - %d)", n)
}

func (r *Router) clear(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgAlreadyEmpty)
	}
	if _, err := s.Clear(); err != nil {
		return r.formatter.Error(msgAlreadyEmpty)
	}
	return r.formatter.Success(msgCleared)
}

func (r *Router) status(inv Invocation) notification.Message {
	s, ok := r.sessions.Get(inv.GuildID)
	if !ok {
		return r.formatter.Error(msgNoPlayer)
	}
	snap := s.Snapshot()
	if snap.State == session.StateDestroyed {
		return r.formatter.Error(msgNoPlayer)
	}
	return r.formatter.PlayerStatus(snap)
}

// failed logs a capability failure and renders the generic reply.
func (r *Router) failed(inv Invocation, err error) notification.Message {
	zlog.Error().Err(err).Msgf("command failed: id=%s, guild=%s, command=%s", inv.ID, inv.GuildID, inv.Command.Kind)
	return r.formatter.Error(msgCommandFailed)
}
