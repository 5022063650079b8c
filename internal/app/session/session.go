package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/domain/audio"
	"github.com/osa030/vitality/internal/domain/track"
)

// Errors
var (
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrAlreadyPaused    = errors.New("nothing is playing or already paused")
	ErrNotPaused        = errors.New("not paused")
	ErrNoNextTrack      = errors.New("no more tracks to skip")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrInvalidPosition  = errors.New("invalid queue position")
	ErrSessionDestroyed = errors.New("session destroyed")
)

const (
	MinVolume = 0
	MaxVolume = 100
)

// Connection is the audio-node player bound to one guild.
// It is exclusively owned by a single Session.
type Connection interface {
	// Play loads t and starts it unpaused, whatever the previous track's state.
	Play(ctx context.Context, t track.Track, volume int) error
	Pause(ctx context.Context, paused bool) error
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error
	Destroy(ctx context.Context) error
}

// Config holds session configuration.
type Config struct {
	DefaultVolume int
}

// AdmitFunc decides whether a track may join the queue.
// current and queue must not be retained or modified.
type AdmitFunc func(qt track.QueuedTrack, current *track.QueuedTrack, queue []track.QueuedTrack) error

// Rejection records a track refused by an AdmitFunc.
type Rejection struct {
	Track track.QueuedTrack
	Err   error
}

// EnqueueResult describes the effect of Enqueue.
type EnqueueResult struct {
	Added    []track.QueuedTrack
	Rejected []Rejection
	Position int  // 1-based queue position of the first added track
	Started  bool // Playback was started from idle
}

// Snapshot is a consistent read-only copy of session state.
type Snapshot struct {
	ID             string
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	State          State
	Current        *track.QueuedTrack
	Queue          []track.QueuedTrack
	Paused         bool
	Loop           LoopMode
	Volume         int
	CreatedAt      time.Time
}

// Session is the playback container of one guild.
// All mutations serialize on the session mutex; the audio-node connection is
// only driven while holding it.
type Session struct {
	mu sync.Mutex

	id             string
	guildID        string
	voiceChannelID string
	textChannelID  string
	createdAt      time.Time

	conn Connection

	queue   []track.QueuedTrack
	current *track.QueuedTrack
	paused  bool
	loop    LoopMode
	volume  int

	voiceJoined bool
	destroyed   atomic.Bool
}

// New creates a new idle session.
func New(guildID, voiceChannelID, textChannelID string, conn Connection, cfg Config) *Session {
	return &Session{
		id:             uuid.New().String(),
		guildID:        guildID,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		createdAt:      time.Now(),
		conn:           conn,
		queue:          make([]track.QueuedTrack, 0),
		volume:         clampVolume(cfg.DefaultVolume),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// GuildID returns the guild the session belongs to.
func (s *Session) GuildID() string { return s.guildID }

// VoiceChannelID returns the bound voice channel.
func (s *Session) VoiceChannelID() string { return s.voiceChannelID }

// TextChannelID returns the bound text channel.
func (s *Session) TextChannelID() string { return s.textChannelID }

// Destroyed reports whether the session was torn down.
// Safe to call without holding the session lock.
func (s *Session) Destroyed() bool { return s.destroyed.Load() }

// Enqueue appends tracks to the queue in order, consulting admit for each.
// If nothing is loaded and playback is not paused, the head of the queue starts.
func (s *Session) Enqueue(ctx context.Context, tracks []track.QueuedTrack, admit AdmitFunc) (EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result EnqueueResult
	if s.destroyed.Load() {
		return result, ErrSessionDestroyed
	}

	for _, qt := range tracks {
		if admit != nil {
			if err := admit(qt, s.current, s.queue); err != nil {
				result.Rejected = append(result.Rejected, Rejection{Track: qt, Err: err})
				continue
			}
		}
		s.queue = append(s.queue, qt)
		if len(result.Added) == 0 {
			result.Position = len(s.queue)
		}
		result.Added = append(result.Added, qt)
	}

	if len(result.Added) == 0 || s.current != nil || s.paused {
		return result, nil
	}

	if err := s.playNextLocked(ctx); err != nil {
		return result, err
	}
	result.Started = true
	return result, nil
}

// playNextLocked moves the queue head into current and starts it.
// On failure the head is put back and the session stays idle.
func (s *Session) playNextLocked(ctx context.Context) error {
	if len(s.queue) == 0 {
		return ErrQueueEmpty
	}

	next := s.queue[0]
	s.queue = s.queue[1:]

	if err := s.conn.Play(ctx, next.Track, s.volume); err != nil {
		s.queue = append([]track.QueuedTrack{next}, s.queue...)
		return errors.Wrapf(err, "failed to play track %q", next.Track.Title)
	}

	s.current = &next
	s.paused = false
	zlog.Debug().Msgf("session track loaded: guild=%s, title=%s, remaining=%d", s.guildID, next.Track.Title, len(s.queue))
	return nil
}

// Skip stops the current track so the track-end event advances the queue.
// Skipping the last track is refused. When nothing is loaded because a
// previous start failed, the head of the queue is started instead and
// started is true.
func (s *Session) Skip(ctx context.Context) (started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return false, ErrSessionDestroyed
	}
	if len(s.queue) == 0 {
		return false, ErrNoNextTrack
	}

	if s.current == nil {
		if err := s.playNextLocked(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := s.conn.Stop(ctx); err != nil {
		return false, errors.Wrap(err, "failed to stop track")
	}
	return false, nil
}

// Pause pauses the current track.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return ErrSessionDestroyed
	}
	if s.current == nil || s.paused {
		return ErrAlreadyPaused
	}

	if err := s.conn.Pause(ctx, true); err != nil {
		return errors.Wrap(err, "failed to pause")
	}
	s.paused = true
	return nil
}

// Resume resumes the paused track.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return ErrSessionDestroyed
	}
	if !s.paused {
		return ErrNotPaused
	}

	if err := s.conn.Pause(ctx, false); err != nil {
		return errors.Wrap(err, "failed to resume")
	}
	s.paused = false
	return nil
}

// SetVolume sets the playback volume, clamped to [MinVolume, MaxVolume].
func (s *Session) SetVolume(ctx context.Context, volume int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return 0, ErrSessionDestroyed
	}

	volume = clampVolume(volume)
	if err := s.conn.SetVolume(ctx, volume); err != nil {
		return 0, errors.Wrap(err, "failed to set volume")
	}
	s.volume = volume
	return volume, nil
}

// Shuffle randomly permutes the queue. The current track is untouched.
func (s *Session) Shuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return ErrSessionDestroyed
	}
	if len(s.queue) == 0 {
		return ErrQueueEmpty
	}

	rand.Shuffle(len(s.queue), func(i, j int) {
		s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
	})
	return nil
}

// ToggleLoop switches between LoopNone and LoopQueue and returns the new mode.
func (s *Session) ToggleLoop() (LoopMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return LoopNone, ErrSessionDestroyed
	}

	if s.loop == LoopNone {
		s.loop = LoopQueue
	} else {
		s.loop = LoopNone
	}
	return s.loop, nil
}

// Remove removes the track at the 1-based queue position.
// Returns the queue length alongside ErrInvalidPosition for out-of-range input.
func (s *Session) Remove(position int) (track.QueuedTrack, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return track.QueuedTrack{}, 0, ErrSessionDestroyed
	}
	if position < 1 || position > len(s.queue) {
		return track.QueuedTrack{}, len(s.queue), ErrInvalidPosition
	}

	removed := s.queue[position-1]
	s.queue = append(s.queue[:position-1], s.queue[position:]...)
	return removed, len(s.queue), nil
}

// Clear empties the queue. The current track is untouched.
func (s *Session) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return 0, ErrSessionDestroyed
	}
	if len(s.queue) == 0 {
		return 0, ErrQueueEmpty
	}

	n := len(s.queue)
	s.queue = make([]track.QueuedTrack, 0)
	return n, nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.id,
		GuildID:        s.guildID,
		VoiceChannelID: s.voiceChannelID,
		TextChannelID:  s.textChannelID,
		State:          s.stateLocked(),
		Queue:          make([]track.QueuedTrack, len(s.queue)),
		Paused:         s.paused,
		Loop:           s.loop,
		Volume:         s.volume,
		CreatedAt:      s.createdAt,
	}
	copy(snap.Queue, s.queue)
	if s.current != nil {
		current := *s.current
		snap.Current = &current
	}
	return snap
}

func (s *Session) stateLocked() State {
	switch {
	case s.destroyed.Load():
		return StateDestroyed
	case s.current == nil:
		return StateIdle
	case s.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// Started confirms that the node began rendering t.
// Returns the queued track when t is the current track.
func (s *Session) Started(t track.Track) (track.QueuedTrack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() || s.current == nil || !s.current.Track.Same(t) {
		return track.QueuedTrack{}, false
	}
	return *s.current, true
}

// Advance handles the end of a track.
// Events for a track other than the current one are stale and ignored.
func (s *Session) Advance(ctx context.Context, ended track.Track, reason audio.EndReason) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() || !reason.ShouldAdvanceQueue() {
		return OutcomeIgnored, nil
	}
	if s.current == nil || !s.current.Track.Same(ended) {
		return OutcomeIgnored, nil
	}

	finished := *s.current
	s.current = nil
	s.paused = false

	if s.loop == LoopQueue {
		s.queue = append(s.queue, finished)
	}

	if len(s.queue) == 0 {
		return OutcomeEnded, s.teardownLocked(ctx)
	}

	if err := s.playNextLocked(ctx); err != nil {
		if terr := s.teardownLocked(ctx); terr != nil {
			err = errors.CombineErrors(err, terr)
		}
		return OutcomeEnded, err
	}
	return OutcomeAdvanced, nil
}

// MarkVoiceJoined records that the gateway confirmed the voice channel join.
func (s *Session) MarkVoiceJoined() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceJoined = true
}

// VoiceJoined reports whether the voice channel join was confirmed.
func (s *Session) VoiceJoined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceJoined
}

// Destroy tears down the audio-node connection and discards all tracks.
// A second call returns ErrSessionDestroyed.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return ErrSessionDestroyed
	}
	return s.teardownLocked(ctx)
}

func (s *Session) teardownLocked(ctx context.Context) error {
	s.queue = make([]track.QueuedTrack, 0)
	s.current = nil
	s.paused = false

	err := s.conn.Destroy(ctx)
	s.destroyed.Store(true)
	if err != nil {
		return errors.Wrapf(err, "failed to destroy connection for guild %s", s.guildID)
	}
	zlog.Info().Msgf("session destroyed: guild=%s, id=%s", s.guildID, s.id)
	return nil
}

func clampVolume(v int) int {
	return max(MinVolume, min(MaxVolume, v))
}
