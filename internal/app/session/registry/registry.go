// Package registry provides the guild to session mapping.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/app/session"
)

var ErrSessionNotFound = errors.New("session not found")

// Factory creates the session for a guild, including its audio-node connection.
type Factory func(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*session.Session, error)

// ConnectFunc joins a freshly created session to its voice channel. It runs
// after the session is visible to Get, so gateway voice events produced by
// the join find it.
type ConnectFunc func(ctx context.Context, s *session.Session) error

// Option configures a SessionRegistry.
type Option func(*SessionRegistry)

// WithConnect sets the step run for every created session.
func WithConnect(fn ConnectFunc) Option {
	return func(r *SessionRegistry) {
		r.connect = fn
	}
}

// SessionRegistry holds at most one live session per guild.
// Creation serializes per guild; mu only guards the maps and is never held
// while calling out. Lock order is guild, then session, then mu.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	guilds   map[string]*sync.Mutex // one per guild seen
	factory  Factory
	connect  ConnectFunc
}

// New creates a new session registry.
func New(factory Factory, opts ...Option) *SessionRegistry {
	r := &SessionRegistry{
		sessions: make(map[string]*session.Session),
		guilds:   make(map[string]*sync.Mutex),
		factory:  factory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the live session of a guild.
func (r *SessionRegistry) Get(guildID string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[guildID]
	if !ok || s.Destroyed() {
		return nil, false
	}
	return s, true
}

// GetOrCreate returns the live session of a guild, creating one bound to the
// given channels if none exists. Existing sessions keep their bindings.
// Concurrent calls for one guild share a single creation; other guilds are
// not blocked by it.
func (r *SessionRegistry) GetOrCreate(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*session.Session, bool, error) {
	lock := r.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	if s, ok := r.Get(guildID); ok {
		return s, false, nil
	}

	s, err := r.factory(ctx, guildID, voiceChannelID, textChannelID)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to create session for guild %s", guildID)
	}

	r.mu.Lock()
	r.sessions[guildID] = s
	r.mu.Unlock()

	if r.connect != nil {
		if err := r.connect(ctx, s); err != nil {
			if derr := s.Destroy(ctx); derr != nil && !errors.Is(derr, session.ErrSessionDestroyed) {
				zlog.Warn().Err(derr).Msgf("failed to destroy unconnected session: guild=%s", guildID)
			}
			r.Remove(guildID, s)
			return nil, false, errors.Wrapf(err, "failed to connect session for guild %s", guildID)
		}
	}

	zlog.Info().Msgf("session created: guild=%s, id=%s, voice=%s, text=%s",
		guildID, s.ID(), voiceChannelID, textChannelID)
	return s, true, nil
}

func (r *SessionRegistry) guildLock(guildID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.guilds[guildID]
	if !ok {
		lock = &sync.Mutex{}
		r.guilds[guildID] = lock
	}
	return lock
}

// Remove drops s from the registry if it is still the guild's session.
func (r *SessionRegistry) Remove(guildID string, s *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[guildID]; ok && cur == s {
		delete(r.sessions, guildID)
		return true
	}
	return false
}

// Destroy tears down and removes the live session of a guild.
func (r *SessionRegistry) Destroy(ctx context.Context, guildID string) error {
	s, ok := r.Get(guildID)
	if !ok {
		return ErrSessionNotFound
	}

	err := s.Destroy(ctx)
	r.Remove(guildID, s)
	if errors.Is(err, session.ErrSessionDestroyed) {
		return ErrSessionNotFound
	}
	return err
}

// All returns every live session ordered by guild ID.
func (r *SessionRegistry) All() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Destroyed() {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].GuildID() < result[j].GuildID()
	})
	return result
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	return len(r.All())
}

// DestroyAll tears down every session. Used on shutdown.
func (r *SessionRegistry) DestroyAll(ctx context.Context) {
	for _, s := range r.All() {
		if err := r.Destroy(ctx, s.GuildID()); err != nil && !errors.Is(err, ErrSessionNotFound) {
			zlog.Warn().Err(err).Msgf("failed to destroy session: guild=%s", s.GuildID())
		}
	}
}
