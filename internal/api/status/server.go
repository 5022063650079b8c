// Package status serves the bot dashboard and a small JSON API over HTTP.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/vitality/internal/app/session"
	"github.com/osa030/vitality/internal/domain/track"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"

	// errorLogTail is how much of the error log the dashboard shows.
	errorLogTail = 16 << 10
)

// Sessions exposes the live guild sessions.
type Sessions interface {
	Get(guildID string) (*session.Session, bool)
	All() []*session.Session
	Destroy(ctx context.Context, guildID string) error
}

// Directory resolves bot identity and display names from the gateway cache.
type Directory interface {
	BotTag() string
	BotUserID() string
	GuildCount() int
	StartedAt() time.Time
	GuildName(guildID string) string
	ChannelName(channelID string) string
}

// Config represents status server configuration.
type Config struct {
	Addr     string
	Token    string // Required for admin endpoints; empty disables them
	ErrorLog string // Durable error log shown on the dashboard
}

// Server is the status HTTP server.
type Server struct {
	config    Config
	sessions  Sessions
	directory Directory
	mux       *http.ServeMux
}

// New creates a new status server.
func New(cfg Config, sessions Sessions, directory Directory) *Server {
	s := &Server{
		config:    cfg,
		sessions:  sessions,
		directory: directory,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/players", s.handlePlayers)
	s.mux.HandleFunc("GET /api/players/{guildID}", s.handlePlayer)
	s.mux.Handle("POST /api/players/{guildID}/{action}", s.requireAdmin(http.HandlerFunc(s.handleAction)))
	return s
}

// Handler returns the HTTP handler with HTTP/2 cleartext support.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("starting status server: addr=%s", s.config.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "status server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown status server")
	}
	zlog.Info().Msg("status server stopped")
	return nil
}

// requireAdmin validates the admin token header.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token == "" {
			writeJSON(w, http.StatusForbidden, ActionResult{Message: "admin endpoints are disabled"})
			return
		}
		if r.Header.Get(AdminTokenHeader) != s.config.Token {
			writeJSON(w, http.StatusUnauthorized, ActionResult{Message: "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TrackView is the JSON form of a track.
type TrackView struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	URI         string `json:"uri,omitempty"`
	Length      string `json:"length"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// PlayerView is the JSON form of a guild session.
type PlayerView struct {
	GuildID        string      `json:"guild_id"`
	GuildName      string      `json:"guild_name"`
	VoiceChannelID string      `json:"voice_channel_id"`
	VoiceChannel   string      `json:"voice_channel"`
	TextChannelID  string      `json:"text_channel_id"`
	State          string      `json:"state"`
	Loop           string      `json:"loop"`
	Volume         int         `json:"volume"`
	QueueLength    int         `json:"queue_length"`
	NowPlaying     *TrackView  `json:"now_playing,omitempty"`
	Queue          []TrackView `json:"queue,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ActionResult is the response of an admin action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePlayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.players(false))
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("guildID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ActionResult{Message: "no active player"})
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess.Snapshot(), true))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	action := r.PathValue("action")

	sess, ok := s.sessions.Get(guildID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ActionResult{Message: "no active player"})
		return
	}

	var err error
	switch action {
	case "pause":
		err = sess.Pause(r.Context())
	case "resume":
		err = sess.Resume(r.Context())
	case "skip":
		_, err = sess.Skip(r.Context())
	case "stop":
		err = s.sessions.Destroy(r.Context(), guildID)
	default:
		writeJSON(w, http.StatusNotFound, ActionResult{Message: "unknown action: " + action})
		return
	}

	if err != nil {
		zlog.Warn().Err(err).Msgf("admin action failed: guild=%s, action=%s", guildID, action)
		writeJSON(w, http.StatusConflict, ActionResult{Message: err.Error()})
		return
	}
	zlog.Info().Msgf("admin action: guild=%s, action=%s", guildID, action)
	writeJSON(w, http.StatusOK, ActionResult{Success: true, Message: action + " done"})
}

func (s *Server) players(withQueue bool) []PlayerView {
	all := s.sessions.All()
	views := make([]PlayerView, 0, len(all))
	for _, sess := range all {
		views = append(views, s.view(sess.Snapshot(), withQueue))
	}
	return views
}

func (s *Server) view(snap session.Snapshot, withQueue bool) PlayerView {
	v := PlayerView{
		GuildID:        snap.GuildID,
		GuildName:      s.directory.GuildName(snap.GuildID),
		VoiceChannelID: snap.VoiceChannelID,
		VoiceChannel:   s.directory.ChannelName(snap.VoiceChannelID),
		TextChannelID:  snap.TextChannelID,
		State:          snap.State.String(),
		Loop:           snap.Loop.String(),
		Volume:         snap.Volume,
		QueueLength:    len(snap.Queue),
		CreatedAt:      snap.CreatedAt,
	}
	if snap.Current != nil {
		tv := trackView(*snap.Current)
		v.NowPlaying = &tv
	}
	if withQueue {
		for _, qt := range snap.Queue {
			v.Queue = append(v.Queue, trackView(qt))
		}
	}
	return v
}

func trackView(qt track.QueuedTrack) TrackView {
	return TrackView{
		Title:       qt.Track.Title,
		Author:      qt.Track.Author,
		URI:         qt.Track.URI,
		Length:      qt.Track.Length(),
		RequestedBy: qt.Requester.Name,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("failed to encode response")
	}
}
