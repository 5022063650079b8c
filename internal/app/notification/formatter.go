package notification

import (
	"fmt"
	"strings"

	"github.com/osa030/vitality/internal/app/command"
	"github.com/osa030/vitality/internal/app/session"
	"github.com/osa030/vitality/internal/domain/playlist"
	"github.com/osa030/vitality/internal/domain/track"
)

// queuePageSize is the number of upcoming tracks listed by QueueList.
const queuePageSize = 10

// Formatter renders replies. It holds no state besides its brand colour.
type Formatter struct {
	color int
}

// NewFormatter creates a new formatter using color for informational replies.
func NewFormatter(color int) *Formatter {
	return &Formatter{color: color}
}

// Error renders a user error.
func (f *Formatter) Error(text string) Message {
	return Message{Description: "❌ " + text, Color: ColorError}
}

// Success renders a confirmation.
func (f *Formatter) Success(text string) Message {
	return Message{Description: "✅ " + text, Color: ColorSuccess}
}

// NowPlaying renders the track that just started.
func (f *Formatter) NowPlaying(qt track.QueuedTrack) Message {
	return Message{
		Title:       "🎵 Now Playing",
		Description: trackLink(qt.Track),
		URL:         qt.Track.URI,
		Color:       f.color,
		Thumbnail:   qt.Track.ArtworkURL,
		Fields: []Field{
			{Name: "Artist", Value: orUnknown(qt.Track.Author), Inline: true},
			{Name: "Duration", Value: qt.Track.Length(), Inline: true},
			{Name: "Requested by", Value: orUnknown(qt.Requester.Mention()), Inline: true},
		},
	}
}

// AddedToQueue renders a single enqueued track. position is 1-based.
func (f *Formatter) AddedToQueue(qt track.QueuedTrack, position int) Message {
	return Message{
		Title:       "➕ Added to Queue",
		Description: trackLink(qt.Track),
		Color:       f.color,
		Thumbnail:   qt.Track.ArtworkURL,
		Fields: []Field{
			{Name: "Artist", Value: orUnknown(qt.Track.Author), Inline: true},
			{Name: "Duration", Value: qt.Track.Length(), Inline: true},
			{Name: "Position", Value: fmt.Sprintf("#%d", position), Inline: true},
		},
	}
}

// AddedPlaylist renders an enqueued playlist.
func (f *Formatter) AddedPlaylist(name string, tracks []track.Track) Message {
	if name == "" {
		name = "Playlist"
	}
	var thumbnail string
	if len(tracks) > 0 {
		thumbnail = tracks[0].ArtworkURL
	}
	return Message{
		Title:       "📃 Added Playlist",
		Description: fmt.Sprintf("**%s**", name),
		Color:       f.color,
		Thumbnail:   thumbnail,
		Fields: []Field{
			{Name: "Tracks", Value: fmt.Sprintf("%d", len(tracks)), Inline: true},
			{Name: "Total Duration", Value: track.FormatDuration(playlist.TotalDuration(tracks)), Inline: true},
		},
	}
}

// QueueList renders the current track and the head of the queue.
func (f *Formatter) QueueList(queue []track.QueuedTrack, current *track.QueuedTrack) Message {
	var b strings.Builder
	if current != nil {
		fmt.Fprintf(&b, "**Now Playing:** %s `[%s]`\n\n", trackLink(current.Track), current.Track.Length())
	}
	if len(queue) == 0 {
		b.WriteString("No upcoming tracks.")
	}
	for i, qt := range queue {
		if i == queuePageSize {
			fmt.Fprintf(&b, "...and %d more", len(queue)-queuePageSize)
			break
		}
		fmt.Fprintf(&b, "`%d.` %s `[%s]`\n", i+1, trackLink(qt.Track), qt.Track.Length())
	}

	tracks := make([]track.Track, len(queue))
	for i, qt := range queue {
		tracks[i] = qt.Track
	}
	return Message{
		Title:       "📜 Queue",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       f.color,
		Footer:      fmt.Sprintf("%d tracks • %s", len(queue), track.FormatDuration(playlist.TotalDuration(tracks))),
	}
}

// PlayerStatus renders a session snapshot.
func (f *Formatter) PlayerStatus(s session.Snapshot) Message {
	nowPlaying := "None"
	if s.Current != nil {
		nowPlaying = trackLink(s.Current.Track)
	}
	return Message{
		Title: "📊 Player Status",
		Color: f.color,
		Fields: []Field{
			{Name: "Status", Value: statusText(s), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d%%", s.Volume), Inline: true},
			{Name: "Loop", Value: loopText(s.Loop), Inline: true},
			{Name: "Queue", Value: fmt.Sprintf("%d tracks", len(s.Queue)), Inline: true},
			{Name: "Voice Channel", Value: fmt.Sprintf("<#%s>", s.VoiceChannelID), Inline: true},
			{Name: "Now Playing", Value: nowPlaying},
		},
	}
}

// Help renders the command table.
func (f *Formatter) Help(prefix string, specs []command.Spec) Message {
	var b strings.Builder
	for _, s := range specs {
		fmt.Fprintf(&b, "`%s%s` - %s\n", prefix, s.Usage, s.Description)
	}
	return Message{
		Title:       "📖 Commands",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       f.color,
	}
}

// QueueEnded renders the end-of-queue announcement.
func (f *Formatter) QueueEnded() Message {
	return Message{
		Description: "🏁 Queue has ended! Leaving the voice channel.",
		Color:       f.color,
	}
}

func trackLink(t track.Track) string {
	title := orUnknown(t.Title)
	if t.URI == "" {
		return "**" + title + "**"
	}
	return fmt.Sprintf("**[%s](%s)**", title, t.URI)
}

func statusText(s session.Snapshot) string {
	switch {
	case s.Paused:
		return "⏸️ Paused"
	case s.Current != nil:
		return "▶️ Playing"
	default:
		return "⏹️ Idle"
	}
}

func loopText(m session.LoopMode) string {
	if m == session.LoopQueue {
		return "🔁 Queue"
	}
	return "Off"
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
