// Package audio provides the audio-node lifecycle event vocabulary.
package audio

import "github.com/osa030/vitality/internal/domain/track"

// EventType represents an audio-node lifecycle event type.
type EventType int

const (
	EventNodeConnect    EventType = iota // Node connection established
	EventNodeError                       // Node connection failed or errored
	EventTrackStart                      // Track started rendering
	EventTrackEnd                        // Track stopped rendering
	EventTrackException                  // Track failed while rendering
	EventTrackStuck                      // Track stopped producing frames
	EventVoiceClosed                     // Voice websocket between node and gateway closed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventNodeConnect:
		return "node_connect"
	case EventNodeError:
		return "node_error"
	case EventTrackStart:
		return "track_start"
	case EventTrackEnd:
		return "track_end"
	case EventTrackException:
		return "track_exception"
	case EventTrackStuck:
		return "track_stuck"
	case EventVoiceClosed:
		return "voice_closed"
	default:
		return "unknown"
	}
}

// EndReason represents why a track ended.
type EndReason string

const (
	EndFinished   EndReason = "finished"   // Track played to completion
	EndLoadFailed EndReason = "loadFailed" // Track could not be loaded
	EndStopped    EndReason = "stopped"    // Track was stopped (skip)
	EndReplaced   EndReason = "replaced"   // Another track was started over it
	EndCleanup    EndReason = "cleanup"    // Player was torn down
)

// ShouldAdvanceQueue returns true if this end reason should advance the queue.
// Skip is delivered as a stop, so stopped advances too.
func (r EndReason) ShouldAdvanceQueue() bool {
	return r == EndFinished || r == EndLoadFailed || r == EndStopped
}

// CloseCodeDisconnected is the voice close code sent when the bot was
// disconnected from the channel.
const CloseCodeDisconnected = 4014

// Event represents an audio-node lifecycle event.
type Event struct {
	Type     EventType
	Node     string       // Node name
	GuildID  string       // Empty for node-level events
	Track    *track.Track // Track concerned (nil for node and voice events)
	Reason   EndReason    // EventTrackEnd only
	Code     int          // EventVoiceClosed only
	ByRemote bool         // EventVoiceClosed only
	Err      error        // EventNodeError / EventTrackException
}

// IsFatal reports whether the event ends the guild session.
func (e Event) IsFatal() bool {
	return e.Type == EventVoiceClosed && e.ByRemote && e.Code == CloseCodeDisconnected
}

// VoiceState is the bot's voice state in a guild as reported by the gateway.
type VoiceState struct {
	GuildID   string
	ChannelID string // Empty when disconnected
	UserID    string
	SessionID string
}

// VoiceServer is a voice server assignment reported by the gateway.
type VoiceServer struct {
	GuildID  string
	Token    string
	Endpoint string
}
