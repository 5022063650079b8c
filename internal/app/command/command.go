// Package command provides the text-command parser.
package command

import "strings"

// Kind identifies a command verb.
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindPlay
	KindPause
	KindResume
	KindSkip
	KindStop
	KindQueue
	KindNowPlaying
	KindVolume
	KindShuffle
	KindLoop
	KindRemove
	KindClear
	KindStatus
)

var verbs = map[string]Kind{
	"help":       KindHelp,
	"play":       KindPlay,
	"pause":      KindPause,
	"resume":     KindResume,
	"skip":       KindSkip,
	"stop":       KindStop,
	"queue":      KindQueue,
	"nowplaying": KindNowPlaying,
	"volume":     KindVolume,
	"shuffle":    KindShuffle,
	"loop":       KindLoop,
	"remove":     KindRemove,
	"clear":      KindClear,
	"status":     KindStatus,
}

// String returns the verb for the kind.
func (k Kind) String() string {
	for verb, kind := range verbs {
		if kind == k {
			return verb
		}
	}
	return "unknown"
}

// RequiresVoice reports whether the invoker must be connected to a voice channel.
func (k Kind) RequiresVoice() bool {
	switch k {
	case KindPlay, KindSkip, KindStop, KindPause, KindResume, KindQueue,
		KindNowPlaying, KindVolume, KindShuffle, KindLoop, KindRemove, KindClear:
		return true
	default:
		return false
	}
}

// Command is a parsed text command.
type Command struct {
	Kind Kind
	Verb string   // Lower-cased verb as typed
	Args []string // Whitespace-separated arguments
}

// Query returns the arguments joined back into a free-text query.
func (c Command) Query() string {
	return strings.Join(c.Args, " ")
}

// Arg returns the i-th argument or an empty string.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Parse splits a prefixed message into a command.
// Returns false if content does not start with prefix or carries no verb.
// Unrecognised verbs parse successfully with KindUnknown.
func Parse(prefix, content string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}

	verb := strings.ToLower(fields[0])
	return Command{
		Kind: verbs[verb],
		Verb: verb,
		Args: fields[1:],
	}, true
}
