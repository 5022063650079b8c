// Package notification renders playback state into chat replies and delivers them.
package notification

// Field is a titled block inside a message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a rendered reply, independent of the chat transport.
type Message struct {
	Title       string
	Description string
	URL         string
	Color       int
	Thumbnail   string
	Footer      string
	Fields      []Field
}

// Colors used by the formatter for non-branded replies.
const (
	ColorError   = 0xED4245
	ColorSuccess = 0x57F287
)
