package notification

import (
	"context"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Sender delivers a message to a text channel.
type Sender interface {
	Send(ctx context.Context, channelID string, msg Message) error
}

// Manager delivers notifications with a bounded wait. Delivery failures are
// logged and never returned to the caller.
type Manager struct {
	sender     Sender
	timeout    time.Duration
	sequenceNo atomic.Uint64
	failures   atomic.Uint64
}

// NewManager creates a new notification manager.
func NewManager(sender Sender, timeout time.Duration) *Manager {
	return &Manager{
		sender:  sender,
		timeout: timeout,
	}
}

// Notify sends msg to channelID and returns once it was delivered, failed or
// timed out. An empty channel id is a no-op.
func (m *Manager) Notify(ctx context.Context, channelID string, msg Message) {
	if channelID == "" {
		return
	}
	seq := m.sequenceNo.Add(1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.sender.Send(ctx, channelID, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			m.failures.Add(1)
			zlog.Warn().Err(err).Msgf("failed to deliver notification: seq=%d, channel=%s", seq, channelID)
		}
	case <-ctx.Done():
		m.failures.Add(1)
		zlog.Warn().Msgf("notification timed out: seq=%d, channel=%s, timeout=%v", seq, channelID, m.timeout)
	}
}

// Sent returns the number of notifications attempted.
func (m *Manager) Sent() uint64 {
	return m.sequenceNo.Load()
}

// Failures returns the number of notifications that failed or timed out.
func (m *Manager) Failures() uint64 {
	return m.failures.Load()
}
