package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vitality/internal/domain/audio"
	"github.com/osa030/vitality/internal/domain/track"
)

type fakeConn struct {
	mu         sync.Mutex
	played     []string
	paused     []bool
	nodePaused bool
	stops      int
	volumes    []int
	destroys   int
	playErr    error
	destroyErr error
}

func (f *fakeConn) Play(_ context.Context, t track.Track, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, t.Title)
	f.nodePaused = false
	return nil
}

func (f *fakeConn) Pause(_ context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, paused)
	f.nodePaused = paused
	return nil
}

func (f *fakeConn) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeConn) SetVolume(_ context.Context, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, volume)
	return nil
}

func (f *fakeConn) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	return f.destroyErr
}

func qt(title string) track.QueuedTrack {
	return track.QueuedTrack{
		Track:     track.Track{Encoded: "enc-" + title, Identifier: title, Title: title},
		Requester: track.Requester{ID: "u1", Name: "alice"},
	}
}

func titles(qts []track.QueuedTrack) []string {
	out := make([]string, 0, len(qts))
	for _, q := range qts {
		out = append(out, q.Track.Title)
	}
	return out
}

func newTestSession(conn *fakeConn) *Session {
	return New("g1", "v1", "t1", conn, Config{DefaultVolume: 100})
}

func TestSession_EnqueueStartsFromIdle(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)

	res, err := s.Enqueue(context.Background(), []track.QueuedTrack{qt("A")}, nil)
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, []string{"A"}, conn.played)

	snap := s.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "A", snap.Current.Track.Title)
	assert.Empty(t, snap.Queue)
	assert.Equal(t, StatePlaying, snap.State)

	res, err = s.Enqueue(context.Background(), []track.QueuedTrack{qt("B")}, nil)
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, []string{"A"}, conn.played)
}

func TestSession_EnqueueWhilePausedDoesNotStart(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A")}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Pause(ctx))

	res, err := s.Enqueue(ctx, []track.QueuedTrack{qt("B")}, nil)
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, []string{"A"}, conn.played)
}

func TestSession_EnqueueAdmit(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	errTooLong := errors.New("too long")

	admit := func(q track.QueuedTrack, _ *track.QueuedTrack, _ []track.QueuedTrack) error {
		if q.Track.Title == "B" {
			return errTooLong
		}
		return nil
	}

	res, err := s.Enqueue(context.Background(), []track.QueuedTrack{qt("A"), qt("B"), qt("C")}, admit)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, titles(res.Added))
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "B", res.Rejected[0].Track.Track.Title)
	assert.ErrorIs(t, res.Rejected[0].Err, errTooLong)

	// Everything rejected: nothing starts.
	s2 := newTestSession(&fakeConn{})
	res, err = s2.Enqueue(context.Background(), []track.QueuedTrack{qt("B")}, admit)
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.False(t, res.Started)
	assert.Equal(t, StateIdle, s2.Snapshot().State)
}

func TestSession_EnqueuePlayFailureKeepsTrack(t *testing.T) {
	conn := &fakeConn{playErr: errors.New("node down")}
	s := newTestSession(conn)

	_, err := s.Enqueue(context.Background(), []track.QueuedTrack{qt("A"), qt("B")}, nil)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Nil(t, snap.Current)
	assert.Equal(t, []string{"A", "B"}, titles(snap.Queue))
}

func TestSession_FIFOOrder(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("T1"), qt("T2"), qt("T3")}, nil)
	require.NoError(t, err)

	for _, title := range []string{"T1", "T2"} {
		out, err := s.Advance(ctx, qt(title).Track, audio.EndFinished)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAdvanced, out)
	}
	out, err := s.Advance(ctx, qt("T3").Track, audio.EndFinished)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnded, out)

	assert.Equal(t, []string{"T1", "T2", "T3"}, conn.played)
	assert.Equal(t, 1, conn.destroys)
	assert.True(t, s.Destroyed())
}

func TestSession_AdvanceIgnores(t *testing.T) {
	tests := []struct {
		name   string
		ended  track.Track
		reason audio.EndReason
	}{
		{name: "stale track", ended: qt("X").Track, reason: audio.EndFinished},
		{name: "replaced", ended: qt("A").Track, reason: audio.EndReplaced},
		{name: "cleanup", ended: qt("A").Track, reason: audio.EndCleanup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{}
			s := newTestSession(conn)
			ctx := context.Background()
			_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A"), qt("B")}, nil)
			require.NoError(t, err)

			out, err := s.Advance(ctx, tt.ended, tt.reason)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, out)

			snap := s.Snapshot()
			assert.Equal(t, "A", snap.Current.Track.Title)
			assert.Equal(t, []string{"B"}, titles(snap.Queue))
		})
	}
}

func TestSession_LoopReinsertion(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("T"), qt("U")}, nil)
	require.NoError(t, err)
	mode, err := s.ToggleLoop()
	require.NoError(t, err)
	require.Equal(t, LoopQueue, mode)

	out, err := s.Advance(ctx, qt("T").Track, audio.EndFinished)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, out)

	snap := s.Snapshot()
	assert.Equal(t, "U", snap.Current.Track.Title)
	assert.Equal(t, []string{"T"}, titles(snap.Queue))

	// N full cycles lose nothing.
	const cycles = 10
	for i := 0; i < cycles*2; i++ {
		cur := s.Snapshot().Current
		require.NotNil(t, cur)
		out, err := s.Advance(ctx, cur.Track, audio.EndFinished)
		require.NoError(t, err)
		require.Equal(t, OutcomeAdvanced, out)

		snap := s.Snapshot()
		all := append(titles(snap.Queue), snap.Current.Track.Title)
		assert.ElementsMatch(t, []string{"T", "U"}, all)
	}
	assert.Equal(t, 0, conn.destroys)
}

func TestSession_LoopSingleTrackRepeats(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A")}, nil)
	require.NoError(t, err)
	_, err = s.ToggleLoop()
	require.NoError(t, err)

	out, err := s.Advance(ctx, qt("A").Track, audio.EndFinished)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, out)
	assert.Equal(t, []string{"A", "A"}, conn.played)
}

func TestSession_SkipGuard(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A")}, nil)
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.Skip(ctx)
	assert.ErrorIs(t, err, ErrNoNextTrack)
	assert.Equal(t, 0, conn.stops)
	assert.Equal(t, before, s.Snapshot())

	_, err = s.Enqueue(ctx, []track.QueuedTrack{qt("B")}, nil)
	require.NoError(t, err)
	started, err := s.Skip(ctx)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, 1, conn.stops)

	// Skip only signals the node; the queue moves on the end event.
	assert.Equal(t, "A", s.Snapshot().Current.Track.Title)
	out, err := s.Advance(ctx, qt("A").Track, audio.EndStopped)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, out)
	assert.Equal(t, "B", s.Snapshot().Current.Track.Title)
}

func TestSession_PauseResume(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	assert.ErrorIs(t, s.Pause(ctx), ErrAlreadyPaused)
	assert.ErrorIs(t, s.Resume(ctx), ErrNotPaused)

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A")}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Pause(ctx))
	assert.Equal(t, StatePaused, s.Snapshot().State)
	assert.ErrorIs(t, s.Pause(ctx), ErrAlreadyPaused)

	require.NoError(t, s.Resume(ctx))
	assert.Equal(t, StatePlaying, s.Snapshot().State)
	assert.ErrorIs(t, s.Resume(ctx), ErrNotPaused)

	assert.Equal(t, []bool{true, false}, conn.paused)
}

func TestSession_PausedSkipPlaysNextUnpaused(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A"), qt("B")}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Pause(ctx))
	assert.True(t, conn.nodePaused)

	started, err := s.Skip(ctx)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, StatePaused, s.Snapshot().State)

	out, err := s.Advance(ctx, qt("A").Track, audio.EndStopped)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, out)
	assert.Equal(t, []string{"A", "B"}, conn.played)

	// Session and node agree the next track is playing.
	snap := s.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	assert.False(t, snap.Paused)
	assert.False(t, conn.nodePaused)

	assert.ErrorIs(t, s.Resume(ctx), ErrNotPaused)
	require.NoError(t, s.Pause(ctx))
	assert.True(t, conn.nodePaused)
	require.NoError(t, s.Resume(ctx))
	assert.False(t, conn.nodePaused)
	assert.Equal(t, []bool{true, true, false}, conn.paused)
}

func TestSession_SkipStartsIdleHead(t *testing.T) {
	conn := &fakeConn{playErr: errors.New("node unavailable")}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A")}, nil)
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Equal(t, []string{"A"}, titles(s.Snapshot().Queue))

	conn.mu.Lock()
	conn.playErr = nil
	conn.mu.Unlock()

	started, err := s.Skip(ctx)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Zero(t, conn.stops)
	assert.Equal(t, "A", s.Snapshot().Current.Track.Title)
	assert.Empty(t, s.Snapshot().Queue)
}

func TestSession_SetVolumeClamps(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)

	v, err := s.SetVolume(context.Background(), 150)
	require.NoError(t, err)
	assert.Equal(t, 100, v)

	v, err = s.SetVolume(context.Background(), -3)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, s.Snapshot().Volume)
}

func TestSession_Remove(t *testing.T) {
	s := newTestSession(&fakeConn{})
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("NOW"), qt("A"), qt("B"), qt("C")}, nil)
	require.NoError(t, err)

	before := s.Snapshot()
	for _, pos := range []int{0, 4, -1} {
		_, n, err := s.Remove(pos)
		assert.ErrorIs(t, err, ErrInvalidPosition, fmt.Sprint(pos))
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, before, s.Snapshot())

	removed, n, err := s.Remove(2)
	require.NoError(t, err)
	assert.Equal(t, "B", removed.Track.Title)
	assert.Equal(t, 2, n)

	snap := s.Snapshot()
	assert.Equal(t, []string{"A", "C"}, titles(snap.Queue))
	assert.Equal(t, "NOW", snap.Current.Track.Title)
}

func TestSession_ShuffleAndClear(t *testing.T) {
	s := newTestSession(&fakeConn{})
	ctx := context.Background()

	assert.ErrorIs(t, s.Shuffle(), ErrQueueEmpty)
	_, err := s.Clear()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	_, err = s.Enqueue(ctx, []track.QueuedTrack{qt("NOW"), qt("A"), qt("B"), qt("C"), qt("D")}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Shuffle())
	snap := s.Snapshot()
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, titles(snap.Queue))
	assert.Equal(t, "NOW", snap.Current.Track.Title)

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	snap = s.Snapshot()
	assert.Empty(t, snap.Queue)
	assert.Equal(t, "NOW", snap.Current.Track.Title)
}

func TestSession_DestroyIdempotent(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, []track.QueuedTrack{qt("A"), qt("B")}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Destroy(ctx))
	assert.ErrorIs(t, s.Destroy(ctx), ErrSessionDestroyed)
	assert.Equal(t, 1, conn.destroys)

	snap := s.Snapshot()
	assert.Equal(t, StateDestroyed, snap.State)
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.Queue)

	_, err = s.Enqueue(ctx, []track.QueuedTrack{qt("C")}, nil)
	assert.ErrorIs(t, err, ErrSessionDestroyed)
	out, err := s.Advance(ctx, qt("A").Track, audio.EndFinished)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
}

func TestSession_Started(t *testing.T) {
	s := newTestSession(&fakeConn{})

	_, ok := s.Started(qt("A").Track)
	assert.False(t, ok)

	_, err := s.Enqueue(context.Background(), []track.QueuedTrack{qt("A")}, nil)
	require.NoError(t, err)

	got, ok := s.Started(qt("A").Track)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Requester.Name)

	_, ok = s.Started(qt("B").Track)
	assert.False(t, ok)
}

func TestSession_ConcurrentEnqueue(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(conn)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Enqueue(context.Background(), []track.QueuedTrack{qt(fmt.Sprintf("T%d", i))}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Len(t, snap.Queue, workers-1)
	assert.Len(t, conn.played, 1)
}
