package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
	"github.com/fastprodman/tablestakes/internal/services/feed"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
	"github.com/fastprodman/tablestakes/internal/services/sessions"
	"github.com/fastprodman/tablestakes/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grace = time.Minute

type fixture struct {
	svc     *sessions.Service
	feed    *feed.Feed
	created sessions.Created

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

func newFixture(t *testing.T, idle time.Duration) *fixture {
	t.Helper()

	b := storagetest.SQLite(t)
	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := eventlog.New(b.Events)

	f.svc = sessions.New(b.DB, b.Sessions, log, ledger.New(b.DB, b.Wallets), game.NewRegistry(game.Config{}),
		sessions.Config{GraceTTL: grace}, sessions.WithClock(f.clock))
	f.feed = feed.New(f.svc, log, feed.Config{PollInterval: 10 * time.Millisecond, IdleBudget: idle})

	created, err := f.svc.Create(t.Context(), sessions.CreateRequest{
		GameKind: game.KindHighLow, Currency: "coins", HostUserID: "host",
	})
	require.NoError(t, err)

	_, err = f.svc.Join(t.Context(), created.JoinCode, "alice")
	require.NoError(t, err)

	f.created = created

	return f
}

// stream runs Stream in the background and returns its frames and result.
func (f *fixture) stream(ctx context.Context, since int64) (<-chan feed.Envelope, <-chan error) {
	frames := make(chan feed.Envelope, 16)
	done := make(chan error, 1)

	go func() {
		done <- f.feed.Stream(ctx, f.created.Session.ID, f.created.HostToken, since, func(env feed.Envelope) error {
			frames <- env
			return nil
		})
		close(frames)
	}()

	return frames, done
}

func next(t *testing.T, frames <-chan feed.Envelope) feed.Envelope {
	t.Helper()

	select {
	case env, ok := <-frames:
		require.True(t, ok, "stream closed")
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("no frame within 5s")
		return feed.Envelope{}
	}
}

func TestSince(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)
	id := f.created.Session.ID

	evs, err := f.feed.Since(t.Context(), id, f.created.HostToken, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, eventlog.TypePlayerJoined, evs[1].Type)

	evs, err = f.feed.Since(t.Context(), id, "", 1)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(2), evs[0].Seq)

	_, err = f.feed.Since(t.Context(), id, "forged", 0)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.feed.Since(t.Context(), "missing", "", 0)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStreamFollowsLogUntilSessionEnds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Minute)
	id := f.created.Session.ID

	frames, done := f.stream(t.Context(), -1)

	snap := next(t, frames)
	assert.Equal(t, feed.TypeSnapshot, snap.Type)
	assert.Equal(t, int64(2), snap.Seq)
	assert.Equal(t, id, snap.Data.(sessions.View).ID)

	_, err := f.svc.Finish(t.Context(), id, f.created.HostToken)
	require.NoError(t, err)

	finished := next(t, frames)
	assert.Equal(t, eventlog.TypeSessionFinished, finished.Type)
	assert.Equal(t, int64(3), finished.Seq)

	f.advance(grace + time.Second)

	ended := next(t, frames)
	assert.Equal(t, feed.TypeEnded, ended.Type)
	assert.Equal(t, int64(3), ended.Seq)

	require.NoError(t, <-done)
}

func TestStreamReplaysFromCursor(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 50*time.Millisecond)

	frames, done := f.stream(t.Context(), 0)

	assert.Equal(t, feed.TypeSnapshot, next(t, frames).Type)
	assert.Equal(t, int64(1), next(t, frames).Seq)
	assert.Equal(t, int64(2), next(t, frames).Seq)

	require.NoError(t, <-done, "idle budget ends the stream")
}

func TestStreamIdleBudget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 30*time.Millisecond)

	start := time.Now()
	frames, done := f.stream(t.Context(), -1)

	assert.Equal(t, feed.TypeSnapshot, next(t, frames).Type)
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	_, open := <-frames
	assert.False(t, open, "nothing after the snapshot")
}

func TestStreamStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Hour)

	ctx, cancel := context.WithCancel(t.Context())
	frames, done := f.stream(ctx, -1)

	assert.Equal(t, feed.TypeSnapshot, next(t, frames).Type)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStreamRejectsForgedToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)

	err := f.feed.Stream(t.Context(), f.created.Session.ID, "forged", -1, func(feed.Envelope) error {
		t.Fatal("no frame expected")
		return nil
	})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}
