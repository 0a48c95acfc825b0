package presence

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) (*miniredis.Miniredis, *RedisMirror) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisMirror(rdb)
}

func TestRedisMirror_FollowsTrackerTransitions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, mirror := newTestMirror(t)
	store := &recordingStore{}
	tracker := NewTracker(logs.GetLoggerFromLevel(slog.LevelDebug), store, mirror)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return at }

	// Given two devices of the same user
	tracker.Connect(ctx, "alice")
	tracker.Connect(ctx, "alice")

	online, err := mirror.OnlineUsers(ctx)
	req.NoError(err)
	req.Equal([]string{"alice"}, online)
	isMember, err := mr.SIsMember(onlineKey, "alice")
	req.NoError(err)
	req.True(isMember)

	// When one device leaves, the user stays online
	at = at.Add(time.Minute)
	req.Equal(1, tracker.Disconnect(ctx, "alice"))
	isMember, err = mr.SIsMember(onlineKey, "alice")
	req.NoError(err)
	req.True(isMember)

	// When the last one leaves, the user is gone and last seen is stamped
	at = at.Add(time.Minute)
	req.Equal(0, tracker.Disconnect(ctx, "alice"))
	isMember, err = mr.SIsMember(onlineKey, "alice")
	req.NoError(err)
	req.False(isMember)

	online, err = mirror.OnlineUsers(ctx)
	req.NoError(err)
	req.Empty(online)

	lastSeen, err := time.Parse(time.RFC3339Nano, mr.HGet(lastSeenKey, "alice"))
	req.NoError(err)
	req.True(at.Equal(lastSeen))
	req.Equal(1, store.offline("alice"))
}

func TestRedisMirror_FailureDoesNotBlockPresence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, mirror := newTestMirror(t)
	store := &recordingStore{}
	tracker := NewTracker(slog.Default(), store, mirror)

	mr.Close()
	req.Equal(1, tracker.Connect(ctx, "bob"))
	req.True(tracker.Online("bob"))

	last, ok := store.last("bob")
	req.True(ok)
	req.True(last.online)
}
