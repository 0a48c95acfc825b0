package presence

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type transition struct {
	identity string
	online   bool
}

type recordingStore struct {
	mu          sync.Mutex
	transitions []transition
}

func (r *recordingStore) SetPresence(_ context.Context, id string, online bool, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition{id, online})
	return nil
}

func (r *recordingStore) offline(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tr := range r.transitions {
		if tr.identity == identity && !tr.online {
			n++
		}
	}
	return n
}

func (r *recordingStore) last(identity string) (transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.transitions) - 1; i >= 0; i-- {
		if r.transitions[i].identity == identity {
			return r.transitions[i], true
		}
	}
	return transition{}, false
}

func TestTracker_ConvergesToSingleOfflineTransition(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := &recordingStore{}
	tracker := NewTracker(log, store, nil)
	ctx := context.Background()
	const n = 50

	// Given N concurrent connections for the same identity
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Connect(ctx, "alice")
		}()
	}
	wg.Wait()
	req.True(tracker.Online("alice"))
	req.Zero(store.offline("alice"))

	// When all of them close concurrently
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Disconnect(ctx, "alice")
		}()
	}
	wg.Wait()

	// Then exactly one offline transition is persisted and it is the last one
	req.Equal(1, store.offline("alice"))
	last, ok := store.last("alice")
	req.True(ok)
	req.False(last.online)
	req.False(tracker.Online("alice"))
}

func TestTracker_InterleavedConnectDisconnect(t *testing.T) {
	req := require.New(t)
	store := &recordingStore{}
	tracker := NewTracker(slog.Default(), store, nil)
	ctx := context.Background()

	req.Equal(1, tracker.Connect(ctx, "bob"))
	req.Equal(2, tracker.Connect(ctx, "bob"))
	req.Equal(1, tracker.Disconnect(ctx, "bob"))
	req.True(tracker.Online("bob"))
	req.Zero(store.offline("bob"))

	req.Equal(0, tracker.Disconnect(ctx, "bob"))
	req.Equal(1, store.offline("bob"))

	// An extra disconnect is a no-op
	req.Equal(0, tracker.Disconnect(ctx, "bob"))
	req.Equal(1, store.offline("bob"))

	// Reconnecting goes online again
	req.Equal(1, tracker.Connect(ctx, "bob"))
	last, _ := store.last("bob")
	req.True(last.online)
}

func TestTracker_ChurnAcrossIdentities(t *testing.T) {
	req := require.New(t)
	store := &recordingStore{}
	tracker := NewTracker(slog.Default(), store, nil)
	ctx := context.Background()
	identities := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			tracker.Connect(ctx, identity)
			tracker.Disconnect(ctx, identity)
		}(identities[i%len(identities)])
	}
	wg.Wait()

	for _, identity := range identities {
		req.False(tracker.Online(identity))
		last, ok := store.last(identity)
		req.True(ok)
		req.False(last.online, identity)
	}
	tracker.mu.Lock()
	req.Empty(tracker.entries)
	tracker.mu.Unlock()
}
