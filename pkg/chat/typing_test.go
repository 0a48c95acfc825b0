package chat

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/router/routertest"
	"github.com/stretchr/testify/require"
)

func TestTyping_StartThenStopArriveInOrderAndLeaveNoTrace(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	bob := routertest.NewConn("bob", 0)
	h.router.Register(ctx, bob)

	req.NoError(h.typing.Start(ctx, "alice", "bob"))
	req.NoError(h.typing.Stop(ctx, "alice", "bob"))

	req.Equal([]model.EventName{model.EventTypingStart, model.EventTypingStop}, bob.Events())
	var payload model.TypingPayload
	req.NoError(bob.Decode(1, &payload))
	req.Equal("alice", payload.SenderID)

	req.Empty(h.conversation(t, "alice", "bob"))
	h.typing.mu.Lock()
	req.Empty(h.typing.inFlight)
	h.typing.mu.Unlock()
}

// blockingNotifier holds the first delivery until released.
type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []model.EventName
}

func (b *blockingNotifier) SendToIdentity(_ context.Context, _ string, event model.EventName, _ any) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.started)
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func TestTyping_AtMostOneInFlightPerPair(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	notifier := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	relay := NewTypingRelay(slog.Default(), notifier)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Start(ctx, "alice", "bob")
	}()
	<-notifier.started

	// While start is in flight, stop then start are queued; only the latest survives
	req.NoError(relay.Stop(ctx, "alice", "bob"))
	req.NoError(relay.Start(ctx, "alice", "bob"))
	req.NoError(relay.Stop(ctx, "alice", "bob"))

	close(notifier.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("relay did not drain")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	req.Equal([]model.EventName{model.EventTypingStart, model.EventTypingStop}, notifier.events)
}
