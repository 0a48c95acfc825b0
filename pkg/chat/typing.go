package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
)

type pair struct {
	sender, receiver string
}

// pairSlot holds the signal waiting behind the one currently being
// delivered for a pair.
type pairSlot struct {
	pending *model.EventName
}

// TypingRelay forwards typing signals without storing them. At most one
// signal per (sender, receiver) pair is in flight; a signal arriving during
// a delivery replaces any queued one and goes out right after, so the most
// recent state always reaches the receiver.
type TypingRelay struct {
	log      *slog.Logger
	notifier Notifier

	mu       sync.Mutex
	inFlight map[pair]*pairSlot
}

func NewTypingRelay(log *slog.Logger, notifier Notifier) *TypingRelay {
	return &TypingRelay{log: log, notifier: notifier, inFlight: make(map[pair]*pairSlot)}
}

func (t *TypingRelay) Start(ctx context.Context, sender, receiver string) error {
	return t.relay(ctx, sender, receiver, model.EventTypingStart)
}

func (t *TypingRelay) Stop(ctx context.Context, sender, receiver string) error {
	return t.relay(ctx, sender, receiver, model.EventTypingStop)
}

func (t *TypingRelay) relay(ctx context.Context, sender, receiver string, event model.EventName) error {
	receiver = strings.TrimSpace(receiver)
	if receiver == "" {
		return errors.NewValidationError("receiverId", "must not be empty")
	}
	key := pair{sender: sender, receiver: receiver}

	t.mu.Lock()
	if slot, busy := t.inFlight[key]; busy {
		slot.pending = &event
		t.mu.Unlock()
		return nil
	}
	slot := &pairSlot{}
	t.inFlight[key] = slot
	t.mu.Unlock()

	for {
		if err := t.notifier.SendToIdentity(ctx, receiver, event, model.TypingPayload{SenderID: sender}); err != nil {
			t.log.Debug("Typing signal lost", "sender", sender, "receiver", receiver, "event", event, "error", err)
		}

		t.mu.Lock()
		if slot.pending == nil {
			delete(t.inFlight, key)
			t.mu.Unlock()
			return nil
		}
		event = *slot.pending
		slot.pending = nil
		t.mu.Unlock()
	}
}
