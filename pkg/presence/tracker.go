// Package presence tracks whether users are online from the lifecycle of
// their connections.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store persists presence transitions. Implemented by store.UserStore.
type Store interface {
	SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

// Mirror publishes the online set to a shared cache. Failures are logged and
// never block a transition.
type Mirror interface {
	SetOnline(ctx context.Context, identity string, lastSeen time.Time) error
	SetOffline(ctx context.Context, identity string, lastSeen time.Time) error
}

// Tracker counts live connections per identity. Updates for one identity are
// serialized by that identity's entry lock, so the persisted isOnline value
// always matches the final connection count.
type Tracker struct {
	log    *slog.Logger
	store  Store
	mirror Mirror
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	conns int
	// refs counts goroutines holding or waiting on mu; the entry leaves the
	// map only when nobody references it and no connection is live.
	refs int
}

func NewTracker(log *slog.Logger, store Store, mirror Mirror) *Tracker {
	return &Tracker{
		log:     log,
		store:   store,
		mirror:  mirror,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Connect records a new live connection and marks the identity online.
// It returns the live connection count after the change.
func (t *Tracker) Connect(ctx context.Context, identity string) int {
	e := t.acquire(identity)
	defer t.release(identity, e)

	e.conns++
	t.setOnline(ctx, identity)
	return e.conns
}

// Disconnect drops a live connection. The identity goes offline when the
// last one leaves; extra calls with no live connection are ignored.
func (t *Tracker) Disconnect(ctx context.Context, identity string) int {
	e := t.acquire(identity)
	defer t.release(identity, e)

	if e.conns == 0 {
		return 0
	}
	e.conns--
	if e.conns == 0 {
		t.setOffline(ctx, identity)
	}
	return e.conns
}

// Online reports whether identity has at least one live connection here.
func (t *Tracker) Online(identity string) bool {
	t.mu.Lock()
	e, ok := t.entries[identity]
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conns > 0
}

func (t *Tracker) acquire(identity string) *entry {
	t.mu.Lock()
	e, ok := t.entries[identity]
	if !ok {
		e = &entry{}
		t.entries[identity] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return e
}

// release takes t.mu while still holding e.mu; nothing holding t.mu ever
// waits on an entry lock, so this order cannot deadlock.
func (t *Tracker) release(identity string, e *entry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 && e.conns == 0 {
		delete(t.entries, identity)
	}
	t.mu.Unlock()
	e.mu.Unlock()
}

func (t *Tracker) setOnline(ctx context.Context, identity string) {
	now := t.now()
	if err := t.store.SetPresence(ctx, identity, true, now); err != nil {
		t.log.Error("Failed to persist presence", "user", identity, "online", true, "error", err)
	}
	if t.mirror != nil {
		if err := t.mirror.SetOnline(ctx, identity, now); err != nil {
			t.log.Warn("Failed to mirror presence", "user", identity, "online", true, "error", err)
		}
	}
	t.log.Debug("Presence online", "user", identity)
}

func (t *Tracker) setOffline(ctx context.Context, identity string) {
	now := t.now()
	if err := t.store.SetPresence(ctx, identity, false, now); err != nil {
		t.log.Error("Failed to persist presence", "user", identity, "online", false, "error", err)
	}
	if t.mirror != nil {
		if err := t.mirror.SetOffline(ctx, identity, now); err != nil {
			t.log.Warn("Failed to mirror presence", "user", identity, "online", false, "error", err)
		}
	}
	t.log.Debug("Presence offline", "user", identity)
}
