// Package routertest provides an in-memory router.Conn for tests.
package routertest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/mahaj/dupahar-dm/pkg/model"
)

type Conn struct {
	id       string
	identity string
	capacity int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewConn returns a connection that accepts up to capacity frames; zero means
// unbounded.
func NewConn(identity string, capacity int) *Conn {
	return &Conn{id: uuid.NewString(), identity: identity, capacity: capacity}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) Identity() string { return c.identity }

func (c *Conn) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (c.capacity > 0 && len(c.frames) >= c.capacity) {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Envelopes decodes every frame received so far.
func (c *Conn) Envelopes() []model.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env model.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// Events lists the names of received events in arrival order.
func (c *Conn) Events() []model.EventName {
	var names []model.EventName
	for _, env := range c.Envelopes() {
		names = append(names, env.Event)
	}
	return names
}

// Decode unmarshals the data of the i-th received envelope into v.
func (c *Conn) Decode(i int, v any) error {
	return json.Unmarshal(c.Envelopes()[i].Data, v)
}

// NopPresence satisfies router.Presence without tracking anything.
type NopPresence struct{}

func (NopPresence) Connect(_ context.Context, _ string) int    { return 1 }
func (NopPresence) Disconnect(_ context.Context, _ string) int { return 0 }
