// Package router maps authenticated identities to their live connections and
// scopes outbound events to them.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// Conn is one live, already authenticated connection.
type Conn interface {
	ID() string
	Identity() string
	// Enqueue hands a frame to the connection's writer without blocking and
	// reports false when its buffer is full.
	Enqueue(frame []byte) bool
	// Close tears the connection down; its owner deregisters it.
	Close()
}

// Presence is notified of every registration change.
type Presence interface {
	Connect(ctx context.Context, identity string) int
	Disconnect(ctx context.Context, identity string) int
}

// Relay carries frames to the instance(s) holding an identity's connections.
// Without one, the router delivers to its own registry.
type Relay interface {
	Publish(ctx context.Context, identity string, frame []byte) error
}

var ErrSlowConnection = fmt.Errorf("connection send buffer full")

type Router struct {
	log      *slog.Logger
	presence Presence
	relay    Relay

	mu    sync.RWMutex
	conns map[string]map[Conn]struct{} // identity -> connections
}

// New returns an empty router. presence may be nil for a router that only
// sends, such as the HTTP API publishing read receipts through a relay.
func New(log *slog.Logger, presence Presence) *Router {
	return &Router{
		log:      log,
		presence: presence,
		conns:    make(map[string]map[Conn]struct{}),
	}
}

// WithRelay routes SendToIdentity through relay. The relay's consumer must
// call DeliverLocal on every instance.
func (r *Router) WithRelay(relay Relay) *Router {
	r.relay = relay
	return r
}

func (r *Router) Register(ctx context.Context, c Conn) {
	r.mu.Lock()
	if r.conns[c.Identity()] == nil {
		r.conns[c.Identity()] = make(map[Conn]struct{})
	}
	r.conns[c.Identity()][c] = struct{}{}
	r.mu.Unlock()

	live := 0
	if r.presence != nil {
		live = r.presence.Connect(ctx, c.Identity())
	}
	r.log.Info("Client registered", "user", c.Identity(), "conn", c.ID(), "live", live)
}

// Deregister removes c and reports whether it was registered. Calling it
// more than once is harmless.
func (r *Router) Deregister(ctx context.Context, c Conn) bool {
	r.mu.Lock()
	clients, ok := r.conns[c.Identity()]
	if ok {
		_, ok = clients[c]
		delete(clients, c)
		if len(clients) == 0 {
			delete(r.conns, c.Identity())
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	live := 0
	if r.presence != nil {
		live = r.presence.Disconnect(ctx, c.Identity())
	}
	r.log.Info("Client unregistered", "user", c.Identity(), "conn", c.ID(), "live", live)
	return true
}

// SendToIdentity delivers an event to every live connection of identity.
// An identity without connections is not an error.
func (r *Router) SendToIdentity(ctx context.Context, identity string, event model.EventName, payload any) error {
	frame, err := model.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if r.relay != nil {
		return r.relay.Publish(ctx, identity, frame)
	}
	r.DeliverLocal(identity, frame)
	return nil
}

// SendToConnection delivers an event to a single connection.
func (r *Router) SendToConnection(c Conn, event model.EventName, payload any) error {
	frame, err := model.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if !c.Enqueue(frame) {
		r.log.Warn("Dropping slow connection", "user", c.Identity(), "conn", c.ID())
		c.Close()
		return ErrSlowConnection
	}
	return nil
}

// DeliverLocal enqueues frame on this instance's connections for identity
// and returns how many accepted it. Connections whose buffer is full are
// closed.
func (r *Router) DeliverLocal(identity string, frame []byte) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns[identity]))
	for c := range r.conns[identity] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Enqueue(frame) {
			delivered++
			continue
		}
		r.log.Warn("Dropping slow connection", "user", identity, "conn", c.ID())
		c.Close()
	}
	return delivered
}

// Connections returns the number of live connections for identity here.
func (r *Router) Connections(identity string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[identity])
}
