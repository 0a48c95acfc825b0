// Package timeline reconciles, on the client, persisted history pages with
// live events that may arrive before, during or after those pages load.
package timeline

import (
	"sort"
	"sync"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// DefaultTypingTimeout clears a peer's typing indicator when no refresh
// arrives, so a lost typing:stop heals on its own.
const DefaultTypingTimeout = 3 * time.Second

type Timeline struct {
	self, peer    string
	typingTimeout time.Duration

	mu       sync.Mutex
	byID     map[int64]model.Message
	ordered  []model.Message
	loaded   int // pages fetched so far
	hasMore  bool
	typingAt time.Time
}

func New(self, peer string, typingTimeout time.Duration) *Timeline {
	return &Timeline{
		self:          self,
		peer:          peer,
		typingTimeout: typingTimeout,
		byID:          make(map[int64]model.Message),
		hasMore:       true,
	}
}

// ApplyPage merges page number page fetched with limit.
func (t *Timeline) ApplyPage(page, limit int, messages []model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range messages {
		t.merge(m)
	}
	if page > t.loaded {
		t.loaded = page
	}
	if page == t.loaded {
		t.hasMore = len(messages) == limit
	}
	t.reorder()
}

// ApplyMessage merges a live message:sent or message:new event and reports
// whether it belongs to this conversation.
func (t *Timeline) ApplyMessage(m model.Message) bool {
	if !t.belongs(m) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.merge(m)
	t.reorder()
	if m.Sender == t.peer {
		t.typingAt = time.Time{}
	}
	return true
}

// ApplyRead handles message:read and returns how many of our own messages
// flipped to read. Receipts from anyone but the peer are ignored.
func (t *Timeline) ApplyRead(readerID string) int {
	if readerID != t.peer {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := 0
	for id, m := range t.byID {
		if m.Sender == t.self && !m.IsRead {
			m.IsRead = true
			t.byID[id] = m
			changed++
		}
	}
	if changed > 0 {
		t.reorder()
	}
	return changed
}

// ApplyTyping handles typing:start and typing:stop from senderID.
func (t *Timeline) ApplyTyping(event model.EventName, senderID string, now time.Time) {
	if senderID != t.peer {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch event {
	case model.EventTypingStart:
		t.typingAt = now
	case model.EventTypingStop:
		t.typingAt = time.Time{}
	}
}

func (t *Timeline) PeerTyping(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.typingAt.IsZero() && now.Sub(t.typingAt) < t.typingTimeout
}

func (t *Timeline) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Message{}, t.ordered...)
}

// NextPage returns the next older page to fetch, false when the last fetch
// came back short.
func (t *Timeline) NextPage() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded + 1, t.hasMore
}

func (t *Timeline) belongs(m model.Message) bool {
	return m.Between(t.self, t.peer)
}

// merge keeps one copy per id. Delivered and read only ever turn true, so a
// stale copy cannot undo a newer one.
func (t *Timeline) merge(m model.Message) {
	if existing, ok := t.byID[m.ID]; ok {
		m.Delivered = m.Delivered || existing.Delivered
		m.IsRead = m.IsRead || existing.IsRead
	}
	t.byID[m.ID] = m
}

func (t *Timeline) reorder() {
	t.ordered = t.ordered[:0]
	for _, m := range t.byID {
		t.ordered = append(t.ordered, m)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Before(t.ordered[j]) })
}
