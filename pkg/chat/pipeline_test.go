package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/router/routertest"
	"github.com/mahaj/dupahar-dm/pkg/snowflake"
	"github.com/mahaj/dupahar-dm/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestSend_ToOfflineReceiver(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given alice is connected and bob is offline
	alice := routertest.NewConn("alice", 0)
	h.router.Register(ctx, alice)

	// When alice sends "hi" to bob
	sent, err := h.pipeline.Send(ctx, "alice", model.SendRequest{ReceiverID: "bob", Content: "  hi "})
	req.NoError(err)

	// Then the message is persisted undelivered and unread
	stored := h.conversation(t, "alice", "bob")
	req.Len(stored, 1)
	requireSameMessage(t, sent, stored[0])
	req.Equal("hi", stored[0].Content)
	req.False(stored[0].Delivered)
	req.False(stored[0].IsRead)
	req.NotZero(stored[0].ID)

	// And alice gets the authoritative copy
	req.Equal([]model.EventName{model.EventMessageSent}, alice.Events())
	var confirmed model.Message
	req.NoError(alice.Decode(0, &confirmed))
	req.Equal(sent.ID, confirmed.ID)
	req.True(sent.CreatedAt.Equal(confirmed.CreatedAt))
}

func TestSend_FansOutToEveryReceiverConnection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	phone := routertest.NewConn("bob", 0)
	laptop := routertest.NewConn("bob", 0)
	h.router.Register(ctx, phone)
	h.router.Register(ctx, laptop)

	_, err := h.pipeline.Send(ctx, "alice", model.SendRequest{ReceiverID: "bob", Content: "hello"})
	req.NoError(err)

	req.Equal([]model.EventName{model.EventMessageNew}, phone.Events())
	req.Equal([]model.EventName{model.EventMessageNew}, laptop.Events())
}

func TestSend_CreatedAtIsMonotonicAcrossSequentialSends(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	var previous model.Message
	for i := 0; i < 200; i++ {
		m, err := h.pipeline.Send(ctx, "alice", model.SendRequest{ReceiverID: "bob", Content: fmt.Sprintf("m%d", i)})
		req.NoError(err)
		if i > 0 {
			req.False(m.CreatedAt.Before(previous.CreatedAt))
			req.Greater(m.ID, previous.ID)
		}
		previous = m
	}

	// And the stored conversation reads back in send order
	stored := h.conversation(t, "alice", "bob")
	req.Len(stored, 200)
	req.Equal("m199", stored[0].Content)
	req.Equal("m0", stored[199].Content)
}

func TestSend_Validation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name    string
		request model.SendRequest
		field   string
	}{
		{"Empty content", model.SendRequest{ReceiverID: "bob", Content: ""}, "content"},
		{"Blank content", model.SendRequest{ReceiverID: "bob", Content: " \n\t "}, "content"},
		{"Content too long", model.SendRequest{ReceiverID: "bob", Content: strings.Repeat("é", model.MaxContentLength+1)}, "content"},
		{"Missing receiver", model.SendRequest{Content: "hi"}, "receiverId"},
		{"Unknown receiver", model.SendRequest{ReceiverID: "ghost", Content: "hi"}, "receiverId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := h.pipeline.Send(context.Background(), "alice", tt.request)
			req.True(errors.IsValidation(err), "got %v", err)
			var verr *errors.ValidationError
			req.ErrorAs(err, &verr)
			req.Equal(tt.field, verr.Field)
		})
	}
	require.Empty(t, h.conversation(t, "alice", "bob"))
}

func TestSend_AcceptsMaximumLength(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.Send(context.Background(), "alice", model.SendRequest{ReceiverID: "bob", Content: strings.Repeat("é", model.MaxContentLength)})
	require.NoError(t, err)
}

type failingMessages struct {
	store.MessageStore
}

func (failingMessages) Create(context.Context, model.Message) (model.Message, error) {
	return model.Message{}, errors.Storage(fmt.Errorf("node down"))
}

func TestSend_StorageFailureNotifiesNobody(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	ids, err := snowflake.NewNode(2)
	req.NoError(err)
	pipeline := NewPipeline(h.log, failingMessages{}, h.users, h.router, ids)

	alice := routertest.NewConn("alice", 0)
	bob := routertest.NewConn("bob", 0)
	h.router.Register(ctx, alice)
	h.router.Register(ctx, bob)

	_, err = pipeline.Send(ctx, "alice", model.SendRequest{ReceiverID: "bob", Content: "hi"})
	req.True(errors.IsStorage(err))
	req.Empty(alice.Events())
	req.Empty(bob.Events())
}

type failingNotifier struct{}

func (failingNotifier) SendToIdentity(context.Context, string, model.EventName, any) error {
	return fmt.Errorf("broker unavailable")
}

func TestSend_FanOutFailureIsNotFatal(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ids, err := snowflake.NewNodeWithClock(3, func() time.Time { return time.Now() })
	req.NoError(err)
	pipeline := NewPipeline(slog.Default(), h.messages, h.users, failingNotifier{}, ids)

	m, err := pipeline.Send(context.Background(), "alice", model.SendRequest{ReceiverID: "bob", Content: "durable"})
	req.NoError(err)
	stored := h.conversation(t, "alice", "bob")
	req.Len(stored, 1)
	requireSameMessage(t, m, stored[0])
}
