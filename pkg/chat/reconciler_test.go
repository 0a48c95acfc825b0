package chat

import (
	"context"
	"testing"

	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/router/routertest"
	"github.com/stretchr/testify/require"
)

func TestMarkRead_FlipsCounterpartMessagesAndNotifiesSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given alice sent bob three messages and bob answered once
	for _, content := range []string{"one", "two", "three"} {
		_, err := h.pipeline.Send(ctx, "alice", model.SendRequest{ReceiverID: "bob", Content: content})
		req.NoError(err)
	}
	_, err := h.pipeline.Send(ctx, "bob", model.SendRequest{ReceiverID: "alice", Content: "reply"})
	req.NoError(err)

	alice := routertest.NewConn("alice", 0)
	h.router.Register(ctx, alice)

	// When bob reads the conversation
	changed, err := h.reconciler.MarkRead(ctx, "bob", "alice")
	req.NoError(err)

	// Then only alice's messages to bob are read
	req.Equal(3, changed)
	for _, m := range h.conversation(t, "alice", "bob") {
		req.Equal(m.Sender == "alice", m.IsRead, m.Content)
	}

	// And alice learns that bob read them
	req.Equal([]model.EventName{model.EventMessageRead}, alice.Events())
	var payload model.ReadPayload
	req.NoError(alice.Decode(0, &payload))
	req.Equal("bob", payload.ReaderID)
}

func TestMarkRead_IsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.pipeline.Send(ctx, "alice", model.SendRequest{ReceiverID: "bob", Content: "hi"})
	req.NoError(err)

	changed, err := h.reconciler.MarkRead(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal(1, changed)

	changed, err = h.reconciler.MarkRead(ctx, "bob", "alice")
	req.NoError(err)
	req.Zero(changed)
}

func TestMarkRead_WithOfflineCounterpart(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	changed, err := h.reconciler.MarkRead(context.Background(), "bob", "carol")
	req.NoError(err)
	req.Zero(changed)
}

func TestMarkRead_RequiresCounterpart(t *testing.T) {
	h := newHarness(t)
	_, err := h.reconciler.MarkRead(context.Background(), "bob", " ")
	require.True(t, errors.IsValidation(err))
}
