package chat

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/presence"
	"github.com/mahaj/dupahar-dm/pkg/router"
	"github.com/mahaj/dupahar-dm/pkg/snowflake"
	"github.com/mahaj/dupahar-dm/pkg/store/badgerstore"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type harness struct {
	log        *slog.Logger
	router     *router.Router
	messages   *badgerstore.MessageStore
	users      *badgerstore.UserStore
	pipeline   *Pipeline
	reconciler *Reconciler
	typing     *TypingRelay
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bdb, err := db.OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	messages := badgerstore.NewMessageStore(bdb, log)
	users := badgerstore.NewUserStore(bdb)
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, users.Upsert(context.Background(), model.User{ID: id, Username: id}))
	}

	r := router.New(log, presence.NewTracker(log, users, nil))
	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &harness{
		log:        log,
		router:     r,
		messages:   messages,
		users:      users,
		pipeline:   NewPipeline(log, messages, users, r, ids),
		reconciler: NewReconciler(log, messages, r),
		typing:     NewTypingRelay(log, r),
	}
}

func (h *harness) conversation(t *testing.T, a, b string) []model.Message {
	t.Helper()
	all, err := h.messages.Conversation(context.Background(), a, b, 0, 0)
	require.NoError(t, err)
	return all
}

func requireSameMessage(t *testing.T, want, got model.Message) {
	t.Helper()
	req := require.New(t)
	req.Equal(want.ID, got.ID)
	req.Equal(want.Sender, got.Sender)
	req.Equal(want.Receiver, got.Receiver)
	req.Equal(want.Content, got.Content)
	req.True(want.CreatedAt.Equal(got.CreatedAt), "createdAt %s != %s", want.CreatedAt, got.CreatedAt)
	req.Equal(want.Delivered, got.Delivered)
	req.Equal(want.IsRead, got.IsRead)
}
