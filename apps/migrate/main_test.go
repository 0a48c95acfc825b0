package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store/badgerstore"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestSeedUsers_KeepsExistingUsers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	bdb, err := db.OpenBadgerInMemory()
	req.NoError(err)
	t.Cleanup(func() { _ = bdb.Close() })
	users := badgerstore.NewUserStore(bdb)
	req.NoError(users.Upsert(ctx, model.User{ID: "alice", Username: "Alice", IsOnline: true}))

	req.NoError(seedUsers(ctx, logs.GetLoggerFromLevel(slog.LevelDebug), users, splitIDs(" alice, bob,,")))

	list, err := users.List(ctx)
	req.NoError(err)
	req.Len(list, 2)
	alice, err := users.FindByID(ctx, "alice")
	req.NoError(err)
	req.Equal("Alice", alice.Username)
	req.True(alice.IsOnline)
}
