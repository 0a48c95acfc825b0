package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestUserStore_PresenceAndListing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewUserStore(openTestDB(t))

	for _, u := range []model.User{{ID: "u3", Username: "carol"}, {ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}} {
		req.NoError(s.Upsert(ctx, u))
	}

	seen := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	req.NoError(s.SetPresence(ctx, "u3", true, seen))

	carol, err := s.FindByID(ctx, "u3")
	req.NoError(err)
	req.True(carol.IsOnline)
	req.Equal(seen, carol.LastSeen)

	users, err := s.List(ctx)
	req.NoError(err)
	req.Equal([]string{"carol", "alice", "bob"}, lo.Map(users, func(u model.User, _ int) string { return u.Username }))
}

func TestUserStore_UnknownUser(t *testing.T) {
	req := require.New(t)
	s := NewUserStore(openTestDB(t))

	_, err := s.FindByID(context.Background(), "ghost")
	req.ErrorIs(err, errors.ErrNotFound)

	err = s.SetPresence(context.Background(), "ghost", true, time.Now())
	req.ErrorIs(err, errors.ErrNotFound)
}
