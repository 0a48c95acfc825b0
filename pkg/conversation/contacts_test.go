package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestContacts_ListExcludesRequesterAndCarriesPreview(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	for _, u := range []model.User{
		{ID: "alice", Username: "alice"},
		{ID: "bob", Username: "bob"},
		{ID: "carol", Username: "carol", IsOnline: true},
	} {
		req.NoError(f.users.Upsert(ctx, u))
	}
	f.seed(t, 3) // last one: alice -> bob "m02"

	contacts, err := f.contacts.List(ctx, "bob")
	req.NoError(err)

	// Online first, requester excluded
	req.Len(contacts, 2)
	req.Equal("carol", contacts[0].ID)
	req.Nil(contacts[0].LastMessage)

	req.Equal("alice", contacts[1].ID)
	req.NotNil(contacts[1].LastMessage)
	req.Equal("m02", contacts[1].LastMessage.Content)
	req.False(contacts[1].LastMessage.IsSentByMe)
	req.True(time.Date(2026, 6, 1, 8, 0, 2, 0, time.UTC).Equal(contacts[1].LastMessage.CreatedAt))
}
