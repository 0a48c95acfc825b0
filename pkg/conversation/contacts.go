package conversation

import (
	"context"
	"log/slog"

	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
	"github.com/samber/lo"
)

type Contacts struct {
	log      *slog.Logger
	users    store.UserStore
	messages store.MessageStore
}

func NewContacts(log *slog.Logger, users store.UserStore, messages store.MessageStore) *Contacts {
	return &Contacts{log: log, users: users, messages: messages}
}

// List returns every user other than requester, online ones first, each
// with a preview of the latest message exchanged with requester.
func (c *Contacts) List(ctx context.Context, requester string) ([]model.Contact, error) {
	users, err := c.users.List(ctx)
	if err != nil {
		return nil, err
	}
	others := lo.Filter(users, func(u model.User, _ int) bool { return u.ID != requester })

	contacts := make([]model.Contact, 0, len(others))
	for _, u := range others {
		latest, err := c.messages.Latest(ctx, requester, u.ID)
		if err != nil {
			c.log.Error("Failed to load last message", "user", requester, "counterpart", u.ID, "error", err)
			return nil, err
		}
		contact := model.Contact{User: u}
		if latest != nil {
			contact.LastMessage = &model.LastMessage{
				Content:    latest.Content,
				CreatedAt:  latest.CreatedAt,
				IsSentByMe: latest.Sender == requester,
			}
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}
