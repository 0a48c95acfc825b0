// Package chat implements the message lifecycle: sending, read receipts and
// typing signals.
package chat

import (
	"context"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// Notifier delivers an event to every live connection of an identity; an
// identity with no connection is silently skipped.
type Notifier interface {
	SendToIdentity(ctx context.Context, identity string, event model.EventName, payload any) error
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}
