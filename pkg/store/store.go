// Package store declares the persistence contracts consumed by the messaging
// core. Implementations must make every single-message and single-user
// update atomic; bulk updates are set operations that may interleave freely
// because they only move flags from false to true.
package store

import (
	"context"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

type MessageStore interface {
	// Create persists a new message. ID and CreatedAt are already assigned.
	Create(ctx context.Context, message model.Message) (model.Message, error)
	// Conversation returns the messages exchanged between a and b, newest
	// first, skipping the first skip messages and returning at most limit.
	Conversation(ctx context.Context, a, b string, skip, limit int) ([]model.Message, error)
	// Latest returns the newest message between a and b, nil when none.
	Latest(ctx context.Context, a, b string) (*model.Message, error)
	// MarkRead flips isRead on every unread message from sender to receiver
	// and returns how many changed.
	MarkRead(ctx context.Context, sender, receiver string) (int, error)
	// MarkDelivered flips delivered on every undelivered message from sender
	// to receiver and returns how many changed.
	MarkDelivered(ctx context.Context, sender, receiver string) (int, error)
}

type UserStore interface {
	// FindByID returns errors.ErrNotFound when the user does not exist.
	FindByID(ctx context.Context, id string) (model.User, error)
	SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
	// List returns every user, online users first, then by username.
	List(ctx context.Context) ([]model.User, error)
	// Upsert creates or replaces a user's profile; used for seeding.
	Upsert(ctx context.Context, user model.User) error
}
