// Package cqlstore implements the message and user stores on ScyllaDB.
//
// Messages are partitioned by conversation and clustered by snowflake id
// descending, so a conversation page is a single-partition slice.
package cqlstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

// Keeps a single batch well under the default batch size warning.
const maxBatch = 100

type MessageStore struct {
	session *db.Session
	log     *slog.Logger
}

func NewMessageStore(session *db.Session, log *slog.Logger) *MessageStore {
	return &MessageStore{session: session, log: log}
}

var _ store.MessageStore = (*MessageStore)(nil)

const selectMessage = `SELECT id, sender, receiver, content, created_at, delivered, is_read FROM messages_by_conversation WHERE conversation_id = ?`

func (s *MessageStore) Create(ctx context.Context, m model.Message) (model.Message, error) {
	query := `INSERT INTO messages_by_conversation (conversation_id, id, sender, receiver, content, created_at, delivered, is_read) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	err := s.session.Query(query,
		model.ConversationID(m.Sender, m.Receiver), m.ID, m.Sender, m.Receiver, m.Content, m.CreatedAt, m.Delivered, m.IsRead,
	).WithContext(ctx).Exec()
	if err != nil {
		return model.Message{}, errors.Storage(err)
	}
	return m, nil
}

func (s *MessageStore) Conversation(ctx context.Context, a, b string, skip, limit int) ([]model.Message, error) {
	messages, err := scanMessages(s.session.Query(selectMessage, model.ConversationID(a, b)).WithContext(ctx).Iter())
	if err != nil {
		return nil, errors.Storage(err)
	}
	return pairWindow(messages, a, b, skip, limit), nil
}

// pairWindow keeps only rows exchanged between a and b, then applies skip and
// limit to what is left.
func pairWindow(messages []model.Message, a, b string, skip, limit int) []model.Message {
	pair := messages[:0:0]
	for _, m := range messages {
		if m.Between(a, b) {
			pair = append(pair, m)
		}
	}
	return store.Window(pair, skip, limit)
}

func (s *MessageStore) Latest(ctx context.Context, a, b string) (*model.Message, error) {
	messages, err := s.Conversation(ctx, a, b, 0, 1)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

func (s *MessageStore) MarkRead(ctx context.Context, sender, receiver string) (int, error) {
	return s.markWhere(ctx, sender, receiver, "is_read",
		func(m model.Message) bool { return !m.IsRead })
}

func (s *MessageStore) MarkDelivered(ctx context.Context, sender, receiver string) (int, error) {
	return s.markWhere(ctx, sender, receiver, "delivered",
		func(m model.Message) bool { return !m.Delivered })
}

// markWhere reads the conversation partition and sets column to true on the
// matching rows in unlogged batches. Setting a flag to true is idempotent, so
// concurrent callers converge without coordination.
func (s *MessageStore) markWhere(ctx context.Context, sender, receiver, column string, match func(model.Message) bool) (int, error) {
	conversationID := model.ConversationID(sender, receiver)
	messages, err := scanMessages(s.session.Query(selectMessage, conversationID).WithContext(ctx).Iter())
	if err != nil {
		return 0, errors.Storage(err)
	}

	ids := matchingIDs(messages, sender, receiver, match)
	update := `UPDATE messages_by_conversation SET ` + column + ` = true WHERE conversation_id = ? AND id = ?`
	done := 0
	for _, chunk := range chunks(ids, maxBatch) {
		batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		for _, id := range chunk {
			batch.Query(update, conversationID, id)
		}
		if err := s.session.ExecuteBatch(batch); err != nil {
			return done, errors.Storage(err)
		}
		done += len(chunk)
	}
	if len(ids) > 0 {
		s.log.Debug("Bulk message update", "column", column, "sender", sender, "receiver", receiver, "changed", len(ids))
	}
	return len(ids), nil
}

// matchingIDs returns the ids of messages sent by sender to receiver that
// still satisfy match.
func matchingIDs(messages []model.Message, sender, receiver string, match func(model.Message) bool) []int64 {
	var ids []int64
	for _, m := range messages {
		if m.Sender == sender && m.Receiver == receiver && match(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func chunks(ids []int64, size int) [][]int64 {
	var out [][]int64
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

func scanMessages(iter *gocql.Iter) ([]model.Message, error) {
	messages := []model.Message{}
	var (
		m         model.Message
		createdAt time.Time
	)
	for iter.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Content, &createdAt, &m.Delivered, &m.IsRead) {
		m.CreatedAt = createdAt.UTC()
		messages = append(messages, m)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}
