package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

var _ store.MessageStore = (*MessageStore)(nil)

type diskMessage struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Delivered bool      `json:"delivered"`
	IsRead    bool      `json:"is_read"`
}

func conversationPrefix(a, b string) []byte {
	return []byte(model.ConversationID(a, b) + ":")
}

func messageKey(m model.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", model.ConversationID(m.Sender, m.Receiver), m.ID))
}

func messagePrefix(a, b string) []byte {
	return append([]byte("msg:"), conversationPrefix(a, b)...)
}

func (s *MessageStore) Create(ctx context.Context, message model.Message) (model.Message, error) {
	err := update(ctx, s.db, func(txn *badger.Txn) error {
		return setJSON(txn, messageKey(message), fromMessage(message))
	})
	if err != nil {
		return model.Message{}, wrap(err)
	}
	return message, nil
}

func (s *MessageStore) Conversation(ctx context.Context, a, b string, skip, limit int) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	messages := []model.Message{}
	prefix := messagePrefix(a, b)
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the largest possible id, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		seen := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var dm diskMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				return err
			}
			m := toMessage(dm)
			// skip and limit count only rows of this exact pair
			if !m.Between(a, b) {
				continue
			}
			if seen < skip {
				seen++
				continue
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return messages, nil
}

func (s *MessageStore) Latest(ctx context.Context, a, b string) (*model.Message, error) {
	messages, err := s.Conversation(ctx, a, b, 0, 1)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

func (s *MessageStore) MarkRead(ctx context.Context, sender, receiver string) (int, error) {
	return s.markWhere(ctx, sender, receiver,
		func(dm diskMessage) bool { return !dm.IsRead },
		func(dm *diskMessage) { dm.IsRead = true },
	)
}

func (s *MessageStore) MarkDelivered(ctx context.Context, sender, receiver string) (int, error) {
	return s.markWhere(ctx, sender, receiver,
		func(dm diskMessage) bool { return !dm.Delivered },
		func(dm *diskMessage) { dm.Delivered = true },
	)
}

// markWhere rewrites every message from sender to receiver that matches.
// Keys read inside the transaction take part in conflict detection, so two
// concurrent calls never both count the same message.
func (s *MessageStore) markWhere(ctx context.Context, sender, receiver string,
	match func(diskMessage) bool, apply func(*diskMessage)) (int, error) {
	var changed int
	err := update(ctx, s.db, func(txn *badger.Txn) error {
		changed = 0
		type pending struct {
			key []byte
			dm  diskMessage
		}
		var todo []pending

		prefix := messagePrefix(sender, receiver)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dm diskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				it.Close()
				return err
			}
			if dm.Sender != sender || dm.Receiver != receiver || !match(dm) {
				continue
			}
			todo = append(todo, pending{key: item.KeyCopy(nil), dm: dm})
		}
		it.Close()

		for _, p := range todo {
			apply(&p.dm)
			if err := setJSON(txn, p.key, p.dm); err != nil {
				return err
			}
		}
		changed = len(todo)
		return nil
	})
	if err != nil {
		return 0, wrap(err)
	}
	if changed > 0 {
		s.log.Debug("Bulk message update", "sender", sender, "receiver", receiver, "changed", changed)
	}
	return changed, nil
}

func fromMessage(m model.Message) diskMessage {
	return diskMessage{
		ID:        m.ID,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Delivered: m.Delivered,
		IsRead:    m.IsRead,
	}
}

func toMessage(dm diskMessage) model.Message {
	return model.Message{
		ID:        dm.ID,
		Sender:    dm.Sender,
		Receiver:  dm.Receiver,
		Content:   dm.Content,
		CreatedAt: dm.CreatedAt.UTC(),
		Delivered: dm.Delivered,
		IsRead:    dm.IsRead,
	}
}
