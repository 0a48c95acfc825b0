package badgerstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

var userPrefix = []byte("user:")

type UserStore struct {
	db *badger.DB
}

func NewUserStore(db *badger.DB) *UserStore {
	return &UserStore{db: db}
}

var _ store.UserStore = (*UserStore)(nil)

type diskUser struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

func userKey(id string) []byte {
	return append(append([]byte{}, userPrefix...), id...)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	var du diskUser
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &du)
	})
	if err != nil {
		return model.User{}, wrap(err)
	}
	return toUser(du), nil
}

func (s *UserStore) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	return wrap(update(ctx, s.db, func(txn *badger.Txn) error {
		var du diskUser
		if err := getJSON(txn, userKey(id), &du); err != nil {
			return err
		}
		du.IsOnline = online
		du.LastSeen = lastSeen.UTC()
		return setJSON(txn, userKey(id), du)
	}))
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users := []model.User{}
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = userPrefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(userPrefix); it.ValidForPrefix(userPrefix); it.Next() {
			var du diskUser
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &du)
			}); err != nil {
				return err
			}
			users = append(users, toUser(du))
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	store.SortUsers(users)
	return users, nil
}

func (s *UserStore) Upsert(ctx context.Context, user model.User) error {
	return wrap(update(ctx, s.db, func(txn *badger.Txn) error {
		return setJSON(txn, userKey(user.ID), fromUser(user))
	}))
}

func fromUser(u model.User) diskUser {
	return diskUser{ID: u.ID, Username: u.Username, IsOnline: u.IsOnline, LastSeen: u.LastSeen.UTC()}
}

func toUser(du diskUser) model.User {
	return model.User{ID: du.ID, Username: du.Username, IsOnline: du.IsOnline, LastSeen: du.LastSeen.UTC()}
}
