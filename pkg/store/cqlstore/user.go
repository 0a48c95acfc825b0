package cqlstore

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gocql/gocql"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

type UserStore struct {
	session *db.Session
}

func NewUserStore(session *db.Session) *UserStore {
	return &UserStore{session: session}
}

var _ store.UserStore = (*UserStore)(nil)

func (s *UserStore) FindByID(ctx context.Context, id string) (model.User, error) {
	var (
		u        model.User
		lastSeen time.Time
	)
	err := s.session.Query(`SELECT id, username, is_online, last_seen FROM users WHERE id = ?`, id).
		WithContext(ctx).Scan(&u.ID, &u.Username, &u.IsOnline, &lastSeen)
	if stderrors.Is(err, gocql.ErrNotFound) {
		return model.User{}, errors.ErrNotFound
	}
	if err != nil {
		return model.User{}, errors.Storage(err)
	}
	u.LastSeen = lastSeen.UTC()
	return u, nil
}

// SetPresence only touches existing rows; an UPDATE on a missing key would
// otherwise create a user without a profile.
func (s *UserStore) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	err := s.session.Query(`UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?`, online, lastSeen, id).
		WithContext(ctx).Exec()
	return errors.Storage(err)
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	iter := s.session.Query(`SELECT id, username, is_online, last_seen FROM users`).WithContext(ctx).Iter()
	users := []model.User{}
	var (
		u        model.User
		lastSeen time.Time
	)
	for iter.Scan(&u.ID, &u.Username, &u.IsOnline, &lastSeen) {
		u.LastSeen = lastSeen.UTC()
		users = append(users, u)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Storage(err)
	}
	store.SortUsers(users)
	return users, nil
}

func (s *UserStore) Upsert(ctx context.Context, u model.User) error {
	err := s.session.Query(`INSERT INTO users (id, username, is_online, last_seen) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.IsOnline, u.LastSeen).WithContext(ctx).Exec()
	return errors.Storage(err)
}
