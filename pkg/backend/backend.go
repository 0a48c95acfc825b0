// Package backend opens the configured message and user stores.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/store"
	"github.com/mahaj/dupahar-dm/pkg/store/badgerstore"
	"github.com/mahaj/dupahar-dm/pkg/store/cqlstore"
)

type Backend struct {
	Messages store.MessageStore
	Users    store.UserStore
	close    func() error
}

func Open(log *slog.Logger, cfg config.Config) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendBadger:
		bdb, err := db.OpenBadger(log, cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Messages: badgerstore.NewMessageStore(bdb, log),
			Users:    badgerstore.NewUserStore(bdb),
			close:    bdb.Close,
		}, nil

	case config.BackendScylla:
		session, err := db.NewSession(log, cfg.Scylla(), cfg.ScyllaKeyspace)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Messages: cqlstore.NewMessageStore(session, log),
			Users:    cqlstore.NewUserStore(session),
			close: func() error {
				session.Close()
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (b *Backend) Close() error {
	return b.close()
}
