package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mahaj/dupahar-dm/pkg/backend"
	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
	"github.com/mahaj/dupahar-dm/pkg/store/cqlstore"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	drop := flag.Bool("drop", false, "drop the chat tables before creating them (scylla only)")
	seed := flag.String("seed", "", "comma separated user ids to create, e.g. alice,bob")
	replication := flag.Int("replication-factor", 1, "keyspace replication factor (scylla only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	if cfg.StoreBackend == config.BackendScylla {
		if err := migrateScylla(log, cfg, *replication, *drop); err != nil {
			return err
		}
	}

	ids := splitIDs(*seed)
	if len(ids) == 0 {
		return nil
	}

	stores, err := backend.Open(log, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()
	return seedUsers(context.Background(), log, stores.Users, ids)
}

func migrateScylla(log *slog.Logger, cfg config.Config, replication int, drop bool) error {
	// Keyspace creation needs a session without a keyspace.
	sysSession, err := db.NewSession(log, cfg.Scylla(), "")
	if err != nil {
		return err
	}
	err = cqlstore.CreateKeyspace(sysSession, cfg.ScyllaKeyspace, replication)
	sysSession.Close()
	if err != nil {
		return err
	}

	session, err := db.NewSession(log, cfg.Scylla(), cfg.ScyllaKeyspace)
	if err != nil {
		return err
	}
	defer session.Close()

	if drop {
		if err := cqlstore.DropTables(session); err != nil {
			return err
		}
		log.Info("Tables dropped", "keyspace", cfg.ScyllaKeyspace)
	}
	if err := cqlstore.CreateTables(session); err != nil {
		return err
	}
	log.Info("Schema ready", "keyspace", cfg.ScyllaKeyspace)
	return nil
}

// seedUsers creates missing users offline. Existing users are left alone.
func seedUsers(ctx context.Context, log *slog.Logger, users store.UserStore, ids []string) error {
	for _, id := range ids {
		if _, err := users.FindByID(ctx, id); err == nil {
			log.Info("User already exists", "user", id)
			continue
		}
		if err := users.Upsert(ctx, model.User{ID: id, Username: id}); err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
		log.Info("User created", "user", id)
	}
	return nil
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
