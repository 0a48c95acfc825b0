package db

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the embedded store at path.
func OpenBadger(log *slog.Logger, path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	log.Info("Opened BadgerDB", "path", path)
	return db, nil
}

// OpenBadgerInMemory is used by tests and throwaway nodes.
func OpenBadgerInMemory() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}
