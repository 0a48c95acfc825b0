// Package badgerstore implements the message and user stores on an embedded
// BadgerDB, for single-node deployments and tests.
//
// Message keys are "msg:{conversation}:{id zero padded to 19 digits}" so a
// reverse prefix scan yields a conversation newest first. Snowflake ids grow
// with createdAt, so key order is conversation order.
package badgerstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/mahaj/dupahar-dm/pkg/errors"
)

const maxConflictRetries = 8

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction touched the same keys.
func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d conflicts: %w", maxConflictRetries, err)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// wrap classifies err for callers: context and not-found errors pass
// through, anything else is a storage failure.
func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.IsNotFound(err), stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.Storage(err)
	}
}
