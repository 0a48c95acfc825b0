package cqlstore

import (
	"fmt"

	"github.com/mahaj/dupahar-dm/pkg/db"
)

// CreateKeyspace must run on a session opened without a keyspace.
func CreateKeyspace(session *db.Session, keyspace string, replicationFactor int) error {
	query := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : %d }`,
		keyspace, replicationFactor)
	if err := session.Query(query).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}
	return nil
}

var tables = []struct {
	name string
	ddl  string
}{
	{"messages_by_conversation", `CREATE TABLE IF NOT EXISTS messages_by_conversation (
		conversation_id text,
		id bigint,
		sender text,
		receiver text,
		content text,
		created_at timestamp,
		delivered boolean,
		is_read boolean,
		PRIMARY KEY (conversation_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`},
	{"users", `CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		username text,
		is_online boolean,
		last_seen timestamp
	)`},
}

// CreateTables runs on a session bound to the chat keyspace.
func CreateTables(session *db.Session) error {
	for _, table := range tables {
		if err := session.Query(table.ddl).Exec(); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}
	return nil
}

// DropTables removes every table created by CreateTables.
func DropTables(session *db.Session) error {
	for _, table := range tables {
		if err := session.Query("DROP TABLE IF EXISTS " + table.name).Exec(); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table.name, err)
		}
	}
	return nil
}
