package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineKey   = "presence:online"
	lastSeenKey = "presence:last_seen"
)

// RedisMirror keeps the set of online users in Redis so any instance can
// answer "who is online" without scanning the user store.
type RedisMirror struct {
	rdb *redis.Client
}

func NewRedisMirror(rdb *redis.Client) *RedisMirror {
	return &RedisMirror{rdb: rdb}
}

func (m *RedisMirror) SetOnline(ctx context.Context, identity string, lastSeen time.Time) error {
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, onlineKey, identity)
		pipe.HSet(ctx, lastSeenKey, identity, lastSeen.UTC().Format(time.RFC3339Nano))
		return nil
	})
	return err
}

func (m *RedisMirror) SetOffline(ctx context.Context, identity string, lastSeen time.Time) error {
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, onlineKey, identity)
		pipe.HSet(ctx, lastSeenKey, identity, lastSeen.UTC().Format(time.RFC3339Nano))
		return nil
	})
	return err
}

// OnlineUsers lists identities currently marked online.
func (m *RedisMirror) OnlineUsers(ctx context.Context) ([]string, error) {
	return m.rdb.SMembers(ctx, onlineKey).Result()
}
