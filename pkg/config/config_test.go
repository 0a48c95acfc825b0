package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(BackendBadger, cfg.StoreBackend)
	req.Equal(24*time.Hour, cfg.TokenDuration)
	req.Equal([]string{"k1:9092", "k2:9092"}, cfg.Kafka())
	req.Equal([]string{"localhost:9042"}, cfg.Scylla())
	req.Empty(cfg.RedisAddr)
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	req := require.New(t)
	cfg := Config{StoreBackend: "mongo", SendBufferSize: 1, MaxPageSize: 1}
	req.Error(cfg.Validate())
}
