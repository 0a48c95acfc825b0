package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	BackendBadger = "badger"
	BackendScylla = "scylla"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	GatewayAddr string `env:"GATEWAY_ADDR,default=:8080"`
	APIAddr     string `env:"API_ADDR,default=:8081"`
	ServeAPI    bool   `env:"SERVE_API,default=true"`

	JWTSecret     string        `env:"JWT_SECRET,required=true"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,default=24h"`

	StoreBackend   string `env:"STORE_BACKEND,default=badger"`
	BadgerPath     string `env:"BADGER_PATH,default=./data/badger"`
	ScyllaHosts    string `env:"SCYLLA_HOSTS,default=localhost:9042"`
	ScyllaKeyspace string `env:"SCYLLA_KEYSPACE,default=chat"`

	// Empty disables the Redis presence mirror.
	RedisAddr string `env:"REDIS_ADDR"`
	// Empty disables cross-gateway fan-out.
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=chat-events"`

	NodeID         int64 `env:"NODE_ID,default=1"`
	SendBufferSize int   `env:"SEND_BUFFER_SIZE,default=256"`
	MaxFrameSize   int64 `env:"MAX_FRAME_SIZE,default=8192"`
	MaxPageSize    int   `env:"MAX_PAGE_SIZE,default=100"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendBadger, BackendScylla:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendBadger, BackendScylla, c.StoreBackend)
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", c.SendBufferSize)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("MAX_PAGE_SIZE must be positive, got %d", c.MaxPageSize)
	}
	return nil
}

func (c Config) Scylla() []string { return splitList(c.ScyllaHosts) }

func (c Config) Kafka() []string { return splitList(c.KafkaBrokers) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
