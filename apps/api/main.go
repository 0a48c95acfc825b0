package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/auth"
	"github.com/mahaj/dupahar-dm/pkg/backend"
	"github.com/mahaj/dupahar-dm/pkg/chat"
	"github.com/mahaj/dupahar-dm/pkg/config"
	"github.com/mahaj/dupahar-dm/pkg/conversation"
	"github.com/mahaj/dupahar-dm/pkg/db"
	"github.com/mahaj/dupahar-dm/pkg/fanout"
	"github.com/mahaj/dupahar-dm/pkg/httpapi"
	"github.com/mahaj/dupahar-dm/pkg/presence"
	"github.com/mahaj/dupahar-dm/pkg/router"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := backend.Open(log, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	var online httpapi.OnlineLister
	if cfg.RedisAddr != "" {
		rdb, err := db.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		online = presence.NewRedisMirror(rdb)
	}

	// Holds no connections; read receipts reach the gateways through Kafka.
	r := router.New(log, nil)
	if brokers := cfg.Kafka(); len(brokers) > 0 {
		publisher := fanout.NewKafkaPublisher(log, brokers, cfg.KafkaTopic)
		defer func() { _ = publisher.Close() }()
		r.WithRelay(publisher)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.TokenDuration, stores.Users)
	api := httpapi.NewServer(log, verifier, verifier, stores.Users,
		conversation.NewPager(log, stores.Messages, cfg.MaxPageSize),
		conversation.NewContacts(log, stores.Users, stores.Messages),
		chat.NewReconciler(log, stores.Messages, r),
		online)

	server := &http.Server{Addr: cfg.APIAddr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errChan := make(chan error, 1)
	go func() {
		log.Info("API Service Starting", "address", cfg.APIAddr, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
