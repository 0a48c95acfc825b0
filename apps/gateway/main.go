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
	"github.com/mahaj/dupahar-dm/pkg/gateway"
	"github.com/mahaj/dupahar-dm/pkg/httpapi"
	"github.com/mahaj/dupahar-dm/pkg/presence"
	"github.com/mahaj/dupahar-dm/pkg/router"
	"github.com/mahaj/dupahar-dm/pkg/snowflake"
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
	defer func() {
		log.Info("Closing message store...")
		_ = stores.Close()
	}()

	var (
		mirror presence.Mirror
		online httpapi.OnlineLister
	)
	if cfg.RedisAddr != "" {
		rdb, err := db.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		redisMirror := presence.NewRedisMirror(rdb)
		mirror, online = redisMirror, redisMirror
	}

	r := router.New(log, presence.NewTracker(log, stores.Users, mirror))

	if brokers := cfg.Kafka(); len(brokers) > 0 {
		relay := fanout.NewKafkaRelay(log, brokers, cfg.KafkaTopic)
		defer func() { _ = relay.Close() }()
		r.WithRelay(relay)
		go func() {
			if err := relay.Run(ctx, r); err != nil {
				log.Error("Kafka relay stopped", "error", err)
			}
		}()
		log.Info("Cross-gateway fan-out enabled", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("failed to initialize snowflake node: %w", err)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.TokenDuration, stores.Users)
	reconciler := chat.NewReconciler(log, stores.Messages, r)
	ws := gateway.NewHandler(log, verifier, r,
		chat.NewPipeline(log, stores.Messages, stores.Users, r, ids),
		reconciler,
		chat.NewTypingRelay(log, r),
		gateway.Options{SendBufferSize: cfg.SendBufferSize, MaxFrameSize: cfg.MaxFrameSize})

	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	if cfg.ServeAPI {
		httpapi.NewServer(log, verifier, verifier, stores.Users,
			conversation.NewPager(log, stores.Messages, cfg.MaxPageSize),
			conversation.NewContacts(log, stores.Users, stores.Messages),
			reconciler, online).Register(mux)
	}

	server := &http.Server{Addr: cfg.GatewayAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Gateway Service Starting", "address", cfg.GatewayAddr, "api", cfg.ServeAPI, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("gateway server error: %w", err)
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
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
