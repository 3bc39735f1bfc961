package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the entry point for the ESP32 relay server.
// It loads configuration, wires the store to the HTTP API and the live-update
// hub, optionally starts the Redis relay, and serves until SIGINT/SIGTERM.
func main() {
	conf, err := loadConfig()
	if err != nil {
		log.Fatal("unable to build configuration: ", err)
	}

	logger, err := newLogger(conf.Debug)
	if err != nil {
		log.Fatal("error building zap logger: ", err)
	}
	defer logger.Sync()

	// Root context, cancelled on shutdown signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := NewStore(logger)
	hub := NewHub(logger, store.Get)
	go hub.Run(ctx)

	var publisher readingPublisher = hub
	if conf.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			DB:       conf.RedisDB,
			Protocol: 2,
		})
		defer rdb.Close()

		relay := NewRedisRelay(rdb, conf.RedisChannel, hub, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Fatal("unable to start redis relay", zap.Error(err))
		}
		publisher = relay
	}

	srv := &http.Server{
		Addr:              conf.ListenAddr(),
		Handler:           newServer(store, publisher, logger).routes(hub, conf.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("static_dir", conf.StaticDir),
			zap.Bool("redis", conf.RedisEnabled()),
			zap.Bool("debug", conf.Debug),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}
