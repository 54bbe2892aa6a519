package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gitevents/internal"
	"gitevents/pkg/api"
	"gitevents/pkg/events"
	"gitevents/pkg/webhook"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := internal.NewLogger("server")
	defer func() { _ = logger.Sync() }()

	config, err := internal.LoadConfig(configPath)
	if err != nil {
		logger.Errorw("load config failed", "path", configPath, "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, config.Storage)
	if err != nil {
		logger.Errorw("open store failed", "driver", config.Storage.Driver, "error", err)
		return err
	}
	defer store.Close()

	ruleEngine, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules:  config.Rules,
		Strict: config.RulesStrict,
		Logger: internal.NewLogger("rules"),
	})
	if err != nil {
		logger.Errorw("compile rules failed", "error", err)
		return err
	}

	var publisher internal.Publisher
	if len(config.Rules) > 0 {
		publisher, err = internal.NewPublisher(config.Watermill)
		if err != nil {
			logger.Errorw("publisher init failed", "error", err)
			return err
		}
		defer publisher.Close()
	}

	receiver := webhook.NewGitHubHandler(
		events.NewIngestor(store),
		ruleEngine,
		publisher,
		internal.NewLogger("github"),
		config.Server.MaxBodyBytes,
		config.Server.DebugEvents,
	)

	mux := http.NewServeMux()
	mux.Handle(config.Receiver.WebhookPath, internal.NewRateLimitHandler(receiver, config.Server.RateLimitRPS, config.Server.RateLimitBurst))
	mux.Handle(config.Receiver.EventsPath, &api.EventsHandler{
		Reader: events.NewReader(store),
		Logger: logger,
	})
	mux.Handle(config.Receiver.HomePath, &api.HomeHandler{
		EventsPath: config.Receiver.EventsPath,
		Logger:     logger,
	})
	mux.Handle("/healthz", &api.HealthHandler{Store: store})
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, internal.MetricsHandler())
		logger.Infow("metrics enabled", "path", config.Server.MetricsPath)
	}
	logger.Infow("github webhook enabled", "path", config.Receiver.WebhookPath)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Errorw("listen failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("shutdown failed", "error", err)
	}
	logger.Infow("server stopped", "pid", os.Getpid())
	return nil
}
