// mowerd keeps a live session against the Husqvarna Automower Connect
// cloud and exposes the mower fleet over a local HTTP API and an MQTT
// bridge for Home Assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trymwestin/mowerd/internal/config"
	"github.com/trymwestin/mowerd/internal/core/auth"
	"github.com/trymwestin/mowerd/internal/core/mower"
	"github.com/trymwestin/mowerd/internal/core/rest"
	"github.com/trymwestin/mowerd/internal/core/session"
	"github.com/trymwestin/mowerd/internal/core/transport"
	"github.com/trymwestin/mowerd/internal/httpapi"
	"github.com/trymwestin/mowerd/internal/mqtt"
)

func main() {
	configPath := flag.String("config", "mowerd.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := auth.NewManager(cfg.Auth.TokenURL, cfg.Auth.ClientID, cfg.Auth.ClientSecret, logger)

	api := rest.NewClient(cfg.API.BaseURL, tokens, tokens.ClientID(), logger)
	dialer := transport.NewCloudDialer(cfg.API.WSURL, logger)
	store := mower.NewStore(logger)

	opts := []session.Option{}
	if cfg.Session.RestPollInterval() > 0 {
		opts = append(opts, session.WithRestPolling(cfg.Session.RestPollInterval()))
	}
	if cfg.Session.BackoffMax() > 0 {
		opts = append(opts, session.WithBackoff(time.Second, cfg.Session.BackoffMax()))
	}
	coord := session.NewCoordinator(tokens, api, dialer, store, logger, opts...)

	if err := coord.Start(ctx); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	defer coord.Close()

	var publisher mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher = mqtt.NewBridge(cfg.MQTT, coord, logger)
	} else {
		publisher = mqtt.NewStubPublisher(logger)
	}
	if err := publisher.Start(ctx); err != nil {
		logger.Error("failed to start mqtt bridge", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewServer(coord, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		g.Go(func() error {
			logger.Info("http api listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := publisher.Stop(stopCtx); err != nil {
			logger.Warn("mqtt bridge stop failed", "error", err)
		}
		return coord.Close()
	})

	logger.Info("mowerd started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("terminated with error", "error", err)
		os.Exit(1)
	}
	logger.Info("mowerd stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
