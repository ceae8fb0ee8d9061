// Package main is the entry point for the notification gateway.
//
// It wires the full pipeline: config, audit database, envelope crypto,
// Graph clients, the token and subscription lifecycle loops, the plugin
// registry, and the HTTP listener. Shutdown is graceful on SIGINT and
// SIGTERM; SIGHUP reloads the plugin rule documents in place.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Network-Direction/chatbot/internal/classify"
	"github.com/Network-Direction/chatbot/internal/config"
	"github.com/Network-Direction/chatbot/internal/core"
	"github.com/Network-Direction/chatbot/internal/db"
	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/envelope"
	"github.com/Network-Direction/chatbot/internal/graph"
	"github.com/Network-Direction/chatbot/internal/junos"
	"github.com/Network-Direction/chatbot/internal/lifecycle"
	"github.com/Network-Direction/chatbot/internal/mist"
	"github.com/Network-Direction/chatbot/internal/teams"
	"github.com/Network-Direction/chatbot/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("notification gateway starting",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := types.RealClock{}

	// Audit store.
	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting to audit database: %w", err)
	}
	defer pool.Close()
	auditStore := db.NewAuditRepo(pool)

	// Envelope crypto for the encrypted chat feed.
	engine, err := envelope.Load(cfg.Subscription.PrivateKeyFile)
	if err != nil {
		return fmt.Errorf("loading envelope private key: %w", err)
	}

	// Graph clients share one resilient HTTP client.
	client := graph.NewClient(
		&http.Client{Timeout: 30 * time.Second},
		"graph",
		graph.DefaultRetryPolicy(),
		cfg.Graph.UserAgent,
	)
	oauth := graph.NewOAuthClient(client, graph.OAuthConfig{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		RedirectURI:  cfg.Graph.RedirectURI,
		Scopes:       cfg.Graph.Scopes,
		BaseURL:      cfg.Graph.LoginBaseURL,
	}, clock)

	tokens := lifecycle.NewTokenManager(oauth, lifecycle.NewFileStore(cfg.Graph.TokenFile), clock, nil, logger)
	if err := tokens.Recover(); err != nil {
		return fmt.Errorf("recovering persisted credential: %w", err)
	}

	chat := graph.NewChatClient(client, tokens, cfg.Graph.APIBaseURL, cfg.Graph.ChatID, cfg.Graph.AlertChatID)
	tokens.SetAlerter(chat)

	resource := fmt.Sprintf("/chats/%s/messages", cfg.Graph.ChatID)
	subs := lifecycle.NewSubscriptionManager(
		graph.NewSubscriptionClient(client, tokens, cfg.Graph.APIBaseURL),
		lifecycle.SubscriptionConfig{
			Resource:                resource,
			NotificationURL:         cfg.Subscription.NotificationURL,
			ClientState:             cfg.Subscription.ClientState,
			EncryptionCertificate:   cfg.Subscription.EncryptionCertificate,
			EncryptionCertificateID: cfg.Subscription.EncryptionCertificateID,
		},
		clock, chat, logger,
	)

	// Plugin registry.
	registry := dispatch.NewRegistry(logger)
	registry.Register("chat", teams.NewHandler(engine, chat, cfg.Graph.BotName, logger))

	var stores []*classify.RuleStore
	mistRules, err := classify.NewRuleStore(cfg.Plugins.MistRules, logger)
	if err != nil {
		return fmt.Errorf("loading mist rules: %w", err)
	}
	stores = append(stores, mistRules)
	registry.Register("mist", mist.NewHandler(mistRules, chat, auditStore, clock, logger))

	if cfg.Plugins.JunosRules != "" {
		junosRules, err := classify.NewRuleStore(cfg.Plugins.JunosRules, logger)
		if err != nil {
			return fmt.Errorf("loading junos rules: %w", err)
		}
		stores = append(stores, junosRules)
		registry.Register("junos", junos.NewHandler(junosRules, chat, auditStore, clock, logger))
	}
	logger.Info("webhook routes registered",
		slog.String("routes", strings.Join(registry.Routes(), ", ")))

	srv, err := core.NewServer(cfg, registry, tokens, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := tokens.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := subs.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		reloadRulesOnHangup(gctx, stores, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

// reloadRulesOnHangup re-reads every plugin rule document when the
// process receives SIGHUP. A document that fails to parse keeps its
// previous rules.
func reloadRulesOnHangup(ctx context.Context, stores []*classify.RuleStore, logger *slog.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			logger.Info("SIGHUP received, reloading rule documents")
			for _, store := range stores {
				_ = store.Reload()
			}
		}
	}
}

// newLogger builds the process-wide JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
