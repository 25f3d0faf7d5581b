package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/auth"
	"github.com/relayim/socialcore/internal/config"
	"github.com/relayim/socialcore/internal/db"
	"github.com/relayim/socialcore/internal/httpapi"
	"github.com/relayim/socialcore/internal/idgen"
	"github.com/relayim/socialcore/internal/sched"
	"github.com/relayim/socialcore/internal/service/friendrequest"
	"github.com/relayim/socialcore/internal/service/relationship"
	"github.com/relayim/socialcore/internal/service/relgroup"
	"github.com/relayim/socialcore/internal/service/userversion"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "socialcore").Logger()

	// Pretty logging for local dev
	if env("ENV", "dev") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Configuration: defaults, optional file, env overrides
	configPath := env("CONFIG_PATH", "")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	cfgManager := config.NewManager(cfg)
	if configPath != "" {
		if err := config.Watch(ctx, cfgManager, configPath); err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config watch unavailable")
		}
	}

	// Database connection
	pgURL := cfg.Server.DatabaseURL
	if pgURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	pool, err := db.Open(ctx, pgURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	// Service graph. The group and relationship services depend on each
	// other; the group service sees the relationship service through a
	// lazy provider resolved after both are built.
	versions := userversion.NewService(pool)
	var relationships *relationship.Service
	groups := relgroup.NewService(pool, versions,
		func() relgroup.RelationshipDeleter { return relationships },
		func() bool { return cfgManager.Current().Relationship.DeleteWhenRemovedFromAllGroups },
	)
	relationships = relationship.NewService(pool, groups)
	friendRequests := friendrequest.NewService(pool, cfgManager, idgen.New(), versions, relationships)

	// Cleanup cron, re-armed on config reload. Single-node deployments are
	// always leader; clustered ones gate on an external election.
	tasks := sched.NewManager()
	defer tasks.Stop()
	friendRequests.RegisterCleanupTask(tasks, func() bool { return true })

	blocker := httpapi.NewClientBlocker(cfg.AutoBlock)
	cfgManager.OnChange(func(c *config.Config) {
		blocker.Reconfigure(c.AutoBlock)
	})

	// HTTP server setup
	srv := &httpapi.Server{
		Cfg:            cfgManager,
		FriendRequests: friendRequests,
		Groups:         groups,
		Relationships:  relationships,
		Blocker:        blocker,
	}

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.Server.JWTSecret,
		DevMode:     cfg.Server.DevMode,
	}

	httpAddr := cfg.Server.HTTPAddr
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      srv.Routes(jwtCfg, cfg.Server.AdminToken),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", httpAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
