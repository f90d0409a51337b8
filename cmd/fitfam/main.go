package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/fitfam"
	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/config"
	"github.com/claude/fitfam/internal/server"
	"github.com/claude/fitfam/internal/session"
	"github.com/claude/fitfam/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("FitFam starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Session storage
	repo, err := openSessionRepo(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open session store", "store", cfg.Session.Store, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	api := backend.NewHTTPClient(backend.Options{
		BaseURL:  cfg.Backend.BaseURL,
		APIKey:   cfg.Backend.APIKey,
		ClientID: cfg.Backend.ClientID,
		Timeout:  cfg.Backend.Timeout,
	})

	sessions := session.NewManager(repo, api, cfg.Session.MaxAge, log)
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	web, err := fs.Sub(fitfam.WebFS, "web")
	if err != nil {
		log.Error("failed to load embedded web assets", "error", err)
		os.Exit(1)
	}
	srv, err := server.New(sessions, api, web, server.Options{
		CookieName:     cfg.Session.CookieName,
		SecureCookies:  cfg.Server.SecureCookies,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Listen on tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "session_store", cfg.Session.Store)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// openSessionRepo opens the configured session store, applying migrations
// first when it is Postgres.
func openSessionRepo(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Repo, error) {
	switch cfg.Session.Store {
	case config.StorePostgres:
		dsn := cfg.Database.DSN()
		version, err := storage.RunMigrations(dsn, cfg.Database.MigrationsPath)
		if err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations applied", "version", version)
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected")
		return db, nil
	case config.StoreSQLite:
		s, err := storage.OpenSQLite(cfg.Session.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite session store opened", "path", cfg.Session.SQLitePath)
		return s, nil
	default:
		log.Warn("sessions are kept in memory and will not survive a restart")
		return session.NewMemoryRepo(), nil
	}
}
