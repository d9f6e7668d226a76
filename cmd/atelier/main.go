// Command atelier serves the beauty storefront: the live site view, the CMS
// API, checkout and booking, and the makeup consultant.
//
// Usage:
//
//	atelier -config atelier.yaml
//	atelier hash-password < password.txt
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ileri/atelier/analysis"
	"github.com/ileri/atelier/auth"
	"github.com/ileri/atelier/config"
	"github.com/ileri/atelier/dbopen"
	"github.com/ileri/atelier/docstore"
	"github.com/ileri/atelier/httpapi"
	"github.com/ileri/atelier/observability"
	"github.com/ileri/atelier/reconcile"
	"github.com/ileri/atelier/session"
	"github.com/ileri/atelier/shield"
	"github.com/ileri/atelier/snapshot"
	"github.com/ileri/atelier/watch"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", os.Getenv("ATELIER_CONFIG"), "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("atelier: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Observability DB: request log, business events, audit trail, shield
	// tables.
	dbOpts := []dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithBusyTimeout(cfg.Database.BusyTimeoutMS),
		dbopen.WithSynchronous(cfg.Database.Synchronous),
	}
	obsDB, err := dbopen.Open(cfg.ObsDB, append(dbOpts, dbopen.WithSchema(observability.Schema))...)
	if err != nil {
		return fmt.Errorf("observability db: %w", err)
	}
	defer obsDB.Close()
	if err := shield.Init(obsDB); err != nil {
		return fmt.Errorf("shield init: %w", err)
	}
	events := observability.NewEventLogger(obsDB)
	audit := observability.NewAuditLogger(obsDB, 256)
	defer audit.Close()
	metrics := observability.NewMetrics()

	// Auth and the process-wide session.
	local, err := auth.NewLocal(cfg.Auth.AdminUser, cfg.Auth.AdminPassHash, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	gate := session.NewGate(local, session.WithLogger(logger), session.WithEventLogger(events))

	// Document store and its change feed.
	storeDB, err := dbopen.Open(cfg.StoreDB, dbOpts...)
	if err != nil {
		return fmt.Errorf("store db: %w", err)
	}
	defer storeDB.Close()
	store, err := docstore.New(storeDB,
		docstore.WithAuthorizer(gate),
		docstore.WithLogger(logger),
		docstore.WithWatcher(watch.New(storeDB, watch.Options{Interval: cfg.Sync.PollInterval, Logger: logger})),
	)
	if err != nil {
		return err
	}
	defer store.Close()
	go store.Run(ctx)

	snaps, err := snapshot.Open(cfg.SnapshotDir, logger)
	if err != nil {
		return err
	}
	defer snaps.Close()

	// Reconciler, following the session.
	rec := reconcile.New(store,
		reconcile.WithLogger(logger),
		reconcile.WithSnapshots(snaps),
		reconcile.WithMetrics(metrics),
		reconcile.WithAudit(audit),
		reconcile.WithEventLogger(events),
		reconcile.WithRetryInterval(cfg.Sync.RetryInterval),
	)
	if err := rec.Start(ctx, reconcile.SessionContext{Authenticated: gate.Authorized()}); err != nil {
		return err
	}
	defer rec.Stop()
	unsubscribe := gate.Subscribe(func(s session.Status) { rec.SetAuthenticated(s.Authenticated) })
	defer unsubscribe()

	// Makeup consultant. Without an API key every report is the curated
	// fallback.
	var endpoint analysis.Endpoint
	if cfg.Analysis.APIKey != "" {
		ep, err := analysis.NewOpenAIEndpoint(analysis.OpenAIConfig{
			APIKey:  cfg.Analysis.APIKey,
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.Model,
		}, logger)
		if err != nil {
			return err
		}
		endpoint = ep
	} else {
		logger.Warn("atelier: no analysis API key, serving fallback reports")
	}
	pipeline := analysis.New(endpoint,
		analysis.WithLimiter(analysis.NewLimiter(cfg.Analysis.MinInterval)),
		analysis.WithTimeout(cfg.Analysis.Timeout),
		analysis.WithLogger(logger),
		analysis.WithMetrics(metrics),
	)

	stack, mm, rl := shield.DefaultStack(obsDB)
	go mm.Reload(ctx, 5*time.Second)
	go rl.Run(ctx, 30*time.Second)
	go cleanupLoop(ctx, obsDB, cfg.Retention)

	api := httpapi.New(httpapi.Deps{
		Reconciler:    rec,
		Gate:          gate,
		Auth:          local,
		Analysis:      pipeline,
		Visitors:      analysis.NewVisitors(pipeline, cfg.Analysis.Consultations, cfg.Analysis.ConsultationTTL),
		Feed:          store,
		Maintenance:   mm,
		Metrics:       metrics,
		Events:        events,
		Logger:        logger,
		Middleware:    stack,
		SecureCookie:  cfg.Auth.SecureCookie,
		MaxImageBytes: cfg.Analysis.MaxImageBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Analysis calls may take the whole remote timeout.
		WriteTimeout: cfg.Analysis.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("atelier: server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("atelier: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("atelier: shutdown", "error", err)
	}
	logger.Info("atelier: server stopped")
	return nil
}

// cleanupLoop applies the retention policy once at startup and then daily.
func cleanupLoop(ctx context.Context, db *sql.DB, r config.RetentionConfig) {
	retention := observability.RetentionConfig{
		HTTPLogsDays:  r.HTTPLogsDays,
		EventLogsDays: r.EventLogsDays,
		AuditLogsDays: r.AuditLogsDays,
	}
	tick := time.NewTicker(24 * time.Hour)
	defer tick.Stop()
	for {
		if err := observability.Cleanup(ctx, db, retention); err != nil {
			slog.Warn("atelier: retention cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// hashPassword reads one line from stdin and prints its bcrypt hash, for
// auth.admin_password_hash.
func hashPassword() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return errors.New("empty password")
	}
	h, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}
