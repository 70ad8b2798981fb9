// Package main is the entry point for the corefacility server.
// Corefacility is a collaboration server for scientific facilities: it
// manages platform accounts, scientific groups and projects, mirrors them
// into operating-system accounts and serves the laboratory journal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/serik1987/corefacility/internal/app"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/handler"
	"github.com/serik1987/corefacility/internal/mail"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/provider"
	"github.com/serik1987/corefacility/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting corefacility server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repos, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := repos.AccessLevel.Seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed access levels")
	}
	if err := app.EnsureSupportAccount(ctx, repos.User, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap the support account")
	}

	cache, locker, closeCache, err := app.OpenCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeCache()

	media, err := app.OpenMediaStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open media store")
	}

	runner := posix.NewExecRunner(logger)
	posixClient := posix.NewClient(cfg.Posix, repos.PosixRequest, runner, logger)
	registry := provider.NewRegistry(cfg, repos, db, media, posixClient)

	templates := mail.NewTemplateStore(cfg.Mail.TemplateDir, cfg.Mail.DefaultLocale)
	mailer := mail.NewMailer(cfg.Mail, logger)
	notifier := mail.NewNotifier(cfg.Mail, templates, mailer, logger)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	users := service.NewUserService(registry, repos.User, repos.Token, notifier, cfg.Auth, logger)
	groups := service.NewGroupService(registry, repos.Group, repos.User, logger)
	projects := service.NewProjectService(registry, repos.Project, repos.Group, repos.Record, logger)
	tokens := service.NewTokenService(repos.Token, repos.User, cfg.Auth, m, logger)
	access := service.NewAccessService(repos.Permission, repos.Group, posixClient, cfg.Posix, locker, m, logger)
	journalSvc := service.NewJournalService(repos.Record, repos.Descriptor, repos.Hashtag, cache, locker, cfg.Journal, m, logger)
	queue := service.NewQueueService(repos.PosixRequest, notifier, m, logger)
	audit := service.NewAuditService(repos.AuditLog, cfg.Audit, m, logger)
	sweeper := service.NewSweeperService(repos.Token, repos.Session, repos.User, queue, locker, cfg.Sweeper, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:          handler.NewAuthHandler(users, tokens, cfg.Auth, logger),
		Users:         handler.NewUserHandler(users, logger),
		Groups:        handler.NewGroupHandler(groups, logger),
		Projects:      handler.NewProjectHandler(projects, access, logger),
		Journal:       handler.NewJournalHandler(journalSvc, projects, access, logger),
		Admin:         handler.NewAdminHandler(queue, audit, logger),
		Authenticator: tokens,
		Refresher:     tokens,
		AuthConfig:    cfg.Auth,
		Audit:         audit,
		AuditConfig:   cfg.Audit,
		Metrics:       m,
		Logger:        logger,
		HealthCheck:   db.Ping,
	})

	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
