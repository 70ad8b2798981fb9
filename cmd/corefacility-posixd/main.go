// Package main is the entry point for the corefacility posix daemon.
// The daemon runs as root, drains the privileged command queue written by
// the unprivileged server and applies confirmed requests to the operating
// system.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/serik1987/corefacility/internal/app"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/posix"
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
		Msg("starting corefacility posix daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repos, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	_, locker, closeCache, err := app.OpenCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeCache()

	runner := posix.NewExecRunner(logger)
	daemon := posix.NewDaemon(cfg.Posix, repos.PosixRequest, repos.AuditLog, runner, locker, logger)

	go func() {
		<-ctx.Done()
		daemon.Stop()
	}()
	daemon.Run(ctx)
	logger.Info().Msg("posix daemon stopped")
}
