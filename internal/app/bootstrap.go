// Package app holds the bootstrap code shared by the server, the queue
// daemon and the admin CLI.
package app

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/cache/memory"
	"github.com/serik1987/corefacility/internal/cache/redis"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/repository"
	"github.com/serik1987/corefacility/internal/repository/postgres"
	"github.com/serik1987/corefacility/internal/repository/sqlite"
	"github.com/serik1987/corefacility/internal/storage"
)

// NewLogger builds the process logger from the logging configuration.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}
	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// OpenDatabase opens the primary SQLite datastore, runs migrations and
// bundles the repositories. When PostgreSQL is configured the append-heavy
// audit log moves there.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sqlite.DB, *repository.Repositories, error) {
	db, err := sqlite.NewDB(ctx, sqlite.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		JournalMode:     cfg.Database.JournalMode,
		BusyTimeout:     cfg.Database.BusyTimeout,
		CacheSize:       cfg.Database.CacheSize,
		SynchronousMode: cfg.Database.SynchronousMode,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	repos := sqlite.NewRepositories(db)
	if cfg.Database.Driver == "postgres" {
		pg, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		repos.AuditLog = postgres.NewAuditLogRepository(pg)
	}
	return db, repos, nil
}

// OpenCache builds the cache and the locker: Redis-backed when enabled,
// in-memory otherwise. The returned closer releases the Redis connection.
func OpenCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Cache, lock.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		return memory.NewCache(), lock.NewMemoryLocker(), func() {}, nil
	}
	c, err := redis.NewCache(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return c, lock.NewRedisLocker(c.Client()), func() { _ = c.Close() }, nil
}

// OpenMediaStore builds the public file store per the media configuration.
func OpenMediaStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.MediaStore, error) {
	if cfg.Media.Backend == "s3" {
		return storage.NewS3Store(ctx, cfg.Media, logger)
	}
	return storage.NewFilesystemStore(cfg.Media, logger)
}
