package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/repository"
)

// SweeperService runs periodic maintenance: expired tokens, sessions and
// activation codes drop, the queue depth gauge refreshes and the
// administrators are alerted about pending privileged requests. A shared
// lock keeps one sweeper active across instances.
type SweeperService struct {
	tokens   repository.TokenRepository
	sessions repository.SessionRepository
	users    repository.UserRepository
	queue    *QueueService
	locker   lock.Locker
	cfg      config.SweeperConfig
	logger   zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewSweeperService creates a sweeper.
func NewSweeperService(tokens repository.TokenRepository, sessions repository.SessionRepository,
	users repository.UserRepository, queue *QueueService, locker lock.Locker,
	cfg config.SweeperConfig, logger zerolog.Logger) *SweeperService {
	return &SweeperService{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		queue:    queue,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.With().Str("service", "sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the maintenance loop in a goroutine.
func (s *SweeperService) Start(ctx context.Context) {
	go s.runLoop(ctx)
}

// Stop terminates the loop and waits for the current pass to finish.
func (s *SweeperService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *SweeperService) runLoop(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("sweeper started")
	for {
		select {
		case <-s.stop:
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("maintenance pass failed")
			}
		}
	}
}

// RunOnce performs one maintenance pass. The pass is skipped silently when
// another instance holds the sweeper lock.
func (s *SweeperService) RunOnce(ctx context.Context) error {
	key := lock.Keys.Sweeper()
	ttl := s.cfg.Interval
	if ttl < time.Minute {
		ttl = time.Minute
	}
	acquired, err := s.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer s.locker.Release(ctx, key)

	now := time.Now().UTC()
	if n, err := s.tokens.DeleteExpired(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to drop expired tokens")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("expired tokens dropped")
	}
	if n, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to drop expired sessions")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("expired sessions dropped")
	}
	if n, err := s.users.ClearExpiredActivationCodes(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear expired activation codes")
	} else if n > 0 {
		s.logger.Info().Int64("count", n).Msg("expired activation codes cleared")
	}

	if s.queue != nil {
		if err := s.queue.RefreshDepth(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to refresh queue depth")
		}
		if err := s.queue.AlertPending(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to alert pending requests")
		}
	}
	return nil
}
