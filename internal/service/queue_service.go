package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/mail"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/repository"
)

// statusBands enumerates the queue bands the depth gauge tracks.
var statusBands = []domain.PosixRequestStatus{
	domain.PosixInitialized,
	domain.PosixAnalyzed,
	domain.PosixConfirmed,
	domain.PosixExecuted,
	domain.PosixFailed,
}

// QueueService is the administrative face of the privileged command queue:
// listing queued requests, confirming analyzed ones for execution and
// purging the rest. The daemon itself runs elsewhere.
type QueueService struct {
	queue    repository.PosixRequestRepository
	notifier *mail.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	alerted map[int64]struct{}
}

// NewQueueService creates a queue service.
func NewQueueService(queue repository.PosixRequestRepository, notifier *mail.Notifier,
	m *metrics.Metrics, logger zerolog.Logger) *QueueService {
	return &QueueService{
		queue:    queue,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("service", "queue").Logger(),
		alerted:  make(map[int64]struct{}),
	}
}

// Get retrieves one queued request.
func (s *QueueService) Get(ctx context.Context, id int64) (*domain.PosixRequest, error) {
	return s.queue.GetByID(ctx, id)
}

// List returns queued requests in one status band, id-ascending.
func (s *QueueService) List(ctx context.Context, status domain.PosixRequestStatus, limit int) ([]*domain.PosixRequest, error) {
	rows, err := s.queue.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return rows, nil
}

// Confirm releases an analyzed request for execution. Only the analyzed
// band confirms; the daemon executes confirmed rows after the grace period.
func (s *QueueService) Confirm(ctx context.Context, id int64) error {
	req, err := s.queue.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != domain.PosixAnalyzed {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"only analyzed requests confirm", string(req.Status))
	}
	if err := s.queue.UpdateStatus(ctx, id, domain.PosixConfirmed); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().Int64("request_id", id).Msg("request confirmed")
	return nil
}

// Purge removes a request from the queue without executing it.
func (s *QueueService) Purge(ctx context.Context, id int64) error {
	if _, err := s.queue.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.queue.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.mu.Lock()
	delete(s.alerted, id)
	s.mu.Unlock()
	s.logger.Info().Int64("request_id", id).Msg("request purged")
	return nil
}

// RefreshDepth recomputes the per-band depth gauge. One query per band.
func (s *QueueService) RefreshDepth(ctx context.Context) error {
	for _, band := range statusBands {
		depth, err := s.queue.CountByStatus(ctx, band)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if s.metrics != nil {
			s.metrics.PosixQueueDepth.WithLabelValues(string(band)).Set(float64(depth))
		}
	}
	return nil
}

// AlertPending mails the administrators about analyzed requests awaiting
// confirmation. Each request alerts once per process lifetime; a failed
// mail retries on the next pass.
func (s *QueueService) AlertPending(ctx context.Context) error {
	rows, err := s.queue.ListByStatus(ctx, domain.PosixAnalyzed, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	for _, req := range rows {
		s.mu.Lock()
		_, seen := s.alerted[req.ID]
		s.mu.Unlock()
		if seen {
			continue
		}
		if err := s.notifier.NotifyQueued(ctx, req); err != nil {
			s.logger.Error().Err(err).Int64("request_id", req.ID).Msg("failed to alert administrators")
			continue
		}
		s.mu.Lock()
		s.alerted[req.ID] = struct{}{}
		s.mu.Unlock()
	}
	return nil
}
