package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/repository"
)

// AuditService writes and serves the request/response audit log. The HTTP
// middleware opens a row when a loggable request arrives and closes it when
// the response is written.
type AuditService struct {
	logs    repository.AuditLogRepository
	cfg     config.AuditConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewAuditService creates an audit service.
func NewAuditService(logs repository.AuditLogRepository, cfg config.AuditConfig,
	m *metrics.Metrics, logger zerolog.Logger) *AuditService {
	return &AuditService{
		logs:    logs,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("service", "audit").Logger(),
	}
}

// TruncateBody clips a body to the configured limit without splitting a
// UTF-8 sequence. Undecodable bytes drop.
func (s *AuditService) TruncateBody(body []byte) string {
	limit := s.cfg.BodyLimit
	if limit > 0 && len(body) > limit {
		body = body[:limit]
		// Drop a rune the cut split in two.
		for len(body) > 0 {
			r, size := utf8.DecodeLastRune(body)
			if r != utf8.RuneError || size != 1 {
				break
			}
			body = body[:len(body)-1]
		}
	}
	return strings.ToValidUTF8(string(body), "")
}

// OpenInput carries the request-side material of an audit row.
type OpenInput struct {
	Address     string
	Method      string
	IP          string
	UserID      *int64
	RequestBody []byte
}

// Open stores the request side of an exchange and returns the row. The
// returned row's ID correlates POSIX requests queued during the exchange.
func (s *AuditService) Open(ctx context.Context, input OpenInput) (*domain.AuditLog, error) {
	row := &domain.AuditLog{
		RequestDate: time.Now().UTC(),
		Address:     input.Address,
		Method:      input.Method,
		IP:          input.IP,
		UserID:      input.UserID,
		RequestBody: s.TruncateBody(input.RequestBody),
	}
	if err := s.logs.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if s.metrics != nil {
		s.metrics.AuditRowsWritten.Inc()
	}
	return row, nil
}

// SetOperation records the operation description once routing resolved the
// handler.
func (s *AuditService) SetOperation(ctx context.Context, id int64, operation string) error {
	if err := s.logs.SetOperation(ctx, id, operation); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// Close stores the response side of an exchange. Sensitive handlers pass a
// nil body.
func (s *AuditService) Close(ctx context.Context, id int64, status int, body []byte) error {
	if err := s.logs.SetResponse(ctx, id, status, s.TruncateBody(body)); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// Get retrieves one audit row.
func (s *AuditService) Get(ctx context.Context, id int64) (*domain.AuditLog, error) {
	return s.logs.GetByID(ctx, id)
}

// List returns audit rows in arrival order.
func (s *AuditService) List(ctx context.Context, offset, limit int64) ([]*domain.AuditLog, error) {
	rows, err := s.logs.List(ctx, repository.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return rows, nil
}
