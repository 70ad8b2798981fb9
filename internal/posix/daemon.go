package posix

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/repository"
)

// sweepBatch bounds the rows touched per queue sweep.
const sweepBatch = 100

// Daemon drains the POSIX request queue. It runs with privileges in a
// separate process: initialized rows are security-checked and advanced to
// analyzed; confirmed rows past the grace period are executed in id order.
// A distributed lock keeps at most one sweeper active.
type Daemon struct {
	queue  repository.PosixRequestRepository
	audit  repository.AuditLogRepository
	runner Runner
	locker lock.Locker
	cfg    config.PosixConfig
	logger zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewDaemon creates a queue daemon.
func NewDaemon(cfg config.PosixConfig, queue repository.PosixRequestRepository,
	audit repository.AuditLogRepository, runner Runner, locker lock.Locker,
	logger zerolog.Logger) *Daemon {
	return &Daemon{
		queue:  queue,
		audit:  audit,
		runner: runner,
		locker: locker,
		cfg:    cfg,
		logger: logger.With().Str("component", "posixd").Logger(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run sweeps the queue until the context is canceled or Stop is called.
// A sweep in progress finishes its current row before the loop exits.
func (d *Daemon) Run(ctx context.Context) {
	defer close(d.done)

	interval := d.cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info().Dur("poll_interval", interval).Msg("posix queue daemon started")
	d.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("posix queue daemon stopped")
			return
		case <-d.stop:
			d.logger.Info().Msg("posix queue daemon stopped")
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// Stop terminates the loop and waits for the current row to finish.
func (d *Daemon) Stop() {
	close(d.stop)
	<-d.done
}

// stopping reports whether termination was requested mid-sweep.
func (d *Daemon) stopping() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	ttl := 2 * d.cfg.PollInterval
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	acquired, err := d.locker.Acquire(ctx, lock.Keys.PosixDaemon(), ttl)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to acquire daemon lock")
		return
	}
	if !acquired {
		return
	}
	defer d.locker.Release(ctx, lock.Keys.PosixDaemon())

	d.analyzeInitialized(ctx)
	d.executeConfirmed(ctx)
}

// analyzeInitialized security-checks fresh rows. Rows failing the check are
// purged; rows passing it await administrator confirmation.
func (d *Daemon) analyzeInitialized(ctx context.Context) {
	rows, err := d.queue.ListByStatus(ctx, domain.PosixInitialized, sweepBatch)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list initialized requests")
		return
	}
	for _, r := range rows {
		if d.stopping() {
			return
		}
		if err := d.SecurityCheck(ctx, r); err != nil {
			d.logger.Warn().
				Int64("request_id", r.ID).
				Err(err).
				Msg("purging request that failed the security check")
			if derr := d.queue.Delete(ctx, r.ID); derr != nil {
				d.logger.Error().Int64("request_id", r.ID).Err(derr).Msg("failed to purge request")
			}
			continue
		}
		if err := d.queue.UpdateStatus(ctx, r.ID, domain.PosixAnalyzed); err != nil {
			d.logger.Error().Int64("request_id", r.ID).Err(err).Msg("failed to advance request")
		}
	}
}

// executeConfirmed runs confirmed rows past the grace period, oldest first.
func (d *Daemon) executeConfirmed(ctx context.Context) {
	rows, err := d.queue.ListByStatus(ctx, domain.PosixConfirmed, sweepBatch)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list confirmed requests")
		return
	}
	deadline := time.Now().Add(-d.cfg.GracePeriod)
	for _, r := range rows {
		if d.stopping() {
			return
		}
		if r.CreatedAt.After(deadline) {
			continue
		}
		status := domain.PosixExecuted
		if err := d.execute(ctx, r); err != nil {
			d.logger.Error().Int64("request_id", r.ID).Err(err).Msg("request execution failed")
			status = domain.PosixFailed
		}
		if err := d.queue.UpdateStatus(ctx, r.ID, status); err != nil {
			d.logger.Error().Int64("request_id", r.ID).Err(err).Msg("failed to record request outcome")
		}
	}
}

func (d *Daemon) execute(ctx context.Context, r *domain.PosixRequest) error {
	// Re-run the security check: the audit log row or configuration may
	// have changed since analysis.
	if err := d.SecurityCheck(ctx, r); err != nil {
		return err
	}
	action, err := Build(r.ActionClass, r.CtorArgs)
	if err != nil {
		return err
	}
	commands, err := action.Invoke(r.Method, r.MethodArgs)
	if err != nil {
		return err
	}
	for _, cmd := range commands {
		if err := d.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	d.logger.Info().
		Int64("request_id", r.ID).
		Str("action", r.ActionClass).
		Str("method", r.Method).
		Msg("executed posix request")
	return nil
}

// SecurityCheck verifies the provenance and shape of a queued request: the
// originating audit log row must exist, its principal must not be anonymous,
// its client address must be allowed, and the stored action class, method
// and arguments must deserialize.
func (d *Daemon) SecurityCheck(ctx context.Context, r *domain.PosixRequest) error {
	logRow, err := d.audit.GetByID(ctx, r.LogID)
	if err != nil {
		return domain.NewDomainError(domain.ErrSecurityCheckFailed,
			"originating audit log row not found", r.ActionClass)
	}
	if logRow.UserID == nil || *logRow.UserID == 0 {
		return domain.NewDomainError(domain.ErrSecurityCheckFailed,
			"request originates from an anonymous principal", r.ActionClass)
	}
	if !d.ipAllowed(logRow.IP) {
		return domain.NewDomainError(domain.ErrSecurityCheckFailed,
			"request originates from a disallowed address", logRow.IP)
	}
	action, err := Build(r.ActionClass, r.CtorArgs)
	if err != nil {
		return err
	}
	if _, err := action.Invoke(r.Method, r.MethodArgs); err != nil {
		return err
	}
	return nil
}

// ipAllowed checks the origin address against the allow list. An empty list
// allows every address.
func (d *Daemon) ipAllowed(ip string) bool {
	if len(d.cfg.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range d.cfg.AllowedIPs {
		if ip == allowed {
			return true
		}
	}
	return false
}
