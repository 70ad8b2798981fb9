package posix

import (
	"context"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/domain"
)

// Runner executes privileged OS commands. The daemon uses ExecRunner; tests
// substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands through the OS, capturing combined output for
// the failure message.
type ExecRunner struct {
	logger zerolog.Logger
}

// NewExecRunner creates a runner logging through the given logger.
func NewExecRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger.With().Str("component", "posix_runner").Logger()}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	out, err := exec.CommandContext(ctx, cmd.Path, cmd.Args...).CombinedOutput()
	if err != nil {
		r.logger.Error().
			Str("command", cmd.String()).
			Str("output", strings.TrimSpace(string(out))).
			Err(err).
			Msg("posix command failed")
		return domain.NewDomainError(domain.ErrPosixCommandFailed,
			strings.TrimSpace(string(out)), cmd.String())
	}
	r.logger.Info().Str("command", cmd.String()).Msg("posix command executed")
	return nil
}

// Ensure ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)
