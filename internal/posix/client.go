package posix

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// Client dispatches privileged actions on behalf of the posix provider. In
// suggest mode the action is serialized into the request queue for the
// daemon; otherwise its commands run inline through the Runner.
type Client struct {
	cfg    config.PosixConfig
	queue  repository.PosixRequestRepository
	runner Runner
	logger zerolog.Logger
}

// NewClient creates a dispatch client.
func NewClient(cfg config.PosixConfig, queue repository.PosixRequestRepository, runner Runner, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		queue:  queue,
		runner: runner,
		logger: logger.With().Str("component", "posix_client").Logger(),
	}
}

// Dispatch validates the invocation and either queues or executes it.
// methodArgs may be nil for argument-free methods.
func (c *Client) Dispatch(ctx context.Context, action Action, method string, methodArgs any) error {
	rawArgs := json.RawMessage("{}")
	if methodArgs != nil {
		b, err := json.Marshal(methodArgs)
		if err != nil {
			return fmt.Errorf("failed to serialize method arguments: %w", err)
		}
		rawArgs = b
	}

	// Resolve the commands up front so malformed invocations never reach
	// the queue.
	commands, err := action.Invoke(method, rawArgs)
	if err != nil {
		return err
	}

	if c.cfg.SuggestAdministration {
		return c.enqueue(ctx, action, method, rawArgs)
	}
	for _, cmd := range commands {
		if err := c.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) enqueue(ctx context.Context, action Action, method string, rawArgs json.RawMessage) error {
	ctorArgs, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to serialize action: %w", err)
	}
	req := &domain.PosixRequest{
		ActionClass: action.Class(),
		CtorArgs:    ctorArgs,
		Method:      method,
		MethodArgs:  rawArgs,
		LogID:       LogIDFromContext(ctx),
		Status:      domain.PosixInitialized,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.queue.Create(ctx, req); err != nil {
		return err
	}
	c.logger.Info().
		Int64("request_id", req.ID).
		Str("action", action.Class()).
		Str("method", method).
		Msg("queued posix request")
	return nil
}
