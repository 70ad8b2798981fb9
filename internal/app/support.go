package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// EnsureSupportAccount creates the distinguished support user on first
// start. The account carries no password, so it never authenticates; its
// purpose is to own orphaned resources.
func EnsureSupportAccount(ctx context.Context, users repository.UserRepository, logger zerolog.Logger) error {
	_, err := users.GetByLogin(ctx, domain.SupportLogin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrEntityNotFound) {
		return err
	}

	support := &domain.User{
		Login:     domain.SupportLogin,
		Name:      "Support",
		IsSupport: true,
	}
	if err := users.Create(ctx, support); err != nil {
		// Another instance may have won the race.
		if errors.Is(err, domain.ErrEntityDuplicated) {
			return nil
		}
		return err
	}
	logger.Info().Int64("user_id", support.ID).Msg("support account created")
	return nil
}
