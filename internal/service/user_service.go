package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/mail"
	"github.com/serik1987/corefacility/internal/provider"
	"github.com/serik1987/corefacility/internal/repository"
)

// activationAlphabet excludes look-alike symbols so mailed codes survive
// retyping.
const activationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// activationCodeLength is the symbol count of mailed activation codes.
const activationCodeLength = 20

// UserService manages platform accounts through the entity pipeline.
type UserService struct {
	registry *provider.Registry
	users    repository.UserRepository
	tokens   repository.TokenRepository
	notifier *mail.Notifier
	cfg      config.AuthConfig
	logger   zerolog.Logger
}

// NewUserService creates a user service.
func NewUserService(registry *provider.Registry, users repository.UserRepository,
	tokens repository.TokenRepository, notifier *mail.Notifier,
	cfg config.AuthConfig, logger zerolog.Logger) *UserService {
	return &UserService{
		registry: registry,
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new account.
type CreateUserInput struct {
	Login   string
	Name    string
	Surname string
	Email   string
	Phone   string

	// Password is optional: accounts created without one authenticate only
	// after activation.
	Password string

	// SendActivation mails an activation code to the new account.
	SendActivation bool

	// Locale selects the mail template language.
	Locale string
}

// Create creates a new account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	u := s.registry.NewUser()
	if err := u.SetLogin(input.Login); err != nil {
		return nil, err
	}
	if err := u.SetName(input.Name); err != nil {
		return nil, err
	}
	if err := u.SetSurname(input.Surname); err != nil {
		return nil, err
	}
	if err := u.SetEmail(input.Email); err != nil {
		return nil, err
	}
	if err := u.SetPhone(input.Phone); err != nil {
		return nil, err
	}
	if input.Password != "" {
		if err := u.Password.SetSecret(input.Password); err != nil {
			return nil, err
		}
	}
	if err := entity.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", u.ID()).
		Str("login", input.Login).
		Msg("user created")

	if input.SendActivation {
		if err := s.issueActivation(ctx, u, input.Locale); err != nil {
			// The account exists; a failed mail only delays activation.
			s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to send activation code")
		}
	}
	return u, nil
}

// GetByID retrieves an account.
func (s *UserService) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	obj, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.registry.WrapUser(obj), nil
}

// GetByLogin retrieves an account by login.
func (s *UserService) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	obj, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	return s.registry.WrapUser(obj), nil
}

// UpdateUserInput carries a partial account update. Nil fields stay
// untouched.
type UpdateUserInput struct {
	Login       *string
	Name        *string
	Surname     *string
	Email       *string
	Phone       *string
	IsLocked    *bool
	IsSuperuser *bool
}

// Update applies a partial update. On the distinguished support account
// only the lock flag is mutable.
func (s *UserService) Update(ctx context.Context, id int64, input UpdateUserInput) (*entity.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Model().IsSupport {
		if input.Login != nil || input.Name != nil || input.Surname != nil ||
			input.Email != nil || input.Phone != nil || input.IsSuperuser != nil {
			return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
				"only the lock flag of the support account is mutable", domain.SupportLogin)
		}
	}
	if input.Login != nil {
		if err := u.SetLogin(*input.Login); err != nil {
			return nil, err
		}
	}
	if input.Name != nil {
		if err := u.SetName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Surname != nil {
		if err := u.SetSurname(*input.Surname); err != nil {
			return nil, err
		}
	}
	if input.Email != nil {
		if err := u.SetEmail(*input.Email); err != nil {
			return nil, err
		}
	}
	if input.Phone != nil {
		if err := u.SetPhone(*input.Phone); err != nil {
			return nil, err
		}
	}
	if input.IsLocked != nil {
		if err := u.SetLocked(*input.IsLocked); err != nil {
			return nil, err
		}
	}
	if input.IsSuperuser != nil {
		if err := u.SetSuperuser(*input.IsSuperuser); err != nil {
			return nil, err
		}
	}
	if u.State() != entity.StateChanged {
		return u, nil
	}
	if err := entity.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", id).Msg("user updated")
	return u, nil
}

// SetPassword replaces the account password. The support account password
// is immutable.
func (s *UserService) SetPassword(ctx context.Context, id int64, password string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Model().IsSupport {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the support account password is immutable", domain.SupportLogin)
	}
	if err := u.Password.SetSecret(password); err != nil {
		return err
	}
	if err := entity.Update(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Msg("password changed")
	return nil
}

// Delete removes an account and revokes every credential it holds. The
// support account cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Model().IsSupport {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the support account cannot be deleted", domain.SupportLogin)
	}
	if _, err := s.tokens.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := entity.Delete(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Str("login", u.Model().Login).Msg("user deleted")
	return nil
}

// Authenticate verifies login credentials.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	u, err := s.GetByLogin(ctx, login)
	if err != nil {
		// Do not reveal whether the login exists.
		return nil, ErrInvalidCredentials
	}
	if !u.Model().CanAuthenticate() {
		return nil, ErrUserLocked
	}
	if !u.Password.Check(password) {
		return nil, ErrInvalidCredentials
	}
	return u.Model(), nil
}

// IssueActivation mails a fresh activation code to the account.
func (s *UserService) IssueActivation(ctx context.Context, id int64, locale string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.issueActivation(ctx, u, locale)
}

func (s *UserService) issueActivation(ctx context.Context, u *entity.User, locale string) error {
	code, err := u.ActivationCode.Generate(activationAlphabet, activationCodeLength)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := u.ActivationExpiry.Set(s.cfg.ActivationCodeLifetime); err != nil {
		return err
	}
	if err := entity.Update(ctx, u); err != nil {
		return err
	}
	if err := s.notifier.SendActivation(ctx, u.Model(), code, locale); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", u.ID()).Msg("activation code issued")
	return nil
}

// Activate consumes a mailed activation code, setting the first password.
// Unknown logins, wrong codes and expired codes are indistinguishable.
func (s *UserService) Activate(ctx context.Context, login, code, password string) error {
	u, err := s.GetByLogin(ctx, login)
	if err != nil {
		return ErrActivationInvalid
	}
	if u.ActivationExpiry.IsExpired(time.Now()) || !u.ActivationCode.Check(code) {
		return ErrActivationInvalid
	}
	if err := u.Password.SetSecret(password); err != nil {
		return err
	}
	if err := u.ActivationCode.Clear(); err != nil {
		return err
	}
	if err := u.ActivationExpiry.Clear(); err != nil {
		return err
	}
	if err := entity.Update(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", u.ID()).Msg("account activated")
	return nil
}

// ListUsersInput narrows and paginates the account listing.
type ListUsersInput struct {
	NameSubstring string
	GroupID       int64
	Offset        int64
	Limit         int64
}

// ListUsersOutput carries one page of accounts.
type ListUsersOutput struct {
	Users []*entity.User
	Total int64
}

// List returns matching accounts login-ascending. Two queries: the page and
// the total.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	set := s.registry.UserSet(s.users)
	if input.NameSubstring != "" {
		if err := set.SetFilter("name", input.NameSubstring); err != nil {
			return nil, err
		}
	}
	if input.GroupID != 0 {
		if err := set.SetFilter("group", input.GroupID); err != nil {
			return nil, err
		}
	}

	var (
		users []*entity.User
		err   error
	)
	if input.Limit > 0 {
		users, err = set.Slice(ctx, input.Offset, input.Offset+input.Limit)
	} else {
		users, err = set.All(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	total, err := set.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return &ListUsersOutput{Users: users, Total: total}, nil
}
