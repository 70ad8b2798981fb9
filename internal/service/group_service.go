package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/provider"
	"github.com/serik1987/corefacility/internal/repository"
)

// GroupService manages scientific groups and their memberships. The
// distinguished support account never joins a group.
type GroupService struct {
	registry *provider.Registry
	groups   repository.GroupRepository
	users    repository.UserRepository
	logger   zerolog.Logger
}

// NewGroupService creates a group service.
func NewGroupService(registry *provider.Registry, groups repository.GroupRepository,
	users repository.UserRepository, logger zerolog.Logger) *GroupService {
	return &GroupService{
		registry: registry,
		groups:   groups,
		users:    users,
		logger:   logger.With().Str("service", "group").Logger(),
	}
}

// requireMemberEligible rejects memberships of the support account.
func (s *GroupService) requireMemberEligible(u *domain.User) error {
	if u.IsSupport {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the support account cannot join groups", domain.SupportLogin)
	}
	return nil
}

// CreateGroupInput contains the data needed to create a group.
type CreateGroupInput struct {
	Name       string
	GovernorID int64
}

// Create creates a group. The governor becomes a member implicitly.
func (s *GroupService) Create(ctx context.Context, input CreateGroupInput) (*entity.Group, error) {
	governorObj, err := s.users.GetByID(ctx, input.GovernorID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMemberEligible(governorObj); err != nil {
		return nil, err
	}

	g := s.registry.NewGroup()
	if err := g.SetName(input.Name); err != nil {
		return nil, err
	}
	if err := g.SetGovernor(s.registry.WrapUser(governorObj)); err != nil {
		return nil, err
	}
	if err := entity.Create(ctx, g); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("group_id", g.ID()).
		Int64("governor_id", input.GovernorID).
		Msg("group created")
	return g, nil
}

// GetByID retrieves a group with its governor resolved.
func (s *GroupService) GetByID(ctx context.Context, id int64) (*entity.Group, error) {
	obj, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.registry.WrapGroup(obj), nil
}

// UpdateGroupInput carries a partial group update.
type UpdateGroupInput struct {
	Name       *string
	GovernorID *int64
}

// Update applies a partial update. A governor change enrolls the new
// governor as a member; the previous governor stays an ordinary member.
func (s *GroupService) Update(ctx context.Context, id int64, input UpdateGroupInput) (*entity.Group, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if err := g.SetName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.GovernorID != nil && *input.GovernorID != g.Model().GovernorID {
		governorObj, err := s.users.GetByID(ctx, *input.GovernorID)
		if err != nil {
			return nil, err
		}
		if err := s.requireMemberEligible(governorObj); err != nil {
			return nil, err
		}
		if err := s.groups.AddMember(ctx, id, governorObj.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if err := g.SetGovernor(s.registry.WrapUser(governorObj)); err != nil {
			return nil, err
		}
	}
	if g.State() != entity.StateChanged {
		return g, nil
	}
	if err := entity.Update(ctx, g); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("group_id", id).Msg("group updated")
	return g, nil
}

// Delete removes a group. Memberships and stored permissions cascade.
func (s *GroupService) Delete(ctx context.Context, id int64) error {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := entity.Delete(ctx, g); err != nil {
		return err
	}
	s.logger.Info().Int64("group_id", id).Msg("group deleted")
	return nil
}

// AddMember enrolls a user. Enrolling twice is not an error.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.requireMemberEligible(user); err != nil {
		return err
	}
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return err
	}
	if err := s.groups.AddMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().Int64("group_id", groupID).Int64("user_id", userID).Msg("member added")
	return nil
}

// RemoveMember removes a user from a group. The governor cannot leave while
// governing.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID int64) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g.GovernedBy(userID) {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the governor cannot leave its own group", g.Name)
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().Int64("group_id", groupID).Int64("user_id", userID).Msg("member removed")
	return nil
}

// ListMembers returns the member users login-ascending.
func (s *GroupService) ListMembers(ctx context.Context, groupID int64, offset, limit int64) ([]*domain.User, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID, repository.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return members, nil
}

// ListGroupsInput narrows and paginates the group listing.
type ListGroupsInput struct {
	NameSubstring string
	MemberID      int64
	GovernorID    int64
	Offset        int64
	Limit         int64
}

// ListGroupsOutput carries one page of groups.
type ListGroupsOutput struct {
	Groups []*entity.Group
	Total  int64
}

// List returns matching groups name-ascending.
func (s *GroupService) List(ctx context.Context, input ListGroupsInput) (*ListGroupsOutput, error) {
	set := s.registry.GroupSet(s.groups)
	if input.NameSubstring != "" {
		if err := set.SetFilter("name", input.NameSubstring); err != nil {
			return nil, err
		}
	}
	if input.MemberID != 0 {
		if err := set.SetFilter("member", input.MemberID); err != nil {
			return nil, err
		}
	}
	if input.GovernorID != 0 {
		if err := set.SetFilter("governor", input.GovernorID); err != nil {
			return nil, err
		}
	}

	var (
		groups []*entity.Group
		err    error
	)
	if input.Limit > 0 {
		groups, err = set.Slice(ctx, input.Offset, input.Offset+input.Limit)
	} else {
		groups, err = set.All(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	total, err := set.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return &ListGroupsOutput{Groups: groups, Total: total}, nil
}
