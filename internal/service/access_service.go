package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/repository"
)

// AccessService resolves project access levels and maintains project ACLs.
// Resolution order: superusers hold full access everywhere; root group
// members hold full access to their project; otherwise the strongest stored
// permission whose group contains the user wins, falling back to the
// project's sentinel default and finally to no access.
type AccessService struct {
	permissions repository.PermissionRepository
	groups      repository.GroupRepository
	posixClient *posix.Client
	posixCfg    config.PosixConfig
	locker      lock.Locker
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewAccessService creates an access service.
func NewAccessService(permissions repository.PermissionRepository, groups repository.GroupRepository,
	posixClient *posix.Client, posixCfg config.PosixConfig, locker lock.Locker,
	m *metrics.Metrics, logger zerolog.Logger) *AccessService {
	return &AccessService{
		permissions: permissions,
		groups:      groups,
		posixClient: posixClient,
		posixCfg:    posixCfg,
		locker:      locker,
		metrics:     m,
		logger:      logger.With().Str("service", "access").Logger(),
	}
}

// Resolve computes the project access level of a user.
func (s *AccessService) Resolve(ctx context.Context, project *domain.Project, user *domain.User) (domain.AccessLevel, error) {
	if user.IsAnonymous() {
		return domain.LevelNoAccess, nil
	}
	if user.IsSuperuser {
		return domain.LevelFull, nil
	}
	resolved, err := s.permissions.Resolve(ctx, project.ID, user.ID)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("project_id", project.ID).
			Int64("user_id", user.ID).
			Msg("failed to resolve access")
		return domain.LevelNoAccess, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if resolved.InRootGroup {
		return domain.LevelFull, nil
	}
	level := domain.LevelNoAccess
	for _, l := range resolved.Levels {
		level = level.Max(l)
	}
	return level, nil
}

// Authorize gates one data request. A principal resolving to no access is
// told the project does not exist; a principal whose level is too weak for
// the method is told access is denied.
func (s *AccessService) Authorize(ctx context.Context, project *domain.Project, user *domain.User,
	way domain.DataGatheringWay, method string) (domain.AccessLevel, error) {
	level, err := s.Resolve(ctx, project, user)
	if err != nil {
		return domain.LevelNoAccess, err
	}
	if level == domain.LevelNoAccess {
		return level, domain.NewDomainError(domain.ErrEntityNotFound,
			"project hidden from the principal", project.Alias)
	}
	if !domain.MethodAllowed(level, way, method) {
		if s.metrics != nil {
			s.metrics.AccessDenied.Inc()
		}
		return level, fmt.Errorf("%w: level %q does not admit %s", ErrAccessDenied, level, method)
	}
	return level, nil
}

// ACL returns the full access control list of a project: the implicit
// root-group entry first, then the stored entries name-ascending with the
// sentinel default entry last.
func (s *AccessService) ACL(ctx context.Context, project *domain.Project) ([]*domain.Permission, error) {
	stored, err := s.permissions.ListACL(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	rootGroupID := project.RootGroupID
	acl := make([]*domain.Permission, 0, len(stored)+1)
	acl = append(acl, &domain.Permission{
		ProjectID: project.ID,
		GroupID:   &rootGroupID,
		Group:     project.RootGroup,
		LevelType: domain.LevelTypeProject,
		Level:     domain.LevelFull,
	})
	return append(acl, stored...), nil
}

// SetPermission upserts one ACL entry. The implicit root-group entry cannot
// be touched. A nil groupID addresses the sentinel default entry, which
// accepts only the no-access level. Crossing the no-access boundary
// resynchronizes OS group membership.
func (s *AccessService) SetPermission(ctx context.Context, project *domain.Project,
	groupID *int64, level domain.AccessLevel) error {
	if !level.IsValidProjectLevel() {
		return domain.NewFieldError("level", "is not a project access level")
	}
	if groupID != nil && *groupID == project.RootGroupID {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the root group always holds full access", project.Alias)
	}
	if groupID == nil && level != domain.LevelNoAccess {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the default entry never rises above no access", project.Alias)
	}

	oldLevel := domain.LevelNoAccess
	if old, err := s.permissions.Get(ctx, project.ID, groupID, domain.LevelTypeProject); err == nil {
		oldLevel = old.Level
	} else if !isNotFound(err) {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.permissions.Set(ctx, &domain.Permission{
		ProjectID: project.ID,
		GroupID:   groupID,
		LevelType: domain.LevelTypeProject,
		Level:     level,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("project_id", project.ID).
		Interface("group_id", groupID).
		Str("level", string(level)).
		Msg("permission set")

	if crossesNoAccess(oldLevel, level) {
		return s.syncGroupMembership(ctx, project, groupID)
	}
	return nil
}

// DeletePermission removes one stored ACL entry, demoting its group to the
// project default.
func (s *AccessService) DeletePermission(ctx context.Context, project *domain.Project, groupID int64) error {
	if groupID == project.RootGroupID {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the root group always holds full access", project.Alias)
	}
	if err := s.permissions.Delete(ctx, project.ID, groupID); err != nil {
		if isNotFound(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().
		Int64("project_id", project.ID).
		Int64("group_id", groupID).
		Msg("permission deleted")
	return s.syncGroupMembership(ctx, project, &groupID)
}

// crossesNoAccess reports whether an ACL change flips someone's access on
// or off, which is when OS supplementary groups may need resynchronization.
func crossesNoAccess(old, new domain.AccessLevel) bool {
	return (old == domain.LevelNoAccess) != (new == domain.LevelNoAccess)
}

// syncGroupMembership reconciles OS supplementary group membership of the
// users affected by an ACL change. Changes to the sentinel default entry
// affect no concrete group and are skipped. A per-project lock serializes
// concurrent reconciliations.
func (s *AccessService) syncGroupMembership(ctx context.Context, project *domain.Project, groupID *int64) error {
	if !s.posixCfg.ManageUnixGroups || project.UnixGroup == "" || groupID == nil {
		return nil
	}

	key := lock.Keys.ProjectPosix(project.ID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, 30*time.Second, 5, 200*time.Millisecond)
	if err != nil || !acquired {
		return fmt.Errorf("%w: project posix lock unavailable", ErrInternalError)
	}
	defer s.locker.Release(ctx, key)

	members, err := s.groups.ListMembers(ctx, *groupID, repository.ListOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	action := &posix.ProjectGroup{Name: project.UnixGroup}
	for _, member := range members {
		if member.UnixGroup == "" {
			continue
		}
		resolved, err := s.permissions.Resolve(ctx, project.ID, member.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		hasAccess := resolved.InRootGroup || member.IsSuperuser
		for _, l := range resolved.Levels {
			if l != domain.LevelNoAccess {
				hasAccess = true
			}
		}
		method := "remove_member"
		if hasAccess {
			method = "add_member"
		}
		args := &posix.MemberArgs{Account: member.UnixGroup}
		if err := s.posixClient.Dispatch(ctx, action, method, args); err != nil {
			return err
		}
	}
	return nil
}
