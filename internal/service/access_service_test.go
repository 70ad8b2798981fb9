package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/repository"
)

// accessKey addresses one stored permission in the mock.
type accessKey struct {
	projectID int64
	groupID   int64 // zero encodes the sentinel default entry
}

// MockPermissionRepository is an in-memory repository.PermissionRepository.
type MockPermissionRepository struct {
	stored   map[accessKey]*domain.Permission
	resolved map[int64]*repository.ResolvedAccess // by user id
}

func NewMockPermissionRepository() *MockPermissionRepository {
	return &MockPermissionRepository{
		stored:   make(map[accessKey]*domain.Permission),
		resolved: make(map[int64]*repository.ResolvedAccess),
	}
}

func keyOf(projectID int64, groupID *int64) accessKey {
	k := accessKey{projectID: projectID}
	if groupID != nil {
		k.groupID = *groupID
	}
	return k
}

func (m *MockPermissionRepository) Set(ctx context.Context, p *domain.Permission) error {
	m.stored[keyOf(p.ProjectID, p.GroupID)] = p
	return nil
}

func (m *MockPermissionRepository) Get(ctx context.Context, projectID int64, groupID *int64,
	levelType domain.LevelType) (*domain.Permission, error) {
	p, ok := m.stored[keyOf(projectID, groupID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *MockPermissionRepository) Delete(ctx context.Context, projectID, groupID int64) error {
	k := accessKey{projectID: projectID, groupID: groupID}
	if _, ok := m.stored[k]; !ok {
		return repository.ErrNotFound
	}
	delete(m.stored, k)
	return nil
}

func (m *MockPermissionRepository) ListACL(ctx context.Context, projectID int64) ([]*domain.Permission, error) {
	var result []*domain.Permission
	for _, p := range m.stored {
		if p.ProjectID == projectID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPermissionRepository) Resolve(ctx context.Context, projectID, userID int64) (*repository.ResolvedAccess, error) {
	if r, ok := m.resolved[userID]; ok {
		return r, nil
	}
	return &repository.ResolvedAccess{}, nil
}

var _ repository.PermissionRepository = (*MockPermissionRepository)(nil)

func newTestAccessService(perms *MockPermissionRepository) *AccessService {
	return NewAccessService(perms, nil, nil, config.PosixConfig{},
		lock.NewMemoryLocker(), nil, zerolog.Nop())
}

func TestAccessService_Resolve(t *testing.T) {
	ctx := context.Background()
	project := &domain.Project{ID: 1, Alias: "optics", RootGroupID: 10}

	tests := []struct {
		name     string
		user     *domain.User
		resolved *repository.ResolvedAccess
		want     domain.AccessLevel
	}{
		{
			name: "anonymous has no access",
			user: nil,
			want: domain.LevelNoAccess,
		},
		{
			name: "superuser has full access",
			user: &domain.User{ID: 2, IsSuperuser: true},
			want: domain.LevelFull,
		},
		{
			name:     "root group member has full access",
			user:     &domain.User{ID: 3},
			resolved: &repository.ResolvedAccess{InRootGroup: true},
			want:     domain.LevelFull,
		},
		{
			name: "strongest intersecting permission wins",
			user: &domain.User{ID: 4},
			resolved: &repository.ResolvedAccess{Levels: []domain.AccessLevel{
				domain.LevelDataView, domain.LevelDataAdd, domain.LevelDataProcess,
			}},
			want: domain.LevelDataAdd,
		},
		{
			name: "no intersecting permission means no access",
			user: &domain.User{ID: 5},
			want: domain.LevelNoAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := NewMockPermissionRepository()
			if tt.resolved != nil {
				perms.resolved[tt.user.ID] = tt.resolved
			}
			s := newTestAccessService(perms)

			level, err := s.Resolve(ctx, project, tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestAccessService_Authorize(t *testing.T) {
	ctx := context.Background()
	project := &domain.Project{ID: 1, Alias: "optics", RootGroupID: 10}

	t.Run("no access hides the project", func(t *testing.T) {
		s := newTestAccessService(NewMockPermissionRepository())
		_, err := s.Authorize(ctx, project, &domain.User{ID: 4}, domain.GatheringUploading, "GET")
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("weak level denies the method", func(t *testing.T) {
		perms := NewMockPermissionRepository()
		perms.resolved[4] = &repository.ResolvedAccess{Levels: []domain.AccessLevel{domain.LevelDataView}}
		s := newTestAccessService(perms)

		level, err := s.Authorize(ctx, project, &domain.User{ID: 4}, domain.GatheringUploading, "POST")
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.Equal(t, domain.LevelDataView, level)
	})

	t.Run("sufficient level passes", func(t *testing.T) {
		perms := NewMockPermissionRepository()
		perms.resolved[4] = &repository.ResolvedAccess{Levels: []domain.AccessLevel{domain.LevelDataAdd}}
		s := newTestAccessService(perms)

		level, err := s.Authorize(ctx, project, &domain.User{ID: 4}, domain.GatheringUploading, "POST")
		require.NoError(t, err)
		assert.Equal(t, domain.LevelDataAdd, level)
	})
}

func TestAccessService_SetPermission(t *testing.T) {
	ctx := context.Background()
	project := &domain.Project{ID: 1, Alias: "optics", RootGroupID: 10}

	t.Run("invalid level", func(t *testing.T) {
		s := newTestAccessService(NewMockPermissionRepository())
		err := s.SetPermission(ctx, project, nil, domain.AccessLevel("bogus"))
		assert.ErrorIs(t, err, domain.ErrFieldInvalid)
	})

	t.Run("root group entry is immutable", func(t *testing.T) {
		s := newTestAccessService(NewMockPermissionRepository())
		rootGroup := project.RootGroupID
		err := s.SetPermission(ctx, project, &rootGroup, domain.LevelDataView)
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})

	t.Run("upserts the entry", func(t *testing.T) {
		perms := NewMockPermissionRepository()
		s := newTestAccessService(perms)
		groupID := int64(20)

		require.NoError(t, s.SetPermission(ctx, project, &groupID, domain.LevelDataProcess))
		p, err := perms.Get(ctx, project.ID, &groupID, domain.LevelTypeProject)
		require.NoError(t, err)
		assert.Equal(t, domain.LevelDataProcess, p.Level)

		require.NoError(t, s.SetPermission(ctx, project, &groupID, domain.LevelDataFull))
		p, err = perms.Get(ctx, project.ID, &groupID, domain.LevelTypeProject)
		require.NoError(t, err)
		assert.Equal(t, domain.LevelDataFull, p.Level)
	})

	t.Run("sentinel default entry stores no access", func(t *testing.T) {
		perms := NewMockPermissionRepository()
		s := newTestAccessService(perms)

		require.NoError(t, s.SetPermission(ctx, project, nil, domain.LevelNoAccess))
		p, err := perms.Get(ctx, project.ID, nil, domain.LevelTypeProject)
		require.NoError(t, err)
		assert.True(t, p.IsDefault())
		assert.Equal(t, domain.LevelNoAccess, p.Level)
	})

	t.Run("sentinel default entry never rises above no access", func(t *testing.T) {
		perms := NewMockPermissionRepository()
		s := newTestAccessService(perms)

		for _, level := range []domain.AccessLevel{
			domain.LevelDataView, domain.LevelDataProcess, domain.LevelDataAdd,
			domain.LevelDataFull, domain.LevelFull,
		} {
			err := s.SetPermission(ctx, project, nil, level)
			assert.ErrorIs(t, err, domain.ErrOperationNotPermitted, level)
		}
		_, err := perms.Get(ctx, project.ID, nil, domain.LevelTypeProject)
		assert.Error(t, err, "rejected levels leave no row behind")
	})
}

func TestAccessService_DeletePermission(t *testing.T) {
	ctx := context.Background()
	project := &domain.Project{ID: 1, Alias: "optics", RootGroupID: 10}

	t.Run("root group entry cannot be deleted", func(t *testing.T) {
		s := newTestAccessService(NewMockPermissionRepository())
		err := s.DeletePermission(ctx, project, project.RootGroupID)
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})

	t.Run("missing entry", func(t *testing.T) {
		s := newTestAccessService(NewMockPermissionRepository())
		err := s.DeletePermission(ctx, project, 20)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("removes the entry", func(t *testing.T) {
		perms := NewMockPermissionRepository()
		groupID := int64(20)
		require.NoError(t, perms.Set(ctx, &domain.Permission{
			ProjectID: project.ID, GroupID: &groupID,
			LevelType: domain.LevelTypeProject, Level: domain.LevelDataView,
		}))
		s := newTestAccessService(perms)

		require.NoError(t, s.DeletePermission(ctx, project, groupID))
		_, err := perms.Get(ctx, project.ID, &groupID, domain.LevelTypeProject)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAccessService_ACL(t *testing.T) {
	ctx := context.Background()
	project := &domain.Project{ID: 1, Alias: "optics", RootGroupID: 10,
		RootGroup: &domain.Group{ID: 10, Name: "Optics lab"}}

	perms := NewMockPermissionRepository()
	groupID := int64(20)
	require.NoError(t, perms.Set(ctx, &domain.Permission{
		ProjectID: project.ID, GroupID: &groupID,
		LevelType: domain.LevelTypeProject, Level: domain.LevelDataView,
	}))
	s := newTestAccessService(perms)

	acl, err := s.ACL(ctx, project)
	require.NoError(t, err)
	require.Len(t, acl, 2)

	// The synthesized root-group entry leads the list.
	assert.Equal(t, project.RootGroupID, *acl[0].GroupID)
	assert.Equal(t, domain.LevelFull, acl[0].Level)
}
