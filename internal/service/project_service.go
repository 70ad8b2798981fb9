package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/journal"
	"github.com/serik1987/corefacility/internal/provider"
	"github.com/serik1987/corefacility/internal/repository"
)

// ProjectService manages research projects through the entity pipeline.
// Creating a project also plants the root record of its journal tree.
type ProjectService struct {
	registry *provider.Registry
	projects repository.ProjectRepository
	groups   repository.GroupRepository
	records  repository.RecordRepository
	logger   zerolog.Logger
}

// NewProjectService creates a project service.
func NewProjectService(registry *provider.Registry, projects repository.ProjectRepository,
	groups repository.GroupRepository, records repository.RecordRepository,
	logger zerolog.Logger) *ProjectService {
	return &ProjectService{
		registry: registry,
		projects: projects,
		groups:   groups,
		records:  records,
		logger:   logger.With().Str("service", "project").Logger(),
	}
}

// CreateProjectInput contains the data needed to create a project.
type CreateProjectInput struct {
	Alias       string
	Name        string
	Description string
	RootGroupID int64
}

// Create creates a project owned by the root group.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*entity.Project, error) {
	rootGroupObj, err := s.groups.GetByID(ctx, input.RootGroupID)
	if err != nil {
		return nil, err
	}

	p := s.registry.NewProject()
	if err := p.SetAlias(input.Alias); err != nil {
		return nil, err
	}
	if err := p.SetName(input.Name); err != nil {
		return nil, err
	}
	if err := p.SetDescription(input.Description); err != nil {
		return nil, err
	}
	if err := p.SetRootGroup(s.registry.WrapGroup(rootGroupObj)); err != nil {
		return nil, err
	}
	if err := entity.Create(ctx, p); err != nil {
		return nil, err
	}

	// Every project tree starts with its root record.
	if err := s.records.Create(ctx, journal.NewRoot(p.ID())); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("project_id", p.ID()).
		Str("alias", input.Alias).
		Msg("project created")
	return p, nil
}

// GetByID retrieves a project with its root group and governor resolved.
func (s *ProjectService) GetByID(ctx context.Context, id int64) (*entity.Project, error) {
	obj, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.registry.WrapProject(obj), nil
}

// GetByAlias retrieves a project by alias.
func (s *ProjectService) GetByAlias(ctx context.Context, alias string) (*entity.Project, error) {
	obj, err := s.projects.GetByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	return s.registry.WrapProject(obj), nil
}

// UpdateProjectInput carries a partial project update.
type UpdateProjectInput struct {
	Alias       *string
	Name        *string
	Description *string
	RootGroupID *int64
}

// Update applies a partial update.
func (s *ProjectService) Update(ctx context.Context, id int64, input UpdateProjectInput) (*entity.Project, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Alias != nil {
		if err := p.SetAlias(*input.Alias); err != nil {
			return nil, err
		}
	}
	if input.Name != nil {
		if err := p.SetName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		if err := p.SetDescription(*input.Description); err != nil {
			return nil, err
		}
	}
	if input.RootGroupID != nil && *input.RootGroupID != p.Model().RootGroupID {
		rootGroupObj, err := s.groups.GetByID(ctx, *input.RootGroupID)
		if err != nil {
			return nil, err
		}
		if err := p.SetRootGroup(s.registry.WrapGroup(rootGroupObj)); err != nil {
			return nil, err
		}
	}
	if p.State() != entity.StateChanged {
		return p, nil
	}
	if err := entity.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("project_id", id).Msg("project updated")
	return p, nil
}

// Delete removes a project. The ACL and the journal tree cascade; the OS
// group and the data directory disappear through the provider pipeline.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := entity.Delete(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Int64("project_id", id).Str("alias", p.Model().Alias).Msg("project deleted")
	return nil
}

// ListProjectsInput narrows and paginates the project listing.
type ListProjectsInput struct {
	NameSubstring string

	// ParticipantID hides projects invisible to the user. Zero lists every
	// project (administrative view).
	ParticipantID int64

	Offset int64
	Limit  int64
}

// ListProjectsOutput carries one page of projects.
type ListProjectsOutput struct {
	Projects []*entity.Project
	Total    int64
}

// List returns matching projects alias-ascending.
func (s *ProjectService) List(ctx context.Context, input ListProjectsInput) (*ListProjectsOutput, error) {
	set := s.registry.ProjectSet(s.projects)
	if input.NameSubstring != "" {
		if err := set.SetFilter("name", input.NameSubstring); err != nil {
			return nil, err
		}
	}
	if input.ParticipantID != 0 {
		if err := set.SetFilter("participant", input.ParticipantID); err != nil {
			return nil, err
		}
	}

	var (
		projects []*entity.Project
		err      error
	)
	if input.Limit > 0 {
		projects, err = set.Slice(ctx, input.Offset, input.Offset+input.Limit)
	} else {
		projects, err = set.All(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	total, err := set.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return &ListProjectsOutput{Projects: projects, Total: total}, nil
}
