package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// projectRepository implements repository.ProjectRepository for SQLite.
type projectRepository struct {
	db *DB
}

// NewProjectRepository creates a new SQLite project repository.
func NewProjectRepository(db *DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

const projectJoinColumns = `p.id, p.alias, p.name, p.description, p.avatar,
	p.root_group_id, p.unix_group, p.project_dir,
	g.id, g.name, g.governor_id,
	u.id, u.login, u.name, u.surname, u.email`

// scanProject reads one joined project+root group+governor row.
func scanProject(scan func(dest ...any) error) (*domain.Project, error) {
	project := &domain.Project{
		RootGroup: &domain.Group{Governor: &domain.User{}},
	}

	err := scan(
		&project.ID,
		&project.Alias,
		&project.Name,
		&project.Description,
		&project.AvatarName,
		&project.RootGroupID,
		&project.UnixGroup,
		&project.ProjectDir,
		&project.RootGroup.ID,
		&project.RootGroup.Name,
		&project.RootGroup.GovernorID,
		&project.RootGroup.Governor.ID,
		&project.RootGroup.Governor.Login,
		&project.RootGroup.Governor.Name,
		&project.RootGroup.Governor.Surname,
		&project.RootGroup.Governor.Email,
	)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Create creates a new project.
func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (alias, name, description, avatar, root_group_id, unix_group, project_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		project.Alias,
		project.Name,
		project.Description,
		project.AvatarName,
		project.RootGroupID,
		project.UnixGroup,
		project.ProjectDir,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated, "project alias already exists", project.Alias)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	project.ID = id

	return nil
}

func (r *projectRepository) getOne(ctx context.Context, where string, arg any) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+projectJoinColumns+`
		FROM projects p
		JOIN groups g ON g.id = p.root_group_id
		JOIN users u ON u.id = g.governor_id
		WHERE `+where, arg)
	project, err := scanProject(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// GetByID retrieves a project with root group and governor in one join.
func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	return r.getOne(ctx, "p.id = ?", id)
}

// GetByAlias retrieves a project by alias.
func (r *projectRepository) GetByAlias(ctx context.Context, alias string) (*domain.Project, error) {
	return r.getOne(ctx, "p.alias = ?", alias)
}

// Update updates an existing project.
func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET alias = ?, name = ?, description = ?, avatar = ?,
			root_group_id = ?, unix_group = ?, project_dir = ?
		WHERE id = ?
	`,
		project.Alias,
		project.Name,
		project.Description,
		project.AvatarName,
		project.RootGroupID,
		project.UnixGroup,
		project.ProjectDir,
		project.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated, "project alias already exists", project.Alias)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// Delete deletes a project by ID.
func (r *projectRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// projectFilterCond lowers a project filter to a condition tree. The
// participant clause admits projects where the user sits in the root group,
// in a group with a stored permission above no_access, or where the stored
// project default is above no_access.
func projectFilterCond(f repository.ProjectFilter) repository.Cond {
	conds := []repository.Cond{}
	if f.NameSubstring != "" {
		conds = append(conds, repository.Or(
			repository.Like{Col: "p.alias", Sub: f.NameSubstring},
			repository.Like{Col: "p.name", Sub: f.NameSubstring},
		))
	}
	if f.ParticipantID != 0 {
		conds = append(conds, repository.Or(
			repository.Raw{
				SQL:  "p.root_group_id IN (SELECT group_id FROM group_members WHERE user_id = ?)",
				Args: []any{f.ParticipantID},
			},
			repository.Raw{
				SQL: `p.id IN (
					SELECT pm.project_id FROM permissions pm
					WHERE pm.level_type = 'prj' AND pm.level <> 'no_access'
					AND (pm.group_id IS NULL
						OR pm.group_id IN (SELECT group_id FROM group_members WHERE user_id = ?))
				)`,
				Args: []any{f.ParticipantID},
			},
		))
	}
	return repository.And(conds...)
}

// List returns projects matching the filter in a single query.
func (r *projectRepository) List(ctx context.Context, f repository.ProjectFilter, opts repository.ListOptions) ([]*domain.Project, error) {
	where, args := repository.SQL(projectFilterCond(f))
	query := `
		SELECT ` + projectJoinColumns + `
		FROM projects p
		JOIN groups g ON g.id = p.root_group_id
		JOIN users u ON u.id = g.governor_id
		WHERE ` + where + `
		ORDER BY p.alias ASC` + limitClause(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		project, serr := scanProject(rows.Scan)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan project: %w", serr)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Count returns the number of matching projects in a single query.
func (r *projectRepository) Count(ctx context.Context, f repository.ProjectFilter) (int64, error) {
	where, args := repository.SQL(projectFilterCond(f))
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects p WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return total, nil
}

// Ensure projectRepository implements repository.ProjectRepository.
var _ repository.ProjectRepository = (*projectRepository)(nil)
