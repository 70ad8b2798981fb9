package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// permissionRepository implements repository.PermissionRepository for SQLite.
type permissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new SQLite permission repository.
func NewPermissionRepository(db *DB) repository.PermissionRepository {
	return &permissionRepository{db: db}
}

// Set upserts the (project, group) permission row. The unique index on
// (project_id, IFNULL(group_id, 0), level_type) makes the upsert atomic.
func (r *permissionRepository) Set(ctx context.Context, p *domain.Permission) error {
	if p.LevelType == "" {
		p.LevelType = domain.LevelTypeProject
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO permissions (project_id, group_id, level_type, level)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, IFNULL(group_id, 0), level_type)
		DO UPDATE SET level = excluded.level
	`, p.ProjectID, p.GroupID, string(p.LevelType), string(p.Level))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to set permission: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil && id != 0 {
		p.ID = id
	}
	return nil
}

// Get returns the stored level for (project, group). A nil groupID addresses
// the sentinel default entry.
func (r *permissionRepository) Get(ctx context.Context, projectID int64, groupID *int64, levelType domain.LevelType) (*domain.Permission, error) {
	p := &domain.Permission{}
	var level, lt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, group_id, level_type, level
		FROM permissions
		WHERE project_id = ? AND IFNULL(group_id, 0) = IFNULL(?, 0) AND level_type = ?
	`, projectID, groupID, string(levelType)).Scan(&p.ID, &p.ProjectID, &p.GroupID, &lt, &level)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	p.LevelType = domain.LevelType(lt)
	p.Level = domain.AccessLevel(level)
	return p, nil
}

// Delete removes the (project, group) permission row.
func (r *permissionRepository) Delete(ctx context.Context, projectID int64, groupID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM permissions WHERE project_id = ? AND group_id = ?`,
		projectID, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListACL returns the stored ACL of a project with groups resolved in one
// joined query, group name ascending and the sentinel default entry last.
func (r *permissionRepository) ListACL(ctx context.Context, projectID int64) ([]*domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pm.id, pm.project_id, pm.group_id, pm.level_type, pm.level,
			g.id, g.name, g.governor_id
		FROM permissions pm
		LEFT JOIN groups g ON g.id = pm.group_id
		WHERE pm.project_id = ? AND pm.level_type = 'prj'
		ORDER BY pm.group_id IS NULL ASC, g.name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ACL: %w", err)
	}
	defer rows.Close()

	var acl []*domain.Permission
	for rows.Next() {
		p := &domain.Permission{}
		var lt, level string
		var gID, gGovernorID *int64
		var gName *string
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.GroupID, &lt, &level,
			&gID, &gName, &gGovernorID); err != nil {
			return nil, fmt.Errorf("failed to scan ACL entry: %w", err)
		}
		p.LevelType = domain.LevelType(lt)
		p.Level = domain.AccessLevel(level)
		if gID != nil {
			p.Group = &domain.Group{ID: *gID, Name: *gName, GovernorID: *gGovernorID}
		}
		acl = append(acl, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ACL: %w", err)
	}
	return acl, nil
}

// Resolve returns the access material for (project, user): the levels of
// stored permissions whose group contains the user plus the stored project
// default, and root-group membership. Two indexed queries, no N+1.
func (r *permissionRepository) Resolve(ctx context.Context, projectID, userID int64) (*repository.ResolvedAccess, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pm.level
		FROM permissions pm
		WHERE pm.project_id = ? AND pm.level_type = 'prj'
		AND (pm.group_id IS NULL
			OR pm.group_id IN (SELECT group_id FROM group_members WHERE user_id = ?))
	`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	defer rows.Close()

	resolved := &repository.ResolvedAccess{}
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("failed to scan resolved level: %w", err)
		}
		resolved.Levels = append(resolved.Levels, domain.AccessLevel(level))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolved levels: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, `
		SELECT 1
		FROM projects p
		JOIN group_members gm ON gm.group_id = p.root_group_id
		WHERE p.id = ? AND gm.user_id = ?
	`, projectID, userID).Scan(&one)
	switch {
	case err == nil:
		resolved.InRootGroup = true
	case isNoRows(err):
		resolved.InRootGroup = false
	default:
		return nil, fmt.Errorf("failed to check root group membership: %w", err)
	}

	return resolved, nil
}

// Ensure permissionRepository implements repository.PermissionRepository.
var _ repository.PermissionRepository = (*permissionRepository)(nil)
