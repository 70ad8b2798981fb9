package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// groupRepository implements repository.GroupRepository for SQLite.
type groupRepository struct {
	db *DB
}

// NewGroupRepository creates a new SQLite group repository.
func NewGroupRepository(db *DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

const groupJoinColumns = `g.id, g.name, g.governor_id, ` +
	`u.id, u.login, u.name, u.surname, u.email, u.is_locked, u.is_superuser, u.is_support`

// scanGroup reads one joined group+governor row.
func scanGroup(scan func(dest ...any) error) (*domain.Group, error) {
	group := &domain.Group{Governor: &domain.User{}}
	var isLocked, isSuperuser, isSupport int

	err := scan(
		&group.ID,
		&group.Name,
		&group.GovernorID,
		&group.Governor.ID,
		&group.Governor.Login,
		&group.Governor.Name,
		&group.Governor.Surname,
		&group.Governor.Email,
		&isLocked,
		&isSuperuser,
		&isSupport,
	)
	if err != nil {
		return nil, err
	}

	group.Governor.IsLocked = isLocked != 0
	group.Governor.IsSuperuser = isSuperuser != 0
	group.Governor.IsSupport = isSupport != 0
	return group, nil
}

// Create creates a group and inserts the governor membership row.
func (r *groupRepository) Create(ctx context.Context, group *domain.Group) error {
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`INSERT INTO groups (name, governor_id) VALUES (?, ?)`,
			group.Name, group.GovernorID)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.NewDomainError(domain.ErrEntityDuplicated, "group name already exists", group.Name)
			}
			return fmt.Errorf("failed to create group: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		group.ID = id

		// The governor is always a member of its own group.
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
			group.ID, group.GovernorID)
		if err != nil {
			return fmt.Errorf("failed to insert governor membership: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a group with its governor resolved in one join.
func (r *groupRepository) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+groupJoinColumns+`
		FROM groups g
		JOIN users u ON u.id = g.governor_id
		WHERE g.id = ?
	`, id)
	group, err := scanGroup(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get group by ID: %w", err)
	}
	return group, nil
}

// Update updates an existing group.
func (r *groupRepository) Update(ctx context.Context, group *domain.Group) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, governor_id = ? WHERE id = ?`,
		group.Name, group.GovernorID, group.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated, "group name already exists", group.Name)
		}
		return fmt.Errorf("failed to update group: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// Delete deletes a group by ID.
func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// groupFilterCond lowers a group filter to a condition tree.
func groupFilterCond(f repository.GroupFilter) repository.Cond {
	conds := []repository.Cond{}
	if f.NameSubstring != "" {
		conds = append(conds, repository.Like{Col: "g.name", Sub: f.NameSubstring})
	}
	if f.MemberID != 0 {
		conds = append(conds, repository.Raw{
			SQL:  "g.id IN (SELECT group_id FROM group_members WHERE user_id = ?)",
			Args: []any{f.MemberID},
		})
	}
	if f.GovernorID != 0 {
		conds = append(conds, repository.Eq{Col: "g.governor_id", Val: f.GovernorID})
	}
	return repository.And(conds...)
}

// List returns groups matching the filter in a single query.
func (r *groupRepository) List(ctx context.Context, f repository.GroupFilter, opts repository.ListOptions) ([]*domain.Group, error) {
	where, args := repository.SQL(groupFilterCond(f))
	query := `
		SELECT ` + groupJoinColumns + `
		FROM groups g
		JOIN users u ON u.id = g.governor_id
		WHERE ` + where + `
		ORDER BY g.name ASC` + limitClause(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		group, serr := scanGroup(rows.Scan)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan group: %w", serr)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

// Count returns the number of groups matching the filter in a single query.
func (r *groupRepository) Count(ctx context.Context, f repository.GroupFilter) (int64, error) {
	where, args := repository.SQL(groupFilterCond(f))
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups g WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return total, nil
}

// AddMember inserts a membership row. Duplicate membership is a no-op.
func (r *groupRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
		groupID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// IsMember checks a membership row.
func (r *groupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return true, nil
}

// ListMembers returns the member users, login-ascending.
func (r *groupRepository) ListMembers(ctx context.Context, groupID int64, opts repository.ListOptions) ([]*domain.User, error) {
	query := `
		SELECT ` + prefixColumns("u", userColumns) + `
		FROM users u
		JOIN group_members gm ON gm.user_id = u.id
		WHERE gm.group_id = ?
		ORDER BY u.login ASC` + limitClause(opts)

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, serr := scanUser(rows.Scan)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", serr)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group members: %w", err)
	}
	return users, nil
}

// Ensure groupRepository implements repository.GroupRepository.
var _ repository.GroupRepository = (*groupRepository)(nil)
