package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, login, password_hash, name, surname, email, phone,
	is_locked, is_superuser, is_support, avatar, unix_group, home_dir,
	activation_code_hash, activation_code_expires`

// scanUser reads one user row from a row scanner.
func scanUser(scan func(dest ...any) error) (*domain.User, error) {
	user := &domain.User{}
	var isLocked, isSuperuser, isSupport int
	var activationExpires *string

	err := scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.Name,
		&user.Surname,
		&user.Email,
		&user.Phone,
		&isLocked,
		&isSuperuser,
		&isSupport,
		&user.AvatarName,
		&user.UnixGroup,
		&user.HomeDir,
		&user.ActivationCodeHash,
		&activationExpires,
	)
	if err != nil {
		return nil, err
	}

	user.IsLocked = isLocked != 0
	user.IsSuperuser = isSuperuser != 0
	user.IsSupport = isSupport != 0
	user.ActivationCodeExpires = parseNullTime(activationExpires)
	return user, nil
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (login, password_hash, name, surname, email, phone,
			is_locked, is_superuser, is_support, avatar, unix_group, home_dir,
			activation_code_hash, activation_code_expires)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Login,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Email,
		user.Phone,
		boolToInt(user.IsLocked),
		boolToInt(user.IsSuperuser),
		boolToInt(user.IsSupport),
		user.AvatarName,
		user.UnixGroup,
		user.HomeDir,
		user.ActivationCodeHash,
		formatNullTime(user.ActivationCodeExpires),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated, "login already exists", user.Login)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByLogin retrieves a user by login.
func (r *userRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = ?`, login)
	user, err := scanUser(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}
	return user, nil
}

// Update updates an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET login = ?, password_hash = ?, name = ?, surname = ?, email = ?,
			phone = ?, is_locked = ?, is_superuser = ?, is_support = ?,
			avatar = ?, unix_group = ?, home_dir = ?,
			activation_code_hash = ?, activation_code_expires = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Login,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Email,
		user.Phone,
		boolToInt(user.IsLocked),
		boolToInt(user.IsSuperuser),
		boolToInt(user.IsSupport),
		user.AvatarName,
		user.UnixGroup,
		user.HomeDir,
		user.ActivationCodeHash,
		formatNullTime(user.ActivationCodeExpires),
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated, "login already exists", user.Login)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}

	return nil
}

// Delete deletes a user by ID.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}

	return nil
}

// userFilterCond lowers a user filter to a condition tree.
func userFilterCond(f repository.UserFilter) repository.Cond {
	conds := []repository.Cond{}
	if f.NameSubstring != "" {
		conds = append(conds, repository.Or(
			repository.Like{Col: "u.login", Sub: f.NameSubstring},
			repository.Like{Col: "u.name", Sub: f.NameSubstring},
			repository.Like{Col: "u.surname", Sub: f.NameSubstring},
		))
	}
	if f.GroupID != 0 {
		conds = append(conds, repository.Raw{
			SQL:  "u.id IN (SELECT user_id FROM group_members WHERE group_id = ?)",
			Args: []any{f.GroupID},
		})
	}
	return repository.And(conds...)
}

// List returns users matching the filter in a single query.
func (r *userRepository) List(ctx context.Context, f repository.UserFilter, opts repository.ListOptions) ([]*domain.User, error) {
	where, args := repository.SQL(userFilterCond(f))
	query := `SELECT ` + prefixColumns("u", userColumns) + ` FROM users u WHERE ` + where +
		` ORDER BY u.login ASC` + limitClause(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, serr := scanUser(rows.Scan)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan user: %w", serr)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Count returns the number of users matching the filter in a single query.
func (r *userRepository) Count(ctx context.Context, f repository.UserFilter) (int64, error) {
	where, args := repository.SQL(userFilterCond(f))
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users u WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

// ClearExpiredActivationCodes removes activation codes past expiry.
func (r *userRepository) ClearExpiredActivationCodes(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET activation_code_hash = '', activation_code_expires = NULL
		WHERE activation_code_expires IS NOT NULL AND activation_code_expires < ?
	`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired activation codes: %w", err)
	}
	cleared, _ := result.RowsAffected()
	return cleared, nil
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
