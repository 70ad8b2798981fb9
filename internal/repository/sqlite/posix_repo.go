package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// posixRequestRepository implements repository.PosixRequestRepository for
// SQLite.
type posixRequestRepository struct {
	db *DB
}

// NewPosixRequestRepository creates a new SQLite POSIX request repository.
func NewPosixRequestRepository(db *DB) repository.PosixRequestRepository {
	return &posixRequestRepository{db: db}
}

const posixRequestColumns = `id, action_class, ctor_args, method, method_args,
	log_id, status, created_at`

func scanPosixRequest(scan func(dest ...any) error) (*domain.PosixRequest, error) {
	req := &domain.PosixRequest{}
	var status, createdAt string
	var ctorArgs, methodArgs string
	err := scan(
		&req.ID,
		&req.ActionClass,
		&ctorArgs,
		&req.Method,
		&methodArgs,
		&req.LogID,
		&status,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	req.CtorArgs = []byte(ctorArgs)
	req.MethodArgs = []byte(methodArgs)
	req.Status = domain.PosixRequestStatus(status)
	req.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request creation time: %w", err)
	}
	return req, nil
}

// Create enqueues a request and assigns the generated ID.
func (r *posixRequestRepository) Create(ctx context.Context, req *domain.PosixRequest) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO posix_requests (action_class, ctor_args, method, method_args,
			log_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		req.ActionClass,
		string(req.CtorArgs),
		req.Method,
		string(req.MethodArgs),
		req.LogID,
		string(req.Status),
		formatTime(req.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to create posix request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	req.ID = id

	return nil
}

// GetByID retrieves a request row.
func (r *posixRequestRepository) GetByID(ctx context.Context, id int64) (*domain.PosixRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+posixRequestColumns+` FROM posix_requests WHERE id = ?`, id)
	req, err := scanPosixRequest(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get posix request: %w", err)
	}
	return req, nil
}

// ListByStatus returns requests in one status band, id-ascending.
func (r *posixRequestRepository) ListByStatus(ctx context.Context, status domain.PosixRequestStatus, limit int) ([]*domain.PosixRequest, error) {
	query := `SELECT ` + posixRequestColumns + ` FROM posix_requests WHERE status = ? ORDER BY id ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posix requests: %w", err)
	}
	defer rows.Close()

	var reqs []*domain.PosixRequest
	for rows.Next() {
		req, serr := scanPosixRequest(rows.Scan)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan posix request: %w", serr)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posix requests: %w", err)
	}
	return reqs, nil
}

// UpdateStatus advances a request to the next band.
func (r *posixRequestRepository) UpdateStatus(ctx context.Context, id int64, status domain.PosixRequestStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posix_requests SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update posix request status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// Delete purges a request row.
func (r *posixRequestRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posix_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete posix request: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// CountByStatus returns the queue depth of one band.
func (r *posixRequestRepository) CountByStatus(ctx context.Context, status domain.PosixRequestStatus) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posix_requests WHERE status = ?`, string(status)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count posix requests: %w", err)
	}
	return total, nil
}

// Ensure posixRequestRepository implements repository.PosixRequestRepository.
var _ repository.PosixRequestRepository = (*posixRequestRepository)(nil)
