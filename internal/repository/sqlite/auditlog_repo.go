package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// auditLogRepository implements repository.AuditLogRepository for SQLite.
type auditLogRepository struct {
	db *DB
}

// NewAuditLogRepository creates a new SQLite audit log repository.
func NewAuditLogRepository(db *DB) repository.AuditLogRepository {
	return &auditLogRepository{db: db}
}

const auditLogColumns = `id, request_date, address, method, ip, user_id,
	response_status, request_body, response_body, operation, correlation_id`

func scanAuditLog(scan func(dest ...any) error) (*domain.AuditLog, error) {
	l := &domain.AuditLog{}
	var requestDate string
	err := scan(
		&l.ID,
		&requestDate,
		&l.Address,
		&l.Method,
		&l.IP,
		&l.UserID,
		&l.ResponseStatus,
		&l.RequestBody,
		&l.ResponseBody,
		&l.Operation,
		&l.CorrelationID,
	)
	if err != nil {
		return nil, err
	}
	l.RequestDate, err = parseTime(requestDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request date: %w", err)
	}
	return l, nil
}

// Create stores a log row and assigns the generated ID.
func (r *auditLogRepository) Create(ctx context.Context, l *domain.AuditLog) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (request_date, address, method, ip, user_id,
			response_status, request_body, response_body, operation, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		formatTime(l.RequestDate),
		l.Address,
		l.Method,
		l.IP,
		l.UserID,
		l.ResponseStatus,
		l.RequestBody,
		l.ResponseBody,
		l.Operation,
		l.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	l.ID = id

	return nil
}

// GetByID retrieves a log row.
func (r *auditLogRepository) GetByID(ctx context.Context, id int64) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+auditLogColumns+` FROM audit_logs WHERE id = ?`, id)
	l, err := scanAuditLog(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return l, nil
}

// SetOperation records the operation description.
func (r *auditLogRepository) SetOperation(ctx context.Context, id int64, operation string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE audit_logs SET operation = ? WHERE id = ?`, operation, id)
	if err != nil {
		return fmt.Errorf("failed to set audit operation: %w", err)
	}
	return nil
}

// SetResponse records the final status and the truncated response body.
func (r *auditLogRepository) SetResponse(ctx context.Context, id int64, status int, body string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE audit_logs SET response_status = ?, response_body = ? WHERE id = ?`,
		status, body, id)
	if err != nil {
		return fmt.Errorf("failed to set audit response: %w", err)
	}
	return nil
}

// List returns log rows in arrival order.
func (r *auditLogRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditLogColumns+` FROM audit_logs ORDER BY id ASC`+limitClause(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		l, serr := scanAuditLog(rows.Scan)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", serr)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return logs, nil
}

// Ensure auditLogRepository implements repository.AuditLogRepository.
var _ repository.AuditLogRepository = (*auditLogRepository)(nil)
