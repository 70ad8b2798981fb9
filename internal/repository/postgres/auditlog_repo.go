package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// auditLogRepository implements repository.AuditLogRepository on PostgreSQL.
// The audit table is append-heavy, which is where the pooled postgres
// backend pays off over the embedded store.
type auditLogRepository struct {
	db *DB
}

// NewAuditLogRepository creates a new PostgreSQL audit log repository.
func NewAuditLogRepository(db *DB) repository.AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Migrate creates the audit table when missing.
func (r *auditLogRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			request_date TIMESTAMPTZ NOT NULL,
			address TEXT NOT NULL,
			method TEXT NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_id BIGINT,
			response_status INTEGER NOT NULL DEFAULT 0,
			request_body TEXT NOT NULL DEFAULT '',
			response_body TEXT NOT NULL DEFAULT '',
			operation TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Create stores a log row and assigns the generated ID.
func (r *auditLogRepository) Create(ctx context.Context, l *domain.AuditLog) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO audit_logs (request_date, address, method, ip, user_id,
			response_status, request_body, response_body, operation, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		l.RequestDate,
		l.Address,
		l.Method,
		l.IP,
		l.UserID,
		l.ResponseStatus,
		l.RequestBody,
		l.ResponseBody,
		l.Operation,
		l.CorrelationID,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetByID retrieves a log row.
func (r *auditLogRepository) GetByID(ctx context.Context, id int64) (*domain.AuditLog, error) {
	l := &domain.AuditLog{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, request_date, address, method, ip, user_id,
			response_status, request_body, response_body, operation, correlation_id
		FROM audit_logs WHERE id = $1
	`, id).Scan(
		&l.ID,
		&l.RequestDate,
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return l, nil
}

// SetOperation records the operation description.
func (r *auditLogRepository) SetOperation(ctx context.Context, id int64, operation string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE audit_logs SET operation = $1 WHERE id = $2`, operation, id)
	if err != nil {
		return fmt.Errorf("failed to set audit operation: %w", err)
	}
	return nil
}

// SetResponse records the final status and the truncated response body.
func (r *auditLogRepository) SetResponse(ctx context.Context, id int64, status int, body string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE audit_logs SET response_status = $1, response_body = $2 WHERE id = $3`,
		status, body, id)
	if err != nil {
		return fmt.Errorf("failed to set audit response: %w", err)
	}
	return nil
}

// List returns log rows in arrival order.
func (r *auditLogRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, request_date, address, method, ip, user_id,
			response_status, request_body, response_body, operation, correlation_id
		FROM audit_logs ORDER BY id ASC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		l := &domain.AuditLog{}
		if err := rows.Scan(
			&l.ID,
			&l.RequestDate,
			&l.Address,
			&l.Method,
			&l.IP,
			&l.UserID,
			&l.ResponseStatus,
			&l.RequestBody,
			&l.ResponseBody,
			&l.Operation,
			&l.CorrelationID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
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
