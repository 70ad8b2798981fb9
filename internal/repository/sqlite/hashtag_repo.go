package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/journal"
	"github.com/serik1987/corefacility/internal/repository"
)

// hashtagRepository implements repository.HashtagRepository for SQLite.
type hashtagRepository struct {
	db *DB
}

// NewHashtagRepository creates a new SQLite hashtag repository.
func NewHashtagRepository(db *DB) repository.HashtagRepository {
	return &hashtagRepository{db: db}
}

// Ensure returns the hashtag with the description, creating it if absent.
func (r *hashtagRepository) Ensure(ctx context.Context, projectID int64, description string) (*journal.Hashtag, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hashtags (project_id, description)
		VALUES (?, ?)
		ON CONFLICT (project_id, description) DO NOTHING
	`, projectID, description)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to ensure hashtag: %w", err)
	}

	h := &journal.Hashtag{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, project_id, description
		FROM hashtags WHERE project_id = ? AND description = ?
	`, projectID, description).Scan(&h.ID, &h.ProjectID, &h.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to read hashtag: %w", err)
	}
	return h, nil
}

// Attach associates a hashtag with a record.
func (r *hashtagRepository) Attach(ctx context.Context, recordID, hashtagID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO record_hashtags (record_id, hashtag_id) VALUES (?, ?)`,
		recordID, hashtagID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to attach hashtag: %w", err)
	}
	return nil
}

// Detach removes the association.
func (r *hashtagRepository) Detach(ctx context.Context, recordID, hashtagID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM record_hashtags WHERE record_id = ? AND hashtag_id = ?`,
		recordID, hashtagID)
	if err != nil {
		return fmt.Errorf("failed to detach hashtag: %w", err)
	}
	return nil
}

// ListForRecord returns the hashtags of a record, description-ascending.
func (r *hashtagRepository) ListForRecord(ctx context.Context, recordID int64) ([]*journal.Hashtag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.project_id, h.description
		FROM hashtags h
		JOIN record_hashtags rh ON rh.hashtag_id = h.id
		WHERE rh.record_id = ?
		ORDER BY h.description ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list record hashtags: %w", err)
	}
	defer rows.Close()

	return collectHashtags(rows.Next, rows.Scan, rows.Err)
}

// List returns the hashtags of a project, description-ascending.
func (r *hashtagRepository) List(ctx context.Context, projectID int64) ([]*journal.Hashtag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, description
		FROM hashtags
		WHERE project_id = ?
		ORDER BY description ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hashtags: %w", err)
	}
	defer rows.Close()

	return collectHashtags(rows.Next, rows.Scan, rows.Err)
}

func collectHashtags(next func() bool, scan func(...any) error, rowsErr func() error) ([]*journal.Hashtag, error) {
	var tags []*journal.Hashtag
	for next() {
		h := &journal.Hashtag{}
		if err := scan(&h.ID, &h.ProjectID, &h.Description); err != nil {
			return nil, fmt.Errorf("failed to scan hashtag: %w", err)
		}
		tags = append(tags, h)
	}
	if err := rowsErr(); err != nil {
		return nil, fmt.Errorf("error iterating hashtags: %w", err)
	}
	return tags, nil
}

// Ensure hashtagRepository implements repository.HashtagRepository.
var _ repository.HashtagRepository = (*hashtagRepository)(nil)
