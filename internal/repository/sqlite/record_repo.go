package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/journal"
	"github.com/serik1987/corefacility/internal/repository"
)

// recordRepository implements repository.RecordRepository for SQLite.
type recordRepository struct {
	db *DB
}

// NewRecordRepository creates a new SQLite journal record repository.
func NewRecordRepository(db *DB) repository.RecordRepository {
	return &recordRepository{db: db}
}

const recordColumns = `r.id, r.project_id, r.parent_id, r.type, r.alias,
	r.datetime, r.finish_time, r.name, r.comments, r.base_directory, r.level`

// scanRecord reads one record row. Aliases are stored as NULL when empty so
// the partial unique index only covers named records.
func scanRecord(scan func(dest ...any) error, extra ...any) (*journal.Record, error) {
	rec := &journal.Record{}
	var typ string
	var alias, datetime, finishTime *string

	dest := []any{
		&rec.ID,
		&rec.ProjectID,
		&rec.ParentID,
		&typ,
		&alias,
		&datetime,
		&finishTime,
		&rec.Name,
		&rec.Comments,
		&rec.BaseDirectory,
		&rec.Level,
	}
	dest = append(dest, extra...)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	rec.Type = journal.RecordType(typ)
	if alias != nil {
		rec.Alias = *alias
	}
	rec.Datetime = parseNullTime(datetime)
	rec.FinishTime = parseNullTime(finishTime)
	return rec, nil
}

func nullAlias(alias string) *string {
	if alias == "" {
		return nil
	}
	return &alias
}

// Create creates a record and assigns the generated ID.
func (r *recordRepository) Create(ctx context.Context, rec *journal.Record) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO records (project_id, parent_id, type, alias, datetime,
			finish_time, name, comments, base_directory, level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ProjectID,
		rec.ParentID,
		string(rec.Type),
		nullAlias(rec.Alias),
		formatNullTime(rec.Datetime),
		formatNullTime(rec.FinishTime),
		rec.Name,
		rec.Comments,
		rec.BaseDirectory,
		rec.Level,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated,
				"record alias already exists among siblings", rec.Alias)
		}
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	rec.ID = id

	return nil
}

func (r *recordRepository) getOne(ctx context.Context, where string, args ...any) (*journal.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records r WHERE `+where, args...)
	rec, err := scanRecord(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// GetByID retrieves a record by ID.
func (r *recordRepository) GetByID(ctx context.Context, id int64) (*journal.Record, error) {
	return r.getOne(ctx, "r.id = ?", id)
}

// GetRoot retrieves the root record of a project tree.
func (r *recordRepository) GetRoot(ctx context.Context, projectID int64) (*journal.Record, error) {
	return r.getOne(ctx, "r.project_id = ? AND r.parent_id IS NULL", projectID)
}

// GetChildByAlias retrieves the non-service child with the given alias.
func (r *recordRepository) GetChildByAlias(ctx context.Context, parentID int64, alias string) (*journal.Record, error) {
	return r.getOne(ctx, "r.parent_id = ? AND r.alias = ? AND r.type <> 'service'", parentID, alias)
}

// Update updates a record row.
func (r *recordRepository) Update(ctx context.Context, rec *journal.Record) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET alias = ?, datetime = ?, finish_time = ?, name = ?, comments = ?,
			base_directory = ?
		WHERE id = ?
	`,
		nullAlias(rec.Alias),
		formatNullTime(rec.Datetime),
		formatNullTime(rec.FinishTime),
		rec.Name,
		rec.Comments,
		rec.BaseDirectory,
		rec.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrEntityDuplicated,
				"record alias already exists among siblings", rec.Alias)
		}
		return fmt.Errorf("failed to update record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// Delete deletes a record row. Children cascade.
func (r *recordRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// ChildDatetimeRange returns the datetime span over the non-service children
// of a category.
func (r *recordRepository) ChildDatetimeRange(ctx context.Context, parentID int64) (*time.Time, *time.Time, error) {
	var minStr, maxStr *string
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(datetime), MAX(datetime)
		FROM records
		WHERE parent_id = ? AND type <> 'service' AND datetime IS NOT NULL
	`, parentID).Scan(&minStr, &maxStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get child datetime range: %w", err)
	}
	return parseNullTime(minStr), parseNullTime(maxStr), nil
}

// paramText is the stored text form of a typed custom parameter value.
func paramText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(v)
	}
}

// recordFilterCond lowers a journal filter to a condition tree. Every
// declared filter becomes part of one WHERE clause.
func recordFilterCond(f *journal.Filter) repository.Cond {
	conds := []repository.Cond{
		repository.Eq{Col: "r.project_id", Val: f.ProjectID},
	}
	if f.ParentID != nil {
		conds = append(conds, repository.Eq{Col: "r.parent_id", Val: *f.ParentID})
	}
	if f.Alias != "" {
		conds = append(conds, repository.Eq{Col: "r.alias", Val: f.Alias})
	}
	if len(f.Types) > 0 {
		vals := make([]any, len(f.Types))
		for i, t := range f.Types {
			vals[i] = string(t)
		}
		conds = append(conds, repository.In{Col: "r.type", Vals: vals})
	}
	if f.Name != "" {
		conds = append(conds, repository.Like{Col: "r.name", Sub: f.Name})
	}
	if len(f.Hashtags) > 0 {
		placeholders := ""
		args := make([]any, 0, len(f.Hashtags))
		for i, h := range f.Hashtags {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, h)
		}
		sub := `r.id IN (
			SELECT rh.record_id FROM record_hashtags rh
			JOIN hashtags h ON h.id = rh.hashtag_id
			WHERE h.description IN (` + placeholders + `)`
		if f.Logic == journal.HashtagAnd {
			sub += `
			GROUP BY rh.record_id
			HAVING COUNT(DISTINCT h.id) = ?`
			args = append(args, len(f.Hashtags))
		}
		sub += `
		)`
		conds = append(conds, repository.Raw{SQL: sub, Args: args})
	}
	if !f.Datetime.IsAlways() {
		conds = append(conds, repository.IntervalCond("r.datetime",
			f.Datetime.Bounds(), f.Datetime.IncludesMinusInfinity()))
	}
	for identifier, value := range f.Custom {
		conds = append(conds, repository.Raw{
			SQL: `EXISTS (SELECT 1 FROM record_params rp
				WHERE rp.record_id = r.id AND rp.identifier = ? AND rp.value = ?)`,
			Args: []any{identifier, paramText(value)},
		})
	}
	return repository.And(conds...)
}

// Search returns records matching the filter in datetime order with the
// per-user checked flag joined in. One query.
func (r *recordRepository) Search(ctx context.Context, f *journal.Filter, opts repository.ListOptions) ([]*journal.Record, error) {
	where, args := repository.SQL(recordFilterCond(f))
	query := `
		SELECT ` + recordColumns + `, rc.user_id IS NOT NULL
		FROM records r
		LEFT JOIN record_checked rc ON rc.record_id = r.id AND rc.user_id = ?
		WHERE ` + where + `
		ORDER BY r.datetime ASC, r.id ASC` + limitClause(opts)

	allArgs := append([]any{f.UserID}, timeArgs(args)...)
	rows, err := r.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	var records []*journal.Record
	for rows.Next() {
		var checked int
		rec, serr := scanRecord(rows.Scan, &checked)
		if serr != nil {
			return nil, fmt.Errorf("failed to scan record: %w", serr)
		}
		rec.Checked = checked != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// CountSearch returns the number of matching records. One query.
func (r *recordRepository) CountSearch(ctx context.Context, f *journal.Filter) (int64, error) {
	where, args := repository.SQL(recordFilterCond(f))
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records r WHERE `+where, timeArgs(args)...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, nil
}

// ReferenceDatetimes returns the datetimes of records carrying any of the
// hashtags, capped at limit+1 rows so the caller can detect cap overflow.
func (r *recordRepository) ReferenceDatetimes(ctx context.Context, projectID int64, hashtags []string, limit int) ([]time.Time, error) {
	if len(hashtags) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := []any{projectID}
	for i, h := range hashtags {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, h)
	}
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT r.datetime
		FROM records r
		JOIN record_hashtags rh ON rh.record_id = r.id
		JOIN hashtags h ON h.id = rh.hashtag_id
		WHERE r.project_id = ? AND h.description IN (`+placeholders+`)
			AND r.datetime IS NOT NULL
		ORDER BY r.datetime ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference datetimes: %w", err)
	}
	defer rows.Close()

	var refs []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan reference datetime: %w", err)
		}
		t, perr := parseTime(s)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse reference datetime: %w", perr)
		}
		refs = append(refs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reference datetimes: %w", err)
	}
	return refs, nil
}

// SetChecked stores the per-user checked flag.
func (r *recordRepository) SetChecked(ctx context.Context, recordID, userID int64, checked bool) error {
	var err error
	if checked {
		_, err = r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO record_checked (record_id, user_id) VALUES (?, ?)`,
			recordID, userID)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM record_checked WHERE record_id = ? AND user_id = ?`,
			recordID, userID)
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to set checked flag: %w", err)
	}
	return nil
}

// SetParam upserts the stored text form of one custom parameter value.
func (r *recordRepository) SetParam(ctx context.Context, recordID int64, identifier, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO record_params (record_id, identifier, value)
		VALUES (?, ?, ?)
		ON CONFLICT (record_id, identifier) DO UPDATE SET value = excluded.value
	`, recordID, identifier, value)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEntityNotFound
		}
		return fmt.Errorf("failed to set record parameter: %w", err)
	}
	return nil
}

// DeleteParam removes one custom parameter value.
func (r *recordRepository) DeleteParam(ctx context.Context, recordID int64, identifier string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM record_params WHERE record_id = ? AND identifier = ?`,
		recordID, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete record parameter: %w", err)
	}
	return nil
}

// ParamsForRecords returns the stored custom parameter values keyed by
// record. One query.
func (r *recordRepository) ParamsForRecords(ctx context.Context, recordIDs []int64) (map[int64]map[string]string, error) {
	out := make(map[int64]map[string]string, len(recordIDs))
	if len(recordIDs) == 0 {
		return out, nil
	}

	placeholders := ""
	args := make([]any, len(recordIDs))
	for i, id := range recordIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT record_id, identifier, value
		FROM record_params
		WHERE record_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list record parameters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID int64
		var identifier, value string
		if err := rows.Scan(&recordID, &identifier, &value); err != nil {
			return nil, fmt.Errorf("failed to scan record parameter: %w", err)
		}
		if out[recordID] == nil {
			out[recordID] = make(map[string]string)
		}
		out[recordID][identifier] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record parameters: %w", err)
	}
	return out, nil
}

// Ensure recordRepository implements repository.RecordRepository.
var _ repository.RecordRepository = (*recordRepository)(nil)
