package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/journal"
	"github.com/serik1987/corefacility/internal/repository"
)

// descriptorRepository implements repository.DescriptorRepository for SQLite.
type descriptorRepository struct {
	db *DB
}

// NewDescriptorRepository creates a new SQLite descriptor repository.
func NewDescriptorRepository(db *DB) repository.DescriptorRepository {
	return &descriptorRepository{db: db}
}

// Create creates a descriptor with its discrete value aliases.
func (r *descriptorRepository) Create(ctx context.Context, d *journal.Descriptor) error {
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO descriptors (category_id, identifier, type, default_value)
			VALUES (?, ?, ?, ?)
		`, d.CategoryID, d.Identifier, string(d.Type), d.Default)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.NewDomainError(domain.ErrEntityDuplicated,
					"descriptor identifier already declared on this category", d.Identifier)
			}
			if isForeignKeyViolation(err) {
				return domain.ErrEntityNotFound
			}
			return fmt.Errorf("failed to create descriptor: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		d.ID = id

		return r.replaceValues(ctx, d)
	})
}

func (r *descriptorRepository) replaceValues(ctx context.Context, d *journal.Descriptor) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM descriptor_values WHERE descriptor_id = ?`, d.ID); err != nil {
		return fmt.Errorf("failed to clear descriptor values: %w", err)
	}
	for _, alias := range d.Values {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO descriptor_values (descriptor_id, alias) VALUES (?, ?)`,
			d.ID, alias); err != nil {
			return fmt.Errorf("failed to insert descriptor value: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a descriptor with its value aliases.
func (r *descriptorRepository) GetByID(ctx context.Context, id int64) (*journal.Descriptor, error) {
	d := &journal.Descriptor{}
	var typ string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, identifier, type, default_value
		FROM descriptors WHERE id = ?
	`, id).Scan(&d.ID, &d.CategoryID, &d.Identifier, &typ, &d.Default)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get descriptor: %w", err)
	}
	d.Type = journal.DescriptorType(typ)

	rows, err := r.db.QueryContext(ctx,
		`SELECT alias FROM descriptor_values WHERE descriptor_id = ? ORDER BY alias ASC`, d.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptor values: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan descriptor value: %w", err)
		}
		d.Values = append(d.Values, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating descriptor values: %w", err)
	}
	return d, nil
}

// Update updates a descriptor and replaces its value aliases.
func (r *descriptorRepository) Update(ctx context.Context, d *journal.Descriptor) error {
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `
			UPDATE descriptors
			SET identifier = ?, type = ?, default_value = ?
			WHERE id = ?
		`, d.Identifier, string(d.Type), d.Default, d.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.NewDomainError(domain.ErrEntityDuplicated,
					"descriptor identifier already declared on this category", d.Identifier)
			}
			return fmt.Errorf("failed to update descriptor: %w", err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return domain.ErrEntityNotFound
		}
		return r.replaceValues(ctx, d)
	})
}

// Delete deletes a descriptor. Value aliases cascade.
func (r *descriptorRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM descriptors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete descriptor: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// ListForCategories returns descriptor lists keyed by category, with every
// value alias joined in. Two queries regardless of the chain length.
func (r *descriptorRepository) ListForCategories(ctx context.Context, categoryIDs []int64) (map[int64][]*journal.Descriptor, error) {
	out := make(map[int64][]*journal.Descriptor, len(categoryIDs))
	if len(categoryIDs) == 0 {
		return out, nil
	}

	placeholders := ""
	args := make([]any, len(categoryIDs))
	for i, id := range categoryIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, identifier, type, default_value
		FROM descriptors
		WHERE category_id IN (`+placeholders+`)
		ORDER BY category_id ASC, identifier ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*journal.Descriptor)
	for rows.Next() {
		d := &journal.Descriptor{}
		var typ string
		if err := rows.Scan(&d.ID, &d.CategoryID, &d.Identifier, &typ, &d.Default); err != nil {
			return nil, fmt.Errorf("failed to scan descriptor: %w", err)
		}
		d.Type = journal.DescriptorType(typ)
		byID[d.ID] = d
		out[d.CategoryID] = append(out[d.CategoryID], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating descriptors: %w", err)
	}
	if len(byID) == 0 {
		return out, nil
	}

	valueRows, err := r.db.QueryContext(ctx, `
		SELECT dv.descriptor_id, dv.alias
		FROM descriptor_values dv
		JOIN descriptors d ON d.id = dv.descriptor_id
		WHERE d.category_id IN (`+placeholders+`)
		ORDER BY dv.descriptor_id ASC, dv.alias ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptor values: %w", err)
	}
	defer valueRows.Close()

	for valueRows.Next() {
		var descriptorID int64
		var alias string
		if err := valueRows.Scan(&descriptorID, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan descriptor value: %w", err)
		}
		if d, ok := byID[descriptorID]; ok {
			d.Values = append(d.Values, alias)
		}
	}
	if err := valueRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating descriptor values: %w", err)
	}
	return out, nil
}

// Ensure descriptorRepository implements repository.DescriptorRepository.
var _ repository.DescriptorRepository = (*descriptorRepository)(nil)
