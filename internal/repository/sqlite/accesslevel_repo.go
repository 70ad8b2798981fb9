package sqlite

import (
	"context"
	"fmt"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// accessLevelRepository serves the read-only access level seed data.
type accessLevelRepository struct {
	db *DB
}

// NewAccessLevelRepository creates a new SQLite access level repository.
func NewAccessLevelRepository(db *DB) repository.AccessLevelRepository {
	return &accessLevelRepository{db: db}
}

// levelSeed is the fixed content of the access_levels table. The project
// lattice orders data requests; the application lattice gates attaching
// applications to projects.
var levelSeed = []domain.AccessLevelRecord{
	{Type: domain.LevelTypeProject, Alias: domain.LevelFull, Name: "Full access"},
	{Type: domain.LevelTypeProject, Alias: domain.LevelDataFull, Name: "Dealing with data"},
	{Type: domain.LevelTypeProject, Alias: domain.LevelDataAdd, Name: "Data adding and processing only"},
	{Type: domain.LevelTypeProject, Alias: domain.LevelDataProcess, Name: "Data processing only"},
	{Type: domain.LevelTypeProject, Alias: domain.LevelDataView, Name: "Viewing the data"},
	{Type: domain.LevelTypeProject, Alias: domain.LevelNoAccess, Name: "No access"},
	{Type: domain.LevelTypeApp, Alias: domain.AppLevelAdd, Name: "Add application"},
	{Type: domain.LevelTypeApp, Alias: domain.AppLevelPermissionRequired, Name: "Application permissions"},
	{Type: domain.LevelTypeApp, Alias: domain.AppLevelUsage, Name: "Application usage"},
	{Type: domain.LevelTypeApp, Alias: domain.AppLevelNoAccess, Name: "No access"},
}

// List returns the seed rows of one lattice.
func (r *accessLevelRepository) List(ctx context.Context, t domain.LevelType) ([]*domain.AccessLevelRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, alias, name FROM access_levels WHERE type = ? ORDER BY id ASC`,
		string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list access levels: %w", err)
	}
	defer rows.Close()

	var levels []*domain.AccessLevelRecord
	for rows.Next() {
		rec := &domain.AccessLevelRecord{}
		var typ, alias string
		if err := rows.Scan(&rec.ID, &typ, &alias, &rec.Name); err != nil {
			return nil, fmt.Errorf("failed to scan access level: %w", err)
		}
		rec.Type = domain.LevelType(typ)
		rec.Alias = domain.AccessLevel(alias)
		levels = append(levels, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access levels: %w", err)
	}
	return levels, nil
}

// Seed inserts the seed rows when missing. Idempotent.
func (r *accessLevelRepository) Seed(ctx context.Context) error {
	for _, rec := range levelSeed {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO access_levels (type, alias, name)
			VALUES (?, ?, ?)
			ON CONFLICT (type, alias) DO NOTHING
		`, string(rec.Type), string(rec.Alias), rec.Name)
		if err != nil {
			return fmt.Errorf("failed to seed access level %s/%s: %w", rec.Type, rec.Alias, err)
		}
	}
	return nil
}

// Ensure accessLevelRepository implements repository.AccessLevelRepository.
var _ repository.AccessLevelRepository = (*accessLevelRepository)(nil)
