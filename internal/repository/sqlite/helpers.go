package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/serik1987/corefacility/internal/repository"
)

// Scan and formatting helpers shared by the SQLite repositories. Times are
// stored as RFC3339Nano strings in UTC, booleans as 0/1 integers.

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil
	}
	return &t
}

// prefixColumns qualifies every column in a comma-separated list with a
// table alias, for joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// limitClause renders pagination. A zero limit means no page bound.
func limitClause(opts repository.ListOptions) string {
	if opts.Limit <= 0 {
		if opts.Offset > 0 {
			return fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
		}
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
}

// timeArgs converts condition arguments so that time values bind as the
// stored RFC3339 text representation.
func timeArgs(args []any) []any {
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			args[i] = formatTime(t)
		}
	}
	return args
}
