package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/domain"
)

// countingReader serves rows from a slice and counts backend queries.
type countingReader struct {
	rows    []string
	queries int
	lastQ   Query
}

func (r *countingReader) window(q Query) []string {
	from := q.Offset
	if from > int64(len(r.rows)) {
		from = int64(len(r.rows))
	}
	to := int64(len(r.rows))
	if q.Limit >= 0 && from+q.Limit < to {
		to = from + q.Limit
	}
	return r.rows[from:to]
}

func (r *countingReader) Read(ctx context.Context, q Query) ([]string, error) {
	r.queries++
	r.lastQ = q
	return r.window(q), nil
}

func (r *countingReader) Count(ctx context.Context, q Query) (int64, error) {
	r.queries++
	r.lastQ = q
	return int64(len(r.rows)), nil
}

func (r *countingReader) GetByID(ctx context.Context, q Query, id int64) (string, error) {
	r.queries++
	r.lastQ = q
	if id < 1 || id > int64(len(r.rows)) {
		return "", domain.ErrEntityNotFound
	}
	return r.rows[id-1], nil
}

func (r *countingReader) GetByAlias(ctx context.Context, q Query, alias string) (string, error) {
	r.queries++
	r.lastQ = q
	for _, row := range r.rows {
		if row == alias {
			return row, nil
		}
	}
	return "", domain.ErrEntityNotFound
}

var _ Reader[string] = (*countingReader)(nil)

func newTestSet(hasAlias bool) (*Set[string], *countingReader) {
	reader := &countingReader{rows: []string{"alpha", "beta", "gamma", "delta"}}
	allowed := map[string]FilterSpec{
		"name": {},
		"positive": {Check: func(value any) error {
			if n, ok := value.(int); !ok || n <= 0 {
				return domain.NewFieldError("positive", "must be a positive integer")
			}
			return nil
		}},
	}
	return NewSet[string](reader, allowed, hasAlias), reader
}

func TestSet_Filters(t *testing.T) {
	s, reader := newTestSet(false)

	t.Run("undeclared filter", func(t *testing.T) {
		assert.ErrorIs(t, s.SetFilter("shoe_size", 44), domain.ErrFieldInvalid)
	})

	t.Run("filter predicate rejects bad values", func(t *testing.T) {
		assert.ErrorIs(t, s.SetFilter("positive", -1), domain.ErrFieldInvalid)
		assert.NoError(t, s.SetFilter("positive", 3))
	})

	t.Run("assigned filters reach the backend", func(t *testing.T) {
		require.NoError(t, s.SetFilter("name", "al"))
		_, err := s.Len(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "al", reader.lastQ.Filters["name"])

		s.ClearFilter("name")
		_, err = s.Len(context.Background())
		require.NoError(t, err)
		assert.NotContains(t, reader.lastQ.Filters, "name")
	})
}

func TestSet_SingleQueryOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("len", func(t *testing.T) {
		s, reader := newTestSet(false)
		n, err := s.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.Equal(t, 1, reader.queries)
	})

	t.Run("at", func(t *testing.T) {
		s, reader := newTestSet(false)
		row, err := s.At(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "gamma", row)
		assert.Equal(t, 1, reader.queries)
	})

	t.Run("at out of range", func(t *testing.T) {
		s, _ := newTestSet(false)
		_, err := s.At(ctx, 100)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("negative index", func(t *testing.T) {
		s, reader := newTestSet(false)
		_, err := s.At(ctx, -1)
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
		assert.Zero(t, reader.queries, "rejected before the backend")
	})

	t.Run("slice", func(t *testing.T) {
		s, reader := newTestSet(false)
		rows, err := s.Slice(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"beta", "gamma"}, rows)
		assert.Equal(t, 1, reader.queries)
	})

	t.Run("empty slice issues no query", func(t *testing.T) {
		s, reader := newTestSet(false)
		rows, err := s.Slice(ctx, 3, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Zero(t, reader.queries)
	})

	t.Run("non-trivial stride", func(t *testing.T) {
		s, _ := newTestSet(false)
		_, err := s.SliceStep(ctx, 0, 4, 2)
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})

	t.Run("negative slice bounds", func(t *testing.T) {
		s, _ := newTestSet(false)
		_, err := s.Slice(ctx, -1, 3)
		assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	})
}

func TestSet_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		s, reader := newTestSet(true)
		row, err := s.Get(ctx, int64(2))
		require.NoError(t, err)
		assert.Equal(t, "beta", row)
		assert.Equal(t, 1, reader.queries)
	})

	t.Run("plain int lookups coerce", func(t *testing.T) {
		s, _ := newTestSet(true)
		row, err := s.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "beta", row)
	})

	t.Run("by alias", func(t *testing.T) {
		s, reader := newTestSet(true)
		row, err := s.Get(ctx, "gamma")
		require.NoError(t, err)
		assert.Equal(t, "gamma", row)
		assert.Equal(t, 1, reader.queries)
	})

	t.Run("alias lookup without an alias field", func(t *testing.T) {
		s, reader := newTestSet(false)
		_, err := s.Get(ctx, "gamma")
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
		assert.Zero(t, reader.queries)
	})

	t.Run("unsupported lookup type", func(t *testing.T) {
		s, _ := newTestSet(true)
		_, err := s.Get(ctx, 3.14)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})
}
