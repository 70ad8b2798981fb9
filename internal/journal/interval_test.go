package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at builds a test instant n hours past a fixed origin.
func at(n int) time.Time {
	origin := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return origin.Add(time.Duration(n) * time.Hour)
}

func TestInterval_Constructors(t *testing.T) {
	assert.True(t, Never().IsNever())
	assert.False(t, Never().Contains(at(0)))

	assert.True(t, Always().IsAlways())
	assert.True(t, Always().Contains(at(-1000)))
	assert.True(t, Always().Contains(at(1000)))

	r := Range(at(1), at(3))
	assert.False(t, r.Contains(at(0)))
	assert.True(t, r.Contains(at(1)))
	assert.True(t, r.Contains(at(2)))
	assert.True(t, r.Contains(at(3)))
	assert.False(t, r.Contains(at(4)))

	// Inverted ranges collapse to the empty interval.
	assert.True(t, Range(at(3), at(1)).IsNever())

	least := AtLeast(at(5))
	assert.False(t, least.Contains(at(4)))
	assert.True(t, least.Contains(at(5)))
	assert.True(t, least.Contains(at(500)))

	most := AtMost(at(5))
	assert.True(t, most.Contains(at(-500)))
	assert.True(t, most.Contains(at(5)))
	assert.False(t, most.Contains(at(6)))
}

func TestInterval_And(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want Interval
	}{
		{
			name: "overlapping ranges",
			a:    Range(at(0), at(4)),
			b:    Range(at(2), at(6)),
			want: Range(at(2), at(4)),
		},
		{
			name: "disjoint ranges",
			a:    Range(at(0), at(1)),
			b:    Range(at(3), at(4)),
			want: Never(),
		},
		{
			name: "range inside range",
			a:    Range(at(0), at(10)),
			b:    Range(at(3), at(4)),
			want: Range(at(3), at(4)),
		},
		{
			name: "ray cuts range",
			a:    AtLeast(at(2)),
			b:    Range(at(0), at(5)),
			want: Range(at(2), at(5)),
		},
		{
			name: "opposite rays",
			a:    AtLeast(at(1)),
			b:    AtMost(at(4)),
			want: Range(at(1), at(4)),
		},
		{
			name: "always is the identity",
			a:    Always(),
			b:    Range(at(1), at(2)),
			want: Range(at(1), at(2)),
		},
		{
			name: "never annihilates",
			a:    Never(),
			b:    Range(at(1), at(2)),
			want: Never(),
		},
		{
			name: "idempotent",
			a:    Range(at(1), at(2)),
			b:    Range(at(1), at(2)),
			want: Range(at(1), at(2)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.a.And(tt.b).Equal(tt.want))
			// Intersection commutes.
			assert.True(t, tt.b.And(tt.a).Equal(tt.want))
		})
	}
}

func TestInterval_Or(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want Interval
	}{
		{
			name: "overlapping ranges merge",
			a:    Range(at(0), at(4)),
			b:    Range(at(2), at(6)),
			want: Range(at(0), at(6)),
		},
		{
			name: "disjoint ranges stay apart",
			a:    Range(at(0), at(1)),
			b:    Range(at(3), at(4)),
			want: Range(at(0), at(1)).Or(Range(at(3), at(4))),
		},
		{
			name: "always absorbs",
			a:    Always(),
			b:    Range(at(1), at(2)),
			want: Always(),
		},
		{
			name: "never is the identity",
			a:    Never(),
			b:    AtMost(at(2)),
			want: AtMost(at(2)),
		},
		{
			name: "idempotent",
			a:    AtLeast(at(3)),
			b:    AtLeast(at(3)),
			want: AtLeast(at(3)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.a.Or(tt.b).Equal(tt.want))
			assert.True(t, tt.b.Or(tt.a).Equal(tt.want))
		})
	}

	t.Run("disjoint union membership", func(t *testing.T) {
		u := Range(at(0), at(1)).Or(Range(at(3), at(4)))
		assert.True(t, u.Contains(at(0)))
		assert.True(t, u.Contains(at(1)))
		assert.False(t, u.Contains(at(2)))
		assert.True(t, u.Contains(at(3)))
		assert.False(t, u.Contains(at(5)))
	})

	t.Run("rays covering the line", func(t *testing.T) {
		u := AtMost(at(5)).Or(AtLeast(at(3)))
		assert.True(t, u.IsAlways())
	})
}

func TestWindowFromReferences(t *testing.T) {
	t.Run("no references yields never", func(t *testing.T) {
		w := WindowFromReferences(nil, time.Hour, 2*time.Hour)
		assert.True(t, w.IsNever())
	})

	t.Run("single reference", func(t *testing.T) {
		w := WindowFromReferences([]time.Time{at(0)}, time.Hour, 3*time.Hour)
		assert.False(t, w.Contains(at(0)))
		assert.True(t, w.Contains(at(1)))
		assert.True(t, w.Contains(at(3)))
		assert.False(t, w.Contains(at(4)))
	})

	t.Run("overlapping windows merge", func(t *testing.T) {
		refs := []time.Time{at(0), at(2)}
		w := WindowFromReferences(refs, time.Hour, 3*time.Hour)
		require.True(t, w.Equal(Range(at(1), at(5))))
	})

	t.Run("negative gap reaches before the reference", func(t *testing.T) {
		w := WindowFromReferences([]time.Time{at(10)}, -time.Hour, time.Hour)
		assert.True(t, w.Contains(at(9)))
		assert.True(t, w.Contains(at(10)))
		assert.True(t, w.Contains(at(11)))
		assert.False(t, w.Contains(at(12)))
	})
}
