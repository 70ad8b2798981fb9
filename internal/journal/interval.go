package journal

import "time"

// Interval is a complex temporal interval: a strictly increasing sequence
// of boundary timestamps plus a flag telling whether the interval includes
// minus infinity. Each boundary toggles membership, so the structure
// represents any finite union of closed intervals and rays and is closed
// under intersection and union.
type Interval struct {
	bounds   []time.Time
	minusInf bool
}

// Never returns the empty interval.
func Never() Interval {
	return Interval{}
}

// Always returns the interval covering every instant.
func Always() Interval {
	return Interval{minusInf: true}
}

// Range returns the closed interval [from, to]. An inverted range is empty.
func Range(from, to time.Time) Interval {
	if to.Before(from) {
		return Never()
	}
	return Interval{bounds: []time.Time{from, to}}
}

// AtLeast returns the ray [from, +inf).
func AtLeast(from time.Time) Interval {
	return Interval{bounds: []time.Time{from}}
}

// AtMost returns the ray (-inf, to].
func AtMost(to time.Time) Interval {
	return Interval{bounds: []time.Time{to}, minusInf: true}
}

// Bounds returns the boundary sequence. Callers must not mutate it.
func (i Interval) Bounds() []time.Time { return i.bounds }

// IncludesMinusInfinity reports membership at minus infinity.
func (i Interval) IncludesMinusInfinity() bool { return i.minusInf }

// IsNever reports whether the interval is empty.
func (i Interval) IsNever() bool {
	return !i.minusInf && len(i.bounds) == 0
}

// IsAlways reports whether the interval covers every instant.
func (i Interval) IsAlways() bool {
	return i.minusInf && len(i.bounds) == 0
}

// Contains reports whether the instant belongs to the interval. Boundary
// instants always belong: the represented intervals are closed.
func (i Interval) Contains(t time.Time) bool {
	member := i.minusInf
	for _, b := range i.bounds {
		if b.Equal(t) {
			return true
		}
		if b.After(t) {
			break
		}
		member = !member
	}
	return member
}

// And returns the intersection of two intervals.
func (i Interval) And(other Interval) Interval {
	return combine(i, other, func(a, b bool) bool { return a && b })
}

// Or returns the union of two intervals.
func (i Interval) Or(other Interval) Interval {
	return combine(i, other, func(a, b bool) bool { return a || b })
}

// combine sweeps the boundary sequences of both operands in ascending
// order, toggling per-operand membership and emitting a boundary whenever
// the combined membership changes. Boundaries shared by both operands are
// processed in one sweep step, so x AND x = x and x OR x = x hold exactly.
func combine(x, y Interval, op func(a, b bool) bool) Interval {
	inX, inY := x.minusInf, y.minusInf
	out := Interval{minusInf: op(inX, inY)}
	member := out.minusInf

	xi, yi := 0, 0
	for xi < len(x.bounds) || yi < len(y.bounds) {
		var at time.Time
		takeX := xi < len(x.bounds)
		takeY := yi < len(y.bounds)
		switch {
		case takeX && takeY && x.bounds[xi].Equal(y.bounds[yi]):
			at = x.bounds[xi]
			inX, inY = !inX, !inY
			xi++
			yi++
		case takeX && (!takeY || x.bounds[xi].Before(y.bounds[yi])):
			at = x.bounds[xi]
			inX = !inX
			xi++
		default:
			at = y.bounds[yi]
			inY = !inY
			yi++
		}
		if next := op(inX, inY); next != member {
			out.bounds = append(out.bounds, at)
			member = next
		}
	}
	return out
}

// Equal reports whether two intervals have identical representations.
func (i Interval) Equal(other Interval) bool {
	if i.minusInf != other.minusInf || len(i.bounds) != len(other.bounds) {
		return false
	}
	for k := range i.bounds {
		if !i.bounds[k].Equal(other.bounds[k]) {
			return false
		}
	}
	return true
}
