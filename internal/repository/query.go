// Package repository defines data access interfaces for corefacility.
// This file contains the condition tree that entity-set filters lower to.
// Conditions emit parameterized SQL only; user input never reaches the
// query text.
package repository

import (
	"strings"
	"time"
)

// Cond is one node of a WHERE condition tree.
type Cond interface {
	build(sb *strings.Builder, args *[]any)
}

// Eq matches a column against a value.
type Eq struct {
	Col string
	Val any
}

func (c Eq) build(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" = ?")
	*args = append(*args, c.Val)
}

// Ne matches rows whose column differs from the value.
type Ne struct {
	Col string
	Val any
}

func (c Ne) build(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" <> ?")
	*args = append(*args, c.Val)
}

// Lte matches column <= value.
type Lte struct {
	Col string
	Val any
}

func (c Lte) build(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" <= ?")
	*args = append(*args, c.Val)
}

// Gte matches column >= value.
type Gte struct {
	Col string
	Val any
}

func (c Gte) build(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" >= ?")
	*args = append(*args, c.Val)
}

// Like matches a column against a substring.
type Like struct {
	Col string
	Sub string
}

func (c Like) build(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" LIKE ?")
	*args = append(*args, "%"+escapeLike(c.Sub)+"%")
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// IsNull matches rows whose column is NULL.
type IsNull struct{ Col string }

func (c IsNull) build(sb *strings.Builder, _ *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" IS NULL")
}

// NotNull matches rows whose column is not NULL.
type NotNull struct{ Col string }

func (c NotNull) build(sb *strings.Builder, _ *[]any) {
	sb.WriteString(c.Col)
	sb.WriteString(" IS NOT NULL")
}

// In matches a column against a value list. An empty list matches nothing.
type In struct {
	Col  string
	Vals []any
}

func (c In) build(sb *strings.Builder, args *[]any) {
	if len(c.Vals) == 0 {
		sb.WriteString("1=0")
		return
	}
	sb.WriteString(c.Col)
	sb.WriteString(" IN (")
	for i, v := range c.Vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		*args = append(*args, v)
	}
	sb.WriteString(")")
}

// Raw injects a fixed SQL fragment with bound arguments. The fragment is a
// code constant, never user input.
type Raw struct {
	SQL  string
	Args []any
}

func (c Raw) build(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.SQL)
	*args = append(*args, c.Args...)
}

type junction struct {
	op    string
	conds []Cond
}

func (c junction) build(sb *strings.Builder, args *[]any) {
	if len(c.conds) == 0 {
		sb.WriteString("1=1")
		return
	}
	for i, cond := range c.conds {
		if i > 0 {
			sb.WriteString(c.op)
		}
		sb.WriteString("(")
		cond.build(sb, args)
		sb.WriteString(")")
	}
}

// And conjoins conditions. An empty conjunction matches everything.
func And(conds ...Cond) Cond { return junction{op: " AND ", conds: conds} }

// Or disjoins conditions. An empty disjunction matches everything.
func Or(conds ...Cond) Cond { return junction{op: " OR ", conds: conds} }

// SQL lowers a condition tree to a parameterized WHERE fragment.
func SQL(c Cond) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, 8)
	c.build(&sb, &args)
	return sb.String(), args
}

// IntervalCond lowers a complex interval to a disjunction of closed ranges
// on the column: the leading "col <= t0" term is present iff the interval
// includes minus infinity, interior boundary pairs become closed ranges and
// a trailing unpaired boundary becomes an open-ended "col >= tN" term. The
// empty interval lowers to 1=0; the full interval to col IS NOT NULL.
func IntervalCond(col string, bounds []time.Time, includesMinusInf bool) Cond {
	if len(bounds) == 0 {
		if includesMinusInf {
			return NotNull{Col: col}
		}
		return Raw{SQL: "1=0"}
	}
	var terms []Cond
	i := 0
	if includesMinusInf {
		terms = append(terms, Lte{Col: col, Val: bounds[0]})
		i = 1
	}
	for ; i+1 < len(bounds); i += 2 {
		terms = append(terms, And(
			Gte{Col: col, Val: bounds[i]},
			Lte{Col: col, Val: bounds[i+1]},
		))
	}
	if i < len(bounds) {
		terms = append(terms, Gte{Col: col, Val: bounds[i]})
	}
	return Or(terms...)
}
