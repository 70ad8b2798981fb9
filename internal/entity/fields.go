package entity

import (
	"fmt"
	"regexp"

	"github.com/serik1987/corefacility/internal/domain"
)

// FieldKind is the value class of a declared entity field.
type FieldKind int

// Field value classes.
const (
	KindString FieldKind = iota
	KindInt
	KindBool
	KindTime
	KindReference // another entity; must not be creating or deleted
	KindManaged   // value owned by a field manager; skipped by validation
)

// FieldSpec describes one public field of an entity class: its value class,
// constraints, and whether plain assignment is allowed.
type FieldSpec struct {
	Kind     FieldKind
	Required bool

	// ReadOnly fields reject assignment except from within a provider wrap.
	ReadOnly bool

	// MinLen and MaxLen bound string lengths. MaxLen zero means unbounded.
	MinLen int
	MaxLen int

	// Pattern, when non-nil, must match the whole string value.
	Pattern *regexp.Regexp

	// Enum, when non-empty, lists the admissible string values.
	Enum []string
}

// Fields maps field names to their specifications.
type Fields map[string]FieldSpec

// Referenced is implemented by entity wrappers assigned into reference
// fields; the referenced entity must be persisted and alive.
type Referenced interface {
	State() State
}

// Validate checks a candidate value against the field specification.
func (f FieldSpec) Validate(name string, value any) error {
	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return domain.NewFieldError(name, "must be a string")
		}
		if len(s) < f.MinLen {
			return domain.NewFieldError(name, fmt.Sprintf("shorter than %d characters", f.MinLen))
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return domain.NewFieldError(name, fmt.Sprintf("longer than %d characters", f.MaxLen))
		}
		if f.Pattern != nil && s != "" && !f.Pattern.MatchString(s) {
			return domain.NewFieldError(name, "does not match the required pattern")
		}
		if len(f.Enum) > 0 {
			for _, e := range f.Enum {
				if s == e {
					return nil
				}
			}
			return domain.NewFieldError(name, "is not one of the admissible values")
		}
	case KindReference:
		ref, ok := value.(Referenced)
		if !ok || ref == nil {
			return domain.NewFieldError(name, "must reference a persisted entity")
		}
		if st := ref.State(); st == StateCreating || st == StateDeleted {
			return domain.NewFieldError(name, "references an entity that is not persisted")
		}
	}
	return nil
}

// isEmpty reports whether a value counts as missing for the required-field
// check performed on create and update.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case int64:
		return v == 0
	case int:
		return v == 0
	default:
		return false
	}
}
