package journal

import (
	"fmt"
	"strconv"

	"github.com/serik1987/corefacility/internal/domain"
)

// DescriptorType is the value class of a custom record parameter.
type DescriptorType string

// Custom parameter value classes.
const (
	DescriptorNumber   DescriptorType = "number"
	DescriptorDiscrete DescriptorType = "discrete"
	DescriptorBoolean  DescriptorType = "boolean"
	DescriptorString   DescriptorType = "string"
)

// maxStringValueLen bounds string custom parameter values.
const maxStringValueLen = 256

// Descriptor is a user-defined parameter declaration attached to a
// category. Records below the category may carry a value for it.
type Descriptor struct {
	// ID is the unique identifier for the descriptor (auto-generated).
	ID int64 `json:"id"`

	// CategoryID is the declaring category record.
	CategoryID int64 `json:"category_id"`

	// Identifier names the parameter; records address it as
	// custom_<identifier>.
	Identifier string `json:"identifier"`

	// Type is the value class.
	Type DescriptorType `json:"type"`

	// Default is the serialized default value, empty when none.
	Default string `json:"default,omitempty"`

	// Values lists the admissible aliases of discrete descriptors.
	Values []string `json:"values,omitempty"`
}

// Coerce converts a raw assigned value to the descriptor's value class.
// Unknown discrete aliases, malformed numbers and over-long strings fail
// with a field error naming custom_<identifier>.
func (d *Descriptor) Coerce(value any) (any, error) {
	field := "custom_" + d.Identifier
	switch d.Type {
	case DescriptorNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, domain.NewFieldError(field, "must be a number")
			}
			return f, nil
		default:
			return nil, domain.NewFieldError(field, "must be a number")
		}
	case DescriptorBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, domain.NewFieldError(field, "must be a boolean")
			}
			return b, nil
		default:
			return nil, domain.NewFieldError(field, "must be a boolean")
		}
	case DescriptorDiscrete:
		s, ok := value.(string)
		if !ok {
			return nil, domain.NewFieldError(field, "must be a discrete value alias")
		}
		for _, admissible := range d.Values {
			if s == admissible {
				return s, nil
			}
		}
		return nil, domain.NewFieldError(field, "is not an admissible discrete value")
	case DescriptorString:
		s, ok := value.(string)
		if !ok {
			return nil, domain.NewFieldError(field, "must be a string")
		}
		if len(s) > maxStringValueLen {
			return nil, domain.NewFieldError(field,
				fmt.Sprintf("longer than %d characters", maxStringValueLen))
		}
		return s, nil
	default:
		return nil, domain.NewFieldError(field, "has an unknown descriptor type")
	}
}

// ComputeDescriptors merges the descriptor lists of a record's ancestor
// categories, ordered root first. A descriptor re-declared by a nearer
// ancestor overrides the inherited one at the identifier level.
func ComputeDescriptors(ancestors [][]*Descriptor) map[string]*Descriptor {
	merged := make(map[string]*Descriptor)
	for _, level := range ancestors {
		for _, d := range level {
			merged[d.Identifier] = d
		}
	}
	return merged
}

// DefaultValues derives the default-values map of a record: each inherited
// descriptor contributes its default, overridden by the nearest ancestor
// category that carries its own value for the identifier. ancestorValues is
// ordered root first.
func DefaultValues(descriptors map[string]*Descriptor, ancestorValues []map[string]any) map[string]any {
	defaults := make(map[string]any, len(descriptors))
	for id, d := range descriptors {
		if d.Default != "" {
			if v, err := d.Coerce(d.Default); err == nil {
				defaults[id] = v
			}
		}
	}
	for _, values := range ancestorValues {
		for id, v := range values {
			if _, declared := descriptors[id]; declared {
				defaults[id] = v
			}
		}
	}
	return defaults
}
