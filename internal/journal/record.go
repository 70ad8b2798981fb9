// Package journal contains the laboratory journal record tree: a
// path-addressable hierarchy of category, data and service records with
// per-category parameter descriptors, hashtag indexing and temporal
// interval filtering.
package journal

import (
	"regexp"
	"time"
)

// RecordType tags the record variants.
type RecordType string

// Record variants. Root is the single per-project tree root; categories
// group children and aggregate their timestamps; data records carry custom
// parameters and hashtags; service records are unnamed annotations outside
// the alias uniqueness constraint.
const (
	TypeRoot     RecordType = "root"
	TypeCategory RecordType = "category"
	TypeData     RecordType = "data"
	TypeService  RecordType = "service"
)

// SegmentPattern constrains record aliases (path segments).
var SegmentPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)

// Record is one node of the journal tree.
type Record struct {
	// ID is the unique identifier for the record (auto-generated).
	ID int64 `json:"id"`

	// ProjectID is the project owning the tree.
	ProjectID int64 `json:"project_id"`

	// ParentID is the parent category; nil only for the root record.
	ParentID *int64 `json:"parent_id"`

	// Type tags the record variant.
	Type RecordType `json:"type"`

	// Alias is the path segment, unique among non-service siblings.
	// Empty for root and service records.
	Alias string `json:"alias,omitempty"`

	// Datetime is the record instant. For categories it is maintained as
	// the minimum of the children's datetimes; nil while a category has no
	// dated children.
	Datetime *time.Time `json:"datetime"`

	// FinishTime is maintained for categories as the maximum of the
	// children's datetimes.
	FinishTime *time.Time `json:"finish_time,omitempty"`

	// Name is the display name of service records.
	Name string `json:"name,omitempty"`

	// Comments holds free-form notes on root, category and service records.
	Comments string `json:"comments,omitempty"`

	// BaseDirectory is the data directory of root and category records.
	BaseDirectory string `json:"base_directory,omitempty"`

	// Level is the tree depth: root is 0, each child one deeper.
	Level int `json:"level"`

	// Path is the slash-joined concatenation of ancestor aliases, starting
	// with "/". Computed at wrap time, not stored.
	Path string `json:"path"`

	// RelativeTime is the offset of Datetime from the parent category's
	// datetime. Computed at wrap time. Nil when either side is undated.
	RelativeTime *time.Duration `json:"relative_time,omitempty"`

	// Checked is the per-user checked flag, populated when the record set
	// carries a user context.
	Checked bool `json:"checked"`

	// CustomValues holds the typed custom parameter values of data records,
	// keyed by descriptor identifier.
	CustomValues map[string]any `json:"custom_values,omitempty"`

	// Hashtags lists the hashtag descriptions attached to the record.
	Hashtags []string `json:"hashtags,omitempty"`
}

// NewRoot creates the root record of a project tree.
func NewRoot(projectID int64) *Record {
	return &Record{
		ProjectID: projectID,
		Type:      TypeRoot,
		Level:     0,
		Path:      "/",
	}
}

// IsService reports whether the record is excluded from alias uniqueness
// and timestamp aggregation.
func (r *Record) IsService() bool {
	return r.Type == TypeService
}

// IsCategoryLike reports whether the record may hold children.
func (r *Record) IsCategoryLike() bool {
	return r.Type == TypeRoot || r.Type == TypeCategory
}

// HashtagLogic selects how multiple hashtags combine in a record filter.
type HashtagLogic string

// Hashtag combination modes.
const (
	HashtagAnd HashtagLogic = "and"
	HashtagOr  HashtagLogic = "or"
)

// Hashtag is one per-project tag attachable to journal records.
type Hashtag struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
}
