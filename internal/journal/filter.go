package journal

import (
	"fmt"
	"time"

	"github.com/serik1987/corefacility/internal/domain"
)

// Filter is the declared filter set of the record entity set. The HTTP
// layer assembles one from query parameters; the repository lowers it to a
// single SQL query.
type Filter struct {
	// ProjectID scopes the search to one project tree. Required.
	ProjectID int64

	// ParentID restricts results to direct children of one category.
	ParentID *int64

	// Alias matches the record alias exactly.
	Alias string

	// UserID is the principal context for the per-user checked flag.
	UserID int64

	// Types restricts the record variants. Empty means all.
	Types []RecordType

	// Name is a substring match on service record names.
	Name string

	// Hashtags restricts to records carrying the listed hashtag
	// descriptions, combined per Logic.
	Hashtags []string
	Logic    HashtagLogic

	// Datetime is the complex interval constraint on record datetimes.
	// The zero Interval (never) is treated as absent.
	Datetime Interval

	// Custom restricts typed custom parameter values, keyed by descriptor
	// identifier.
	Custom map[string]any
}

// NewFilter creates a record filter scoped to one project.
func NewFilter(projectID int64) *Filter {
	return &Filter{
		ProjectID: projectID,
		Logic:     HashtagOr,
		Datetime:  Always(),
	}
}

// WindowFromReferences builds the passing interval of a hashtag-relative
// datetime filter: the union over all reference records of the window
// [r+minGap, r+maxGap]. The reference set size is capped by the caller.
func WindowFromReferences(refs []time.Time, minGap, maxGap time.Duration) Interval {
	window := Never()
	for _, r := range refs {
		window = window.Or(Range(r.Add(minGap), r.Add(maxGap)))
	}
	return window
}

// CapExceededError reports a hashtag-relative filter whose reference set
// exceeds the configured cap.
func CapExceededError(cap int) error {
	return domain.NewDomainError(domain.ErrOperationNotPermitted,
		fmt.Sprintf("hashtag reference set exceeds the configured cap of %d", cap), "")
}
