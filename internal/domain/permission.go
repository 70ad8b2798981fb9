package domain

import "net/http"

// AccessLevel is the symbolic alias of a project or application access level.
type AccessLevel string

// Project access levels, ordered from weakest to strongest.
const (
	LevelNoAccess    AccessLevel = "no_access"
	LevelDataView    AccessLevel = "data_view"
	LevelDataProcess AccessLevel = "data_process"
	LevelDataAdd     AccessLevel = "data_add"
	LevelDataFull    AccessLevel = "data_full"
	LevelFull        AccessLevel = "full"
)

// Application access levels. This lattice is disjoint from the project one
// and gates attaching applications to projects rather than data requests.
const (
	AppLevelAdd                AccessLevel = "add"
	AppLevelPermissionRequired AccessLevel = "permission_required"
	AppLevelUsage              AccessLevel = "usage"
	AppLevelNoAccess           AccessLevel = "no_access"
)

// LevelType discriminates the two access-level lattices.
type LevelType string

const (
	LevelTypeProject LevelType = "prj"
	LevelTypeApp     LevelType = "app"
)

// levelWeights orders project levels for maximum-of-levels resolution.
var levelWeights = map[AccessLevel]int{
	LevelNoAccess:    0,
	LevelDataView:    1,
	LevelDataProcess: 2,
	LevelDataAdd:     3,
	LevelDataFull:    4,
	LevelFull:        5,
}

// Weight returns the comparison weight of a project access level.
// Unknown levels weigh zero.
func (l AccessLevel) Weight() int {
	return levelWeights[l]
}

// Max returns the stronger of two project access levels.
func (l AccessLevel) Max(other AccessLevel) AccessLevel {
	if other.Weight() > l.Weight() {
		return other
	}
	return l
}

// IsValidProjectLevel reports whether the alias names a project level.
func (l AccessLevel) IsValidProjectLevel() bool {
	_, ok := levelWeights[l]
	return ok
}

// AccessLevelRecord is a read-only seed row describing one access level.
type AccessLevelRecord struct {
	ID    int64       `json:"id"`
	Type  LevelType   `json:"type"`
	Alias AccessLevel `json:"alias"`
	Name  string      `json:"name"`
}

// Permission is one ACL entry: (project, group or the sentinel "all other
// users" entry, level). A nil GroupID denotes the sentinel entry carrying
// the project default level. The root group's full permission is implicit
// and never stored.
type Permission struct {
	ID        int64       `json:"id"`
	ProjectID int64       `json:"project_id"`
	GroupID   *int64      `json:"group_id"`
	Group     *Group      `json:"group,omitempty"`
	LevelType LevelType   `json:"level_type"`
	Level     AccessLevel `json:"level"`
}

// IsDefault reports whether this is the sentinel "all other users" entry.
func (p *Permission) IsDefault() bool {
	return p.GroupID == nil
}

// DataGatheringWay tells how a data view acquires its records and therefore
// which HTTP methods the data_process level may use.
type DataGatheringWay string

const (
	// GatheringUploading marks views whose data arrive by upload; writing
	// needs at least data_add.
	GatheringUploading DataGatheringWay = "uploading"

	// GatheringProcessing marks views whose data are derived by computation;
	// data_process may write.
	GatheringProcessing DataGatheringWay = "processing"
)

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

var writeMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// MethodAllowed applies the level/mode table: full and data_full pass every
// method, DELETE requires one of those two, data_add writes in both modes,
// data_process writes only for processing views, data_view reads only.
func MethodAllowed(level AccessLevel, way DataGatheringWay, method string) bool {
	switch level {
	case LevelFull, LevelDataFull:
		return true
	case LevelDataAdd:
		return safeMethods[method] || writeMethods[method]
	case LevelDataProcess:
		if safeMethods[method] {
			return true
		}
		return way == GatheringProcessing && writeMethods[method]
	case LevelDataView:
		return safeMethods[method]
	default:
		return false
	}
}
