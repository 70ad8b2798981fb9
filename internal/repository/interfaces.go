// Package repository defines data access interfaces for corefacility.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/journal"
)

// ListOptions contains pagination settings for list operations.
type ListOptions struct {
	Offset int64
	Limit  int64
}

// ListResult contains a page of items with the total count.
type ListResult[T any] struct {
	Items  []*T
	Total  int64
	Offset int64
	Limit  int64
}

// =============================================================================
// User Repository
// =============================================================================

// UserFilter narrows user queries.
type UserFilter struct {
	// NameSubstring matches login, name or surname.
	NameSubstring string

	// GroupID restricts to members of one group.
	GroupID int64
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user and assigns the generated ID.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByLogin retrieves a user by login.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id int64) error

	// List returns users matching the filter, login-ascending. One query.
	List(ctx context.Context, f UserFilter, opts ListOptions) ([]*domain.User, error)

	// Count returns the number of users matching the filter. One query.
	Count(ctx context.Context, f UserFilter) (int64, error)

	// ClearExpiredActivationCodes removes activation codes past expiry.
	ClearExpiredActivationCodes(ctx context.Context, now time.Time) (int64, error)
}

// =============================================================================
// Group Repository
// =============================================================================

// GroupFilter narrows group queries.
type GroupFilter struct {
	// NameSubstring matches the group name.
	NameSubstring string

	// MemberID restricts to groups containing the user.
	MemberID int64

	// GovernorID restricts to groups governed by the user.
	GovernorID int64
}

// GroupRepository defines the interface for group and membership data access.
type GroupRepository interface {
	// Create creates a new group, assigns the generated ID and inserts the
	// governor membership row.
	Create(ctx context.Context, group *domain.Group) error

	// GetByID retrieves a group with its governor resolved in one join.
	GetByID(ctx context.Context, id int64) (*domain.Group, error)

	// Update updates an existing group.
	Update(ctx context.Context, group *domain.Group) error

	// Delete deletes a group by ID. Memberships and stored permissions
	// cascade.
	Delete(ctx context.Context, id int64) error

	// List returns groups matching the filter, name-ascending. One query.
	List(ctx context.Context, f GroupFilter, opts ListOptions) ([]*domain.Group, error)

	// Count returns the number of groups matching the filter. One query.
	Count(ctx context.Context, f GroupFilter) (int64, error)

	// AddMember inserts a membership row.
	AddMember(ctx context.Context, groupID, userID int64) error

	// RemoveMember deletes a membership row.
	RemoveMember(ctx context.Context, groupID, userID int64) error

	// IsMember checks a membership row.
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)

	// ListMembers returns the member users, login-ascending.
	ListMembers(ctx context.Context, groupID int64, opts ListOptions) ([]*domain.User, error)
}

// =============================================================================
// Project Repository
// =============================================================================

// ProjectFilter narrows project queries.
type ProjectFilter struct {
	// NameSubstring matches alias or name.
	NameSubstring string

	// ParticipantID restricts to projects visible to the user: root group
	// membership or a stored permission above no_access for one of the
	// user's groups or the project default.
	ParticipantID int64
}

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	// Create creates a new project and assigns the generated ID.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project with its root group and governor
	// resolved in one join.
	GetByID(ctx context.Context, id int64) (*domain.Project, error)

	// GetByAlias retrieves a project by alias.
	GetByAlias(ctx context.Context, alias string) (*domain.Project, error)

	// Update updates an existing project.
	Update(ctx context.Context, project *domain.Project) error

	// Delete deletes a project by ID. The ACL and journal cascade.
	Delete(ctx context.Context, id int64) error

	// List returns projects matching the filter, alias-ascending. One query.
	List(ctx context.Context, f ProjectFilter, opts ListOptions) ([]*domain.Project, error)

	// Count returns the number of matching projects. One query.
	Count(ctx context.Context, f ProjectFilter) (int64, error)
}

// =============================================================================
// Permission Repository
// =============================================================================

// ResolvedAccess carries the stored material of one access resolution.
type ResolvedAccess struct {
	// Levels are the levels of stored permissions whose group contains the
	// user, plus the project default level when stored.
	Levels []domain.AccessLevel

	// InRootGroup reports root group membership.
	InRootGroup bool
}

// PermissionRepository defines the interface for ACL data access.
type PermissionRepository interface {
	// Set upserts the (project, group) permission row.
	Set(ctx context.Context, p *domain.Permission) error

	// Get returns the stored level for (project, group). A nil groupID
	// addresses the sentinel default entry. Missing rows yield ErrNotFound.
	Get(ctx context.Context, projectID int64, groupID *int64, levelType domain.LevelType) (*domain.Permission, error)

	// Delete removes the (project, group) permission row.
	Delete(ctx context.Context, projectID int64, groupID int64) error

	// ListACL returns the stored ACL entries of a project with their
	// groups resolved in one joined query, ordered by group name ascending
	// with the sentinel default entry last. The implicit root-group entry
	// is synthesized by the caller.
	ListACL(ctx context.Context, projectID int64) ([]*domain.Permission, error)

	// Resolve returns the access material for (project, user) per the
	// resolution procedure: levels of intersecting stored permissions and
	// root-group membership.
	Resolve(ctx context.Context, projectID, userID int64) (*ResolvedAccess, error)
}

// =============================================================================
// Access Level Repository
// =============================================================================

// AccessLevelRepository serves the read-only access level seed data.
type AccessLevelRepository interface {
	// List returns the seed rows of one lattice.
	List(ctx context.Context, t domain.LevelType) ([]*domain.AccessLevelRecord, error)

	// Seed inserts the seed rows when missing.
	Seed(ctx context.Context) error
}

// =============================================================================
// Token Repository
// =============================================================================

// TokenRepository defines the interface for authentication token storage.
type TokenRepository interface {
	// Create stores a token row and assigns the generated ID.
	Create(ctx context.Context, token *domain.Token) error

	// GetByID retrieves a token row by ID.
	GetByID(ctx context.Context, id int64) (*domain.Token, error)

	// UpdateExpiry extends the token expiry instant.
	UpdateExpiry(ctx context.Context, id int64, expiresAt time.Time) error

	// Delete removes a token row.
	Delete(ctx context.Context, id int64) error

	// DeleteByUser removes every token of a user.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes every token past expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository stores external authorization sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.ExternalSession) error
	GetByID(ctx context.Context, id int64) (*domain.ExternalSession, error)
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// =============================================================================
// Journal Repositories
// =============================================================================

// RecordRepository defines the interface for labjournal record data access.
type RecordRepository interface {
	// Create creates a record and assigns the generated ID. Alias
	// collisions among non-service siblings yield a duplicate error.
	Create(ctx context.Context, r *journal.Record) error

	// GetByID retrieves a record by ID.
	GetByID(ctx context.Context, id int64) (*journal.Record, error)

	// GetRoot retrieves the root record of a project tree.
	GetRoot(ctx context.Context, projectID int64) (*journal.Record, error)

	// GetChildByAlias retrieves the non-service child of a category with
	// the given alias. One query per tree level during path walks.
	GetChildByAlias(ctx context.Context, parentID int64, alias string) (*journal.Record, error)

	// Update updates a record row.
	Update(ctx context.Context, r *journal.Record) error

	// Delete deletes a record row. Children cascade.
	Delete(ctx context.Context, id int64) error

	// ChildDatetimeRange returns the minimum and maximum datetime over the
	// non-service children of a category. Nil results mean no dated child.
	ChildDatetimeRange(ctx context.Context, parentID int64) (min, max *time.Time, err error)

	// Search returns records matching the filter in datetime order,
	// with the per-user checked flag joined in. One query.
	Search(ctx context.Context, f *journal.Filter, opts ListOptions) ([]*journal.Record, error)

	// CountSearch returns the number of matching records. One query.
	CountSearch(ctx context.Context, f *journal.Filter) (int64, error)

	// ReferenceDatetimes returns the datetimes of records carrying any of
	// the hashtags, capped at limit+1 rows so the caller can detect cap
	// overflow. One query.
	ReferenceDatetimes(ctx context.Context, projectID int64, hashtags []string, limit int) ([]time.Time, error)

	// SetChecked stores the per-user checked flag.
	SetChecked(ctx context.Context, recordID, userID int64, checked bool) error

	// SetParam upserts the stored text form of one custom parameter value.
	SetParam(ctx context.Context, recordID int64, identifier, value string) error

	// DeleteParam removes one custom parameter value.
	DeleteParam(ctx context.Context, recordID int64, identifier string) error

	// ParamsForRecords returns the stored custom parameter values keyed by
	// record, used to hydrate records and compute inherited defaults along
	// an ancestor chain. One query.
	ParamsForRecords(ctx context.Context, recordIDs []int64) (map[int64]map[string]string, error)
}

// DescriptorRepository stores per-category parameter descriptors.
type DescriptorRepository interface {
	Create(ctx context.Context, d *journal.Descriptor) error
	GetByID(ctx context.Context, id int64) (*journal.Descriptor, error)
	Update(ctx context.Context, d *journal.Descriptor) error
	Delete(ctx context.Context, id int64) error

	// ListForCategories returns descriptor lists keyed by category, used to
	// compute inherited descriptors along an ancestor chain.
	ListForCategories(ctx context.Context, categoryIDs []int64) (map[int64][]*journal.Descriptor, error)
}

// HashtagRepository stores per-project hashtags and their attachments.
type HashtagRepository interface {
	// Ensure returns the hashtag with the description, creating it if absent.
	Ensure(ctx context.Context, projectID int64, description string) (*journal.Hashtag, error)

	// Attach associates a hashtag with a record.
	Attach(ctx context.Context, recordID, hashtagID int64) error

	// Detach removes the association.
	Detach(ctx context.Context, recordID, hashtagID int64) error

	// ListForRecord returns the hashtags of a record, description-ascending.
	ListForRecord(ctx context.Context, recordID int64) ([]*journal.Hashtag, error)

	// List returns the hashtags of a project, description-ascending.
	List(ctx context.Context, projectID int64) ([]*journal.Hashtag, error)
}

// =============================================================================
// Audit Log Repository
// =============================================================================

// AuditLogRepository stores request/response audit rows.
type AuditLogRepository interface {
	// Create stores a log row and assigns the generated ID.
	Create(ctx context.Context, l *domain.AuditLog) error

	// GetByID retrieves a log row.
	GetByID(ctx context.Context, id int64) (*domain.AuditLog, error)

	// SetOperation records the operation description once the handler is
	// resolved.
	SetOperation(ctx context.Context, id int64, operation string) error

	// SetResponse records the final status and the truncated response body.
	SetResponse(ctx context.Context, id int64, status int, body string) error

	// List returns log rows in arrival order. One query.
	List(ctx context.Context, opts ListOptions) ([]*domain.AuditLog, error)
}

// =============================================================================
// POSIX Request Repository
// =============================================================================

// PosixRequestRepository stores the privileged command queue.
type PosixRequestRepository interface {
	// Create enqueues a request and assigns the generated ID.
	Create(ctx context.Context, r *domain.PosixRequest) error

	// GetByID retrieves a request row.
	GetByID(ctx context.Context, id int64) (*domain.PosixRequest, error)

	// ListByStatus returns requests in one status band, id-ascending.
	ListByStatus(ctx context.Context, status domain.PosixRequestStatus, limit int) ([]*domain.PosixRequest, error)

	// UpdateStatus advances a request to the next band.
	UpdateStatus(ctx context.Context, id int64, status domain.PosixRequestStatus) error

	// Delete purges a request row (failed security check).
	Delete(ctx context.Context, id int64) error

	// CountByStatus returns the queue depth of one band.
	CountByStatus(ctx context.Context, status domain.PosixRequestStatus) (int64, error)
}
