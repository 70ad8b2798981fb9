// Package repository provides the data access layer for corefacility.
// This file bundles all repository instances for injection into services.
package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User         UserRepository
	Group        GroupRepository
	Project      ProjectRepository
	Permission   PermissionRepository
	AccessLevel  AccessLevelRepository
	Token        TokenRepository
	Session      SessionRepository
	Record       RecordRepository
	Descriptor   DescriptorRepository
	Hashtag      HashtagRepository
	AuditLog     AuditLogRepository
	PosixRequest PosixRequestRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.DatabaseChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
