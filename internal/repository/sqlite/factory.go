package sqlite

import (
	"github.com/serik1987/corefacility/internal/repository"
)

// NewRepositories bundles every SQLite repository over one connection.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(db),
		Group:        NewGroupRepository(db),
		Project:      NewProjectRepository(db),
		Permission:   NewPermissionRepository(db),
		AccessLevel:  NewAccessLevelRepository(db),
		Token:        NewTokenRepository(db),
		Session:      NewSessionRepository(db),
		Record:       NewRecordRepository(db),
		Descriptor:   NewDescriptorRepository(db),
		Hashtag:      NewHashtagRepository(db),
		AuditLog:     NewAuditLogRepository(db),
		PosixRequest: NewPosixRequestRepository(db),
	}
}
