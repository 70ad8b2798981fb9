// Package posix mirrors platform users and projects onto operating-system
// accounts, groups and directories. Commands either run inline or are queued
// as persisted requests for a separate daemon running with privileges.
package posix

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/serik1987/corefacility/internal/pkg/crypto"
)

// maxLoginLen is the portable upper bound on OS account names.
const maxLoginLen = 32

// maxGroupPrefixLen bounds the alias-derived prefix of project group names;
// the numeric suffix keeps the full name unique.
const maxGroupPrefixLen = 8

// AccountName derives the OS account name from a platform login. Logins that
// fit are used verbatim; longer ones are truncated and disambiguated with a
// hash fragment so two long logins never collide.
func AccountName(login string) string {
	login = strings.ToLower(login)
	if len(login) <= maxLoginLen {
		return login
	}
	digest := crypto.ComputeMD5([]byte(login))[:8]
	return login[:maxLoginLen-1-len(digest)] + "_" + digest
}

// GroupName derives the OS group name mirroring a project. The alias prefix
// keeps the name readable; the primary key suffix keeps it unique.
func GroupName(alias string, projectID int64) string {
	alias = strings.ToLower(alias)
	if len(alias) > maxGroupPrefixLen {
		alias = alias[:maxGroupPrefixLen]
	}
	return fmt.Sprintf("%s_%d", alias, projectID)
}

// HomeDir returns the home directory of an OS account.
func HomeDir(base, accountName string) string {
	return filepath.Join(base, "u-"+accountName)
}

// ProjectDir returns the data directory of a project group.
func ProjectDir(base, groupName string) string {
	return filepath.Join(base, groupName)
}
