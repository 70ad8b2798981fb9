package posix

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/domain"
)

func TestBuild(t *testing.T) {
	t.Run("user account", func(t *testing.T) {
		action, err := Build(ClassUserAccount, json.RawMessage(`{"account":"sergei","home_dir":"/home/u-sergei"}`))
		require.NoError(t, err)
		ua, ok := action.(*UserAccount)
		require.True(t, ok)
		assert.Equal(t, "sergei", ua.Account)
	})

	t.Run("project group", func(t *testing.T) {
		action, err := Build(ClassProjectGroup, json.RawMessage(`{"name":"optics_7"}`))
		require.NoError(t, err)
		pg, ok := action.(*ProjectGroup)
		require.True(t, ok)
		assert.Equal(t, "optics_7", pg.Name)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := Build("posix.Nonexistent", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, domain.ErrSecurityCheckFailed)
	})

	t.Run("malformed constructor arguments", func(t *testing.T) {
		_, err := Build(ClassUserAccount, json.RawMessage(`not json`))
		assert.ErrorIs(t, err, domain.ErrSecurityCheckFailed)
	})
}

func TestUserAccount_Invoke(t *testing.T) {
	ua := &UserAccount{Account: "sergei", HomeDir: "/home/u-sergei"}

	t.Run("create", func(t *testing.T) {
		cmds, err := ua.Invoke("create", nil)
		require.NoError(t, err)
		require.Len(t, cmds, 1)
		assert.Equal(t, "useradd", cmds[0].Path)
		assert.Contains(t, cmds[0].Args, "sergei")
		assert.Contains(t, cmds[0].Args, "/home/u-sergei")
	})

	t.Run("lock and unlock", func(t *testing.T) {
		cmds, err := ua.Invoke("lock", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"--lock", "sergei"}, cmds[0].Args)

		cmds, err = ua.Invoke("unlock", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"--unlock", "sergei"}, cmds[0].Args)
	})

	t.Run("rename changes login, home and primary group", func(t *testing.T) {
		args := json.RawMessage(`{"new_account":"spopov","new_home_dir":"/home/u-spopov"}`)
		cmds, err := ua.Invoke("rename", args)
		require.NoError(t, err)
		require.Len(t, cmds, 2)
		assert.Equal(t, "usermod", cmds[0].Path)
		assert.Equal(t, "groupmod", cmds[1].Path)
	})

	t.Run("rename without new account", func(t *testing.T) {
		_, err := ua.Invoke("rename", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, domain.ErrSecurityCheckFailed)
	})

	t.Run("delete", func(t *testing.T) {
		cmds, err := ua.Invoke("delete", nil)
		require.NoError(t, err)
		assert.Equal(t, "userdel", cmds[0].Path)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := ua.Invoke("format_disk", nil)
		assert.ErrorIs(t, err, domain.ErrSecurityCheckFailed)
	})
}

func TestProjectGroup_Invoke(t *testing.T) {
	pg := &ProjectGroup{Name: "optics_7"}

	t.Run("create and delete", func(t *testing.T) {
		cmds, err := pg.Invoke("create", nil)
		require.NoError(t, err)
		assert.Equal(t, "groupadd", cmds[0].Path)

		cmds, err = pg.Invoke("delete", nil)
		require.NoError(t, err)
		assert.Equal(t, "groupdel", cmds[0].Path)
	})

	t.Run("membership", func(t *testing.T) {
		cmds, err := pg.Invoke("add_member", json.RawMessage(`{"account":"sergei"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"--add", "sergei", "optics_7"}, cmds[0].Args)

		cmds, err = pg.Invoke("remove_member", json.RawMessage(`{"account":"sergei"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"--delete", "sergei", "optics_7"}, cmds[0].Args)
	})

	t.Run("membership without account", func(t *testing.T) {
		_, err := pg.Invoke("add_member", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, domain.ErrSecurityCheckFailed)
	})
}
