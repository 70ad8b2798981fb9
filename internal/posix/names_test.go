package posix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountName(t *testing.T) {
	t.Run("short logins pass through lowercased", func(t *testing.T) {
		assert.Equal(t, "sergei", AccountName("Sergei"))
		assert.Equal(t, "a", AccountName("a"))
	})

	t.Run("long logins truncate within the OS bound", func(t *testing.T) {
		long := strings.Repeat("verylongusername", 4)
		name := AccountName(long)
		assert.LessOrEqual(t, len(name), 32)
		assert.True(t, strings.HasPrefix(long, name[:20]))
	})

	t.Run("distinct long logins never collide", func(t *testing.T) {
		prefix := strings.Repeat("x", 40)
		a := AccountName(prefix + "a")
		b := AccountName(prefix + "b")
		assert.NotEqual(t, a, b)
	})

	t.Run("deterministic", func(t *testing.T) {
		long := strings.Repeat("q", 50)
		assert.Equal(t, AccountName(long), AccountName(long))
	})
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "optics_7", GroupName("Optics", 7))
	assert.Equal(t, "longalia_12", GroupName("longaliasname", 12))

	// Same prefix, different projects.
	assert.NotEqual(t, GroupName("longaliasname", 1), GroupName("longaliasname", 2))
}

func TestDirectories(t *testing.T) {
	assert.Equal(t, "/home/u-sergei", HomeDir("/home", "sergei"))
	assert.Equal(t, "/srv/projects/optics_7", ProjectDir("/srv/projects", "optics_7"))
}
