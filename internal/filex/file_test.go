package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesNestedDirs(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "a", "b", "vaultguard.db")

	require.NoError(t, EnsureParentDir(path))

	fi, err := os.Stat(filepath.Join(tmp, "a", "b"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	// Idempotent.
	require.NoError(t, EnsureParentDir(path))
}

func TestEnsureParentDir_SkipsSpecialNames(t *testing.T) {
	for _, p := range []string{"", ":memory:", "file:test?mode=memory", "vaultguard.db"} {
		assert.NoError(t, EnsureParentDir(p), p)
	}
}

func TestEnsureParentDir_FileInTheWay(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := EnsureParentDir(filepath.Join(blocker, "sub", "db.sqlite"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mkdir")
}
