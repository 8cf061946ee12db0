package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_ExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "sweep.lock")

	first, err := NewFileLock(path)
	require.NoError(t, err)
	second, err := NewFileLock(path)
	require.NoError(t, err)

	ok, err := first.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire a held lock")

	require.NoError(t, first.Unlock())

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestFileLock_UnlockWithoutLock(t *testing.T) {
	l, err := NewFileLock(filepath.Join(t.TempDir(), "idle.lock"))
	require.NoError(t, err)
	assert.NoError(t, l.Unlock())
}
