package scaffolding

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/peek/internal/errors"
)

func TestAcquireIsExclusive(t *testing.T) {
	root := t.TempDir()

	first, err := Acquire(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".peek", "peek.lock"), first.Path())

	_, err = Acquire(root)
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeLocked))

	require.NoError(t, first.Release())

	second, err := Acquire(root)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
