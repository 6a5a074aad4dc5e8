package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasgit/gasgit/pkg/errors"
)

func TestCheckInSyncMissingLocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "utils.js")
	assert.NoError(t, CheckInSync(path, "utils", time.Now()))
}

func TestCheckInSyncStale(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(path, []byte("var x;\n"), 0644))

	err := CheckInSync(path, "utils", time.Now().Add(time.Hour))
	require.Error(t, err)

	var stale errors.StaleWriteError
	assert.True(t, errors.As(err, &stale))
	assert.Equal(t, "utils", stale.Path)
}

func TestCheckInSyncFresh(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "utils.js")
	require.NoError(t, os.WriteFile(path, []byte("var x;\n"), 0644))

	assert.NoError(t, CheckInSync(path, "utils", time.Now().Add(-time.Hour)))
}
