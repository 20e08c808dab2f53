package asyncruntime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeOptionsFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadOptions(t *testing.T) {
	path := writeOptionsFile(t, `
workers = 8
blocking_workers = 16
reactor_idle_poll = "250ms"
`)

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	require.Equal(t, 8, opts.Workers)
	require.Equal(t, 16, opts.BlockingWorkers)
	require.Equal(t, 250*time.Millisecond, opts.ReactorIdlePoll.Duration)

	cfg := opts.Config()
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 16, cfg.BlockingWorkers)
	require.Equal(t, 250*time.Millisecond, cfg.ReactorIdlePoll)
}

func TestLoadOptionsDefaultsWhenOmitted(t *testing.T) {
	path := writeOptionsFile(t, `workers = 3`)

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	cfg := opts.Config()
	require.Equal(t, 3, cfg.Workers)
	require.Positive(t, cfg.BlockingWorkers)
	require.Positive(t, cfg.ReactorIdlePoll)
}

func TestLoadOptionsRejectsBadDuration(t *testing.T) {
	path := writeOptionsFile(t, `reactor_idle_poll = "soon"`)

	_, err := LoadOptions(path)
	require.Error(t, err)
}

func TestLoadOptionsMissingFile(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
