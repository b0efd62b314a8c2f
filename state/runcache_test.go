package state

import (
	"path/filepath"
	"testing"

	"github.com/MGXlab/cirtap/config"
	"github.com/stretchr/testify/require"
)

func newTestRunCache(t *testing.T) *RunCache {
	t.Helper()
	cfg := &config.CacheConfig{
		Path: filepath.Join(t.TempDir(), "runs.db"),
	}
	c, err := OpenRunCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenInvalidPath(t *testing.T) {
	cfg := &config.CacheConfig{Path: "/proc/invalid/runs.db"}
	_, err := OpenRunCache(cfg)
	require.Error(t, err)
}

func TestPutAndGet(t *testing.T) {
	c := newTestRunCache(t)

	out := DirOutcome{Version: "202403", Status: OutcomeOK, Fetched: 12, Unix: 1709640000}
	require.NoError(t, c.Put("83332.12", out))

	got, err := c.Get("83332.12")
	require.NoError(t, err)
	require.Equal(t, out, *got)

	_, err = c.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutBatch(t *testing.T) {
	c := newTestRunCache(t)

	entries := map[string]DirOutcome{
		"genome.1": {Version: "202403", Status: OutcomeOK, Fetched: 3},
		"genome.2": {Version: "202403", Status: OutcomeFailed, Failed: 1},
	}
	require.NoError(t, c.PutBatch(entries))

	for id, want := range entries {
		got, err := c.Get(id)
		require.NoError(t, err)
		require.Equal(t, want, *got)
	}

	count, err := c.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestCompletedFiltersByVersionAndStatus(t *testing.T) {
	c := newTestRunCache(t)

	require.NoError(t, c.PutBatch(map[string]DirOutcome{
		"ok.current":     {Version: "202403", Status: OutcomeOK},
		"failed.current": {Version: "202403", Status: OutcomeFailed},
		"ok.stale":       {Version: "202402", Status: OutcomeOK},
	}))

	done, err := c.Completed("202403")
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.Contains(t, done, "ok.current")
}

func TestPutOverwritesPreviousOutcome(t *testing.T) {
	c := newTestRunCache(t)

	require.NoError(t, c.Put("genome.1", DirOutcome{Version: "202403", Status: OutcomeFailed}))
	require.NoError(t, c.Put("genome.1", DirOutcome{Version: "202403", Status: OutcomeOK}))

	done, err := c.Completed("202403")
	require.NoError(t, err)
	require.Contains(t, done, "genome.1")

	count, err := c.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
