package release

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MGXlab/cirtap/model"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	entries []model.RemoteEntry
	err     error
}

func (f *fakeLister) List(ctx context.Context, dir string) ([]model.RemoteEntry, error) {
	return f.entries, f.err
}

type fakeSyncer struct {
	res  model.DirResult
	item model.WorkItem
}

func (f *fakeSyncer) Sync(ctx context.Context, item model.WorkItem) model.DirResult {
	f.item = item
	return f.res
}

func TestResolveVersion(t *testing.T) {
	lister := &fakeLister{entries: []model.RemoteEntry{
		{Name: "genome_lineage", Kind: model.KindFile, ModTime: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "genome_summary", Kind: model.KindFile, ModTime: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)},
	}}

	version, err := ResolveVersion(context.Background(), lister)
	require.NoError(t, err)
	require.Equal(t, "202403", version)
}

func TestResolveVersionMissingSummary(t *testing.T) {
	lister := &fakeLister{entries: []model.RemoteEntry{
		{Name: "genome_lineage", Kind: model.KindFile, ModTime: time.Now()},
	}}

	_, err := ResolveVersion(context.Background(), lister)
	require.Error(t, err)
	require.Contains(t, err.Error(), "genome_summary")
}

func TestResolveVersionListFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	_, err := ResolveVersion(context.Background(), lister)
	require.Error(t, err)
}

func TestVersionFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.Empty(t, LocalVersion(dir))

	require.NoError(t, WriteVersion(dir, "202403"))
	require.Equal(t, "202403", LocalVersion(dir))
}

func TestLocalVersionTruncatesLongValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VersionFileName), []byte("20240305123045\n"), 0o644))
	require.Equal(t, "202403", LocalVersion(dir))
}

func TestCheckReportsChange(t *testing.T) {
	notesDir := t.TempDir()
	syncer := &fakeSyncer{res: model.DirResult{
		ID:      NotesDirName,
		Fetched: []string{"genome_summary", "genome_metadata"},
	}}

	changed, err := Check(context.Background(), syncer, notesDir, "202403", false, nil)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, NotesDirName, syncer.item.ID)
	require.Equal(t, "202403", LocalVersion(notesDir))
}

func TestCheckNoChange(t *testing.T) {
	notesDir := t.TempDir()
	syncer := &fakeSyncer{res: model.DirResult{ID: NotesDirName, Decision: model.DecisionUnchanged}}

	changed, err := Check(context.Background(), syncer, notesDir, "202403", false, nil)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, "202403", LocalVersion(notesDir))
}

func TestCheckFailsOnIncompleteNotes(t *testing.T) {
	notesDir := t.TempDir()
	syncer := &fakeSyncer{res: model.DirResult{
		ID:     NotesDirName,
		Failed: []string{"genome_summary"},
	}}

	_, err := Check(context.Background(), syncer, notesDir, "202403", false, nil)
	require.Error(t, err)
	// The version must not advance past notes that did not land
	require.Empty(t, LocalVersion(notesDir))
}

func TestCheckFailsOnSyncError(t *testing.T) {
	syncer := &fakeSyncer{res: model.DirResult{
		ID:  NotesDirName,
		Err: errors.New("listing failed"),
	}}

	_, err := Check(context.Background(), syncer, t.TempDir(), "202403", false, nil)
	require.Error(t, err)
}

func TestCheckArchivesExistingNotes(t *testing.T) {
	root := t.TempDir()
	notesDir := filepath.Join(root, NotesDirName)
	require.NoError(t, os.MkdirAll(notesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(notesDir, "genome_summary"), []byte("genome_id\n"), 0o644))
	require.NoError(t, WriteVersion(notesDir, "202402"))

	syncer := &fakeSyncer{res: model.DirResult{ID: NotesDirName, Fetched: []string{"genome_summary"}}}

	changed, err := Check(context.Background(), syncer, notesDir, "202403", true, nil)
	require.NoError(t, err)
	require.True(t, changed)

	_, err = os.Stat(filepath.Join(root, "202402."+NotesDirName+".bkp.tar.gz"))
	require.NoError(t, err)
}
