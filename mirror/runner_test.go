package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/release"
	"github.com/MGXlab/cirtap/state"
	"github.com/stretchr/testify/require"
)

var notesTime = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func populateArchive(fake *fakeRemote) {
	summary := "genome_id\tgenome_name\n" +
		"83332.12\tMycobacterium tuberculosis H37Rv\n" +
		"511145.12\tEscherichia coli K-12\n"
	fake.addFile("RELEASE_NOTES", "genome_summary", summary, notesTime)
	fake.addFile("RELEASE_NOTES", "genome_metadata", "genome_id\tmetadata\n", notesTime)
	fake.addFile("RELEASE_NOTES", "genome_lineage", "genome_id\tlineage\n", notesTime)
	fake.addFile("RELEASE_NOTES", "PATRIC_genomes_AMR.txt", "genome_id\tamr\n", notesTime)

	fake.addFile("genomes/83332.12", "83332.12.fna", "ACGT", notesTime)
	fake.addFile("genomes/511145.12", "511145.12.fna", "TTTT", notesTime)
}

func newRunnerFixture(t *testing.T, fake *fakeRemote) (*Runner, *config.AppConfig, *state.RunCache) {
	t.Helper()

	cfg := &config.AppConfig{}
	cfg.Mirror.DBDir = t.TempDir()
	cfg.Mirror.Jobs = 2
	cfg.ApplyDefaults()

	cache, err := state.OpenRunCache(&cfg.Cache)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return NewRunner(cfg, fake, state.NewStore(nil), cache, nil, nil), cfg, cache
}

func TestRunnerFullMirror(t *testing.T) {
	fake := newFakeRemote()
	populateArchive(fake)
	runner, cfg, cache := newRunnerFixture(t, fake)

	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Fetched)
	require.False(t, outcome.HasFailures())

	// Notes and genomes landed under the mirror root
	require.Equal(t, "202403", release.LocalVersion(cfg.Mirror.NotesDir()))
	data, err := os.ReadFile(filepath.Join(cfg.Mirror.GenomesDir(), "83332.12", "83332.12.fna"))
	require.NoError(t, err)
	require.Equal(t, "ACGT", string(data))

	// Both directories are cached as completed for this release
	done, err := cache.Completed("202403")
	require.NoError(t, err)
	require.Len(t, done, 2)
}

func TestRunnerSkipsWhenNotesUnchanged(t *testing.T) {
	fake := newFakeRemote()
	populateArchive(fake)
	runner, _, _ := newRunnerFixture(t, fake)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first.Fetched)

	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Total())

	// The genome directories were not listed again
	require.Equal(t, 1, fake.lists["genomes/83332.12"])
	require.Equal(t, 1, fake.lists["genomes/511145.12"])
}

func TestRunnerForceCheckRevisitsAll(t *testing.T) {
	fake := newFakeRemote()
	populateArchive(fake)
	runner, cfg, _ := newRunnerFixture(t, fake)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	cfg.Mirror.ForceCheck = true
	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Skipped)
	require.Equal(t, 2, fake.lists["genomes/83332.12"])
}

func TestRunnerResumeSkipsCompletedDirectories(t *testing.T) {
	fake := newFakeRemote()
	populateArchive(fake)
	fake.listErr["genomes/511145.12"] = fmt.Errorf("connection reset")

	runner, cfg, _ := newRunnerFixture(t, fake)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Fetched)
	require.Equal(t, 1, first.Failed)
	require.Equal(t, []string{"511145.12"}, first.SortedFailedIDs())

	// The failure clears; a resume run revisits only the failed directory
	delete(fake.listErr, "genomes/511145.12")
	cfg.Mirror.Resume = true

	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, second.Total())
	require.Equal(t, 1, second.Fetched)
	require.False(t, second.HasFailures())

	// The completed directory cost no remote calls in the resume run
	require.Equal(t, 1, fake.lists["genomes/83332.12"])
}

func TestRunnerFailsWithoutRemoteNotes(t *testing.T) {
	fake := newFakeRemote()
	runner, _, _ := newRunnerFixture(t, fake)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
}
