package mirror

import (
	"testing"
	"time"

	"github.com/MGXlab/cirtap/model"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func fileEntry(name string, size int64, mod time.Time) model.RemoteEntry {
	return model.RemoteEntry{Name: name, Kind: model.KindFile, Size: size, ModTime: mod}
}

func TestClassifyNewDirectory(t *testing.T) {
	entries := []model.RemoteEntry{
		fileEntry("b.fna", 100, baseTime),
		fileEntry("a.gff", 50, baseTime),
		{Name: "sub", Kind: model.KindDir},
	}

	cls := Classify(entries, model.DirRecord{})
	require.Equal(t, model.DecisionNew, cls.Decision)
	require.Equal(t, []string{"a.gff", "b.fna"}, cls.Fetch)
}

func TestClassifyUnchanged(t *testing.T) {
	entries := []model.RemoteEntry{
		fileEntry("a.gff", 50, baseTime),
		fileEntry("b.fna", 100, baseTime),
	}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
		"b.fna": {ModTime: baseTime, Size: 100, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionUnchanged, cls.Decision)
	require.Empty(t, cls.Fetch)
}

func TestClassifyStaleFile(t *testing.T) {
	entries := []model.RemoteEntry{
		fileEntry("a.gff", 50, baseTime.Add(24*time.Hour)),
		fileEntry("b.fna", 100, baseTime),
	}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
		"b.fna": {ModTime: baseTime, Size: 100, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionChanged, cls.Decision)
	require.Equal(t, []string{"a.gff"}, cls.Fetch)
}

func TestClassifyEqualTimestampNotRefetched(t *testing.T) {
	// The remote clock is coarse; only a strictly advanced timestamp
	// triggers a refetch.
	entries := []model.RemoteEntry{fileEntry("a.gff", 50, baseTime)}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionUnchanged, cls.Decision)
}

func TestClassifyUnknownFile(t *testing.T) {
	entries := []model.RemoteEntry{
		fileEntry("a.gff", 50, baseTime),
		fileEntry("new.txt", 10, baseTime),
	}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionChanged, cls.Decision)
	require.Equal(t, []string{"new.txt"}, cls.Fetch)
}

func TestClassifyResumedPartialFetch(t *testing.T) {
	entries := []model.RemoteEntry{
		fileEntry("a.gff", 50, baseTime),
		fileEntry("b.fna", 100, baseTime),
		fileEntry("c.faa", 70, baseTime),
	}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
		"b.fna": {ModTime: baseTime, Size: 100, Status: model.StatusIncomplete},
		"c.faa": {ModTime: baseTime, Size: 70, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionPartial, cls.Decision)
	require.Equal(t, []string{"b.fna"}, cls.Fetch)
}

func TestClassifyAllIncompleteIsChanged(t *testing.T) {
	// When every file is being refetched there is nothing partial about it.
	entries := []model.RemoteEntry{
		fileEntry("a.gff", 50, baseTime),
		fileEntry("b.fna", 100, baseTime),
	}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusIncomplete},
		"b.fna": {ModTime: baseTime, Size: 100, Status: model.StatusIncomplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionChanged, cls.Decision)
	require.Equal(t, []string{"a.gff", "b.fna"}, cls.Fetch)
}

func TestClassifyIncompleteAndStaleMix(t *testing.T) {
	// A stale file alongside a leftover incomplete one means the remote
	// side moved, so the directory counts as changed, not resumed.
	entries := []model.RemoteEntry{
		fileEntry("a.gff", 50, baseTime.Add(time.Hour)),
		fileEntry("b.fna", 100, baseTime),
		fileEntry("c.faa", 70, baseTime),
	}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
		"b.fna": {ModTime: baseTime, Size: 100, Status: model.StatusIncomplete},
		"c.faa": {ModTime: baseTime, Size: 70, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionChanged, cls.Decision)
	require.Equal(t, []string{"a.gff", "b.fna"}, cls.Fetch)
}

func TestClassifyIgnoresVanishedFiles(t *testing.T) {
	// Files recorded locally but gone from the listing are left alone;
	// the mirror never deletes.
	entries := []model.RemoteEntry{fileEntry("a.gff", 50, baseTime)}
	rec := model.DirRecord{
		"a.gff": {ModTime: baseTime, Size: 50, Status: model.StatusComplete},
		"old":   {ModTime: baseTime, Size: 10, Status: model.StatusComplete},
	}

	cls := Classify(entries, rec)
	require.Equal(t, model.DecisionUnchanged, cls.Decision)
}
