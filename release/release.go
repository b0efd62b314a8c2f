// Package release handles the RELEASE_NOTES side of the mirror: resolving
// the current release version from the remote summary's timestamp, keeping
// the local notes directory current, and archiving the previous notes.
package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
)

const (
	// NotesDirName is the RELEASE_NOTES directory, both remotely and under
	// the mirror root.
	NotesDirName = "RELEASE_NOTES"
	// VersionFileName records the release version the local notes belong to.
	VersionFileName = "VERSION"
	// SummaryFileName is the table the target list is built from.
	SummaryFileName = "genome_summary"
)

// NotesFiles are the summary tables the mirror tracks; the rest of the
// remote notes directory is ignored.
var NotesFiles = []string{
	"genome_summary",
	"genome_metadata",
	"genome_lineage",
	"PATRIC_genomes_AMR.txt",
}

// Lister is the slice of the remote needed to resolve a version.
type Lister interface {
	List(ctx context.Context, dir string) ([]model.RemoteEntry, error)
}

// DirSyncer is the slice of the transfer worker the release check drives.
type DirSyncer interface {
	Sync(ctx context.Context, item model.WorkItem) model.DirResult
}

// ResolveVersion derives the release version from the remote
// genome_summary modification time, in YYYYMM form. The archive publishes
// monthly, so the summary's month names the release.
func ResolveVersion(ctx context.Context, rm Lister) (string, error) {
	entries, err := rm.List(ctx, NotesDirName)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Kind == model.KindFile && e.Name == SummaryFileName {
			return e.ModTime.Format("200601"), nil
		}
	}
	return "", fmt.Errorf("remote %s has no %s", NotesDirName, SummaryFileName)
}

// LocalVersion reads the version of the locally installed notes, or ""
// when none is recorded yet.
func LocalVersion(notesDir string) string {
	raw, err := os.ReadFile(filepath.Join(notesDir, VersionFileName))
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(string(raw))
	if len(v) > 6 {
		v = v[:6]
	}
	return v
}

// WriteVersion records the release version of the installed notes.
func WriteVersion(notesDir, version string) error {
	return os.WriteFile(filepath.Join(notesDir, VersionFileName), []byte(version+"\n"), 0o644)
}

// Check brings the local RELEASE_NOTES up to date and reports whether
// anything changed, which is the signal that genome directories need
// re-checking. With archive set, the previous notes are tarred up first.
// The notes must land complete: a half-fetched summary cannot seed a run.
func Check(ctx context.Context, syncer DirSyncer, notesDir, version string, archive bool, log logger.Logger) (bool, error) {
	if log == nil {
		log = logger.NewNoOp()
	}

	localVersion := LocalVersion(notesDir)
	if localVersion == version {
		log.Info("local notes already at release %s", version)
	} else if localVersion != "" {
		log.Info("release %s available, local notes at %s", version, localVersion)
	}

	if archive && hasAnyNotes(notesDir) {
		suffix := localVersion
		if suffix == "" {
			suffix = "unknown_version"
		}
		archivePath, err := ArchiveNotes(notesDir, suffix)
		if err != nil {
			return false, fmt.Errorf("failed to archive notes: %w", err)
		}
		log.Info("archived existing notes to %s", archivePath)
	}

	res := syncer.Sync(ctx, model.WorkItem{ID: NotesDirName})
	if res.Err != nil {
		return false, res.Err
	}
	if len(res.Failed) > 0 {
		return false, fmt.Errorf("notes sync left %d file(s) incomplete: %s",
			len(res.Failed), strings.Join(res.Failed, ", "))
	}

	if err := WriteVersion(notesDir, version); err != nil {
		return false, err
	}

	changed := len(res.Fetched) > 0
	if changed {
		log.Info("updated %d notes file(s)", len(res.Fetched))
	}
	return changed, nil
}

func hasAnyNotes(notesDir string) bool {
	for _, name := range NotesFiles {
		if _, err := os.Stat(filepath.Join(notesDir, name)); err == nil {
			return true
		}
	}
	return false
}
