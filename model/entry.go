package model

import "time"

// EntryKind distinguishes files from subdirectories in a remote listing.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

// RemoteEntry is one row of a remote directory listing. ModTime comes from
// the remote server clock and is coarse (MDTM granularity, often day-level
// on the archive), so comparisons against it must be strict "advanced past",
// never "differs from".
type RemoteEntry struct {
	Name    string
	Kind    EntryKind
	Size    int64
	ModTime time.Time
}

// Files returns only the file entries of a listing, in listing order.
func Files(entries []RemoteEntry) []RemoteEntry {
	files := make([]RemoteEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == KindFile {
			files = append(files, e)
		}
	}
	return files
}
