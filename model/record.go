package model

import "time"

// FileStatus is the fetch status of one tracked file in a DirRecord.
type FileStatus string

const (
	StatusComplete   FileStatus = "complete"
	StatusIncomplete FileStatus = "incomplete"
)

// FileRecord is the last-observed remote state of one file, as recorded
// after the most recent transfer attempt.
type FileRecord struct {
	ModTime time.Time
	Size    int64
	Status  FileStatus
}

// DirRecord maps file names to their recorded state for one mirrored
// directory. A nil or empty DirRecord means the directory has never been
// seen. The record is read by the classifier before a run and written only
// by the transfer worker after one.
type DirRecord map[string]FileRecord

// Incomplete reports whether name is present in the record with status
// incomplete.
func (r DirRecord) Incomplete(name string) bool {
	rec, ok := r[name]
	return ok && rec.Status == StatusIncomplete
}
