package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
)

// RecordFileName is the per-directory state file, one row per tracked file.
const RecordFileName = "ftp_info.tsv"

// MDTMFormat is how timestamps are written in the record, matching the FTP
// MDTM wire format.
const MDTMFormat = "20060102150405"

// Store reads and writes one DirRecord per mirrored directory, addressed by
// directory path. It is injected into workers instead of living behind a
// global so the one-worker-per-directory invariant stays enforceable in
// tests. A record is only ever read and written by the single worker that
// owns its directory for the run.
type Store struct {
	log logger.Logger
}

// NewStore creates a record store.
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Store{log: log}
}

// Load reads the record for one directory. A missing file means the
// directory has never been seen and yields an empty record. A malformed
// file also yields an empty record with a warning: losing state only costs
// a redundant re-fetch, never correctness, so corruption is never fatal.
func (s *Store) Load(dirPath string) model.DirRecord {
	f, err := os.Open(filepath.Join(dirPath, RecordFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("unreadable state record in %s, treating as empty: %v", dirPath, err)
		}
		return model.DirRecord{}
	}
	defer f.Close()

	rec := model.DirRecord{}

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		s.log.Warn("empty state record in %s", dirPath)
		return rec
	}

	// Columns are resolved by header name; unknown columns are ignored for
	// forward compatibility. "ftp_mdtm" is the legacy name of the mdtm
	// column.
	cols := map[string]int{}
	for i, name := range strings.Split(scanner.Text(), "\t") {
		cols[name] = i
	}
	nameCol, ok := cols["fname"]
	if !ok {
		s.log.Warn("state record in %s has no fname column, treating as empty", dirPath)
		return rec
	}
	mdtmCol, ok := cols["mdtm"]
	if !ok {
		mdtmCol, ok = cols["ftp_mdtm"]
	}
	if !ok {
		s.log.Warn("state record in %s has no mdtm column, treating as empty", dirPath)
		return rec
	}
	sizeCol, hasSize := cols["size"]
	statusCol, hasStatus := cols["status"]

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if nameCol >= len(fields) || mdtmCol >= len(fields) {
			s.log.Warn("skipping short row in state record of %s", dirPath)
			continue
		}

		mdtm, err := time.Parse(MDTMFormat, fields[mdtmCol])
		if err != nil {
			s.log.Warn("skipping row with bad mdtm %q in %s", fields[mdtmCol], dirPath)
			continue
		}

		fr := model.FileRecord{ModTime: mdtm, Status: model.StatusComplete}
		if hasSize && sizeCol < len(fields) {
			if n, err := strconv.ParseInt(fields[sizeCol], 10, 64); err == nil {
				fr.Size = n
			}
		}
		if hasStatus && statusCol < len(fields) {
			if model.FileStatus(fields[statusCol]) == model.StatusIncomplete {
				fr.Status = model.StatusIncomplete
			}
		}
		rec[fields[nameCol]] = fr
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("error reading state record in %s, keeping %d parsed rows: %v", dirPath, len(rec), err)
	}

	return rec
}

// Save writes the record atomically: a temporary file in the same directory
// is renamed into place, so a crash mid-write leaves the previous valid
// record intact.
func (s *Store) Save(dirPath string, rec model.DirRecord) error {
	tmp, err := os.CreateTemp(dirPath, RecordFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeRecord(tmp, rec); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close record: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dirPath, RecordFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

func writeRecord(f *os.File, rec model.DirRecord) error {
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "fname\tmdtm\tsize\tstatus")

	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fr := rec[name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			name, fr.ModTime.Format(MDTMFormat), fr.Size, fr.Status)
	}
	return w.Flush()
}
