package release

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArchiveNotes writes a tar.gz of the notes directory into its parent,
// named <suffix>.RELEASE_NOTES.bkp.tar.gz, and returns the archive path.
// Entries are stored under the RELEASE_NOTES/ base so the archive unpacks
// next to the mirror.
func ArchiveNotes(notesDir, suffix string) (string, error) {
	parent := filepath.Dir(notesDir)
	archivePath := filepath.Join(parent, fmt.Sprintf("%s.%s.bkp.tar.gz", suffix, NotesDirName))

	out, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(notesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(notesDir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(NotesDirName, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	for _, closeErr := range []error{tw.Close(), gz.Close(), out.Close()} {
		if walkErr == nil {
			walkErr = closeErr
		}
	}
	if walkErr != nil {
		os.Remove(archivePath)
		return "", walkErr
	}
	return archivePath, nil
}
