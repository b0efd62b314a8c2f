package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
	"github.com/MGXlab/cirtap/remote"
	"github.com/MGXlab/cirtap/state"
)

// IntegrityError marks a download whose size disagrees with the remote
// listing. The partial file is removed; the name stays incomplete in the
// record. Size is the only integrity check the mirror performs.
type IntegrityError struct {
	Path string
	Want int64
	Got  int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("size mismatch for %s: remote reports %d bytes, got %d", e.Path, e.Want, e.Got)
}

// Worker synchronizes one directory at a time: list, classify, fetch the
// target set, write the record back. A directory is owned by exactly one
// worker for the run, so the record read-modify-write needs no locking.
type Worker struct {
	remote     remote.Provider
	store      *state.Store
	policy     remote.RetryPolicy
	log        logger.Logger
	remoteRoot string // remote path prefix the item ids live under
	localRoot  string // local directory the item ids map into

	// Only restricts the sync to the named files when non-empty; other
	// remote entries are ignored entirely.
	Only []string
}

// NewWorker creates a transfer worker.
func NewWorker(rm remote.Provider, store *state.Store, policy remote.RetryPolicy, remoteRoot, localRoot string, log logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Worker{
		remote:     rm,
		store:      store,
		policy:     policy,
		log:        log,
		remoteRoot: remoteRoot,
		localRoot:  localRoot,
	}
}

// Sync brings one directory up to date with the remote. Every failure below
// the listing level is contained per file; the run never aborts because one
// directory misbehaved.
func (w *Worker) Sync(ctx context.Context, item model.WorkItem) model.DirResult {
	res := model.DirResult{ID: item.ID}

	entries, err := w.remote.List(ctx, path.Join(w.remoteRoot, item.ID))
	if err != nil {
		res.Err = err
		return res
	}
	entries = w.filterOnly(entries)

	localDir := filepath.Join(w.localRoot, item.ID)
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		res.Err = fmt.Errorf("failed to create %s: %w", localDir, err)
		return res
	}

	rec := w.store.Load(localDir)
	cls := Classify(entries, rec)
	res.Decision = cls.Decision

	if cls.Decision == model.DecisionUnchanged {
		w.log.Verbose("%s is up to date", item.ID)
		return res
	}

	byName := make(map[string]model.RemoteEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	dirty := false
	for i, name := range cls.Fetch {
		if ctx.Err() != nil {
			// Stop after the file in flight; everything not attempted is
			// recorded incomplete so a resume run picks it up.
			dirty = markIncomplete(rec, cls.Fetch[i:]) || dirty
			res.Failed = append(res.Failed, cls.Fetch[i:]...)
			break
		}

		entry := byName[name]
		if err := w.fetchFile(ctx, item.ID, entry, localDir); err != nil {
			w.log.Warn("failed to fetch %s/%s: %v", item.ID, name, err)
			dirty = markIncomplete(rec, cls.Fetch[i:i+1]) || dirty
			res.Failed = append(res.Failed, name)
			continue
		}

		rec[name] = model.FileRecord{
			ModTime: entry.ModTime,
			Size:    entry.Size,
			Status:  model.StatusComplete,
		}
		dirty = true
		res.Fetched = append(res.Fetched, name)
	}

	if dirty {
		if err := w.store.Save(localDir, rec); err != nil {
			res.Err = err
			return res
		}
	}

	w.log.Debug("%s: %s, %d fetched, %d failed", item.ID, res.Decision, len(res.Fetched), len(res.Failed))
	return res
}

// markIncomplete flags the named files incomplete in the record. Files the
// record never knew stay absent: absence already forces a fetch next run.
// Recorded timestamps are left alone so a staleness signal is not lost.
func markIncomplete(rec model.DirRecord, names []string) bool {
	dirty := false
	for _, name := range names {
		fr, known := rec[name]
		if !known {
			continue
		}
		if fr.Status != model.StatusIncomplete {
			fr.Status = model.StatusIncomplete
			rec[name] = fr
			dirty = true
		}
	}
	return dirty
}

// fetchFile downloads one file through a temporary path and renames it into
// place once its size checks out against the listing. The whole attempt is
// retried per the policy; whatever error survives the retries is the
// per-file failure.
func (w *Worker) fetchFile(ctx context.Context, id string, entry model.RemoteEntry, localDir string) error {
	remotePath := path.Join(w.remoteRoot, id, entry.Name)

	err := w.policy.Do(ctx, func(ctx context.Context) error {
		return w.downloadOnce(ctx, remotePath, localDir, entry)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie
	}
	return &remote.TransientError{Op: "fetch", Path: remotePath, Err: err}
}

func (w *Worker) downloadOnce(ctx context.Context, remotePath, localDir string, entry model.RemoteEntry) error {
	tmp, err := os.CreateTemp(localDir, "."+entry.Name+".part-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	drop := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	rd, err := w.remote.Fetch(ctx, remotePath)
	if err != nil {
		drop()
		return err
	}
	n, err := io.Copy(tmp, rd)
	if cerr := rd.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		drop()
		return err
	}

	if n != entry.Size {
		drop()
		return &IntegrityError{Path: remotePath, Want: entry.Size, Got: n}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(localDir, entry.Name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (w *Worker) filterOnly(entries []model.RemoteEntry) []model.RemoteEntry {
	if len(w.Only) == 0 {
		return entries
	}
	keep := make(map[string]struct{}, len(w.Only))
	for _, name := range w.Only {
		keep[name] = struct{}{}
	}
	filtered := entries[:0]
	for _, e := range entries {
		if _, ok := keep[e.Name]; ok {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
