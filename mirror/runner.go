package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
	"github.com/MGXlab/cirtap/notify"
	"github.com/MGXlab/cirtap/release"
	"github.com/MGXlab/cirtap/remote"
	"github.com/MGXlab/cirtap/state"
)

// outcomeBatchSize bounds how many per-directory outcomes are buffered
// before a run-cache write.
const outcomeBatchSize = 256

// Runner owns one end-to-end mirror invocation: resolve the release
// version, refresh the notes, build the target list, drive the scheduler,
// and persist per-directory outcomes for the next resume.
type Runner struct {
	cfg      *config.AppConfig
	remote   remote.Provider
	store    *state.Store
	cache    *state.RunCache
	notifier notify.Notifier
	log      logger.Logger
}

// NewRunner creates a runner with the provided dependencies.
func NewRunner(cfg *config.AppConfig, rm remote.Provider, store *state.Store, cache *state.RunCache, notifier notify.Notifier, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNoOp()
	}
	if notifier == nil {
		notifier = notify.NewNoOp()
	}
	return &Runner{
		cfg:      cfg,
		remote:   rm,
		store:    store,
		cache:    cache,
		notifier: notifier,
		log:      log,
	}
}

// Run executes one mirror pass and returns the aggregate outcome. Per-file
// and per-directory failures are folded into the outcome; only setup
// problems (unusable destination, unreachable manifest, unreadable summary)
// surface as errors.
func (r *Runner) Run(ctx context.Context) (*model.RunOutcome, error) {
	mc := &r.cfg.Mirror

	for _, dir := range []string{mc.GenomesDir(), mc.NotesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("destination root is not usable: %w", err)
		}
	}

	policy := remote.DefaultPolicy(r.cfg.Remote.Common.MaxRetries)

	version, err := release.ResolveVersion(ctx, r.remote)
	if err != nil {
		// A resume run can proceed on the locally recorded version
		if version = release.LocalVersion(mc.NotesDir()); version == "" {
			return nil, fmt.Errorf("failed to resolve release version: %w", err)
		}
		r.log.Warn("could not resolve remote version, continuing with local %s: %v", version, err)
	}
	r.log.Info("release version %s", version)

	changed := true
	if mc.SkipReleaseCheck || mc.Resume {
		r.log.Debug("skipping release notes check")
	} else {
		notesWorker := NewWorker(r.remote, r.store, policy, "", mc.DBDir, r.log)
		notesWorker.Only = release.NotesFiles

		changed, err = release.Check(ctx, notesWorker, mc.NotesDir(), version, mc.ArchiveNotes, r.log)
		if err != nil {
			return nil, fmt.Errorf("release notes check failed: %w", err)
		}
	}

	ids, err := TargetsFromSummary(filepath.Join(mc.NotesDir(), release.SummaryFileName), r.log)
	if err != nil {
		return nil, err
	}

	if mc.Resume {
		done, err := r.cache.Completed(version)
		if err != nil {
			return nil, fmt.Errorf("failed to read run cache: %w", err)
		}
		remaining := ids[:0]
		for _, id := range ids {
			if _, ok := done[id]; !ok {
				remaining = append(remaining, id)
			}
		}
		r.log.Info("resume: skipping %d completed directories, %d remaining", len(ids)-len(remaining), len(remaining))
		ids = remaining
	}

	outcome := &model.RunOutcome{}
	if len(ids) == 0 || (!changed && !mc.ForceCheck && !mc.Resume) {
		r.log.Info("all directories for release %s appear up to date", version)
		return outcome, nil
	}

	r.notifier.RunStarted(mc.DBDir, len(ids))

	worker := NewWorker(r.remote, r.store, policy, "genomes", mc.GenomesDir(), r.log)
	sched := NewScheduler(worker, mc.Jobs, r.log)

	pending := make(map[string]state.DirOutcome, outcomeBatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := r.cache.PutBatch(pending); err != nil {
			r.log.Warn("failed to update run cache: %v", err)
		}
		pending = make(map[string]state.DirOutcome, outcomeBatchSize)
	}
	sched.OnResult = func(res model.DirResult) {
		status := state.OutcomeOK
		if !res.OK() {
			status = state.OutcomeFailed
		}
		pending[res.ID] = state.DirOutcome{
			Version: version,
			Status:  status,
			Fetched: len(res.Fetched),
			Failed:  len(res.Failed),
			Unix:    time.Now().Unix(),
		}
		if len(pending) >= outcomeBatchSize {
			flush()
		}
	}

	r.log.Info("mirroring %d directories with %d workers", len(ids), mc.Jobs)
	outcome = sched.Run(ctx, ids)
	flush()

	r.notifier.RunFinished(outcome)

	r.log.Info("run finished: %s", outcome)
	if outcome.HasFailures() {
		r.log.Info("failed directories: %v", outcome.SortedFailedIDs())
	}
	return outcome, nil
}
