package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
)

// Scheduler drives a bounded pool of workers over the run's directory set.
// Items are claimed off an unbuffered channel, so each directory is handled
// by exactly one worker; that dispatch exclusivity is the only mutual
// exclusion the per-directory records need.
type Scheduler struct {
	worker *Worker
	jobs   int
	log    logger.Logger

	// OnResult, when set, observes every DirResult from the collector
	// goroutine, in completion order.
	OnResult func(model.DirResult)
}

// NewScheduler creates a scheduler running jobs concurrent workers.
func NewScheduler(worker *Worker, jobs int, log logger.Logger) *Scheduler {
	if jobs < 1 {
		jobs = 1
	}
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Scheduler{worker: worker, jobs: jobs, log: log}
}

// Run drains the given directory ids through the pool and aggregates one
// result per dispatched item. Individual failures never stop the queue; on
// cancellation the workers finish their current file and no new items are
// dispatched.
func (s *Scheduler) Run(ctx context.Context, ids []string) *model.RunOutcome {
	outcome := &model.RunOutcome{}
	if len(ids) == 0 {
		return outcome
	}

	items := make(chan model.WorkItem)
	results := make(chan model.DirResult)

	var wg sync.WaitGroup
	for i := 0; i < s.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				results <- s.worker.Sync(ctx, item)
			}
		}()
	}

	go func() {
		defer close(items)
		for _, id := range ids {
			select {
			case items <- model.WorkItem{ID: id}:
			case <-ctx.Done():
				s.log.Info("stopping dispatch, waiting for in-flight directories")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Periodic progress logging while the collector runs
	total := int64(len(ids))
	var processed int64

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	tickCtx, cancelTick := context.WithCancel(context.Background())
	defer cancelTick()

	go func() {
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				done := atomic.LoadInt64(&processed)
				if done > 0 && done < total {
					s.log.Info("progress: %d/%d directories (%.1f%%)",
						done, total, float64(done)/float64(total)*100)
				}
			}
		}
	}()

	for res := range results {
		atomic.AddInt64(&processed, 1)
		outcome.Add(res)
		if res.Err != nil {
			s.log.Warn("directory %s failed: %v", res.ID, res.Err)
		} else if len(res.Failed) > 0 {
			s.log.Warn("directory %s incomplete: %d of %d files failed",
				res.ID, len(res.Failed), len(res.Failed)+len(res.Fetched))
		}
		if s.OnResult != nil {
			s.OnResult(res)
		}
	}

	return outcome
}
