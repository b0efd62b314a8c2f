package mirror

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MGXlab/cirtap/model"
	"github.com/MGXlab/cirtap/state"
	"github.com/stretchr/testify/require"
)

// gateRemote wraps fakeRemote so a test can hold workers inside List and
// release them at a chosen moment.
type gateRemote struct {
	inner   *fakeRemote
	started chan string
	release chan struct{}
}

func (g *gateRemote) List(ctx context.Context, dir string) ([]model.RemoteEntry, error) {
	g.started <- dir
	<-g.release
	return g.inner.List(ctx, dir)
}

func (g *gateRemote) Fetch(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	return g.inner.Fetch(ctx, remotePath)
}

func (g *gateRemote) Close() error { return nil }

func TestSchedulerDrainsAllItems(t *testing.T) {
	var ids []string
	for i := 0; i < 40; i++ {
		ids = append(ids, fmt.Sprintf("genome.%d", i))
	}

	for _, jobs := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("jobs=%d", jobs), func(t *testing.T) {
			sub := newFakeRemote()
			for _, id := range ids {
				sub.addFile("genomes/"+id, "a.fna", "ACGT", baseTime)
			}
			w := NewWorker(sub, state.NewStore(nil), testPolicy(), "genomes", t.TempDir(), nil)

			seen := make(map[string]int)
			sched := NewScheduler(w, jobs, nil)
			sched.OnResult = func(res model.DirResult) {
				seen[res.ID]++
			}

			outcome := sched.Run(context.Background(), ids)
			require.Equal(t, len(ids), outcome.Total())
			require.Equal(t, len(ids), outcome.Fetched)
			require.False(t, outcome.HasFailures())

			// Each directory is dispatched to exactly one worker and
			// listed exactly once
			require.Len(t, seen, len(ids))
			for _, id := range ids {
				require.Equal(t, 1, seen[id])
				require.Equal(t, 1, sub.lists["genomes/"+id])
			}
		})
	}
}

func TestSchedulerContainsFailures(t *testing.T) {
	fake := newFakeRemote()
	fake.addFile("genomes/good.1", "a.fna", "ACGT", baseTime)
	fake.addFile("genomes/good.2", "a.fna", "ACGT", baseTime)
	fake.listErr["genomes/bad.1"] = fmt.Errorf("timeout")
	fake.listErr["genomes/bad.2"] = fmt.Errorf("timeout")

	w, _ := newTestWorker(t, fake)
	sched := NewScheduler(w, 2, nil)

	outcome := sched.Run(context.Background(), []string{"good.1", "bad.1", "good.2", "bad.2"})
	require.Equal(t, 4, outcome.Total())
	require.Equal(t, 2, outcome.Fetched)
	require.Equal(t, 2, outcome.Failed)
	require.Equal(t, []string{"bad.1", "bad.2"}, outcome.SortedFailedIDs())
}

func TestSchedulerStopsDispatchOnCancel(t *testing.T) {
	inner := newFakeRemote()
	var ids []string
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("genome.%d", i)
		ids = append(ids, id)
		inner.addFile("genomes/"+id, "a.fna", "ACGT", baseTime)
	}
	gate := &gateRemote{
		inner:   inner,
		started: make(chan string, len(ids)),
		release: make(chan struct{}),
	}

	w := NewWorker(gate, state.NewStore(nil), testPolicy(), "genomes", t.TempDir(), nil)
	sched := NewScheduler(w, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	outcomeCh := make(chan *model.RunOutcome, 1)
	go func() { outcomeCh <- sched.Run(ctx, ids) }()

	// Both workers are now held inside List; the rest of the queue waits
	// behind them
	inFlight := []string{<-gate.started, <-gate.started}
	cancel()
	// Give the dispatcher a moment to observe the cancellation before the
	// held workers free up and could claim another item
	time.Sleep(50 * time.Millisecond)
	close(gate.release)

	outcome := <-outcomeCh

	// The two in-flight directories still report a result; nothing else is
	// dispatched or listed after the cancellation
	require.Equal(t, 2, outcome.Total())
	require.Zero(t, outcome.Fetched)
	require.Len(t, inner.lists, 2)

	var inFlightIDs []string
	for _, dir := range inFlight {
		inFlightIDs = append(inFlightIDs, strings.TrimPrefix(dir, "genomes/"))
	}
	require.ElementsMatch(t, inFlightIDs, outcome.SortedFailedIDs())
}

func TestSchedulerEmptyRun(t *testing.T) {
	w, _ := newTestWorker(t, newFakeRemote())
	sched := NewScheduler(w, 4, nil)

	outcome := sched.Run(context.Background(), nil)
	require.Zero(t, outcome.Total())
	require.False(t, outcome.HasFailures())
}
