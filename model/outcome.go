package model

import (
	"fmt"
	"sort"
)

// Decision is the classifier's verdict for one directory.
type Decision int

const (
	DecisionNew Decision = iota
	DecisionChanged
	DecisionUnchanged
	DecisionPartial
)

func (d Decision) String() string {
	switch d {
	case DecisionNew:
		return "new"
	case DecisionChanged:
		return "changed"
	case DecisionUnchanged:
		return "unchanged"
	case DecisionPartial:
		return "partial"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// WorkItem names one directory to synchronize in this run. Each item is
// claimed by exactly one worker; the worker performs the remote listing
// itself so that skipped directories cost no remote calls at all.
type WorkItem struct {
	ID string
}

// DirResult is what one worker reports back for one WorkItem.
type DirResult struct {
	ID       string
	Decision Decision
	Fetched  []string // files downloaded and committed this run
	Failed   []string // files attempted but left incomplete
	Err      error    // directory-level failure (listing, record I/O)
}

// OK reports whether the directory ended the run fully consistent.
func (r DirResult) OK() bool {
	return r.Err == nil && len(r.Failed) == 0
}

// RunOutcome aggregates exactly one DirResult per dispatched WorkItem.
// It is owned by the run controller and written from a single goroutine.
type RunOutcome struct {
	Fetched   int // directories that were new and fully downloaded
	Updated   int // directories refreshed (changed or resumed)
	Skipped   int // directories classified unchanged
	Failed    int // directories with any failure
	FailedIDs []string
}

// Add folds one worker result into the counts.
func (o *RunOutcome) Add(res DirResult) {
	if !res.OK() {
		o.Failed++
		o.FailedIDs = append(o.FailedIDs, res.ID)
		return
	}
	switch res.Decision {
	case DecisionNew:
		o.Fetched++
	case DecisionChanged, DecisionPartial:
		o.Updated++
	case DecisionUnchanged:
		o.Skipped++
	}
}

// Total is the number of results folded in so far.
func (o *RunOutcome) Total() int {
	return o.Fetched + o.Updated + o.Skipped + o.Failed
}

// HasFailures reports whether any directory ended in failure.
func (o *RunOutcome) HasFailures() bool {
	return o.Failed > 0
}

func (o *RunOutcome) String() string {
	return fmt.Sprintf("fetched=%d, updated=%d, skipped=%d, failed=%d",
		o.Fetched, o.Updated, o.Skipped, o.Failed)
}

// SortedFailedIDs returns the failed directory identifiers in stable order
// for reporting.
func (o *RunOutcome) SortedFailedIDs() []string {
	ids := append([]string(nil), o.FailedIDs...)
	sort.Strings(ids)
	return ids
}
