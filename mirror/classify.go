package mirror

import (
	"sort"

	"github.com/MGXlab/cirtap/model"
)

// Classification is the verdict for one directory: what it is and which
// files need fetching.
type Classification struct {
	Decision model.Decision
	Fetch    []string
}

// Classify compares a remote listing against the local record and decides
// what to do with the directory. It is a pure function; all I/O happens in
// the worker around it.
//
// A file is fetched when it is unknown locally, when its remote timestamp
// has advanced past the recorded one, or when its last transfer was left
// incomplete. The comparison is timestamps only: hashing every file at this
// scale costs more than the occasional missed same-granularity rewrite,
// which is an accepted blind spot of the mirror.
func Classify(entries []model.RemoteEntry, rec model.DirRecord) Classification {
	files := model.Files(entries)

	if len(rec) == 0 {
		fetch := make([]string, 0, len(files))
		for _, f := range files {
			fetch = append(fetch, f.Name)
		}
		sort.Strings(fetch)
		return Classification{Decision: model.DecisionNew, Fetch: fetch}
	}

	var fetch []string
	resumeOnly := true
	for _, f := range files {
		fr, known := rec[f.Name]
		switch {
		case !known:
			fetch = append(fetch, f.Name)
			resumeOnly = false
		case fr.Status == model.StatusIncomplete:
			fetch = append(fetch, f.Name)
		case fr.ModTime.Before(f.ModTime):
			fetch = append(fetch, f.Name)
			resumeOnly = false
		}
	}

	if len(fetch) == 0 {
		return Classification{Decision: model.DecisionUnchanged}
	}
	sort.Strings(fetch)

	// Picking up only leftover incomplete files, and not all of them, is a
	// resumed partial fetch rather than a remote-side change.
	if resumeOnly && len(fetch) < len(files) {
		return Classification{Decision: model.DecisionPartial, Fetch: fetch}
	}
	return Classification{Decision: model.DecisionChanged, Fetch: fetch}
}
