package mirror

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/MGXlab/cirtap/logger"
)

// TargetsFromSummary reads the full set of genome ids to mirror from the
// genome_summary table. The file is tab-separated with a header row; only
// the genome_id column matters, the rest of the columns belong to the
// reporting tools. Duplicates are dropped, first-seen order is kept.
func TargetsFromSummary(summaryPath string, log logger.Logger) ([]string, error) {
	if log == nil {
		log = logger.NewNoOp()
	}

	f, err := os.Open(summaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary %s: %w", summaryPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Summary rows carry long free-text columns
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("summary %s is empty", summaryPath)
	}

	idCol := -1
	for i, name := range strings.Split(scanner.Text(), "\t") {
		if name == "genome_id" {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("summary %s has no genome_id column", summaryPath)
	}

	var ids []string
	seen := make(map[string]struct{})
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if idCol >= len(fields) {
			continue
		}
		id := strings.TrimSpace(fields[idCol])
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summary %s: %w", summaryPath, err)
	}

	log.Info("loaded %d genome ids from %s", len(ids), summaryPath)
	return ids, nil
}
