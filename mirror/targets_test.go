package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "genome_summary")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestTargetsFromSummary(t *testing.T) {
	p := writeSummary(t, "genome_id\tgenome_name\ttaxon_id\n"+
		"83332.12\tMycobacterium tuberculosis H37Rv\t83332\n"+
		"511145.12\tEscherichia coli K-12\t511145\n"+
		"83332.12\tduplicate row\t83332\n"+
		"\tmissing id\t0\n")

	ids, err := TargetsFromSummary(p, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"83332.12", "511145.12"}, ids)
}

func TestTargetsColumnPosition(t *testing.T) {
	// genome_id is found by header name, not position
	p := writeSummary(t, "genome_name\tgenome_id\n"+
		"Mycobacterium tuberculosis\t83332.12\n")

	ids, err := TargetsFromSummary(p, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"83332.12"}, ids)
}

func TestTargetsEmptySummary(t *testing.T) {
	p := writeSummary(t, "")
	_, err := TargetsFromSummary(p, nil)
	require.Error(t, err)
}

func TestTargetsMissingColumn(t *testing.T) {
	p := writeSummary(t, "genome_name\ttaxon_id\nfoo\t1\n")
	_, err := TargetsFromSummary(p, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "genome_id")
}

func TestTargetsMissingFile(t *testing.T) {
	_, err := TargetsFromSummary(filepath.Join(t.TempDir(), "genome_summary"), nil)
	require.Error(t, err)
}
