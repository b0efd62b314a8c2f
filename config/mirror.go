package config

import (
	"fmt"
	"path/filepath"
)

// MirrorConfig holds the run-level settings of one mirror invocation.
type MirrorConfig struct {
	DBDir            string `json:"db_dir" yaml:"db_dir"`                                           // destination root of the mirror
	CacheDir         string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`                 // run cache location (default: <db_dir>/.cache)
	Jobs             int    `json:"jobs,omitempty" yaml:"jobs,omitempty"`                           // concurrent download workers
	Resume           bool   `json:"resume,omitempty" yaml:"resume,omitempty"`                       // only revisit failed/incomplete directories
	SkipReleaseCheck bool   `json:"skip_release_check,omitempty" yaml:"skip_release_check,omitempty"`
	ForceCheck       bool   `json:"force_check,omitempty" yaml:"force_check,omitempty"`             // mirror genomes even when RELEASE_NOTES are clean
	ArchiveNotes     bool   `json:"archive_notes,omitempty" yaml:"archive_notes,omitempty"`         // tar.gz prior RELEASE_NOTES before updating
}

// Validate validates the mirror configuration.
func (mc *MirrorConfig) Validate() error {
	if mc.DBDir == "" {
		return fmt.Errorf("db dir is required")
	}
	if mc.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", mc.Jobs)
	}
	return nil
}

// ApplyDefaults sets default values if they are not provided.
func (mc *MirrorConfig) ApplyDefaults() {
	if mc.Jobs <= 0 {
		mc.Jobs = 1
	}
	if mc.CacheDir == "" && mc.DBDir != "" {
		mc.CacheDir = filepath.Join(mc.DBDir, ".cache")
	}
}

// NotesDir is the local RELEASE_NOTES directory under the mirror root.
func (mc *MirrorConfig) NotesDir() string {
	return filepath.Join(mc.DBDir, "RELEASE_NOTES")
}

// GenomesDir is the local genomes directory under the mirror root.
func (mc *MirrorConfig) GenomesDir() string {
	return filepath.Join(mc.DBDir, "genomes")
}
