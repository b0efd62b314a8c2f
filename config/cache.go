package config

import "fmt"

// CacheConfig holds the configuration for the per-run outcome cache. The
// cache is what makes repeated invocations cheap: directories recorded as
// fully processed for the current release are skipped without a single
// remote call.
type CacheConfig struct {
	Path   string `json:"path" yaml:"path"`                                   // path to the bbolt database file
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`           // bucket name
	NoSync bool   `json:"no_sync,omitempty" yaml:"no_sync,omitempty"`         // disable fsync for better performance
}

// Validate validates the cache configuration.
func (cc *CacheConfig) Validate() error {
	if cc.Path == "" {
		return fmt.Errorf("cache path is required")
	}
	if cc.Bucket == "" {
		return fmt.Errorf("cache bucket is required")
	}
	return nil
}

// ApplyDefaults sets default values if not provided.
func (cc *CacheConfig) ApplyDefaults() {
	if cc.Bucket == "" {
		cc.Bucket = "runs"
	}
	// NoSync remains false by default for data safety
}
