package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
)

// Provider is the read-only contract against the remote archive. Paths are
// relative to the archive root (e.g. "genomes/83332.12"). Implementations
// must be safe for concurrent use; no session is shared between concurrent
// calls.
type Provider interface {
	// List returns the entries of one remote directory in listing order.
	// Transient failures are retried per the provider's policy before a
	// TransientError is returned.
	List(ctx context.Context, dir string) ([]model.RemoteEntry, error)
	// Fetch opens one remote file for reading. It is a single attempt;
	// retrying a failed transfer is the caller's decision, since only the
	// caller can discard partially written output.
	Fetch(ctx context.Context, remotePath string) (io.ReadCloser, error)
	Close() error
}

// TransientError marks a listing or fetch that failed after the retry
// policy was exhausted. Callers contain it at the work-item level; it never
// aborts a run.
type TransientError struct {
	Op   string // "list" or "fetch"
	Path string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure for %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Create creates a remote provider based on configuration.
func Create(cfg *config.RemoteConfig, log logger.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid remote configuration: %w", err)
	}

	switch cfg.RemoteType {
	case config.RemoteTypeFTP:
		return NewFTPRemote(cfg.FTP, &cfg.Common, log)
	case config.RemoteTypeS3:
		return NewS3Remote(cfg.S3, &cfg.Common, log)
	default:
		return nil, fmt.Errorf("unsupported remote type: %s", cfg.RemoteType)
	}
}
