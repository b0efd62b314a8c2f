package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/MGXlab/cirtap/config"
)

// Outcome status values stored in the run cache.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	ErrNotFound       = errors.New("directory not in run cache")
	ErrBucketNotFound = errors.New("bucket not found")
)

// DirOutcome is the cached result of the last attempt at one directory.
// Resume runs skip directories recorded ok for the current release version
// without issuing a single remote call for them.
type DirOutcome struct {
	Version string `json:"version"`          // release version the outcome belongs to
	Status  string `json:"status"`           // ok or failed
	Fetched int    `json:"fetched"`          // files committed in that attempt
	Failed  int    `json:"failed,omitempty"` // files left incomplete
	Unix    int64  `json:"unix"`             // when the outcome was recorded
}

// RunCache is a bbolt-backed store of per-directory outcomes.
type RunCache struct {
	db     *bbolt.DB
	bucket string
}

// OpenRunCache opens (creating if needed) the run cache database.
func OpenRunCache(cfg *config.CacheConfig) (*RunCache, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := bbolt.Open(cfg.Path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	db.NoSync = cfg.NoSync

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cfg.Bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &RunCache{db: db, bucket: cfg.Bucket}, nil
}

func (c *RunCache) Close() error {
	return c.db.Close()
}

// Get returns the cached outcome for one directory id.
func (c *RunCache) Get(id string) (*DirOutcome, error) {
	var out DirOutcome
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val := b.Get([]byte(id))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Put records the outcome for one directory id.
func (c *RunCache) Put(id string, out DirOutcome) error {
	return c.PutBatch(map[string]DirOutcome{id: out})
}

// PutBatch records outcomes for many directories in one transaction.
func (c *RunCache) PutBatch(entries map[string]DirOutcome) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		for id, out := range entries {
			val, err := json.Marshal(out)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Completed returns the set of directory ids recorded ok for the given
// release version. Outcomes from other versions do not count: a new release
// re-checks everything.
func (c *RunCache) Completed(version string) (map[string]struct{}, error) {
	done := make(map[string]struct{})
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var out DirOutcome
			if err := json.Unmarshal(v, &out); err != nil {
				return fmt.Errorf("unmarshal error for key %s: %w", k, err)
			}
			if out.Status == OutcomeOK && out.Version == version {
				done[string(k)] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Count returns the number of directories with any cached outcome.
func (c *RunCache) Count() (int64, error) {
	var count int64
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			count++
			return nil
		})
	})
	return count, err
}
