// Package registry keeps a ledger of training runs in a bbolt database so
// that successive invocations can be compared.
package registry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

const runsBucket = "runs"

// Run is one recorded training run.
type Run struct {
	ID           string                 `json:"id"`
	StartedAt    time.Time              `json:"started_at"`
	Duration     time.Duration          `json:"duration"`
	Accuracy     float64                `json:"accuracy"`
	OOBScore     *float64               `json:"oob_score,omitempty"`
	ModelPath    string                 `json:"model_path"`
	ArtifactSize int64                  `json:"artifact_size"`
	ArtifactHash string                 `json:"artifact_hash"`
	WeightHash   string                 `json:"weight_hash"`
	NSamples     int                    `json:"n_samples"`
	NFeatures    int                    `json:"n_features"`
	Params       map[string]interface{} `json:"params,omitempty"`
}

// Store is a bbolt-backed run ledger. It is safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the ledger at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, werrors.Wrapf(err, "create registry directory %s", dir)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, werrors.Wrapf(err, "failed to open registry %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return werrors.Wrap(err, "create runs bucket")
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends run to the ledger and returns it with ID filled in. Keys
// are big-endian bucket sequence numbers so cursor order is insertion order.
func (s *Store) Record(run Run) (Run, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return werrors.Wrap(err, "next run sequence")
		}
		if run.ID == "" {
			run.ID = fmt.Sprintf("run-%06d", seq)
		}

		data, err := json.Marshal(run)
		if err != nil {
			return werrors.Wrap(err, "marshal run")
		}
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit below 1 returns all.
func (s *Store) List(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return werrors.Wrapf(err, "decode run %d", binary.BigEndian.Uint64(k))
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Latest returns the most recent run, or nil when the ledger is empty.
func (s *Store) Latest() (*Run, error) {
	runs, err := s.List(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// Count returns the number of recorded runs.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(runsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
