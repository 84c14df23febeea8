// Package store provides a thin bbolt wrapper for movetrack's local catalog.
//
// Design philosophy: the catalog is an intentional data accumulator, not a
// transparent cache. Entries are written explicitly by fetch/analyze
// commands and read by listing commands. No TTL, no auto-invalidation —
// you own your data.
//
// Buckets:
//
//	datasets  — summaries of fetched CSV files keyed by dataset name
//	reports   — metadata for written report files keyed by report ID
//	snapshots — saved command lines for reproducible workflows
//	_meta     — internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/calidris/movetrack/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketDatasets  = []byte("datasets")
	bucketReports   = []byte("reports")
	bucketSnapshots = []byte("snapshots")
	bucketInternal  = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"datasets", "reports", "snapshots"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDatasets, bucketReports, bucketSnapshots, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		// Write schema version if not set.
		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Datasets ─────────────────────────────────────────────────────────────────

// PutDataset stores a dataset summary keyed by its name.
func (s *Store) PutDataset(sum model.DatasetSummary) error {
	if sum.Name == "" {
		return fmt.Errorf("dataset name is empty")
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encoding dataset summary: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDatasets).Put([]byte(sum.Name), data)
	})
}

// GetDataset retrieves a dataset summary by name.
// Returns (summary, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetDataset(name string) (model.DatasetSummary, bool, error) {
	var sum model.DatasetSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDatasets).Get([]byte(name))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &sum)
	})
	if err != nil {
		return sum, false, err
	}
	return sum, sum.Name != "", nil
}

// ListDatasets returns all stored dataset summaries, sorted by name.
func (s *Store) ListDatasets() ([]model.DatasetSummary, error) {
	var sums []model.DatasetSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDatasets).ForEach(func(k, v []byte) error {
			var sum model.DatasetSummary
			if err := json.Unmarshal(v, &sum); err != nil {
				return err
			}
			sums = append(sums, sum)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sums, func(i, j int) bool { return sums[i].Name < sums[j].Name })
	return sums, nil
}

// DeleteDataset removes a dataset summary by name.
func (s *Store) DeleteDataset(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDatasets).Delete([]byte(name))
	})
}

// ─── Reports ──────────────────────────────────────────────────────────────────

// ReportMeta records one report file written under the reports directory.
type ReportMeta struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Dataset   string    `json:"dataset,omitempty"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// PutReport saves report metadata keyed by its ID.
func (s *Store) PutReport(rep ReportMeta) error {
	if rep.ID == "" {
		return fmt.Errorf("report ID is empty")
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report meta: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).Put([]byte(rep.ID), data)
	})
}

// GetReport retrieves report metadata by ID.
func (s *Store) GetReport(id string) (ReportMeta, bool, error) {
	var rep ReportMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketReports).Get([]byte(id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &rep)
	})
	if err != nil {
		return rep, false, err
	}
	return rep, rep.ID != "", nil
}

// ListReports returns all report metadata, newest first.
func (s *Store) ListReports() ([]ReportMeta, error) {
	var reps []ReportMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).ForEach(func(k, v []byte) error {
			var rep ReportMeta
			if err := json.Unmarshal(v, &rep); err != nil {
				return err
			}
			reps = append(reps, rep)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].CreatedAt.After(reps[j].CreatedAt) })
	return reps, nil
}

// ─── Snapshots ────────────────────────────────────────────────────────────────

// Snapshot represents a saved command for reproducible workflows.
type Snapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CommandLine string    `json:"command_line"`
	CreatedAt   time.Time `json:"created_at"`
}

// PutSnapshot saves a snapshot. The key is snap:<ID>.
func (s *Store) PutSnapshot(snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte("snap:"+snap.ID), b)
	})
}

// GetSnapshot retrieves a snapshot by ID.
func (s *Store) GetSnapshot(id string) (Snapshot, bool, error) {
	var snap Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get([]byte("snap:" + id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &snap)
	})
	if err != nil {
		return snap, false, err
	}
	return snap, snap.ID != "", nil
}

// ListSnapshots returns all snapshots in key order.
func (s *Store) ListSnapshots() ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return err
			}
			snaps = append(snaps, snap)
			return nil
		})
	})
	return snaps, err
}

// DeleteSnapshot removes a snapshot by ID.
func (s *Store) DeleteSnapshot(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte("snap:" + id))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	buckets := map[string][]byte{
		"datasets":  bucketDatasets,
		"reports":   bucketReports,
		"snapshots": bucketSnapshots,
	}

	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for name, bname := range buckets {
			b := tx.Bucket(bname)
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
