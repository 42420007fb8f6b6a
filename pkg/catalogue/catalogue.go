// Package catalogue tracks backups on disk and in a small bbolt index:
// where each backup's files live, which backup is the parent of which,
// and how long each one has been kept. It is pgbackup's analogue of a
// control-plane state store, rebound from cluster objects to backups.
//
// Grounded on pkg/storage/boltdb.go and pkg/storage/store.go (teacher):
// the same bolt.Open/CreateBucketIfNotExists/JSON-per-key pattern, moved
// from node/service/container buckets to a single backups bucket keyed
// "server/label".
package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/pgbackup/pkg/types"
)

// nowFunc is overridden in tests so retention-window calculations are
// deterministic.
var nowFunc = time.Now

var (
	bucketBackups = []byte("backups")
)

// Store is the bbolt-backed metadata index behind a Catalogue.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if necessary) the bbolt index file at
// <baseDir>/catalogue.db.
func OpenStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("catalogue: create base dir: %w", err)
	}

	dbPath := filepath.Join(baseDir, "catalogue.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalogue: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBackups)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalogue: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func backupKey(server, label string) []byte {
	return []byte(server + "/" + label)
}

// Put upserts a backup record.
func (s *Store) Put(b *types.Backup) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketBackups).Put(backupKey(b.Server, b.Label), data)
	})
}

// Get retrieves one backup by server and label.
func (s *Store) Get(server, label string) (*types.Backup, error) {
	var b types.Backup
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBackups).Get(backupKey(server, label))
		if data == nil {
			return fmt.Errorf("catalogue: backup not found: %s/%s", server, label)
		}
		return json.Unmarshal(data, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a backup record. Idempotent, like the teacher's bucket
// deletes.
func (s *Store) Delete(server, label string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackups).Delete(backupKey(server, label))
	})
}

// ListByServer returns every backup recorded for server, in no particular
// order; callers needing a chronology should sort by CreatedAt.
func (s *Store) ListByServer(server string) ([]*types.Backup, error) {
	var out []*types.Backup
	prefix := []byte(server + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBackups).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var b types.Backup
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, &b)
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ErrHasChildren is returned by Delete when a backup is the parent of a
// still-live incremental backup.
type ErrHasChildren struct {
	Label    string
	Children []string
}

func (e *ErrHasChildren) Error() string {
	return fmt.Sprintf("catalogue: backup %s has live incremental children: %v", e.Label, e.Children)
}

// Catalogue is the domain-level API over a Store: on-disk layout plus
// parent-chain and retention-aware operations. Grounded on
// pkg/manager.Manager (teacher): a thin domain facade over a Store,
// exposing CRUD plus relationship-aware helpers.
type Catalogue struct {
	baseDir string
	store   *Store
}

// New creates a Catalogue rooted at baseDir. The on-disk layout is
// <baseDir>/<server>/backup/<label>/ for backup contents and
// <baseDir>/<server>/wal/ for archived WAL segments.
func New(baseDir string, store *Store) *Catalogue {
	return &Catalogue{baseDir: baseDir, store: store}
}

// ServerDir returns the root directory for one server's backups and WAL
// archive.
func (c *Catalogue) ServerDir(server string) string {
	return filepath.Join(c.baseDir, server)
}

// BackupDir returns the directory a backup's files should live under.
func (c *Catalogue) BackupDir(server, label string) string {
	return filepath.Join(c.ServerDir(server), "backup", label)
}

// WALDir returns the directory archived WAL segments for server live
// under.
func (c *Catalogue) WALDir(server string) string {
	return filepath.Join(c.ServerDir(server), "wal")
}

// ServerInfoPath returns the path to server's server.info file, a small
// JSON sidecar recording the PostgreSQL system identifier and version
// observed at the most recent successful backup.
func (c *Catalogue) ServerInfoPath(server string) string {
	return filepath.Join(c.ServerDir(server), "server.info")
}

// EnsureLayout creates the on-disk directories for server if absent.
func (c *Catalogue) EnsureLayout(server string) error {
	for _, dir := range []string{c.BackupDir(server, "."), c.WALDir(server)} {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return fmt.Errorf("catalogue: create layout for %s: %w", server, err)
		}
	}
	if err := os.MkdirAll(c.WALDir(server), 0o755); err != nil {
		return fmt.Errorf("catalogue: create wal dir for %s: %w", server, err)
	}
	return nil
}

// RegisterBackup creates the backup's directory and records it in the
// index.
func (c *Catalogue) RegisterBackup(b *types.Backup) error {
	if err := os.MkdirAll(c.BackupDir(b.Server, b.Label), 0o755); err != nil {
		return fmt.Errorf("catalogue: create backup dir: %w", err)
	}
	return c.store.Put(b)
}

// UpdateBackup overwrites a backup's record, e.g. to flip its status to
// Valid once verification succeeds.
func (c *Catalogue) UpdateBackup(b *types.Backup) error {
	return c.store.Put(b)
}

// ListBackups returns every backup known for server, ordered oldest to
// newest by CreatedAt.
func (c *Catalogue) ListBackups(server string) ([]*types.Backup, error) {
	backups, err := c.store.ListByServer(server)
	if err != nil {
		return nil, err
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.Before(backups[j].CreatedAt)
	})
	return backups, nil
}

// LocateBackup returns one backup by label.
func (c *Catalogue) LocateBackup(server, label string) (*types.Backup, error) {
	return c.store.Get(server, label)
}

// LocateNewest returns the most recently created valid backup for
// server, or nil if none exist.
func (c *Catalogue) LocateNewest(server string) (*types.Backup, error) {
	backups, err := c.ListBackups(server)
	if err != nil {
		return nil, err
	}
	for i := len(backups) - 1; i >= 0; i-- {
		if backups[i].Status == types.BackupStatusValid {
			return backups[i], nil
		}
	}
	return nil, nil
}

// LocateOldest returns the least recently created valid backup for
// server, or nil if none exist.
func (c *Catalogue) LocateOldest(server string) (*types.Backup, error) {
	backups, err := c.ListBackups(server)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		if b.Status == types.BackupStatusValid {
			return b, nil
		}
	}
	return nil, nil
}

// ParentChain returns the full lineage of a backup, starting with the
// backup itself and walking ParentLabel back to the base full backup.
func (c *Catalogue) ParentChain(server, label string) ([]*types.Backup, error) {
	var chain []*types.Backup
	cur := label
	for cur != "" {
		b, err := c.store.Get(server, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, b)
		cur = b.ParentLabel
	}
	return chain, nil
}

// Children returns every backup whose ParentLabel is label.
func (c *Catalogue) Children(server, label string) ([]*types.Backup, error) {
	all, err := c.store.ListByServer(server)
	if err != nil {
		return nil, err
	}
	var out []*types.Backup
	for _, b := range all {
		if b.ParentLabel == label {
			out = append(out, b)
		}
	}
	return out, nil
}

// DeleteBackup removes a backup's on-disk contents and index record. It
// refuses to delete a backup that is the parent of a still-live
// incremental backup, returning *ErrHasChildren.
func (c *Catalogue) DeleteBackup(server, label string) error {
	children, err := c.Children(server, label)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		names := make([]string, len(children))
		for i, ch := range children {
			names[i] = ch.Label
		}
		return &ErrHasChildren{Label: label, Children: names}
	}

	if err := os.RemoveAll(c.BackupDir(server, label)); err != nil {
		return fmt.Errorf("catalogue: remove backup dir: %w", err)
	}
	return c.store.Delete(server, label)
}

// RetentionSet computes which valid backups for server are eligible for
// deletion under policy: every backup older than the KeepCount most
// recent ones, further restricted to those outside the KeepFor window,
// and never a backup that is still a live incremental parent.
func (c *Catalogue) RetentionSet(server string, policy types.RetentionPolicy) ([]*types.Backup, error) {
	backups, err := c.ListBackups(server)
	if err != nil {
		return nil, err
	}

	var valid []*types.Backup
	for _, b := range backups {
		if b.Status == types.BackupStatusValid {
			valid = append(valid, b)
		}
	}

	keep := policy.KeepCount
	if keep <= 0 {
		keep = 1
	}
	if len(valid) <= keep {
		return nil, nil
	}

	candidates := valid[:len(valid)-keep]

	var eligible []*types.Backup
	for _, b := range candidates {
		if policy.KeepFor > 0 {
			age := nowFunc().Sub(b.CreatedAt)
			if age < policy.KeepFor {
				continue
			}
		}
		children, err := c.Children(server, b.Label)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			continue
		}
		eligible = append(eligible, b)
	}
	return eligible, nil
}
