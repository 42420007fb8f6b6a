// Package types holds the value types shared across pgbackup: backups,
// manifest entries, and the block-reference-table key.
package types

import "time"

// BackupKind distinguishes a full backup from an incremental one.
type BackupKind string

const (
	BackupKindFull        BackupKind = "full"
	BackupKindIncremental BackupKind = "incremental"
)

// BackupStatus tracks the lifecycle of a backup on disk.
type BackupStatus string

const (
	BackupStatusInProgress BackupStatus = "in-progress"
	BackupStatusValid      BackupStatus = "valid"
	BackupStatusFailed     BackupStatus = "failed"
)

// Backup is a single labelled snapshot of a server's data directory.
//
// Label order is lexicographic creation order (spec.md §3): labels are
// generated from a UTC timestamp so that string comparison sorts by
// creation time.
type Backup struct {
	Label        string       `json:"label"`
	Server       string       `json:"server"`
	Kind         BackupKind   `json:"kind"`
	ParentLabel  string       `json:"parent_label,omitempty"`
	Status       BackupStatus `json:"status"`
	StartWAL     string       `json:"start_wal"`
	StopWAL      string       `json:"stop_wal"`
	RootDir      string       `json:"root_dir"`
	Compression  string       `json:"compression,omitempty"`
	Encryption   string       `json:"encryption,omitempty"`
	SizeBytes    int64        `json:"size_bytes"`
	CreatedAt    time.Time    `json:"created_at"`
	CompletedAt  time.Time    `json:"completed_at,omitempty"`
	Tablespaces  []Tablespace `json:"tablespaces,omitempty"`
}

// Tablespace is a named storage area outside the main data directory.
type Tablespace struct {
	OID  uint32 `json:"oid"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Fork identifies one of the four relation forks a BRT key can reference.
type Fork uint8

const (
	ForkMain Fork = iota
	ForkFSM
	ForkVM
	ForkInit
)

func (f Fork) String() string {
	switch f {
	case ForkMain:
		return "main"
	case ForkFSM:
		return "fsm"
	case ForkVM:
		return "vm"
	case ForkInit:
		return "init"
	default:
		return "unknown"
	}
}

// RelationForkKey is the 4-tuple a block reference table is keyed by.
type RelationForkKey struct {
	TablespaceOID uint32
	DatabaseOID   uint32
	RelationOID   uint32
	ForkID        Fork
}

// ManifestEntry is one row of a backup manifest (spec.md §3, §4.7).
type ManifestEntry struct {
	Path              string    `json:"Path"`
	Size              int64     `json:"Size"`
	ChecksumAlgorithm string    `json:"Checksum-Algorithm"`
	Checksum          string    `json:"Checksum"`
	LastModification  time.Time `json:"Last-Modification"`
}

// RetentionPolicy bounds how many/how long backups are kept.
type RetentionPolicy struct {
	KeepCount int           // keep at least this many most-recent valid backups; values below 1 count as 1
	KeepFor   time.Duration // keep backups newer than this, 0 = unbounded
}
