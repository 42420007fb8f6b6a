// Package types defines pgbackup's core domain types: backups, tablespaces,
// manifest entries, and the relation-fork key used by the block reference
// table. Everything else in pgbackup builds on these.
package types
