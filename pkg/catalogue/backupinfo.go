package catalogue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/pgbackup/pkg/types"
)

// BackupInfoFile is the name of the key/value metadata file every backup
// directory carries, alongside backup_manifest and backup.sha256.
const BackupInfoFile = "backup.info"

// WriteBackupInfo writes b's summary as "key = value" lines to
// <dir>/backup.info, the plain-text sidecar scenario 1 checks for
// kind=full. Unlike server.info (a JSON blob describing the server's
// last observed identity), backup.info is deliberately line-oriented so
// an operator can read it with grep without parsing JSON.
func WriteBackupInfo(dir string, b *types.Backup) error {
	f, err := os.Create(fileInDir(dir))
	if err != nil {
		return fmt.Errorf("catalogue: create backup.info: %w", err)
	}
	defer f.Close()

	entries := map[string]string{
		"label":       b.Label,
		"server":      b.Server,
		"kind":        string(b.Kind),
		"status":      string(b.Status),
		"start_wal":   b.StartWAL,
		"stop_wal":    b.StopWAL,
		"compression": b.Compression,
		"created_at":  b.CreatedAt.UTC().Format(backupInfoTimeFormat),
	}
	if b.ParentLabel != "" {
		entries["parent_label"] = b.ParentLabel
	}
	if b.Encryption != "" {
		entries["encryption"] = "aes"
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s = %s\n", k, entries[k]); err != nil {
			return fmt.Errorf("catalogue: write backup.info: %w", err)
		}
	}
	return w.Flush()
}

// ReadBackupInfo parses <dir>/backup.info back into a key/value map.
func ReadBackupInfo(dir string) (map[string]string, error) {
	f, err := os.Open(fileInDir(dir))
	if err != nil {
		return nil, fmt.Errorf("catalogue: open backup.info: %w", err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("catalogue: scan backup.info: %w", err)
	}
	return out, nil
}

const backupInfoTimeFormat = "2006-01-02T15:04:05Z"

func fileInDir(dir string) string {
	return filepath.Join(dir, BackupInfoFile)
}
