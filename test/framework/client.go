package framework

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/pgbackup/pkg/control"
)

// Client wraps a control-socket connection with the JSON-decoding
// glue black-box tests need on top of pkg/control.Client's raw
// Response.Data, the way the teacher's framework wrapped its
// generated RPC client with test convenience methods.
type Client struct {
	*control.Client
}

// NewClient dials the daemon's control socket at socketPath.
func NewClient(socketPath string) (*Client, error) {
	c, err := control.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}

// DefaultSocketPath returns the control socket a locally started
// daemon listens on, honoring PGBACKUP_TEST_SOCKET for out-of-tree
// runs.
func DefaultSocketPath() string {
	if s := os.Getenv("PGBACKUP_TEST_SOCKET"); s != "" {
		return s
	}
	return "/tmp/pgmoneta"
}

// BackupResult is the decoded Data payload of a BACKUP, DETAILS, or
// LIST_BACKUP response.
type BackupResult struct {
	Label       string `json:"label"`
	Server      string `json:"server"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	SizeBytes   int64  `json:"size_bytes"`
	CompletedAt string `json:"completed_at"`
}

// RunBackup issues a BACKUP request from a BackupSpec and decodes the
// result.
func (c *Client) RunBackup(spec BackupSpec) (*BackupResult, error) {
	resp, err := c.Backup(spec.Server, spec.Kind, spec.ParentLabel, spec.SourceDir, spec.Compression, spec.Encryption)
	if err != nil {
		return nil, err
	}
	var out BackupResult
	if err := decodeData(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("framework: decode backup result: %w", err)
	}
	return &out, nil
}

// FetchDetails issues a DETAILS request and decodes the backup's
// catalogue entry.
func (c *Client) FetchDetails(server, label string) (*BackupResult, error) {
	resp, err := c.Details(server, label)
	if err != nil {
		return nil, err
	}
	var out BackupResult
	if err := decodeData(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("framework: decode details: %w", err)
	}
	return &out, nil
}

// FetchBackups drains a LIST_BACKUP stream into a slice, decoding
// each item.
func (c *Client) FetchBackups(server string) ([]BackupResult, error) {
	var out []BackupResult
	err := c.ListBackups(server, func(resp control.Response) error {
		var b BackupResult
		if err := decodeData(resp.Data, &b); err != nil {
			return fmt.Errorf("framework: decode backup entry: %w", err)
		}
		out = append(out, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ServerOnline reports whether the named server (or, if server is
// empty, every configured server) is reachable according to a STATUS
// request.
func (c *Client) ServerOnline(server string) (bool, error) {
	resp, err := c.Status(server)
	if err != nil {
		return false, err
	}
	if server == "" {
		var statuses map[string]bool
		if err := decodeData(resp.Data, &statuses); err != nil {
			return false, fmt.Errorf("framework: decode status: %w", err)
		}
		for _, online := range statuses {
			if !online {
				return false, nil
			}
		}
		return len(statuses) > 0, nil
	}

	var status struct {
		Online bool `json:"online"`
	}
	if err := decodeData(resp.Data, &status); err != nil {
		return false, fmt.Errorf("framework: decode status: %w", err)
	}
	return status.Online, nil
}

// decodeData re-marshals a Response.Data value (already decoded into
// map[string]interface{} by encoding/json) into a concrete struct,
// since control.Response.Data is declared as interface{} to stay
// command-agnostic.
func decodeData(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
