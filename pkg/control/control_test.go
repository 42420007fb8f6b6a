package control

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/orchestrator"
	"github.com/cuemby/pgbackup/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *Client, *catalogue.Catalogue) {
	t.Helper()
	dir := t.TempDir()
	store, err := catalogue.OpenStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	cat := catalogue.New(dir, store)

	servers := map[string]*config.Server{
		"pg1": config.NewServer(config.ServerConfig{Name: "pg1"}),
	}
	servers["pg1"].SetOnline(true)

	srv := New(orchestrator.New(cat, 2), servers, filepath.Join(dir, "pgmoneta"))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })

	// give the accept goroutine a moment to start listening
	time.Sleep(10 * time.Millisecond)

	client, err := Dial(filepath.Join(dir, "pgmoneta"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return srv, client, cat
}

func TestClientIsAlive(t *testing.T) {
	_, client, _ := newTestServer(t)
	assert.NoError(t, client.IsAlive())
}

func TestClientStatusUnknownServer(t *testing.T) {
	_, client, _ := newTestServer(t)
	_, err := client.Status("missing")
	assert.Error(t, err)
}

func TestClientStatusKnownServer(t *testing.T) {
	_, client, _ := newTestServer(t)
	resp, err := client.Status("pg1")
	require.NoError(t, err)
	assert.True(t, resp.Outcome)
}

func TestClientStatusAllServers(t *testing.T) {
	_, client, _ := newTestServer(t)
	resp, err := client.Status("")
	require.NoError(t, err)
	assert.True(t, resp.Outcome)
}

func TestClientListBackupsStreamsAndTerminates(t *testing.T) {
	_, client, cat := newTestServer(t)

	for i := 0; i < 3; i++ {
		b := &types.Backup{
			Server:    "pg1",
			Label:     time.Now().UTC().Add(time.Duration(i) * time.Minute).Format("20060102T150405.000000000"),
			Kind:      types.BackupKindFull,
			Status:    types.BackupStatusValid,
			RootDir:   cat.BackupDir("pg1", "x"),
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, cat.RegisterBackup(b))
	}

	var count int
	err := client.ListBackups("pg1", func(resp Response) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestClientDetailsUnknownBackup(t *testing.T) {
	_, client, _ := newTestServer(t)
	_, err := client.Details("pg1", "missing-label")
	assert.Error(t, err)
}

func TestClientResetUnknownServer(t *testing.T) {
	_, client, _ := newTestServer(t)
	assert.Error(t, client.Reset("missing"))
}

func TestClientResetClearsRepositoryLock(t *testing.T) {
	srv, client, _ := newTestServer(t)
	require.True(t, srv.servers["pg1"].TryLockRepository())

	assert.NoError(t, client.Reset("pg1"))
	assert.True(t, srv.servers["pg1"].TryLockRepository(), "lock should be free again after Reset")
}

func TestServerStopHookInvoked(t *testing.T) {
	srv, client, _ := newTestServer(t)

	var stopped bool
	srv.Stop = func() { stopped = true }

	assert.NoError(t, client.Stop())
	assert.True(t, stopped)
}

func TestServerReloadHookError(t *testing.T) {
	srv, client, _ := newTestServer(t)

	srv.Reload = func() error { return assert.AnError }
	assert.Error(t, client.Reload())
}
