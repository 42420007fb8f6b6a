package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/types"
)

func newTestCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	dir := t.TempDir()
	store, err := catalogue.OpenStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return catalogue.New(dir, store)
}

func TestSchedulerPrunesExpiredBackups(t *testing.T) {
	cat := newTestCatalogue(t)
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	server.SetOnline(true)

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

	policies := map[string]types.RetentionPolicy{"pg1": {KeepCount: 1}}
	s := New(cat, []*config.Server{server}, policies, time.Hour)

	s.sweep()

	remaining, err := cat.ListBackups("pg1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSchedulerSkipsServersWithoutAPolicy(t *testing.T) {
	cat := newTestCatalogue(t)
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	server.SetOnline(true)

	b := &types.Backup{
		Server:    "pg1",
		Label:     "20260101T000000",
		Kind:      types.BackupKindFull,
		Status:    types.BackupStatusValid,
		RootDir:   cat.BackupDir("pg1", "20260101T000000"),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, cat.RegisterBackup(b))

	s := New(cat, []*config.Server{server}, nil, time.Hour)
	s.sweep()

	remaining, err := cat.ListBackups("pg1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "server with no policy entry should be left untouched")
}

func TestSchedulerSkipsOfflineServer(t *testing.T) {
	cat := newTestCatalogue(t)
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	// server left offline (default)

	b := &types.Backup{
		Server:    "pg1",
		Label:     "20260101T000000",
		Kind:      types.BackupKindFull,
		Status:    types.BackupStatusValid,
		RootDir:   cat.BackupDir("pg1", "20260101T000000"),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, cat.RegisterBackup(b))

	policies := map[string]types.RetentionPolicy{"pg1": {KeepCount: 0}}
	s := New(cat, []*config.Server{server}, policies, time.Hour)
	s.sweep()

	remaining, err := cat.ListBackups("pg1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "offline server should not be swept")
}

func TestSchedulerStartStop(t *testing.T) {
	cat := newTestCatalogue(t)
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	server.SetOnline(true)

	s := New(cat, []*config.Server{server}, nil, 10*time.Millisecond)
	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
}
