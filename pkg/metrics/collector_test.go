package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/types"
)

func TestCollectorUpdatesServerAndBackupGauges(t *testing.T) {
	dir := t.TempDir()
	store, err := catalogue.OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cat := catalogue.New(dir, store)

	if err := cat.RegisterBackup(&types.Backup{
		Server:    "pg1",
		Label:     "20260101T000000",
		Status:    types.BackupStatusValid,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("RegisterBackup: %v", err)
	}

	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	server.SetOnline(true)

	c := NewCollector(cat, []*config.Server{server})
	c.collect()

	if got := testutil.ToFloat64(ServersTotal); got != 1 {
		t.Fatalf("ServersTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ServersOnline); got != 1 {
		t.Fatalf("ServersOnline = %v, want 1", got)
	}
	if got := testutil.ToFloat64(BackupsTotal.WithLabelValues("pg1", "valid")); got != 1 {
		t.Fatalf("BackupsTotal{pg1,valid} = %v, want 1", got)
	}
}
