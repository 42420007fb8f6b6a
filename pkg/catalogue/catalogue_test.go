package catalogue

import (
	"testing"
	"time"

	"github.com/cuemby/pgbackup/pkg/types"
)

func newTestCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(dir, store)
}

func backupAt(server, label, parent string, t time.Time) *types.Backup {
	kind := types.BackupKindFull
	if parent != "" {
		kind = types.BackupKindIncremental
	}
	return &types.Backup{
		Label:       label,
		Server:      server,
		Kind:        kind,
		ParentLabel: parent,
		Status:      types.BackupStatusValid,
		CreatedAt:   t,
	}
}

func TestRegisterAndLocateBackup(t *testing.T) {
	c := newTestCatalogue(t)
	b := backupAt("pg1", "20260101T000000", "", time.Now())
	if err := c.RegisterBackup(b); err != nil {
		t.Fatalf("RegisterBackup: %v", err)
	}

	got, err := c.LocateBackup("pg1", "20260101T000000")
	if err != nil {
		t.Fatalf("LocateBackup: %v", err)
	}
	if got.Server != "pg1" || got.Label != "20260101T000000" {
		t.Fatalf("got = %+v", got)
	}
}

func TestListBackupsOrderedByCreatedAt(t *testing.T) {
	c := newTestCatalogue(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b2 := backupAt("pg1", "b2", "", base.Add(2*time.Hour))
	b1 := backupAt("pg1", "b1", "", base.Add(1*time.Hour))
	b3 := backupAt("pg1", "b3", "", base.Add(3*time.Hour))
	for _, b := range []*types.Backup{b2, b1, b3} {
		if err := c.RegisterBackup(b); err != nil {
			t.Fatalf("RegisterBackup: %v", err)
		}
	}

	list, err := c.ListBackups("pg1")
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 3 || list[0].Label != "b1" || list[1].Label != "b2" || list[2].Label != "b3" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestParentChain(t *testing.T) {
	c := newTestCatalogue(t)
	base := time.Now()
	full := backupAt("pg1", "full", "", base)
	inc1 := backupAt("pg1", "inc1", "full", base.Add(time.Hour))
	inc2 := backupAt("pg1", "inc2", "inc1", base.Add(2*time.Hour))

	for _, b := range []*types.Backup{full, inc1, inc2} {
		if err := c.RegisterBackup(b); err != nil {
			t.Fatalf("RegisterBackup: %v", err)
		}
	}

	chain, err := c.ParentChain("pg1", "inc2")
	if err != nil {
		t.Fatalf("ParentChain: %v", err)
	}
	if len(chain) != 3 || chain[0].Label != "inc2" || chain[1].Label != "inc1" || chain[2].Label != "full" {
		t.Fatalf("unexpected chain: %+v", chain)
	}
}

func TestDeleteBackupRejectsLiveChildren(t *testing.T) {
	c := newTestCatalogue(t)
	base := time.Now()
	full := backupAt("pg1", "full", "", base)
	inc1 := backupAt("pg1", "inc1", "full", base.Add(time.Hour))
	for _, b := range []*types.Backup{full, inc1} {
		if err := c.RegisterBackup(b); err != nil {
			t.Fatalf("RegisterBackup: %v", err)
		}
	}

	err := c.DeleteBackup("pg1", "full")
	if err == nil {
		t.Fatal("expected ErrHasChildren")
	}
	if _, ok := err.(*ErrHasChildren); !ok {
		t.Fatalf("expected *ErrHasChildren, got %T: %v", err, err)
	}
}

func TestDeleteBackupSucceedsOnLeaf(t *testing.T) {
	c := newTestCatalogue(t)
	b := backupAt("pg1", "full", "", time.Now())
	if err := c.RegisterBackup(b); err != nil {
		t.Fatalf("RegisterBackup: %v", err)
	}

	if err := c.DeleteBackup("pg1", "full"); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	if _, err := c.LocateBackup("pg1", "full"); err == nil {
		t.Fatal("expected backup to be gone")
	}
}

func TestRetentionSetKeepsMostRecentCount(t *testing.T) {
	c := newTestCatalogue(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := nowFunc
	nowFunc = func() time.Time { return base.Add(100 * 24 * time.Hour) }
	defer func() { nowFunc = restore }()

	for i := 0; i < 5; i++ {
		b := backupAt("pg1", string(rune('a'+i)), "", base.Add(time.Duration(i)*24*time.Hour))
		if err := c.RegisterBackup(b); err != nil {
			t.Fatalf("RegisterBackup: %v", err)
		}
	}

	eligible, err := c.RetentionSet("pg1", types.RetentionPolicy{KeepCount: 2})
	if err != nil {
		t.Fatalf("RetentionSet: %v", err)
	}
	if len(eligible) != 3 {
		t.Fatalf("eligible = %+v, want 3", eligible)
	}
}

func TestRetentionSetSkipsLiveParents(t *testing.T) {
	c := newTestCatalogue(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := nowFunc
	nowFunc = func() time.Time { return base.Add(100 * 24 * time.Hour) }
	defer func() { nowFunc = restore }()

	full := backupAt("pg1", "full", "", base)
	inc := backupAt("pg1", "inc", "full", base.Add(24*time.Hour))
	recent := backupAt("pg1", "recent", "", base.Add(48*time.Hour))
	for _, b := range []*types.Backup{full, inc, recent} {
		if err := c.RegisterBackup(b); err != nil {
			t.Fatalf("RegisterBackup: %v", err)
		}
	}

	eligible, err := c.RetentionSet("pg1", types.RetentionPolicy{KeepCount: 1})
	if err != nil {
		t.Fatalf("RetentionSet: %v", err)
	}
	for _, b := range eligible {
		if b.Label == "full" {
			t.Fatal("expected full backup with a live child to be excluded from retention set")
		}
	}
}
