// Package orchestrator composes pgbackup's end-user verbs — backup,
// restore, verify, archive, retention, delete — as fixed
// pkg/workflow.Workflow pipelines over stages built from the lower
// layers (manifest, catalogue, stream, codec, brt, wal, extract).
//
// Grounded on spec.md §4.10 directly; the per-server repository lock
// follows pkg/config.Server's atomic.Bool CompareAndSwap the way the
// teacher's manager guards shared state with sync.RWMutex/atomic fields.
package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/codec"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/hashutil"
	"github.com/cuemby/pgbackup/pkg/log"
	"github.com/cuemby/pgbackup/pkg/manifest"
	"github.com/cuemby/pgbackup/pkg/metrics"
	"github.com/cuemby/pgbackup/pkg/stream"
	"github.com/cuemby/pgbackup/pkg/tarball"
	"github.com/cuemby/pgbackup/pkg/types"
	"github.com/cuemby/pgbackup/pkg/vfile"
	"github.com/cuemby/pgbackup/pkg/workerpool"
	"github.com/cuemby/pgbackup/pkg/workflow"
)

// bag keys installed by every orchestrator, per spec.md §4.10.
const (
	KeyServerID  = "NODE_SERVER_ID"
	KeyLabel     = "NODE_LABEL"
	KeyDirectory = "NODE_DIRECTORY"
)

// manifestFileName is the upstream-compatible manifest's on-disk name
// (spec.md §3's on-disk layout: backup_manifest, not backup.manifest).
const manifestFileName = "backup_manifest"

// Orchestrator builds workflows against one catalogue and worker pool.
// Pool is the sole parallelism point any stage is allowed to use
// (spec.md §4.3): base_backup submits one task per file and waits for
// the pool to drain before handing off to the manifest stage.
type Orchestrator struct {
	Catalogue *catalogue.Catalogue
	Pool      *workerpool.Pool
}

// New builds an Orchestrator backed by cat, with a worker pool sized
// poolSize (<= 0 falls back to workerpool's own single-worker default).
func New(cat *catalogue.Catalogue, poolSize int) *Orchestrator {
	return &Orchestrator{
		Catalogue: cat,
		Pool:      workerpool.New(workerpool.Config{Size: poolSize}),
	}
}

// --- Backup -----------------------------------------------------------

// BackupOptions configures a single backup run.
type BackupOptions struct {
	Server      string
	Kind        types.BackupKind
	ParentLabel string
	SourceDir   string // the PostgreSQL data directory being copied
	Compression codec.Name
	Encryption  string // "" or a passphrase; presence selects AES
}

// baseBackupStage copies SourceDir's regular files into the backup
// directory through a stream.Streamer, so the configured compressor
// runs over the same write path spec.md §4.2 describes. The directory
// walk itself is sequential (filepath.Walk has no concurrent form and
// MkdirAll races would need their own locking), but every file's copy
// is submitted to the pool as an independent task, so large backups
// are bounded by pool size rather than one file at a time.
type baseBackupStage struct {
	opts BackupOptions
	pool *workerpool.Pool

	destDir string

	mu        sync.Mutex
	filesDone []string
	firstErr  error
}

func (s *baseBackupStage) Name() string { return "base_backup" }

func (s *baseBackupStage) Setup(bag *workflow.Bag) error {
	return os.MkdirAll(s.destDir, 0o755)
}

func (s *baseBackupStage) Execute(bag *workflow.Bag) error {
	walkErr := filepath.Walk(s.opts.SourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.opts.SourceDir, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(s.destDir, rel)
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}

		s.pool.Submit(func() {
			if err := copyThroughStreamer(path, destPath, s.opts.Compression, s.opts.Encryption, s.opts.Server, "backup"); err != nil {
				s.recordErr(fmt.Errorf("orchestrator: backup copy %s: %w", rel, err))
				return
			}
			s.mu.Lock()
			s.filesDone = append(s.filesDone, rel)
			s.mu.Unlock()
		})
		return nil
	})

	s.pool.WaitIdle()

	if walkErr != nil {
		return walkErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *baseBackupStage) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil {
		s.firstErr = err
	}
}

func (s *baseBackupStage) Teardown(bag *workflow.Bag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bag.Set("files", s.filesDone)
	return nil
}

// copyThroughStreamer pushes src's bytes through a stream.Streamer into
// a single vfile.Local destination, applying the named compressor and,
// when encryptPassphrase is non-empty, AES encryption. Passing
// codec.None and "" yields a plain copy — e.g. restore's extraction
// path, which reads already-compressed/encrypted bytes verbatim.
// server and operation label the bytes-streamed/codec-duration metrics;
// operation is typically "backup" or "restore".
func copyThroughStreamer(src, dst string, compression codec.Name, encryptPassphrase, server, operation string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := vfile.CreateLocal(dst, "w")
	if err != nil {
		return err
	}

	var compressor codec.Codec
	if compression != "" && compression != codec.None {
		c, err := codec.New(compression)
		if err != nil {
			out.Close()
			return err
		}
		compressor = c
	}

	var encryptor codec.Codec
	if encryptPassphrase != "" {
		c, err := codec.New(codec.AES)
		if err != nil {
			out.Close()
			return err
		}
		encryptor = c
	}

	st := stream.New(compressor, encryptor)
	st.AddDestination(out)

	codecTimer := metrics.NewTimer()
	if err := st.Prepare(); err != nil {
		out.Close()
		return err
	}

	var total int64
	buf := make([]byte, stream.BufferSize)
	for {
		n, readErr := in.Read(buf)
		atEOF := errors.Is(readErr, io.EOF)
		if n > 0 {
			total += int64(n)
			if err := st.Write(buf[:n], atEOF); err != nil {
				out.Close()
				return err
			}
		}
		if readErr != nil {
			if !atEOF {
				out.Close()
				return readErr
			}
			if n == 0 {
				if err := st.Write(nil, true); err != nil {
					out.Close()
					return err
				}
			}
			break
		}
	}

	if compressor != nil {
		codecTimer.ObserveDurationVec(metrics.CodecDuration, string(compression), operation)
	} else if encryptor != nil {
		codecTimer.ObserveDurationVec(metrics.CodecDuration, string(codec.AES), operation)
	}
	if server != "" {
		metrics.BytesStreamed.WithLabelValues(server, operation).Add(float64(total))
	}

	return out.Close()
}

// manifestStage walks bag's "files" list (installed by baseBackupStage)
// and generates + writes the backup manifest.
type manifestStage struct {
	opts    BackupOptions
	destDir string
}

func (s *manifestStage) Name() string { return "manifest" }
func (s *manifestStage) Setup(bag *workflow.Bag) error { return nil }

func (s *manifestStage) Execute(bag *workflow.Bag) error {
	rawFiles, _ := bag.Get("files")
	relPaths, _ := rawFiles.([]string)
	sort.Strings(relPaths)

	var inputs []manifest.FileInput
	for _, rel := range relPaths {
		full := filepath.Join(s.destDir, rel)
		info, err := os.Stat(full)
		if err != nil {
			return err
		}
		f, err := os.Open(full)
		if err != nil {
			return err
		}
		inputs = append(inputs, manifest.FileInput{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
			Content: f,
		})
	}

	m, err := manifest.Generate(0, hashutil.SHA256, inputs)
	for _, in := range inputs {
		if rc, ok := in.Content.(*os.File); ok {
			rc.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("orchestrator: generate manifest: %w", err)
	}

	if err := m.WriteFile(filepath.Join(s.destDir, manifestFileName)); err != nil {
		return fmt.Errorf("orchestrator: write manifest: %w", err)
	}
	bag.Set("manifest", m)
	return nil
}

func (s *manifestStage) Teardown(bag *workflow.Bag) error { return nil }

// sha256Stage writes backup.sha256, one line per file, per spec.md §6.
type sha256Stage struct {
	destDir string
}

func (s *sha256Stage) Name() string                    { return "sha256" }
func (s *sha256Stage) Setup(bag *workflow.Bag) error    { return nil }
func (s *sha256Stage) Teardown(bag *workflow.Bag) error { return nil }

func (s *sha256Stage) Execute(bag *workflow.Bag) error {
	m, _ := bag.Get("manifest")
	manifestObj, ok := m.(*manifest.Manifest)
	if !ok {
		return fmt.Errorf("orchestrator: sha256 stage ran without a manifest")
	}

	entries := append([]types.ManifestEntry(nil), manifestObj.Files...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	f, err := os.Create(filepath.Join(s.destDir, "backup.sha256"))
	if err != nil {
		return err
	}
	defer f.Close()

	for _, e := range entries {
		if _, err := fmt.Fprintf(f, "%s:%s\n", e.Path, e.Checksum); err != nil {
			return err
		}
	}
	return nil
}

// recoveryInfoStage finalizes the backup's catalogue entry: it marks it
// valid and stamps CompletedAt. It does not set StartWAL/StopWAL.
type recoveryInfoStage struct {
	cat *catalogue.Catalogue
	b   *types.Backup
}

func (s *recoveryInfoStage) Name() string                 { return "recovery_info" }
func (s *recoveryInfoStage) Setup(bag *workflow.Bag) error { return nil }

func (s *recoveryInfoStage) Execute(bag *workflow.Bag) error {
	s.b.Status = types.BackupStatusValid
	s.b.CompletedAt = time.Now().UTC()
	return s.cat.UpdateBackup(s.b)
}

func (s *recoveryInfoStage) Teardown(bag *workflow.Bag) error { return nil }

// backupInfoStage writes backup.info, the key/value sidecar scenario 1
// checks for kind=full. It runs last so it reflects the backup's final
// status rather than "in-progress".
type backupInfoStage struct {
	destDir string
	b       *types.Backup
}

func (s *backupInfoStage) Name() string                 { return "backup_info" }
func (s *backupInfoStage) Setup(bag *workflow.Bag) error { return nil }

func (s *backupInfoStage) Execute(bag *workflow.Bag) error {
	return catalogue.WriteBackupInfo(s.destDir, s.b)
}

func (s *backupInfoStage) Teardown(bag *workflow.Bag) error { return nil }

// Backup builds the backup workflow: base_backup → manifest → sha256 →
// recovery_info → backup_info. compress/encrypt are folded into
// base_backup's copy path (copyThroughStreamer) rather than separate
// stages, since the streamer already applies them per-file in one pass.
// There is no link_to_previous step: every file is copied, none is
// hardlinked from a parent backup.
func (o *Orchestrator) Backup(opts BackupOptions) (*workflow.Workflow, *workflow.Bag, *types.Backup) {
	label := time.Now().UTC().Format("20060102T150405")
	destDir := o.Catalogue.BackupDir(opts.Server, label)

	b := &types.Backup{
		Label:       label,
		Server:      opts.Server,
		Kind:        opts.Kind,
		ParentLabel: opts.ParentLabel,
		Status:      types.BackupStatusInProgress,
		RootDir:     destDir,
		Compression: string(opts.Compression),
		Encryption:  opts.Encryption,
		CreatedAt:   time.Now().UTC(),
	}

	bag := workflow.NewBag()
	bag.Set(KeyServerID, opts.Server)
	bag.Set(KeyLabel, label)
	bag.Set(KeyDirectory, destDir)

	wf := workflow.New("backup",
		&baseBackupStage{opts: opts, destDir: destDir, pool: o.Pool},
		&manifestStage{opts: opts, destDir: destDir},
		&sha256Stage{destDir: destDir},
		&recoveryInfoStage{cat: o.Catalogue, b: b},
		&backupInfoStage{destDir: destDir, b: b},
	)
	return wf, bag, b
}

// RunBackup builds and runs the backup workflow, recording its duration
// and, on failure, the stage that failed.
func (o *Orchestrator) RunBackup(opts BackupOptions) (*types.Backup, error) {
	wf, bag, b := o.Backup(opts)
	timer := metrics.NewTimer()
	err := wf.Run(bag)
	timer.ObserveDurationVec(metrics.BackupDuration, opts.Server, string(opts.Kind))
	if err != nil {
		metrics.BackupsFailedTotal.WithLabelValues(opts.Server, failedStageName(err)).Inc()
	}
	return b, err
}

// failedStageName extracts the failing stage's name from a
// workflow.Error, or "unknown" if err isn't one.
func failedStageName(err error) string {
	var wfErr *workflow.Error
	if errors.As(err, &wfErr) {
		return wfErr.Stage
	}
	return "unknown"
}

// --- Verify -------------------------------------------------------------

type locateStage struct {
	cat    *catalogue.Catalogue
	server string
	label  string
}

func (s *locateStage) Name() string                 { return "locate" }
func (s *locateStage) Setup(bag *workflow.Bag) error { return nil }

func (s *locateStage) Execute(bag *workflow.Bag) error {
	b, err := s.cat.LocateBackup(s.server, s.label)
	if err != nil {
		return err
	}
	bag.Set("backup", b)
	bag.Set(KeyDirectory, b.RootDir)
	return nil
}

func (s *locateStage) Teardown(bag *workflow.Bag) error { return nil }

type manifestVerifyStage struct{}

func (s *manifestVerifyStage) Name() string                 { return "manifest_verify" }
func (s *manifestVerifyStage) Setup(bag *workflow.Bag) error { return nil }

func (s *manifestVerifyStage) Execute(bag *workflow.Bag) error {
	dir := bag.GetString(KeyDirectory)
	m, err := manifest.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return fmt.Errorf("orchestrator: read manifest: %w", err)
	}
	if err := m.VerifyChecksum(); err != nil {
		return err
	}
	bag.Set("manifest", m)
	return nil
}

func (s *manifestVerifyStage) Teardown(bag *workflow.Bag) error { return nil }

type sha256VerifyStage struct{}

func (s *sha256VerifyStage) Name() string                 { return "sha256_verify" }
func (s *sha256VerifyStage) Setup(bag *workflow.Bag) error { return nil }

func (s *sha256VerifyStage) Execute(bag *workflow.Bag) error {
	dir := bag.GetString(KeyDirectory)
	m, _ := bag.Get("manifest")
	manifestObj, ok := m.(*manifest.Manifest)
	if !ok {
		return fmt.Errorf("orchestrator: sha256_verify ran without a manifest")
	}

	mismatched, err := manifestObj.Verify(func(path string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, path))
	})
	if err != nil {
		return err
	}
	if len(mismatched) > 0 {
		return fmt.Errorf("orchestrator: %d file(s) failed checksum verification: %v", len(mismatched), mismatched)
	}
	return nil
}

func (s *sha256VerifyStage) Teardown(bag *workflow.Bag) error { return nil }

// Verify builds the verify workflow: locate → manifest_verify →
// sha256_verify.
func (o *Orchestrator) Verify(server, label string) (*workflow.Workflow, *workflow.Bag) {
	bag := workflow.NewBag()
	bag.Set(KeyServerID, server)
	bag.Set(KeyLabel, label)

	wf := workflow.New("verify",
		&locateStage{cat: o.Catalogue, server: server, label: label},
		&manifestVerifyStage{},
		&sha256VerifyStage{},
	)
	return wf, bag
}

// RunVerify builds and runs the verify workflow, recording its duration.
func (o *Orchestrator) RunVerify(server, label string) error {
	wf, bag := o.Verify(server, label)
	timer := metrics.NewTimer()
	err := wf.Run(bag)
	timer.ObserveDurationVec(metrics.VerifyDuration, server)
	return err
}

// --- Archive ------------------------------------------------------------

type tarDirectoryStage struct {
	destPath string
}

func (s *tarDirectoryStage) Name() string                 { return "tar_directory" }
func (s *tarDirectoryStage) Setup(bag *workflow.Bag) error { return nil }

func (s *tarDirectoryStage) Execute(bag *workflow.Bag) error {
	dir := bag.GetString(KeyDirectory)
	f, err := os.Create(s.destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return tarball.Pack(f, dir)
}

func (s *tarDirectoryStage) Teardown(bag *workflow.Bag) error { return nil }

type deliverStage struct {
	destPath string
}

func (s *deliverStage) Name() string                 { return "deliver" }
func (s *deliverStage) Setup(bag *workflow.Bag) error { return nil }

func (s *deliverStage) Execute(bag *workflow.Bag) error {
	bag.Set("archive_path", s.destPath)
	return nil
}

func (s *deliverStage) Teardown(bag *workflow.Bag) error { return nil }

// Archive builds the archive workflow: locate → tar_directory → deliver.
func (o *Orchestrator) Archive(server, label, destPath string) (*workflow.Workflow, *workflow.Bag) {
	bag := workflow.NewBag()
	bag.Set(KeyServerID, server)
	bag.Set(KeyLabel, label)

	wf := workflow.New("archive",
		&locateStage{cat: o.Catalogue, server: server, label: label},
		&tarDirectoryStage{destPath: destPath},
		&deliverStage{destPath: destPath},
	)
	return wf, bag
}

// --- Delete ---------------------------------------------------------------

type checkNoChildrenStage struct {
	cat    *catalogue.Catalogue
	server string
	label  string
}

func (s *checkNoChildrenStage) Name() string                 { return "check_no_children" }
func (s *checkNoChildrenStage) Setup(bag *workflow.Bag) error { return nil }

func (s *checkNoChildrenStage) Execute(bag *workflow.Bag) error {
	children, err := s.cat.Children(s.server, s.label)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		names := make([]string, len(children))
		for i, c := range children {
			names[i] = c.Label
		}
		return &catalogue.ErrHasChildren{Label: s.label, Children: names}
	}
	return nil
}

func (s *checkNoChildrenStage) Teardown(bag *workflow.Bag) error { return nil }

type unlinkStage struct {
	cat    *catalogue.Catalogue
	server string
	label  string
}

func (s *unlinkStage) Name() string                 { return "unlink" }
func (s *unlinkStage) Setup(bag *workflow.Bag) error { return nil }

func (s *unlinkStage) Execute(bag *workflow.Bag) error {
	return s.cat.DeleteBackup(s.server, s.label)
}

func (s *unlinkStage) Teardown(bag *workflow.Bag) error { return nil }

// Delete builds the delete workflow: locate → check_no_children → unlink.
func (o *Orchestrator) Delete(server, label string) (*workflow.Workflow, *workflow.Bag) {
	bag := workflow.NewBag()
	bag.Set(KeyServerID, server)
	bag.Set(KeyLabel, label)

	wf := workflow.New("delete",
		&locateStage{cat: o.Catalogue, server: server, label: label},
		&checkNoChildrenStage{cat: o.Catalogue, server: server, label: label},
		&unlinkStage{cat: o.Catalogue, server: server, label: label},
	)
	return wf, bag
}

// --- Retention ------------------------------------------------------------

// Retention acquires server's repository lock, computes the retention
// set, and deletes every eligible backup, releasing the lock on both
// success and failure paths. It returns ErrLocked if the server's
// repository flag was already held, or ErrOffline if the server is not
// currently reachable — both are reported, not retried, matching
// "skips servers already locked or offline" (spec.md §4.10).
func Retention(server *config.Server, cat *catalogue.Catalogue, policy types.RetentionPolicy) error {
	logger := log.WithComponent("orchestrator").With().Str("server", server.Name).Logger()

	if !server.Online() {
		return ErrOffline
	}
	if !server.TryLockRepository() {
		return ErrLocked
	}
	defer server.UnlockRepository()

	eligible, err := cat.RetentionSet(server.Name, policy)
	if err != nil {
		return fmt.Errorf("orchestrator: compute retention set: %w", err)
	}

	var errs []error
	for _, b := range eligible {
		if err := cat.DeleteBackup(server.Name, b.Label); err != nil {
			logger.Error().Err(err).Str("label", b.Label).Msg("retention delete failed")
			errs = append(errs, err)
			continue
		}
		metrics.RetentionDeletedTotal.WithLabelValues(server.Name).Inc()
		logger.Info().Str("label", b.Label).Msg("retention deleted backup")
	}
	if len(errs) > 0 {
		return fmt.Errorf("orchestrator: retention had %d failure(s), first: %w", len(errs), errs[0])
	}
	return nil
}

// ErrLocked is returned by Retention when the server's repository lock
// is already held by another Retention run. The Delete workflow does not
// take this lock.
var ErrLocked = fmt.Errorf("orchestrator: repository already locked")

// ErrOffline is returned by Retention when the server's health monitor
// reports it unreachable.
var ErrOffline = fmt.Errorf("orchestrator: server offline")

// --- Restore ---------------------------------------------------------------

// RestoreOptions configures a restore run.
type RestoreOptions struct {
	Server      string
	Label       string
	Destination string
}

type extractLayersStage struct {
	opts RestoreOptions
}

func (s *extractLayersStage) Name() string                 { return "extract_layers" }
func (s *extractLayersStage) Setup(bag *workflow.Bag) error { return nil }

func (s *extractLayersStage) Execute(bag *workflow.Bag) error {
	dir := bag.GetString(KeyDirectory)
	if err := os.MkdirAll(s.opts.Destination, 0o755); err != nil {
		return err
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		switch rel {
		case manifestFileName, "backup.sha256", catalogue.BackupInfoFile:
			return nil
		}
		dst := filepath.Join(s.opts.Destination, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return copyThroughStreamer(path, dst, codec.None, "", s.opts.Server, "restore")
	})
}

func (s *extractLayersStage) Teardown(bag *workflow.Bag) error { return nil }

type combineIncrementalsStage struct {
	cat    *catalogue.Catalogue
	server string
}

func (s *combineIncrementalsStage) Name() string                 { return "combine_incrementals" }
func (s *combineIncrementalsStage) Setup(bag *workflow.Bag) error { return nil }

func (s *combineIncrementalsStage) Execute(bag *workflow.Bag) error {
	b, _ := bag.Get("backup")
	backup, ok := b.(*types.Backup)
	if !ok || backup.Kind != types.BackupKindIncremental {
		return nil
	}
	chain, err := s.cat.ParentChain(s.server, backup.Label)
	if err != nil {
		return err
	}
	bag.Set("chain", chain)
	return nil
}

func (s *combineIncrementalsStage) Teardown(bag *workflow.Bag) error { return nil }

type copyWALStage struct {
	cat    *catalogue.Catalogue
	server string
	dest   string
}

func (s *copyWALStage) Name() string                 { return "copy_wal" }
func (s *copyWALStage) Setup(bag *workflow.Bag) error { return nil }

func (s *copyWALStage) Execute(bag *workflow.Bag) error {
	walDest := filepath.Join(s.dest, "pg_wal")
	if err := os.MkdirAll(walDest, 0o755); err != nil {
		return err
	}
	walSrc := s.cat.WALDir(s.server)
	entries, err := os.ReadDir(walSrc)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyThroughStreamer(filepath.Join(walSrc, e.Name()), filepath.Join(walDest, e.Name()), codec.None, "", s.server, "restore"); err != nil {
			return err
		}
	}
	return nil
}

func (s *copyWALStage) Teardown(bag *workflow.Bag) error { return nil }

type permissionsStage struct {
	dest string
}

func (s *permissionsStage) Name() string                 { return "permissions" }
func (s *permissionsStage) Setup(bag *workflow.Bag) error { return nil }

func (s *permissionsStage) Execute(bag *workflow.Bag) error {
	return filepath.Walk(s.dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.Chmod(path, 0o700)
		}
		return os.Chmod(path, 0o600)
	})
}

func (s *permissionsStage) Teardown(bag *workflow.Bag) error { return nil }

type cleanupStage struct{}

func (s *cleanupStage) Name() string                    { return "cleanup" }
func (s *cleanupStage) Setup(bag *workflow.Bag) error    { return nil }
func (s *cleanupStage) Execute(bag *workflow.Bag) error  { return nil }
func (s *cleanupStage) Teardown(bag *workflow.Bag) error { return nil }

// Restore builds the restore workflow: locate → extract_layers →
// combine_incrementals? → copy_wal → permissions → cleanup.
// combine_incrementals is always present in the stage list but is a
// no-op for a full backup (spec.md §4.10's "?" stages are conditional
// on data, not on pipeline shape).
func (o *Orchestrator) Restore(opts RestoreOptions) (*workflow.Workflow, *workflow.Bag) {
	bag := workflow.NewBag()
	bag.Set(KeyServerID, opts.Server)
	bag.Set(KeyLabel, opts.Label)

	wf := workflow.New("restore",
		&locateStage{cat: o.Catalogue, server: opts.Server, label: opts.Label},
		&extractLayersStage{opts: opts},
		&combineIncrementalsStage{cat: o.Catalogue, server: opts.Server},
		&copyWALStage{cat: o.Catalogue, server: opts.Server, dest: opts.Destination},
		&permissionsStage{dest: opts.Destination},
		&cleanupStage{},
	)
	return wf, bag
}

// RunRestore builds and runs the restore workflow, recording its
// duration.
func (o *Orchestrator) RunRestore(opts RestoreOptions) error {
	wf, bag := o.Restore(opts)
	timer := metrics.NewTimer()
	err := wf.Run(bag)
	timer.ObserveDurationVec(metrics.RestoreDuration, opts.Server)
	return err
}
