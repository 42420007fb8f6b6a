package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/codec"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/control"
	"github.com/cuemby/pgbackup/pkg/health"
	"github.com/cuemby/pgbackup/pkg/log"
	"github.com/cuemby/pgbackup/pkg/metrics"
	"github.com/cuemby/pgbackup/pkg/orchestrator"
	"github.com/cuemby/pgbackup/pkg/reconciler"
	"github.com/cuemby/pgbackup/pkg/scheduler"
	"github.com/cuemby/pgbackup/pkg/types"

	_ "github.com/cuemby/pgbackup/pkg/codec/aescodec"
	_ "github.com/cuemby/pgbackup/pkg/codec/bzip2codec"
	_ "github.com/cuemby/pgbackup/pkg/codec/gzipcodec"
	_ "github.com/cuemby/pgbackup/pkg/codec/lz4codec"
	_ "github.com/cuemby/pgbackup/pkg/codec/zstdcodec"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pgbackup",
	Short: "pgbackup - PostgreSQL backup and restore management",
	Long: `pgbackup takes, verifies, archives, and restores PostgreSQL
backups, tracked in a local catalogue and driven either as a long-running
daemon or as one-shot commands against a running daemon's control socket.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pgbackup version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("socket", defaultSocketPath(), "Path to the daemon's control socket")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listBackupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(reloadCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func defaultSocketPath() string {
	return filepath.Join("/tmp", "pgmoneta")
}

func socketPath(cmd *cobra.Command) string {
	s, _ := cmd.Flags().GetString("socket")
	return s
}

func dial(cmd *cobra.Command) (*control.Client, error) {
	return control.Dial(socketPath(cmd))
}

// --- daemon -----------------------------------------------------------

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pgbackup daemon",
	Long: `daemon loads pgbackup.yaml, opens the backup catalogue, starts the
health reconciler, retention scheduler, metrics collector, and control
socket, then blocks until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		servers := make(map[string]*config.Server, len(cfg.Servers))
		serverList := make([]*config.Server, 0, len(cfg.Servers))
		policies := make(map[string]types.RetentionPolicy, len(cfg.Servers))
		for _, sc := range cfg.Servers {
			srv := config.NewServer(sc)
			servers[sc.Name] = srv
			serverList = append(serverList, srv)
			policies[sc.Name] = types.RetentionPolicy{
				KeepCount: cfg.Retention.KeepCount,
				KeepFor:   time.Duration(cfg.Retention.KeepForDays) * 24 * time.Hour,
			}
		}

		store, err := catalogue.OpenStore(cfg.BaseDir)
		if err != nil {
			return fmt.Errorf("open catalogue: %w", err)
		}
		defer store.Close()

		cat := catalogue.New(cfg.BaseDir, store)
		orch := orchestrator.New(cat, cfg.WorkerPoolSize)

		recon := reconciler.New(serverList, func(s *config.Server) health.Checker {
			return health.NewServerChecker(s.Host, s.Port)
		}, health.DefaultConfig())
		recon.Start()
		fmt.Println("✓ Health reconciler started")

		sweepInterval := time.Duration(cfg.Retention.IntervalSeconds) * time.Second
		sched := scheduler.New(cat, serverList, policies, sweepInterval)
		sched.Start()
		fmt.Println("✓ Retention scheduler started")

		collector := metrics.NewCollector(cat, serverList)
		collector.Start()
		fmt.Println("✓ Metrics collector started")

		metrics.SetVersion(Version)
		for _, sc := range cfg.Servers {
			metrics.RegisterComponent(sc.Name, false, "awaiting first health check")
		}

		var metricsServer *http.Server
		if cfg.Metrics.Enabled {
			addr := cfg.Metrics.Addr
			if addr == "" {
				addr = "127.0.0.1:9090"
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			mux.Handle("/ready", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			metricsServer = &http.Server{Addr: addr, Handler: mux}
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					fmt.Printf("Metrics server error: %v\n", err)
				}
			}()
			fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", addr)
		}

		socket := filepath.Join(cfg.UnixSocketDir, "pgmoneta")
		ctrl := control.New(orch, servers, socket)

		stopCh := make(chan struct{})
		ctrl.Stop = func() {
			close(stopCh)
		}
		ctrl.Reload = func() error {
			reloaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("reload config: %w", err)
			}
			log.Init(log.Config{Level: log.Level(reloaded.Logging.Level), JSONOutput: reloaded.Logging.JSON})
			return nil
		}

		if err := ctrl.Start(); err != nil {
			return fmt.Errorf("start control socket: %w", err)
		}
		fmt.Printf("✓ Control socket listening on %s\n", socket)

		fmt.Println()
		fmt.Println("pgbackup daemon is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case <-stopCh:
			fmt.Println("\nStop requested over control socket...")
		}

		sched.Stop()
		recon.Stop()
		collector.Stop()
		if err := ctrl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "control socket shutdown error: %v\n", err)
		}
		if metricsServer != nil {
			metricsServer.Close()
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	daemonCmd.Flags().String("config", "/etc/pgbackup/pgbackup.yaml", "Path to pgbackup.yaml")
}

// --- backup -------------------------------------------------------------

var backupCmd = &cobra.Command{
	Use:   "backup SERVER",
	Short: "Take a backup of a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := args[0]
		kind, _ := cmd.Flags().GetString("kind")
		parentLabel, _ := cmd.Flags().GetString("parent")
		sourceDir, _ := cmd.Flags().GetString("source-dir")
		compression, _ := cmd.Flags().GetString("compression")
		encryption, _ := cmd.Flags().GetString("encryption")

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		resp, err := c.Backup(server, kind, parentLabel, sourceDir, compression, encryption)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("✓ Backup started for %s\n", server)
		if b, ok := resp.Data.(map[string]interface{}); ok {
			if label, ok := b["label"].(string); ok {
				fmt.Printf("  Label: %s\n", label)
			}
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().String("kind", string(types.BackupKindFull), "Backup kind: full or incremental")
	backupCmd.Flags().String("parent", "", "Parent label for an incremental backup")
	backupCmd.Flags().String("source-dir", "", "PostgreSQL data directory to back up (required)")
	backupCmd.Flags().String("compression", string(codec.Gzip), "Compression algorithm: none, gzip, zstd, lz4, bzip2")
	backupCmd.Flags().String("encryption", "", "AES passphrase, empty to leave unencrypted")
	backupCmd.MarkFlagRequired("source-dir")
}

// --- restore --------------------------------------------------------------

var restoreCmd = &cobra.Command{
	Use:   "restore SERVER LABEL DESTINATION",
	Short: "Restore a backup into a destination directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, label, destination := args[0], args[1], args[2]

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		if _, err := c.Restore(server, label, destination); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("✓ Restored %s/%s into %s\n", server, label, destination)
		return nil
	},
}

// --- delete -----------------------------------------------------------

var deleteCmd = &cobra.Command{
	Use:     "delete SERVER LABEL",
	Aliases: []string{"rm"},
	Short:   "Delete a backup",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, label := args[0], args[1]

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		if _, err := c.Delete(server, label); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}

		fmt.Printf("✓ Deleted %s/%s\n", server, label)
		return nil
	},
}

// --- list-backup --------------------------------------------------------

var listBackupCmd = &cobra.Command{
	Use:   "list-backup SERVER",
	Short: "List backups for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := args[0]

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		fmt.Printf("%-24s %-13s %-10s %s\n", "LABEL", "KIND", "STATUS", "SIZE")
		count := 0
		err = c.ListBackups(server, func(resp control.Response) error {
			count++
			b, ok := resp.Data.(map[string]interface{})
			if !ok {
				return nil
			}
			label, _ := b["label"].(string)
			kind, _ := b["kind"].(string)
			status, _ := b["status"].(string)
			size, _ := b["size_bytes"].(float64)
			fmt.Printf("%-24s %-13s %-10s %s\n", label, kind, status, formatBytes(int64(size)))
			return nil
		})
		if err != nil {
			return fmt.Errorf("list backups failed: %w", err)
		}
		if count == 0 {
			fmt.Println("No backups found")
		}
		return nil
	},
}

// --- status -------------------------------------------------------------

var statusCmd = &cobra.Command{
	Use:   "status [SERVER]",
	Short: "Show server reachability",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := ""
		if len(args) == 1 {
			server = args[0]
		}

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		resp, err := c.Status(server)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}

		data, ok := resp.Data.(map[string]interface{})
		if !ok {
			fmt.Println(resp.Data)
			return nil
		}
		for name, online := range data {
			state := "offline"
			if online == true {
				state = "online"
			}
			fmt.Printf("%-20s %s\n", name, state)
		}
		return nil
	},
}

// --- details --------------------------------------------------------------

var detailsCmd = &cobra.Command{
	Use:   "details SERVER LABEL",
	Short: "Show one backup's catalogue entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, label := args[0], args[1]

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		resp, err := c.Details(server, label)
		if err != nil {
			return fmt.Errorf("details failed: %w", err)
		}

		fmt.Printf("%+v\n", resp.Data)
		return nil
	},
}

// --- verify / archive / retention --------------------------------------
//
// These operate directly against the on-disk catalogue rather than the
// control socket: they are maintenance commands meant to run out-of-band
// from (or in place of) a running daemon, the way a cron job invokes them
// against a cold catalogue.

// localOrchestratorPoolSize sizes the worker pool for the maintenance
// commands below, which run out-of-band from a daemon and so never see
// a loaded Config's worker_pool_size; it matches config.Load's own
// fallback.
const localOrchestratorPoolSize = 2

func openLocalOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, *catalogue.Store, error) {
	baseDir, _ := cmd.Flags().GetString("base-dir")
	store, err := catalogue.OpenStore(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalogue: %w", err)
	}
	cat := catalogue.New(baseDir, store)
	return orchestrator.New(cat, localOrchestratorPoolSize), store, nil
}

var verifyCmd = &cobra.Command{
	Use:   "verify SERVER LABEL",
	Short: "Verify a backup's manifest and checksums",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, label := args[0], args[1]

		orch, store, err := openLocalOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := orch.RunVerify(server, label); err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}

		fmt.Printf("✓ %s/%s verified\n", server, label)
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive SERVER LABEL DESTINATION",
	Short: "Archive a backup as a single tar file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, label, destination := args[0], args[1], args[2]

		orch, store, err := openLocalOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		wf, bag := orch.Archive(server, label, destination)
		if err := wf.Run(bag); err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}

		fmt.Printf("✓ %s/%s archived to %s\n", server, label, destination)
		return nil
	},
}

var retentionCmd = &cobra.Command{
	Use:   "retention SERVER",
	Short: "Run a retention sweep against a server's backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := args[0]
		keepCount, _ := cmd.Flags().GetInt("keep-count")
		keepForDays, _ := cmd.Flags().GetInt("keep-for-days")
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")

		orch, store, err := openLocalOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := config.NewServer(config.ServerConfig{Name: server, Host: host, Port: port})
		srv.SetOnline(true)

		policy := types.RetentionPolicy{
			KeepCount: keepCount,
			KeepFor:   time.Duration(keepForDays) * 24 * time.Hour,
		}
		if err := orchestrator.Retention(srv, orch.Catalogue, policy); err != nil {
			return fmt.Errorf("retention failed: %w", err)
		}

		fmt.Printf("✓ Retention swept for %s\n", server)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{verifyCmd, archiveCmd, retentionCmd} {
		cmd.Flags().String("base-dir", "/var/lib/pgbackup", "Catalogue base directory")
	}
	retentionCmd.Flags().Int("keep-count", 0, "Keep at least this many most-recent valid backups (values below 1 count as 1)")
	retentionCmd.Flags().Int("keep-for-days", 0, "Keep backups newer than this many days (0 = unbounded)")
	retentionCmd.Flags().String("host", "127.0.0.1", "Server host, for the offline/lock check only")
	retentionCmd.Flags().Int("port", 5432, "Server port, for the offline/lock check only")
}

// --- shell / stop / reset / reload --------------------------------------

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Check that the daemon's control socket is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		if err := c.IsAlive(); err != nil {
			return fmt.Errorf("daemon not responding: %w", err)
		}
		fmt.Println("✓ Daemon is alive")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the daemon to shut down",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		if err := c.Stop(); err != nil {
			return fmt.Errorf("stop failed: %w", err)
		}
		fmt.Println("✓ Stop requested")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset SERVER",
	Short: "Clear a server's repository lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := args[0]

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		if err := c.Reset(server); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		fmt.Printf("✓ Repository lock cleared for %s\n", server)
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the daemon to reload its configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer c.Close()

		if err := c.Reload(); err != nil {
			return fmt.Errorf("reload failed: %w", err)
		}
		fmt.Println("✓ Reload requested")
		return nil
	},
}

// --- helpers ------------------------------------------------------------

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n/div >= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
