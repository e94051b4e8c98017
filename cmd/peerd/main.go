// Command peerd runs one peer's transfer server, registering with the
// directory once at start-up (performing any replication tasks the
// directory returns) and then serving until interrupted. It has no
// flags for search, obtain or replicate. As with
// directoryd, flag parsing is a thin collaborator layer (spec §1); this
// entrypoint wires already-specified components together, grounded in
// style on the teacher's cmd/dfget2/cmd/root.go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/ard1102/p2p/config"
	"github.com/ard1102/p2p/internal/dflog"
	"github.com/ard1102/p2p/internal/netutil"
	"github.com/ard1102/p2p/peer"
	peermetrics "github.com/ard1102/p2p/peer/metrics"
)

var (
	configPath    string
	peerID        string
	directoryAddr string
	peerHost      string
	peerPort      int
	httpAddr      string
	metricsCSVOut string
)

var rootCmd = &cobra.Command{
	Use:   "peerd",
	Short: "peerd runs a P2P file-sharing peer's transfer server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to peer.yaml")
	rootCmd.Flags().StringVar(&peerID, "peer-id", "", "this peer's identity")
	rootCmd.Flags().StringVar(&directoryAddr, "directory", "", "directory server host:port")
	rootCmd.Flags().StringVar(&peerHost, "host", "", "this peer's advertised host")
	rootCmd.Flags().IntVar(&peerPort, "port", 0, "this peer's advertised transfer port")
	rootCmd.Flags().StringVar(&httpAddr, "http", ":7101", "bind address for the read-only status/metrics endpoint")
	rootCmd.Flags().StringVar(&metricsCSVOut, "metrics-csv", "", "path to export accumulated transfer metrics as CSV on shutdown (disabled if empty)")
}

func run() error {
	if peerID == "" {
		return fmt.Errorf("--peer-id is required")
	}

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := dflog.New(dflog.Options{
		Console:    cfg.Logging.Console,
		Dir:        cfg.Logging.Dir,
		FileName:   cfg.Logging.FileName,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	dataCfg, ok := cfg.Data.Peers[peerID]
	if !ok {
		return fmt.Errorf("no data.peers.%s entry in config", peerID)
	}

	store := &peer.FileStore{
		SharedDir:     dataCfg.SharedDir,
		DownloadDir:   dataCfg.DownloadDir,
		ReplicatedDir: dataCfg.ReplicatedDir,
	}

	if err := os.MkdirAll(store.SharedDir, 0o755); err != nil {
		return fmt.Errorf("ensure shared dir: %w", err)
	}

	// Single-instance lock per peer data directory, mirroring the
	// teacher's client/pidfile usage, preventing two peerd processes
	// from racing on the same shared_dir.
	lockPath := store.SharedDir + "/.peerd.lock"
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another peerd instance already holds %s", lockPath)
	}
	defer fileLock.Unlock()

	host := peerHost
	if host == "" {
		host = cfg.Peer.Host
	}
	port := peerPort
	if port == 0 {
		port = netutil.TransferPort(peerID, cfg.Peer.BasePort)
	}
	dirAddr := directoryAddr
	if dirAddr == "" {
		dirAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	m := peermetrics.New()
	client := peer.NewClient(peerID, dirAddr, store, m, log)

	ln, err := netutil.Listen(cfg.Peer.Host, port)
	if err != nil {
		return fmt.Errorf("listen %s:%d: %w", cfg.Peer.Host, port, err)
	}
	transferSrv := peer.NewTransferServer(store, log)

	httpSrv := &http.Server{Addr: httpAddr, Handler: peermetrics.Router(m)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("status endpoint: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := client.Register(host, port, true)
	if err != nil {
		log.Warnf("initial registration failed: %v", err)
	} else {
		log.Infof("registered %d files, replication_required=%v", resp.RegisteredFiles, resp.ReplicationRequired)
	}

	log.Infof("peerd %s listening on %s:%d, status on %s", peerID, cfg.Peer.Host, port, httpAddr)
	serveErr := transferSrv.Serve(ctx, ln)

	if metricsCSVOut != "" {
		if err := m.ExportCSV(metricsCSVOut); err != nil {
			log.Warnf("export metrics csv to %s: %v", metricsCSVOut, err)
		} else {
			log.Infof("exported transfer metrics to %s", metricsCSVOut)
		}
	}

	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
