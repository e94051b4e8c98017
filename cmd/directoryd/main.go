// Command directoryd runs the directory (indexing) server. Flag
// parsing here is intentionally thin — the interactive CLI surface is
// a collaborator concern (spec §1) — this entrypoint exists to wire
// already-specified components together, grounded in style on the
// teacher's cmd/dfget2/cmd/root.go cobra command tree.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ard1102/p2p/config"
	"github.com/ard1102/p2p/directory"
	"github.com/ard1102/p2p/directory/metrics"
	"github.com/ard1102/p2p/internal/dflog"
	"github.com/ard1102/p2p/internal/netutil"
	"github.com/ard1102/p2p/pkg/index"
	"github.com/ard1102/p2p/pkg/replication"
)

var configPath string
var httpAddr string

var rootCmd = &cobra.Command{
	Use:   "directoryd",
	Short: "directoryd runs the P2P file-sharing directory server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to directory.yaml")
	rootCmd.Flags().StringVar(&httpAddr, "http", ":7001", "bind address for the read-only status/metrics endpoint")
}

func run() error {
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

	idx := index.New()
	planner := replication.New(idx, cfg.Replication.ReplicationFactor)
	m := metrics.New()
	srv := directory.New(idx, planner, log, m, cfg.Replication.MaxTasks)

	ln, err := netutil.Listen(cfg.Server.Host, cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("listen %s:%d: %w", cfg.Server.Host, cfg.Server.Port, err)
	}

	httpSrv := &http.Server{Addr: httpAddr, Handler: metrics.Router(m, idx)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("status endpoint: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("directoryd listening on %s:%d, status on %s", cfg.Server.Host, cfg.Server.Port, httpAddr)
	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
