package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/parliament/internal/api"
	"github.com/dyluth/parliament/internal/config"
	"github.com/dyluth/parliament/internal/jobs"
	"github.com/dyluth/parliament/internal/record"
	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a peer until interrupted",
	Long: `Run a senator or observer peer described by a parliament.yml file.

The peer joins the group, watches it for changes and serves /healthz,
/metrics and /archives over HTTP until it receives SIGINT or SIGTERM.
An observer withdraws from the group on shutdown.

Examples:
  # Run the peer described in ./parliament.yml
  parliament run

  # Use another config and Redis
  parliament run -c /etc/parliament/senator.yml --redis-url redis://redis:6379`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "parliament.yml", "Path to parliament.yml")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return out.Error(
			"failed to load configuration",
			err.Error(),
			fmt.Sprintf("Check %s", runConfigPath),
		)
	}
	if cmd.Flags().Changed("redis-url") {
		cfg.Redis.URL = redisURL
	}
	if cmd.Flags().Changed("group") {
		cfg.Peer.Group = group
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runPeer(ctx, cfg)
}

// runPeer runs the peer described by cfg until ctx is cancelled.
func runPeer(ctx context.Context, cfg *config.Config) error {
	backend, err := openBackend(ctx, cfg.Redis.URL, cfg.Peer.Group)
	if err != nil {
		return err
	}
	defer backend.Close()

	recorder, closeRecorder, err := openRecorder(cfg, backend)
	if err != nil {
		return out.Error("failed to open system of record", err.Error())
	}
	defer closeRecorder()

	hooks := parliament.NewRegistry()
	jobs.RegisterHooks(hooks, recorder)
	triggers := parliament.NewTriggers()
	jobs.RegisterTriggers(triggers)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	peer, err := parliament.New(backend, opts, hooks, triggers)
	if err != nil {
		return err
	}

	out.Step("Starting %s %s in group '%s'", peer.Role(), peer.Name(), backend.Group())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return peer.Run(gctx)
	})
	if cfg.HTTP.Addr != "-" {
		server := api.NewServer(peer, cfg.HTTP.Addr)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()

	// Observers hand back their queue; use a fresh context since ctx is done
	if peer.Joined() {
		wctx, cancel := context.WithTimeout(context.Background(), opts.PublishTimeout+parliament.DefaultBlock)
		defer cancel()
		if werr := peer.Withdraw(wctx); werr != nil {
			glog.Errorf("[Run] Withdraw of %s failed: %v", peer.Name(), werr)
		}
	}

	if err != nil {
		return out.Error("peer stopped with an error", err.Error())
	}
	out.Success("%s stopped", peer.Name())
	return nil
}

// openRecorder opens the configured system of record. The returned close
// function is always safe to call.
func openRecorder(cfg *config.Config, backend *parliament.Backend) (parliament.Recorder, func(), error) {
	switch cfg.Record.Backend {
	case config.RecordBadger:
		db, err := record.OpenBadger(record.BadgerConfig{
			Path:       cfg.Record.Path,
			SyncWrites: cfg.Record.SyncWrites,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				glog.Warningf("[Run] Closing record store: %v", err)
			}
		}, nil
	default:
		return record.NewRedis(backend.Redis(), backend.Group()), func() {}, nil
	}
}
