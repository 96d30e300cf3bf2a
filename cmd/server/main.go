package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tuannm99/novamem/internal"
	"github.com/tuannm99/novamem/internal/engine"
	"github.com/tuannm99/novamem/internal/logging"
	"github.com/tuannm99/novamem/internal/sql/executor"
	"github.com/tuannm99/novamem/server/novamemwire"
	"github.com/tuannm99/novamem/server/status"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := internal.NewViper()
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "novamemd",
		Short:         "novamem in-memory transactional database server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(v, cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.SetContext(context.Background())

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")
	bindFlags(cmd.Flags(), v)
	return cmd
}

// bindFlags declares the flags that override config keys and binds each one
// to its key. Flags win over the file and the environment.
func bindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("data-dir", "", "directory holding wal.log and snapshot.dat")
	fs.String("addr", "", "address of the SQL wire server")
	fs.String("status-addr", "", "address of the HTTP status server (empty disables it)")
	fs.Duration("checkpoint-interval", 0, "time between background checkpoints (0 disables them)")
	fs.Bool("sync-writes", true, "fsync the log on every commit")
	fs.String("log-level", "", "debug | info | warn | error")

	for flag, key := range map[string]string{
		"data-dir":            "storage.workdir",
		"addr":                "server.addr",
		"status-addr":         "server.status_addr",
		"checkpoint-interval": "storage.checkpoint_interval",
		"sync-writes":         "storage.sync_writes",
		"log-level":           "log.level",
	} {
		// only flags set on the command line override
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

func run(ctx context.Context, cfg *internal.NovaMemConfig) error {
	if cfg.Server.Debug {
		cfg.Log.Level = "debug"
	}
	log, logOut, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Close() }()

	db, err := engine.Open(engine.Options{
		DataDir:            cfg.Storage.Workdir,
		NoSync:             !cfg.Storage.SyncWrites,
		CheckpointInterval: cfg.Storage.CheckpointInterval,
		Logger:             log,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("close database", "err", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := novamemwire.NewServer(executor.NewExecutor(db, log), log)
	srv.RequestTimeout = cfg.Server.RequestTimeout

	var sln net.Listener
	if cfg.Server.StatusAddr != "" {
		if sln, err = net.Listen("tcp", cfg.Server.StatusAddr); err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen status: %w", err)
		}
	}

	// the first server to fail stops the other
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	serve := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errOnce.Do(func() { runErr = err })
				cancel()
			}
		}()
	}
	serve(func() error { return srv.Serve(ctx, ln) })
	if sln != nil {
		serve(func() error { return status.Serve(ctx, sln, db, log) })
	}

	log.Info("novamemd started",
		"workdir", cfg.Storage.Workdir,
		"addr", cfg.Server.Addr,
		"status_addr", cfg.Server.StatusAddr,
		"version", db.Version())

	<-ctx.Done()
	log.Info("novamemd shutting down")
	wg.Wait()
	return runErr
}
