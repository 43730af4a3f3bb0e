package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cvalchemist/internal/apps"
	"github.com/mesh-intelligence/cvalchemist/internal/config"
	"github.com/mesh-intelligence/cvalchemist/internal/launcher"
	"github.com/mesh-intelligence/cvalchemist/internal/logging"
	"github.com/mesh-intelligence/cvalchemist/internal/paths"
)

func newWorkerCmd() *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:    "worker ENTRYPOINT",
		Short:  "Serve an entry point on the listener inherited from serve",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, args[0], shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", launcher.DefaultGracefulTimeout, "time to drain in-flight requests")
	return cmd
}

func runWorker(cmd *cobra.Command, entryPoint string, shutdownTimeout time.Duration) error {
	ln, err := launcher.InheritedListener()
	if err != nil {
		return exitError(launcher.ExitBootError, err)
	}
	defer ln.Close()

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(launcher.ExitBootError, fmt.Errorf("resolve config directory: %w", err))
	}
	settings, err := config.Load(configDir)
	if err != nil {
		return exitError(launcher.ExitBootError, err)
	}

	id := launcher.WorkerID()
	logger, err := logging.Worker(logging.Options{Level: settings.Log.Level, Verbose: flags.verbose}, id)
	if err != nil {
		return exitError(launcher.ExitBootError, err)
	}
	defer logger.Sync() //nolint:errcheck

	ep, factory, err := apps.Default.Resolve(entryPoint)
	if err != nil {
		logger.Error("failed to load entry point", zap.String("entrypoint", entryPoint), zap.Error(err))
		return exitError(launcher.ExitAppLoadError, err)
	}

	// SIGHUP belongs to the master.
	signal.Ignore(syscall.SIGHUP)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := factory(ctx, apps.Env{
		WorkerID: id,
		Workers:  launcher.WorkerCount(),
		Settings: settings,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build application", zap.Stringer("entrypoint", ep), zap.Error(err))
		return exitError(launcher.ExitAppLoadError, err)
	}
	if app.Close != nil {
		defer func() {
			if err := app.Close(); err != nil {
				logger.Warn("close application", zap.Error(err))
			}
		}()
	}

	logger.Info("worker serving", zap.Stringer("entrypoint", ep), zap.String("addr", ln.Addr().String()))
	if err := launcher.Serve(ctx, ln, app.Handler, shutdownTimeout); err != nil {
		logger.Error("serve failed", zap.Error(err))
		return exitError(exitSysError, err)
	}
	logger.Info("worker stopped")
	return nil
}
