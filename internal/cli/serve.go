package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/cvalchemist/internal/apps"
	"github.com/mesh-intelligence/cvalchemist/internal/config"
	"github.com/mesh-intelligence/cvalchemist/internal/launcher"
	"github.com/mesh-intelligence/cvalchemist/internal/logging"
	"github.com/mesh-intelligence/cvalchemist/internal/paths"
	"github.com/mesh-intelligence/cvalchemist/internal/reload"
)

type serveFlags struct {
	host            string
	workers         int
	gracefulTimeout time.Duration
	reload          bool
	appDir          string
	metricsAddr     string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve [ENTRYPOINT]",
		Short: "Bind PORT and serve an entry point from a worker pool",
		Long: "Serve binds " + launcher.DefaultHost + ":$PORT once and runs a fixed pool of worker\n" +
			"processes that share the socket. ENTRYPOINT defaults to " + apps.DefaultEntryPoint + ".\n\n" +
			"SIGTERM and SIGINT drain the workers. SIGHUP replaces them one at a time.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f, entryPointArg(args))
		},
	}
	cmd.Flags().StringVar(&f.host, "host", launcher.DefaultHost, "bind address")
	cmd.Flags().IntVar(&f.workers, "workers", launcher.DefaultWorkers, "number of worker processes")
	cmd.Flags().DurationVar(&f.gracefulTimeout, "graceful-timeout", launcher.DefaultGracefulTimeout, "time a worker gets to drain before it is killed")
	cmd.Flags().BoolVar(&f.reload, "reload", false, "replace workers when the app or config directory changes")
	cmd.Flags().StringVar(&f.appDir, "app-dir", "", "directory holding index.html (default: working directory)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve pool metrics on this address (disabled when empty)")
	return cmd
}

func entryPointArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return apps.DefaultEntryPoint
}

func runServe(cmd *cobra.Command, f serveFlags, entryPoint string) error {
	port, err := launcher.ResolvePort(os.Getenv(launcher.EnvPort))
	if err != nil {
		return exitError(exitUserError, err)
	}

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve config directory: %w", err))
	}
	settings, err := config.Load(configDir)
	if err != nil {
		return exitError(exitUserError, err)
	}
	appDir, err := paths.ResolveAppDir(f.appDir, settings.App.Dir)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve app directory: %w", err))
	}

	logger, err := logging.Master(logging.Options{Level: settings.Log.Level, Verbose: flags.verbose})
	if err != nil {
		return exitError(exitSysError, err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := launcher.DefaultConfig()
	cfg.Host = f.host
	cfg.Port = port
	cfg.Workers = f.workers
	cfg.EntryPoint = entryPoint
	cfg.GracefulTimeout = f.gracefulTimeout
	cfg.Env = workerEnv(configDir, appDir, flags.verbose)

	metrics := launcher.NewPrometheusMetricsCollector("")
	pool, err := launcher.NewPool(cfg,
		launcher.WithLogger(logger),
		launcher.WithMetricsCollector(metrics),
	)
	if err != nil {
		return exitError(exitUserError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var watcher *reload.Watcher
	if f.reload {
		watcher, err = reload.New([]string{appDir, configDir}, reload.DefaultDebounce, func() {
			if err := pool.Reload(ctx); err != nil {
				logger.Error("reload failed", zap.Error(err))
			}
		}, logger)
		if err != nil {
			return exitError(exitSysError, err)
		}
	}

	logger.Info("starting pool",
		zap.String("entrypoint", entryPoint),
		zap.String("host", cfg.Host),
		zap.Int("port", port),
		zap.Int("workers", cfg.Workers),
		zap.String("app_dir", appDir),
	)

	hup, stopHangup := notifyHangup()
	defer stopHangup()

	g, gctx := errgroup.WithContext(ctx)
	poolCtx, cancelPool := context.WithCancel(gctx)
	defer cancelPool()

	g.Go(func() error {
		defer cancelPool()
		return pool.Run(poolCtx)
	})
	g.Go(func() error {
		return handleHangup(poolCtx, hup, pool, logger)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(poolCtx)
		})
	}
	if f.metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(poolCtx, f.metricsAddr, metrics, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("pool stopped", zap.Error(err))
		return exitError(serveExitCode(err), err)
	}
	logger.Info("pool stopped")
	return nil
}

// workerEnv forwards the master's resolved locations to its workers.
func workerEnv(configDir, appDir string, verbose bool) []string {
	env := []string{
		paths.EnvConfigDir + "=" + absOrSelf(configDir),
		paths.EnvAppDir + "=" + appDir,
	}
	if verbose {
		env = append(env, config.EnvPrefix+"_LOG_LEVEL=debug")
	}
	return env
}

func serveExitCode(err error) int {
	switch {
	case errors.Is(err, apps.ErrEntryPointInvalid),
		errors.Is(err, apps.ErrEntryPointNotFound),
		errors.Is(err, launcher.ErrPortUnset),
		errors.Is(err, launcher.ErrPortInvalid):
		return exitUserError
	default:
		return exitSysError
	}
}

// notifyHangup starts catching SIGHUP. It must run before the pool starts
// so a reload request never falls through to the default action.
func notifyHangup() (<-chan os.Signal, func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	return hup, func() { signal.Stop(hup) }
}

type reloader interface {
	Reload(ctx context.Context) error
}

// handleHangup reloads the pool on every signal from hup until ctx is done.
func handleHangup(ctx context.Context, hup <-chan os.Signal, pool reloader, logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			logger.Info("SIGHUP received, reloading workers")
			if err := pool.Reload(ctx); err != nil && ctx.Err() == nil {
				logger.Error("reload failed", zap.Error(err))
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string, metrics *launcher.PrometheusMetricsCollector, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving pool metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-errCh
	return nil
}

// absOrSelf returns dir as an absolute path when it can be resolved.
func absOrSelf(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
