// Command rawgated is the gateway daemon: it loads a JSON repository/
// service configuration document, constructs the matching storage
// back-end, and serves PUT/GET/DELETE chunk requests until signalled to
// stop, per spec.md §6's CLI contract.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/rawgate/rawgate/internal/logger"
	"github.com/rawgate/rawgate/pkg/config"
	"github.com/rawgate/rawgate/pkg/gateway"
	"github.com/rawgate/rawgate/pkg/kinetic/client"
	"github.com/rawgate/rawgate/pkg/kineticblob"
	"github.com/rawgate/rawgate/pkg/localblob"
	"github.com/rawgate/rawgate/internal/tracing"
	"github.com/rawgate/rawgate/pkg/metrics"
	"github.com/rawgate/rawgate/pkg/rawxblob"
)

var rootCmd = &cobra.Command{
	Use:   "rawgated <config.json>",
	Short: "rawgate chunk storage gateway daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runDaemon,
	// SIGPIPE, SIGHUP, SIGUSR1 and SIGUSR2 are ignored rather than
	// terminating the process (see ignoreUnhandledSignals), per spec.md §6.
	SilenceUsage: true,
}

func main() {
	ignoreUnhandledSignals()
	redirectStdStreams()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rawgated: %v\n", err)
		os.Exit(1)
	}
}

// ignoreUnhandledSignals discards SIGPIPE/SIGHUP/SIGUSR1/SIGUSR2, per
// spec.md §6; only SIGINT/SIGTERM are meaningful to this daemon.
func ignoreUnhandledSignals() {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
}

// redirectStdStreams re-points stdin/stdout to /dev/null, per spec.md
// §6; the daemon logs via internal/logger, never writes to stdout.
func redirectStdStreams() {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return
	}
	os.Stdin = devNull
	os.Stdout = devNull
}

func runDaemon(cmd *cobra.Command, args []string) error {
	doc, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  doc.Service.Logging.Level,
		Format: doc.Service.Logging.Format,
		Output: doc.Service.Logging.Output,
	}); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// SPEC_FULL.md §5: the coroutine runtime is realized with a single
	// OS thread so its cooperative scheduling guarantees hold.
	gomaxprocs := doc.Service.GOMAXPROCS
	if gomaxprocs <= 0 {
		gomaxprocs = 1
	}
	runtime.GOMAXPROCS(gomaxprocs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:  doc.Service.Tracing.Enabled,
		Endpoint: doc.Service.Tracing.Endpoint,
		Insecure: doc.Service.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	backend, err := buildBackend(ctx, doc.Repository)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	srv := gateway.NewServer(gateway.Config{
		Bind:         doc.Service.Bind,
		ReadDeadline: doc.Service.ReadDeadline,
	}, backend)

	if doc.Service.Metrics.Enabled {
		metrics.InitRegistry()
		srv.SetMetrics(metrics.NewGatewayMetrics())
		startMetricsServer(ctx, doc.Service.Metrics.Port)
	}

	if err := srv.Listen(); err != nil {
		return fmt.Errorf("gateway: listen %s: %w", doc.Service.Bind, err)
	}
	logger.Info("gateway listening", "addr", srv.Addr().String(), "backend", doc.Repository.Backend)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown requested")
		cancel()
		if err := <-serverDone; err != nil {
			return err
		}
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			return err
		}
	}

	logger.Info("gateway stopped cleanly")
	return nil
}

// startMetricsServer serves the Prometheus registry on port until ctx
// is cancelled, logging (not failing the daemon) if the listener can't
// bind.
func startMetricsServer(ctx context.Context, port int) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

// buildBackend constructs the gateway.Backend named by repo.Backend,
// per SPEC_FULL.md §6's Repository discriminated union.
func buildBackend(ctx context.Context, repo config.RepositoryConfig) (gateway.Backend, error) {
	switch repo.Backend {
	case config.BackendLocal:
		if repo.Local == nil {
			return nil, fmt.Errorf("repository.local is required when backend=local")
		}
		store, err := localblob.New(localblob.Config{
			DocRoot:   repo.Local.DocRoot,
			HashDepth: repo.Local.Hash.Depth,
			HashWidth: repo.Local.Hash.Width,
		})
		if err != nil {
			return nil, err
		}
		return gateway.NewLocalBackend(store, 0), nil

	case config.BackendRawx:
		if repo.Rawx == nil {
			return nil, fmt.Errorf("repository.rawx is required when backend=rawx")
		}
		rawxClient := rawxblob.New(rawxblob.Config{
			Addr:            repo.Rawx.Addr,
			DialDeadline:    repo.Rawx.DialDeadline,
			RequestDeadline: repo.Rawx.RequestDeadline,
		})
		return gateway.NewRawxBackend(rawxClient), nil

	case config.BackendKinetic:
		if repo.Kinetic == nil {
			return nil, fmt.Errorf("repository.kinetic is required when backend=kinetic")
		}
		targets, err := buildKineticTargets(ctx, repo.Kinetic)
		if err != nil {
			return nil, err
		}
		return gateway.NewKineticBackend(targets, int(repo.Kinetic.BlockSize.Int64()), repo.Kinetic.DownloadParallelism), nil

	default:
		return nil, fmt.Errorf("repository.backend %q is not one of local, rawx, kinetic", repo.Backend)
	}
}

func buildKineticTargets(ctx context.Context, cfg *config.KineticRepositoryConfig) ([]kineticblob.Target, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("repository.kinetic.targets must have at least one drive")
	}
	targets := make([]kineticblob.Target, 0, len(cfg.Targets))
	for _, drive := range cfg.Targets {
		conn := client.New(client.Config{
			Addr:     drive.Addr,
			Identity: drive.Identity,
			HMACSalt: []byte(drive.HMACSalt),
		})
		conn.Start(ctx)
		targets = append(targets, kineticblob.Target{Drive: conn})
	}
	return targets, nil
}
