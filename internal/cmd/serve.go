package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/robolink/robosock/internal/config"
	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
	"github.com/robolink/robosock/internal/metrics"
	"github.com/robolink/robosock/internal/probe"
	"github.com/robolink/robosock/internal/relay"
	"github.com/robolink/robosock/internal/robosock"
	"github.com/robolink/robosock/internal/watch"
)

// releaseTimeout bounds the cooperative unlink on shutdown before the
// socket is force-released.
const releaseTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bind the managed socket and relay incoming datagrams",
	Long: `Bind the managed socket and log every datagram it receives until
interrupted. On SIGINT or SIGTERM the relay drains its queue and the socket
file is removed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var servePrint bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVarP(&servePrint, "print", "p", false, "also write each payload to stdout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out io.Writer
	if servePrint {
		out = cmd.OutOrStdout()
	}
	return serve(ctx, cfg, logger, out)
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
}

// serve runs the managed socket until ctx is cancelled. Payloads are also
// written to out when it is non-nil.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger, out io.Writer) error {
	path := cfg.Socket.Path
	logger = logger.WithComponent("serve")

	bus := event.NewBus(event.WithLogger(logger))
	reg := robosock.NewRegistry(
		robosock.WithRegistryLogger(logger),
		robosock.WithRegistryBus(bus),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		collector.Attach(bus)
		collector.WatchRegistry(reg)
		defer collector.Detach()
	}

	var watcher *watch.Watcher
	if cfg.Watch.Enabled {
		w, err := watch.New(reg, bus,
			watch.WithLogger(logger),
			watch.WithDebounce(cfg.Watch.Debounce()),
		)
		if err != nil {
			return fmt.Errorf("failed to start socket watcher: %w", err)
		}
		w.Start()
		defer w.Stop()
		watcher = w
	}

	sock, err := bindSocket(ctx, cfg, reg, bus, logger)
	if err != nil {
		return err
	}
	defer reportRegistered(reg, logger)
	defer release(sock, logger)

	attrs := []any{"socket", path, "identity", sock.Identity()}
	if watcher != nil {
		attrs = append(attrs, "watched", watcher.Tracked())
	}
	logger.Info("serving", attrs...)

	var sink relay.Sink = relay.NewLogSink(logger)
	if out != nil {
		sink = relay.MultiSink{sink, relay.NewWriterSink(out)}
	}
	r := relay.New(sock, sink,
		relay.WithLogger(logger),
		relay.WithBus(bus),
		relay.WithQueueSize(cfg.Relay.QueueSize),
		relay.WithMaxDatagramSize(cfg.Relay.MaxDatagramSize),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(r.Run)
	if collector != nil {
		p.Go(func(ctx context.Context) error {
			return collector.Serve(ctx, cfg.Metrics.ListenAddr, logger)
		})
	}
	return p.Wait()
}

func bindSocket(ctx context.Context, cfg *config.Config, reg *robosock.Registry, bus *event.Bus, logger *logging.Logger) (*robosock.Socket, error) {
	path := cfg.Socket.Path

	if cfg.Socket.CreateDir {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create socket directory: %w", err)
		}
	}

	if cfg.Socket.RefuseLive {
		report, err := probe.Inspect(path)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", path, err)
		}
		if report.State == probe.StateLive {
			return nil, fmt.Errorf("socket %s is answering; another process is serving it", path)
		}
	}

	mode, err := cfg.Socket.FileMode()
	if err != nil {
		return nil, err
	}
	opts := []robosock.Option{
		robosock.WithLogger(logger),
		robosock.WithBus(bus),
		robosock.WithMode(mode),
	}
	if cfg.Socket.RequireSocketFile {
		opts = append(opts, robosock.WithRequireSocketFile())
	}
	return robosock.New(ctx, reg, path, opts...)
}

// release unlinks sock cooperatively and falls back to a forced release.
func release(sock *robosock.Socket, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	err := sock.Unlink(ctx)
	if err == nil || errors.Is(err, robosock.ErrReleased) {
		return
	}
	logger.Warn("cooperative release failed, forcing it", "error", err)
	var unlinkErr *robosock.UnlinkError
	if errors.As(err, &unlinkErr) {
		_ = unlinkErr.Socket.Close()
		return
	}
	_ = sock.Close()
}

// reportRegistered logs any socket still held by reg once serve has
// released its own.
func reportRegistered(reg *robosock.Registry, logger *logging.Logger) {
	if reg.Poisoned() {
		logger.Error("socket registry was poisoned, leftover socket files may remain")
		return
	}
	ids, err := reg.Identities()
	if err != nil {
		logger.Error("failed to list registered sockets", "error", err)
		return
	}
	for _, id := range ids {
		path, ok, err := reg.PathOf(id)
		if err != nil || !ok {
			continue
		}
		logger.Warn("socket still registered at shutdown", "identity", id, "path", path)
	}
}
