package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bearing-monitor/station/internal/adapter"
	"github.com/bearing-monitor/station/internal/bridge"
	"github.com/bearing-monitor/station/internal/config"
	"github.com/bearing-monitor/station/internal/engine"
	"github.com/bearing-monitor/station/internal/ingest"
	"github.com/bearing-monitor/station/internal/logging"
	"github.com/bearing-monitor/station/internal/metric"
	"github.com/bearing-monitor/station/internal/mock"
	"github.com/bearing-monitor/station/internal/session"
	"github.com/bearing-monitor/station/internal/station"
	"github.com/bearing-monitor/station/internal/tui"
	"github.com/bearing-monitor/station/internal/view"
	"github.com/bearing-monitor/station/internal/ws"
)

type options struct {
	configPath string
	port       int
	headless   bool
	mock       bool
	backend    bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "station",
		Short: "Bearing monitoring station",
		Long: `station accepts instrument connections over websocket, runs the
analysis algorithm bound to each instrument and shows the selected
instrument's results in a terminal UI.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.Flags().Changed("backend"))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")
	f.IntVarP(&opts.port, "port", "p", 0, "override server port")
	f.BoolVar(&opts.headless, "headless", false, "run without the terminal UI and log results")
	f.BoolVar(&opts.mock, "mock", false, "start simulated instruments")
	f.BoolVar(&opts.backend, "backend", false, "compute every instrument, not only the selected one")
	f.StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, opts options, backendSet bool) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if backendSet {
		cfg.Engine.BackendByDefault = opts.backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOut, closeLog, err := logWriter(cfg.Logging, opts.headless)
	if err != nil {
		return err
	}
	defer closeLog()
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	metrics := metric.NewRegistry()
	reg := session.NewRegistry(session.WithMaxLogLines(cfg.Session.MaxLogLines))
	eng, err := engine.New(reg, engine.Config{
		Workers:          cfg.Engine.Workers,
		QueueSize:        cfg.Engine.QueueSize,
		CompletionBuffer: cfg.Engine.CompletionBuffer,
	}, engine.WithLogger(logger), engine.WithMetrics(metrics))
	if err != nil {
		return err
	}
	ing := ingest.NewHandler(reg, adapter.Default(),
		ingest.WithBackendDefault(cfg.Engine.BackendByDefault),
		ingest.WithLogger(logger),
	)
	compute, ui := bridge.New()
	defer compute.Close()
	st := station.New(reg, eng, ing, compute, station.WithLogger(logger))
	srv := ws.NewServer(cfg.Server, st, reg,
		ws.WithEngine(eng),
		ws.WithMetrics(metrics.Handler()),
		ws.WithLogger(logger),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := eng.Stop(5 * time.Second); err != nil {
			logger.Warn("engine stop", "error", err)
		}
	}()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("component failed", "component", name, "error", err)
				errOnce.Do(func() { firstErr = fmt.Errorf("%s: %w", name, err) })
			}
			cancel()
		}()
	}

	spawn("station", func() error { return st.Run(ctx) })
	spawn("server", func() error { return srv.ListenAndServe(ctx) })
	if opts.mock {
		gen := mock.NewGenerator(mockURL(cfg.Server), cfg.Mock.Devices, cfg.Mock.Interval, cfg.Mock.DeviceType,
			mock.WithLogger(logger))
		spawn("mock", func() error {
			gen.Run(ctx)
			return nil
		})
	}
	if opts.headless {
		spawn("headless", func() error { return view.Run(ctx, ui, logger) })
	} else {
		spawn("tui", func() error { return tui.Run(ctx, ui) })
	}

	wg.Wait()
	return firstErr
}

// logWriter keeps logs off the terminal while the TUI owns it. Headless
// mode logs to stderr.
func logWriter(cfg config.LoggingConfig, headless bool) (io.Writer, func(), error) {
	if headless {
		return os.Stderr, func() {}, nil
	}
	if cfg.File == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func mockURL(cfg config.ServerConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	return "ws://" + net.JoinHostPort(host, fmt.Sprint(cfg.Port)) + path
}
