package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/ftahirops/spikemon/collector"
	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/output"
	"github.com/ftahirops/spikemon/ui"
)

func newSampler(name string, topN int) collector.Sampler {
	if name == samplerGopsutil {
		return collector.NewPortableSampler(topN)
	}
	return collector.NewRegistry(collector.DefaultProcRoot, topN)
}

// runMonitor runs the sampling loop shared by live and batch. Failing to
// open the event log or bind the metrics address stops it before the first
// sample; later failures are logged and sampling continues.
func runMonitor(ctx context.Context, s settings, limit engine.RunLimit, tui bool, opts *rootOptions, stdout io.Writer) error {
	logger := opts.logger

	var sink engine.EventSink
	if s.logFile != "" {
		w, err := engine.OpenEventLog(s.logFile)
		if err != nil {
			return err
		}
		defer w.Close()
		sink = w
		logger.Debug("event log opened", "path", w.Path())
	}

	detector := engine.NewDetector(s.detector)
	eng := engine.NewEngine(newSampler(s.sampler, s.topN), detector)

	var metrics *engine.MetricsStore
	if s.metrics != "" {
		metrics = engine.NewMetricsStore(detector.States)
		addr, shutdown, err := serveMetrics(s.metrics, metrics.Handler())
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving metrics", "addr", addr.String())
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("monitor starting",
		"interval", s.interval,
		"sampler", s.sampler,
		"min_spike_duration_secs", s.detector.MinSpikeDurationSecs,
		"output", s.format.String())

	if tui {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return runDashboard(ctx, eng, s, sink, metrics, opts.level())
		}
		logger.Warn("stdout is not a terminal, streaming lines instead of the dashboard")
	}

	notifier := engine.NewNotifier(s.alerts, logger)
	defer notifier.Close()

	rep := output.NewReporter(stdout, s.format)
	reporters := []engine.Reporter{rep}
	if metrics != nil {
		reporters = append(reporters, metrics)
	}
	stats, err := engine.NewRunner(eng, engine.RunnerConfig{
		Interval: s.interval,
		Limit:    limit,
		Reporter: engine.TeeReporter(reporters...),
		Sink:     sink,
		Notifier: notifier,
		Logger:   logger,
	}).Run(ctx)
	if err != nil {
		return err
	}
	if limit.Bounded() {
		rep.Summary(stats)
	}
	return nil
}

// runDashboard hands the terminal to the bubbletea program while the runner
// samples on its own goroutine. Log lines are shown inside the dashboard.
func runDashboard(ctx context.Context, eng *engine.Engine, s settings, sink engine.EventSink, metrics *engine.MetricsStore, level slog.Level) error {
	p := tea.NewProgram(ui.NewModel(s.interval), tea.WithAltScreen(), tea.WithContext(ctx))
	logger := slog.New(slog.NewTextHandler(ui.NewLogWriter(p), &slog.HandlerOptions{Level: level}))

	notifier := engine.NewNotifier(s.alerts, logger)
	defer notifier.Close()

	reporters := []engine.Reporter{ui.NewReporter(p, eng.Detector().States)}
	if metrics != nil {
		reporters = append(reporters, metrics)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := engine.NewRunner(eng, engine.RunnerConfig{
			Interval: s.interval,
			Reporter: engine.TeeReporter(reporters...),
			Sink:     sink,
			Notifier: notifier,
			Logger:   logger,
		}).Run(runCtx)
		done <- err
	}()

	_, err := p.Run()
	cancel()
	runErr := <-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return runErr
}

// serveMetrics binds addr and serves h at /metrics until shutdown is called.
func serveMetrics(addr string, h http.Handler) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
