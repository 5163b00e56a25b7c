package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"

	"github.com/signalsfoundry/orbit-visualizer/internal/config"
	"github.com/signalsfoundry/orbit-visualizer/internal/logging"
	"github.com/signalsfoundry/orbit-visualizer/internal/observability"
	"github.com/signalsfoundry/orbit-visualizer/internal/tui"
	"github.com/signalsfoundry/orbit-visualizer/pipeline"
	"github.com/signalsfoundry/orbit-visualizer/propagate"
	"github.com/signalsfoundry/orbit-visualizer/simclock"
	"github.com/signalsfoundry/orbit-visualizer/tle"
)

func main() {
	_ = config.Load()

	tlePath := flag.String("tle", "configs/catalog.tle", "Path to a TLE catalog file")
	backendName := flag.String("backend", config.GetEnv("ORBITVIZ_BACKEND", ""), "Propagation backend (parallel, serial; empty picks a default)")
	startRaw := flag.String("start", "", "Simulation start time, RFC3339 (defaults to now)")
	stopRaw := flag.String("stop", "", "Simulation stop time, RFC3339 (defaults to start+24h)")
	workers := flag.Int("workers", config.GetEnvInt("ORBITVIZ_WORKERS", 0), "Parallel backend worker count (0 uses GOMAXPROCS)")
	multiplier := flag.Float64("multiplier", config.GetEnvFloat("ORBITVIZ_MULTIPLIER", 60), "Simulated seconds per wall second")
	tick := flag.Duration("tick", config.GetEnvDuration("ORBITVIZ_TICK", 0), "Propagation loop cadence (0 uses the default)")
	metricsAddr := flag.String("metrics-addr", config.GetEnv("ORBITVIZ_METRICS_ADDR", ":9090"), "HTTP address for Prometheus /metrics (empty disables)")
	headless := flag.Bool("headless", false, "Run without the terminal UI")
	duration := flag.Duration("duration", 0, "Stop after this much wall time in headless mode (0 runs until interrupted)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewPipelineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	elements, err := loadCatalog(*tlePath)
	if err != nil {
		log.Error(ctx, "failed to load TLE catalog", logging.String("path", *tlePath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "loaded TLE catalog", logging.String("path", *tlePath), logging.Int("elements", len(elements)))

	start, stop, err := parseWindow(*startRaw, *stopRaw)
	if err != nil {
		log.Error(ctx, "invalid simulation window", logging.String("error", err.Error()))
		os.Exit(1)
	}
	clock := simclock.New(start, stop, *multiplier)

	backend, err := propagate.Open(*backendName, propagate.WithWorkers(*workers))
	if err != nil {
		log.Error(ctx, "failed to open propagation backend", logging.String("backend", *backendName), logging.String("error", err.Error()))
		os.Exit(1)
	}

	screen := tui.NewScreen()

	pipe, err := pipeline.New(ctx, pipeline.Config{
		Backend:      backend,
		Elements:     elements,
		Clock:        clock,
		Renderer:     screen,
		TickInterval: *tick,
		Log:          log,
		Metrics:      collector,
	})
	if err != nil {
		log.Error(ctx, "failed to build pipeline", logging.String("error", err.Error()))
		os.Exit(1)
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopSignals()

	pipe.Start(runCtx)
	log.Info(ctx, "pipeline started",
		logging.String("backend", backend.Name()),
		logging.Int("satellites", pipe.Len()),
		logging.String("start", start.Format(time.RFC3339)),
		logging.String("stop", stop.Format(time.RFC3339)),
	)

	if *headless {
		runHeadless(runCtx, screen, clock, *duration, log)
	} else {
		if err := tui.Run(runCtx, screen, clock, backend.Name()); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Error(ctx, "terminal UI exited", logging.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pipe.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "pipeline shutdown incomplete", logging.String("error", err.Error()))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func loadCatalog(path string) ([]tle.RawElement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tle.ParseFeed(f)
}

// parseWindow resolves the simulation window from the flags, defaulting to a
// day of sim time starting now.
func parseWindow(startRaw, stopRaw string) (start, stop time.Time, err error) {
	start = time.Now().UTC()
	if startRaw != "" {
		start, err = time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	stop = start.Add(24 * time.Hour)
	if stopRaw != "" {
		stop, err = time.Parse(time.RFC3339, stopRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !stop.After(start) {
		return time.Time{}, time.Time{}, errors.New("stop must be after start")
	}
	return start, stop, nil
}

// runHeadless drives frames from a wall-clock ticker instead of the terminal
// renderer. Useful for soak runs and for scraping metrics without a TTY.
func runHeadless(ctx context.Context, screen *tui.Screen, clock *simclock.Clock, duration time.Duration, log logging.Logger) {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	summary := time.NewTicker(10 * time.Second)
	defer summary.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			clock.Advance(now.Sub(last))
			last = now
			screen.Frame()
		case <-summary.C:
			log.Info(ctx, "headless frame summary",
				logging.String("sim_time", clock.Now().Format(time.RFC3339)),
			)
		}
	}
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}

	r := chi.NewRouter()
	r.Handle("/metrics", collector.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
