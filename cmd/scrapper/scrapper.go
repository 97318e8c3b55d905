package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/allerta-bot/internal/app"
	"github.com/abelzeko/allerta-bot/internal/config"
	"github.com/abelzeko/allerta-bot/internal/logging"
	"github.com/abelzeko/allerta-bot/internal/metrics"
	"github.com/abelzeko/allerta-bot/internal/monitoring"
	"github.com/abelzeko/allerta-bot/internal/schedule"
	"github.com/robfig/cron/v3"
)

// fixed schedules, in the configured time zone
var fixedJobs = []struct {
	spec string
	jobs []string
}{
	{"5 * * * *", []string{app.JobSensors}},
	{"*/10 * * * *", []string{app.JobRadar}},
	{"30 8 * * *", []string{app.JobDams}},
	{"0 15 * * *", []string{app.JobAvalanche}},
	{"30 3 * * *", []string{app.JobStations}},
	{"0 4 * * *", []string{app.JobHistory}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)
	slog.Info("starting allerta scraper")

	monitoring.Init(monitoring.Options{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment, Release: cfg.SentryRelease})
	defer monitoring.Flush()

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newMetricsServer(cfg.MetricsAddr, a)
	go func() {
		slog.Info("metrics: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	// the bulletin loop checks right away, then at the adaptive interval
	bulletinDone := make(chan struct{})
	go func() {
		defer close(bulletinDone)
		schedule.NewAdaptive(a.State, cfg.Location).Run(ctx, func(ctx context.Context) {
			runJobs(ctx, a, app.JobBulletin, app.JobMaps)
		})
	}()

	// Run the other jobs that feed the bot once on startup
	runJobs(ctx, a, app.JobSensors, app.JobRadar)

	c, err := newScheduler(ctx, a)
	if err != nil {
		slog.Error("failed to set up cron jobs", "error", err)
		os.Exit(1)
	}
	c.Start()
	slog.Info("scraper scheduled", "entries", len(c.Entries()))

	<-ctx.Done()
	slog.Info("shutting down")
	<-c.Stop().Done()
	<-bulletinDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown", "error", err)
	}
}

// runJobs runs jobs in order. Failures are already logged and reported by
// the runner, so the daemon just moves on.
func runJobs(ctx context.Context, a *app.App, names ...string) {
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		_ = a.RunJob(ctx, name)
	}
}

// newScheduler registers the fixed jobs. The bulletin check runs in its own
// loop since its interval depends on the outcome of the previous check.
func newScheduler(ctx context.Context, a *app.App) (*cron.Cron, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(a.Config.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, fj := range fixedJobs {
		jobs := fj.jobs
		if _, err := c.AddFunc(fj.spec, func() { runJobs(ctx, a, jobs...) }); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newMetricsServer(addr string, a *app.App) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
