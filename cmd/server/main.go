package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/ahrav/aura-radar/internal/application/behavior"
	"github.com/ahrav/aura-radar/internal/application/events"
	firewallApp "github.com/ahrav/aura-radar/internal/application/firewall"
	"github.com/ahrav/aura-radar/internal/application/health"
	integrityApp "github.com/ahrav/aura-radar/internal/application/integrity"
	"github.com/ahrav/aura-radar/internal/application/reputation"
	"github.com/ahrav/aura-radar/internal/application/runner"
	"github.com/ahrav/aura-radar/internal/application/sdk/mux"
	"github.com/ahrav/aura-radar/internal/application/triage"
	"github.com/ahrav/aura-radar/internal/config"
	"github.com/ahrav/aura-radar/internal/domain/firewall"
	"github.com/ahrav/aura-radar/internal/infra/adapters/abuseipdb"
	"github.com/ahrav/aura-radar/internal/infra/adapters/droplist"
	"github.com/ahrav/aura-radar/internal/infra/adapters/geoip"
	httpServer "github.com/ahrav/aura-radar/internal/infra/adapters/http"
	handler "github.com/ahrav/aura-radar/internal/infra/adapters/http/handler"
	"github.com/ahrav/aura-radar/internal/infra/adapters/natsbus"
	"github.com/ahrav/aura-radar/internal/infra/capture"
	"github.com/ahrav/aura-radar/internal/infra/enforcer"
	"github.com/ahrav/aura-radar/internal/infra/metrics"
	blockedFile "github.com/ahrav/aura-radar/internal/infra/storage/firewall/file"
	baselineFile "github.com/ahrav/aura-radar/internal/infra/storage/integrity/file"
	"github.com/ahrav/aura-radar/pkg/common/logger"
	"github.com/ahrav/aura-radar/pkg/common/otel"
)

var build = "develop"

func main() {
	configPath := flag.String("config", os.Getenv("AURA_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, logger.Config{
		ServiceName: cfg.ServiceName,
		MinLevel:    level,
		TraceIDFn:   otel.GetTraceID,
		Bridge:      cfg.Telemetry.Enabled,
	})

	ctx := context.Background()
	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "startup", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	log.Info(ctx, "startup", "build", build, "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Telemetry

	providers, shutdownTelemetry, err := otel.InitTelemetry(log, otel.Config{
		Enabled:          cfg.Telemetry.Enabled,
		ServiceName:      cfg.ServiceName,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		Probability:      cfg.Telemetry.Probability,
		InsecureExporter: cfg.Telemetry.Insecure,
		ExportInterval:   cfg.Telemetry.ExportInterval,
		ResourceAttributes: map[string]string{
			"service.version": build,
		},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(flushCtx)
	}()

	tracer := providers.Tracer.Tracer(cfg.ServiceName)

	reg, err := metrics.NewRegistry(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	checker := health.NewChecker(log, reg.Health)

	// -------------------------------------------------------------------------
	// Event distribution

	var sinks []events.Sink
	if cfg.NATS.URL != "" {
		nc, err := natsbus.Connect(ctx, cfg.NATS.URL, log)
		if err != nil {
			log.Warn(ctx, "event forwarding disabled", "error", err)
		} else {
			defer nc.Drain()
			sinks = append(sinks, natsbus.NewPublisher(nc, cfg.NATS.Prefix, log, tracer))
			checker.Register("nats", func(context.Context) error {
				if !nc.IsConnected() {
					return errors.New("not connected")
				}
				return nil
			})
		}
	}
	hub := events.NewHub(cfg.Events.Capacity, log, reg.Events, sinks...)

	// -------------------------------------------------------------------------
	// Scoring

	scorer, err := behavior.NewScorer(behavior.Config{
		LearningWindow: cfg.Behavior.LearningWindow,
		Capacity:       cfg.Behavior.Capacity,
	}, log, tracer, reg.Behavior)
	if err != nil {
		return fmt.Errorf("create behavior scorer: %w", err)
	}

	var lookup reputation.Lookup
	if cfg.Reputation.AbuseIPDBKey != "" {
		var opts []abuseipdb.Option
		if cfg.Reputation.AbuseIPDBURL != "" {
			opts = append(opts, abuseipdb.WithBaseURL(cfg.Reputation.AbuseIPDBURL))
		}
		lookup = abuseipdb.NewClient(cfg.Reputation.AbuseIPDBKey, opts...)
	}
	engine := reputation.NewEngine(reputation.Config{
		Sources:   cfg.Reputation.DropLists,
		Cooldown:  cfg.Reputation.Cooldown,
		CacheTTL:  cfg.Reputation.CacheTTL,
		CacheSize: cfg.Reputation.CacheSize,
	}, lookup, droplist.NewFetcher(nil), log, tracer, reg.Reputation)

	refreshCtx, cancelRefresh := context.WithTimeout(ctx, cfg.Reputation.RefreshTimeout)
	if err := engine.RefreshDropList(refreshCtx); err != nil {
		log.Warn(ctx, "drop-list refresh incomplete", "error", err)
	}
	cancelRefresh()

	locator, err := geoip.Open(cfg.GeoIP.DatabasePath)
	if err != nil {
		log.Warn(ctx, "geolocation disabled, locations will be Unknown", "error", err)
	}
	defer locator.Close()

	// -------------------------------------------------------------------------
	// Firewall

	fw := firewallApp.NewController(ctx,
		newEnforcer(ctx, cfg.Firewall, log),
		blockedFile.NewBlockedStore(cfg.Firewall.StatePath, tracer),
		log, tracer, reg.Firewall,
	)

	// -------------------------------------------------------------------------
	// Integrity

	detector := integrityApp.NewDetector(ctx, integrityApp.Config{
		Roots:        cfg.Integrity.Roots,
		MaxFiles:     cfg.Integrity.MaxFiles,
		Interval:     cfg.Integrity.Interval,
		InitialDelay: cfg.Integrity.InitialDelay,
		FoldCase:     cfg.Integrity.FoldCase,
	}, baselineFile.NewBaselineStore(cfg.Integrity.BaselinePath, tracer), hub, log, tracer, reg.Integrity)

	// -------------------------------------------------------------------------
	// Triage and capture

	orchestrator := triage.NewOrchestrator(engine, scorer, fw, locator, hub, log, tracer, reg.Triage)

	src, err := capture.New(captureSource(cfg.Capture.Source))
	if err != nil {
		return fmt.Errorf("capture source: %w", err)
	}
	poller := capture.NewPoller(src, orchestrator, cfg.Capture.PollInterval, log, tracer)

	// -------------------------------------------------------------------------
	// Background tasks

	tasks := []runner.Task{
		{Name: "capture", Run: poller.Run},
		{Name: "integrity", Run: detector.Run},
	}
	if cfg.Reputation.RefreshInterval > 0 {
		tasks = append(tasks, runner.Task{Name: "droplist_refresh", Run: func(ctx context.Context) error {
			return engine.Run(ctx, cfg.Reputation.RefreshInterval)
		}})
	}
	group := runner.NewGroup(log, tasks...)
	if err := group.Start(ctx); err != nil {
		return fmt.Errorf("start tasks: %w", err)
	}

	// -------------------------------------------------------------------------
	// Presentation API

	adapter := httpServer.NewServerAdapter(
		handler.NewThreatHandler(scorer, engine, fw, hub, poller, detector),
		handler.NewIntegrityHandler(detector, hub),
	)
	router, err := httpServer.NewHTTPServer(adapter, cfg.HTTP.Debug)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	muxOpts := []func(*mux.Options){mux.WithQuietPaths(httpServer.QuietPaths...)}
	if len(cfg.HTTP.CORSOrigins) > 0 {
		muxOpts = append(muxOpts, mux.WithCORS(cfg.HTTP.CORSOrigins))
	}

	api := http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: mux.WrapWithMiddleware(mux.Config{
			Build:      build,
			Log:        log,
			Tracer:     tracer,
			APIMetrics: reg.API,
			Ready:      checker.Ready,
		}, router, muxOpts...),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(log, logger.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(ctx, "api router started", "addr", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	checker.MarkReady()

	// -------------------------------------------------------------------------
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info(ctx, "shutdown started", "signal", sig.String())
	}
	checker.MarkNotReady()

	report := group.Stop(cfg.ShutdownGrace)
	for _, res := range report.Completed {
		if res.Err != nil {
			log.Warn(ctx, "task failed", "task", res.Name, "error", res.Err)
		}
	}
	if !report.Clean() {
		log.Warn(ctx, "tasks did not stop in time", "tasks", report.TimedOut)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownGrace)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		_ = api.Close()
		return errors.Join(runErr, fmt.Errorf("could not stop server gracefully: %w", err))
	}

	log.Info(ctx, "shutdown complete")
	return runErr
}

// newEnforcer picks the packet filter backend. "auto" uses nftables when it
// is usable on this host.
func newEnforcer(ctx context.Context, cfg config.FirewallConfig, log *logger.Logger) firewall.Enforcer {
	if cfg.Backend == "none" {
		return enforcer.RecordOnly{}
	}

	nft := enforcer.NewNft(cfg.Table, cfg.Set)
	if !nft.Available() {
		if cfg.Backend == "nftables" {
			log.Warn(ctx, "nftables requested but nft is not available")
		}
		return enforcer.RecordOnly{}
	}

	if cfg.ManageSets {
		if err := nft.Ensure(ctx); err != nil {
			log.Warn(ctx, "failed to create nftables sets", "error", err)
		}
	}
	return nft
}

func captureSource(name string) string {
	if name != "auto" {
		return name
	}
	if runtime.GOOS == "linux" {
		return capture.SourceConntrack
	}
	return capture.SourceSockets
}
