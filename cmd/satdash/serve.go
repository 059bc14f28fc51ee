package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/satdash/internal/api"
	"github.com/star/satdash/internal/archive"
	"github.com/star/satdash/internal/auth"
	"github.com/star/satdash/internal/catalog"
	"github.com/star/satdash/internal/demo"
	"github.com/star/satdash/internal/events"
	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/registry"
	"github.com/star/satdash/internal/stream"
	"github.com/star/satdash/internal/telemetry"
	"github.com/star/satdash/internal/tracing"
	"github.com/star/satdash/internal/tracker"
	"github.com/star/satdash/internal/upstream"
	"github.com/star/satdash/internal/zones"
	"github.com/star/satdash/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP dashboard server (default command).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), newLogger(os.Stdout))
	},
}

type appConfig struct {
	Addr         string
	Auth         auth.Config
	Tracker      tracker.Config
	CacheTTL     time.Duration
	Stream       stream.Config
	StreamBuffer int
	Upstream     upstream.Config
	Redis        events.Config
	Archive      archive.Config
	Registry     registry.Config
	Demo         demoConfig
}

func loadAppConfig(logger *slog.Logger) (appConfig, error) {
	var cfg appConfig
	var err error

	cfg.Addr = loadAddr()
	if cfg.Auth, err = loadAuthConfig(logger); err != nil {
		return cfg, err
	}
	cfg.Tracker, cfg.CacheTTL = loadTrackerConfig(logger)
	cfg.Stream, cfg.StreamBuffer = loadStreamConfig(logger)
	cfg.Upstream = loadUpstreamConfig(logger)
	cfg.Redis = loadRedisConfig(logger)
	cfg.Archive = loadArchiveConfig(logger)
	cfg.Registry = loadRegistryConfig(logger, cfg.Addr)
	cfg.Demo = loadDemoConfig(logger)
	return cfg, nil
}

// app is the wired set of components behind one server.
type app struct {
	config    appConfig
	logger    *slog.Logger
	catalog   *catalog.Catalog
	zones     *zones.Store
	hub       *stream.Hub
	tracker   *tracker.Tracker
	player    *demo.Player
	upstream  *upstream.Client
	publisher *events.Publisher // nil unless Redis is configured
	archive   *archive.Recorder // nil unless an archive path is configured
	registry  *registry.Registry
	server    *api.Server
}

// demoStepPayload is the demo_step stream message.
type demoStepPayload struct {
	Index       int              `json:"index"`
	AtMs        int64            `json:"at_ms"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Toast       *demo.Toast      `json:"toast,omitempty"`
	Sound       string           `json:"sound,omitempty"`
	Zones       []zones.RiskZone `json:"zones,omitempty"`
}

type demoErrorPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// buildApp wires every component. Optional backends that fail to connect are
// logged and skipped so the dashboard still serves.
func buildApp(ctx context.Context, cfg appConfig, logger *slog.Logger) (*app, error) {
	a := &app{
		config:  cfg,
		logger:  logger,
		catalog: catalog.New(catalog.DefaultSatellites()),
		zones:   zones.NewStore(),
		hub:     stream.NewHub(cfg.StreamBuffer, logger),
	}

	a.tracker = tracker.New(cfg.Tracker, a.catalog, orbit.NewPositionCache(cfg.CacheTTL), logger, tracker.WithSinks(a.hub))
	a.hub.SetTrailSource(a.tracker.Trails)

	if cfg.Redis.Addr != "" {
		pub, err := events.NewPublisher(ctx, cfg.Redis, instanceName(), logger)
		if err != nil {
			logger.Warn("redis unavailable, snapshot publishing disabled", "error", err)
		} else {
			a.publisher = pub
			a.tracker.AddSink(pub)
		}
	}

	if cfg.Archive.Path != "" {
		rec, err := archive.Open(cfg.Archive, logger)
		if err != nil {
			logger.Warn("position archive unavailable", "error", err)
		} else {
			a.archive = rec
			a.tracker.AddSink(rec)
		}
	}

	if cfg.Registry.Addr != "" {
		reg, err := registry.New(cfg.Registry, logger)
		if err == nil {
			err = reg.Register()
		}
		if err != nil {
			logger.Warn("consul registration disabled", "error", err)
		} else {
			a.registry = reg
		}
	}

	a.zones.OnChange(func(set zones.Set) {
		a.hub.Broadcast(stream.Message{Type: stream.TypeZones, Data: set})
	})

	a.player = demo.NewPlayer(demo.FloodScenario(), logger,
		demo.WithTick(cfg.Demo.Tick),
		demo.OnStep(a.onDemoStep),
		demo.OnError(a.onDemoError),
		demo.OnStateChange(a.onDemoState),
	)

	a.upstream = upstream.New(cfg.Upstream, logger)

	streamHandler := stream.NewHandler(a.hub, cfg.Stream, a.initialMessages, logger)

	a.server = api.NewServer(api.Config{Addr: cfg.Addr, Auth: cfg.Auth}, api.Deps{
		Catalog:  a.catalog,
		Tracker:  a.tracker,
		Zones:    a.zones,
		Player:   a.player,
		Upstream: a.upstream,
		Archive:  a.archive,
		Stream:   streamHandler,
		Web:      web.Content,
		Observer: telemetry.DefaultObserver,
	}, logger)

	return a, nil
}

func (a *app) onDemoStep(ctx context.Context, index int, step demo.Step) {
	if step.Effect.Zones != nil {
		if _, err := a.zones.Replace(step.Effect.Zones, "demo"); err != nil {
			a.logger.Warn("demo step zones rejected", "step", step.Title, "error", err)
		}
	}

	payload := demoStepPayload{
		Index:       index,
		AtMs:        step.At.Milliseconds(),
		Title:       step.Title,
		Description: step.Description,
		Toast:       step.Effect.Toast,
		Sound:       step.Effect.Sound,
		Zones:       step.Effect.Zones,
	}
	a.hub.Broadcast(stream.Message{Type: stream.TypeDemoStep, Data: payload})
	if a.publisher != nil {
		a.publisher.PublishEvent(ctx, stream.TypeDemoStep, payload)
	}
}

func (a *app) onDemoError(title string, err error) {
	a.hub.Broadcast(stream.Message{Type: stream.TypeDemoError, Data: demoErrorPayload{
		Title:       title,
		Description: err.Error(),
	}})
}

func (a *app) onDemoState(st demo.Status) {
	a.hub.Broadcast(stream.Message{Type: stream.TypeDemoState, Data: st})
	if a.publisher != nil {
		a.publisher.PublishEvent(context.Background(), stream.TypeDemoState, st)
	}
}

// initialMessages is what a new stream client sees before live updates.
func (a *app) initialMessages() []stream.Message {
	var msgs []stream.Message
	if snap := a.tracker.Latest(); snap != nil {
		msgs = append(msgs, stream.SnapshotMessage(snap, a.tracker.Trails()))
	}
	msgs = append(msgs,
		stream.Message{Type: stream.TypeZones, Data: a.zones.Current()},
		stream.Message{Type: stream.TypeDemoState, Data: a.player.Status()},
	)
	return msgs
}

// start launches the background loops. The returned WaitGroup completes once
// every loop has observed ctx cancellation.
func (a *app) start(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	launch := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	launch(a.tracker.Run)
	launch(a.player.Run)
	if a.upstream.Enabled() {
		launch(a.upstream.Run)
	}
	if a.archive != nil {
		launch(a.archive.Run)
	}
	if a.registry != nil {
		launch(a.registry.Run)
	}

	if a.config.Demo.AutoStart {
		if err := a.player.Start(ctx); err != nil {
			a.logger.Warn("demo autostart failed", "error", err)
		}
	}
	return &wg
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("redis close error", "error", err)
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("archive close error", "error", err)
		}
	}
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "satdash"
	}
	return host
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	cfg, err := loadAppConfig(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.ConfigFromEnv(), logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		return err
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := a.server.HTTPServer()

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()
	loops := a.start(loopCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"upstream_enabled", a.upstream.Enabled(),
			"redis_enabled", a.publisher != nil,
			"archive_enabled", a.archive != nil,
			"consul_enabled", a.registry != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		cancelLoops()
		loops.Wait()
		return err
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	cancelLoops()
	loops.Wait()

	logger.Info("server stopped")
	return nil
}
