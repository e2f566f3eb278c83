package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fleetglobe/internal/api"
	"fleetglobe/internal/buildinfo"
	"fleetglobe/internal/camera"
	"fleetglobe/internal/config"
	"fleetglobe/internal/feed"
	"fleetglobe/internal/geometry"
	"fleetglobe/internal/logging"
	"fleetglobe/internal/metrics"
	"fleetglobe/internal/model"
	"fleetglobe/internal/poller"
	"fleetglobe/internal/scene"
	"fleetglobe/internal/store"
	"fleetglobe/internal/stream"
	"fleetglobe/internal/webhooks"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	metrics.RegisterDefault()
	if iv := cfg.Poll.Interval; iv < 5*time.Second || iv > 15*time.Second {
		log.Warn("poll interval outside the recommended 5s-15s", "interval", iv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, sourceName, err := openSource(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open data source", "err", err)
		os.Exit(1)
	}
	defer func() { _ = src.Close() }()
	ready := map[string]api.Pinger{"source": src}

	var broker stream.EventBroker = stream.NewBroker()
	if cfg.RedisURL != "" {
		rb, err := stream.NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", "err", err)
		} else {
			defer func() { _ = rb.Close() }()
			broker = rb
			ready["broker"] = rb
		}
	}

	engine := stream.NewEngine(broker)
	recon := scene.NewReconciler(engine, scene.Options{ShowLabels: cfg.Scene.ShowLabels, ShowRegions: cfg.Scene.ShowRegions}, log)
	cam := camera.NewController(recon, engine, cfg.Scene.Home)
	cam.OnChange = engine.CameraPublisher()

	var hooks *webhooks.Publisher
	if cfg.Webhook.URL != "" {
		w := webhooks.NewWorker(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.MaxAttempts, log)
		w.Start(ctx)
		hooks = webhooks.NewPublisher(w)
	}
	selected := func(kind model.Kind, id int64) {
		engine.PublishSelection(kind, id)
		hooks.Selected(kind, id)
	}
	clicks := &scene.Dispatcher{
		OnAsset: func(id int64) {
			if _, err := cam.Select(id); err != nil {
				log.Warn("asset click ignored", "asset", id, "err", err)
			}
			selected(model.KindAsset, id)
		},
		OnPath:   func(id int64) { selected(model.KindPath, id) },
		OnRegion: func(id int64) { selected(model.KindRegion, id) },
	}

	norm := feed.NewNormalizer(geometry.NewDecoder(log), log)
	p := poller.New(poller.Config{
		Kinds:              cfg.Kinds(),
		Interval:           cfg.Poll.Interval,
		RetryAfterFailures: cfg.Poll.RetryAfterFailures,
		FetchTimeout:       cfg.Feed.Timeout,
	}, src, norm, recon, log)
	p.OnCommit(func(model.Snapshot) { cam.Sync() })
	go p.Run(ctx)

	if demo, ok := src.(*store.Memory); ok {
		go animate(ctx, demo, cfg.Poll.Interval)
	}

	srv := &api.Server{
		Poller: p,
		Scene:  recon,
		Camera: cam,
		Clicks: clicks,
		Viewer: &stream.Viewer{
			Broker: broker,
			Engine: engine,
			Camera: cam,
			Clicks: clicks,
			Hello: stream.Hello{
				Home:        cfg.Scene.Home,
				ShowLabels:  cfg.Scene.ShowLabels,
				ShowRegions: cfg.Scene.ShowRegions,
				Version:     buildinfo.Version,
			},
			Log: log,
		},
		Ready: ready,
		Settings: map[string]any{
			"source":        sourceName,
			"poll_interval": cfg.Poll.Interval.String(),
			"sources":       cfg.Poll.Sources,
			"show_labels":   cfg.Scene.ShowLabels,
			"show_regions":  cfg.Scene.ShowRegions,
			"has_redis_url": cfg.RedisURL != "",
			"has_webhook":   cfg.Webhook.URL != "",
		},
		Log: log,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           logging.AccessMiddleware(log)(srv.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("fleetglobe listening", "addr", server.Addr, "source", sourceName, "version", buildinfo.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "err", err)
	}
	cancel()
	p.Close()
	log.Info("shutdown complete")
}

// openSource picks Postgres, then the HTTP feed, then the demo fleet.
func openSource(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, string, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.Ping(pctx); err != nil {
			log.Warn("postgres not reachable yet", "err", err)
		}
		return pg, "postgres", nil
	case cfg.Feed.BaseURL != "":
		c := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Token, feed.WithRateLimit(cfg.Feed.RateLimit, cfg.Feed.Burst))
		return remote{c}, "feed", nil
	default:
		log.Info("no DATABASE_URL or FEED_BASE_URL, serving the demo fleet")
		return store.NewDemo(), "demo", nil
	}
}

// remote adapts the feed client to store.Store.
type remote struct{ *feed.Client }

func (r remote) Ping(ctx context.Context) error {
	_, err := r.ListRegions(ctx)
	return err
}

func (remote) Close() error { return nil }

func animate(ctx context.Context, m *store.Memory, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Step(150)
		}
	}
}
