package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"vlm-gateway/internal/backend"
	"vlm-gateway/internal/config"
	"vlm-gateway/internal/database"
	"vlm-gateway/internal/dataset"
	"vlm-gateway/internal/handlers"
	"vlm-gateway/internal/health"
	"vlm-gateway/internal/metrics"
	"vlm-gateway/internal/middleware"
	"vlm-gateway/internal/proxy"
	"vlm-gateway/internal/services"
	"vlm-gateway/internal/storage"
	"vlm-gateway/internal/supabase"
)

const shutdownTimeout = 15 * time.Second

// gateway owns every long-lived component; Close releases them in reverse order of construction.
type gateway struct {
	engine     *gin.Engine
	dispatcher *backend.Dispatcher
	sftLog     *dataset.Log
	dpoLog     *dataset.Log
	index      *database.FeedbackIndex
}

func newGateway(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (*gateway, error) {
	g := &gateway{}
	m := metrics.New(reg)

	g.dispatcher = backend.NewDispatcher()
	router := proxy.NewFromConfig(cfg, g.dispatcher, m)

	images, err := newImageStore(cfg)
	if err != nil {
		g.Close()
		return nil, err
	}

	if g.sftLog, err = dataset.Open(cfg.SFTLogPath()); err != nil {
		g.Close()
		return nil, err
	}
	if g.dpoLog, err = dataset.Open(cfg.DPOLogPath()); err != nil {
		g.Close()
		return nil, err
	}

	opts := []services.FeedbackOption{services.WithMetrics(m)}
	if cfg.DatabaseURL != "" {
		// The index is a mirror; the gateway still serves without it.
		g.index, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("feedback index unavailable, records are kept in the dataset logs only")
		} else {
			opts = append(opts, services.WithIndex(g.index))
		}
	}
	feedback := services.NewFeedbackService(images, g.sftLog, g.dpoLog, opts...)

	defaultRoute, _ := router.Lookup(proxy.RouteDefault)
	aggregator := health.NewAggregator(g.dispatcher, defaultRoute.Adapter, cfg.Gateway.HealthTimeout)

	g.engine = newEngine(
		handlers.NewHealthHandler(aggregator),
		handlers.NewProxyHandler(router, cfg.Gateway.MaxUploadBytes),
		handlers.NewFeedbackHandler(feedback, cfg.Gateway.MaxUploadBytes),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	)
	return g, nil
}

func newImageStore(cfg *config.Config) (storage.ImageStore, error) {
	if cfg.ImageStore == "supabase" {
		store, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, cfg.Gateway.ImagesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize supabase image store: %w", err)
		}
		log.WithField("bucket", cfg.SupabaseStorageBucket).Info("storing feedback images in supabase")
		return store, nil
	}
	store, err := storage.NewLocalStore(cfg.ImagesPath())
	if err != nil {
		return nil, err
	}
	log.WithField("dir", store.Dir()).Info("storing feedback images locally")
	return store, nil
}

func newEngine(hh *handlers.HealthHandler, ph *handlers.ProxyHandler, fh *handlers.FeedbackHandler, metricsHandler http.Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.AccessLog())

	engine.GET("/health", hh.Health)
	engine.GET("/metrics", gin.WrapH(metricsHandler))

	engine.POST("/inference", ph.Inference)
	engine.POST("/student", ph.Student)
	engine.POST("/teacher", ph.Teacher)
	engine.GET("/stats", ph.Stats)

	feedback := engine.Group("/feedback")
	{
		feedback.POST("/sft", fh.SFT)
		feedback.POST("/dpo", fh.DPO)
		feedback.GET("/stats", fh.Stats)
	}
	return engine
}

func (g *gateway) Close() {
	if g.index != nil {
		if err := g.index.Close(); err != nil {
			log.WithError(err).Warn("failed to close feedback index")
		}
	}
	for _, l := range []*dataset.Log{g.dpoLog, g.sftLog} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			log.WithError(err).WithField("log", l.Path()).Warn("failed to close dataset log")
		}
	}
	if g.dispatcher != nil {
		g.dispatcher.Close()
	}
}

func serve(ctx context.Context, f *ServerFlags, logLevelFlagSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return err
	}
	if !logLevelFlagSet {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		log.SetLevel(level)
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	g, err := newGateway(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer g.Close()

	addr := f.ListenAddr
	if addr == "" {
		addr = ":" + cfg.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":            addr,
			"teacher":         cfg.TeacherAPIURL,
			"student":         cfg.StudentAPIURL,
			"default_backend": cfg.DefaultBackend,
			"image_store":     cfg.ImageStore,
			"data_dir":        filepath.Clean(cfg.DataDir),
		}).Info("starting vlm gateway")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down, waiting for in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
