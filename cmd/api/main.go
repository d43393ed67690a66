package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"madrasa/internal/app"
	"madrasa/internal/assignment"
	"madrasa/internal/attendance"
	"madrasa/internal/auth"
	"madrasa/internal/cloudinary"
	"madrasa/internal/config"
	"madrasa/internal/httpapi"
	"madrasa/internal/httpmiddleware"
	"madrasa/internal/logger"
	"madrasa/internal/metrics"
	"madrasa/internal/school"
	"madrasa/internal/worker"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := httpapi.RegisterValidators(); err != nil {
		return err
	}

	stores, err := app.OpenStores(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer stores.Close()

	back := app.OpenBackplane(ctx, cfg)
	defer back.Close()

	svc := school.NewService(stores.School)
	events := back.Events()
	engine := stores.Engine(cfg, attendance.WithSavedHook(httpapi.SavedHook(back.Reports, events)))

	// An in-process queue has no other consumer, so warm reports here.
	if events != nil && back.InProcess() {
		warmer := worker.NewWarmer(engine, svc, back.Reports)
		go func() {
			if err := warmer.Run(ctx, events); err != nil {
				logger.Error().Err(err).Msg("in-process worker stopped")
			}
		}()
	}

	var photos httpapi.PhotoUploader
	if cfg.CloudinaryEnabled() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info().Str("cloud", cfg.CloudinaryCloudName).Msg("cloudinary configured")
	} else {
		logger.Info().Msg("cloudinary not configured, photo upload disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	provider := auth.NewProvider(stores.School, stores.Tokens, back.Limiter, auth.Settings{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger("/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())
	r.Use(m.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := stores.Healthy(c.Request.Context())
		redisHealthy := back.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	httpapi.New(httpapi.Deps{
		Engine:      engine,
		School:      svc,
		Assignments: assignment.NewReplacer(stores.Assignments),
		Auth:        provider,
		Reports:     back.Reports,
		Photos:      photos,
		Metrics:     m,
		SigningKey:  cfg.JWTSigningKey,
		Issuer:      cfg.JWTIssuer,
	}).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced shutdown")
	}

	logger.Info().Msg("server exited")
	return nil
}
