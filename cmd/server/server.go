package main

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ZanzyTHEbar/profile-plausibility/docs"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/cache"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/config"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/dispatch"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/frontend"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/middleware"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/monitoring"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/ratelimit"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/security"
)

// server owns every long-lived component behind the router
type server struct {
	cfg         config.Config
	logger      *monitoring.Logger
	metrics     *monitoring.Metrics
	reports     *cache.Cache
	dispatcher  *dispatch.Dispatcher
	limiter     *ratelimit.RateLimiter
	redis       *ratelimit.RedisClient
	security    *security.SecurityMiddleware
	compression *middleware.CompressionMiddleware
}

// newServer wires the components. redisClient may be nil or disabled.
func newServer(cfg config.Config, redisClient *ratelimit.RedisClient, logger *monitoring.Logger, opts ...dispatch.Option) *server {
	metrics := monitoring.NewMetrics()
	reports := cache.NewCache(cfg.CacheTTL, cache.WithMetrics(metrics))

	dispatchOpts := append([]dispatch.Option{dispatch.WithLogger(logger)}, opts...)
	dispatcher := dispatch.New(
		analysis.NewAnalyzer(),
		reports,
		metrics,
		dispatch.Config{MinDelay: cfg.MinDelay, Jitter: cfg.DelayJitter},
		dispatchOpts...,
	)

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.IPLimitPerMin,
		BurstMultiplier: 1,
		CleanupInterval: time.Hour,
	}, metrics)

	return &server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		reports:    reports,
		dispatcher: dispatcher,
		limiter:    limiter,
		redis:      redisClient,
		security: security.NewSecurityMiddleware(security.SecurityConfig{
			MaxInputLength: cfg.MaxInputLength,
			RequestTimeout: cfg.RequestTimeout,
		}),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
	}
}

// Close releases background goroutines and connections
func (s *server) Close() {
	errors.SafeClose(s.limiter, "rate limiter")
	errors.SafeClose(s.reports, "report cache")
	errors.SafeClose(s.redis, "redis client")
}

// validate runs the gate and counts rejections
func (s *server) validate(input string) (string, error) {
	profileURL, err := s.security.ValidateProfileURL(input)
	if err != nil {
		s.metrics.IncrementValidationFailure()
	}
	return profileURL, err
}

func (s *server) router() *gin.Engine {
	r := gin.New()

	// Recovery sits first so panics anywhere below still get a JSON body
	r.Use(errors.RecoveryHandler())
	r.Use(errors.ErrorHandler())

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger))

	if s.cfg.EnableCompression {
		r.Use(s.compression.Handler())
	}

	r.Use(cors.New(s.corsConfig()))

	r.Use(s.security.SecurityHeaders)
	r.Use(s.security.RequestTimeout)
	r.Use(s.security.ValidateContentType)

	rateLimited := s.limiter.IPRateLimitMiddleware()

	pages, err := s.pageHandler()
	if err != nil {
		slog.Error("Failed to load page templates, form disabled", "error", err)
	} else {
		group := r.Group("/", security.CSPMiddleware())
		group.GET("/", pages.ShowForm)
		group.POST("/", rateLimited, pages.Submit)
	}

	api := r.Group("/api", rateLimited)
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/validate", s.handleValidate)

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/cache/stats", s.handleCacheStats)

	if s.cfg.EnableSwagger {
		docs.SwaggerInfo.BasePath = "/"
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

func (s *server) pageHandler() (*frontend.Handler, error) {
	fsys, err := frontend.GetTemplatesFS()
	if err != nil {
		return nil, err
	}
	tmpl, err := frontend.LoadIndexTemplate(fsys)
	if err != nil {
		return nil, err
	}
	return frontend.NewHandler(tmpl, s.dispatcher, s.validate), nil
}

func (s *server) corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", frontend.SessionHeader, "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour

	if len(s.cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		return corsConfig
	}
	for _, origin := range s.cfg.AllowedOrigins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			return corsConfig
		}
	}
	corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	return corsConfig
}
