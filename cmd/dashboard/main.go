package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/verdantlabs/plantdash/internal/api"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/dashboard"
	"github.com/verdantlabs/plantdash/internal/db"
	"github.com/verdantlabs/plantdash/internal/gateway"
	"github.com/verdantlabs/plantdash/internal/poller"
	"github.com/verdantlabs/plantdash/internal/session"
	"github.com/verdantlabs/plantdash/internal/tokenstore"
	"github.com/verdantlabs/plantdash/internal/views"
	"golang.org/x/time/rate"
)

func main() {
	// Logging setup
	slog.SetDefault(jsonLogger)
	// Load configuration
	ch := config.NewConfigHandler()
	dashConfig, err := ch.Config()
	if err != nil {
		slog.Error("loading the configuration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "config", dashConfig)
	setLogLevel(dashConfig.DebugMode)
	// Only the debug mode can be changed without a restart
	ch.HandleChanges(func(newConfig config.Config, err error) {
		if err != nil {
			slog.Error("the changed config is not valid, keeping the old one", "error", err)
			return
		}
		setLogLevel(newConfig.DebugMode)
	})
	ch.Watch()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	// Setup
	e := echo.New()
	e.Pre(middleware.RequestID(), middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	// The banner and the port do not respect the logger formatting we set below so we remove them
	// the port will be logged further down when the server starts.
	e.HideBanner = true
	e.HidePort = true
	// Setup template renderer
	tr, err := views.NewTemplateRenderer()
	if err != nil {
		slog.Error("Template renderer initialization failed", "error", err)
		os.Exit(1)
	}
	tr.Register(e)
	// Initialize the db adapter
	dbOptions := []db.RedisAdapterOption{db.WithRedisConfig(dashConfig.TokenStorage.Redis)}
	if dashConfig.TokenStorage.Encryption.Enabled && dashConfig.TokenStorage.Encryption.SecretKey != "" {
		slog.Info("token encryption is enabled")
		dbOptions = append(dbOptions, db.WithEncryption(string(dashConfig.TokenStorage.Encryption.SecretKey)))
	}
	dbAdapter, err := db.NewRedisAdapter(dbOptions...)
	if err != nil {
		slog.Error("DB adapter initialization failed", "error", err)
		os.Exit(1)
	}
	// Health check
	e.GET("/health", func(c echo.Context) error {
		err := dbAdapter.Ping(c.Request().Context())
		if err != nil {
			slog.Error("health check failed", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	// Version endpoint
	buildInfo, ok := debug.ReadBuildInfo()
	version := ""
	if ok && buildInfo != nil {
		version = buildInfo.Main.Version
	}
	e.GET("/version", func(c echo.Context) error {
		return c.String(http.StatusOK, version)
	})
	// Initialize the token store
	tokenStore, err := tokenstore.NewTokenStore(
		tokenstore.WithConfig(dashConfig.TokenStorage),
		tokenstore.WithTokenRepository(dbAdapter),
	)
	if err != nil {
		slog.Error("token store initialization failed", "error", err)
		os.Exit(1)
	}
	// The gateway and the session manager share the cookie jar that holds the backend session
	jar, err := cookiejar.New(nil)
	if err != nil {
		slog.Error("cookie jar initialization failed", "error", err)
		os.Exit(1)
	}
	httpClient := &http.Client{Jar: jar, Timeout: dashConfig.API.RequestTimeout()}
	gwOptions := []gateway.ClientOption{
		gateway.WithConfig(dashConfig.API),
		gateway.WithHTTPClient(httpClient),
		gateway.WithTokenStore(tokenStore),
	}
	if dashConfig.Monitoring.Prometheus.Enabled {
		gwOptions = append(gwOptions, gateway.WithMetrics(prometheus.DefaultRegisterer))
	}
	gw, err := gateway.NewClient(gwOptions...)
	if err != nil {
		slog.Error("gateway initialization failed", "error", err)
		os.Exit(1)
	}
	sessionManager, err := session.NewManager(
		session.WithConfig(dashConfig.API),
		session.WithHTTPClient(httpClient),
		session.WithTokenStore(tokenStore),
		session.WithGateway(gw),
	)
	if err != nil {
		slog.Error("session manager initialization failed", "error", err)
		os.Exit(1)
	}
	apiClient := api.NewClient(gw)
	// Overview poller
	overviewPoller, err := poller.NewPoller(
		poller.WithConfig(dashConfig.Poller),
		poller.WithAPIClient(apiClient),
		poller.WithSessionCheck(sessionManager.Active),
	)
	if err != nil {
		slog.Error("poller initialization failed", "error", err)
		os.Exit(1)
	}
	if overviewPoller.Enabled() {
		scheduler, err := overviewPoller.GetScheduler(ctx)
		if err != nil {
			slog.Error("poller scheduler initialization failed", "error", err)
			os.Exit(1)
		}
		scheduler.StartAsync()
		defer scheduler.Stop()
	}
	// Dashboard handlers
	dashboardServer, err := dashboard.NewServer(
		dashboard.WithSessionManager(sessionManager),
		dashboard.WithAPIClient(apiClient),
		dashboard.WithOverviewSource(overviewPoller),
	)
	if err != nil {
		slog.Error("dashboard handlers initialization failed", "error", err)
		os.Exit(1)
	}
	dashboardServer.RegisterHandlers(e, commonMiddlewares...)
	// Rate limiting
	if dashConfig.Server.RateLimits.Enabled {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(dashConfig.Server.RateLimits.Rate),
					Burst:     dashConfig.Server.RateLimits.Burst,
					ExpiresIn: 3 * time.Minute,
				}),
		),
		)
	}
	// CORS
	if len(dashConfig.Server.AllowOrigin) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: dashConfig.Server.AllowOrigin}))
	}
	// Sentry
	if dashConfig.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(dashConfig.Monitoring.Sentry.Dsn),
			TracesSampleRate: dashConfig.Monitoring.Sentry.SampleRate,
			Environment:      dashConfig.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		}
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	// Prometheus
	if dashConfig.Monitoring.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddleware("plantdash"))
		go func() {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.HidePort = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			err := metrics.Start(fmt.Sprintf(":%d", dashConfig.Monitoring.Prometheus.Port))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("prometheus server failed to start", "error", err)
				os.Exit(1)
			}
		}()
	}
	// Start server
	address := fmt.Sprintf("%s:%d", dashConfig.Server.Host, dashConfig.Server.Port)
	slog.Info("starting the server on address " + address)
	go func() {
		err := e.Start(address)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("starting the server failed", "error", err)
			os.Exit(1)
		}
	}()
	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("received signal to shut down the server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutting down the server gracefully failed", "error", err)
		os.Exit(1)
	}
}
