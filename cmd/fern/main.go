package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/directory/fhir"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/middleware"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/match"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("fern exited with error")
		os.Exit(1)
	}
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = level

	return zapConfig.Build()
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	checker := health.NewChecker(cfg.Version)

	var redisClient *fernredis.Client
	var publisher events.Publisher = events.NoopPublisher{}
	shutdownTracing := func(context.Context) error { return nil }

	deps := startup.New(logger, cfg.StartupMaxAttempts)

	deps.Add(&startup.Func{
		Name: "tracing",
		OnStart: func(ctx context.Context) error {
			if !cfg.OTLPEnabled {
				return nil
			}
			otlpConfig := exporters.DefaultOTLPConfig()
			otlpConfig.Endpoint = cfg.OTLPEndpoint
			otlpConfig.Protocol = cfg.OTLPProtocol
			otlpConfig.Insecure = cfg.OTLPInsecure

			shutdown, err := tracing.Setup(ctx, cfg.AppName, otlpConfig)
			if err != nil {
				return err
			}
			shutdownTracing = shutdown
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return shutdownTracing(ctx)
		},
	})

	deps.Add(&startup.Func{
		Name: "redis",
		OnStart: func(context.Context) error {
			if !cfg.RedisEnabled {
				return nil
			}
			client, err := fernredis.NewClient(fernredis.Config{
				Addr:     cfg.RedisAddr(),
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			checker.AddCheck("redis", client)
			return nil
		},
		OnStop: func(context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	deps.Add(&startup.Func{
		Name: "kafka",
		OnStart: func(context.Context) error {
			if !cfg.KafkaEnabled {
				return nil
			}
			publisher = events.NewProducer(events.ProducerConfig{
				Brokers:      cfg.KafkaBrokerList(),
				Topic:        cfg.KafkaMatchTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: cfg.KafkaBatchTimeout,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	if err := deps.Start(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	// assigned only when redis is up so the interface never holds a typed nil
	var limiter fhir.RateLimiter
	if redisClient != nil {
		limiter = fernredis.NewRateLimiter(redisClient, cfg.AppName)
	}

	httpConfig := httpclient.DefaultConfig()
	httpConfig.Timeout = cfg.DirectoryTimeout

	directoryClient := fhir.NewClient(fhir.Config{
		BaseURL:         cfg.DirectoryBaseURL,
		BearerToken:     cfg.DirectoryToken,
		MaxPages:        cfg.DirectoryMaxPages,
		RateLimit:       cfg.DirectoryRateLimit,
		RateLimitWindow: cfg.DirectoryRateLimitWindow,
	}, httpclient.NewClient(httpConfig, logger), limiter, logger)

	engine := matching.NewEngine(logger, directoryClient, matching.Config{
		PhoneSearchCapacity: cfg.PhoneSearchCapacity,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		verify, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return fmt.Errorf("failed to create token verifier: %w", err)
		}
		api.Use(middleware.Authentication(logger, verify))
	}
	match.NewHandler(engine, publisher, logger).Register(api)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("fern is listening")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	checker.SetReady(true)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down server")
	}

	return deps.Stop(shutdownCtx)
}
