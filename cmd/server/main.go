package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/utility-audit-portal/internal/config"
	"github.com/iliyamo/utility-audit-portal/internal/database"
	"github.com/iliyamo/utility-audit-portal/internal/handler"
	"github.com/iliyamo/utility-audit-portal/internal/middleware"
	"github.com/iliyamo/utility-audit-portal/internal/objectstore"
	"github.com/iliyamo/utility-audit-portal/internal/queue"
	"github.com/iliyamo/utility-audit-portal/internal/relay"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
	"github.com/iliyamo/utility-audit-portal/internal/router"
	"github.com/iliyamo/utility-audit-portal/internal/service"
	"github.com/iliyamo/utility-audit-portal/internal/web"
)

const eventLogPath = "logs/portal.log"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	store, err := objectstore.New(cfg.Storage)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}

	var events service.Publisher = service.LogPublisher{Log: logger}
	if cfg.RabbitURL != "" {
		pub := service.NewAMQPPublisher(cfg.RabbitURL, logger)
		defer pub.Close()
		events = pub

		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogPath: eventLogPath, Log: logger}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", "err", err)
			}
		}()
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	roles := repository.NewRoleRepo(db)

	authSvc := service.NewAuthService(users, sessions, profiles, roles, events, logger, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})
	if cfg.OwnerEmail != "" {
		if err := authSvc.EnsureOwner(ctx, cfg.OwnerEmail, cfg.OwnerPassword); err != nil {
			log.Fatalf("bootstrap owner: %v", err)
		}
	}

	crm := relay.NewCRMRelay(cfg.CRM)
	reportSvc := service.NewReportService(repository.NewReportRepo(db), repository.NewMetricRepo(db),
		repository.NewRosterRepo(db), roles, store, cfg.Storage.ReportsBucket, events, logger)
	leadSvc := service.NewLeadService(repository.NewLeadRepo(db), crm, store, cfg.Storage.BillsBucket, events, logger)

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and page cache disabled")
	} else {
		defer rdb.Close()
	}
	guards := router.Guards{
		Sessions:  authSvc,
		Roles:     authSvc,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		PageCache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	authH := handler.NewAuthHandler(authSvc, cfg.Env == "prod")
	e := echo.New()
	e.HideBanner = true
	renderer, err := web.New()
	if err != nil {
		log.Fatalf("load templates: %v", err)
	}
	e.Renderer = renderer
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, guards)
	router.RegisterReports(e, handler.NewReportHandler(reportSvc), authH, guards)
	router.RegisterLeads(e, handler.NewLeadHandler(leadSvc), guards)
	router.RegisterFunctions(e, handler.NewFunctionHandler(relay.NewChatRelay(cfg.Chat), crm), guards)
	router.RegisterPages(e, handler.NewPageHandler(authH, reportSvc, leadSvc), guards)

	go func() {
		logger.Info("portal listening", "addr", cfg.HTTPAddress(), "env", cfg.Env)
		if err := e.Start(cfg.HTTPAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown error", "err", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "remote_ip", v.RemoteIP}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}
