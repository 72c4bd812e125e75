package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/config"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/database"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/handler"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/middleware"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/queue"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/repository"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/router"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/service"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/utils"
)

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := database.Open(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Error("connect to mongodb", "err", err)
		os.Exit(1)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	codec, err := utils.NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Error("token codec", "err", err)
		os.Exit(1)
	}

	var events session.EventSink
	if url := queue.BrokerURL(); url != "" {
		events = service.NewPublisher(url, log)
		go func() {
			if err := queue.StartAuthEventConsumer(ctx, url, "logs", log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "err", err)
			}
		}()
	} else {
		log.Info("RABBITMQ_URL not set, security events are not published")
	}

	sessions := session.NewManager(codec, repository.NewUserRepo(db), repository.NewTokenRepo(db), session.Options{
		RotateOnRefresh: cfg.RotateOnRefresh,
		Secure:          cfg.Production(),
		Logger:          log,
		Events:          events,
	})

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable, credential endpoints are not rate limited")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	router.Configure(e, log)
	router.RegisterRoutes(e)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, sessions, log),
		middleware.Session(sessions, middleware.SessionConfig{
			LoginPath: cfg.LoginPath,
			APIPrefix: cfg.APIPrefix,
			Logger:    log,
		}),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	log.Info("server stopped")
}
