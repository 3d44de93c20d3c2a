package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wikidot-tools/reservebot/internal/config"
	"github.com/wikidot-tools/reservebot/internal/httpserver"
	"github.com/wikidot-tools/reservebot/internal/logger"
	"github.com/wikidot-tools/reservebot/internal/reconcile"
	"github.com/wikidot-tools/reservebot/internal/redis"
	"github.com/wikidot-tools/reservebot/internal/resolver"
	"github.com/wikidot-tools/reservebot/internal/scheduler"
	"github.com/wikidot-tools/reservebot/internal/sources/branches"
	redisstore "github.com/wikidot-tools/reservebot/internal/store/redis"
	"github.com/wikidot-tools/reservebot/internal/version"
	"github.com/wikidot-tools/reservebot/internal/wikidot"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	wiki        *wikidot.Client
	runner      *scheduler.PassRunner
	cache       *httpserver.ReservationCache
	server      *httpserver.Server
	redisClient *goredis.Client
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDialTimeout,
		ReadTimeout:    cfg.RedisReadTimeout,
		WriteTimeout:   cfg.RedisWriteTimeout,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	registry := branches.Default()
	if cfg.BranchFile != "" {
		registry, err = branches.Load(cfg.BranchFile)
		if err != nil {
			loggerClient.Errorf("Failed to load branch file %s: %v", cfg.BranchFile, err)
			os.Exit(1)
		}
		loggerClient.Info("branch registry loaded from file",
			logger.String("file", cfg.BranchFile))
	}

	store := redisstore.NewStore(redisClient)
	wiki := wikidot.NewClient(cfg.BaseSite, loggerClient)
	lookup := resolver.New(wiki, registry, loggerClient)

	engine := reconcile.New(wiki, lookup, loggerClient, reconcile.Options{
		HomeSiteID:    cfg.HomeSiteID,
		StaleAfter:    cfg.StaleAfter,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	manualTrigger := make(chan struct{}, 1)
	runner := scheduler.NewPassRunner(wiki, engine, store, loggerClient, cfg.PassInterval, manualTrigger)

	cache := httpserver.NewReservationCache(store, loggerClient, cfg.CacheRefresh)
	server := httpserver.New(cfg.ListenPort, loggerClient, cache, redisClient)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		wiki:        wiki,
		runner:      runner,
		cache:       cache,
		server:      server,
		redisClient: redisClient,
	}
}

func (a *App) Run() error {
	a.logger.Infof("Starting reservebot %s (commit=%s, go=%s)",
		version.Version, version.Commit, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Authenticate before anything touches the wiki. A credential mismatch
	// is fatal and must not be retried.
	if err := a.wiki.Login(ctx, a.cfg.WikiUsername, a.cfg.WikiPassword); err != nil {
		return fmt.Errorf("wikidot login failed: %w", err)
	}

	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pass runner: %w", err)
	}
	a.logger.Info("reconciliation loop started",
		logger.Duration("interval", a.cfg.PassInterval))

	if err := a.cache.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reservation cache: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.runner.Stop()
	a.cache.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		}
	}

	a.logger.Info("reservebot stopped cleanly")
	return nil
}
