package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/booking"
	"github.com/iliyamo/stay-reservation/internal/config"
	"github.com/iliyamo/stay-reservation/internal/database"
	"github.com/iliyamo/stay-reservation/internal/external"
	"github.com/iliyamo/stay-reservation/internal/handler"
	"github.com/iliyamo/stay-reservation/internal/logging"
	"github.com/iliyamo/stay-reservation/internal/middleware"
	"github.com/iliyamo/stay-reservation/internal/notifier"
	"github.com/iliyamo/stay-reservation/internal/performance"
	"github.com/iliyamo/stay-reservation/internal/queue"
	"github.com/iliyamo/stay-reservation/internal/ranking"
	"github.com/iliyamo/stay-reservation/internal/repository"
	"github.com/iliyamo/stay-reservation/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		logger.WithError(err).Fatal("run migrations")
	}

	// nil when Redis is down; dependent features degrade to in-process.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn("redis unavailable, running without shared cache and rate limits")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repository.NewStore(db)
	publisher := queue.NewPublisher(cfg.RabbitURL, logger)

	agg := performance.NewAggregator(store, logger,
		performance.WithCache(performanceCache(cfg, rdb)),
		performance.WithCacheTTL(cfg.PerformanceCacheTTL),
	)
	refresher := performance.NewRefresher(agg, logger)

	svc := booking.NewService(store, logger,
		booking.WithAnalytics(store),
		booking.WithPublisher(publisher),
	)

	var dedup ranking.Deduper = ranking.NewMemoryDeduper()
	if rdb != nil {
		dedup = ranking.NewRedisDeduper(rdb, 0)
	}
	sweeper := ranking.NewSweeper(agg, dedup, publisher, logger,
		ranking.WithThreshold(cfg.NotifyThreshold),
		ranking.WithWindowDays(cfg.NotifyWindowDays),
	)
	scheduler := ranking.NewScheduler(sweeper, cfg.NotifySchedule, logger)

	telegram, err := notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.WithError(err).Fatal("create telegram notifier")
	}
	consumers := []*queue.Consumer{
		queue.NewConsumer(cfg.RabbitURL, queue.BookingConfirmedQueue, queue.NewBookingLog(cfg.LogDir).Handle, logger),
		queue.NewConsumer(cfg.RabbitURL, queue.HostNotificationQueue, queue.HostNotificationHandler(telegram), logger),
	}

	client := external.New(cfg.BanditURL, cfg.NLPURL, cfg.ExternalTimeout, logger)

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *queue.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("consumer stopped")
			}
		}(c)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := refresher.Run(ctx); err != nil {
			logger.WithError(err).Error("score refresher stopped")
		}
	}()
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("schedule notification sweep")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	rl := config.LoadRateLimitConfig()
	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), logger),
		Bookings: handler.NewBookingHandler(svc, store, logger),
		Listings: handler.NewListingHandler(store, refresher, logger),
		Search:   handler.NewSearchHandler(store, client, logger),
		Reviews:  handler.NewReviewHandler(store, client, logger),
		Coupons:  handler.NewCouponHandler(store, logger),
		Insights: handler.NewInsightsHandler(store, agg, sweeper, logger),
	}, router.Middleware{
		JWTSecret:  cfg.JWTSecret,
		RateLimit:  middleware.NewTokenBucket(rl, rdb, logger),
		WriteLimit: middleware.WriteLimit(rl, rdb, logger),
		Cache:      middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger),
	})

	go func() {
		addr := ":" + cfg.Port
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
	}
	if err := refresher.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("refresher shutdown")
	}
	wg.Wait()
	logger.Info("stopped")
}

func performanceCache(cfg config.Config, rdb *redis.Client) performance.Cache {
	if cfg.PerformanceCacheBackend == "redis" && rdb != nil {
		return performance.NewRedisCache(rdb, "perf")
	}
	return performance.NewMemoryCache()
}
