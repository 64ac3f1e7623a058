package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/logging"
	"github.com/iliyamo/restaurant-reservation/internal/metrics"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/router"
	"github.com/iliyamo/restaurant-reservation/internal/scheduler"
	"github.com/iliyamo/restaurant-reservation/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.Env})

	db, err := database.Open(database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		Timeout: cfg.DBQueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = database.Migrate(migrateCtx, db, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn().Msg("redis unreachable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	opts := []scheduler.Option{
		scheduler.WithLocation(cfg.Location),
		scheduler.WithLogger(logger.With().Str("component", "scheduler").Logger()),
	}
	if cfg.EventsEnabled {
		pub := service.NewQueuePublisher(cfg.AMQPURL, logger.With().Str("component", "publisher").Logger())
		opts = append(opts, scheduler.WithPublisher(pub))
	}
	if cfg.ConsumerOn {
		startConsumer(ctx, cfg.AMQPURL, logger.With().Str("component", "consumer").Logger())
	}

	customers := repository.NewCustomerRepo(db)
	restaurants := repository.NewRestaurantRepo(db)
	tokens := repository.NewTokenRepo(db)
	menus := repository.NewMenuRepo(db)
	sched := scheduler.NewService(repository.NewReservationRepo(db), opts...)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, customers, restaurants, tokens, logger), cfg.JWTSecret)
	menuH := handler.NewMenuHandler(menus, restaurants, cfg.DBQueryTimeout, logger)
	resH := handler.NewReservationHandler(sched, cfg.DBQueryTimeout, logger)
	cacheCfg := config.LoadCacheConfig()
	menuH.Cache = middleware.NewCacheInvalidator(cacheCfg, rdb, logger)
	router.RegisterPublic(e, menuH, middleware.NewRedisCache(cacheCfg, rdb, logger))
	router.RegisterCustomer(e, resH, cfg.JWTSecret)
	router.RegisterRestaurant(e, resH, menuH, cfg.JWTSecret)

	return serve(ctx, e, ":"+cfg.Port, logger)
}

func startConsumer(ctx context.Context, url string, logger zerolog.Logger) {
	c := queue.NewConsumer(url, logger)
	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reservation consumer stopped")
		}
	}()
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for up to 10 seconds.
func serve(ctx context.Context, e *echo.Echo, addr string, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
