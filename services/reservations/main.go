package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/database"
	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/pkg/mailer"
	mw "github.com/diagnosis/seat-reservations/pkg/middleware"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/handlers"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/service"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("Failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories
	eventRepo := repository.NewEventRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	contactRepo := repository.NewContactRepository(pool)
	pendingRepo := repository.NewPendingRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	otpRepo := repository.NewOTPRepository(rdb)
	cache := repository.NewAvailabilityCache(rdb, cfg.Booking.AvailabilityCacheTTL)

	// Initialize services
	settings := service.NewSettingsService(settingsRepo)
	if err := settings.Seed(ctx, cfg.Booking.SettingsFile); err != nil {
		logger.Error("Failed to seed settings", "error", err)
		os.Exit(1)
	}

	links := service.NewLinkBuilder(cfg.Booking)
	notifier := service.NewNotificationService(mailer.New(cfg.Email), eventBus, links, cfg.Booking.EventTitle, cfg.Booking.EventLocation)
	otp := service.NewOTPService(otpRepo, cfg.Booking.OTPTTL, cfg.Booking.OTPMaxAttempts)
	availability := service.NewAvailabilityService(eventRepo, bookingRepo, pendingRepo, cache, settings)

	bookingService := service.NewBookingService(eventRepo, bookingRepo, contactRepo, pendingRepo,
		otp, availability, settings, notifier, links, eventBus, cfg)
	cancellationService := service.NewCancellationService(bookingRepo, availability, settings, notifier, links, eventBus, cfg)
	eventService := service.NewEventService(eventRepo, bookingRepo, availability, settings, links)
	adminService := service.NewAdminService(adminRepo, cfg.Auth)
	if err := adminService.Bootstrap(ctx); err != nil {
		logger.Error("Failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	sweeper := service.NewSweeper(pendingRepo, eventBus, cfg.Booking.SweepInterval)

	// Initialize handlers
	h := handlers.New(bookingService, cancellationService, eventService, settings, adminService, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("reservations"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health(map[string]mw.Pinger{
		"postgres": mw.PingFunc(pool.Ping),
		"redis":    mw.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		"nats":     mw.PingFunc(eventBus.Ping),
	}))

	h.Register(r, handlers.RouteOptions{
		ResendLimit: mw.RateLimit(mw.NewRedisCounter(rdb, "ratelimit"), mw.RateLimitConfig{
			Requests: cfg.Booking.ResendOTPLimit,
			Window:   cfg.Booking.ResendOTPWindow,
			KeyFunc:  handlers.EmailKey,
		}),
		Idempotent: mw.Idempotency(mw.NewRedisIdempotencyStore(rdb), idempotencyTTL),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting reservations service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down reservations service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Reservations service error", "error", err)
		os.Exit(1)
	}
}
