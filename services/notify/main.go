package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/pkg/mailer"
	mw "github.com/diagnosis/seat-reservations/pkg/middleware"
	"github.com/diagnosis/seat-reservations/pkg/sms"
	"github.com/diagnosis/seat-reservations/services/notify/internal/dispatcher"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	d := dispatcher.New(mailer.New(cfg.Email), sms.New(cfg.SMS))
	if err := d.Start(eventBus, cfg.NATS.QueueGroup); err != nil {
		logger.Error("Failed to start dispatcher", "error", err)
		eventBus.Close()
		os.Exit(1)
	}

	// Only health is served over HTTP; jobs arrive on the bus.
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health(map[string]mw.Pinger{"nats": mw.PingFunc(eventBus.Ping)}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting notify service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down notify service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// let in-flight deliveries finish
		if derr := eventBus.Drain(); derr != nil {
			eventBus.Close()
			return errors.Join(err, derr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}
