package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/hibiken/asynq"

	"coach-service/internal/config"
	coachBookingsList "coach-service/internal/http-server/handlers/coach/bookings/list"
	coachConfigGet "coach-service/internal/http-server/handlers/coach/config/get"
	coachConfigUpdate "coach-service/internal/http-server/handlers/coach/config/update"
	coachSlotsRegenerate "coach-service/internal/http-server/handlers/coach/slots/regenerate"
	bookingCancel "coach-service/internal/http-server/handlers/bookings/cancel"
	bookingCreate "coach-service/internal/http-server/handlers/bookings/create"
	bookingGet "coach-service/internal/http-server/handlers/bookings/get"
	bookingMine "coach-service/internal/http-server/handlers/bookings/mine"
	slotGet "coach-service/internal/http-server/handlers/slots/get"
	slotWeek "coach-service/internal/http-server/handlers/slots/week"
	"coach-service/internal/http-server/middleware/auth"
	"coach-service/internal/lock"
	"coach-service/internal/notify"
	"coach-service/internal/reminder"
	svc "coach-service/internal/service"
	"coach-service/internal/storage/memory"
	"coach-service/internal/storage/postgres"
	slogpretty "coach-service/pkg/handlers/slogPretty"
	"coach-service/pkg/middleware/mwLogger"
	"coach-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type store interface {
	svc.Store
	reminder.Store
	io.Closer
}

type closableLocker interface {
	lock.Locker
	io.Closer
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	loc, err := cfg.Location()
	if err != nil {
		log.Error("Failed to load coach timezone", sl.Err(err))
		os.Exit(1)
	}

	storage, err := setupStorage(log, cfg)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := setupLocker(log, cfg)
	if err != nil {
		log.Error("Failed to init locker", sl.Err(err))
		os.Exit(1)
	}

	var notifier notify.Notifier
	if cfg.WeChat.Enabled() {
		notifier = notify.NewWeChat(notify.WeChatConfig{
			AppID:            cfg.WeChat.AppID,
			AppSecret:        cfg.WeChat.AppSecret,
			APIBase:          cfg.WeChat.APIBase,
			MiniprogramState: cfg.WeChat.MiniprogramState,
			Templates: map[notify.Kind]string{
				notify.KindBookingConfirmed: cfg.WeChat.Templates.BookingConfirmed,
				notify.KindBookingCancelled: cfg.WeChat.Templates.BookingCancelled,
				notify.KindReminder:         cfg.WeChat.Templates.Reminder,
			},
		}, nil)
		log.Info("WeChat notifications enabled")
	} else {
		notifier = notify.NewLogger(log)
		log.Info("WeChat credentials missing, notifications are only logged")
	}

	var (
		queue  *notify.Queue
		worker *notify.Worker
	)
	if cfg.Notifications.Async && cfg.RedisAddr != "" {
		opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

		worker = notify.NewWorker(opt, log, notifier, cfg.Notifications.Concurrency)
		if err := worker.Start(); err != nil {
			log.Error("Failed to start notification worker", sl.Err(err))
			os.Exit(1)
		}

		queue = notify.NewQueue(opt, cfg.Notifications.MaxRetry, cfg.Notifications.Timeout)
		notifier = queue
		log.Info("Notifications go through the queue", slog.String("redis", cfg.RedisAddr))
	}

	service := svc.NewService(log, storage, locker, notifier, svc.Settings{
		CoachID:       cfg.Coach.ID,
		Location:      loc,
		HorizonDays:   cfg.Regeneration.HorizonDays,
		DeleteScope:   svc.DeleteScope(cfg.Regeneration.DeleteScope),
		LockTTL:       cfg.Regeneration.LockTTL,
		NotifyTimeout: cfg.Notifications.Timeout,
	})

	var sweeper *reminder.Sweeper
	if cfg.Reminder.Enabled {
		sweeper = reminder.New(log, storage, locker, notifier, reminder.Config{
			Spec:     cfg.Reminder.Spec,
			Lead:     cfg.Reminder.Lead,
			Location: loc,
		})
		if err := sweeper.Start(); err != nil {
			log.Error("Failed to start reminder sweep", sl.Err(err))
			os.Exit(1)
		}
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(auth.New(log, cfg.Auth.JWTSecret))

		// Coach
		r.Get("/coach/config", coachConfigGet.New(log, service))
		r.Put("/coach/config", coachConfigUpdate.New(log, service))
		r.Post("/coach/slots/regenerate", coachSlotsRegenerate.New(log, service))
		r.Get("/coach/bookings", coachBookingsList.New(log, service))

		// Slots
		r.Get("/slots", slotGet.New(log, service))
		r.Get("/slots/week", slotWeek.New(log, service))

		// Bookings
		r.Post("/bookings", bookingCreate.New(log, service))
		r.Get("/bookings/mine/upcoming", bookingMine.New(log, service))
		r.Get("/bookings/{id}", bookingGet.New(log, service))
		r.Delete("/bookings/{id}", bookingCancel.New(log, service))
	})

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if sweeper != nil {
		sweeper.Stop()
		log.Info("Reminder sweep stopped")
	}

	service.Wait()

	if queue != nil {
		if err := queue.Close(); err != nil {
			log.Error("Failed to close notification queue", sl.Err(err))
		}
	}
	if worker != nil {
		worker.Shutdown()
		log.Info("Notification worker stopped")
	}

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := locker.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	log.Info("Shutdown finished, server stopped")

}

// setupStorage opens Postgres and applies migrations, or falls back to the
// in-memory store when no storage path is configured.
func setupStorage(log *slog.Logger, cfg *config.Config) (store, error) {
	if cfg.StoragePath == "" {
		log.Warn("storage_path is empty, using the in-memory store")
		return memory.New(), nil
	}

	pg, err := postgres.New(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}

	if v, err := pg.Version(ctx); err == nil {
		log.Info("Database migrated", slog.Int64("version", v))
	}

	return pg, nil
}

type localLocker struct {
	*lock.Local
}

func (localLocker) Close() error { return nil }

func setupLocker(log *slog.Logger, cfg *config.Config) (closableLocker, error) {
	if cfg.RedisAddr == "" {
		log.Warn("redis_addr is empty, locks only guard this process")
		return localLocker{lock.NewLocal()}, nil
	}

	return lock.NewRedisLock(cfg.RedisAddr)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
