package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/coach-scheduling/internal/config"
	"alcyxob/coach-scheduling/internal/metrics"
	"alcyxob/coach-scheduling/internal/notify"
	"alcyxob/coach-scheduling/internal/repository"
	"alcyxob/coach-scheduling/internal/repository/memory"
	"alcyxob/coach-scheduling/internal/repository/mongo"
	"alcyxob/coach-scheduling/internal/repository/redis"
	"alcyxob/coach-scheduling/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	metrics      *metrics.Metrics
	availability service.AvailabilityService
	bookings     service.BookingService
	plans        service.PlanService
	reminders    service.ReminderService

	closers []func()
	logger  zerolog.Logger
}

type repositories struct {
	users        repository.UserRepository
	calendars    repository.CalendarRepository
	rules        repository.AvailabilityRuleRepository
	plans        repository.PlanTemplateRepository
	instances    repository.ScheduledInstanceRepository
	appointments repository.AppointmentRepository
	db           *mongodriver.Database // nil on the memory driver
}

func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(registry)

	// --- Initialize Repositories ---
	repos, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// --- Notifier ---
	notifier, err := a.buildNotifier(cfg, repos)
	if err != nil {
		a.Close()
		return nil, err
	}

	// --- Initialize Services ---
	opts := []service.Option{service.WithLogger(logger), service.WithMetrics(a.metrics)}
	a.availability = service.NewAvailabilityService(repos.calendars, repos.rules, repos.appointments, opts...)
	a.bookings = service.NewBookingService(repos.calendars, repos.rules, repos.appointments, repos.users, notifier,
		service.BookingConfig{
			RebookHorizonDays: cfg.Scheduling.RebookHorizonDays,
			NotifyTimeout:     cfg.Notifier.Timeout,
		}, opts...)
	a.plans = service.NewPlanService(repos.plans, repos.instances,
		service.PlanConfig{RejectOverlapping: cfg.Scheduling.RejectOverlappingMaterialization}, opts...)
	a.reminders = service.NewReminderService(repos.appointments, repos.users, repos.calendars, notifier,
		service.ReminderConfig{
			Lead:          cfg.Reminder.Lead,
			Window:        cfg.Reminder.Window,
			NotifyTimeout: cfg.Notifier.Timeout,
		}, opts...)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.Database.Driver == "memory" {
		a.logger.Warn().Msg("using in-memory store; data is lost on exit")
		store := memory.NewStore()
		return repositories{
			users:        store.Users(),
			calendars:    store.Calendars(),
			rules:        store.Rules(),
			plans:        store.Plans(),
			instances:    store.Instances(),
			appointments: store.Appointments(),
		}, nil
	}

	client, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.Timeout)
	if err != nil {
		return repositories{}, fmt.Errorf("connect to MongoDB: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := mongo.DisconnectDB(client); err != nil {
			a.logger.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	})
	db := client.Database(cfg.Database.Name)
	a.logger.Info().Str("database", cfg.Database.Name).Msg("database connection established")

	// The slot index enforces booking uniqueness, so serving waits for it.
	idxCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(idxCtx, db, a.logger); err != nil {
		return repositories{}, fmt.Errorf("ensure indexes: %w", err)
	}

	return repositories{
		users:        mongo.NewMongoUserRepository(db),
		calendars:    mongo.NewMongoCalendarRepository(db),
		rules:        mongo.NewMongoAvailabilityRuleRepository(db),
		plans:        mongo.NewMongoPlanTemplateRepository(db),
		instances:    mongo.NewMongoScheduledInstanceRepository(db),
		appointments: mongo.NewMongoAppointmentRepository(db),
		db:           db,
	}, nil
}

// buildNotifier stacks transport, rate limit and metrics, outermost last.
func (a *app) buildNotifier(cfg config.Config, repos repositories) (notify.Notifier, error) {
	var notifier notify.Notifier
	switch cfg.Notifier.Driver {
	case "nats":
		natsNotifier, err := notify.NewNATSNotifier(notify.NATSConfig{
			URL:           cfg.Notifier.NATS.URL,
			Token:         cfg.Notifier.NATS.Token,
			Subject:       cfg.Notifier.NATS.Subject,
			MaxReconnects: cfg.Notifier.NATS.MaxReconnects,
			ReconnectWait: cfg.Notifier.NATS.ReconnectWait,
			Timeout:       cfg.Notifier.Timeout,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.closers = append(a.closers, natsNotifier.Close)
		notifier = natsNotifier
	default:
		notifier = notify.NewLogNotifier(a.logger)
	}

	if limit := cfg.Notifier.RateLimit; limit.Limit > 0 {
		counter, err := a.sendCounter(cfg, repos)
		if err != nil {
			return nil, err
		}
		notifier = notify.NewRateLimited(notifier, counter, notify.RateLimitConfig{
			Limit:  limit.Limit,
			Window: limit.Window,
		}, a.logger)
		a.logger.Info().
			Str("backend", limit.Backend).
			Int64("limit", limit.Limit).
			Dur("window", limit.Window).
			Msg("notification rate limit enabled")
	}

	return notify.WithMetrics(notifier, a.metrics), nil
}

func (a *app) sendCounter(cfg config.Config, repos repositories) (repository.SendCounter, error) {
	switch cfg.Notifier.RateLimit.Backend {
	case "redis":
		counter, err := redis.NewSendCounter(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := counter.Close(); err != nil {
				a.logger.Error().Err(err).Msg("failed to close redis")
			}
		})
		return counter, nil
	case "memory":
		a.logger.Warn().Msg("rate limit counters are process-local")
		return memory.NewStore().SendCounter(), nil
	default:
		if repos.db == nil {
			return nil, errors.New("rate limit backend mongo needs the mongo database driver")
		}
		return mongo.NewMongoSendCounter(repos.db), nil
	}
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
