package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"crowdstack-backend/internal/config"
	"crowdstack-backend/internal/db"
	"crowdstack-backend/internal/handler"
	"crowdstack-backend/internal/metrics"
	"crowdstack-backend/internal/outbox"
	"crowdstack-backend/internal/passtoken"
	"crowdstack-backend/internal/ports"
	"crowdstack-backend/internal/repository"
	"crowdstack-backend/internal/repository/memory"
	"crowdstack-backend/internal/server"
	"crowdstack-backend/internal/service"
	"crowdstack-backend/internal/statement"
	"crowdstack-backend/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger = newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	var emitter ports.Emitter = outbox.Log{Logger: logger}
	if cfg.AMQPURL != "" {
		rabbit, err := outbox.NewRabbit(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("failed to connect outbox broker", "err", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		emitter = rabbit
	}

	files := storage.Local{Dir: cfg.StorageDir, BaseURL: strings.TrimRight(cfg.PublicBaseURL, "/")}
	m := metrics.New(prometheus.DefaultRegisterer)
	passes := passtoken.NewIssuer(cfg.PassTokenSecret)

	// services
	attendees := service.AttendeeService{Store: store}
	registrations := service.RegistrationService{
		Events:        store,
		Registrations: store,
		Promoters:     store,
		Attendees:     attendees,
		Passes:        passes,
		Emitter:       emitter,
		Metrics:       m,
		Logger:        logger,
	}
	checkins := service.CheckinService{Registrations: store, Checkins: store, Passes: passes, Metrics: m, Logger: logger}
	promoters := service.PromoterService{Events: store, Promoters: store, Logger: logger}
	commissions := service.CommissionService{Events: store, Promoters: store, Payouts: store}
	payouts := service.PayoutService{
		Events:   store,
		Payouts:  store,
		Renderer: statement.Renderer{Storage: files},
		Storage:  files,
		Emitter:  emitter,
		Metrics:  m,
		Logger:   logger,
	}
	strikes := service.StrikeService{Attendees: store, Flags: store, Emitter: emitter, Metrics: m, Logger: logger}

	// handlers
	router := server.NewRouter(cfg, logger, server.Handlers{
		Health:        handler.HealthHandler{DB: store},
		Docs:          handler.DocsHandler{},
		Registrations: handler.RegistrationHandler{Registrations: registrations},
		Checkins:      handler.CheckinHandler{Checkins: checkins},
		Promoters:     handler.PromoterHandler{Promoters: promoters},
		Commissions:   handler.CommissionHandler{Commissions: commissions},
		Payouts:       handler.PayoutHandler{Payouts: payouts},
		GuestFlags:    handler.GuestFlagHandler{Strikes: strikes},
		Files:         handler.FileHandler{Files: service.FileService{Events: store, Payouts: store, Files: files}},
	})

	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		store := memory.New()
		if cfg.SeedFile != "" {
			if err := store.LoadSeedFile(cfg.SeedFile, cfg.DefaultCurrency); err != nil {
				return nil, nil, err
			}
			logger.Info("seed loaded", "file", cfg.SeedFile)
		}
		logger.Warn("using in-memory store; data is lost on restart")
		return store, func() {}, nil
	}

	pg, err := db.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		version, err := pg.MigrateUp()
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("migrations applied", "version", version)
	}
	return repository.NewStore(pg), pg.Close, nil
}
