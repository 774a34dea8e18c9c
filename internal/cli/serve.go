package cli

import (
	"fmt"

	"roadquest/internal/auth"
	bookingshandler "roadquest/internal/bookings/handler"
	bookingsrepo "roadquest/internal/bookings/repository"
	bookingsservice "roadquest/internal/bookings/service"
	bookingsvalidator "roadquest/internal/bookings/validator"
	carshandler "roadquest/internal/cars/handler"
	carsrepo "roadquest/internal/cars/repository"
	carsservice "roadquest/internal/cars/service"
	carsvalidator "roadquest/internal/cars/validator"
	"roadquest/internal/events"
	"roadquest/internal/health"
	"roadquest/pkg/app"
	"roadquest/pkg/config"
	"roadquest/pkg/contracts"
	"roadquest/pkg/kafka"
	kafka_config "roadquest/pkg/kafka/config"
	kafka_middleware "roadquest/pkg/kafka/middleware"
	"roadquest/pkg/logger"

	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(ServiceName)
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.LogConfiguration()

			if err := cfg.SetMongo(); err != nil {
				return err
			}
			if err := cfg.SetRedis(); err != nil {
				cfg.GracefulShutdown(cmd.Context())
				return err
			}

			publisher, err := newPublisher(cfg)
			if err != nil {
				cfg.GracefulShutdown(cmd.Context())
				return err
			}

			serverApp := app.NewApplication(cfg)
			serverApp.OnShutdown("events", publisher.Close)
			serverApp.SetApp(newHealthHandler(cfg), initHandlers(cfg, publisher)...)

			cfg.Log.Info("Starting roadquest API", "version", Version)
			return serverApp.Run()
		},
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		return nil, err
	}
	if !kafkaCfg.Enabled() {
		cfg.Log.Info("KAFKA_BROKERS not set, domain events are disabled")
		return events.NopPublisher{}, nil
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	stats := &kafka_middleware.PublishStats{}
	producer.Use(stats.Middleware())
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	return &summarizingPublisher{
		Publisher: events.NewKafkaPublisher(producer, kafkaCfg.PublishBuffer, kafkaCfg.PublishTimeout, cfg.Log),
		stats:     stats,
		log:       cfg.Log,
	}, nil
}

// summarizingPublisher logs publish counters once the producer is closed.
type summarizingPublisher struct {
	events.Publisher
	stats *kafka_middleware.PublishStats
	log   *logger.Logger
}

func (p *summarizingPublisher) Close() error {
	err := p.Publisher.Close()
	p.stats.LogSummary(p.log)
	return err
}

func newHealthHandler(cfg *config.Config) *health.HealthHandler {
	checks := map[string]health.Check{
		"mongo": health.MongoCheck(cfg.Client.Mongo),
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = health.RedisCheck(cfg.Client.Redis)
	}
	return health.NewHealthHandler(checks, cfg.Log)
}

func initHandlers(cfg *config.Config, publisher events.Publisher) []contracts.Handler {
	carRepo := carsrepo.NewMongoCarRepository(cfg)
	carService := carsservice.NewCarService(
		carRepo,
		carsvalidator.NewCarValidator(cfg.Log),
		publisher,
		cfg,
	)

	bookingService := bookingsservice.NewBookingService(
		bookingsrepo.NewMongoBookingRepository(cfg),
		bookingsrepo.NewBookingLockRepository(cfg),
		carRepo,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)
	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	handlers := []contracts.Handler{
		carshandler.NewCarHandler(carService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
	}

	issuer, err := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		cfg.Log.Warn("TOKEN_SECRET not set, auth endpoints are disabled")
		return handlers
	}
	return append(handlers, auth.NewHandler(issuer, cfg.CookieSecure, cfg.Log))
}
