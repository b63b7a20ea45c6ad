package cmd

import (
	"context"
	"fmt"
	"time"

	"gambler/settlement/config"
	"gambler/settlement/database"
	"gambler/settlement/domain/events"
	"gambler/settlement/domain/interfaces"
	"gambler/settlement/domain/services"
	"gambler/settlement/infrastructure"
	"gambler/settlement/infrastructure/observability"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	collaboratorTimeout = 10 * time.Second
	lockLease           = 30 * time.Second
)

// localPublisher is an event publisher that also fans events out in-process
type localPublisher interface {
	interfaces.EventPublisher
	RegisterLocalHandler(eventType events.EventType, handler infrastructure.LocalHandler)
	RegisterLocalHandlerForAll(handler infrastructure.LocalHandler)
}

// engine holds every long-lived component of the settlement engine
type engine struct {
	db          *database.DB
	redis       *redis.Client
	natsClient  *infrastructure.NATSClient
	kafka       *infrastructure.KafkaEventPublisher
	publisher   localPublisher
	wallet      *infrastructure.WalletClient
	quotes      interfaces.QuoteService
	referrals   interfaces.ReferralService
	coordinator interfaces.SettlementCoordinator
}

// buildEngine connects to the store, bus and collaborators and wires the services
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	e := &engine{}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.db = db
	log.Info("Database connection established successfully")

	if cfg.RedisAddr != "" {
		log.WithField("addr", cfg.RedisAddr).Info("Connecting to Redis...")
		client, err := infrastructure.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			if cfg.LockBackend == "redis" {
				e.close()
				return nil, err
			}
			log.WithError(err).Warn("Redis unavailable, using in-memory odds cache")
		} else {
			e.redis = client
			log.Info("Redis connection established successfully")
		}
	}

	log.WithField("bus", cfg.EventBus).Info("Initializing event publisher...")
	if err := e.initPublisher(ctx, cfg); err != nil {
		e.close()
		return nil, err
	}
	e.publisher.RegisterLocalHandlerForAll(observability.RecordEvent)
	log.Info("Event publisher initialized successfully")

	log.Info("Initializing services...")
	if err := e.initServices(cfg); err != nil {
		e.close()
		return nil, err
	}
	log.Info("Services initialized successfully")

	return e, nil
}

func (e *engine) initPublisher(ctx context.Context, cfg *config.Config) error {
	switch cfg.EventBus {
	case "nats":
		client := infrastructure.NewNATSClient(cfg.NATSServers, infrastructure.NATSOptions{
			AckWait:      cfg.NATSAckWait,
			MaxDeliver:   cfg.NATSMaxDeliver,
			StreamMaxAge: cfg.NATSStreamMaxAge,
		})
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		e.natsClient = client

		publisher := infrastructure.NewNATSEventPublisher(client, infrastructure.NewEventSubjectMapper())
		if err := publisher.EnsureDomainEventStream(); err != nil {
			return fmt.Errorf("failed to ensure domain event stream: %w", err)
		}
		e.publisher = publisher
	case "kafka":
		publisher := infrastructure.NewKafkaEventPublisher(infrastructure.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		e.kafka = publisher
		e.publisher = publisher
	default:
		e.publisher = infrastructure.NewNoopEventPublisher()
	}
	return nil
}

func (e *engine) initServices(cfg *config.Config) error {
	normalizer, err := services.NewOddsNormalizer(cfg.HouseEdge)
	if err != nil {
		return err
	}

	var cache interfaces.OddsCache = infrastructure.NewMemoryOddsCache()
	if e.redis != nil {
		cache = infrastructure.NewRedisOddsCache(e.redis)
	}
	feed := infrastructure.NewOddsFeedClient(cfg.OddsFeedURL, collaboratorTimeout)
	e.quotes = services.NewQuoteService(feed, cache, normalizer, cfg.OddsCacheTTL)

	var locker interfaces.KeyLocker = infrastructure.NewKeyLocker()
	if cfg.LockBackend == "redis" {
		locker = infrastructure.NewRedisKeyLocker(e.redis, lockLease)
	}

	uowFactory := infrastructure.NewUnitOfWorkFactory(e.db, e.publisher)
	ledger := services.NewWagerLedger(uowFactory, locker)

	policies, err := cfg.GamePolicies()
	if err != nil {
		return err
	}
	strategies := services.DefaultStrategies(policies, cfg.DefaultGamePolicy())
	machine := services.NewGameRoundMachine(ledger, strategies, services.NewSampler())

	e.wallet = infrastructure.NewWalletClient(cfg.WalletGatewayURL, collaboratorTimeout)
	e.referrals = services.NewReferralService(uowFactory, e.wallet, services.ReferralConfig{
		Fraction:      cfg.ReferralFraction,
		WithdrawFloor: cfg.WithdrawFloor,
	})

	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	e.coordinator = services.NewSettlementCoordinator(ledger, machine, e.quotes, e.referrals, e.wallet, services.CoordinatorConfig{
		MinStake: cfg.MinStake,
		MaxStake: cfg.MaxStake,
		Retry:    retry,
		Await: services.RetryPolicy{
			MaxAttempts:     10,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	})
	return nil
}

// health reports whether the store answers
func (e *engine) health(ctx context.Context) error {
	return e.db.Ping(ctx)
}

func (e *engine) close() {
	if e.kafka != nil {
		if err := e.kafka.Close(); err != nil {
			log.WithError(err).Error("Error closing Kafka writer")
		}
	}
	if e.natsClient != nil {
		if err := e.natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis connection")
		}
	}
	if e.db != nil {
		log.Info("Closing database connection...")
		e.db.Close()
	}
}
