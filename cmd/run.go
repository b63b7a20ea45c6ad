package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gambler/settlement/application"
	"gambler/settlement/config"
	"gambler/settlement/httpapi"
	"gambler/settlement/infrastructure"
	"gambler/settlement/infrastructure/observability"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the settlement engine
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting settlement engine...")

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	// Initialize event result subscription
	log.Info("Subscribing to event results...")
	handler := application.NewEventResolutionHandler(e.coordinator)
	var kafkaSubscriber *infrastructure.KafkaSubscriber
	switch {
	case e.natsClient != nil:
		if err := application.RegisterEventResultSubscription(e.natsClient, handler); err != nil {
			return fmt.Errorf("failed to subscribe to event results: %w", err)
		}
	case cfg.EventBus == "kafka":
		kafkaSubscriber = infrastructure.NewKafkaSubscriber(ctx, cfg.KafkaBrokers, "settlement-engine")
		if err := application.RegisterEventResultSubscription(kafkaSubscriber, handler); err != nil {
			return fmt.Errorf("failed to subscribe to event results: %w", err)
		}
	default:
		log.Info("No event bus configured, event results arrive through the API only")
	}

	// Start background workers
	log.Info("Starting background workers...")
	stopFunding := application.NewFundingConfirmationWorker(e.coordinator, cfg.FundingPollInterval, cfg.FundingTimeout).Start(ctx)
	stopSweeper := application.NewRoundSweeper(e.coordinator, cfg.SweepInterval, cfg.RoundIdleTimeout).Start(ctx)
	if cfg.WalletGatewayURL != "" {
		if _, err := application.NewWalletEventListener(e.wallet, e.coordinator).Start(ctx); err != nil {
			log.WithError(err).Warn("Wallet event stream unavailable, relying on funding polls")
		}
	}

	// Initialize request API
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	hub := httpapi.NewHub(func(r *http.Request) bool { return true })
	e.publisher.RegisterLocalHandlerForAll(hub.HandleEvent)
	router := httpapi.NewRouter(httpapi.NewHandlers(e.coordinator, e.referrals, e.quotes), hub)

	grpcServer, err := startHealthServer(ctx, cfg.GRPCPort, e.health)
	if err != nil {
		return err
	}
	metricsServer := observability.StartMetricsServer(cfg.MetricsPort, e.health)
	apiServer := httpapi.NewServer(router, cfg.HTTPPort)
	apiServer.Start()

	log.WithField("environment", cfg.Environment).Info("Settlement engine is running")
	<-ctx.Done()

	log.Info("Shutting down settlement engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down request API")
	}
	stopFunding()
	stopSweeper()
	if kafkaSubscriber != nil {
		if err := kafkaSubscriber.Close(); err != nil {
			log.WithError(err).Error("Error closing Kafka subscriber")
		}
	}
	grpcServer.GracefulStop()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics server")
	}

	log.Info("Shutdown completed")
	return nil
}

// Sweep runs one funding confirmation pass and one idle round sweep, then exits
func Sweep(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	if err := application.NewFundingConfirmationWorker(e.coordinator, cfg.FundingPollInterval, cfg.FundingTimeout).RunOnce(ctx); err != nil {
		return fmt.Errorf("funding sweep failed: %w", err)
	}
	voided, err := application.NewRoundSweeper(e.coordinator, cfg.SweepInterval, cfg.RoundIdleTimeout).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("round sweep failed: %w", err)
	}

	log.WithField("voidedRounds", voided).Info("Sweep completed")
	return nil
}
