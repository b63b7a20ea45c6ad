package application

import (
	"context"
	"time"

	"gambler/settlement/domain/interfaces"
	"gambler/settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

const fundingWorkerName = "funding_confirmation"

// FundingConfirmationWorker polls the chain for pending wagers and fails the
// ones whose funding never confirmed within the timeout
type FundingConfirmationWorker struct {
	coordinator interfaces.SettlementCoordinator
	interval    time.Duration
	timeout     time.Duration
}

// NewFundingConfirmationWorker creates a new funding confirmation worker
func NewFundingConfirmationWorker(coordinator interfaces.SettlementCoordinator, interval, timeout time.Duration) *FundingConfirmationWorker {
	return &FundingConfirmationWorker{
		coordinator: coordinator,
		interval:    interval,
		timeout:     timeout,
	}
}

// Start runs the worker every interval until ctx is done or the returned stop func is called
func (w *FundingConfirmationWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		log.WithFields(log.Fields{
			"interval": w.interval,
			"timeout":  w.timeout,
		}).Info("Funding confirmation worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Funding confirmation worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Funding confirmation worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
					log.WithError(err).Error("Funding confirmation run failed")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce confirms pending wagers, then expires the stale ones
func (w *FundingConfirmationWorker) RunOnce(ctx context.Context) error {
	confirmed, err := w.coordinator.ConfirmPendingWagers(ctx)
	if err != nil {
		observability.WorkerRuns.WithLabelValues(fundingWorkerName, observability.ResultError).Inc()
		return err
	}

	expired, err := w.coordinator.ExpireStaleFunding(ctx, w.timeout)
	if err != nil {
		observability.WorkerRuns.WithLabelValues(fundingWorkerName, observability.ResultError).Inc()
		return err
	}

	observability.WorkerRuns.WithLabelValues(fundingWorkerName, observability.ResultOK).Inc()
	observability.WorkerItems.WithLabelValues(fundingWorkerName).Add(float64(confirmed + expired))

	if confirmed > 0 || expired > 0 {
		log.WithFields(log.Fields{
			"confirmed": confirmed,
			"expired":   expired,
		}).Info("Completed funding confirmation run")
	}
	return nil
}
