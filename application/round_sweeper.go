package application

import (
	"context"
	"time"

	"gambler/settlement/domain/interfaces"
	"gambler/settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

const roundSweeperName = "round_sweeper"

// RoundSweeper voids game rounds that have seen no update for the idle timeout
type RoundSweeper struct {
	coordinator interfaces.SettlementCoordinator
	interval    time.Duration
	idleTimeout time.Duration
}

// NewRoundSweeper creates a new round sweeper
func NewRoundSweeper(coordinator interfaces.SettlementCoordinator, interval, idleTimeout time.Duration) *RoundSweeper {
	return &RoundSweeper{
		coordinator: coordinator,
		interval:    interval,
		idleTimeout: idleTimeout,
	}
}

// Start sweeps every interval until ctx is done or the returned stop func is called
func (s *RoundSweeper) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.WithFields(log.Fields{
			"interval":    s.interval,
			"idleTimeout": s.idleTimeout,
		}).Info("Round sweeper started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Round sweeper shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Round sweeper shutting down (stop requested)...")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					log.WithError(err).Error("Round sweep failed")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce voids every idle round once and returns how many were voided
func (s *RoundSweeper) RunOnce(ctx context.Context) (int, error) {
	voided, err := s.coordinator.VoidIdleRounds(ctx, s.idleTimeout)
	if err != nil {
		observability.WorkerRuns.WithLabelValues(roundSweeperName, observability.ResultError).Inc()
		return voided, err
	}

	observability.WorkerRuns.WithLabelValues(roundSweeperName, observability.ResultOK).Inc()
	observability.WorkerItems.WithLabelValues(roundSweeperName).Add(float64(voided))

	if voided > 0 {
		log.WithField("voided", voided).Info("Voided idle game rounds")
	}
	return voided, nil
}
