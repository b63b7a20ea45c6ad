package application

import (
	"context"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// WalletEventListener confirms wager funding as soon as the wallet gateway
// pushes a transaction notification, ahead of the polling worker
type WalletEventListener struct {
	wallet      interfaces.WalletCollaborator
	coordinator interfaces.SettlementCoordinator
}

// NewWalletEventListener creates a new wallet event listener
func NewWalletEventListener(wallet interfaces.WalletCollaborator, coordinator interfaces.SettlementCoordinator) *WalletEventListener {
	return &WalletEventListener{
		wallet:      wallet,
		coordinator: coordinator,
	}
}

// Start consumes wallet notifications until ctx is done. The returned channel
// closes once the listener has stopped.
func (l *WalletEventListener) Start(ctx context.Context) (<-chan struct{}, error) {
	stream, err := l.wallet.SubscribeToEvents(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range stream {
			l.handle(ctx, event)
		}
		log.Info("Wallet event listener stopped")
	}()
	return done, nil
}

func (l *WalletEventListener) handle(ctx context.Context, event entities.WalletEvent) {
	switch event.Type {
	case entities.WalletEventTransaction:
	case entities.WalletEventAccountsChanged, entities.WalletEventChainChanged:
		log.WithFields(log.Fields{
			"type":    event.Type,
			"account": event.Account,
		}).Info("Wallet reported a change")
		return
	default:
		log.WithField("type", event.Type).Debug("Ignoring wallet event")
		return
	}

	if event.TxReference == "" || event.Status == entities.TxStatusPending {
		return
	}

	wager, err := l.coordinator.ConfirmFundingByTx(ctx, event.TxReference)
	if err != nil {
		if errs.Is(err, errs.CodeNotFound) {
			// transfers that fund nothing, such as bonus payouts
			return
		}
		log.WithFields(log.Fields{
			"txReference": event.TxReference,
			"error":       err,
		}).Warn("Failed to confirm funding from wallet event")
		return
	}

	log.WithFields(log.Fields{
		"wagerId":     wager.ID,
		"txReference": event.TxReference,
		"status":      wager.Status,
	}).Debug("Confirmed funding from wallet event")
}
