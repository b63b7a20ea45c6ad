package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/events"
	"gambler/settlement/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const referralCodeLength = 8

// ReferralConfig holds the referral program parameters
type ReferralConfig struct {
	// Fraction of each referee stake credited to the referrer
	Fraction decimal.Decimal
	// WithdrawFloor is the minimum balance, in minor units, that can be withdrawn
	WithdrawFloor int64
}

type referralService struct {
	uowFactory interfaces.UnitOfWorkFactory
	wallet     interfaces.WalletCollaborator
	config     ReferralConfig
	newCode    func() string
	now        func() time.Time
}

// NewReferralService creates a referral service
func NewReferralService(uowFactory interfaces.UnitOfWorkFactory, wallet interfaces.WalletCollaborator, config ReferralConfig) interfaces.ReferralService {
	return &referralService{
		uowFactory: uowFactory,
		wallet:     wallet,
		config:     config,
		newCode:    newReferralCode,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:referralCodeLength])
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *referralService) inTx(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("failed to begin transaction", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return storeError("failed to commit transaction", err)
	}
	return nil
}

// ensureAccount returns the player's account inside uow, creating it if needed
func (s *referralService) ensureAccount(ctx context.Context, uow interfaces.UnitOfWork, playerID string) (*entities.ReferralAccount, error) {
	repo := uow.ReferralRepository()
	account, err := repo.GetByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		code := s.newCode()
		owner, err := repo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check referral code: %w", err)
		}
		if owner != nil {
			continue
		}

		account = &entities.ReferralAccount{PlayerID: playerID, ReferralCode: code}
		created, err := repo.Create(ctx, account)
		if err != nil {
			return nil, err
		}
		if created {
			log.WithFields(log.Fields{
				"playerId": playerID,
				"code":     code,
			}).Info("Created referral account")
			return account, nil
		}
		// created concurrently by another request
		return repo.GetByPlayer(ctx, playerID)
	}

	return nil, fmt.Errorf("failed to allocate a unique referral code for %s", playerID)
}

// GetOrCreateAccount returns the player's referral account
func (s *referralService) GetOrCreateAccount(ctx context.Context, playerID string) (*entities.ReferralAccount, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "player id is required")
	}

	var account *entities.ReferralAccount
	err := s.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		account, err = s.ensureAccount(ctx, uow, playerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Claim links a player to the owner of a referral code. The link is set once.
func (s *referralService) Claim(ctx context.Context, playerID, code string) (*entities.ReferralAccount, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "player id is required")
	}
	code = normalizeCode(code)
	if code == "" {
		return nil, errs.New(errs.CodeInvalidCode, "referral code is required")
	}

	var account *entities.ReferralAccount
	err := s.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		repo := uow.ReferralRepository()

		owner, err := repo.GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to look up referral code: %w", err)
		}
		if owner == nil {
			return errs.Newf(errs.CodeInvalidCode, "referral code %s does not exist", code)
		}
		if owner.PlayerID == playerID {
			return errs.New(errs.CodeSelfReferral, "cannot claim your own referral code")
		}

		if _, err := s.ensureAccount(ctx, uow, playerID); err != nil {
			return err
		}
		account, err = repo.GetByPlayerForUpdate(ctx, playerID)
		if err != nil {
			return fmt.Errorf("failed to lock referral account: %w", err)
		}
		if account.HasReferrer() {
			return errs.New(errs.CodeAlreadyClaimed, "a referral code has already been claimed")
		}

		set, err := repo.SetReferredBy(ctx, playerID, owner.PlayerID)
		if err != nil {
			return err
		}
		if !set {
			return errs.New(errs.CodeAlreadyClaimed, "a referral code has already been claimed")
		}
		if err := repo.IncrementReferralCount(ctx, owner.PlayerID); err != nil {
			return err
		}

		referrer := owner.PlayerID
		account.ReferredBy = &referrer
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"playerId":   playerID,
		"referredBy": *account.ReferredBy,
	}).Info("Referral code claimed")

	return account, nil
}

// Credit accrues fraction * stake to the referee's referrer once per wager
func (s *referralService) Credit(ctx context.Context, wagerID int64, refereeID string, stake int64) (*entities.ReferralCredit, error) {
	amount := decimal.NewFromInt(stake).Mul(s.config.Fraction).Floor().IntPart()

	var credit *entities.ReferralCredit
	err := s.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		repo := uow.ReferralRepository()

		referee, err := repo.GetByPlayer(ctx, refereeID)
		if err != nil {
			return fmt.Errorf("failed to get referral account: %w", err)
		}
		if referee == nil || !referee.HasReferrer() || amount <= 0 {
			return nil
		}

		candidate := &entities.ReferralCredit{
			WagerID:    wagerID,
			ReferrerID: *referee.ReferredBy,
			RefereeID:  refereeID,
			Amount:     amount,
		}
		inserted, err := repo.RecordCredit(ctx, candidate)
		if err != nil {
			return err
		}
		if !inserted {
			credit, err = repo.GetCreditByWager(ctx, wagerID)
			return err
		}

		if err := repo.AddBonus(ctx, candidate.ReferrerID, amount); err != nil {
			return err
		}
		credit = candidate

		return uow.EventBus().Publish(events.ReferralCreditedEvent{
			WagerID:    wagerID,
			ReferrerID: candidate.ReferrerID,
			RefereeID:  refereeID,
			Amount:     amount,
		})
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// Withdraw zeroes the bonus balance and records a payout in one transaction,
// then sends the funds. A failed send leaves the payout marked failed for
// manual recovery; the balance is not re-credited.
func (s *referralService) Withdraw(ctx context.Context, playerID, destination string) (*entities.BonusPayout, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "destination is required")
	}

	var payout *entities.BonusPayout
	err := s.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		repo := uow.ReferralRepository()

		account, err := repo.GetByPlayerForUpdate(ctx, playerID)
		if err != nil {
			return fmt.Errorf("failed to lock referral account: %w", err)
		}
		// A player without an account has nothing to withdraw
		balance := int64(0)
		if account != nil {
			balance = account.BonusBalance
		}
		if balance <= 0 || balance < s.config.WithdrawFloor {
			return errs.Newf(errs.CodeBelowMinimum, "bonus balance %d is below the withdrawal minimum %d", balance, s.config.WithdrawFloor)
		}

		if err := repo.ZeroBonus(ctx, playerID, s.now()); err != nil {
			return err
		}

		payout = &entities.BonusPayout{
			PlayerID:    playerID,
			Amount:      account.BonusBalance,
			Destination: destination,
			Status:      entities.BonusPayoutStatusRequested,
		}
		return repo.CreatePayout(ctx, payout)
	})
	if err != nil {
		return nil, err
	}

	txRef, sendErr := s.wallet.SendFunds(ctx, destination, payout.Amount)
	if sendErr != nil {
		payout.Status = entities.BonusPayoutStatusFailed
		log.WithFields(log.Fields{
			"payoutId": payout.ID,
			"playerId": playerID,
			"amount":   payout.Amount,
			"error":    sendErr,
		}).Error("Bonus payout failed, left for manual recovery")
	} else {
		payout.Status = entities.BonusPayoutStatusSent
		payout.TxReference = &txRef
	}

	err = s.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		if err := uow.ReferralRepository().UpdatePayout(ctx, payout); err != nil {
			return err
		}
		return uow.EventBus().Publish(events.ReferralWithdrawnEvent{
			PayoutID:    payout.ID,
			PlayerID:    playerID,
			Amount:      payout.Amount,
			Status:      string(payout.Status),
			TxReference: txRef,
		})
	})
	if err != nil {
		log.WithFields(log.Fields{
			"payoutId": payout.ID,
			"status":   payout.Status,
			"error":    err,
		}).Error("Failed to record bonus payout status")
	}

	if sendErr != nil {
		return payout, errs.Wrap(errs.CodeUpstreamTimeout, sendErr, "bonus payout could not be sent")
	}
	return payout, err
}
