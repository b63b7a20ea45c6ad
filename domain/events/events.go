package events

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeWagerPlaced       EventType = "wager.placed"
	EventTypeWagerFunded       EventType = "wager.funded"
	EventTypeWagerResolved     EventType = "wager.resolved"
	EventTypeWagerFailed       EventType = "wager.failed"
	EventTypeRoundEnded        EventType = "round.ended"
	EventTypeReferralCredited  EventType = "referral.credited"
	EventTypeReferralWithdrawn EventType = "referral.withdrawn"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PlayerScoped is implemented by events that concern a single player.
// Used to route pushes to that player's connections.
type PlayerScoped interface {
	Player() string
}

// WagerPlacedEvent is published when a wager is recorded as pending
type WagerPlacedEvent struct {
	WagerID       int64  `json:"wagerId"`
	PlayerID      string `json:"playerId"`
	GameType      string `json:"gameType"`
	StakeAmount   int64  `json:"stakeAmount"`
	ChosenOutcome string `json:"chosenOutcome"`
	ImpliedOdds   string `json:"impliedOdds"`
	FundingTxID   string `json:"fundingTxId"`
}

func (e WagerPlacedEvent) Type() EventType { return EventTypeWagerPlaced }
func (e WagerPlacedEvent) Player() string  { return e.PlayerID }

// WagerFundedEvent is published when the funding transaction is confirmed
type WagerFundedEvent struct {
	WagerID  int64  `json:"wagerId"`
	PlayerID string `json:"playerId"`
}

func (e WagerFundedEvent) Type() EventType { return EventTypeWagerFunded }
func (e WagerFundedEvent) Player() string  { return e.PlayerID }

// WagerResolvedEvent is published when a wager reaches its payout
type WagerResolvedEvent struct {
	WagerID      int64  `json:"wagerId"`
	PlayerID     string `json:"playerId"`
	GameType     string `json:"gameType"`
	StakeAmount  int64  `json:"stakeAmount"`
	PayoutAmount int64  `json:"payoutAmount"`
	Outcome      string `json:"outcome"`
	Won          bool   `json:"won"`
}

func (e WagerResolvedEvent) Type() EventType { return EventTypeWagerResolved }
func (e WagerResolvedEvent) Player() string  { return e.PlayerID }

// WagerFailedEvent is published when a wager can no longer be settled
type WagerFailedEvent struct {
	WagerID  int64  `json:"wagerId"`
	PlayerID string `json:"playerId"`
	GameType string `json:"gameType"`
	Reason   string `json:"reason"`
}

func (e WagerFailedEvent) Type() EventType { return EventTypeWagerFailed }
func (e WagerFailedEvent) Player() string  { return e.PlayerID }

// RoundEndedEvent is published when a game round is closed
type RoundEndedEvent struct {
	RoundID  int64          `json:"roundId"`
	PlayerID string         `json:"playerId"`
	GameType string         `json:"gameType"`
	Nonce    int64          `json:"nonce"`
	Payload  map[string]any `json:"payload"`
	Voided   bool           `json:"voided"`
}

func (e RoundEndedEvent) Type() EventType { return EventTypeRoundEnded }
func (e RoundEndedEvent) Player() string  { return e.PlayerID }

// ReferralCreditedEvent is published when a referrer earns bonus from a referee's wager
type ReferralCreditedEvent struct {
	WagerID    int64  `json:"wagerId"`
	ReferrerID string `json:"referrerId"`
	RefereeID  string `json:"refereeId"`
	Amount     int64  `json:"amount"`
}

func (e ReferralCreditedEvent) Type() EventType { return EventTypeReferralCredited }
func (e ReferralCreditedEvent) Player() string  { return e.ReferrerID }

// ReferralWithdrawnEvent is published after a bonus payout has been attempted
type ReferralWithdrawnEvent struct {
	PayoutID    int64  `json:"payoutId"`
	PlayerID    string `json:"playerId"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	TxReference string `json:"txReference,omitempty"`
}

func (e ReferralWithdrawnEvent) Type() EventType { return EventTypeReferralWithdrawn }
func (e ReferralWithdrawnEvent) Player() string  { return e.PlayerID }
