package entities

import (
	"strconv"
	"time"
)

// RoundState represents the lifecycle state of a game round
type RoundState string

// RoundStateIdle is never persisted: a player and game with no open round is
// idle, and starting a round inserts it directly as active.
const (
	RoundStateIdle   RoundState = "idle"
	RoundStateActive RoundState = "active"
	RoundStateEnded  RoundState = "ended"
)

// RoundPayload is the game-specific JSON state of a round
type RoundPayload map[string]any

// GameRound is the mutually exclusive state of one game instance for a player
type GameRound struct {
	ID        int64        `db:"id"`
	PlayerID  string       `db:"player_id"`
	GameType  GameType     `db:"game_type"`
	Nonce     int64        `db:"nonce"`
	State     RoundState   `db:"state"`
	Payload   RoundPayload `db:"payload"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
	EndedAt   *time.Time   `db:"ended_at"`
}

// InstanceID returns the identifier wagers use to reference this round
func (r *GameRound) InstanceID() string {
	return strconv.FormatInt(r.ID, 10)
}

// IsEnded checks if the round has been closed
func (r *GameRound) IsEnded() bool {
	return r.EndedAt != nil || r.State == RoundStateEnded
}

// AcceptsNonce checks if an update with the given nonce may be written
func (r *GameRound) AcceptsNonce(nonce int64) bool {
	return !r.IsEnded() && nonce >= r.Nonce
}

// IsVoided checks if the round was closed without a game result
func (r *GameRound) IsVoided() bool {
	voided, _ := r.Payload["voided"].(bool)
	return voided
}

// VoidedPayload builds the payload written when a round is closed administratively
func VoidedPayload(reason string) RoundPayload {
	return RoundPayload{"voided": true, "reason": reason}
}
