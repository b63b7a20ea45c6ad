package entities

// GameType identifies the game a wager or round belongs to
type GameType string

const (
	GameTypeDice     GameType = "dice"
	GameTypeRoulette GameType = "roulette"
	GameTypeMines    GameType = "mines"
	GameTypeEvent    GameType = "event"
)

// AllGameTypes lists every game type the engine accepts
var AllGameTypes = []GameType{GameTypeDice, GameTypeRoulette, GameTypeMines, GameTypeEvent}

// IsValid checks if the game type is one the engine knows about
func (g GameType) IsValid() bool {
	for _, known := range AllGameTypes {
		if g == known {
			return true
		}
	}
	return false
}

// IsSynchronous reports whether the outcome is decided by the engine
// rather than by an external event result
func (g GameType) IsSynchronous() bool {
	return g != GameTypeEvent
}
