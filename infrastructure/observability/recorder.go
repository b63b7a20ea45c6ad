package observability

import (
	"context"

	"gambler/settlement/domain/events"
)

// RecordEvent updates the domain counters for a published event.
// It is registered as a local handler on the event publisher.
func RecordEvent(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.WagerPlacedEvent:
		WagersPlaced.WithLabelValues(e.GameType).Inc()
	case events.WagerResolvedEvent:
		WagersSettled.WithLabelValues(e.GameType, "resolved").Inc()
		StakeVolume.WithLabelValues(e.GameType).Add(float64(e.StakeAmount))
		PayoutVolume.WithLabelValues(e.GameType).Add(float64(e.PayoutAmount))
	case events.WagerFailedEvent:
		WagersSettled.WithLabelValues(e.GameType, "failed").Inc()
	case events.RoundEndedEvent:
		result := "ended"
		if e.Voided {
			result = "voided"
		}
		RoundsEnded.WithLabelValues(e.GameType, result).Inc()
	}
	return nil
}
