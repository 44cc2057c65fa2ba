package queries

import (
	"time"

	"ballotbox/contexts/election-core/voting-engine/ports"
)

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
