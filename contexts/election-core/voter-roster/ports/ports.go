package ports

import (
	"context"

	"ballotbox/contexts/election-core/voter-roster/domain/entities"
)

// ProfileRepository reads enrolled voter profiles. The roster module is
// read-only inside this service; enrollment is managed upstream.
type ProfileRepository interface {
	GetProfile(ctx context.Context, voterID string) (entities.VoterProfile, error)
	ListProfiles(ctx context.Context) ([]entities.VoterProfile, error)
}
