package queries

import (
	"context"
	"log/slog"
	"strings"

	application "ballotbox/contexts/election-core/voter-roster/application"
	"ballotbox/contexts/election-core/voter-roster/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voter-roster/domain/errors"
	"ballotbox/contexts/election-core/voter-roster/ports"
)

type DirectoryUseCase struct {
	Profiles ports.ProfileRepository
	Logger   *slog.Logger
}

func (uc DirectoryUseCase) GetProfile(ctx context.Context, voterID string) (entities.VoterProfile, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return entities.VoterProfile{}, domainerrors.ErrInvalidProfileInput
	}
	profile, err := uc.Profiles.GetProfile(ctx, voterID)
	if err != nil {
		return entities.VoterProfile{}, err
	}
	if !profile.Enrolled {
		// Withdrawn students stay in storage for audit but are invisible
		// to the rest of the platform.
		return entities.VoterProfile{}, domainerrors.ErrProfileNotFound
	}
	return profile, nil
}

func (uc DirectoryUseCase) ListProfiles(ctx context.Context) ([]entities.VoterProfile, error) {
	logger := application.ResolveLogger(uc.Logger)
	profiles, err := uc.Profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	enrolled := make([]entities.VoterProfile, 0, len(profiles))
	for _, profile := range profiles {
		if profile.Enrolled {
			enrolled = append(enrolled, profile)
		}
	}
	logger.Debug("roster profiles listed",
		"event", "roster_profiles_listed",
		"module", "election-core/voter-roster",
		"layer", "application",
		"enrolled_count", len(enrolled),
	)
	return enrolled, nil
}
