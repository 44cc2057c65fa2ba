package httpadapter

import (
	"context"
	"log/slog"

	"ballotbox/contexts/election-core/voter-roster/application/queries"
	httptransport "ballotbox/contexts/election-core/voter-roster/transport/http"
)

type Handler struct {
	Directory queries.DirectoryUseCase
	Logger    *slog.Logger
}

func (h Handler) GetProfileHandler(ctx context.Context, voterID string) (httptransport.ProfileResponse, error) {
	profile, err := h.Directory.GetProfile(ctx, voterID)
	if err != nil {
		return httptransport.ProfileResponse{}, err
	}
	return httptransport.ProfileResponse{
		VoterID:         profile.VoterID,
		FullName:        profile.FullName,
		Department:      profile.Department,
		ClassLevel:      profile.ClassLevel,
		OrganizationIDs: profile.OrganizationIDs,
	}, nil
}
