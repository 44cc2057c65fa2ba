package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "ballotbox/contexts/election-core/voting-engine/application"
	"ballotbox/contexts/election-core/voting-engine/domain/eligibility"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

// PositionView is one office with its selectable (approved) candidates.
type PositionView struct {
	Position   entities.Position
	Candidates []entities.Candidate
}

// BallotView is everything a voter needs to render and fill a ballot:
// the positions, the voter's already-voted state, and — when a vote
// exists — the recorded ballot, read-only.
type BallotView struct {
	Election      entities.Election
	CurrentStatus entities.CurrentStatus
	Positions     []PositionView
	AlreadyVoted  bool
	Ballot        entities.Ballot
}

type BallotUseCase struct {
	Elections ports.ElectionRepository
	Votes     ports.VoteRepository
	Voters    ports.VoterDirectory
	Clock     ports.Clock
	Logger    *slog.Logger
}

// GetBallot assembles the voter-facing ballot for one election. Ineligible
// voters are denied at retrieval time, before any ballot content is
// exposed.
func (uc BallotUseCase) GetBallot(ctx context.Context, electionID string, voterID string) (BallotView, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID = strings.TrimSpace(electionID)
	voterID = strings.TrimSpace(voterID)
	if electionID == "" || voterID == "" {
		return BallotView{}, domainerrors.ErrInvalidBallotInput
	}

	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return BallotView{}, err
	}
	voter, err := uc.Voters.GetVoter(ctx, voterID)
	if err != nil {
		return BallotView{}, err
	}
	if !eligibility.IsEligible(election, voter) {
		logger.Info("ballot retrieval denied",
			"event", "election_ballot_denied",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
		)
		return BallotView{}, domainerrors.ErrEligibilityDenied
	}

	positions, err := uc.Elections.ListPositions(ctx, electionID)
	if err != nil {
		return BallotView{}, err
	}
	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return BallotView{}, err
	}

	approved := make(map[string][]entities.Candidate)
	for _, candidate := range candidates {
		if candidate.Approved {
			approved[candidate.PositionID] = append(approved[candidate.PositionID], candidate)
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].DisplayOrder == positions[j].DisplayOrder {
			return positions[i].PositionID < positions[j].PositionID
		}
		return positions[i].DisplayOrder < positions[j].DisplayOrder
	})
	views := make([]PositionView, 0, len(positions))
	for _, position := range positions {
		options := approved[position.PositionID]
		sort.Slice(options, func(i, j int) bool {
			return options[i].CandidateID < options[j].CandidateID
		})
		views = append(views, PositionView{Position: position, Candidates: options})
	}

	view := BallotView{
		Election:      election,
		CurrentStatus: election.CurrentStatus(uc.now()),
		Positions:     views,
	}
	if vote, found, err := uc.Votes.GetVoteByVoter(ctx, electionID, voterID); err != nil {
		return BallotView{}, err
	} else if found {
		view.AlreadyVoted = true
		view.Ballot = vote.Ballot
	}
	return view, nil
}

func (uc BallotUseCase) now() time.Time {
	return resolveNow(uc.Clock)
}
