package httpadapter

import (
	"context"
	"log/slog"

	"ballotbox/contexts/election-core/voting-engine/application/commands"
	"ballotbox/contexts/election-core/voting-engine/application/queries"
	"ballotbox/contexts/election-core/voting-engine/domain/ballots"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	httptransport "ballotbox/contexts/election-core/voting-engine/transport/http"
)

type Handler struct {
	CastVotes commands.CastVoteUseCase
	Ballots   queries.BallotUseCase
	Results   queries.ResultsUseCase
	Turnout   queries.TurnoutUseCase
	Logger    *slog.Logger
}

func (h Handler) GetBallotHandler(
	ctx context.Context,
	electionID string,
	voterID string,
) (httptransport.BallotResponse, error) {
	view, err := h.Ballots.GetBallot(ctx, electionID, voterID)
	if err != nil {
		return httptransport.BallotResponse{}, err
	}

	positions := make([]httptransport.BallotPosition, 0, len(view.Positions))
	for _, position := range view.Positions {
		options := make([]httptransport.CandidateOption, 0, len(position.Candidates))
		for _, candidate := range position.Candidates {
			options = append(options, httptransport.CandidateOption{
				CandidateID: candidate.CandidateID,
				DisplayName: candidate.DisplayName,
			})
		}
		positions = append(positions, httptransport.BallotPosition{
			PositionID:    position.Position.PositionID,
			Name:          position.Position.Name,
			Method:        string(position.Position.Method),
			MaxSelection:  position.Position.EffectiveMaxSelection(view.Election),
			RankingLevels: position.Position.EffectiveRankingLevels(view.Election),
			AllowAbstain:  view.Election.AllowAbstain || position.Position.AllowAbstain,
			Candidates:    options,
		})
	}

	return httptransport.BallotResponse{
		ElectionID:    view.Election.ElectionID,
		Title:         view.Election.Title,
		Method:        string(view.Election.Method),
		CurrentStatus: string(view.CurrentStatus),
		StartTime:     view.Election.StartTime,
		EndTime:       view.Election.EndTime,
		AllowWriteIn:  view.Election.AllowWriteIn,
		AllowAbstain:  view.Election.AllowAbstain,
		Positions:     positions,
		AlreadyVoted:  view.AlreadyVoted,
		Ballot:        ballotToDTO(view.Ballot),
	}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	electionID string,
	voterID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	ballot, err := decodeBallot(req.Ballot)
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	receipt, err := h.CastVotes.CastVote(ctx, commands.CastVoteCommand{
		ElectionID: electionID,
		VoterID:    voterID,
		Ballot:     ballot,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		ElectionID: receipt.ElectionID,
		Token:      receipt.Token,
		VotedAt:    receipt.VotedAt,
	}, nil
}

func (h Handler) ResultsHandler(ctx context.Context, electionID string) (httptransport.ResultsResponse, error) {
	result, err := h.Results.ComputeResults(ctx, electionID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}

	positions := make([]httptransport.PositionResultDTO, 0, len(result.Positions))
	for _, position := range result.Positions {
		positions = append(positions, positionResultToDTO(position))
	}
	return httptransport.ResultsResponse{
		ElectionID:   result.ElectionID,
		Title:        result.Title,
		Method:       string(result.Method),
		Status:       string(result.Status),
		TotalVotes:   result.TotalVotes,
		UniqueVoters: result.UniqueVoters,
		Positions:    positions,
		ComputedAt:   result.ComputedAt,
	}, nil
}

func (h Handler) TurnoutHandler(
	ctx context.Context,
	electionID string,
	withBreakdown bool,
) (httptransport.TurnoutResponse, error) {
	stats, err := h.Turnout.ComputeTurnout(ctx, electionID, withBreakdown)
	if err != nil {
		return httptransport.TurnoutResponse{}, err
	}

	breakdown := make([]httptransport.GroupTurnoutDTO, 0, len(stats.Breakdown))
	for _, group := range stats.Breakdown {
		breakdown = append(breakdown, httptransport.GroupTurnoutDTO{
			Kind:          string(group.Kind),
			Value:         group.Value,
			TotalEligible: group.TotalEligible,
			TotalVoted:    group.TotalVoted,
			Rate:          group.Rate,
		})
	}
	if len(breakdown) == 0 {
		breakdown = nil
	}
	return httptransport.TurnoutResponse{
		ElectionID:        stats.ElectionID,
		TotalEligible:     stats.TotalEligible,
		TotalVoted:        stats.TotalVoted,
		ParticipationRate: stats.ParticipationRate,
		ParticipationGoal: stats.ParticipationGoal,
		GoalStatus:        string(stats.GoalStatus),
		Breakdown:         breakdown,
	}, nil
}

func positionResultToDTO(position tally.PositionResult) httptransport.PositionResultDTO {
	candidates := make([]httptransport.CandidateResult, 0, len(position.Candidates))
	for _, candidate := range position.Candidates {
		candidates = append(candidates, httptransport.CandidateResult{
			CandidateID: candidate.CandidateID,
			DisplayName: candidate.DisplayName,
			WriteIn:     candidate.WriteIn,
			Votes:       candidate.Votes,
			Percentage:  candidate.Percentage,
			Rank:        candidate.Rank,
			Winner:      candidate.Winner,
		})
	}
	if len(candidates) == 0 {
		candidates = nil
	}
	rounds := make([]httptransport.RunoffRoundResult, 0, len(position.Rounds))
	for _, round := range position.Rounds {
		rounds = append(rounds, httptransport.RunoffRoundResult{
			Number:       round.Number,
			Counts:       round.Counts,
			ValidBallots: round.ValidBallots,
			Exhausted:    round.Exhausted,
			Eliminated:   round.Eliminated,
		})
	}
	if len(rounds) == 0 {
		rounds = nil
	}
	return httptransport.PositionResultDTO{
		PositionID:   position.PositionID,
		Name:         position.Name,
		Method:       string(position.Method),
		TotalBallots: position.TotalBallots,
		ValidVotes:   position.ValidVotes,
		Abstentions:  position.Abstentions,
		Candidates:   candidates,
		Winners:      position.Winners,
		Rounds:       rounds,
		YesVotes:     position.YesVotes,
		NoVotes:      position.NoVotes,
		Tied:         position.Tied,
		Flags:        position.Flags,
	}
}

// decodeBallot maps wire selections onto the sealed selection types. A DTO
// populating more than one selection shape is rejected here, before any
// domain validation runs.
func decodeBallot(raw map[string]httptransport.SelectionDTO) (entities.Ballot, error) {
	ballot := make(entities.Ballot, len(raw))
	for positionID, dto := range raw {
		selection, err := decodeSelection(positionID, dto)
		if err != nil {
			return nil, err
		}
		ballot[positionID] = selection
	}
	return ballot, nil
}

func decodeSelection(positionID string, dto httptransport.SelectionDTO) (entities.Selection, error) {
	shapes := 0
	if dto.CandidateID != "" || dto.WriteIn != "" {
		shapes++
	}
	if len(dto.CandidateIDs) > 0 {
		shapes++
	}
	if len(dto.Rankings) > 0 {
		shapes++
	}
	if dto.Choice != nil {
		shapes++
	}

	if dto.Abstain {
		if shapes > 0 {
			return nil, &ballots.ValidationError{
				PositionID: positionID,
				Rule:       ballots.RuleAbstainWithSelection,
				Message:    "abstain cannot be combined with a selection",
			}
		}
		return entities.Abstain{}, nil
	}
	if shapes == 0 {
		return nil, &ballots.ValidationError{
			PositionID: positionID,
			Rule:       ballots.RuleMissingSelection,
			Message:    "selection entry is empty",
		}
	}
	if shapes > 1 {
		return nil, &ballots.ValidationError{
			PositionID: positionID,
			Rule:       ballots.RuleAmbiguousSelection,
			Message:    "selection entry mixes voting method shapes",
		}
	}

	switch {
	case dto.CandidateID != "" || dto.WriteIn != "":
		return entities.SingleChoice{CandidateID: dto.CandidateID, WriteIn: dto.WriteIn}, nil
	case len(dto.CandidateIDs) > 0:
		return entities.MultipleChoice{CandidateIDs: dto.CandidateIDs}, nil
	case len(dto.Rankings) > 0:
		rankings := make([]entities.Ranking, 0, len(dto.Rankings))
		for _, ranking := range dto.Rankings {
			rankings = append(rankings, entities.Ranking{
				CandidateID: ranking.CandidateID,
				Rank:        ranking.Rank,
			})
		}
		return entities.RankedChoice{Rankings: rankings}, nil
	default:
		return entities.ReferendumChoice{Approve: *dto.Choice}, nil
	}
}

func ballotToDTO(ballot entities.Ballot) map[string]httptransport.SelectionDTO {
	if len(ballot) == 0 {
		return nil
	}
	out := make(map[string]httptransport.SelectionDTO, len(ballot))
	for positionID, selection := range ballot {
		out[positionID] = selectionToDTO(selection)
	}
	return out
}

func selectionToDTO(selection entities.Selection) httptransport.SelectionDTO {
	switch s := selection.(type) {
	case entities.SingleChoice:
		return httptransport.SelectionDTO{CandidateID: s.CandidateID, WriteIn: s.WriteIn}
	case entities.MultipleChoice:
		return httptransport.SelectionDTO{CandidateIDs: s.CandidateIDs}
	case entities.RankedChoice:
		rankings := make([]httptransport.RankingDTO, 0, len(s.Rankings))
		for _, ranking := range s.Rankings {
			rankings = append(rankings, httptransport.RankingDTO{
				CandidateID: ranking.CandidateID,
				Rank:        ranking.Rank,
			})
		}
		return httptransport.SelectionDTO{Rankings: rankings}
	case entities.ReferendumChoice:
		approve := s.Approve
		return httptransport.SelectionDTO{Choice: &approve}
	default:
		return httptransport.SelectionDTO{Abstain: true}
	}
}
