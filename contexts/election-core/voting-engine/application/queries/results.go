package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "ballotbox/contexts/election-core/voting-engine/application"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

// ResultsUseCase computes per-position results for an election. Results
// are a pure function of stored data, so they are cached and invalidated
// by new-vote events; staleness is bounded by CacheTTL.
type ResultsUseCase struct {
	Elections ports.ElectionRepository
	Votes     ports.VoteRepository
	Cache     ports.ResultsCache
	Clock     ports.Clock
	TieBreak  tally.TieBreak
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// ComputeResults tallies every position of the election with the counting
// algorithm its voting method requires. Data-integrity problems (a vote
// referencing a candidate that no longer exists) flag the position and are
// logged; they never fail the whole response.
func (uc ResultsUseCase) ComputeResults(ctx context.Context, electionID string) (tally.ElectionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID = strings.TrimSpace(electionID)
	now := resolveNow(uc.Clock)

	if uc.Cache != nil {
		if cached, found, err := uc.Cache.GetResult(ctx, electionID, now); err == nil && found {
			return cached, nil
		}
	}

	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return tally.ElectionResult{}, err
	}
	votes, err := uc.Votes.ListVotesByElection(ctx, electionID)
	if err != nil {
		return tally.ElectionResult{}, err
	}

	result := tally.ElectionResult{
		ElectionID:   election.ElectionID,
		Title:        election.Title,
		Method:       election.Method,
		Status:       election.CurrentStatus(now),
		TotalVotes:   len(votes),
		UniqueVoters: countUniqueVoters(votes),
		ComputedAt:   now,
	}

	if election.Method == entities.MethodReferendum {
		selections := make([]entities.Selection, 0, len(votes))
		for _, vote := range votes {
			if selection, ok := vote.Ballot[election.ElectionID]; ok {
				selections = append(selections, selection)
			}
		}
		result.Positions = []tally.PositionResult{tally.Referendum(election, selections)}
		uc.cache(ctx, electionID, result, now)
		return result, nil
	}

	positions, err := uc.Elections.ListPositions(ctx, electionID)
	if err != nil {
		return tally.ElectionResult{}, err
	}
	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return tally.ElectionResult{}, err
	}

	knownCandidates := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		knownCandidates[candidate.CandidateID] = true
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].DisplayOrder == positions[j].DisplayOrder {
			return positions[i].PositionID < positions[j].PositionID
		}
		return positions[i].DisplayOrder < positions[j].DisplayOrder
	})

	policy := uc.TieBreak
	if policy == "" {
		policy = tally.TieBreakAlphabetical
	}

	for _, position := range positions {
		selections := make([]entities.Selection, 0, len(votes))
		integrityBroken := false
		for _, vote := range votes {
			selection, ok := vote.Ballot[position.PositionID]
			if !ok {
				continue
			}
			if missing := referencedMissingCandidate(selection, knownCandidates); missing != "" {
				integrityBroken = true
				logger.Warn("vote references a missing candidate",
					"event", "election_results_missing_candidate",
					"module", "election-core/voting-engine",
					"layer", "application",
					"election_id", electionID,
					"position_id", position.PositionID,
					"candidate_id", missing,
				)
			}
			selections = append(selections, selection)
		}

		var positionResult tally.PositionResult
		switch position.Method {
		case entities.MethodRanked:
			positionResult = tally.InstantRunoff(position, candidates, selections, policy)
		case entities.MethodMultiple:
			positionResult = tally.Plurality(election, position, candidates, selections, position.EffectiveWinnerCount(), policy)
		default:
			positionResult = tally.Plurality(election, position, candidates, selections, 1, policy)
		}
		if integrityBroken {
			positionResult.Flags = append(positionResult.Flags, "missing_candidate")
		}
		result.Positions = append(result.Positions, positionResult)
	}

	uc.cache(ctx, electionID, result, now)
	return result, nil
}

func (uc ResultsUseCase) cache(ctx context.Context, electionID string, result tally.ElectionResult, now time.Time) {
	if uc.Cache == nil {
		return
	}
	ttl := uc.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if err := uc.Cache.PutResult(ctx, electionID, result, now.Add(ttl)); err != nil {
		application.ResolveLogger(uc.Logger).Warn("results cache write failed",
			"event", "election_results_cache_put_failed",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
	}
}

func countUniqueVoters(votes []entities.Vote) int {
	seen := make(map[string]struct{}, len(votes))
	for _, vote := range votes {
		seen[vote.VoterID] = struct{}{}
	}
	return len(seen)
}

func referencedMissingCandidate(selection entities.Selection, known map[string]bool) string {
	switch s := selection.(type) {
	case entities.SingleChoice:
		if s.CandidateID != "" && !known[s.CandidateID] {
			return s.CandidateID
		}
	case entities.MultipleChoice:
		for _, candidateID := range s.CandidateIDs {
			if !known[candidateID] {
				return candidateID
			}
		}
	case entities.RankedChoice:
		for _, ranking := range s.Rankings {
			if !known[ranking.CandidateID] {
				return ranking.CandidateID
			}
		}
	}
	return ""
}
