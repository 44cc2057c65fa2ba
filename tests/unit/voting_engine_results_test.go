package unit

import (
	"context"
	"testing"
	"time"

	votingengine "ballotbox/contexts/election-core/voting-engine"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	httptransport "ballotbox/contexts/election-core/voting-engine/transport/http"
)

func seniorsElection(now time.Time) entities.Election {
	return entities.Election{
		ElectionID: "election-seniors",
		Title:      "Senior Gift Committee",
		Method:     entities.MethodSingle,
		Eligibility: []entities.EligibilityRule{
			{Kind: entities.EligibilityByClassLevel, Values: []string{"senior"}},
		},
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Status:    entities.ElectionStatusActive,
	}
}

func seniorsPosition() entities.Position {
	return entities.Position{
		PositionID: "pos-chair",
		ElectionID: "election-seniors",
		Name:       "Chair",
		Method:     entities.MethodSingle,
	}
}

func seniorsCandidate() entities.Candidate {
	return entities.Candidate{
		CandidateID: "cand-chair-1",
		ElectionID:  "election-seniors",
		PositionID:  "pos-chair",
		DisplayName: "Casey Okafor",
		Approved:    true,
	}
}

func castSingleChoice(t *testing.T, module votingengine.Module, electionID string, voterID string, positionID string, candidateID string) {
	t.Helper()
	_, err := module.Handler.CastVoteHandler(context.Background(), electionID, voterID, httptransport.CastVoteRequest{
		Ballot: map[string]httptransport.SelectionDTO{
			positionID: {CandidateID: candidateID},
		},
	})
	if err != nil {
		t.Fatalf("cast vote for %s failed: %v", voterID, err)
	}
}

func TestVotingResultsPluralityCount(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	seedCouncilElection(module, time.Now().UTC())

	castSingleChoice(t, module, "election-1", "voter-1", "pos-president", "cand-1")
	castSingleChoice(t, module, "election-1", "voter-2", "pos-president", "cand-1")
	castSingleChoice(t, module, "election-1", "voter-3", "pos-president", "cand-2")

	results, err := module.Handler.ResultsHandler(context.Background(), "election-1")
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	if results.TotalVotes != 3 || results.UniqueVoters != 3 {
		t.Fatalf("unexpected vote totals: %+v", results)
	}
	if len(results.Positions) != 1 {
		t.Fatalf("expected one position result, got %d", len(results.Positions))
	}

	position := results.Positions[0]
	if position.ValidVotes != 3 || position.Abstentions != 0 {
		t.Fatalf("unexpected position counts: %+v", position)
	}
	if len(position.Winners) != 1 || position.Winners[0] != "cand-1" {
		t.Fatalf("expected cand-1 to win, got %v", position.Winners)
	}
	if position.Candidates[0].CandidateID != "cand-1" || position.Candidates[0].Votes != 2 {
		t.Fatalf("unexpected leading tally: %+v", position.Candidates[0])
	}
	if position.Candidates[0].Percentage < 66.6 || position.Candidates[0].Percentage > 66.7 {
		t.Fatalf("unexpected winner percentage: %f", position.Candidates[0].Percentage)
	}
}

func TestVotingResultsServedFromCacheUntilInvalidated(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	seedCouncilElection(module, time.Now().UTC())
	ctx := context.Background()

	castSingleChoice(t, module, "election-1", "voter-1", "pos-president", "cand-1")
	first, err := module.Handler.ResultsHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	if first.TotalVotes != 1 {
		t.Fatalf("expected one vote, got %d", first.TotalVotes)
	}

	castSingleChoice(t, module, "election-1", "voter-2", "pos-president", "cand-2")
	cached, err := module.Handler.ResultsHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("cached results read failed: %v", err)
	}
	if cached.TotalVotes != 1 {
		t.Fatalf("expected cached result before invalidation, got %d votes", cached.TotalVotes)
	}

	if err := module.Store.InvalidateResult(ctx, "election-1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	fresh, err := module.Handler.ResultsHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("fresh results read failed: %v", err)
	}
	if fresh.TotalVotes != 2 {
		t.Fatalf("expected recount after invalidation, got %d votes", fresh.TotalVotes)
	}
}

func TestVotingTurnoutUndefinedWithoutEligibleVoters(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	now := time.Now().UTC()
	seedCouncilElection(module, now)

	module.Store.SetElection(entities.Election{
		ElectionID: "election-debate",
		Title:      "Debate Society Board",
		Method:     entities.MethodSingle,
		Eligibility: []entities.EligibilityRule{
			{Kind: entities.EligibilityByOrganization, Values: []string{"org-debate"}},
		},
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Status:    entities.ElectionStatusActive,
	})

	turnout, err := module.Handler.TurnoutHandler(context.Background(), "election-debate", false)
	if err != nil {
		t.Fatalf("compute turnout failed: %v", err)
	}
	if turnout.TotalEligible != 0 || turnout.TotalVoted != 0 {
		t.Fatalf("expected empty turnout counts, got %+v", turnout)
	}
	if turnout.ParticipationRate != 0 {
		t.Fatalf("expected zero participation rate without eligible voters, got %f", turnout.ParticipationRate)
	}
	if turnout.GoalStatus != "undefined" {
		t.Fatalf("expected undefined goal status, got %s", turnout.GoalStatus)
	}
}

func TestVotingTurnoutWithBreakdown(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	now := time.Now().UTC()
	seedCouncilElection(module, now)
	ctx := context.Background()

	castSingleChoice(t, module, "election-1", "voter-1", "pos-president", "cand-1")
	castSingleChoice(t, module, "election-1", "voter-2", "pos-president", "cand-2")

	turnout, err := module.Handler.TurnoutHandler(ctx, "election-1", false)
	if err != nil {
		t.Fatalf("compute turnout failed: %v", err)
	}
	if turnout.TotalEligible != 3 || turnout.TotalVoted != 2 {
		t.Fatalf("unexpected turnout counts: %+v", turnout)
	}
	if turnout.ParticipationRate < 66.6 || turnout.ParticipationRate > 66.7 {
		t.Fatalf("unexpected participation rate: %f", turnout.ParticipationRate)
	}
	if turnout.GoalStatus != "below_goal" {
		t.Fatalf("expected goal status below_goal, got %s", turnout.GoalStatus)
	}
	if turnout.Breakdown != nil {
		t.Fatalf("expected no breakdown for universal election, got %+v", turnout.Breakdown)
	}

	module.Store.SetElection(seniorsElection(now))
	module.Store.SetPosition(seniorsPosition())
	module.Store.SetCandidate(seniorsCandidate())
	castSingleChoice(t, module, "election-seniors", "voter-1", "pos-chair", "cand-chair-1")

	scoped, err := module.Handler.TurnoutHandler(ctx, "election-seniors", true)
	if err != nil {
		t.Fatalf("compute scoped turnout failed: %v", err)
	}
	if scoped.TotalEligible != 2 || scoped.TotalVoted != 1 {
		t.Fatalf("unexpected scoped turnout: %+v", scoped)
	}
	if len(scoped.Breakdown) != 1 {
		t.Fatalf("expected one breakdown group, got %+v", scoped.Breakdown)
	}
	group := scoped.Breakdown[0]
	if group.Kind != "class_level" || group.Value != "senior" {
		t.Fatalf("unexpected breakdown group: %+v", group)
	}
	if group.TotalEligible != 2 || group.TotalVoted != 1 {
		t.Fatalf("unexpected breakdown counts: %+v", group)
	}
}
