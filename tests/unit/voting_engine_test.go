package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	votingengine "ballotbox/contexts/election-core/voting-engine"
	"ballotbox/contexts/election-core/voting-engine/domain/ballots"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	httptransport "ballotbox/contexts/election-core/voting-engine/transport/http"
)

func seedCouncilElection(module votingengine.Module, now time.Time) {
	module.Store.SetElection(entities.Election{
		ElectionID:   "election-1",
		Title:        "Student Council 2026",
		Method:       entities.MethodSingle,
		AllowAbstain: true,
		IsUniversal:  true,
		StartTime:    now.Add(-2 * time.Hour),
		EndTime:      now.Add(2 * time.Hour),
		Status:       entities.ElectionStatusActive,
	})
	module.Store.SetPosition(entities.Position{
		PositionID:   "pos-president",
		ElectionID:   "election-1",
		Name:         "President",
		Method:       entities.MethodSingle,
		DisplayOrder: 1,
	})
	module.Store.SetCandidate(entities.Candidate{
		CandidateID: "cand-1",
		ElectionID:  "election-1",
		PositionID:  "pos-president",
		DisplayName: "Avery Chen",
		Approved:    true,
	})
	module.Store.SetCandidate(entities.Candidate{
		CandidateID: "cand-2",
		ElectionID:  "election-1",
		PositionID:  "pos-president",
		DisplayName: "Blake Iyer",
		Approved:    true,
	})
	module.Store.SetVoter(entities.Voter{VoterID: "voter-1", Department: "Engineering", ClassLevel: "senior"})
	module.Store.SetVoter(entities.Voter{VoterID: "voter-2", Department: "History", ClassLevel: "junior"})
	module.Store.SetVoter(entities.Voter{VoterID: "voter-3", Department: "Biology", ClassLevel: "senior"})
}

func TestVotingCastReplayAndBallotView(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	seedCouncilElection(module, time.Now().UTC())
	ctx := context.Background()

	request := httptransport.CastVoteRequest{
		Ballot: map[string]httptransport.SelectionDTO{
			"pos-president": {CandidateID: "cand-1"},
		},
	}
	receipt, err := module.Handler.CastVoteHandler(ctx, "election-1", "voter-1", request)
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if len(receipt.Token) != 64 {
		t.Fatalf("expected 64-character receipt token, got %d characters", len(receipt.Token))
	}

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "voter-1", request); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted on replay, got %v", err)
	}

	view, err := module.Handler.GetBallotHandler(ctx, "election-1", "voter-1")
	if err != nil {
		t.Fatalf("get ballot failed: %v", err)
	}
	if !view.AlreadyVoted {
		t.Fatalf("expected already voted ballot view")
	}
	if view.Ballot["pos-president"].CandidateID != "cand-1" {
		t.Fatalf("expected recorded selection in ballot view, got %+v", view.Ballot)
	}
	if len(view.Positions) != 1 || len(view.Positions[0].Candidates) != 2 {
		t.Fatalf("unexpected ballot layout: %+v", view.Positions)
	}
}

func TestVotingRejectsInvalidBallots(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	seedCouncilElection(module, time.Now().UTC())
	ctx := context.Background()

	_, err := module.Handler.CastVoteHandler(ctx, "election-1", "voter-1", httptransport.CastVoteRequest{
		Ballot: map[string]httptransport.SelectionDTO{
			"pos-president": {CandidateID: "cand-unknown"},
		},
	})
	var validationErr *ballots.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Rule != ballots.RuleUnknownCandidate {
		t.Fatalf("expected unknown candidate validation error, got %v", err)
	}

	_, err = module.Handler.CastVoteHandler(ctx, "election-1", "voter-1", httptransport.CastVoteRequest{
		Ballot: map[string]httptransport.SelectionDTO{
			"pos-president": {Abstain: true, CandidateID: "cand-1"},
		},
	})
	if !errors.As(err, &validationErr) || validationErr.Rule != ballots.RuleAbstainWithSelection {
		t.Fatalf("expected abstain_with_selection error, got %v", err)
	}

	if vote, found, _ := module.Store.GetVoteByVoter(ctx, "election-1", "voter-1"); found {
		t.Fatalf("expected no vote stored after rejections, found %+v", vote)
	}
}

func TestVotingEnforcesEligibilityAndWindow(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	now := time.Now().UTC()
	seedCouncilElection(module, now)
	ctx := context.Background()

	module.Store.SetElection(seniorsElection(now))
	module.Store.SetPosition(seniorsPosition())
	module.Store.SetCandidate(seniorsCandidate())

	if _, err := module.Handler.GetBallotHandler(ctx, "election-seniors", "voter-2"); !errors.Is(err, domainerrors.ErrEligibilityDenied) {
		t.Fatalf("expected eligibility denial for junior voter, got %v", err)
	}
	if _, err := module.Handler.GetBallotHandler(ctx, "election-seniors", "voter-1"); err != nil {
		t.Fatalf("expected senior voter ballot, got %v", err)
	}

	request := httptransport.CastVoteRequest{
		Ballot: map[string]httptransport.SelectionDTO{
			"pos-chair": {CandidateID: "cand-chair-1"},
		},
	}
	if _, err := module.Handler.CastVoteHandler(ctx, "election-seniors", "voter-2", request); !errors.Is(err, domainerrors.ErrEligibilityDenied) {
		t.Fatalf("expected eligibility denial on cast, got %v", err)
	}

	module.Store.SetElection(entities.Election{
		ElectionID: "election-closed",
		Title:      "Archived Vote",
		Method:     entities.MethodSingle,
		Status:     entities.ElectionStatusClosed,
	})
	if _, err := module.Handler.CastVoteHandler(ctx, "election-closed", "voter-1", request); !errors.Is(err, domainerrors.ErrElectionNotOpen) {
		t.Fatalf("expected ErrElectionNotOpen for closed election, got %v", err)
	}

	if _, err := module.Handler.CastVoteHandler(ctx, "election-missing", "voter-1", request); !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}
	if _, err := module.Handler.GetBallotHandler(ctx, "election-1", "voter-missing"); !errors.Is(err, domainerrors.ErrVoterNotFound) {
		t.Fatalf("expected ErrVoterNotFound, got %v", err)
	}
}
