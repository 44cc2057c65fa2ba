package ballots

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
)

func councilElection() (entities.Election, []entities.Position, []entities.Candidate) {
	election := entities.Election{
		ElectionID:   "election-1",
		Method:       entities.MethodSingle,
		AllowAbstain: true,
	}
	positions := []entities.Position{
		{PositionID: "pos-president", ElectionID: "election-1", Name: "President", Method: entities.MethodSingle, DisplayOrder: 1},
		{PositionID: "pos-senate", ElectionID: "election-1", Name: "Senate", Method: entities.MethodMultiple, MaxSelection: 2, DisplayOrder: 2},
		{PositionID: "pos-treasurer", ElectionID: "election-1", Name: "Treasurer", Method: entities.MethodRanked, RankingLevels: 3, DisplayOrder: 3},
	}
	candidates := []entities.Candidate{
		{CandidateID: "cand-p1", PositionID: "pos-president", Approved: true},
		{CandidateID: "cand-p2", PositionID: "pos-president", Approved: true},
		{CandidateID: "cand-p3", PositionID: "pos-president", Approved: false},
		{CandidateID: "cand-s1", PositionID: "pos-senate", Approved: true},
		{CandidateID: "cand-s2", PositionID: "pos-senate", Approved: true},
		{CandidateID: "cand-s3", PositionID: "pos-senate", Approved: true},
		{CandidateID: "cand-t1", PositionID: "pos-treasurer", Approved: true},
		{CandidateID: "cand-t2", PositionID: "pos-treasurer", Approved: true},
		{CandidateID: "cand-t3", PositionID: "pos-treasurer", Approved: true},
	}
	return election, positions, candidates
}

func fullBallot() entities.Ballot {
	return entities.Ballot{
		"pos-president": entities.SingleChoice{CandidateID: "cand-p1"},
		"pos-senate":    entities.MultipleChoice{CandidateIDs: []string{"cand-s1", "cand-s2"}},
		"pos-treasurer": entities.RankedChoice{Rankings: []entities.Ranking{
			{CandidateID: "cand-t1", Rank: 1},
			{CandidateID: "cand-t2", Rank: 2},
		}},
	}
}

func requireRule(t *testing.T, err error, rule Rule) {
	t.Helper()
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, rule, validationErr.Rule)
}

func TestValidateAcceptsCompleteBallot(t *testing.T) {
	election, positions, candidates := councilElection()
	require.NoError(t, Validate(election, positions, candidates, fullBallot()))
}

func TestValidateRejectsIncompleteAndUnknownPositions(t *testing.T) {
	election, positions, candidates := councilElection()

	partial := fullBallot()
	delete(partial, "pos-treasurer")
	requireRule(t, Validate(election, positions, candidates, partial), RuleMissingPosition)

	stray := fullBallot()
	stray["pos-ghost"] = entities.SingleChoice{CandidateID: "cand-p1"}
	requireRule(t, Validate(election, positions, candidates, stray), RuleUnknownPosition)
}

func TestValidateCandidateChecks(t *testing.T) {
	election, positions, candidates := councilElection()

	unknown := fullBallot()
	unknown["pos-president"] = entities.SingleChoice{CandidateID: "cand-nope"}
	requireRule(t, Validate(election, positions, candidates, unknown), RuleUnknownCandidate)

	wrongPosition := fullBallot()
	wrongPosition["pos-president"] = entities.SingleChoice{CandidateID: "cand-s1"}
	requireRule(t, Validate(election, positions, candidates, wrongPosition), RuleWrongPositionCandidate)

	unapproved := fullBallot()
	unapproved["pos-president"] = entities.SingleChoice{CandidateID: "cand-p3"}
	requireRule(t, Validate(election, positions, candidates, unapproved), RuleUnapprovedCandidate)
}

func TestValidateMultipleSelectionLimits(t *testing.T) {
	election, positions, candidates := councilElection()

	over := fullBallot()
	over["pos-senate"] = entities.MultipleChoice{CandidateIDs: []string{"cand-s1", "cand-s2", "cand-s3"}}
	requireRule(t, Validate(election, positions, candidates, over), RuleTooManySelections)

	duplicate := fullBallot()
	duplicate["pos-senate"] = entities.MultipleChoice{CandidateIDs: []string{"cand-s1", "cand-s1"}}
	requireRule(t, Validate(election, positions, candidates, duplicate), RuleDuplicateCandidate)
}

func TestValidateRankedRules(t *testing.T) {
	election, positions, candidates := councilElection()

	outOfRange := fullBallot()
	outOfRange["pos-treasurer"] = entities.RankedChoice{Rankings: []entities.Ranking{
		{CandidateID: "cand-t1", Rank: 4},
	}}
	requireRule(t, Validate(election, positions, candidates, outOfRange), RuleRankOutOfRange)

	duplicateRank := fullBallot()
	duplicateRank["pos-treasurer"] = entities.RankedChoice{Rankings: []entities.Ranking{
		{CandidateID: "cand-t1", Rank: 1},
		{CandidateID: "cand-t2", Rank: 1},
	}}
	requireRule(t, Validate(election, positions, candidates, duplicateRank), RuleDuplicateRank)

	gapped := fullBallot()
	gapped["pos-treasurer"] = entities.RankedChoice{Rankings: []entities.Ranking{
		{CandidateID: "cand-t1", Rank: 1},
		{CandidateID: "cand-t2", Rank: 3},
	}}
	requireRule(t, Validate(election, positions, candidates, gapped), RuleRankNotContiguous)

	methodMismatch := fullBallot()
	methodMismatch["pos-treasurer"] = entities.SingleChoice{CandidateID: "cand-t1"}
	requireRule(t, Validate(election, positions, candidates, methodMismatch), RuleMethodMismatch)
}

func TestValidateAbstainAndWriteIn(t *testing.T) {
	election, positions, candidates := councilElection()

	abstained := fullBallot()
	abstained["pos-president"] = entities.Abstain{}
	require.NoError(t, Validate(election, positions, candidates, abstained))

	election.AllowAbstain = false
	requireRule(t, Validate(election, positions, candidates, abstained), RuleAbstainNotAllowed)

	writeIn := fullBallot()
	writeIn["pos-president"] = entities.SingleChoice{WriteIn: "Dana Scholar"}
	requireRule(t, Validate(election, positions, candidates, writeIn), RuleWriteInNotAllowed)

	election.AllowWriteIn = true
	require.NoError(t, Validate(election, positions, candidates, writeIn))
}

func TestValidateReferendumBallots(t *testing.T) {
	election := entities.Election{
		ElectionID:   "election-ref",
		Method:       entities.MethodReferendum,
		AllowAbstain: false,
	}

	ok := entities.Ballot{"election-ref": entities.ReferendumChoice{Approve: true}}
	require.NoError(t, Validate(election, nil, nil, ok))

	missing := entities.Ballot{}
	requireRule(t, Validate(election, nil, nil, missing), RuleMissingChoice)

	extra := entities.Ballot{
		"election-ref": entities.ReferendumChoice{Approve: true},
		"pos-other":    entities.ReferendumChoice{Approve: false},
	}
	requireRule(t, Validate(election, nil, nil, extra), RuleMissingChoice)

	abstain := entities.Ballot{"election-ref": entities.Abstain{}}
	requireRule(t, Validate(election, nil, nil, abstain), RuleAbstainNotAllowed)

	election.AllowAbstain = true
	require.NoError(t, Validate(election, nil, nil, abstain))
}
