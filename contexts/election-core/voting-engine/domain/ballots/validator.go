// Package ballots validates a submitted ballot against an election's
// position definitions. The validator performs no I/O; callers supply the
// position and candidate configuration.
package ballots

import (
	"fmt"
	"sort"
	"strings"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
)

type Rule string

const (
	RuleUnknownPosition        Rule = "unknown_position"
	RuleMissingPosition        Rule = "missing_position"
	RuleMissingSelection       Rule = "missing_selection"
	RuleMethodMismatch         Rule = "method_mismatch"
	RuleTooManySelections      Rule = "too_many_selections"
	RuleDuplicateCandidate     Rule = "duplicate_candidate"
	RuleUnknownCandidate       Rule = "unknown_candidate"
	RuleUnapprovedCandidate    Rule = "unapproved_candidate"
	RuleWrongPositionCandidate Rule = "wrong_position_candidate"
	RuleDuplicateRank          Rule = "duplicate_rank"
	RuleRankOutOfRange         Rule = "rank_out_of_range"
	RuleRankNotContiguous      Rule = "rank_not_contiguous"
	RuleAbstainWithSelection   Rule = "abstain_with_selection"
	RuleAbstainNotAllowed      Rule = "abstain_not_allowed"
	RuleWriteInNotAllowed      Rule = "write_in_not_allowed"
	RuleMissingChoice          Rule = "missing_choice"
	RuleAmbiguousSelection     Rule = "ambiguous_selection"
)

// ValidationError identifies the offending position and the rule broken.
// It is returned to the caller and never retried.
type ValidationError struct {
	PositionID string
	Rule       Rule
	Message    string
}

func (e *ValidationError) Error() string {
	if e.PositionID == "" {
		return fmt.Sprintf("ballot invalid: %s: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("ballot invalid at position %s: %s: %s", e.PositionID, e.Rule, e.Message)
}

func newError(positionID string, rule Rule, message string) *ValidationError {
	return &ValidationError{PositionID: positionID, Rule: rule, Message: message}
}

// Validate checks a full ballot against the election configuration. A
// ballot is all-or-nothing: every position must carry a selection (or an
// explicit abstain where allowed), and no entry may target an unknown
// position.
func Validate(
	election entities.Election,
	positions []entities.Position,
	candidates []entities.Candidate,
	ballot entities.Ballot,
) error {
	if election.Method == entities.MethodReferendum {
		return validateReferendum(election, ballot)
	}

	known := make(map[string]entities.Position, len(positions))
	for _, position := range positions {
		known[position.PositionID] = position
	}
	for positionID := range ballot {
		if _, ok := known[positionID]; !ok {
			return newError(positionID, RuleUnknownPosition, "position does not belong to this election")
		}
	}

	// Candidates are indexed election-wide so a selection pointing at a
	// real candidate from another position fails with the precise rule.
	byID := make(map[string]entities.Candidate, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.CandidateID] = candidate
	}

	ordered := append([]entities.Position(nil), positions...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].DisplayOrder == ordered[j].DisplayOrder {
			return ordered[i].PositionID < ordered[j].PositionID
		}
		return ordered[i].DisplayOrder < ordered[j].DisplayOrder
	})

	for _, position := range ordered {
		selection, ok := ballot[position.PositionID]
		if !ok {
			return newError(position.PositionID, RuleMissingPosition, "ballot carries no selection for this position")
		}
		if err := validatePosition(election, position, byID, selection); err != nil {
			return err
		}
	}
	return nil
}

func validatePosition(
	election entities.Election,
	position entities.Position,
	candidates map[string]entities.Candidate,
	selection entities.Selection,
) error {
	if _, ok := selection.(entities.Abstain); ok {
		if !position.AllowAbstain && !election.AllowAbstain {
			return newError(position.PositionID, RuleAbstainNotAllowed, "this position does not accept abstentions")
		}
		return nil
	}

	switch position.Method {
	case entities.MethodSingle:
		return validateSingle(election, position, candidates, selection)
	case entities.MethodMultiple:
		return validateMultiple(election, position, candidates, selection)
	case entities.MethodRanked:
		return validateRanked(election, position, candidates, selection)
	default:
		return newError(position.PositionID, RuleMethodMismatch,
			fmt.Sprintf("position method %q does not accept ballots", position.Method))
	}
}

func validateSingle(
	election entities.Election,
	position entities.Position,
	candidates map[string]entities.Candidate,
	selection entities.Selection,
) error {
	choice, ok := selection.(entities.SingleChoice)
	if !ok {
		return newError(position.PositionID, RuleMethodMismatch,
			fmt.Sprintf("expected a single selection, got %s", selection.Kind()))
	}
	candidateID := strings.TrimSpace(choice.CandidateID)
	writeIn := strings.TrimSpace(choice.WriteIn)
	if candidateID == "" && writeIn == "" {
		return newError(position.PositionID, RuleMissingSelection, "a candidate must be selected")
	}
	if candidateID != "" && writeIn != "" {
		return newError(position.PositionID, RuleAmbiguousSelection, "candidate selection and write-in are mutually exclusive")
	}
	if writeIn != "" {
		if !election.AllowWriteIn {
			return newError(position.PositionID, RuleWriteInNotAllowed, "this election does not accept write-in candidates")
		}
		return nil
	}
	return checkCandidate(position, candidates, candidateID)
}

func validateMultiple(
	election entities.Election,
	position entities.Position,
	candidates map[string]entities.Candidate,
	selection entities.Selection,
) error {
	choice, ok := selection.(entities.MultipleChoice)
	if !ok {
		return newError(position.PositionID, RuleMethodMismatch,
			fmt.Sprintf("expected a multiple selection, got %s", selection.Kind()))
	}
	if len(choice.CandidateIDs) == 0 {
		return newError(position.PositionID, RuleMissingSelection, "at least one candidate must be selected")
	}
	maxSelection := position.EffectiveMaxSelection(election)
	if len(choice.CandidateIDs) > maxSelection {
		return newError(position.PositionID, RuleTooManySelections,
			fmt.Sprintf("too many selections: %d exceeds the cap of %d", len(choice.CandidateIDs), maxSelection))
	}
	seen := make(map[string]struct{}, len(choice.CandidateIDs))
	for _, raw := range choice.CandidateIDs {
		candidateID := strings.TrimSpace(raw)
		if _, dup := seen[candidateID]; dup {
			return newError(position.PositionID, RuleDuplicateCandidate,
				fmt.Sprintf("candidate %s is selected more than once", candidateID))
		}
		seen[candidateID] = struct{}{}
		if err := checkCandidate(position, candidates, candidateID); err != nil {
			return err
		}
	}
	return nil
}

func validateRanked(
	election entities.Election,
	position entities.Position,
	candidates map[string]entities.Candidate,
	selection entities.Selection,
) error {
	choice, ok := selection.(entities.RankedChoice)
	if !ok {
		return newError(position.PositionID, RuleMethodMismatch,
			fmt.Sprintf("expected a ranked selection, got %s", selection.Kind()))
	}
	if len(choice.Rankings) == 0 {
		return newError(position.PositionID, RuleMissingSelection, "at least one candidate must be ranked")
	}
	levels := position.EffectiveRankingLevels(election)
	if len(choice.Rankings) > levels {
		return newError(position.PositionID, RuleRankOutOfRange,
			fmt.Sprintf("%d candidates ranked but only %d ranking levels are configured", len(choice.Rankings), levels))
	}

	seenCandidates := make(map[string]struct{}, len(choice.Rankings))
	seenRanks := make(map[int]struct{}, len(choice.Rankings))
	for _, ranking := range choice.Rankings {
		candidateID := strings.TrimSpace(ranking.CandidateID)
		if _, dup := seenCandidates[candidateID]; dup {
			return newError(position.PositionID, RuleDuplicateCandidate,
				fmt.Sprintf("candidate %s is ranked more than once", candidateID))
		}
		seenCandidates[candidateID] = struct{}{}
		if ranking.Rank < 1 || ranking.Rank > levels {
			return newError(position.PositionID, RuleRankOutOfRange,
				fmt.Sprintf("rank %d is outside 1..%d", ranking.Rank, levels))
		}
		if _, dup := seenRanks[ranking.Rank]; dup {
			return newError(position.PositionID, RuleDuplicateRank,
				fmt.Sprintf("rank %d is assigned more than once", ranking.Rank))
		}
		seenRanks[ranking.Rank] = struct{}{}
		if err := checkCandidate(position, candidates, candidateID); err != nil {
			return err
		}
	}
	// A partial ranking is permitted, but the used ranks must form the
	// contiguous prefix 1..k.
	for rank := 1; rank <= len(choice.Rankings); rank++ {
		if _, ok := seenRanks[rank]; !ok {
			return newError(position.PositionID, RuleRankNotContiguous,
				fmt.Sprintf("ranks must form a contiguous prefix starting at 1; rank %d is missing", rank))
		}
	}
	return nil
}

func validateReferendum(election entities.Election, ballot entities.Ballot) error {
	selection, ok := ballot[election.ElectionID]
	if !ok || len(ballot) != 1 {
		return newError(election.ElectionID, RuleMissingChoice, "a referendum ballot carries exactly one yes/no choice")
	}
	switch selection.(type) {
	case entities.ReferendumChoice:
		return nil
	case entities.Abstain:
		if !election.AllowAbstain {
			return newError(election.ElectionID, RuleAbstainNotAllowed, "this referendum does not accept abstentions")
		}
		return nil
	default:
		return newError(election.ElectionID, RuleMethodMismatch,
			fmt.Sprintf("expected a referendum choice, got %s", selection.Kind()))
	}
}

func checkCandidate(
	position entities.Position,
	candidates map[string]entities.Candidate,
	candidateID string,
) error {
	if candidateID == "" {
		return newError(position.PositionID, RuleMissingSelection, "a candidate must be selected")
	}
	candidate, ok := candidates[candidateID]
	if !ok {
		return newError(position.PositionID, RuleUnknownCandidate,
			fmt.Sprintf("candidate %s is not on the ballot for this position", candidateID))
	}
	if candidate.PositionID != position.PositionID {
		return newError(position.PositionID, RuleWrongPositionCandidate,
			fmt.Sprintf("candidate %s belongs to another position", candidateID))
	}
	if !candidate.Approved {
		return newError(position.PositionID, RuleUnapprovedCandidate,
			fmt.Sprintf("candidate %s is not approved", candidateID))
	}
	return nil
}
