// Package tally aggregates persisted ballots into per-position results.
// All functions are pure over the supplied configuration and selections;
// the read-path use case handles caching, integrity flags, and logging.
package tally

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
)

// TieBreak selects the policy applied when candidates share the lowest
// count during ranked-choice elimination or the last winning seat in a
// plurality count.
type TieBreak string

const (
	// TieBreakAlphabetical resolves ties by candidate id sort order. For
	// elimination the sort-last candidate is removed, so earlier ids
	// survive; for winner seats the sort-first candidate takes the seat.
	TieBreakAlphabetical TieBreak = "alphabetical"
	TieBreakRandom       TieBreak = "random"
	// TieBreakRunoff refuses to resolve the tie: the position is flagged
	// as requiring a runoff and no winner is declared for the tied seat.
	TieBreakRunoff TieBreak = "runoff"
)

const FlagRunoffRequired = "runoff_required"

type CandidateTally struct {
	CandidateID string  `json:"candidate_id"`
	DisplayName string  `json:"display_name"`
	WriteIn     bool    `json:"write_in,omitempty"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
	Rank        int     `json:"rank"`
	Winner      bool    `json:"winner"`
}

// RunoffRound records one instant-runoff counting round.
type RunoffRound struct {
	Number       int            `json:"number"`
	Counts       map[string]int `json:"counts"`
	ValidBallots int            `json:"valid_ballots"`
	Exhausted    int            `json:"exhausted"`
	Eliminated   string         `json:"eliminated,omitempty"`
}

type PositionResult struct {
	PositionID   string                `json:"position_id"`
	Name         string                `json:"name"`
	Method       entities.VotingMethod `json:"method"`
	TotalBallots int                   `json:"total_ballots"`
	ValidVotes   int                   `json:"valid_votes"`
	Abstentions  int                   `json:"abstentions"`
	Candidates   []CandidateTally      `json:"candidates,omitempty"`
	Winners      []string              `json:"winners"`
	Rounds       []RunoffRound         `json:"rounds,omitempty"`
	YesVotes     int                   `json:"yes_votes,omitempty"`
	NoVotes      int                   `json:"no_votes,omitempty"`
	Tied         bool                  `json:"tied,omitempty"`
	Flags        []string              `json:"flags,omitempty"`
}

type ElectionResult struct {
	ElectionID   string                 `json:"election_id"`
	Title        string                 `json:"title"`
	Method       entities.VotingMethod  `json:"method"`
	Status       entities.CurrentStatus `json:"status"`
	TotalVotes   int                    `json:"total_votes"`
	UniqueVoters int                    `json:"unique_voters"`
	Positions    []PositionResult       `json:"positions"`
	ComputedAt   time.Time              `json:"computed_at"`
}

// Plurality counts single- and multiple-choice selections for one
// position. winnerCount is explicit seat configuration: 1 for single
// offices, the configured seat count for multi-seat offices.
func Plurality(
	election entities.Election,
	position entities.Position,
	candidates []entities.Candidate,
	selections []entities.Selection,
	winnerCount int,
	policy TieBreak,
) PositionResult {
	result := PositionResult{
		PositionID: position.PositionID,
		Name:       position.Name,
		Method:     position.Method,
	}

	names := make(map[string]string, len(candidates))
	for _, candidate := range candidates {
		if candidate.PositionID == position.PositionID {
			names[candidate.CandidateID] = candidate.DisplayName
		}
	}

	counts := make(map[string]int, len(names))
	writeIns := make(map[string]string)
	for _, selection := range selections {
		result.TotalBallots++
		switch s := selection.(type) {
		case entities.Abstain:
			result.Abstentions++
		case entities.SingleChoice:
			result.ValidVotes++
			if writeIn := strings.TrimSpace(s.WriteIn); writeIn != "" {
				key := writeInKey(writeIn)
				writeIns[key] = writeIn
				counts[key]++
				continue
			}
			counts[strings.TrimSpace(s.CandidateID)]++
		case entities.MultipleChoice:
			result.ValidVotes++
			for _, candidateID := range s.CandidateIDs {
				counts[strings.TrimSpace(candidateID)]++
			}
		}
	}

	tallies := make([]CandidateTally, 0, len(names)+len(writeIns))
	for candidateID, name := range names {
		tallies = append(tallies, CandidateTally{
			CandidateID: candidateID,
			DisplayName: name,
			Votes:       counts[candidateID],
		})
	}
	for key, name := range writeIns {
		tallies = append(tallies, CandidateTally{
			CandidateID: key,
			DisplayName: name,
			WriteIn:     true,
			Votes:       counts[key],
		})
	}
	if len(writeIns) > 0 {
		result.Flags = append(result.Flags, "write_in_votes")
	}

	sortTallies(tallies)
	for i := range tallies {
		tallies[i].Rank = i + 1
		tallies[i].Percentage = percentage(tallies[i].Votes, result.ValidVotes)
	}

	result.Candidates = tallies
	if result.ValidVotes == 0 || winnerCount <= 0 {
		return result
	}
	result.Winners, result.Tied = pickWinners(tallies, winnerCount, policy)
	if result.Tied && policy == TieBreakRunoff {
		result.Flags = append(result.Flags, FlagRunoffRequired)
	}
	for i := range result.Candidates {
		for _, winnerID := range result.Winners {
			if result.Candidates[i].CandidateID == winnerID {
				result.Candidates[i].Winner = true
			}
		}
	}
	return result
}

// InstantRunoff runs ranked-choice counting for one position: tally first
// choices, declare a majority winner, otherwise eliminate the lowest
// candidate and redistribute until a winner emerges or one candidate
// remains. Ballots whose ranking is exhausted leave the round denominator.
func InstantRunoff(
	position entities.Position,
	candidates []entities.Candidate,
	selections []entities.Selection,
	policy TieBreak,
) PositionResult {
	result := PositionResult{
		PositionID: position.PositionID,
		Name:       position.Name,
		Method:     position.Method,
	}

	names := make(map[string]string, len(candidates))
	remaining := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		if candidate.PositionID == position.PositionID {
			names[candidate.CandidateID] = candidate.DisplayName
			remaining[candidate.CandidateID] = true
		}
	}

	var prefs [][]string
	for _, selection := range selections {
		result.TotalBallots++
		switch s := selection.(type) {
		case entities.Abstain:
			result.Abstentions++
		case entities.RankedChoice:
			ordered := append([]entities.Ranking(nil), s.Rankings...)
			sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })
			ballot := make([]string, 0, len(ordered))
			for _, ranking := range ordered {
				ballot = append(ballot, strings.TrimSpace(ranking.CandidateID))
			}
			prefs = append(prefs, ballot)
			result.ValidVotes++
		}
	}

	finalCounts := make(map[string]int, len(names))
	finalValid := 0
	eliminationOrder := make([]string, 0, len(names))

	for round := 1; len(remaining) > 0; round++ {
		counts := make(map[string]int, len(remaining))
		for id := range remaining {
			counts[id] = 0
		}
		exhausted := 0
		for _, ballot := range prefs {
			top := topRemaining(ballot, remaining)
			if top == "" {
				exhausted++
				continue
			}
			counts[top]++
		}
		valid := len(prefs) - exhausted

		record := RunoffRound{
			Number:       round,
			Counts:       copyCounts(counts),
			ValidBallots: valid,
			Exhausted:    exhausted,
		}

		finalCounts = copyCounts(counts)
		finalValid = valid

		if valid == 0 {
			result.Rounds = append(result.Rounds, record)
			break
		}

		winner := majorityWinner(counts, valid)
		if winner == "" && len(remaining) == 1 {
			// Winner by exhaustion.
			for id := range remaining {
				winner = id
			}
		}
		if winner != "" {
			result.Rounds = append(result.Rounds, record)
			result.Winners = []string{winner}
			break
		}

		lowest, tied := lowestRemaining(counts)
		eliminated, resolved := resolveElimination(lowest, tied, policy)
		if !resolved {
			result.Rounds = append(result.Rounds, record)
			result.Tied = true
			result.Flags = append(result.Flags, FlagRunoffRequired)
			break
		}
		record.Eliminated = eliminated
		result.Rounds = append(result.Rounds, record)
		delete(remaining, eliminated)
		eliminationOrder = append(eliminationOrder, eliminated)
	}

	result.Candidates = runoffTallies(names, finalCounts, finalValid, eliminationOrder, result.Winners, result.Rounds)
	return result
}

// Referendum tallies an election-level yes/no question. An exact tie has
// no winner and is reported as tied.
func Referendum(election entities.Election, selections []entities.Selection) PositionResult {
	result := PositionResult{
		PositionID: election.ElectionID,
		Name:       election.Title,
		Method:     entities.MethodReferendum,
	}
	for _, selection := range selections {
		result.TotalBallots++
		switch s := selection.(type) {
		case entities.Abstain:
			result.Abstentions++
		case entities.ReferendumChoice:
			result.ValidVotes++
			if s.Approve {
				result.YesVotes++
			} else {
				result.NoVotes++
			}
		}
	}
	switch {
	case result.YesVotes > result.NoVotes:
		result.Winners = []string{"yes"}
	case result.NoVotes > result.YesVotes:
		result.Winners = []string{"no"}
	case result.ValidVotes > 0:
		result.Tied = true
	}
	return result
}

func runoffTallies(
	names map[string]string,
	finalCounts map[string]int,
	finalValid int,
	eliminationOrder []string,
	winners []string,
	rounds []RunoffRound,
) []CandidateTally {
	eliminatedAt := make(map[string]int, len(eliminationOrder))
	for i, id := range eliminationOrder {
		eliminatedAt[id] = i
	}
	winnerSet := make(map[string]bool, len(winners))
	for _, id := range winners {
		winnerSet[id] = true
	}

	tallies := make([]CandidateTally, 0, len(names))
	for id, name := range names {
		votes := finalCounts[id]
		valid := finalValid
		if roundIndex, wasEliminated := eliminatedAt[id]; wasEliminated && roundIndex < len(rounds) {
			// Eliminated candidates report their standing in the round
			// that removed them.
			votes = rounds[roundIndex].Counts[id]
			valid = rounds[roundIndex].ValidBallots
		}
		tallies = append(tallies, CandidateTally{
			CandidateID: id,
			DisplayName: name,
			Votes:       votes,
			Percentage:  percentage(votes, valid),
			Winner:      winnerSet[id],
		})
	}

	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Winner != tallies[j].Winner {
			return tallies[i].Winner
		}
		left, leftEliminated := eliminatedAt[tallies[i].CandidateID]
		right, rightEliminated := eliminatedAt[tallies[j].CandidateID]
		if leftEliminated != rightEliminated {
			return !leftEliminated
		}
		if leftEliminated && left != right {
			// Later eliminations rank higher.
			return left > right
		}
		if tallies[i].Votes != tallies[j].Votes {
			return tallies[i].Votes > tallies[j].Votes
		}
		return tallies[i].CandidateID < tallies[j].CandidateID
	})
	for i := range tallies {
		tallies[i].Rank = i + 1
	}
	return tallies
}

func topRemaining(ballot []string, remaining map[string]bool) string {
	for _, candidateID := range ballot {
		if remaining[candidateID] {
			return candidateID
		}
	}
	return ""
}

func majorityWinner(counts map[string]int, valid int) string {
	for candidateID, votes := range counts {
		if votes*2 > valid {
			return candidateID
		}
	}
	return ""
}

func lowestRemaining(counts map[string]int) (int, []string) {
	lowest := -1
	var tied []string
	for candidateID, votes := range counts {
		switch {
		case lowest < 0 || votes < lowest:
			lowest = votes
			tied = []string{candidateID}
		case votes == lowest:
			tied = append(tied, candidateID)
		}
	}
	sort.Strings(tied)
	return lowest, tied
}

func resolveElimination(_ int, tied []string, policy TieBreak) (string, bool) {
	if len(tied) == 1 {
		return tied[0], true
	}
	switch policy {
	case TieBreakRandom:
		return tied[rand.Intn(len(tied))], true
	case TieBreakRunoff:
		return "", false
	default:
		// Alphabetical: the sort-last tied candidate is eliminated.
		return tied[len(tied)-1], true
	}
}

func pickWinners(tallies []CandidateTally, winnerCount int, policy TieBreak) ([]string, bool) {
	if winnerCount > len(tallies) {
		winnerCount = len(tallies)
	}
	if winnerCount == 0 {
		return nil, false
	}
	boundaryTied := winnerCount < len(tallies) &&
		tallies[winnerCount-1].Votes == tallies[winnerCount].Votes

	if !boundaryTied {
		return winnerIDs(tallies[:winnerCount]), false
	}

	boundary := tallies[winnerCount-1].Votes
	switch policy {
	case TieBreakRunoff:
		// Seats above the contested count are safe; the tied seat stays
		// vacant pending a runoff.
		safe := make([]CandidateTally, 0, winnerCount)
		for _, tallyRow := range tallies[:winnerCount] {
			if tallyRow.Votes > boundary {
				safe = append(safe, tallyRow)
			}
		}
		return winnerIDs(safe), true
	case TieBreakRandom:
		tiedGroup := make([]CandidateTally, 0)
		safe := make([]CandidateTally, 0, winnerCount)
		for _, tallyRow := range tallies {
			switch {
			case tallyRow.Votes > boundary:
				safe = append(safe, tallyRow)
			case tallyRow.Votes == boundary:
				tiedGroup = append(tiedGroup, tallyRow)
			}
		}
		rand.Shuffle(len(tiedGroup), func(i, j int) {
			tiedGroup[i], tiedGroup[j] = tiedGroup[j], tiedGroup[i]
		})
		for _, tallyRow := range tiedGroup {
			if len(safe) == winnerCount {
				break
			}
			safe = append(safe, tallyRow)
		}
		return winnerIDs(safe), true
	default:
		// Alphabetical: tallies are already sorted by votes desc then id
		// asc, so the prefix is deterministic.
		return winnerIDs(tallies[:winnerCount]), true
	}
}

func winnerIDs(tallies []CandidateTally) []string {
	ids := make([]string, 0, len(tallies))
	for _, tallyRow := range tallies {
		ids = append(ids, tallyRow.CandidateID)
	}
	return ids
}

func sortTallies(tallies []CandidateTally) {
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Votes != tallies[j].Votes {
			return tallies[i].Votes > tallies[j].Votes
		}
		return tallies[i].CandidateID < tallies[j].CandidateID
	})
}

func percentage(votes int, valid int) float64 {
	if valid == 0 {
		return 0
	}
	return float64(votes) / float64(valid) * 100
}

func copyCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for key, value := range counts {
		out[key] = value
	}
	return out
}

func writeInKey(name string) string {
	return fmt.Sprintf("write-in:%s", strings.ToLower(strings.TrimSpace(name)))
}
