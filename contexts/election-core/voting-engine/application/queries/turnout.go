package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	application "ballotbox/contexts/election-core/voting-engine/application"
	"ballotbox/contexts/election-core/voting-engine/domain/eligibility"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

const defaultParticipationGoal = 80.0

// closeToGoalMargin is how many points below the goal still count as
// "close" for reporting.
const closeToGoalMargin = 10.0

type TurnoutUseCase struct {
	Elections         ports.ElectionRepository
	Votes             ports.VoteRepository
	Voters            ports.VoterDirectory
	ParticipationGoal float64
	Logger            *slog.Logger
}

// ComputeTurnout derives eligible-voter counts, participation rate, and
// goal classification for one election. With withBreakdown it also splits
// turnout per configured eligibility group.
func (uc TurnoutUseCase) ComputeTurnout(
	ctx context.Context,
	electionID string,
	withBreakdown bool,
) (entities.TurnoutStats, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID = strings.TrimSpace(electionID)

	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return entities.TurnoutStats{}, err
	}
	voters, err := uc.Voters.ListVoters(ctx)
	if err != nil {
		return entities.TurnoutStats{}, err
	}
	votes, err := uc.Votes.ListVotesByElection(ctx, electionID)
	if err != nil {
		return entities.TurnoutStats{}, err
	}

	voted := make(map[string]struct{}, len(votes))
	for _, vote := range votes {
		voted[vote.VoterID] = struct{}{}
	}

	stats := entities.TurnoutStats{
		ElectionID:        electionID,
		TotalVoted:        len(voted),
		ParticipationGoal: uc.goal(election),
	}
	for _, voter := range voters {
		if eligibility.IsEligible(election, voter) {
			stats.TotalEligible++
		}
	}
	stats.ParticipationRate = participationRate(stats.TotalVoted, stats.TotalEligible)
	stats.GoalStatus = classifyGoal(stats.ParticipationRate, stats.ParticipationGoal, stats.TotalEligible)

	if withBreakdown {
		stats.Breakdown = uc.breakdown(election, voters, voted)
	}

	logger.Info("turnout computed",
		"event", "election_turnout_computed",
		"module", "election-core/voting-engine",
		"layer", "application",
		"election_id", electionID,
		"total_eligible", stats.TotalEligible,
		"total_voted", stats.TotalVoted,
		"participation_rate", stats.ParticipationRate,
		"goal_status", string(stats.GoalStatus),
	)
	return stats, nil
}

func (uc TurnoutUseCase) breakdown(
	election entities.Election,
	voters []entities.Voter,
	voted map[string]struct{},
) []entities.GroupTurnout {
	type groupKey struct {
		kind  entities.EligibilityRuleKind
		value string
	}
	groups := make(map[groupKey]*entities.GroupTurnout)
	for _, rule := range election.Eligibility {
		if rule.Kind == entities.EligibilityUniversal {
			continue
		}
		for _, value := range rule.Values {
			key := groupKey{kind: rule.Kind, value: strings.TrimSpace(value)}
			if _, ok := groups[key]; !ok {
				groups[key] = &entities.GroupTurnout{Kind: key.kind, Value: key.value}
			}
		}
	}

	for _, voter := range voters {
		for key, group := range groups {
			rule := entities.EligibilityRule{Kind: key.kind, Values: []string{key.value}}
			if !eligibility.Matches(rule, voter) {
				continue
			}
			group.TotalEligible++
			if _, ok := voted[voter.VoterID]; ok {
				group.TotalVoted++
			}
		}
	}

	items := make([]entities.GroupTurnout, 0, len(groups))
	for _, group := range groups {
		group.Rate = participationRate(group.TotalVoted, group.TotalEligible)
		items = append(items, *group)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind == items[j].Kind {
			return items[i].Value < items[j].Value
		}
		return items[i].Kind < items[j].Kind
	})
	return items
}

func (uc TurnoutUseCase) goal(election entities.Election) float64 {
	if election.ParticipationGoal > 0 {
		return election.ParticipationGoal
	}
	if uc.ParticipationGoal > 0 {
		return uc.ParticipationGoal
	}
	return defaultParticipationGoal
}

// participationRate is clamped to [0, 100] and defined as 0 when there
// are no eligible voters.
func participationRate(votedCount int, eligibleCount int) float64 {
	if eligibleCount <= 0 {
		return 0
	}
	rate := float64(votedCount) / float64(eligibleCount) * 100
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

func classifyGoal(rate float64, goal float64, eligibleCount int) entities.GoalStatus {
	if eligibleCount <= 0 {
		return entities.GoalUndefined
	}
	switch {
	case rate >= goal:
		return entities.GoalAchieved
	case rate >= goal-closeToGoalMargin:
		return entities.GoalClose
	default:
		return entities.GoalBelow
	}
}
