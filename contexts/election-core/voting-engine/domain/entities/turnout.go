package entities

type GoalStatus string

const (
	GoalAchieved  GoalStatus = "goal_achieved"
	GoalClose     GoalStatus = "close_to_goal"
	GoalBelow     GoalStatus = "below_goal"
	GoalUndefined GoalStatus = "undefined"
)

type GroupTurnout struct {
	Kind          EligibilityRuleKind
	Value         string
	TotalEligible int
	TotalVoted    int
	Rate          float64
}

type TurnoutStats struct {
	ElectionID        string
	TotalEligible     int
	TotalVoted        int
	ParticipationRate float64
	ParticipationGoal float64
	GoalStatus        GoalStatus
	Breakdown         []GroupTurnout
}
