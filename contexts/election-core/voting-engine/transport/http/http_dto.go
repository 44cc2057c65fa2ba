package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SelectionDTO is the wire form of one ballot entry. Exactly one selection
// shape may be populated; abstain excludes all others.
type SelectionDTO struct {
	Abstain      bool         `json:"abstain,omitempty"`
	CandidateID  string       `json:"candidate_id,omitempty"`
	WriteIn      string       `json:"write_in,omitempty"`
	CandidateIDs []string     `json:"candidate_ids,omitempty"`
	Rankings     []RankingDTO `json:"rankings,omitempty"`
	Choice       *bool        `json:"choice,omitempty"`
}

type RankingDTO struct {
	CandidateID string `json:"candidate_id"`
	Rank        int    `json:"rank"`
}

type CastVoteRequest struct {
	Ballot map[string]SelectionDTO `json:"ballot"`
}

type CastVoteResponse struct {
	ElectionID string    `json:"election_id"`
	Token      string    `json:"token"`
	VotedAt    time.Time `json:"voted_at"`
}

type CandidateOption struct {
	CandidateID string `json:"candidate_id"`
	DisplayName string `json:"display_name"`
}

type BallotPosition struct {
	PositionID    string            `json:"position_id"`
	Name          string            `json:"name"`
	Method        string            `json:"method"`
	MaxSelection  int               `json:"max_selection"`
	RankingLevels int               `json:"ranking_levels"`
	AllowAbstain  bool              `json:"allow_abstain"`
	Candidates    []CandidateOption `json:"candidates"`
}

type BallotResponse struct {
	ElectionID    string                  `json:"election_id"`
	Title         string                  `json:"title"`
	Method        string                  `json:"method"`
	CurrentStatus string                  `json:"current_status"`
	StartTime     time.Time               `json:"start_time"`
	EndTime       time.Time               `json:"end_time"`
	AllowWriteIn  bool                    `json:"allow_write_in"`
	AllowAbstain  bool                    `json:"allow_abstain"`
	Positions     []BallotPosition        `json:"positions"`
	AlreadyVoted  bool                    `json:"already_voted"`
	Ballot        map[string]SelectionDTO `json:"ballot,omitempty"`
}

type CandidateResult struct {
	CandidateID string  `json:"candidate_id"`
	DisplayName string  `json:"display_name"`
	WriteIn     bool    `json:"write_in,omitempty"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
	Rank        int     `json:"rank"`
	Winner      bool    `json:"winner"`
}

type RunoffRoundResult struct {
	Number       int            `json:"number"`
	Counts       map[string]int `json:"counts"`
	ValidBallots int            `json:"valid_ballots"`
	Exhausted    int            `json:"exhausted"`
	Eliminated   string         `json:"eliminated,omitempty"`
}

type PositionResultDTO struct {
	PositionID   string              `json:"position_id"`
	Name         string              `json:"name"`
	Method       string              `json:"method"`
	TotalBallots int                 `json:"total_ballots"`
	ValidVotes   int                 `json:"valid_votes"`
	Abstentions  int                 `json:"abstentions"`
	Candidates   []CandidateResult   `json:"candidates,omitempty"`
	Winners      []string            `json:"winners"`
	Rounds       []RunoffRoundResult `json:"rounds,omitempty"`
	YesVotes     int                 `json:"yes_votes,omitempty"`
	NoVotes      int                 `json:"no_votes,omitempty"`
	Tied         bool                `json:"tied,omitempty"`
	Flags        []string            `json:"flags,omitempty"`
}

type ResultsResponse struct {
	ElectionID   string              `json:"election_id"`
	Title        string              `json:"title"`
	Method       string              `json:"method"`
	Status       string              `json:"status"`
	TotalVotes   int                 `json:"total_votes"`
	UniqueVoters int                 `json:"unique_voters"`
	Positions    []PositionResultDTO `json:"positions"`
	ComputedAt   time.Time           `json:"computed_at"`
}

type GroupTurnoutDTO struct {
	Kind          string  `json:"kind"`
	Value         string  `json:"value"`
	TotalEligible int     `json:"total_eligible"`
	TotalVoted    int     `json:"total_voted"`
	Rate          float64 `json:"participation_rate"`
}

type TurnoutResponse struct {
	ElectionID        string            `json:"election_id"`
	TotalEligible     int               `json:"total_eligible"`
	TotalVoted        int               `json:"total_voted"`
	ParticipationRate float64           `json:"participation_rate"`
	ParticipationGoal float64           `json:"participation_goal"`
	GoalStatus        string            `json:"goal_status"`
	Breakdown         []GroupTurnoutDTO `json:"breakdown,omitempty"`
}
