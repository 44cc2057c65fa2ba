package entities

import "time"

type VotingMethod string

const (
	MethodSingle     VotingMethod = "single"
	MethodMultiple   VotingMethod = "multiple"
	MethodReferendum VotingMethod = "referendum"
	MethodRanked     VotingMethod = "ranked"
	MethodPoll       VotingMethod = "poll"
)

type ElectionStatus string

const (
	ElectionStatusDraft    ElectionStatus = "draft"
	ElectionStatusActive   ElectionStatus = "active"
	ElectionStatusClosed   ElectionStatus = "closed"
	ElectionStatusArchived ElectionStatus = "archived"
)

// CurrentStatus is derived from lifecycle status and the voting window.
// It is computed at read time and never persisted.
type CurrentStatus string

const (
	CurrentStatusUpcoming CurrentStatus = "upcoming"
	CurrentStatusOpen     CurrentStatus = "open"
	CurrentStatusClosed   CurrentStatus = "closed"
)

type EligibilityRuleKind string

const (
	EligibilityUniversal      EligibilityRuleKind = "universal"
	EligibilityByDepartment   EligibilityRuleKind = "department"
	EligibilityByClassLevel   EligibilityRuleKind = "class_level"
	EligibilityByOrganization EligibilityRuleKind = "organization"
	EligibilityByVoterList    EligibilityRuleKind = "voter_list"
)

// EligibilityRule is one predicate variant of the closed eligibility rule
// set. Adding an eligibility dimension means adding a kind, not an ad-hoc
// field on Election.
type EligibilityRule struct {
	Kind   EligibilityRuleKind `json:"kind"`
	Values []string            `json:"values,omitempty"`
}

type Election struct {
	ElectionID        string
	Title             string
	Method            VotingMethod
	MaxSelection      int
	RankingLevels     int
	AllowWriteIn      bool
	AllowAbstain      bool
	IsUniversal       bool
	Eligibility       []EligibilityRule
	StartTime         time.Time
	EndTime           time.Time
	Status            ElectionStatus
	ParticipationGoal float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CurrentStatus derives the voter-facing window state. Draft elections are
// always upcoming; closed/archived elections are always closed regardless
// of the time window.
func (e Election) CurrentStatus(now time.Time) CurrentStatus {
	switch e.Status {
	case ElectionStatusDraft:
		return CurrentStatusUpcoming
	case ElectionStatusClosed, ElectionStatusArchived:
		return CurrentStatusClosed
	}
	now = now.UTC()
	if now.Before(e.StartTime.UTC()) {
		return CurrentStatusUpcoming
	}
	if !e.EndTime.IsZero() && now.After(e.EndTime.UTC()) {
		return CurrentStatusClosed
	}
	return CurrentStatusOpen
}

func (e Election) IsOpenAt(now time.Time) bool {
	return e.CurrentStatus(now) == CurrentStatusOpen
}

// Position is an individual office or question inside an election. Its
// method narrows the election-level method when an election carries
// multiple offices.
type Position struct {
	PositionID    string
	ElectionID    string
	Name          string
	Method        VotingMethod
	MaxSelection  int
	RankingLevels int
	WinnerCount   int
	AllowAbstain  bool
	DisplayOrder  int
}

// EffectiveMaxSelection falls back to the election-level cap when the
// position does not override it.
func (p Position) EffectiveMaxSelection(e Election) int {
	if p.MaxSelection > 0 {
		return p.MaxSelection
	}
	if e.MaxSelection > 0 {
		return e.MaxSelection
	}
	return 1
}

func (p Position) EffectiveRankingLevels(e Election) int {
	if p.RankingLevels > 0 {
		return p.RankingLevels
	}
	if e.RankingLevels > 0 {
		return e.RankingLevels
	}
	return 1
}

// EffectiveWinnerCount is explicit seat configuration, never inferred from
// the selection cap.
func (p Position) EffectiveWinnerCount() int {
	if p.WinnerCount > 0 {
		return p.WinnerCount
	}
	return 1
}

type Candidate struct {
	CandidateID string
	ElectionID  string
	PositionID  string
	UserID      string
	DisplayName string
	Approved    bool
}

// Voter is the slice of an identity the voting engine needs for
// eligibility decisions. Identity data is owned by the roster collaborator.
type Voter struct {
	VoterID         string
	Department      string
	ClassLevel      string
	OrganizationIDs []string
}
