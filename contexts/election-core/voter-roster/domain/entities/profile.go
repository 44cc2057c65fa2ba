package entities

import "time"

// VoterProfile is the roster's record of one enrolled student. It is the
// source of the group memberships other modules use for eligibility.
type VoterProfile struct {
	VoterID         string
	FullName        string
	Department      string
	ClassLevel      string
	OrganizationIDs []string
	Enrolled        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
