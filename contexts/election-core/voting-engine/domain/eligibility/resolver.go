// Package eligibility decides whether a voter may participate in an
// election. Rules are a closed set of predicate variants evaluated
// uniformly; the resolver is pure and has no failure mode beyond "false".
package eligibility

import (
	"strings"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
)

// IsEligible returns true when the election is universal or any configured
// rule matches the voter.
func IsEligible(election entities.Election, voter entities.Voter) bool {
	if election.IsUniversal {
		return true
	}
	for _, rule := range election.Eligibility {
		if Matches(rule, voter) {
			return true
		}
	}
	return false
}

// Matches evaluates a single rule variant against the voter's attributes.
func Matches(rule entities.EligibilityRule, voter entities.Voter) bool {
	switch rule.Kind {
	case entities.EligibilityUniversal:
		return true
	case entities.EligibilityByDepartment:
		return containsFold(rule.Values, voter.Department)
	case entities.EligibilityByClassLevel:
		return containsFold(rule.Values, voter.ClassLevel)
	case entities.EligibilityByOrganization:
		for _, orgID := range voter.OrganizationIDs {
			if containsFold(rule.Values, orgID) {
				return true
			}
		}
		return false
	case entities.EligibilityByVoterList:
		return containsFold(rule.Values, voter.VoterID)
	default:
		return false
	}
}

func containsFold(values []string, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}
