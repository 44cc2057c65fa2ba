package errors

import "errors"

var (
	ErrElectionNotFound   = errors.New("election not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrVoterNotFound      = errors.New("voter not found")
	ErrInvalidBallotInput = errors.New("invalid ballot input")
	ErrElectionNotOpen    = errors.New("election is not open for voting")
	ErrEligibilityDenied  = errors.New("voter is not eligible for this election")
	ErrAlreadyVoted       = errors.New("a vote was already recorded for this election")
	ErrTokenGeneration    = errors.New("vote token generation failed")
	ErrConflict           = errors.New("vote conflict")
)
