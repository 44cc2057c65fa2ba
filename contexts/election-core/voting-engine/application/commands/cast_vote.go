package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/election-core/voting-engine/application"
	"ballotbox/contexts/election-core/voting-engine/domain/ballots"
	"ballotbox/contexts/election-core/voting-engine/domain/eligibility"
	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	"ballotbox/contexts/election-core/voting-engine/ports"

	"github.com/avast/retry-go/v4"
)

// CastVoteCommand is the write-model input for recording a ballot.
type CastVoteCommand struct {
	ElectionID string
	VoterID    string
	Ballot     entities.Ballot
}

// VoteReceipt is the anonymized proof returned to the voter. It carries
// the signed token, never the vote id or the selections.
type VoteReceipt struct {
	ElectionID string
	Token      string
	VotedAt    time.Time
}

// CastVoteUseCase orchestrates the write path: status gate, eligibility,
// ballot validation, duplicate check, token issuance, and the atomic
// insert. The sequence is explicit here rather than hidden in storage
// hooks so it can be tested as one unit.
type CastVoteUseCase struct {
	Elections ports.ElectionRepository
	Votes     ports.VoteRepository
	Voters    ports.VoterDirectory
	Tokens    ports.TokenIssuer
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVote records a validated ballot exactly once per (election, voter).
// A duplicate attempt returns ErrAlreadyVoted and leaves the original
// vote untouched.
func (uc CastVoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (VoteReceipt, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID := strings.TrimSpace(cmd.ElectionID)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("vote cast processing started",
		"event", "election_vote_cast_started",
		"module", "election-core/voting-engine",
		"layer", "application",
		"election_id", electionID,
		"voter_id", voterID,
	)
	if electionID == "" || voterID == "" || len(cmd.Ballot) == 0 {
		logger.Warn("vote cast validation failed",
			"event", "election_vote_cast_validation_failed",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
		)
		return VoteReceipt{}, domainerrors.ErrInvalidBallotInput
	}

	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return VoteReceipt{}, err
	}
	now := uc.now()
	if !election.IsOpenAt(now) {
		logger.Warn("vote cast rejected outside voting window",
			"event", "election_vote_cast_not_open",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
			"current_status", string(election.CurrentStatus(now)),
		)
		return VoteReceipt{}, domainerrors.ErrElectionNotOpen
	}

	voter, err := uc.Voters.GetVoter(ctx, voterID)
	if err != nil {
		return VoteReceipt{}, err
	}
	if !eligibility.IsEligible(election, voter) {
		logger.Warn("vote cast rejected for ineligible voter",
			"event", "election_vote_cast_eligibility_denied",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
		)
		return VoteReceipt{}, domainerrors.ErrEligibilityDenied
	}

	positions, err := uc.Elections.ListPositions(ctx, electionID)
	if err != nil {
		return VoteReceipt{}, err
	}
	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return VoteReceipt{}, err
	}
	if err := ballots.Validate(election, positions, candidates, cmd.Ballot); err != nil {
		logger.Warn("vote cast ballot rejected",
			"event", "election_vote_cast_ballot_invalid",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return VoteReceipt{}, err
	}

	// Pre-check keeps the common duplicate path cheap; the storage
	// uniqueness constraint still guards the race.
	if _, found, err := uc.Votes.GetVoteByVoter(ctx, electionID, voterID); err != nil {
		return VoteReceipt{}, err
	} else if found {
		logger.Info("vote cast replay detected",
			"event", "election_vote_cast_duplicate",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
		)
		return VoteReceipt{}, domainerrors.ErrAlreadyVoted
	}

	token, err := uc.issueToken(ctx, election, voterID, cmd.Ballot, now)
	if err != nil {
		logger.Error("vote token issuance failed",
			"event", "election_vote_token_failed",
			"module", "election-core/voting-engine",
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return VoteReceipt{}, domainerrors.ErrTokenGeneration
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return VoteReceipt{}, err
	}
	vote := entities.Vote{
		VoteID:     voteID,
		ElectionID: electionID,
		VoterID:    voterID,
		Ballot:     cmd.Ballot,
		Token:      token,
		VotedAt:    now,
	}
	if err := uc.Votes.InsertVote(ctx, vote); err != nil {
		return VoteReceipt{}, err
	}
	if err := uc.appendVoteCastEvent(ctx, vote, now); err != nil {
		return VoteReceipt{}, err
	}

	logger.Info("vote recorded",
		"event", "election_vote_recorded",
		"module", "election-core/voting-engine",
		"layer", "application",
		"election_id", electionID,
		"voted_at", now.Format(time.RFC3339),
	)
	return VoteReceipt{
		ElectionID: electionID,
		Token:      token,
		VotedAt:    now,
	}, nil
}

func (uc CastVoteUseCase) issueToken(
	ctx context.Context,
	election entities.Election,
	voterID string,
	ballot entities.Ballot,
	now time.Time,
) (string, error) {
	payload := ports.TokenPayload{
		ElectionID: election.ElectionID,
		VoterID:    voterID,
		BallotHash: hashBallot(election.ElectionID, voterID, ballot),
		IssuedAt:   now,
	}
	// A vote without a valid token must not be considered cast, so a
	// cryptographic failure is retried once before surfacing.
	return retry.DoWithData(
		func() (string, error) {
			return uc.Tokens.Issue(ctx, payload)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (uc CastVoteUseCase) appendVoteCastEvent(ctx context.Context, vote entities.Vote, occurredAt time.Time) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newElectionEnvelope(eventID, "vote.cast", vote.ElectionID, occurredAt, map[string]any{
		"election_id": vote.ElectionID,
		"voted_at":    occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc CastVoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func hashBallot(electionID string, voterID string, ballot entities.Ballot) string {
	raw, err := ballot.MarshalJSON()
	if err != nil {
		raw = []byte(electionID + "/" + voterID)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
