package ports

import (
	"context"
	"time"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

// ElectionRepository reads administrator-owned election configuration.
// The voting engine never mutates it.
type ElectionRepository interface {
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	ListPositions(ctx context.Context, electionID string) ([]entities.Position, error)
	ListCandidates(ctx context.Context, electionID string) ([]entities.Candidate, error)
}

// VoteRepository persists immutable ballots. InsertVote must rely on a
// storage-level uniqueness constraint over (election, voter) and surface a
// duplicate as ErrAlreadyVoted, never as a crash.
type VoteRepository interface {
	InsertVote(ctx context.Context, vote entities.Vote) error
	GetVoteByVoter(ctx context.Context, electionID string, voterID string) (entities.Vote, bool, error)
	ListVotesByElection(ctx context.Context, electionID string) ([]entities.Vote, error)
	CountVotesByElection(ctx context.Context, electionID string) (int, error)
}

// VoterDirectory exposes the identity/group-membership collaborator.
type VoterDirectory interface {
	GetVoter(ctx context.Context, voterID string) (entities.Voter, error)
	ListVoters(ctx context.Context) ([]entities.Voter, error)
}

// TokenPayload is the material signed into a vote receipt token.
type TokenPayload struct {
	ElectionID string
	VoterID    string
	BallotHash string
	IssuedAt   time.Time
}

// TokenIssuer produces the anonymized 64-character signed receipt for a
// recorded vote. The token proves a vote was cast without revealing its
// content or the voter.
type TokenIssuer interface {
	Issue(ctx context.Context, payload TokenPayload) (string, error)
}

// ResultsCache holds computed election results between invalidations.
type ResultsCache interface {
	GetResult(ctx context.Context, electionID string, now time.Time) (tally.ElectionResult, bool, error)
	PutResult(ctx context.Context, electionID string, result tally.ElectionResult, expiresAt time.Time) error
	InvalidateResult(ctx context.Context, electionID string) error
}

// EventEnvelope is the canonical envelope shared with every consumer; the
// shape is owned by the contracts module.
type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
