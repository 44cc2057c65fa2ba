package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

func TestInsertVoteEnforcesOneVotePerVoter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first := entities.Vote{
		VoteID:     "vote-1",
		ElectionID: "election-1",
		VoterID:    "voter-1",
		Ballot:     entities.Ballot{"pos-1": entities.SingleChoice{CandidateID: "cand-1"}},
		VotedAt:    time.Now().UTC(),
	}
	if err := store.InsertVote(ctx, first); err != nil {
		t.Fatalf("insert vote failed: %v", err)
	}

	second := first
	second.VoteID = "vote-2"
	if err := store.InsertVote(ctx, second); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	other := first
	other.VoterID = "voter-2"
	if err := store.InsertVote(ctx, other); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate vote id, got %v", err)
	}

	vote, found, err := store.GetVoteByVoter(ctx, "election-1", "voter-1")
	if err != nil || !found {
		t.Fatalf("expected stored vote, found=%v err=%v", found, err)
	}
	if vote.VoteID != "vote-1" {
		t.Fatalf("expected vote-1, got %s", vote.VoteID)
	}
}

func TestListVotesOrderedByCastTime(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

	votes := []entities.Vote{
		{VoteID: "vote-b", ElectionID: "election-1", VoterID: "voter-2", VotedAt: base.Add(time.Minute)},
		{VoteID: "vote-a", ElectionID: "election-1", VoterID: "voter-1", VotedAt: base},
		{VoteID: "vote-c", ElectionID: "election-2", VoterID: "voter-1", VotedAt: base},
	}
	for _, vote := range votes {
		if err := store.InsertVote(ctx, vote); err != nil {
			t.Fatalf("insert %s failed: %v", vote.VoteID, err)
		}
	}

	listed, err := store.ListVotesByElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	if len(listed) != 2 || listed[0].VoteID != "vote-a" || listed[1].VoteID != "vote-b" {
		t.Fatalf("unexpected order: %+v", listed)
	}

	count, err := store.CountVotesByElection(ctx, "election-1")
	if err != nil || count != 2 {
		t.Fatalf("expected count 2, got %d err=%v", count, err)
	}
}

func TestResultCacheExpiryAndInvalidation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	result := tally.ElectionResult{ElectionID: "election-1", TotalVotes: 10}

	if err := store.PutResult(ctx, "election-1", result, now.Add(30*time.Second)); err != nil {
		t.Fatalf("put result failed: %v", err)
	}
	cached, hit, err := store.GetResult(ctx, "election-1", now)
	if err != nil || !hit {
		t.Fatalf("expected cache hit, hit=%v err=%v", hit, err)
	}
	if cached.TotalVotes != 10 {
		t.Fatalf("unexpected cached result: %+v", cached)
	}

	if _, hit, _ = store.GetResult(ctx, "election-1", now.Add(time.Minute)); hit {
		t.Fatalf("expected expired entry to miss")
	}

	_ = store.PutResult(ctx, "election-1", result, now.Add(30*time.Second))
	if err := store.InvalidateResult(ctx, "election-1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, hit, _ = store.GetResult(ctx, "election-1", now); hit {
		t.Fatalf("expected invalidated entry to miss")
	}
}

func TestOutboxLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	envelope := ports.EventEnvelope{
		EventID:       "event-1",
		EventType:     "vote.cast",
		OccurredAt:    time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
		SourceService: "voting-engine",
		PartitionKey:  "election-1",
		Data:          []byte(`{"election_id":"election-1"}`),
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("idempotent append failed: %v", err)
	}

	conflicting := envelope
	conflicting.PartitionKey = "election-2"
	if err := store.AppendOutbox(ctx, conflicting); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict on payload mismatch, got %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending row, got %d err=%v", len(pending), err)
	}
	if pending[0].EventType != "vote.cast" || pending[0].PartitionKey != "election-1" {
		t.Fatalf("unexpected pending row: %+v", pending[0])
	}

	if err := store.MarkOutboxPublished(ctx, "event-1", time.Now().UTC()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty pending list, got %d", len(pending))
	}

	if err := store.MarkOutboxPublished(ctx, "event-missing", time.Now().UTC()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for unknown outbox row, got %v", err)
	}
}
