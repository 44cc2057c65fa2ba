package bootstrap

import (
	"context"
	"testing"
	"time"

	votingmemory "ballotbox/contexts/election-core/voting-engine/adapters/memory"
	workerapp "ballotbox/contexts/election-core/voting-engine/application/workers"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"
	"ballotbox/internal/platform/messaging"
)

func TestLocalFanoutInvalidatesServingCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := votingmemory.NewStore()
	bus, err := messaging.NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("build bus failed: %v", err)
	}

	invalidator := workerapp.ResultsCacheInvalidator{
		Subscriber:    bus,
		Cache:         store,
		ConsumerGroup: "voting-engine-api-results-cg",
	}
	if err := invalidator.Start(ctx); err != nil {
		t.Fatalf("start invalidator failed: %v", err)
	}

	now := time.Now().UTC()
	cached := tally.ElectionResult{ElectionID: "election-1", TotalVotes: 1}
	if err := store.PutResult(ctx, "election-1", cached, now.Add(time.Hour)); err != nil {
		t.Fatalf("seed cached result failed: %v", err)
	}

	outbox := localFanoutOutbox{Writer: store, Bus: bus}
	envelope := ports.EventEnvelope{
		EventID:      "evt-1",
		EventType:    "vote.cast",
		OccurredAt:   now,
		PartitionKey: "election-1",
	}
	if err := outbox.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected durable outbox row before fanout, got %+v", pending)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, found, err := store.GetResult(ctx, "election-1", time.Now().UTC())
		if err != nil {
			t.Fatalf("read cached result failed: %v", err)
		}
		if !found {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("cached result still served after vote.cast fanout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLocalFanoutKeepsOutboxErrors(t *testing.T) {
	ctx := context.Background()

	store := votingmemory.NewStore()
	bus, err := messaging.NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("build bus failed: %v", err)
	}
	outbox := localFanoutOutbox{Writer: store, Bus: bus}

	first := ports.EventEnvelope{
		EventID:      "evt-dup",
		EventType:    "vote.cast",
		OccurredAt:   time.Now().UTC(),
		PartitionKey: "election-1",
	}
	if err := outbox.AppendOutbox(ctx, first); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}

	conflicting := first
	conflicting.PartitionKey = "election-2"
	if err := outbox.AppendOutbox(ctx, conflicting); err == nil {
		t.Fatalf("expected conflict error from the durable writer")
	}
}
