package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	votingengine "ballotbox/contexts/election-core/voting-engine"
	votingworkers "ballotbox/contexts/election-core/voting-engine/application/workers"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

type capturePublisher struct {
	topics []string
	events []ports.EventEnvelope
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

type stubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

func TestVotingOutboxRelayPublishesVoteCastEvents(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	seedCouncilElection(module, time.Now().UTC())
	ctx := context.Background()

	castSingleChoice(t, module, "election-1", "voter-1", "pos-president", "cand-1")

	publisher := &capturePublisher{}
	relay := votingworkers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: publisher,
		Clock:     module.Store,
		BatchSize: 10,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("outbox relay run failed: %v", err)
	}

	if len(publisher.events) != 1 || publisher.topics[0] != "vote.cast" {
		t.Fatalf("expected one vote.cast publish, got topics %v", publisher.topics)
	}
	event := publisher.events[0]
	if event.SourceService != "voting-engine" || event.PartitionKey != "election-1" {
		t.Fatalf("unexpected envelope: %+v", event)
	}

	var payload struct {
		ElectionID string `json:"election_id"`
		VotedAt    string `json:"voted_at"`
		VoterID    string `json:"voter_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode event data failed: %v", err)
	}
	if payload.ElectionID != "election-1" || payload.VotedAt == "" {
		t.Fatalf("unexpected event data: %+v", payload)
	}
	if payload.VoterID != "" {
		t.Fatalf("vote.cast event must not carry voter identity, got %q", payload.VoterID)
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %d rows", len(pending))
	}

	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("idle relay run failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected no duplicate publish, got %d events", len(publisher.events))
	}
}

func TestVotingResultsInvalidatorDropsCachedResults(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	ctx := context.Background()
	now := time.Now().UTC()

	cached := tally.ElectionResult{ElectionID: "election-1", TotalVotes: 5}
	if err := module.Store.PutResult(ctx, "election-1", cached, now.Add(time.Minute)); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	sub := &stubSubscriber{}
	invalidator := votingworkers.ResultsCacheInvalidator{
		Subscriber: sub,
		Cache:      module.Store,
	}
	if err := invalidator.Start(ctx); err != nil {
		t.Fatalf("start invalidator failed: %v", err)
	}
	handler := sub.handlers["vote.cast"]
	if handler == nil {
		t.Fatalf("expected vote.cast handler registration")
	}

	if err := handler(ctx, ports.EventEnvelope{
		EventID:      "event-1",
		EventType:    "vote.cast",
		PartitionKey: "election-1",
	}); err != nil {
		t.Fatalf("vote.cast handler failed: %v", err)
	}
	if _, hit, _ := module.Store.GetResult(ctx, "election-1", now); hit {
		t.Fatalf("expected cached result to be invalidated")
	}

	if err := handler(ctx, ports.EventEnvelope{EventID: "event-2", EventType: "vote.cast"}); err != nil {
		t.Fatalf("handler should tolerate missing partition key, got %v", err)
	}
}

func TestVotingResultsInvalidatorDisabledFlag(t *testing.T) {
	sub := &stubSubscriber{}
	invalidator := votingworkers.ResultsCacheInvalidator{
		Subscriber: sub,
		Disabled:   true,
	}
	if err := invalidator.Start(context.Background()); err != nil {
		t.Fatalf("disabled invalidator start failed: %v", err)
	}
	if len(sub.handlers) != 0 {
		t.Fatalf("expected no subscription when disabled, got %v", sub.handlers)
	}
}
