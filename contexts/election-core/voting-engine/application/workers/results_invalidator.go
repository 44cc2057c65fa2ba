package workers

import (
	"context"
	"log/slog"
	"strings"

	application "ballotbox/contexts/election-core/voting-engine/application"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

const (
	voteCastTopic    = "vote.cast"
	defaultResultsCG = "voting-engine-results-cg"
)

// ResultsCacheInvalidator drops cached results for an election whenever a
// new vote lands, so result reads converge quickly after each cast.
type ResultsCacheInvalidator struct {
	Subscriber    ports.EventSubscriber
	Cache         ports.ResultsCache
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (c ResultsCacheInvalidator) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("results invalidator disabled by feature flag",
			"event", "election_results_invalidator_disabled",
			"module", "election-core/voting-engine",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultResultsCG
	}
	if err := c.Subscriber.Subscribe(ctx, voteCastTopic, group, c.handleVoteCast); err != nil {
		logger.Error("results invalidator subscribe failed",
			"event", "election_results_invalidator_subscribe_failed",
			"module", "election-core/voting-engine",
			"layer", "worker",
			"topic", voteCastTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("results invalidator subscription active",
		"event", "election_results_invalidator_started",
		"module", "election-core/voting-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c ResultsCacheInvalidator) handleVoteCast(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	electionID := strings.TrimSpace(event.PartitionKey)
	if electionID == "" {
		logger.Warn("vote.cast event missing partition key",
			"event", "election_results_invalidator_bad_event",
			"module", "election-core/voting-engine",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}
	if err := c.Cache.InvalidateResult(ctx, electionID); err != nil {
		logger.Error("results cache invalidation failed",
			"event", "election_results_invalidation_failed",
			"module", "election-core/voting-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"election_id", electionID,
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("results cache invalidated",
		"event", "election_results_invalidated",
		"module", "election-core/voting-engine",
		"layer", "worker",
		"event_id", event.EventID,
		"election_id", electionID,
	)
	return nil
}
