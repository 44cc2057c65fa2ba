package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	voterroster "ballotbox/contexts/election-core/voter-roster"
	rosterpostgres "ballotbox/contexts/election-core/voter-roster/adapters/postgres"
	rosterqueries "ballotbox/contexts/election-core/voter-roster/application/queries"
	rosterentities "ballotbox/contexts/election-core/voter-roster/domain/entities"
	rostererrors "ballotbox/contexts/election-core/voter-roster/domain/errors"
	votingengine "ballotbox/contexts/election-core/voting-engine"
	votingmemory "ballotbox/contexts/election-core/voting-engine/adapters/memory"
	votingpostgres "ballotbox/contexts/election-core/voting-engine/adapters/postgres"
	"ballotbox/contexts/election-core/voting-engine/adapters/token"
	workerapp "ballotbox/contexts/election-core/voting-engine/application/workers"
	votingentities "ballotbox/contexts/election-core/voting-engine/domain/entities"
	votingdomainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"
	"ballotbox/internal/platform/config"
	"ballotbox/internal/platform/db"
	"ballotbox/internal/platform/httpserver"
	"ballotbox/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server      *httpserver.Server
	postgres    *db.Postgres
	invalidator workerapp.ResultsCacheInvalidator
	logger      *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	relayEnabled bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.VoteTokenSecret) == "" {
		return nil, errors.New("VOTE_TOKEN_SECRET is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rosterRepo := rosterpostgres.NewRepository(pg.DB, logger)
	rosterModule := voterroster.NewModule(voterroster.Dependencies{
		Profiles: rosterRepo,
		Logger:   logger,
	})

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	votingRepo := votingpostgres.NewRepository(pg.DB, logger)
	// The serving cache lives in this process, so the invalidator must run
	// here too. Each recorded vote is fanned out on the process-local bus
	// right after the outbox append; the TTL bounds staleness for votes
	// recorded by other replicas.
	resultsCache := votingmemory.NewStore()
	votingModule := votingengine.NewModule(votingengine.Dependencies{
		Elections:         votingRepo,
		Votes:             votingRepo,
		Voters:            rosterDirectory{directory: rosterModule.Directory},
		Tokens:            token.HMACIssuer{Secret: []byte(cfg.VoteTokenSecret)},
		Outbox:            localFanoutOutbox{Writer: votingRepo, Bus: bus, Logger: logger},
		Cache:             resultsCache,
		Clock:             votingpostgres.SystemClock{},
		IDGen:             votingpostgres.UUIDGenerator{},
		TieBreak:          resolveTieBreak(cfg.TieBreakPolicy),
		CacheTTL:          cfg.ResultsCacheTTL,
		ParticipationGoal: cfg.ParticipationGoal,
		Logger:            logger,
	})

	server := httpserver.New(votingModule, rosterModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		invalidator: workerapp.ResultsCacheInvalidator{
			Subscriber:    bus,
			Cache:         resultsCache,
			ConsumerGroup: "voting-engine-api-results-cg",
			Disabled:      !cfg.EnableResultsInvalidator,
			Logger:        logger,
		},
		logger: logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := votingpostgres.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     votingpostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if err := a.invalidator.Start(ctx); err != nil {
		return err
	}
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.relayEnabled {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// localFanoutOutbox appends the envelope durably and then republishes it
// on the process-local bus, so in-process consumers such as the results
// invalidator react without waiting for the worker relay. A failed local
// publish is logged and swallowed: the outbox row is already durable and
// the cache TTL still bounds staleness.
type localFanoutOutbox struct {
	Writer ports.OutboxWriter
	Bus    ports.EventPublisher
	Logger *slog.Logger
}

func (o localFanoutOutbox) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	if err := o.Writer.AppendOutbox(ctx, envelope); err != nil {
		return err
	}
	if err := o.Bus.Publish(ctx, envelope.EventType, envelope); err != nil && o.Logger != nil {
		o.Logger.Warn("local event fanout failed",
			"event", "bootstrap_local_fanout_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
			"error", err.Error(),
		)
	}
	return nil
}

var _ ports.OutboxWriter = localFanoutOutbox{}

// rosterDirectory adapts the roster module's read API onto the voting
// engine's voter directory port so the engine never imports roster types.
type rosterDirectory struct {
	directory rosterqueries.DirectoryUseCase
}

func (d rosterDirectory) GetVoter(ctx context.Context, voterID string) (votingentities.Voter, error) {
	profile, err := d.directory.GetProfile(ctx, voterID)
	if err != nil {
		return votingentities.Voter{}, mapRosterErr(err)
	}
	return mapProfile(profile), nil
}

func (d rosterDirectory) ListVoters(ctx context.Context) ([]votingentities.Voter, error) {
	profiles, err := d.directory.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	voters := make([]votingentities.Voter, 0, len(profiles))
	for _, profile := range profiles {
		voters = append(voters, mapProfile(profile))
	}
	return voters, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

func resolveTieBreak(policy string) tally.TieBreak {
	switch tally.TieBreak(strings.TrimSpace(strings.ToLower(policy))) {
	case tally.TieBreakRandom:
		return tally.TieBreakRandom
	case tally.TieBreakRunoff:
		return tally.TieBreakRunoff
	default:
		return tally.TieBreakAlphabetical
	}
}

var _ ports.VoterDirectory = rosterDirectory{}

func mapProfile(profile rosterentities.VoterProfile) votingentities.Voter {
	return votingentities.Voter{
		VoterID:         profile.VoterID,
		Department:      profile.Department,
		ClassLevel:      profile.ClassLevel,
		OrganizationIDs: profile.OrganizationIDs,
	}
}

func mapRosterErr(err error) error {
	if errors.Is(err, rostererrors.ErrProfileNotFound) {
		return votingdomainerrors.ErrVoterNotFound
	}
	return err
}
