package votingengine

import (
	"log/slog"
	"time"

	httpadapter "ballotbox/contexts/election-core/voting-engine/adapters/http"
	"ballotbox/contexts/election-core/voting-engine/adapters/memory"
	"ballotbox/contexts/election-core/voting-engine/adapters/token"
	"ballotbox/contexts/election-core/voting-engine/application/commands"
	"ballotbox/contexts/election-core/voting-engine/application/queries"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Elections         ports.ElectionRepository
	Votes             ports.VoteRepository
	Voters            ports.VoterDirectory
	Tokens            ports.TokenIssuer
	Outbox            ports.OutboxWriter
	Cache             ports.ResultsCache
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	TieBreak          tally.TieBreak
	CacheTTL          time.Duration
	ParticipationGoal float64
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	castVoteUseCase := commands.CastVoteUseCase{
		Elections: deps.Elections,
		Votes:     deps.Votes,
		Voters:    deps.Voters,
		Tokens:    deps.Tokens,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	ballotUseCase := queries.BallotUseCase{
		Elections: deps.Elections,
		Votes:     deps.Votes,
		Voters:    deps.Voters,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	resultsUseCase := queries.ResultsUseCase{
		Elections: deps.Elections,
		Votes:     deps.Votes,
		Cache:     deps.Cache,
		Clock:     deps.Clock,
		TieBreak:  deps.TieBreak,
		CacheTTL:  deps.CacheTTL,
		Logger:    deps.Logger,
	}
	turnoutUseCase := queries.TurnoutUseCase{
		Elections:         deps.Elections,
		Votes:             deps.Votes,
		Voters:            deps.Voters,
		ParticipationGoal: deps.ParticipationGoal,
		Logger:            deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			CastVotes: castVoteUseCase,
			Ballots:   ballotUseCase,
			Results:   resultsUseCase,
			Turnout:   turnoutUseCase,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(tokenSecret []byte, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Elections: store,
		Votes:     store,
		Voters:    store,
		Tokens:    token.HMACIssuer{Secret: tokenSecret},
		Outbox:    store,
		Cache:     store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
