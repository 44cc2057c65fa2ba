package voterroster

import (
	"log/slog"

	httpadapter "ballotbox/contexts/election-core/voter-roster/adapters/http"
	"ballotbox/contexts/election-core/voter-roster/adapters/memory"
	"ballotbox/contexts/election-core/voter-roster/application/queries"
	"ballotbox/contexts/election-core/voter-roster/domain/entities"
	"ballotbox/contexts/election-core/voter-roster/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Directory queries.DirectoryUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Profiles ports.ProfileRepository
	Logger   *slog.Logger
}

func NewModule(deps Dependencies) Module {
	directoryUseCase := queries.DirectoryUseCase{
		Profiles: deps.Profiles,
		Logger:   deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Directory: directoryUseCase,
			Logger:    deps.Logger,
		},
		Directory: directoryUseCase,
	}
}

func NewInMemoryModule(seed []entities.VoterProfile, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Profiles: store,
		Logger:   logger,
	})
	module.Store = store
	return module
}
