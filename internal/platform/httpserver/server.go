package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	votingengine "ballotbox/contexts/election-core/voting-engine"
	"ballotbox/contexts/election-core/voting-engine/domain/ballots"
	votingdomainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	votinghttp "ballotbox/contexts/election-core/voting-engine/transport/http"
	voterroster "ballotbox/contexts/election-core/voter-roster"
	rostererrors "ballotbox/contexts/election-core/voter-roster/domain/errors"
	rosterhttp "ballotbox/contexts/election-core/voter-roster/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "ballotbox/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	voting votingengine.Module
	roster voterroster.Module
}

func New(
	voting votingengine.Module,
	roster voterroster.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		voting: voting,
		roster: roster,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /v1/elections/{election_id}/ballot", s.handleGetBallot)
	s.mux.HandleFunc("POST /v1/elections/{election_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/elections/{election_id}/results", s.handleResults)
	s.mux.HandleFunc("GET /v1/elections/{election_id}/turnout", s.handleTurnout)

	s.mux.HandleFunc("GET /v1/roster/voters/{voter_id}", s.handleGetVoterProfile)
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	voterID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(voterID) == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	electionID := r.PathValue("election_id")
	resp, err := s.voting.Handler.GetBallotHandler(r.Context(), electionID, voterID)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(voterID) == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req votinghttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	electionID := r.PathValue("election_id")
	resp, err := s.voting.Handler.CastVoteHandler(r.Context(), electionID, voterID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("election_id")
	resp, err := s.voting.Handler.ResultsHandler(r.Context(), electionID)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTurnout(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("election_id")
	withBreakdown := strings.EqualFold(r.URL.Query().Get("breakdown"), "true")
	resp, err := s.voting.Handler.TurnoutHandler(r.Context(), electionID, withBreakdown)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVoterProfile(w http.ResponseWriter, r *http.Request) {
	voterID := r.PathValue("voter_id")
	resp, err := s.roster.Handler.GetProfileHandler(r.Context(), voterID)
	if err != nil {
		writeRosterDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeVotingDomainError(w http.ResponseWriter, err error) {
	var validation *ballots.ValidationError
	if errors.As(err, &validation) {
		writeVotingError(w, http.StatusUnprocessableEntity, string(validation.Rule), validation.Error())
		return
	}
	switch {
	case errors.Is(err, votingdomainerrors.ErrInvalidBallotInput):
		writeVotingError(w, http.StatusBadRequest, "invalid_ballot_input", err.Error())
	case errors.Is(err, votingdomainerrors.ErrEligibilityDenied):
		writeVotingError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, votingdomainerrors.ErrElectionNotOpen):
		writeVotingError(w, http.StatusConflict, "election_not_open", err.Error())
	case errors.Is(err, votingdomainerrors.ErrAlreadyVoted):
		writeVotingError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, votingdomainerrors.ErrElectionNotFound):
		writeVotingError(w, http.StatusNotFound, "election_not_found", err.Error())
	case errors.Is(err, votingdomainerrors.ErrPositionNotFound):
		writeVotingError(w, http.StatusNotFound, "position_not_found", err.Error())
	case errors.Is(err, votingdomainerrors.ErrVoteNotFound):
		writeVotingError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, votingdomainerrors.ErrVoterNotFound):
		writeVotingError(w, http.StatusNotFound, "voter_not_found", err.Error())
	case errors.Is(err, votingdomainerrors.ErrTokenGeneration):
		writeVotingError(w, http.StatusInternalServerError, "token_generation_failed", "vote receipt could not be issued")
	default:
		writeVotingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRosterDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rostererrors.ErrProfileNotFound):
		writeRosterError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, rostererrors.ErrInvalidProfileInput):
		writeRosterError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeRosterError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVotingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeRosterError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, rosterhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
