package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	"ballotbox/contexts/election-core/voting-engine/domain/tally"
	"ballotbox/contexts/election-core/voting-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type cachedResult struct {
	result    tally.ElectionResult
	expiresAt time.Time
}

// Store is the in-memory adapter backing tests and local wiring. It
// implements every storage port of the module.
type Store struct {
	mu sync.RWMutex

	elections  map[string]entities.Election
	positions  map[string][]entities.Position
	candidates map[string][]entities.Candidate
	voters     map[string]entities.Voter
	votes      map[string]entities.Vote
	results    map[string]cachedResult
	outbox     map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		elections:  make(map[string]entities.Election),
		positions:  make(map[string][]entities.Position),
		candidates: make(map[string][]entities.Candidate),
		voters:     make(map[string]entities.Voter),
		votes:      make(map[string]entities.Vote),
		results:    make(map[string]cachedResult),
		outbox:     make(map[string]outboxRecord),
	}
}

func (s *Store) SetElection(election entities.Election) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[strings.TrimSpace(election.ElectionID)] = election
}

func (s *Store) SetPosition(position entities.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	electionID := strings.TrimSpace(position.ElectionID)
	for i, existing := range s.positions[electionID] {
		if existing.PositionID == position.PositionID {
			s.positions[electionID][i] = position
			return
		}
	}
	s.positions[electionID] = append(s.positions[electionID], position)
}

func (s *Store) SetCandidate(candidate entities.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	electionID := strings.TrimSpace(candidate.ElectionID)
	for i, existing := range s.candidates[electionID] {
		if existing.CandidateID == candidate.CandidateID {
			s.candidates[electionID][i] = candidate
			return
		}
	}
	s.candidates[electionID] = append(s.candidates[electionID], candidate)
}

func (s *Store) SetVoter(voter entities.Voter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters[strings.TrimSpace(voter.VoterID)] = voter
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}

func (s *Store) ListPositions(_ context.Context, electionID string) ([]entities.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]entities.Position(nil), s.positions[strings.TrimSpace(electionID)]...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].DisplayOrder == items[j].DisplayOrder {
			return items[i].PositionID < items[j].PositionID
		}
		return items[i].DisplayOrder < items[j].DisplayOrder
	})
	return items, nil
}

func (s *Store) ListCandidates(_ context.Context, electionID string) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]entities.Candidate(nil), s.candidates[strings.TrimSpace(electionID)]...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) GetVoter(_ context.Context, voterID string) (entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voter, ok := s.voters[strings.TrimSpace(voterID)]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}
	return voter, nil
}

func (s *Store) ListVoters(_ context.Context) ([]entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Voter, 0, len(s.voters))
	for _, voter := range s.voters {
		items = append(items, voter)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].VoterID < items[j].VoterID
	})
	return items, nil
}

func (s *Store) InsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Mirrors the uq_votes_election_voter constraint of the SQL adapter.
	for _, existing := range s.votes {
		if existing.ElectionID == vote.ElectionID && existing.VoterID == vote.VoterID {
			return domainerrors.ErrAlreadyVoted
		}
	}
	voteID := strings.TrimSpace(vote.VoteID)
	if _, ok := s.votes[voteID]; ok {
		return domainerrors.ErrConflict
	}
	s.votes[voteID] = vote
	return nil
}

func (s *Store) GetVoteByVoter(_ context.Context, electionID string, voterID string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	electionID = strings.TrimSpace(electionID)
	voterID = strings.TrimSpace(voterID)
	for _, vote := range s.votes {
		if vote.ElectionID == electionID && vote.VoterID == voterID {
			return vote, true, nil
		}
	}
	return entities.Vote{}, false, nil
}

func (s *Store) ListVotesByElection(_ context.Context, electionID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	electionID = strings.TrimSpace(electionID)
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.ElectionID == electionID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].VotedAt.Equal(items[j].VotedAt) {
			return items[i].VoteID < items[j].VoteID
		}
		return items[i].VotedAt.Before(items[j].VotedAt)
	})
	return items, nil
}

func (s *Store) CountVotesByElection(_ context.Context, electionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	electionID = strings.TrimSpace(electionID)
	count := 0
	for _, vote := range s.votes {
		if vote.ElectionID == electionID {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetResult(_ context.Context, electionID string, now time.Time) (tally.ElectionResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.results[strings.TrimSpace(electionID)]
	if !ok {
		return tally.ElectionResult{}, false, nil
	}
	if !row.expiresAt.After(now.UTC()) {
		delete(s.results, strings.TrimSpace(electionID))
		return tally.ElectionResult{}, false, nil
	}
	return row.result, true, nil
}

func (s *Store) PutResult(_ context.Context, electionID string, result tally.ElectionResult, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(electionID)] = cachedResult{
		result:    result,
		expiresAt: expiresAt.UTC(),
	}
	return nil
}

func (s *Store) InvalidateResult(_ context.Context, electionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, strings.TrimSpace(electionID))
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var (
	_ ports.ElectionRepository = (*Store)(nil)
	_ ports.VoteRepository     = (*Store)(nil)
	_ ports.VoterDirectory     = (*Store)(nil)
	_ ports.ResultsCache       = (*Store)(nil)
	_ ports.OutboxWriter       = (*Store)(nil)
	_ ports.OutboxRepository   = (*Store)(nil)
	_ ports.Clock              = (*Store)(nil)
	_ ports.IDGenerator        = (*Store)(nil)
)
