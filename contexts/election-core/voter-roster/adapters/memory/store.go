package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ballotbox/contexts/election-core/voter-roster/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voter-roster/domain/errors"
	"ballotbox/contexts/election-core/voter-roster/ports"
)

type Store struct {
	mu       sync.RWMutex
	profiles map[string]entities.VoterProfile
}

func NewStore(seed []entities.VoterProfile) *Store {
	profiles := make(map[string]entities.VoterProfile, len(seed))
	for _, profile := range seed {
		profiles[strings.TrimSpace(profile.VoterID)] = profile
	}
	return &Store{profiles: profiles}
}

func (s *Store) SetProfile(profile entities.VoterProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[strings.TrimSpace(profile.VoterID)] = profile
}

func (s *Store) GetProfile(_ context.Context, voterID string) (entities.VoterProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[strings.TrimSpace(voterID)]
	if !ok {
		return entities.VoterProfile{}, domainerrors.ErrProfileNotFound
	}
	return profile, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]entities.VoterProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.VoterProfile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		items = append(items, profile)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].VoterID < items[j].VoterID
	})
	return items, nil
}

var _ ports.ProfileRepository = (*Store)(nil)
