package selection

import (
	"context"
	"slices"
	"sync"
	"time"

	"partyserver/models"
)

// memStore is an in-memory Store with revision checks and injectable conflicts.
type memStore struct {
	mu         sync.Mutex
	games      map[uint]*models.Game
	players    map[uint][]models.User
	challenges map[uint][]models.Challenge
	clips      map[uint][]models.AudioClip

	// conflicts makes the next N saves fail with ErrConflict.
	conflicts int
	saves     int
}

func newMemStore() *memStore {
	return &memStore{
		games:      map[uint]*models.Game{},
		players:    map[uint][]models.User{},
		challenges: map[uint][]models.Challenge{},
		clips:      map[uint][]models.AudioClip{},
	}
}

func (s *memStore) addGame(id uint) {
	g := &models.Game{Name: "family", Version: 1}
	g.ID = id
	s.games[id] = g
}

func (s *memStore) addPlayer(gameID, id uint, name string) {
	u := models.User{GameID: gameID, Username: name, Role: models.RolePlayer}
	u.ID = id
	s.players[gameID] = append(s.players[gameID], u)
}

func (s *memStore) addChallenge(gameID, ownerID, id uint, title string) {
	c := models.Challenge{GameID: gameID, UploaderID: ownerID, Title: title, Text: title}
	c.ID = id
	s.challenges[gameID] = append(s.challenges[gameID], c)
}

func (s *memStore) addClip(gameID, ownerID, id uint) {
	a := models.AudioClip{GameID: gameID, UploaderID: ownerID, Duration: 20}
	a.ID = id
	s.clips[gameID] = append(s.clips[gameID], a)
}

func (s *memStore) game(id uint) models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.games[id]
}

func (s *memStore) LoadTenant(_ context.Context, gameID uint) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *g
	cp.PlayedPlayerIDs = slices.Clone(g.PlayedPlayerIDs)
	cp.PlayedChallengeIDs = slices.Clone(g.PlayedChallengeIDs)
	cp.UsedRandomNumbers = slices.Clone(g.UsedRandomNumbers)
	return &cp, nil
}

func (s *memStore) SaveHistory(_ context.Context, g *models.Game, expectedVersion uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	stored, ok := s.games[g.ID]
	if !ok {
		return ErrTenantNotFound
	}
	if s.conflicts > 0 {
		s.conflicts--
		stored.Version++
		return ErrConflict
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	stored.PlayedPlayerIDs = slices.Clone(g.PlayedPlayerIDs)
	stored.PlayedChallengeIDs = slices.Clone(g.PlayedChallengeIDs)
	stored.UsedRandomNumbers = slices.Clone(g.UsedRandomNumbers)
	stored.Version = expectedVersion + 1
	g.Version = stored.Version
	return nil
}

func (s *memStore) ListPlayers(_ context.Context, gameID uint) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.players[gameID]), nil
}

func (s *memStore) ListChallenges(_ context.Context, gameID, ownerID uint) ([]models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Challenge
	for _, c := range s.challenges[gameID] {
		if c.UploaderID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) GetChallenge(_ context.Context, gameID, challengeID uint) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.challenges[gameID] {
		if c.ID == challengeID {
			return &c, nil
		}
	}
	return nil, ErrChallengeNotFound
}

func (s *memStore) GetPlayer(_ context.Context, gameID, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.players[gameID] {
		if u.ID == userID {
			return &u, nil
		}
	}
	return nil, ErrPlayerNotFound
}

func (s *memStore) ListAudioClips(_ context.Context, gameID, ownerID uint) ([]models.AudioClip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AudioClip
	for _, a := range s.clips[gameID] {
		if a.UploaderID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memDraws struct {
	mu    sync.Mutex
	draws map[string]models.PendingDraw
}

func newMemDraws() *memDraws {
	return &memDraws{draws: map[string]models.PendingDraw{}}
}

func (m *memDraws) PutDraw(_ context.Context, d models.PendingDraw, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draws[d.ID] = d
	return nil
}

func (m *memDraws) TakeDraw(_ context.Context, gameID uint, id string) (models.PendingDraw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.draws[id]
	if !ok || d.GameID != gameID {
		return models.PendingDraw{}, ErrDrawNotFound
	}
	delete(m.draws, id)
	return d, nil
}

func (m *memDraws) DeleteDraw(_ context.Context, gameID uint, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.draws[id]; ok && d.GameID == gameID {
		delete(m.draws, id)
	}
	return nil
}

func (m *memDraws) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.draws)
}
