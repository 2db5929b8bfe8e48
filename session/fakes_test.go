package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"partyserver/announce"
	"partyserver/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zaptest"
)

type fakeSelector struct {
	mu        sync.Mutex
	game      models.Game
	rounds    []*models.Round
	errs      []error
	manual    map[uint]*models.Round
	previews  []int
	commits   []string
	discards  []string
	nextDraws int
}

func (s *fakeSelector) NextRound(context.Context) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.rounds) == 0 {
		return nil, errors.New("no scripted round")
	}
	r := s.rounds[0]
	if len(s.rounds) > 1 {
		s.rounds = s.rounds[1:]
	}
	return r, nil
}

func (s *fakeSelector) ChallengeRound(_ context.Context, challengeID uint) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.manual[challengeID]
	if !ok {
		return nil, errors.New("challenge not found")
	}
	return r, nil
}

func (s *fakeSelector) CurrentGame(context.Context) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game
	return &g, nil
}

func (s *fakeSelector) PreviewNumbers(_ context.Context, maxValue, count int) (*models.PendingDraw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews = append(s.previews, maxValue, count)
	s.nextDraws++
	numbers := make([]int, count)
	for i := range numbers {
		numbers[i] = i + 1
	}
	return &models.PendingDraw{ID: fmt.Sprintf("draw-%d", s.nextDraws), Numbers: numbers}, nil
}

func (s *fakeSelector) CommitNumbers(_ context.Context, drawID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, drawID)
	return nil, nil
}

func (s *fakeSelector) DiscardNumbers(_ context.Context, drawID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discards = append(s.discards, drawID)
	return nil
}

func (s *fakeSelector) committed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commits)
}

func (s *fakeSelector) discarded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.discards)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	// block が true の間は発話が終わらない
	block   bool
	cancels int
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string, _ announce.Voice) error {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *fakeSpeaker) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *fakeSpeaker) Voices(context.Context) ([]string, error) { return nil, nil }

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.spoken)
}

type fakeMedia struct {
	mu     sync.Mutex
	played []string
	stops  int
	fail   bool
}

func (m *fakeMedia) Play(ctx context.Context, url string) error {
	m.mu.Lock()
	m.played = append(m.played, url)
	fail := m.fail
	m.mu.Unlock()
	if fail {
		return errors.New("decoder error")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *fakeMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *fakeMedia) urls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.played)
}

type fakeWake struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (w *fakeWake) Acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.acquired++
	return nil
}

func (w *fakeWake) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released++
	return nil
}

type harness struct {
	o       *Orchestrator
	sel     *fakeSelector
	speaker *fakeSpeaker
	media   *fakeMedia
	wake    *fakeWake
	clock   *clockwork.FakeClock
}

func sampleRound() *models.Round {
	return &models.Round{
		Victim: models.Victim{ID: 1, Username: "Ana"},
		Challenge: models.Challenge{
			Title:        "Baile",
			Text:         "Baila sin música",
			Participants: 2,
			TimeLimit:    20,
			DurationType: models.DurationFixed,
			Sound:        &models.AudioClip{URL: "http://files/sfx.mp3"},
		},
		Music: &models.AudioClip{URL: "http://files/theme.mp3", Duration: 45},
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		sel: &fakeSelector{
			game:   models.Game{Config: models.GameConfig{MinIntervalSeconds: 60, MaxIntervalSeconds: 300, DefaultParticipants: 4}},
			rounds: []*models.Round{sampleRound()},
		},
		speaker: &fakeSpeaker{},
		media:   &fakeMedia{},
		wake:    &fakeWake{},
		clock:   clockwork.NewFakeClock(),
	}
	logger := zaptest.NewLogger(t)
	ann := announce.New(h.speaker, h.clock, logger)
	ann.LeadIn, ann.Gap = 0, 0
	if cfg.MinSeconds == 0 {
		cfg.MinSeconds, cfg.MaxSeconds = 60, 60
	}
	h.o = New(h.sel, ann, h.media, h.clock, logger, cfg, WithWakeLock(h.wake))
	t.Cleanup(func() { h.o.Close() })
	return h
}

// waitFor は条件が満たされるまで実時間でポーリングします。
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	waitFor(t, string(want), func() bool {
		snap = h.o.Snapshot()
		return snap.State == want
	})
	return snap
}
