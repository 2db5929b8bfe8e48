package selection

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"partyserver/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 3
	defaultDrawTTL     = 15 * time.Minute
)

// Engine picks the next victim and challenge of a game while keeping the
// per-game history fair: every player once per round, and every challenge
// of a player once before any of them repeats.
type Engine struct {
	store       Store
	draws       DrawStore
	logger      *zap.Logger
	maxAttempts int
	drawTTL     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Engine)

// WithRand replaces the engine's random source. Used by tests for deterministic draws.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func WithDrawStore(ds DrawStore) Option {
	return func(e *Engine) { e.draws = ds }
}

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithDrawTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.drawTTL = d
		}
	}
}

func NewEngine(store Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		drawTTL:     defaultDrawTTL,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// SelectNext draws the next round for the game and records it in the history.
func (e *Engine) SelectNext(ctx context.Context, gameID uint) (*models.Round, error) {
	var victim models.User
	var chosen models.Challenge

	_, err := e.updateTenant(ctx, gameID, func(g *models.Game) error {
		players, err := e.store.ListPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			return ErrNoPlayers
		}

		// 全員が一巡したらプレイヤー履歴をリセット
		played := g.PlayedPlayerIDs
		available := make([]models.User, 0, len(players))
		for _, p := range players {
			if !played.Contains(p.ID) {
				available = append(available, p)
			}
		}
		if len(available) == 0 {
			played = models.IDList{}
			available = players
		}
		victim = available[e.intn(len(available))]

		challenges, err := e.store.ListChallenges(ctx, gameID, victim.ID)
		if err != nil {
			return err
		}
		if len(challenges) == 0 {
			return &NoChallengesError{PlayerID: victim.ID, Username: victim.Username}
		}

		playedChallenges := g.PlayedChallengeIDs
		availableChallenges := make([]models.Challenge, 0, len(challenges))
		for _, c := range challenges {
			if !playedChallenges.Contains(c.ID) {
				availableChallenges = append(availableChallenges, c)
			}
		}
		if len(availableChallenges) == 0 {
			// この人のお題だけを履歴から外す。他のプレイヤーの履歴は残す
			own := make([]uint, len(challenges))
			for i, c := range challenges {
				own[i] = c.ID
			}
			playedChallenges = playedChallenges.Without(own)
			availableChallenges = challenges
		}
		chosen = availableChallenges[e.intn(len(availableChallenges))]

		if !played.Contains(victim.ID) {
			played = append(played, victim.ID)
		}
		g.PlayedPlayerIDs = played
		g.PlayedChallengeIDs = append(playedChallenges, chosen.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("round selected",
		zap.Uint("gameID", gameID),
		zap.Uint("victimID", victim.ID),
		zap.Uint("challengeID", chosen.ID),
	)
	return &models.Round{
		Challenge: chosen,
		Victim:    models.Victim{ID: victim.ID, Username: victim.Username},
		Music:     e.pickClip(ctx, gameID, victim.ID),
	}, nil
}

// RoundForChallenge builds a round for a hand-picked challenge. The history
// is left untouched.
func (e *Engine) RoundForChallenge(ctx context.Context, gameID, challengeID uint) (*models.Round, error) {
	challenge, err := e.store.GetChallenge(ctx, gameID, challengeID)
	if err != nil {
		return nil, err
	}
	owner, err := e.store.GetPlayer(ctx, gameID, challenge.UploaderID)
	if err != nil {
		return nil, err
	}
	return &models.Round{
		Challenge: *challenge,
		Victim:    models.Victim{ID: owner.ID, Username: owner.Username},
		Music:     e.pickClip(ctx, gameID, owner.ID),
	}, nil
}

func (e *Engine) Tenant(ctx context.Context, gameID uint) (*models.Game, error) {
	return e.store.LoadTenant(ctx, gameID)
}

func (e *Engine) Players(ctx context.Context, gameID uint) ([]models.User, error) {
	return e.store.ListPlayers(ctx, gameID)
}

func (e *Engine) PlayerChallenges(ctx context.Context, gameID, userID uint) ([]models.Challenge, error) {
	return e.store.ListChallenges(ctx, gameID, userID)
}

// pickClip returns a random clip of the owner, or nil. Failures only cost the music.
func (e *Engine) pickClip(ctx context.Context, gameID, ownerID uint) *models.AudioClip {
	clips, err := e.store.ListAudioClips(ctx, gameID, ownerID)
	if err != nil {
		e.logger.Warn("failed to load audio clips", zap.Uint("userID", ownerID), zap.Error(err))
		return nil
	}
	if len(clips) == 0 {
		return nil
	}
	clip := clips[e.intn(len(clips))]
	return &clip
}

func (e *Engine) UsedRandomNumbers(ctx context.Context, gameID uint) ([]int, error) {
	g, err := e.store.LoadTenant(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.UsedRandomNumbers == nil {
		return []int{}, nil
	}
	return g.UsedRandomNumbers, nil
}

// RecordRandomNumbers marks numbers as used right away.
func (e *Engine) RecordRandomNumbers(ctx context.Context, gameID uint, numbers []int, resetRangeMax int) ([]int, error) {
	g, err := e.updateTenant(ctx, gameID, func(g *models.Game) error {
		g.UsedRandomNumbers = MergeUsedNumbers(g.UsedRandomNumbers, numbers, resetRangeMax)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g.UsedRandomNumbers, nil
}

// PreviewRandomNumbers draws numbers without consuming them. The draw is
// parked until CommitRandomNumbers or DiscardRandomNumbers, or until it expires.
func (e *Engine) PreviewRandomNumbers(ctx context.Context, gameID uint, maxValue, count int) (*models.PendingDraw, error) {
	if e.draws == nil {
		return nil, ErrDrawsUnavailable
	}
	g, err := e.store.LoadTenant(ctx, gameID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	numbers, reset, err := DrawDistinct(e.rng, maxValue, count, g.UsedRandomNumbers)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	d := models.PendingDraw{
		ID:      uuid.New().String(),
		GameID:  gameID,
		Numbers: numbers,
	}
	if reset {
		d.ResetRangeMax = maxValue
	}
	if err := e.draws.PutDraw(ctx, d, e.drawTTL); err != nil {
		return nil, err
	}
	return &d, nil
}

func (e *Engine) CommitRandomNumbers(ctx context.Context, gameID uint, drawID string) ([]int, error) {
	if e.draws == nil {
		return nil, ErrDrawsUnavailable
	}
	d, err := e.draws.TakeDraw(ctx, gameID, drawID)
	if err != nil {
		return nil, err
	}
	if d.GameID != gameID {
		return nil, ErrDrawNotFound
	}
	return e.RecordRandomNumbers(ctx, gameID, d.Numbers, d.ResetRangeMax)
}

// DiscardRandomNumbers drops a pending draw of the game. Draws of other games
// are left alone.
func (e *Engine) DiscardRandomNumbers(ctx context.Context, gameID uint, drawID string) error {
	if e.draws == nil {
		return ErrDrawsUnavailable
	}
	return e.draws.DeleteDraw(ctx, gameID, drawID)
}

// updateTenant runs a read-modify-write of the game history guarded by its
// revision. A conflicting save reruns the whole mutation on fresh data.
func (e *Engine) updateTenant(ctx context.Context, gameID uint, mutate func(g *models.Game) error) (*models.Game, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := e.store.LoadTenant(ctx, gameID)
		if err != nil {
			return nil, err
		}
		expected := g.Version
		if err := mutate(g); err != nil {
			return nil, err
		}

		err = e.store.SaveHistory(ctx, g, expected)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		e.logger.Warn("history save conflicted, retrying",
			zap.Uint("gameID", gameID),
			zap.Int("attempt", attempt),
			zap.Int("retriesLeft", e.maxAttempts-attempt),
		)
	}
	return nil, ErrConcurrencyExhausted
}
