package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"partyserver/announce"
	"partyserver/models"
	"partyserver/selection"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	// テーマ曲が無いときの待ち時間
	noClipSeconds = 15
	// 曲は最大30秒で切る
	maxClipSeconds = models.MaxClipSeconds

	tick           = time.Second
	discardTimeout = 10 * time.Second
)

var (
	ErrInvalidTransition = errors.New("operation not allowed in the current state")
	ErrManualNotAllowed  = errors.New("manual mode requires a family admin")
	ErrPauseUnsupported  = errors.New("speaker cannot pause")
	ErrClosed            = errors.New("session closed")
)

// Config はセッションのローカル設定です。
type Config struct {
	Role   models.Role
	Manual bool
	// 希望する待ち時間(秒)。ゲームの設定範囲に丸められる
	MinSeconds int
	MaxSeconds int
}

// Orchestrator drives one game-mode session. Every state mutation happens
// under mu; timers, speech, playback and server calls run in goroutines that
// drop their result once their generation is stale.
type Orchestrator struct {
	sel       Selector
	announcer *announce.Announcer
	media     MediaPlayer
	wake      WakeLock
	clock     clockwork.Clock
	logger    *zap.Logger
	rng       *rand.Rand

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	cfg    Config
	game   models.GameConfig
	state  State
	gen    uint64
	closed bool

	phaseCtx    context.Context
	phaseCancel context.CancelFunc
	ticker      clockwork.Ticker
	deadline    time.Time
	remaining   int

	speechID     uint64
	speechCancel context.CancelFunc
	speaking     bool
	mediaCancel  context.CancelFunc

	fetching bool
	round    *models.Round
	draw     *models.PendingDraw
	lastErr  error
	wakeHeld bool

	subs map[chan Snapshot]struct{}
}

type Option func(*Orchestrator)

func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

func WithWakeLock(w WakeLock) Option {
	return func(o *Orchestrator) { o.wake = w }
}

func New(sel Selector, ann *announce.Announcer, media MediaPlayer, clock clockwork.Clock, logger *zap.Logger, cfg Config, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		sel:        sel,
		announcer:  ann,
		media:      media,
		wake:       nopWakeLock{},
		clock:      clock,
		logger:     logger,
		rng:        rand.New(rand.NewSource(clock.Now().UnixNano())),
		baseCtx:    ctx,
		baseCancel: cancel,
		state:      Idle,
		game:       models.GameConfig{}.Normalize(),
		subs:       make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.phaseCtx, o.phaseCancel = context.WithCancel(ctx)
	o.cfg = o.sanitize(cfg)
	return o
}

// sanitize は管理者以外の手動モードを自動に戻します。
func (o *Orchestrator) sanitize(cfg Config) Config {
	if cfg.Manual && !cfg.Role.CanEnterManualMode() {
		o.logger.Info("manual mode not allowed for role, using automatic", zap.String("role", string(cfg.Role)))
		cfg.Manual = false
	}
	return cfg
}

func (o *Orchestrator) invalid(op string) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, op, o.state)
}

// SetConfig changes the local preferences. Only allowed while idle.
func (o *Orchestrator) SetConfig(cfg Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Idle {
		return o.invalid("configure")
	}
	if cfg.Manual && !cfg.Role.CanEnterManualMode() {
		return ErrManualNotAllowed
	}
	o.cfg = cfg
	o.notifyLocked()
	return nil
}

// Start loads the game settings and begins the first countdown.
func (o *Orchestrator) Start(ctx context.Context) error {
	game, err := o.sel.CurrentGame(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.state != Idle {
		return o.invalid("start")
	}
	o.game = game.Config.Normalize()
	o.lastErr = nil
	if !o.wakeHeld {
		if err := o.wake.Acquire(); err != nil {
			o.logger.Warn("wake lock unavailable", zap.Error(err))
		} else {
			o.wakeHeld = true
		}
	}
	o.startCountdownLocked()
	return nil
}

// ---- 状態遷移(すべて mu を保持して呼ぶ) ----

func (o *Orchestrator) stopActivityLocked() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
	o.cancelSpeechLocked()
	o.stopMediaLocked()
	o.phaseCancel()
}

func (o *Orchestrator) enterLocked(s State) {
	o.stopActivityLocked()
	o.gen++
	o.state = s
	o.remaining = 0
	o.deadline = time.Time{}
	o.phaseCtx, o.phaseCancel = context.WithCancel(o.baseCtx)
	o.logger.Debug("state", zap.String("state", string(s)))
}

func (o *Orchestrator) startCountdownLocked() {
	o.enterLocked(Countdown)
	o.round = nil
	lo, hi := ClampInterval(o.cfg.MinSeconds, o.cfg.MaxSeconds, o.game)
	secs := lo + o.rng.Intn(hi-lo+1)
	o.startTimerLocked(time.Duration(secs)*time.Second, o.countdownExpiredLocked)
	o.notifyLocked()
}

// startTimerLocked は1秒ごとに残り時間を更新し、期限で onExpire を呼びます。
// 残り時間は期限から計算するので、遅れたティックでもずれない
func (o *Orchestrator) startTimerLocked(d time.Duration, onExpire func()) {
	o.deadline = o.clock.Now().Add(d)
	o.remaining = int(d / time.Second)
	t := o.clock.NewTicker(tick)
	o.ticker = t
	gen, ctx := o.gen, o.phaseCtx

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.Chan():
			}
			o.mu.Lock()
			if o.gen != gen {
				o.mu.Unlock()
				return
			}
			left := o.deadline.Sub(o.clock.Now())
			if left <= 0 {
				o.remaining = 0
				t.Stop()
				o.ticker = nil
				onExpire()
				o.notifyLocked()
				o.mu.Unlock()
				return
			}
			o.remaining = int((left + time.Second - 1) / time.Second)
			o.notifyLocked()
			o.mu.Unlock()
		}
	}()
}

func (o *Orchestrator) countdownExpiredLocked() {
	if o.cfg.Manual {
		o.enterLocked(ManualSelection)
		return
	}
	o.enterLocked(Selecting)
	o.fetchLocked(func(ctx context.Context) (*models.Round, error) {
		o.refreshGame(ctx)
		return o.sel.NextRound(ctx)
	}, o.autoFailedLocked)
}

// refreshGame はゲームの設定を取り直します。失敗したら前の値のまま
func (o *Orchestrator) refreshGame(ctx context.Context) {
	game, err := o.sel.CurrentGame(ctx)
	if err != nil {
		o.logger.Debug("game settings refresh failed", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.game = game.Config.Normalize()
	o.mu.Unlock()
}

// fetchLocked はラウンドの取得とランダム番号のプレビューを裏で行います。
func (o *Orchestrator) fetchLocked(fetch func(ctx context.Context) (*models.Round, error), failed func(error)) {
	gen, ctx := o.gen, o.phaseCtx
	o.fetching = true

	go func() {
		round, err := fetch(ctx)
		var draw *models.PendingDraw
		if err == nil {
			draw = o.previewFor(ctx, round)
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.gen != gen {
			// 画面はもう先に進んでいる
			if draw != nil {
				go o.discard(draw.ID)
			}
			return
		}
		o.fetching = false
		if err != nil {
			failed(err)
			o.notifyLocked()
			return
		}
		o.round, o.draw, o.lastErr = round, draw, nil
		o.enterThemeAudioLocked()
		o.notifyLocked()
	}()
}

// previewFor は random 指定のお題の番号を仮抽選します。失敗してもラウンドは続ける
func (o *Orchestrator) previewFor(ctx context.Context, round *models.Round) *models.PendingDraw {
	if round.Challenge.Player.TargetType != models.TargetRandom {
		return nil
	}
	o.mu.Lock()
	maxValue := o.game.DefaultParticipants
	o.mu.Unlock()
	count := min(max(round.Challenge.Participants, 1), maxValue)

	draw, err := o.sel.PreviewNumbers(ctx, maxValue, count)
	if err != nil {
		o.logger.Warn("random number preview failed", zap.Error(err))
		return nil
	}
	return draw
}

func (o *Orchestrator) autoFailedLocked(err error) {
	o.lastErr = err
	if errors.Is(err, selection.ErrNoPlayers) {
		o.logger.Error("no players in this game", zap.Error(err))
		o.enterLocked(Idle)
		return
	}

	o.logger.Warn("selection failed, restarting countdown", zap.Error(err))
	var noChallenges *selection.NoChallengesError
	username := ""
	if errors.As(err, &noChallenges) {
		username = noChallenges.Username
	}
	// 謝罪を止められても次の待ち時間には進む
	o.speakThenAlwaysLocked(apology(username), announce.Voice{}, o.startCountdownLocked)
}

func (o *Orchestrator) enterThemeAudioLocked() {
	o.enterLocked(ThemeAudio)
	secs := noClipSeconds
	if clip := o.round.Music; clip != nil {
		secs = clip.Duration
		if secs <= 0 || secs > maxClipSeconds {
			secs = maxClipSeconds
		}
		o.playLocked(clip.URL)
	}
	o.startTimerLocked(time.Duration(secs)*time.Second, o.enterAnnouncingLocked)
}

func (o *Orchestrator) enterAnnouncingLocked() {
	o.enterLocked(Announcing)
	var numbers []int
	if o.draw != nil {
		numbers = o.draw.Numbers
	}
	voice := announce.VoiceFromConfig(o.round.Challenge.Voice)
	o.speakLocked(Script(o.round, numbers), voice, func() {
		if o.state == Announcing {
			o.enterLocked(ReadyToPlay)
		}
	})
}

func (o *Orchestrator) finishLocked() {
	o.enterLocked(Finished)
	o.speakLocked([]string{timeUpLine}, announce.Voice{}, nil)
}

// speakLocked は読み上げを開始し、最後まで届いたら then を呼びます(mu 保持)。
// 途中で止められたら then は呼ばない
func (o *Orchestrator) speakLocked(fragments []string, voice announce.Voice, then func()) {
	o.speak(fragments, voice, then, false)
}

// speakThenAlwaysLocked は StopAudio で止められても then を呼びます。
// 状態が変わった後(Reset など)は呼ばない
func (o *Orchestrator) speakThenAlwaysLocked(fragments []string, voice announce.Voice, then func()) {
	o.speak(fragments, voice, then, true)
}

func (o *Orchestrator) speak(fragments []string, voice announce.Voice, then func(), always bool) {
	o.cancelSpeechLocked()
	ctx, cancel := context.WithCancel(o.phaseCtx)
	o.speechCancel = cancel
	o.speaking = true
	id, gen := o.speechID, o.gen

	go func() {
		err := o.announcer.Announce(ctx, fragments, voice)
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.speechID != id {
			cancel()
			if always && o.gen == gen && then != nil {
				then()
				o.notifyLocked()
			}
			return
		}
		cancel()
		o.speechCancel = nil
		o.speaking = false
		if then != nil && (err == nil || always) {
			then()
		}
		o.notifyLocked()
	}()
}

func (o *Orchestrator) cancelSpeechLocked() {
	o.speechID++
	if o.speechCancel != nil {
		o.speechCancel()
		o.speechCancel = nil
		o.announcer.Speaker().CancelAll()
	}
	o.speaking = false
}

func (o *Orchestrator) playLocked(url string) {
	if url == "" {
		return
	}
	o.stopMediaLocked()
	ctx, cancel := context.WithCancel(o.phaseCtx)
	o.mediaCancel = cancel
	go func() {
		defer cancel()
		if err := o.media.Play(ctx, url); err != nil && ctx.Err() == nil {
			// 再生の失敗で進行は止めない
			o.logger.Warn("media playback failed", zap.String("url", url), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) stopMediaLocked() {
	if o.mediaCancel != nil {
		o.mediaCancel()
		o.mediaCancel = nil
		o.media.Stop()
	}
}

func (o *Orchestrator) discard(drawID string) {
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	if err := o.sel.DiscardNumbers(ctx, drawID); err != nil {
		o.logger.Warn("discarding random number draw failed", zap.String("drawID", drawID), zap.Error(err))
	}
}

func (o *Orchestrator) commit(drawID string) {
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	if _, err := o.sel.CommitNumbers(ctx, drawID); err != nil {
		o.logger.Warn("committing random numbers failed", zap.String("drawID", drawID), zap.Error(err))
	}
}

// takeDrawLocked は保留中の抽選を取り出します。
func (o *Orchestrator) takeDrawLocked() *models.PendingDraw {
	d := o.draw
	o.draw = nil
	return d
}

// ---- 操作 ----

// ConfirmManual starts the round of a hand-picked challenge.
func (o *Orchestrator) ConfirmManual(challengeID uint) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != ManualSelection || o.fetching {
		return o.invalid("confirm")
	}
	o.fetchLocked(func(ctx context.Context) (*models.Round, error) {
		return o.sel.ChallengeRound(ctx, challengeID)
	}, func(err error) {
		// 手動選択の画面に残る
		o.logger.Warn("manual challenge fetch failed", zap.Uint("challengeID", challengeID), zap.Error(err))
		o.lastErr = err
	})
	o.notifyLocked()
	return nil
}

// SkipAhead cuts the theme song short.
func (o *Orchestrator) SkipAhead() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != ThemeAudio {
		return o.invalid("skip ahead")
	}
	o.enterAnnouncingLocked()
	o.notifyLocked()
	return nil
}

// Play starts the challenge: a timer when it has a finite duration, otherwise
// straight into the next countdown. A pending random draw is committed.
func (o *Orchestrator) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != ReadyToPlay {
		return o.invalid("play")
	}
	if d := o.takeDrawLocked(); d != nil {
		go o.commit(d.ID)
	}

	ch := o.round.Challenge
	if !ch.HasFiniteDuration() {
		o.startCountdownLocked()
		return nil
	}
	o.enterLocked(ActiveTimer)
	if ch.Sound != nil {
		o.playLocked(ch.Sound.URL)
	}
	o.startTimerLocked(time.Duration(ch.TimeLimit)*time.Second, o.finishLocked)
	o.notifyLocked()
	return nil
}

// Skip drops the announced round and its pending draw.
func (o *Orchestrator) Skip() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Announcing && o.state != ReadyToPlay {
		return o.invalid("skip")
	}
	if d := o.takeDrawLocked(); d != nil {
		go o.discard(d.ID)
	}
	o.startCountdownLocked()
	return nil
}

func (o *Orchestrator) EndEarly() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != ActiveTimer {
		return o.invalid("end")
	}
	o.finishLocked()
	o.notifyLocked()
	return nil
}

// Continue moves from a finished challenge to the next countdown.
func (o *Orchestrator) Continue() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Finished {
		return o.invalid("continue")
	}
	o.startCountdownLocked()
	return nil
}

// Repeat reads the challenge again. Not allowed while speaking.
func (o *Orchestrator) Repeat() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if (o.state != Announcing && o.state != ReadyToPlay) || o.speaking {
		return o.invalid("repeat")
	}
	o.enterAnnouncingLocked()
	o.notifyLocked()
	return nil
}

// StopAudio silences speech and media in any state. The state itself and
// its timer are kept. Safe to call repeatedly.
func (o *Orchestrator) StopAudio() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelSpeechLocked()
	o.stopMediaLocked()
	o.notifyLocked()
}

func (o *Orchestrator) PauseSpeech() error {
	p, ok := o.announcer.Speaker().(announce.Pauser)
	if !ok {
		return ErrPauseUnsupported
	}
	return p.Pause()
}

func (o *Orchestrator) ResumeSpeech() error {
	p, ok := o.announcer.Speaker().(announce.Pauser)
	if !ok {
		return ErrPauseUnsupported
	}
	return p.Resume()
}

// Reset goes back to IDLE from anywhere.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
	o.notifyLocked()
}

func (o *Orchestrator) resetLocked() {
	if d := o.takeDrawLocked(); d != nil {
		go o.discard(d.ID)
	}
	o.enterLocked(Idle)
	o.round = nil
	o.fetching = false
	o.lastErr = nil
}

// Close resets the session, releases the wake lock and ends all subscriptions.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.resetLocked()
	o.closed = true
	o.baseCancel()
	for ch := range o.subs {
		close(ch)
	}
	o.subs = nil
	if o.wakeHeld {
		o.wakeHeld = false
		return o.wake.Release()
	}
	return nil
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     o.state,
		Remaining: o.remaining,
		Round:     o.round,
		Speaking:  o.speaking,
		Manual:    o.cfg.Manual,
		Err:       o.lastErr,
	}
	if o.draw != nil {
		s.Numbers = append([]int(nil), o.draw.Numbers...)
	}
	return s
}

// Subscribe returns a feed of snapshots. Slow readers only see the latest one.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	o.subs[ch] = struct{}{}
	ch <- o.snapshotLocked()
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
	}
}

func (o *Orchestrator) notifyLocked() {
	if len(o.subs) == 0 {
		return
	}
	snap := o.snapshotLocked()
	for ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
