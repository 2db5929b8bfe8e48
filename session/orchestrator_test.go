package session

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"partyserver/models"
	"partyserver/selection"
)

func startSession(t *testing.T, h *harness) {
	t.Helper()
	if err := h.o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
}

// toReady は待ち時間とテーマ曲を進めて READY_TO_PLAY まで進めます。
func toReady(t *testing.T, h *harness) Snapshot {
	t.Helper()
	h.clock.Advance(60 * time.Second)
	snap := h.waitState(t, ThemeAudio)
	h.clock.Advance(time.Duration(snap.Remaining) * time.Second)
	return h.waitState(t, ReadyToPlay)
}

// assertSingleTimer は待機中のタイマーが1つ以下であることを確認します。
func assertSingleTimer(t *testing.T, h *harness) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 2); err == nil {
		t.Fatal("more than one timer is pending")
	}
}

func TestFullCycle(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	startSession(t, h)

	snap := h.o.Snapshot()
	if snap.State != Countdown || snap.Remaining != 60 {
		t.Fatalf("after start: %+v", snap)
	}
	h.clock.Advance(10 * time.Second)
	waitFor(t, "countdown tick", func() bool { return h.o.Snapshot().Remaining == 50 })
	assertSingleTimer(t, h)

	h.clock.Advance(50 * time.Second)
	snap = h.waitState(t, ThemeAudio)
	if snap.Remaining != 30 {
		t.Errorf("theme audio lasts %d s, want clip clamped to 30", snap.Remaining)
	}
	waitFor(t, "theme song", func() bool { return slices.Contains(h.media.urls(), "http://files/theme.mp3") })
	assertSingleTimer(t, h)

	h.clock.Advance(30 * time.Second)
	h.waitState(t, ReadyToPlay)
	said := h.speaker.said()
	for _, want := range []string{
		"Atención. Jugador que Propone: Ana.",
		"Prueba: Baile.",
		"Reglas: Ninguna.",
		"Tiempo límite: 20 segundos.",
	} {
		if !slices.Contains(said, want) {
			t.Errorf("announcement missing %q in %q", want, said)
		}
	}
	if said[len(said)-1] != readyLine {
		t.Errorf("last line = %q", said[len(said)-1])
	}

	if err := h.o.Play(); err != nil {
		t.Fatal(err)
	}
	snap = h.o.Snapshot()
	if snap.State != ActiveTimer || snap.Remaining != 20 {
		t.Fatalf("after play: %+v", snap)
	}
	waitFor(t, "challenge sound", func() bool { return slices.Contains(h.media.urls(), "http://files/sfx.mp3") })

	h.clock.Advance(20 * time.Second)
	h.waitState(t, Finished)
	waitFor(t, "time up", func() bool { return slices.Contains(h.speaker.said(), timeUpLine) })

	if err := h.o.Continue(); err != nil {
		t.Fatal(err)
	}
	if got := h.o.Snapshot().State; got != Countdown {
		t.Errorf("after continue: %s", got)
	}
	if h.wake.acquired != 1 {
		t.Errorf("wake lock acquired %d times", h.wake.acquired)
	}
}

func TestThemeAudioWithoutClip(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	r := sampleRound()
	r.Music = nil
	h.sel.rounds = []*models.Round{r}
	startSession(t, h)

	h.clock.Advance(60 * time.Second)
	if snap := h.waitState(t, ThemeAudio); snap.Remaining != noClipSeconds {
		t.Errorf("remaining = %d, want %d", snap.Remaining, noClipSeconds)
	}
}

func TestSkipAheadCutsThemeSong(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	startSession(t, h)
	h.clock.Advance(60 * time.Second)
	h.waitState(t, ThemeAudio)

	if err := h.o.SkipAhead(); err != nil {
		t.Fatal(err)
	}
	h.waitState(t, ReadyToPlay)
	// テーマ曲のタイマーは残っていない
	h.clock.Advance(time.Hour)
	if got := h.o.Snapshot().State; got != ReadyToPlay {
		t.Errorf("stale theme timer moved the session to %s", got)
	}
}

func (h *harness) mediaStops() int {
	h.media.mu.Lock()
	defer h.media.mu.Unlock()
	return h.media.stops
}

func (h *harness) unblockSpeaker() {
	h.speaker.mu.Lock()
	h.speaker.block = false
	h.speaker.mu.Unlock()
}

// failAndApologize は選択を失敗させ、謝罪の読み上げ中で止めます。
func failAndApologize(t *testing.T, h *harness) {
	t.Helper()
	h.sel.errs = []error{errors.New("connection refused")}
	h.speaker.block = true
	startSession(t, h)
	h.clock.Advance(60 * time.Second)
	waitFor(t, "apology", func() bool { return h.o.Snapshot().Speaking })
	if got := h.o.Snapshot().State; got != Selecting {
		t.Fatalf("apology spoken in %s, want %s", got, Selecting)
	}
}

func TestStopAudioDuringApologyRestartsCountdown(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	failAndApologize(t, h)

	h.o.StopAudio()
	snap := h.waitState(t, Countdown)
	if snap.Speaking || snap.Remaining != 60 {
		t.Fatalf("after stopped apology: %+v", snap)
	}
	assertSingleTimer(t, h)

	h.unblockSpeaker()
	h.clock.Advance(60 * time.Second)
	h.waitState(t, ThemeAudio)
}

func TestStopAudioInEveryState(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		// setup はセッションを対象の状態まで進める
		setup func(t *testing.T, h *harness)
		// want は StopAudio の後に落ち着く状態
		want State
		// stopsMedia は再生中の音声を止めるはずの状態
		stopsMedia bool
		// resume は止めた後も進行できることを確かめる
		resume func(t *testing.T, h *harness)
	}{
		{
			name:  "idle",
			setup: func(t *testing.T, h *harness) {},
			want:  Idle,
			resume: func(t *testing.T, h *harness) {
				startSession(t, h)
				h.waitState(t, Countdown)
			},
		},
		{
			name:  "countdown",
			setup: startSession,
			want:  Countdown,
			resume: func(t *testing.T, h *harness) {
				h.clock.Advance(60 * time.Second)
				h.waitState(t, ThemeAudio)
			},
		},
		{
			name:  "selecting apology",
			setup: failAndApologize,
			want:  Countdown,
			resume: func(t *testing.T, h *harness) {
				h.unblockSpeaker()
				h.clock.Advance(60 * time.Second)
				h.waitState(t, ThemeAudio)
			},
		},
		{
			name: "manual selection",
			cfg:  Config{Role: models.RoleFamilyAdmin, Manual: true},
			setup: func(t *testing.T, h *harness) {
				h.sel.manual = map[uint]*models.Round{9: sampleRound()}
				startSession(t, h)
				h.clock.Advance(60 * time.Second)
				h.waitState(t, ManualSelection)
			},
			want: ManualSelection,
			resume: func(t *testing.T, h *harness) {
				if err := h.o.ConfirmManual(9); err != nil {
					t.Fatal(err)
				}
				h.waitState(t, ThemeAudio)
			},
		},
		{
			name: "theme audio",
			setup: func(t *testing.T, h *harness) {
				startSession(t, h)
				h.clock.Advance(60 * time.Second)
				h.waitState(t, ThemeAudio)
				waitFor(t, "theme song", func() bool { return len(h.media.urls()) == 1 })
			},
			want:       ThemeAudio,
			stopsMedia: true,
			resume: func(t *testing.T, h *harness) {
				h.clock.Advance(30 * time.Second)
				h.waitState(t, ReadyToPlay)
			},
		},
		{
			name: "announcing",
			setup: func(t *testing.T, h *harness) {
				h.speaker.block = true
				startSession(t, h)
				h.clock.Advance(60 * time.Second)
				h.waitState(t, ThemeAudio)
				h.clock.Advance(30 * time.Second)
				h.waitState(t, Announcing)
				waitFor(t, "speaking", func() bool { return h.o.Snapshot().Speaking })
			},
			want: Announcing,
			resume: func(t *testing.T, h *harness) {
				h.unblockSpeaker()
				if err := h.o.Repeat(); err != nil {
					t.Fatal(err)
				}
				h.waitState(t, ReadyToPlay)
			},
		},
		{
			name: "ready to play",
			setup: func(t *testing.T, h *harness) {
				startSession(t, h)
				toReady(t, h)
			},
			want: ReadyToPlay,
			resume: func(t *testing.T, h *harness) {
				if err := h.o.Play(); err != nil {
					t.Fatal(err)
				}
				h.waitState(t, ActiveTimer)
			},
		},
		{
			name: "active timer",
			setup: func(t *testing.T, h *harness) {
				startSession(t, h)
				toReady(t, h)
				if err := h.o.Play(); err != nil {
					t.Fatal(err)
				}
				waitFor(t, "challenge sound", func() bool { return slices.Contains(h.media.urls(), "http://files/sfx.mp3") })
			},
			want:       ActiveTimer,
			stopsMedia: true,
			resume: func(t *testing.T, h *harness) {
				h.clock.Advance(20 * time.Second)
				h.waitState(t, Finished)
			},
		},
		{
			name: "finished",
			setup: func(t *testing.T, h *harness) {
				startSession(t, h)
				toReady(t, h)
				if err := h.o.Play(); err != nil {
					t.Fatal(err)
				}
				h.clock.Advance(20 * time.Second)
				h.waitState(t, Finished)
			},
			want: Finished,
			resume: func(t *testing.T, h *harness) {
				if err := h.o.Continue(); err != nil {
					t.Fatal(err)
				}
				h.waitState(t, Countdown)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if cfg.Role == "" {
				cfg.Role = models.RolePlayer
			}
			h := newHarness(t, cfg)
			tt.setup(t, h)
			stops := h.mediaStops()

			h.o.StopAudio()
			h.o.StopAudio()

			snap := h.waitState(t, tt.want)
			waitFor(t, "silence", func() bool { return !h.o.Snapshot().Speaking })
			assertSingleTimer(t, h)
			if tt.stopsMedia {
				if got := h.mediaStops() - stops; got != 1 {
					t.Errorf("media stopped %d times, want 1", got)
				}
			}
			if snap.State != tt.want {
				t.Fatalf("state = %s, want %s", snap.State, tt.want)
			}

			tt.resume(t, h)
		})
	}
}

func TestStopAudioAbortsAnnouncement(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	h.speaker.block = true
	startSession(t, h)
	h.clock.Advance(60 * time.Second)
	h.waitState(t, ThemeAudio)
	h.clock.Advance(30 * time.Second)
	h.waitState(t, Announcing)
	waitFor(t, "speaking", func() bool { return h.o.Snapshot().Speaking })

	if err := h.o.Repeat(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("repeat while speaking: %v", err)
	}
	h.o.StopAudio()
	h.o.StopAudio()

	time.Sleep(20 * time.Millisecond)
	snap := h.o.Snapshot()
	if snap.State != Announcing || snap.Speaking {
		t.Fatalf("interrupted announcement must stay ANNOUNCING: %+v", snap)
	}
	if len(h.speaker.said()) != 0 {
		t.Errorf("spoken after stop: %q", h.speaker.said())
	}

	h.speaker.mu.Lock()
	h.speaker.block = false
	h.speaker.mu.Unlock()
	if err := h.o.Repeat(); err != nil {
		t.Fatal(err)
	}
	h.waitState(t, ReadyToPlay)
}

func randomRound(timeLimit int) *models.Round {
	r := sampleRound()
	r.Music = nil
	r.Challenge.TimeLimit = timeLimit
	r.Challenge.Player.TargetType = models.TargetRandom
	return r
}

func TestSkipDiscardsPendingDraw(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	h.sel.rounds = []*models.Round{randomRound(20)}
	startSession(t, h)

	snap := toReady(t, h)
	if !slices.Equal(snap.Numbers, []int{1, 2}) {
		t.Fatalf("numbers = %v", snap.Numbers)
	}
	if !slices.Equal(h.sel.previews, []int{4, 2}) {
		t.Errorf("preview args = %v, want maxValue 4 count 2", h.sel.previews)
	}
	if !slices.Contains(h.speaker.said(), "Números elegidos: 1, 2.") {
		t.Errorf("numbers not announced: %q", h.speaker.said())
	}

	if err := h.o.Skip(); err != nil {
		t.Fatal(err)
	}
	if got := h.o.Snapshot().State; got != Countdown {
		t.Fatalf("after skip: %s", got)
	}
	waitFor(t, "discard", func() bool { return slices.Equal(h.sel.discarded(), []string{"draw-1"}) })
	if len(h.sel.committed()) != 0 {
		t.Errorf("skipped draw was committed: %v", h.sel.committed())
	}
}

func TestPlayCommitsDrawAndLoopsOnOpenDuration(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	h.sel.rounds = []*models.Round{randomRound(0)}
	startSession(t, h)
	toReady(t, h)

	if err := h.o.Play(); err != nil {
		t.Fatal(err)
	}
	snap := h.o.Snapshot()
	if snap.State != Countdown || snap.Remaining != 60 {
		t.Fatalf("open-ended challenge must loop to countdown: %+v", snap)
	}
	waitFor(t, "commit", func() bool { return slices.Equal(h.sel.committed(), []string{"draw-1"}) })
	if len(h.sel.discarded()) != 0 {
		t.Errorf("played draw was discarded")
	}
}

func TestEndEarly(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	startSession(t, h)
	toReady(t, h)
	if err := h.o.EndEarly(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("end early before play: %v", err)
	}
	if err := h.o.Play(); err != nil {
		t.Fatal(err)
	}
	if err := h.o.EndEarly(); err != nil {
		t.Fatal(err)
	}
	if got := h.o.Snapshot().State; got != Finished {
		t.Errorf("state = %s", got)
	}
	assertSingleTimer(t, h)
}

func TestNoPlayersReturnsToIdle(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	h.sel.errs = []error{selection.ErrNoPlayers}
	startSession(t, h)

	h.clock.Advance(60 * time.Second)
	snap := h.waitState(t, Idle)
	if !errors.Is(snap.Err, selection.ErrNoPlayers) {
		t.Errorf("err = %v", snap.Err)
	}
	// IDLE ではタイマーが動かない
	h.clock.Advance(time.Hour)
	if got := h.o.Snapshot().State; got != Idle {
		t.Errorf("state = %s", got)
	}
}

func TestSelectionErrorsRestartCountdown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		line string
	}{
		{"network", errors.New("connection refused"), retryLine},
		{"exhausted", selection.ErrConcurrencyExhausted, retryLine},
		{"no challenges", &selection.NoChallengesError{PlayerID: 2, Username: "Eva"}, "No hay pruebas disponibles para Eva."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{Role: models.RolePlayer})
			h.sel.errs = []error{tt.err}
			startSession(t, h)

			h.clock.Advance(60 * time.Second)
			waitFor(t, "apology", func() bool { return slices.Contains(h.speaker.said(), tt.line) })
			snap := h.waitState(t, Countdown)
			if !errors.Is(snap.Err, tt.err) {
				t.Errorf("err = %v", snap.Err)
			}

			// 次の周回は成功する
			h.clock.Advance(60 * time.Second)
			h.waitState(t, ThemeAudio)
		})
	}
}

func TestManualModeIsAdminOnly(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer, Manual: true})
	if h.o.Snapshot().Manual {
		t.Fatal("player must be forced to automatic mode")
	}
	err := h.o.SetConfig(Config{Role: models.RolePlayer, Manual: true, MinSeconds: 60, MaxSeconds: 60})
	if !errors.Is(err, ErrManualNotAllowed) {
		t.Errorf("err = %v", err)
	}

	admin := newHarness(t, Config{Role: models.RoleFamilyAdmin, Manual: true})
	admin.sel.manual = map[uint]*models.Round{9: sampleRound()}
	startSession(t, admin)
	admin.clock.Advance(60 * time.Second)
	admin.waitState(t, ManualSelection)
	assertSingleTimer(t, admin)

	if err := admin.o.ConfirmManual(404); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "manual failure", func() bool { return admin.o.Snapshot().Err != nil })
	if got := admin.o.Snapshot().State; got != ManualSelection {
		t.Fatalf("failed confirm must stay in manual selection, got %s", got)
	}

	if err := admin.o.ConfirmManual(9); err != nil {
		t.Fatal(err)
	}
	admin.waitState(t, ThemeAudio)
}

func TestResetFromAnyState(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	h.sel.rounds = []*models.Round{randomRound(20)}
	startSession(t, h)
	h.clock.Advance(60 * time.Second)
	h.waitState(t, ThemeAudio)

	h.o.Reset()
	snap := h.o.Snapshot()
	if snap.State != Idle || snap.Round != nil || snap.Numbers != nil {
		t.Fatalf("after reset: %+v", snap)
	}
	waitFor(t, "discard", func() bool { return len(h.sel.discarded()) == 1 })
	h.clock.Advance(time.Hour)
	if got := h.o.Snapshot().State; got != Idle {
		t.Errorf("stale timer fired after reset: %s", got)
	}

	// 再開できる
	startSession(t, h)
	if got := h.o.Snapshot().State; got != Countdown {
		t.Errorf("restart: %s", got)
	}
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	for name, op := range map[string]func() error{
		"play":       h.o.Play,
		"skip":       h.o.Skip,
		"skip ahead": h.o.SkipAhead,
		"continue":   h.o.Continue,
		"repeat":     h.o.Repeat,
	} {
		if err := op(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s in IDLE: %v", name, err)
		}
	}
	startSession(t, h)
	if err := h.o.Start(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double start: %v", err)
	}
}

func TestMediaFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	h.media.fail = true
	startSession(t, h)
	toReady(t, h)
}

func TestSubscribeAndClose(t *testing.T) {
	h := newHarness(t, Config{Role: models.RolePlayer})
	feed, _ := h.o.Subscribe()
	if snap := <-feed; snap.State != Idle {
		t.Fatalf("initial snapshot: %+v", snap)
	}
	startSession(t, h)
	if snap := <-feed; snap.State != Countdown {
		t.Errorf("snapshot after start: %+v", snap)
	}

	if err := h.o.Close(); err != nil {
		t.Fatal(err)
	}
	for range feed {
	}
	if h.wake.released != 1 {
		t.Errorf("wake lock released %d times", h.wake.released)
	}
	if err := h.o.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("start after close: %v", err)
	}
}
