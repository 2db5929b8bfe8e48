package session

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"partyserver/models"

	"go.uber.org/zap"
)

// Selector はサーバー側の抽選APIです。client.Client が実装します。
type Selector interface {
	NextRound(ctx context.Context) (*models.Round, error)
	ChallengeRound(ctx context.Context, challengeID uint) (*models.Round, error)
	CurrentGame(ctx context.Context) (*models.Game, error)
	PreviewNumbers(ctx context.Context, maxValue, count int) (*models.PendingDraw, error)
	CommitNumbers(ctx context.Context, drawID string) ([]int, error)
	DiscardNumbers(ctx context.Context, drawID string) error
}

// MediaPlayer plays theme songs and challenge sounds.
type MediaPlayer interface {
	// Play blocks until playback ends, fails or ctx is done.
	Play(ctx context.Context, url string) error
	Stop()
}

// WakeLock keeps the display awake while a session runs.
type WakeLock interface {
	Acquire() error
	Release() error
}

type nopWakeLock struct{}

func (nopWakeLock) Acquire() error { return nil }
func (nopWakeLock) Release() error { return nil }

// CommandPlayer は ffplay 互換のコマンドで再生します。
type CommandPlayer struct {
	bin    string
	logger *zap.Logger

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
}

func NewCommandPlayer(bin string, logger *zap.Logger) *CommandPlayer {
	if bin == "" {
		bin = "ffplay"
	}
	return &CommandPlayer{bin: bin, logger: logger, running: make(map[*exec.Cmd]struct{})}
}

func (p *CommandPlayer) Play(ctx context.Context, url string) error {
	cmd := exec.CommandContext(ctx, p.bin, "-nodisp", "-autoexit", "-loglevel", "error", url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.bin, err)
	}
	p.mu.Lock()
	p.running[cmd] = struct{}{}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.running, cmd)
		p.mu.Unlock()
	}()

	err := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited with %d", p.bin, exitErr.ExitCode())
	}
	return err
}

func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cmd := range p.running {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}

// CommandWakeLock は systemd-inhibit などの抑止コマンドを起動しておきます。
type CommandWakeLock struct {
	argv   []string
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewCommandWakeLock(logger *zap.Logger, argv ...string) *CommandWakeLock {
	if len(argv) == 0 {
		argv = []string{"systemd-inhibit", "--what=idle:sleep", "--why=game mode", "sleep", "infinity"}
	}
	return &CommandWakeLock{argv: argv, logger: logger}
}

func (w *CommandWakeLock) Acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, w.argv[0], w.argv[1:]...)
	if err := cmd.Start(); err != nil {
		cancel()
		return err
	}
	w.cancel = cancel
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			w.logger.Warn("wake lock process exited", zap.Error(err))
		}
	}()
	return nil
}

func (w *CommandWakeLock) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return nil
}
