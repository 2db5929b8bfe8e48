package announce

import (
	"context"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultLeadIn = time.Second
	DefaultGap    = 500 * time.Millisecond
)

// Speaker は音声合成エンジンです。
type Speaker interface {
	// Speak blocks until the utterance ends, fails or ctx is done.
	Speak(ctx context.Context, text string, voice Voice) error
	CancelAll()
	Voices(ctx context.Context) ([]string, error)
}

// Pauser is implemented by speakers that can pause mid-utterance.
type Pauser interface {
	Pause() error
	Resume() error
}

// Announcer は断片を順番に1つずつ読み上げます。
// 最初の発話の前に LeadIn、発話の間に Gap だけ待つ(TTSエンジンの重なり防止)
type Announcer struct {
	speaker Speaker
	clock   clockwork.Clock
	logger  *zap.Logger

	LeadIn time.Duration
	Gap    time.Duration
}

func New(speaker Speaker, clock clockwork.Clock, logger *zap.Logger) *Announcer {
	return &Announcer{
		speaker: speaker,
		clock:   clock,
		logger:  logger,
		LeadIn:  DefaultLeadIn,
		Gap:     DefaultGap,
	}
}

func (a *Announcer) Speaker() Speaker {
	return a.speaker
}

// Announce speaks every non-empty fragment in order. It returns nil once the
// last utterance has ended or failed, and ctx.Err() when cancelled; nothing
// is spoken after cancellation.
func (a *Announcer) Announce(ctx context.Context, fragments []string, voice Voice) error {
	voice = a.resolveVoice(ctx, voice.normalized())
	seq := NewSequence(fragments)

	if err := a.sleep(ctx, a.LeadIn); err != nil {
		return err
	}
	first := true
	for {
		text, ok := seq.Next(ctx)
		if !ok {
			break
		}
		if !first {
			if err := a.sleep(ctx, a.Gap); err != nil {
				return err
			}
		}
		first = false

		if err := a.speaker.Speak(ctx, text, voice); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// 1つの発話の失敗で全体を止めない
			a.logger.Warn("speech synthesis failed", zap.String("text", text), zap.Error(err))
		}
	}
	return ctx.Err()
}

// resolveVoice は使えない声の名前を既定の声に置き換えます。
func (a *Announcer) resolveVoice(ctx context.Context, v Voice) Voice {
	if v.Name == "" {
		return v
	}
	voices, err := a.speaker.Voices(ctx)
	if err != nil {
		a.logger.Debug("voice list unavailable, using default", zap.Error(err))
		v.Name = ""
		return v
	}
	if !slices.Contains(voices, v.Name) {
		a.logger.Debug("voice not installed, using default", zap.String("voice", v.Name))
		v.Name = ""
	}
	return v
}

func (a *Announcer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := a.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}
