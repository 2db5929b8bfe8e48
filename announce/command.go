package announce

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	baseWordsPerMinute = 175
	basePitch          = 50
)

// CommandSpeaker は espeak-ng 互換のコマンドを発話ごとに起動します。
type CommandSpeaker struct {
	bin    string
	logger *zap.Logger

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
}

func NewCommandSpeaker(bin string, logger *zap.Logger) *CommandSpeaker {
	if bin == "" {
		bin = "espeak-ng"
	}
	return &CommandSpeaker{bin: bin, logger: logger, running: make(map[*exec.Cmd]struct{})}
}

func speakArgs(text string, v Voice) []string {
	v = v.normalized()
	args := []string{
		"-s", strconv.Itoa(int(baseWordsPerMinute * v.Rate)),
		"-p", strconv.Itoa(min(99, int(basePitch*v.Pitch))),
	}
	if v.Name != "" {
		args = append(args, "-v", v.Name)
	}
	return append(args, "--", text)
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string, v Voice) error {
	cmd := exec.CommandContext(ctx, s.bin, speakArgs(text, v)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.bin, err)
	}

	s.mu.Lock()
	s.running[cmd] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, cmd)
		s.mu.Unlock()
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", s.bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CancelAll は実行中の発話プロセスをすべて止めます。
func (s *CommandSpeaker) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cmd := range s.running {
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				s.logger.Debug("kill speech process", zap.Error(err))
			}
		}
	}
}

// Voices lists the language codes reported by "--voices".
func (s *CommandSpeaker) Voices(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, s.bin, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseVoices(out), nil
}

// parseVoices は "Pty Language Age/Gender VoiceName ..." 形式の一覧を読みます。
func parseVoices(out []byte) []string {
	var voices []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) >= 4 {
			voices = append(voices, fields[1], fields[3])
		}
	}
	return voices
}
