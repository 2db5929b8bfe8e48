package announce

import (
	"context"
	"strings"
)

// Sequence hands out the fragments of one announcement, once, in order.
// Blank fragments are skipped and a cancelled context ends the sequence.
type Sequence struct {
	fragments []string
	pos       int
}

func NewSequence(fragments []string) *Sequence {
	return &Sequence{fragments: fragments}
}

// Next returns the next fragment to speak. ok is false when the sequence is
// exhausted or ctx is done.
func (s *Sequence) Next(ctx context.Context) (text string, ok bool) {
	for s.pos < len(s.fragments) {
		if ctx.Err() != nil {
			return "", false
		}
		text = strings.TrimSpace(s.fragments[s.pos])
		s.pos++
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// Remaining は未配信の断片数(空の断片を含む)です。
func (s *Sequence) Remaining() int {
	return len(s.fragments) - s.pos
}
