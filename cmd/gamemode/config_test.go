package main

import (
	"bytes"
	"strings"
	"testing"

	"partyserver/models"
	"partyserver/session"
)

func TestValidate(t *testing.T) {
	ok := Config{server: "http://x", game: "fam", user: "ana", minSeconds: 60, maxSeconds: 120}
	if err := ok.validate(); err != nil {
		t.Fatal(err)
	}
	bad := ok
	bad.maxSeconds = 30
	if err := bad.validate(); err == nil {
		t.Error("max below min accepted")
	}
	missing := ok
	missing.user = ""
	if err := missing.validate(); err == nil {
		t.Error("missing user accepted")
	}
}

func TestArgID(t *testing.T) {
	if id, err := argID([]string{"pick", "12"}); err != nil || id != 12 {
		t.Errorf("argID = %d, %v", id, err)
	}
	if _, err := argID([]string{"pick"}); err == nil {
		t.Error("missing id accepted")
	}
	if _, err := argID([]string{"pick", "x"}); err == nil {
		t.Error("invalid id accepted")
	}
}

func TestPrintStatesOnlyOnChange(t *testing.T) {
	feed := make(chan session.Snapshot, 4)
	round := &models.Round{Victim: models.Victim{Username: "Ana"}, Challenge: models.Challenge{Title: "Baile"}}
	feed <- session.Snapshot{State: session.Countdown, Remaining: 60}
	feed <- session.Snapshot{State: session.Countdown, Remaining: 59}
	feed <- session.Snapshot{State: session.ThemeAudio, Remaining: 15, Round: round}
	close(feed)

	var out bytes.Buffer
	printStates(feed, &out)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[1] != "[THEME_AUDIO] Ana proposes: Baile" {
		t.Errorf("theme line = %q", lines[1])
	}
}
