package handlers

import (
	"testing"

	"partyserver/models"
)

func intPtr(v int) *int { return &v }

func TestApplyChallengeRequestDefaults(t *testing.T) {
	var ch models.Challenge
	err := applyChallengeRequest(&ch, models.ChallengeRequest{Title: "Baile", Text: "Baila 30 segundos"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if ch.TimeLimit != models.DefaultTimeLimit {
		t.Errorf("TimeLimit = %d, want %d", ch.TimeLimit, models.DefaultTimeLimit)
	}
	if ch.DurationType != models.DurationFixed || ch.Player.TargetType != models.TargetAll || ch.Participants != 1 {
		t.Errorf("defaults not applied: %+v", ch)
	}
}

func TestApplyChallengeRequestKeepsZeroTimeLimit(t *testing.T) {
	var ch models.Challenge
	req := models.ChallengeRequest{Title: "Mimo", Text: "Sin hablar", TimeLimit: intPtr(0)}
	if err := applyChallengeRequest(&ch, req, true); err != nil {
		t.Fatal(err)
	}
	if ch.TimeLimit != 0 || ch.HasFiniteDuration() {
		t.Errorf("explicit zero must mean indefinite, got %d", ch.TimeLimit)
	}
}

func TestApplyChallengeRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.ChallengeRequest
	}{
		{"missing text", models.ChallengeRequest{Title: "x"}},
		{"bad duration type", models.ChallengeRequest{Title: "x", Text: "y", DurationType: "forever"}},
		{"bad target", models.ChallengeRequest{Title: "x", Text: "y", PlayerConfig: models.PlayerConfig{TargetType: "left"}}},
		{"negative limit", models.ChallengeRequest{Title: "x", Text: "y", TimeLimit: intPtr(-5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ch models.Challenge
			err := applyChallengeRequest(&ch, tt.req, true)
			if _, ok := err.(validationError); !ok {
				t.Errorf("err = %v, want validationError", err)
			}
		})
	}
}

func TestApplyChallengeRequestUpdateKeepsTitle(t *testing.T) {
	ch := models.Challenge{Title: "Viejo", Text: "Texto", TimeLimit: 90}
	if err := applyChallengeRequest(&ch, models.ChallengeRequest{Rules: "Sin manos"}, false); err != nil {
		t.Fatal(err)
	}
	if ch.Title != "Viejo" || ch.TimeLimit != 90 || ch.Rules != "Sin manos" {
		t.Errorf("update changed unrelated fields: %+v", ch)
	}
}
