package auth

import (
	"errors"
	"testing"

	"partyserver/models"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret")
	user := models.User{GameID: 3, Username: "ana", Role: models.RoleFamilyAdmin, CanPlay: true}
	user.ID = 9

	token, err := m.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 9 || claims.GameID != 3 || claims.Role != models.RoleFamilyAdmin || !claims.CanPlay {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenRejectsOtherKey(t *testing.T) {
	token, err := NewTokenManager("one").GenerateAdminToken("root")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenManager("two").ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}
