package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, 24*time.Hour)

	pair, err := tokens.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := tokens.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "42")
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}

	refresh, err := tokens.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if refresh.UserID != 42 {
		t.Errorf("refresh UserID = %d, want 42", refresh.UserID)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, time.Hour)
	pair, _ := tokens.Issue(1)

	if _, err := tokens.Verify(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(refresh) err = %v, want ErrInvalidToken", err)
	}
	if _, err := tokens.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyRefresh(access) err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	pair, _ := NewTokens("secret", time.Hour, time.Hour).Issue(1)
	if _, err := NewTokens("other", time.Hour, time.Hour).Verify(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute, time.Hour)
	issued := time.Now()
	tokens.now = func() time.Time { return issued }
	pair, _ := tokens.Issue(1)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := tokens.Verify(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := tokens.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("refresh token should still be valid: %v", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: 1, Type: AccessToken, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewTokens("secret", 0, 0).Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	tokens := NewTokens("secret", 0, 0)
	for _, tok := range []string{"", "abc", strings.Repeat("x.", 3)} {
		if _, err := tokens.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("expected wrong password to fail")
	}
}

func TestPasswordLengthLimit(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("p", MaxPasswordLength)); err != nil {
		t.Errorf("HashPassword at the limit: %v", err)
	}
	if _, err := HashPassword(strings.Repeat("p", MaxPasswordLength+1)); err == nil {
		t.Error("expected bcrypt to reject a password over the limit")
	}
}
