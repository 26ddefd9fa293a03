package household

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	InviteCodeLength      = 6
	MaxInviteCodeAttempts = 10
	inviteCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateInviteCode returns a random six-character code over [A-Z0-9].
func GenerateInviteCode() (string, error) {
	var b strings.Builder
	b.Grow(InviteCodeLength)
	limit := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b.WriteByte(inviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode trims and upper-cases user input.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidInviteCode reports whether code has the generated shape.
func ValidInviteCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(inviteCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
