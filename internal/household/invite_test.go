package household

import "testing"

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatalf("GenerateInviteCode: %v", err)
		}
		if !ValidInviteCode(code) {
			t.Fatalf("code %q is not six characters of [A-Z0-9]", code)
		}
		seen[code] = true
	}
	if len(seen) < 190 {
		t.Errorf("only %d distinct codes out of 200", len(seen))
	}
}

func TestValidInviteCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC123", true},
		{"ZZZZZZ", true},
		{"abc123", false},
		{"ABC12", false},
		{"ABC1234", false},
		{"ABC-12", false},
	}
	for _, tt := range tests {
		if got := ValidInviteCode(tt.code); got != tt.want {
			t.Errorf("ValidInviteCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	if got := NormalizeInviteCode("  abc123 "); got != "ABC123" {
		t.Errorf("NormalizeInviteCode = %q, want %q", got, "ABC123")
	}
}
