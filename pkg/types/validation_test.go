package types

import (
	"strings"
	"testing"
)

func TestIsValidPlayerID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"simple", "alice", true},
		{"digits", "player42", true},
		{"underscore and hyphen", "north_america-1", true},
		{"single char", "a", true},
		{"max length", strings.Repeat("x", 64), true},
		{"empty", "", false},
		{"too long", strings.Repeat("x", 65), false},
		{"space", "bad id", false},
		{"slash", "a/b", false},
		{"unicode", "プレイヤー", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPlayerID(tt.id); got != tt.want {
				t.Errorf("IsValidPlayerID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
