package domain

import (
	"strings"
	"testing"
)

func TestSetNickname(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Alice", "Alice"},
		{"empty falls back", "", DefaultNickname},
		{"overlong truncated", strings.Repeat("x", 50), strings.Repeat("x", MaxNicknameLen)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMember("id")
			m.SetNickname(tc.in)
			if m.Nickname != tc.want {
				t.Fatalf("SetNickname(%q) = %q, want %q", tc.in, m.Nickname, tc.want)
			}
		})
	}
}
