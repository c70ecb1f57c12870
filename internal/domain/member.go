// Package domain contains entities without logic, just meta-data.
package domain

const (
	MaxNicknameLen  = 36
	DefaultNickname = "guest"
)

// MemberID identifies one live connection. It is assigned by the
// transport and dies with the connection.
type MemberID string

// Member is one participant's presence inside a room: nickname is set
// once at join time, the sharing flag is mutated only through the
// presence tracker.
type Member struct {
	ID       MemberID
	Nickname string
	Sharing  bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id MemberID) *Member {
	return &Member{ID: id}
}

// SetNickname normalizes the join-time nickname. Empty falls back to a
// placeholder, overlong input is truncated.
func (m *Member) SetNickname(nickname string) {
	if nickname == "" {
		nickname = DefaultNickname
	}
	if len(nickname) > MaxNicknameLen {
		nickname = nickname[:MaxNicknameLen]
	}
	m.Nickname = nickname
}
