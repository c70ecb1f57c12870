package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
)

// fakeConn records every frame pushed at it, optionally failing to
// simulate a saturated send buffer.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send buffer full")
	}
	cp := make(core.Frame, len(fr))
	copy(cp, fr)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// byType decodes the recorded frames and keeps those carrying kind.
func (f *fakeConn) byType(t *testing.T, kind string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("undecodable frame %q: %v", fr, err)
		}
		if m["type"] == kind {
			out = append(out, m)
		}
	}
	return out
}

func newFakeSession(id string) (core.MemberSession, *fakeConn) {
	conn := &fakeConn{}
	return core.NewMemberSession(domain.NewMember(domain.MemberID(id)), conn), conn
}
