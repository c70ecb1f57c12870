package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
)

type sessionEntry struct {
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry tracks live connections by member id. The relay resolves
// its receivers here; rooms keep their own membership sets.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.MemberID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.MemberID]*sessionEntry)}
}

func (r *Registry) Bind(mid domain.MemberID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[mid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("member", string(mid)).Msg("bound session")
}

func (r *Registry) Get(mid domain.MemberID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[mid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Unbind(mid domain.MemberID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, mid)
	log.Info().Str("module", "app.registry").Str("member", string(mid)).Msg("unbound session")
}

// Cancel tears the connection down through its context; the read pump
// then runs the regular disconnect cleanup.
func (r *Registry) Cancel(mid domain.MemberID) bool {
	r.mu.RLock()
	e, ok := r.sessions[mid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
