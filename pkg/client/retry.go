package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultRetryDelays mirrors the cadence the coordinator was tuned
// for: renegotiation requests can race a peer whose media pipeline is
// not ready yet, so each request is re-issued a few times.
var defaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

// retryScheduler re-issues a request at fixed delays. Every firing
// re-checks its condition first, so an attempt that already succeeded
// turns the remaining scheduled ones into no-ops instead of a
// renegotiation storm.
type retryScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending map[string][]*time.Timer
	closed  bool
}

func newRetryScheduler(delays []time.Duration) *retryScheduler {
	if len(delays) == 0 {
		delays = defaultRetryDelays
	}
	return &retryScheduler{
		delays:  delays,
		pending: make(map[string][]*time.Timer),
	}
}

// Schedule runs attempt once now and once after each configured delay.
// attempt reports whether its triggering condition still held at fire
// time. Scheduling again under the same key replaces the pending
// attempts.
func (s *retryScheduler) Schedule(key string, attempt func() bool) {
	s.Cancel(key)

	if !attempt() {
		log.Debug().Str("module", "client.retry").Str("key", key).Msg("condition gone on first attempt")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	timers := make([]*time.Timer, 0, len(s.delays))
	for _, d := range s.delays {
		timers = append(timers, time.AfterFunc(d, func() {
			if !attempt() {
				log.Debug().Str("module", "client.retry").Str("key", key).Msg("retry skipped, condition gone")
			}
		}))
	}
	s.pending[key] = timers
}

// Cancel stops the remaining attempts for key, if any.
func (s *retryScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending[key] {
		t.Stop()
	}
	delete(s.pending, key)
}

func (s *retryScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, timers := range s.pending {
		for _, t := range timers {
			t.Stop()
		}
		delete(s.pending, key)
	}
}
