package signal

import (
	"sync"
	"time"

	"github.com/teamscreen/teamscreen/internal/domain"
)

// ChatRateLimiter caps chat messages per member over a sliding window.
// Negotiation relay traffic is never rate limited.
type ChatRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.MemberID][]time.Time
	limit    int
	interval time.Duration
}

func NewChatRateLimiter(limit int, interval time.Duration) *ChatRateLimiter {
	return &ChatRateLimiter{
		history:  make(map[domain.MemberID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *ChatRateLimiter) Allow(mid domain.MemberID) bool {
	if rl.limit <= 0 || rl.interval <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[mid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[mid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[mid] = fresh
	return true
}

// Forget drops the member's window on disconnect.
func (rl *ChatRateLimiter) Forget(mid domain.MemberID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, mid)
}
