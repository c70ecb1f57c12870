package signal

import (
	"testing"
	"time"
)

func TestChatRateLimiterWindow(t *testing.T) {
	rl := NewChatRateLimiter(2, 50*time.Millisecond)

	if !rl.Allow("m") || !rl.Allow("m") {
		t.Fatal("first two messages should pass")
	}
	if rl.Allow("m") {
		t.Fatal("third message inside the window should be dropped")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("m") {
		t.Fatal("window expiry should free the budget")
	}
}

func TestChatRateLimiterPerMember(t *testing.T) {
	rl := NewChatRateLimiter(1, time.Minute)
	if !rl.Allow("a") {
		t.Fatal("a's first message should pass")
	}
	if !rl.Allow("b") {
		t.Fatal("b must not be throttled by a's traffic")
	}
}

func TestChatRateLimiterDisabled(t *testing.T) {
	rl := NewChatRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow("m") {
			t.Fatal("limit 0 means unlimited")
		}
	}
}

func TestChatRateLimiterForget(t *testing.T) {
	rl := NewChatRateLimiter(1, time.Minute)
	rl.Allow("m")
	rl.Forget("m")
	if !rl.Allow("m") {
		t.Fatal("forget should reset the member's window")
	}
}
