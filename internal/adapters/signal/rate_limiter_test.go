package signal

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)
	if !rl.Allow("c") || !rl.Allow("c") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("c") {
		t.Fatal("third attempt inside the window should be blocked")
	}
	if !rl.Allow("other") {
		t.Fatal("windows are per connection")
	}
	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("c") {
		t.Fatal("window did not slide")
	}

	rl.Allow("c")
	rl.Forget("c")
	if !rl.Allow("c") {
		t.Fatal("forgotten connection starts fresh")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !rl.Allow("c") {
			t.Fatal("zero limit should disable limiting")
		}
	}
}
