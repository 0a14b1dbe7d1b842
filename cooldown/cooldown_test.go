package cooldown

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker() (*Tracker, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := New()
	tr.now = clk.Now
	return tr, clk
}

func TestCheckAndExpiry(t *testing.T) {
	tr, clk := newTestTracker()
	tr.Arm("u1", "joke", 5*time.Second)

	clk.Advance(4 * time.Second)
	active, remaining := tr.Check("u1", "joke")
	if !active || remaining != 1 {
		t.Fatalf("at t+d-1s: active=%v remaining=%d, want true/1", active, remaining)
	}

	clk.Advance(1*time.Second + time.Millisecond)
	if active, _ := tr.Check("u1", "joke"); active {
		t.Fatal("cooldown should be inactive after expiry")
	}
}

func TestRemainingRoundsUp(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 30},
		{500 * time.Millisecond, 30},
		{29*time.Second + 1, 1},
		{10 * time.Second, 20},
	}
	for _, tt := range tests {
		tr, clk := newTestTracker()
		tr.Arm("u", "commands", 30*time.Second)
		clk.Advance(tt.elapsed)
		if _, got := tr.Check("u", "commands"); got != tt.want {
			t.Errorf("elapsed %s: remaining = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
}

func TestKeysAreIndependent(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Arm("u1", "rank", 10*time.Second)

	if active, _ := tr.Check("u2", "rank"); active {
		t.Error("other user must not share the cooldown")
	}
	if active, _ := tr.Check("u1", "leaderboard"); active {
		t.Error("other command must not share the cooldown")
	}
	if active, _ := tr.Check("u1", "RANK"); !active {
		t.Error("command names are case-insensitive")
	}
}

func TestArmZeroIsNoop(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Arm("u1", "title", 0)
	if tr.Len() != 0 {
		t.Fatalf("zero cooldown should not be stored, len=%d", tr.Len())
	}
}

func TestArmSweepsExpired(t *testing.T) {
	tr, clk := newTestTracker()
	tr.Arm("u1", "a", time.Second)
	tr.Arm("u2", "b", time.Second)
	clk.Advance(2 * time.Second)

	if tr.Len() != 2 {
		t.Fatalf("check must not sweep; len=%d", tr.Len())
	}
	tr.Arm("u3", "c", time.Minute)
	if tr.Len() != 1 {
		t.Fatalf("arm should sweep expired entries; len=%d", tr.Len())
	}
}

func TestClear(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Arm("u1", "a", time.Minute)
	tr.Arm("u1", "b", time.Minute)
	tr.Arm("u2", "a", time.Minute)

	if n := tr.ClearUser("u1"); n != 2 {
		t.Errorf("ClearUser removed %d, want 2", n)
	}
	if active, _ := tr.Check("u2", "a"); !active {
		t.Error("u2 cooldown should survive ClearUser(u1)")
	}
	if n := tr.Clear(); n != 1 {
		t.Errorf("Clear removed %d, want 1", n)
	}
	if tr.Len() != 0 {
		t.Errorf("len after Clear = %d", tr.Len())
	}
}

func TestConcurrentUse(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tr.Arm("user", "cmd", time.Minute)
				tr.Check("user", "cmd")
				if j%50 == 0 {
					tr.ClearUser("user")
				}
			}
		}(i)
	}
	wg.Wait()
}
