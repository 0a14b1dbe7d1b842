package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

func TestFromPrivateMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		pm   twitch.PrivateMessage
		want Message
	}{
		{
			name: "moderator by tag",
			pm: twitch.PrivateMessage{
				User:    twitch.User{ID: "42", Name: "SomeMod", DisplayName: "SomeMod"},
				Channel: "Streamer", Message: "  !rank ", Time: now,
				Tags: map[string]string{"mod": "1", "subscriber": "0"},
			},
			want: Message{Channel: "streamer", UserID: "42", Login: "somemod", DisplayName: "SomeMod", IsModerator: true, Text: "!rank", ReceivedAt: now},
		},
		{
			name: "broadcaster and subscriber badges",
			pm: twitch.PrivateMessage{
				User:    twitch.User{ID: "1", Name: "streamer", Badges: map[string]int{"broadcaster": 1, "subscriber": 12}},
				Channel: "streamer", Message: "hello", Time: now,
			},
			want: Message{Channel: "streamer", UserID: "1", Login: "streamer", DisplayName: "streamer", IsSubscriber: true, IsBroadcaster: true, Text: "hello", ReceivedAt: now},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromPrivateMessage(tt.pm); got != tt.want {
				t.Errorf("FromPrivateMessage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSendRequiresConnection(t *testing.T) {
	c := NewClient(Options{Username: "bot", Token: "oauth:x", Channel: "streamer"})
	if err := c.Send(context.Background(), "streamer", "hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() err = %v, want ErrNotConnected", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Send(ctx, "streamer", "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() with cancelled ctx err = %v", err)
	}
}

func TestRunWithoutHandler(t *testing.T) {
	c := NewClient(Options{Username: "bot", Token: "oauth:x", Channel: "streamer"})
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("Run() without handler should fail")
	}
}

func TestDeliverSerialPreservesOrder(t *testing.T) {
	c := NewClient(Options{Channel: "streamer", MaxInFlight: 1})
	var (
		mu  sync.Mutex
		got []string
	)
	c.OnMessage(func(ctx context.Context, msg Message) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, msg.Text)
		mu.Unlock()
	})
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d"} {
		c.deliver(ctx, Message{Text: text})
	}
	c.inflight.Wait()

	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDeliverBoundsConcurrency(t *testing.T) {
	c := NewClient(Options{Channel: "streamer", MaxInFlight: 2})
	release := make(chan struct{})
	started := make(chan struct{}, 3)
	c.OnMessage(func(ctx context.Context, msg Message) {
		started <- struct{}{}
		<-release
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.deliver(ctx, Message{Text: "1"})
	c.deliver(ctx, Message{Text: "2"})
	<-started
	<-started
	if n := c.InFlight(); n != 2 {
		t.Fatalf("InFlight() = %d, want 2", n)
	}

	done := make(chan struct{})
	go func() {
		c.deliver(ctx, Message{Text: "3"})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("third delivery should block while both slots are busy")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-done
	c.inflight.Wait()
}

func TestTally(t *testing.T) {
	tally := NewTally()
	for i := 0; i < 3; i++ {
		tally.Observe("1", "alice")
	}
	tally.Observe("2", "Bob")
	tally.Observe("3", "carol")
	tally.Observe("3", "Carol")
	tally.Observe("", "ghost")

	top := tally.TopChatters(2)
	if len(top) != 2 {
		t.Fatalf("TopChatters(2) len = %d", len(top))
	}
	if top[0].UserID != "1" || top[0].Messages != 3 {
		t.Errorf("first = %+v", top[0])
	}
	if top[1].UserID != "3" || top[1].Name != "Carol" || top[1].Messages != 2 {
		t.Errorf("second = %+v", top[1])
	}
	if tally.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tally.Len())
	}
	tally.Reset()
	if len(tally.TopChatters(10)) != 0 {
		t.Error("Reset should clear counts")
	}
}
