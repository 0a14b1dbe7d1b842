package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meteor314/twitch-bot/db"
	"github.com/meteor314/twitch-bot/testutil"
)

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestInitialDelay(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	interval := 30 * time.Minute
	tests := []struct {
		name     string
		lastSent *time.Time
		want     time.Duration
	}{
		{"never sent", nil, 30 * time.Minute},
		{"overdue", ago(now, 40*time.Minute), 0},
		{"exactly due", ago(now, 30*time.Minute), 0},
		{"partially elapsed", ago(now, 10*time.Minute), 20 * time.Minute},
		{"just sent", ago(now, 0), 30 * time.Minute},
		{"clock skew", ago(now, -5*time.Minute), 35 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InitialDelay(now, tt.lastSent, interval); got != tt.want {
				t.Errorf("InitialDelay() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOverdueMessageSendsImmediately(t *testing.T) {
	store := testutil.NewMemStore()
	sender := &testutil.FakeSender{}
	now := time.Now()
	store.PutSchedule(db.ScheduledMessage{ID: 1, Message: "follow!", IntervalMinutes: 30, Enabled: true, LastSentAt: ago(now, 40*time.Minute)})
	store.PutSchedule(db.ScheduledMessage{ID: 2, Message: "not yet", IntervalMinutes: 30, Enabled: true, LastSentAt: ago(now, 10*time.Minute)})
	store.PutSchedule(db.ScheduledMessage{ID: 3, Message: "new", IntervalMinutes: 30, Enabled: true})
	store.PutSchedule(db.ScheduledMessage{ID: 4, Message: "off", IntervalMinutes: 1, Enabled: false, LastSentAt: ago(now, time.Hour)})

	s := New(store, sender, "streamer")
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if s.Running() != 3 {
		t.Errorf("Running() = %d, want 3", s.Running())
	}

	testutil.Eventually(t, 2*time.Second, func() bool { return len(store.SentSnapshot()) == 1 }, "overdue message not sent")
	time.Sleep(50 * time.Millisecond)

	msgs := sender.Messages()
	if len(msgs) != 1 || msgs[0].Text != "follow!" || msgs[0].Channel != "streamer" {
		t.Fatalf("sent = %+v", msgs)
	}
	sent := store.SentSnapshot()
	if sent[0].ID != 1 {
		t.Errorf("marked = %+v", sent)
	}
	if m, _ := store.GetSchedule(context.Background(), 1); m.LastSentAt == nil || m.LastSentAt.Before(now) {
		t.Errorf("last_sent_at not advanced: %v", m.LastSentAt)
	}
}

func TestSendFailureDoesNotMarkSent(t *testing.T) {
	store := testutil.NewMemStore()
	sender := &testutil.FakeSender{}
	sender.SetErr(errors.New("not connected"))
	store.PutSchedule(db.ScheduledMessage{ID: 1, Message: "follow!", IntervalMinutes: 30, Enabled: true, LastSentAt: ago(time.Now(), time.Hour)})

	s := New(store, sender, "streamer")
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool { return sender.Attempts() == 1 }, "send never attempted")
	s.Stop()
	if len(store.SentSnapshot()) != 0 {
		t.Errorf("failed send was recorded: %+v", store.SentSnapshot())
	}
}

func TestStopAndReload(t *testing.T) {
	store := testutil.NewMemStore()
	sender := &testutil.FakeSender{}
	s := New(store, sender, "streamer")
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}
	if s.Running() != 0 {
		t.Errorf("Running() = %d", s.Running())
	}

	store.PutSchedule(db.ScheduledMessage{ID: 7, Message: "hello", IntervalMinutes: 5, Enabled: true, LastSentAt: ago(time.Now(), time.Hour)})
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Running() != 1 {
		t.Errorf("Running() after reload = %d, want 1", s.Running())
	}
	testutil.Eventually(t, 2*time.Second, func() bool { return sender.Attempts() == 1 }, "reloaded message not sent")

	s.Stop()
	s.Stop()
	if s.Running() != 0 {
		t.Errorf("Running() after stop = %d", s.Running())
	}
}

func TestStartLoadError(t *testing.T) {
	store := testutil.NewMemStore()
	store.SetErr(errors.New("db down"))
	s := New(store, &testutil.FakeSender{}, "streamer")
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() should surface load errors")
	}
	// a failed start leaves the scheduler stopped
	store.SetErr(nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() after recovery = %v", err)
	}
	s.Stop()
}

func TestRepeatsAtInterval(t *testing.T) {
	store := testutil.NewMemStore()
	sender := &testutil.FakeSender{}
	store.PutSchedule(db.ScheduledMessage{ID: 1, Message: "hydrate", IntervalMinutes: 2, Enabled: true, LastSentAt: ago(time.Now(), time.Hour)})

	s := New(store, sender, "streamer")
	s.unit = 5 * time.Millisecond
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool { return len(sender.Messages()) >= 3 }, "message did not repeat")
	s.Stop()

	msgs := sender.Messages()
	for _, m := range msgs {
		if m.Text != "hydrate" {
			t.Errorf("sent %q", m.Text)
		}
	}
	if got := len(store.SentSnapshot()); got != len(msgs) {
		t.Errorf("marked %d sends, want %d", got, len(msgs))
	}
}

func TestFailedSendDoesNotStopLaterTicks(t *testing.T) {
	store := testutil.NewMemStore()
	sender := &testutil.FakeSender{}
	sender.SetErr(errors.New("not connected"))
	store.PutSchedule(db.ScheduledMessage{ID: 1, Message: "follow!", IntervalMinutes: 4, Enabled: true, LastSentAt: ago(time.Now(), time.Hour)})

	s := New(store, sender, "streamer")
	s.unit = 5 * time.Millisecond
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool { return sender.Attempts() >= 1 }, "send never attempted")
	sender.SetErr(nil)
	testutil.Eventually(t, 2*time.Second, func() bool { return len(sender.Messages()) >= 1 }, "no send after recovery")
	s.Stop()

	attempts, delivered := sender.Attempts(), len(sender.Messages())
	if attempts < 2 || attempts <= delivered {
		t.Errorf("attempts = %d, delivered = %d; want a failed attempt before a delivered one", attempts, delivered)
	}
	if got := len(store.SentSnapshot()); got != delivered {
		t.Errorf("marked %d sends, want only the %d delivered", got, delivered)
	}
}

func TestOutOfRangeIntervalSkipped(t *testing.T) {
	store := testutil.NewMemStore()
	store.PutSchedule(db.ScheduledMessage{ID: 1, Message: "huge", IntervalMinutes: db.MaxScheduleMinutes + 1, Enabled: true})
	store.PutSchedule(db.ScheduledMessage{ID: 2, Message: "zero", IntervalMinutes: 0, Enabled: true})
	s := New(store, &testutil.FakeSender{}, "streamer")
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if s.Running() != 0 {
		t.Errorf("Running() = %d, want 0", s.Running())
	}
}
