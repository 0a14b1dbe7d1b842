// Package broadcast posts operator-configured messages to chat, each on its own
// fixed interval. Timers are aligned once at start from the persisted
// last-sent time; after that each message repeats at its interval.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meteor314/twitch-bot/chat"
	"github.com/meteor314/twitch-bot/db"
	"github.com/meteor314/twitch-bot/telemetry"
)

// Store is the persistence the scheduler needs.
type Store interface {
	ListEnabledSchedules(ctx context.Context) ([]db.ScheduledMessage, error)
	MarkScheduleSent(ctx context.Context, id int64, at time.Time) error
}

// InitialDelay returns how long to wait before the first send. A message never
// sent waits a full interval; an overdue one fires immediately.
func InitialDelay(now time.Time, lastSent *time.Time, interval time.Duration) time.Duration {
	if lastSent == nil {
		return interval
	}
	d := interval - now.Sub(*lastSent)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler runs one timer per enabled scheduled message.
type Scheduler struct {
	store   Store
	sender  chat.Sender
	channel string
	now     func() time.Time
	unit    time.Duration // length of one interval minute
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running int
}

// New builds a Scheduler posting to channel through sender.
func New(store Store, sender chat.Sender, channel string) *Scheduler {
	return &Scheduler{
		store:   store,
		sender:  sender,
		channel: channel,
		now:     time.Now,
		unit:    time.Minute,
		logger:  slog.Default().With(slog.String("component", "broadcast")),
	}
}

// Start loads the enabled messages and starts their timers. Calling Start on a
// running scheduler is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("broadcast scheduler already running")
	}
	msgs, err := s.store.ListEnabledSchedules(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled messages: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = 0
	now := s.now()
	for _, m := range msgs {
		interval := time.Duration(m.IntervalMinutes) * s.unit
		if m.IntervalMinutes <= 0 || m.IntervalMinutes > db.MaxScheduleMinutes {
			s.logger.Warn("skipping scheduled message with invalid interval", slog.Int64("id", m.ID), slog.Int("interval_minutes", m.IntervalMinutes))
			continue
		}
		delay := InitialDelay(now, m.LastSentAt, interval)
		s.running++
		s.wg.Add(1)
		go s.loop(runCtx, m, delay, interval)
		s.logger.Info("scheduled message armed",
			slog.Int64("id", m.ID),
			slog.Duration("interval", interval),
			slog.Duration("first_in", delay))
	}
	s.logger.Info("broadcast scheduler started", slog.Int("messages", s.running))
	return nil
}

// Stop cancels every timer and waits for in-progress sends.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.running = 0
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Reload restarts the scheduler so database changes take effect.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.Stop()
	return s.Start(ctx)
}

// Running returns the number of armed messages.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, m db.ScheduledMessage, delay, interval time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.send(ctx, m)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.send(ctx, m)
		}
	}
}

// send posts one message. Failures are logged and counted; the timer is unaffected.
func (s *Scheduler) send(ctx context.Context, m db.ScheduledMessage) {
	ctx, span := telemetry.StartSpan(ctx, "broadcast.send", attribute.Int64("schedule.id", m.ID))
	defer span.End()

	if err := s.sender.Send(ctx, s.channel, m.Message); err != nil {
		telemetry.RecordError(span, err)
		telemetry.RecordBroadcast(false)
		s.logger.Warn("scheduled message send failed", slog.Int64("id", m.ID), slog.Any("err", err))
		return
	}
	telemetry.RecordBroadcast(true)
	if err := s.store.MarkScheduleSent(ctx, m.ID, s.now()); err != nil {
		s.logger.Warn("failed to record scheduled message send", slog.Int64("id", m.ID), slog.Any("err", err))
	}
	telemetry.SetSpanSuccess(span)
	s.logger.Debug("scheduled message sent", slog.Int64("id", m.ID))
}
