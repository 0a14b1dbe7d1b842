// Package points credits engagement points to viewers who chatted during each
// accrual interval.
package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meteor314/twitch-bot/telemetry"
)

// Store is the persistence the accrual loop needs.
type Store interface {
	CreditViewer(ctx context.Context, userID, username string, points, watchMinutes int) error
}

// Accrual tracks active viewers and credits them on every tick.
type Accrual struct {
	store    Store
	interval time.Duration
	perTick  int
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]string // userID -> latest username

	cron *cron.Cron
}

// New builds an Accrual crediting perTick points every interval.
func New(store Store, interval time.Duration, perTick int) *Accrual {
	return &Accrual{
		store:    store,
		interval: interval,
		perTick:  perTick,
		logger:   slog.Default().With(slog.String("component", "points")),
		active:   make(map[string]string),
	}
}

// MarkActive records that userID chatted in the current interval.
func (a *Accrual) MarkActive(userID, username string) {
	if userID == "" {
		return
	}
	a.mu.Lock()
	a.active[userID] = username
	a.mu.Unlock()
}

// ActiveCount returns the size of the pending active set.
func (a *Accrual) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *Accrual) drain() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.active) == 0 {
		return nil
	}
	out := a.active
	a.active = make(map[string]string)
	return out
}

// watchMinutes is the watch time one tick is worth.
func (a *Accrual) watchMinutes() int {
	return int(a.interval / time.Minute)
}

// Tick drains the active set and credits each member once. It returns the
// number of viewers credited; an empty set is a no-op.
func (a *Accrual) Tick(ctx context.Context) (int, error) {
	batch := a.drain()
	if len(batch) == 0 {
		return 0, nil
	}
	minutes := a.watchMinutes()
	credited := 0
	var errs []error
	for userID, username := range batch {
		if err := a.store.CreditViewer(ctx, userID, username, a.perTick, minutes); err != nil {
			errs = append(errs, fmt.Errorf("credit %s: %w", userID, err))
			continue
		}
		credited++
	}
	telemetry.RecordPointsTick(credited)
	a.logger.Info("points credited",
		slog.Int("viewers", credited),
		slog.Int("points", a.perTick),
		slog.Int("watch_minutes", minutes),
		slog.Int("failed", len(errs)))
	return credited, errors.Join(errs...)
}

// AwardBonus credits amount points to one viewer outside the tick. It is the
// entry point for one-off rewards (raids, giveaways); no chat command calls it yet.
func (a *Accrual) AwardBonus(ctx context.Context, userID, username string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("bonus must be positive, got %d", amount)
	}
	if err := a.store.CreditViewer(ctx, userID, username, amount, 0); err != nil {
		return fmt.Errorf("award bonus to %s: %w", userID, err)
	}
	a.logger.Info("bonus awarded", slog.String("user", username), slog.Int("points", amount), slog.String("reason", reason))
	return nil
}

// Start schedules Tick every interval until ctx is cancelled or Stop is called.
// Overlapping ticks are skipped.
func (a *Accrual) Start(ctx context.Context) error {
	if a.interval <= 0 {
		return fmt.Errorf("points interval must be positive, got %s", a.interval)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(a.interval), cron.FuncJob(func() {
		if _, err := a.Tick(ctx); err != nil {
			a.logger.Error("points tick failed", slog.Any("err", err))
		}
	}))
	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()
	c.Start()
	a.logger.Info("points accrual started", slog.Duration("interval", a.interval), slog.Int("per_tick", a.perTick))

	go func() {
		<-ctx.Done()
		a.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (a *Accrual) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
