// Package expiry implements the background task that prunes GoodForDay
// orders at session end. It depends only on a clock abstraction and the
// engine's GoodForDayOrderIDs and BulkCancel methods, never on a real wall
// clock directly, so
// the 16:00 boundary can be driven deterministically in tests.
package expiry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"limitbook/internal/domain"
)

// Book is the slice of the engine the expiry task depends on. Defined here,
// at the point of use, so this package does not need to import engine.
type Book interface {
	GoodForDayOrderIDs() []domain.OrderId
	BulkCancel(ids []domain.OrderId)
}

// DefaultSessionEndHour is the local hour (24h clock) at which the trading
// session is considered over absent other configuration.
const DefaultSessionEndHour = 16

// DefaultSlack is added on top of the computed deadline so the prune
// reliably runs after, not exactly at, session end.
const DefaultSlack = 100 * time.Millisecond

// Task cancels every GoodForDay order shortly after the local clock crosses
// its configured session-end hour, then waits for the next day's boundary.
type Task struct {
	book           Book
	clock          clock.Clock
	sessionEndHour int
	slack          time.Duration
	log            zerolog.Logger

	t *tomb.Tomb
}

// New builds a task that has not yet been started.
func New(book Book, clk clock.Clock, sessionEndHour int, log zerolog.Logger) *Task {
	return &Task{
		book:           book,
		clock:          clk,
		sessionEndHour: sessionEndHour,
		slack:          DefaultSlack,
		log:            log.With().Str("component", "expiry").Logger(),
	}
}

// Start launches the task's run loop under ctx. It is idle-waiting until
// either shutdown or the next session-end deadline.
func (task *Task) Start(ctx context.Context) {
	var loopCtx context.Context
	task.t, loopCtx = tomb.WithContext(ctx)
	task.t.Go(func() error {
		return task.run(loopCtx)
	})
}

// Stop signals shutdown and blocks until the run loop has exited.
func (task *Task) Stop() error {
	if task.t == nil {
		return nil
	}
	task.t.Kill(nil)
	return task.t.Wait()
}

func (task *Task) run(ctx context.Context) error {
	for {
		deadline := nextSessionEnd(task.clock.Now(), task.sessionEndHour).Add(task.slack)
		wait := deadline.Sub(task.clock.Now())
		if wait < 0 {
			wait = 0
		}
		timer := task.clock.Timer(wait)

		select {
		case <-task.t.Dying():
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			task.prune()
		}
	}
}

// prune implements the two-phase cancellation: the id snapshot and the
// bulk cancel are two separate lock acquisitions on the engine, so an order
// may legally be cancelled or filled by foreground activity in between.
// Cancel of an unknown id is a no-op, so this race is harmless.
func (task *Task) prune() {
	ids := task.book.GoodForDayOrderIDs()
	if len(ids) == 0 {
		return
	}
	task.log.Info().Int("count", len(ids)).Msg("pruning good-for-day orders")
	task.book.BulkCancel(ids)
}

// nextSessionEnd computes the next local instant at which the hour equals
// sessionEndHour. If that instant has already passed today, it rolls to
// tomorrow.
func nextSessionEnd(now time.Time, sessionEndHour int) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), sessionEndHour, 0, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}
