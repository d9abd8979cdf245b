package store

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically purges battles and answers past their retention
// windows. The two windows are configured independently: the answer ledger
// can be purged before its parent battle expires, which is accepted because
// the ranked summary is snapshotted into the battle record on first read.
type Reaper struct {
	purger   Purger
	battles  time.Duration
	answers  time.Duration
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

type ReaperConfig struct {
	Purger          Purger
	BattleRetention time.Duration
	AnswerRetention time.Duration
	Interval        time.Duration
}

func NewReaper(c ReaperConfig) *Reaper {
	return &Reaper{
		purger:   c.Purger,
		battles:  c.BattleRetention,
		answers:  c.AnswerRetention,
		interval: c.Interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (r *Reaper) Start() {
	go func() {
		defer close(r.stopped)

		t := time.NewTicker(r.interval)
		defer t.Stop()

		for {
			select {
			case <-r.done:
				return
			case <-t.C:
				r.sweep()
			}
		}
	}()
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	if n, err := r.purger.PurgeAnswers(ctx, now.Add(-r.answers)); err != nil {
		slog.ErrorContext(ctx, "reaper: purge answers failed", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "reaper: purged answers", "count", n)
	}

	if n, err := r.purger.PurgeBattles(ctx, now.Add(-r.battles)); err != nil {
		slog.ErrorContext(ctx, "reaper: purge battles failed", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "reaper: purged battles", "count", n)
	}
}

func (r *Reaper) Stop() {
	close(r.done)
	<-r.stopped
}
