// Package ticker implements the periodic timestamp injector (C5): on a
// configurable schedule it composes a timestamp record and appends it
// through the log facade.
package ticker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aesdsocket/linelogd/internal/reclog"
	"github.com/aesdsocket/linelogd/internal/schedule"
)

// Ticker fires on its current schedule and appends a timestamp record to
// log on every fire, until ctx is cancelled. The schedule may be swapped
// while Run is in flight via SetSchedule — the config package's live
// reload of tick_period goes through this.
type Ticker struct {
	sched atomic.Value // schedule.Source
	log   *reclog.Log

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New returns a Ticker that appends through log on the schedule sched.
func New(sched schedule.Source, log *reclog.Log) *Ticker {
	t := &Ticker{log: log, now: time.Now}
	t.sched.Store(sched)
	return t
}

// SetSchedule replaces the active schedule. The next Run iteration picks it
// up when it next computes a wait time — an in-flight wait against the old
// schedule is not interrupted, matching how a config edit takes effect on
// the ticker's next natural wake-up rather than firing immediately.
func (t *Ticker) SetSchedule(sched schedule.Source) {
	t.sched.Store(sched)
}

// Run blocks, firing on the current schedule and appending a timestamp
// record each time, until ctx is cancelled. The spec's tick mechanism is a
// timer posting a counting semaphore that the ticker waits on, waking on
// both a real tick and a shutdown signal and disambiguating by rechecking
// the termination flag; time.Timer plus ctx.Done() in the same select is
// the direct Go equivalent — whichever fires first wins the same race.
func (t *Ticker) Run(ctx context.Context) error {
	for {
		sched := t.sched.Load().(schedule.Source)
		next := sched.Next(t.now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case fired := <-timer.C:
			t.log.AppendRecord(formatTimestamp(fired))
		}
	}
}

// formatTimestamp renders "timestamp:<RFC 2822 datetime>\n" per the spec.
func formatTimestamp(t time.Time) []byte {
	return []byte(fmt.Sprintf("timestamp:%s\n", t.Format(time.RFC1123Z)))
}
