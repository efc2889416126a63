package persist

import (
	"sync"
	"time"
)

// Debouncer runs a function once calls have been quiet for its duration.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

// NewDebouncer creates a debouncer with the given quiescence window.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn, replacing any call still waiting. It reports
// whether a waiting call was stopped before it started.
func (d *Debouncer) Debounce(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	stopped := false
	if d.timer != nil {
		stopped = d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
	return stopped
}

// Cancel drops the pending call, if any. It reports whether a call was
// stopped before it started.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}

