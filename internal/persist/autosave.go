package persist

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultAutosaveDelay is the quiescence window before a scheduled save is
// written.
const DefaultAutosaveDelay = time.Second

// AutoSaver coalesces rapid snapshot changes into one write issued after a
// quiet period. Writes happen off the caller's goroutine; failures are logged
// and otherwise ignored. The newest scheduled snapshot always wins.
type AutoSaver struct {
	adapter  Adapter
	logger   *log.Logger
	debounce *Debouncer

	mu       sync.Mutex
	idle     *sync.Cond
	pending  *Snapshot
	seq      uint64 // sequence number of pending
	inflight int    // armed timers plus running writes
	closed   bool

	writeMu sync.Mutex
	written uint64 // highest sequence number persisted
	saves   int
}

// NewAutoSaver creates an AutoSaver. A non-positive delay selects
// DefaultAutosaveDelay; a nil logger selects log.Default().
func NewAutoSaver(adapter Adapter, delay time.Duration, logger *log.Logger) *AutoSaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if logger == nil {
		logger = log.Default()
	}
	a := &AutoSaver{
		adapter:  adapter,
		logger:   logger,
		debounce: NewDebouncer(delay),
	}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// Schedule queues snap to be written after the quiet period. A later call
// replaces an earlier snapshot that has not been written yet. Calls after
// Close are ignored.
func (a *AutoSaver) Schedule(snap *Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || snap == nil {
		return
	}
	a.seq++
	a.pending = snap
	a.inflight++
	if a.debounce.Debounce(a.fire) {
		// The replaced timer will never run.
		a.inflight--
	}
}

func (a *AutoSaver) fire() {
	a.mu.Lock()
	snap, seq := a.pending, a.seq
	a.pending = nil
	a.mu.Unlock()

	if snap != nil {
		if err := a.write(context.Background(), snap, seq); err != nil {
			a.logger.Error("autosave failed", "err", err)
		}
	}
	a.done()
}

func (a *AutoSaver) done() {
	a.mu.Lock()
	a.inflight--
	if a.inflight == 0 {
		a.idle.Broadcast()
	}
	a.mu.Unlock()
}

func (a *AutoSaver) write(ctx context.Context, snap *Snapshot, seq uint64) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if seq <= a.written {
		return nil
	}
	if err := a.adapter.Save(ctx, snap); err != nil {
		return err
	}
	a.written = seq
	a.saves++
	a.logger.Debug("snapshot saved", "tasks", len(snap.Tasks))
	return nil
}

// Flush writes the pending snapshot now, if there is one, and waits until no
// background write is running. The write error is logged and returned.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	snap, seq := a.pending, a.seq
	a.pending = nil
	if a.debounce.Cancel() {
		a.inflight--
	}
	a.mu.Unlock()

	var err error
	if snap != nil {
		if err = a.write(ctx, snap, seq); err != nil {
			a.logger.Error("flush failed", "err", err)
		}
	}

	a.mu.Lock()
	for a.inflight > 0 {
		a.idle.Wait()
	}
	a.mu.Unlock()
	return err
}

// Close flushes and stops accepting new snapshots.
func (a *AutoSaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}

// Saves returns how many snapshots have been written.
func (a *AutoSaver) Saves() int {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.saves
}
