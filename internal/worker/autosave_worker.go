package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

// Ticker is the part of *time.Ticker the worker uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Progress is the session side the worker reads on each tick.
type Progress interface {
	State() rmib.State
	Snapshot() rmib.Snapshot
}

// SaveFunc stores a snapshot without blocking the tick loop.
type SaveFunc func(rmib.Snapshot)

// AutosaveWorker saves the session on a fixed interval while it is active.
// At most one ticker runs per worker no matter how often Start is called.
type AutosaveWorker struct {
	progress  Progress
	save      SaveFunc
	interval  time.Duration
	newTicker TickerFunc
	log       zerolog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	nextTick time.Time
	now      func() time.Time
}

// NewAutosaveWorker creates a new AutosaveWorker. A nil newTicker uses
// time.NewTicker.
func NewAutosaveWorker(progress Progress, save SaveFunc, interval time.Duration, newTicker TickerFunc, log zerolog.Logger) *AutosaveWorker {
	if newTicker == nil {
		newTicker = NewStdTicker
	}
	return &AutosaveWorker{
		progress:  progress,
		save:      save,
		interval:  interval,
		newTicker: newTicker,
		log:       log.With().Str("component", "autosave_worker").Logger(),
		now:       time.Now,
	}
}

// Start launches the tick loop in its own goroutine. It returns false when the
// worker is already running.
func (w *AutosaveWorker) Start(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := w.newTicker(w.interval)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.nextTick = w.now().Add(w.interval)

	go w.loop(ctx, ticker, w.done)

	w.log.Info().Dur("interval", w.interval).Msg("Worker started")
	return true
}

func (w *AutosaveWorker) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C():
			w.mu.Lock()
			w.nextTick = w.now().Add(w.interval)
			w.mu.Unlock()
			w.tick()
		}
	}
}

func (w *AutosaveWorker) tick() {
	if w.progress.State() != rmib.StateActive {
		return
	}
	snap := w.progress.Snapshot()
	if len(snap.Values) == 0 {
		w.log.Debug().Msg("Nothing to save")
		return
	}
	w.save(snap)
}

// Stop ends the tick loop and waits for it to exit. Safe to call repeatedly.
func (w *AutosaveWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the tick loop is active.
func (w *AutosaveWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// NextTick returns the time left until the next scheduled save, or zero when
// the worker is stopped.
func (w *AutosaveWorker) NextTick() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return 0
	}
	if left := w.nextTick.Sub(w.now()); left > 0 {
		return left
	}
	return 0
}
