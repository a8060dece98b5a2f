package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/log"
)

// DefaultFlushDelay is how long the flusher waits for further changes
// before saving.
const DefaultFlushDelay = 250 * time.Millisecond

// ErrFlusherStopped is returned by Flush after Stop.
var ErrFlusherStopped = errors.New("flusher stopped")

type flushRequest struct {
	ctx    context.Context
	result chan error
}

// Flusher coalesces bursts of changes into single saves. Every Schedule
// restarts a quiet window; when the window elapses the latest state from
// source is saved once. Saves run on the flusher's own goroutine, one at a
// time.
type Flusher struct {
	store  domain.Store
	source func() domain.State
	delay  time.Duration

	trigger  chan struct{}
	flushReq chan flushRequest
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	saves    atomic.Int64
	failures atomic.Int64
}

// NewFlusher starts a flusher saving source() to store. A non-positive delay
// uses DefaultFlushDelay.
func NewFlusher(store domain.Store, source func() domain.State, delay time.Duration) *Flusher {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	f := &Flusher{
		store:    store,
		source:   source,
		delay:    delay,
		trigger:  make(chan struct{}, 1),
		flushReq: make(chan flushRequest),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go f.loop()
	return f
}

// Schedule notes that state changed. It never blocks.
func (f *Flusher) Schedule() {
	select {
	case f.trigger <- struct{}{}:
	default:
		// A trigger is already queued; it restarts the same window.
	}
}

// Flush saves the current state now and cancels any pending window.
func (f *Flusher) Flush(ctx context.Context) error {
	select {
	case <-f.done:
		return ErrFlusherStopped
	default:
	}

	req := flushRequest{ctx: ctx, result: make(chan error, 1)}
	select {
	case f.flushReq <- req:
	case <-f.stopped:
		return ErrFlusherStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels any pending window without saving and waits for an
// in-flight save to finish. Stop is idempotent.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
	<-f.stopped
}

// Saves returns the number of successful saves.
func (f *Flusher) Saves() int64 { return f.saves.Load() }

// Failures returns the number of failed saves.
func (f *Flusher) Failures() int64 { return f.failures.Load() }

func (f *Flusher) loop() {
	defer close(f.stopped)

	timer := time.NewTimer(f.delay)
	timer.Stop()
	pending := false

	for {
		select {
		case <-f.done:
			timer.Stop()
			if pending {
				log.Debug(log.CatStore, "flusher stopped with a pending save")
			}
			return

		case <-f.trigger:
			timer.Reset(f.delay)
			pending = true

		case <-timer.C:
			pending = false
			_ = f.save(context.Background())

		case req := <-f.flushReq:
			timer.Stop()
			pending = false
			req.result <- f.save(req.ctx)
		}
	}
}

func (f *Flusher) save(ctx context.Context) error {
	state := f.source()
	if err := f.store.Save(ctx, state); err != nil {
		f.failures.Add(1)
		// In-memory state stays authoritative; the next change retries.
		log.ErrorErr(log.CatStore, "saving layouts failed", err, "layouts", len(state.Layouts))
		return err
	}
	f.saves.Add(1)
	log.Debug(log.CatStore, "layouts saved", "layouts", len(state.Layouts))
	return nil
}
