package gallery

import (
	"sync"
	"time"
)

// TaskHandle is a cancellable handle for a scheduled task. Every handle must
// be stopped before a replacement for the same purpose is armed, and on view
// teardown, so no phantom callback acts on a closed view.
type TaskHandle interface {
	Stop()
}

// Scheduler arms repeating and one-shot tasks. Injected so tests can drive
// time by hand.
type Scheduler interface {
	Every(interval time.Duration, fn func()) TaskHandle
	After(delay time.Duration, fn func()) TaskHandle
}

// NewScheduler returns the wall-clock scheduler used in production.
func NewScheduler() Scheduler {
	return clockScheduler{}
}

type clockScheduler struct{}

func (clockScheduler) Every(interval time.Duration, fn func()) TaskHandle {
	ticker := time.NewTicker(interval)
	handle := &tickerHandle{ticker: ticker, done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-handle.done:
				return
			}
		}
	}()
	return handle
}

func (clockScheduler) After(delay time.Duration, fn func()) TaskHandle {
	return timerHandle{timer: time.AfterFunc(delay, fn)}
}

type tickerHandle struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.done)
	})
}

type timerHandle struct {
	timer *time.Timer
}

func (h timerHandle) Stop() {
	h.timer.Stop()
}
