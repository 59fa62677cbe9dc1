package gallery

import (
	"sync"
	"time"
)

// DefaultHeroInterval is the hero cover rotation cadence.
const DefaultHeroInterval = 3500 * time.Millisecond

// HeroRotatorConfig describes the dependencies for a HeroRotator.
type HeroRotatorConfig struct {
	Covers    []string
	Scheduler Scheduler
	Sink      EventSink
	Interval  time.Duration
}

// HeroRotator cycles the page's hero background through every cover image on
// a fixed interval. Its lifecycle is independent of the story modal: it runs
// from startup until Stop.
type HeroRotator struct {
	covers    []string
	scheduler Scheduler
	sink      EventSink
	interval  time.Duration

	mu     sync.Mutex
	index  int
	handle TaskHandle
}

// NewHeroRotator constructs the rotator.
func NewHeroRotator(cfg HeroRotatorConfig) (*HeroRotator, error) {
	if cfg.Scheduler == nil {
		return nil, errMissingScheduler
	}
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHeroInterval
	}
	return &HeroRotator{
		covers:    append([]string(nil), cfg.Covers...),
		scheduler: cfg.Scheduler,
		sink:      sink,
		interval:  interval,
	}, nil
}

// Start shows the first cover and arms the rotation. With one cover or none
// the timer is never scheduled.
func (r *HeroRotator) Start() {
	if len(r.covers) == 0 {
		return
	}

	r.mu.Lock()
	r.index = 0
	current := r.covers[0]
	if len(r.covers) > 1 {
		if r.handle != nil {
			r.handle.Stop()
		}
		r.handle = r.scheduler.Every(r.interval, r.rotate)
	}
	r.mu.Unlock()

	r.sink.Publish(Event{Type: EventHeroCoverChanged, Image: current})
}

// Stop cancels the rotation.
func (r *HeroRotator) Stop() {
	r.mu.Lock()
	if r.handle != nil {
		r.handle.Stop()
		r.handle = nil
	}
	r.mu.Unlock()
}

// Current returns the cover on display, or "" when there are no covers.
func (r *HeroRotator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.covers) == 0 {
		return ""
	}
	return r.covers[r.index]
}

func (r *HeroRotator) rotate() {
	r.mu.Lock()
	r.index = (r.index + 1) % len(r.covers)
	current := r.covers[r.index]
	r.mu.Unlock()

	r.sink.Publish(Event{Type: EventHeroCoverChanged, Image: current})
}
