package gallery

import (
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/memoflix/internal/memorial"
	"go.uber.org/zap"
)

const (
	// DefaultAutoSlideInterval matches the carousel's auto-advance cadence.
	DefaultAutoSlideInterval = 2800 * time.Millisecond
	// DefaultFloatingFadeDelay is how long the floating thumbnail stays
	// sharp after a tap in fullscreen.
	DefaultFloatingFadeDelay = 1500 * time.Millisecond

	cinemaScrollThreshold  = 70
	storyLengthThreshold   = 320
	storyHeightMargin      = 120
	scrollRestoreTolerance = 2
)

var errMissingScheduler = errors.New("gallery: scheduler is required")

// ViewState is the externally visible snapshot of the story view.
type ViewState struct {
	Open            bool     `json:"open"`
	MemorialKey     string   `json:"memorial_key,omitempty"`
	Title           string   `json:"title,omitempty"`
	Meta            string   `json:"meta,omitempty"`
	Story           string   `json:"story,omitempty"`
	Gallery         []string `json:"gallery,omitempty"`
	ImageIndex      int      `json:"image_index"`
	CurrentImage    string   `json:"current_image,omitempty"`
	CinemaEligible  bool     `json:"cinema_eligible"`
	CinemaActive    bool     `json:"cinema_active"`
	Fullscreen      bool     `json:"fullscreen"`
	FloatingVisible bool     `json:"floating_visible"`
	FloatingFaded   bool     `json:"floating_faded"`
}

// ControllerConfig describes the dependencies for a ViewController.
type ControllerConfig struct {
	Scheduler         Scheduler
	Sink              EventSink
	Logger            *zap.Logger
	AutoSlideInterval time.Duration
	FloatingFadeDelay time.Duration
}

// ViewController owns the story modal's view state: which memorial is open,
// the carousel position, fullscreen and cinema-mode flags, and the timers
// that drive them. All state lives on the instance; timer callbacks fire on
// their own goroutines, so every entry point takes the mutex.
type ViewController struct {
	scheduler Scheduler
	sink      EventSink
	logger    *zap.Logger
	slideMS   time.Duration
	fadeMS    time.Duration

	mu              sync.Mutex
	open            bool
	item            memorial.Item
	gallery         []string
	imageIndex      int
	memorialKey     string
	cinemaEligible  bool
	cinemaActive    bool
	storyScrollTop  int
	fullscreen      bool
	floatingVisible bool
	floatingFaded   bool
	pageScrollY     int
	autoSlide       TaskHandle
	floatingFade    TaskHandle
}

// NewViewController constructs a controller with the modal closed.
func NewViewController(cfg ControllerConfig) (*ViewController, error) {
	if cfg.Scheduler == nil {
		return nil, errMissingScheduler
	}
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	slideMS := cfg.AutoSlideInterval
	if slideMS <= 0 {
		slideMS = DefaultAutoSlideInterval
	}
	fadeMS := cfg.FloatingFadeDelay
	if fadeMS <= 0 {
		fadeMS = DefaultFloatingFadeDelay
	}
	return &ViewController{
		scheduler: cfg.Scheduler,
		sink:      sink,
		logger:    logger,
		slideMS:   slideMS,
		fadeMS:    fadeMS,
	}, nil
}

// OpenStory opens the item's story view: gallery (or cover fallback)
// selected at image zero, cinema mode off, auto-advance armed for galleries
// longer than one image, and the page scroll offset captured for restore on
// close. Opening over an already-open story replaces it.
func (c *ViewController) OpenStory(item memorial.Item, pageScrollY int) {
	c.mu.Lock()
	c.stopAutoSlideLocked()
	c.stopFloatingFadeLocked()

	c.open = true
	c.item = item
	c.gallery = item.GalleryOrCover()
	c.imageIndex = 0
	c.memorialKey = item.Key()
	c.cinemaEligible = false
	c.cinemaActive = false
	c.storyScrollTop = 0
	c.fullscreen = false
	c.floatingVisible = false
	c.floatingFaded = false
	c.pageScrollY = pageScrollY
	c.startAutoSlideLocked()

	events := []Event{
		{Type: EventStoryOpened, MemorialKey: c.memorialKey},
		{Type: EventImageChanged, MemorialKey: c.memorialKey, ImageIndex: 0, Image: c.currentImageLocked()},
	}
	c.mu.Unlock()

	c.logger.Debug("story opened", zap.String("memorial_key", item.Key()))
	c.publish(events...)
}

// CloseStory tears the view down: timers cancelled, overlay cleared,
// fullscreen and cinema mode dropped, story scroll reset. Closing an
// already-closed view is a safe no-op.
func (c *ViewController) CloseStory() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.stopAutoSlideLocked()
	c.stopFloatingFadeLocked()

	key := c.memorialKey
	c.open = false
	c.item = memorial.Item{}
	c.gallery = nil
	c.imageIndex = 0
	c.memorialKey = ""
	c.cinemaEligible = false
	c.cinemaActive = false
	c.storyScrollTop = 0
	c.fullscreen = false
	c.floatingVisible = false
	c.floatingFaded = false
	c.mu.Unlock()

	c.logger.Debug("story closed", zap.String("memorial_key", key))
	c.publish(Event{Type: EventStoryClosed, MemorialKey: key})
}

// SelectImage shows the image at index, clamped into bounds, and restarts
// the auto-advance timer the way a manual thumbnail tap does.
func (c *ViewController) SelectImage(index int) {
	c.mu.Lock()
	if !c.open || len(c.gallery) == 0 {
		c.mu.Unlock()
		return
	}
	c.setImageLocked(index)
	c.startAutoSlideLocked()
	event := Event{
		Type:        EventImageChanged,
		MemorialKey: c.memorialKey,
		ImageIndex:  c.imageIndex,
		Image:       c.currentImageLocked(),
	}
	c.mu.Unlock()

	c.publish(event)
}

// advance is the auto-slide tick: next image, wrapping around.
func (c *ViewController) advance() {
	c.mu.Lock()
	if !c.open || c.fullscreen || len(c.gallery) <= 1 {
		c.mu.Unlock()
		return
	}
	c.setImageLocked((c.imageIndex + 1) % len(c.gallery))
	event := Event{
		Type:        EventImageChanged,
		MemorialKey: c.memorialKey,
		ImageIndex:  c.imageIndex,
		Image:       c.currentImageLocked(),
	}
	c.mu.Unlock()

	c.publish(event)
}

// ReportStoryMetrics records the measured layout of the rendered story and
// decides cinema eligibility: long text, or content overflowing its visible
// container by a margin.
func (c *ViewController) ReportStoryMetrics(textLength, renderedHeight, containerHeight int) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.cinemaEligible = textLength > storyLengthThreshold ||
		renderedHeight > containerHeight+storyHeightMargin
	event, changed := c.recomputeCinemaLocked()
	c.mu.Unlock()

	if changed {
		c.publish(event)
	}
}

// HandleStoryScroll recomputes cinema mode from the story container's scroll
// offset. Active only past the threshold, and only when eligible.
func (c *ViewController) HandleStoryScroll(scrollTop int) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.storyScrollTop = scrollTop
	event, changed := c.recomputeCinemaLocked()
	c.mu.Unlock()

	if changed {
		c.publish(event)
	}
}

// TapPhoto handles a tap on the main photo: enter fullscreen when not
// already there, otherwise surface the floating thumbnail and re-arm its
// fade timer.
func (c *ViewController) TapPhoto() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}

	if !c.fullscreen {
		c.fullscreen = true
		c.stopAutoSlideLocked()
		event := Event{Type: EventFullscreenChanged, MemorialKey: c.memorialKey, Active: true}
		c.mu.Unlock()
		c.publish(event)
		return
	}

	c.floatingVisible = true
	c.floatingFaded = false
	c.stopFloatingFadeLocked()
	c.floatingFade = c.scheduler.After(c.fadeMS, c.floatingFadeExpired)
	c.mu.Unlock()
}

// ExitFullscreen leaves fullscreen (control button or native mechanism),
// clears the floating overlay and resumes auto-advance while the modal is
// still open.
func (c *ViewController) ExitFullscreen() {
	c.mu.Lock()
	if !c.fullscreen {
		c.mu.Unlock()
		return
	}
	c.fullscreen = false
	c.floatingVisible = false
	c.floatingFaded = false
	c.stopFloatingFadeLocked()
	var events []Event
	if c.open {
		c.startAutoSlideLocked()
		events = append(events, Event{Type: EventFullscreenChanged, MemorialKey: c.memorialKey})
	}
	c.mu.Unlock()

	c.publish(events...)
}

func (c *ViewController) floatingFadeExpired() {
	c.mu.Lock()
	if !c.floatingVisible {
		c.mu.Unlock()
		return
	}
	c.floatingFaded = true
	event := Event{Type: EventFloatingFaded, MemorialKey: c.memorialKey, Active: true}
	c.mu.Unlock()

	c.publish(event)
}

// ScrollRestoreTarget reports where the page should scroll back to after the
// modal unlocks it. The second return is false when the current offset is
// already within tolerance and no restore is needed.
func (c *ViewController) ScrollRestoreTarget(currentY int) (int, bool) {
	c.mu.Lock()
	saved := c.pageScrollY
	c.mu.Unlock()

	delta := currentY - saved
	if delta < 0 {
		delta = -delta
	}
	if delta <= scrollRestoreTolerance {
		return saved, false
	}
	return saved, true
}

// Snapshot returns the current view state.
func (c *ViewController) Snapshot() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ViewState{
		Open:            c.open,
		MemorialKey:     c.memorialKey,
		Title:           c.item.Title,
		Meta:            c.item.Year,
		Story:           c.item.Story,
		Gallery:         append([]string(nil), c.gallery...),
		ImageIndex:      c.imageIndex,
		CurrentImage:    c.currentImageLocked(),
		CinemaEligible:  c.cinemaEligible,
		CinemaActive:    c.cinemaActive,
		Fullscreen:      c.fullscreen,
		FloatingVisible: c.floatingVisible,
		FloatingFaded:   c.floatingFaded,
	}
}

func (c *ViewController) setImageLocked(index int) {
	if index < 0 {
		index = 0
	}
	if index > len(c.gallery)-1 {
		index = len(c.gallery) - 1
	}
	c.imageIndex = index
}

func (c *ViewController) currentImageLocked() string {
	if len(c.gallery) == 0 {
		return ""
	}
	return c.gallery[c.imageIndex]
}

func (c *ViewController) recomputeCinemaLocked() (Event, bool) {
	shouldEnable := c.cinemaEligible && c.storyScrollTop > cinemaScrollThreshold
	if shouldEnable == c.cinemaActive {
		return Event{}, false
	}
	c.cinemaActive = shouldEnable
	return Event{Type: EventCinemaChanged, MemorialKey: c.memorialKey, Active: shouldEnable}, true
}

// startAutoSlideLocked restarts the carousel timer. Galleries of one image
// never schedule.
func (c *ViewController) startAutoSlideLocked() {
	c.stopAutoSlideLocked()
	if len(c.gallery) <= 1 {
		return
	}
	c.autoSlide = c.scheduler.Every(c.slideMS, c.advance)
}

func (c *ViewController) stopAutoSlideLocked() {
	if c.autoSlide != nil {
		c.autoSlide.Stop()
		c.autoSlide = nil
	}
}

func (c *ViewController) stopFloatingFadeLocked() {
	if c.floatingFade != nil {
		c.floatingFade.Stop()
		c.floatingFade = nil
	}
}

func (c *ViewController) publish(events ...Event) {
	for _, event := range events {
		c.sink.Publish(event)
	}
}
