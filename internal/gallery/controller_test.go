package gallery

import (
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/memoflix/internal/memorial"
)

type fakeTask struct {
	interval  time.Duration
	fn        func()
	repeating bool
	stopped   bool
}

func (t *fakeTask) Stop() {
	t.stopped = true
}

func (t *fakeTask) fire() {
	if !t.stopped {
		t.fn()
	}
}

type fakeScheduler struct {
	tasks []*fakeTask
}

func (s *fakeScheduler) Every(interval time.Duration, fn func()) TaskHandle {
	task := &fakeTask{interval: interval, fn: fn, repeating: true}
	s.tasks = append(s.tasks, task)
	return task
}

func (s *fakeScheduler) After(delay time.Duration, fn func()) TaskHandle {
	task := &fakeTask{interval: delay, fn: fn}
	s.tasks = append(s.tasks, task)
	return task
}

func (s *fakeScheduler) active(repeating bool) []*fakeTask {
	var active []*fakeTask
	for _, task := range s.tasks {
		if task.repeating == repeating && !task.stopped {
			active = append(active, task)
		}
	}
	return active
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) byType(eventType EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Event
	for _, event := range s.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func newTestController(t *testing.T) (*ViewController, *fakeScheduler, *recordingSink) {
	t.Helper()
	scheduler := &fakeScheduler{}
	sink := &recordingSink{}
	controller, err := NewViewController(ControllerConfig{Scheduler: scheduler, Sink: sink})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return controller, scheduler, sink
}

func multiImageItem() memorial.Item {
	return memorial.Item{
		Title:   "Budi",
		Year:    "Agustus 2022",
		Cover:   "cover.jpg",
		Gallery: []string{"a.jpg", "b.jpg", "c.jpg"},
		Story:   "short story",
	}
}

func TestOpenStoryFallsBackToCoverForEmptyGallery(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(memorial.Item{Title: "Budi", Year: "2020", Cover: "cover.jpg"}, 0)

	state := controller.Snapshot()
	if !state.Open {
		t.Fatalf("expected open view")
	}
	if len(state.Gallery) != 1 || state.Gallery[0] != "cover.jpg" {
		t.Fatalf("expected single cover gallery, got %v", state.Gallery)
	}
	if tasks := scheduler.active(true); len(tasks) != 0 {
		t.Fatalf("auto-advance must never be scheduled for a single image, got %d tasks", len(tasks))
	}
}

func TestOpenStoryStartsAutoSlideForMultiImageGallery(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	tasks := scheduler.active(true)
	if len(tasks) != 1 {
		t.Fatalf("expected one repeating task, got %d", len(tasks))
	}
	if tasks[0].interval != DefaultAutoSlideInterval {
		t.Fatalf("unexpected interval %v", tasks[0].interval)
	}
	if key := controller.Snapshot().MemorialKey; key != "budi-agustus-2022" {
		t.Fatalf("unexpected memorial key %q", key)
	}
}

func TestAutoAdvanceVisitsIndicesCyclically(t *testing.T) {
	controller, scheduler, sink := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	task := scheduler.active(true)[0]
	for fires := 0; fires < 4; fires++ {
		task.fire()
	}

	var visited []int
	for _, event := range sink.byType(EventImageChanged) {
		visited = append(visited, event.ImageIndex)
	}
	// open emits index 0, then four ticks wrap 1,2,0,1
	expected := []int{0, 1, 2, 0, 1}
	if len(visited) != len(expected) {
		t.Fatalf("unexpected image events %v", visited)
	}
	for position, index := range expected {
		if visited[position] != index {
			t.Fatalf("unexpected order %v, want %v", visited, expected)
		}
	}
}

func TestSelectImageClampsAndMarksSingleActiveIndex(t *testing.T) {
	controller, _, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	tests := []struct {
		requested int
		effective int
	}{
		{requested: -5, effective: 0},
		{requested: 1, effective: 1},
		{requested: 99, effective: 2},
	}
	for _, tt := range tests {
		controller.SelectImage(tt.requested)
		state := controller.Snapshot()
		if state.ImageIndex != tt.effective {
			t.Fatalf("requested %d: got index %d, want %d", tt.requested, state.ImageIndex, tt.effective)
		}
		if state.CurrentImage != state.Gallery[tt.effective] {
			t.Fatalf("current image %q does not match index %d", state.CurrentImage, tt.effective)
		}
	}
}

func TestSelectImageRestartsAutoSlide(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	first := scheduler.active(true)[0]
	controller.SelectImage(2)

	if !first.stopped {
		t.Fatalf("expected original auto-slide handle to be cancelled")
	}
	if tasks := scheduler.active(true); len(tasks) != 1 {
		t.Fatalf("expected exactly one live auto-slide task, got %d", len(tasks))
	}
}

func TestFullscreenStopsAutoSlideAndExitResumes(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	controller.TapPhoto()
	if !controller.Snapshot().Fullscreen {
		t.Fatalf("expected fullscreen after tap")
	}
	if tasks := scheduler.active(true); len(tasks) != 0 {
		t.Fatalf("expected auto-slide stopped in fullscreen")
	}

	controller.ExitFullscreen()
	state := controller.Snapshot()
	if state.Fullscreen {
		t.Fatalf("expected fullscreen cleared")
	}
	if tasks := scheduler.active(true); len(tasks) != 1 {
		t.Fatalf("expected auto-slide resumed after fullscreen exit")
	}
}

func TestTapInFullscreenArmsAndRearmsFloatingFade(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)
	controller.TapPhoto()

	controller.TapPhoto()
	fades := scheduler.active(false)
	if len(fades) != 1 {
		t.Fatalf("expected one fade timer, got %d", len(fades))
	}
	firstFade := fades[0]
	if firstFade.interval != DefaultFloatingFadeDelay {
		t.Fatalf("unexpected fade delay %v", firstFade.interval)
	}
	if !controller.Snapshot().FloatingVisible {
		t.Fatalf("expected floating overlay visible")
	}

	controller.TapPhoto()
	if !firstFade.stopped {
		t.Fatalf("expected repeated tap to reset the fade timer")
	}
	if controller.Snapshot().FloatingFaded {
		t.Fatalf("repeated tap must unfade the overlay")
	}

	scheduler.active(false)[0].fire()
	if !controller.Snapshot().FloatingFaded {
		t.Fatalf("expected overlay faded after delay")
	}
}

func TestExitFullscreenClearsFloatingOverlay(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)
	controller.TapPhoto()
	controller.TapPhoto()

	fade := scheduler.active(false)[0]
	controller.ExitFullscreen()

	state := controller.Snapshot()
	if state.FloatingVisible || state.FloatingFaded {
		t.Fatalf("expected overlay cleared, got %+v", state)
	}
	if !fade.stopped {
		t.Fatalf("expected fade timer cancelled")
	}
}

func TestCinemaModeRequiresEligibilityAndScrollDepth(t *testing.T) {
	controller, _, sink := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	// not yet eligible: scroll alone must not activate
	controller.HandleStoryScroll(200)
	if controller.Snapshot().CinemaActive {
		t.Fatalf("cinema must stay off before eligibility")
	}

	controller.ReportStoryMetrics(500, 0, 0)
	if !controller.Snapshot().CinemaEligible {
		t.Fatalf("expected long text to be eligible")
	}
	if !controller.Snapshot().CinemaActive {
		t.Fatalf("expected cinema active once eligible with deep scroll")
	}

	controller.HandleStoryScroll(70)
	if controller.Snapshot().CinemaActive {
		t.Fatalf("expected cinema off at threshold")
	}
	controller.HandleStoryScroll(71)
	if !controller.Snapshot().CinemaActive {
		t.Fatalf("expected cinema on past threshold")
	}

	if events := sink.byType(EventCinemaChanged); len(events) != 3 {
		t.Fatalf("expected three cinema transitions, got %d", len(events))
	}
}

func TestCinemaEligibilityFromRenderedHeight(t *testing.T) {
	controller, _, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)

	controller.ReportStoryMetrics(10, 700, 600)
	if controller.Snapshot().CinemaEligible {
		t.Fatalf("height within margin must not be eligible")
	}
	controller.ReportStoryMetrics(10, 721, 600)
	if !controller.Snapshot().CinemaEligible {
		t.Fatalf("height past margin must be eligible")
	}
}

func TestCloseStoryIsIdempotentAndStopsTimers(t *testing.T) {
	controller, scheduler, sink := newTestController(t)
	controller.OpenStory(multiImageItem(), 120)
	controller.TapPhoto()
	controller.TapPhoto()

	controller.CloseStory()
	state := controller.Snapshot()
	if state.Open || state.Fullscreen || state.CinemaActive || state.FloatingVisible {
		t.Fatalf("expected fully reset state, got %+v", state)
	}
	for _, task := range scheduler.tasks {
		if !task.stopped {
			t.Fatalf("expected every timer cancelled on close")
		}
	}

	controller.CloseStory()
	if events := sink.byType(EventStoryClosed); len(events) != 1 {
		t.Fatalf("second close must be a no-op, got %d close events", len(events))
	}
}

func TestClosedControllerIgnoresInput(t *testing.T) {
	controller, scheduler, sink := newTestController(t)
	controller.SelectImage(1)
	controller.TapPhoto()
	controller.HandleStoryScroll(500)
	controller.ReportStoryMetrics(1000, 1000, 10)

	if len(scheduler.tasks) != 0 {
		t.Fatalf("closed controller must not schedule anything")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 0 {
		t.Fatalf("closed controller must not emit events, got %v", sink.events)
	}
}

func TestScrollRestoreTargetTolerance(t *testing.T) {
	controller, _, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 150)

	if _, needed := controller.ScrollRestoreTarget(151); needed {
		t.Fatalf("within tolerance must not need a restore")
	}
	target, needed := controller.ScrollRestoreTarget(160)
	if !needed || target != 150 {
		t.Fatalf("expected restore to 150, got %d needed=%v", target, needed)
	}
}

func TestReopeningReplacesGalleryAndTimers(t *testing.T) {
	controller, scheduler, _ := newTestController(t)
	controller.OpenStory(multiImageItem(), 0)
	first := scheduler.active(true)[0]

	controller.OpenStory(memorial.Item{Title: "Lain", Year: "2021", Cover: "other.jpg"}, 0)
	if !first.stopped {
		t.Fatalf("expected prior story's auto-slide cancelled")
	}
	state := controller.Snapshot()
	if state.MemorialKey != "lain-2021" || len(state.Gallery) != 1 {
		t.Fatalf("unexpected state after reopen %+v", state)
	}
}
