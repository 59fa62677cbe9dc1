package gallery

// EventType enumerates the view events pushed to attached displays.
type EventType string

const (
	EventStoryOpened       EventType = "story-opened"
	EventStoryClosed       EventType = "story-closed"
	EventImageChanged      EventType = "image-changed"
	EventCinemaChanged     EventType = "cinema-changed"
	EventFullscreenChanged EventType = "fullscreen-changed"
	EventFloatingFaded     EventType = "floating-faded"
	EventHeroCoverChanged  EventType = "hero-cover-changed"
)

// Event is one view-state change.
type Event struct {
	Type        EventType `json:"type"`
	MemorialKey string    `json:"memorial_key,omitempty"`
	ImageIndex  int       `json:"image_index,omitempty"`
	Image       string    `json:"image,omitempty"`
	Active      bool      `json:"active,omitempty"`
}

// EventSink receives published view events. Implementations must not call
// back into the publishing controller.
type EventSink interface {
	Publish(event Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
