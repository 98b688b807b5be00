package models

// EventType classifies an inbound platform event for trigger matching.
type EventType string

const (
	EventCommand   EventType = "command"
	EventText      EventType = "text"
	EventCallback  EventType = "callback"
	EventButton    EventType = "button"
	EventPhoto     EventType = "photo"
	EventVideo     EventType = "video"
	EventVoice     EventType = "voice"
	EventDocument  EventType = "document"
	EventAudio     EventType = "audio"
	EventSticker   EventType = "sticker"
	EventVideoNote EventType = "video_note"
	EventAnimation EventType = "animation"
)

// IsCallback reports whether the event carries a callback payload.
func (e EventType) IsCallback() bool {
	return e == EventCallback || e == EventButton
}
