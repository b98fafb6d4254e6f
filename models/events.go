package models

import "encoding/json"

type EventType string

const (
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// StreamEvent is one server-sent event of a chat stream. Only the field that
// belongs to Type is encoded.
type StreamEvent struct {
	Type    EventType
	Content string
	Message string
}

func ContentEvent(text string) StreamEvent { return StreamEvent{Type: EventContent, Content: text} }
func DoneEvent() StreamEvent               { return StreamEvent{Type: EventDone} }
func ErrorEvent(msg string) StreamEvent    { return StreamEvent{Type: EventError, Message: msg} }

// Terminal reports whether no event may follow this one.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventContent:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{e.Type})
	}
}
