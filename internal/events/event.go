// Package events carries domain events from the request path to the message
// bus. Producers hand events to a Dispatcher and never wait for delivery.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope written to the bus.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// NewEvent wraps payload for topic with a fresh id.
func NewEvent(topic string, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers a single event to a transport.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Ping(ctx context.Context) error
	Close() error
}

// Recorder observes delivery outcomes.
type Recorder interface {
	EventPublished(topic string)
	EventFailed(topic string)
	EventDropped(topic string)
}

type noopRecorder struct{}

func (noopRecorder) EventPublished(string) {}
func (noopRecorder) EventFailed(string)    {}
func (noopRecorder) EventDropped(string)   {}
