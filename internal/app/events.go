package app

import (
	"sync"
	"time"
)

// Event is published after every capture attempt.
type Event struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Capture *Result   `json:"capture,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Event types
const (
	EventCaptured = "captured"
	EventFailed   = "failed"
)

// Events fans capture events out to subscribers. Slow subscribers miss
// events rather than blocking captures.
type Events struct {
	mu        sync.RWMutex
	listeners []chan Event
}

// NewEvents creates an empty feed.
func NewEvents() *Events {
	return &Events{}
}

// Subscribe adds a listener
func (e *Events) Subscribe() chan Event {
	ch := make(chan Event, 10)
	e.mu.Lock()
	e.listeners = append(e.listeners, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (e *Events) Unsubscribe(ch chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, listener := range e.listeners {
		if listener == ch {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish sends ev to every listener
func (e *Events) Publish(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, listener := range e.listeners {
		select {
		case listener <- ev:
		default:
			// Skip if channel is full
		}
	}
}
