// matchmaker/notify/recorder.go
package notify

import (
	"context"
	"sync"
)

// Recorder keeps every event in memory for inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, member, event string, payload any) error {
	r.mu.Lock()
	r.events = append(r.events, Envelope{Event: event, Member: member, Payload: payload})
	r.mu.Unlock()
	return nil
}

// Events returns the recorded events, optionally only those named event.
func (r *Recorder) Events(event string) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for _, e := range r.events {
		if event == "" || e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Members returns the recipients of event in delivery order.
func (r *Recorder) Members(event string) []string {
	var out []string
	for _, e := range r.Events(event) {
		out = append(out, e.Member)
	}
	return out
}
