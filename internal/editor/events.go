package editor

import "github.com/roach88/policygraph/internal/ir"

// EventType names a change to the live graph.
type EventType string

const (
	EventProcess           EventType = "process"
	EventNodeCreated       EventType = "nodecreated"
	EventNodeRemoved       EventType = "noderemoved"
	EventConnectionCreated EventType = "connectioncreated"
	EventConnectionRemoved EventType = "connectionremoved"
)

// Event is published after every accepted edit. Each one requests a fresh
// evaluation pass.
type Event struct {
	Type       EventType
	Node       string         // set for node events and control edits
	Connection *ir.Connection // set for connection events
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn to receive change events. fn runs on the goroutine
// that made the edit, after the editor's lock is released, and may call back
// into the editor. The returned func unregisters fn.
func (e *Editor) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// publish delivers events to a copy of the subscriber list. Must be called
// without holding mu.
func (e *Editor) publish(events ...Event) {
	e.mu.Lock()
	subs := append([]subscriber(nil), e.subs...)
	e.mu.Unlock()
	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
