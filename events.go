package shadow

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/net/html"
)

// ChangeEvent is the event type emitted by Element.Change.
const ChangeEvent = "change"

// Event is a notification travelling through the element tree.
type Event struct {
	Type string
	// Detail is the serialised payload of a custom event.
	Detail string
	// Data is Detail decoded as a mapping. For change events it merges the
	// details passed to Change with the eventName key.
	Data map[string]any
	// EventName is the name passed to Change.
	EventName string
	// Target is the component that emitted the event, if any.
	Target Component
	// Node is the render-root node the event was fired at, if any.
	Node *html.Node
	// Args holds the literal arguments of the inline handler being invoked.
	Args []string
	// Key and Value carry keyboard and input details for fired events.
	Key   string
	Value string

	Bubbles  bool
	Composed bool

	stopped bool
}

// StopPropagation prevents the event from reaching further listeners.
func (ev *Event) StopPropagation() {
	ev.stopped = true
}

// Stopped reports whether propagation was stopped.
func (ev *Event) Stopped() bool {
	return ev.stopped
}

// Arg returns the i'th inline handler argument, or "".
func (ev *Event) Arg(i int) string {
	if i < 0 || i >= len(ev.Args) {
		return ""
	}
	return ev.Args[i]
}

// decodeDetail fills Data and EventName from Detail.
func (ev *Event) decodeDetail() {
	if ev.Detail == "" || ev.Data != nil {
		return
	}
	if m, ok := gjson.Parse(ev.Detail).Value().(map[string]any); ok {
		ev.Data = m
	}
	ev.EventName = gjson.Get(ev.Detail, "eventName").String()
}

// EventOption configures an event created by Root.Fire.
type EventOption func(*Event)

// WithKey sets the key of a keyboard event.
func WithKey(key string) EventOption {
	return func(ev *Event) {
		ev.Key = key
	}
}

// WithValue sets the input value carried by the event.
func WithValue(v string) EventOption {
	return func(ev *Event) {
		ev.Value = v
	}
}

// WithDetail sets a custom event payload.
func WithDetail(detail string) EventOption {
	return func(ev *Event) {
		ev.Detail = detail
	}
}

// Listener receives events dispatched to an element.
type Listener func(ev *Event)

type listenerEntry struct {
	id int
	fn Listener
}

// listenerSet is an ordered set of listeners keyed by event type.
type listenerSet struct {
	mu     sync.Mutex
	nextID int
	byType map[string][]listenerEntry
}

func (s *listenerSet) add(typ string, fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byType == nil {
		s.byType = make(map[string][]listenerEntry)
	}
	s.nextID++
	id := s.nextID
	s.byType[typ] = append(s.byType[typ], listenerEntry{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		entries := s.byType[typ]
		for i, e := range entries {
			if e.id == id {
				s.byType[typ] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// invoke calls the listeners for ev.Type in registration order.
func (s *listenerSet) invoke(ev *Event) {
	s.mu.Lock()
	entries := append([]listenerEntry(nil), s.byType[ev.Type]...)
	s.mu.Unlock()

	for _, e := range entries {
		if ev.stopped {
			return
		}
		e.fn(ev)
	}
}

// AddEventListener registers fn for events of type typ reaching this
// element. The returned function removes the listener.
func (e *Element) AddEventListener(typ string, fn Listener) (remove func()) {
	return e.listeners.add(typ, fn)
}

// DispatchEvent delivers ev to this element's listeners and, when it
// bubbles, on through the render roots that contain it.
func (e *Element) DispatchEvent(ev *Event) {
	if ev.Target == nil {
		ev.Target = e.self
	}
	ev.decodeDetail()

	e.listeners.invoke(ev)
	if ev.stopped || !ev.Bubbles {
		return
	}

	e.mu.Lock()
	parent, node := e.parent, e.node
	doc := e.doc
	e.mu.Unlock()

	if parent != nil {
		parent.dispatch(node, ev)
		return
	}
	if doc != nil {
		doc.listeners.invoke(ev)
	}
}

// Change emits a bubbling, composed change event whose payload is details
// plus an eventName key. It is how a child signals its container.
func (e *Element) Change(eventName string, details map[string]any) error {
	payload := []byte("{}")
	if len(details) > 0 {
		var err error
		payload, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}
	payload, err := sjson.SetBytes(payload, "eventName", eventName)
	if err != nil {
		return err
	}

	e.DispatchEvent(&Event{
		Type:     ChangeEvent,
		Detail:   string(payload),
		Bubbles:  true,
		Composed: true,
	})
	return nil
}
