package shadow

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/pthm/shadow/lib/resource"
)

// TestResult holds a component mounted for testing.
//
// Provides convenience methods for asserting on the committed markup and
// style, the events that escaped the component, and what it logged.
type TestResult struct {
	Component Component
	Document  *Document
	HTML      string
	Style     string

	mu     sync.Mutex
	events []*Event
	logs   *syncBuffer
}

// TestOption configures TestMount.
type TestOption func(*testConfig)

type testConfig struct {
	docOpts  []DocOption
	classOps []ClassOption
	registry *Registry
	timeout  time.Duration
}

// TestRegistry mounts into reg instead of a fresh registry. Child tags
// used by the component must be linked in reg.
func TestRegistry(reg *Registry) TestOption {
	return func(c *testConfig) {
		c.registry = reg
	}
}

// TestClass declares class options used when the component's type is not
// already linked.
func TestClass(opts ...ClassOption) TestOption {
	return func(c *testConfig) {
		c.classOps = append(c.classOps, opts...)
	}
}

// TestFetcher stubs CSS import fetching.
func TestFetcher(f resource.FetcherFunc) TestOption {
	return func(c *testConfig) {
		c.docOpts = append(c.docOpts, WithFetcher(f))
	}
}

// TestDocument passes options through to NewDocument.
func TestDocument(opts ...DocOption) TestOption {
	return func(c *testConfig) {
		c.docOpts = append(c.docOpts, opts...)
	}
}

// TestMount mounts comp into a headless document and waits for its first
// render. The document uses an immediate frame clock and captures logs at
// debug level. Components whose type is not linked are linked on the fly.
//
//	result, err := shadow.TestMount(NewCounter(), shadow.TestClass(shadow.WithAttrs("count")))
//	if !result.HTMLContains("0") {
//	    t.Fatal("missing initial count")
//	}
func TestMount(comp Component, opts ...TestOption) (*TestResult, error) {
	cfg := &testConfig{registry: NewRegistry(), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg.registry.SetLogger(logger)

	if _, err := cfg.registry.classFor(comp); err != nil {
		if err := defineFor(cfg.registry, comp, cfg.classOps...); err != nil {
			return nil, err
		}
	}

	docOpts := append([]DocOption{
		WithRegistry(cfg.registry),
		WithClock(ImmediateClock{}),
		WithLogger(logger),
	}, cfg.docOpts...)
	doc := NewDocument(docOpts...)

	result := &TestResult{
		Component: comp,
		Document:  doc,
		logs:      logs,
	}
	doc.AddEventListener(ChangeEvent, result.record)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()
	if err := doc.Mount(ctx, comp); err != nil {
		return result, err
	}
	result.capture()
	return result, nil
}

// defineFor links comp's dynamic type without a constructor.
func defineFor(reg *Registry, comp Component, opts ...ClassOption) error {
	typ := reflect.TypeOf(comp)
	cls := &Class{Name: typeName(typ), typ: typ}
	for _, opt := range opts {
		opt(cls)
	}
	if cls.Tag == "" {
		tag, err := DeriveTag(cls.Name)
		if err != nil {
			tag = "x-" + strings.ToLower(cls.Name)
		}
		cls.Tag = tag
	}
	return reg.Define(cls)
}

func (r *TestResult) record(ev *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *TestResult) capture() {
	root := r.Component.Base().Root()
	r.HTML = root.Markup()
	r.Style = root.Style()
}

// Refresh renders the component again and captures the new output.
func (r *TestResult) Refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Component.Base().Render(ctx); err != nil {
		return err
	}
	r.capture()
	return nil
}

// Fire dispatches an event at the first node matching sel in the
// component's render root, then refreshes.
func (r *TestResult) Fire(sel, typ string, opts ...EventOption) error {
	if err := r.Component.Base().Root().Fire(sel, typ, opts...); err != nil {
		return err
	}
	return r.Refresh()
}

// Close tears down the document.
func (r *TestResult) Close() {
	r.Document.Close()
}

// HTMLContains checks if the committed markup contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the committed markup contains all the given
// substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the committed markup contains any of the given
// substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// StyleContains checks if the committed style text contains a substring.
func (r *TestResult) StyleContains(substr string) bool {
	return strings.Contains(r.Style, substr)
}

// Events returns the change events that bubbled out of the component.
func (r *TestResult) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// HasEvent checks if a change event with the given name escaped the
// component.
func (r *TestResult) HasEvent(name string) bool {
	for _, ev := range r.Events() {
		if ev.EventName == name {
			return true
		}
	}
	return false
}

// Logs returns everything logged so far.
func (r *TestResult) Logs() string {
	return r.logs.String()
}

// LogContains checks if the log output contains a substring.
func (r *TestResult) LogContains(substr string) bool {
	return strings.Contains(r.Logs(), substr)
}

// LogCount returns how many log lines contain substr.
func (r *TestResult) LogCount(substr string) int {
	n := 0
	for _, line := range strings.Split(r.Logs(), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
