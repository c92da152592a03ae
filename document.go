package shadow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/pthm/shadow/lib/resource"
)

// Document is the context components are mounted into. It carries the
// registry, the optional shared store, the resource fetcher, the frame
// clock and the logger; nothing is looked up from globals at render time.
type Document struct {
	registry *Registry
	store    *Store
	fetcher  resource.Fetcher
	clock    FrameClock
	logger   *slog.Logger
	tracer   Tracer
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mounted   []Component
	listeners listenerSet
}

// DocOption configures a Document.
type DocOption func(*Document)

// WithRegistry sets the registry. Defaults to Default().
func WithRegistry(r *Registry) DocOption {
	return func(d *Document) {
		d.registry = r
	}
}

// WithStore sets the shared store elements subscribe to.
func WithStore(s *Store) DocOption {
	return func(d *Document) {
		d.store = s
	}
}

// WithFetcher sets how CSS imports are fetched. Defaults to HTTP.
func WithFetcher(f resource.Fetcher) DocOption {
	return func(d *Document) {
		d.fetcher = f
	}
}

// WithHTTPClient fetches CSS imports with c.
func WithHTTPClient(c *http.Client) DocOption {
	return func(d *Document) {
		d.fetcher = resource.HTTPFetcher{Client: c}
	}
}

// WithClock sets the frame clock. Defaults to a ticker at Config.FrameRate.
func WithClock(c FrameClock) DocOption {
	return func(d *Document) {
		d.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DocOption {
	return func(d *Document) {
		d.logger = l
	}
}

// WithTracer observes every render phase of every element.
func WithTracer(t Tracer) DocOption {
	return func(d *Document) {
		d.tracer = t
	}
}

// WithConfig sets document-wide settings.
func WithConfig(c Config) DocOption {
	return func(d *Document) {
		d.cfg = c
	}
}

// NewDocument creates a document.
func NewDocument(opts ...DocOption) *Document {
	d := &Document{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = Default()
	}
	if d.fetcher == nil {
		d.fetcher = resource.HTTPFetcher{}
	}
	if d.clock == nil {
		d.clock = NewTickerClock(d.cfg.FrameRate)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Registry returns the document's registry.
func (d *Document) Registry() *Registry { return d.registry }

// Store returns the document's store, or nil.
func (d *Document) Store() *Store { return d.store }

// Logger returns the document's logger.
func (d *Document) Logger() *slog.Logger { return d.logger }

// Mount attaches comp at the top level and waits for its first render.
// comp's type must be registered.
func (d *Document) Mount(ctx context.Context, comp Component) error {
	el := comp.Base()
	if el == nil {
		return fmt.Errorf("%w: %T", ErrNoElement, comp)
	}
	cls, err := d.registry.classFor(comp)
	if err != nil {
		return err
	}
	if doc := el.Document(); doc != nil && doc != d {
		return ErrAlreadyMounted
	}

	el.bind(d, cls)
	if err := el.connect(nil, nil); err != nil {
		return err
	}
	d.mu.Lock()
	d.mounted = append(d.mounted, comp)
	d.mu.Unlock()

	return el.Render(ctx)
}

// Create instantiates the class for tag with attrs and mounts it.
func (d *Document) Create(ctx context.Context, tag string, attrs ...Attribute) (Component, error) {
	comp, err := d.registry.Instantiate(tag)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		comp.Base().SetAttribute(a.Name, a.Value)
	}
	if err := d.Mount(ctx, comp); err != nil {
		return comp, err
	}
	return comp, nil
}

// Unmount detaches a top-level component and everything it rendered.
func (d *Document) Unmount(comp Component) error {
	d.mu.Lock()
	i := slices.Index(d.mounted, comp)
	if i < 0 {
		d.mu.Unlock()
		return ErrNotMounted
	}
	d.mounted = slices.Delete(d.mounted, i, i+1)
	d.mu.Unlock()

	comp.Base().disconnect()
	return nil
}

// Components returns the top-level components in mount order.
func (d *Document) Components() []Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.mounted)
}

// AddEventListener registers fn for composed events that bubble out of a
// top-level component.
func (d *Document) AddEventListener(typ string, fn Listener) (remove func()) {
	return d.listeners.add(typ, fn)
}

// Close unmounts everything, abandons outstanding fetches and stops the
// default clock.
func (d *Document) Close() {
	for _, c := range d.Components() {
		_ = d.Unmount(c)
	}
	d.cancel()
	if t, ok := d.clock.(*TickerClock); ok {
		t.Stop()
	}
}

func (d *Document) trace(c Component, p Phase) {
	if d.tracer != nil {
		d.tracer(c, p)
	}
	d.logger.Debug("render phase", "phase", p.String(), "component", fmt.Sprintf("%T", c))
}
