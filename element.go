package shadow

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/pthm/shadow/lib/resource"
)

// Component is implemented by every type embedding *Element.
type Component interface {
	Base() *Element
}

// PreUpdater is implemented by components that refresh derived fields
// before a soft refresh, typically by reading a Store.
type PreUpdater interface {
	BeforeUpdate()
}

// Mounter is implemented by components that need a hook once mounted.
type Mounter interface {
	Mounted(ctx context.Context)
}

// Unmounter is implemented by components that release resources when
// removed from the tree.
type Unmounter interface {
	Unmounted()
}

// HandlerFunc handles an inline event. Returning true re-assigns state to
// itself, which re-renders the element.
type HandlerFunc func(ev *Event) bool

// Element is the base type embedded by user components. It owns the
// component's state, host attributes, resource gate and render root.
//
// Example:
//
//	type TodoItem struct {
//	    *shadow.Element
//	}
//
//	func NewTodoItem() *TodoItem {
//	    c := &TodoItem{}
//	    c.Element = shadow.New(c)
//	    return c
//	}
//
//	func (c *TodoItem) Template(s shadow.Scope) string {
//	    return `<li onclick="remove">` + s.String("text") + `</li>`
//	}
//
//	func (c *TodoItem) Remove(ev *shadow.Event) {
//	    c.Change("delete", map[string]any{"index": c.PropInt("index")})
//	}
//
// An Element does nothing until its component is mounted into a Document
// (directly, or as a child tag of another component's markup).
type Element struct {
	self Component

	mu       sync.Mutex
	class    *Class
	doc      *Document
	logger   *slog.Logger
	state    any
	hasState bool
	attrs    []Attribute
	props    map[string]string
	// syncing is non-zero while a property write is reflecting itself onto
	// its attribute (AttributeSyncing); zero is Idle.
	syncing     int
	handlers    map[string]HandlerFunc
	gate        *resource.Gate
	root        *Root
	parent      *Root
	node        *html.Node
	ctx         context.Context
	cancel      context.CancelFunc
	mounted     bool
	firstRender bool
	hidden      bool
	preUpdate   bool
	unsubscribe func()

	// inTurn is set while a handler or Mounted holds turn.
	inTurn bool

	listeners listenerSet
	// turn serialises handler calls and template evaluation, the two
	// places user code touches the component concurrently.
	turn  sync.Mutex
	sched scheduler
}

// Option configures an Element.
type Option func(*Element)

// WithState sets the initial state. It takes priority over a `state`
// attribute.
func WithState(v any) Option {
	return func(e *Element) {
		e.state = v
		e.hasState = true
	}
}

// WithAttributes sets host attributes before the element is mounted.
func WithAttributes(attrs ...Attribute) Option {
	return func(e *Element) {
		for _, a := range attrs {
			e.attrs = append(e.attrs, Attribute{Name: strings.ToLower(a.Name), Value: a.Value})
		}
	}
}

// New creates the base element for self. Call it from the component's
// constructor and assign the result to the embedded field.
func New(self Component, opts ...Option) *Element {
	e := &Element{
		self:        self,
		props:       make(map[string]string),
		handlers:    make(map[string]HandlerFunc),
		firstRender: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Base returns e. It makes every struct embedding *Element a Component.
func (e *Element) Base() *Element {
	return e
}

// Class returns the class the element was bound to, or nil before mount.
func (e *Element) Class() *Class {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.class
}

// Tag returns the element's tag name, or "" before it is bound.
func (e *Element) Tag() string {
	if cls := e.Class(); cls != nil {
		return cls.Tag
	}
	return ""
}

// Document returns the document the element belongs to.
func (e *Element) Document() *Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Logger returns the element's logger.
func (e *Element) Logger() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logger
}

// Root returns the element's render root.
func (e *Element) Root() *Root {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// Gate returns the element's resource gate.
func (e *Element) Gate() *resource.Gate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate
}

// Context returns the element's lifetime context. It is cancelled when the
// element is unmounted.
func (e *Element) Context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// IsMounted reports whether the element is attached to a document.
func (e *Element) IsMounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounted
}

// Hidden reports whether the element is hidden for its first render.
func (e *Element) Hidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidden
}

// FirstRender reports whether the element has yet to complete a render.
func (e *Element) FirstRender() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstRender
}

// State returns the current state. A State mapping is returned as a
// shallow copy; use SetState to change it.
func (e *Element) State() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.state.(State); ok {
		return maps.Clone(m)
	}
	return e.state
}

// SetState updates state and requests a render. When the current and new
// values are both mappings the top-level keys are merged shallowly;
// otherwise v replaces the state.
func (e *Element) SetState(v any) {
	e.mu.Lock()
	if e.hasState {
		e.state = mergeState(e.state, v)
	} else {
		e.state = v
		e.hasState = true
	}
	e.mu.Unlock()

	e.requestRender(nil)
}

// Update is a soft refresh. The component's BeforeUpdate hook runs at the
// start of the next render pass, then state is re-assigned to itself.
// Stores call Update on every subscriber.
func (e *Element) Update() {
	if _, ok := e.self.(PreUpdater); ok {
		e.mu.Lock()
		e.preUpdate = true
		e.mu.Unlock()
	}
	e.SetState(e.State())
}

// scope builds the evaluation scope. The top level of a mapping state is
// copied so templates never race a concurrent SetState.
func (e *Element) scope() Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	if m, ok := st.(State); ok {
		st = maps.Clone(m)
	}
	name := ""
	if e.class != nil {
		name = e.class.Name
	}
	return Scope{Name: name, State: st, Host: e.self}
}

// Handle registers fn as the handler named name. Registered handlers take
// priority over methods.
func (e *Element) Handle(name string, fn HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = fn
}

// HasHandler reports whether name resolves to a handler, either registered
// with Handle or a method on the component. A method matches when its name
// is name with the first letter upper-cased and it has one of the
// signatures:
//
//	func(*Event) bool
//	func(*Event)
//	func() bool
//	func()
func (e *Element) HasHandler(name string) bool {
	return e.lookup(name) != nil
}

func (e *Element) lookup(name string) HandlerFunc {
	e.mu.Lock()
	fn, ok := e.handlers[name]
	e.mu.Unlock()
	if ok {
		return fn
	}
	if e.self == nil || name == "" {
		return nil
	}

	m := reflect.ValueOf(e.self).MethodByName(exportName(name))
	if !m.IsValid() {
		return nil
	}
	switch f := m.Interface().(type) {
	case func(*Event) bool:
		return f
	case func(*Event):
		return func(ev *Event) bool { f(ev); return false }
	case func() bool:
		return func(*Event) bool { return f() }
	case func():
		return func(*Event) bool { f(); return false }
	}
	return nil
}

func (e *Element) lockTurn() {
	e.turn.Lock()
	e.mu.Lock()
	e.inTurn = true
	e.mu.Unlock()
}

func (e *Element) unlockTurn() {
	e.mu.Lock()
	e.inTurn = false
	e.mu.Unlock()
	e.turn.Unlock()
}

// turnHeld reports whether a handler or Mounted is running.
func (e *Element) turnHeld() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inTurn
}

func exportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// invoke runs the handler named name. A true result re-assigns state to
// itself. It reports whether a handler was found.
func (e *Element) invoke(name string, ev *Event) bool {
	fn := e.lookup(name)
	if fn == nil {
		e.Logger().Error("handler function not found in element", "handler", name, "event", ev.Type)
		return false
	}

	e.lockTurn()
	rerender := fn(ev)
	e.unlockTurn()

	if rerender {
		e.SetState(e.State())
	}
	return true
}

// bind attaches the element to doc as an instance of cls and resolves its
// initial state. It starts the resource gate but does not render.
func (e *Element) bind(doc *Document, cls *Class) {
	e.mu.Lock()
	if e.doc != nil {
		e.mu.Unlock()
		return
	}
	e.doc = doc
	e.class = cls
	e.logger = doc.logger.With("component", cls.Name, "tag", cls.Tag)
	if !e.hasState {
		if i := e.attrIndex("state"); i >= 0 {
			e.state = ParseState(e.attrs[i].Value)
		} else {
			e.state = State{}
		}
		e.hasState = true
	}

	timeout := cls.CSSImportTimeout
	if timeout == nil {
		timeout = doc.cfg.CSSImportTimeoutMS
	}
	e.gate = resource.New(cls.CSSImports,
		resource.WithFetcher(doc.fetcher),
		resource.WithLogger(e.logger),
		resource.WithTimeout(timeout),
	)
	e.root = newRoot(e)
	gate, logger := e.gate, e.logger
	e.mu.Unlock()

	gate.Start(doc.ctx)
	e.subscribe()
	logger.Debug("element bound", "imports", len(cls.CSSImports))
}

// subscribe registers the element with the document's store, if any.
func (e *Element) subscribe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil || e.doc.store == nil || e.unsubscribe != nil {
		return
	}
	e.unsubscribe = e.doc.store.Subscribe(e)
}

// connect attaches the element under parent at node (both nil for a
// top-level mount) and syncs its attributes. Renders requested before
// connect returns are dropped; the caller issues the first render.
func (e *Element) connect(parent *Root, node *html.Node) error {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return ErrUnregistered
	}
	if e.cancel != nil {
		e.mu.Unlock()
		return ErrAlreadyMounted
	}
	e.parent = parent
	e.node = node
	e.ctx, e.cancel = context.WithCancel(e.doc.ctx)
	lifetime, logger := e.ctx, e.logger
	e.mu.Unlock()

	e.subscribe()
	e.syncAttributes()
	if m, ok := e.self.(Mounter); ok {
		e.lockTurn()
		m.Mounted(lifetime)
		e.unlockTurn()
	}

	e.mu.Lock()
	e.mounted = true
	e.mu.Unlock()
	logger.Debug("element mounted")
	return nil
}

// disconnect unmounts the element and all of its children.
func (e *Element) disconnect() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	e.mounted = false
	cancel, unsubscribe, root, logger := e.cancel, e.unsubscribe, e.root, e.logger
	e.cancel, e.unsubscribe = nil, nil
	e.parent, e.node = nil, nil
	e.mu.Unlock()

	cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	if root != nil {
		root.unmountChildren()
	}
	if u, ok := e.self.(Unmounter); ok {
		u.Unmounted()
	}
	logger.Debug("element unmounted")
}
