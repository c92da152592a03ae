package shadow

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// Class describes a component type: its tag, observed attributes and
// resource imports. One Class exists per type.
type Class struct {
	// Tag is the custom element name. It must contain a hyphen.
	Tag string
	// Name is the component type's name, exposed to templates as
	// Scope.Name. Defaults to the Go type name.
	Name string
	// Attrs lists the observed attributes besides `state`.
	Attrs []string
	// CSSImports are absolute URLs fetched before the first render.
	CSSImports []string
	// CSSImportTimeout bounds each import fetch: integer milliseconds or a
	// time.Duration. nil uses the document's configured timeout; anything
	// else reverts to 5000ms.
	CSSImportTimeout any
	// New constructs a fresh instance. Required for tags used in markup.
	New func() Component

	typ    reflect.Type
	linked atomic.Bool
}

// Linked reports whether the class has been registered.
func (c *Class) Linked() bool {
	return c.linked.Load()
}

// ObservedAttributes returns the attributes whose changes reach the
// attribute-changed hook. `state` is always first.
func (c *Class) ObservedAttributes() []string {
	out := []string{"state"}
	for _, a := range c.Attrs {
		if a != "state" {
			out = append(out, a)
		}
	}
	return out
}

// ClassOption configures a class created by Link.
type ClassOption func(*Class)

// WithTag overrides the derived tag name.
func WithTag(tag string) ClassOption {
	return func(c *Class) {
		c.Tag = tag
	}
}

// WithAttrs declares observed attributes.
func WithAttrs(attrs ...string) ClassOption {
	return func(c *Class) {
		c.Attrs = append(c.Attrs, attrs...)
	}
}

// WithCSSImports declares style resources fetched before first paint.
func WithCSSImports(urls ...string) ClassOption {
	return func(c *Class) {
		c.CSSImports = append(c.CSSImports, urls...)
	}
}

// WithCSSImportTimeout sets the per-import timeout. See Class.CSSImportTimeout.
func WithCSSImportTimeout(v any) ClassOption {
	return func(c *Class) {
		c.CSSImportTimeout = v
	}
}

// Registry maps tag names to component classes.
type Registry struct {
	mu     sync.RWMutex
	byTag  map[string]*Class
	byName map[string]*Class
	byType map[reflect.Type]*Class
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byTag:  make(map[string]*Class),
		byName: make(map[string]*Class),
		byType: make(map[reflect.Type]*Class),
		logger: slog.Default(),
	}
}

var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(NewRegistry())
}

// Default returns the process-wide registry used by documents created
// without WithRegistry.
func Default() *Registry {
	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry.
func SetDefault(r *Registry) {
	defaultRegistry.Store(r)
}

// SetLogger sets the logger used for registration guidance.
func (reg *Registry) SetLogger(l *slog.Logger) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.logger = l
}

func (reg *Registry) log() *slog.Logger {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.logger
}

// Define registers cls. Defining a class whose name is already registered
// under the same tag is a no-op; a tag claimed by a different class is
// ErrTagCollision.
func (reg *Registry) Define(cls *Class) error {
	cls.Tag = strings.ToLower(cls.Tag)
	if err := validTag(cls.Tag); err != nil {
		return err
	}
	if cls.typ == nil && cls.New != nil {
		cls.typ = reflect.TypeOf(cls.New())
	}
	if cls.Name == "" && cls.typ != nil {
		cls.Name = typeName(cls.typ)
	}
	if cls.Name == "" {
		cls.Name = cls.Tag
	}
	for i, a := range cls.Attrs {
		cls.Attrs[i] = strings.ToLower(a)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.byTag[cls.Tag]; ok {
		if existing == cls || existing.Name == cls.Name {
			return nil
		}
		return fmt.Errorf("%w: %q is %s, not %s", ErrTagCollision, cls.Tag, existing.Name, cls.Name)
	}
	if existing, ok := reg.byName[cls.Name]; ok && existing.Linked() {
		return nil
	}

	reg.byTag[cls.Tag] = cls
	reg.byName[cls.Name] = cls
	if cls.typ != nil {
		reg.byType[cls.typ] = cls
	}
	cls.linked.Store(true)
	return nil
}

// Link registers the component type produced by ctor. The class name is
// the Go type name and the tag is derived from it ("TodoItem" →
// "todo-item") unless WithTag is given. A name that yields no hyphenated
// tag is ErrUndiscoverableTag; register it with WithTag instead.
//
// Link is idempotent per type.
func Link[T Component](reg *Registry, ctor func() T, opts ...ClassOption) (*Class, error) {
	typ := reflect.TypeFor[T]()
	if cls, ok := reg.lookupType(typ); ok {
		return cls, nil
	}

	cls := &Class{
		Name: typeName(typ),
		New:  func() Component { return ctor() },
		typ:  typ,
	}
	for _, opt := range opts {
		opt(cls)
	}
	if cls.Tag == "" {
		tag, err := DeriveTag(cls.Name)
		if err != nil {
			reg.log().Error("could not derive a tag name; register with shadow.WithTag",
				"component", cls.Name, "err", err)
			return nil, err
		}
		cls.Tag = tag
	}
	if err := reg.Define(cls); err != nil {
		return nil, err
	}
	return reg.Lookup(cls.Tag)
}

// MustLink is like Link but panics on error.
func MustLink[T Component](reg *Registry, ctor func() T, opts ...ClassOption) *Class {
	cls, err := Link(reg, ctor, opts...)
	if err != nil {
		panic(err)
	}
	return cls
}

// Lookup returns the class registered for tag.
func (reg *Registry) Lookup(tag string) (*Class, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	cls, ok := reg.byTag[strings.ToLower(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return cls, nil
}

// Has reports whether tag is registered.
func (reg *Registry) Has(tag string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.byTag[strings.ToLower(tag)]
	return ok
}

// Tags returns the registered tags.
func (reg *Registry) Tags() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.byTag))
	for tag := range reg.byTag {
		out = append(out, tag)
	}
	return out
}

// Instantiate creates a new, unmounted instance of the class for tag.
func (reg *Registry) Instantiate(tag string) (Component, error) {
	cls, err := reg.Lookup(tag)
	if err != nil {
		return nil, err
	}
	if cls.New == nil {
		return nil, fmt.Errorf("%w: %q has no constructor", ErrUnregistered, tag)
	}
	comp := cls.New()
	if comp == nil || comp.Base() == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, cls.Name)
	}
	return comp, nil
}

// classFor returns the class registered for comp's type.
func (reg *Registry) classFor(comp Component) (*Class, error) {
	if cls, ok := reg.lookupType(reflect.TypeOf(comp)); ok {
		return cls, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnregistered, comp)
}

func (reg *Registry) lookupType(typ reflect.Type) (*Class, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	cls, ok := reg.byType[typ]
	return cls, ok
}

func typeName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Name()
}

// DeriveTag converts a type name to a custom element tag:
// "TodoList" → "todo-list", "HTMLView" → "html-view". The result must
// contain a hyphen.
func DeriveTag(name string) (string, error) {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	tag := b.String()
	if err := validTag(tag); err != nil {
		return "", fmt.Errorf("%w: %q from %q", ErrUndiscoverableTag, tag, name)
	}
	return tag, nil
}

// validTag checks the custom element naming rules: a lowercase ASCII
// letter first, at least one hyphen, and no uppercase letters.
func validTag(tag string) error {
	if tag == "" || tag[0] < 'a' || tag[0] > 'z' || !strings.Contains(tag, "-") {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	for _, r := range tag {
		if unicode.IsUpper(r) || unicode.IsSpace(r) || strings.ContainsRune(`"'<>/=`, r) {
			return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
		}
	}
	return nil
}
