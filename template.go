package shadow

import (
	"bytes"
	"context"
	"fmt"

	"github.com/a-h/templ"
	"github.com/spf13/cast"
)

// Templater is implemented by components that produce markup as text.
//
//	func (c *TodoItem) Template(s shadow.Scope) string {
//	    return `<li>` + s.String("text") + `</li>`
//	}
type Templater interface {
	Template(s Scope) string
}

// TemplComponent is implemented by components that render with templ.
// It is used when the component does not implement Templater.
type TemplComponent interface {
	Templ(s Scope) templ.Component
}

// Styler is implemented by components that contribute style text. The
// result is placed in the render root's <style> block after any fetched
// CSSImports.
type Styler interface {
	Styles(s Scope) string
}

// Scope is the evaluation context handed to template producers.
//
// State fields are read through the helpers rather than as bare names:
//
//	s.String("text"), s.Bool("editing"), s.Slice("todos")
type Scope struct {
	// Name is the component type's name.
	Name string
	// State is the component's live state. It is usually a State mapping
	// but may be any value, including a raw string.
	State any
	// Host is the component instance being rendered.
	Host Component
}

// Map returns the state as a mapping, or nil when it is not one.
func (s Scope) Map() State {
	m, _ := s.State.(State)
	return m
}

// Get returns a top-level state field.
func (s Scope) Get(key string) any {
	return s.Map()[key]
}

// String returns a state field converted to a string.
func (s Scope) String(key string) string {
	return cast.ToString(s.Get(key))
}

// Bool returns a state field converted to a bool.
func (s Scope) Bool(key string) bool {
	return cast.ToBool(s.Get(key))
}

// Int returns a state field converted to an int.
func (s Scope) Int(key string) int {
	return cast.ToInt(s.Get(key))
}

// Slice returns a state field as a slice.
func (s Scope) Slice(key string) []any {
	return cast.ToSlice(s.Get(key))
}

// Fields returns a nested mapping field.
func (s Scope) Fields(key string) State {
	return cast.ToStringMap(s.Get(key))
}

// Element returns the host's base element.
func (s Scope) Element() *Element {
	if s.Host == nil {
		return nil
	}
	return s.Host.Base()
}

// Text is raw template text. It satisfies the producer contract of Evaluate
// for templates that do not depend on state.
type Text string

// Evaluate runs a template producer against scope and returns its text.
//
// Accepted producers:
//   - func(Scope) string
//   - func(Scope) (string, error)
//   - func(Scope) templ.Component
//   - templ.Component
//   - Text
//
// Any other value is a usage error wrapping ErrNotProducer.
func Evaluate(ctx context.Context, producer any, scope Scope) (string, error) {
	switch p := producer.(type) {
	case func(Scope) string:
		return p(scope), nil
	case func(Scope) (string, error):
		return p(scope)
	case func(Scope) templ.Component:
		return renderTempl(ctx, p(scope))
	case templ.Component:
		return renderTempl(ctx, p)
	case Text:
		return string(p), nil
	default:
		return "", fmt.Errorf("%w, got %T", ErrNotProducer, producer)
	}
}

func renderTempl(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// producers returns the template and style producers for a component. The
// default template is an identifying comment.
func producers(c Component, name string) (tmpl, styles any) {
	switch t := c.(type) {
	case Templater:
		tmpl = t.Template
	case TemplComponent:
		tmpl = t.Templ
	default:
		tmpl = Text(fmt.Sprintf("<!-- %s element -->", name))
	}
	if s, ok := c.(Styler); ok {
		styles = s.Styles
	}
	return tmpl, styles
}
