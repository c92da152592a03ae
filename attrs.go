package shadow

import (
	"strings"
	"unicode"

	"github.com/spf13/cast"
)

// Attribute is a name/value pair on an element's host.
type Attribute struct {
	Name  string
	Value string
}

// AttrToProp converts a hyphenated attribute name to its property name
// ("todo-index" → "todoIndex").
func AttrToProp(attr string) string {
	var b strings.Builder
	for i := 0; i < len(attr); i++ {
		c := attr[i]
		if c == '-' && i+1 < len(attr) && attr[i+1] >= 'a' && attr[i+1] <= 'z' {
			b.WriteByte(attr[i+1] - 'a' + 'A')
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// PropToAttr converts a camel-cased property name to its attribute name
// ("todoIndex" → "todo-index").
func PropToAttr(prop string) string {
	var b strings.Builder
	for _, r := range prop {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetAttribute returns the value of a host attribute.
func (e *Element) GetAttribute(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.attrIndex(name)
	if i < 0 {
		return "", false
	}
	return e.attrs[i].Value, true
}

// HasAttribute reports whether a host attribute is set.
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.GetAttribute(name)
	return ok
}

// Attributes returns a copy of the host attributes in insertion order.
func (e *Element) Attributes() []Attribute {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Attribute(nil), e.attrs...)
}

// SetAttribute sets a host attribute. Observed attributes run the
// attribute-changed hook once the element is bound to a class.
func (e *Element) SetAttribute(name, value string) {
	name = strings.ToLower(name)

	e.mu.Lock()
	old, had := "", false
	if i := e.attrIndex(name); i >= 0 {
		old, had = e.attrs[i].Value, true
		e.attrs[i].Value = value
	} else {
		e.attrs = append(e.attrs, Attribute{Name: name, Value: value})
	}
	observed := e.observes(name)
	e.mu.Unlock()

	// Every write to `state` is a state write, even of the same text.
	if had && old == value && name != "state" {
		return
	}
	if observed {
		e.attributeChanged(name, value, true)
	}
}

// RemoveAttribute removes a host attribute.
func (e *Element) RemoveAttribute(name string) {
	name = strings.ToLower(name)

	e.mu.Lock()
	i := e.attrIndex(name)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	e.attrs = append(e.attrs[:i], e.attrs[i+1:]...)
	observed := e.observes(name)
	e.mu.Unlock()

	if observed {
		e.attributeChanged(name, "", false)
	}
}

// attrIndex must be called with e.mu held.
func (e *Element) attrIndex(name string) int {
	for i, a := range e.attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// observes must be called with e.mu held.
func (e *Element) observes(name string) bool {
	if e.class == nil {
		return false
	}
	if name == "state" {
		return true
	}
	for _, a := range e.class.Attrs {
		if a == name {
			return true
		}
	}
	return false
}

// attributeChanged is the hook run for every change to an observed
// attribute. The `state` attribute is parsed and forwarded to SetState.
// Other attributes are written through to their property unless the
// property already holds the value; writes made while a property is
// syncing its attribute are ignored, which breaks the
// property → attribute → property cycle.
func (e *Element) attributeChanged(name, value string, present bool) {
	if name == "state" {
		if present {
			e.SetState(ParseState(value))
		}
		return
	}

	prop := AttrToProp(name)

	e.mu.Lock()
	if e.syncing > 0 {
		e.mu.Unlock()
		return
	}
	cur, had := e.props[prop]
	if had == present && cur == value {
		e.mu.Unlock()
		return
	}
	if present {
		e.props[prop] = value
	} else {
		delete(e.props, prop)
	}
	e.mu.Unlock()

	e.requestRender(nil)
}

// Prop returns an attribute-backed property by its property name. The
// value is the attribute string; no type coercion is applied.
func (e *Element) Prop(name string) (string, bool) {
	return e.GetAttribute(PropToAttr(name))
}

// SetProp writes an attribute-backed property. nil and false remove the
// attribute; any other value is written in its string form. A render is
// always requested.
func (e *Element) SetProp(name string, v any) {
	attr := PropToAttr(name)
	remove := v == nil
	if b, ok := v.(bool); ok && !b {
		remove = true
	}
	value := ""
	if !remove {
		value = cast.ToString(v)
	}

	e.mu.Lock()
	e.syncing++
	if remove {
		delete(e.props, name)
	} else {
		e.props[name] = value
	}
	e.mu.Unlock()

	if remove {
		e.RemoveAttribute(attr)
	} else {
		e.SetAttribute(attr, value)
	}

	e.mu.Lock()
	e.syncing--
	e.mu.Unlock()

	e.requestRender(nil)
}

// PropBool reads a property as a bool. A present attribute with an empty
// value is true, as with HTML boolean attributes.
func (e *Element) PropBool(name string) bool {
	v, ok := e.Prop(name)
	if !ok {
		return false
	}
	if v == "" {
		return true
	}
	return cast.ToBool(v)
}

// PropInt reads a property as an int. Missing or malformed values are 0.
func (e *Element) PropInt(name string) int {
	v, _ := e.Prop(name)
	return cast.ToInt(v)
}

// PropFloat reads a property as a float64.
func (e *Element) PropFloat(name string) float64 {
	v, _ := e.Prop(name)
	return cast.ToFloat64(v)
}

// syncAttributes copies every set attribute into its property, parsing the
// `state` attribute into state. Run once on mount.
func (e *Element) syncAttributes() {
	for _, a := range e.Attributes() {
		if a.Name == "state" {
			e.SetState(ParseState(a.Value))
			continue
		}
		e.mu.Lock()
		if e.observes(a.Name) {
			e.props[AttrToProp(a.Name)] = a.Value
		}
		e.mu.Unlock()
	}
}
