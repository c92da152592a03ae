// Package shadow is a headless runtime for reactive, style-isolated UI
// components. A component turns a plain state value into markup rendered
// inside its own render root, reflects declared attributes onto
// properties, gates its first paint on fetched style resources, and talks
// to its container through bubbling change events.
//
// # Core Concepts
//
// Components embed *Element and implement Templater (or TemplComponent
// for templ), optionally Styler:
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
//	    return `<li>` + s.String("text") + `<button onclick="remove">x</button></li>`
//	}
//
// Templates receive an explicit Scope holding the type name, a snapshot
// of the state and the host component. Handlers named in on<event>
// attributes resolve to methods (remove → Remove) or to functions
// registered with Handle.
//
// # Registration
//
// Types are registered explicitly, by hand or through the generated
// LinkComponents table (see cmd/shadow):
//
//	shadow.Link(reg, NewTodoItem, shadow.WithAttrs("index"))
//
// The tag is derived from the type name (TodoItem → todo-item) and must
// contain a hyphen; use WithTag when it does not.
//
// # Rendering
//
// Every state write, property write or observed attribute change requests
// a render. Requests are coalesced so at most one pass runs per element.
// A pass waits for the element's resource gate, evaluates styles and
// template, rewrites inline handlers, and replaces the render root's
// content. The first pass hides the element across two frame boundaries
// to avoid a flash of unstyled content.
//
// # Documents and Stores
//
// A Document is the explicit context components mount into. It carries
// the Registry, an optional Store whose broadcasts call Update on every
// bound element, the CSS fetcher, the frame clock and the logger.
//
//	doc := shadow.NewDocument(shadow.WithRegistry(reg), shadow.WithStore(store))
//	defer doc.Close()
//	if err := doc.Mount(ctx, app); err != nil {
//	    return err
//	}
//
// Snapshot serialises a mounted tree as declarative shadow DOM for server
// rendering.
//
// # Testing
//
// TestMount mounts a component into a headless document with an immediate
// frame clock and returns a TestResult for assertions.
package shadow
