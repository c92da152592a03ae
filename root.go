package shadow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/shadow/lib/markup"
)

// Root is an element's isolated render root. Every commit replaces its
// content wholesale; child components found in the new markup are
// instantiated and mounted afresh.
type Root struct {
	host *Element

	mu       sync.RWMutex
	style    string
	markup   string
	tree     *html.Node
	children map[*html.Node]Component
	order    []*html.Node
}

func newRoot(host *Element) *Root {
	return &Root{
		host:     host,
		tree:     &html.Node{Type: html.DocumentNode},
		children: make(map[*html.Node]Component),
	}
}

// Host returns the element owning the root.
func (r *Root) Host() *Element {
	return r.host
}

// Style returns the committed style text.
func (r *Root) Style() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.style
}

// Markup returns the committed markup as produced by preprocessing.
func (r *Root) Markup() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.markup
}

// HTML returns the committed markup serialised from the parsed tree.
func (r *Root) HTML() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for c := r.tree.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// Children returns the mounted child components in document order.
func (r *Root) Children() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.children[n])
	}
	return out
}

// QuerySelector returns the first node in the root matching sel.
func (r *Root) QuerySelector(sel string) (*html.Node, error) {
	s, err := cascadia.Parse(sel)
	if err != nil {
		return nil, fmt.Errorf("shadow: selector %q: %w", sel, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cascadia.Query(r.tree, s), nil
}

// QuerySelectorAll returns every node in the root matching sel.
func (r *Root) QuerySelectorAll(sel string) ([]*html.Node, error) {
	s, err := cascadia.Parse(sel)
	if err != nil {
		return nil, fmt.Errorf("shadow: selector %q: %w", sel, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cascadia.QueryAll(r.tree, s), nil
}

// Component returns the child component mounted at the first node
// matching sel.
func (r *Root) Component(sel string) (Component, error) {
	n, err := r.QuerySelector(sel)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("shadow: no node matches %q", sel)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.children[n]
	if !ok {
		return nil, fmt.Errorf("shadow: %q is not a component", sel)
	}
	return c, nil
}

// Fire dispatches a bubbling, composed event of type typ at the first node
// matching sel, as a user interaction would.
func (r *Root) Fire(sel, typ string, opts ...EventOption) error {
	n, err := r.QuerySelector(sel)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("shadow: no node matches %q", sel)
	}
	ev := &Event{
		Type:     typ,
		Node:     n,
		Bubbles:  true,
		Composed: true,
	}
	for _, opt := range opts {
		opt(ev)
	}
	ev.decodeDetail()
	r.dispatch(n, ev)
	return nil
}

// dispatch delivers ev at node and bubbles it through the root, invoking
// rewritten inline handlers on the way. Composed events then reach the
// host's listeners and continue in the host's own container.
func (r *Root) dispatch(node *html.Node, ev *Event) {
	r.mu.RLock()
	var path []*html.Node
	for n := node; n != nil && n != r.tree; n = n.Parent {
		path = append(path, n)
		if !ev.Bubbles {
			break
		}
	}
	r.mu.RUnlock()

	key := "on" + ev.Type
	for _, n := range path {
		if ev.stopped {
			return
		}
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			if !strings.EqualFold(a.Key, key) {
				continue
			}
			ref, ok := markup.ParseHandler(a.Val)
			if !ok || !ref.Rewritten {
				continue
			}
			ev.Args = ref.Args
			r.host.invoke(ref.Name, ev)
		}
	}
	ev.Args = nil

	if ev.stopped || !ev.Composed {
		return
	}
	r.host.listeners.invoke(ev)
	if ev.stopped || !ev.Bubbles {
		return
	}

	r.host.mu.Lock()
	parent, at, doc := r.host.parent, r.host.node, r.host.doc
	r.host.mu.Unlock()
	if parent != nil {
		parent.dispatch(at, ev)
		return
	}
	if doc != nil {
		doc.listeners.invoke(ev)
	}
}

// commit replaces the root's content and mounts child components found in
// body. It returns once every new child has completed its first render.
func (r *Root) commit(ctx context.Context, style, body string) error {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctxNode)
	if err != nil {
		return fmt.Errorf("shadow: parse markup: %w", err)
	}
	tree := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		tree.AppendChild(n)
	}

	r.unmountChildren()

	r.mu.Lock()
	r.style = style
	r.markup = body
	r.tree = tree
	r.mu.Unlock()

	return r.mountChildren(ctx, tree)
}

// mountChildren instantiates every registered tag in tree, outermost first.
// Tags nested inside a child's host node are light content of that child
// and are left alone.
func (r *Root) mountChildren(ctx context.Context, tree *html.Node) error {
	doc := r.host.Document()
	if doc == nil {
		return nil
	}

	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && doc.registry.Has(c.Data) {
				found = append(found, c)
				continue
			}
			walk(c)
		}
	}
	walk(tree)

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range found {
		comp, err := doc.registry.Instantiate(n.Data)
		if err != nil {
			r.host.Logger().Error("child instantiation failed", "tag", n.Data, "err", err)
			continue
		}
		el := comp.Base()
		for _, a := range n.Attr {
			el.SetAttribute(a.Key, a.Val)
		}
		cls, _ := doc.registry.Lookup(n.Data)
		el.bind(doc, cls)
		if err := el.connect(r, n); err != nil {
			r.host.Logger().Error("child mount failed", "tag", n.Data, "err", err)
			continue
		}

		r.mu.Lock()
		r.children[n] = comp
		r.order = append(r.order, n)
		r.mu.Unlock()

		g.Go(func() error {
			if err := el.Render(gctx); err != nil && gctx.Err() == nil {
				el.Logger().Error("child render failed", "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// unmountChildren disconnects every mounted child.
func (r *Root) unmountChildren() {
	r.mu.Lock()
	children := r.children
	order := r.order
	r.children = make(map[*html.Node]Component)
	r.order = nil
	r.mu.Unlock()

	for _, n := range order {
		children[n].Base().disconnect()
	}
}
