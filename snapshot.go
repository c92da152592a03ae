package shadow

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"

	"github.com/pthm/shadow/lib/markup"
)

// Snapshot returns a templ component that serialises comp and its
// committed render root as declarative shadow DOM:
//
//	<todo-list state="…"><template shadowrootmode="open"><style>…</style>…</template></todo-list>
//
// Child components are serialised recursively in place of their host
// nodes. Use it to server-render a mounted component tree.
func Snapshot(comp Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		sw := &stickyWriter{w: w}
		writeSnapshot(sw, comp.Base(), nil)
		return sw.err
	})
}

// Render writes a templ component to the HTTP response.
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    shadow.Render(w, r, shadow.Snapshot(app))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) WriteString(str string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, str)
}

// writeSnapshot writes e as a host element. node, when set, is the node e
// is mounted at in its parent root and supplies the host attributes as
// authored in markup.
func writeSnapshot(w *stickyWriter, e *Element, node *html.Node) {
	tag := e.Tag()
	if tag == "" {
		tag = "shadow-element"
	}

	w.WriteString("<" + tag)
	if node != nil {
		for _, a := range node.Attr {
			writeAttr(w, a.Key, a.Val)
		}
	} else {
		for _, a := range e.Attributes() {
			writeAttr(w, a.Name, a.Value)
		}
	}
	if e.Hidden() {
		writeAttr(w, "style", "visibility: hidden")
	}
	w.WriteString(">")

	if root := e.Root(); root != nil {
		w.WriteString(`<template shadowrootmode="open">`)
		root.mu.RLock()
		style, tree, children := root.style, root.tree, root.children
		root.mu.RUnlock()
		if style != "" {
			w.WriteString("<style>" + style + "</style>")
		}
		for c := tree.FirstChild; c != nil; c = c.NextSibling {
			writeNode(w, c, children)
		}
		w.WriteString("</template>")
	}
	w.WriteString("</" + tag + ">")
}

func writeNode(w *stickyWriter, n *html.Node, children map[*html.Node]Component) {
	switch n.Type {
	case html.TextNode:
		if p := n.Parent; p != nil && p.Type == html.ElementNode && rawText(p.Data) {
			w.WriteString(n.Data)
			return
		}
		w.WriteString(html.EscapeString(n.Data))
	case html.CommentNode:
		w.WriteString("<!--" + n.Data + "-->")
	case html.ElementNode:
		if c, ok := children[n]; ok {
			writeSnapshot(w, c.Base(), n)
			return
		}
		w.WriteString("<" + n.Data)
		for _, a := range n.Attr {
			writeAttr(w, a.Key, a.Val)
		}
		w.WriteString(">")
		if markup.IsVoid(n.Data) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(w, c, children)
		}
		w.WriteString("</" + n.Data + ">")
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(w, c, children)
		}
	}
}

func writeAttr(w *stickyWriter, key, val string) {
	w.WriteString(" " + key)
	if val != "" {
		w.WriteString(`="` + attrEscaper.Replace(val) + `"`)
	}
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;")

func rawText(tag string) bool {
	switch tag {
	case "script", "style", "textarea", "title", "xmp", "iframe", "noembed", "noframes", "noscript", "plaintext":
		return true
	}
	return false
}
