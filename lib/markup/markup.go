// Package markup rewrites component template output before it is committed
// to a render root.
//
// Markup is tokenized with golang.org/x/net/html into a flat list of typed
// nodes. Rewrite passes operate on that list and only nodes they touch are
// re-serialised; everything else is emitted byte-for-byte as authored.
//
// Two passes run on every render:
//   - handler rewriting: on<event>="name(...)" becomes a call dispatched to
//     the render root's host element
//   - self-closing expansion: <tag a="1"/> becomes <tag a="1"></tag>
package markup

import (
	"bytes"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// Kind identifies the type of a markup node.
type Kind int

const (
	TextNode Kind = iota
	StartTagNode
	EndTagNode
	SelfClosingTagNode
	CommentNode
	DoctypeNode
)

func (k Kind) String() string {
	switch k {
	case TextNode:
		return "text"
	case StartTagNode:
		return "start"
	case EndTagNode:
		return "end"
	case SelfClosingTagNode:
		return "self-closing"
	case CommentNode:
		return "comment"
	case DoctypeNode:
		return "doctype"
	default:
		return "unknown"
	}
}

// Attr is a single tag attribute. Val is the unescaped value.
type Attr struct {
	Key string
	Val string
}

// Node is one token of parsed markup.
//
// Raw holds the exact source text of the token. A node whose attributes
// have been modified by a rewrite pass is marked dirty and re-serialised
// from Name and Attrs instead of Raw.
type Node struct {
	Kind  Kind
	Name  string // lower-cased tag name; empty for non-tag nodes
	Attrs []Attr
	Raw   string

	dirty bool
	// keys holds the attribute keys as authored, parallel to Attrs.
	keys []string
}

// Dirty reports whether the node was modified by a rewrite pass.
func (n *Node) Dirty() bool {
	return n.dirty
}

// SetAttr replaces the value of the attribute at index i and marks the node
// dirty.
func (n *Node) SetAttr(i int, val string) {
	n.Attrs[i].Val = val
	n.dirty = true
}

// Parse tokenizes markup into a flat node list. Concatenating the Raw text
// of the returned nodes reproduces src exactly.
func Parse(src string) []*Node {
	z := html.NewTokenizer(strings.NewReader(src))
	var nodes []*Node

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// Whatever the tokenizer stopped on, an unterminated tag at EOF
			// included, is carried as text.
			if rest := z.Raw(); len(rest) > 0 {
				nodes = append(nodes, &Node{Kind: TextNode, Raw: string(rest)})
			}
			return nodes
		}

		raw := string(z.Raw())
		n := &Node{Raw: raw}

		switch tt {
		case html.TextToken:
			n.Kind = TextNode
		case html.CommentToken:
			n.Kind = CommentNode
		case html.DoctypeToken:
			n.Kind = DoctypeNode
		case html.EndTagToken:
			n.Kind = EndTagNode
			name, _ := z.TagName()
			n.Name = string(name)
		case html.StartTagToken, html.SelfClosingTagToken:
			n.Kind = StartTagNode
			if tt == html.SelfClosingTagToken {
				n.Kind = SelfClosingTagNode
			}
			name, hasAttr := z.TagName()
			n.Name = string(name)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				n.Attrs = append(n.Attrs, Attr{Key: string(key), Val: string(val)})
			}
			if keys := authoredKeys(raw); len(keys) == len(n.Attrs) {
				n.keys = keys
			}
			// <tag a=1/> reads as a start tag whose last value is "1/".
			if last := len(n.Attrs) - 1; n.Kind == StartTagNode && last >= 0 &&
				strings.HasSuffix(raw, "/>") && strings.HasSuffix(n.Attrs[last].Val, "/") {
				n.Kind = SelfClosingTagNode
				n.Attrs[last].Val = strings.TrimSuffix(n.Attrs[last].Val, "/")
			}
		}

		nodes = append(nodes, n)
	}
}

// Render serialises nodes back to markup.
func Render(nodes []*Node) string {
	var buf bytes.Buffer
	for _, n := range nodes {
		writeNode(&buf, n)
	}
	return buf.String()
}

func writeNode(buf *bytes.Buffer, n *Node) {
	if !n.dirty {
		buf.WriteString(n.Raw)
		return
	}
	buf.WriteString(openTag(n))
}

// openTag serialises a dirty tag node. The authored tag name and attribute
// keys are taken from Raw so that their case is preserved.
func openTag(n *Node) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(rawTagName(n))
	for i, a := range n.Attrs {
		b.WriteByte(' ')
		if i < len(n.keys) && strings.EqualFold(n.keys[i], a.Key) {
			b.WriteString(n.keys[i])
		} else {
			b.WriteString(a.Key)
		}
		if a.Val == "" {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Val))
		b.WriteByte('"')
	}
	if n.Kind == SelfClosingTagNode {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	return b.String()
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;")

func rawTagName(n *Node) string {
	raw := strings.TrimPrefix(n.Raw, "<")
	raw = strings.TrimPrefix(raw, "/")
	end := strings.IndexAny(raw, " \t\n\r\f/>")
	if end <= 0 {
		return n.Name
	}
	return raw[:end]
}

const space = " \t\n\r\f"

// authoredKeys scans a start tag's source for its attribute keys in their
// original case.
func authoredKeys(raw string) []string {
	s := strings.TrimPrefix(raw, "<")
	i := strings.IndexAny(s, space+"/>")
	if i < 0 {
		return nil
	}
	s = s[i:]

	var keys []string
	for {
		s = strings.TrimLeft(s, space+"/")
		if s == "" || s[0] == '>' {
			return keys
		}
		end := strings.IndexAny(s[1:], space+"/>=") + 1
		if end == 0 {
			end = len(s)
		}
		keys = append(keys, s[:end])
		s = strings.TrimLeft(s[end:], space)
		if s == "" || s[0] != '=' {
			continue
		}
		s = strings.TrimLeft(s[1:], space)
		if s == "" {
			return keys
		}
		switch s[0] {
		case '"', '\'':
			j := strings.IndexByte(s[1:], s[0])
			if j < 0 {
				return keys
			}
			s = s[j+2:]
		case '>':
		default:
			j := strings.IndexAny(s, space+">")
			if j < 0 {
				return keys
			}
			s = s[j:]
		}
	}
}

// voidElements are the HTML elements that never have content. They are
// left self-closing.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag is an HTML void element.
func IsVoid(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}

// ExpandSelfClosing replaces every self-closing non-void tag with an
// explicit open/close pair. The returned slice may share nodes with the
// input.
func ExpandSelfClosing(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != SelfClosingTagNode || IsVoid(n.Name) {
			out = append(out, n)
			continue
		}

		open := &Node{Kind: StartTagNode, Name: n.Name, Attrs: n.Attrs, dirty: n.dirty}
		if n.dirty {
			open.Raw = n.Raw
		} else {
			open.Raw = strings.TrimSuffix(n.Raw, "/>") + ">"
		}
		name := rawTagName(n)
		out = append(out, open, &Node{Kind: EndTagNode, Name: n.Name, Raw: "</" + name + ">"})
	}
	return out
}

// Resolver reports whether a handler exists on the host element.
type Resolver interface {
	HasHandler(name string) bool
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) bool

// HasHandler calls f(name).
func (f ResolverFunc) HasHandler(name string) bool {
	return f(name)
}

// Process runs both rewrite passes over src and returns the resulting
// markup. Missing handlers are logged to logger (nil uses slog.Default).
func Process(src string, r Resolver, logger *slog.Logger) string {
	nodes := Parse(src)
	RewriteHandlers(nodes, r, logger)
	return Render(ExpandSelfClosing(nodes))
}
