package markup

import (
	"log/slog"
	"regexp"
	"strings"
)

// HostPrefix begins every rewritten handler call.
const HostPrefix = "this.getRootNode().host."

// HandlerRef is a parsed inline event-handler reference.
type HandlerRef struct {
	Name      string
	Args      []string // argument values with string quotes removed
	Literals  []string // argument source text as authored
	Rewritten bool     // already in host-dispatch form
}

var handlerPattern = regexp.MustCompile(`^\s*(this\.getRootNode\(\)\.host\.)?([A-Za-z_$][A-Za-z0-9_$]*)\s*(?:\((.*)\))?\s*;?\s*$`)

// ParseHandler decodes an on<event> attribute value. Both the authored form
// (name, name(), name('a', 2);) and the rewritten host-dispatch form are
// recognised. Values that are not a single handler reference return false.
func ParseHandler(value string) (HandlerRef, bool) {
	m := handlerPattern.FindStringSubmatch(value)
	if m == nil {
		return HandlerRef{}, false
	}

	ref := HandlerRef{
		Name:      m[2],
		Rewritten: m[1] != "",
	}

	lits, ok := splitArgs(m[3])
	if !ok {
		return HandlerRef{}, false
	}
	if ref.Rewritten && len(lits) > 0 && lits[0] == "event" {
		lits = lits[1:]
	}
	for _, lit := range lits {
		ref.Literals = append(ref.Literals, lit)
		ref.Args = append(ref.Args, unquote(lit))
	}
	return ref, true
}

// Rewrite returns the host-dispatch form of the reference.
func (h HandlerRef) Rewrite() string {
	var b strings.Builder
	b.WriteString(HostPrefix)
	b.WriteString(h.Name)
	b.WriteString("(event")
	for _, lit := range h.Literals {
		b.WriteString(", ")
		b.WriteString(lit)
	}
	b.WriteByte(')')
	return b.String()
}

// IsHandlerAttr reports whether key names an inline event handler.
func IsHandlerAttr(key string) bool {
	if len(key) <= 2 || !strings.HasPrefix(key, "on") {
		return false
	}
	for _, c := range key[2:] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// EventType returns the event name for a handler attribute ("onclick" → "click").
func EventType(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, "on"))
}

// RewriteHandlers rewrites every inline handler whose name resolves on r.
// Unresolved names are logged once per occurrence and left untouched.
func RewriteHandlers(nodes []*Node, r Resolver, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, n := range nodes {
		if n.Kind != StartTagNode && n.Kind != SelfClosingTagNode {
			continue
		}
		for i, a := range n.Attrs {
			if !IsHandlerAttr(a.Key) {
				continue
			}
			ref, ok := ParseHandler(a.Val)
			if !ok || ref.Rewritten {
				continue
			}
			if r == nil || !r.HasHandler(ref.Name) {
				logger.Error("handler function not found in element",
					"handler", ref.Name, "attr", a.Key, "tag", n.Name)
				continue
			}
			n.SetAttr(i, ref.Rewrite())
		}
	}
}

// splitArgs splits an argument list on top-level commas, honouring quotes
// and nested parentheses.
func splitArgs(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}

	var (
		args  []string
		quote rune
		depth int
		start int
	)
	for i, c := range s {
		switch {
		case quote != 0:
			if c == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, false
			}
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 || depth != 0 {
		return nil, false
	}
	return append(args, strings.TrimSpace(s[start:])), true
}

func unquote(lit string) string {
	if len(lit) >= 2 {
		q := lit[0]
		if (q == '\'' || q == '"' || q == '`') && lit[len(lit)-1] == q {
			inner := lit[1 : len(lit)-1]
			return strings.ReplaceAll(inner, `\`+string(q), string(q))
		}
	}
	return lit
}
