package markup

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMarkupProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: untouched markup renders back byte-for-byte
	properties.Property("parse/render is lossless", prop.ForAll(
		func(text, val string) bool {
			src := fmt.Sprintf(`<p title="%s">%s</p>`, val, text)
			return Render(Parse(src)) == src
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	// Property: every self-closing custom tag expands to an explicit pair
	properties.Property("self-closing expansion", prop.ForAll(
		func(name, val string) bool {
			tag := "x-" + name
			src := fmt.Sprintf(`<%s a="%s"/>`, tag, val)
			want := fmt.Sprintf(`<%s a="%s"></%s>`, tag, val, tag)
			return Render(ExpandSelfClosing(Parse(src))) == want
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.AlphaString(),
	))

	// Property: rewriting is idempotent
	properties.Property("handler rewrite is idempotent", prop.ForAll(
		func(name string) bool {
			r := ResolverFunc(func(string) bool { return true })
			once := Process(fmt.Sprintf(`<b onclick="%s">x</b>`, name), r, nil)
			twice := Process(once, r, nil)
			return once == twice
		},
		gen.RegexMatch(`^[a-z][a-zA-Z0-9]{0,10}$`),
	))

	properties.TestingRun(t)
}
