package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
)

// writeRegistry generates the registration file for a package.
func (g *Generator) writeRegistry(pkgPath, pkgName string, components []*ComponentInfo) error {
	outputFile := filepath.Join(pkgPath, g.opts.Output)

	fmt.Fprintf(g.opts.Log, "generating %s (%d components)\n", outputFile, len(components))

	if g.opts.DryRun {
		return nil
	}

	code, err := g.Render(pkgName, components)
	if err != nil {
		return err
	}
	return os.WriteFile(outputFile, code, 0644)
}

// Render returns the formatted registration file for components.
func (g *Generator) Render(pkgName string, components []*ComponentInfo) ([]byte, error) {
	tmpl, err := template.New("registry").Funcs(template.FuncMap{
		"options": linkOptions,
		"ctor":    constructorExpr,
	}).Parse(registryTemplate)
	if err != nil {
		return nil, err
	}

	data := struct {
		Package    string
		Import     string
		Func       string
		Components []*ComponentInfo
	}{
		Package:    pkgName,
		Import:     ImportPath,
		Func:       g.opts.Func,
		Components: components,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format source: %w", err)
	}
	return formatted, nil
}

// constructorExpr returns the constructor passed to shadow.Link. Types
// without a NewX function get an inline one.
func constructorExpr(comp *ComponentInfo) string {
	if comp.Constructor != "" {
		return comp.Constructor
	}
	return fmt.Sprintf("func() *%[1]s { c := &%[1]s{}; c.Element = shadow.New(c); return c }", comp.TypeName)
}

// linkOptions returns the class options for a component, each prefixed
// with ", ".
func linkOptions(comp *ComponentInfo) string {
	var b strings.Builder
	if comp.Tag != "" {
		fmt.Fprintf(&b, ", shadow.WithTag(%s)", strconv.Quote(comp.Tag))
	}
	if len(comp.Attrs) > 0 {
		fmt.Fprintf(&b, ", shadow.WithAttrs(%s)", quoteAll(comp.Attrs))
	}
	if len(comp.CSSImports) > 0 {
		fmt.Fprintf(&b, ", shadow.WithCSSImports(%s)", quoteAll(comp.CSSImports))
	}
	if comp.Timeout > 0 {
		fmt.Fprintf(&b, ", shadow.WithCSSImportTimeout(%d)", comp.Timeout)
	}
	return b.String()
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = strconv.Quote(s)
	}
	return strings.Join(quoted, ", ")
}

const registryTemplate = `// Code generated by shadow generate. DO NOT EDIT.

package {{.Package}}

import "{{.Import}}"

// {{.Func}} registers every component declared in this package with reg.
func {{.Func}}(reg *shadow.Registry) error {
{{- range .Components}}
	if _, err := shadow.Link(reg, {{ctor .}}{{options .}}); err != nil {
		return err
	}
{{- end}}
	return nil
}
`
