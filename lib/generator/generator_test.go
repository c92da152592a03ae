package generator

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const todoSource = `
package todo

import "github.com/pthm/shadow"

// TodoItem renders a single entry.
//
//shadow:attrs index done
//shadow:css https://cdn.example.com/todo.css
//shadow:timeout 2000
type TodoItem struct {
	*shadow.Element
}

func NewTodoItem() *TodoItem {
	c := &TodoItem{}
	c.Element = shadow.New(c)
	return c
}

//shadow:tag todo-app
type App struct {
	*shadow.Element
	title string
}

type plain struct {
	name string
}
`

const aliasedSource = `
package widgets

import sh "github.com/pthm/shadow"

type StatusBadge struct {
	*sh.Element
}

type notComponent struct {
	*Element
}

type Element struct{}
`

func parseFiles(t *testing.T, sources map[string]string) map[string]*ast.File {
	t.Helper()
	fset := token.NewFileSet()
	files := make(map[string]*ast.File)
	for name, src := range sources {
		f, err := parser.ParseFile(fset, name, src, parser.ParseComments)
		require.NoError(t, err)
		files[name] = f
	}
	return files
}

func TestFindComponents(t *testing.T) {
	g := New(Options{Log: io.Discard})
	comps := g.FindComponents(parseFiles(t, map[string]string{"todo.go": todoSource}))

	require.Len(t, comps, 2)

	app := comps[0]
	assert.Equal(t, "App", app.TypeName)
	assert.Equal(t, "todo-app", app.Tag)
	assert.Empty(t, app.Constructor)

	item := comps[1]
	assert.Equal(t, "TodoItem", item.TypeName)
	assert.Equal(t, "NewTodoItem", item.Constructor)
	assert.Equal(t, []string{"index", "done"}, item.Attrs)
	assert.Equal(t, []string{"https://cdn.example.com/todo.css"}, item.CSSImports)
	assert.Equal(t, 2000, item.Timeout)
}

func TestFindComponentsAliasedImport(t *testing.T) {
	g := New(Options{Log: io.Discard})
	comps := g.FindComponents(parseFiles(t, map[string]string{"w.go": aliasedSource}))

	require.Len(t, comps, 1)
	assert.Equal(t, "StatusBadge", comps[0].TypeName)
}

func TestFindComponentsConstructorInOtherFile(t *testing.T) {
	g := New(Options{Log: io.Discard})
	comps := g.FindComponents(parseFiles(t, map[string]string{
		"a.go": "package p\nimport \"github.com/pthm/shadow\"\ntype NavBar struct{ *shadow.Element }\n",
		"b.go": "package p\nfunc NewNavBar() *NavBar { return nil }\n",
	}))

	require.Len(t, comps, 1)
	assert.Equal(t, "NewNavBar", comps[0].Constructor)
}

func TestRender(t *testing.T) {
	g := New(Options{Log: io.Discard})
	comps := g.FindComponents(parseFiles(t, map[string]string{"todo.go": todoSource}))

	code, err := g.Render("todo", comps)
	require.NoError(t, err)

	out := string(code)
	assert.True(t, strings.HasPrefix(out, "// Code generated by shadow generate. DO NOT EDIT."))
	assert.Contains(t, out, "package todo")
	assert.Contains(t, out, "func LinkComponents(reg *shadow.Registry) error {")
	assert.Contains(t, out, `shadow.Link(reg, NewTodoItem, shadow.WithAttrs("index", "done"), shadow.WithCSSImports("https://cdn.example.com/todo.css"), shadow.WithCSSImportTimeout(2000))`)
	assert.Contains(t, out, `shadow.WithTag("todo-app")`)
	assert.Contains(t, out, "c.Element = shadow.New(c)")

	_, err = parser.ParseFile(token.NewFileSet(), "out.go", code, 0)
	assert.NoError(t, err)
}

func TestGenerateAndClean(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "todo")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "todo.go"), []byte(todoSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.go"), []byte("package root\n"), 0o644))

	g := New(Options{Log: io.Discard})
	require.NoError(t, g.Generate(dir+"/..."))

	out := filepath.Join(pkg, DefaultOutput)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "LinkComponents")
	assert.NoFileExists(t, filepath.Join(dir, DefaultOutput))

	// The generated file is ignored on regeneration.
	require.NoError(t, g.Generate(pkg))

	require.NoError(t, g.Clean(dir+"/..."))
	assert.NoFileExists(t, out)
}

func TestDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todo.go"), []byte(todoSource), 0o644))

	var log strings.Builder
	g := New(Options{DryRun: true, Log: &log})
	require.NoError(t, g.Generate(dir))

	assert.NoFileExists(t, filepath.Join(dir, DefaultOutput))
	assert.Contains(t, log.String(), "generating")
}
