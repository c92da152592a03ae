package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ImportPath is the import path of the runtime package.
const ImportPath = "github.com/pthm/shadow"

// DefaultOutput is the name of the generated registration file.
const DefaultOutput = "zz_shadow_registry.go"

// DefaultFunc is the name of the generated registration function.
const DefaultFunc = "LinkComponents"

// Options configures the generator.
type Options struct {
	DryRun bool
	// Output is the generated file name. Defaults to DefaultOutput.
	Output string
	// Func is the generated function name. Defaults to DefaultFunc.
	Func string
	// Log receives progress lines. Defaults to os.Stdout.
	Log io.Writer
}

// Generator writes static registration tables for component packages.
type Generator struct {
	opts Options
	fset *token.FileSet
}

// New creates a new generator.
func New(opts Options) *Generator {
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if opts.Func == "" {
		opts.Func = DefaultFunc
	}
	if opts.Log == nil {
		opts.Log = os.Stdout
	}
	return &Generator{
		opts: opts,
		fset: token.NewFileSet(),
	}
}

// Output returns the name of the file the generator writes.
func (g *Generator) Output() string {
	return g.opts.Output
}

// Generate generates code for the given package patterns.
func (g *Generator) Generate(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.generatePackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// Clean removes generated files for the given package patterns.
func (g *Generator) Clean(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.cleanPackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// Packages resolves package patterns to directory paths.
func (g *Generator) Packages(patterns ...string) ([]string, error) {
	return g.findPackages(patterns)
}

// findPackages resolves package patterns to directory paths.
func (g *Generator) findPackages(patterns []string) ([]string, error) {
	var packages []string

	for _, pattern := range patterns {
		// Handle ./... pattern
		if strings.HasSuffix(pattern, "/...") {
			root := strings.TrimSuffix(pattern, "/...")
			if root == "" {
				root = "."
			}

			err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					return nil
				}
				// Skip hidden, vendored and underscore directories
				base := filepath.Base(path)
				if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") ||
					base == "vendor" || base == "testdata") {
					return filepath.SkipDir
				}

				entries, err := os.ReadDir(path)
				if err != nil {
					return nil
				}
				for _, entry := range entries {
					if !entry.IsDir() && isSource(entry.Name()) {
						packages = append(packages, path)
						break
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			// Direct path
			packages = append(packages, pattern)
		}
	}

	return packages, nil
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

// generatePackage generates the registration file for a single package.
func (g *Generator) generatePackage(pkgPath string) error {
	pkgs, err := parser.ParseDir(g.fset, pkgPath, func(info os.FileInfo) bool {
		// Skip test files and our own output
		return isSource(info.Name()) && info.Name() != g.opts.Output
	}, parser.ParseComments)
	if err != nil {
		return err
	}

	for pkgName, pkg := range pkgs {
		if strings.HasSuffix(pkgName, "_test") {
			continue
		}
		components := g.FindComponents(pkg.Files)
		if len(components) == 0 {
			continue
		}
		if err := g.writeRegistry(pkgPath, pkgName, components); err != nil {
			return err
		}
	}

	return nil
}

// cleanPackage removes generated files from a package.
func (g *Generator) cleanPackage(pkgPath string) error {
	path := filepath.Join(pkgPath, g.opts.Output)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	fmt.Fprintf(g.opts.Log, "removing %s\n", path)
	if g.opts.DryRun {
		return nil
	}
	return os.Remove(path)
}

// ComponentInfo holds information about a discovered component.
type ComponentInfo struct {
	SourceFile  string
	TypeName    string   // e.g. "TodoItem"
	Constructor string   // e.g. "NewTodoItem"; empty when none was found
	Tag         string   // from //shadow:tag
	Attrs       []string // from //shadow:attrs
	CSSImports  []string // from //shadow:css
	Timeout     int      // from //shadow:timeout, in milliseconds
}

// FindComponents finds every struct type embedding *shadow.Element in
// files, keyed by file name. Results are sorted by type name.
func (g *Generator) FindComponents(files map[string]*ast.File) []*ComponentInfo {
	var components []*ComponentInfo
	ctors := make(map[string]string)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, filename := range names {
		file := files[filename]
		alias := importName(file)
		for name, ctor := range findConstructors(file) {
			ctors[name] = ctor
		}
		if alias == "" {
			continue
		}

		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}

			for _, spec := range genDecl.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok || typeSpec.TypeParams != nil {
					continue
				}

				structType, ok := typeSpec.Type.(*ast.StructType)
				if !ok || !embedsElement(structType, alias) {
					continue
				}

				comp := &ComponentInfo{
					SourceFile: filename,
					TypeName:   typeSpec.Name.Name,
				}
				doc := typeSpec.Doc
				if doc == nil && len(genDecl.Specs) == 1 {
					doc = genDecl.Doc
				}
				applyDirectives(comp, doc)
				components = append(components, comp)
			}
		}
	}

	for _, comp := range components {
		comp.Constructor = ctors[comp.TypeName]
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i].TypeName < components[j].TypeName
	})
	return components
}

// importName returns the name the runtime package is imported under in
// file, or "" when it is not imported.
func importName(file *ast.File) string {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != ImportPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return "shadow"
	}
	return ""
}

// embedsElement reports whether a struct embeds *<alias>.Element.
func embedsElement(structType *ast.StructType, alias string) bool {
	for _, field := range structType.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		star, ok := field.Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		sel, ok := star.X.(*ast.SelectorExpr)
		if !ok {
			continue
		}
		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == alias && sel.Sel.Name == "Element" {
			return true
		}
	}
	return false
}

// findConstructors maps type names to functions of the form
// func NewX() *X declared in file.
func findConstructors(file *ast.File) map[string]string {
	out := make(map[string]string)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "New") {
			continue
		}
		if fn.Type.TypeParams != nil || fn.Type.Params.NumFields() != 0 {
			continue
		}
		if fn.Type.Results == nil || len(fn.Type.Results.List) != 1 || len(fn.Type.Results.List[0].Names) > 1 {
			continue
		}
		star, ok := fn.Type.Results.List[0].Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		ident, ok := star.X.(*ast.Ident)
		if !ok || fn.Name.Name != "New"+ident.Name {
			continue
		}
		out[ident.Name] = fn.Name.Name
	}
	return out
}

// applyDirectives reads //shadow: comment directives:
//
//	//shadow:tag todo-item
//	//shadow:attrs index done
//	//shadow:css https://cdn.example.com/todo.css
//	//shadow:timeout 2000
func applyDirectives(comp *ComponentInfo, doc *ast.CommentGroup) {
	if doc == nil {
		return
	}
	for _, c := range doc.List {
		text, ok := strings.CutPrefix(c.Text, "//shadow:")
		if !ok {
			continue
		}
		key, rest, _ := strings.Cut(text, " ")
		fields := strings.Fields(rest)
		switch key {
		case "tag":
			if len(fields) > 0 {
				comp.Tag = fields[0]
			}
		case "attrs":
			comp.Attrs = append(comp.Attrs, fields...)
		case "css":
			comp.CSSImports = append(comp.CSSImports, fields...)
		case "timeout":
			if len(fields) > 0 {
				if n, err := strconv.Atoi(fields[0]); err == nil {
					comp.Timeout = n
				}
			}
		}
	}
}
