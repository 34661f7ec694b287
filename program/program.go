// Package program loads a TypeScript project into a typed, read-only view:
// the entry module, the relative modules it imports, a program-wide table of
// declared types and the compiler options from tsconfig.json.
package program

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shipq/tsrpc/project"
	"github.com/shipq/tsrpc/tsparse"
)

// Options locate the project to load. Zero values select the defaults.
type Options struct {
	// TSConfig is the tsconfig.json path. When empty it is discovered by
	// walking up from Dir.
	TSConfig string
	// Entry is the entry module. When empty the first "files" entry of
	// tsconfig.json is used, then <rootDir>/index.ts.
	Entry string
	// Dir resolves relative paths and starts discovery. Defaults to the
	// working directory.
	Dir string
	// Cache reuses parsed files across loads when set.
	Cache *FileCache
}

// Program is an immutable view of a loaded project.
type Program struct {
	ConfigPath string
	Compiler   CompilerOptions
	Entry      string

	root  string
	units map[string]*unit
	order []*unit
	entry *unit
	types map[string]typeDecl
}

type unit struct {
	path      string
	file      *tsparse.File
	decls     map[string]tsparse.Decl
	imports   map[string]binding
	reexports []reexport
}

// binding is a local name introduced by an import.
type binding struct {
	specifier string
	target    *unit // nil for non-relative modules
	name      string
	namespace bool
	isDefault bool
}

type reexport struct {
	specifier string
	target    *unit
	names     []tsparse.ImportName // nil for `export *`
}

type typeDecl struct {
	decl tsparse.Decl
	unit *unit
}

// Scope is the environment a type expression is resolved in: the module it
// was written in plus the type parameters visible at that point.
type Scope struct {
	unit   *unit
	params []string
}

func (s *Scope) with(params []string) *Scope {
	if len(params) == 0 {
		return s
	}
	return &Scope{unit: s.unit, params: append(append([]string(nil), s.params...), params...)}
}

func (s *Scope) isParam(name string) bool {
	for _, p := range s.params {
		if p == name {
			return true
		}
	}
	return false
}

// FunctionDecl is a top-level function declaration of the entry module.
type FunctionDecl struct {
	Name     string
	Pos      tsparse.Pos
	Doc      string
	Async    bool
	Exported bool
	HasBody  bool
	Params   []*tsparse.Param
	Result   tsparse.TypeExpr
	// Scope resolves Params and Result.
	Scope *Scope
}

// Paths are the tsconfig.json and entry module a load would use.
type Paths struct {
	ConfigPath string
	Entry      string
	Compiler   CompilerOptions
}

// Locate finds tsconfig.json, reads it and picks the entry module without
// parsing any source. The entry is not required to exist.
func Locate(opts Options) (Paths, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Paths{}, configErrorf("", err, "cannot determine working directory")
		}
		dir = wd
	}

	configPath := opts.TSConfig
	if configPath == "" {
		found, err := project.FindFileFrom(dir, project.TSConfigFile)
		if err != nil {
			return Paths{}, configErrorf(dir, err, "no %s found", project.TSConfigFile)
		}
		configPath = found
	} else {
		configPath = absFrom(dir, configPath)
	}

	compiler, err := LoadTSConfig(configPath)
	if err != nil {
		return Paths{}, err
	}

	entry := ""
	switch {
	case opts.Entry != "":
		entry = absFrom(dir, opts.Entry)
	case len(compiler.Files) > 0:
		entry = compiler.Files[0]
	default:
		entry = filepath.Join(compiler.RootDir, "index.ts")
	}
	return Paths{ConfigPath: configPath, Entry: entry, Compiler: compiler}, nil
}

// Load reads tsconfig.json, parses the entry module and every relative module
// it reaches, and checks that all type references resolve.
func Load(opts Options) (*Program, error) {
	paths, err := Locate(opts)
	if err != nil {
		return nil, err
	}
	configPath, entry, compiler := paths.ConfigPath, paths.Entry, paths.Compiler
	if info, err := os.Stat(entry); err != nil {
		return nil, configErrorf(entry, err, "cannot read entry module")
	} else if info.IsDir() {
		return nil, configErrorf(entry, nil, "entry module is a directory")
	}

	p := &Program{
		ConfigPath: configPath,
		Compiler:   compiler,
		Entry:      entry,
		root:       filepath.Dir(configPath),
		units:      map[string]*unit{},
		types:      map[string]typeDecl{},
	}

	var diags diagSink
	p.entry = p.loadUnits(entry, opts.Cache, &diags)
	if len(diags) > 0 {
		return nil, &ProgramError{Diagnostics: diags}
	}
	p.declareTypes(&diags)
	p.bindImports()
	p.check(&diags)
	if len(diags) == 0 {
		p.checkAliasCycles(&diags)
	}
	if len(diags) > 0 {
		return nil, &ProgramError{Diagnostics: diags}
	}
	return p, nil
}

// Files returns the absolute paths of the loaded modules in load order.
func (p *Program) Files() []string {
	paths := make([]string, len(p.order))
	for i, u := range p.order {
		paths[i] = u.path
	}
	return paths
}

// Functions returns the entry module's top-level function declarations in
// source order, overload signatures included.
func (p *Program) Functions() []FunctionDecl {
	var fns []FunctionDecl
	scope := &Scope{unit: p.entry}
	for _, d := range p.entry.file.Decls {
		fd, ok := d.(*tsparse.FuncDecl)
		if !ok {
			continue
		}
		fns = append(fns, FunctionDecl{
			Name:     fd.Name,
			Pos:      fd.Pos,
			Doc:      fd.Doc,
			Async:    fd.Async,
			Exported: fd.Exported,
			HasBody:  fd.HasBody,
			Params:   fd.Params,
			Result:   fd.Result,
			Scope:    scope.with(fd.TypeParams),
		})
	}
	return fns
}

func (p *Program) display(path string) string {
	if rel, err := filepath.Rel(p.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// loadUnits parses the entry module and, breadth first, every module it
// imports or re-exports through a relative specifier.
func (p *Program) loadUnits(entry string, cache *FileCache, diags *diagSink) *unit {
	queue := []string{entry}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if _, ok := p.units[path]; ok {
			continue
		}
		f, err := cache.parse(path, p.display(path))
		if err != nil {
			var list tsparse.ErrorList
			if errors.As(err, &list) {
				for _, e := range list {
					diags.add(e.Pos, "%s", e.Msg)
				}
			} else {
				diags.add(tsparse.Pos{Filename: p.display(path)}, "cannot read file: %v", err)
			}
			if f == nil {
				continue
			}
		}
		u := &unit{
			path:    path,
			file:    f,
			decls:   map[string]tsparse.Decl{},
			imports: map[string]binding{},
		}
		p.units[path] = u
		p.order = append(p.order, u)

		for _, imp := range f.Imports {
			if !isRelative(imp.Specifier) {
				continue
			}
			target, ok := resolveModule(filepath.Dir(path), imp.Specifier)
			if !ok {
				diags.add(imp.Pos, "cannot find module %q", imp.Specifier)
				continue
			}
			queue = append(queue, target)
		}
	}
	return p.units[entry]
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// resolveModule maps a relative specifier to a source file.
func resolveModule(fromDir, spec string) (string, bool) {
	base := filepath.Join(fromDir, filepath.FromSlash(spec))
	var candidates []string
	switch filepath.Ext(base) {
	case ".ts", ".tsx":
		candidates = append(candidates, base)
	case ".js", ".jsx":
		trimmed := strings.TrimSuffix(base, filepath.Ext(base))
		candidates = append(candidates, trimmed+".ts", trimmed+".tsx", trimmed+".d.ts")
	case ".mjs":
		candidates = append(candidates, strings.TrimSuffix(base, ".mjs")+".mts")
	}
	candidates = append(candidates,
		base+".ts",
		base+".tsx",
		base+".d.ts",
		filepath.Join(base, "index.ts"),
		filepath.Join(base, "index.tsx"),
		filepath.Join(base, "index.d.ts"),
	)
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// declareTypes fills the program-wide type table. Type names are global to
// the program; declaring one name twice is an error.
func (p *Program) declareTypes(diags *diagSink) {
	for _, u := range p.order {
		for _, d := range u.file.Decls {
			switch d.(type) {
			case *tsparse.InterfaceDecl, *tsparse.AliasDecl, *tsparse.ClassDecl, *tsparse.EnumDecl:
			default:
				continue
			}
			name := d.DeclName()
			if prev, ok := p.types[name]; ok {
				diags.add(d.DeclPos(), "duplicate type name %q (first declared at %s)", name, prev.decl.DeclPos())
				continue
			}
			p.types[name] = typeDecl{decl: d, unit: u}
			u.decls[name] = d
		}
	}
}

func (p *Program) bindImports() {
	for _, u := range p.order {
		for _, imp := range u.file.Imports {
			var target *unit
			if isRelative(imp.Specifier) {
				if path, ok := resolveModule(filepath.Dir(u.path), imp.Specifier); ok {
					target = p.units[path]
				}
			}
			if imp.Reexport {
				u.reexports = append(u.reexports, reexport{specifier: imp.Specifier, target: target, names: imp.Names})
				if imp.Namespace != "" {
					u.reexports[len(u.reexports)-1].names = []tsparse.ImportName{{Name: "*", Local: imp.Namespace}}
				}
				continue
			}
			if imp.Default != "" {
				u.imports[imp.Default] = binding{specifier: imp.Specifier, target: target, name: "default", isDefault: true}
			}
			if imp.Namespace != "" {
				u.imports[imp.Namespace] = binding{specifier: imp.Specifier, target: target, namespace: true}
			}
			for _, n := range imp.Names {
				u.imports[n.Local] = binding{specifier: imp.Specifier, target: target, name: n.Name}
			}
		}
	}
}

// exportedType finds the declaration a module provides under name, following
// imports and re-exports. external is set when the chain leaves the program.
func (p *Program) exportedType(u *unit, name string, seen map[*unit]bool) (decl string, external string, ok bool) {
	if seen[u] {
		return "", "", false
	}
	seen[u] = true

	if _, found := u.decls[name]; found {
		return name, "", true
	}
	if b, found := u.imports[name]; found && !b.namespace && !b.isDefault {
		if b.target == nil {
			return "", b.specifier, true
		}
		return p.exportedType(b.target, b.name, seen)
	}
	for _, re := range u.reexports {
		if re.names == nil {
			if re.target == nil {
				continue
			}
			if d, ext, found := p.exportedType(re.target, name, seen); found {
				return d, ext, true
			}
			continue
		}
		for _, n := range re.names {
			if n.Local != name || n.Name == "*" {
				continue
			}
			if re.target == nil {
				return "", re.specifier, true
			}
			return p.exportedType(re.target, n.Name, seen)
		}
	}
	return "", "", false
}

// check converts every type expression in the program once, reporting
// references that resolve to nothing.
func (p *Program) check(diags *diagSink) {
	for _, u := range p.order {
		scope := &Scope{unit: u}
		for _, d := range u.file.Decls {
			switch d := d.(type) {
			case *tsparse.FuncDecl:
				s := scope.with(d.TypeParams)
				for _, param := range d.Params {
					if param.Type != nil {
						p.convert(param.Type, s, diags)
					}
				}
				if d.Result != nil {
					p.convert(d.Result, s, diags)
				}
			case *tsparse.InterfaceDecl:
				s := scope.with(d.TypeParams)
				for _, ext := range d.Extends {
					p.convert(ext, s, diags)
				}
				p.members(d.Members, s, diags)
			case *tsparse.AliasDecl:
				p.convert(d.Type, scope.with(d.TypeParams), diags)
			case *tsparse.ClassDecl:
				s := scope.with(d.TypeParams)
				if d.Extends != nil {
					p.convert(d.Extends, s, diags)
				}
				p.members(d.Members, s, diags)
			}
		}
	}
}

// diagSink collects diagnostics. A nil sink discards them.
type diagSink []Diagnostic

func (s *diagSink) add(pos tsparse.Pos, format string, args ...any) {
	if s == nil {
		return
	}
	*s = append(*s, Diagnostic{
		File:    pos.Filename,
		Line:    pos.Line,
		Column:  pos.Column,
		Message: fmt.Sprintf(format, args...),
	})
}
