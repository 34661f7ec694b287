package program

import (
	"fmt"
	"strings"

	"github.com/shipq/tsrpc/tsparse"
	"github.com/shipq/tsrpc/tstype"
)

var keywordTypes = map[string]tstype.Type{
	"string":    tstype.Primitive{Name: tstype.String},
	"number":    tstype.Primitive{Name: tstype.Number},
	"boolean":   tstype.Primitive{Name: tstype.Boolean},
	"null":      tstype.Null{},
	"undefined": tstype.Null{Undefined: true},
	"void":      tstype.Null{Undefined: true},
}

var unsupportedKeywords = map[string]bool{
	"any": true, "unknown": true, "never": true, "object": true,
	"bigint": true, "symbol": true, "this": true,
}

// globalTypes are names the TypeScript standard library declares. They
// resolve, but to no JSON shape.
var globalTypes = map[string]bool{
	"Date": true, "RegExp": true, "Error": true, "Function": true, "Object": true,
	"String": true, "Number": true, "Boolean": true, "Symbol": true, "BigInt": true,
	"Map": true, "Set": true, "WeakMap": true, "WeakSet": true, "ReadonlyMap": true, "ReadonlySet": true,
	"Promise": true, "PromiseLike": true, "Awaited": true,
	"Record": true, "Partial": true, "Required": true, "Readonly": true, "Pick": true, "Omit": true,
	"Exclude": true, "Extract": true, "NonNullable": true, "ReturnType": true, "Parameters": true,
	"ConstructorParameters": true, "InstanceType": true, "ThisType": true,
	"Uppercase": true, "Lowercase": true, "Capitalize": true, "Uncapitalize": true,
	"Iterable": true, "Iterator": true, "IterableIterator": true, "AsyncIterable": true,
	"AsyncIterator": true, "Generator": true, "AsyncGenerator": true,
	"ArrayBuffer": true, "SharedArrayBuffer": true, "DataView": true, "Uint8Array": true,
	"Int8Array": true, "Uint16Array": true, "Int16Array": true, "Uint32Array": true,
	"Int32Array": true, "Float32Array": true, "Float64Array": true, "Buffer": true,
	"URL": true, "URLSearchParams": true, "Blob": true, "File": true, "FormData": true,
	"Headers": true, "Request": true, "Response": true, "ReadableStream": true, "WritableStream": true,
	"JSON": true, "Math": true, "PropertyKey": true, "TemplateStringsArray": true,
}

var globalNamespaces = map[string]bool{"NodeJS": true, "globalThis": true, "Intl": true}

func unsupported(expr tsparse.TypeExpr, format string, args ...any) tstype.Type {
	text := "any"
	if expr != nil {
		text = expr.String()
	}
	return tstype.Unsupported{Text: text, Reason: fmt.Sprintf(format, args...)}
}

// TypeOf converts a type expression written in scope.
func (p *Program) TypeOf(expr tsparse.TypeExpr, scope *Scope) tstype.Type {
	return p.convert(expr, scope, nil)
}

func (p *Program) convert(expr tsparse.TypeExpr, s *Scope, diags *diagSink) tstype.Type {
	switch t := expr.(type) {
	case nil:
		return unsupported(nil, "missing type annotation")
	case *tsparse.TypeRef:
		return p.convertRef(t, s, diags)
	case *tsparse.ArrayType:
		return tstype.Array{Elem: p.convert(t.Elem, s, diags)}
	case *tsparse.UnionType:
		return p.convertUnion(t, s, diags)
	case *tsparse.ObjectType:
		return p.object(t, t.Members, s, diags)
	case *tsparse.IntersectionType:
		for _, m := range t.Members {
			p.convert(m, s, diags)
		}
		return unsupported(t, "intersection type")
	case *tsparse.TupleType:
		for _, e := range t.Elems {
			p.convert(e, s, diags)
		}
		return unsupported(t, "tuple type")
	case *tsparse.LiteralType:
		return unsupported(t, "literal type")
	case *tsparse.FuncType:
		return unsupported(t, "function type")
	}
	return unsupported(expr, "unsupported type form")
}

func (p *Program) convertRef(t *tsparse.TypeRef, s *Scope, diags *diagSink) tstype.Type {
	checkArgs := func() {
		for _, a := range t.Args {
			p.convert(a, s, diags)
		}
	}

	if head, rest, qualified := strings.Cut(t.Name, "."); qualified {
		checkArgs()
		b, ok := s.unit.imports[head]
		switch {
		case ok && b.namespace && b.target != nil:
			if name, ext, found := p.exportedType(b.target, rest, map[*unit]bool{}); found {
				if ext != "" {
					return unsupported(t, "type from external module %q", ext)
				}
				return p.named(t, name, diags)
			}
			diags.add(t.Pos, "module %q has no exported type %q", b.specifier, rest)
		case ok:
			return unsupported(t, "type from external module %q", b.specifier)
		case globalNamespaces[head]:
			return unsupported(t, "built-in type")
		default:
			diags.add(t.Pos, "cannot find namespace %q", head)
		}
		return unsupported(t, "unresolved name")
	}

	if kw, ok := keywordTypes[t.Name]; ok && len(t.Args) == 0 {
		return kw
	}
	if unsupportedKeywords[t.Name] {
		return unsupported(t, "%s type", t.Name)
	}
	if s.isParam(t.Name) {
		return unsupported(t, "type parameter")
	}
	if _, ok := s.unit.decls[t.Name]; ok {
		return p.named(t, t.Name, diags)
	}
	if b, ok := s.unit.imports[t.Name]; ok {
		checkArgs()
		switch {
		case b.target == nil:
			return unsupported(t, "type from external module %q", b.specifier)
		case b.isDefault || b.namespace:
			return unsupported(t, "default or namespace import")
		}
		name, ext, found := p.exportedType(b.target, b.name, map[*unit]bool{})
		switch {
		case !found:
			diags.add(t.Pos, "module %q has no exported type %q", b.specifier, b.name)
			return unsupported(t, "unresolved name")
		case ext != "":
			return unsupported(t, "type from external module %q", ext)
		}
		return p.named(t, name, diags)
	}
	if (t.Name == "Array" || t.Name == "ReadonlyArray") && len(t.Args) == 1 {
		return tstype.Array{Elem: p.convert(t.Args[0], s, diags)}
	}
	if globalTypes[t.Name] || t.Name == "Array" || t.Name == "ReadonlyArray" {
		checkArgs()
		return unsupported(t, "built-in type")
	}
	diags.add(t.Pos, "cannot find name %q", t.Name)
	return unsupported(t, "unresolved name")
}

// named checks type arguments against the declaration and returns the
// reference.
func (p *Program) named(ref *tsparse.TypeRef, name string, diags *diagSink) tstype.Type {
	td := p.types[name]
	params := declTypeParams(td.decl)
	switch {
	case len(params) > 0:
		// generic instantiation is not supported
		return unsupported(ref, "generic type %s", name)
	case len(ref.Args) > 0:
		diags.add(ref.Pos, "type %q is not generic", name)
		return unsupported(ref, "unresolved name")
	}
	return tstype.Named{Name: name}
}

func declTypeParams(d tsparse.Decl) []string {
	switch d := d.(type) {
	case *tsparse.InterfaceDecl:
		return d.TypeParams
	case *tsparse.AliasDecl:
		return d.TypeParams
	case *tsparse.ClassDecl:
		return d.TypeParams
	}
	return nil
}

func (p *Program) convertUnion(t *tsparse.UnionType, s *Scope, diags *diagSink) tstype.Type {
	var members []tstype.Type
	var add func(tstype.Type)
	add = func(m tstype.Type) {
		if u, ok := m.(tstype.Union); ok {
			for _, inner := range u.Members {
				add(inner)
			}
			return
		}
		members = append(members, m)
	}
	for _, m := range t.Members {
		add(p.convert(m, s, diags))
	}

	if !p.Compiler.StrictNullChecks {
		kept := members[:0:0]
		for _, m := range members {
			if !tstype.IsNull(m) {
				kept = append(kept, m)
			}
		}
		if len(kept) > 0 {
			members = kept
		}
	}
	if len(members) == 1 {
		return members[0]
	}
	return tstype.Union{Members: members}
}

// members converts a member list for checking only.
func (p *Program) members(ms []*tsparse.Member, s *Scope, diags *diagSink) {
	for _, m := range ms {
		if m.Type != nil {
			p.convert(m.Type, s, diags)
		}
	}
}

// object converts the members of an object type. Method members become
// unsupported fields; index and call signatures make the whole object
// unsupported.
func (p *Program) object(expr tsparse.TypeExpr, ms []*tsparse.Member, s *Scope, diags *diagSink) tstype.Type {
	obj := &tstype.Object{}
	var bad tstype.Type
	for _, m := range ms {
		var ft tstype.Type
		switch m.Kind {
		case tsparse.MemberIndex:
			p.convert(m.Type, s, diags)
			if bad == nil {
				bad = unsupported(expr, "index signature [%s]", m.Name)
			}
			continue
		case tsparse.MemberCall:
			if bad == nil {
				bad = unsupported(expr, "call signature")
			}
			continue
		case tsparse.MemberMethod:
			ft = tstype.Unsupported{Text: m.Name + typeText(m.Type), Reason: "method signature"}
		default:
			ft = p.convert(m.Type, s, diags)
		}
		setField(obj, tstype.Field{Name: m.Name, Type: ft, Optional: m.Optional})
	}
	if bad != nil {
		return bad
	}
	return obj
}

func typeText(t tsparse.TypeExpr) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// setField replaces a field of the same name in place or appends f.
func setField(obj *tstype.Object, f tstype.Field) {
	for i := range obj.Fields {
		if obj.Fields[i].Name == f.Name {
			obj.Fields[i] = f
			return
		}
	}
	obj.Fields = append(obj.Fields, f)
}

// ResolveNamed returns the declared body of a named type. Interfaces and
// classes resolve to objects with inherited members first; aliases resolve
// to their converted right-hand side, which may itself be a Named.
func (p *Program) ResolveNamed(name string) (tstype.Type, error) {
	return p.resolveNamed(name, map[string]bool{})
}

func (p *Program) resolveNamed(name string, seen map[string]bool) (tstype.Type, error) {
	td, ok := p.types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	scope := &Scope{unit: td.unit}

	switch d := td.decl.(type) {
	case *tsparse.AliasDecl:
		return p.convert(d.Type, scope.with(d.TypeParams), nil), nil
	case *tsparse.EnumDecl:
		return tstype.Unsupported{Text: name, Reason: "enum type"}, nil
	case *tsparse.InterfaceDecl:
		s := scope.with(d.TypeParams)
		obj := &tstype.Object{}
		for _, ext := range d.Extends {
			if err := p.inherit(obj, name, ext, s, seen); err != nil {
				return nil, err
			}
		}
		return p.overlay(obj, d, d.Members, s), nil
	case *tsparse.ClassDecl:
		s := scope.with(d.TypeParams)
		obj := &tstype.Object{}
		if d.Extends != nil {
			if err := p.inherit(obj, name, d.Extends, s, seen); err != nil {
				return nil, err
			}
		}
		return p.overlay(obj, d, d.Members, s), nil
	}
	return nil, fmt.Errorf("type %q has no body", name)
}

// overlay adds own members over inherited ones.
func (p *Program) overlay(obj *tstype.Object, d tsparse.Decl, ms []*tsparse.Member, s *Scope) tstype.Type {
	own := p.object(&tsparse.TypeRef{Pos: d.DeclPos(), Name: d.DeclName()}, ms, s, nil)
	ownObj, ok := own.(*tstype.Object)
	if !ok {
		return own
	}
	for _, f := range ownObj.Fields {
		setField(obj, f)
	}
	return obj
}

// inherit copies the fields of base into obj.
func (p *Program) inherit(obj *tstype.Object, name string, base tsparse.TypeExpr, s *Scope, seen map[string]bool) error {
	if seen[name] {
		return fmt.Errorf("type %q recursively references itself as a base type", name)
	}
	seen[name] = true
	defer delete(seen, name)

	bt := p.convert(base, s, nil)
	chain := map[string]bool{}
	for {
		n, ok := bt.(tstype.Named)
		if !ok {
			break
		}
		if seen[n.Name] || chain[n.Name] {
			return fmt.Errorf("type %q recursively references itself as a base type", n.Name)
		}
		chain[n.Name] = true
		body, err := p.resolveNamed(n.Name, seen)
		if err != nil {
			return err
		}
		bt = body
	}
	baseObj, ok := bt.(*tstype.Object)
	if !ok {
		return fmt.Errorf("type %q extends %s, which is not an object type", name, base)
	}
	for _, f := range baseObj.Fields {
		setField(obj, f)
	}
	return nil
}

// UnwrapPromise reports whether expr is Promise<T> as declared by the
// standard library and returns T.
func (p *Program) UnwrapPromise(expr tsparse.TypeExpr, scope *Scope) (tsparse.TypeExpr, bool) {
	ref, ok := expr.(*tsparse.TypeRef)
	if !ok || ref.Name != "Promise" || len(ref.Args) != 1 {
		return nil, false
	}
	if _, shadowed := scope.unit.decls["Promise"]; shadowed {
		return nil, false
	}
	if _, shadowed := scope.unit.imports["Promise"]; shadowed {
		return nil, false
	}
	return ref.Args[0], true
}

// checkAliasCycles reports aliases that resolve to themselves without
// passing through an object, array or union.
func (p *Program) checkAliasCycles(diags *diagSink) {
	for _, u := range p.order {
		for _, d := range u.file.Decls {
			alias, ok := d.(*tsparse.AliasDecl)
			if !ok {
				continue
			}
			chain := map[string]bool{alias.Name: true}
			t := p.convert(alias.Type, (&Scope{unit: u}).with(alias.TypeParams), nil)
			for {
				n, ok := t.(tstype.Named)
				if !ok {
					break
				}
				if chain[n.Name] {
					diags.add(alias.Pos, "type alias %q circularly references itself", alias.Name)
					break
				}
				chain[n.Name] = true
				next, ok := p.types[n.Name].decl.(*tsparse.AliasDecl)
				if !ok {
					break
				}
				t = p.convert(next.Type, (&Scope{unit: p.types[n.Name].unit}).with(next.TypeParams), nil)
			}
		}
	}
}
