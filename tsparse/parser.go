// Package tsparse parses the declaration-level subset of TypeScript needed to
// extract RPC signatures: imports, function signatures, interfaces, type
// aliases, classes and enums. Function bodies and other statements are
// skipped by bracket matching and never interpreted.
package tsparse

import (
	"fmt"
	"strings"
	"text/scanner"
)

// ErrorList is the set of syntax errors found in one file.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0], len(l)-1)
}

type bailout struct{}

type parser struct {
	toks []token
	i    int
	tok  token
	errs ErrorList
}

// ParseFile parses src. On syntax errors it returns the declarations parsed
// so far together with an ErrorList.
func ParseFile(path string, src []byte) (f *File, err error) {
	toks, scanErrs := tokenize(path, src)
	p := &parser{toks: toks}
	p.errs = append(p.errs, scanErrs...)
	p.tok = p.toks[0]
	f = &File{Path: path}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
		if len(p.errs) > 0 {
			err = p.errs
		}
	}()

	p.parseFile(f)
	return f, nil
}

// ---------------------------------------------------------------------------
// token helpers

func (p *parser) next() {
	if p.i < len(p.toks)-1 {
		p.i++
	}
	p.tok = p.toks[p.i]
}

func (p *parser) peek(n int) token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) eof() bool { return p.tok.kind == scanner.EOF }

func (p *parser) is(lit string) bool {
	return p.tok.lit == lit && !isQuoted(p.tok.kind)
}

func (p *parser) got(lit string) bool {
	if p.is(lit) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(lit string) {
	if !p.got(lit) {
		p.errorf("expected %q, found %s", lit, p.describe())
	}
}

func (p *parser) ident() string {
	if p.tok.kind != scanner.Ident {
		p.errorf("expected identifier, found %s", p.describe())
	}
	name := p.tok.lit
	p.next()
	return name
}

// gotSpread consumes a `...` token run.
func (p *parser) gotSpread() bool {
	if p.is(".") && p.peek(1).lit == "." && p.peek(2).lit == "." {
		p.next()
		p.next()
		p.next()
		return true
	}
	return false
}

func (p *parser) describe() string {
	if p.eof() {
		return "end of file"
	}
	return fmt.Sprintf("%q", p.tok.lit)
}

func (p *parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, &Error{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)})
	panic(bailout{})
}

func (p *parser) textFrom(start int) string {
	return joinTokens(p.toks[start:p.i])
}

func isQuoted(kind rune) bool {
	return kind == scanner.String || kind == scanner.Char || kind == scanner.RawString
}

func isOpen(lit string) bool  { return lit == "(" || lit == "[" || lit == "{" }
func isClose(lit string) bool { return lit == ")" || lit == "]" || lit == "}" }

// skipBalanced consumes a bracketed group starting at the current opening
// bracket, including everything nested inside it.
func (p *parser) skipBalanced() {
	if !isOpen(p.tok.lit) || isQuoted(p.tok.kind) {
		p.errorf("expected bracket, found %s", p.describe())
	}
	depth := 0
	for !p.eof() {
		if !isQuoted(p.tok.kind) {
			switch {
			case isOpen(p.tok.lit):
				depth++
			case isClose(p.tok.lit):
				depth--
				if depth == 0 {
					p.next()
					return
				}
			}
		}
		p.next()
	}
	p.errorf("unbalanced brackets")
}

// matchingClose returns the token index of the bracket closing the one at
// index i, or -1.
func (p *parser) matchingClose(i int) int {
	depth := 0
	for j := i; j < len(p.toks); j++ {
		t := p.toks[j]
		if isQuoted(t.kind) {
			continue
		}
		switch {
		case isOpen(t.lit):
			depth++
		case isClose(t.lit):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

var declStarts = map[string]bool{
	"export": true, "import": true, "function": true, "async": true,
	"interface": true, "type": true, "class": true, "const": true,
	"let": true, "var": true, "enum": true, "declare": true,
	"abstract": true, "namespace": true, "module": true,
}

// skipStatement consumes one statement. Without semicolons the statement
// ends at a line break that starts a new declaration or after a closing
// brace that ends the line.
func (p *parser) skipStatement() {
	depth := 0
	first := true
	for !p.eof() {
		if !first && depth == 0 && p.tok.nl && p.tok.kind == scanner.Ident && declStarts[p.tok.lit] {
			return
		}
		first = false
		if !isQuoted(p.tok.kind) {
			switch {
			case isOpen(p.tok.lit):
				depth++
			case isClose(p.tok.lit):
				depth--
				if depth <= 0 && p.tok.lit == "}" {
					p.next()
					if depth < 0 || p.tok.nl || p.is(";") {
						p.got(";")
						return
					}
					depth = 0
					continue
				}
			case p.tok.lit == ";" && depth == 0:
				p.next()
				return
			}
		}
		p.next()
	}
}

// ---------------------------------------------------------------------------
// declarations

func (p *parser) parseFile(f *File) {
	for !p.eof() {
		doc := p.tok.doc
		switch {
		case p.is(";"):
			p.next()
		case p.is("import"):
			if next := p.peek(1).lit; next == "(" || next == "." {
				p.skipStatement()
				continue
			}
			if imp := p.parseImport(); imp != nil {
				f.Imports = append(f.Imports, imp)
			}
		case p.is("export"):
			p.next()
			switch {
			case p.is("*"), p.is("{"), p.is("type") && p.peek(1).lit == "{":
				if imp := p.parseReexport(); imp != nil {
					f.Imports = append(f.Imports, imp)
				}
			case p.is("default"), p.is("="), p.is("import"), p.is("as"):
				p.skipStatement()
			default:
				if d := p.parseDecl(true, doc); d != nil {
					f.Decls = append(f.Decls, d)
				}
			}
		default:
			if d := p.parseDecl(false, doc); d != nil {
				f.Decls = append(f.Decls, d)
			}
		}
	}
}

func (p *parser) parseImport() *Import {
	imp := &Import{Pos: p.tok.pos}
	p.expect("import")
	if p.is("type") && p.peek(1).lit != "from" && p.peek(1).lit != "," && p.peek(1).lit != "=" {
		p.next()
		imp.TypeOnly = true
	}
	if isQuoted(p.tok.kind) {
		imp.Specifier = unquote(p.tok.lit)
		p.next()
		p.got(";")
		return imp
	}
	if p.tok.kind == scanner.Ident && p.peek(1).lit == "=" {
		// import x = require("...") or an alias of a namespace member
		p.skipStatement()
		return nil
	}
	more := true
	if p.tok.kind == scanner.Ident && !p.is("from") {
		imp.Default = p.ident()
		more = p.got(",")
	}
	if more {
		switch {
		case p.got("*"):
			p.expect("as")
			imp.Namespace = p.ident()
		case p.is("{"):
			imp.Names = p.parseImportNames()
		}
	}
	p.expect("from")
	if !isQuoted(p.tok.kind) {
		p.errorf("expected module specifier, found %s", p.describe())
	}
	imp.Specifier = unquote(p.tok.lit)
	p.next()
	if p.is("assert") || p.is("with") {
		p.next()
		p.skipBalanced()
	}
	p.got(";")
	return imp
}

// parseReexport parses the export lists following `export`. It returns nil
// for local export lists that name no module.
func (p *parser) parseReexport() *Import {
	imp := &Import{Pos: p.tok.pos, Reexport: true}
	imp.TypeOnly = p.got("type")
	if p.got("*") {
		if p.got("as") {
			imp.Namespace = p.ident()
		}
	} else {
		imp.Names = p.parseImportNames()
	}
	if !p.got("from") {
		p.got(";")
		return nil
	}
	if !isQuoted(p.tok.kind) {
		p.errorf("expected module specifier, found %s", p.describe())
	}
	imp.Specifier = unquote(p.tok.lit)
	p.next()
	p.got(";")
	return imp
}

func (p *parser) parseImportNames() []ImportName {
	var names []ImportName
	p.expect("{")
	for !p.is("}") {
		if p.is("type") && p.peek(1).kind == scanner.Ident && p.peek(1).lit != "as" {
			p.next()
		}
		var n ImportName
		if isQuoted(p.tok.kind) {
			n.Name = unquote(p.tok.lit)
			p.next()
		} else {
			n.Name = p.ident()
		}
		n.Local = n.Name
		if p.got("as") {
			n.Local = p.ident()
		}
		names = append(names, n)
		if !p.got(",") {
			break
		}
	}
	p.expect("}")
	return names
}

func (p *parser) parseDecl(exported bool, doc string) Decl {
	p.got("declare")
	switch {
	case p.is("async") && p.peek(1).lit == "function":
		return p.parseFunc(exported, doc)
	case p.is("function"):
		return p.parseFunc(exported, doc)
	case p.is("interface"):
		return p.parseInterface(exported, doc)
	case p.is("type") && p.peek(1).kind == scanner.Ident:
		return p.parseAlias(exported, doc)
	case p.is("class"), p.is("abstract") && p.peek(1).lit == "class":
		return p.parseClass(exported, doc)
	case p.is("enum"), p.is("const") && p.peek(1).lit == "enum":
		return p.parseEnum(exported, doc)
	case (p.is("namespace") || p.is("module") || p.is("global")) &&
		(p.peek(1).kind == scanner.Ident || isQuoted(p.peek(1).kind) || p.peek(1).lit == "{"):
		for !p.eof() && !p.is("{") {
			p.next()
		}
		p.skipBalanced()
		return nil
	}
	p.skipStatement()
	return nil
}

func (p *parser) parseFunc(exported bool, doc string) *FuncDecl {
	d := &FuncDecl{}
	d.Pos, d.Exported, d.Doc = p.tok.pos, exported, doc
	d.Async = p.got("async")
	p.expect("function")
	p.got("*")
	d.Name = p.ident()
	d.TypeParams = p.parseTypeParams()
	d.Params = p.parseParams()
	if p.got(":") {
		d.Result = p.parseReturnType()
	}
	if p.is("{") {
		p.skipBalanced()
		d.HasBody = true
	} else {
		p.got(";")
	}
	return d
}

func (p *parser) parseTypeParams() []string {
	if !p.got("<") {
		return nil
	}
	var names []string
	for !p.is(">") {
		for p.is("const") || p.is("in") || p.is("out") {
			if p.peek(1).kind != scanner.Ident {
				break
			}
			p.next()
		}
		names = append(names, p.ident())
		if p.got("extends") {
			p.parseType()
		}
		if p.got("=") {
			p.parseType()
		}
		if !p.got(",") {
			break
		}
	}
	p.expect(">")
	return names
}

func (p *parser) parseParams() []*Param {
	var params []*Param
	p.expect("(")
	for !p.is(")") {
		p.skipDecorators()
		for (p.is("public") || p.is("private") || p.is("protected") || p.is("readonly") || p.is("override")) &&
			(p.peek(1).kind == scanner.Ident || p.peek(1).lit == "{" || p.peek(1).lit == "[") {
			p.next()
		}
		param := &Param{Pos: p.tok.pos}
		param.Rest = p.gotSpread()
		switch {
		case p.is("{"):
			p.skipBalanced()
			param.Name = "{...}"
		case p.is("["):
			p.skipBalanced()
			param.Name = "[...]"
		default:
			param.Name = p.ident()
		}
		param.Optional = p.got("?")
		if p.got(":") {
			param.Type = p.parseType()
		}
		if p.got("=") {
			param.Optional = true
			p.skipExpr(",", ")")
		}
		if param.Name != "this" {
			params = append(params, param)
		}
		if !p.got(",") {
			break
		}
	}
	p.expect(")")
	return params
}

// skipExpr consumes an expression up to (not including) one of the given
// terminators at bracket depth zero.
func (p *parser) skipExpr(terms ...string) {
	depth := 0
	for !p.eof() {
		if !isQuoted(p.tok.kind) {
			if depth == 0 {
				for _, t := range terms {
					if p.tok.lit == t {
						return
					}
				}
			}
			switch {
			case isOpen(p.tok.lit):
				depth++
			case isClose(p.tok.lit):
				if depth == 0 {
					return
				}
				depth--
			}
		}
		p.next()
	}
}

func (p *parser) skipDecorators() {
	for p.is("@") {
		p.next()
		p.ident()
		for p.got(".") {
			p.ident()
		}
		if p.is("(") {
			p.skipBalanced()
		}
	}
}

// parseReturnType handles type predicates (`x is T`, `asserts x`) in
// addition to ordinary types.
func (p *parser) parseReturnType() TypeExpr {
	start := p.i
	pos := p.tok.pos
	if p.is("asserts") && p.peek(1).kind == scanner.Ident {
		p.next()
		p.next()
		if p.got("is") {
			p.parseType()
		}
		return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
	}
	if p.tok.kind == scanner.Ident && p.peek(1).lit == "is" {
		p.next()
		p.next()
		p.parseType()
		return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
	}
	return p.parseType()
}

func (p *parser) parseInterface(exported bool, doc string) *InterfaceDecl {
	d := &InterfaceDecl{}
	d.Pos, d.Exported, d.Doc = p.tok.pos, exported, doc
	p.expect("interface")
	d.Name = p.ident()
	d.TypeParams = p.parseTypeParams()
	if p.got("extends") {
		for {
			d.Extends = append(d.Extends, p.parseTypeRef())
			if !p.got(",") {
				break
			}
		}
	}
	d.Members = p.parseMembers()
	return d
}

func (p *parser) parseAlias(exported bool, doc string) *AliasDecl {
	d := &AliasDecl{}
	d.Pos, d.Exported, d.Doc = p.tok.pos, exported, doc
	p.expect("type")
	d.Name = p.ident()
	d.TypeParams = p.parseTypeParams()
	p.expect("=")
	d.Type = p.parseType()
	p.got(";")
	return d
}

func (p *parser) parseEnum(exported bool, doc string) *EnumDecl {
	d := &EnumDecl{}
	d.Pos, d.Exported, d.Doc = p.tok.pos, exported, doc
	p.got("const")
	p.expect("enum")
	d.Name = p.ident()
	p.skipBalanced()
	return d
}

var classModifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "static": true,
	"readonly": true, "declare": true, "abstract": true, "override": true,
	"accessor": true, "async": true,
}

func (p *parser) parseClass(exported bool, doc string) *ClassDecl {
	d := &ClassDecl{}
	d.Pos, d.Exported, d.Doc = p.tok.pos, exported, doc
	p.got("abstract")
	p.expect("class")
	d.Name = p.ident()
	d.TypeParams = p.parseTypeParams()
	if p.got("extends") {
		d.Extends = p.parseTypeRef()
		if p.is("(") {
			// class mixin expression
			p.skipBalanced()
			d.Extends = nil
		}
	}
	if p.got("implements") {
		for {
			p.parseTypeRef()
			if !p.got(",") {
				break
			}
		}
	}
	p.expect("{")
	for !p.is("}") && !p.eof() {
		if m := p.parseClassMember(); m != nil {
			d.Members = append(d.Members, m)
		}
	}
	p.expect("}")
	return d
}

// parseClassMember returns the member for instance property declarations and
// nil for everything else (methods, accessors, static and #private members).
func (p *parser) parseClassMember() *Member {
	if p.got(";") {
		return nil
	}
	p.skipDecorators()
	static := false
	for p.tok.kind == scanner.Ident && classModifiers[p.tok.lit] {
		next := p.peek(1).lit
		if next == "(" || next == ":" || next == "=" || next == ";" || next == "?" || next == "!" || next == "<" {
			break
		}
		if p.is("static") {
			static = true
		}
		p.next()
	}
	if p.is("static") && p.peek(1).lit == "{" {
		p.next()
		p.skipBalanced()
		return nil
	}
	private := false
	if p.got("#") {
		private = true
	}
	if (p.is("get") || p.is("set")) && !isMemberPunct(p.peek(1).lit) && p.peek(1).lit != "=" {
		p.next()
		if p.is("[") {
			p.skipBalanced()
		} else {
			p.memberName()
		}
		p.skipMethodRest()
		return nil
	}
	p.got("*")
	m := &Member{Pos: p.tok.pos}
	switch {
	case p.is("["):
		p.skipBalanced()
		private = true
	case isQuoted(p.tok.kind):
		m.Name = unquote(p.tok.lit)
		p.next()
	case p.tok.kind == scanner.Int || p.tok.kind == scanner.Float:
		m.Name = p.tok.lit
		p.next()
	default:
		m.Name = p.ident()
	}
	m.Optional = p.got("?")
	p.got("!")
	if p.is("(") || p.is("<") {
		p.skipMethodRest()
		return nil
	}
	if p.got(":") {
		m.Type = p.parseType()
	}
	if p.got("=") {
		p.skipInitializer()
	}
	p.got(";")
	if static || private || m.Name == "constructor" {
		return nil
	}
	return m
}

// skipMethodRest consumes type parameters, parameters, return type and body
// of a method or accessor.
func (p *parser) skipMethodRest() {
	p.parseTypeParams()
	if p.is("(") {
		p.skipBalanced()
	}
	if p.got(":") {
		p.parseReturnType()
	}
	if p.is("{") {
		p.skipBalanced()
	} else {
		p.got(";")
	}
}

func (p *parser) skipInitializer() {
	depth := 0
	first := true
	for !p.eof() {
		if depth == 0 && !first && p.tok.nl {
			return
		}
		first = false
		if !isQuoted(p.tok.kind) {
			switch {
			case isOpen(p.tok.lit):
				depth++
			case isClose(p.tok.lit):
				if depth == 0 {
					return
				}
				depth--
			case p.tok.lit == ";" && depth == 0:
				return
			}
		}
		p.next()
	}
}

// parseMembers parses `{ member; member }` of an interface or type literal.
func (p *parser) parseMembers() []*Member {
	var members []*Member
	p.expect("{")
	for !p.is("}") && !p.eof() {
		members = append(members, p.parseMember())
		for p.got(";") || p.got(",") {
		}
	}
	p.expect("}")
	return members
}

func (p *parser) parseMember() *Member {
	m := &Member{Pos: p.tok.pos}
	for (p.is("readonly") || p.is("public") || p.is("private") || p.is("protected")) &&
		!isMemberPunct(p.peek(1).lit) {
		p.next()
	}
	switch {
	case p.is("(") || p.is("<"):
		start := p.i
		p.skipSignature()
		m.Kind = MemberCall
		m.Type = &FuncType{Pos: m.Pos, Text: p.textFrom(start)}
		return m
	case p.is("new") && (p.peek(1).lit == "(" || p.peek(1).lit == "<"):
		start := p.i
		p.next()
		p.skipSignature()
		m.Kind = MemberCall
		m.Type = &FuncType{Pos: m.Pos, Text: p.textFrom(start)}
		return m
	case p.is("["):
		start := p.i
		if p.peek(1).kind == scanner.Ident && p.peek(2).lit == ":" {
			p.next()
			p.next()
			p.next()
			key := p.parseType()
			p.expect("]")
			m.Name = p.toks[start+1].lit + ": " + key.String()
		} else {
			p.skipBalanced()
			m.Name = strings.TrimSuffix(strings.TrimPrefix(p.textFrom(start), "["), "]")
		}
		m.Kind = MemberIndex
		m.Optional = p.got("?")
		if p.got(":") {
			m.Type = p.parseType()
		}
		return m
	case (p.is("get") || p.is("set")) && !isMemberPunct(p.peek(1).lit):
		accessor := p.tok.lit
		p.next()
		m.Name = p.memberName()
		start := p.i
		p.skipSignature()
		if accessor == "set" {
			m.Kind = MemberMethod
			m.Type = &FuncType{Pos: m.Pos, Text: "set " + m.Name + p.textFrom(start)}
			return m
		}
		// `get name(): T` reads as a property of type T
		m.Type = p.funcResult(start)
		return m
	}
	m.Name = p.memberName()
	m.Optional = p.got("?")
	switch {
	case p.is("(") || p.is("<"):
		start := p.i
		p.skipSignature()
		m.Kind = MemberMethod
		m.Type = &FuncType{Pos: m.Pos, Text: p.textFrom(start)}
	case p.got(":"):
		m.Type = p.parseType()
	}
	return m
}

// funcResult extracts the annotated result of a signature that was just
// skipped from token index start.
func (p *parser) funcResult(start int) TypeExpr {
	end := p.i
	rparen := p.matchingClose(start)
	if rparen < 0 || rparen+1 >= end || p.toks[rparen+1].lit != ":" {
		return nil
	}
	sub := &parser{toks: append(append([]token(nil), p.toks[rparen+2:end]...), token{kind: scanner.EOF})}
	sub.tok = sub.toks[0]
	t := sub.parseType()
	p.errs = append(p.errs, sub.errs...)
	return t
}

func (p *parser) memberName() string {
	switch {
	case isQuoted(p.tok.kind):
		name := unquote(p.tok.lit)
		p.next()
		return name
	case p.tok.kind == scanner.Int || p.tok.kind == scanner.Float:
		name := p.tok.lit
		p.next()
		return name
	}
	return p.ident()
}

func isMemberPunct(lit string) bool {
	switch lit {
	case ":", "?", "(", "<", ";", ",", "}":
		return true
	}
	return false
}

// skipSignature consumes `<T>(params): Result` of a call or method signature.
func (p *parser) skipSignature() {
	p.parseTypeParams()
	p.skipBalanced()
	if p.got(":") {
		p.parseReturnType()
	}
}

// ---------------------------------------------------------------------------
// types

func (p *parser) parseType() TypeExpr {
	start := p.i
	pos := p.tok.pos
	t := p.parseUnion()
	if p.is("extends") && !p.tok.nl {
		p.next()
		p.parseUnion()
		p.expect("?")
		p.parseType()
		p.expect(":")
		p.parseType()
		return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
	}
	return t
}

func (p *parser) parseUnion() TypeExpr {
	pos := p.tok.pos
	p.got("|")
	first := p.parseIntersection()
	if !p.is("|") {
		return first
	}
	u := &UnionType{Pos: pos, Members: []TypeExpr{first}}
	for p.got("|") {
		u.Members = append(u.Members, p.parseIntersection())
	}
	return u
}

func (p *parser) parseIntersection() TypeExpr {
	pos := p.tok.pos
	p.got("&")
	first := p.parsePostfix()
	if !p.is("&") {
		return first
	}
	it := &IntersectionType{Pos: pos, Members: []TypeExpr{first}}
	for p.got("&") {
		it.Members = append(it.Members, p.parsePostfix())
	}
	return it
}

func (p *parser) parsePostfix() TypeExpr {
	start := p.i
	t := p.parsePrimary()
	for p.is("[") && !p.tok.nl {
		if p.peek(1).lit == "]" {
			p.next()
			p.next()
			t = &ArrayType{Pos: t.TypePos(), Elem: t}
			continue
		}
		p.skipBalanced()
		t = &OpaqueType{Pos: t.TypePos(), Text: p.textFrom(start)}
	}
	return t
}

func (p *parser) parsePrimary() TypeExpr {
	start := p.i
	pos := p.tok.pos
	switch {
	case p.tok.kind == scanner.String || p.tok.kind == scanner.Char:
		lit := p.tok.lit
		p.next()
		return &LiteralType{Pos: pos, Value: lit}
	case p.tok.kind == scanner.RawString:
		lit := p.tok.lit
		p.next()
		return &OpaqueType{Pos: pos, Text: lit}
	case p.tok.kind == scanner.Int || p.tok.kind == scanner.Float:
		lit := p.tok.lit
		p.next()
		return &LiteralType{Pos: pos, Value: lit}
	case p.is("-") && (p.peek(1).kind == scanner.Int || p.peek(1).kind == scanner.Float):
		p.next()
		lit := "-" + p.tok.lit
		p.next()
		return &LiteralType{Pos: pos, Value: lit}
	case p.is("true"), p.is("false"):
		lit := p.tok.lit
		p.next()
		return &LiteralType{Pos: pos, Value: lit}
	case p.is("("):
		if p.arrowAhead() {
			return p.parseFuncType(start)
		}
		p.next()
		t := p.parseType()
		p.expect(")")
		return t
	case p.is("<"):
		return p.parseFuncType(start)
	case p.is("new") && (p.peek(1).lit == "(" || p.peek(1).lit == "<"),
		p.is("abstract") && p.peek(1).lit == "new":
		p.got("abstract")
		p.next()
		return p.parseFuncType(start)
	case p.is("{"):
		if p.mappedAhead() {
			p.skipBalanced()
			return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
		}
		return &ObjectType{Pos: pos, Members: p.parseMembers()}
	case p.is("["):
		return p.parseTuple()
	case p.is("typeof"):
		p.next()
		p.ident()
		for p.got(".") {
			p.ident()
		}
		if p.is("<") {
			p.skipTypeArgs()
		}
		return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
	case p.is("keyof"), p.is("unique"):
		p.next()
		p.parsePostfix()
		return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
	case p.is("readonly"):
		p.next()
		return p.parsePostfix()
	case p.is("infer"):
		p.next()
		p.ident()
		return &OpaqueType{Pos: pos, Text: p.textFrom(start)}
	case p.tok.kind == scanner.Ident:
		return p.parseTypeRef()
	}
	p.errorf("expected type, found %s", p.describe())
	return nil
}

func (p *parser) parseTypeRef() TypeExpr {
	ref := &TypeRef{Pos: p.tok.pos}
	ref.Name = p.ident()
	for p.is(".") && p.peek(1).kind == scanner.Ident {
		p.next()
		ref.Name += "." + p.ident()
	}
	if p.is("<") && !p.tok.nl {
		p.next()
		for !p.is(">") {
			ref.Args = append(ref.Args, p.parseType())
			if !p.got(",") {
				break
			}
		}
		p.expect(">")
	}
	return ref
}

func (p *parser) skipTypeArgs() {
	p.expect("<")
	for !p.is(">") {
		p.parseType()
		if !p.got(",") {
			break
		}
	}
	p.expect(">")
}

func (p *parser) parseTuple() TypeExpr {
	t := &TupleType{Pos: p.tok.pos}
	p.expect("[")
	for !p.is("]") {
		p.gotSpread()
		if p.tok.kind == scanner.Ident && (p.peek(1).lit == ":" || p.peek(1).lit == "?" && p.peek(2).lit == ":") {
			p.next()
			p.got("?")
			p.expect(":")
		}
		t.Elems = append(t.Elems, p.parseType())
		p.got("?")
		if !p.got(",") {
			break
		}
	}
	p.expect("]")
	return t
}

// arrowAhead reports whether the parenthesis at the current token opens the
// parameter list of a function type.
func (p *parser) arrowAhead() bool {
	rparen := p.matchingClose(p.i)
	if rparen < 0 || rparen+2 >= len(p.toks) {
		return false
	}
	return p.toks[rparen+1].lit == "=" && p.toks[rparen+2].lit == ">"
}

func (p *parser) mappedAhead() bool {
	j := 1
	if lit := p.peek(j).lit; lit == "+" || lit == "-" {
		j++
	}
	if p.peek(j).lit == "readonly" {
		j++
	}
	return p.peek(j).lit == "[" && p.peek(j+1).kind == scanner.Ident && p.peek(j+2).lit == "in"
}

func (p *parser) parseFuncType(start int) TypeExpr {
	pos := p.toks[start].pos
	p.parseTypeParams()
	p.skipBalanced()
	p.expect("=")
	p.expect(">")
	p.parseReturnType()
	return &FuncType{Pos: pos, Text: p.textFrom(start)}
}
