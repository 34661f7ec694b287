package tsparse

import (
	"fmt"
	"strings"
	"text/scanner"
)

// Pos is a source position.
type Pos = scanner.Position

// File is one parsed source file. Only declarations relevant to type
// extraction are kept; statements and function bodies are skipped.
type File struct {
	Path    string
	Imports []*Import
	Decls   []Decl
}

// Import is an `import ... from "spec"` declaration.
type Import struct {
	Pos       Pos
	Specifier string
	TypeOnly  bool
	Names     []ImportName
	// Namespace is set for `import * as ns from ...`.
	Namespace string
	// Default is set for `import X from ...`.
	Default string
	// Reexport marks `export { ... } from` and `export * from` forms.
	Reexport bool
}

// ImportName is one binding of a named import: `{ Name as Local }`.
type ImportName struct {
	Name  string
	Local string
}

// Decl is a top-level declaration.
type Decl interface {
	DeclName() string
	DeclPos() Pos
	IsExported() bool
}

type declBase struct {
	Pos        Pos
	Name       string
	Exported   bool
	TypeParams []string
	Doc        string
}

func (d *declBase) DeclName() string { return d.Name }
func (d *declBase) DeclPos() Pos     { return d.Pos }
func (d *declBase) IsExported() bool { return d.Exported }

// FuncDecl is a function declaration. Overload signatures have no body.
type FuncDecl struct {
	declBase
	Async   bool
	Params  []*Param
	Result  TypeExpr // nil when not annotated
	HasBody bool
}

// Param is one formal parameter.
type Param struct {
	Pos      Pos
	Name     string // "{...}" or "[...]" for destructuring patterns
	Type     TypeExpr
	Optional bool
	Rest     bool
}

// InterfaceDecl is `interface Name extends ... { ... }`.
type InterfaceDecl struct {
	declBase
	Extends []TypeExpr
	Members []*Member
}

// AliasDecl is `type Name = T`.
type AliasDecl struct {
	declBase
	Type TypeExpr
}

// ClassDecl is a class. Only instance property declarations are recorded.
type ClassDecl struct {
	declBase
	Extends TypeExpr
	Members []*Member
}

// EnumDecl is an enum; its members are not recorded.
type EnumDecl struct {
	declBase
}

// MemberKind distinguishes object type members.
type MemberKind int

const (
	MemberProperty MemberKind = iota
	MemberMethod
	MemberIndex
	MemberCall
)

// Member is a property, method, index or call signature of an object type.
type Member struct {
	Pos      Pos
	Kind     MemberKind
	Name     string
	Optional bool
	Type     TypeExpr
}

// TypeExpr is a type as written in source.
type TypeExpr interface {
	TypePos() Pos
	String() string
}

// TypeRef is a reference to a named type, a keyword type or a global,
// optionally with type arguments: `Promise<User>`, `string`, `ns.Type`.
type TypeRef struct {
	Pos  Pos
	Name string
	Args []TypeExpr
}

func (t *TypeRef) TypePos() Pos { return t.Pos }

func (t *TypeRef) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "<" + joinTypes(t.Args, ", ") + ">"
}

// ArrayType is `T[]`.
type ArrayType struct {
	Pos  Pos
	Elem TypeExpr
}

func (t *ArrayType) TypePos() Pos { return t.Pos }

func (t *ArrayType) String() string {
	switch t.Elem.(type) {
	case *UnionType, *IntersectionType, *FuncType:
		return "(" + t.Elem.String() + ")[]"
	}
	return t.Elem.String() + "[]"
}

// UnionType is `A | B`.
type UnionType struct {
	Pos     Pos
	Members []TypeExpr
}

func (t *UnionType) TypePos() Pos    { return t.Pos }
func (t *UnionType) String() string { return joinTypes(t.Members, " | ") }

// IntersectionType is `A & B`.
type IntersectionType struct {
	Pos     Pos
	Members []TypeExpr
}

func (t *IntersectionType) TypePos() Pos    { return t.Pos }
func (t *IntersectionType) String() string { return joinTypes(t.Members, " & ") }

// ObjectType is a type literal `{ a: T; b?: U }`.
type ObjectType struct {
	Pos     Pos
	Members []*Member
}

func (t *ObjectType) TypePos() Pos { return t.Pos }

func (t *ObjectType) String() string {
	if len(t.Members) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		parts = append(parts, m.String())
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

func (m *Member) String() string {
	switch m.Kind {
	case MemberIndex:
		return "[" + m.Name + "]: " + typeString(m.Type)
	case MemberCall:
		return typeString(m.Type)
	}
	opt := ""
	if m.Optional {
		opt = "?"
	}
	return m.Name + opt + ": " + typeString(m.Type)
}

// TupleType is `[A, B]`.
type TupleType struct {
	Pos   Pos
	Elems []TypeExpr
}

func (t *TupleType) TypePos() Pos    { return t.Pos }
func (t *TupleType) String() string { return "[" + joinTypes(t.Elems, ", ") + "]" }

// LiteralType is a string, number or boolean literal type.
type LiteralType struct {
	Pos   Pos
	Value string
}

func (t *LiteralType) TypePos() Pos    { return t.Pos }
func (t *LiteralType) String() string { return t.Value }

// FuncType is a function or constructor type. Only its text is kept.
type FuncType struct {
	Pos  Pos
	Text string
}

func (t *FuncType) TypePos() Pos    { return t.Pos }
func (t *FuncType) String() string { return t.Text }

// OpaqueType is any other type form the parser recognizes but does not
// model (keyof, typeof, indexed access, mapped, conditional, template).
type OpaqueType struct {
	Pos  Pos
	Text string
}

func (t *OpaqueType) TypePos() Pos    { return t.Pos }
func (t *OpaqueType) String() string { return t.Text }

func joinTypes(ts []TypeExpr, sep string) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = typeString(t)
	}
	return strings.Join(parts, sep)
}

func typeString(t TypeExpr) string {
	if t == nil {
		return "any"
	}
	return t.String()
}

// Error is a syntax error at a position.
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}
