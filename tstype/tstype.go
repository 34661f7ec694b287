// Package tstype defines the resolved form of a TypeScript type as seen by the
// schema compiler. Values are produced by the program loader and consumed by the
// lowering engine; this package carries no behavior beyond rendering.
package tstype

import "strings"

// Kind identifies the variant of a Type.
type Kind int

const (
	KindPrimitive Kind = iota + 1
	KindNull
	KindArray
	KindObject
	KindUnion
	KindNamed
	KindUnsupported
)

// Type is one resolved type. The concrete types in this package are the only
// implementations.
type Type interface {
	Kind() Kind
	// String renders the type in TypeScript syntax for diagnostics.
	String() string
}

// PrimitiveKind names a JSON-representable TypeScript primitive.
type PrimitiveKind string

const (
	String  PrimitiveKind = "string"
	Number  PrimitiveKind = "number"
	Boolean PrimitiveKind = "boolean"
)

// Primitive is string, number or boolean.
type Primitive struct {
	Name PrimitiveKind
}

func (Primitive) Kind() Kind       { return KindPrimitive }
func (p Primitive) String() string { return string(p.Name) }

// Null is the null type. Undefined records that the source spelled it
// `undefined`; both lower identically.
type Null struct {
	Undefined bool
}

func (Null) Kind() Kind { return KindNull }

func (n Null) String() string {
	if n.Undefined {
		return "undefined"
	}
	return "null"
}

// Array is T[] or Array<T>.
type Array struct {
	Elem Type
}

func (Array) Kind() Kind { return KindArray }

func (a Array) String() string {
	elem := a.Elem.String()
	if a.Elem.Kind() == KindUnion {
		elem = "(" + elem + ")"
	}
	return elem + "[]"
}

// Field is one member of an object type.
type Field struct {
	Name     string
	Type     Type
	Optional bool
}

// Object is an object-shaped type: an interface body, a type literal or a
// class instance shape. Fields keep declaration order.
type Object struct {
	Fields []Field
	// Open objects accept properties beyond Fields. Only the synthesized
	// result of a function returning nothing is open.
	Open bool
}

func (*Object) Kind() Kind { return KindObject }

func (o *Object) String() string {
	if len(o.Fields) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{ ")
	for i, f := range o.Fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Name)
		if f.Optional {
			b.WriteString("?")
		}
		b.WriteString(": ")
		b.WriteString(f.Type.String())
	}
	b.WriteString(" }")
	return b.String()
}

// Union is A | B | ...
type Union struct {
	Members []Type
}

func (Union) Kind() Kind { return KindUnion }

func (u Union) String() string {
	parts := make([]string, len(u.Members))
	for i, m := range u.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// Named stands for a declared type (interface, alias or class) by its
// program-wide name. The body is obtained from the program on demand, which
// is what lets self-referential declarations be represented finitely.
type Named struct {
	Name string
}

func (Named) Kind() Kind       { return KindNamed }
func (n Named) String() string { return n.Name }

// Unsupported marks a source type outside the compiler's shape set, such as
// function types, type parameters, index signatures or literal types.
type Unsupported struct {
	Text   string
	Reason string
}

func (Unsupported) Kind() Kind       { return KindUnsupported }
func (u Unsupported) String() string { return u.Text }

// IsNull reports whether t is null or undefined.
func IsNull(t Type) bool {
	return t != nil && t.Kind() == KindNull
}
