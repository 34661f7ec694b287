// Package schema defines the lowered, serializable schema tree and the
// registry of named schemas built during one generation run.
package schema

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RefPrefix prefixes every reference to a registered schema.
const RefPrefix = "#/components/schemas/"

// Schema types.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// Node is one schema. Exactly one shape is populated: a reference, an
// object, an array, a union or a primitive.
type Node struct {
	Ref                  string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type                 string             `json:"type,omitempty" yaml:"type,omitempty"`
	Properties           *OrderedMap[*Node] `json:"properties,omitempty" yaml:"properties,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
	Required             []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items                *Node              `json:"items,omitempty" yaml:"items,omitempty"`
	AnyOf                []*Node            `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
}

// Ref returns a reference to the schema registered under name.
func Ref(name string) *Node {
	return &Node{Ref: RefPrefix + name}
}

// Primitive returns a schema of the given primitive type.
func Primitive(typ string) *Node {
	return &Node{Type: typ}
}

// Null returns the null schema.
func Null() *Node {
	return &Node{Type: TypeNull}
}

// Array returns an array schema.
func Array(items *Node) *Node {
	return &Node{Type: TypeArray, Items: items}
}

// AnyOf returns a union schema.
func AnyOf(alternatives ...*Node) *Node {
	return &Node{AnyOf: alternatives}
}

// Object returns an object schema. required is copied, sorted and
// deduplicated. Closed objects reject additional properties.
func Object(props *OrderedMap[*Node], required []string, closed bool) *Node {
	if props == nil {
		props = NewOrderedMap[*Node]()
	}
	n := &Node{Type: TypeObject, Properties: props, Required: SortedSet(required)}
	if closed {
		f := false
		n.AdditionalProperties = &f
	}
	return n
}

// RefName returns the registered name a reference points at.
func (n *Node) RefName() (string, bool) {
	if n == nil || !strings.HasPrefix(n.Ref, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(n.Ref, RefPrefix), true
}

// IsNull reports whether n is the null schema.
func (n *Node) IsNull() bool {
	return n != nil && n.Type == TypeNull && n.Ref == ""
}

// Closed reports whether the object schema rejects additional properties.
func (n *Node) Closed() bool {
	return n.AdditionalProperties != nil && !*n.AdditionalProperties
}

// Equal reports whether a and b serialize identically.
func Equal(a, b *Node) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
