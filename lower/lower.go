// Package lower converts resolved TypeScript types into schemas, registering
// named and per-method schemas as it goes. Self-referential types terminate
// through the registry's visiting set.
package lower

import (
	"fmt"

	"github.com/shipq/tsrpc/extract"
	"github.com/shipq/tsrpc/schema"
	"github.com/shipq/tsrpc/tstype"
)

// Resolver supplies the declared body of a named type.
type Resolver interface {
	ResolveNamed(name string) (tstype.Type, error)
}

// UnsupportedTypeError reports a reachable type outside the supported
// shapes.
type UnsupportedTypeError struct {
	Method string
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	msg := fmt.Sprintf("method %s: unsupported type %s", e.Method, e.Type)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// ArgsName is the registered name of a method's argument schema.
func ArgsName(method string) string { return method + "Args" }

// ReturnName is the registered name of a method's return schema.
func ReturnName(method string) string { return method + "ReturnType" }

// MethodNames are the registered schema names of one method. Args is empty
// for methods without arguments.
type MethodNames struct {
	Args   string
	Return string
}

// Engine lowers types into one registry.
type Engine struct {
	prog   Resolver
	reg    *schema.Registry
	method string
	// inline holds synthetic names whose body is not the declaration of
	// the same name.
	inline map[string]bool
}

// NewEngine returns an engine writing to reg.
func NewEngine(prog Resolver, reg *schema.Registry) *Engine {
	return &Engine{prog: prog, reg: reg, inline: map[string]bool{}}
}

// LowerMethod registers the argument and return schemas of m under their
// synthetic names.
func (e *Engine) LowerMethod(m extract.Method) (MethodNames, error) {
	e.method = m.Name
	var names MethodNames
	if m.HasArgs() {
		names.Args = ArgsName(m.Name)
		if err := e.top(names.Args, m.Args); err != nil {
			return MethodNames{}, err
		}
	}
	names.Return = ReturnName(m.Name)
	if err := e.top(names.Return, m.Return); err != nil {
		return MethodNames{}, err
	}
	return names, nil
}

func (e *Engine) top(name string, t tstype.Type) error {
	e.reg.BeginVisit(name)
	defer e.reg.EndVisit(name)

	var (
		node *schema.Node
		err  error
	)
	if n, ok := t.(tstype.Named); ok && n.Name == name {
		// a declared type that already carries the synthetic name
		node, err = e.body(name)
	} else {
		e.inline[name] = true
		node, err = e.lower(t)
	}
	if err != nil {
		return err
	}
	return e.reg.Register(name, node)
}

func (e *Engine) lower(t tstype.Type) (*schema.Node, error) {
	switch v := t.(type) {
	case tstype.Primitive:
		return schema.Primitive(string(v.Name)), nil
	case tstype.Null:
		return schema.Null(), nil
	case tstype.Array:
		items, err := e.lower(v.Elem)
		if err != nil {
			return nil, err
		}
		return schema.Array(items), nil
	case *tstype.Object:
		return e.object(v)
	case tstype.Union:
		return e.union(v)
	case tstype.Named:
		return e.named(v.Name)
	case tstype.Unsupported:
		return nil, &UnsupportedTypeError{Method: e.method, Type: v.Text, Reason: v.Reason}
	case nil:
		return nil, &UnsupportedTypeError{Method: e.method, Type: "any", Reason: "missing type"}
	}
	return nil, &UnsupportedTypeError{Method: e.method, Type: t.String()}
}

func (e *Engine) object(o *tstype.Object) (*schema.Node, error) {
	props := schema.NewOrderedMap[*schema.Node]()
	var required []string
	for _, f := range o.Fields {
		n, err := e.lower(f.Type)
		if err != nil {
			return nil, err
		}
		props.Set(f.Name, n)
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return schema.Object(props, required, !o.Open), nil
}

// union lowers the non-null members in order and appends a single null
// alternative when any member is null or undefined.
func (e *Engine) union(u tstype.Union) (*schema.Node, error) {
	var alts []*schema.Node
	nullable := false
	for _, m := range u.Members {
		if tstype.IsNull(m) {
			nullable = true
			continue
		}
		n, err := e.lower(m)
		if err != nil {
			return nil, err
		}
		if n.IsNull() {
			// alias of null
			nullable = true
			continue
		}
		if !containsNode(alts, n) {
			alts = append(alts, n)
		}
	}
	if nullable {
		alts = append(alts, schema.Null())
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return schema.AnyOf(alts...), nil
}

func containsNode(nodes []*schema.Node, n *schema.Node) bool {
	for _, m := range nodes {
		if schema.Equal(m, n) {
			return true
		}
	}
	return false
}

// named returns a reference to the schema of a declared type, lowering and
// registering it on first use. Aliases of primitives and null are inlined
// and aliases of other named types are followed.
func (e *Engine) named(name string) (*schema.Node, error) {
	if e.inline[name] {
		return e.claimSynthetic(name)
	}
	if _, ok := e.reg.Resolve(name); ok {
		return schema.Ref(name), nil
	}
	if e.reg.Visiting(name) {
		return schema.Ref(name), nil
	}

	body, err := e.prog.ResolveNamed(name)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", e.method, err)
	}
	switch body.Kind() {
	case tstype.KindNamed, tstype.KindPrimitive, tstype.KindNull:
		return e.lower(body)
	case tstype.KindUnsupported:
		u := body.(tstype.Unsupported)
		return nil, &UnsupportedTypeError{Method: e.method, Type: u.Text, Reason: u.Reason}
	}

	e.reg.BeginVisit(name)
	defer e.reg.EndVisit(name)
	node, err := e.lower(body)
	if err != nil {
		return nil, err
	}
	if err := e.reg.Register(name, node); err != nil {
		return nil, err
	}
	return schema.Ref(name), nil
}

// body lowers the declared body of name with name marked as visiting.
func (e *Engine) body(name string) (*schema.Node, error) {
	t, err := e.prog.ResolveNamed(name)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", e.method, err)
	}
	if n, ok := t.(tstype.Named); ok && n.Name == name {
		return nil, &UnsupportedTypeError{Method: e.method, Type: name, Reason: "circular alias"}
	}
	return e.lower(t)
}

// claimSynthetic handles a reference to a declared type whose name is already
// used by another method's inline argument or return schema. The declared
// body must match the registered one.
func (e *Engine) claimSynthetic(name string) (*schema.Node, error) {
	existing, ok := e.reg.Resolve(name)
	if !ok {
		// still being lowered, so the bodies cannot be compared
		return nil, &schema.RegistryConsistencyError{Name: name}
	}
	delete(e.inline, name)
	e.reg.BeginVisit(name)
	defer e.reg.EndVisit(name)
	node, err := e.body(name)
	if err != nil {
		return nil, err
	}
	if !schema.Equal(existing, node) {
		return nil, &schema.RegistryConsistencyError{Name: name, Existing: existing, Conflict: node}
	}
	return schema.Ref(name), nil
}
