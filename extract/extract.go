// Package extract turns the exported asynchronous functions of an entry
// module into RPC method descriptors.
package extract

import (
	"fmt"

	"github.com/shipq/tsrpc/program"
	"github.com/shipq/tsrpc/tsparse"
	"github.com/shipq/tsrpc/tstype"
)

// Method describes one RPC method.
type Method struct {
	Name string
	// Args is the argument object, or nil for a function without parameters.
	Args tstype.Type
	// Return is the declared result with one Promise layer removed. A
	// function returning nothing yields an empty open object.
	Return tstype.Type
	Pos    tsparse.Pos
	Doc    string
}

// HasArgs reports whether the method takes an argument object.
func (m Method) HasArgs() bool { return m.Args != nil }

// UnsupportedSignatureError reports an exported asynchronous function whose
// parameters do not follow the single options object convention.
type UnsupportedSignatureError struct {
	Method string
	Pos    tsparse.Pos
	Reason string
}

func (e *UnsupportedSignatureError) Error() string {
	return fmt.Sprintf("%s: unsupported signature for %s: %s", e.Pos, e.Method, e.Reason)
}

// Checker is the part of a loaded program the extractor needs.
type Checker interface {
	Functions() []program.FunctionDecl
	TypeOf(expr tsparse.TypeExpr, scope *program.Scope) tstype.Type
	ResolveNamed(name string) (tstype.Type, error)
	UnwrapPromise(expr tsparse.TypeExpr, scope *program.Scope) (tsparse.TypeExpr, bool)
}

// Extract returns one Method per exported asynchronous function, in
// declaration order. A function is asynchronous when it is declared async or
// its declared result is Promise<T>.
func Extract(prog Checker) ([]Method, error) {
	var methods []Method
	seen := map[string]tsparse.Pos{}

	for _, fn := range prog.Functions() {
		if !fn.Exported {
			continue
		}
		inner, promised := tsparse.TypeExpr(nil), false
		if fn.Result != nil {
			inner, promised = prog.UnwrapPromise(fn.Result, fn.Scope)
		}
		if !fn.Async && !promised {
			continue
		}

		if first, dup := seen[fn.Name]; dup {
			return nil, &UnsupportedSignatureError{
				Method: fn.Name,
				Pos:    fn.Pos,
				Reason: fmt.Sprintf("overloaded declaration (first declared at %s)", first),
			}
		}
		seen[fn.Name] = fn.Pos

		m := Method{Name: fn.Name, Pos: fn.Pos, Doc: fn.Doc}

		args, err := extractArgs(prog, fn)
		if err != nil {
			return nil, err
		}
		m.Args = args

		switch {
		case promised:
			m.Return = returnType(prog.TypeOf(inner, fn.Scope))
		case fn.Result == nil:
			// unannotated async function: nothing to describe
			m.Return = &tstype.Object{Open: true}
		default:
			m.Return = returnType(prog.TypeOf(fn.Result, fn.Scope))
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// returnType maps a result type to the logical return type. A function
// that returns nothing still answers with an empty JSON object.
func returnType(t tstype.Type) tstype.Type {
	if n, ok := t.(tstype.Null); ok && n.Undefined {
		return &tstype.Object{Open: true}
	}
	return t
}

func extractArgs(prog Checker, fn program.FunctionDecl) (tstype.Type, error) {
	switch len(fn.Params) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, &UnsupportedSignatureError{
			Method: fn.Name,
			Pos:    fn.Pos,
			Reason: fmt.Sprintf("%d parameters; expected a single options object", len(fn.Params)),
		}
	}

	param := fn.Params[0]
	if param.Rest {
		return nil, &UnsupportedSignatureError{Method: fn.Name, Pos: param.Pos, Reason: "rest parameter"}
	}
	if param.Type == nil {
		return nil, &UnsupportedSignatureError{Method: fn.Name, Pos: param.Pos, Reason: "parameter has no type annotation"}
	}

	t := prog.TypeOf(param.Type, fn.Scope)
	ok, err := isObject(prog, t)
	if err != nil {
		return nil, fmt.Errorf("resolving argument type of %s: %w", fn.Name, err)
	}
	if !ok {
		return nil, &UnsupportedSignatureError{
			Method: fn.Name,
			Pos:    param.Pos,
			Reason: fmt.Sprintf("parameter type %s is not an object type", param.Type),
		}
	}
	return t, nil
}

// isObject reports whether t is an object type, directly or through a chain
// of named types.
func isObject(prog Checker, t tstype.Type) (bool, error) {
	seen := map[string]bool{}
	for {
		switch v := t.(type) {
		case *tstype.Object:
			return true, nil
		case tstype.Named:
			if seen[v.Name] {
				return false, nil
			}
			seen[v.Name] = true
			body, err := prog.ResolveNamed(v.Name)
			if err != nil {
				return false, err
			}
			t = body
		default:
			return false, nil
		}
	}
}
