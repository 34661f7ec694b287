package rpc

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shipq/tsrpc/openapi"
	"github.com/shipq/tsrpc/schema"
)

// Issue codes.
const (
	CodeInvalidType = "invalid_type"
	CodeRequired    = "required"
	CodeUnknownKey  = "unknown_key"
	CodeNoMatch     = "no_match"
	CodeSchema      = "schema"
)

// Issue is one validation failure. Path is slash separated and starts with
// the validated root ("body" or "response").
type Issue struct {
	Path    string
	Code    string
	Message string
}

func (i Issue) String() string { return i.Path + " " + i.Message }

// Issues is a non-empty list of validation failures.
type Issues []Issue

func (is Issues) Error() string {
	parts := make([]string, len(is))
	for k, i := range is {
		parts[k] = i.String()
	}
	return strings.Join(parts, ", ")
}

var printer = message.NewPrinter(language.English)

// Validator checks decoded JSON values against the schemas of one document.
// Schemas are compiled on first use; a Validator is safe for concurrent use.
type Validator struct {
	components any
	compileErr error

	mu       sync.Mutex
	compiler *jsonschema.Compiler
	compiled map[string]*jsonschema.Schema
	next     int
}

// NewValidator returns a validator resolving references through the
// components of doc.
func NewValidator(doc *openapi.Document) *Validator {
	v := &Validator{compiled: map[string]*jsonschema.Schema{}}
	v.compiler = jsonschema.NewCompiler()
	v.compiler.DefaultDraft(jsonschema.Draft2020)

	schemas := doc.Components.Schemas
	if schemas == nil {
		schemas = schema.NewOrderedMap[*schema.Node]()
	}
	v.components, v.compileErr = toJSONValue(map[string]any{"schemas": schemas})
	return v
}

// Validate checks value against n. References in n resolve to the
// document's components. It returns nil or Issues ordered by path, with
// object-level failures before those of nested values.
func (v *Validator) Validate(root string, n *schema.Node, value any) error {
	sch, err := v.schemaFor(n)
	if err != nil {
		return Issues{{Path: root, Code: CodeSchema, Message: err.Error()}}
	}
	inst, err := toJSONValue(value)
	if err != nil {
		return Issues{{Path: root, Code: CodeSchema, Message: err.Error()}}
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return Issues{{Path: root, Code: CodeSchema, Message: err.Error()}}
	}

	var found []located
	collect(verr, &found)
	if len(found) == 0 {
		found = append(found, located{Issue: Issue{Code: CodeSchema, Message: verr.ErrorKind.LocalizedString(printer)}})
	}
	slices.SortStableFunc(found, compareLocated)

	issues := make(Issues, len(found))
	for i, f := range found {
		f.Path = joinPath(root, f.loc)
		issues[i] = f.Issue
	}
	return issues
}

// schemaFor compiles n as a resource that carries the document's components,
// so "#/components/schemas/..." references resolve inside it.
func (v *Validator) schemaFor(n *schema.Node) (*jsonschema.Schema, error) {
	if v.compileErr != nil {
		return nil, v.compileErr
	}
	if n == nil {
		n = &schema.Node{}
	}
	key, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.compiled[string(key)]; ok {
		return sch, nil
	}

	res, err := toJSONValue(n)
	if err != nil {
		return nil, err
	}
	obj, ok := res.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema is not an object")
	}
	obj["components"] = v.components

	v.next++
	url := fmt.Sprintf("https://tsrpc.invalid/schemas/%d.json", v.next)
	if err := v.compiler.AddResource(url, obj); err != nil {
		return nil, err
	}
	sch, err := v.compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	v.compiled[string(key)] = sch
	return sch, nil
}

// toJSONValue converts v to the value model the schema compiler expects.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

type located struct {
	Issue
	loc []string
	// rank orders issues of one location: required, unknown keys, the rest.
	rank int
}

// collect flattens a validation error tree into ajv style issues. A failed
// anyOf is reported once at its location.
func collect(e *jsonschema.ValidationError, out *[]located) {
	loc := e.InstanceLocation
	switch k := e.ErrorKind.(type) {
	case *kind.AnyOf:
		*out = append(*out, located{Issue: Issue{Code: CodeNoMatch, Message: "must match a schema in anyOf"}, loc: loc, rank: 2})
		return
	case *kind.Type:
		*out = append(*out, located{Issue: Issue{Code: CodeInvalidType, Message: "must be " + strings.Join(k.Want, ",")}, loc: loc, rank: 2})
		return
	case *kind.Required:
		for _, name := range k.Missing {
			*out = append(*out, located{Issue: Issue{Code: CodeRequired, Message: fmt.Sprintf("must have required property '%s'", name)}, loc: loc})
		}
		return
	case *kind.AdditionalProperties:
		for _, name := range k.Properties {
			*out = append(*out, located{Issue: Issue{Code: CodeUnknownKey, Message: fmt.Sprintf("must NOT have additional property '%s'", name)}, loc: loc, rank: 1})
		}
		return
	}
	if len(e.Causes) == 0 {
		*out = append(*out, located{Issue: Issue{Code: CodeSchema, Message: e.ErrorKind.LocalizedString(printer)}, loc: loc, rank: 2})
		return
	}
	for _, c := range e.Causes {
		collect(c, out)
	}
}

func compareLocated(a, b located) int {
	for i := 0; i < len(a.loc) && i < len(b.loc); i++ {
		if c := compareSegment(a.loc[i], b.loc[i]); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(len(a.loc), len(b.loc)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.rank, b.rank); c != 0 {
		return c
	}
	return strings.Compare(a.Message, b.Message)
}

// compareSegment orders array indexes numerically and keys lexically.
func compareSegment(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return cmp.Compare(ai, bi)
	}
	return strings.Compare(a, b)
}

func joinPath(root string, loc []string) string {
	if len(loc) == 0 {
		return root
	}
	return root + "/" + strings.Join(loc, "/")
}
