// Package openapi assembles lowered method schemas into an OpenAPI 3.0
// document and reads and writes that document.
package openapi

import "github.com/shipq/tsrpc/schema"

// Version is the OpenAPI version written to every document.
const Version = "3.0.0"

// Defaults for the info block.
const (
	DefaultTitle   = "Platformatic RPC"
	DefaultVersion = "1.0.0"
)

const jsonContent = "application/json"

type Document struct {
	OpenAPI    string                        `json:"openapi" yaml:"openapi"`
	Info       Info                          `json:"info" yaml:"info"`
	Servers    []Server                      `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths      *schema.OrderedMap[*PathItem] `json:"paths" yaml:"paths"`
	Components Components                    `json:"components" yaml:"components"`
}

type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Server struct {
	URL string `json:"url" yaml:"url"`
}

type PathItem struct {
	Post *Operation `json:"post,omitempty" yaml:"post,omitempty"`
}

type Operation struct {
	OperationID string               `json:"operationId" yaml:"operationId"`
	Summary     string               `json:"summary,omitempty" yaml:"summary,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses" yaml:"responses"`
}

type RequestBody struct {
	Content map[string]*MediaType `json:"content" yaml:"content"`
}

type Response struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type MediaType struct {
	Schema *schema.Node `json:"schema" yaml:"schema"`
}

type Components struct {
	Schemas *schema.OrderedMap[*schema.Node] `json:"schemas" yaml:"schemas"`
}

// Endpoint is one method ready for assembly. ArgsSchema is empty for
// methods without arguments.
type Endpoint struct {
	Method       string
	Summary      string
	ArgsSchema   string
	ReturnSchema string
}

// Assemble builds the document: one POST path per endpoint in the given
// order and every registered schema as a component.
func Assemble(info Info, servers []Server, endpoints []Endpoint, reg *schema.Registry) *Document {
	if info.Title == "" {
		info.Title = DefaultTitle
	}
	if info.Version == "" {
		info.Version = DefaultVersion
	}
	doc := &Document{
		OpenAPI:    Version,
		Info:       info,
		Servers:    servers,
		Paths:      schema.NewOrderedMap[*PathItem](),
		Components: Components{Schemas: reg.Schemas()},
	}

	for _, ep := range endpoints {
		op := &Operation{
			OperationID: ep.Method,
			Summary:     ep.Summary,
			Responses: map[string]*Response{
				"200": {
					Description: "Success",
					Content:     map[string]*MediaType{jsonContent: {Schema: schema.Ref(ep.ReturnSchema)}},
				},
			},
		}
		if ep.ArgsSchema != "" {
			op.RequestBody = &RequestBody{
				Content: map[string]*MediaType{jsonContent: {Schema: schema.Ref(ep.ArgsSchema)}},
			}
		}
		doc.Paths.Set("/"+ep.Method, &PathItem{Post: op})
	}
	return doc
}

// Schema returns the component registered under name.
func (d *Document) Schema(name string) (*schema.Node, bool) {
	if d.Components.Schemas == nil {
		return nil, false
	}
	return d.Components.Schemas.Get(name)
}

// Method is the schema pair of one operation as found in a document.
type Method struct {
	Name   string
	Path   string
	Args   *schema.Node // nil when the operation has no request body
	Return *schema.Node
}

// Methods lists the POST operations of the document in path order.
func (d *Document) Methods() []Method {
	var out []Method
	d.Paths.Each(func(path string, item *PathItem) {
		if item == nil || item.Post == nil {
			return
		}
		m := Method{Name: item.Post.OperationID, Path: path}
		if rb := item.Post.RequestBody; rb != nil && rb.Content[jsonContent] != nil {
			m.Args = rb.Content[jsonContent].Schema
		}
		if resp := item.Post.Responses["200"]; resp != nil && resp.Content[jsonContent] != nil {
			m.Return = resp.Content[jsonContent].Schema
		}
		out = append(out, m)
	})
	return out
}
