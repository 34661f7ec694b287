// Package rpc hosts Go implementations of the methods described by a
// generated document. Each method is served at POST <prefix>/<name>; request
// bodies are validated against the method's argument schema before the
// handler runs.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/shipq/tsrpc/logging"
	"github.com/shipq/tsrpc/openapi"
	"github.com/shipq/tsrpc/schema"
)

// DefaultPrefix is the URL prefix methods are mounted under.
const DefaultPrefix = "/rpc"

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// CodeValidation marks request and response validation failures.
const CodeValidation = "ERR_VALIDATION"

type callFunc func(ctx context.Context, body []byte) (any, error)

type endpoint struct {
	name string
	args *schema.Node // nil for methods without arguments
	ret  *schema.Node
	call callFunc
}

// Server is an http.Handler dispatching to bound methods. Bind every method
// with Handle or HandleNoArgs before serving.
type Server struct {
	prefix            string
	logger            *slog.Logger
	validateResponses bool
	validator         *Validator
	endpoints         map[string]*endpoint
	handler           http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix mounts methods under prefix instead of DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = strings.TrimSuffix(prefix, "/") }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithResponseValidation validates handler results against the return
// schema; mismatches are reported as 500.
func WithResponseValidation() Option {
	return func(s *Server) { s.validateResponses = true }
}

// NewServer creates a server for every operation in doc.
func NewServer(doc *openapi.Document, opts ...Option) *Server {
	s := &Server{
		prefix:    DefaultPrefix,
		logger:    slog.Default(),
		validator: NewValidator(doc),
		endpoints: map[string]*endpoint{},
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, m := range doc.Methods() {
		s.endpoints[m.Name] = &endpoint{name: m.Name, args: m.Args, ret: m.Return}
	}
	s.handler = logging.Decorate(nil, s.logger, http.HandlerFunc(s.serve))
	return s
}

// Methods returns the sorted names of the document's methods.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Server) bind(name string, wantArgs bool, call callFunc) error {
	ep, ok := s.endpoints[name]
	if !ok {
		return fmt.Errorf("rpc: method %q is not in the document", name)
	}
	switch {
	case wantArgs && ep.args == nil:
		return fmt.Errorf("rpc: method %q takes no arguments", name)
	case !wantArgs && ep.args != nil:
		return fmt.Errorf("rpc: method %q takes arguments", name)
	}
	ep.call = call
	return nil
}

// Handle binds fn to the method name. The validated request body is decoded
// into A.
func Handle[A, R any](s *Server, name string, fn func(context.Context, A) (R, error)) error {
	return s.bind(name, true, func(ctx context.Context, body []byte) (any, error) {
		var args A
		if err := json.Unmarshal(body, &args); err != nil {
			return nil, Wrap(http.StatusBadRequest, "body could not be decoded", err)
		}
		return fn(ctx, args)
	})
}

// HandleNoArgs binds fn to a method without arguments. Any request body is
// ignored.
func HandleNoArgs[R any](s *Server, name string, fn func(context.Context) (R, error)) error {
	return s.bind(name, false, func(ctx context.Context, _ []byte) (any, error) {
		return fn(ctx)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutPrefix(r.URL.Path, s.prefix+"/")
	ep := s.endpoints[name]
	if !ok || ep == nil {
		writeError(w, NotFound(fmt.Sprintf("Route %s:%s not found", r.Method, r.URL.Path)))
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, NewError(http.StatusMethodNotAllowed, "method must be POST"))
		return
	}
	if ep.call == nil {
		writeError(w, Errorf(http.StatusNotImplemented, "method %s is not implemented", name))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, Wrap(http.StatusRequestEntityTooLarge, "body too large", err))
		return
	}

	if ep.args != nil {
		value, err := DecodeJSON(body)
		if err != nil {
			writeError(w, Wrap(http.StatusBadRequest, "body is not valid JSON", err))
			return
		}
		if err := s.validator.Validate("body", ep.args, value); err != nil {
			writeError(w, validationError(http.StatusBadRequest, err))
			return
		}
	}

	result, err := ep.call(r.Context(), body)
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			s.logger.Error("handler failed", "method", name, "error", err)
			rpcErr = NewError(http.StatusInternalServerError, "internal error")
		}
		writeError(w, rpcErr)
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("encoding result", "method", name, "error", err)
		writeError(w, NewError(http.StatusInternalServerError, "result could not be encoded"))
		return
	}
	if s.validateResponses {
		value, err := DecodeJSON(data)
		if err == nil {
			err = s.validator.Validate("response", ep.ret, value)
		}
		if err != nil {
			s.logger.Error("invalid response", "method", name, "error", err)
			writeError(w, validationError(http.StatusInternalServerError, err))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DecodeJSON parses a single JSON value keeping numbers as json.Number. An
// empty body decodes to nil; data after the value is an error.
func DecodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the JSON value")
	}
	return v, nil
}

func validationError(status int, err error) *Error {
	msg := err.Error()
	var issues Issues
	if errors.As(err, &issues) {
		msg = issues[0].String()
	}
	return NewError(status, msg).WithCode(CodeValidation)
}

func writeError(w http.ResponseWriter, e *Error) {
	status := e.Status()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	data, err := json.Marshal(errorBody{
		StatusCode: status,
		Code:       e.Code(),
		Error:      http.StatusText(status),
		Message:    e.Message(),
	})
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
