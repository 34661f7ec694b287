package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/shipq/tsrpc/openapi"
)

type user struct {
	Name string  `json:"name"`
	Age  float64 `json:"age"`
}

type node struct {
	ID    string  `json:"id"`
	Nodes []*node `json:"nodes"`
}

func loadDoc(t *testing.T) *openapi.Document {
	t.Helper()
	data, err := os.ReadFile("testdata/openapi.json")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := openapi.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// newTestServer binds the four fixture methods over an in-memory user list.
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	var (
		mu    sync.Mutex
		users = []user{{"Alice", 30}, {"Bob", 25}, {"Charlie", 35}}
	)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s := NewServer(loadDoc(t), opts...)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(Handle(s, "addUser", func(ctx context.Context, args struct {
		User user `json:"user"`
	}) (struct{}, error) {
		mu.Lock()
		defer mu.Unlock()
		users = append(users, args.User)
		return struct{}{}, nil
	}))
	must(Handle(s, "getUsers", func(ctx context.Context, args struct {
		MaxAge float64 `json:"maxAge"`
	}) ([]user, error) {
		mu.Lock()
		defer mu.Unlock()
		out := []user{}
		for _, u := range users {
			if u.Age <= args.MaxAge {
				out = append(out, u)
			}
		}
		return out, nil
	}))
	must(Handle(s, "getGroupByName", func(ctx context.Context, args struct {
		Name string `json:"name"`
	}) (any, error) {
		if args.Name == "missing" {
			return nil, NotFound("group not found")
		}
		if args.Name == "broken" {
			return nil, errors.New("database is down")
		}
		if args.Name == "invalid" {
			return map[string]any{"name": 1}, nil
		}
		return map[string]any{"name": args.Name, "users": users}, nil
	}))
	must(HandleNoArgs(s, "getRecursiveNode", func(ctx context.Context) (*node, error) {
		return &node{ID: "root", Nodes: []*node{
			nil,
			{ID: "node-1", Nodes: []*node{nil, {ID: "node-2", Nodes: []*node{}}}},
			{ID: "node-3", Nodes: []*node{}},
		}}, nil
	}))
	return s
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var decoded map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	return rr, decoded
}

func TestServerCallsHandlers(t *testing.T) {
	s := newTestServer(t)

	rr, _ := post(t, s, "/rpc/getUsers", `{"maxAge":30}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var got []user
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := []user{{"Alice", 30}, {"Bob", 25}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("users = %v", got)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	rr, _ = post(t, s, "/rpc/addUser", `{"user":{"name":"Dan","age":20}}`)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "{}" {
		t.Fatalf("addUser: %d %s", rr.Code, rr.Body)
	}
	rr, _ = post(t, s, "/rpc/getUsers", `{"maxAge":20}`)
	if !strings.Contains(rr.Body.String(), "Dan") {
		t.Errorf("added user missing: %s", rr.Body)
	}
}

func TestServerNoArgsIgnoresBody(t *testing.T) {
	s := newTestServer(t, WithResponseValidation())
	for _, body := range []string{"", "{}", `{"anything":true}`} {
		rr, decoded := post(t, s, "/rpc/getRecursiveNode", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("body %q: status %d: %s", body, rr.Code, rr.Body)
		}
		if decoded["id"] != "root" {
			t.Errorf("body %q: %v", body, decoded)
		}
	}
}

func TestServerValidationErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"wrong type", "/rpc/getUsers", `{"maxAge":"string"}`, "body/maxAge must be number"},
		{"missing field", "/rpc/getUsers", `{}`, "body must have required property 'maxAge'"},
		{"extra field", "/rpc/getUsers", `{"maxAge":1,"minAge":0}`, "body must NOT have additional property 'minAge'"},
		{"nested", "/rpc/addUser", `{"user":{"name":"x","age":true}}`, "body/user/age must be number"},
		{"empty body", "/rpc/getUsers", ``, "body must be object"},
		{"not an object", "/rpc/getUsers", `[1]`, "body must be object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, decoded := post(t, s, tt.path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			want := map[string]any{
				"statusCode": float64(400),
				"code":       CodeValidation,
				"error":      "Bad Request",
				"message":    tt.message,
			}
			for k, v := range want {
				if decoded[k] != v {
					t.Errorf("%s = %v, want %v", k, decoded[k], v)
				}
			}
		})
	}
}

func TestServerInvalidJSON(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{
		`{"maxAge":`,
		`{"maxAge":30}{"maxAge":"x"}`,
		`{"maxAge":30} trailing`,
	} {
		rr, decoded := post(t, s, "/rpc/getUsers", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", body, rr.Code)
		}
		if decoded["message"] != "body is not valid JSON" {
			t.Errorf("%s: message = %v", body, decoded["message"])
		}
	}

	rr, _ := post(t, s, "/rpc/getUsers", "{\"maxAge\":30}\n")
	if rr.Code != http.StatusOK {
		t.Errorf("trailing whitespace: status = %d", rr.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"n": 1.5}`))
	if err != nil {
		t.Fatal(err)
	}
	// numbers stay as json.Number
	if n, ok := v.(map[string]any)["n"].(interface{ String() string }); !ok || n.String() != "1.5" {
		t.Errorf("n = %#v", v)
	}
	if v, err := DecodeJSON([]byte("  \n")); err != nil || v != nil {
		t.Errorf("empty body = %v, %v", v, err)
	}
	if _, err := DecodeJSON([]byte(`1 2`)); err == nil {
		t.Error("expected error for trailing value")
	}
}

func TestServerHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	rr, decoded := post(t, s, "/rpc/getGroupByName", `{"name":"missing"}`)
	if rr.Code != http.StatusNotFound || decoded["message"] != "group not found" {
		t.Errorf("rpc error: %d %v", rr.Code, decoded)
	}

	rr, decoded = post(t, s, "/rpc/getGroupByName", `{"name":"broken"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "database") {
		t.Error("internal error details leaked")
	}
	if decoded["error"] != "Internal Server Error" {
		t.Errorf("error = %v", decoded["error"])
	}
}

func TestServerResponseValidation(t *testing.T) {
	body := `{"name":"invalid"}`

	rr, _ := post(t, newTestServer(t), "/rpc/getGroupByName", body)
	if rr.Code != http.StatusOK {
		t.Errorf("without response validation: status = %d", rr.Code)
	}

	rr, decoded := post(t, newTestServer(t, WithResponseValidation()), "/rpc/getGroupByName", body)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if decoded["code"] != CodeValidation {
		t.Errorf("code = %v", decoded["code"])
	}
	if msg, _ := decoded["message"].(string); !strings.HasPrefix(msg, "response") {
		t.Errorf("message = %q", msg)
	}
}

func TestServerRouting(t *testing.T) {
	s := newTestServer(t)

	rr, _ := post(t, s, "/rpc/nope", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown method: %d", rr.Code)
	}
	rr, _ = post(t, s, "/other/getUsers", `{"maxAge":1}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("outside prefix: %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/rpc/getUsers", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Errorf("GET: %d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}

	custom := NewServer(loadDoc(t), WithPrefix("/api/"), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	rr, _ = post(t, custom, "/api/getUsers", `{"maxAge":1}`)
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("unbound method: %d", rr.Code)
	}
}

func TestBindErrors(t *testing.T) {
	s := NewServer(loadDoc(t))
	noop := func(ctx context.Context, args struct{}) (struct{}, error) { return struct{}{}, nil }
	if err := Handle(s, "missing", noop); err == nil {
		t.Error("expected error for unknown method")
	}
	if err := Handle(s, "getRecursiveNode", noop); err == nil {
		t.Error("expected error binding args to a no-arg method")
	}
	if err := HandleNoArgs(s, "getUsers", func(ctx context.Context) (int, error) { return 0, nil }); err == nil {
		t.Error("expected error binding a no-arg handler to getUsers")
	}
	want := "addUser,getGroupByName,getRecursiveNode,getUsers"
	if got := strings.Join(s.Methods(), ","); got != want {
		t.Errorf("methods = %s", got)
	}
}

func TestRequestsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(loadDoc(t), WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	post(t, s, "/rpc/getUsers", `{"maxAge":1}`)
	if !strings.Contains(buf.String(), "request_completed") || !strings.Contains(buf.String(), "/rpc/getUsers") {
		t.Errorf("log output = %s", buf.String())
	}
}
