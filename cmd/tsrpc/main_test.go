package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tcli "github.com/shipq/tsrpc/cli"
	"github.com/shipq/tsrpc/extract"
	"github.com/shipq/tsrpc/generator"
)

const appTSConfig = "../../generator/testdata/app/tsconfig.json"

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr := tcli.Stdout, tcli.Stderr
	tcli.Stdout, tcli.Stderr = &out, &errOut
	t.Cleanup(func() { tcli.Stdout, tcli.Stderr = oldOut, oldErr })

	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	err := app.RunContext(context.Background(), append([]string{"tsrpc"}, args...))
	return out.String(), errOut.String(), err
}

func TestGenerateWritesDocument(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "openapi.json")

	stdout, _, err := run(t, "generate", "--ts-config", appTSConfig, "--path", outPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(stdout, "wrote "+outPath+" (4 methods)") {
		t.Errorf("stdout = %q", stdout)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile("../../generator/testdata/app/openapi.json")
	if err != nil {
		t.Fatal(err)
	}
	var gotDoc, wantDoc map[string]any
	if err := json.Unmarshal(got, &gotDoc); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(want, &wantDoc); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gotDoc, wantDoc) {
		t.Errorf("document mismatch:\n%s", got)
	}

	stdout, _, err = run(t, "generate", "--ts-config", appTSConfig, "--path", outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "is up to date") {
		t.Errorf("second run stdout = %q", stdout)
	}
}

func TestGenerateYAML(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "openapi.yaml")
	if _, _, err := run(t, "generate", "--ts-config", appTSConfig, "--path", outPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "openapi: 3.0.0\n") {
		t.Errorf("yaml output starts with %q", string(data[:min(40, len(data))]))
	}
}

func TestGenerateFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	tsconfig, err := filepath.Abs(appTSConfig)
	if err != nil {
		t.Fatal(err)
	}
	cfg := "tsconfig: " + tsconfig + "\noutput:\n  path: docs/api.json\nopenapi:\n  title: From Config\n"
	if err := os.WriteFile(filepath.Join(dir, "tsrpc.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := run(t, "generate", "--config", dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "docs", "api.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"title": "From Config"`) {
		t.Errorf("title not applied:\n%s", data)
	}
}

func TestGenerateConfigDirWithoutFile(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := run(t, "generate", "--config", dir, "--ts-config", appTSConfig); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "openapi.json")); err != nil {
		t.Errorf("default output not written under the config directory: %v", err)
	}
}

func TestWatchPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte(`{"compilerOptions":{"rootDir":"src"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	// The entry does not exist yet; its directory is still watched.
	got := watchPaths(generator.Options{Dir: dir})
	want := []string{filepath.Join(dir, "tsconfig.json"), filepath.Join(dir, "src", "index.ts")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	empty := t.TempDir()
	got = watchPaths(generator.Options{Dir: empty, TSConfig: filepath.Join(empty, "missing.json")})
	if len(got) != 1 || filepath.Dir(got[0]) != empty {
		t.Errorf("fallback = %v", got)
	}
}

func TestGenerateReportsErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	src := "export async function f(a: string, b: string): Promise<void> {}\n"
	if err := os.WriteFile(filepath.Join(dir, "index.ts"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := run(t, "generate", "--ts-config", filepath.Join(dir, "tsconfig.json"), "--path", filepath.Join(dir, "out.json"))
	var sigErr *extract.UnsupportedSignatureError
	if !errors.As(err, &sigErr) || sigErr.Method != "f" {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.json")); !os.IsNotExist(statErr) {
		t.Error("no document should be written on error")
	}

	if _, _, err := run(t, "generate", "--ts-config", appTSConfig, "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	doc := "../../generator/testdata/app/openapi.json"

	stdout, _, err := run(t, "validate", "--doc", doc, "--method", "getUsers", "--input", write("ok.json", `{"maxAge":30}`))
	if err != nil {
		t.Fatalf("valid input: %v", err)
	}
	if !strings.Contains(stdout, "body matches getUsers") {
		t.Errorf("stdout = %q", stdout)
	}

	_, stderr, err := run(t, "validate", "--doc", doc, "--method", "getUsers", "--input", write("bad.json", `{"maxAge":"string"}`))
	if !errors.Is(err, errInvalid) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr, "warning: body/maxAge must be number") {
		t.Errorf("stderr = %q", stderr)
	}

	input := write("node.json", `{"id":"root","nodes":[null,{"id":"a","nodes":[]}]}`)
	if _, _, err := run(t, "validate", "--doc", doc, "--method", "getRecursiveNode", "--response", "--input", input); err != nil {
		t.Errorf("response: %v", err)
	}
	if _, _, err := run(t, "validate", "--doc", doc, "--method", "getRecursiveNode", "--input", input); err == nil {
		t.Error("getRecursiveNode has no argument schema")
	}
	if _, _, err := run(t, "validate", "--doc", doc, "--method", "nope", "--input", input); err == nil {
		t.Error("expected unknown method error")
	}
}
