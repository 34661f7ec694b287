// Package generator runs the whole compilation pipeline: load the program,
// extract RPC methods, lower their types and assemble the document.
package generator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shipq/tsrpc/extract"
	"github.com/shipq/tsrpc/lower"
	"github.com/shipq/tsrpc/openapi"
	"github.com/shipq/tsrpc/program"
	"github.com/shipq/tsrpc/schema"
)

// Options configure one generation run.
type Options struct {
	// TSConfig, Entry and Dir locate the project; see program.Options.
	TSConfig string
	Entry    string
	Dir      string

	Info    openapi.Info
	Servers []openapi.Server

	// Cache reuses parsed files between runs.
	Cache  *program.FileCache
	Logger *slog.Logger
}

// MethodSchemas is the runtime schema pair of one method: the bodies
// registered under its synthetic names. Args is nil for methods without
// arguments.
type MethodSchemas struct {
	Name   string
	Args   *schema.Node
	Return *schema.Node
}

// Result is the output of one run.
type Result struct {
	Document *openapi.Document
	Methods  []MethodSchemas
	// ConfigPath is the tsconfig.json the run used.
	ConfigPath string
	// Files are the source files the run read.
	Files []string
}

// Generate runs the pipeline once with a fresh registry. Nothing is returned
// on error; there is no partial document.
func Generate(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	prog, err := program.Load(program.Options{
		TSConfig: opts.TSConfig,
		Entry:    opts.Entry,
		Dir:      opts.Dir,
		Cache:    opts.Cache,
	})
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	logger.Debug("program loaded", "config", prog.ConfigPath, "entry", prog.Entry, "files", len(prog.Files()))

	methods, err := extract.Extract(prog)
	if err != nil {
		return nil, fmt.Errorf("extracting methods: %w", err)
	}

	reg := schema.NewRegistry()
	engine := lower.NewEngine(prog, reg)
	endpoints := make([]openapi.Endpoint, 0, len(methods))
	names := make([]lower.MethodNames, 0, len(methods))
	for _, m := range methods {
		n, err := engine.LowerMethod(m)
		if err != nil {
			return nil, fmt.Errorf("lowering %s: %w", m.Name, err)
		}
		names = append(names, n)
		endpoints = append(endpoints, openapi.Endpoint{
			Method:       m.Name,
			Summary:      m.Doc,
			ArgsSchema:   n.Args,
			ReturnSchema: n.Return,
		})
		logger.Debug("method lowered", "method", m.Name, "args", n.Args != "", "pos", m.Pos.String())
	}

	doc := openapi.Assemble(opts.Info, opts.Servers, endpoints, reg)

	res := &Result{Document: doc, ConfigPath: prog.ConfigPath, Files: prog.Files()}
	for i, m := range methods {
		ms := MethodSchemas{Name: m.Name}
		if names[i].Args != "" {
			ms.Args, _ = reg.Resolve(names[i].Args)
		}
		ms.Return, _ = reg.Resolve(names[i].Return)
		res.Methods = append(res.Methods, ms)
	}

	logger.Info("document generated",
		"methods", len(methods),
		"schemas", reg.Len(),
		"duration", time.Since(start),
	)
	return res, nil
}
