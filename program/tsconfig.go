package program

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tailscale/hujson"
)

// CompilerOptions are the tsconfig.json settings that affect extraction.
type CompilerOptions struct {
	// RootDir is absolute; it defaults to the directory of tsconfig.json.
	RootDir string
	// StrictNullChecks is false only when the config disables it.
	StrictNullChecks bool
	// Files lists the absolute paths of the "files" entry.
	Files []string
}

type rawTSConfig struct {
	Extends         string   `json:"extends"`
	Files           []string `json:"files"`
	CompilerOptions struct {
		RootDir          *string `json:"rootDir"`
		Strict           *bool   `json:"strict"`
		StrictNullChecks *bool   `json:"strictNullChecks"`
	} `json:"compilerOptions"`
}

// tsconfig is one level of an extends chain with relative paths already
// made absolute.
type tsconfig struct {
	rootDir          *string
	strict           *bool
	strictNullChecks *bool
	files            []string
	hasFiles         bool
}

// LoadTSConfig reads path and every config it extends.
func LoadTSConfig(path string) (CompilerOptions, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return CompilerOptions{}, configErrorf(path, err, "cannot resolve path")
	}
	cfg, err := readTSConfig(abs, map[string]bool{})
	if err != nil {
		return CompilerOptions{}, err
	}

	opts := CompilerOptions{
		RootDir:          filepath.Dir(abs),
		StrictNullChecks: true,
		Files:            cfg.files,
	}
	if cfg.rootDir != nil {
		opts.RootDir = *cfg.rootDir
	}
	switch {
	case cfg.strictNullChecks != nil:
		opts.StrictNullChecks = *cfg.strictNullChecks
	case cfg.strict != nil:
		opts.StrictNullChecks = *cfg.strict
	}
	return opts, nil
}

func readTSConfig(path string, seen map[string]bool) (*tsconfig, error) {
	if seen[path] {
		return nil, configErrorf(path, nil, "circular extends")
	}
	seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf(path, err, "cannot read tsconfig")
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, configErrorf(path, err, "malformed tsconfig")
	}
	var raw rawTSConfig
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, configErrorf(path, err, "malformed tsconfig")
	}

	dir := filepath.Dir(path)
	cfg := &tsconfig{
		strict:           raw.CompilerOptions.Strict,
		strictNullChecks: raw.CompilerOptions.StrictNullChecks,
	}
	if raw.CompilerOptions.RootDir != nil {
		root := absFrom(dir, *raw.CompilerOptions.RootDir)
		cfg.rootDir = &root
	}
	if raw.Files != nil {
		cfg.hasFiles = true
		for _, f := range raw.Files {
			cfg.files = append(cfg.files, absFrom(dir, f))
		}
	}

	if raw.Extends == "" {
		return cfg, nil
	}
	parentPath, err := resolveExtends(dir, raw.Extends)
	if err != nil {
		return nil, configErrorf(path, err, "cannot resolve extends %q", raw.Extends)
	}
	parent, err := readTSConfig(parentPath, seen)
	if err != nil {
		return nil, err
	}
	return merge(parent, cfg), nil
}

// merge overlays child settings onto parent.
func merge(parent, child *tsconfig) *tsconfig {
	out := *parent
	if child.rootDir != nil {
		out.rootDir = child.rootDir
	}
	if child.strict != nil {
		out.strict = child.strict
	}
	if child.strictNullChecks != nil {
		out.strictNullChecks = child.strictNullChecks
	}
	if child.hasFiles {
		out.files = child.files
		out.hasFiles = true
	}
	return &out
}

func resolveExtends(dir, spec string) (string, error) {
	var candidates []string
	if strings.HasPrefix(spec, ".") || filepath.IsAbs(spec) {
		base := absFrom(dir, spec)
		candidates = append(candidates, base, base+".json")
	} else {
		// package configs such as "@tsconfig/node20/tsconfig.json"
		for d := dir; ; d = filepath.Dir(d) {
			base := filepath.Join(d, "node_modules", filepath.FromSlash(spec))
			candidates = append(candidates, base, base+".json", filepath.Join(base, "tsconfig.json"))
			if filepath.Dir(d) == d {
				break
			}
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", os.ErrNotExist
}

func absFrom(dir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
