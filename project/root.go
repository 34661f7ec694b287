// Package project locates tsconfig.json and tsrpc.yaml by walking up
// from a directory.
package project

import (
	"os"
	"path/filepath"
)

const (
	TSConfigFile = "tsconfig.json"
	ConfigFile   = "tsrpc.yaml"
)

// FindFileFrom walks up from startDir and returns the absolute path of the
// first regular file called name. It returns an error wrapping
// os.ErrNotExist when the filesystem root is reached without a match.
func FindFileFrom(startDir, name string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &os.PathError{Op: "find", Path: name, Err: os.ErrNotExist}
		}
		dir = parent
	}
}

// HasConfig reports whether dir contains a tsrpc.yaml.
func HasConfig(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFile))
	return err == nil
}
