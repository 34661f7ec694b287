package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shipq/tsrpc/openapi"
)

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for missing tsrpc.yaml")
	}
	if !strings.Contains(err.Error(), "tsrpc.yaml not found") {
		t.Errorf("error should mention 'tsrpc.yaml not found', got: %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tsrpc.yaml", "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Found {
		t.Error("Found should be set")
	}
	if cfg.Output.Path != "openapi.json" {
		t.Errorf("expected default output path, got %q", cfg.Output.Path)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("expected default debounce, got %s", cfg.Watch.Debounce)
	}
	if cfg.Format() != openapi.FormatJSON {
		t.Errorf("format = %s", cfg.Format())
	}
}

func TestLoad_AllSections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tsrpc.yaml", `
tsconfig: app/tsconfig.json
entry: app/src/index.ts
log_level: debug
output:
  path: s3://docs/api/openapi.yaml
openapi:
  title: Users API
  version: 2.1.0
  description: user management
  servers:
    - https://api.example.com
    - http://localhost:3042
s3:
  region: eu-west-1
  endpoint: http://localhost:9000
  force_path_style: true
watch:
  debounce: 1s
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Resolve(cfg.TSConfig) != filepath.Join(dir, "app", "tsconfig.json") {
		t.Errorf("tsconfig = %q", cfg.Resolve(cfg.TSConfig))
	}
	if cfg.Resolve(cfg.Output.Path) != "s3://docs/api/openapi.yaml" {
		t.Errorf("s3 paths must not be resolved: %q", cfg.Resolve(cfg.Output.Path))
	}
	if cfg.Format() != openapi.FormatYAML {
		t.Errorf("format should follow the extension, got %s", cfg.Format())
	}
	info := cfg.Info()
	if info.Title != "Users API" || info.Version != "2.1.0" || info.Description != "user management" {
		t.Errorf("info = %+v", info)
	}
	servers := cfg.Servers()
	if len(servers) != 2 || servers[1].URL != "http://localhost:3042" {
		t.Errorf("servers = %+v", servers)
	}
	if cfg.S3.Region != "eu-west-1" || !cfg.S3.ForcePathStyle || cfg.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("s3 = %+v", cfg.S3)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("debounce = %s", cfg.Watch.Debounce)
	}
}

func TestLoad_ExplicitFormatWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tsrpc.yaml", "output:\n  path: out.json\n  format: yaml\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Format() != openapi.FormatYAML {
		t.Errorf("format = %s", cfg.Format())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "outptu:\n  path: x.json\n", "field outptu not found"},
		{"bad format", "output:\n  format: xml\n", "output.format"},
		{"empty path", "output:\n  path: \"  \"\n", "output.path cannot be empty"},
		{"bad level", "log_level: chatty\n", "log_level"},
		{"negative debounce", "watch:\n  debounce: -1s\n", "watch.debounce"},
		{"bad duration", "watch:\n  debounce: soon\n", "failed to parse"},
		{"empty server", "openapi:\n  servers: [\"\"]\n", "openapi.servers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "tsrpc.yaml", tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	t.Run("walks up", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "tsrpc.yaml", "openapi:\n  title: Found\n")
		nested := filepath.Join(root, "src", "deep")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}

		cfg, err := Discover(nested)
		if err != nil {
			t.Fatal(err)
		}
		if !cfg.Found || cfg.OpenAPI.Title != "Found" {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.ConfigDir != root {
			t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, root)
		}
	})

	t.Run("defaults without file", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Discover(dir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Found {
			t.Error("Found should be false")
		}
		if cfg.ConfigDir != dir {
			t.Errorf("ConfigDir = %q", cfg.ConfigDir)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "TSRPC_S3_ACCESS_KEY_ID=from-dotenv\nTSRPC_S3_SECRET_ACCESS_KEY=secret\n")
	t.Setenv("TSRPC_S3_ACCESS_KEY_ID", "")
	t.Setenv("TSRPC_S3_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_REGION", "ap-south-1")
	os.Unsetenv("TSRPC_S3_ACCESS_KEY_ID")
	os.Unsetenv("TSRPC_S3_SECRET_ACCESS_KEY")

	cfg := Default(dir)
	if err := cfg.LoadEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.S3.AccessKeyID != "from-dotenv" || cfg.S3.SecretAccessKey != "secret" {
		t.Errorf("s3 = %+v", cfg.S3)
	}
	if cfg.S3.Region != "ap-south-1" {
		t.Errorf("region = %q", cfg.S3.Region)
	}
}

func TestLoadEnv_ConfigOverridesEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "from-env")
	t.Setenv("TSRPC_S3_ACCESS_KEY_ID", "")

	cfg := Default(t.TempDir())
	cfg.S3.AccessKeyID = "from-config"
	if err := cfg.LoadEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.S3.AccessKeyID != "from-config" {
		t.Errorf("access key = %q", cfg.S3.AccessKeyID)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("expected false before creating tsrpc.yaml")
	}
	writeFile(t, dir, "tsrpc.yaml", "")
	if !Exists(dir) {
		t.Error("expected true after creating tsrpc.yaml")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}
