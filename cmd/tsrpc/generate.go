package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	tcli "github.com/shipq/tsrpc/cli"
	"github.com/shipq/tsrpc/generator"
	"github.com/shipq/tsrpc/internal/config"
	"github.com/shipq/tsrpc/internal/sink"
	"github.com/shipq/tsrpc/internal/watch"
	"github.com/shipq/tsrpc/logging"
	"github.com/shipq/tsrpc/openapi"
	"github.com/shipq/tsrpc/program"
	"github.com/shipq/tsrpc/project"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "write the OpenAPI document for the entry module",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "tsrpc.yaml or the directory holding it"},
			&cli.StringFlag{Name: "ts-config", Usage: "tsconfig.json path"},
			&cli.StringFlag{Name: "entry", Usage: "entry module (default: tsconfig files[0] or <rootDir>/index.ts)"},
			&cli.StringFlag{Name: "path", Aliases: []string{"o"}, Usage: "output file or s3://bucket/key"},
			&cli.StringFlag{Name: "format", Usage: "json or yaml (default: from the output extension)"},
			&cli.StringFlag{Name: "title", Usage: "document title"},
			&cli.StringFlag{Name: "api-version", Usage: "document version"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "regenerate when sources change"},
		},
		Action: runGenerate,
	}
}

// loadConfig reads tsrpc.yaml and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p := c.String("config"); p != "" {
		dir := p
		if info, statErr := os.Stat(p); statErr == nil && !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if config.Exists(dir) {
			cfg, err = config.Load(dir)
		} else {
			cfg, err = config.Discover(dir)
		}
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		cfg, err = config.Discover(wd)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}

	// Flag paths are relative to the working directory, not ConfigDir.
	abs := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		return filepath.Abs(p)
	}
	if v := c.String("ts-config"); v != "" {
		if cfg.TSConfig, err = abs(v); err != nil {
			return nil, err
		}
	}
	if v := c.String("entry"); v != "" {
		if cfg.Entry, err = abs(v); err != nil {
			return nil, err
		}
	}
	if v := c.String("path"); v != "" {
		if strings.HasPrefix(v, "s3://") {
			cfg.Output.Path = v
		} else if cfg.Output.Path, err = abs(v); err != nil {
			return nil, err
		}
	}
	if v := c.String("format"); v != "" {
		if _, err := openapi.ParseFormat(v); err != nil {
			return nil, err
		}
		cfg.Output.Format = v
	}
	if v := c.String("title"); v != "" {
		cfg.OpenAPI.Title = v
	}
	if v := c.String("api-version"); v != "" {
		cfg.OpenAPI.Version = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Bool("json-log") {
		return logging.NewProdLogger(c.App.ErrWriter, level), nil
	}
	return logging.NewDevLogger(c.App.ErrWriter, level, os.Getenv("NO_COLOR") != ""), nil
}

func runGenerate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return err
	}

	format := cfg.Format()
	out, err := sink.Open(cfg.Resolve(cfg.Output.Path), format, sink.S3Options{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		ForcePathStyle:  cfg.S3.ForcePathStyle,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	cache, err := program.NewFileCache(program.DefaultCacheSize)
	if err != nil {
		return err
	}
	opts := generator.Options{
		TSConfig: cfg.Resolve(cfg.TSConfig),
		Entry:    cfg.Resolve(cfg.Entry),
		Dir:      cfg.ConfigDir,
		Info:     cfg.Info(),
		Servers:  cfg.Servers(),
		Cache:    cache,
		Logger:   logger,
	}

	build := func(ctx context.Context) ([]string, error) {
		res, err := generator.Generate(opts)
		if err != nil {
			return nil, err
		}
		data, err := openapi.Encode(res.Document, format)
		if err != nil {
			return nil, err
		}
		written, err := out.Write(ctx, data)
		if err != nil {
			return nil, err
		}
		if written {
			tcli.Successf("wrote %s (%d methods)", out, len(res.Methods))
		} else {
			tcli.Infof("%s is up to date", out)
		}
		return append(res.Files, res.ConfigPath), nil
	}

	if !c.Bool("watch") {
		_, err := build(c.Context)
		return err
	}

	tcli.Info("watching for changes (ctrl-c to stop)")
	return watch.Run(c.Context, watch.Options{
		Debounce: cfg.Watch.Debounce,
		Paths:    watchPaths(opts),
		Logger:   logger,
	}, func(ctx context.Context) ([]string, error) {
		files, err := build(ctx)
		if err != nil {
			// Keep watching the previous file set.
			tcli.PrintErr("generate", err)
			return nil, nil
		}
		return files, nil
	})
}

// watchPaths are the tsconfig.json and entry module a build would read. They
// stay watched while the sources do not compile.
func watchPaths(opts generator.Options) []string {
	paths, err := program.Locate(program.Options{
		TSConfig: opts.TSConfig,
		Entry:    opts.Entry,
		Dir:      opts.Dir,
	})
	if err != nil {
		return []string{filepath.Join(opts.Dir, project.TSConfigFile)}
	}
	return []string{paths.ConfigPath, paths.Entry}
}
