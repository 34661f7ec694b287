package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	tcli "github.com/shipq/tsrpc/cli"
	"github.com/shipq/tsrpc/openapi"
	"github.com/shipq/tsrpc/rpc"
)

// errInvalid is returned when the input does not match the schema.
var errInvalid = errors.New("input does not match the schema")

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check a JSON value against a method's schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Usage: "generated document (json or yaml)", Required: true},
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "method name", Required: true},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "JSON file to check (default: stdin)"},
			&cli.BoolFlag{Name: "response", Usage: "check against the return schema instead of the arguments"},
		},
		Action: runValidate,
	}
}

func runValidate(c *cli.Context) error {
	data, err := os.ReadFile(c.String("doc"))
	if err != nil {
		return err
	}
	doc, err := openapi.Decode(data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.String("doc"), err)
	}

	name := c.String("method")
	var method *openapi.Method
	for _, m := range doc.Methods() {
		if m.Name == name {
			method = &m
			break
		}
	}
	if method == nil {
		return fmt.Errorf("method %q is not in %s", name, c.String("doc"))
	}

	root, target := "body", method.Args
	if c.Bool("response") {
		root, target = "response", method.Return
	}
	if target == nil {
		return fmt.Errorf("method %q takes no arguments", name)
	}

	var input []byte
	if p := c.String("input"); p != "" {
		input, err = os.ReadFile(p)
	} else {
		input, err = io.ReadAll(c.App.Reader)
	}
	if err != nil {
		return err
	}
	value, err := rpc.DecodeJSON(input)
	if err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}

	if err := rpc.NewValidator(doc).Validate(root, target, value); err != nil {
		var issues rpc.Issues
		if errors.As(err, &issues) {
			for _, is := range issues {
				tcli.Warn(is.String())
			}
		}
		return errInvalid
	}
	tcli.Successf("%s matches %s", root, name)
	return nil
}
