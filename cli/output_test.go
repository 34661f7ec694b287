package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/shipq/tsrpc/program"
)

func capture(t *testing.T) (out, errOut *bytes.Buffer, code *int) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	code = new(int)
	*code = -1
	oldOut, oldErr, oldExit := Stdout, Stderr, exit
	Stdout, Stderr = out, errOut
	exit = func(c int) { *code = c }
	t.Cleanup(func() { Stdout, Stderr, exit = oldOut, oldErr, oldExit })
	return out, errOut, code
}

func TestMessages(t *testing.T) {
	out, errOut, _ := capture(t)

	Info("plain")
	Successf("wrote %s", "openapi.json")
	Warnf("%d unchanged", 2)

	if out.String() != "plain\n✓ wrote openapi.json\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if errOut.String() != "warning: 2 unchanged\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestFatalErr(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		_, errOut, code := capture(t)
		FatalErr("generate", errors.New("boom"))
		if errOut.String() != "error: generate: boom\n" || *code != 1 {
			t.Errorf("stderr = %q, code = %d", errOut.String(), *code)
		}
	})

	t.Run("program diagnostics", func(t *testing.T) {
		_, errOut, code := capture(t)
		perr := &program.ProgramError{Diagnostics: []program.Diagnostic{
			{File: "index.ts", Line: 1, Column: 33, Message: "cannot find name 'Nope'"},
			{File: "a.ts", Line: 2, Column: 5, Message: "duplicate type 'User'"},
		}}
		FatalErr("generate", fmt.Errorf("loading program: %w", perr))
		want := "error: generate: 2 problem(s) in TypeScript program\n" +
			"  index.ts:1:33: cannot find name 'Nope'\n" +
			"  a.ts:2:5: duplicate type 'User'\n"
		if errOut.String() != want {
			t.Errorf("stderr = %q", errOut.String())
		}
		if *code != 1 {
			t.Errorf("code = %d", *code)
		}
	})
}
