package main

import (
	"bytes"
	"testing"

	"github.com/loxlang/loxvm/compiler"
	"github.com/loxlang/loxvm/vm"
)

func TestReportExitCode_Success(t *testing.T) {
	if code := reportExitCode(nil); code != 0 {
		t.Fatalf("want 0, got %d", code)
	}
}

func TestReportExitCode_CompileError(t *testing.T) {
	err := &vm.CompileError{Errs: []compiler.CompileError{{Line: 1, Message: "bad"}}}
	if code := reportExitCode(err); code != 65 {
		t.Fatalf("want 65, got %d", code)
	}
}

func TestReportExitCode_RuntimeError(t *testing.T) {
	err := &vm.RuntimeError{Message: "boom"}
	if code := reportExitCode(err); code != 70 {
		t.Fatalf("want 70, got %d", code)
	}
}

func TestRunInitCommands_SkipsBlankLines(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(vm.Options{Out: &out})
	mod := machine.NewMainModule("<test>")
	if err := machine.RunSource(mod, "var x = 1;\nprint x;\n"); err != nil {
		t.Fatalf("unexpected compile/run error: %v", err)
	}

	dbg := vm.NewDebugger(machine, &out)

	// Blank/whitespace-only lines must not reach HandleCommand, matching
	// the debugger command file format where trailing newlines are common.
	runInitCommands(dbg, []string{"break <test>:1", "", "   ", "delete 1"})

	if len(dbg.Breakpoints) != 0 {
		t.Fatalf("want breakpoint deleted, got %d remaining", len(dbg.Breakpoints))
	}
}
