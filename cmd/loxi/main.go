// Command loxi runs and debugs Lox scripts. Grounded on
// _examples/wudi-hey/cmd/hey/main.go's urfave/cli/v3 command tree and
// _examples/original_source/clox/src/main.c's flag set, REPL and exit codes.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/loxlang/loxvm/vm"
)

const loxiVersion = "0.1.0"

func main() {
	app := &cli.Command{
		Name:      "loxi",
		Usage:     "a bytecode interpreter and debugger for Lox",
		ArgsUsage: "[file...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "d", Usage: "start halted in the debugger"},
			&cli.StringFlag{Name: "D", Usage: "start halted and run debugger commands from `FILE`"},
			&cli.BoolFlag{Name: "v", Usage: "print version"},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "***%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("v") {
		fmt.Println("loxi version", loxiVersion)
		return nil
	}

	startHalted := cmd.Bool("d")
	var initCommands []string
	if dbgFile := cmd.String("D"); dbgFile != "" {
		data, err := os.ReadFile(dbgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "***Debugger commands file not found %s.\n", dbgFile)
			os.Exit(74)
		}
		initCommands = strings.Split(string(data), "\n")
		startHalted = true
	}

	rl, err := readline.New("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "***Failed to start line editor: %v\n", err)
		os.Exit(70)
	}
	defer rl.Close()

	args := cmd.Args().Slice()
	if len(args) == 0 {
		repl(rl, startHalted, initCommands)
		return nil
	}

	for _, path := range args {
		if code := runFile(rl, path, startHalted, initCommands); code != 0 {
			rl.Close()
			os.Exit(code)
		}
	}
	return nil
}

// readLineFunc adapts a readline.Instance to the signature vm.Debugger.ReadLine
// wants, so the debugger package never imports a line-editing library itself.
func readLineFunc(rl *readline.Instance) func(prompt string) (string, bool) {
	return func(prompt string) (string, bool) {
		rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if err != nil {
			return "", false
		}
		return line, true
	}
}

func runInitCommands(dbg *vm.Debugger, lines []string) {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			dbg.HandleCommand(line)
		}
	}
}

// runFile loads and runs path as the entry module (main.c's runFile),
// returning the process exit code spec §6.3 assigns to the outcome.
func runFile(rl *readline.Instance, path string, startHalted bool, initCommands []string) int {
	machine := vm.New(vm.Options{Out: os.Stdout})
	machine.SetLoader(vm.FileLoader{Root: filepath.Dir(path)})

	dbg := vm.NewDebugger(machine, os.Stdout)
	dbg.ReadLine = readLineFunc(rl)
	runInitCommands(dbg, initCommands)
	if startHalted {
		dbg.State = vm.DbgHalt
	}

	_, err := machine.LoadMain(path)
	return reportExitCode(err)
}

func reportExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ce, ok := err.(*vm.CompileError); ok {
		fmt.Fprintln(os.Stderr, ce.Error())
		return 65
	}
	fmt.Fprintln(os.Stderr, err.Error())
	return 70
}

// repl runs an interactive read-compile-run loop against one persistent
// module, mirroring main.c's repl(): every line is compiled and executed
// against the same module, so an export or an already-imported module
// survives from one line to the next. Plain top-level locals don't — each
// line is its own top-level function whose frame is gone once it returns,
// so `var x = 1;` on one line leaves x out of scope on the next.
func repl(rl *readline.Instance, startHalted bool, initCommands []string) {
	fmt.Println("loxi repl. Press Ctrl-D to exit.")

	machine := vm.New(vm.Options{Out: os.Stdout})
	machine.SetLoader(vm.FileLoader{})
	mod := machine.NewMainModule("<repl>")

	dbg := vm.NewDebugger(machine, os.Stdout)
	dbg.ReadLine = readLineFunc(rl)
	runInitCommands(dbg, initCommands)
	if startHalted {
		dbg.State = vm.DbgHalt
	}

	rl.SetPrompt("> ")
	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := machine.RunSource(mod, line); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}
