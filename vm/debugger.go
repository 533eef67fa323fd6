package vm

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/loxlang/loxvm/chunk"
	"github.com/loxlang/loxvm/value"
)

// DebugState mirrors debugger.h's DebugStates: how far the debugger lets
// execution run before pausing for a command.
type DebugState int

const (
	DbgRun     DebugState = iota // run continuously, ignore breakpoints
	DbgArmed                     // run until the next breakpoint
	DbgStep                      // halt on the very next instruction
	DbgStepOut                   // halt when the current frame returns
	DbgNext                      // like Step but don't halt inside a call
	DbgHalt                      // halt on the next tick, once
	DbgStop                      // execution is done; REPL must restart
)

// Breakpoint pauses execution when module's code reaches line (debugger.h's
// Breakpoint, trimmed of the compiled-condition cache: loxvm re-evaluates
// Condition via CompileEval each hit instead of caching an ObjClosure).
type Breakpoint struct {
	Module      *value.Module
	Line        int
	Enabled     bool
	IgnoreCount int
	Hits        int
	Condition   string
	Commands    []string
	Silent      bool
}

// Watchpoint is an expression re-evaluated and printed at every halt
// (debugger.h's Watchpoint).
type Watchpoint struct {
	Expr string
}

// Debugger is loxvm's GDB-subset front end (spec §4.6/§6.4), driven one line
// at a time via HandleCommand. It owns the halt/resume state machine;
// cmd/loxi supplies the actual terminal (prompting and reading lines via
// ReadLine) so this package stays free of any particular line-editing
// library.
type Debugger struct {
	vm *VM

	State       DebugState
	Breakpoints []*Breakpoint
	Watchpoints []*Watchpoint

	SessionID uuid.UUID

	Out      io.Writer
	ReadLine func(prompt string) (line string, ok bool)

	frameOffset    int // 0 = innermost frame, as `up`/`down`/`frame` adjust it
	breakFrame     int // frameCount at the moment step/next/finish was issued
	halted         bool
	lastListedLine int
	lastCommand    string
	quit           bool
}

// NewDebugger wires a Debugger to vm, stamping a session id the `info`
// command surfaces (SPEC_FULL.md's promoted use of google/uuid).
func NewDebugger(vm *VM, out io.Writer) *Debugger {
	d := &Debugger{vm: vm, Out: out, SessionID: uuid.New(), State: DbgRun}
	vm.onNextTick = d.onNextTick
	return d
}

// Halted reports whether the debugger is mid-pause (for cmd/loxi to decide
// whether to keep prompting after HandleCommand processes `quit`).
func (d *Debugger) Halted() bool { return d.halted }

// ShouldExit reports whether `quit` has been issued.
func (d *Debugger) ShouldExit() bool { return d.quit }

func (d *Debugger) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.Out, format, args...)
}

// currentFrame honors frameOffset, the selected stack level (`up`/`down`).
func (d *Debugger) currentFrame() *callFrame {
	idx := d.vm.frameCount - 1 - d.frameOffset
	if idx < 0 || idx >= d.vm.frameCount {
		return nil
	}
	return &d.vm.frames[idx]
}

func (d *Debugger) currentLine() int {
	f := d.currentFrame()
	if f == nil {
		return 0
	}
	fn := f.closure.Function
	instr := f.ip - 1
	if instr < 0 || instr >= len(fn.Chunk.Lines) {
		return 0
	}
	return fn.Chunk.Lines[instr]
}

func (d *Debugger) currentModule() *value.Module {
	f := d.currentFrame()
	if f == nil {
		return nil
	}
	return f.closure.Function.Chunk.Module
}

// onNextTick is installed as vm.onNextTick (debugger.c's onNextTick): it
// decides, after every instruction, whether to keep running or pause and
// hand control to the REPL.
func (d *Debugger) onNextTick(instr chunk.OpCode) {
	switch d.State {
	case DbgRun:
		return
	case DbgStepOut:
		if instr == chunk.OpReturn && d.vm.frameCount < d.breakFrame {
			d.frameOffset = 0
			d.printf("%s\n", d.sourceLine(d.currentLine()))
			d.pause()
		}
	case DbgArmed:
		d.checkBreakpoints()
	case DbgNext:
		if d.vm.frameCount > d.breakFrame {
			return
		}
		d.frameOffset = 0
		d.printf("%s\n", d.sourceLine(d.currentLine()))
		d.pause()
	case DbgStep:
		d.frameOffset = 0
		d.printf("%s\n", d.sourceLine(d.currentLine()))
		d.pause()
	case DbgHalt:
		d.frameOffset = 0
		d.pause()
	case DbgStop:
	}
}

// pause blocks the VM, printing watchpoints and prompting via ReadLine until
// a command resumes execution (debugger.c's processEvents).
func (d *Debugger) pause() {
	d.halted = true
	d.printWatchpoints()
	for d.halted && !d.quit {
		if d.ReadLine == nil {
			d.halted = false
			d.State = DbgRun
			return
		}
		line, ok := d.ReadLine("(loxi) ")
		if !ok {
			d.quit = true
			return
		}
		if strings.TrimSpace(line) == "" {
			line = d.lastCommand
		}
		d.HandleCommand(line)
	}
}

func (d *Debugger) checkBreakpoints() {
	mod := d.currentModule()
	line := d.currentLine()
	for i, bp := range d.Breakpoints {
		if bp == nil || bp.Module != mod || bp.Line != line || !bp.Enabled {
			continue
		}
		if bp.Condition != "" {
			ok, err := d.evalBool(bp.Condition)
			if err != nil {
				d.printf("Breakpoint %d condition invalid (%s): %v\n", i+1, bp.Condition, err)
				bp.Condition = ""
			} else if !ok {
				continue
			}
		}
		bp.Hits++
		if bp.IgnoreCount > 0 {
			bp.IgnoreCount--
			continue
		}
		d.printf("Breakpoint %d, %s\n", i+1, d.sourceLine(line))
		if len(bp.Commands) > 0 {
			for _, c := range bp.Commands {
				d.HandleCommand(c)
			}
			if !bp.Silent {
				continue
			}
		}
		d.pause()
	}
}

func (d *Debugger) printWatchpoints() {
	for _, w := range d.Watchpoints {
		v, err := d.eval(w.Expr)
		if err != nil {
			d.printf("watch (%s): <error: %v>\n", w.Expr, err)
			continue
		}
		d.printf("watch (%s) = %s\n", w.Expr, value.ToString(v))
	}
}

func (d *Debugger) sourceLine(line int) string {
	mod := d.currentModule()
	if mod == nil || line <= 0 {
		return fmt.Sprintf("%d", line)
	}
	lines := strings.Split(mod.Source, "\n")
	if line-1 < len(lines) {
		return fmt.Sprintf("%d\t%s", line, lines[line-1])
	}
	return fmt.Sprintf("%d", line)
}

// HandleCommand parses and executes a single debugger command line, the
// subset of the GDB grammar spec §4.6/§6.4 names (backtrace, break, clear,
// cond, continue, delete, disable/enable, down, echo, finish, frame, help,
// info, ignore, list, next, print, quit, step, up, watch, '#' comments).
// `commands n [silent]...end` is not parsed: a breakpoint's commands and
// silent flag are set directly on its Breakpoint.Commands/Silent fields.
func (d *Debugger) HandleCommand(line string) {
	line = strings.TrimRight(line, "\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "#") {
		return
	}
	d.lastCommand = line

	fields := strings.SplitN(trimmed, " ", 2)
	cmd := fields[0]
	rest := ""
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}

	switch cmd {
	case "backtrace", "bt":
		d.cmdBacktrace(rest)
	case "break", "b":
		d.cmdBreak(rest)
	case "clear":
		d.cmdClear(rest)
	case "cond":
		d.cmdCond(rest)
	case "continue", "c":
		d.State = DbgArmed
		d.halted = false
	case "delete", "del":
		d.cmdDelete(rest)
	case "disable", "dis":
		d.cmdEnable(rest, false)
	case "enable", "en":
		d.cmdEnable(rest, true)
	case "down":
		d.cmdDown(rest)
	case "up":
		d.cmdUp(rest)
	case "echo":
		d.printf("%s\n", rest)
	case "finish":
		d.breakFrame = d.vm.frameCount
		d.State = DbgStepOut
		d.halted = false
	case "frame":
		d.cmdFrame(rest)
	case "help":
		d.cmdHelp(rest)
	case "ignore":
		d.cmdIgnore(rest)
	case "list", "l":
		d.cmdList(rest)
	case "next", "n":
		d.breakFrame = d.vm.frameCount
		d.State = DbgNext
		d.halted = false
	case "print", "p":
		d.cmdPrint(rest)
	case "quit":
		d.quit = true
		d.halted = false
		d.State = DbgStop
	case "step", "s":
		d.State = DbgStep
		d.halted = false
	case "watch":
		d.cmdWatch(rest)
	case "info":
		d.cmdInfo(rest)
	default:
		d.printf("***Unrecognized command: '%s'\n", cmd)
	}
}

func (d *Debugger) cmdBacktrace(rest string) {
	limit := d.vm.frameCount
	if rest != "" {
		if n, err := strconv.Atoi(rest); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	for i := 0; i < limit; i++ {
		f := &d.vm.frames[d.vm.frameCount-1-i]
		fn := f.closure.Function
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[f.ip-1]
		}
		d.printf("#%d %s (line %d)\n", i, name, line)
	}
}

// readLineAndPath parses "[file:]line", defaulting to the current module and
// current line when either half is omitted (debugger.c's readLineAndPath).
func (d *Debugger) readLineAndPath(rest string) (line int, mod *value.Module) {
	mod = d.currentModule()
	line = d.currentLine()
	if rest == "" {
		return
	}
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		path := rest[:idx]
		if n, err := strconv.Atoi(rest[idx+1:]); err == nil {
			line = n
		}
		for m := d.vm.modules; m != nil; m = m.Next {
			if m.Path == path || (m.Name != nil && m.Name.Chars == path) {
				mod = m
				break
			}
		}
		return
	}
	if n, err := strconv.Atoi(rest); err == nil {
		line = n
	}
	return
}

func (d *Debugger) cmdBreak(rest string) {
	line, mod := d.readLineAndPath(rest)
	if mod == nil {
		d.printf("No module loaded.\n")
		return
	}
	for _, bp := range d.Breakpoints {
		if bp.Module == mod && bp.Line == line {
			d.printf("Breakpoint already set at line %d.\n", line)
			return
		}
	}
	d.Breakpoints = append(d.Breakpoints, &Breakpoint{Module: mod, Line: line, Enabled: true})
	d.printf("Set breakpoint %d at %s:%d\n", len(d.Breakpoints), mod.Name.Chars, line)
}

func (d *Debugger) cmdClear(rest string) {
	line, mod := d.readLineAndPath(rest)
	for i, bp := range d.Breakpoints {
		if bp.Module == mod && bp.Line == line {
			d.Breakpoints = append(d.Breakpoints[:i], d.Breakpoints[i+1:]...)
			d.printf("Cleared breakpoint at %s:%d\n", mod.Name.Chars, line)
			return
		}
	}
	d.printf("No breakpoint at that location.\n")
}

func (d *Debugger) breakpointByIndex(rest string) *Breakpoint {
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 || n > len(d.Breakpoints) {
		return nil
	}
	return d.Breakpoints[n-1]
}

func (d *Debugger) cmdDelete(rest string) {
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 || n > len(d.Breakpoints) {
		d.printf("Expects a breakpoint number after delete.\n")
		return
	}
	d.Breakpoints = append(d.Breakpoints[:n-1], d.Breakpoints[n:]...)
	d.printf("Deleted breakpoint %d.\n", n)
}

func (d *Debugger) cmdEnable(rest string, enable bool) {
	if rest == "" {
		for _, bp := range d.Breakpoints {
			bp.Enabled = enable
		}
		return
	}
	if bp := d.breakpointByIndex(rest); bp != nil {
		bp.Enabled = enable
	}
}

func (d *Debugger) cmdCond(rest string) {
	fields := strings.SplitN(rest, " ", 2)
	bp := d.breakpointByIndex(fields[0])
	if bp == nil {
		d.printf("Expects a breakpoint number.\n")
		return
	}
	if len(fields) > 1 {
		bp.Condition = fields[1]
	} else {
		bp.Condition = ""
	}
}

func (d *Debugger) cmdIgnore(rest string) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		d.printf("Usage: ignore <breakpoint-nr> <count>\n")
		return
	}
	bp := d.breakpointByIndex(fields[0])
	n, err := strconv.Atoi(fields[1])
	if bp == nil || err != nil {
		d.printf("Usage: ignore <breakpoint-nr> <count>\n")
		return
	}
	bp.IgnoreCount = n
}

func (d *Debugger) cmdDown(rest string) {
	n := 1
	if rest != "" {
		if v, err := strconv.Atoi(rest); err == nil {
			n = v
		}
	}
	d.frameOffset -= n
	if d.frameOffset < 0 {
		d.frameOffset = 0
	}
	d.printf("down to frame #%d\n", d.frameOffset)
}

func (d *Debugger) cmdUp(rest string) {
	n := 1
	if rest != "" {
		if v, err := strconv.Atoi(rest); err == nil {
			n = v
		}
	}
	d.frameOffset += n
	if d.frameOffset > d.vm.frameCount-1 {
		d.frameOffset = d.vm.frameCount - 1
	}
	d.printf("up to frame #%d\n", d.frameOffset)
}

func (d *Debugger) cmdFrame(rest string) {
	if rest == "" {
		d.printf("frame #%d\n", d.frameOffset)
		return
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n >= d.vm.frameCount {
		d.printf("No such frame.\n")
		return
	}
	d.frameOffset = n
	d.printf("frame #%d\n", d.frameOffset)
}

func (d *Debugger) cmdList(rest string) {
	mod := d.currentModule()
	if mod == nil {
		return
	}
	lines := strings.Split(mod.Source, "\n")
	start := d.lastListedLine + 1
	if rest == "-" {
		start = d.lastListedLine - 20
	} else if rest != "" {
		if n, err := strconv.Atoi(rest); err == nil {
			start = n - 5
		}
	} else if d.lastListedLine == 0 {
		start = d.currentLine() - 5
	}
	if start < 1 {
		start = 1
	}
	end := start + 9
	for i := start; i <= end && i <= len(lines); i++ {
		d.printf("%d\t%s\n", i, lines[i-1])
	}
	d.lastListedLine = end
}

func (d *Debugger) cmdPrint(rest string) {
	if rest == "" {
		d.printf("Expects an expression as argument to print.\n")
		return
	}
	v, err := d.eval(rest)
	if err != nil {
		d.printf("print (%s) = <error: %v>\n", rest, err)
		return
	}
	d.printf("print (%s) = %s\n", rest, value.ToString(v))
}

func (d *Debugger) cmdWatch(rest string) {
	if rest == "" {
		d.printf("Expects an expression as argument to watch.\n")
		return
	}
	d.Watchpoints = append(d.Watchpoints, &Watchpoint{Expr: rest})
}

func (d *Debugger) cmdInfo(rest string) {
	switch rest {
	case "break":
		for i, bp := range d.Breakpoints {
			state := "enabled"
			if !bp.Enabled {
				state = "disabled"
			}
			d.printf("%d: %s:%d (%s, hit %d times)\n", i+1, bp.Module.Name.Chars, bp.Line, state, bp.Hits)
		}
	case "watch":
		for i, w := range d.Watchpoints {
			d.printf("%d: %s\n", i+1, w.Expr)
		}
	case "frame":
		f := d.currentFrame()
		if f == nil {
			d.printf("No active frame.\n")
			return
		}
		d.printf("frame #%d, line %d\n", d.frameOffset, d.currentLine())
	case "locals":
		d.cmdInfoLocals()
	case "globals":
		d.cmdInfoGlobals()
	default:
		if rest == "" {
			d.printf("session %s\n", d.SessionID)
		}
		d.printf("info break|watch|frame|locals|globals\n")
	}
}

func (d *Debugger) cmdInfoLocals() {
	f := d.currentFrame()
	if f == nil {
		return
	}
	top := d.vm.stackTop
	if d.frameOffset > 0 {
		top = d.vm.frames[d.vm.frameCount-d.frameOffset].base
	}
	for i := f.base; i < top; i++ {
		d.printf("[%d] = %s\n", i-f.base, value.ToString(d.vm.stack[i]))
	}
}

func (d *Debugger) cmdInfoGlobals() {
	keys := d.vm.heap.Globals().Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Chars
	}
	sort.Strings(names)
	for _, n := range names {
		d.printf("%s\n", n)
	}
}

func (d *Debugger) cmdHelp(rest string) {
	d.printf(`backtrace|bt       Print the call stack.
break|b [file:]line  Set a breakpoint.
clear [file:]line  Remove a breakpoint.
cond nr expr       Set a breakpoint's condition.
continue|c         Resume until the next breakpoint.
delete|del nr      Remove breakpoint nr.
disable|dis [nr]   Disable a breakpoint (all, if omitted).
enable|en [nr]     Enable a breakpoint (all, if omitted).
down/up [n]        Move the selected frame.
echo text          Print text.
finish             Run until the current frame returns.
frame [n]          Select or print the current frame.
ignore nr count    Ignore a breakpoint's next count hits.
list|l [-|line]    List source around a line.
next|n             Step, without entering calls.
print|p expr       Evaluate and print an expression.
quit               Exit the debugger.
step|s             Step one instruction.
watch expr         Print expr's value at every halt.
`)
}

// eval compiles and runs expr against the selected frame's live scope
// (vm/eval.go's CompileEval bridge).
func (d *Debugger) eval(expr string) (value.Value, error) {
	return d.vm.evalInFrame(expr, d.currentFrame())
}

func (d *Debugger) evalBool(expr string) (bool, error) {
	v, err := d.eval(expr)
	if err != nil {
		return false, err
	}
	return !v.IsFalsey(), nil
}
