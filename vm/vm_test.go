package vm

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/gc"
	"github.com/loxlang/loxvm/value"
)

// memLoader resolves import paths directly against an in-memory source map,
// so module tests don't need to touch the filesystem.
type memLoader map[string]string

func (m memLoader) Resolve(path string) (resolvedPath, name string, err error) {
	return path, path, nil
}

func (m memLoader) Read(resolvedPath string) (string, error) {
	src, ok := m[resolvedPath]
	if !ok {
		return "", fmt.Errorf("no such module: %s", resolvedPath)
	}
	return src, nil
}

// run compiles and executes source against a fresh VM, returning everything
// written through print and any error RunSource reported.
func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	mod := machine.NewMainModule("<test>")
	err := machine.RunSource(mod, source)
	return out.String(), err
}

func TestVM_ArithmeticAndPrint(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	require.NoError(t, err)
	assert.Equal(t, "7", out)
}

func TestVM_StringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	assert.Equal(t, "foobar", out)
}

func TestVM_Globals_MustBeDeclaredLocally(t *testing.T) {
	// compiler.Host.HasGlobal only ever reports natives (clock/str/num); every
	// source-level declaration compiles as a local, even at the top level.
	out, err := run(t, `var x = 10; print x;`)
	require.NoError(t, err)
	assert.Equal(t, "10", out)
}

func TestVM_IfElse(t *testing.T) {
	out, err := run(t, `if (1 < 2) { print "yes"; } else { print "no"; }`)
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestVM_WhileLoopWithBreakAndContinue(t *testing.T) {
	out, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 10) {
			i = i + 1;
			if (i == 5) continue;
			if (i == 8) break;
			sum = sum + i;
		}
		print sum;
	`)
	require.NoError(t, err)
	assert.Equal(t, "23", out) // 1+2+3+4+6+7
}

func TestVM_ClosureCapturesUpvalue(t *testing.T) {
	out, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun inc() {
				count = count + 1;
				return count;
			}
			return inc;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.NoError(t, err)
	assert.Equal(t, "123", out)
}

func TestVM_ClassInstanceFieldsAndMethods(t *testing.T) {
	out, err := run(t, `
		class Counter {
			init(start) {
				this.value = start;
			}
			bump() {
				this.value = this.value + 1;
				return this.value;
			}
		}
		var c = Counter(9);
		print c.bump();
		print c.bump();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1011", out)
}

func TestVM_Inheritance_SuperDispatch(t *testing.T) {
	out, err := run(t, `
		class Animal {
			speak() {
				return "...";
			}
			describe() {
				return "I say " + this.speak();
			}
		}
		class Dog < Animal {
			speak() {
				return "woof";
			}
			describe() {
				return super.describe() + "!";
			}
		}
		print Dog().describe();
	`)
	require.NoError(t, err)
	assert.Equal(t, "I say woof!", out)
}

func TestVM_RuntimeError_ArityMismatch(t *testing.T) {
	_, err := run(t, `fun f(a) { return a; } f();`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "Expected 1 arguments but got 0")
	require.NotEmpty(t, rerr.Frames, "a runtime error carries the active call stack's trace")
}

func TestVM_CompileError_ReportsLine(t *testing.T) {
	_, err := run(t, "var x = 1;\nvar = ;")
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.NotEmpty(t, cerr.Errs)
	assert.Equal(t, 2, cerr.Errs[0].Line)
}

func TestVM_ArrayLiteralAndIndexerMethods(t *testing.T) {
	out, err := run(t, `
		var a = [1, 2, 3];
		a.push(4);
		print a[3];
		print a.length;
		a[0] = 99;
		print a[0];
		print a.pop();
		print a.length;
	`)
	require.NoError(t, err)
	assert.Equal(t, "4"+"4"+"99"+"4"+"3", out)
}

func TestVM_DictLiteralAndIndexer(t *testing.T) {
	out, err := run(t, `
		var d = {a: 1, b: 2};
		print d["a"];
		d["c"] = 3;
		print d["c"];
	`)
	require.NoError(t, err)
	assert.Equal(t, "13", out)
}

func TestVM_StringIndexerIsReadOnly(t *testing.T) {
	out, err := run(t, `print "hello"[1];`)
	require.NoError(t, err)
	assert.Equal(t, "e", out)

	_, err = run(t, `var s = "hi"; s[0] = "x";`)
	require.Error(t, err)
}

func TestVM_RunSource_EachCallIsIndependentlyScoped(t *testing.T) {
	// Each RunSource call compiles and runs a fresh top-level function; its
	// frame (and any locals it declared) is gone by the time RunSource
	// returns. Only mod's export table and the VM's shared heap/global state
	// outlive a single call.
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	mod := machine.NewMainModule("<repl>")

	require.NoError(t, machine.RunSource(mod, `var total = 10; print total;`))
	assert.Equal(t, "10", out.String())

	err := machine.RunSource(mod, `print total;`)
	require.Error(t, err, "a local from a prior RunSource call is out of scope in the next one")
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
}

func TestVM_RunSource_ReusesModuleAcrossCalls(t *testing.T) {
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	machine.SetLoader(memLoader{
		"math": `export var pi = 3;`,
	})
	mod := machine.NewMainModule("<repl>")

	require.NoError(t, machine.RunSource(mod, `import { pi } from "math"; print pi;`))
	require.NoError(t, machine.RunSource(mod, `import { pi as circlePi } from "math"; print circlePi;`))
	assert.Equal(t, "33", out.String(), "re-importing from an already-loaded module works on every call")
}

func TestVM_ImportExport_AcrossModules(t *testing.T) {
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	machine.SetLoader(memLoader{
		"greeter": `export var greeting = "hi"; export fun shout() { return greeting + "!"; }`,
	})
	mod := machine.NewMainModule("<main>")
	err := machine.RunSource(mod, `
		import { greeting, shout } from "greeter";
		print greeting;
		print shout();
	`)
	require.NoError(t, err)
	assert.Equal(t, "hihi!", out.String())
}

func TestVM_GC_PrunesUnrootedInternedString(t *testing.T) {
	machine := New(Options{})
	const s = "totally-unreferenced"
	garbage := machine.heap.Intern(s)
	require.Same(t, garbage, machine.heap.strings.FindString(s, value.FNV1a32(s)), "interning registers the string in the intern table")

	machine.collectInfant()

	assert.Nil(t, machine.heap.strings.FindString(s, value.FNV1a32(s)), "nothing roots the string, so a cycle prunes it from the weak intern table")
}

func TestVM_GC_NativesSurviveCollection(t *testing.T) {
	// clock/str/num live only in vm.heap.globals; markRoots must mark that
	// table or the natives get swept as garbage on the first real cycle.
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	mod := machine.NewMainModule("<test>")

	machine.collectInfant()
	machine.collectOlder()

	err := machine.RunSource(mod, `print str(clock() >= 0.0); print num("41") + 1;`)
	require.NoError(t, err)
	assert.Equal(t, "true42", out.String())
}

func TestVM_StressGC_StillProducesCorrectResults(t *testing.T) {
	var out bytes.Buffer
	machine := New(Options{Out: &out, GC: gc.Options{StressTest: true}})
	mod := machine.NewMainModule("<test>")
	err := machine.RunSource(mod, `
		var total = 0;
		var i = 0;
		while (i < 50) {
			var s = "item" + str(i);
			total = total + s.length;
			i = i + 1;
		}
		print total;
	`)
	require.NoError(t, err)
	assert.NotEmpty(t, out.String())
}

func TestDebugger_BreakpointHaltsThenResumes(t *testing.T) {
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	mod := machine.NewMainModule("script")

	var dbgOut bytes.Buffer
	dbg := NewDebugger(machine, &dbgOut)
	dbg.HandleCommand("break script:3")
	dbg.State = DbgArmed

	err := machine.RunSource(mod, "var a = 1;\nvar b = 2;\nprint a + b;\n")
	require.NoError(t, err)
	assert.Equal(t, "3", out.String(), "script output still runs to completion once the breakpoint resumes")
	assert.Contains(t, dbgOut.String(), "Breakpoint 1")
}

func TestDebugger_BreakpointCommandsEvalExpressionInPausedFrame(t *testing.T) {
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	mod := machine.NewMainModule("script")

	var dbgOut bytes.Buffer
	dbg := NewDebugger(machine, &dbgOut)
	dbg.HandleCommand("break script:2")
	require.Len(t, dbg.Breakpoints, 1)
	dbg.Breakpoints[0].Commands = []string{"print a"}
	dbg.State = DbgArmed

	err := machine.RunSource(mod, "var a = 40;\nvar b = a + 2;\nprint b;\n")
	require.NoError(t, err)
	assert.Contains(t, dbgOut.String(), "40", "the breakpoint's attached command evaluates `a` against the paused frame")
	assert.Equal(t, "42", out.String(), "the script still runs to completion once its commands finish")
}
