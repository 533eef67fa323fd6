package vm

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/loxlang/loxvm/compiler"
	"github.com/loxlang/loxvm/value"
)

// ModuleLoader resolves an import path to a canonical, dedup-key path and
// then reads its source, mirroring module.c's two-step
// parsePath/fileExists-then-readFile flow: path resolution happens before
// any file is read, so re-importing an already-loaded module never touches
// the filesystem twice.
type ModuleLoader interface {
	// Resolve turns an import path into the canonical path modules are
	// deduplicated on, plus the bare name Module.Name reports.
	Resolve(path string) (resolvedPath, name string, err error)
	// Read returns the source text at a path Resolve already returned.
	Read(resolvedPath string) (source string, err error)
}

// FileLoader reads modules from the local filesystem, appending ".lox" when
// the import path has no extension (spec §4.5's "path/name+.lox lookup").
type FileLoader struct {
	Root string
}

func (fl FileLoader) Resolve(path string) (resolvedPath, name string, err error) {
	full := path
	if filepath.Ext(full) == "" {
		full += ".lox"
	}
	if fl.Root != "" && !filepath.IsAbs(full) {
		full = filepath.Join(fl.Root, full)
	}
	base := filepath.Base(full)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return full, base, nil
}

func (fl FileLoader) Read(resolvedPath string) (string, error) {
	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetLoader installs the module loader used by OP_IMPORT_MODULE (cmd/loxi
// wires a FileLoader rooted at the script's directory).
func (vm *VM) SetLoader(l ModuleLoader) { vm.loader = l }

// RegisterModule adds module to the front of the VM's module list, matching
// addModuleVM. Used both by getModuleByPath and by NewMainModule to seed the
// entry script as a module before interpreting it.
func (vm *VM) RegisterModule(m *value.Module) {
	m.Next = vm.modules
	vm.modules = m
}

func (vm *VM) findModuleByPath(path string) *value.Module {
	for m := vm.modules; m != nil; m = m.Next {
		if m.Path == path {
			return m
		}
	}
	return nil
}

// getModuleByPath returns the already-loaded module for path, or compiles
// and runs a fresh one, sharing a single Module instance across every
// importer that names the same path (module.c's getModuleByPath).
func (vm *VM) getModuleByPath(path string) (*value.Module, error) {
	if vm.loader == nil {
		return nil, vm.newRuntimeError("No module loader configured for import '%s'.", path)
	}

	resolvedPath, name, err := vm.loader.Resolve(path)
	if err != nil {
		return nil, vm.newRuntimeError("Failed to load script from: %s", path)
	}
	if m := vm.findModuleByPath(resolvedPath); m != nil {
		return m, nil
	}

	source, err := vm.loader.Read(resolvedPath)
	if err != nil {
		return nil, vm.newRuntimeError("Failed to load script from: %s", path)
	}

	mod := &value.Module{
		Name:    vm.heap.Intern(name),
		Path:    resolvedPath,
		Source:  source,
		Exports: value.NewTable(),
	}
	vm.RegisterModule(mod)

	if err := vm.loadModule(mod); err != nil {
		vm.unregisterModule(mod)
		return nil, err
	}
	return mod, nil
}

func (vm *VM) unregisterModule(target *value.Module) {
	if vm.modules == target {
		vm.modules = target.Next
		return
	}
	for m := vm.modules; m != nil; m = m.Next {
		if m.Next == target {
			m.Next = target.Next
			return
		}
	}
}

// loadModule compiles mod's source and runs its top level (module.c's
// loadModule). A thin wrapper over RunSource now that an entry script and an
// imported module both go through the same compile-and-run path.
func (vm *VM) loadModule(mod *value.Module) error {
	return vm.RunSource(mod, mod.Source)
}

// RunSource compiles source as mod's top level and runs it, replacing
// whatever mod was previously compiled from. module.c's compileModule and
// interpretModule call this combination once per REPL line against the same
// persistent module, so mod's export table and the interned/global state it
// shares with every other module survive from one call to the next (module.c's
// compileModule + interpretModule). Plain top-level locals do not: each call
// compiles a fresh top-level function and its frame is popped before RunSource
// returns, so a `var` from one call is out of scope by the next one. Source-level
// REPL line editing and any cross-line variable continuity are cmd/loxi's
// concern, not this package's (spec's REPL-with-completion is named out of
// scope).
func (vm *VM) RunSource(mod *value.Module, source string) error {
	mod.Source = source

	disabled := vm.heap.gc.SetCollectionDisabled(true)
	fn, errs := compiler.Compile(source, mod, vm.heap, compiler.TypeScript)
	if errs != nil {
		vm.heap.gc.SetCollectionDisabled(disabled)
		return &CompileError{Errs: errs}
	}
	mod.RootFunction = fn

	closure := vm.heap.NewClosure(fn)
	mod.RootClosure = closure
	vm.push(value.Obj_(closure))
	vm.heap.gc.SetCollectionDisabled(disabled)

	oldExit := vm.exitAtFrame
	vm.exitAtFrame = vm.frameCount
	err := vm.call(closure, 0)
	if err == nil {
		err = vm.run()
	}
	vm.exitAtFrame = oldExit
	return err
}

// NewMainModule constructs the module an entry script or REPL session runs
// as, always named "__main__" regardless of its file name (main.c's
// runFile: `createModule("__main__", path)`).
func (vm *VM) NewMainModule(path string) *value.Module {
	mod := &value.Module{
		Name:    vm.heap.Intern("__main__"),
		Path:    path,
		Exports: value.NewTable(),
	}
	vm.RegisterModule(mod)
	return mod
}

// LoadMain reads path from disk (or vm.loader, if already set), compiles it
// as the entry module and runs it to completion (main.c's runFile).
func (vm *VM) LoadMain(path string) (*value.Module, error) {
	if vm.loader == nil {
		vm.loader = FileLoader{Root: filepath.Dir(path)}
	}
	resolvedPath, _, err := vm.loader.Resolve(path)
	if err != nil {
		return nil, vm.newRuntimeError("Failed to load script from: %s", path)
	}
	source, err := vm.loader.Read(resolvedPath)
	if err != nil {
		return nil, vm.newRuntimeError("Failed to load script from: %s", path)
	}

	mod := vm.NewMainModule(resolvedPath)
	if err := vm.RunSource(mod, source); err != nil {
		vm.unregisterModule(mod)
		return nil, err
	}
	return mod, nil
}
