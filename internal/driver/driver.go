// Package driver wires the phases in spec.md §4 together into the
// command-level operations cmd/holyc dispatches to: preprocess, parse,
// check, dump, emit, jit, build, and run. Each exported function is one
// spec.md §6.1 command's implementation, phase-timed the way
// original_source/src/main.cpp times its own pipeline (one time.Now()
// pair per stage, accumulated into an ordered table).
package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/holyc-lang/holycc/internal/ast"
	"github.com/holyc-lang/holycc/internal/backend"
	"github.com/holyc-lang/holycc/internal/cli"
	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/hir"
	"github.com/holyc-lang/holycc/internal/ir"
	"github.com/holyc-lang/holycc/internal/parser"
	"github.com/holyc-lang/holycc/internal/preprocessor"
	"github.com/holyc-lang/holycc/internal/sema"
)

// Options carries every flag a pipeline stage can be configured with;
// not every command reads every field.
type Options struct {
	Mode         preprocessor.Mode
	Strict       bool
	IncludeRoots []string
	JitSession   string
	JitReset     bool
	EntrySymbol  string
	OptLevel     string
	Target       string
	OutputPath   string
	ArtifactDir  string
	KeepTemps    bool
	TimePhases   bool
}

// moduleName derives the IR module name from a source path the way the
// teacher's tools derive a symbol prefix from a file: basename, no
// extension.
func moduleName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readSource(filename string) (string, *diag.Diagnostic) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", diag.Err("HC0001").At(filename, 0, 0).
			Msg("cannot read file: %v", err).Build()
	}

	return string(data), nil
}

// Preprocess runs spec §4.1 alone and returns the expanded text.
func Preprocess(filename string, opts Options, timer *cli.Timer) (string, *diag.Diagnostic) {
	source, d := readSource(filename)
	if d != nil {
		return "", d
	}

	var out string

	err := timer.Time("preprocess", func() error {
		p := preprocessor.New(preprocessor.Options{
			Mode:         opts.Mode,
			IncludeRoots: opts.IncludeRoots,
		})

		text, pd := p.Run(source, filename)
		if pd != nil {
			d = pd
			return nil
		}

		out = text

		return nil
	})
	if err != nil {
		return "", diag.Err("HC0002").At(filename, 0, 0).Msg("%v", err).Build()
	}

	return out, d
}

// parseAndCheck runs preprocess -> lex/parse -> sema, the shared prefix
// every later-stage command builds on.
func parseAndCheck(filename string, opts Options, timer *cli.Timer) (*ast.Node, *diag.Diagnostic) {
	text, d := Preprocess(filename, opts, timer)
	if d != nil {
		return nil, d
	}

	var prog *ast.Node

	timer.Time("parse", func() error {
		p, pd := parser.Parse(text, filename)
		prog, d = p, pd

		return nil
	})

	if d != nil {
		return nil, d
	}

	var typed *ast.Node

	timer.Time("sema", func() error {
		t, sd := sema.Analyze(prog, filename, opts.Strict)
		typed, d = t, sd

		return nil
	})

	if d != nil {
		return nil, d
	}

	return typed, nil
}

// Check implements the `check` command: parse + sema, no output but
// "ok".
func Check(filename string, opts Options, timer *cli.Timer) *diag.Diagnostic {
	_, d := parseAndCheck(filename, opts, timer)
	return d
}

// AstDump implements `ast-dump`.
func AstDump(filename string, opts Options, timer *cli.Timer) (string, *diag.Diagnostic) {
	prog, d := parseAndCheck(filename, opts, timer)
	if d != nil {
		return "", d
	}

	return prog.Dump(), nil
}

// EmitHir implements `emit-hir`.
func EmitHir(filename string, opts Options, timer *cli.Timer) (string, *diag.Diagnostic) {
	prog, d := parseAndCheck(filename, opts, timer)
	if d != nil {
		return "", d
	}

	var m *hir.Module

	timer.Time("lower", func() error {
		mod, hd := hir.LowerToHir(prog, filename)
		m, d = mod, hd

		return nil
	})

	if d != nil {
		return "", d
	}

	return DumpHir(m), nil
}

// buildIr runs the full pipeline through the IR builder.
func buildIr(filename string, opts Options, timer *cli.Timer) (*ir.Module, *diag.Diagnostic) {
	prog, d := parseAndCheck(filename, opts, timer)
	if d != nil {
		return nil, d
	}

	var m *hir.Module

	timer.Time("lower", func() error {
		mod, hd := hir.LowerToHir(prog, filename)
		m, d = mod, hd

		return nil
	})

	if d != nil {
		return nil, d
	}

	var mod *ir.Module

	timer.Time("irbuild", func() error {
		built, id := ir.Build(m, moduleName(filename), filename)
		mod, d = built, id

		return nil
	})

	if d != nil {
		return nil, d
	}

	return mod, nil
}

// EmitLlvm implements `emit-llvm`: build the text IR, then normalize it
// through the backend the way a JIT/build command would before trusting
// it.
func EmitLlvm(filename string, opts Options, timer *cli.Timer) (string, *diag.Diagnostic) {
	mod, d := buildIr(filename, opts, timer)
	if d != nil {
		return "", d
	}

	var result backend.Result

	timer.Time("normalize", func() error {
		result = backend.NormalizeIr(mod.String())
		return nil
	})

	if !result.OK {
		return "", diag.Err("HC0003").At(filename, 0, 0).Msg("%s", result.Output).Build()
	}

	return result.Output, nil
}

// Jit implements `jit`: build, then execute main in-process.
func Jit(filename string, opts Options, timer *cli.Timer) (int64, *diag.Diagnostic) {
	mod, d := buildIr(filename, opts, timer)
	if d != nil {
		return 0, d
	}

	session := opts.JitSession
	if session == "" {
		session = backend.DefaultSession
	}

	entry := opts.EntrySymbol
	if entry == "" {
		entry = "main"
	}

	if opts.JitReset {
		backend.ResetJitSession(session)
	}

	var result backend.Result

	timer.Time("jit", func() error {
		result = backend.ExecuteIrJit(mod.String(), session, true, entry)
		return nil
	})

	if !result.OK {
		return 0, diag.Err("HC0004").At(filename, 0, 0).Msg("%s", result.Output).Build()
	}

	var ret int64
	fmt.Sscanf(result.Output, "%d", &ret)

	return ret, nil
}

// Build implements `build`: produce an executable via the backend's AOT
// path.
func Build(filename string, opts Options, timer *cli.Timer) (string, *diag.Diagnostic) {
	mod, d := buildIr(filename, opts, timer)
	if d != nil {
		return "", d
	}

	out := opts.OutputPath
	if out == "" {
		out = moduleName(filename)
	}

	// aot.go keys "keep temporaries" off a non-empty artifact directory;
	// --keep-temps without an explicit --artifact-dir still needs
	// somewhere to keep them.
	artifactDir := opts.ArtifactDir
	if artifactDir == "" && opts.KeepTemps {
		artifactDir = out + ".artifacts"
	}

	var result backend.Result

	timer.Time("aot-build", func() error {
		result = backend.BuildExecutableFromIr(mod.String(), out, artifactDir, opts.Target)
		return nil
	})

	if !result.OK {
		return "", diag.Err("HC0005").At(filename, 0, 0).Msg("%s", result.Output).Build()
	}

	return result.Output, nil
}

// Run implements `run`: build then execute, piping the child's stdout
// and propagating its exit code.
func Run(filename string, args []string, opts Options, timer *cli.Timer, stdout, stderr *os.File) (int, *diag.Diagnostic) {
	binPath, d := Build(filename, opts, timer)
	if d != nil {
		return 0, d
	}

	if !filepath.IsAbs(binPath) {
		wd, err := os.Getwd()
		if err == nil {
			binPath = filepath.Join(wd, binPath)
		}
	}

	cmd := exec.Command(binPath, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}

	return 0, diag.Err("HC0006").At(filename, 0, 0).Msg("run failed: %v", err).Build()
}

// RunMulti runs fn over every file in files concurrently via
// errgroup.Group (grounded on cmd/orizon/main.go's subcommand fan-out),
// collecting results in input order rather than completion order - the
// multi-file form of preprocess/ast-dump/emit-hir/emit-llvm.
func RunMulti(files []string, fn func(file string) (string, *diag.Diagnostic)) ([]string, *diag.Diagnostic) {
	results := make([]string, len(files))
	diags := make([]*diag.Diagnostic, len(files))

	var g errgroup.Group

	for i, f := range files {
		i, f := i, f

		g.Go(func() error {
			out, d := fn(f)
			results[i] = out
			diags[i] = d

			return nil
		})
	}

	_ = g.Wait()

	for _, d := range diags {
		if d != nil {
			return results, d
		}
	}

	return results, nil
}

