// Command holyc is the single CLI spec.md §6.1 describes: the
// preprocessor/parser/sema/HIR/IR pipeline plus the backend's JIT and
// AOT paths, dispatched from one binary the way cmd/orizon dispatches
// its subcommands, and a REPL front end grounded on
// cmd/orizon-repl/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/holyc-lang/holycc/internal/backend"
	"github.com/holyc-lang/holycc/internal/cli"
	"github.com/holyc-lang/holycc/internal/config"
	"github.com/holyc-lang/holycc/internal/diag"
	"github.com/holyc-lang/holycc/internal/driver"
	"github.com/holyc-lang/holycc/internal/preprocessor"
	"github.com/holyc-lang/holycc/internal/repl"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "--version":
		jsonOut := len(args) > 1 && args[1] == "--json"
		cli.PrintVersion(os.Stdout, jsonOut)

		return 0

	case "--print-strict-mode":
		cfg, err := config.Load("")
		if err != nil {
			cli.ExitWithError("%v", err)
		}

		if cfg.Strict {
			fmt.Println("strict")
		} else {
			fmt.Println("permissive")
		}

		return 0

	case "check":
		return cmdCheck(args[1:])
	case "preprocess":
		return cmdPreprocess(args[1:])
	case "ast-dump":
		return cmdAstDump(args[1:])
	case "emit-hir":
		return cmdEmitHir(args[1:])
	case "emit-llvm":
		return cmdEmitLlvm(args[1:])
	case "jit":
		return cmdJit(args[1:])
	case "repl":
		return cmdRepl(args[1:])
	case "build":
		return cmdBuild(args[1:])
	case "run":
		return cmdRun(args[1:])
	case "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "holyc: unknown command %q\n", args[0])
		printUsage()

		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: holyc <command> [arguments]

commands:
  --version                 print version information
  --print-strict-mode        print "strict" or "permissive"
  check FILE...               parse and type-check
  preprocess FILE...           print preprocessed text
  ast-dump FILE...              print the parsed AST
  emit-hir FILE...               print the lowered HIR
  emit-llvm FILE...              emit normalized text IR
  jit FILE                      execute main in-process
  repl                          interactive REPL
  build FILE                    produce an executable
  run FILE                      build then execute`)
}

// strictFlags registers --strict/--permissive on fs and returns both
// flag values; resolveStrict applies cfg's default when neither was
// passed.
func strictFlags(fs *flag.FlagSet) (strict, permissive *bool) {
	strict = fs.Bool("strict", false, "use strict mode")
	permissive = fs.Bool("permissive", false, "use permissive mode")

	return strict, permissive
}

func resolveStrict(strict, permissive *bool, cfg *config.Config) bool {
	if *permissive {
		return false
	}

	if *strict {
		return true
	}

	return cfg.Strict
}

func modeFlag(fs *flag.FlagSet) *string {
	return fs.String("mode", "jit", "execution mode: jit or aot")
}

func resolveMode(mode string) (preprocessor.Mode, error) {
	switch mode {
	case "jit":
		return preprocessor.ModeJIT, nil
	case "aot":
		return preprocessor.ModeAOT, nil
	default:
		return "", fmt.Errorf("invalid --mode %q (want jit or aot)", mode)
	}
}

func validOptLevel(level string) bool {
	switch level {
	case "", "0", "1", "2", "3", "s", "z":
		return true
	default:
		return false
	}
}

// report prints a diagnostic to stderr (exit 1) or an I/O-shaped error
// (exit 2), matching spec.md §6.2's "on failure, the full diagnostic
// goes to stderr and the exit code is non-zero".
func report(d *diag.Diagnostic) int {
	fmt.Fprintln(os.Stderr, d.Format())

	// HC0001 is the driver's "cannot read file" diagnostic for the FILE
	// operand itself.
	if d.Code == "HC0001" {
		return 2
	}

	return 1
}

func usageError(format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "holyc: "+format+"\n", args...)
	return 2
}

func finishTiming(timer *cli.Timer, timePhases bool, timePhasesJSON, command string) {
	if timePhases {
		cli.PrintPhaseTable(os.Stderr, timer.Phases())
	}

	if timePhasesJSON != "" {
		if err := cli.WritePhaseReport(timePhasesJSON, command, timer.Phases()); err != nil {
			fmt.Fprintf(os.Stderr, "holyc: %v\n", err)
		}
	}
}

func cmdCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	mode := modeFlag(fs)
	timePhases := fs.Bool("time-phases", false, "print a phase timing table")
	timePhasesJSON := fs.String("time-phases-json", "", "write phase timings as JSON")
	watch := fs.Bool("watch", false, "re-run on source changes")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("check requires a FILE argument")
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	pmode, err := resolveMode(*mode)
	if err != nil {
		return usageError("%v", err)
	}

	opts := driver.Options{
		Mode:         pmode,
		Strict:       resolveStrict(strict, permissive, cfg),
		IncludeRoots: cfg.IncludeRoots,
	}

	runOnce := func() int {
		var timer cli.Timer

		d := driver.Check(fs.Args()[0], opts, &timer)
		finishTiming(&timer, *timePhases, *timePhasesJSON, "check")

		if d != nil {
			return report(d)
		}

		fmt.Println("ok")

		return 0
	}

	if !*watch {
		return runOnce()
	}

	return watchLoop(fs.Args()[0], runOnce)
}

func cmdPreprocess(args []string) int {
	fs := flag.NewFlagSet("preprocess", flag.ContinueOnError)
	mode := modeFlag(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("preprocess requires at least one FILE argument")
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	return runTextCommandStrict(fs.Args(), *mode, cfg.Strict, cfg.IncludeRoots, driver.Preprocess)
}

func cmdAstDump(args []string) int {
	fs := flag.NewFlagSet("ast-dump", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	mode := modeFlag(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("ast-dump requires at least one FILE argument")
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	s := resolveStrict(strict, permissive, cfg)

	return runTextCommandStrict(fs.Args(), *mode, s, cfg.IncludeRoots, driver.AstDump)
}

func cmdEmitHir(args []string) int {
	fs := flag.NewFlagSet("emit-hir", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	mode := modeFlag(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("emit-hir requires at least one FILE argument")
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	s := resolveStrict(strict, permissive, cfg)

	return runTextCommandStrict(fs.Args(), *mode, s, cfg.IncludeRoots, driver.EmitHir)
}

func cmdEmitLlvm(args []string) int {
	fs := flag.NewFlagSet("emit-llvm", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	mode := modeFlag(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("emit-llvm requires at least one FILE argument")
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	s := resolveStrict(strict, permissive, cfg)

	return runTextCommandStrict(fs.Args(), *mode, s, cfg.IncludeRoots, driver.EmitLlvm)
}

func runTextCommandStrict(files []string, mode string, strict bool, includeRoots []string, fn func(string, driver.Options, *cli.Timer) (string, *diag.Diagnostic)) int {
	pmode, err := resolveMode(mode)
	if err != nil {
		return usageError("%v", err)
	}

	opts := driver.Options{Mode: pmode, Strict: strict, IncludeRoots: includeRoots}

	if len(files) == 1 {
		var timer cli.Timer

		out, d := fn(files[0], opts, &timer)
		if d != nil {
			return report(d)
		}

		fmt.Print(out)

		return 0
	}

	outs, d := driver.RunMulti(files, func(file string) (string, *diag.Diagnostic) {
		var timer cli.Timer
		return fn(file, opts, &timer)
	})
	if d != nil {
		return report(d)
	}

	for _, out := range outs {
		fmt.Print(out)
	}

	return 0
}

func cmdJit(args []string) int {
	fs := flag.NewFlagSet("jit", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	jitSession := fs.String("jit-session", "", "named JIT session")
	jitReset := fs.Bool("jit-reset", false, "reset the session before loading")
	jitBackend := fs.String("jit-backend", "llvm", "JIT backend (only llvm)")
	optLevel := fs.String("opt-level", "", "optimization level: 0|1|2|3|s|z")
	timePhases := fs.Bool("time-phases", false, "print a phase timing table")
	timePhasesJSON := fs.String("time-phases-json", "", "write phase timings as JSON")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("jit requires a FILE argument")
	}

	if *jitBackend != "llvm" {
		return usageError("invalid --jit-backend %q (only llvm is supported)", *jitBackend)
	}

	if !validOptLevel(*optLevel) {
		return usageError("invalid --opt-level %q", *optLevel)
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	opts := driver.Options{
		Mode:         preprocessor.ModeJIT,
		Strict:       resolveStrict(strict, permissive, cfg),
		IncludeRoots: cfg.IncludeRoots,
		JitSession:   *jitSession,
		JitReset:     *jitReset,
		OptLevel:     *optLevel,
	}

	var timer cli.Timer

	ret, d := driver.Jit(fs.Args()[0], opts, &timer)
	finishTiming(&timer, *timePhases, *timePhasesJSON, "jit")

	if d != nil {
		return report(d)
	}

	fmt.Println(ret)

	return 0
}

func cmdBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	output := fs.String("o", "", "output path")
	target := fs.String("target", "", "target triple")
	artifactDir := fs.String("artifact-dir", "", "directory for .ll/.o artifacts")
	keepTemps := fs.Bool("keep-temps", false, "keep build artifacts")
	optLevel := fs.String("opt-level", "", "optimization level: 0|1|2|3|s|z")
	watch := fs.Bool("watch", false, "re-run on source changes")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("build requires a FILE argument")
	}

	if !validOptLevel(*optLevel) {
		return usageError("invalid --opt-level %q", *optLevel)
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	opts := driver.Options{
		Mode:         preprocessor.ModeAOT,
		Strict:       resolveStrict(strict, permissive, cfg),
		IncludeRoots: cfg.IncludeRoots,
		OutputPath:   *output,
		Target:       *target,
		ArtifactDir:  *artifactDir,
		KeepTemps:    *keepTemps,
		OptLevel:     *optLevel,
	}

	file := fs.Args()[0]

	runOnce := func() int {
		var timer cli.Timer

		out, d := driver.Build(file, opts, &timer)
		if d != nil {
			return report(d)
		}

		fmt.Println(out)

		return 0
	}

	if !*watch {
		return runOnce()
	}

	return watchLoop(file, runOnce)
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	target := fs.String("target", "", "target triple")
	artifactDir := fs.String("artifact-dir", "", "directory for .ll/.o artifacts")
	keepTemps := fs.Bool("keep-temps", false, "keep build artifacts")
	optLevel := fs.String("opt-level", "", "optimization level: 0|1|2|3|s|z")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		return usageError("run requires a FILE argument")
	}

	if !validOptLevel(*optLevel) {
		return usageError("invalid --opt-level %q", *optLevel)
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	opts := driver.Options{
		Mode:         preprocessor.ModeAOT,
		Strict:       resolveStrict(strict, permissive, cfg),
		IncludeRoots: cfg.IncludeRoots,
		Target:       *target,
		ArtifactDir:  *artifactDir,
		KeepTemps:    *keepTemps,
		OptLevel:     *optLevel,
	}

	var timer cli.Timer

	code, d := driver.Run(fs.Args()[0], fs.Args()[1:], opts, &timer, os.Stdout, os.Stderr)
	if d != nil {
		return report(d)
	}

	return code
}

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	strict, permissive := strictFlags(fs)
	jitSession := fs.String("jit-session", "", "named JIT session")
	jitReset := fs.Bool("jit-reset", false, "reset the session before starting")
	optLevel := fs.String("opt-level", "", "optimization level: 0|1|2|3|s|z")
	historyPath := fs.String("history", "", "history file path")
	maxHistory := fs.Int("max-history", 1000, "maximum history entries")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !validOptLevel(*optLevel) {
		return usageError("invalid --opt-level %q", *optLevel)
	}

	cfg, err := config.Load("")
	if err != nil {
		return usageError("%v", err)
	}

	session := *jitSession
	if session == "" {
		session = backend.ReplSession
	}

	if *jitReset {
		backend.ResetJitSession(session)
	}

	r := repl.New(os.Stdin, os.Stdout, resolveStrict(strict, permissive, cfg), session, *historyPath, *maxHistory)
	r.Run()

	return 0
}

func watchLoop(file string, runOnce func() int) int {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		<-sigCh
		cancel()
	}()

	var lastCode int

	err := driver.Watch(ctx, file, func() {
		lastCode = runOnce()
	}, func(watchErr error) {
		fmt.Fprintf(os.Stderr, "holyc: watch: %v\n", watchErr)
	})
	if err != nil && !strings.Contains(err.Error(), "context canceled") {
		return usageError("%v", err)
	}

	return lastCode
}
