// Package cli carries the ambient CLI ergonomics the teacher builds over
// fmt/time rather than a third-party logging or flag library:
// Logger, VersionInfo, PrintVersion, ExitWithError/ExitWithCode, and the
// phase-timing table printer spec.md §6.1's --time-phases prints.
// Grounded on internal/cli/common.go and cmd/orizon/main.go.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
)

const Version = "0.1.0"

// VersionInfo is what --version and --version --json print.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
	Llvm      bool   `json:"llvm_enabled"`
}

// GetVersionInfo reports the running build. Llvm is always false here:
// the backend package never links against a real LLVM, it interprets
// and C-transpiles the module's own textual IR instead - see
// internal/backend's package doc.
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
		Llvm:      false,
	}
}

// PrintVersion writes the version string to w, per spec.md §6.1's
// "--version: Print version string, optionally (llvm-enabled)".
func PrintVersion(w io.Writer, jsonOutput bool) {
	info := GetVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(w, "holyc %s\n", info.Version)
			return
		}

		fmt.Fprintln(w, string(data))

		return
	}

	if info.Llvm {
		fmt.Fprintf(w, "holyc %s (llvm-enabled)\n", info.Version)
	} else {
		fmt.Fprintf(w, "holyc %s\n", info.Version)
	}
}

// ExitWithError prints a formatted error to stderr and exits 2, the
// usage/I-O failure code spec.md §6.1 reserves for everything that
// isn't a compiler diagnostic.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "holyc: "+format+"\n", args...)
	os.Exit(2)
}

// ExitWithCode exits with an explicit code, printing an optional
// message first.
func ExitWithCode(code int, format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}

	os.Exit(code)
}

// Logger is the small structured logger the teacher builds over
// fmt/time instead of reaching for a logging library.
type Logger struct {
	Verbose bool
	Debug   bool
}

func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, Debug: debug}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Fprintf(os.Stderr, "[info] %s %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.Debug {
		fmt.Fprintf(os.Stderr, "[debug] %s %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[warn] %s %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[error] %s %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

// PhaseTiming is one row of a --time-phases table.
type PhaseTiming struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
}

// PrintPhaseTable writes a fixed-width timing table to w, matching the
// teacher's tabular fmt.Printf CLI output rather than a table-rendering
// dependency.
func PrintPhaseTable(w io.Writer, phases []PhaseTiming) {
	fmt.Fprintf(w, "%-16s %12s\n", "phase", "seconds")

	var total float64

	for _, p := range phases {
		fmt.Fprintf(w, "%-16s %12.6f\n", p.Name, p.Seconds)
		total += p.Seconds
	}

	fmt.Fprintf(w, "%-16s %12.6f\n", "total", total)
}

// PhaseReport is the JSON document --time-phases-json=PATH writes.
type PhaseReport struct {
	Command string        `json:"command"`
	Phases  []PhaseTiming `json:"phases"`
}

// WritePhaseReport marshals a PhaseReport to path.
func WritePhaseReport(path, command string, phases []PhaseTiming) error {
	report := PhaseReport{Command: command, Phases: phases}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal phase report: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Timer accumulates PhaseTiming entries across a pipeline run; each
// phase's wall-clock cost is captured with a single time.Now() pair,
// grounded on src/main.cpp's own per-stage timing (see DESIGN.md).
type Timer struct {
	phases []PhaseTiming
}

// Time runs fn, records its wall-clock duration under name, and returns
// whatever fn returned.
func (t *Timer) Time(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.phases = append(t.phases, PhaseTiming{Name: name, Seconds: time.Since(start).Seconds()})

	return err
}

func (t *Timer) Phases() []PhaseTiming { return t.phases }
