// Package diag implements the compiler's single canonical diagnostic
// record and formatter. Every phase boundary (preprocessor, lexer,
// parser, sema, HIR lowerer, IR builder, backend) produces or forwards
// *Diagnostic values through this package instead of rolling its own
// error type, so the wire format in spec §6.2 is produced in exactly
// one place.
package diag

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the diagnostic level.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Diagnostic is the canonical error record: code, severity, file
// position, message, and an optional one-line remediation hint.
type Diagnostic struct {
	Code        string
	Severity    Severity
	File        string
	Line        int
	Column      int
	Message     string
	Remediation string
	Related      []Diagnostic // nested notes, e.g. an include chain
}

// Error implements the error interface so diagnostics can be returned.
// and wrapped through ordinary Go error-handling where convenient.
func (d *Diagnostic) Error() string {
	return d.Format()
}

// Format renders the diagnostic per spec §6.2:
//
//	severity[code]: file:line:col: message
//	help: remediation
func (d *Diagnostic) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s[%s]: %s:%d:%d: %s", d.Severity, d.Code, d.File, d.Line, d.Column, d.Message)

	if d.Remediation != "" {
		fmt.Fprintf(&b, "\nhelp: %s", d.Remediation)
	}

	for _, rel := range d.Related {
		b.WriteString("\n")
		b.WriteString(indent(rel.Format()))
	}

	return b.String()
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}

	return strings.Join(lines, "\n")
}

// JSON renders the diagnostic as a single-line JSON object, used by
// --time-phases-json's sibling machine-readable diagnostics.
func (d *Diagnostic) JSON() string {
	data, err := json.Marshal(struct {
		Code        string `json:"code"`
		Severity    string `json:"severity"`
		File        string `json:"file"`
		Line        int    `json:"line"`
		Column      int    `json:"column"`
		Message     string `json:"message"`
		Remediation string `json:"remediation,omitempty"`
	}{d.Code, d.Severity.String(), d.File, d.Line, d.Column, d.Message, d.Remediation})
	if err != nil {
		return "{}"
	}

	return string(data)
}

// Builder provides the fluent construction style the teacher's
// diagnostic packages use throughout (WithX chains terminated by Build).
type Builder struct {
	d Diagnostic
}

// New starts a new diagnostic of the given severity and code.
func New(severity Severity, code string) *Builder {
	return &Builder{d: Diagnostic{Severity: severity, Code: code}}
}

func Err(code string) *Builder   { return New(Error, code) }
func Warn(code string) *Builder  { return New(Warning, code) }
func Info(code string) *Builder  { return New(Note, code) }

func (b *Builder) At(file string, line, col int) *Builder {
	b.d.File = file
	b.d.Line = line
	b.d.Column = col

	return b
}

func (b *Builder) Msg(format string, args ...interface{}) *Builder {
	b.d.Message = fmt.Sprintf(format, args...)

	return b
}

func (b *Builder) Help(format string, args ...interface{}) *Builder {
	b.d.Remediation = fmt.Sprintf(format, args...)

	return b
}

func (b *Builder) Note(rel Diagnostic) *Builder {
	b.d.Related = append(b.d.Related, rel)

	return b
}

func (b *Builder) Build() *Diagnostic {
	out := b.d

	return &out
}

// List is an ordered collection of diagnostics produced by a phase that
// collects as many errors as it safely can before returning (sema,
// mostly); most phases stop at the first error per spec §7's
// single-failure-boundary policy and never need more than one entry.
type List struct {
	items []*Diagnostic
}

func (l *List) Add(d *Diagnostic) { l.items = append(l.items, d) }
func (l *List) Empty() bool       { return len(l.items) == 0 }
func (l *List) Items() []*Diagnostic { return l.items }

func (l *List) First() *Diagnostic {
	if len(l.items) == 0 {
		return nil
	}

	return l.items[0]
}

func (l *List) Format() string {
	parts := make([]string, len(l.items))
	for i, d := range l.items {
		parts[i] = d.Format()
	}

	return strings.Join(parts, "\n\n")
}
