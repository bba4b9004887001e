// Package ir builds the custom LLVM-style textual IR described in spec
// §4.6 out of an hir.Module: a minimal type system (void/i1/iN/double/
// ptr/named structs/fixed arrays), global constants, and functions as a
// control-flow graph of named basic blocks built through an insertion
// point, the same shape the teacher's own internal/lir package uses for
// its pre-codegen IR. This package never calls into LLVM; Build's
// output is a self-contained Module that internal/backend normalizes
// and either verifies/optimizes/emits or interprets directly.
package ir

import (
	"fmt"
	"strings"
)

// Linkage mirrors spec §4.6's three linkage kinds for globals and
// functions.
type Linkage string

const (
	External Linkage = "external"
	Internal Linkage = "internal"
	Private  Linkage = "private"
)

// StructType is a named aggregate layout: a flat field-type list in
// declaration order, or a single-field collapse for a union (the field
// type is the largest constituent's type).
type StructType struct {
	Name   string
	Fields []string
}

func (s *StructType) String() string {
	return fmt.Sprintf("%%%s = type { %s }", s.Name, strings.Join(s.Fields, ", "))
}

// Global is a module-level value: either a typed constant initializer
// or an external declaration with no initializer.
type Global struct {
	Name        string
	Type        string
	Linkage     Linkage
	Constant    bool
	UnnamedAddr bool
	Initializer string // empty for a pure declaration
	IsDeclaration bool
}

func (g *Global) String() string {
	if g.IsDeclaration {
		return fmt.Sprintf("@%s = external global %s", g.Name, g.Type)
	}

	kind := "global"
	if g.Constant {
		kind = "constant"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "@%s =", g.Name)

	if g.Linkage != External && g.Linkage != "" {
		fmt.Fprintf(&b, " %s", string(g.Linkage))
	}

	if g.UnnamedAddr {
		b.WriteString(" unnamed_addr")
	}

	fmt.Fprintf(&b, " %s %s %s", kind, g.Type, g.Initializer)

	return b.String()
}

// Param is one function parameter: its IR type and source name.
type Param struct {
	Type string
	Name string
}

// Instr is a single IR instruction inside a basic block.
type Instr interface {
	String() string
}

// BasicBlock is a named straight-line instruction run ending in a
// terminator (Br, CondBr, Ret, RetVoid, or Unreachable).
type BasicBlock struct {
	Label  string
	Instrs []Instr
}

func (b *BasicBlock) String() string {
	var out strings.Builder

	fmt.Fprintf(&out, "%s:\n", b.Label)

	for _, in := range b.Instrs {
		out.WriteString("  ")
		out.WriteString(in.String())
		out.WriteString("\n")
	}

	return out.String()
}

// Function is a named sequence of basic blocks with an insertion point
// managed by Builder while it's being built; IsDeclaration functions
// carry no blocks.
type Function struct {
	Name          string
	ReturnType    string
	Params        []Param
	Variadic      bool
	Linkage       Linkage
	Blocks        []*BasicBlock
	IsDeclaration bool
}

func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Type, p.Name)
	}

	if f.Variadic {
		params = append(params, "...")
	}

	sig := fmt.Sprintf("%s @%s(%s)", f.ReturnType, f.Name, strings.Join(params, ", "))

	if f.IsDeclaration {
		return "declare " + sig
	}

	var b strings.Builder

	b.WriteString("define ")

	if f.Linkage != External && f.Linkage != "" {
		fmt.Fprintf(&b, "%s ", string(f.Linkage))
	}

	fmt.Fprintf(&b, "%s {\n", sig)

	for _, blk := range f.Blocks {
		b.WriteString(blk.String())
	}

	b.WriteString("}")

	return b.String()
}

// Module is the complete lowered-from-HIR translation unit: named
// struct layouts, globals (including the reflection table and any
// linkage-decl externals), and functions (prototypes and bodies).
type Module struct {
	Name      string
	Structs   []*StructType
	Globals   []*Global
	Functions []*Function
}

func (m *Module) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "; module %q\n", m.Name)

	for _, s := range m.Structs {
		b.WriteString(s.String())
		b.WriteString("\n")
	}

	for _, g := range m.Globals {
		b.WriteString(g.String())
		b.WriteString("\n")
	}

	for _, f := range m.Functions {
		b.WriteString("\n")
		b.WriteString(f.String())
		b.WriteString("\n")
	}

	return b.String()
}

// StructByName looks up a named aggregate layout, or nil if undefined.
func (m *Module) StructByName(name string) *StructType {
	for _, s := range m.Structs {
		if s.Name == name {
			return s
		}
	}

	return nil
}

// FunctionByName looks up a function by name, or nil if undefined.
func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}

	return nil
}
