// Package lang defines the normalized statement model the analysis engine
// consumes, and the adapter contract per-language front ends implement.
//
// Adapters lower language grammars onto a small, closed statement taxonomy;
// nested expressions (calls inside format strings, chained calls) are hoisted
// into synthetic single-assignment statements so the graph builder and the
// tracker only ever see flat operands. Adding a language means mapping its
// grammar onto this fixed taxonomy, not adding type checks downstream.
package lang

import (
	"context"
	"fmt"
	"strings"
)

// StatementKind is the closed tagged-variant taxonomy for normalized
// statements.
type StatementKind int

const (
	KindAssign StatementKind = iota
	KindAugAssign
	KindCall
	KindExpr
	KindBranch
	KindLoopHeader
	KindReturn
	KindRaise
	KindFunctionDef
	KindImport
	KindUnknown
)

func (k StatementKind) String() string {
	switch k {
	case KindAssign:
		return "assign"
	case KindAugAssign:
		return "aug_assign"
	case KindCall:
		return "call"
	case KindExpr:
		return "expr"
	case KindBranch:
		return "branch"
	case KindLoopHeader:
		return "loop_header"
	case KindReturn:
		return "return"
	case KindRaise:
		return "raise"
	case KindFunctionDef:
		return "function_def"
	case KindImport:
		return "import"
	default:
		return "unknown"
	}
}

// BranchKind distinguishes the control constructs lowered onto KindBranch.
type BranchKind int

const (
	BranchIf BranchKind = iota
	BranchTry
)

// SourceRange is a half-open region of the original source text. Lines and
// columns are 1-indexed and 0-indexed respectively, matching editor
// conventions for reported locations.
type SourceRange struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Operand is a flat value reference: either an identifier (possibly dotted,
// e.g. "location.hash") or a literal. Adapters guarantee operands never nest.
type Operand struct {
	// Var is the referenced identifier; empty for literals.
	Var string
	// Literal holds the raw literal text, for reporting only.
	Literal   string
	IsLiteral bool
}

// VarOperand builds an identifier operand.
func VarOperand(name string) Operand { return Operand{Var: name} }

// LitOperand builds a literal operand.
func LitOperand(text string) Operand { return Operand{Literal: text, IsLiteral: true} }

// CallExpr is a flattened call: a fully qualified callee path and flat
// argument operands.
type CallExpr struct {
	// Qualified is the dotted callee path (e.g. "cursor.execute"). Empty
	// when the callee could not be statically flattened.
	Qualified string
	// Receiver is the base identifier the call is made on ("cursor" for
	// "cursor.execute"), empty for plain function calls.
	Receiver string
	Args     []Operand
}

// Statement is one normalized statement node. Exactly the fields relevant to
// the Kind are populated; the rest stay zero.
type Statement struct {
	Kind       StatementKind
	BranchKind BranchKind

	// Target is the assignment destination (simple or dotted identifier).
	Target string
	// Call is the RHS call for assignments, the call itself for KindCall,
	// and the raised expression for KindRaise when it is a call.
	Call *CallExpr
	// Concat holds the parts of a concatenation/format RHS.
	Concat []Operand
	// Value is a plain alias/literal RHS, or the returned operand.
	Value *Operand

	// CondUses lists identifiers read by a branch or loop condition.
	CondUses []string

	// Arms holds nested blocks: branch arms, the loop body (Arms[0]), or the
	// function body (Arms[0]).
	Arms [][]*Statement
	// Exhaustive is true when a branch has an arm covering every path (an
	// else/default arm), so control cannot fall through untouched.
	Exhaustive bool

	// Name is the defined function name or imported module path.
	Name string
	// Params lists function parameter names in declaration order.
	Params []string

	Range SourceRange

	// Synthetic marks statements the adapter fabricated while hoisting
	// nested expressions.
	Synthetic bool
}

// Uses returns every identifier the statement reads, in deterministic order.
func (s *Statement) Uses() []string {
	var uses []string
	add := func(name string) {
		if name == "" {
			return
		}
		for _, u := range uses {
			if u == name {
				return
			}
		}
		uses = append(uses, name)
	}

	if s.Call != nil {
		add(s.Call.Receiver)
		for _, a := range s.Call.Args {
			add(a.Var)
		}
	}
	for _, p := range s.Concat {
		add(p.Var)
	}
	if s.Value != nil {
		add(s.Value.Var)
	}
	for _, c := range s.CondUses {
		add(c)
	}
	if s.Kind == KindAugAssign {
		add(s.Target)
	}
	return uses
}

// BaseVar returns the root identifier of a dotted path, or the name itself
// when it carries no dots.
func BaseVar(name string) string {
	if idx := strings.Index(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}

// Unit is one normalized source unit (a file or module).
type Unit struct {
	Path       string
	Language   string
	Statements []*Statement
}

// Adapter normalizes raw source text into statement nodes.
type Adapter interface {
	// Language returns the language key the adapter handles.
	Language() string
	// Normalize parses source and lowers it onto the statement taxonomy.
	// A *SyntaxError is returned for source that cannot form a unit;
	// unsupported constructs degrade to KindUnknown instead of failing.
	Normalize(ctx context.Context, path string, source []byte) (*Unit, error)
}

// SyntaxError reports source that could not be parsed into a unit.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error: %s", e.Path, e.Line, e.Column, e.Msg)
}

// TempNamer hands out unit-scoped names for synthetic assignment targets.
type TempNamer struct {
	n int
}

// Next returns the next synthetic identifier.
func (t *TempNamer) Next() string {
	name := fmt.Sprintf("__tmp%d", t.n)
	t.n++
	return name
}
