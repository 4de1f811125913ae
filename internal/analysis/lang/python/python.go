// Package python lowers Python source onto the normalized statement
// taxonomy using the Tree-sitter grammar.
package python

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/analysis/lang"
)

// Adapter normalizes Python source units.
type Adapter struct {
	logger *zap.Logger
}

// New creates a Python adapter.
func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger.Named("py_adapter")}
}

// Language implements lang.Adapter.
func (a *Adapter) Language() string { return "python" }

// Normalize parses and lowers one Python source unit. A *lang.SyntaxError is
// returned when the grammar cannot form a tree; constructs the lowering does
// not model degrade to opaque statements instead.
func (a *Adapter) Normalize(ctx context.Context, path string, source []byte) (*lang.Unit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col := firstErrorLocation(root)
		return nil, &lang.SyntaxError{Path: path, Line: line, Column: col, Msg: "invalid python syntax"}
	}

	lw := &lowerer{source: source, namer: &lang.TempNamer{}, logger: a.logger}
	stmts := lw.lowerBlock(root)

	return &lang.Unit{Path: path, Language: "python", Statements: stmts}, nil
}

// firstErrorLocation finds the position of the first ERROR or MISSING node.
func firstErrorLocation(node *sitter.Node) (int, int) {
	if node.Type() == "ERROR" || node.IsMissing() {
		p := node.StartPoint()
		return int(p.Row) + 1, int(p.Column)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.HasError() {
			return firstErrorLocation(child)
		}
	}
	p := node.StartPoint()
	return int(p.Row) + 1, int(p.Column)
}

type lowerer struct {
	source []byte
	namer  *lang.TempNamer
	logger *zap.Logger
}

func (l *lowerer) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(l.source)
}

func rangeOf(n *sitter.Node) lang.SourceRange {
	s, e := n.StartPoint(), n.EndPoint()
	return lang.SourceRange{
		StartLine:   int(s.Row) + 1,
		StartColumn: int(s.Column),
		EndLine:     int(e.Row) + 1,
		EndColumn:   int(e.Column),
	}
}

// lowerBlock lowers every statement-level child of a block or module node.
func (l *lowerer) lowerBlock(block *sitter.Node) []*lang.Statement {
	var out []*lang.Statement
	if block == nil {
		return out
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		l.lowerStatement(block.NamedChild(i), &out)
	}
	return out
}

func (l *lowerer) lowerStatement(node *sitter.Node, out *[]*lang.Statement) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "comment":
		// Skipped entirely.

	case "expression_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			l.lowerExprStatement(node.NamedChild(i), out)
		}

	case "if_statement":
		l.lowerIf(node, out)

	case "while_statement":
		l.lowerWhile(node, out)

	case "for_statement":
		l.lowerFor(node, out)

	case "try_statement":
		l.lowerTry(node, out)

	case "with_statement":
		l.lowerWith(node, out)

	case "match_statement":
		l.lowerMatch(node, out)

	case "function_definition":
		l.lowerFunctionDef(node, out)

	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			l.lowerStatement(def, out)
		}

	case "class_definition":
		l.lowerClassDef(node, out)

	case "return_statement":
		st := &lang.Statement{Kind: lang.KindReturn, Range: rangeOf(node)}
		if val := firstExpressionChild(node); val != nil {
			op := l.evalExpr(val, out)
			st.Value = &op
		}
		*out = append(*out, st)

	case "raise_statement":
		st := &lang.Statement{Kind: lang.KindRaise, Range: rangeOf(node)}
		if val := firstExpressionChild(node); val != nil {
			if val.Type() == "call" {
				st.Call, _ = l.evalCall(val, out)
			} else {
				op := l.evalExpr(val, out)
				st.Value = &op
			}
		}
		*out = append(*out, st)

	case "import_statement", "import_from_statement", "future_import_statement":
		*out = append(*out, &lang.Statement{
			Kind:  lang.KindImport,
			Name:  strings.TrimSpace(l.content(node)),
			Range: rangeOf(node),
		})

	case "pass_statement", "break_statement", "continue_statement",
		"global_statement", "nonlocal_statement", "assert_statement",
		"delete_statement":
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})

	default:
		// Anything the lowering does not model becomes an opaque node so the
		// rest of the unit still gets analyzed.
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
	}
}

// lowerExprStatement handles the expression forms that can appear directly at
// statement level.
func (l *lowerer) lowerExprStatement(node *sitter.Node, out *[]*lang.Statement) {
	switch node.Type() {
	case "assignment":
		l.lowerAssignment(node, out)

	case "augmented_assignment":
		l.lowerAugAssignment(node, out)

	case "named_expression":
		// Walrus at statement level behaves like a plain assignment.
		name := node.ChildByFieldName("name")
		value := node.ChildByFieldName("value")
		if name != nil && value != nil {
			l.lowerAssignRHS(l.content(name), value, rangeOf(node), false, out)
		}

	case "call":
		ce, concat := l.evalCall(node, out)
		if concat != nil {
			// A bare format expression has no observable effect.
			*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})
			return
		}
		*out = append(*out, &lang.Statement{Kind: lang.KindCall, Call: ce, Range: rangeOf(node)})

	case "await":
		if inner := firstExpressionChild(node); inner != nil {
			l.lowerExprStatement(inner, out)
			return
		}
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})

	case "string", "integer", "float", "true", "false", "none", "identifier", "attribute":
		// Docstrings and other effect-free expressions.
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})

	default:
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
	}
}

func (l *lowerer) lowerAssignment(node *sitter.Node, out *[]*lang.Statement) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil {
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
		return
	}
	// Annotated declaration without a value: `x: int`.
	if right == nil {
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})
		return
	}

	switch left.Type() {
	case "identifier", "attribute", "subscript":
		target, ok := l.flattenPath(left)
		if !ok {
			target = firstIdentifier(left, l.source)
		}
		l.lowerAssignRHS(target, right, rangeOf(node), false, out)

	case "pattern_list", "tuple_pattern", "list_pattern":
		// a, b = rhs: every target aliases the full RHS.
		op := l.evalExpr(right, out)
		for i := 0; i < int(left.NamedChildCount()); i++ {
			t := left.NamedChild(i)
			target, ok := l.flattenPath(t)
			if !ok || target == "" {
				continue
			}
			opCopy := op
			*out = append(*out, &lang.Statement{
				Kind:   lang.KindAssign,
				Target: target,
				Value:  &opCopy,
				Range:  rangeOf(node),
			})
		}

	default:
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
	}
}

// lowerAssignRHS lowers `target = rhs` for one already-resolved target name.
func (l *lowerer) lowerAssignRHS(target string, rhs *sitter.Node, rng lang.SourceRange, synthetic bool, out *[]*lang.Statement) {
	if target == "" {
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rng})
		return
	}

	switch rhs.Type() {
	case "call":
		ce, concat := l.evalCall(rhs, out)
		if concat != nil {
			*out = append(*out, &lang.Statement{
				Kind: lang.KindAssign, Target: target, Concat: concat,
				Range: rng, Synthetic: synthetic,
			})
			return
		}
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Call: ce,
			Range: rng, Synthetic: synthetic,
		})

	case "binary_operator":
		parts := l.collectConcatParts(rhs, out)
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Concat: parts,
			Range: rng, Synthetic: synthetic,
		})

	case "string", "concatenated_string":
		if parts := l.stringParts(rhs, out); len(parts) > 0 {
			*out = append(*out, &lang.Statement{
				Kind: lang.KindAssign, Target: target, Concat: parts,
				Range: rng, Synthetic: synthetic,
			})
			return
		}
		lit := lang.LitOperand(l.content(rhs))
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Value: &lit,
			Range: rng, Synthetic: synthetic,
		})

	case "conditional_expression":
		// x if c else y joins both alternatives.
		var parts []lang.Operand
		for i := 0; i < int(rhs.NamedChildCount()); i++ {
			parts = append(parts, l.evalExpr(rhs.NamedChild(i), out))
		}
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Concat: parts,
			Range: rng, Synthetic: synthetic,
		})

	case "await":
		if inner := firstExpressionChild(rhs); inner != nil {
			l.lowerAssignRHS(target, inner, rng, synthetic, out)
			return
		}
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rng})

	default:
		op := l.evalExpr(rhs, out)
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Value: &op,
			Range: rng, Synthetic: synthetic,
		})
	}
}

func (l *lowerer) lowerAugAssignment(node *sitter.Node, out *[]*lang.Statement) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	target, ok := l.flattenPath(left)
	if !ok || target == "" || right == nil {
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
		return
	}
	parts := l.collectConcatParts(right, out)
	*out = append(*out, &lang.Statement{
		Kind: lang.KindAugAssign, Target: target, Concat: parts, Range: rangeOf(node),
	})
}

func (l *lowerer) lowerIf(node *sitter.Node, out *[]*lang.Statement) {
	st := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		CondUses:   l.subtreeVars(node.ChildByFieldName("condition")),
		Range:      rangeOf(node),
	}
	st.Arms = append(st.Arms, l.lowerBlock(node.ChildByFieldName("consequence")))

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "elif_clause":
			st.CondUses = appendUnique(st.CondUses, l.subtreeVars(child.ChildByFieldName("condition"))...)
			st.Arms = append(st.Arms, l.lowerBlock(child.ChildByFieldName("consequence")))
		case "else_clause":
			st.Arms = append(st.Arms, l.lowerBlock(child.ChildByFieldName("body")))
			st.Exhaustive = true
		}
	}
	*out = append(*out, st)
}

func (l *lowerer) lowerWhile(node *sitter.Node, out *[]*lang.Statement) {
	st := &lang.Statement{
		Kind:     lang.KindLoopHeader,
		CondUses: l.subtreeVars(node.ChildByFieldName("condition")),
		Range:    rangeOf(node),
	}
	st.Arms = append(st.Arms, l.lowerBlock(node.ChildByFieldName("body")))
	*out = append(*out, st)
}

func (l *lowerer) lowerFor(node *sitter.Node, out *[]*lang.Statement) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	st := &lang.Statement{
		Kind:     lang.KindLoopHeader,
		CondUses: l.subtreeVars(right),
		Range:    rangeOf(node),
	}

	// The loop variable is rebound from the iterable on every iteration, so
	// it is lowered as the first statement of the body.
	var body []*lang.Statement
	if left != nil && right != nil {
		iter := l.evalExpr(right, out)
		targets := l.patternTargets(left)
		for _, t := range targets {
			opCopy := iter
			body = append(body, &lang.Statement{
				Kind: lang.KindAssign, Target: t, Value: &opCopy,
				Range: rangeOf(left), Synthetic: true,
			})
		}
	}
	body = append(body, l.lowerBlock(node.ChildByFieldName("body"))...)
	st.Arms = append(st.Arms, body)
	*out = append(*out, st)
}

func (l *lowerer) lowerTry(node *sitter.Node, out *[]*lang.Statement) {
	st := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchTry,
		Exhaustive: true,
		Range:      rangeOf(node),
	}
	st.Arms = append(st.Arms, l.lowerBlock(node.ChildByFieldName("body")))

	var finallyBlock []*lang.Statement
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "except_clause", "except_group_clause":
			st.Arms = append(st.Arms, l.lowerBlock(lastBlockChild(child)))
		case "else_clause":
			st.Arms = append(st.Arms, l.lowerBlock(child.ChildByFieldName("body")))
		case "finally_clause":
			finallyBlock = l.lowerBlock(lastBlockChild(child))
		}
	}
	*out = append(*out, st)
	*out = append(*out, finallyBlock...)
}

func (l *lowerer) lowerWith(node *sitter.Node, out *[]*lang.Statement) {
	// with open(p) as f: body  →  f = open(p); body (inline).
	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		if clause.Type() != "with_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			item := clause.NamedChild(j)
			if item.Type() != "with_item" {
				continue
			}
			value := item.ChildByFieldName("value")
			if value == nil {
				continue
			}
			if value.Type() == "as_pattern" {
				expr := value.NamedChild(0)
				alias := value.ChildByFieldName("alias")
				target := ""
				if alias != nil {
					target = firstIdentifier(alias, l.source)
				}
				if target != "" && expr != nil {
					l.lowerAssignRHS(target, expr, rangeOf(item), false, out)
					continue
				}
			}
			// Context manager without an alias still runs its expression.
			op := l.evalExpr(value, out)
			_ = op
		}
	}
	*out = append(*out, l.lowerBlock(node.ChildByFieldName("body"))...)
}

func (l *lowerer) lowerMatch(node *sitter.Node, out *[]*lang.Statement) {
	// match/case lowers to a branch chain with the subject as the guard.
	st := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		CondUses:   l.subtreeVars(node.ChildByFieldName("subject")),
		Range:      rangeOf(node),
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		body = lastBlockChild(node)
	}
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			clause := body.NamedChild(i)
			if clause.Type() != "case_clause" {
				continue
			}
			st.Arms = append(st.Arms, l.lowerBlock(lastBlockChild(clause)))
		}
	}
	if len(st.Arms) == 0 {
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
		return
	}
	*out = append(*out, st)
}

func (l *lowerer) lowerFunctionDef(node *sitter.Node, out *[]*lang.Statement) {
	name := l.content(node.ChildByFieldName("name"))
	st := &lang.Statement{
		Kind:  lang.KindFunctionDef,
		Name:  name,
		Range: rangeOf(node),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "identifier":
				st.Params = append(st.Params, l.content(p))
			case "typed_parameter", "default_parameter", "typed_default_parameter":
				if id := firstIdentifier(p, l.source); id != "" {
					st.Params = append(st.Params, id)
				}
			case "list_splat_pattern", "dictionary_splat_pattern":
				if id := firstIdentifier(p, l.source); id != "" {
					st.Params = append(st.Params, id)
				}
			}
		}
	}

	st.Arms = append(st.Arms, l.lowerBlock(node.ChildByFieldName("body")))
	*out = append(*out, st)
}

func (l *lowerer) lowerClassDef(node *sitter.Node, out *[]*lang.Statement) {
	// Class bodies execute at definition time; methods become scoped
	// function definitions, everything else is lowered inline.
	className := l.content(node.ChildByFieldName("name"))
	body := l.lowerBlock(node.ChildByFieldName("body"))
	for _, st := range body {
		if st.Kind == lang.KindFunctionDef && className != "" {
			st.Name = className + "." + st.Name
		}
	}
	*out = append(*out, body...)
}

// -- Expression evaluation --

// evalExpr lowers an expression to a flat operand, hoisting nested calls and
// format expressions into synthetic assignments appended to out.
func (l *lowerer) evalExpr(node *sitter.Node, out *[]*lang.Statement) lang.Operand {
	if node == nil {
		return lang.LitOperand("")
	}

	switch node.Type() {
	case "identifier":
		return lang.VarOperand(l.content(node))

	case "attribute", "subscript":
		if path, ok := l.flattenPath(node); ok {
			return lang.VarOperand(path)
		}
		if id := firstIdentifier(node, l.source); id != "" {
			return lang.VarOperand(id)
		}
		return lang.LitOperand(l.content(node))

	case "call":
		ce, concat := l.evalCall(node, out)
		temp := l.namer.Next()
		st := &lang.Statement{
			Kind: lang.KindAssign, Target: temp,
			Range: rangeOf(node), Synthetic: true,
		}
		if concat != nil {
			st.Concat = concat
		} else {
			st.Call = ce
		}
		*out = append(*out, st)
		return lang.VarOperand(temp)

	case "binary_operator":
		parts := l.collectConcatParts(node, out)
		temp := l.namer.Next()
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: temp, Concat: parts,
			Range: rangeOf(node), Synthetic: true,
		})
		return lang.VarOperand(temp)

	case "string", "concatenated_string":
		if parts := l.stringParts(node, out); len(parts) > 0 {
			temp := l.namer.Next()
			*out = append(*out, &lang.Statement{
				Kind: lang.KindAssign, Target: temp, Concat: parts,
				Range: rangeOf(node), Synthetic: true,
			})
			return lang.VarOperand(temp)
		}
		return lang.LitOperand(l.content(node))

	case "parenthesized_expression", "await":
		if inner := firstExpressionChild(node); inner != nil {
			return l.evalExpr(inner, out)
		}
		return lang.LitOperand(l.content(node))

	case "named_expression":
		// (x := expr) assigns and yields x.
		name := node.ChildByFieldName("name")
		value := node.ChildByFieldName("value")
		if name != nil && value != nil {
			target := l.content(name)
			l.lowerAssignRHS(target, value, rangeOf(node), true, out)
			return lang.VarOperand(target)
		}
		return lang.LitOperand(l.content(node))

	case "list", "tuple", "set", "dictionary":
		var parts []lang.Operand
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "pair" {
				if v := child.ChildByFieldName("value"); v != nil {
					parts = append(parts, l.evalExpr(v, out))
				}
				continue
			}
			parts = append(parts, l.evalExpr(child, out))
		}
		return l.hoistConcat(parts, node, out)

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		// One bounded pass over the comprehension: the result carries the
		// taint of every identifier read inside it.
		var parts []lang.Operand
		for _, v := range l.subtreeVars(node) {
			parts = append(parts, lang.VarOperand(v))
		}
		return l.hoistConcat(parts, node, out)

	case "conditional_expression":
		var parts []lang.Operand
		for i := 0; i < int(node.NamedChildCount()); i++ {
			parts = append(parts, l.evalExpr(node.NamedChild(i), out))
		}
		return l.hoistConcat(parts, node, out)

	case "boolean_operator", "comparison_operator", "not_operator", "unary_operator":
		var parts []lang.Operand
		for _, v := range l.subtreeVars(node) {
			parts = append(parts, lang.VarOperand(v))
		}
		return l.hoistConcat(parts, node, out)

	default:
		return lang.LitOperand(l.content(node))
	}
}

// hoistConcat wraps multiple operands into one synthetic concat assignment.
// Zero operands collapse to a literal; a single non-literal operand is
// returned as-is.
func (l *lowerer) hoistConcat(parts []lang.Operand, node *sitter.Node, out *[]*lang.Statement) lang.Operand {
	varCount := 0
	for _, p := range parts {
		if p.Var != "" {
			varCount++
		}
	}
	if varCount == 0 {
		return lang.LitOperand(l.content(node))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	temp := l.namer.Next()
	*out = append(*out, &lang.Statement{
		Kind: lang.KindAssign, Target: temp, Concat: parts,
		Range: rangeOf(node), Synthetic: true,
	})
	return lang.VarOperand(temp)
}

// evalCall flattens a call. When the call is a format invocation on a string
// literal ("...".format(args)) it returns (nil, concat parts) instead.
func (l *lowerer) evalCall(node *sitter.Node, out *[]*lang.Statement) (*lang.CallExpr, []lang.Operand) {
	fn := node.ChildByFieldName("function")
	args := l.evalArgs(node.ChildByFieldName("arguments"), out)

	// "...{}".format(x) lowers to a concat of the literal and the arguments.
	if fn != nil && fn.Type() == "attribute" {
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj != nil && attr != nil && l.content(attr) == "format" &&
			(obj.Type() == "string" || obj.Type() == "concatenated_string") {
			parts := append([]lang.Operand{lang.LitOperand(l.content(obj))}, args...)
			return nil, parts
		}
	}

	ce := &lang.CallExpr{Args: args}
	if fn != nil {
		if path, ok := l.flattenPath(fn); ok {
			ce.Qualified = path
			if idx := strings.Index(path, "."); idx > 0 {
				ce.Receiver = path[:idx]
			}
		} else if fn.Type() == "call" {
			// Chained call: hoist the receiver first.
			recv := l.evalExpr(fn, out)
			ce.Qualified = recv.Var
			ce.Receiver = recv.Var
		} else {
			ce.Qualified = ""
		}
	}
	return ce, nil
}

func (l *lowerer) evalArgs(argsNode *sitter.Node, out *[]*lang.Statement) []lang.Operand {
	var args []lang.Operand
	if argsNode == nil {
		return args
	}
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		arg := argsNode.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument":
			if v := arg.ChildByFieldName("value"); v != nil {
				args = append(args, l.evalExpr(v, out))
			}
		case "list_splat", "dictionary_splat":
			if inner := firstExpressionChild(arg); inner != nil {
				args = append(args, l.evalExpr(inner, out))
			}
		case "comment":
			// Skipped.
		default:
			args = append(args, l.evalExpr(arg, out))
		}
	}
	return args
}

// collectConcatParts flattens nested +, %, and similar binary chains into a
// single operand list. Non-concatenating operators still propagate taint from
// both sides, which over-approximates rather than loses flows.
func (l *lowerer) collectConcatParts(node *sitter.Node, out *[]*lang.Statement) []lang.Operand {
	if node == nil {
		return nil
	}
	if node.Type() == "binary_operator" {
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		parts := l.collectConcatParts(left, out)
		return append(parts, l.collectConcatParts(right, out)...)
	}
	return []lang.Operand{l.evalExpr(node, out)}
}

// stringParts extracts interpolation operands from an f-string. A plain
// string yields nil.
func (l *lowerer) stringParts(node *sitter.Node, out *[]*lang.Statement) []lang.Operand {
	var parts []lang.Operand
	hasInterpolation := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "interpolation":
				hasInterpolation = true
				expr := child.ChildByFieldName("expression")
				if expr == nil && child.NamedChildCount() > 0 {
					// Grammar fallback: the expression is the first named child.
					expr = child.NamedChild(0)
				}
				if expr != nil {
					parts = append(parts, l.evalExpr(expr, out))
				}
			case "string":
				walk(child)
			}
		}
	}
	walk(node)
	if !hasInterpolation {
		return nil
	}
	// The literal fragments participate for reporting parity.
	parts = append(parts, lang.LitOperand(l.content(node)))
	return parts
}

// flattenPath flattens identifier/attribute/subscript chains into a dotted
// path; obj["key"] flattens as obj.key. Computed receivers cannot be
// flattened statically.
func (l *lowerer) flattenPath(node *sitter.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "identifier":
		return l.content(node), true
	case "attribute":
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return "", false
		}
		base, ok := l.flattenPath(obj)
		if !ok {
			return "", false
		}
		return base + "." + l.content(attr), true
	case "subscript":
		obj := node.ChildByFieldName("value")
		if obj == nil {
			obj = node.NamedChild(0)
		}
		idx := node.ChildByFieldName("subscript")
		if idx == nil && node.NamedChildCount() > 1 {
			idx = node.NamedChild(1)
		}
		if obj == nil || idx == nil || idx.Type() != "string" {
			return "", false
		}
		base, ok := l.flattenPath(obj)
		if !ok {
			return "", false
		}
		key := strings.Trim(l.content(idx), "\"'")
		return base + "." + key, true
	default:
		return "", false
	}
}

// patternTargets extracts assignable names from a loop target pattern.
func (l *lowerer) patternTargets(node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "identifier":
		return []string{l.content(node)}
	case "pattern_list", "tuple_pattern", "list_pattern":
		var targets []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			targets = append(targets, l.patternTargets(node.NamedChild(i))...)
		}
		return targets
	default:
		if id := firstIdentifier(node, l.source); id != "" {
			return []string{id}
		}
		return nil
	}
}

// subtreeVars collects the identifiers (and flattenable dotted paths) read
// anywhere under a node, in source order without duplicates.
func (l *lowerer) subtreeVars(node *sitter.Node) []string {
	var vars []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier":
			vars = appendUnique(vars, l.content(n))
			return
		case "attribute", "subscript":
			if path, ok := l.flattenPath(n); ok {
				vars = appendUnique(vars, path)
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return vars
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

// firstExpressionChild returns the first named child, skipping comments.
func firstExpressionChild(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "comment" {
			return child
		}
	}
	return nil
}

// firstIdentifier finds the first identifier anywhere under a node.
func firstIdentifier(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() == "identifier" {
		return node.Content(source)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if id := firstIdentifier(node.NamedChild(i), source); id != "" {
			return id
		}
	}
	return ""
}

// lastBlockChild returns the last child of type block, used for clauses whose
// grammar does not expose a body field.
func lastBlockChild(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	var block *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "block" {
			block = child
		}
	}
	return block
}
