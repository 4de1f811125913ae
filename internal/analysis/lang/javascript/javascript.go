// Package javascript lowers JavaScript source onto the normalized statement
// taxonomy using the Tree-sitter grammar.
package javascript

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/analysis/lang"
)

// Adapter normalizes JavaScript source units.
type Adapter struct {
	logger *zap.Logger
}

// New creates a JavaScript adapter.
func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger.Named("js_adapter")}
}

// Language implements lang.Adapter.
func (a *Adapter) Language() string { return "javascript" }

// Normalize parses and lowers one JavaScript source unit.
func (a *Adapter) Normalize(ctx context.Context, path string, source []byte) (*lang.Unit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col := firstErrorLocation(root)
		return nil, &lang.SyntaxError{Path: path, Line: line, Column: col, Msg: "invalid javascript syntax"}
	}

	lw := &lowerer{source: source, namer: &lang.TempNamer{}, logger: a.logger}
	stmts := lw.lowerBlock(root)

	return &lang.Unit{Path: path, Language: "javascript", Statements: stmts}, nil
}

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
	case "comment", "empty_statement":
		// Skipped.

	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			decl := node.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			value := decl.ChildByFieldName("value")
			if name == nil {
				continue
			}
			if value == nil {
				*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(decl)})
				continue
			}
			for _, target := range l.patternTargets(name) {
				l.lowerAssignRHS(target, value, rangeOf(decl), false, out)
			}
		}

	case "expression_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			l.lowerExprStatement(node.NamedChild(i), out)
		}

	case "if_statement":
		l.lowerIf(node, out)

	case "while_statement", "do_statement":
		st := &lang.Statement{
			Kind:     lang.KindLoopHeader,
			CondUses: l.subtreeVars(node.ChildByFieldName("condition")),
			Range:    rangeOf(node),
		}
		st.Arms = append(st.Arms, l.lowerStatementAsBlock(node.ChildByFieldName("body")))
		*out = append(*out, st)

	case "for_statement":
		l.lowerFor(node, out)

	case "for_in_statement":
		l.lowerForIn(node, out)

	case "try_statement":
		l.lowerTry(node, out)

	case "switch_statement":
		l.lowerSwitch(node, out)

	case "function_declaration", "generator_function_declaration":
		l.lowerFunctionDecl(node, out)

	case "class_declaration":
		l.lowerClassDecl(node, out)

	case "return_statement":
		st := &lang.Statement{Kind: lang.KindReturn, Range: rangeOf(node)}
		if val := firstExpressionChild(node); val != nil {
			op := l.evalExpr(val, out)
			st.Value = &op
		}
		*out = append(*out, st)

	case "throw_statement":
		st := &lang.Statement{Kind: lang.KindRaise, Range: rangeOf(node)}
		if val := firstExpressionChild(node); val != nil {
			if val.Type() == "call_expression" || val.Type() == "new_expression" {
				st.Call = l.evalCall(val, out)
			} else {
				op := l.evalExpr(val, out)
				st.Value = &op
			}
		}
		*out = append(*out, st)

	case "import_statement", "export_statement":
		*out = append(*out, &lang.Statement{
			Kind:  lang.KindImport,
			Name:  strings.TrimSpace(l.content(node)),
			Range: rangeOf(node),
		})

	case "statement_block":
		*out = append(*out, l.lowerBlock(node)...)

	case "break_statement", "continue_statement", "debugger_statement",
		"labeled_statement":
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})

	default:
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
	}
}

// lowerStatementAsBlock normalizes a single-statement body or a statement
// block into one arm.
func (l *lowerer) lowerStatementAsBlock(node *sitter.Node) []*lang.Statement {
	if node == nil {
		return nil
	}
	if node.Type() == "statement_block" {
		return l.lowerBlock(node)
	}
	var out []*lang.Statement
	l.lowerStatement(node, &out)
	return out
}

func (l *lowerer) lowerExprStatement(node *sitter.Node, out *[]*lang.Statement) {
	switch node.Type() {
	case "assignment_expression":
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		target, ok := l.flattenPath(left)
		if !ok || target == "" || right == nil {
			*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
			return
		}
		l.lowerAssignRHS(target, right, rangeOf(node), false, out)

	case "augmented_assignment_expression":
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

	case "call_expression", "new_expression":
		ce := l.evalCall(node, out)
		*out = append(*out, &lang.Statement{Kind: lang.KindCall, Call: ce, Range: rangeOf(node)})

	case "await_expression", "parenthesized_expression":
		if inner := firstExpressionChild(node); inner != nil {
			l.lowerExprStatement(inner, out)
			return
		}
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})

	case "sequence_expression":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			l.lowerExprStatement(node.NamedChild(i), out)
		}

	case "string", "number", "identifier", "member_expression", "template_string":
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})

	default:
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rangeOf(node)})
	}
}

func (l *lowerer) lowerAssignRHS(target string, rhs *sitter.Node, rng lang.SourceRange, synthetic bool, out *[]*lang.Statement) {
	switch rhs.Type() {
	case "call_expression", "new_expression":
		ce := l.evalCall(rhs, out)
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Call: ce,
			Range: rng, Synthetic: synthetic,
		})

	case "binary_expression":
		parts := l.collectConcatParts(rhs, out)
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Concat: parts,
			Range: rng, Synthetic: synthetic,
		})

	case "template_string":
		if parts := l.templateParts(rhs, out); len(parts) > 0 {
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

	case "ternary_expression":
		var parts []lang.Operand
		if c := rhs.ChildByFieldName("consequence"); c != nil {
			parts = append(parts, l.evalExpr(c, out))
		}
		if a := rhs.ChildByFieldName("alternative"); a != nil {
			parts = append(parts, l.evalExpr(a, out))
		}
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Concat: parts,
			Range: rng, Synthetic: synthetic,
		})

	case "await_expression", "parenthesized_expression":
		if inner := firstExpressionChild(rhs); inner != nil {
			l.lowerAssignRHS(target, inner, rng, synthetic, out)
			return
		}
		*out = append(*out, &lang.Statement{Kind: lang.KindUnknown, Range: rng})

	case "arrow_function", "function_expression", "generator_function":
		// Named function values become scoped definitions.
		st := &lang.Statement{Kind: lang.KindFunctionDef, Name: target, Range: rng}
		st.Params = l.functionParams(rhs)
		st.Arms = append(st.Arms, l.functionBody(rhs))
		*out = append(*out, st)

	default:
		op := l.evalExpr(rhs, out)
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: target, Value: &op,
			Range: rng, Synthetic: synthetic,
		})
	}
}

func (l *lowerer) lowerIf(node *sitter.Node, out *[]*lang.Statement) {
	st := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		CondUses:   l.subtreeVars(node.ChildByFieldName("condition")),
		Range:      rangeOf(node),
	}
	st.Arms = append(st.Arms, l.lowerStatementAsBlock(node.ChildByFieldName("consequence")))

	alt := node.ChildByFieldName("alternative")
	for alt != nil {
		if alt.Type() == "else_clause" {
			if alt.NamedChildCount() > 0 {
				alt = alt.NamedChild(0)
				continue
			}
			break
		}
		if alt.Type() == "if_statement" {
			// else-if chains flatten into additional arms.
			st.CondUses = appendUnique(st.CondUses, l.subtreeVars(alt.ChildByFieldName("condition"))...)
			st.Arms = append(st.Arms, l.lowerStatementAsBlock(alt.ChildByFieldName("consequence")))
			alt = alt.ChildByFieldName("alternative")
			continue
		}
		st.Arms = append(st.Arms, l.lowerStatementAsBlock(alt))
		st.Exhaustive = true
		break
	}
	*out = append(*out, st)
}

func (l *lowerer) lowerFor(node *sitter.Node, out *[]*lang.Statement) {
	// The initializer runs once before the loop.
	if init := node.ChildByFieldName("initializer"); init != nil {
		l.lowerStatement(init, out)
	}
	st := &lang.Statement{
		Kind:     lang.KindLoopHeader,
		CondUses: l.subtreeVars(node.ChildByFieldName("condition")),
		Range:    rangeOf(node),
	}
	body := l.lowerStatementAsBlock(node.ChildByFieldName("body"))
	if incr := node.ChildByFieldName("increment"); incr != nil {
		var tail []*lang.Statement
		l.lowerExprStatement(incr, &tail)
		body = append(body, tail...)
	}
	st.Arms = append(st.Arms, body)
	*out = append(*out, st)
}

func (l *lowerer) lowerForIn(node *sitter.Node, out *[]*lang.Statement) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	st := &lang.Statement{
		Kind:     lang.KindLoopHeader,
		CondUses: l.subtreeVars(right),
		Range:    rangeOf(node),
	}

	var body []*lang.Statement
	if left != nil && right != nil {
		iter := l.evalExpr(right, out)
		for _, t := range l.patternTargets(left) {
			opCopy := iter
			body = append(body, &lang.Statement{
				Kind: lang.KindAssign, Target: t, Value: &opCopy,
				Range: rangeOf(left), Synthetic: true,
			})
		}
	}
	body = append(body, l.lowerStatementAsBlock(node.ChildByFieldName("body"))...)
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

	if handler := node.ChildByFieldName("handler"); handler != nil {
		st.Arms = append(st.Arms, l.lowerBlock(handler.ChildByFieldName("body")))
	}
	*out = append(*out, st)

	if fin := node.ChildByFieldName("finalizer"); fin != nil {
		*out = append(*out, l.lowerBlock(fin.ChildByFieldName("body"))...)
	}
}

func (l *lowerer) lowerSwitch(node *sitter.Node, out *[]*lang.Statement) {
	st := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		CondUses:   l.subtreeVars(node.ChildByFieldName("value")),
		Range:      rangeOf(node),
	}
	body := node.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			clause := body.NamedChild(i)
			switch clause.Type() {
			case "switch_case":
				var arm []*lang.Statement
				for j := 0; j < int(clause.NamedChildCount()); j++ {
					child := clause.NamedChild(j)
					if child == clause.ChildByFieldName("value") {
						continue
					}
					l.lowerStatement(child, &arm)
				}
				st.Arms = append(st.Arms, arm)
			case "switch_default":
				var arm []*lang.Statement
				for j := 0; j < int(clause.NamedChildCount()); j++ {
					l.lowerStatement(clause.NamedChild(j), &arm)
				}
				st.Arms = append(st.Arms, arm)
				st.Exhaustive = true
			}
		}
	}
	if len(st.Arms) == 0 {
		*out = append(*out, &lang.Statement{Kind: lang.KindExpr, Range: rangeOf(node)})
		return
	}
	*out = append(*out, st)
}

func (l *lowerer) lowerFunctionDecl(node *sitter.Node, out *[]*lang.Statement) {
	st := &lang.Statement{
		Kind:  lang.KindFunctionDef,
		Name:  l.content(node.ChildByFieldName("name")),
		Range: rangeOf(node),
	}
	st.Params = l.functionParams(node)
	st.Arms = append(st.Arms, l.functionBody(node))
	*out = append(*out, st)
}

func (l *lowerer) lowerClassDecl(node *sitter.Node, out *[]*lang.Statement) {
	className := l.content(node.ChildByFieldName("name"))
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() != "method_definition" {
			continue
		}
		name := l.content(member.ChildByFieldName("name"))
		if className != "" {
			name = className + "." + name
		}
		st := &lang.Statement{Kind: lang.KindFunctionDef, Name: name, Range: rangeOf(member)}
		st.Params = l.functionParams(member)
		st.Arms = append(st.Arms, l.functionBody(member))
		*out = append(*out, st)
	}
}

func (l *lowerer) functionParams(node *sitter.Node) []string {
	var params []string
	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode == nil {
		// Arrow functions may take a single bare identifier.
		if p := node.ChildByFieldName("parameter"); p != nil {
			return l.patternTargets(p)
		}
		return params
	}
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		params = append(params, l.patternTargets(paramsNode.NamedChild(i))...)
	}
	return params
}

func (l *lowerer) functionBody(node *sitter.Node) []*lang.Statement {
	body := node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	if body.Type() == "statement_block" {
		return l.lowerBlock(body)
	}
	// Expression-bodied arrow function: lower as an implicit return.
	var out []*lang.Statement
	op := l.evalExpr(body, &out)
	out = append(out, &lang.Statement{Kind: lang.KindReturn, Value: &op, Range: rangeOf(body)})
	return out
}

// -- Expression evaluation --

func (l *lowerer) evalExpr(node *sitter.Node, out *[]*lang.Statement) lang.Operand {
	if node == nil {
		return lang.LitOperand("")
	}

	switch node.Type() {
	case "identifier", "this":
		return lang.VarOperand(l.content(node))

	case "member_expression", "subscript_expression":
		if path, ok := l.flattenPath(node); ok {
			return lang.VarOperand(path)
		}
		if id := firstIdentifier(node, l.source); id != "" {
			return lang.VarOperand(id)
		}
		return lang.LitOperand(l.content(node))

	case "call_expression", "new_expression":
		ce := l.evalCall(node, out)
		temp := l.namer.Next()
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: temp, Call: ce,
			Range: rangeOf(node), Synthetic: true,
		})
		return lang.VarOperand(temp)

	case "binary_expression":
		parts := l.collectConcatParts(node, out)
		temp := l.namer.Next()
		*out = append(*out, &lang.Statement{
			Kind: lang.KindAssign, Target: temp, Concat: parts,
			Range: rangeOf(node), Synthetic: true,
		})
		return lang.VarOperand(temp)

	case "template_string":
		if parts := l.templateParts(node, out); len(parts) > 0 {
			temp := l.namer.Next()
			*out = append(*out, &lang.Statement{
				Kind: lang.KindAssign, Target: temp, Concat: parts,
				Range: rangeOf(node), Synthetic: true,
			})
			return lang.VarOperand(temp)
		}
		return lang.LitOperand(l.content(node))

	case "parenthesized_expression", "await_expression":
		if inner := firstExpressionChild(node); inner != nil {
			return l.evalExpr(inner, out)
		}
		return lang.LitOperand(l.content(node))

	case "ternary_expression":
		var parts []lang.Operand
		if c := node.ChildByFieldName("consequence"); c != nil {
			parts = append(parts, l.evalExpr(c, out))
		}
		if a := node.ChildByFieldName("alternative"); a != nil {
			parts = append(parts, l.evalExpr(a, out))
		}
		return l.hoistConcat(parts, node, out)

	case "array", "object":
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

	case "unary_expression", "update_expression":
		var parts []lang.Operand
		for _, v := range l.subtreeVars(node) {
			parts = append(parts, lang.VarOperand(v))
		}
		return l.hoistConcat(parts, node, out)

	default:
		return lang.LitOperand(l.content(node))
	}
}

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

func (l *lowerer) evalCall(node *sitter.Node, out *[]*lang.Statement) *lang.CallExpr {
	var fn *sitter.Node
	if node.Type() == "new_expression" {
		fn = node.ChildByFieldName("constructor")
	} else {
		fn = node.ChildByFieldName("function")
	}
	ce := &lang.CallExpr{Args: l.evalArgs(node.ChildByFieldName("arguments"), out)}

	if fn == nil {
		return ce
	}
	if path, ok := l.flattenPath(fn); ok {
		ce.Qualified = path
		if idx := strings.Index(path, "."); idx > 0 {
			ce.Receiver = path[:idx]
		}
		return ce
	}
	if fn.Type() == "call_expression" {
		// Chained call: the receiver is the hoisted result of the inner call.
		recv := l.evalExpr(fn, out)
		ce.Qualified = recv.Var
		ce.Receiver = recv.Var
		return ce
	}
	return ce
}

func (l *lowerer) evalArgs(argsNode *sitter.Node, out *[]*lang.Statement) []lang.Operand {
	var args []lang.Operand
	if argsNode == nil {
		return args
	}
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		arg := argsNode.NamedChild(i)
		switch arg.Type() {
		case "comment":
			// Skipped.
		case "spread_element":
			if inner := firstExpressionChild(arg); inner != nil {
				args = append(args, l.evalExpr(inner, out))
			}
		case "arrow_function", "function_expression":
			// Callback arguments carry the taint of their free reads.
			var parts []lang.Operand
			for _, v := range l.subtreeVars(arg) {
				parts = append(parts, lang.VarOperand(v))
			}
			args = append(args, l.hoistConcat(parts, arg, out))
		default:
			args = append(args, l.evalExpr(arg, out))
		}
	}
	return args
}

func (l *lowerer) collectConcatParts(node *sitter.Node, out *[]*lang.Statement) []lang.Operand {
	if node == nil {
		return nil
	}
	if node.Type() == "binary_expression" {
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		parts := l.collectConcatParts(left, out)
		return append(parts, l.collectConcatParts(right, out)...)
	}
	return []lang.Operand{l.evalExpr(node, out)}
}

// templateParts extracts substitution operands from a template literal. A
// template with no substitutions yields nil.
func (l *lowerer) templateParts(node *sitter.Node, out *[]*lang.Statement) []lang.Operand {
	var parts []lang.Operand
	found := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "template_substitution" {
			continue
		}
		found = true
		if expr := firstExpressionChild(child); expr != nil {
			parts = append(parts, l.evalExpr(expr, out))
		}
	}
	if !found {
		return nil
	}
	parts = append(parts, lang.LitOperand(l.content(node)))
	return parts
}

// flattenPath flattens identifier/member chains into a dotted path;
// obj["key"] flattens as obj.key.
func (l *lowerer) flattenPath(node *sitter.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "identifier", "this", "property_identifier":
		return l.content(node), true
	case "member_expression":
		obj := node.ChildByFieldName("object")
		prop := node.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return "", false
		}
		base, ok := l.flattenPath(obj)
		if !ok {
			return "", false
		}
		return base + "." + l.content(prop), true
	case "subscript_expression":
		obj := node.ChildByFieldName("object")
		idx := node.ChildByFieldName("index")
		if obj == nil || idx == nil || idx.Type() != "string" {
			return "", false
		}
		base, ok := l.flattenPath(obj)
		if !ok {
			return "", false
		}
		key := strings.Trim(l.content(idx), "\"'`")
		return base + "." + key, true
	default:
		return "", false
	}
}

// patternTargets extracts assignable names from declarator and parameter
// patterns, including destructuring.
func (l *lowerer) patternTargets(node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{l.content(node)}
	case "array_pattern", "object_pattern":
		var targets []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			targets = append(targets, l.patternTargets(node.NamedChild(i))...)
		}
		return targets
	case "pair_pattern":
		return l.patternTargets(node.ChildByFieldName("value"))
	case "assignment_pattern":
		return l.patternTargets(node.ChildByFieldName("left"))
	case "rest_pattern":
		return l.patternTargets(firstExpressionChild(node))
	default:
		if id := firstIdentifier(node, l.source); id != "" {
			return []string{id}
		}
		return nil
	}
}

func (l *lowerer) subtreeVars(node *sitter.Node) []string {
	var vars []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier", "this":
			vars = appendUnique(vars, l.content(n))
			return
		case "member_expression", "subscript_expression":
			if path, ok := l.flattenPath(n); ok {
				vars = appendUnique(vars, path)
				return
			}
		case "property_identifier":
			return
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
