package pdg

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xkilldash9x/lancet/internal/analysis/lang"
)

func assign(target string, value lang.Operand) *lang.Statement {
	return &lang.Statement{Kind: lang.KindAssign, Target: target, Value: &value}
}

func assignCall(target string, call *lang.CallExpr) *lang.Statement {
	return &lang.Statement{Kind: lang.KindAssign, Target: target, Call: call}
}

func call(qualified, receiver string, args ...lang.Operand) *lang.Statement {
	return &lang.Statement{
		Kind: lang.KindCall,
		Call: &lang.CallExpr{Qualified: qualified, Receiver: receiver, Args: args},
	}
}

func build(t *testing.T, stmts ...*lang.Statement) *Graph {
	t.Helper()
	g, err := NewBuilder().Build(&lang.Unit{Path: "unit.py", Language: "python", Statements: stmts})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func edgesOfKind(g *Graph, kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// dataPredecessors collects the reaching definition nodes for a variable use
// at the given node, in ascending node order.
func dataPredecessors(g *Graph, id NodeID, variable string) []NodeID {
	var preds []NodeID
	for _, e := range g.Edges {
		if e.Kind == EdgeData && e.To == id && e.Var == variable {
			preds = append(preds, e.From)
		}
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i] < preds[j] })
	return preds
}

func TestBuildNilUnit(t *testing.T) {
	t.Parallel()
	if _, err := NewBuilder().Build(nil); err == nil {
		t.Fatal("nil unit must return an error")
	}
}

func TestLinearControlFlow(t *testing.T) {
	t.Parallel()

	g := build(t,
		assign("a", lang.LitOperand("1")),
		assign("b", lang.VarOperand("a")),
		assign("c", lang.VarOperand("b")),
	)
	if len(g.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(g.Nodes))
	}

	control := edgesOfKind(g, EdgeControl)
	want := []Edge{
		{From: 0, To: 1, Kind: EdgeControl},
		{From: 1, To: 2, Kind: EdgeControl},
	}
	if diff := cmp.Diff(want, control); diff != "" {
		t.Errorf("control edges mismatch:\n%s", diff)
	}
}

func TestDataEdgesFollowDefinitions(t *testing.T) {
	t.Parallel()

	g := build(t,
		assign("x", lang.LitOperand("1")),
		assign("x", lang.LitOperand("2")),
		assign("y", lang.VarOperand("x")),
	)

	// Only the latest definition reaches the use; assignment kills.
	preds := dataPredecessors(g, 2, "x")
	if diff := cmp.Diff([]NodeID{1}, preds); diff != "" {
		t.Errorf("reaching defs mismatch:\n%s", diff)
	}
}

func TestDottedUseFallsBackToBase(t *testing.T) {
	t.Parallel()

	g := build(t,
		assign("resp", lang.LitOperand("r")),
		call("send", "", lang.VarOperand("resp.body")),
	)
	preds := dataPredecessors(g, 1, "resp.body")
	if diff := cmp.Diff([]NodeID{0}, preds); diff != "" {
		t.Errorf("dotted use should reach the base definition:\n%s", diff)
	}
}

func TestBranchJoinKeepsAllDefinitions(t *testing.T) {
	t.Parallel()

	branch := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		Exhaustive: true,
		Arms: [][]*lang.Statement{
			{assign("x", lang.LitOperand("1"))},
			{assign("x", lang.LitOperand("2"))},
		},
	}
	g := build(t,
		branch,
		assign("y", lang.VarOperand("x")),
	)

	// Node layout: 0 branch head, 1 arm-a assign, 2 arm-b assign, 3 use.
	preds := dataPredecessors(g, 3, "x")
	if diff := cmp.Diff([]NodeID{1, 2}, preds); diff != "" {
		t.Errorf("both arm definitions must reach the join:\n%s", diff)
	}
}

func TestNonExhaustiveBranchKeepsPriorDefinition(t *testing.T) {
	t.Parallel()

	branch := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		Arms: [][]*lang.Statement{
			{assign("x", lang.LitOperand("2"))},
		},
	}
	g := build(t,
		assign("x", lang.LitOperand("1")),
		branch,
		assign("y", lang.VarOperand("x")),
	)

	// Node layout: 0 first assign, 1 head, 2 arm assign, 3 use. The branch can
	// be skipped, so the pre-branch definition still reaches.
	preds := dataPredecessors(g, 3, "x")
	if diff := cmp.Diff([]NodeID{0, 2}, preds); diff != "" {
		t.Errorf("reaching defs mismatch:\n%s", diff)
	}
}

func TestBranchConditionDataEdge(t *testing.T) {
	t.Parallel()

	branch := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchIf,
		CondUses:   []string{"flag"},
		Arms:       [][]*lang.Statement{{assign("x", lang.LitOperand("1"))}},
	}
	g := build(t,
		assign("flag", lang.LitOperand("true")),
		branch,
	)
	preds := dataPredecessors(g, 1, "flag")
	if diff := cmp.Diff([]NodeID{0}, preds); diff != "" {
		t.Errorf("condition use must link to its definition:\n%s", diff)
	}
}

func TestLoopBackEdgeAndZeroIterationDefs(t *testing.T) {
	t.Parallel()

	loop := &lang.Statement{
		Kind:     lang.KindLoopHeader,
		CondUses: []string{"n"},
		Arms: [][]*lang.Statement{
			{assign("x", lang.LitOperand("2"))},
		},
	}
	g := build(t,
		assign("x", lang.LitOperand("1")),
		assign("n", lang.LitOperand("3")),
		loop,
		assign("y", lang.VarOperand("x")),
	)

	// Node layout: 0 x=1, 1 n=3, 2 loop head, 3 body assign, 4 use.
	var backs []Edge
	for _, e := range g.Edges {
		if e.Back {
			backs = append(backs, e)
		}
	}
	if len(backs) != 1 || backs[0].From != 3 || backs[0].To != 2 {
		t.Errorf("back edges = %+v, want exactly body->head", backs)
	}

	// Zero-iteration case keeps the pre-loop definition alive.
	preds := dataPredecessors(g, 4, "x")
	if diff := cmp.Diff([]NodeID{0, 3}, preds); diff != "" {
		t.Errorf("reaching defs after loop mismatch:\n%s", diff)
	}
}

func TestFunctionScopeIsIsolated(t *testing.T) {
	t.Parallel()

	def := &lang.Statement{
		Kind:   lang.KindFunctionDef,
		Name:   "handler",
		Params: []string{"req"},
		Arms: [][]*lang.Statement{
			{assign("local", lang.VarOperand("req"))},
		},
	}
	g := build(t,
		assign("local", lang.LitOperand("outer")),
		def,
		assign("z", lang.VarOperand("local")),
	)

	// Node layout: 0 outer assign, 1 def, 2 body assign, 3 outer use.
	id, ok := g.FunctionNode("handler")
	if !ok || id != 1 {
		t.Fatalf("FunctionNode = (%d, %v)", id, ok)
	}
	if got := g.Functions(); len(got) != 1 || got[0] != "handler" {
		t.Errorf("Functions() = %v", got)
	}

	// The parameter definition seeds the body.
	bodyPreds := dataPredecessors(g, 2, "req")
	if diff := cmp.Diff([]NodeID{1}, bodyPreds); diff != "" {
		t.Errorf("parameter should reach the body use:\n%s", diff)
	}

	// The body assign must not leak into the outer scope.
	outerPreds := dataPredecessors(g, 3, "local")
	if diff := cmp.Diff([]NodeID{0}, outerPreds); diff != "" {
		t.Errorf("outer use must see only the outer definition:\n%s", diff)
	}

	if g.Node(2).Scope != "handler" {
		t.Errorf("body node scope = %q, want handler", g.Node(2).Scope)
	}
}

func TestCallAndParameterEdges(t *testing.T) {
	t.Parallel()

	def := &lang.Statement{
		Kind:   lang.KindFunctionDef,
		Name:   "process",
		Params: []string{"data"},
		Arms:   [][]*lang.Statement{{}},
	}
	g := build(t,
		def,
		assign("v", lang.LitOperand("1")),
		call("process", "", lang.VarOperand("v")),
	)

	calls := edgesOfKind(g, EdgeCall)
	if len(calls) != 1 || calls[0].From != 2 || calls[0].To != 0 {
		t.Fatalf("call edges = %+v", calls)
	}

	params := edgesOfKind(g, EdgeParameter)
	if len(params) != 1 || params[0].Var != "data" {
		t.Errorf("parameter edges = %+v", params)
	}
}

func TestCallToUnknownFunctionHasNoCallEdge(t *testing.T) {
	t.Parallel()

	g := build(t, call("requests.get", "requests", lang.VarOperand("url")))
	if calls := edgesOfKind(g, EdgeCall); len(calls) != 0 {
		t.Errorf("external calls must not produce call edges, got %+v", calls)
	}
}

func TestExceptionEdges(t *testing.T) {
	t.Parallel()

	try := &lang.Statement{
		Kind:       lang.KindBranch,
		BranchKind: lang.BranchTry,
		Exhaustive: true,
		Arms: [][]*lang.Statement{
			{assignCall("data", &lang.CallExpr{Qualified: "fetch"})},
			{assign("data", lang.LitOperand("None"))},
		},
	}
	g := build(t, try)

	// Node layout: 0 head, 1 protected call, 2 handler assign.
	exc := edgesOfKind(g, EdgeException)
	if len(exc) != 1 || exc[0].From != 1 || exc[0].To != 2 {
		t.Errorf("exception edges = %+v, want protected call -> handler head", exc)
	}
}

func TestStatementNodeIdentity(t *testing.T) {
	t.Parallel()

	st := assign("a", lang.LitOperand("1"))
	g := build(t, st)

	id, ok := g.byStmt[st]
	if !ok || id != 0 {
		t.Fatalf("statement index = (%d, %v)", id, ok)
	}
	if g.Node(id).Stmt != st {
		t.Error("node statement identity lost")
	}

	if _, ok := g.byStmt[assign("other", lang.LitOperand("2"))]; ok {
		t.Error("foreign statement must not resolve")
	}
}

func TestDeterministicBuild(t *testing.T) {
	t.Parallel()

	make2 := func() *Graph {
		branch := &lang.Statement{
			Kind:       lang.KindBranch,
			BranchKind: lang.BranchIf,
			CondUses:   []string{"c"},
			Arms: [][]*lang.Statement{
				{assign("x", lang.LitOperand("1"))},
				{assign("x", lang.LitOperand("2"))},
			},
		}
		return build(t,
			assign("c", lang.LitOperand("true")),
			branch,
			assign("y", lang.VarOperand("x")),
		)
	}

	a, b := make2(), make2()
	if diff := cmp.Diff(a.Edges, b.Edges); diff != "" {
		t.Errorf("identical units must build identical edge lists:\n%s", diff)
	}
}
