package taint

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/analysis/lang"
	"github.com/xkilldash9x/lancet/internal/analysis/pdg"
	"github.com/xkilldash9x/lancet/internal/analysis/registry"
)

// Analyzer runs sanitizer-aware taint analysis over source units of one
// language. Each Analyze call builds its own graph and tracker and shares
// only the read-only registries, so a single Analyzer is safe for concurrent
// use across units.
type Analyzer struct {
	adapter lang.Adapter
	regs    *registry.Set
	builder *pdg.Builder
	logger  *zap.Logger
	hints   *CallGraphHints
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCallGraphHints supplies cross-unit function summaries, enabling
// interprocedural propagation across file boundaries.
func WithCallGraphHints(h *CallGraphHints) Option {
	return func(a *Analyzer) { a.hints = h }
}

// NewAnalyzer creates an analyzer for the adapter's language.
func NewAnalyzer(adapter lang.Adapter, regs *registry.Set, logger *zap.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		adapter: adapter,
		regs:    regs,
		builder: pdg.NewBuilder(),
		logger:  logger.Named("analyzer").With(zap.String("language", adapter.Language())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze normalizes, builds and walks one source unit. Parse and build
// failures never escape: they surface as the result's Error field with an
// empty finding list. Identical input always yields a structurally identical
// result.
func (a *Analyzer) Analyze(ctx context.Context, path string, source []byte) schemas.AnalysisResult {
	unit, err := a.adapter.Normalize(ctx, path, source)
	if err != nil {
		a.logger.Debug("unit failed to normalize", zap.String("path", path), zap.Error(err))
		return failedResult(err)
	}
	return a.AnalyzeUnit(unit)
}

// AnalyzeUnit analyzes an already-normalized unit.
func (a *Analyzer) AnalyzeUnit(unit *lang.Unit) schemas.AnalysisResult {
	graph, err := a.builder.Build(unit)
	if err != nil {
		return failedResult(err)
	}

	// Function bodies are summarized first, in two bounded rounds so that
	// call chains between same-unit functions resolve regardless of
	// declaration order.
	var defs []*lang.Statement
	for _, name := range graph.Functions() {
		id, ok := graph.FunctionNode(name)
		if !ok {
			continue
		}
		defs = append(defs, graph.Node(id).Stmt)
	}

	summaries := make(map[string]*FunctionSummary, len(defs))
	var funcVulns []schemas.Vulnerability
	for round := 0; round < 2; round++ {
		funcVulns = funcVulns[:0]
		for _, def := range defs {
			summary, vulns := a.summarize(unit.Path, def, summaries)
			summaries[def.Name] = summary
			funcVulns = append(funcVulns, vulns...)
		}
	}

	// Main walk over module-level flow; function bodies are skipped and
	// represented by their summaries at call sites.
	tracker := NewTracker(unit.Path, a.regs)
	w := &walker{analyzer: a, tracker: tracker, summaries: summaries}
	w.walkBlock(unit.Statements)

	vulns := append(funcVulns, tracker.Vulnerabilities()...)
	return schemas.AnalysisResult{
		HasVulnerabilities: len(vulns) > 0,
		Vulnerabilities:    vulns,
	}
}

// Summaries exposes the per-function summaries of a unit, for callers that
// assemble cross-unit call-graph hints.
func (a *Analyzer) Summaries(unit *lang.Unit) (map[string]*FunctionSummary, error) {
	graph, err := a.builder.Build(unit)
	if err != nil {
		return nil, err
	}
	summaries := make(map[string]*FunctionSummary)
	for round := 0; round < 2; round++ {
		for _, name := range graph.Functions() {
			id, ok := graph.FunctionNode(name)
			if !ok {
				continue
			}
			def := graph.Node(id).Stmt
			summary, _ := a.summarize(unit.Path, def, summaries)
			summaries[def.Name] = summary
		}
	}
	return summaries, nil
}

// summarize walks one function body with synthetic taint seeded into every
// parameter. Findings whose flow involves a parameter marker become summary
// entries; findings rooted in a genuine source inside the body are reported
// directly.
func (a *Analyzer) summarize(path string, def *lang.Statement, summaries map[string]*FunctionSummary) (*FunctionSummary, []schemas.Vulnerability) {
	summary := newFunctionSummary(def.Name)

	tracker := NewTracker(path, a.regs)
	loc := schemas.Location{Line: def.Range.StartLine, Column: def.Range.StartColumn}
	for i, param := range def.Params {
		tracker.MarkTainted(param, core.NewTaint(core.SourceUnknown, core.LevelHigh, loc, paramMarker(i)))
	}

	w := &walker{analyzer: a, tracker: tracker, summaries: summaries, collectReturns: true}
	if len(def.Arms) > 0 {
		w.walkBlock(def.Arms[0])
	}

	var reported []schemas.Vulnerability
	for _, v := range tracker.Vulnerabilities() {
		idxs := paramIndexes(v.PropagationPath)
		for _, idx := range idxs {
			summary.addParamSink(idx, core.SinkType(v.SinkType))
		}
		if len(idxs) == 0 {
			reported = append(reported, v)
		}
	}

	if len(w.returnTaints) > 0 {
		joined := core.JoinAll(w.returnTaints)
		if joined.IsTainted() {
			for _, idx := range paramIndexes(joined.Path) {
				summary.ParamToReturn[idx] = true
			}
			if joined.Source != core.SourceUnknown {
				ret := joined
				ret.Path = stripMarkers(ret.Path)
				summary.ReturnTaint = &ret
			}
		}
	}
	return summary, reported
}

// walker drives one statement walk feeding a tracker. Branch arms fork the
// variable map and rejoin it afterwards, matching the graph builder's
// all-reaching-definitions policy.
type walker struct {
	analyzer  *Analyzer
	tracker   *Tracker
	summaries map[string]*FunctionSummary

	collectReturns bool
	returnTaints   []core.TaintInfo
}

func (w *walker) walkBlock(stmts []*lang.Statement) {
	for _, st := range stmts {
		w.walkStatement(st)
	}
}

func (w *walker) walkStatement(st *lang.Statement) {
	loc := schemas.Location{Line: st.Range.StartLine, Column: st.Range.StartColumn}

	switch st.Kind {
	case lang.KindAssign:
		w.walkAssign(st, loc)

	case lang.KindAugAssign:
		w.seedSourceReads(st.Uses(), loc)
		w.tracker.PropagateConcat(st.Target, st.Uses(), st.Target)

	case lang.KindCall:
		w.handleCall("", st.Call, loc)

	case lang.KindReturn:
		if w.collectReturns && st.Value != nil && st.Value.Var != "" {
			if taint, ok := w.tracker.GetTaint(st.Value.Var); ok && taint.IsTainted() {
				w.returnTaints = append(w.returnTaints, taint)
			}
		}

	case lang.KindRaise:
		if st.Call != nil {
			w.handleCall("", st.Call, loc)
		}

	case lang.KindBranch:
		w.walkBranch(st)

	case lang.KindLoopHeader:
		w.walkLoop(st)

	case lang.KindFunctionDef:
		// Bodies are covered by the summary pass.

	default:
		// Imports, opaque expressions and unknown constructs carry no taint
		// effects.
	}
}

func (w *walker) walkAssign(st *lang.Statement, loc schemas.Location) {
	switch {
	case st.Call != nil:
		w.handleCall(st.Target, st.Call, loc)

	case len(st.Concat) > 0:
		var vars []string
		for _, p := range st.Concat {
			if p.Var != "" {
				vars = append(vars, p.Var)
			}
		}
		w.seedSourceReads(vars, loc)
		w.tracker.PropagateConcat(st.Target, vars, st.Target)

	case st.Value != nil && st.Value.Var != "":
		w.seedSourceReads([]string{st.Value.Var}, loc)
		w.tracker.Alias(st.Target, st.Value.Var)
		if state := w.tracker.vars[st.Target]; state != nil {
			state.taint = state.taint.WithStep(st.Target)
		}

	default:
		// Literal assignment kills any prior taint.
		w.tracker.Clear(st.Target)
	}
}

// handleCall applies the effect of one call site. dest is empty for bare
// calls. Resolution order: source, sanitizer, sink, function summary; an
// unregistered call conservatively propagates the join of its operands.
func (w *walker) handleCall(dest string, call *lang.CallExpr, loc schemas.Location) {
	if call == nil {
		return
	}

	argVars := make([]string, 0, len(call.Args))
	for _, arg := range call.Args {
		if arg.Var != "" {
			argVars = append(argVars, arg.Var)
		}
	}
	w.seedSourceReads(argVars, loc)
	if call.Receiver != "" {
		w.seedSourceReads([]string{call.Receiver}, loc)
	}

	if info, ok := w.analyzer.regs.Sources.Lookup(call.Qualified); ok {
		if dest != "" {
			w.tracker.MarkTainted(dest, core.NewTaint(info.Category, info.Level, loc, "source:"+call.Qualified))
		}
		return
	}

	if _, ok := w.analyzer.regs.Sanitizers.Lookup(call.Qualified); ok {
		w.applySanitizerCall(dest, call, argVars)
		return
	}

	if info, ok := w.analyzer.regs.Sinks.Lookup(call.Qualified); ok {
		for i, arg := range call.Args {
			if arg.Var == "" || !info.InspectsArg(i) {
				continue
			}
			w.tracker.CheckSink(arg.Var, call.Qualified, loc)
		}
		if dest != "" {
			w.propagateCall(dest, call, argVars)
		}
		return
	}

	if summary, ok := w.lookupSummary(call.Qualified); ok {
		w.applySummaryCall(dest, call, summary, loc)
		return
	}

	if dest != "" {
		w.propagateCall(dest, call, argVars)
	}
}

// applySanitizerCall models value-returning sanitizers: the result aliases
// the sanitized operand with the sanitizer's sink set cleared on top.
func (w *walker) applySanitizerCall(dest string, call *lang.CallExpr, argVars []string) {
	if dest == "" {
		if len(argVars) > 0 {
			w.tracker.ApplySanitizer(argVars[0], call.Qualified)
		}
		return
	}
	if len(argVars) == 0 {
		w.tracker.Clear(dest)
		return
	}
	w.tracker.Alias(dest, argVars[0])
	w.tracker.ApplySanitizer(dest, call.Qualified)
}

// applySummaryCall substitutes a callee's summary at the call site.
func (w *walker) applySummaryCall(dest string, call *lang.CallExpr, summary *FunctionSummary, loc schemas.Location) {
	for i, arg := range call.Args {
		if arg.Var == "" || !w.tracker.IsTainted(arg.Var) {
			continue
		}
		for _, sink := range summary.ParamToSink[i] {
			w.tracker.ReportSink(arg.Var, sink, call.Qualified, loc)
		}
	}

	if dest == "" {
		return
	}

	var retVars []string
	for i, arg := range call.Args {
		if arg.Var != "" && summary.ParamToReturn[i] {
			retVars = append(retVars, arg.Var)
		}
	}
	if len(retVars) > 0 {
		w.tracker.PropagateConcat(dest, retVars, "call:"+call.Qualified)
		if summary.ReturnTaint != nil {
			if state := w.tracker.vars[dest]; state != nil {
				state.taint = core.Join(state.taint, *summary.ReturnTaint)
			} else {
				w.tracker.MarkTainted(dest, summary.ReturnTaint.WithStep("call:"+call.Qualified))
			}
		}
		return
	}
	if summary.ReturnTaint != nil {
		w.tracker.MarkTainted(dest, summary.ReturnTaint.WithStep("call:"+call.Qualified))
		return
	}
	// The summary proves the return value is clean.
	w.tracker.Clear(dest)
}

// propagateCall flows the join of a call's operands into its destination,
// including the receiver so method calls on tainted values stay tainted.
func (w *walker) propagateCall(dest string, call *lang.CallExpr, argVars []string) {
	vars := argVars
	if call.Receiver != "" {
		vars = append(append([]string(nil), argVars...), call.Receiver)
	}
	w.tracker.PropagateConcat(dest, vars, "call:"+call.Qualified)
}

// seedSourceReads marks reads of registered non-call sources (for example
// property sources like location.hash) the first time they are touched.
func (w *walker) seedSourceReads(vars []string, loc schemas.Location) {
	for _, v := range vars {
		if w.tracker.IsTainted(v) {
			continue
		}
		if info, ok := w.analyzer.regs.Sources.Lookup(v); ok {
			w.tracker.MarkTainted(v, core.NewTaint(info.Category, info.Level, loc, "source:"+v))
		}
	}
}

func (w *walker) lookupSummary(qualified string) (*FunctionSummary, bool) {
	if s, ok := w.summaries[qualified]; ok {
		return s, true
	}
	return w.analyzer.hints.Lookup(qualified)
}

// walkBranch forks the tracker state per arm and rejoins afterwards. The
// pre-branch state stays in the join unless an else arm makes the branch
// exhaustive.
func (w *walker) walkBranch(st *lang.Statement) {
	base := w.tracker.snapshotVars()

	var armStates []map[string]*varState
	for _, arm := range st.Arms {
		w.tracker.vars = cloneVars(base)
		w.walkBlock(arm)
		armStates = append(armStates, w.tracker.vars)
	}
	if !st.Exhaustive {
		armStates = append(armStates, base)
	}
	w.tracker.vars = joinVarStates(armStates)
}

// walkLoop makes a single bounded pass over the body and joins the pre-loop
// state back in, since the loop may not execute.
func (w *walker) walkLoop(st *lang.Statement) {
	pre := w.tracker.snapshotVars()
	if len(st.Arms) > 0 {
		w.walkBlock(st.Arms[0])
	}
	w.tracker.vars = joinVarStates([]map[string]*varState{pre, w.tracker.vars})
}

func cloneVars(m map[string]*varState) map[string]*varState {
	out := make(map[string]*varState, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func failedResult(err error) schemas.AnalysisResult {
	msg := err.Error()
	return schemas.AnalysisResult{Error: &msg}
}
