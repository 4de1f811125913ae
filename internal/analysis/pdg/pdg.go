// Package pdg builds Program Dependence Graphs from normalized statement
// units. Nodes are statements; edges capture control, data, call, parameter
// and exception dependencies.
package pdg

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/lancet/internal/analysis/lang"
)

// NodeID indexes a node inside its owning graph.
type NodeID int

// EdgeKind classifies a dependence edge.
type EdgeKind int

const (
	EdgeControl EdgeKind = iota
	EdgeData
	EdgeCall
	EdgeParameter
	EdgeException
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeControl:
		return "control"
	case EdgeData:
		return "data"
	case EdgeCall:
		return "call"
	case EdgeParameter:
		return "parameter"
	case EdgeException:
		return "exception"
	default:
		return "unknown"
	}
}

// Node is one statement in the graph. Nodes are immutable once Build returns
// and are owned exclusively by their graph.
type Node struct {
	ID    NodeID
	Stmt  *lang.Statement
	Scope string
}

// Edge links two nodes of the same graph. Var carries the variable name for
// data and parameter edges; Back marks loop back-edges.
type Edge struct {
	From NodeID
	To   NodeID
	Kind EdgeKind
	Var  string
	Back bool
}

// Graph is a built PDG for a single source unit.
type Graph struct {
	Path  string
	Nodes []*Node
	Edges []Edge

	funcs  map[string]NodeID
	byStmt map[*lang.Statement]NodeID
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node {
	return g.Nodes[id]
}

// FunctionNode resolves a function name declared in this unit to its
// definition node.
func (g *Graph) FunctionNode(name string) (NodeID, bool) {
	id, ok := g.funcs[name]
	return id, ok
}

// Functions lists the function names declared in this unit, sorted.
func (g *Graph) Functions() []string {
	names := make([]string, 0, len(g.funcs))
	for name := range g.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validate panics on a dangling edge. A bad endpoint is a builder defect, not
// bad input, so it surfaces as a hard failure.
func (g *Graph) validate() {
	n := NodeID(len(g.Nodes))
	for _, e := range g.Edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			panic(fmt.Sprintf("pdg: dangling edge %d->%d (%s) in graph of %d nodes", e.From, e.To, e.Kind, n))
		}
	}
}

// Builder constructs graphs from normalized units.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder { return &Builder{} }

// buildState carries the forward-pass working set: the current predecessor
// frontier and the non-SSA reaching definitions per variable.
type buildState struct {
	preds []NodeID
	defs  map[string][]NodeID
}

func (s *buildState) copyDefs() map[string][]NodeID {
	out := make(map[string][]NodeID, len(s.defs))
	for k, v := range s.defs {
		out[k] = append([]NodeID(nil), v...)
	}
	return out
}

// Build runs a single forward pass over the unit in source order, linking
// control edges, resolving every variable use to all of its reaching
// definitions, and wiring call, parameter and exception edges. The build is
// atomic: either a complete validated graph is returned or nothing is.
func (b *Builder) Build(unit *lang.Unit) (*Graph, error) {
	if unit == nil {
		return nil, fmt.Errorf("pdg: nil unit")
	}

	g := &Graph{
		Path:   unit.Path,
		funcs:  make(map[string]NodeID),
		byStmt: make(map[*lang.Statement]NodeID),
	}
	w := &walker{graph: g}

	state := &buildState{defs: make(map[string][]NodeID)}
	w.walkBlock(unit.Statements, "", state)
	w.resolveCalls()

	g.validate()
	return g, nil
}

type walker struct {
	graph     *Graph
	callSites []NodeID
}

func (w *walker) newNode(st *lang.Statement, scope string, state *buildState) NodeID {
	id := NodeID(len(w.graph.Nodes))
	w.graph.Nodes = append(w.graph.Nodes, &Node{ID: id, Stmt: st, Scope: scope})
	w.graph.byStmt[st] = id
	for _, p := range state.preds {
		w.addEdge(Edge{From: p, To: id, Kind: EdgeControl})
	}
	state.preds = []NodeID{id}
	return id
}

func (w *walker) addEdge(e Edge) {
	w.graph.Edges = append(w.graph.Edges, e)
}

// dataEdges links a use set to every reaching definition. A dotted use with
// no definition of its own falls back to its base variable.
func (w *walker) dataEdges(id NodeID, uses []string, state *buildState) {
	for _, use := range uses {
		defs := state.defs[use]
		if len(defs) == 0 {
			if base := lang.BaseVar(use); base != use {
				defs = state.defs[base]
			}
		}
		for _, d := range defs {
			w.addEdge(Edge{From: d, To: id, Kind: EdgeData, Var: use})
		}
	}
}

func (w *walker) walkBlock(stmts []*lang.Statement, scope string, state *buildState) {
	for _, st := range stmts {
		w.walkStatement(st, scope, state)
	}
}

func (w *walker) walkStatement(st *lang.Statement, scope string, state *buildState) {
	switch st.Kind {
	case lang.KindAssign:
		id := w.newNode(st, scope, state)
		w.dataEdges(id, st.Uses(), state)
		state.defs[st.Target] = []NodeID{id}
		if st.Call != nil {
			w.callSites = append(w.callSites, id)
		}

	case lang.KindAugAssign:
		// Reads the old value, then redefines. The old definitions stay
		// reachable through the data edge just added.
		id := w.newNode(st, scope, state)
		w.dataEdges(id, st.Uses(), state)
		state.defs[st.Target] = []NodeID{id}

	case lang.KindCall:
		id := w.newNode(st, scope, state)
		w.dataEdges(id, st.Uses(), state)
		w.callSites = append(w.callSites, id)

	case lang.KindBranch:
		w.walkBranch(st, scope, state)

	case lang.KindLoopHeader:
		w.walkLoop(st, scope, state)

	case lang.KindFunctionDef:
		w.walkFunctionDef(st, scope, state)

	case lang.KindReturn, lang.KindRaise:
		id := w.newNode(st, scope, state)
		w.dataEdges(id, st.Uses(), state)
		if st.Call != nil {
			w.callSites = append(w.callSites, id)
		}

	default:
		// Import, opaque expressions, unknown constructs: a plain control
		// node keeps the flow intact.
		w.newNode(st, scope, state)
	}
}

// walkBranch forks the frontier into per-arm successors that rejoin at the
// next statement. At the join every definition reaching out of any arm stays
// a reaching definition, which over-approximates in favor of fewer false
// negatives.
func (w *walker) walkBranch(st *lang.Statement, scope string, state *buildState) {
	head := w.newNode(st, scope, state)
	w.dataEdges(head, st.CondUses, state)

	baseDefs := state.copyDefs()
	var exitPreds []NodeID
	var armDefs []map[string][]NodeID
	var armHeads []NodeID

	for _, arm := range st.Arms {
		armState := &buildState{preds: []NodeID{head}, defs: copyDefMap(baseDefs)}
		before := len(w.graph.Nodes)
		w.walkBlock(arm, scope, armState)
		if len(w.graph.Nodes) > before {
			armHeads = append(armHeads, NodeID(before))
		} else {
			armHeads = append(armHeads, head)
		}
		exitPreds = append(exitPreds, armState.preds...)
		armDefs = append(armDefs, armState.defs)
	}

	if st.BranchKind == lang.BranchTry && len(st.Arms) > 1 {
		w.exceptionEdges(st, armHeads)
	}

	if !st.Exhaustive {
		exitPreds = append(exitPreds, head)
		armDefs = append(armDefs, baseDefs)
	}

	state.preds = uniqueSorted(exitPreds)
	state.defs = mergeDefMaps(armDefs)
}

// exceptionEdges links every call or raise in the protected arm to the head
// of each handler arm.
func (w *walker) exceptionEdges(st *lang.Statement, armHeads []NodeID) {
	var throwers []NodeID
	var collect func(stmts []*lang.Statement)
	collect = func(stmts []*lang.Statement) {
		for _, s := range stmts {
			if id, ok := w.graph.byStmt[s]; ok {
				if s.Call != nil || s.Kind == lang.KindRaise {
					throwers = append(throwers, id)
				}
			}
			for _, arm := range s.Arms {
				collect(arm)
			}
		}
	}
	collect(st.Arms[0])

	for _, t := range throwers {
		for _, h := range armHeads[1:] {
			w.addEdge(Edge{From: t, To: h, Kind: EdgeException})
		}
	}
}

// walkLoop makes a single bounded pass over the body and records the
// back-edge. Taint introduced only on a second iteration is out of scope.
func (w *walker) walkLoop(st *lang.Statement, scope string, state *buildState) {
	head := w.newNode(st, scope, state)
	w.dataEdges(head, st.CondUses, state)

	preDefs := state.copyDefs()
	bodyState := &buildState{preds: []NodeID{head}, defs: state.defs}
	if len(st.Arms) > 0 {
		w.walkBlock(st.Arms[0], scope, bodyState)
	}
	for _, p := range bodyState.preds {
		if p != head {
			w.addEdge(Edge{From: p, To: head, Kind: EdgeControl, Back: true})
		}
	}

	// The loop may run zero times, so pre-loop definitions survive.
	state.preds = uniqueSorted(append(bodyState.preds, head))
	state.defs = mergeDefMaps([]map[string][]NodeID{preDefs, bodyState.defs})
}

// walkFunctionDef adds the definition node to the enclosing flow and walks
// the body in its own scope with a fresh definition set seeded by the
// parameters.
func (w *walker) walkFunctionDef(st *lang.Statement, scope string, state *buildState) {
	id := w.newNode(st, scope, state)

	inner := scope + "." + st.Name
	if scope == "" {
		inner = st.Name
	}
	if _, exists := w.graph.funcs[st.Name]; !exists {
		w.graph.funcs[st.Name] = id
	}

	bodyState := &buildState{preds: []NodeID{id}, defs: make(map[string][]NodeID)}
	for _, p := range st.Params {
		bodyState.defs[p] = []NodeID{id}
	}
	if len(st.Arms) > 0 {
		w.walkBlock(st.Arms[0], inner, bodyState)
	}
}

// resolveCalls links call sites to same-unit function definitions with call
// and per-argument parameter edges.
func (w *walker) resolveCalls() {
	for _, site := range w.callSites {
		node := w.graph.Nodes[site]
		call := node.Stmt.Call
		if call == nil {
			continue
		}
		def, ok := w.graph.funcs[call.Qualified]
		if !ok {
			continue
		}
		w.addEdge(Edge{From: site, To: def, Kind: EdgeCall})
		params := w.graph.Nodes[def].Stmt.Params
		for i, arg := range call.Args {
			if i >= len(params) || arg.Var == "" {
				continue
			}
			w.addEdge(Edge{From: site, To: def, Kind: EdgeParameter, Var: params[i]})
		}
	}
}

func copyDefMap(m map[string][]NodeID) map[string][]NodeID {
	out := make(map[string][]NodeID, len(m))
	for k, v := range m {
		out[k] = append([]NodeID(nil), v...)
	}
	return out
}

// mergeDefMaps unions reaching definitions across branch arms in sorted,
// deduplicated order so identical inputs always build identical graphs.
func mergeDefMaps(maps []map[string][]NodeID) map[string][]NodeID {
	out := make(map[string][]NodeID)
	for _, m := range maps {
		for k, v := range m {
			out[k] = append(out[k], v...)
		}
	}
	for k, v := range out {
		out[k] = uniqueSorted(v)
	}
	return out
}

func uniqueSorted(ids []NodeID) []NodeID {
	if len(ids) <= 1 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	n := 1
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[n-1] {
			ids[n] = ids[i]
			n++
		}
	}
	return ids[:n]
}
