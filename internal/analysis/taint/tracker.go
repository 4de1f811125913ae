// Package taint implements sanitizer-aware taint tracking over normalized
// source units and the analyzer that orchestrates it.
package taint

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/analysis/registry"
)

// varState is the tracked abstract value of one identifier: its taint, the
// sink categories cleared for the current lineage, and the sanitizers applied
// so far. Assignments kill the whole state; sanitizers only grow cleared.
type varState struct {
	taint   core.TaintInfo
	cleared map[core.SinkType]bool
	applied []string
}

func (v *varState) clone() *varState {
	out := &varState{taint: v.taint, cleared: make(map[core.SinkType]bool, len(v.cleared))}
	for k := range v.cleared {
		out.cleared[k] = true
	}
	out.applied = append(out.applied, v.applied...)
	return out
}

type vulnKey struct {
	variable string
	sink     core.SinkType
	loc      schemas.Location
}

// Tracker holds the per-unit taint state. One tracker is created per analysis
// scope and discarded when the scope finishes; it shares nothing with other
// trackers beyond the read-only registries.
type Tracker struct {
	path  string
	regs  *registry.Set
	vars  map[string]*varState
	vulns []schemas.Vulnerability
	seen  map[vulnKey]bool
}

// NewTracker creates an empty tracker for one analysis scope.
func NewTracker(path string, regs *registry.Set) *Tracker {
	return &Tracker{
		path: path,
		regs: regs,
		vars: make(map[string]*varState),
		seen: make(map[vulnKey]bool),
	}
}

// MarkTainted overwrites any prior state for the variable. Assignment has
// kill semantics, so earlier sanitization does not survive a fresh taint.
func (t *Tracker) MarkTainted(variable string, taint core.TaintInfo) {
	t.vars[variable] = &varState{taint: taint, cleared: make(map[core.SinkType]bool)}
}

// Clear removes the variable from tracking, modeling assignment of a clean
// value.
func (t *Tracker) Clear(variable string) {
	delete(t.vars, variable)
}

// Alias copies the full tracked state from src to dest, including the cleared
// sink set. A plain copy keeps the lineage: `safe2 = safe` stays sanitized.
func (t *Tracker) Alias(dest, src string) {
	st := t.lookup(src)
	if st == nil {
		delete(t.vars, dest)
		return
	}
	t.vars[dest] = st.clone()
}

// PropagateConcat joins the current taints of all source variables into dest.
// Untracked sources contribute nothing; a dest with no tainted contributor is
// cleared. The cleared-sink set of the result is the intersection across the
// tainted contributors, so mixing in an unsanitized value reopens a sink.
func (t *Tracker) PropagateConcat(dest string, sources []string, step string) {
	var taints []core.TaintInfo
	var states []*varState
	for _, src := range sources {
		st := t.lookup(src)
		if st == nil || !st.taint.IsTainted() {
			continue
		}
		taints = append(taints, st.taint)
		states = append(states, st)
	}
	if len(taints) == 0 {
		delete(t.vars, dest)
		return
	}

	joined := core.JoinAll(taints)
	if step != "" {
		joined = joined.WithStep(step)
	}

	cleared := make(map[core.SinkType]bool)
	for sink := range states[0].cleared {
		all := true
		for _, st := range states[1:] {
			if !st.cleared[sink] {
				all = false
				break
			}
		}
		if all {
			cleared[sink] = true
		}
	}

	var applied []string
	for _, st := range states {
		for _, name := range st.applied {
			if !contains(applied, name) {
				applied = append(applied, name)
			}
		}
	}

	t.vars[dest] = &varState{taint: joined, cleared: cleared, applied: applied}
}

// ApplySanitizer records that the named sanitizer ran over the variable,
// clearing exactly the sink categories the sanitizer is registered for. It is
// a total no-op for unknown sanitizers and untracked variables.
func (t *Tracker) ApplySanitizer(variable, qualified string) {
	info, ok := t.regs.Sanitizers.Lookup(qualified)
	if !ok {
		return
	}
	st := t.lookup(variable)
	if st == nil {
		return
	}
	for _, sink := range info.Clears {
		st.cleared[sink] = true
	}
	if !contains(st.applied, info.Name) {
		st.applied = append(st.applied, info.Name)
	}
}

// CheckSink tests a variable flowing into a sink call and records a
// Vulnerability when the flow is dangerous. It returns nil when the call is
// not a registered sink, the variable is untracked, the taint level is below
// the sink's threshold, or the sink was cleared for this lineage.
func (t *Tracker) CheckSink(variable, qualified string, loc schemas.Location) *schemas.Vulnerability {
	info, ok := t.regs.Sinks.Lookup(qualified)
	if !ok {
		return nil
	}
	return t.ReportSink(variable, info.Type, qualified, loc)
}

// ReportSink applies threshold, cleared-set and dedup policy for a resolved
// sink type and records the finding. Used by CheckSink and by interprocedural
// summary application where the sink was reached inside a callee.
func (t *Tracker) ReportSink(variable string, sink core.SinkType, qualified string, loc schemas.Location) *schemas.Vulnerability {
	st := t.lookup(variable)
	if st == nil {
		return nil
	}
	if !st.taint.IsDangerousFor(sink) {
		return nil
	}
	if st.cleared[sink] {
		return nil
	}

	key := vulnKey{variable: variable, sink: sink, loc: loc}
	if t.seen[key] {
		return nil
	}
	t.seen[key] = true

	path := st.taint.WithStep(fmt.Sprintf("sink:%s", qualified)).Path
	vuln := schemas.Vulnerability{
		ID:                findingID(t.path, variable, sink, loc),
		VulnerabilityType: core.VulnerabilityName(sink),
		SinkType:          string(sink),
		Severity:          core.SeverityFor(sink),
		Location:          loc,
		TaintedVariable:   variable,
		Source:            string(st.taint.Source),
		PropagationPath:   path,
		SanitizersBypassed: append([]string(nil), st.applied...),
	}
	t.vulns = append(t.vulns, vuln)
	return &t.vulns[len(t.vulns)-1]
}

// IsTainted reports whether the variable currently carries taint.
func (t *Tracker) IsTainted(variable string) bool {
	st := t.lookup(variable)
	return st != nil && st.taint.IsTainted()
}

// GetTaint returns the variable's current taint.
func (t *Tracker) GetTaint(variable string) (core.TaintInfo, bool) {
	st := t.lookup(variable)
	if st == nil {
		return core.TaintInfo{}, false
	}
	return st.taint, true
}

// Vulnerabilities returns the recorded findings in discovery order. The order
// is stable because the statement walk itself is deterministic.
func (t *Tracker) Vulnerabilities() []schemas.Vulnerability {
	return t.vulns
}

// lookup resolves a variable, falling back from a dotted path to its base
// identifier so `user.name` inherits the taint of `user`.
func (t *Tracker) lookup(variable string) *varState {
	if st, ok := t.vars[variable]; ok {
		return st
	}
	if base := baseVar(variable); base != variable {
		if st, ok := t.vars[base]; ok {
			return st
		}
	}
	return nil
}

// snapshotVars deep-copies the current variable map for branch forking.
func (t *Tracker) snapshotVars() map[string]*varState {
	out := make(map[string]*varState, len(t.vars))
	for k, v := range t.vars {
		out[k] = v.clone()
	}
	return out
}

// joinVarStates merges the variable maps produced by branch arms. Taint is
// joined across arms (union, favoring fewer false negatives); cleared sinks
// survive only when every arm that tracks the variable cleared them.
func joinVarStates(states []map[string]*varState) map[string]*varState {
	names := make(map[string]bool)
	for _, s := range states {
		for k := range s {
			names[k] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	out := make(map[string]*varState, len(sorted))
	for _, name := range sorted {
		var present []*varState
		for _, s := range states {
			if st, ok := s[name]; ok {
				present = append(present, st)
			}
		}
		if len(present) == 0 {
			continue
		}

		merged := present[0].clone()
		for _, st := range present[1:] {
			merged.taint = core.Join(merged.taint, st.taint)
			for sink := range merged.cleared {
				if !st.cleared[sink] {
					delete(merged.cleared, sink)
				}
			}
			for _, san := range st.applied {
				if !contains(merged.applied, san) {
					merged.applied = append(merged.applied, san)
				}
			}
		}
		out[name] = merged
	}
	return out
}

// findingID derives a stable identifier so identical input always produces
// identical findings.
func findingID(path, variable string, sink core.SinkType, loc schemas.Location) string {
	seed := fmt.Sprintf("%s|%s|%s|%d:%d", path, variable, sink, loc.Line, loc.Column)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

func baseVar(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
