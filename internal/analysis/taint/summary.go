package taint

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/lancet/internal/analysis/core"
)

// paramMarkerPrefix tags the synthetic taint seeded into function parameters
// during the summary pass. Markers never appear in reported findings.
const paramMarkerPrefix = "param#"

func paramMarker(i int) string {
	return paramMarkerPrefix + strconv.Itoa(i)
}

// paramIndexes extracts the parameter indexes referenced by marker steps in a
// propagation path, sorted ascending.
func paramIndexes(path []string) []int {
	var idxs []int
	for _, step := range path {
		if !strings.HasPrefix(step, paramMarkerPrefix) {
			continue
		}
		n, err := strconv.Atoi(step[len(paramMarkerPrefix):])
		if err != nil {
			continue
		}
		found := false
		for _, existing := range idxs {
			if existing == n {
				found = true
				break
			}
		}
		if !found {
			idxs = append(idxs, n)
		}
	}
	sort.Ints(idxs)
	return idxs
}

// stripMarkers removes parameter markers from a propagation path.
func stripMarkers(path []string) []string {
	var out []string
	for _, step := range path {
		if strings.HasPrefix(step, paramMarkerPrefix) {
			continue
		}
		out = append(out, step)
	}
	return out
}

// FunctionSummary is the interprocedural abstraction of one function body:
// which parameters reach dangerous sinks inside it, which parameters flow to
// its return value, and whether the body introduces taint of its own into
// the return value.
type FunctionSummary struct {
	Name string

	// ParamToSink maps a parameter index to the sink categories a tainted
	// argument at that position would reach, sorted.
	ParamToSink map[int][]core.SinkType

	// ParamToReturn marks parameters whose value flows into the return.
	ParamToReturn map[int]bool

	// ReturnTaint is set when the body itself introduces taint into the
	// return value, independent of any argument.
	ReturnTaint *core.TaintInfo
}

func newFunctionSummary(name string) *FunctionSummary {
	return &FunctionSummary{
		Name:          name,
		ParamToSink:   make(map[int][]core.SinkType),
		ParamToReturn: make(map[int]bool),
	}
}

func (s *FunctionSummary) addParamSink(idx int, sink core.SinkType) {
	for _, existing := range s.ParamToSink[idx] {
		if existing == sink {
			return
		}
	}
	sinks := append(s.ParamToSink[idx], sink)
	sort.Slice(sinks, func(i, j int) bool { return sinks[i] < sinks[j] })
	s.ParamToSink[idx] = sinks
}

// CallGraphHints carries summaries produced by analyzing other units, keyed
// by qualified callee name. Without hints, analysis stays intraprocedural
// within the unit.
type CallGraphHints struct {
	Summaries map[string]*FunctionSummary
}

// Lookup resolves a cross-unit callee summary.
func (h *CallGraphHints) Lookup(qualified string) (*FunctionSummary, bool) {
	if h == nil || h.Summaries == nil {
		return nil, false
	}
	s, ok := h.Summaries[qualified]
	return s, ok
}
