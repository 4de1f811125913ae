package core

import "github.com/xkilldash9x/lancet/api/schemas"

// TaintInfo is the immutable abstract value tracked per identifier. A zero
// TaintInfo means "no taint".
type TaintInfo struct {
	Source   TaintSource
	Level    TaintLevel
	Location schemas.Location

	// Path records the identifiers and calls the taint flowed through, in
	// first-seen order without duplicates.
	Path []string
}

// NewTaint creates a TaintInfo introduced at the given location. The initial
// propagation path contains only the introducing step.
func NewTaint(source TaintSource, level TaintLevel, loc schemas.Location, step string) TaintInfo {
	return TaintInfo{
		Source:   source,
		Level:    level,
		Location: loc,
		Path:     []string{step},
	}
}

// IsTainted reports whether the value carries any taint.
func (t TaintInfo) IsTainted() bool {
	return t.Level > LevelNone
}

// IsDangerousFor reports whether the taint is strong enough to flag a flow
// into the given sink category.
func (t TaintInfo) IsDangerousFor(sink SinkType) bool {
	return t.Level >= DangerThreshold(sink)
}

// WithStep returns a copy of the taint with one step appended to the
// propagation path (skipped if the step is already present).
func (t TaintInfo) WithStep(step string) TaintInfo {
	for _, s := range t.Path {
		if s == step {
			return t
		}
	}
	path := make([]string, 0, len(t.Path)+1)
	path = append(path, t.Path...)
	path = append(path, step)
	t.Path = path
	return t
}

// Join is the lattice join of two taint values. The resulting level is the
// maximum of the operands; source and location follow the higher-level side,
// with ties resolved to the left operand; the propagation path is the
// deduplicated concatenation of both paths preserving first-seen order.
func Join(a, b TaintInfo) TaintInfo {
	if !b.IsTainted() {
		return a
	}
	if !a.IsTainted() {
		return b
	}

	out := TaintInfo{Source: a.Source, Level: a.Level, Location: a.Location}
	if b.Level > a.Level {
		out.Source = b.Source
		out.Level = b.Level
		out.Location = b.Location
	}
	out.Path = mergePaths(a.Path, b.Path)
	return out
}

// mergePaths concatenates two step lists, dropping duplicates while keeping
// the first occurrence of each step.
func mergePaths(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// JoinAll folds Join over a list of taints. An empty list yields no taint.
func JoinAll(taints []TaintInfo) TaintInfo {
	var out TaintInfo
	for _, t := range taints {
		out = Join(out, t)
	}
	return out
}
