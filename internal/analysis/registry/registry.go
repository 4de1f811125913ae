// Package registry holds the static knowledge bases consulted during taint
// analysis: which qualified calls introduce taint, which ones are dangerous
// sinks, and which ones neutralize taint for specific sink categories.
//
// Thread Safety:
//
//	All registries are immutable after construction and safe for concurrent
//	read access from any number of analyses. Do not modify entries after
//	construction.
package registry

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/lancet/internal/analysis/core"
)

// SourceInfo describes a qualified call that introduces untrusted data.
type SourceInfo struct {
	// Name is the fully qualified call path (e.g., "request.args.get").
	Name string
	// Category is the taint origin reported for values produced by the call.
	Category core.TaintSource
	// Level is the taint strength assigned at the source.
	Level core.TaintLevel
}

// SinkInfo describes a qualified call where unsanitized untrusted data causes
// a security-relevant effect.
type SinkInfo struct {
	// Name is the fully qualified call path (e.g., "cursor.execute").
	Name string
	Type core.SinkType
	// ArgIndexes lists the argument positions inspected for taint. Empty
	// means every argument is inspected.
	ArgIndexes []int
}

// InspectsArg reports whether the sink cares about the argument at index i.
func (s SinkInfo) InspectsArg(i int) bool {
	if len(s.ArgIndexes) == 0 {
		return true
	}
	for _, idx := range s.ArgIndexes {
		if idx == i {
			return true
		}
	}
	return false
}

// SanitizerInfo describes a call that neutralizes taint with respect to one
// or more specific sink categories. Clearing is always per-sink; a sanitizer
// never clears categories outside its set.
type SanitizerInfo struct {
	Name   string
	Clears []core.SinkType
}

// ClearsSink reports whether the sanitizer neutralizes the given category.
func (s SanitizerInfo) ClearsSink(sink core.SinkType) bool {
	for _, c := range s.Clears {
		if c == sink {
			return true
		}
	}
	return false
}

// SourceRegistry maps qualified call paths to source descriptors.
// Exact match only.
type SourceRegistry struct {
	entries map[string]SourceInfo
}

// SinkRegistry maps qualified call paths to sink descriptors. Exact match
// only: unregistered APIs are invisible to the engine.
type SinkRegistry struct {
	entries map[string]SinkInfo
}

// SanitizerRegistry maps qualified call paths to sanitizer descriptors.
type SanitizerRegistry struct {
	entries map[string]SanitizerInfo
}

// Lookup resolves a qualified call path to a source descriptor.
func (r *SourceRegistry) Lookup(qualified string) (SourceInfo, bool) {
	info, ok := r.entries[qualified]
	return info, ok
}

// Lookup resolves a qualified call path to a sink descriptor.
func (r *SinkRegistry) Lookup(qualified string) (SinkInfo, bool) {
	info, ok := r.entries[qualified]
	return info, ok
}

// Lookup resolves a qualified call path to a sanitizer descriptor.
func (r *SanitizerRegistry) Lookup(qualified string) (SanitizerInfo, bool) {
	info, ok := r.entries[qualified]
	return info, ok
}

// Names returns the registered qualified paths in sorted order.
func (r *SinkRegistry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Names returns the registered qualified paths in sorted order.
func (r *SourceRegistry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Names returns the registered qualified paths in sorted order.
func (r *SanitizerRegistry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Set bundles the three registries for one language. A Set is built once at
// process start and passed by reference into each analyzer instance.
type Set struct {
	Sources    *SourceRegistry
	Sinks      *SinkRegistry
	Sanitizers *SanitizerRegistry
}

// Builder accumulates registry entries before freezing them into a Set.
// It is the only mutable registry surface; it must not be shared once Build
// has been called.
type Builder struct {
	sources    map[string]SourceInfo
	sinks      map[string]SinkInfo
	sanitizers map[string]SanitizerInfo
}

// NewBuilder creates an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{
		sources:    make(map[string]SourceInfo),
		sinks:      make(map[string]SinkInfo),
		sanitizers: make(map[string]SanitizerInfo),
	}
}

// AddSource registers a taint-introducing call. Later entries win.
func (b *Builder) AddSource(info SourceInfo) *Builder {
	b.sources[info.Name] = info
	return b
}

// AddSink registers a dangerous call. Later entries win.
func (b *Builder) AddSink(info SinkInfo) *Builder {
	b.sinks[info.Name] = info
	return b
}

// AddSanitizer registers a neutralizing call. Later entries win.
func (b *Builder) AddSanitizer(info SanitizerInfo) *Builder {
	b.sanitizers[info.Name] = info
	return b
}

// Build freezes the accumulated entries into an immutable Set.
func (b *Builder) Build() *Set {
	return &Set{
		Sources:    &SourceRegistry{entries: b.sources},
		Sinks:      &SinkRegistry{entries: b.sinks},
		Sanitizers: &SanitizerRegistry{entries: b.sanitizers},
	}
}

// ForLanguage returns the frozen default Set for a language, or an error for
// languages without a knowledge base.
func ForLanguage(language string) (*Set, error) {
	switch language {
	case "python":
		return pythonSet, nil
	case "javascript":
		return javascriptSet, nil
	default:
		return nil, fmt.Errorf("no registry for language %q", language)
	}
}

// Languages returns the languages with built-in knowledge bases.
func Languages() []string {
	return []string{"javascript", "python"}
}

var (
	pythonSet     = defaultPythonBuilder().Build()
	javascriptSet = defaultJavaScriptBuilder().Build()
)
