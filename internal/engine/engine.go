// Package engine orchestrates batch scans: file discovery, pre-analysis
// bounds, the bounded worker pool, and cross-file summary sharing.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/lang"
	"github.com/xkilldash9x/lancet/internal/analysis/lang/javascript"
	"github.com/xkilldash9x/lancet/internal/analysis/lang/python"
	"github.com/xkilldash9x/lancet/internal/analysis/registry"
	"github.com/xkilldash9x/lancet/internal/analysis/taint"
	"github.com/xkilldash9x/lancet/internal/config"
)

// languageByExt maps file extensions to language keys.
var languageByExt = map[string]string{
	".py":  "python",
	".js":  "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".jsx": "javascript",
}

// FindingsStore persists scan reports. The engine treats persistence as
// optional; a nil store disables it.
type FindingsStore interface {
	SaveReport(ctx context.Context, report *schemas.ScanReport) error
}

// Engine runs taint analysis over file sets with a bounded worker pool.
// Registries and adapters are built once at construction and shared read-only
// across all scans and workers.
type Engine struct {
	cfg      config.Interface
	logger   *zap.Logger
	adapters map[string]lang.Adapter
	regs     map[string]*registry.Set
	store    FindingsStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches a findings store that receives every completed report.
func WithStore(store FindingsStore) Option {
	return func(e *Engine) { e.store = store }
}

// NewEngine builds the per-language adapters and registries. An overlay file
// from the configuration is layered over the built-in registries before they
// are frozen.
func NewEngine(cfg config.Interface, logger *zap.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		logger:   logger.Named("engine"),
		adapters: make(map[string]lang.Adapter),
		regs:     make(map[string]*registry.Set),
	}
	for _, opt := range opts {
		opt(e)
	}

	var overlay *registry.Overlay
	if path := cfg.Analysis().RegistryOverlay; path != "" {
		loaded, err := registry.LoadOverlay(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry overlay: %w", err)
		}
		overlay = loaded
	}

	for _, language := range e.enabledLanguages() {
		set, err := registry.SetForLanguage(language, overlay)
		if err != nil {
			return nil, err
		}
		e.regs[language] = set

		switch language {
		case "python":
			e.adapters[language] = python.New(logger)
		case "javascript":
			e.adapters[language] = javascript.New(logger)
		default:
			return nil, fmt.Errorf("no adapter for language %q", language)
		}
	}
	return e, nil
}

func (e *Engine) enabledLanguages() []string {
	enabled := e.cfg.Analysis().Languages
	if len(enabled) == 0 {
		return registry.Languages()
	}
	out := append([]string(nil), enabled...)
	sort.Strings(out)
	return out
}

// target is one file admitted into a scan.
type target struct {
	path     string
	language string
}

// Scan analyzes every supported file under the given paths and returns the
// aggregated report. Individual file failures (syntax errors, bound
// violations) land in their FileResult; Scan itself fails only on unusable
// inputs or a canceled context.
func (e *Engine) Scan(ctx context.Context, paths []string) (*schemas.ScanReport, error) {
	targets, err := e.collectTargets(paths)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no supported source files under %v", paths)
	}

	report := &schemas.ScanReport{
		ScanID:    uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Files:     make([]schemas.FileResult, len(targets)),
	}

	concurrency := e.cfg.Engine().WorkerConcurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	e.logger.Info("starting scan",
		zap.String("scan_id", report.ScanID),
		zap.Int("files", len(targets)),
		zap.Int("concurrency", concurrency),
	)

	hints := e.collectHints(ctx, targets, concurrency)

	analyzers := make(map[string]*taint.Analyzer, len(e.adapters))
	for language, adapter := range e.adapters {
		analyzers[language] = taint.NewAnalyzer(adapter, e.regs[language], e.logger,
			taint.WithCallGraphHints(hints))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Files[i] = e.analyzeFile(gctx, analyzers[t.language], t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now().UTC()
	report.Totals()

	e.logger.Info("scan finished",
		zap.String("scan_id", report.ScanID),
		zap.Int("vulnerabilities", report.TotalVulnerabilities),
		zap.Int("failed_files", report.FailedFiles),
	)

	if e.store != nil {
		if err := e.store.SaveReport(ctx, report); err != nil {
			e.logger.Error("failed to persist scan report", zap.Error(err))
		}
	}
	return report, nil
}

// analyzeFile enforces the caller-side bounds and runs one unit through the
// analyzer. Bound violations surface the same way build failures do.
func (e *Engine) analyzeFile(ctx context.Context, analyzer *taint.Analyzer, t target) schemas.FileResult {
	result := schemas.FileResult{Path: t.path, Language: t.language}

	source, err := e.readBounded(t.path)
	if err != nil {
		msg := err.Error()
		result.Result = schemas.AnalysisResult{Error: &msg}
		return result
	}

	result.Result = analyzer.Analyze(ctx, t.path, source)
	return result
}

// readBounded loads a file, rejecting inputs past the size or nesting bounds
// before the analyzer ever sees them.
func (e *Engine) readBounded(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	maxSize := e.cfg.Engine().MaxFileSizeBytes
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%s: file size %d exceeds limit %d", path, info.Size(), maxSize)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if depth := maxBracketDepth(source); depth > e.cfg.Engine().MaxNestingDepth {
		return nil, fmt.Errorf("%s: nesting depth %d exceeds limit %d", path, depth, e.cfg.Engine().MaxNestingDepth)
	}
	return source, nil
}

// maxBracketDepth approximates nesting by tracking bracket depth. Cheap and
// language-agnostic; string contents can inflate it, which only rejects
// earlier, never later.
func maxBracketDepth(source []byte) int {
	depth, deepest := 0, 0
	for _, b := range source {
		switch b {
		case '(', '[', '{':
			depth++
			if depth > deepest {
				deepest = depth
			}
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return deepest
}

// collectHints runs the summary pre-pass across all targets so call sites in
// one file can resolve functions defined in another. Name collisions across
// files resolve to the lexically smallest path, keeping the merged hint set
// deterministic.
func (e *Engine) collectHints(ctx context.Context, targets []target, concurrency int) *taint.CallGraphHints {
	if !e.cfg.Analysis().CrossFile {
		return nil
	}

	type fileSummaries struct {
		path      string
		summaries map[string]*taint.FunctionSummary
	}

	results := make([]*fileSummaries, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, t := range targets {
		g.Go(func() error {
			// Unreadable or unparseable files simply contribute no hints;
			// the main pass reports their errors.
			source, err := e.readBounded(t.path)
			if err != nil {
				return nil
			}
			unit, err := e.adapters[t.language].Normalize(gctx, t.path, source)
			if err != nil {
				return nil
			}
			analyzer := taint.NewAnalyzer(e.adapters[t.language], e.regs[t.language], e.logger)
			summaries, err := analyzer.Summaries(unit)
			if err != nil {
				return nil
			}
			results[i] = &fileSummaries{path: t.path, summaries: summaries}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		switch {
		case results[i] == nil:
			return false
		case results[j] == nil:
			return true
		default:
			return results[i].path < results[j].path
		}
	})

	merged := make(map[string]*taint.FunctionSummary)
	for _, fs := range results {
		if fs == nil {
			continue
		}
		for name, summary := range fs.summaries {
			if _, exists := merged[name]; !exists {
				merged[name] = summary
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return &taint.CallGraphHints{Summaries: merged}
}

// collectTargets expands files and directories into the admitted file list,
// in deterministic order.
func (e *Engine) collectTargets(paths []string) ([]target, error) {
	var targets []target
	seen := make(map[string]bool)

	add := func(path string) {
		language, ok := languageByExt[strings.ToLower(filepath.Ext(path))]
		if !ok || seen[path] {
			return
		}
		// Files of disabled languages are skipped, not failed.
		if _, enabled := e.adapters[language]; !enabled {
			return
		}
		seen[path] = true
		targets = append(targets, target{path: path, language: language})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != p && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "__pycache__") {
					return filepath.SkipDir
				}
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].path < targets[j].path })
	return targets, nil
}
