package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, mutate func(*config.Config), opts ...Option) *Engine {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.SetEngineWorkerConcurrency(2)
	if mutate != nil {
		mutate(cfg)
	}
	e, err := NewEngine(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectTargets(t *testing.T) {
	dir := t.TempDir()
	pyFile := writeFile(t, dir, "a.py", "x = 1\n")
	jsFile := writeFile(t, dir, "b.js", "const x = 1;\n")
	writeFile(t, dir, "notes.txt", "not source\n")
	writeFile(t, dir, ".hidden/c.py", "x = 1\n")
	writeFile(t, dir, "node_modules/d.js", "const x = 1;\n")
	writeFile(t, dir, "__pycache__/e.py", "x = 1\n")
	nested := writeFile(t, dir, "pkg/f.py", "x = 1\n")

	e := newTestEngine(t, nil)

	targets, err := e.collectTargets([]string{dir})
	require.NoError(t, err)

	var paths []string
	for _, tg := range targets {
		paths = append(paths, tg.path)
	}
	assert.Equal(t, []string{pyFile, jsFile, nested}, paths, "vendored and hidden directories must be skipped, order sorted")

	t.Run("duplicate arguments dedup", func(t *testing.T) {
		targets, err := e.collectTargets([]string{pyFile, pyFile})
		require.NoError(t, err)
		assert.Len(t, targets, 1)
	})

	t.Run("missing target errors", func(t *testing.T) {
		_, err := e.collectTargets([]string{filepath.Join(dir, "nope.py")})
		assert.Error(t, err)
	})

	t.Run("language detection", func(t *testing.T) {
		targets, err := e.collectTargets([]string{jsFile})
		require.NoError(t, err)
		require.Len(t, targets, 1)
		assert.Equal(t, "javascript", targets[0].language)
	})
}

func TestCollectTargetsRespectsLanguageFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "x = 1\n")
	writeFile(t, dir, "b.js", "const x = 1;\n")

	e := newTestEngine(t, func(c *config.Config) {
		c.AnalysisCfg.Languages = []string{"python"}
	})

	targets, err := e.collectTargets([]string{dir})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "python", targets[0].language)
}

func TestScanFindsVulnerability(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vuln.py", "cmd = input()\nos.system(cmd)\n")

	e := newTestEngine(t, nil)
	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.ScanID)
	assert.False(t, report.StartedAt.IsZero())
	assert.False(t, report.FinishedAt.IsZero())
	require.Len(t, report.Files, 1)

	result := report.Files[0].Result
	require.False(t, result.Failed())
	require.Len(t, result.Vulnerabilities, 1)
	assert.Equal(t, "Command Injection", result.Vulnerabilities[0].VulnerabilityType)
	assert.Equal(t, 1, report.TotalVulnerabilities)
	assert.Equal(t, 0, report.FailedFiles)
}

func TestScanNoSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.txt", "nothing here\n")

	e := newTestEngine(t, nil)
	report, err := e.Scan(context.Background(), []string{dir})
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "no supported source files")
}

func TestScanSyntaxErrorIsolatedPerFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.py", "def f(:\n")
	writeFile(t, dir, "good.py", "cmd = input()\nos.system(cmd)\n")

	e := newTestEngine(t, nil)
	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, report.Files, 2)

	byPath := make(map[string]schemas.FileResult)
	for _, f := range report.Files {
		byPath[filepath.Base(f.Path)] = f
	}
	badResult := byPath["bad.py"].Result
	assert.True(t, badResult.Failed(), "syntax error must surface in the file result")
	assert.Len(t, byPath["good.py"].Result.Vulnerabilities, 1, "a broken sibling must not block analysis")
	assert.Equal(t, 1, report.FailedFiles)
}

func TestScanEnforcesFileSizeBound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.py", strings.Repeat("x = 1\n", 100))

	e := newTestEngine(t, func(c *config.Config) {
		c.EngineCfg.MaxFileSizeBytes = 64
	})
	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	result := report.Files[0].Result
	require.True(t, result.Failed())
	assert.Contains(t, *result.Error, "exceeds limit")
}

func TestScanEnforcesNestingBound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deep.py", "x = ((((((1))))))\n")

	e := newTestEngine(t, func(c *config.Config) {
		c.EngineCfg.MaxNestingDepth = 3
	})
	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	result := report.Files[0].Result
	require.True(t, result.Failed())
	assert.Contains(t, *result.Error, "nesting depth")
}

func TestScanResultsFollowSortedPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "c.py", "x = 1\n")
	writeFile(t, dir, "a.py", "x = 1\n")
	writeFile(t, dir, "b.py", "x = 1\n")

	e := newTestEngine(t, nil)
	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, report.Files, 3)

	var names []string
	for _, f := range report.Files {
		names = append(names, filepath.Base(f.Path))
	}
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, names)
}

func TestScanCrossFileSummaries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "helpers.py", "def run_query(q):\n    cursor.execute(q)\n")
	writeFile(t, dir, "app.py", "uid = input()\nrun_query(uid)\n")

	e := newTestEngine(t, nil)
	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)

	var appVulns []schemas.Vulnerability
	for _, f := range report.Files {
		if filepath.Base(f.Path) == "app.py" {
			appVulns = f.Result.Vulnerabilities
		}
	}
	require.Len(t, appVulns, 1, "call into a function defined in another file must resolve")
	assert.Equal(t, "SQL Injection", appVulns[0].VulnerabilityType)

	t.Run("disabled cross-file misses the flow", func(t *testing.T) {
		e := newTestEngine(t, func(c *config.Config) {
			c.AnalysisCfg.CrossFile = false
		})
		report, err := e.Scan(context.Background(), []string{dir})
		require.NoError(t, err)
		for _, f := range report.Files {
			if filepath.Base(f.Path) == "app.py" {
				assert.Empty(t, f.Result.Vulnerabilities)
			}
		}
	})
}

func TestScanCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "x = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, nil)
	_, err := e.Scan(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}

// recordingStore captures the reports handed to it.
type recordingStore struct {
	reports []*schemas.ScanReport
	err     error
}

func (s *recordingStore) SaveReport(_ context.Context, report *schemas.ScanReport) error {
	s.reports = append(s.reports, report)
	return s.err
}

func TestScanPersistsToStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vuln.py", "cmd = input()\nos.system(cmd)\n")

	store := &recordingStore{}
	e := newTestEngine(t, nil, WithStore(store))

	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, store.reports, 1)
	assert.Equal(t, report.ScanID, store.reports[0].ScanID)
}

func TestScanStoreFailureDoesNotFailScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "x = 1\n")

	store := &recordingStore{err: assert.AnError}
	e := newTestEngine(t, nil, WithStore(store))

	report, err := e.Scan(context.Background(), []string{dir})
	require.NoError(t, err, "persistence is best-effort")
	require.NotNil(t, report)
}

func TestMaxBracketDepth(t *testing.T) {
	assert.Equal(t, 0, maxBracketDepth([]byte("flat text")))
	assert.Equal(t, 2, maxBracketDepth([]byte("f(g(x)) + h(y)")))
	assert.Equal(t, 3, maxBracketDepth([]byte("[{(")), "unbalanced input still measures depth")
}
