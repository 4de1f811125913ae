package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xkilldash9x/lancet/api/schemas"
)

func loc(line, col int) schemas.Location {
	return schemas.Location{Line: line, Column: col}
}

func TestNewTaint(t *testing.T) {
	t.Parallel()

	taint := NewTaint(SourceUserInput, LevelHigh, loc(3, 1), "user_input")
	if !taint.IsTainted() {
		t.Fatal("fresh taint should report tainted")
	}
	if got, want := taint.Path, []string{"user_input"}; !cmp.Equal(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestZeroValueIsUntainted(t *testing.T) {
	t.Parallel()

	var zero TaintInfo
	if zero.IsTainted() {
		t.Error("zero TaintInfo must not be tainted")
	}
	if zero.IsDangerousFor(SinkWeakCrypto) {
		t.Error("zero TaintInfo must not be dangerous for any sink")
	}
}

func TestWithStep(t *testing.T) {
	t.Parallel()

	taint := NewTaint(SourceNetwork, LevelMedium, loc(1, 1), "resp")

	stepped := taint.WithStep("query")
	if got, want := stepped.Path, []string{"resp", "query"}; !cmp.Equal(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}

	// Appending a step that is already present is a no-op.
	again := stepped.WithStep("resp")
	if got, want := again.Path, []string{"resp", "query"}; !cmp.Equal(got, want) {
		t.Errorf("path after duplicate step = %v, want %v", got, want)
	}

	// The original value is unchanged.
	if got, want := taint.Path, []string{"resp"}; !cmp.Equal(got, want) {
		t.Errorf("original path mutated: %v, want %v", got, want)
	}
}

func TestJoinLevelAndSource(t *testing.T) {
	t.Parallel()

	low := NewTaint(SourceFile, LevelLow, loc(1, 1), "cfg")
	high := NewTaint(SourceUserInput, LevelHigh, loc(5, 3), "user_input")

	joined := Join(low, high)
	if joined.Level != LevelHigh {
		t.Errorf("level = %v, want %v", joined.Level, LevelHigh)
	}
	if joined.Source != SourceUserInput {
		t.Errorf("source = %v, want %v", joined.Source, SourceUserInput)
	}
	if joined.Location != loc(5, 3) {
		t.Errorf("location = %v, want %v", joined.Location, loc(5, 3))
	}
	if got, want := joined.Path, []string{"cfg", "user_input"}; !cmp.Equal(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestJoinTieGoesLeft(t *testing.T) {
	t.Parallel()

	a := NewTaint(SourceUserInput, LevelHigh, loc(1, 1), "a")
	b := NewTaint(SourceNetwork, LevelHigh, loc(2, 2), "b")

	joined := Join(a, b)
	if joined.Source != SourceUserInput {
		t.Errorf("equal levels must keep the left source, got %v", joined.Source)
	}
	if joined.Location != loc(1, 1) {
		t.Errorf("equal levels must keep the left location, got %v", joined.Location)
	}
}

func TestJoinWithUntainted(t *testing.T) {
	t.Parallel()

	taint := NewTaint(SourceArgv, LevelMedium, loc(2, 1), "arg")
	var zero TaintInfo

	if diff := cmp.Diff(taint, Join(taint, zero)); diff != "" {
		t.Errorf("Join(t, zero) changed the value:\n%s", diff)
	}
	if diff := cmp.Diff(taint, Join(zero, taint)); diff != "" {
		t.Errorf("Join(zero, t) changed the value:\n%s", diff)
	}
}

func TestJoinPathDeduplication(t *testing.T) {
	t.Parallel()

	a := NewTaint(SourceUserInput, LevelHigh, loc(1, 1), "x").WithStep("shared")
	b := NewTaint(SourceNetwork, LevelLow, loc(2, 2), "shared")

	joined := Join(a, b)
	if got, want := joined.Path, []string{"x", "shared"}; !cmp.Equal(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

// Join levels behave like max: the result never loses taint strength from
// either operand, regardless of the order of operands.
func TestJoinNeverWeakens(t *testing.T) {
	t.Parallel()

	levels := []TaintLevel{LevelNone, LevelLow, LevelMedium, LevelHigh}
	for _, la := range levels {
		for _, lb := range levels {
			a := TaintInfo{Source: SourceUserInput, Level: la, Path: []string{"a"}}
			b := TaintInfo{Source: SourceNetwork, Level: lb, Path: []string{"b"}}

			joined := Join(a, b)
			if joined.Level < la || joined.Level < lb {
				t.Errorf("Join(%v, %v) weakened to %v", la, lb, joined.Level)
			}

			flipped := Join(b, a)
			if flipped.Level != joined.Level {
				t.Errorf("Join level not symmetric for (%v, %v)", la, lb)
			}
		}
	}
}

func TestJoinAll(t *testing.T) {
	t.Parallel()

	var empty TaintInfo
	if got := JoinAll(nil); !cmp.Equal(got, empty) {
		t.Errorf("JoinAll(nil) = %v, want zero value", got)
	}

	taints := []TaintInfo{
		NewTaint(SourceFile, LevelLow, loc(1, 1), "f"),
		NewTaint(SourceUserInput, LevelHigh, loc(2, 1), "u"),
		NewTaint(SourceNetwork, LevelMedium, loc(3, 1), "n"),
	}
	joined := JoinAll(taints)
	if joined.Level != LevelHigh || joined.Source != SourceUserInput {
		t.Errorf("JoinAll = {%v %v}, want {HIGH USER_INPUT}", joined.Level, joined.Source)
	}
	if got, want := joined.Path, []string{"f", "u", "n"}; !cmp.Equal(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestDangerThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sink  SinkType
		level TaintLevel
		want  bool
	}{
		{SinkSQLQuery, LevelLow, false},
		{SinkSQLQuery, LevelMedium, true},
		{SinkSQLQuery, LevelHigh, true},
		{SinkWeakCrypto, LevelLow, true},
		{SinkLogInjection, LevelLow, true},
		{SinkSSRF, LevelLow, false},
		{SinkShellCommand, LevelNone, false},
	}
	for _, tc := range cases {
		taint := TaintInfo{Source: SourceUserInput, Level: tc.level}
		if got := taint.IsDangerousFor(tc.sink); got != tc.want {
			t.Errorf("IsDangerousFor(%s) at %v = %v, want %v", tc.sink, tc.level, got, tc.want)
		}
	}
}

func TestSeverityFor(t *testing.T) {
	t.Parallel()

	if got := SeverityFor(SinkShellCommand); got != schemas.SeverityCritical {
		t.Errorf("SHELL_COMMAND severity = %v, want CRITICAL", got)
	}
	if got := SeverityFor(SinkSQLQuery); got != schemas.SeverityHigh {
		t.Errorf("SQL_QUERY severity = %v, want HIGH", got)
	}
	if got := SeverityFor(SinkWeakCrypto); got != schemas.SeverityLow {
		t.Errorf("WEAK_CRYPTO severity = %v, want LOW", got)
	}
	// Overlay-introduced categories default to MEDIUM.
	if got := SeverityFor(SinkType("CUSTOM_SINK")); got != schemas.SeverityMedium {
		t.Errorf("unknown sink severity = %v, want MEDIUM", got)
	}
}

func TestVulnerabilityName(t *testing.T) {
	t.Parallel()

	if got := VulnerabilityName(SinkSQLQuery); got != "SQL Injection" {
		t.Errorf("name = %q", got)
	}
	if got := VulnerabilityName(SinkType("CUSTOM_SINK")); got != "CUSTOM_SINK" {
		t.Errorf("unknown sink should echo its category, got %q", got)
	}
}
