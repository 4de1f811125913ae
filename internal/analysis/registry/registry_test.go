package registry

import (
	"sort"
	"testing"

	"github.com/xkilldash9x/lancet/internal/analysis/core"
)

func TestForLanguage(t *testing.T) {
	t.Parallel()

	for _, language := range []string{"python", "javascript"} {
		set, err := ForLanguage(language)
		if err != nil {
			t.Fatalf("ForLanguage(%q): %v", language, err)
		}
		if len(set.Sources.Names()) == 0 || len(set.Sinks.Names()) == 0 || len(set.Sanitizers.Names()) == 0 {
			t.Errorf("%s registry has empty tables", language)
		}
	}

	if _, err := ForLanguage("rust"); err == nil {
		t.Error("unknown language should return an error")
	}
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	got := Languages()
	if !sort.StringsAreSorted(got) {
		t.Errorf("Languages() not sorted: %v", got)
	}
	want := map[string]bool{"python": true, "javascript": true}
	for _, l := range got {
		delete(want, l)
	}
	if len(want) != 0 {
		t.Errorf("missing languages: %v", want)
	}
}

func TestSourceLookup(t *testing.T) {
	t.Parallel()

	set, err := ForLanguage("python")
	if err != nil {
		t.Fatal(err)
	}

	info, ok := set.Sources.Lookup("request.args.get")
	if !ok {
		t.Fatal("request.args.get should be a registered source")
	}
	if info.Category != core.SourceNetwork || info.Level != core.LevelHigh {
		t.Errorf("got {%v %v}, want {NETWORK HIGH}", info.Category, info.Level)
	}

	if _, ok := set.Sources.Lookup("request.args"); ok {
		t.Error("lookup is exact; a prefix of a registered path must not match")
	}
}

func TestSinkInspectsArg(t *testing.T) {
	t.Parallel()

	set, err := ForLanguage("python")
	if err != nil {
		t.Fatal(err)
	}

	execute, ok := set.Sinks.Lookup("cursor.execute")
	if !ok {
		t.Fatal("cursor.execute should be a registered sink")
	}
	if !execute.InspectsArg(0) {
		t.Error("cursor.execute must inspect arg 0")
	}
	if execute.InspectsArg(1) {
		t.Error("cursor.execute must ignore arg 1 (parameter bindings)")
	}

	// requests.request(method, url) inspects the url, not the method.
	req, ok := set.Sinks.Lookup("requests.request")
	if !ok {
		t.Fatal("requests.request should be a registered sink")
	}
	if req.InspectsArg(0) || !req.InspectsArg(1) {
		t.Error("requests.request must inspect only arg 1")
	}

	// A sink with no ArgIndexes inspects everything.
	log, ok := set.Sinks.Lookup("logging.info")
	if !ok {
		t.Fatal("logging.info should be a registered sink")
	}
	for i := 0; i < 4; i++ {
		if !log.InspectsArg(i) {
			t.Errorf("logging.info must inspect arg %d", i)
		}
	}
}

func TestSanitizerClearsSink(t *testing.T) {
	t.Parallel()

	set, err := ForLanguage("python")
	if err != nil {
		t.Fatal(err)
	}

	quote, ok := set.Sanitizers.Lookup("shlex.quote")
	if !ok {
		t.Fatal("shlex.quote should be a registered sanitizer")
	}
	if !quote.ClearsSink(core.SinkShellCommand) {
		t.Error("shlex.quote must clear SHELL_COMMAND")
	}
	if quote.ClearsSink(core.SinkSQLQuery) {
		t.Error("shlex.quote must not clear SQL_QUERY")
	}
}

func TestBuilderLastEntryWins(t *testing.T) {
	t.Parallel()

	set := NewBuilder().
		AddSink(SinkInfo{Name: "run", Type: core.SinkShellCommand}).
		AddSink(SinkInfo{Name: "run", Type: core.SinkCodeEval}).
		Build()

	info, ok := set.Sinks.Lookup("run")
	if !ok {
		t.Fatal("run should be registered")
	}
	if info.Type != core.SinkCodeEval {
		t.Errorf("type = %v, want CODE_EVAL (later entries replace earlier ones)", info.Type)
	}
}

func TestNamesAreSorted(t *testing.T) {
	t.Parallel()

	set, err := ForLanguage("javascript")
	if err != nil {
		t.Fatal(err)
	}
	if !sort.StringsAreSorted(set.Sources.Names()) {
		t.Error("source names not sorted")
	}
	if !sort.StringsAreSorted(set.Sinks.Names()) {
		t.Error("sink names not sorted")
	}
	if !sort.StringsAreSorted(set.Sanitizers.Names()) {
		t.Error("sanitizer names not sorted")
	}
}
