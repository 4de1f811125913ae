package javascript

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/analysis/lang"
)

func normalize(t *testing.T, source string) *lang.Unit {
	t.Helper()
	adapter := New(zap.NewNop())
	unit, err := adapter.Normalize(context.Background(), "test.js", []byte(source))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return unit
}

func TestLanguage(t *testing.T) {
	t.Parallel()
	if got := New(zap.NewNop()).Language(); got != "javascript" {
		t.Errorf("Language() = %q", got)
	}
}

func TestConstDeclaration(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "const fragment = location.hash;\n")
	if len(unit.Statements) != 1 {
		t.Fatalf("got %d statements", len(unit.Statements))
	}
	st := unit.Statements[0]
	if st.Kind != lang.KindAssign || st.Target != "fragment" {
		t.Fatalf("got %+v", st)
	}
	if st.Value == nil || st.Value.Var != "location.hash" {
		t.Errorf("value = %+v, want location.hash", st.Value)
	}
}

func TestAssignmentExpression(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "x = eval(code);\n")
	st := unit.Statements[0]
	if st.Kind != lang.KindAssign || st.Target != "x" {
		t.Fatalf("got %+v", st)
	}
	if st.Call == nil || st.Call.Qualified != "eval" {
		t.Errorf("call = %+v", st.Call)
	}
	if len(st.Call.Args) != 1 || st.Call.Args[0].Var != "code" {
		t.Errorf("args = %+v", st.Call.Args)
	}
}

func TestTemplateStringLowersToConcat(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "const q = `SELECT * FROM t WHERE id=${id}`;\n")
	st := unit.Statements[0]
	if st.Kind != lang.KindAssign || len(st.Concat) == 0 {
		t.Fatalf("template literal should lower to a concat, got %+v", st)
	}
	found := false
	for _, p := range st.Concat {
		if p.Var == "id" {
			found = true
		}
	}
	if !found {
		t.Errorf("substitution identifier missing: %+v", st.Concat)
	}
}

func TestPlainTemplateStringIsLiteral(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "const s = `static`;\n")
	st := unit.Statements[0]
	if st.Value == nil || !st.Value.IsLiteral {
		t.Errorf("substitution-free template should be a literal, got %+v", st)
	}
}

func TestNestedCallIsHoisted(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "db.query(buildQuery(input));\n")
	if len(unit.Statements) != 2 {
		t.Fatalf("got %d statements, want hoisted temp + call", len(unit.Statements))
	}
	temp := unit.Statements[0]
	if temp.Kind != lang.KindAssign || !temp.Synthetic || temp.Call == nil || temp.Call.Qualified != "buildQuery" {
		t.Fatalf("hoisted statement = %+v", temp)
	}
	call := unit.Statements[1]
	if call.Kind != lang.KindCall || call.Call.Qualified != "db.query" || call.Call.Receiver != "db" {
		t.Fatalf("call = %+v", call.Call)
	}
	if len(call.Call.Args) != 1 || call.Call.Args[0].Var != temp.Target {
		t.Errorf("arg should reference %q, got %+v", temp.Target, call.Call.Args)
	}
}

func TestBinaryConcat(t *testing.T) {
	t.Parallel()

	unit := normalize(t, `const msg = "hello " + name + "!";`)
	st := unit.Statements[0]
	if st.Kind != lang.KindAssign || len(st.Concat) != 3 {
		t.Fatalf("got %+v", st)
	}
	if st.Concat[1].Var != "name" {
		t.Errorf("concat = %+v", st.Concat)
	}
}

func TestIfElseChain(t *testing.T) {
	t.Parallel()

	src := `
if (a) {
  x = 1;
} else if (b) {
  x = 2;
} else {
  x = 3;
}
`
	unit := normalize(t, src)
	st := unit.Statements[0]
	if st.Kind != lang.KindBranch || st.BranchKind != lang.BranchIf {
		t.Fatalf("got %+v", st)
	}
	if len(st.Arms) != 3 || !st.Exhaustive {
		t.Errorf("arms = %d, exhaustive = %v", len(st.Arms), st.Exhaustive)
	}
	if got := st.CondUses; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("cond uses = %v", got)
	}
}

func TestForLoopShape(t *testing.T) {
	t.Parallel()

	src := "for (let i = 0; i < n; i++) { sum += i; }\n"
	unit := normalize(t, src)
	if len(unit.Statements) != 2 {
		t.Fatalf("got %d statements, want initializer + loop header", len(unit.Statements))
	}
	init := unit.Statements[0]
	if init.Kind != lang.KindAssign || init.Target != "i" {
		t.Errorf("initializer = %+v", init)
	}
	loop := unit.Statements[1]
	if loop.Kind != lang.KindLoopHeader {
		t.Fatalf("got %+v", loop)
	}
	if len(loop.CondUses) == 0 {
		t.Error("loop condition uses missing")
	}
}

func TestForOfBindsLoopVariable(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "for (const item of items) { use(item); }\n")
	st := unit.Statements[0]
	if st.Kind != lang.KindLoopHeader {
		t.Fatalf("got %+v", st)
	}
	body := st.Arms[0]
	if len(body) < 2 {
		t.Fatalf("body should start with the loop-variable binding")
	}
	bind := body[0]
	if bind.Kind != lang.KindAssign || bind.Target != "item" || !bind.Synthetic {
		t.Errorf("binding = %+v", bind)
	}
}

func TestTryCatch(t *testing.T) {
	t.Parallel()

	src := `
try {
  risky();
} catch (e) {
  recover();
} finally {
  done();
}
`
	unit := normalize(t, src)
	if len(unit.Statements) != 2 {
		t.Fatalf("got %d statements", len(unit.Statements))
	}
	st := unit.Statements[0]
	if st.Kind != lang.KindBranch || st.BranchKind != lang.BranchTry || !st.Exhaustive {
		t.Fatalf("got %+v", st)
	}
	if len(st.Arms) != 2 {
		t.Errorf("arms = %d, want protected block + handler", len(st.Arms))
	}
	if unit.Statements[1].Kind != lang.KindCall {
		t.Errorf("finalizer should be inlined after the branch")
	}
}

func TestSwitchStatement(t *testing.T) {
	t.Parallel()

	src := `
switch (kind) {
case "a":
  x = 1;
  break;
default:
  x = 2;
}
`
	unit := normalize(t, src)
	st := unit.Statements[0]
	if st.Kind != lang.KindBranch {
		t.Fatalf("got %+v", st)
	}
	if len(st.Arms) != 2 || !st.Exhaustive {
		t.Errorf("arms = %d, exhaustive = %v", len(st.Arms), st.Exhaustive)
	}
	if len(st.CondUses) != 1 || st.CondUses[0] != "kind" {
		t.Errorf("cond uses = %v", st.CondUses)
	}
}

func TestFunctionDeclaration(t *testing.T) {
	t.Parallel()

	src := `
function handle(req, res) {
  return req;
}
`
	unit := normalize(t, src)
	st := unit.Statements[0]
	if st.Kind != lang.KindFunctionDef || st.Name != "handle" {
		t.Fatalf("got %+v", st)
	}
	if len(st.Params) != 2 || st.Params[0] != "req" || st.Params[1] != "res" {
		t.Errorf("params = %v", st.Params)
	}
}

func TestArrowFunctionValue(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "const double = (v) => v + v;\n")
	st := unit.Statements[0]
	if st.Kind != lang.KindFunctionDef || st.Name != "double" {
		t.Fatalf("got %+v", st)
	}
	if len(st.Params) != 1 || st.Params[0] != "v" {
		t.Errorf("params = %v", st.Params)
	}
	body := st.Arms[0]
	if len(body) == 0 || body[len(body)-1].Kind != lang.KindReturn {
		t.Errorf("expression body should end in an implicit return, got %+v", body)
	}
}

func TestClassMethodsAreScoped(t *testing.T) {
	t.Parallel()

	src := `
class Repo {
  find(key) {
    return key;
  }
}
`
	unit := normalize(t, src)
	var def *lang.Statement
	for _, st := range unit.Statements {
		if st.Kind == lang.KindFunctionDef {
			def = st
		}
	}
	if def == nil {
		t.Fatal("method definition not lowered")
	}
	if def.Name != "Repo.find" {
		t.Errorf("name = %q, want Repo.find", def.Name)
	}
}

func TestDestructuringDeclaration(t *testing.T) {
	t.Parallel()

	unit := normalize(t, "const { id, name } = req.query;\n")
	if len(unit.Statements) != 2 {
		t.Fatalf("got %d statements, want one per binding", len(unit.Statements))
	}
	for i, want := range []string{"id", "name"} {
		st := unit.Statements[i]
		if st.Kind != lang.KindAssign || st.Target != want {
			t.Errorf("statement %d = %+v", i, st)
		}
		if st.Value == nil || st.Value.Var != "req.query" {
			t.Errorf("statement %d value = %+v", i, st.Value)
		}
	}
}

func TestSubscriptWithStringKeyFlattens(t *testing.T) {
	t.Parallel()

	unit := normalize(t, `const v = params["id"];`)
	st := unit.Statements[0]
	if st.Value == nil || st.Value.Var != "params.id" {
		t.Errorf("value = %+v, want params.id", st.Value)
	}
}

func TestSyntaxErrorReported(t *testing.T) {
	t.Parallel()

	adapter := New(zap.NewNop())
	_, err := adapter.Normalize(context.Background(), "broken.js", []byte("function ( {\n"))
	if err == nil {
		t.Fatal("invalid syntax must return an error")
	}
	var syntaxErr *lang.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("error type = %T, want *lang.SyntaxError", err)
	}
	if syntaxErr.Path != "broken.js" {
		t.Errorf("path = %q", syntaxErr.Path)
	}
}
