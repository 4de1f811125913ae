package lang

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStatementUses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		stmt Statement
		want []string
	}{
		{
			name: "call receiver and args",
			stmt: Statement{
				Kind: KindCall,
				Call: &CallExpr{
					Qualified: "cursor.execute",
					Receiver:  "cursor",
					Args:      []Operand{VarOperand("query"), LitOperand("1")},
				},
			},
			want: []string{"cursor", "query"},
		},
		{
			name: "concat parts skip literals",
			stmt: Statement{
				Kind:   KindAssign,
				Target: "query",
				Concat: []Operand{LitOperand("SELECT "), VarOperand("name"), LitOperand(" FROM t")},
			},
			want: []string{"name"},
		},
		{
			name: "aug assign reads its own target",
			stmt: Statement{
				Kind:   KindAugAssign,
				Target: "acc",
				Value:  &Operand{Var: "part"},
			},
			want: []string{"part", "acc"},
		},
		{
			name: "condition uses",
			stmt: Statement{
				Kind:     KindBranch,
				CondUses: []string{"flag", "count"},
			},
			want: []string{"flag", "count"},
		},
		{
			name: "duplicates collapse",
			stmt: Statement{
				Kind: KindCall,
				Call: &CallExpr{
					Qualified: "log",
					Args:      []Operand{VarOperand("x"), VarOperand("x")},
				},
				CondUses: []string{"x"},
			},
			want: []string{"x"},
		},
		{
			name: "literal only statement reads nothing",
			stmt: Statement{
				Kind:   KindAssign,
				Target: "x",
				Value:  &Operand{Literal: "42", IsLiteral: true},
			},
			want: nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.stmt.Uses(); !cmp.Equal(got, tc.want) {
				t.Errorf("Uses() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBaseVar(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"request.args.get": "request",
		"cursor":           "cursor",
		"a.b":              "a",
		"":                 "",
		".hidden":          ".hidden",
	}
	for in, want := range cases {
		if got := BaseVar(in); got != want {
			t.Errorf("BaseVar(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTempNamer(t *testing.T) {
	t.Parallel()

	var namer TempNamer
	if got := namer.Next(); got != "__tmp0" {
		t.Errorf("first name = %q, want __tmp0", got)
	}
	if got := namer.Next(); got != "__tmp1" {
		t.Errorf("second name = %q, want __tmp1", got)
	}
}

func TestSyntaxErrorMessage(t *testing.T) {
	t.Parallel()

	err := &SyntaxError{Path: "app.py", Line: 7, Column: 3, Msg: "unexpected token"}
	want := "app.py:7:3: syntax error: unexpected token"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
