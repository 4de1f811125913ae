package python

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/analysis/lang"
)

func FuzzNormalize(f *testing.F) {
	f.Add("x = input()\nos.system(x)\n")
	f.Add("def f(a):\n    return a\n")
	f.Add("if a:\n    b = 1\nelse:\n    b = 2\n")
	f.Add("q = f\"select {x}\"\n")
	f.Add("for i in xs:\n    acc += i\n")
	f.Add("try:\n    y = open(p)\nexcept OSError:\n    y = None\n")
	f.Add("def f(:\n")
	f.Add("")
	f.Add("\x00\xff")

	adapter := New(zap.NewNop())
	f.Fuzz(func(t *testing.T, source string) {
		unit, err := adapter.Normalize(context.Background(), "fuzz.py", []byte(source))
		if err != nil {
			var syntaxErr *lang.SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("Normalize returned a non-syntax error: %v", err)
			}
			return
		}
		if unit == nil {
			t.Fatal("Normalize returned nil unit with nil error")
		}
		for _, st := range unit.Statements {
			if st == nil {
				t.Fatal("nil statement in normalized unit")
			}
			st.Uses()
		}
	})
}
