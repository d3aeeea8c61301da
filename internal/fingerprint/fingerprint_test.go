package fingerprint

import (
	"context"
	"testing"

	"github.com/phobologic/bit/internal/lang"
	"github.com/phobologic/bit/internal/model"
)

func TestSumDeterministic(t *testing.T) {
	t.Parallel()

	a := Sum([]byte("6:return"))
	b := Sum([]byte("6:return"))
	if a != b {
		t.Fatal("equal inputs produced different fingerprints")
	}
	if a == Sum([]byte("5:yield")) {
		t.Fatal("different inputs produced equal fingerprints")
	}
	if len(a.String()) != 64 {
		t.Errorf("hex length = %d, want 64", len(a.String()))
	}
}

func TestTokenEncodingIsUnambiguous(t *testing.T) {
	t.Parallel()

	var x, y encoder
	x.token("ab")
	x.token("c")
	y.token("a")
	y.token("bc")
	if x.buf.String() == y.buf.String() {
		t.Errorf("token streams collide: %q", x.buf.String())
	}
}

func TestNormalizeDropsDocstringOnlyAtTop(t *testing.T) {
	t.Parallel()
	py := lang.Languages["python"]

	body := func(src string) []byte {
		tree, err := py.NewParser().ParseCtx(context.Background(), nil, []byte(src))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		defer tree.Close()
		fn := tree.RootNode().NamedChild(0)
		return Normalize(py, fn.ChildByFieldName("body"), []byte(src))
	}

	plain := body("def f():\n    x = 1\n")
	documented := body("def f():\n    \"\"\"Doc.\"\"\"\n    x = 1\n")
	if string(plain) != string(documented) {
		t.Errorf("leading docstring should be ignored:\n%q\n%q", plain, documented)
	}

	trailing := body("def f():\n    x = 1\n    'not a docstring'\n")
	if string(plain) == string(trailing) {
		t.Error("a string statement after the first must count")
	}
}

func TestFormatStringInterpolation(t *testing.T) {
	t.Parallel()
	py := lang.Languages["python"]

	sum := func(src string) model.Fingerprint {
		tree, err := py.NewParser().ParseCtx(context.Background(), nil, []byte(src))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		defer tree.Close()
		fn := tree.RootNode().NamedChild(0)
		_, fp := Of(py, fn.ChildByFieldName("body"), []byte(src))
		return fp
	}

	want := sum("def f(x):\n    return f\"total {x+1}\"\n")
	for _, src := range []string{
		"def f(x):\n    return f\"total {x + 1}\"\n",
		"def f(x):\n    return f'total { (x + 1) }'\n",
		"def f(x):\n    return F\"total {x+1}\"  # sum\n",
	} {
		if got := sum(src); got != want {
			t.Errorf("%q: fingerprint changed for a formatting-only edit", src)
		}
	}
	for _, src := range []string{
		"def f(x):\n    return f\"total {x + 2}\"\n",
		"def f(x):\n    return f\"sum {x + 1}\"\n",
		"def f(x):\n    return \"total {x+1}\"\n",
	} {
		if got := sum(src); got == want {
			t.Errorf("%q: fingerprint unchanged for a logic edit", src)
		}
	}
}
