package embedr

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// evalReals evaluates src and copies out the real result, dropping the
// protection slot Eval took.
func evalReals(t *testing.T, rt *MemRuntime, src string) []float64 {
	t.Helper()
	h, err := rt.Eval(src)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	defer rt.Unprotect(h)
	out := append([]float64(nil), rt.RealData(h)...)
	return out
}

func evalInts(t *testing.T, rt *MemRuntime, src string) []int32 {
	t.Helper()
	h, err := rt.Eval(src)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	defer rt.Unprotect(h)
	return append([]int32(nil), rt.IntData(h)...)
}

func TestScriptArithmetic(t *testing.T) {
	rt := NewMemRuntime(100)

	cases := []struct {
		src  string
		want []float64
	}{
		{"1 + 2", []float64{3}},
		{"7 - 2.5", []float64{4.5}},
		{"c(1, 2, 3) * 2", []float64{2, 4, 6}},
		{"c(10, 20) + c(1, 2)", []float64{11, 22}},
		{"(1 + 2) * 3", []float64{9}},
		{"-c(1, 2)", []float64{-1, -2}},
		{"10 / c(2, 4)", []float64{5, 2.5}},
		{"x <- 2; x * x", []float64{4}},
		{"sum(1:10)", []float64{55}},
		{"sum(c(1.5, 2.5), 1)", []float64{5}},
		{"numeric(3)", []float64{0, 0, 0}},
		{"1:3 + 0.5", []float64{1.5, 2.5, 3.5}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, evalReals(t, rt, tc.src)); diff != "" {
			t.Errorf("%q (-want +got):\n%s", tc.src, diff)
		}
	}
}

func TestScriptRangesAndConcat(t *testing.T) {
	rt := NewMemRuntime(100)

	if diff := cmp.Diff([]int32{1, 2, 3, 4, 5}, evalInts(t, rt, "1:5")); diff != "" {
		t.Errorf("ascending range (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{3, 2, 1}, evalInts(t, rt, "3:1")); diff != "" {
		t.Errorf("descending range (-want +got):\n%s", diff)
	}
	// All-integer input stays integer.
	if diff := cmp.Diff([]int32{1, 2, 3, 4}, evalInts(t, rt, "c(1:2, 3:4)")); diff != "" {
		t.Errorf("integer concat (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{3}, evalInts(t, rt, "length(c(1, 2, 3))")); diff != "" {
		t.Errorf("length (-want +got):\n%s", diff)
	}

	// Any real widens the whole result.
	if diff := cmp.Diff([]float64{1, 2.5, 3}, evalReals(t, rt, "c(1:1, 2.5, 3)")); diff != "" {
		t.Errorf("widening concat (-want +got):\n%s", diff)
	}

	// Any string makes the result a character vector.
	h, err := rt.Eval(`c(1, "two")`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer rt.Unprotect(h)
	if diff := cmp.Diff([]string{"1", "two"}, rt.StringData(h)); diff != "" {
		t.Errorf("string coercion (-want +got):\n%s", diff)
	}
}

func TestScriptMatrixBuiltin(t *testing.T) {
	rt := NewMemRuntime(100)

	h, err := rt.Eval("matrix(c(1, 2, 3, 4), 2, 2)")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer rt.Unprotect(h)
	if !rt.IsMatrix(h) || rt.Rows(h) != 2 || rt.Cols(h) != 2 {
		t.Fatalf("shape = %dx%d, want 2x2", rt.Rows(h), rt.Cols(h))
	}
	// Data fills column-major.
	if diff := cmp.Diff([]float64{1, 2, 3, 4}, rt.RealData(h)); diff != "" {
		t.Fatalf("flat data (-want +got):\n%s", diff)
	}

	// Scalar data recycles over the whole extent.
	f, err := rt.Eval("matrix(7, 2, 3)")
	if err != nil {
		t.Fatalf("Eval fill: %v", err)
	}
	defer rt.Unprotect(f)
	if diff := cmp.Diff([]float64{7, 7, 7, 7, 7, 7}, rt.RealData(f)); diff != "" {
		t.Fatalf("fill data (-want +got):\n%s", diff)
	}
}

func TestScriptErrors(t *testing.T) {
	rt := NewMemRuntime(100)

	cases := []struct {
		src string
		msg string
	}{
		{"missing", "object 'missing' not found"},
		{"foo(1)", `could not find function "foo"`},
		{"c(1, 2", `expected ")"`},
		{`1 + "a"`, "non-numeric argument"},
		{"c(1, 2) + c(1, 2, 3)", "non-conformable lengths"},
		{`"unterminated`, "unterminated string"},
		{"matrix(c(1, 2, 3), 2, 2)", "does not fit"},
		{"numeric(1.5)", "whole number"},
	}
	for _, tc := range cases {
		_, err := rt.Eval(tc.src)
		if err == nil {
			t.Errorf("%q: expected error", tc.src)
			continue
		}
		if !strings.Contains(err.Error(), tc.msg) {
			t.Errorf("%q: error %q does not mention %q", tc.src, err.Error(), tc.msg)
		}
	}

	// A failed statement must not poison later evaluation.
	if _, err := rt.Eval("1 + 1"); err != nil {
		t.Fatalf("Eval after errors: %v", err)
	}
}

func TestScriptCommentsAndSeparators(t *testing.T) {
	rt := NewMemRuntime(100)

	src := `
# a leading comment
a <- 1  # trailing comment
b <- 2; a + b
`
	if diff := cmp.Diff([]float64{3}, evalReals(t, rt, src)); diff != "" {
		t.Fatalf("script result (-want +got):\n%s", diff)
	}
}

func TestPrintFormatting(t *testing.T) {
	rt := NewMemRuntime(100)
	var out strings.Builder
	rt.Out = &out

	printOf := func(src string) string {
		t.Helper()
		out.Reset()
		h, err := rt.Eval(src)
		if err != nil {
			t.Fatalf("Eval(%q): %v", src, err)
		}
		defer rt.Unprotect(h)
		rt.Print(h)
		return out.String()
	}

	if got := printOf("c(1.5, 2)"); got != "[1] 1.5 2\n" {
		t.Errorf("real vector printed %q", got)
	}
	if got := printOf("1:3"); got != "[1] 1 2 3\n" {
		t.Errorf("int vector printed %q", got)
	}
	if got := printOf(`c("a", "b")`); got != "[1] \"a\" \"b\"\n" {
		t.Errorf("string vector printed %q", got)
	}
	if got := printOf("matrix(c(1, 2, 3, 4), 2, 2)"); got != "1 3\n2 4\n" {
		t.Errorf("matrix printed %q", got)
	}

	out.Reset()
	rt.Print(rt.Nil())
	if out.String() != "NULL\n" {
		t.Errorf("nil printed %q", out.String())
	}
}

func TestPrintListWithNames(t *testing.T) {
	rt := NewMemRuntime(100)
	s := NewSession(rt)
	var out strings.Builder
	rt.Out = &out

	l, err := AllocList(s, 2)
	if err != nil {
		t.Fatalf("AllocList: %v", err)
	}
	defer l.Release()
	v, _ := AllocVector(s, 1)
	defer v.Release()
	v.Set(0, 1.5)
	l.AppendView(v, "a")
	l.AppendView(v, "")
	h, err := l.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	rt.Print(h)
	want := "$a\n[1] 1.5\n\n[[2]]\n[1] 1.5\n\n"
	if out.String() != want {
		t.Errorf("list printed %q, want %q", out.String(), want)
	}
}

// Duplicate is a deep copy: nested elements and attributes are independent
// of the original.
func TestDuplicateIsDeep(t *testing.T) {
	rt := NewMemRuntime(100)

	inner, _ := rt.Alloc(RealKind, 2)
	rt.RealData(inner)[0] = 1.5
	list, _ := rt.Alloc(ListKind, 1)
	rt.SetListElem(list, 0, inner)
	tag, _ := rt.Alloc(StrKind, 1)
	rt.StringData(tag)[0] = "original"
	rt.SetAttribute(list, "tag", tag)

	dup, err := rt.Duplicate(list)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	rt.RealData(inner)[0] = -9
	rt.StringData(tag)[0] = "mutated"

	dupInner := rt.ListElem(dup, 0)
	if dupInner == inner {
		t.Fatal("duplicated list shares its element")
	}
	if got := rt.RealData(dupInner)[0]; got != 1.5 {
		t.Fatalf("duplicate element = %g, want 1.5", got)
	}
	dupTag := rt.Attribute(dup, "tag")
	if got := rt.StringData(dupTag)[0]; got != "original" {
		t.Fatalf("duplicate attribute = %q, want %q", got, "original")
	}

	// The nil sentinel duplicates to itself.
	if d, _ := rt.Duplicate(rt.Nil()); d != rt.Nil() {
		t.Fatal("Duplicate(nil) must return the nil sentinel")
	}
}

// An unprotected object is reclaimed at the next safepoint, and touching
// its handle afterwards panics.
func TestReclaimedHandlePanics(t *testing.T) {
	rt := NewMemRuntime(100)

	h, _ := rt.Alloc(RealKind, 3)
	if _, err := rt.Eval("0"); err != nil { // safepoint
		t.Fatalf("Eval: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("access to a reclaimed handle must panic")
		}
	}()
	rt.RealData(h)
}

func TestUnprotectRemovesTopmostEntry(t *testing.T) {
	rt := NewMemRuntime(100)

	h, _ := rt.Alloc(RealKind, 1)
	rt.Protect(h)
	rt.Protect(h)
	if rt.ProtectionDepth() != 2 {
		t.Fatalf("depth = %d, want 2", rt.ProtectionDepth())
	}
	rt.Unprotect(h)
	if rt.ProtectionDepth() != 1 {
		t.Fatalf("depth after one unprotect = %d, want 1", rt.ProtectionDepth())
	}
	rt.gc()
	if _, ok := rt.objs[h]; !ok {
		t.Fatal("object with one remaining protection slot was reclaimed")
	}
}

func TestUnprotectUnknownHandlePanics(t *testing.T) {
	rt := NewMemRuntime(100)
	h, _ := rt.Alloc(RealKind, 1)

	defer func() {
		if recover() == nil {
			t.Fatal("unprotecting a handle with no slot must panic")
		}
	}()
	rt.Unprotect(h)
}
