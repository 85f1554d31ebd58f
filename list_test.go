package embedr

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// The append law: capacity appends succeed, the next fails with ListFull,
// and every appended name resolves to its handle.
func TestListAppendLaw(t *testing.T) {
	s, _ := newTestSession(t)

	l, err := AllocList(s, 3)
	if err != nil {
		t.Fatalf("AllocList: %v", err)
	}
	defer l.Release()

	handles := make(map[string]Handle)
	for _, name := range []string{"a", "b", "c"} {
		v, err := AllocVector(s, 1)
		if err != nil {
			t.Fatalf("AllocVector: %v", err)
		}
		defer v.Release()
		if err := l.AppendView(v, name); err != nil {
			t.Fatalf("Append(%q): %v", name, err)
		}
		handles[name] = v.Handle()
	}

	extra, _ := AllocVector(s, 1)
	defer extra.Release()
	if err := l.AppendView(extra, "d"); !errors.Is(err, ErrListFull) {
		t.Fatalf("fourth append: want ListFull, got %v", err)
	}

	for name, want := range handles {
		got, err := l.GetNamed(name)
		if err != nil {
			t.Fatalf("GetNamed(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("GetNamed(%q) = %#x, want %#x", name, got, want)
		}
	}
	if _, err := l.GetNamed("z"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("GetNamed(\"z\"): want NameNotFound, got %v", err)
	}
}

func TestListIndexBounds(t *testing.T) {
	s, _ := newTestSession(t)

	l, _ := AllocList(s, 2)
	defer l.Release()

	if _, err := l.Get(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Get(2): want IndexOutOfRange, got %v", err)
	}
	if _, err := l.Get(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Get(-1): want IndexOutOfRange, got %v", err)
	}
}

// Duplicate names resolve to the first match; later entries are shadowed.
// Preserved source behavior — see DESIGN.md.
func TestListDuplicateNamesFirstMatchWins(t *testing.T) {
	s, _ := newTestSession(t)

	l, _ := AllocList(s, 2)
	defer l.Release()

	first, _ := AllocVector(s, 1)
	defer first.Release()
	second, _ := AllocVector(s, 1)
	defer second.Release()

	l.AppendView(first, "x")
	l.AppendView(second, "x")

	got, err := l.GetNamed("x")
	if err != nil {
		t.Fatalf("GetNamed: %v", err)
	}
	if got != first.Handle() {
		t.Fatal("duplicate name did not resolve to the first entry")
	}
	if i, _ := l.Index("x"); i != 0 {
		t.Fatalf("Index(\"x\") = %d, want 0", i)
	}
}

func TestListSetUnsafeBypassesBookkeeping(t *testing.T) {
	s, _ := newTestSession(t)

	l, _ := AllocList(s, 2)
	defer l.Release()
	v, _ := AllocVector(s, 1)
	defer v.Release()
	l.AppendView(v, "kept")

	replacement, _ := AllocVector(s, 1)
	defer replacement.Release()
	if err := l.SetUnsafe(0, replacement.Handle()); err != nil {
		t.Fatalf("SetUnsafe: %v", err)
	}
	// Element changed, fill pointer and names untouched.
	if got, _ := l.Get(0); got != replacement.Handle() {
		t.Fatal("SetUnsafe did not overwrite the element")
	}
	if l.Len() != 1 {
		t.Fatalf("fill pointer moved to %d", l.Len())
	}
	if got, _ := l.GetNamed("kept"); got != replacement.Handle() {
		t.Fatal("name table should still point at index 0")
	}

	if err := l.SetUnsafe(2, v.Handle()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("SetUnsafe(2): want IndexOutOfRange, got %v", err)
	}
}

func TestListFinalizeAttachesNames(t *testing.T) {
	s, _ := newTestSession(t)

	l, _ := AllocList(s, 3)
	defer l.Release()
	v, _ := AllocVector(s, 1)
	defer v.Release()
	l.AppendView(v, "alpha")
	l.AppendView(v, "") // unnamed entry

	h, err := l.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	names, err := s.Names(h)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "", ""}, names); diff != "" {
		t.Fatalf("names attribute mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapList(t *testing.T) {
	s, _ := newTestSession(t)

	l, _ := AllocList(s, 2)
	defer l.Release()
	v, _ := AllocVector(s, 1)
	defer v.Release()
	l.AppendView(v, "payload")
	l.AppendView(v, "other")
	if _, err := l.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	w, err := WrapList(s, l.Handle(), false)
	if err != nil {
		t.Fatalf("WrapList: %v", err)
	}
	defer w.Release()
	if w.Cap() != 2 || w.Len() != 2 {
		t.Fatalf("wrapped cap/len = %d/%d, want 2/2", w.Cap(), w.Len())
	}
	if got, err := w.GetNamed("payload"); err != nil || got != v.Handle() {
		t.Fatalf("GetNamed(\"payload\") = %#x, %v", got, err)
	}

	vec, _ := AllocVector(s, 1)
	defer vec.Release()
	if _, err := WrapList(s, vec.Handle(), false); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("wrapping a vector as list: want TypeMismatch, got %v", err)
	}
}
