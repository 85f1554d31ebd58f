package embedr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{errf(CodeTypeMismatch, "WrapVector", "kind is %s", IntKind), "WrapVector: type mismatch: kind is integer"},
		{&Error{Code: CodeListFull, Op: "List.Append"}, "List.Append: list full"},
		{&Error{Code: CodeInvalidHandle}, "invalid handle"},
		{&Error{Code: CodeEvaluation, Msg: "object 'x' not found"}, "evaluation error: object 'x' not found"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}

// Sentinel matching goes by code alone; Op and Msg never interfere.
func TestErrorMatching(t *testing.T) {
	err := errf(CodeIndexOutOfRange, "Vector.Get", "index 7 out of range [0, 3)")
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatal("errors.Is failed on same code")
	}
	if errors.Is(err, ErrTypeMismatch) {
		t.Fatal("errors.Is matched across codes")
	}

	wrapped := fmt.Errorf("outer context: %w", err)
	if !errors.Is(wrapped, ErrIndexOutOfRange) {
		t.Fatal("errors.Is failed through wrapping")
	}

	var e *Error
	if !errors.As(wrapped, &e) || e.Code != CodeIndexOutOfRange {
		t.Fatal("errors.As did not recover the structured error")
	}
}

func TestCodeStrings(t *testing.T) {
	if CodeDoubleRelease.String() != "double release" {
		t.Errorf("CodeDoubleRelease = %q", CodeDoubleRelease.String())
	}
	if Code(99).String() != "unknown" {
		t.Errorf("out-of-range code = %q", Code(99).String())
	}
}
