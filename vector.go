// vector.go — numeric vector views (float64 and int32 elements).
//
// A view owns one Guard plus shape metadata and the backing storage slice,
// captured once at construction. Element access is always bounds-checked
// against the cached length — raw pointer arithmetic past the cached bounds
// is the principal source of foreign-runtime crashes and is simply not
// offered. Slicing re-slices the cached storage and retains the same Guard,
// so the protection lifetime automatically covers every slice.
package embedr

// Vector is a view over a foreign vector of float64 elements.
type Vector struct {
	g    *Guard
	data []float64
}

// AllocVector allocates a fresh foreign vector of length n, protects it and
// wraps it in a guard that owns the protection.
func AllocVector(s *Session, n int) (*Vector, error) {
	h, err := allocProtected(s, RealKind, n, "AllocVector")
	if err != nil {
		return nil, err
	}
	return &Vector{
		g:    &Guard{rt: s.rt, h: h, owns: true, refs: 1},
		data: s.rt.RealData(h),
	}, nil
}

// WrapVector validates that h is a numeric (non-integer) vector and wraps
// it. owns declares whether the protection for h belongs to this view: true
// for evaluation results kept long-term, false for handles that arrived
// already protected (call arguments).
func WrapVector(s *Session, h Handle, owns bool) (*Vector, error) {
	g, err := NewGuard(s.rt, h, owns)
	if err != nil {
		return nil, err
	}
	if !s.rt.IsVector(h) || !s.rt.IsNumeric(h) || s.rt.IsInteger(h) {
		return nil, errf(CodeTypeMismatch, "WrapVector", "handle is not a real vector")
	}
	return &Vector{g: g, data: s.rt.RealData(h)}, nil
}

// WrapVectorGuard wraps an already-guarded handle, sharing the guard. Used
// to view an Evaluate result without transferring ownership.
func WrapVectorGuard(s *Session, g *Guard) (*Vector, error) {
	h := g.Handle()
	if !s.rt.IsVector(h) || !s.rt.IsNumeric(h) || s.rt.IsInteger(h) {
		return nil, errf(CodeTypeMismatch, "WrapVector", "handle is not a real vector")
	}
	return &Vector{g: g.Retain(), data: s.rt.RealData(h)}, nil
}

// Len returns the cached element count.
func (v *Vector) Len() int { return len(v.data) }

// Get returns element i, bounds-checked against the cached length.
func (v *Vector) Get(i int) (float64, error) {
	if i < 0 || i >= len(v.data) {
		return 0, errf(CodeIndexOutOfRange, "Vector.Get", "index %d, length %d", i, len(v.data))
	}
	return v.data[i], nil
}

// Set stores x at element i, bounds-checked.
func (v *Vector) Set(i int, x float64) error {
	if i < 0 || i >= len(v.data) {
		return errf(CodeIndexOutOfRange, "Vector.Set", "index %d, length %d", i, len(v.data))
	}
	v.data[i] = x
	return nil
}

// Slice returns the half-open window [start, end) as a new view sharing
// this view's guard. No elements are copied.
func (v *Vector) Slice(start, end int) (*Vector, error) {
	if start < 0 || start >= end || end > len(v.data) {
		return nil, errf(CodeIndexOutOfRange, "Vector.Slice", "[%d, %d) of length %d", start, end, len(v.data))
	}
	return &Vector{g: v.g.Retain(), data: v.data[start:end]}, nil
}

// ToSlice copies every element into a fresh host slice, safe to outlive the
// view.
func (v *Vector) ToSlice() []float64 {
	out := make([]float64, len(v.data))
	copy(out, v.data)
	return out
}

// AsMatrix reinterprets the vector as an n-by-1 matrix sharing the guard
// and the backing storage; only shape metadata changes.
func (v *Vector) AsMatrix() *Matrix {
	return &Matrix{g: v.g.Retain(), data: v.data, rows: len(v.data), cols: 1}
}

// Handle returns the underlying foreign handle.
func (v *Vector) Handle() Handle { return v.g.Handle() }

// Guard returns the view's guard.
func (v *Vector) Guard() *Guard { return v.g }

// Release drops this view's owning reference to the guard.
func (v *Vector) Release() error { return v.g.Release() }

// IntVector is a view over a foreign vector of int32 elements — the
// runtime's native integer width, a compatibility requirement like the
// column-major rule for matrices.
type IntVector struct {
	g    *Guard
	data []int32
}

// AllocIntVector allocates a fresh foreign integer vector of length n,
// protected and guard-owned.
func AllocIntVector(s *Session, n int) (*IntVector, error) {
	h, err := allocProtected(s, IntKind, n, "AllocIntVector")
	if err != nil {
		return nil, err
	}
	return &IntVector{
		g:    &Guard{rt: s.rt, h: h, owns: true, refs: 1},
		data: s.rt.IntData(h),
	}, nil
}

// WrapIntVector validates that h is an integer vector and wraps it.
func WrapIntVector(s *Session, h Handle, owns bool) (*IntVector, error) {
	g, err := NewGuard(s.rt, h, owns)
	if err != nil {
		return nil, err
	}
	if !s.rt.IsVector(h) || !s.rt.IsInteger(h) {
		return nil, errf(CodeTypeMismatch, "WrapIntVector", "handle is not an integer vector")
	}
	return &IntVector{g: g, data: s.rt.IntData(h)}, nil
}

// Len returns the cached element count.
func (v *IntVector) Len() int { return len(v.data) }

// Get returns element i, bounds-checked.
func (v *IntVector) Get(i int) (int32, error) {
	if i < 0 || i >= len(v.data) {
		return 0, errf(CodeIndexOutOfRange, "IntVector.Get", "index %d, length %d", i, len(v.data))
	}
	return v.data[i], nil
}

// Set stores x at element i, bounds-checked.
func (v *IntVector) Set(i int, x int32) error {
	if i < 0 || i >= len(v.data) {
		return errf(CodeIndexOutOfRange, "IntVector.Set", "index %d, length %d", i, len(v.data))
	}
	v.data[i] = x
	return nil
}

// Slice returns [start, end) as a new view sharing the guard.
func (v *IntVector) Slice(start, end int) (*IntVector, error) {
	if start < 0 || start >= end || end > len(v.data) {
		return nil, errf(CodeIndexOutOfRange, "IntVector.Slice", "[%d, %d) of length %d", start, end, len(v.data))
	}
	return &IntVector{g: v.g.Retain(), data: v.data[start:end]}, nil
}

// ToSlice copies every element into a fresh host slice.
func (v *IntVector) ToSlice() []int32 {
	out := make([]int32, len(v.data))
	copy(out, v.data)
	return out
}

// Handle returns the underlying foreign handle.
func (v *IntVector) Handle() Handle { return v.g.Handle() }

// Guard returns the view's guard.
func (v *IntVector) Guard() *Guard { return v.g }

// Release drops this view's owning reference to the guard.
func (v *IntVector) Release() error { return v.g.Release() }

// allocProtected allocates foreign storage and immediately protects it; on
// protect failure the fresh object is abandoned to the collector.
func allocProtected(s *Session, k Kind, n int, op string) (Handle, error) {
	h, err := s.rt.Alloc(k, n)
	if err != nil {
		return 0, errf(CodeAllocationFailed, op, "%s", err.Error())
	}
	if err := s.rt.Protect(h); err != nil {
		return 0, errf(CodeAllocationFailed, op, "%s", err.Error())
	}
	return h, nil
}
