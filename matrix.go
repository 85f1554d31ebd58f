// matrix.go — column-major matrix view over float64 storage.
//
// The flat offset of element (row, col) is col*rows + row. That layout is
// not a design choice: it must match the foreign runtime's native storage
// bit-for-bit, or every shared matrix is silently transposed.
package embedr

// Matrix is a view over a foreign rows-by-cols matrix of float64 elements.
type Matrix struct {
	g          *Guard
	data       []float64
	rows, cols int
}

// AllocMatrix allocates a fresh foreign matrix, protects it and wraps it in
// a guard that owns the protection.
func AllocMatrix(s *Session, rows, cols int) (*Matrix, error) {
	h, err := s.rt.AllocMatrix(RealKind, rows, cols)
	if err != nil {
		return nil, errf(CodeAllocationFailed, "AllocMatrix", "%s", err.Error())
	}
	if err := s.rt.Protect(h); err != nil {
		return nil, errf(CodeAllocationFailed, "AllocMatrix", "%s", err.Error())
	}
	return &Matrix{
		g:    &Guard{rt: s.rt, h: h, owns: true, refs: 1},
		data: s.rt.RealData(h),
		rows: rows,
		cols: cols,
	}, nil
}

// WrapMatrix validates that h is a numeric matrix and wraps it.
func WrapMatrix(s *Session, h Handle, owns bool) (*Matrix, error) {
	g, err := NewGuard(s.rt, h, owns)
	if err != nil {
		return nil, err
	}
	if !s.rt.IsMatrix(h) || !s.rt.IsNumeric(h) || s.rt.IsInteger(h) {
		return nil, errf(CodeTypeMismatch, "WrapMatrix", "handle is not a real matrix")
	}
	return &Matrix{
		g:    g,
		data: s.rt.RealData(h),
		rows: s.rt.Rows(h),
		cols: s.rt.Cols(h),
	}, nil
}

// Rows returns the cached row count.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the cached column count.
func (m *Matrix) Cols() int { return m.cols }

// Len returns the total element count.
func (m *Matrix) Len() int { return len(m.data) }

// Get returns element (row, col), bounds-checked against the cached shape.
func (m *Matrix) Get(row, col int) (float64, error) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return 0, errf(CodeIndexOutOfRange, "Matrix.Get", "(%d, %d) of %dx%d", row, col, m.rows, m.cols)
	}
	return m.data[col*m.rows+row], nil
}

// Set stores x at (row, col), bounds-checked.
func (m *Matrix) Set(row, col int, x float64) error {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return errf(CodeIndexOutOfRange, "Matrix.Set", "(%d, %d) of %dx%d", row, col, m.rows, m.cols)
	}
	m.data[col*m.rows+row] = x
	return nil
}

// Column returns column col as a vector view sharing the guard; the window
// is one contiguous run of the column-major storage, so no copy is made.
func (m *Matrix) Column(col int) (*Vector, error) {
	if col < 0 || col >= m.cols {
		return nil, errf(CodeIndexOutOfRange, "Matrix.Column", "column %d of %dx%d", col, m.rows, m.cols)
	}
	return &Vector{g: m.g.Retain(), data: m.data[col*m.rows : (col+1)*m.rows]}, nil
}

// AsVector reinterprets a single-column matrix as a vector sharing the
// guard and the backing storage. Fails with TypeMismatch for wider shapes.
func (m *Matrix) AsVector() (*Vector, error) {
	if m.cols != 1 {
		return nil, errf(CodeTypeMismatch, "Matrix.AsVector", "matrix has %d columns, need 1", m.cols)
	}
	return &Vector{g: m.g.Retain(), data: m.data}, nil
}

// ToSlice copies the flat column-major storage into a fresh host slice.
func (m *Matrix) ToSlice() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

// Handle returns the underlying foreign handle.
func (m *Matrix) Handle() Handle { return m.g.Handle() }

// Guard returns the view's guard.
func (m *Matrix) Guard() *Guard { return m.g }

// Release drops this view's owning reference to the guard.
func (m *Matrix) Release() error { return m.g.Release() }
