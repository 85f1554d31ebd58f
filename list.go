// list.go — the list/record view.
//
// Foreign lists have fixed length, so the view carries an immutable
// capacity plus a fill pointer and an ordered name table for append-by-name
// record semantics. Names are not required to be unique; lookup resolves to
// the first match. That mirrors the source behavior and may well be a
// latent ambiguity rather than a feature — it is preserved deliberately
// instead of silently "fixed" (see DESIGN.md).
package embedr

// List is a view over a foreign list-type handle with record-style append.
type List struct {
	g        *Guard
	s        *Session
	capacity int
	fill     int
	names    []string
}

// AllocList allocates a fixed-size foreign list of the given capacity,
// protected and guard-owned. Capacity is immutable thereafter.
func AllocList(s *Session, capacity int) (*List, error) {
	h, err := allocProtected(s, ListKind, capacity, "AllocList")
	if err != nil {
		return nil, err
	}
	return &List{
		g:        &Guard{rt: s.rt, h: h, owns: true, refs: 1},
		s:        s,
		capacity: capacity,
		names:    make([]string, 0, capacity),
	}, nil
}

// WrapList validates that h is a list and wraps it. The fill pointer starts
// at the foreign length (the list is taken as fully populated) and the name
// table is read from the names attribute when present.
func WrapList(s *Session, h Handle, owns bool) (*List, error) {
	g, err := NewGuard(s.rt, h, owns)
	if err != nil {
		return nil, err
	}
	if !s.rt.IsList(h) {
		return nil, errf(CodeTypeMismatch, "WrapList", "handle is not a list")
	}
	n := s.rt.Length(h)
	l := &List{g: g, s: s, capacity: n, fill: n, names: make([]string, n)}
	if nh := s.rt.Attribute(h, "names"); nh != s.rt.Nil() && nh != 0 {
		copy(l.names, s.rt.StringData(nh))
	}
	return l, nil
}

// Cap returns the immutable capacity.
func (l *List) Cap() int { return l.capacity }

// Len returns the fill pointer: the number of appended elements.
func (l *List) Len() int { return l.fill }

// Append stores h at the fill pointer under name (empty string for an
// unnamed entry) and advances the pointer. Fails with ListFull once the
// capacity is reached. No uniqueness check is made on name.
func (l *List) Append(h Handle, name string) error {
	if l.fill == l.capacity {
		return errf(CodeListFull, "List.Append", "capacity %d reached", l.capacity)
	}
	if h == 0 {
		return errf(CodeInvalidHandle, "List.Append", "zero handle")
	}
	l.s.rt.SetListElem(l.g.Handle(), l.fill, h)
	l.names = append(l.names, name)
	l.fill++
	return nil
}

// AppendView appends a guard's or view's handle, equivalent to
// Append(v.Handle(), name).
func (l *List) AppendView(v HandleSource, name string) error {
	return l.Append(v.Handle(), name)
}

// Get returns the element at index i, bounds-checked against the capacity.
func (l *List) Get(i int) (Handle, error) {
	if i < 0 || i >= l.capacity {
		return 0, errf(CodeIndexOutOfRange, "List.Get", "index %d, capacity %d", i, l.capacity)
	}
	return l.s.rt.ListElem(l.g.Handle(), i), nil
}

// Index returns the index recorded for name. Lookup is a linear scan and
// the first match wins; duplicate names shadow later entries.
func (l *List) Index(name string) (int, error) {
	for i, n := range l.names {
		if n == name {
			return i, nil
		}
	}
	return 0, errf(CodeNameNotFound, "List.Index", "no element named %q", name)
}

// GetNamed returns the first element recorded under name.
func (l *List) GetNamed(name string) (Handle, error) {
	i, err := l.Index(name)
	if err != nil {
		return 0, err
	}
	return l.Get(i)
}

// Names returns a copy of the ordered name table (empty strings for
// unnamed entries).
func (l *List) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// SetUnsafe overwrites element i directly, bypassing the fill pointer and
// the name table. Misuse silently corrupts the name-to-index
// correspondence; it exists only for callers who accept that risk. The
// index is still checked against capacity — writes past the foreign
// storage are not offered at all.
func (l *List) SetUnsafe(i int, h Handle) error {
	if i < 0 || i >= l.capacity {
		return errf(CodeIndexOutOfRange, "List.SetUnsafe", "index %d, capacity %d", i, l.capacity)
	}
	l.s.rt.SetListElem(l.g.Handle(), i, h)
	return nil
}

// Finalize attaches the accumulated name table as the list's names
// attribute and returns the handle, ready to hand to the foreign runtime or
// a caller. The view remains usable afterwards.
func (l *List) Finalize() (Handle, error) {
	// The names attribute must span the whole list; unfilled tail entries
	// are unnamed.
	names := make([]string, l.capacity)
	copy(names, l.names)
	if err := l.s.SetNames(l.g.Handle(), names); err != nil {
		return 0, err
	}
	return l.g.Handle(), nil
}

// Handle returns the underlying foreign handle.
func (l *List) Handle() Handle { return l.g.Handle() }

// Guard returns the view's guard.
func (l *List) Guard() *Guard { return l.g }

// Release drops this view's owning reference to the guard.
func (l *List) Release() error { return l.g.Release() }
