// strvec.go — string conversions across the boundary.
//
// Host and foreign string representations differ, so strings are always
// copied, never aliased: a foreign character vector never points into host
// string memory and vice versa. There is no persistent string view type —
// reads copy out, writes allocate fresh foreign storage.
package embedr

// NewString allocates a one-element foreign character vector holding str,
// protected and guard-owned.
func NewString(s *Session, str string) (*Guard, error) {
	h, err := allocProtected(s, StrKind, 1, "NewString")
	if err != nil {
		return nil, err
	}
	s.rt.StringData(h)[0] = str
	return &Guard{rt: s.rt, h: h, owns: true, refs: 1}, nil
}

// NewStrings allocates a foreign character vector with a copy of every
// element of elems, protected and guard-owned.
func NewStrings(s *Session, elems []string) (*Guard, error) {
	h, err := allocProtected(s, StrKind, len(elems), "NewStrings")
	if err != nil {
		return nil, err
	}
	copy(s.rt.StringData(h), elems)
	return &Guard{rt: s.rt, h: h, owns: true, refs: 1}, nil
}

// GoString copies the single element of a one-element foreign character
// vector into a host string.
func GoString(s *Session, h Handle) (string, error) {
	if h == 0 || h == s.rt.Nil() {
		return "", errf(CodeInvalidHandle, "GoString", "nil handle")
	}
	if !s.rt.IsString(h) {
		return "", errf(CodeTypeMismatch, "GoString", "handle is not a character vector")
	}
	if n := s.rt.Length(h); n != 1 {
		return "", errf(CodeTypeMismatch, "GoString", "character vector has length %d, need 1", n)
	}
	return s.rt.StringData(h)[0], nil
}

// GoStrings copies every element of a foreign character vector into a fresh
// host slice.
func GoStrings(s *Session, h Handle) ([]string, error) {
	if h == 0 || h == s.rt.Nil() {
		return nil, errf(CodeInvalidHandle, "GoStrings", "nil handle")
	}
	if !s.rt.IsString(h) {
		return nil, errf(CodeTypeMismatch, "GoStrings", "handle is not a character vector")
	}
	src := s.rt.StringData(h)
	out := make([]string, len(src))
	copy(out, src)
	return out, nil
}
