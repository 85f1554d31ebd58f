// attr.go — named metadata on foreign objects.
//
// Attributes are the runtime's generic tag mechanism (element names,
// dimension tags, domain labels). The list view's record semantics are
// built on the "names" attribute; everything else goes through the generic
// pair below.
package embedr

// Attribute returns the attribute named name on h, or ok=false when the
// attribute is absent (the runtime reports absence with its nil sentinel).
func (s *Session) Attribute(h Handle, name string) (Handle, bool, error) {
	if h == 0 || h == s.rt.Nil() {
		return 0, false, errf(CodeInvalidHandle, "Attribute", "nil handle")
	}
	a := s.rt.Attribute(h, name)
	if a == 0 || a == s.rt.Nil() {
		return 0, false, nil
	}
	return a, true, nil
}

// SetAttribute attaches value under name on h.
func (s *Session) SetAttribute(h Handle, name string, value Handle) error {
	if h == 0 || h == s.rt.Nil() {
		return errf(CodeInvalidHandle, "SetAttribute", "nil handle")
	}
	if value == 0 {
		return errf(CodeInvalidHandle, "SetAttribute", "zero attribute value")
	}
	s.rt.SetAttribute(h, name, value)
	return nil
}

// Names reads the names attribute of h as a host string slice; absent names
// yield an empty slice.
func (s *Session) Names(h Handle) ([]string, error) {
	a, ok, err := s.Attribute(h, "names")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return GoStrings(s, a)
}

// SetNames attaches names as the names attribute of h. The string vector is
// allocated fresh; it stays reachable through h afterwards, so its own
// protection is released here.
func (s *Session) SetNames(h Handle, names []string) error {
	if h == 0 || h == s.rt.Nil() {
		return errf(CodeInvalidHandle, "SetNames", "nil handle")
	}
	g, err := NewStrings(s, names)
	if err != nil {
		return err
	}
	s.rt.SetAttribute(h, "names", g.Handle())
	return g.Release()
}
