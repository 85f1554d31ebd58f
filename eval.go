// eval.go — the evaluation bridge.
//
// A Session is the explicit context object every bridge operation hangs off:
// it carries the Runtime and nothing else. Evaluate sends a source fragment
// to the interpreter and hands back the resulting handle wrapped in a Guard
// with owns=true (the evaluation machinery protects results before
// returning them to us). EvaluateQuiet runs side-effecting statements and
// discards the result.
//
// Bind copies a host-constructed value into the interpreter's active
// namespace — a one-way, eager copy with no aliasing back. Assert and
// Boundary implement the defensive edge for host-exposed functions: a host
// error must never unwind into the foreign runtime as a Go panic; it is
// converted to the runtime's own raised error first.
package embedr

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Session binds the typed-view layer to one Runtime. All operations on a
// Session must run on the thread that owns the runtime.
type Session struct {
	rt Runtime
}

// NewSession wraps rt. Hosts normally get their Session from Init.
func NewSession(rt Runtime) *Session { return &Session{rt: rt} }

// Runtime exposes the underlying foreign runtime.
func (s *Session) Runtime() Runtime { return s.rt }

// Evaluate runs src in the interpreter and returns the result in a Guard
// with owns=true; releasing the guard (or any view built on it) unprotects
// the result. A foreign-level error surfaces as Evaluation, carrying the
// foreign message.
func (s *Session) Evaluate(src string) (*Guard, error) {
	h, err := s.rt.Eval(src)
	if err != nil {
		return nil, errf(CodeEvaluation, "Evaluate", "%s", err.Error())
	}
	if h == 0 || h == s.rt.Nil() {
		// Nil results carry no protection to manage; callers get a typed
		// error rather than a guard over nothing.
		return nil, errf(CodeInvalidHandle, "Evaluate", "expression produced no value")
	}
	return &Guard{rt: s.rt, h: h, owns: true, refs: 1}, nil
}

// EvaluateQuiet runs src for its side effects and discards the result.
func (s *Session) EvaluateQuiet(src string) error {
	if err := s.rt.EvalQuiet(src); err != nil {
		return errf(CodeEvaluation, "EvaluateQuiet", "%s", err.Error())
	}
	return nil
}

// HandleSource is anything that exposes a foreign handle: guards and all
// typed views implement it.
type HandleSource interface {
	Handle() Handle
}

// Bind copies value into the interpreter's namespace under name. Accepted
// values: Handle, HandleSource (guards/views), bool, int, int64, int32,
// float64, string, []float64, []int32, []string. Handle-bearing values are
// duplicated on the foreign heap first, so the bound object never aliases
// host-held views.
func (s *Session) Bind(name string, value any) error {
	h, err := s.toForeign(value)
	if err != nil {
		return err
	}
	s.rt.Bind(name, h)
	return nil
}

func (s *Session) toForeign(value any) (Handle, error) {
	switch v := value.(type) {
	case Handle:
		return s.duplicated(v)
	case HandleSource:
		return s.duplicated(v.Handle())
	case bool:
		n := int32(0)
		if v {
			n = 1
		}
		return s.newIntScalarHandle(n)
	case int:
		return s.newIntScalarHandle(int32(v))
	case int32:
		return s.newIntScalarHandle(v)
	case int64:
		return s.newIntScalarHandle(int32(v))
	case float64:
		h, err := s.rt.Alloc(RealKind, 1)
		if err != nil {
			return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
		}
		s.rt.RealData(h)[0] = v
		return h, nil
	case string:
		h, err := s.rt.Alloc(StrKind, 1)
		if err != nil {
			return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
		}
		s.rt.StringData(h)[0] = v
		return h, nil
	case []float64:
		h, err := s.rt.Alloc(RealKind, len(v))
		if err != nil {
			return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
		}
		copy(s.rt.RealData(h), v)
		return h, nil
	case []int32:
		h, err := s.rt.Alloc(IntKind, len(v))
		if err != nil {
			return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
		}
		copy(s.rt.IntData(h), v)
		return h, nil
	case []string:
		h, err := s.rt.Alloc(StrKind, len(v))
		if err != nil {
			return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
		}
		copy(s.rt.StringData(h), v)
		return h, nil
	default:
		return 0, errf(CodeTypeMismatch, "Bind", "cannot pass %T to the foreign runtime", value)
	}
}

func (s *Session) duplicated(h Handle) (Handle, error) {
	if h == 0 || h == s.rt.Nil() {
		return 0, errf(CodeInvalidHandle, "Bind", "nil handle")
	}
	d, err := s.rt.Duplicate(h)
	if err != nil {
		return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
	}
	return d, nil
}

func (s *Session) newIntScalarHandle(n int32) (Handle, error) {
	h, err := s.rt.Alloc(IntKind, 1)
	if err != nil {
		return 0, errf(CodeAllocationFailed, "Bind", "%s", err.Error())
	}
	s.rt.IntData(h)[0] = n
	return h, nil
}

// Assert raises a foreign-level error carrying msg when test is false. It
// is meant for use inside host-exposed functions, so contract violations
// surface as ordinary interpreter errors instead of process crashes. When
// the assertion fails, Assert does not return.
func (s *Session) Assert(test bool, msg string) {
	if !test {
		s.rt.RaiseError(msg)
	}
}

// HostFunc is the host side of an exposed function: handles in, handle out,
// with an ordinary Go error for contract violations.
type HostFunc func(args []Handle) (Handle, error)

// Boundary wraps fn for exposure to the foreign runtime. The wrapper never
// lets a Go error or panic unwind across the call edge: both are converted
// to the runtime's own raised error before control returns, which is the
// only recovery path the foreign side understands. name is used in logs and
// in the raised message.
func (s *Session) Boundary(name string, fn HostFunc) func(args []Handle) Handle {
	return func(args []Handle) Handle {
		var res Handle
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					if fe, ok := r.(*RaisedError); ok {
						// Already a foreign-level raise (e.g. from Assert);
						// let the runtime's machinery keep handling it.
						panic(fe)
					}
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			res, err = fn(args)
		}()
		if err != nil {
			log.WithFields(log.Fields{
				"function": name,
				"error":    err.Error(),
			}).Debug("embedr: converting host error at the foreign boundary")
			s.rt.RaiseError(fmt.Sprintf("%s: %s", name, err.Error()))
		}
		if res == 0 {
			return s.rt.Nil()
		}
		return res
	}
}

// Print renders the guarded value the way the interpreter would echo it.
func (s *Session) Print(v HandleSource) { s.rt.Print(v.Handle()) }
