// guard.go — the reference-counted protection guard.
//
// A Guard couples one foreign Handle with the knowledge of whether *this*
// bridge performed the protect call for it, plus a count of host-side
// owners. When the count reaches zero the guard calls Unprotect exactly
// once, and only if it owns the protection. Handles that arrived already
// protected by the foreign runtime (call arguments, for instance) are
// wrapped with owns=false and are never unprotected by us — their lifetime
// belongs to the caller.
//
// The at-most-once release is enforced with a sync.Once around the final
// unprotect, so even a misbehaving caller cannot pop the foreign protection
// table twice for the same guard. Releases past zero are a programming
// error: with debug checks enabled they are reported as DoubleRelease,
// otherwise they are contained no-ops (the foreign runtime has no way to
// verify the mistake, so we must not forward it).
//
// Guards are not safe for concurrent use; the single-thread rule of the
// runtime (see runtime.go) covers them too.
package embedr

import "sync"

// Guard owns one protected slot on the foreign protection table (when owns
// is true). Views share a Guard by value of the pointer: Retain adds an
// owner, Release drops one.
type Guard struct {
	rt   Runtime
	h    Handle
	owns bool

	refs     int
	released bool
	once     sync.Once
}

// NewGuard wraps h with an owner count of one.
//
// When owns is true the caller must already have protected h — protection
// is a precondition here; the guaranteed postcondition is one Unprotect
// when the last owner releases. Fails with InvalidHandle if h is zero or
// the runtime's nil sentinel.
func NewGuard(rt Runtime, h Handle, owns bool) (*Guard, error) {
	if h == 0 || h == rt.Nil() {
		return nil, errf(CodeInvalidHandle, "NewGuard", "nil handle where a live object was required")
	}
	return &Guard{rt: rt, h: h, owns: owns, refs: 1}, nil
}

// Handle returns the guarded handle. Valid only while the guard is live.
func (g *Guard) Handle() Handle { return g.h }

// Owns reports whether this guard performed the protection for its handle.
func (g *Guard) Owns() bool { return g.owns }

// Retain adds an owning reference and returns g. A no-op on the underlying
// foreign state.
func (g *Guard) Retain() *Guard {
	g.refs++
	return g
}

// Release drops one owning reference. On the transition to zero it calls
// Unprotect exactly once, if and only if this guard owns the protection.
// Releasing past zero returns DoubleRelease when debug checks are enabled
// and is otherwise a contained no-op.
func (g *Guard) Release() error {
	if g.released {
		if debugChecks {
			return errf(CodeDoubleRelease, "Guard.Release", "guard for handle %#x already fully released", uintptr(g.h))
		}
		return nil
	}
	g.refs--
	if g.refs > 0 {
		return nil
	}
	g.released = true
	if g.owns {
		g.once.Do(func() { g.rt.Unprotect(g.h) })
	}
	return nil
}

// Released reports whether the owner count has reached zero.
func (g *Guard) Released() bool { return g.released }
