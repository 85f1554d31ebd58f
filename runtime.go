// runtime.go — the foreign runtime ABI and the library lifecycle.
//
// OVERVIEW
// ========
// This file defines the **entire surface the bridge consumes** from the
// embedded interpreter: an opaque Handle type and the Runtime interface. The
// runtime owns a garbage-collected heap; the host never frees a foreign
// object, it only pins ("protect") and unpins ("unprotect") it against
// collection through a bounded, stack-like table inside the runtime. All
// lifetime discipline in this package reduces to calling Unprotect exactly
// once per owned protection — see guard.go.
//
// Two implementations exist:
//   - the in-memory embedded runtime (rtinmem.go), used by the REPL and the
//     test suite; its collector genuinely reclaims unprotected objects, so
//     protection bugs fail loudly instead of silently,
//   - whatever a host links in; anything satisfying Runtime plugs into the
//     guard/view layer unchanged.
//
// THREADING
// ---------
// The runtime's heap, protection table and evaluation entry point are not
// reentrant. Every method on Runtime, and therefore every operation in this
// package, must run on the single thread that owns the runtime. Hosts that
// want concurrency elsewhere marshal work through a Loop (dispatch.go).
//
// LIFECYCLE
// ---------
// Init brings up the embedded runtime, its dispatch loop and a Session;
// Teardown drains and stops them. Both are idempotent per process and are
// the module's load/unload hooks when packaged as a loadable library.
package embedr

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handle is an opaque reference to an object on the foreign heap. It is
// never dereferenced by host code; element access goes through the typed
// views, which obtain the backing storage once from the Runtime accessors.
// The zero Handle is never a live object.
type Handle uintptr

// Kind selects the storage class of a foreign allocation.
type Kind int

const (
	RealKind Kind = iota // float64 elements
	IntKind              // int32 elements (the runtime's native integer width)
	StrKind              // string elements (always copied at the boundary)
	ListKind             // handle elements
)

func (k Kind) String() string {
	switch k {
	case RealKind:
		return "real"
	case IntKind:
		return "integer"
	case StrKind:
		return "string"
	case ListKind:
		return "list"
	default:
		return "unknown"
	}
}

// Runtime is the foreign interpreter ABI the bridge is written against.
//
// Protection contract: Protect pushes h onto the runtime's bounded
// protection table and fails when the table is full. Unprotect removes the
// most recent entry for h. The runtime may reclaim any unprotected,
// unreachable object at its next safepoint; a Handle whose object was
// reclaimed is dead and must not be passed to any other method.
//
// Data accessors (RealData, IntData, StringData) return the live backing
// storage of the object — they alias foreign memory and stay valid only
// while the object is protected.
type Runtime interface {
	// Allocation. Fresh objects are unprotected; callers protect before the
	// next safepoint.
	Alloc(k Kind, length int) (Handle, error)
	AllocMatrix(k Kind, rows, cols int) (Handle, error)

	// Protection table.
	Protect(h Handle) error
	Unprotect(h Handle)

	// Shape metadata.
	Length(h Handle) int
	Rows(h Handle) int
	Cols(h Handle) int

	// Type predicates.
	IsVector(h Handle) bool
	IsMatrix(h Handle) bool
	IsNumeric(h Handle) bool
	IsInteger(h Handle) bool
	IsString(h Handle) bool
	IsList(h Handle) bool

	// Backing storage. Valid only while the object is live.
	RealData(h Handle) []float64
	IntData(h Handle) []int32
	StringData(h Handle) []string

	// List elements.
	ListElem(h Handle, i int) Handle
	SetListElem(h Handle, i int, v Handle)

	// Named attributes (element names, domain tags, ...). Attribute returns
	// the nil sentinel when the attribute is absent.
	Attribute(h Handle, name string) Handle
	SetAttribute(h Handle, name string, v Handle)

	// Duplicate makes a deep copy on the foreign heap (unprotected).
	Duplicate(h Handle) (Handle, error)

	// Evaluation. Eval returns the result already protected; the caller owns
	// that protection. EvalQuiet discards the result. Foreign-level errors
	// come back as ordinary Go errors carrying the foreign message.
	Eval(src string) (Handle, error)
	EvalQuiet(src string) error

	// Bind assigns v under name in the interpreter's active namespace.
	Bind(name string, v Handle)

	// RaiseError raises a foreign-level error carrying msg. It does not
	// return normally; the runtime's evaluation machinery catches it.
	RaiseError(msg string)

	// Print renders h the way the interpreter would echo it.
	Print(h Handle)

	// Nil is the runtime's fixed nil sentinel.
	Nil() Handle
}

// Config configures Init.
type Config struct {
	// ProtectCapacity bounds the embedded runtime's protection table.
	// Zero means the default (10000 slots).
	ProtectCapacity int
	// DebugChecks enables the double-release detector on guards.
	DebugChecks bool
	// LogLevel, when non-nil, overrides the logrus level for bridge logs.
	LogLevel *log.Level
}

const defaultProtectCapacity = 10000

// debugChecks gates the DoubleRelease detector. Toggled by Init and by
// tests; read on every guard release.
var debugChecks bool

var (
	lifecycleMu sync.Mutex
	global      *Session
	globalLoop  *Loop
)

// Init is the load hook: it starts the embedded runtime, pins its dispatch
// loop to one OS thread, and returns the process-wide Session. Calling Init
// twice without Teardown returns the existing Session.
func Init(cfg Config) (*Session, *Loop) {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	if global != nil {
		return global, globalLoop
	}
	if cfg.LogLevel != nil {
		log.SetLevel(*cfg.LogLevel)
	}
	debugChecks = cfg.DebugChecks
	capacity := cfg.ProtectCapacity
	if capacity <= 0 {
		capacity = defaultProtectCapacity
	}
	rt := NewMemRuntime(capacity)
	global = NewSession(rt)
	globalLoop = NewLoop()
	log.WithFields(log.Fields{
		"protectCapacity": capacity,
		"debugChecks":     debugChecks,
	}).Info("embedr: runtime initialized")
	return global, globalLoop
}

// Teardown is the unload hook: it stops the dispatch loop and drops the
// process-wide Session. Idempotent.
func Teardown() {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	if global == nil {
		return
	}
	globalLoop.Close()
	global = nil
	globalLoop = nil
	log.Info("embedr: runtime torn down")
}
