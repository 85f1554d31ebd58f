// rtinmem.go — the in-memory embedded runtime.
//
// MemRuntime is a complete Runtime implementation that lives inside the
// host process: a handle-addressed heap, a bounded protection stack, a
// namespace, and a collector that runs at every evaluation safepoint and
// genuinely reclaims unprotected, unreachable objects. It exists so the
// guard/view layer is exercisable (REPL, tests) without linking a C
// interpreter — and so protection bugs surface as hard "reclaimed handle"
// panics instead of silent corruption.
//
// The expression language it evaluates lives in rscript.go.
package embedr

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type memObject struct {
	kind Kind
	real []float64
	ints []int32
	strs []string
	list []Handle

	// rows > 0 marks a matrix; vectors leave both at zero.
	rows, cols int

	attrs    map[string]Handle
	attrKeys []string
}

// MemRuntime implements Runtime on an in-process heap. Not safe for
// concurrent use — like the real thing, it tolerates exactly one calling
// thread (see dispatch.go).
type MemRuntime struct {
	objs map[Handle]*memObject
	next Handle

	prot    []Handle
	protCap int

	ns    map[string]Handle
	hosts map[string]func([]Handle) Handle

	nilH Handle

	// Out receives Print output; defaults to stdout.
	Out io.Writer
}

// NewMemRuntime creates an empty runtime whose protection stack holds at
// most protCap entries.
func NewMemRuntime(protCap int) *MemRuntime {
	rt := &MemRuntime{
		objs:    make(map[Handle]*memObject),
		next:    1,
		protCap: protCap,
		ns:      make(map[string]Handle),
		hosts:   make(map[string]func([]Handle) Handle),
		Out:     os.Stdout,
	}
	// The nil sentinel is an ordinary heap object that is always reachable.
	rt.nilH = rt.newObject(&memObject{kind: ListKind})
	return rt
}

func (rt *MemRuntime) newObject(o *memObject) Handle {
	h := rt.next
	rt.next++
	rt.objs[h] = o
	return h
}

// obj resolves h or panics: touching a reclaimed or foreign-unknown handle
// is the simulated use-after-free, and it must not pass silently.
func (rt *MemRuntime) obj(h Handle, op string) *memObject {
	o, ok := rt.objs[h]
	if !ok {
		panic(fmt.Sprintf("embedr: %s on dead handle %#x (object reclaimed or never existed)", op, uintptr(h)))
	}
	return o
}

// --- allocation ---

func (rt *MemRuntime) Alloc(k Kind, length int) (Handle, error) {
	if length < 0 {
		return 0, fmt.Errorf("cannot allocate negative length %d", length)
	}
	o := &memObject{kind: k}
	switch k {
	case RealKind:
		o.real = make([]float64, length)
	case IntKind:
		o.ints = make([]int32, length)
	case StrKind:
		o.strs = make([]string, length)
	case ListKind:
		o.list = make([]Handle, length)
		for i := range o.list {
			o.list[i] = rt.nilH
		}
	default:
		return 0, fmt.Errorf("unknown storage kind %d", k)
	}
	return rt.newObject(o), nil
}

func (rt *MemRuntime) AllocMatrix(k Kind, rows, cols int) (Handle, error) {
	if rows < 0 || cols < 0 {
		return 0, fmt.Errorf("cannot allocate %dx%d matrix", rows, cols)
	}
	h, err := rt.Alloc(k, rows*cols)
	if err != nil {
		return 0, err
	}
	o := rt.objs[h]
	o.rows, o.cols = rows, cols
	return h, nil
}

// --- protection stack ---

func (rt *MemRuntime) Protect(h Handle) error {
	rt.obj(h, "Protect")
	if len(rt.prot) >= rt.protCap {
		return fmt.Errorf("protection stack overflow (capacity %d)", rt.protCap)
	}
	rt.prot = append(rt.prot, h)
	return nil
}

// Unprotect removes the most recent protection entry for h. Unprotecting a
// handle that holds no slot is the no-double-unprotect violation; the
// runtime has no recovery for it.
func (rt *MemRuntime) Unprotect(h Handle) {
	for i := len(rt.prot) - 1; i >= 0; i-- {
		if rt.prot[i] == h {
			rt.prot = append(rt.prot[:i], rt.prot[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("embedr: Unprotect(%#x): handle not on protection stack", uintptr(h)))
}

// ProtectionDepth reports the number of occupied protection slots.
func (rt *MemRuntime) ProtectionDepth() int { return len(rt.prot) }

// LiveObjects reports the heap population (including the nil sentinel).
func (rt *MemRuntime) LiveObjects() int { return len(rt.objs) }

// --- shape and predicates ---

func (rt *MemRuntime) Length(h Handle) int {
	o := rt.obj(h, "Length")
	switch o.kind {
	case RealKind:
		return len(o.real)
	case IntKind:
		return len(o.ints)
	case StrKind:
		return len(o.strs)
	default:
		return len(o.list)
	}
}

func (rt *MemRuntime) Rows(h Handle) int { return rt.obj(h, "Rows").rows }
func (rt *MemRuntime) Cols(h Handle) int { return rt.obj(h, "Cols").cols }

func (rt *MemRuntime) IsVector(h Handle) bool {
	o := rt.obj(h, "IsVector")
	return o.kind != ListKind && o.rows == 0
}
func (rt *MemRuntime) IsMatrix(h Handle) bool { return rt.obj(h, "IsMatrix").rows > 0 }
func (rt *MemRuntime) IsNumeric(h Handle) bool {
	k := rt.obj(h, "IsNumeric").kind
	return k == RealKind || k == IntKind
}
func (rt *MemRuntime) IsInteger(h Handle) bool { return rt.obj(h, "IsInteger").kind == IntKind }
func (rt *MemRuntime) IsString(h Handle) bool  { return rt.obj(h, "IsString").kind == StrKind }
func (rt *MemRuntime) IsList(h Handle) bool    { return rt.obj(h, "IsList").kind == ListKind }

// --- backing storage ---

func (rt *MemRuntime) RealData(h Handle) []float64 { return rt.obj(h, "RealData").real }
func (rt *MemRuntime) IntData(h Handle) []int32    { return rt.obj(h, "IntData").ints }
func (rt *MemRuntime) StringData(h Handle) []string {
	return rt.obj(h, "StringData").strs
}

func (rt *MemRuntime) ListElem(h Handle, i int) Handle {
	o := rt.obj(h, "ListElem")
	if i < 0 || i >= len(o.list) {
		panic(fmt.Sprintf("embedr: ListElem(%#x, %d): index out of range", uintptr(h), i))
	}
	return o.list[i]
}

func (rt *MemRuntime) SetListElem(h Handle, i int, v Handle) {
	o := rt.obj(h, "SetListElem")
	rt.obj(v, "SetListElem value")
	if i < 0 || i >= len(o.list) {
		panic(fmt.Sprintf("embedr: SetListElem(%#x, %d): index out of range", uintptr(h), i))
	}
	o.list[i] = v
}

// --- attributes ---

func (rt *MemRuntime) Attribute(h Handle, name string) Handle {
	o := rt.obj(h, "Attribute")
	if a, ok := o.attrs[name]; ok {
		return a
	}
	return rt.nilH
}

func (rt *MemRuntime) SetAttribute(h Handle, name string, v Handle) {
	o := rt.obj(h, "SetAttribute")
	rt.obj(v, "SetAttribute value")
	if o.attrs == nil {
		o.attrs = make(map[string]Handle)
	}
	if _, ok := o.attrs[name]; !ok {
		o.attrKeys = append(o.attrKeys, name)
	}
	o.attrs[name] = v
}

// --- duplication ---

func (rt *MemRuntime) Duplicate(h Handle) (Handle, error) {
	if h == rt.nilH {
		return rt.nilH, nil
	}
	o := rt.obj(h, "Duplicate")
	d := &memObject{kind: o.kind, rows: o.rows, cols: o.cols}
	switch o.kind {
	case RealKind:
		d.real = append([]float64(nil), o.real...)
	case IntKind:
		d.ints = append([]int32(nil), o.ints...)
	case StrKind:
		d.strs = append([]string(nil), o.strs...)
	case ListKind:
		d.list = make([]Handle, len(o.list))
		for i, e := range o.list {
			de, err := rt.Duplicate(e)
			if err != nil {
				return 0, err
			}
			d.list[i] = de
		}
	}
	nh := rt.newObject(d)
	for _, k := range o.attrKeys {
		da, err := rt.Duplicate(o.attrs[k])
		if err != nil {
			return 0, err
		}
		rt.SetAttribute(nh, k, da)
	}
	return nh, nil
}

// --- namespace, host functions, errors ---

func (rt *MemRuntime) Bind(name string, v Handle) {
	rt.obj(v, "Bind")
	rt.ns[name] = v
}

// Lookup resolves a namespace binding; zero when absent.
func (rt *MemRuntime) Lookup(name string) Handle { return rt.ns[name] }

// RegisterHost exposes fn to evaluated code under name. fn reports failures
// only through RaiseError (use Session.Boundary to build such a function
// from ordinary Go code).
func (rt *MemRuntime) RegisterHost(name string, fn func([]Handle) Handle) {
	rt.hosts[name] = fn
}

func (rt *MemRuntime) RaiseError(msg string) {
	panic(&RaisedError{Msg: msg})
}

// --- evaluation safepoint and collection ---

// Eval collects garbage (the safepoint), evaluates src, protects the result
// and returns it. The caller owns that protection slot.
func (rt *MemRuntime) Eval(src string) (Handle, error) {
	rt.gc()
	h, err := rt.evalScript(src)
	if err != nil {
		return 0, err
	}
	if h == rt.nilH {
		return rt.nilH, nil
	}
	if err := rt.Protect(h); err != nil {
		return 0, err
	}
	return h, nil
}

// EvalQuiet evaluates src for its side effects; the result is left to the
// collector.
func (rt *MemRuntime) EvalQuiet(src string) error {
	rt.gc()
	_, err := rt.evalScript(src)
	return err
}

// gc reclaims every object unreachable from the protection stack, the
// namespace and the nil sentinel, following list elements and attributes.
func (rt *MemRuntime) gc() {
	marked := make(map[Handle]bool, len(rt.objs))
	var mark func(Handle)
	mark = func(h Handle) {
		if marked[h] {
			return
		}
		o, ok := rt.objs[h]
		if !ok {
			return
		}
		marked[h] = true
		for _, e := range o.list {
			mark(e)
		}
		for _, a := range o.attrs {
			mark(a)
		}
	}
	mark(rt.nilH)
	for _, h := range rt.prot {
		mark(h)
	}
	for _, h := range rt.ns {
		mark(h)
	}
	for h := range rt.objs {
		if !marked[h] {
			delete(rt.objs, h)
		}
	}
}

func (rt *MemRuntime) Nil() Handle { return rt.nilH }

// --- printing ---

// Print renders h roughly the way the interpreter's REPL would echo it.
func (rt *MemRuntime) Print(h Handle) {
	fmt.Fprint(rt.Out, rt.format(h))
}

func (rt *MemRuntime) format(h Handle) string {
	if h == rt.nilH {
		return "NULL\n"
	}
	o := rt.obj(h, "Print")
	var b strings.Builder
	switch {
	case o.kind == ListKind:
		names, _ := rt.attrNames(o)
		for i, e := range o.list {
			if names != nil && i < len(names) && names[i] != "" {
				fmt.Fprintf(&b, "$%s\n", names[i])
			} else {
				fmt.Fprintf(&b, "[[%d]]\n", i+1)
			}
			b.WriteString(rt.format(e))
			b.WriteString("\n")
		}
	case o.rows > 0:
		for r := 0; r < o.rows; r++ {
			for c := 0; c < o.cols; c++ {
				if c > 0 {
					b.WriteString(" ")
				}
				b.WriteString(formatReal(o.real[c*o.rows+r]))
			}
			b.WriteString("\n")
		}
	case o.kind == RealKind:
		b.WriteString("[1]")
		for _, x := range o.real {
			b.WriteString(" " + formatReal(x))
		}
		b.WriteString("\n")
	case o.kind == IntKind:
		b.WriteString("[1]")
		for _, n := range o.ints {
			b.WriteString(" " + strconv.FormatInt(int64(n), 10))
		}
		b.WriteString("\n")
	case o.kind == StrKind:
		b.WriteString("[1]")
		for _, s := range o.strs {
			b.WriteString(" " + strconv.Quote(s))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (rt *MemRuntime) attrNames(o *memObject) ([]string, bool) {
	a, ok := o.attrs["names"]
	if !ok {
		return nil, false
	}
	no, ok := rt.objs[a]
	if !ok || no.kind != StrKind {
		return nil, false
	}
	return no.strs, true
}

func formatReal(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
