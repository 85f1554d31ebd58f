// rscript.go — the embedded runtime's expression language.
//
// A deliberately small, R-flavored surface: numeric and string literals,
// identifiers, assignment with `<-`, elementwise arithmetic with scalar
// recycling, integer ranges with `:`, and calls to a handful of builtins
// (c, matrix, length, sum, numeric) plus any host-registered functions.
// Statements are separated by `;` or newlines; `#` comments to end of line.
//
// Everything here raises failures through RaiseError, so script errors
// travel the same foreign-error path as everything else and surface from
// Eval as ordinary error values.
package embedr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type tokKind int

const (
	tkEOF tokKind = iota
	tkNum
	tkStr
	tkIdent
	tkOp
	tkSemi
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func (rt *MemRuntime) lexScript(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\n' || c == ';':
			toks = append(toks, token{kind: tkSemi, pos: i})
			i++
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.' || src[i] == 'e' || src[i] == 'E' ||
				((src[i] == '+' || src[i] == '-') && (src[i-1] == 'e' || src[i-1] == 'E'))) {
				i++
			}
			n, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				rt.RaiseError(fmt.Sprintf("invalid number %q", src[start:i]))
			}
			toks = append(toks, token{kind: tkNum, num: n, text: src[start:i], pos: start})
		case c == '"':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					switch src[i+1] {
					case 'n':
						b.WriteByte('\n')
					case 't':
						b.WriteByte('\t')
					case '\\':
						b.WriteByte('\\')
					case '"':
						b.WriteByte('"')
					default:
						b.WriteByte(src[i+1])
					}
					i += 2
					continue
				}
				if src[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(src[i])
				i++
			}
			if !closed {
				rt.RaiseError("unterminated string constant")
			}
			toks = append(toks, token{kind: tkStr, text: b.String(), pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tkIdent, text: src[start:i], pos: start})
		case c == '<' && i+1 < len(src) && src[i+1] == '-':
			toks = append(toks, token{kind: tkOp, text: "<-", pos: i})
			i += 2
		case strings.ContainsRune("+-*/():,", rune(c)):
			toks = append(toks, token{kind: tkOp, text: string(c), pos: i})
			i++
		default:
			rt.RaiseError(fmt.Sprintf("unexpected character %q at position %d", c, i))
		}
	}
	toks = append(toks, token{kind: tkEOF, pos: len(src)})
	return toks
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '.' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

type scriptEval struct {
	rt   *MemRuntime
	toks []token
	i    int
}

// evalScript parses and evaluates src, returning the value of the last
// statement (the nil sentinel for an empty program). Raised foreign errors
// are recovered here and returned as error values.
func (rt *MemRuntime) evalScript(src string) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*RaisedError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()
	e := &scriptEval{rt: rt, toks: rt.lexScript(src)}
	result := rt.nilH
	for {
		for e.peek().kind == tkSemi {
			e.i++
		}
		if e.peek().kind == tkEOF {
			break
		}
		result = e.statement()
		if t := e.peek(); t.kind != tkSemi && t.kind != tkEOF {
			rt.RaiseError(fmt.Sprintf("unexpected %q at position %d", t.text, t.pos))
		}
	}
	return result, nil
}

func (e *scriptEval) peek() token { return e.toks[e.i] }
func (e *scriptEval) next() token { t := e.toks[e.i]; e.i++; return t }

func (e *scriptEval) isOp(s string) bool {
	return e.peek().kind == tkOp && e.peek().text == s
}

func (e *scriptEval) expectOp(s string) {
	if !e.isOp(s) {
		e.rt.RaiseError(fmt.Sprintf("expected %q at position %d", s, e.peek().pos))
	}
	e.i++
}

func (e *scriptEval) statement() Handle {
	if e.peek().kind == tkIdent && e.toks[e.i+1].kind == tkOp && e.toks[e.i+1].text == "<-" {
		name := e.next().text
		e.i++ // <-
		v := e.addExpr()
		e.rt.ns[name] = v
		return v
	}
	return e.addExpr()
}

func (e *scriptEval) addExpr() Handle {
	h := e.mulExpr()
	for e.isOp("+") || e.isOp("-") {
		op := e.next().text
		rhs := e.mulExpr()
		h = e.arith(op, h, rhs)
	}
	return h
}

func (e *scriptEval) mulExpr() Handle {
	h := e.rangeExpr()
	for e.isOp("*") || e.isOp("/") {
		op := e.next().text
		rhs := e.rangeExpr()
		h = e.arith(op, h, rhs)
	}
	return h
}

func (e *scriptEval) rangeExpr() Handle {
	h := e.unary()
	if e.isOp(":") {
		e.i++
		rhs := e.unary()
		return e.makeRange(h, rhs)
	}
	return h
}

func (e *scriptEval) unary() Handle {
	if e.isOp("-") {
		e.i++
		h := e.unary()
		xs := e.asReals(h)
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = -x
		}
		return e.realVector(out)
	}
	return e.primary()
}

func (e *scriptEval) primary() Handle {
	t := e.next()
	switch t.kind {
	case tkNum:
		return e.realVector([]float64{t.num})
	case tkStr:
		h, _ := e.rt.Alloc(StrKind, 1)
		e.rt.objs[h].strs[0] = t.text
		return h
	case tkIdent:
		if e.isOp("(") {
			return e.call(t.text)
		}
		if h, ok := e.rt.ns[t.text]; ok {
			return h
		}
		e.rt.RaiseError(fmt.Sprintf("object '%s' not found", t.text))
	case tkOp:
		if t.text == "(" {
			h := e.addExpr()
			e.expectOp(")")
			return h
		}
	}
	e.rt.RaiseError(fmt.Sprintf("unexpected %q at position %d", t.text, t.pos))
	return 0
}

func (e *scriptEval) call(name string) Handle {
	e.expectOp("(")
	var args []Handle
	if !e.isOp(")") {
		for {
			args = append(args, e.addExpr())
			if e.isOp(",") {
				e.i++
				continue
			}
			break
		}
	}
	e.expectOp(")")

	switch name {
	case "c":
		return e.concat(args)
	case "matrix":
		return e.makeMatrix(args)
	case "length":
		h, _ := e.rt.Alloc(IntKind, 1)
		if len(args) != 1 {
			e.rt.RaiseError("length: exactly one argument required")
		}
		e.rt.objs[h].ints[0] = int32(e.rt.Length(args[0]))
		return h
	case "sum":
		var total float64
		for _, a := range args {
			for _, x := range e.asReals(a) {
				total += x
			}
		}
		return e.realVector([]float64{total})
	case "numeric":
		if len(args) != 1 {
			e.rt.RaiseError("numeric: exactly one argument required")
		}
		n := e.scalarInt(args[0])
		h, err := e.rt.Alloc(RealKind, n)
		if err != nil {
			e.rt.RaiseError(err.Error())
		}
		return h
	}
	if fn, ok := e.rt.hosts[name]; ok {
		return fn(args)
	}
	e.rt.RaiseError(fmt.Sprintf("could not find function \"%s\"", name))
	return 0
}

// concat implements c(...) with R-like coercion: any string argument makes
// the result a character vector; otherwise all-integer input stays integer
// and anything else widens to real.
func (e *scriptEval) concat(args []Handle) Handle {
	anyStr, allInt := false, true
	total := 0
	for _, a := range args {
		o := e.rt.obj(a, "c")
		switch o.kind {
		case StrKind:
			anyStr = true
			allInt = false
		case RealKind:
			allInt = false
		case IntKind:
		default:
			e.rt.RaiseError("c: cannot combine lists")
		}
		total += e.rt.Length(a)
	}
	switch {
	case anyStr:
		h, _ := e.rt.Alloc(StrKind, total)
		out := e.rt.objs[h].strs[:0]
		for _, a := range args {
			o := e.rt.objs[a]
			switch o.kind {
			case StrKind:
				out = append(out, o.strs...)
			case RealKind:
				for _, x := range o.real {
					out = append(out, formatReal(x))
				}
			case IntKind:
				for _, n := range o.ints {
					out = append(out, strconv.FormatInt(int64(n), 10))
				}
			}
		}
		e.rt.objs[h].strs = out
		return h
	case allInt:
		h, _ := e.rt.Alloc(IntKind, total)
		out := e.rt.objs[h].ints[:0]
		for _, a := range args {
			out = append(out, e.rt.objs[a].ints...)
		}
		e.rt.objs[h].ints = out
		return h
	default:
		h, _ := e.rt.Alloc(RealKind, total)
		out := e.rt.objs[h].real[:0]
		for _, a := range args {
			out = append(out, e.asReals(a)...)
		}
		e.rt.objs[h].real = out
		return h
	}
}

// makeMatrix implements matrix(data, nrow, ncol) with scalar recycling.
func (e *scriptEval) makeMatrix(args []Handle) Handle {
	if len(args) != 3 {
		e.rt.RaiseError("matrix: data, nrow and ncol required")
	}
	data := e.asReals(args[0])
	rows := e.scalarInt(args[1])
	cols := e.scalarInt(args[2])
	if rows < 0 || cols < 0 {
		e.rt.RaiseError("matrix: negative extents")
	}
	n := rows * cols
	if len(data) != n && len(data) != 1 {
		e.rt.RaiseError(fmt.Sprintf("matrix: data length %d does not fit %dx%d", len(data), rows, cols))
	}
	h, err := e.rt.AllocMatrix(RealKind, rows, cols)
	if err != nil {
		e.rt.RaiseError(err.Error())
	}
	dst := e.rt.objs[h].real
	for i := range dst {
		if len(data) == 1 {
			dst[i] = data[0]
		} else {
			dst[i] = data[i]
		}
	}
	return h
}

func (e *scriptEval) makeRange(a, b Handle) Handle {
	from := e.scalarInt(a)
	to := e.scalarInt(b)
	step := 1
	if to < from {
		step = -1
	}
	n := (to-from)*step + 1
	h, err := e.rt.Alloc(IntKind, n)
	if err != nil {
		e.rt.RaiseError(err.Error())
	}
	out := e.rt.objs[h].ints
	v := from
	for i := range out {
		out[i] = int32(v)
		v += step
	}
	return h
}

// arith evaluates an elementwise binary operation with scalar recycling.
// Results are always real vectors.
func (e *scriptEval) arith(op string, a, b Handle) Handle {
	xs := e.asReals(a)
	ys := e.asReals(b)
	n := len(xs)
	if len(ys) > n {
		n = len(ys)
	}
	if len(xs) != len(ys) && len(xs) != 1 && len(ys) != 1 {
		e.rt.RaiseError(fmt.Sprintf("non-conformable lengths %d and %d", len(xs), len(ys)))
	}
	out := make([]float64, n)
	for i := range out {
		x := xs[i%len(xs)]
		y := ys[i%len(ys)]
		switch op {
		case "+":
			out[i] = x + y
		case "-":
			out[i] = x - y
		case "*":
			out[i] = x * y
		case "/":
			out[i] = x / y
		}
	}
	return e.realVector(out)
}

func (e *scriptEval) realVector(xs []float64) Handle {
	h, err := e.rt.Alloc(RealKind, len(xs))
	if err != nil {
		e.rt.RaiseError(err.Error())
	}
	copy(e.rt.objs[h].real, xs)
	return h
}

// asReals reads h as a real slice, widening integers. Raises on anything
// non-numeric.
func (e *scriptEval) asReals(h Handle) []float64 {
	o := e.rt.obj(h, "arith")
	switch o.kind {
	case RealKind:
		return o.real
	case IntKind:
		out := make([]float64, len(o.ints))
		for i, n := range o.ints {
			out[i] = float64(n)
		}
		return out
	default:
		e.rt.RaiseError("non-numeric argument to binary operator")
		return nil
	}
}

// scalarInt reads h as a single whole number.
func (e *scriptEval) scalarInt(h Handle) int {
	xs := e.asReals(h)
	if len(xs) != 1 {
		e.rt.RaiseError(fmt.Sprintf("expected a scalar, got length %d", len(xs)))
	}
	if xs[0] != math.Trunc(xs[0]) {
		e.rt.RaiseError(fmt.Sprintf("expected a whole number, got %g", xs[0]))
	}
	return int(xs[0])
}
