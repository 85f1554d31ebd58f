// dispatch.go — the one-thread marshalling loop.
//
// The foreign runtime tolerates exactly one calling thread. A Loop owns
// that thread: it locks a goroutine to its OS thread and runs submitted
// closures in arrival order. Hosts that are otherwise concurrent submit
// every bridge operation through Do; the calling goroutine blocks until its
// closure has run on the bridge thread. This is a hard requirement of the
// runtime, not a tuning option.
package embedr

import (
	"errors"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrLoopClosed is returned by Do after Close.
var ErrLoopClosed = errors.New("embedr: dispatch loop closed")

type loopReq struct {
	fn    func() error
	reply chan error
}

// Loop serializes bridge work onto a single locked OS thread.
type Loop struct {
	reqs chan loopReq

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewLoop starts the bridge thread.
func NewLoop() *Loop {
	l := &Loop{
		reqs: make(chan loopReq),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	log.Debug("embedr: dispatch loop started")
	for req := range l.reqs {
		req.reply <- safeCall(req.fn)
	}
	log.Debug("embedr: dispatch loop stopped")
	close(l.done)
}

// safeCall keeps a panicking closure from killing the bridge thread; the
// panic is reported to the submitter as an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errf(CodeEvaluation, "Loop.Do", "panic on bridge thread: %v", r)
		}
	}()
	return fn()
}

// Do runs fn on the bridge thread and returns its error. Calls from the
// bridge thread itself would deadlock; the loop is for *other* goroutines.
func (l *Loop) Do(fn func() error) error {
	req := loopReq{fn: fn, reply: make(chan error, 1)}
	// The send happens under the mutex so Close cannot close reqs while a
	// submission is in flight.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.reqs <- req
	l.mu.Unlock()
	return <-req.reply
}

// Close drains pending work and stops the bridge thread. Idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	close(l.reqs)
	<-l.done
}
