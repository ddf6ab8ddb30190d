package authority

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/types"
)

// errStopped is returned for operations that reach a session whose worker
// has exited.
var errStopped = errors.New("session worker stopped")

type operation struct {
	ctx  context.Context
	fn   func() error
	err  error
	done chan struct{}
}

// session is one loaded session. Fields below the worker comment are owned
// by the worker goroutine.
type session struct {
	id    string
	state atomic.Pointer[types.SessionState]
	dirty atomic.Bool

	ops      chan *operation
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// worker
	rng        *rng.RNG
	persisted  types.SessionState
	timeStored bool
}

func newSession(id string, queue int) *session {
	return &session{
		id:      id,
		ops:     make(chan *operation, queue),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *session) current() *types.SessionState { return s.state.Load() }

func (s *session) publish(st types.SessionState) {
	s.state.Store(&st)
}

// stop asks the worker to exit after the current operation.
func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

func (s *session) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			return
		case o := <-s.ops:
			// A queued operation whose caller gave up is never started.
			if err := o.ctx.Err(); err != nil {
				o.err = err
			} else {
				o.err = o.fn()
			}
			close(o.done)
		}
	}
}

// do runs fn on the session worker and waits for it. Once started, fn runs
// to completion even if ctx is cancelled meanwhile.
func (s *session) do(ctx context.Context, fn func() error) error {
	o := &operation{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case s.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return errStopped
	case <-s.quit:
		return errStopped
	}
	select {
	case <-o.done:
		return o.err
	case <-s.stopped:
		select {
		case <-o.done:
			return o.err
		default:
			return errStopped
		}
	}
}
