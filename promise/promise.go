package promise

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrClosed     = errors.New("promise closed")
	ErrPoolClosed = errors.New("pool closed")
)

// Request is handed to every stage of a chain. It carries the result of the
// stage that ran before it.
type Request struct {
	from    *Result
	name    string
	Process ProcessFunc
}

func (req Request) LastErr() error {
	if req.from != nil {
		return req.from.Err
	}
	return nil
}

func (req Request) LastPayload() interface{} {
	if req.from != nil {
		return req.from.Payload
	}
	return nil
}

// Name is the stage name given with WithName, empty if none.
func (req Request) Name() string {
	return req.name
}

type Result struct {
	Err     error
	Payload interface{}
}

type ProcessFunc func(ctx context.Context, req Request) Result

// PanicError is the error a stage fails with when its process panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Promise is one stage of a deferred chain. Nothing runs until Start, Get or
// Wait is called on any stage of the chain; stages then run one after another
// on a pool worker.
type Promise struct {
	name      string
	process   ProcessFunc
	middles   []Middle
	success   *Promise
	exception *Promise
	pool      *Pool
	*chanStatus
}

func NewPromise(pool *Pool, process ProcessFunc, opts ...Option) *Promise {
	p := &Promise{
		pool:    pool,
		process: process,
	}
	p.apply(opts)
	p.chanStatus = &chanStatus{
		closeChan: make(chan struct{}),
		finished:  make(chan struct{}),
		root:      p,
	}
	return p
}

// Then runs ps only when this stage succeeds and returns the new stage.
func (p *Promise) Then(ps ProcessFunc, opts ...Option) *Promise {
	return p.setNext(ps, opts, true)
}

// OnException runs ps only when this stage fails and returns the new stage.
// The failing result is available through Request.LastErr.
func (p *Promise) OnException(ps ProcessFunc, opts ...Option) *Promise {
	return p.setNext(ps, opts, false)
}

// Get starts the chain and waits for its final result. If close is true the
// chain is closed before returning, which cancels a stage still in flight.
func (p *Promise) Get(ctx context.Context, close bool) (interface{}, error) {
	p.Start(ctx)
	if close {
		defer p.Close()
	}
	select {
	case <-ctx.Done():
		p.chanStatus.close(ctx.Err(), nil)
		return nil, ctx.Err()
	case <-p.closeChan:
		res, err := p.chanStatus.getResult()
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, nil
		}
		return res.Payload, nil
	}
}

// Wait starts the chain and waits until it is closed.
func (p *Promise) Wait(ctx context.Context, close bool) error {
	_, err := p.Get(ctx, close)
	return err
}

// Start returns false if the chain is already started or closed.
func (p *Promise) Start(ctx context.Context) bool {
	return p.chanStatus.tryStart(ctx)
}

func (p *Promise) IsClosed() bool {
	return p.chanStatus.isClosed()
}

// Close closes the whole chain and waits for the stage in flight to return.
// It must not be called from inside a stage.
func (p *Promise) Close() {
	p.chanStatus.close(ErrClosed, nil)
	p.chanStatus.waitFinished()
}

func (p *Promise) apply(opts []Option) {
	for _, opt := range opts {
		if opt.name != nil {
			p.name = *opt.name
		}
		if len(opt.middles) > 0 {
			p.middles = append(p.middles, opt.middles...)
		}
	}
}

func (p *Promise) setNext(ps ProcessFunc, opts []Option, success bool) *Promise {
	next := &Promise{
		pool:       p.pool,
		process:    ps,
		middles:    append([]Middle(nil), p.middles...),
		chanStatus: p.chanStatus,
	}
	next.apply(opts)

	ok := p.tryUnStart(func() {
		if success {
			p.success = next
		} else {
			p.exception = next
		}
	})
	if !ok {
		if p.chanStatus.isClosed() {
			panic("promise chain has closed")
		}
		panic("promise chain has started")
	}
	return next
}

func (p *Promise) request(from *Result) Request {
	req := Request{
		from:    from,
		name:    p.name,
		Process: p.process,
	}
	for _, md := range p.middles {
		if md.Wrapper != nil {
			req = md.Wrapper(req)
		}
	}
	return req
}

// run walks the chain from the root. It is the only goroutine that touches
// stage results, so a chain never runs two stages at once.
func (p *Promise) run(ctx context.Context) {
	st := p.chanStatus
	defer st.finish()

	var (
		cur  = p
		last *Result
	)
	for cur != nil {
		if st.isClosed() {
			return
		}
		res := doProcess(ctx, cur.request(last))
		last = &res

		next := cur.success
		if res.Err != nil {
			next = cur.exception
		}
		if next == nil {
			st.close(res.Err, last)
			return
		}
		cur = next
	}
}

func doProcess(ctx context.Context, req Request) (res Result) {
	if req.Process == nil {
		return Result{Err: req.LastErr(), Payload: req.LastPayload()}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	return req.Process(ctx, req)
}

type chanStatus struct {
	mu        sync.RWMutex
	started   bool
	closeChan chan struct{}
	finished  chan struct{}
	err       error
	last      *Result
	root      *Promise
}

func (s *chanStatus) tryUnStart(f func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.isClosed() {
		return false
	}
	f()
	return true
}

func (s *chanStatus) tryStart(ctx context.Context) bool {
	s.mu.Lock()
	if s.started || s.isClosed() {
		s.mu.Unlock()
		return false
	}
	s.started = true
	s.mu.Unlock()

	root := s.root
	err := root.pool.Feed(ctx, TaskBox{
		ctx:    ctx,
		closed: s.closeChan,
		f:      root.run,
	})
	if err != nil {
		s.close(err, nil)
		s.finish()
	}
	return true
}

func (s *chanStatus) getResult() (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.err
}

func (s *chanStatus) isClosed() bool {
	select {
	case <-s.closeChan:
		return true
	default:
		return false
	}
}

func (s *chanStatus) close(err error, last *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closeChan:
	default:
		s.err = err
		s.last = last
		close(s.closeChan)
	}
}

func (s *chanStatus) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.finished:
	default:
		close(s.finished)
	}
}

func (s *chanStatus) waitFinished() {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if started {
		<-s.finished
	}
}

type Option struct {
	name    *string
	middles []Middle
}

func WithName(name string) Option {
	return Option{name: &name}
}

func WithMiddles(middles ...Middle) Option {
	return Option{middles: middles}
}
