package promise

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type TaskFunc func(ctx context.Context)

// TaskBox is a unit of work fed to a Pool. The context handed to f derives
// from ctx and is cancelled when closed is closed or the pool shuts down.
type TaskBox struct {
	ctx    context.Context
	closed <-chan struct{}
	f      TaskFunc
}

func NewTaskBox(ctx context.Context, closed <-chan struct{}, f TaskFunc) TaskBox {
	return TaskBox{ctx: ctx, closed: closed, f: f}
}

type Pool struct {
	status  int32
	max     int
	offset  uint64
	workers []*worker
	closed  chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func NewPool(maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	pool := &Pool{
		max:    maxConcurrent,
		closed: make(chan struct{}),
		logger: zap.L(),
	}
	pool.startWorkers()
	return pool
}

func (pool *Pool) MaxConcurrent() int {
	return pool.max
}

// Feed blocks until a worker takes the box, the box is closed, ctx is done or
// the pool is closed.
func (pool *Pool) Feed(ctx context.Context, box TaskBox) error {
	if box.ctx == nil {
		box.ctx = ctx
	}
	id := atomic.AddUint64(&pool.offset, 1)
	wk := pool.workers[int(id%uint64(pool.max))]

	select {
	case <-pool.closed:
		return ErrPoolClosed
	default:
	}

	select {
	case wk.c <- box:
		return nil
	case <-pool.closed:
		return ErrPoolClosed
	case <-box.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops all workers and waits for the tasks they are running.
func (pool *Pool) Close() error {
	if atomic.CompareAndSwapInt32(&pool.status, 0, -1) {
		close(pool.closed)
	}
	pool.wg.Wait()
	return nil
}

func (pool *Pool) startWorkers() {
	pool.workers = make([]*worker, pool.max)
	for i := 0; i < pool.max; i++ {
		wk := &worker{
			idx:    i,
			closed: pool.closed,
			c:      make(chan TaskBox),
			logger: pool.logger,
		}
		pool.workers[i] = wk
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			wk.loop()
		}()
	}
}

type worker struct {
	idx    int
	closed chan struct{}
	c      chan TaskBox
	logger *zap.Logger
}

func (w *worker) loop() {
	for {
		select {
		case <-w.closed:
			return
		case box := <-w.c:
			w.run(box)
		}
	}
}

func (w *worker) run(box TaskBox) {
	ctx, cancel := context.WithCancel(box.ctx)
	defer cancel()

	watched := make(chan struct{})
	defer close(watched)
	go func() {
		select {
		case <-w.closed:
			cancel()
		case <-box.closed:
			cancel()
		case <-watched:
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("pool worker recovered from panic",
				zap.Int("worker", w.idx), zap.Any("panic", r))
		}
	}()
	box.f(ctx)
}
