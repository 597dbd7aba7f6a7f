package promise

import (
	"context"
	"testing"
	"time"
)

func TestPoolMaxConcurrent(t *testing.T) {
	pool := NewPool(0)
	if pool.MaxConcurrent() != 1 {
		t.Errorf("expect 1 worker for a non positive max, got %d", pool.MaxConcurrent())
	}
	pool.Close()

	pool = NewPool(3)
	defer pool.Close()
	if pool.MaxConcurrent() != 3 {
		t.Errorf("expect 3 workers, got %d", pool.MaxConcurrent())
	}
}

func TestPoolFeed(t *testing.T) {
	pool := NewPool(2)
	release := make(chan struct{})
	started := make(chan struct{}, pool.MaxConcurrent())

	for i := 0; i < pool.MaxConcurrent(); i++ {
		err := pool.Feed(context.Background(), NewTaskBox(context.Background(), make(chan struct{}), func(ctx context.Context) {
			started <- struct{}{}
			<-release
		}))
		if err != nil {
			t.Fatal("feed:", err)
		}
	}
	for i := 0; i < pool.MaxConcurrent(); i++ {
		<-started
	}

	t.Run("busy pool honours feed deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := pool.Feed(ctx, NewTaskBox(ctx, make(chan struct{}), func(ctx context.Context) {}))
		if err != context.DeadlineExceeded {
			t.Errorf("expect deadline exceeded, got %v", err)
		}
	})

	t.Run("closed box is not fed", func(t *testing.T) {
		closed := make(chan struct{})
		close(closed)
		err := pool.Feed(context.Background(), NewTaskBox(context.Background(), closed, func(ctx context.Context) {}))
		if err != ErrClosed {
			t.Errorf("expect ErrClosed, got %v", err)
		}
	})

	close(release)

	t.Run("closing the box cancels the task context", func(t *testing.T) {
		closed := make(chan struct{})
		done := make(chan struct{})
		err := pool.Feed(context.Background(), NewTaskBox(context.Background(), closed, func(ctx context.Context) {
			<-ctx.Done()
			close(done)
		}))
		if err != nil {
			t.Fatal("feed:", err)
		}
		close(closed)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task context was not cancelled")
		}
	})

	pool.Close()
	err := pool.Feed(context.Background(), NewTaskBox(context.Background(), make(chan struct{}), func(ctx context.Context) {}))
	if err != ErrPoolClosed {
		t.Errorf("expect ErrPoolClosed, got %v", err)
	}
}
