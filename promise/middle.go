package promise

import (
	"context"
	"time"
)

// Middle rewrites the request of every stage it is attached to. Middles given
// to a stage are inherited by the stages chained after it.
type Middle struct {
	Name    string
	Wrapper func(req Request) Request
}

func WrapProcess(name string, wrapper func(ctx context.Context, req Request, p ProcessFunc) Result) Middle {
	return Middle{
		Name: name,
		Wrapper: func(req Request) Request {
			p := req.Process
			if p == nil {
				return req
			}
			req.Process = func(ctx context.Context, req Request) Result {
				return wrapper(ctx, req, p)
			}
			return req
		},
	}
}

// WrapTimeout bounds every stage by timeout.
func WrapTimeout(name string, timeout time.Duration) Middle {
	return WrapProcess(name, func(ctx context.Context, req Request, p ProcessFunc) Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p(ctx, req)
	})
}

// WrapContext lets each stage run with a context derived by with.
func WrapContext(name string, with func(ctx context.Context, req Request) context.Context) Middle {
	return WrapProcess(name, func(ctx context.Context, req Request, p ProcessFunc) Result {
		return p(with(ctx, req), req)
	})
}
