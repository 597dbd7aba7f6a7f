package record

import (
	"context"

	"github.com/feynman-go/actionkit/promise"
)

// Middle records every promise stage as an action named after the stage.
func Middle(factory Factory) promise.Middle {
	return promise.WrapProcess("record", func(ctx context.Context, req promise.Request, p promise.ProcessFunc) promise.Result {
		if factory == nil {
			return p(ctx, req)
		}
		name := req.Name()
		if name == "" {
			name = "stage"
		}
		rd, ctx := factory.ActionRecorder(ctx, name)
		defer func() {
			if r := recover(); r != nil {
				rd.Commit(&promise.PanicError{Value: r})
				panic(r)
			}
		}()
		res := p(ctx, req)
		rd.Commit(res.Err)
		return res
	})
}
