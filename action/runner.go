package action

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/feynman-go/actionkit/host"
	"github.com/feynman-go/actionkit/lifecycle"
	"github.com/feynman-go/actionkit/promise"
	"github.com/feynman-go/actionkit/record"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const SuccessMessage = "Action completed successfully"

const (
	stageGetInput  = "get-input"
	stageDecode    = "decode"
	stageTransform = "transform"
	stageEmit      = "set-output"
	stageLog       = "info"
	stageSucceed   = "succeed"
	stageFailed    = "process-failure"
)

type RunnerOption struct {
	// Decode defaults to DecodeInput.
	Decode Decoder
	Logger *zap.Logger
	// Records observes every pipeline stage when set.
	Records record.Factory
}

// Runner executes the task as a deferred pipeline over an injected Host.
// Runs share no state besides the worker pool; Close releases the pool.
type Runner struct {
	host    host.Host
	decode  Decoder
	logger  *zap.Logger
	records record.Factory
	pool    *promise.Pool
	once    sync.Once
}

func NewRunner(h host.Host, option RunnerOption) *Runner {
	if option.Decode == nil {
		option.Decode = DecodeInput
	}
	if option.Logger == nil {
		option.Logger = zap.L()
	}
	return &Runner{
		host:    h,
		decode:  option.Decode,
		logger:  option.Logger,
		records: option.Records,
		pool:    promise.NewPool(1),
	}
}

func (r *Runner) Close() error {
	var err error
	r.once.Do(func() {
		err = r.pool.Close()
	})
	return err
}

// Run executes one task with a fresh lifecycle actor.
func (r *Runner) Run(ctx context.Context) (Output, error) {
	return r.Execute(ctx, lifecycle.NewActor(r.logger))
}

// Execute runs the pipeline
//
//	get input -> decode -> transform -> set output -> info
//
// and reports every phase boundary to actor. The first failing stage ends
// the run. Execute never calls SetFailed; see Main.
func (r *Runner) Execute(ctx context.Context, actor *lifecycle.Actor) (Output, error) {
	ctx = ctxzap.ToContext(ctx, r.logger)
	v, err := r.pipeline(actor).Get(ctx, true)
	if err != nil {
		return Output{}, err
	}
	out, ok := v.(Output)
	if !ok {
		return Output{}, errors.Errorf("pipeline returned %T", v)
	}
	return out, nil
}

// Main runs the task and is the one place a failure reaches the host: any
// error, typed or not, results in exactly one SetFailed call.
func (r *Runner) Main(ctx context.Context) (out Output, err error) {
	reported := false
	defer func() {
		if rc := recover(); rc != nil {
			err = &promise.PanicError{Value: rc, Stack: debug.Stack()}
			out = Output{}
			if !reported {
				r.fail(ctx, err)
			}
		}
	}()

	out, err = r.Run(ctx)
	if err != nil {
		reported = true
		r.fail(ctx, err)
		return Output{}, err
	}
	return out, nil
}

// fail reports err to the host. A panicking host is logged, not rethrown.
func (r *Runner) fail(ctx context.Context, err error) {
	msg := ErrorMessage(err)
	r.logger.Error("action failed", zap.String("message", msg), zap.Error(err))

	defer func() {
		if rc := recover(); rc != nil {
			r.logger.Error("host panicked while reporting failure",
				zap.Any("panic", rc), zap.ByteString("stack", debug.Stack()))
		}
	}()
	// the run may have ended because ctx expired; the report still has to go out
	if ferr := r.host.SetFailed(context.WithoutCancel(ctx), msg); ferr != nil {
		r.logger.Error("report failure to host", zap.Error(ferr))
	}
}

func (r *Runner) pipeline(actor *lifecycle.Actor) *promise.Promise {
	opts := []promise.Option{promise.WithName(stageGetInput)}
	if r.records != nil {
		opts = append(opts, promise.WithMiddles(record.Middle(r.records)))
	}

	decoded := promise.NewPromise(r.pool, host.GetInput(r.host, InputKey), opts...).
		Then(r.decodeStage(actor), promise.WithName(stageDecode))

	transformed := decoded.Then(transformStage, promise.WithName(stageTransform))
	transformed.OnException(processFailed(actor), promise.WithName(stageFailed))

	emitted := transformed.Then(r.emitStage, promise.WithName(stageEmit))
	emitted.OnException(processFailed(actor), promise.WithName(stageFailed))

	logged := emitted.Then(host.Info(r.host, SuccessMessage), promise.WithName(stageLog))
	logged.OnException(processFailed(actor), promise.WithName(stageFailed))

	return logged.Then(processSucceeded(actor), promise.WithName(stageSucceed))
}

func (r *Runner) decodeStage(actor *lifecycle.Actor) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		raw, _ := req.LastPayload().(string)
		actor.Send(lifecycle.Start(raw))

		in, err := r.decode(map[string]interface{}{"exampleInput": raw})
		if err != nil {
			ctxzap.Extract(ctx).Debug("input rejected", zap.Error(err))
			verr := &ValidationError{Message: "Invalid input", Field: InputKey}
			actor.Send(lifecycle.ValidateFailure(verr.Message))
			return promise.Result{Err: verr}
		}
		actor.Send(lifecycle.ValidateSuccess())
		return promise.Result{Payload: in}
	}
}

func transformStage(ctx context.Context, req promise.Request) promise.Result {
	in, ok := req.LastPayload().(Input)
	if !ok {
		return promise.Result{Err: &ProcessingError{Message: "transform: unexpected payload"}}
	}
	return promise.Result{Payload: Transform(in)}
}

func (r *Runner) emitStage(ctx context.Context, req promise.Request) promise.Result {
	out := req.LastPayload().(Output)
	return host.SetOutput(r.host, OutputKey, out.ExampleOutput)(ctx, req)
}

func processFailed(actor *lifecycle.Actor) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		err := req.LastErr()
		var pe *ProcessingError
		if !errors.As(err, &pe) {
			pe = &ProcessingError{Message: ErrorMessage(err), Cause: err}
		}
		actor.Send(lifecycle.ProcessFailure(pe.Message))
		return promise.Result{Err: pe}
	}
}

func processSucceeded(actor *lifecycle.Actor) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		out := req.LastPayload().(Output)
		actor.Send(lifecycle.ProcessSuccess(out.ExampleOutput))
		return promise.Result{Payload: out}
	}
}
