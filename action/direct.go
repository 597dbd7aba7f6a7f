package action

import (
	"context"
	"fmt"

	"github.com/feynman-go/actionkit/host"
	"github.com/pkg/errors"
)

// RunDirect is the imperative form of the task: every host call is made in
// place, in order, and any failure is reported through SetFailed. The
// returned error is the one reported, or the host's error when even the
// report failed.
func RunDirect(ctx context.Context, h host.Host, rc *host.RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = errors.New(UnexpectedMessage)
			}
		}
		if err != nil {
			if ferr := h.SetFailed(context.WithoutCancel(ctx), ErrorMessage(err)); ferr != nil {
				err = errors.Wrap(ferr, "set failed")
			}
		}
	}()

	if rc == nil {
		return errors.New("run context is not loaded")
	}

	v, err := h.GetInput(ctx, InputKey)
	if err != nil {
		return err
	}
	if err := h.Info(ctx, "Example input: "+v); err != nil {
		return err
	}
	if err := h.Info(ctx, "Event: "+rc.EventName); err != nil {
		return err
	}
	repo, err := rc.Repo()
	if err != nil {
		return err
	}
	if err := h.Info(ctx, fmt.Sprintf("Repo: %s", repo)); err != nil {
		return err
	}
	if err := h.SetOutput(ctx, OutputKey, "Processed: "+v); err != nil {
		return err
	}
	return h.Info(ctx, SuccessMessage+"!")
}
