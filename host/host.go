// Package host is the boundary between a task and the orchestrator running
// it. Task code depends on the Host interface only; the composition root
// picks Live for a real runner or Test for deterministic runs.
package host

import (
	"context"

	"github.com/feynman-go/actionkit/promise"
	"github.com/pkg/errors"
)

type Host interface {
	// GetInput returns the named input, or "" when it is not set.
	GetInput(ctx context.Context, name string) (string, error)
	SetOutput(ctx context.Context, name, value string) error
	// SetFailed reports message and marks the task as failed.
	SetFailed(ctx context.Context, message string) error
	Info(ctx context.Context, message string) error
}

// GetInput is the deferred form of Host.GetInput. Its payload is the input
// value.
func GetInput(h Host, name string) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		v, err := h.GetInput(ctx, name)
		if err != nil {
			return promise.Result{Err: errors.Wrapf(err, "get input %q", name)}
		}
		return promise.Result{Payload: v}
	}
}

// SetOutput is the deferred form of Host.SetOutput. It passes the previous
// payload through.
func SetOutput(h Host, name, value string) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		if err := h.SetOutput(ctx, name, value); err != nil {
			return promise.Result{Err: errors.Wrapf(err, "set output %q", name)}
		}
		return promise.Result{Payload: req.LastPayload()}
	}
}

// SetFailed is the deferred form of Host.SetFailed. It passes the previous
// payload through.
func SetFailed(h Host, message string) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		if err := h.SetFailed(ctx, message); err != nil {
			return promise.Result{Err: errors.Wrap(err, "set failed")}
		}
		return promise.Result{Payload: req.LastPayload()}
	}
}

// Info is the deferred form of Host.Info. It passes the previous payload
// through.
func Info(h Host, message string) promise.ProcessFunc {
	return func(ctx context.Context, req promise.Request) promise.Result {
		if err := h.Info(ctx, message); err != nil {
			return promise.Result{Err: errors.Wrap(err, "info")}
		}
		return promise.Result{Payload: req.LastPayload()}
	}
}
