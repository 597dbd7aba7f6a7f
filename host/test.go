package host

import (
	"context"
	"sync"
)

// DefaultTestInput is what NewTest hands out for every input.
const DefaultTestInput = "test-value"

type Op string

const (
	OpGetInput  Op = "getInput"
	OpSetOutput Op = "setOutput"
	OpSetFailed Op = "setFailed"
	OpInfo      Op = "info"
)

type Call struct {
	Op    Op
	Name  string
	Value string
}

// Test is a Host with no side effects. Every input read returns Input; the
// other operations only record their calls. The *Err fields make the
// corresponding operation fail.
type Test struct {
	Input     string
	InputErr  error
	OutputErr error
	InfoErr   error

	mu    sync.Mutex
	calls []Call
}

func NewTest() *Test {
	return &Test{Input: DefaultTestInput}
}

func (h *Test) GetInput(ctx context.Context, name string) (string, error) {
	h.record(Call{Op: OpGetInput, Name: name})
	if h.InputErr != nil {
		return "", h.InputErr
	}
	return h.Input, nil
}

func (h *Test) SetOutput(ctx context.Context, name, value string) error {
	h.record(Call{Op: OpSetOutput, Name: name, Value: value})
	return h.OutputErr
}

func (h *Test) SetFailed(ctx context.Context, message string) error {
	h.record(Call{Op: OpSetFailed, Value: message})
	return nil
}

func (h *Test) Info(ctx context.Context, message string) error {
	h.record(Call{Op: OpInfo, Value: message})
	return h.InfoErr
}

func (h *Test) record(c Call) {
	h.mu.Lock()
	h.calls = append(h.calls, c)
	h.mu.Unlock()
}

// Calls returns every call in the order it was made.
func (h *Test) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

func (h *Test) CallsOf(op Op) []Call {
	var ret []Call
	for _, c := range h.Calls() {
		if c.Op == op {
			ret = append(ret, c)
		}
	}
	return ret
}

// Outputs returns the last value set for every output name.
func (h *Test) Outputs() map[string]string {
	outputs := make(map[string]string)
	for _, c := range h.CallsOf(OpSetOutput) {
		outputs[c.Name] = c.Value
	}
	return outputs
}

func (h *Test) Failures() []string {
	return values(h.CallsOf(OpSetFailed))
}

func (h *Test) Infos() []string {
	return values(h.CallsOf(OpInfo))
}

func values(calls []Call) []string {
	ret := make([]string, 0, len(calls))
	for _, c := range calls {
		ret = append(ret, c.Value)
	}
	return ret
}

var _ Host = (*Test)(nil)
