// Package lifecycle models the stages one task execution passes through:
//
//	idle -> validating -> processing -> succeeded
//	             \              \
//	              `-> failed     `-> failed
//
// The machine is a pure transition function over a fixed table. It knows
// nothing about hosts or pipelines and is driven only by explicit events.
// Events that the current state does not handle are ignored, and the two
// terminal states handle none.
package lifecycle

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Initial is the state every machine instance starts in.
const Initial = StateIdle

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

func (s State) String() string {
	return string(s)
}

type EventType string

const (
	EventStart           EventType = "START"
	EventValidateSuccess EventType = "VALIDATE_SUCCESS"
	EventValidateFailure EventType = "VALIDATE_FAILURE"
	EventProcessSuccess  EventType = "PROCESS_SUCCESS"
	EventProcessFailure  EventType = "PROCESS_FAILURE"
	// EventReset is accepted by Send but no state handles it.
	EventReset EventType = "RESET"
)

// Event is a tagged value: Type selects which of the payload fields is
// meaningful. Use the constructors below rather than the literal.
type Event struct {
	Type   EventType
	Input  string
	Output string
	Error  string
}

func Start(input string) Event {
	return Event{Type: EventStart, Input: input}
}

func ValidateSuccess() Event {
	return Event{Type: EventValidateSuccess}
}

func ValidateFailure(err string) Event {
	return Event{Type: EventValidateFailure, Error: err}
}

func ProcessSuccess(output string) Event {
	return Event{Type: EventProcessSuccess, Output: output}
}

func ProcessFailure(err string) Event {
	return Event{Type: EventProcessFailure, Error: err}
}

func Reset() Event {
	return Event{Type: EventReset}
}

// Context is the data carried by a machine instance. A nil field has not
// been written on the path taken so far.
type Context struct {
	Input  *string
	Output *string
	Error  *string
}

type action func(c Context, ev Event) Context

type transition struct {
	from   State
	event  EventType
	to     State
	action action
}

var transitions = []transition{
	{StateIdle, EventStart, StateValidating, storeInput},
	{StateValidating, EventValidateSuccess, StateProcessing, nil},
	{StateValidating, EventValidateFailure, StateFailed, storeError},
	{StateProcessing, EventProcessSuccess, StateSucceeded, storeOutput},
	{StateProcessing, EventProcessFailure, StateFailed, storeError},
}

type key struct {
	from  State
	event EventType
}

var table = func() map[key]transition {
	m := make(map[key]transition, len(transitions))
	for _, tr := range transitions {
		m[key{tr.from, tr.event}] = tr
	}
	return m
}()

func storeInput(c Context, ev Event) Context {
	v := ev.Input
	c.Input = &v
	return c
}

func storeOutput(c Context, ev Event) Context {
	v := ev.Output
	c.Output = &v
	return c
}

func storeError(c Context, ev Event) Context {
	v := ev.Error
	c.Error = &v
	return c
}

// Transition returns the state and context after ev. When ev is not handled
// in state, it returns state and c unchanged and false.
func Transition(state State, c Context, ev Event) (State, Context, bool) {
	tr, ok := table[key{state, ev.Type}]
	if !ok {
		return state, c, false
	}
	if tr.action != nil {
		c = tr.action(c, ev)
	}
	return tr.to, c, true
}

// Accepts reports whether state handles events of type et.
func Accepts(state State, et EventType) bool {
	_, ok := table[key{state, et}]
	return ok
}

// States lists every state, initial first.
func States() []State {
	return []State{StateIdle, StateValidating, StateProcessing, StateSucceeded, StateFailed}
}
