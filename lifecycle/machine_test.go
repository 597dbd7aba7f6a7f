package lifecycle

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var allEvents = []Event{
	Start("x"),
	ValidateSuccess(),
	ValidateFailure("Invalid input"),
	ProcessSuccess("result"),
	ProcessFailure("Processing error"),
	Reset(),
}

func TestActor(t *testing.T) {
	t.Run("starts in idle", func(t *testing.T) {
		a := NewActor(nil)
		snap := a.Snapshot()
		assert.Equal(t, StateIdle, snap.State)
		assert.Nil(t, snap.Context.Input)
		assert.Nil(t, snap.Context.Output)
		assert.Nil(t, snap.Context.Error)
	})

	t.Run("START moves to validating and stores input", func(t *testing.T) {
		a := NewActor(nil)
		require.True(t, a.Send(Start("test-input")))
		snap := a.Snapshot()
		assert.Equal(t, StateValidating, snap.State)
		require.NotNil(t, snap.Context.Input)
		assert.Equal(t, "test-input", *snap.Context.Input)
	})

	t.Run("VALIDATE_SUCCESS moves to processing", func(t *testing.T) {
		a := NewActor(nil)
		a.Send(Start("test-input"))
		require.True(t, a.Send(ValidateSuccess()))
		assert.Equal(t, StateProcessing, a.Snapshot().State)
	})

	t.Run("PROCESS_SUCCESS moves to succeeded and stores output", func(t *testing.T) {
		a := NewActor(nil)
		a.Send(Start("test-input"))
		a.Send(ValidateSuccess())
		require.True(t, a.Send(ProcessSuccess("result")))

		snap := a.Snapshot()
		assert.Equal(t, StateSucceeded, snap.State)
		out, ok := snap.Output()
		assert.True(t, ok)
		assert.Equal(t, "result", out)
		_, failed := snap.Err()
		assert.False(t, failed)
	})

	t.Run("VALIDATE_FAILURE moves to failed and stores error", func(t *testing.T) {
		a := NewActor(nil)
		a.Send(Start("test-input"))
		require.True(t, a.Send(ValidateFailure("Invalid input")))

		snap := a.Snapshot()
		assert.Equal(t, StateFailed, snap.State)
		msg, ok := snap.Err()
		assert.True(t, ok)
		assert.Equal(t, "Invalid input", msg)
		_, produced := snap.Output()
		assert.False(t, produced)
	})

	t.Run("PROCESS_FAILURE moves to failed", func(t *testing.T) {
		a := NewActor(nil)
		a.Send(Start("test-input"))
		a.Send(ValidateSuccess())
		require.True(t, a.Send(ProcessFailure("Processing error")))

		snap := a.Snapshot()
		assert.Equal(t, StateFailed, snap.State)
		msg, _ := snap.Err()
		assert.Equal(t, "Processing error", msg)
	})

	t.Run("terminal states ignore every event", func(t *testing.T) {
		paths := map[State][]Event{
			StateSucceeded: {Start("in"), ValidateSuccess(), ProcessSuccess("out")},
			StateFailed:    {Start("in"), ValidateFailure("bad")},
		}
		for state, path := range paths {
			a := NewActor(nil)
			for _, ev := range path {
				a.Send(ev)
			}
			before := a.Snapshot()
			require.Equal(t, state, before.State)
			select {
			case <-a.Done():
			default:
				t.Fatalf("%s: done should be closed", state)
			}

			for _, ev := range allEvents {
				assert.False(t, a.Send(ev), "%s accepted %s", state, ev.Type)
			}
			assert.Equal(t, before, a.Snapshot())
		}
	})

	t.Run("subscribers see transitions only", func(t *testing.T) {
		a := NewActor(nil)
		var seen []State
		unsubscribe := a.Subscribe(func(s Snapshot) {
			seen = append(seen, s.State)
		})
		a.Send(ValidateSuccess())
		a.Send(Start("in"))
		a.Send(ValidateSuccess())
		unsubscribe()
		a.Send(ProcessSuccess("out"))
		assert.Equal(t, []State{StateValidating, StateProcessing}, seen)
	})

	t.Run("transitions are logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		a := NewActor(zap.New(core))
		a.Send(Start("in"))
		a.Send(ProcessSuccess("early"))
		assert.Equal(t, 1, logs.FilterMessage("lifecycle transition").Len())
		assert.Equal(t, 1, logs.FilterMessage("lifecycle event ignored").Len())
	})

	t.Run("actors share nothing", func(t *testing.T) {
		var wg sync.WaitGroup
		actors := make([]*Actor, 8)
		for i := range actors {
			actors[i] = NewActor(nil)
			wg.Add(1)
			go func(a *Actor, i int) {
				defer wg.Done()
				a.Send(Start(strings.Repeat("x", i)))
				if i%2 == 0 {
					a.Send(ValidateSuccess())
				}
			}(actors[i], i)
		}
		wg.Wait()
		for i, a := range actors {
			snap := a.Snapshot()
			assert.Equal(t, strings.Repeat("x", i), *snap.Context.Input)
			if i%2 == 0 {
				assert.Equal(t, StateProcessing, snap.State)
			} else {
				assert.Equal(t, StateValidating, snap.State)
			}
		}
	})
}

func TestTransition(t *testing.T) {
	accepted := map[State]map[EventType]State{
		StateIdle:       {EventStart: StateValidating},
		StateValidating: {EventValidateSuccess: StateProcessing, EventValidateFailure: StateFailed},
		StateProcessing: {EventProcessSuccess: StateSucceeded, EventProcessFailure: StateFailed},
	}

	for _, from := range States() {
		for _, ev := range allEvents {
			to, c, ok := Transition(from, Context{}, ev)
			want, handled := accepted[from][ev.Type]
			assert.Equal(t, handled, ok, "%s on %s", from, ev.Type)
			assert.Equal(t, handled, Accepts(from, ev.Type))
			if !handled {
				assert.Equal(t, from, to, "%s on %s", from, ev.Type)
				assert.Equal(t, Context{}, c)
				continue
			}
			assert.Equal(t, want, to)
			// the error field is written exactly on the way into failed
			assert.Equal(t, to == StateFailed, c.Error != nil, "%s on %s", from, ev.Type)
			assert.Equal(t, to == StateSucceeded, c.Output != nil, "%s on %s", from, ev.Type)
		}
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	in := "before"
	c := Context{Input: &in}
	_, next, ok := Transition(StateProcessing, c, ProcessFailure("boom"))
	require.True(t, ok)
	assert.Nil(t, c.Error)
	assert.Equal(t, "before", *next.Input)
	assert.Equal(t, "boom", *next.Error)
}

func TestMermaid(t *testing.T) {
	diagram := Mermaid()
	assert.True(t, strings.HasPrefix(diagram, "stateDiagram-v2\n    [*] --> idle\n"))
	for _, line := range []string{
		"idle --> validating: START",
		"validating --> processing: VALIDATE_SUCCESS",
		"validating --> failed: VALIDATE_FAILURE",
		"processing --> succeeded: PROCESS_SUCCESS",
		"processing --> failed: PROCESS_FAILURE",
		"succeeded --> [*]",
		"failed --> [*]",
	} {
		assert.Contains(t, diagram, line)
	}
}
