package lifecycle

import (
	"sync"

	"go.uber.org/zap"
)

type Snapshot struct {
	State   State
	Context Context
}

// Output returns the stored output, set only once the machine succeeded.
func (s Snapshot) Output() (string, bool) {
	if s.Context.Output == nil {
		return "", false
	}
	return *s.Context.Output, true
}

// Err returns the stored error message, set only once the machine failed.
func (s Snapshot) Err() (string, bool) {
	if s.Context.Error == nil {
		return "", false
	}
	return *s.Context.Error, true
}

// Actor holds one running instance of the machine. Send is synchronous and
// safe for concurrent use; instances share nothing.
type Actor struct {
	mu       sync.Mutex
	snapshot Snapshot
	subs     map[int]func(Snapshot)
	nextSub  int
	done     chan struct{}
	logger   *zap.Logger
}

// NewActor returns an actor in the initial state. A nil logger disables
// transition logging.
func NewActor(logger *zap.Logger) *Actor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actor{
		snapshot: Snapshot{State: Initial},
		subs:     make(map[int]func(Snapshot)),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Send applies ev and reports whether it caused a transition. Subscribers are
// notified after the transition, outside the actor's lock.
func (a *Actor) Send(ev Event) bool {
	a.mu.Lock()
	from := a.snapshot.State
	to, c, ok := Transition(from, a.snapshot.Context, ev)
	if !ok {
		a.mu.Unlock()
		a.logger.Debug("lifecycle event ignored",
			zap.String("state", from.String()), zap.String("event", string(ev.Type)))
		return false
	}
	a.snapshot = Snapshot{State: to, Context: c}
	snap := a.snapshot
	subs := make([]func(Snapshot), 0, len(a.subs))
	for _, f := range a.subs {
		subs = append(subs, f)
	}
	if to.IsTerminal() {
		close(a.done)
	}
	a.mu.Unlock()

	a.logger.Debug("lifecycle transition",
		zap.String("from", from.String()), zap.String("event", string(ev.Type)), zap.String("to", to.String()))
	for _, f := range subs {
		f(snap)
	}
	return true
}

func (a *Actor) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Subscribe registers f for every later transition and returns a function
// that removes it.
func (a *Actor) Subscribe(f func(Snapshot)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = f
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// Done is closed when the actor reaches a terminal state.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}
