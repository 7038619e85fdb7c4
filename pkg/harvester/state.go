package harvester

import "fmt"

// State is a step of the per-source harvest cycle
type State string

const (
	StateIdle          State = "idle"
	StateLoading       State = "loading"
	StateFetching      State = "fetching"
	StateValidating    State = "validating"
	StateWriting       State = "writing"
	StateCheckpointing State = "checkpointing"
	StateDone          State = "done"
	StateFailed        State = "failed"
	StateInterrupted   State = "interrupted"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateInterrupted
}

// transitions lists the legal successors of each non-terminal state
var transitions = map[State][]State{
	StateIdle:          {StateLoading},
	StateLoading:       {StateFetching, StateFailed, StateInterrupted},
	StateFetching:      {StateValidating, StateFailed, StateInterrupted},
	StateValidating:    {StateWriting, StateFailed, StateInterrupted},
	StateWriting:       {StateCheckpointing, StateFailed, StateInterrupted},
	StateCheckpointing: {StateFetching, StateDone, StateFailed, StateInterrupted},
}

// CanTransition reports whether from -> to is a legal step
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Observer is notified of every state change of a source
type Observer func(source string, from, to State)

// machine tracks the state of one source
type machine struct {
	source   string
	state    State
	observer Observer
}

func newMachine(source string, observer Observer) *machine {
	return &machine{source: source, state: StateIdle, observer: observer}
}

func (m *machine) to(next State) {
	if !CanTransition(m.state, next) {
		panic(fmt.Sprintf("illegal transition %s -> %s for %s", m.state, next, m.source))
	}
	prev := m.state
	m.state = next
	if m.observer != nil {
		m.observer(m.source, prev, next)
	}
}
