package harvester

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateLoading, true},
		{StateLoading, StateFetching, true},
		{StateFetching, StateValidating, true},
		{StateValidating, StateWriting, true},
		{StateWriting, StateCheckpointing, true},
		{StateCheckpointing, StateFetching, true},
		{StateCheckpointing, StateDone, true},
		{StateFetching, StateInterrupted, true},
		{StateWriting, StateFailed, true},
		{StateIdle, StateFetching, false},
		{StateFetching, StateWriting, false},
		{StateWriting, StateFetching, false},
		{StateWriting, StateDone, false},
		{StateDone, StateFetching, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateDone, StateFailed, StateInterrupted} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{StateIdle, StateLoading, StateFetching, StateValidating, StateWriting, StateCheckpointing} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestMachinePanicsOnIllegalTransition(t *testing.T) {
	m := newMachine("KAFKA", nil)
	assert.Panics(t, func() { m.to(StateDone) })
}
