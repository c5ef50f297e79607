package procutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProcStateFromPSTable(t *testing.T) {
	table := "PID   STAT\n    1 S\n    2 SW\n  212 R\n 3454 Z\n"

	expectedStates := map[int]ProcessState{
		1:    StateInterruptibleSleep,
		2:    StateInterruptibleSleep | StateWaking,
		212:  StateRunning,
		3454: StateDefunct,
	}

	for pid, expectedState := range expectedStates {
		state, err := findProcStateFromPSTable(table, pid)
		require.NoError(t, err)
		assert.Equalf(t, expectedState, state, "unexpected state for PID %d", pid)
	}
}

func TestFindProcStateMissingPID(t *testing.T) {
	_, err := findProcStateFromPSTable("PID STAT\n 1 S\n", 42)
	require.ErrorContains(t, err, "not found")
}
