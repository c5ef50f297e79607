// Package procutils probes the system process table, allowing stale lock
// detection to distinguish live lock owners from dead or defunct ones.
package procutils

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type ProcessState uint32

const (
	StateUninterruptibleSleep ProcessState = 1 << iota
	StateRunning
	StateInterruptibleSleep
	StateStopped
	StateTracingStop
	StateDead
	StateDefunct
	StateWaking
	StateIdle
)

var stateStringToState = map[rune]ProcessState{
	'D': StateUninterruptibleSleep,
	'R': StateRunning,
	'S': StateInterruptibleSleep,
	'T': StateStopped,
	't': StateTracingStop,
	'X': StateDead,
	'x': StateDead,
	'Z': StateDefunct,
	'W': StateWaking,
	'I': StateIdle,
}

// GetPIDState obtains the `stat` flags from the system process table for a
// given PID. This is a rather expensive operation, and should be used with
// caution.
func GetPIDState(pid int) (ProcessState, error) {
	stdout := new(bytes.Buffer)
	cmd := exec.Command("ps", "ax", "-o", "pid,stat")
	cmd.Stdout = stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("failed executing process: %w", err)
	}

	return findProcStateFromPSTable(stdout.String(), pid)
}

func findProcStateFromPSTable(table string, pid int) (ProcessState, error) {
	for _, line := range strings.Split(table, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		procID, err := strconv.Atoi(fields[0])
		if err != nil || procID != pid {
			continue
		}

		var state ProcessState
		for _, flag := range fields[1] {
			if value, ok := stateStringToState[flag]; ok {
				state |= value
			}
		}
		return state, nil
	}

	return 0, fmt.Errorf("process not found on process table")
}
