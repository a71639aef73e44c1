package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubtaskStatusIsTerminal(t *testing.T) {
	terminal := []SubtaskStatus{SubtaskCompleted, SubtaskFailed, SubtaskTimeout}
	for _, s := range terminal {
		assert.Truef(t, s.IsTerminal(), "%s should be terminal", s)
	}

	nonTerminal := []SubtaskStatus{SubtaskPending, SubtaskAssigned}
	for _, s := range nonTerminal {
		assert.Falsef(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}
