package divider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iris-network/coordinator/domain/task"
)

func TestDivideConsensusReturnsPromptThrice(t *testing.T) {
	pieces := Divide("explain gravity", task.ModeConsensus)
	require.Len(t, pieces, 3)
	for _, p := range pieces {
		assert.Equal(t, "explain gravity", p)
	}
}

func TestDivideSubtasksListMarkers(t *testing.T) {
	prompt := "Please do the following:\n1. Summarize the article\n2. List the key risks\n3. Draft a rebuttal"
	pieces := Divide(prompt, task.ModeSubtasks)
	require.Len(t, pieces, 3)
	for _, p := range pieces {
		assert.True(t, strings.HasPrefix(p, "Please do the following:"))
	}
	assert.Contains(t, pieces[0], "Summarize the article")
	assert.Contains(t, pieces[1], "List the key risks")
	assert.Contains(t, pieces[2], "Draft a rebuttal")
}

func TestDivideSubtasksEnumerationPhrase(t *testing.T) {
	prompt := "Extract the name, date and location from this document"
	pieces := Divide(prompt, task.ModeSubtasks)
	assert.GreaterOrEqual(t, len(pieces), 2)
}

func TestDivideSubtasksFallsBackToSinglePiece(t *testing.T) {
	prompt := "Explain gravity"
	pieces := Divide(prompt, task.ModeSubtasks)
	require.Len(t, pieces, 1)
	assert.Equal(t, prompt, pieces[0])
}

func TestDivideSubtasksEmptyPrompt(t *testing.T) {
	pieces := Divide("", task.ModeSubtasks)
	require.Len(t, pieces, 1)
	assert.Equal(t, "", pieces[0])
}

func TestDivideContextShortBodyIsSingleSection(t *testing.T) {
	pieces := Divide("a short document", task.ModeContext)
	require.Len(t, pieces, 1)
	assert.Contains(t, pieces[0], "[Section 1]")
	assert.Contains(t, pieces[0], "a short document")
}

func TestDivideContextSplitsLongBodyWithOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		b.WriteString("word ")
	}
	prompt := b.String()

	pieces := Divide(prompt, task.ModeContext)
	require.Greater(t, len(pieces), 1)
	assert.Contains(t, pieces[0], "[Section 1]")
	assert.Contains(t, pieces[1], "[Section 2]")
}

func TestDivideContextPreservesPreamble(t *testing.T) {
	var b strings.Builder
	b.WriteString("Given the following log:\n")
	for i := 0; i < 2000; i++ {
		b.WriteString("entry. ")
	}
	prompt := b.String()

	pieces := Divide(prompt, task.ModeContext)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.Contains(t, p, "Given the following log:")
	}
}
