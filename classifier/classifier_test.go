package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iris-network/coordinator/domain/task"
)

func TestLexicalSimplePrompt(t *testing.T) {
	assert.Equal(t, task.DifficultySimple, Lexical("What time is it?"))
}

func TestLexicalComplexPrompt(t *testing.T) {
	d := Lexical("Compare and analyze the pros and cons of these two approaches")
	assert.Equal(t, task.DifficultyComplex, d)
}

func TestLexicalAdvancedPrompt(t *testing.T) {
	d := Lexical("Design a comprehensive architecture and derive a theorem proof for optimal scheduling, with an in-depth algorithm analysis and research evaluate trade-offs")
	assert.Equal(t, task.DifficultyAdvanced, d)
}

func TestLexicalCodeFenceBumpsScore(t *testing.T) {
	withCode := Lexical("explain this: ```func main() {}```")
	withoutCode := Lexical("explain this")
	assert.GreaterOrEqual(t, scoreRank(withCode), scoreRank(withoutCode))
}

func scoreRank(d task.Difficulty) int {
	switch d {
	case task.DifficultyAdvanced:
		return 2
	case task.DifficultyComplex:
		return 1
	default:
		return 0
	}
}

type stubClassifier struct {
	difficulty task.Difficulty
	err        error
}

func (s stubClassifier) Classify(ctx context.Context, prompt string) (task.Difficulty, error) {
	return s.difficulty, s.err
}

func TestClassifyHonorsExplicitDifficulty(t *testing.T) {
	explicit := task.DifficultyAdvanced
	d := Classify(context.Background(), stubClassifier{difficulty: task.DifficultySimple}, "anything", &explicit)
	assert.Equal(t, task.DifficultyAdvanced, d)
}

func TestClassifyUsesExternalClassifierWhenAvailable(t *testing.T) {
	d := Classify(context.Background(), stubClassifier{difficulty: task.DifficultyComplex}, "anything", nil)
	assert.Equal(t, task.DifficultyComplex, d)
}

func TestClassifyFallsBackToLexicalOnExternalError(t *testing.T) {
	d := Classify(context.Background(), stubClassifier{err: errors.New("unreachable")}, "What time is it?", nil)
	assert.Equal(t, task.DifficultySimple, d)
}

func TestClassifyFallsBackToLexicalWhenNoClassifier(t *testing.T) {
	d := Classify(context.Background(), nil, "What time is it?", nil)
	assert.Equal(t, task.DifficultySimple, d)
}

type stubCompleter struct {
	response string
	err      error
}

func (s stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, s.err
}

func TestExternalClassifyParsesResponse(t *testing.T) {
	ext := NewExternal(stubCompleter{response: "Advanced"})
	d, err := ext.Classify(context.Background(), "some prompt")
	assert.NoError(t, err)
	assert.Equal(t, task.DifficultyAdvanced, d)
}

func TestExternalClassifyPropagatesCompleterError(t *testing.T) {
	ext := NewExternal(stubCompleter{err: errors.New("timeout")})
	_, err := ext.Classify(context.Background(), "some prompt")
	assert.Error(t, err)
}

func TestExternalClassifyRejectsUnparsableResponse(t *testing.T) {
	ext := NewExternal(stubCompleter{response: "I am not sure"})
	_, err := ext.Classify(context.Background(), "some prompt")
	assert.Error(t, err)
}
