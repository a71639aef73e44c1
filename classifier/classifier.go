// Package classifier maps a prompt to a task.Difficulty (§4.9): a
// pluggable external classifier with a lexical fallback that is always
// available.
package classifier

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/iris-network/coordinator/domain/task"
)

// Classifier maps a prompt to a Difficulty. Implementations must
// respect ctx cancellation/timeout.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (task.Difficulty, error)
}

// Classify honors an explicit caller-supplied difficulty without
// invoking c at all; otherwise it delegates to c and falls back to the
// Lexical classifier on any error (§4.9's silent fallback policy).
func Classify(ctx context.Context, c Classifier, prompt string, explicit *task.Difficulty) task.Difficulty {
	if explicit != nil {
		return *explicit
	}
	if c != nil {
		if d, err := c.Classify(ctx, prompt); err == nil && d != "" {
			return d
		}
	}
	return Lexical(prompt)
}

// keyword sets, bilingual (English/Spanish), curated per class.
var (
	advancedKeywords = []string{
		"architecture", "optimize", "algorithm", "proof", "theorem", "derive",
		"comprehensive", "in-depth", "research", "evaluate trade-offs",
		"arquitectura", "optimizar", "algoritmo", "demostrar", "teorema",
		"investigacion", "exhaustivo",
	}
	complexKeywords = []string{
		"compare", "analyze", "explain why", "design", "implement", "refactor",
		"summarize and", "multiple", "pros and cons",
		"comparar", "analizar", "explicar por que", "disenar", "implementar",
		"resumir y", "ventajas y desventajas",
	}
)

var (
	codeFencePattern = regexp.MustCompile("```")
	mathGlyphPattern = regexp.MustCompile(`[∑∫√π≈≠≤≥∞±×÷]`)
)

// Lexical is the always-available fallback scorer: a 0-100 score from
// keyword matches, length, subtask-count hints, and code/math glyphs,
// thresholded into Simple/Complex/Advanced.
func Lexical(prompt string) task.Difficulty {
	score := 0
	lower := strings.ToLower(prompt)

	for _, kw := range advancedKeywords {
		if strings.Contains(lower, kw) {
			score += 20
		}
	}
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			score += 15
		}
	}

	words := strings.Fields(prompt)
	switch {
	case len(words) > 500:
		score += 30
	case len(words) > 200:
		score += 20
	case len(words) > 80:
		score += 10
	}

	if n := estimatedSubtaskCount(prompt); n >= 5 {
		score += 30
	} else if n >= 3 {
		score += 15
	}

	if codeFencePattern.MatchString(prompt) {
		score += 15
	}
	if mathGlyphPattern.MatchString(prompt) {
		score += 15
	}
	if score > 100 {
		score = 100
	}

	switch {
	case score >= 70:
		return task.DifficultyAdvanced
	case score >= 40:
		return task.DifficultyComplex
	default:
		return task.DifficultySimple
	}
}

// estimatedSubtaskCount gives Lexical a cheap signal for "how many
// distinct asks does this prompt contain" without running the full
// Divider pipeline: counts enumerated-list markers and comma-joined
// imperative items.
func estimatedSubtaskCount(prompt string) int {
	lines := strings.Split(prompt, "\n")
	count := 0
	listMarker := regexp.MustCompile(`^\s*(\d+[.)]|[-*•]|[a-z]\))\s+`)
	for _, line := range lines {
		if listMarker.MatchString(line) {
			count++
		}
	}
	if count > 0 {
		return count
	}

	for _, r := range prompt {
		if r == ',' {
			count++
		}
	}
	if count > 0 {
		return count + 1
	}
	return 1
}

// ExternalConfig configures the preferred LLM-backed classifier.
type ExternalConfig struct {
	Endpoint string
	APIKey   string
}

// TextCompleter is the minimal capability an external classifier needs;
// implementations call out to a hosted completion endpoint.
type TextCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const externalPromptCharLimit = 1000

const systemPrompt = `Classify the user's request into exactly one of: Simple, Complex, Advanced.
Simple: a single, narrow question or short request.
Complex: requires comparison, multi-step reasoning, or synthesis across a few points.
Advanced: requires deep domain expertise, architecture-level reasoning, or rigorous proof.
Respond with exactly one word: Simple, Complex, or Advanced.`

// External classifies via a TextCompleter. It sets no timeout of its
// own (the TextCompleter bounds the call) and does not fall back to
// Lexical: errors are returned, and the package-level Classify applies
// the fallback.
type External struct {
	completer TextCompleter
}

// NewExternal constructs an External classifier over completer.
func NewExternal(completer TextCompleter) *External {
	return &External{completer: completer}
}

// Classify implements Classifier. Callers should still pass prompt
// through Classify(), which applies the fallback; External.Classify
// itself returns an error rather than silently falling back, so tests
// can observe the external call's outcome directly.
func (e *External) Classify(ctx context.Context, prompt string) (task.Difficulty, error) {
	truncated := prompt
	if r := []rune(truncated); len(r) > externalPromptCharLimit {
		truncated = string(r[:externalPromptCharLimit])
	}

	out, err := e.completer.Complete(ctx, systemPrompt, truncated)
	if err != nil {
		return "", err
	}

	return parseExternalResponse(out)
}

// parseExternalResponse matches tokens with priority
// Advanced > Complex > Simple, to avoid a false "Simple" on partial or
// noisy completions.
func parseExternalResponse(response string) (task.Difficulty, error) {
	lower := strings.ToLower(response)
	hasWord := func(word string) bool {
		for _, tok := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
			if tok == word {
				return true
			}
		}
		return false
	}

	switch {
	case hasWord("advanced"):
		return task.DifficultyAdvanced, nil
	case hasWord("complex"):
		return task.DifficultyComplex, nil
	case hasWord("simple"):
		return task.DifficultySimple, nil
	default:
		return "", errUnparsable
	}
}

var errUnparsable = unparsableError{}

type unparsableError struct{}

func (unparsableError) Error() string { return "unparsable classifier response" }
