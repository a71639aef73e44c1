// Package divider splits a prompt into independent subtask prompts per
// task.Mode (§4.10).
package divider

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iris-network/coordinator/domain/task"
)

const (
	contextChunkSize = 4000
	contextOverlap   = 200
)

// Divide implements divide(prompt, mode) -> [subtask_prompt].
func Divide(prompt string, mode task.Mode) []string {
	switch mode {
	case task.ModeConsensus:
		return consensus(prompt)
	case task.ModeContext:
		return splitContext(prompt)
	default:
		return splitSubtasks(prompt)
	}
}

// consensus returns the same prompt three times (§4.10).
func consensus(prompt string) []string {
	return []string{prompt, prompt, prompt}
}

var preamblePattern = regexp.MustCompile(`(?im)^(.*?:)\s*$`)

// detectPreamble finds a leading line that looks like an introductory
// header (ends in a colon, e.g. "Given the following:").
func detectPreamble(prompt string) (preamble, rest string) {
	lines := strings.SplitN(strings.TrimLeft(prompt, "\n"), "\n", 2)
	if len(lines) == 0 {
		return "", prompt
	}
	if m := preamblePattern.FindStringSubmatch(strings.TrimSpace(lines[0])); m != nil {
		if len(lines) == 2 {
			return m[1], lines[1]
		}
		return m[1], ""
	}
	return "", prompt
}

var listMarkerPattern = regexp.MustCompile(`^\s*(\d+[.)]|[a-zA-Z]\)|[-*•])\s+(.*)$`)

// splitSubtasks applies §4.10's three heuristics in order, falling back
// to a single subtask containing the whole prompt.
func splitSubtasks(prompt string) []string {
	if strings.TrimSpace(prompt) == "" {
		return []string{prompt}
	}

	preamble, body := detectPreamble(prompt)

	if pieces := splitByListMarkers(body); len(pieces) >= 2 {
		return withPreamble(preamble, pieces)
	}
	if pieces := splitByEnumerationPhrase(body); len(pieces) >= 2 {
		return withPreamble(preamble, pieces)
	}
	if pieces := splitByTaskSentences(body); len(pieces) >= 2 {
		return withPreamble(preamble, pieces)
	}
	return []string{prompt}
}

func withPreamble(preamble string, pieces []string) []string {
	if preamble == "" {
		return pieces
	}
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = preamble + "\n" + strings.TrimSpace(p)
	}
	return out
}

// splitByListMarkers handles heuristic 1: enumerated-list patterns.
func splitByListMarkers(body string) []string {
	var pieces []string
	for _, line := range strings.Split(body, "\n") {
		if m := listMarkerPattern.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[2]); item != "" {
				pieces = append(pieces, item)
			}
		}
	}
	return pieces
}

var enumerationPhrasePattern = regexp.MustCompile(`(?i)(?:extract|analyze|identify|find|list|describe)\s+(.+)`)
var enumSplitPattern = regexp.MustCompile(`,|\band\b|\by\b`)

// splitByEnumerationPhrase handles heuristic 2: "Extract/analyze/
// identify/find/list/describe X, Y, and Z", splitting items on commas
// and and/y.
func splitByEnumerationPhrase(body string) []string {
	m := enumerationPhrasePattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	var pieces []string
	for _, item := range enumSplitPattern.Split(m[1], -1) {
		item = strings.TrimSpace(strings.Trim(item, ".;"))
		if item != "" {
			pieces = append(pieces, item)
		}
	}
	return pieces
}

var taskSentencePattern = regexp.MustCompile(`(?i)^\s*(what|why|how|who|where|which|when|[a-z]+(e|ed|ing)?)\b`)

// splitByTaskSentences handles heuristic 3: a multi-sentence split that
// keeps every sentence starting with a letter. The pattern does not
// tell verbs or wh-words apart from other leading words; only sentences
// that start with a non-letter are dropped.
func splitByTaskSentences(body string) []string {
	sentences := strings.FieldsFunc(body, func(r rune) bool {
		return r == '.' || r == '\n'
	})
	var pieces []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if taskSentencePattern.MatchString(s) {
			pieces = append(pieces, s)
		}
	}
	return pieces
}

// splitContext implements §4.10's Context mode: fixed chunk size,
// breaking at the nearest sentence boundary past the midpoint, with
// overlap and a preamble + [Section k] prefix on each chunk.
func splitContext(prompt string) []string {
	preamble, body := detectPreamble(prompt)
	if len(body) <= contextChunkSize {
		return []string{labelSection(preamble, 1, body)}
	}

	var chunks []string
	pos := 0
	section := 1
	for pos < len(body) {
		end := pos + contextChunkSize
		if end >= len(body) {
			end = len(body)
		} else {
			end = nearestSentenceBoundary(body, pos, end)
		}
		chunks = append(chunks, labelSection(preamble, section, body[pos:end]))
		section++

		if end >= len(body) {
			break
		}
		pos = end - contextOverlap
		if pos < 0 {
			pos = 0
		}
	}
	return chunks
}

func labelSection(preamble string, section int, text string) string {
	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n")
	}
	b.WriteString("[Section ")
	b.WriteString(strconv.Itoa(section))
	b.WriteString("]\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

// nearestSentenceBoundary searches forward from the midpoint of
// [start,end) for a sentence-ending punctuation mark, falling back to
// end if none is found before the chunk boundary.
func nearestSentenceBoundary(body string, start, end int) int {
	midpoint := start + (end-start)/2
	for i := midpoint; i < end && i < len(body); i++ {
		if body[i] == '.' || body[i] == '!' || body[i] == '?' {
			return i + 1
		}
	}
	return end
}
