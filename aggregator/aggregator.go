// Package aggregator combines completed subtask outputs into a Task's
// final_response, per task.Mode (§4.16).
package aggregator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/iris-network/coordinator/domain/task"
)

// Aggregate dispatches to the mode-specific aggregation strategy.
// completed must contain only task.SubtaskCompleted subtasks.
func Aggregate(mode task.Mode, originalPrompt string, completed []task.Subtask) string {
	switch mode {
	case task.ModeConsensus:
		return consensus(completed)
	case task.ModeContext:
		return context(completed)
	default:
		return subtasks(originalPrompt, completed)
	}
}

// subtasks implements §4.16's Subtasks aggregation: a single completed
// subtask passes through unchanged; otherwise a titled document with
// one section per subtask.
func subtasks(originalPrompt string, completed []task.Subtask) string {
	if len(completed) == 1 {
		return completed[0].Response
	}
	if len(completed) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(inferDocumentTitle(originalPrompt))
	b.WriteString("\n\n")
	for i, st := range completed {
		b.WriteString("## ")
		b.WriteString(inferSectionTitle(st.Prompt, i+1))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(st.Response))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func inferDocumentTitle(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "compare") || strings.Contains(lower, "comparison"):
		return "# Comparison"
	case strings.Contains(lower, "extract") || strings.Contains(lower, "identify"):
		return "# Extracted Information"
	case strings.Contains(lower, "summar"):
		return "# Summary"
	case strings.Contains(lower, "analy"):
		return "# Analysis Results"
	default:
		return "# Results"
	}
}

var leadingVerbPattern = regexp.MustCompile(`(?i)^(extract|analyze|identify|find|list|describe|summarize|compare)\s+(.{1,60})`)

func inferSectionTitle(subtaskPrompt string, index int) string {
	trimmed := strings.TrimSpace(subtaskPrompt)
	if m := leadingVerbPattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimRight(m[2], ".,;: ")
	}
	return "Part " + strconv.Itoa(index)
}

const lowConsensusThreshold = 0.30

// consensus picks the response with the highest mean Jaccard similarity
// to the others, prepending a low-consensus note if that mean is below
// threshold with at least 3 responses (§4.16).
func consensus(completed []task.Subtask) string {
	if len(completed) == 0 {
		return ""
	}
	if len(completed) == 1 {
		return completed[0].Response
	}

	wordSets := make([]map[string]struct{}, len(completed))
	for i, st := range completed {
		wordSets[i] = wordSet(st.Response)
	}

	bestIdx := 0
	bestMean := -1.0
	for i := range completed {
		sum := 0.0
		for j := range completed {
			if i == j {
				continue
			}
			sum += jaccard(wordSets[i], wordSets[j])
		}
		mean := sum / float64(len(completed)-1)
		if mean > bestMean {
			bestMean = mean
			bestIdx = i
		}
	}

	winner := completed[bestIdx].Response
	if bestMean < lowConsensusThreshold && len(completed) >= 3 {
		return "Note: low consensus among worker responses.\n\n" + winner
	}
	return winner
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(w, ".,!?;:\"'()")] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var sectionIndexPattern = regexp.MustCompile(`\[Section (\d+)\]`)

// context sorts completed subtasks by their detected [Section k] index
// and concatenates them under headings, with a synthesis footer
// (§4.16).
func context(completed []task.Subtask) string {
	if len(completed) == 0 {
		return ""
	}

	sorted := make([]task.Subtask, len(completed))
	copy(sorted, completed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sectionIndex(sorted[i].Prompt) < sectionIndex(sorted[j].Prompt)
	})

	var b strings.Builder
	for i, st := range sorted {
		b.WriteString(fmt.Sprintf("## Section %d\n\n", i+1))
		b.WriteString(strings.TrimSpace(st.Response))
		b.WriteString("\n\n")
	}
	b.WriteString("---\nSynthesized from ")
	b.WriteString(strconv.Itoa(len(sorted)))
	b.WriteString(" section(s).")
	return b.String()
}

func sectionIndex(prompt string) int {
	m := sectionIndexPattern.FindStringSubmatch(prompt)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
