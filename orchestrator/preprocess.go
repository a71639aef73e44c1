package orchestrator

import (
	"context"

	"github.com/iris-network/coordinator/domain/task"
)

// PDFSummarizer is the pluggable external capability that turns an
// attached PDF into text the Divider/Classifier can work with (§4.12).
// Out of core scope; callers inject a concrete implementation or leave
// it nil to skip PDF enrichment entirely.
type PDFSummarizer interface {
	Summarize(ctx context.Context, pdf task.File) (string, error)
}

// preprocessResult is the outcome of applying §4.12 step 1 to a task's
// attached files.
type preprocessResult struct {
	enrichedPrompt string
	forceAdvanced  bool
	requireVision  bool
	failMessage    string // non-empty means the task must end Failed immediately
}

func (o *Orchestrator) preprocessFiles(ctx context.Context, prompt string, files []task.File) preprocessResult {
	if len(files) == 0 {
		return preprocessResult{enrichedPrompt: prompt}
	}

	result := preprocessResult{enrichedPrompt: prompt, forceAdvanced: true}

	var hasImage bool
	for _, f := range files {
		switch f.Kind {
		case task.FileKindPDF:
			if o.pdfSummarizer == nil {
				continue
			}
			summary, err := o.pdfSummarizer.Summarize(ctx, f)
			if err != nil {
				o.log.LogTaskEvent(ctx, "pdf_summarize_failed", "", map[string]interface{}{"file": f.Name, "error": err.Error()})
				continue
			}
			result.enrichedPrompt = result.enrichedPrompt + "\n\n[Document: " + f.Name + "]\n" + summary
		case task.FileKindImage:
			hasImage = true
		}
	}

	if hasImage {
		result.requireVision = true
		if !o.registry.AnyVisionCapable() {
			result.failMessage = "no vision-capable worker available to process attached image(s)"
		}
	}

	return result
}
