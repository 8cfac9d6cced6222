package app

import (
	"context"
	"strings"
)

// singleShot is the worker behind the single-shot path: render the whole
// skeleton into one prompt body, substitute it into the template pair and
// make one streaming call. The caller already holds the run slot and has
// recorded the PLANNING transition.
func (r *Registry) singleShot(ctx context.Context, snap *RunSnapshot, req AnalysisRequest, onToken func(string), progress func(Progress)) (string, error) {
	if err := r.checkCancelled(ctx, snap); err != nil {
		return "", err
	}

	tmpl := DefaultSingleShotTemplate()
	if req.Template != nil {
		tmpl = *req.Template
	}

	body := BuildSingleShotContext(req.Skeleton, req.Meta, req.Readme)
	userPrompt := tmpl.User
	if strings.Contains(userPrompt, ContextPlaceholder) {
		userPrompt = strings.ReplaceAll(userPrompt, ContextPlaceholder, body)
	} else {
		userPrompt = userPrompt + "\n\n" + body
	}

	snap.TotalChunks = 1
	r.transition(snap, StateSynthesizing, nil)
	notify(progress, Progress{CurrentChunk: 1, TotalChunks: 1, Stage: StageGenerating})

	report, err := r.backend.CompleteStreaming(ctx, tmpl.System, userPrompt, req.Model, onToken)
	if err != nil {
		return "", r.failRun(snap, err)
	}

	r.transition(snap, StateDone, nil)
	return report, nil
}
