package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress stages reported to the caller while a run advances.
const (
	StageAnalyzing   = "analyzing"
	StageSummarizing = "summarizing"
	StageGenerating  = "generating"
)

// Progress is one progress notification from an in-flight run.
type Progress struct {
	CurrentChunk int
	TotalChunks  int
	Stage        string
}

// AnalysisRequest carries everything one analysis run needs. Template, when
// set, overrides the single-shot prompt pair (analysis personas); the chunked
// path always uses the built-in round and synthesis prompts.
type AnalysisRequest struct {
	Skeleton *Skeleton
	Meta     RepoMeta
	Model    string
	Readme   string
	Template *PromptTemplate
}

// ChunkingDecision is the planning verdict exposed for diagnostics.
type ChunkingDecision struct {
	NeedsChunking   bool
	EstimatedChunks int
}

var (
	ErrTooManyRuns      = errors.New("too many concurrent analyses")
	ErrRunInProgress    = errors.New("analysis already running for this repository")
	ErrNothingToAnalyze = errors.New("nothing to analyze: skeleton has no modules")
	ErrRunCancelled     = errors.New("analysis cancelled")
)

// CheckChunking decides whether a skeleton fits the model's budget in one
// call, using exactly the computation the planner uses, so the chunked and
// single-shot paths can never disagree on the threshold.
func CheckChunking(skeleton *Skeleton, model string, readmeLength int) ChunkingDecision {
	budget := ContextLimit(model)
	if !NeedsChunking(skeleton, budget, readmeLength) {
		return ChunkingDecision{NeedsChunking: false, EstimatedChunks: 1}
	}
	return ChunkingDecision{
		NeedsChunking:   true,
		EstimatedChunks: EstimateChunkCount(skeleton, budget, readmeLength),
	}
}

// Registry owns every in-flight analysis run, keyed by owner/repo. It is an
// explicit injected object rather than process-global state so independent
// registries can coexist, one per test if need be.
type Registry struct {
	backend Backend
	store   *RunStore
	logger  *Logger
	maxRuns int
	timeout time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewRegistry builds a registry enforcing a fixed ceiling on simultaneous
// runs and a wall-clock timeout per run. maxRuns <= 0 defaults to 3;
// timeout <= 0 defaults to 10 minutes.
func NewRegistry(backend Backend, store *RunStore, logger *Logger, maxRuns int, timeout time.Duration) *Registry {
	if maxRuns <= 0 {
		maxRuns = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Registry{
		backend: backend,
		store:   store,
		logger:  logger,
		maxRuns: maxRuns,
		timeout: timeout,
		running: map[string]context.CancelFunc{},
	}
}

// Cancel cancels the in-flight run for a repository key, if any. An in-flight
// backend call may still complete, but no further round starts afterward.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.running[key]
	if ok {
		cancel()
	}
	return ok
}

// Running returns the keys of all in-flight runs.
func (r *Registry) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.running))
	for key := range r.running {
		keys = append(keys, key)
	}
	return keys
}

// acquire registers a run slot for the key. A duplicate key is rejected
// rather than starting a second backend-call sequence for the same
// repository; the ceiling bounds total concurrent outbound load.
func (r *Registry) acquire(parent context.Context, key string) (context.Context, context.CancelFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[key]; ok {
		return nil, nil, ErrRunInProgress
	}
	if len(r.running) >= r.maxRuns {
		return nil, nil, ErrTooManyRuns
	}
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	r.running[key] = cancel
	return ctx, cancel, nil
}

func (r *Registry) release(key string, cancel context.CancelFunc) {
	r.mu.Lock()
	delete(r.running, key)
	r.mu.Unlock()
	cancel()
}

// Analyze runs the full pipeline for a request: it plans, then takes either
// the single-shot or the chunked path. This is the entry point the CLI uses.
func (r *Registry) Analyze(ctx context.Context, req AnalysisRequest, onToken func(string), progress func(Progress)) (string, error) {
	decision := CheckChunking(req.Skeleton, req.Model, len(req.Readme))
	if !decision.NeedsChunking {
		return r.AnalyzeSingleShot(ctx, req, onToken, progress)
	}
	return r.AnalyzeChunked(ctx, req, onToken, progress)
}

// AnalyzeChunked drives the multi-round protocol: one non-streaming backend
// call per chunk, each carrying the digest of every earlier summary, then one
// streaming synthesis call. Rounds are strictly sequential; each prompt
// depends on all prior rounds' output.
func (r *Registry) AnalyzeChunked(ctx context.Context, req AnalysisRequest, onToken func(string), progress func(Progress)) (string, error) {
	key := req.Meta.Key()
	runCtx, cancel, err := r.acquire(ctx, key)
	if err != nil {
		return "", err
	}
	defer r.release(key, cancel)

	snap := RunSnapshot{
		ID:        uuid.NewString(),
		Key:       key,
		Model:     req.Model,
		State:     StatePlanning,
		StartedAt: time.Now().UTC(),
	}
	r.transition(&snap, StatePlanning, nil)

	if len(req.Skeleton.Records) == 0 {
		r.transition(&snap, StateFailed, ErrNothingToAnalyze)
		return "", ErrNothingToAnalyze
	}

	budget := ContextLimit(req.Model)
	if !NeedsChunking(req.Skeleton, budget, len(req.Readme)) {
		// Planning says one call suffices; the single-shot path owns the
		// rest of this run. The run slot is already held, so go straight
		// to the worker.
		return r.singleShot(runCtx, &snap, req, onToken, progress)
	}

	overhead := EstimateBaseOverhead(req.Skeleton, len(req.Readme))
	chunks := SplitIntoChunks(req.Skeleton, budget, overhead)
	if len(chunks) == 0 {
		r.transition(&snap, StateFailed, ErrNothingToAnalyze)
		return "", ErrNothingToAnalyze
	}

	summaries := make([]ChunkSummary, 0, len(chunks))
	for _, chunk := range chunks {
		if err := r.checkCancelled(runCtx, &snap); err != nil {
			return "", err
		}

		snap.CurrentChunk = chunk.Index
		snap.TotalChunks = chunk.TotalChunks
		if chunk.Index == 0 {
			r.transition(&snap, StateAnalyzing, nil)
		} else {
			r.checkpoint(snap)
		}
		notify(progress, Progress{CurrentChunk: chunk.Index + 1, TotalChunks: chunk.TotalChunks, Stage: StageAnalyzing})

		prompt := BuildChunkRoundPrompt(req.Meta, chunk, summaries)
		response, err := r.backend.Complete(runCtx, chunkRoundSystemPrompt, prompt, req.Model)
		if err != nil {
			return "", r.failRun(&snap, err)
		}

		summary, ok := ParseChunkSummary(response, chunk.Index)
		if !ok {
			// Malformed round output degrades to an empty summary and
			// the run keeps going. Logged for diagnostics only.
			r.logger.Warn("chunk summary parse failed", map[string]interface{}{
				"key": key, "chunk": chunk.Index,
			})
		}
		summaries = append(summaries, summary)
	}

	if err := r.checkCancelled(runCtx, &snap); err != nil {
		return "", err
	}

	notify(progress, Progress{CurrentChunk: len(chunks), TotalChunks: len(chunks), Stage: StageSummarizing})
	r.transition(&snap, StateSynthesizing, nil)
	notify(progress, Progress{CurrentChunk: len(chunks), TotalChunks: len(chunks), Stage: StageGenerating})

	prompt := BuildSynthesisPrompt(req.Meta, req.Skeleton, summaries)
	report, err := r.backend.CompleteStreaming(runCtx, synthesisSystemPrompt, prompt, req.Model, onToken)
	if err != nil {
		return "", r.failRun(&snap, err)
	}

	r.transition(&snap, StateDone, nil)
	return report, nil
}

// AnalyzeSingleShot renders the whole skeleton into one prompt and makes a
// single streaming call. Only safe when CheckChunking said the skeleton fits.
func (r *Registry) AnalyzeSingleShot(ctx context.Context, req AnalysisRequest, onToken func(string), progress func(Progress)) (string, error) {
	key := req.Meta.Key()
	runCtx, cancel, err := r.acquire(ctx, key)
	if err != nil {
		return "", err
	}
	defer r.release(key, cancel)

	snap := RunSnapshot{
		ID:        uuid.NewString(),
		Key:       key,
		Model:     req.Model,
		State:     StatePlanning,
		StartedAt: time.Now().UTC(),
	}
	r.transition(&snap, StatePlanning, nil)
	return r.singleShot(runCtx, &snap, req, onToken, progress)
}

func (r *Registry) checkCancelled(ctx context.Context, snap *RunSnapshot) error {
	if err := ctx.Err(); err != nil {
		return r.failRun(snap, err)
	}
	return nil
}

// failRun records the terminal FAILED state and normalizes context expiry
// into the run-level timeout and cancellation conditions. A cancelled run
// gets this one terminal write and is never touched again.
func (r *Registry) failRun(snap *RunSnapshot, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("analysis timed out after %s", r.timeout)
	} else if errors.Is(err, context.Canceled) {
		err = ErrRunCancelled
	}
	r.transition(snap, StateFailed, err)
	return err
}

func (r *Registry) transition(snap *RunSnapshot, state RunState, cause error) {
	snap.State = state
	snap.UpdatedAt = time.Now().UTC()
	if cause != nil {
		snap.Error = cause.Error()
	}
	if err := r.store.CheckpointNow(*snap); err != nil {
		r.logger.Warn("checkpoint flush failed", map[string]interface{}{
			"key": snap.Key, "error": err.Error(),
		})
	}
	if cause != nil {
		r.logger.Error("analysis run failed", map[string]interface{}{
			"key": snap.Key, "state": string(state), "error": cause.Error(),
		})
	}
}

func (r *Registry) checkpoint(snap RunSnapshot) {
	snap.UpdatedAt = time.Now().UTC()
	if err := r.store.Checkpoint(snap); err != nil {
		r.logger.Warn("checkpoint failed", map[string]interface{}{
			"key": snap.Key, "error": err.Error(),
		})
	}
}

func notify(progress func(Progress), p Progress) {
	if progress != nil {
		progress(p)
	}
}
