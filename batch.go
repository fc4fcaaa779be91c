package ouicomply

import (
	"context"
)

// BatchResult pairs one request's outcome with its input index. Err is
// set only when the task never ran to completion (batch cancellation);
// analysis failures surface inside Result as a degraded result.
type BatchResult struct {
	Index  int             `json:"index"`
	Result *AnalysisResult `json:"result,omitempty"`
	Err    error           `json:"-"`
}

// AnalyzeAll fans the requests out concurrently and returns results
// index-aligned with the input. Concurrency is bounded by the analyzer's
// MaxConcurrency option (or the runner supplied via WithRunner). One
// item's failure never affects another's slot; cancelling ctx stops all
// in-flight work and marks unfinished slots with the context error.
func (a *Analyzer) AnalyzeAll(ctx context.Context, reqs []AnalysisRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	r := a.opts.Runner
	runCtx := ctx
	if r == nil {
		er := newErrGroupRunner(ctx, a.opts.MaxConcurrency)
		r = er
		runCtx = er.ctx
	}

	a.log.Debug("starting batch analysis", "requests", len(reqs), "max_concurrency", a.opts.MaxConcurrency)

	for i, req := range reqs {
		i, req := i, req // loop capture
		r.Go(func() error {
			if err := runCtx.Err(); err != nil {
				results[i] = BatchResult{Index: i, Err: err}
				return nil
			}
			results[i] = BatchResult{Index: i, Result: a.Analyze(runCtx, req)}
			return nil // per-item isolation: never fail the group
		})
	}

	// Tasks only ever return nil; Wait here is a join, not error collection.
	_ = r.Wait()

	a.log.Debug("batch analysis completed", "requests", len(reqs))
	return results
}
