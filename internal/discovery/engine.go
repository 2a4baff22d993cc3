// Package discovery drives the call-by-call mapping of a phone menu:
// plan a target path, place the call, poll it to completion, merge the
// transcript into the tree, persist, and decide whether to keep going.
package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ivrmap/internal/cost"
	"github.com/sells-group/ivrmap/internal/dialer"
	"github.com/sells-group/ivrmap/internal/enrich"
	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
	"github.com/sells-group/ivrmap/internal/planner"
	"github.com/sells-group/ivrmap/internal/store"
	"github.com/sells-group/ivrmap/pkg/bland"
)

// Caller is the call-orchestration capability the engine consumes.
// *dialer.Dialer implements it; tests substitute a fake.
type Caller interface {
	PlaceCall(ctx context.Context, identity, instructions string) (dialer.CallHandle, error)
	AwaitCompletion(ctx context.Context, handle dialer.CallHandle) (*bland.CallDetails, error)
	FetchTranscript(ctx context.Context, handle dialer.CallHandle, details *bland.CallDetails) ([]model.Utterance, error)
}

// RunOptions parameterizes one discovery run.
type RunOptions struct {
	Identity     string      // phone-like identifier, normalized before use
	MinCalls     int         // keep calling until at least this many calls this run
	MaxCalls     int         // hard stop for this run
	OverridePath model.Path  // optional operator-forced first target
	SeedTree     *model.Node // optional starting tree for a fresh session
}

// Engine runs discovery sessions. One Engine is safe to reuse across
// runs; each run is strictly single-flight (one call in the air at a
// time for its identity).
type Engine struct {
	store        store.Store
	caller       Caller
	extractor    enrich.Extractor // nil disables the enrichment pass
	calc         *cost.Calculator
	recentWindow int
}

// NewEngine creates an Engine. extractor may be nil.
func NewEngine(st store.Store, caller Caller, extractor enrich.Extractor, calc *cost.Calculator) *Engine {
	return &Engine{
		store:        st,
		caller:       caller,
		extractor:    extractor,
		calc:         calc,
		recentWindow: 3,
	}
}

// SetRecentWindow adjusts how many recent planned paths feed the
// planner's momentum heuristic.
func (e *Engine) SetRecentWindow(n int) {
	if n > 0 {
		e.recentWindow = n
	}
}

// Run executes discovery for one identity until the tree is complete
// (after MinCalls), MaxCalls is reached, or an iteration fails. The
// session is persisted after every successful iteration, so the first
// error aborts the run without losing earlier progress; re-invoking
// resumes from the stored tree. Cancellation is honored between
// iterations; an in-flight call is never abandoned mid-poll.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.Session, error) {
	identity, err := dialer.NormalizeIdentity(opts.Identity)
	if err != nil {
		return nil, err
	}
	if opts.MinCalls < 1 {
		opts.MinCalls = 1
	}
	if opts.MaxCalls < opts.MinCalls {
		opts.MaxCalls = opts.MinCalls
	}

	session, err := e.store.LoadSession(ctx, model.SessionKey(identity))
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = &model.Session{
			Identity:  identity,
			CreatedAt: time.Now().UTC(),
		}
	}
	session.MinCalls = opts.MinCalls
	session.MaxCalls = opts.MaxCalls

	root := session.LastRoot
	if root == nil && opts.SeedTree != nil {
		root = opts.SeedTree.Clone()
	}

	log := zap.L().With(zap.String("identity", identity))
	override := opts.OverridePath
	placed := 0

	for placed < opts.MaxCalls {
		if err := ctx.Err(); err != nil {
			return session, eris.Wrap(err, "discovery: run canceled")
		}

		visited, pending := graph.Walk(root)
		target := planner.NextPath(root, visited, pending, session.RecentPlannedPaths(e.recentWindow), override)
		override = nil
		if target == nil && root != nil && graph.IsComplete(root) && placed >= opts.MinCalls {
			break
		}

		log.Info("placing discovery call",
			zap.Int("call_number", placed+1),
			zap.String("target_path", target.Key()),
			zap.Int("pending_branches", len(pending)),
		)

		rec, merged, err := e.iterate(ctx, identity, target, root, visited, pending)
		if err != nil {
			return session, err
		}

		session.AppendCall(*rec, merged)
		if err := e.store.SaveSession(ctx, session); err != nil {
			return session, err
		}
		root = merged
		placed++

		if placed >= opts.MinCalls && graph.IsComplete(root) {
			log.Info("menu tree complete",
				zap.Int("calls", placed),
				zap.Int("nodes", root.CountNodes()),
				zap.Float64("total_cost", session.TotalCost),
			)
			break
		}
	}

	return session, nil
}

// iterate performs one full call cycle and returns the record and the
// merged tree. Nothing is persisted here; the caller owns the ledger.
func (e *Engine) iterate(ctx context.Context, identity string, target model.Path, root *model.Node, visited, pending model.PathList) (*model.CallRecord, *model.Node, error) {
	instructions := BuildInstructions(target, root, visited, pending)

	handle, err := e.caller.PlaceCall(ctx, identity, instructions)
	if err != nil {
		return nil, nil, err
	}

	details, err := e.caller.AwaitCompletion(ctx, handle)
	if err != nil {
		return nil, nil, err
	}

	utterances, err := e.caller.FetchTranscript(ctx, handle, details)
	if err != nil {
		return nil, nil, err
	}

	merged := graph.Merge(root, utterances)
	rec := e.buildRecord(handle, details, target, utterances)

	if e.extractor != nil {
		ex, err := e.extractor.Extract(ctx, utterances, graph.Render(merged))
		if err != nil {
			zap.L().Warn("enrichment failed, continuing without it",
				zap.String("call_id", handle.CallID),
				zap.Error(err),
			)
		} else {
			enrich.Apply(merged, rec, ex)
		}
	}

	return rec, merged, nil
}

// buildRecord assembles the immutable ledger entry for one call. When
// the provider omits the price, an estimate from the call duration is
// recorded and flagged as such.
func (e *Engine) buildRecord(handle dialer.CallHandle, details *bland.CallDetails, target model.Path, utterances []model.Utterance) *model.CallRecord {
	rec := &model.CallRecord{
		CallID:                 handle.CallID,
		Status:                 mapStatus(details.Status),
		AnsweredBy:             details.AnsweredBy,
		Price:                  details.Price,
		TargetPath:             target.Clone(),
		Transcript:             utterances,
		ConcatenatedTranscript: details.ConcatenatedTranscript,
	}
	if details.StartedAt != nil {
		rec.StartedAt = *details.StartedAt
	}
	if details.EndedAt != nil {
		rec.EndedAt = *details.EndedAt
	}
	if rec.Price == 0 && details.CallLength > 0 && e.calc != nil {
		rec.Price = e.calc.CallEstimate(details.CallLength)
		rec.PriceEstimated = true
	}
	return rec
}

// mapStatus converts a provider status string to the domain status.
// Both provider spellings of canceled map to the same value.
func mapStatus(s string) model.CallStatus {
	switch s {
	case "completed":
		return model.CallStatusCompleted
	case "failed":
		return model.CallStatusFailed
	case "canceled", "cancelled":
		return model.CallStatusCanceled
	case "queued":
		return model.CallStatusQueued
	case "in-progress":
		return model.CallStatusInProgress
	}
	return model.CallStatus(s)
}
