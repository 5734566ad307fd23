package migrate

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lherron/lkmig/internal/bulk"
	"github.com/lherron/lkmig/internal/looker"
)

// Batch imports a catalog: every look first, then a single snapshot of the
// target's looks, then every dashboard. A failure is local to its object.
type Batch struct {
	Engine *Engine
	// AllLooks lists the target's live looks. It is called once, after the
	// looks of the batch are imported.
	AllLooks func(ctx context.Context) ([]looker.Look, error)
	// Parallel is the number of dashboards imported at once. Each dashboard
	// keeps its own rollback scope. Values below 2 import sequentially.
	Parallel int
	// Skip reports whether an earlier run already created an object of this
	// kind under the destination space name and title. It is only asked for
	// objects whose space resolves.
	Skip func(kind Kind, targetSpace, targetTitle string) bool
	// OnResult is called once per object as soon as its import finishes.
	// Calls are serialized.
	OnResult     func(*Result)
	ShowProgress bool
	Progress     io.Writer
	Log          zerolog.Logger

	mu sync.Mutex
}

// Summary aggregates the results of a batch, looks first, each group in
// input order.
type Summary struct {
	Results    []*Result
	Looks      *bulk.Result
	Dashboards *bulk.Result
}

// Count returns the number of results with status s.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// ExitCode is 0 when nothing failed, 5 when some objects failed and others
// succeeded, and 1 when every attempted object failed.
func (s *Summary) ExitCode() int {
	failed := s.Count(StatusFailed) + s.Count(StatusRolledBack)
	ok := s.Count(StatusCreated) + s.Count(StatusPlanned)
	switch {
	case failed == 0:
		return 0
	case ok > 0:
		return 5
	default:
		return 1
	}
}

// Run imports looks and dashboards. The error is non-nil only when the look
// snapshot cannot be taken; per-object failures are reported in the summary.
func (b *Batch) Run(ctx context.Context, looks []looker.Look, dashboards []looker.Dashboard) (*Summary, error) {
	sum := &Summary{}

	lookResults := make([]*Result, len(looks))
	lookIdx := make([]int, len(looks))
	for i := range lookIdx {
		lookIdx[i] = i
	}
	sum.Looks = bulk.Execute(ctx, &bulk.Operation{Ordered: true, ContinueOnError: true, ShowProgress: b.ShowProgress, Progress: b.Progress},
		lookIdx,
		func(i int) string { return looks[i].Title },
		func(ctx context.Context, i int) error {
			res := b.importOne(KindLook, looks[i].Title, looks[i].SpaceName(), func() (*Result, error) {
				return b.Engine.ImportLook(ctx, &looks[i])
			})
			lookResults[i] = res
			return resultErr(res)
		})
	sum.Results = append(sum.Results, compact(lookResults)...)

	if len(dashboards) == 0 {
		return sum, nil
	}

	var snapshot []looker.Look
	if b.AllLooks != nil {
		var err error
		snapshot, err = b.AllLooks(ctx)
		if err != nil {
			return sum, fmt.Errorf("snapshot target looks: %w", err)
		}
	}
	index := NewLookIndex(snapshot)
	if b.Engine.opts.DryRun {
		for _, r := range lookResults {
			if r != nil && r.Status == StatusPlanned {
				index.Add(r.TargetSpaceID, r.TargetTitle, r.TargetID)
			}
		}
	}
	b.Log.Debug().Int("looks", index.Len()).Msg("target look snapshot taken")

	dashResults := make([]*Result, len(dashboards))
	dashIdx := make([]int, len(dashboards))
	for i := range dashIdx {
		dashIdx[i] = i
	}
	jobs := b.Parallel
	if jobs < 1 {
		jobs = 1
	}
	sum.Dashboards = bulk.Execute(ctx, &bulk.Operation{Jobs: jobs, ContinueOnError: true, ShowProgress: b.ShowProgress, Progress: b.Progress},
		dashIdx,
		func(i int) string { return dashboards[i].Title },
		func(ctx context.Context, i int) error {
			res := b.importOne(KindDashboard, dashboards[i].Title, dashboards[i].SpaceName(), func() (*Result, error) {
				return b.Engine.ImportDashboard(ctx, &dashboards[i], index)
			})
			dashResults[i] = res
			return resultErr(res)
		})
	sum.Results = append(sum.Results, compact(dashResults)...)
	return sum, nil
}

func (b *Batch) importOne(kind Kind, title string, space string, run func() (*Result, error)) *Result {
	var res *Result
	if skip, target := b.alreadyImported(kind, space, title); skip {
		targetTitle := b.Engine.TargetTitle(title)
		res = &Result{
			Kind:        kind,
			SourceSpace: space,
			Title:       title,
			TargetTitle: targetTitle,
			TargetSpace: target,
			Status:      StatusSkipped,
			Err:         fmt.Errorf("%w: %s %q in %q", ErrAlreadyImported, kind, targetTitle, target),
		}
		b.Log.Info().Str(string(kind), targetTitle).Str("target_space", target).Msg("already imported, skipping")
	} else {
		res, _ = run()
	}

	if b.OnResult != nil {
		b.mu.Lock()
		b.OnResult(res)
		b.mu.Unlock()
	}
	return res
}

// alreadyImported resolves the destination of an object and asks Skip about
// it. Objects whose space does not resolve are left to the engine, which
// reports them as skipped.
func (b *Batch) alreadyImported(kind Kind, space, title string) (bool, string) {
	if b.Skip == nil {
		return false, ""
	}
	_, target, err := b.Engine.ResolveSpace(space)
	if err != nil {
		return false, ""
	}
	return b.Skip(kind, target, b.Engine.TargetTitle(title)), target
}

// resultErr maps a result onto the bulk executor's success/failure count.
// Skipped objects count as handled.
func resultErr(r *Result) error {
	switch r.Status {
	case StatusFailed, StatusRolledBack:
		return r.Err
	default:
		return nil
	}
}

func compact(results []*Result) []*Result {
	out := make([]*Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
