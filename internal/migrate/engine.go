// Package migrate reconstructs looks and dashboards on a target instance,
// remapping spaces and model names and rolling back partially built
// dashboards.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/remap"
)

// Platform is the write side of the target instance.
type Platform interface {
	CreateQuery(ctx context.Context, q *looker.Query) (*looker.Query, error)
	CreateLook(ctx context.Context, l *looker.Look) (*looker.Look, error)
	CreateDashboard(ctx context.Context, d *looker.Dashboard) (*looker.Dashboard, error)
	DeleteDashboard(ctx context.Context, id looker.ID) error
	CreateDashboardFilter(ctx context.Context, f *looker.DashboardFilter) (*looker.DashboardFilter, error)
	CreateDashboardElement(ctx context.Context, e *looker.DashboardElement) (*looker.DashboardElement, error)
	CreateDashboardLayout(ctx context.Context, l *looker.DashboardLayout) (*looker.DashboardLayout, error)
	UpdateDashboardLayoutComponent(ctx context.Context, id looker.ID, c *looker.DashboardLayoutComponent) (*looker.DashboardLayoutComponent, error)
	DeleteDashboardLayout(ctx context.Context, id looker.ID) error
}

// Options control how source objects are rewritten.
type Options struct {
	// NamePrefix is prepended to every look and dashboard title.
	NamePrefix string
	SpaceRemap remap.Table
	ModelRemap remap.Table
	// DryRun resolves spaces and look references without creating anything.
	DryRun bool
}

// Engine imports one object at a time. It holds no per-object state, so one
// engine may serve concurrent imports.
type Engine struct {
	p      Platform
	spaces map[string]looker.ID
	opts   Options
	log    zerolog.Logger
}

// Look attributes copied verbatim into a new look.
var lookCopyAttrs = []string{"can", "description", "is_run_on_load"}

// Query attributes that only make sense on the instance that issued them.
var queryDropAttrs = []string{"client_id", "share_url", "expanded_share_url", "url", "slug"}

// NewEngine returns an engine writing to p. spaces maps destination space
// names to ids.
func NewEngine(p Platform, spaces map[string]looker.ID, opts Options, log zerolog.Logger) *Engine {
	return &Engine{
		p:      p,
		spaces: spaces,
		opts:   opts,
		log:    log.With().Str("component", "migrate").Logger(),
	}
}

// SpaceCatalog turns a space listing into a name to id map. When names
// repeat the last space in listing order wins.
func SpaceCatalog(spaces []looker.Space) map[string]looker.ID {
	out := make(map[string]looker.ID, len(spaces))
	for _, s := range spaces {
		out[s.Name] = s.ID
	}
	return out
}

// TargetTitle returns the title an object gets on the target.
func (e *Engine) TargetTitle(title string) string {
	return e.opts.NamePrefix + title
}

// ResolveSpace returns the destination space for a source space name.
func (e *Engine) ResolveSpace(sourceSpace string) (looker.ID, string, error) {
	id, name, ok := remap.ResolveNamespace(sourceSpace, e.opts.SpaceRemap, e.spaces)
	if !ok {
		if name == "" {
			return looker.ID{}, "", fmt.Errorf("%w: no remap rule for space %q", ErrNamespaceUnresolved, sourceSpace)
		}
		return looker.ID{}, name, fmt.Errorf("%w: space %q (from %q) does not exist on target", ErrNamespaceUnresolved, name, sourceSpace)
	}
	return id, name, nil
}

// ImportLook copies a look and its query. The returned result is never nil;
// the error is non-nil whenever the look was not created.
//
// A query created for a look whose own creation then fails is left behind.
func (e *Engine) ImportLook(ctx context.Context, src *looker.Look) (*Result, error) {
	start := time.Now()
	res := &Result{
		Kind:        KindLook,
		SourceID:    src.ID,
		SourceSpace: src.SpaceName(),
		Title:       src.Title,
		TargetTitle: e.TargetTitle(src.Title),
		State:       StateInit,
	}
	log := e.log.With().Str("look", src.Title).Str("space", res.SourceSpace).Logger()
	defer func() { res.Elapsed = time.Since(start) }()

	spaceID, spaceName, err := e.ResolveSpace(res.SourceSpace)
	res.TargetSpace = spaceName
	if err != nil {
		log.Warn().Err(err).Msg("skipping look")
		return res.skip(StateNamespaceResolved, err)
	}
	res.TargetSpaceID = spaceID
	res.State = StateNamespaceResolved

	if src.Query == nil {
		err := fmt.Errorf("%w: look %q has no query", ErrInvalidSource, src.Title)
		log.Error().Err(err).Msg("look import failed")
		return res.fail(StateQueryCreated, err)
	}

	if e.opts.DryRun {
		res.Status = StatusPlanned
		return res, nil
	}

	q, err := e.createQuery(ctx, src.Query)
	if err != nil {
		log.Error().Err(err).Msg("look import failed")
		return res.fail(StateQueryCreated, err)
	}
	res.State = StateQueryCreated

	payload := &looker.Look{
		Title:   res.TargetTitle,
		SpaceID: spaceID,
		QueryID: q.ID,
		Attrs:   src.Attrs.Pick(lookCopyAttrs...),
	}
	created, err := e.p.CreateLook(ctx, payload)
	if err != nil {
		err = fmt.Errorf("create look %q: %w", res.TargetTitle, err)
		log.Error().Err(err).Str("orphan_query_id", q.ID.String()).Msg("look import failed")
		return res.fail(StateLookCreated, err)
	}

	res.TargetID = created.ID
	res.State = StateComplete
	res.Status = StatusCreated
	log.Info().Str("id", created.ID.String()).Str("title", res.TargetTitle).Str("target_space", spaceName).Msg("look created")
	return res, nil
}

// copyQuery returns a create payload for a copy of q on the target.
func (e *Engine) copyQuery(q *looker.Query) *looker.Query {
	out := q.Clone()
	out.ID = looker.ID{}
	out.Attrs.Delete(queryDropAttrs...)
	out.Model = remap.Model(q.Model, e.opts.ModelRemap)
	return out
}

func (e *Engine) createQuery(ctx context.Context, q *looker.Query) (*looker.Query, error) {
	created, err := e.p.CreateQuery(ctx, e.copyQuery(q))
	if err != nil {
		return nil, fmt.Errorf("create query on %s.%s: %w", q.Model, q.View, err)
	}
	e.log.Debug().Str("query_id", created.ID.String()).Str("model", created.Model).Msg("query created")
	return created, nil
}

func (r *Result) skip(step State, err error) (*Result, error) {
	r.Status = StatusSkipped
	r.FailedStep = step
	r.Err = err
	return r, err
}

func (r *Result) fail(step State, err error) (*Result, error) {
	r.Status = StatusFailed
	r.FailedStep = step
	r.Err = err
	return r, err
}
