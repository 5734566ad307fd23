package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/remap"
)

// Dashboard display attributes copied onto the new dashboard shell.
var dashboardCopyAttrs = []string{
	"hidden",
	"refresh_interval",
	"load_configuration",
	"background_color",
	"show_title",
	"title_color",
	"show_filters_bar",
	"tile_background_color",
	"text_tile_text_color",
	"query_timezone",
	"can",
}

// dashboardRun is the state of one dashboard import.
type dashboardRun struct {
	e        *Engine
	src      *looker.Dashboard
	looks    *LookIndex
	res      *Result
	log      zerolog.Logger
	spaceID  looker.ID
	shell    *looker.Dashboard
	defaults []looker.DashboardLayout
	elements *ElementMap
}

// ImportDashboard rebuilds src on the target: shell, filters, elements,
// layouts, then removal of the server generated default layouts. Look
// elements are resolved through looks. Any failure after the shell exists
// deletes the shell before returning.
//
// Once the shell is created the import no longer observes cancellation of
// ctx; it always runs to completion or rollback.
func (e *Engine) ImportDashboard(ctx context.Context, src *looker.Dashboard, looks *LookIndex) (*Result, error) {
	start := time.Now()
	r := &dashboardRun{
		e:     e,
		src:   src,
		looks: looks,
		res: &Result{
			Kind:        KindDashboard,
			SourceID:    src.ID,
			SourceSpace: src.SpaceName(),
			Title:       src.Title,
			TargetTitle: e.TargetTitle(src.Title),
			State:       StateInit,
		},
		elements: newElementMap(),
	}
	r.log = e.log.With().Str("dashboard", src.Title).Str("space", r.res.SourceSpace).Logger()
	defer func() { r.res.Elapsed = time.Since(start) }()

	spaceID, spaceName, err := e.ResolveSpace(r.res.SourceSpace)
	r.res.TargetSpace = spaceName
	if err != nil {
		r.log.Warn().Err(err).Msg("skipping dashboard")
		return r.res.skip(StateNamespaceResolved, err)
	}
	r.spaceID = spaceID
	r.res.TargetSpaceID = spaceID
	r.res.State = StateNamespaceResolved

	if e.opts.DryRun {
		return r.plan()
	}

	if err := r.createShell(ctx); err != nil {
		r.log.Error().Err(err).Msg("dashboard import failed")
		return r.res.fail(StateShellCreated, err)
	}
	r.res.State = StateShellCreated

	ctx = context.WithoutCancel(ctx)
	steps := []struct {
		state State
		run   func(context.Context) error
	}{
		{StateFiltersCreated, r.createFilters},
		{StateElementsCreated, r.createElements},
		{StateLayoutsCreated, r.createLayouts},
		{StateDefaultsDeleted, r.deleteDefaults},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return r.rollback(ctx, step.state, err)
		}
		r.res.State = step.state
		r.log.Debug().Stringer("state", step.state).Msg("dashboard step done")
	}

	r.res.State = StateComplete
	r.res.Status = StatusCreated
	r.log.Info().
		Str("id", r.shell.ID.String()).
		Str("title", r.res.TargetTitle).
		Str("target_space", spaceName).
		Int("elements", r.elements.Len()).
		Msg("dashboard created")
	return r.res, nil
}

// plan checks what a real import would need without creating anything.
func (r *dashboardRun) plan() (*Result, error) {
	for i := range r.src.Elements {
		el := &r.src.Elements[i]
		if el.LookID.IsZero() {
			continue
		}
		if _, err := r.resolveLook(el); err != nil {
			r.log.Warn().Err(err).Msg("dashboard would fail")
			return r.res.fail(StateElementsCreated, err)
		}
	}
	r.res.Status = StatusPlanned
	return r.res, nil
}

func (r *dashboardRun) createShell(ctx context.Context) error {
	payload := &looker.Dashboard{
		Title:   r.res.TargetTitle,
		SpaceID: r.spaceID,
		Attrs:   r.src.Attrs.Pick(dashboardCopyAttrs...),
	}
	shell, err := r.e.p.CreateDashboard(ctx, payload)
	if err != nil {
		return fmt.Errorf("create dashboard %q: %w", r.res.TargetTitle, err)
	}
	r.shell = shell
	r.defaults = shell.Layouts
	r.res.TargetID = shell.ID
	r.log.Debug().Str("id", shell.ID.String()).Int("default_layouts", len(shell.Layouts)).Msg("dashboard shell created")
	return nil
}

func (r *dashboardRun) createFilters(ctx context.Context) error {
	for _, src := range r.src.Filters {
		f := src
		f.ID = looker.ID{}
		f.DashboardID = r.shell.ID
		f.Model = remap.Model(src.Model, r.e.opts.ModelRemap)
		f.Attrs = src.Attrs.Clone()

		created, err := r.e.p.CreateDashboardFilter(ctx, &f)
		if err != nil {
			return fmt.Errorf("create filter %q: %w", src.Name, err)
		}
		r.log.Debug().Str("filter", src.Name).Str("id", created.ID.String()).Msg("filter created")
	}
	return nil
}

func (r *dashboardRun) resolveLook(el *looker.DashboardElement) (looker.ID, error) {
	if el.Look == nil {
		return looker.ID{}, fmt.Errorf("%w: element %s references look %s without its definition",
			ErrLookUnresolved, el.ID, el.LookID)
	}
	title := r.e.TargetTitle(el.Look.Title)
	id, ok := r.looks.Find(r.spaceID, title)
	if !ok {
		return looker.ID{}, fmt.Errorf("%w: no look %q in space %q", ErrLookUnresolved, title, r.res.TargetSpace)
	}
	return id, nil
}

// copyElement returns a create payload for src with source-only ids removed.
func (r *dashboardRun) copyElement(src *looker.DashboardElement) looker.DashboardElement {
	el := *src
	el.ID = looker.ID{}
	el.Look = nil
	el.DashboardID = r.shell.ID
	el.Attrs = src.Attrs.Clone()
	if src.ResultMaker != nil {
		rm := *src.ResultMaker
		rm.Attrs = src.ResultMaker.Attrs.Clone()
		if !src.ResultMakerID.IsZero() {
			rm.ID = looker.ID{}
		}
		el.ResultMaker = &rm
	}
	el.ResultMakerID = looker.ID{}
	return el
}

func (r *dashboardRun) createElements(ctx context.Context) error {
	for i := range r.src.Elements {
		src := &r.src.Elements[i]
		el := r.copyElement(src)

		switch {
		case !src.LookID.IsZero():
			lookID, err := r.resolveLook(src)
			if err != nil {
				r.log.Warn().Err(err).Msg("look reference unresolved")
				return err
			}
			el.LookID = lookID
		case src.Query != nil:
			q, err := r.e.createQuery(ctx, src.Query)
			if err != nil {
				return fmt.Errorf("element %q: %w", src.Title, err)
			}
			el.Query = nil
			el.QueryID = q.ID
		case !src.QueryID.IsZero():
			return fmt.Errorf("%w: element %s has query_id %s but no query definition", ErrInvalidSource, src.ID, src.QueryID)
		}

		created, err := r.e.p.CreateDashboardElement(ctx, &el)
		if err != nil {
			return fmt.Errorf("create element %q: %w", src.Title, err)
		}
		r.elements.Add(created.ID, src.ID)
		r.log.Debug().Str("element", src.Title).Str("old_id", src.ID.String()).Str("id", created.ID.String()).Msg("element created")
	}
	return nil
}

func (r *dashboardRun) createLayouts(ctx context.Context) error {
	for i := range r.src.Layouts {
		src := &r.src.Layouts[i]
		payload := *src
		payload.ID = looker.ID{}
		payload.Components = nil
		payload.DashboardID = r.shell.ID
		payload.Attrs = src.Attrs.Clone()

		created, err := r.e.p.CreateDashboardLayout(ctx, &payload)
		if err != nil {
			return fmt.Errorf("create layout: %w", err)
		}
		r.log.Debug().Str("id", created.ID.String()).Int("components", len(created.Components)).Msg("layout created")

		if err := r.placeComponents(ctx, src, created); err != nil {
			return err
		}
	}
	return nil
}

// placeComponents copies the geometry of each source component onto the
// server generated component for the same element. Every generated component
// must match exactly one source component and the other way round.
func (r *dashboardRun) placeComponents(ctx context.Context, src, created *looker.DashboardLayout) error {
	used := make([]bool, len(src.Components))
	for _, comp := range created.Components {
		oldElement, ok := r.elements.Old(comp.DashboardElementID)
		if !ok {
			return fmt.Errorf("%w: component %s references element %s not created by this import",
				ErrCorrelation, comp.ID, comp.DashboardElementID)
		}
		idx := findComponent(src.Components, oldElement)
		if idx < 0 {
			return fmt.Errorf("%w: no source component for element %s", ErrCorrelation, oldElement)
		}
		if used[idx] {
			return fmt.Errorf("%w: source component for element %s matched twice", ErrCorrelation, oldElement)
		}
		used[idx] = true

		patch := src.Components[idx]
		patch.Attrs = src.Components[idx].Attrs.Clone()
		patch.ID = comp.ID
		patch.DashboardLayoutID = created.ID
		patch.DashboardElementID = comp.DashboardElementID
		if _, err := r.e.p.UpdateDashboardLayoutComponent(ctx, comp.ID, &patch); err != nil {
			return fmt.Errorf("update layout component %s: %w", comp.ID, err)
		}
	}
	for i, ok := range used {
		if !ok {
			return fmt.Errorf("%w: source component for element %s has no target component",
				ErrCorrelation, src.Components[i].DashboardElementID)
		}
	}
	return nil
}

func findComponent(components []looker.DashboardLayoutComponent, elementID looker.ID) int {
	for i := range components {
		if components[i].DashboardElementID.Equal(elementID) {
			return i
		}
	}
	return -1
}

// deleteDefaults removes the layouts the server created with the shell, but
// only once source layouts have replaced them.
func (r *dashboardRun) deleteDefaults(ctx context.Context) error {
	if len(r.src.Layouts) == 0 {
		return nil
	}
	for _, l := range r.defaults {
		if err := r.e.p.DeleteDashboardLayout(ctx, l.ID); err != nil {
			return fmt.Errorf("delete default layout %s: %w", l.ID, err)
		}
	}
	return nil
}

func (r *dashboardRun) rollback(ctx context.Context, step State, cause error) (*Result, error) {
	r.res.State = StateError
	r.res.FailedStep = step
	r.log.Error().Err(cause).Stringer("step", step).Str("id", r.shell.ID.String()).Msg("dashboard import failed, rolling back")

	if err := r.e.p.DeleteDashboard(ctx, r.shell.ID); err != nil {
		err = errors.Join(cause, fmt.Errorf("rollback: delete dashboard %s: %w", r.shell.ID, err))
		r.log.Error().Err(err).Msg("rollback failed, dashboard left on target")
		r.res.Status = StatusFailed
		r.res.Err = err
		return r.res, err
	}

	r.res.State = StateRolledBack
	r.res.Status = StatusRolledBack
	r.res.Err = cause
	r.res.TargetID = looker.ID{}
	return r.res, cause
}
