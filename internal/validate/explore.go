package validate

import (
	"context"
	"strings"

	"github.com/lherron/lkmig/internal/looker"
)

// noMatch is a filter value no real row carries.
const noMatch = "101010101"

// exploreQueryLimit is the row limit of generated explore queries.
const exploreQueryLimit = 20

// ExploreQuery builds a query selecting the explore's visible dimensions and
// measures, up to the attribute limit, with configured default filters.
func (v *Validator) ExploreQuery(e *looker.Explore) *looker.Query {
	q := &looker.Query{
		Model:   e.ModelName,
		View:    e.Name,
		Filters: map[string]string{},
	}
	_ = q.Attrs.Set("limit", exploreQueryLimit)

	cols := append(append([]looker.ExploreField(nil), e.Fields.Dimensions...), e.Fields.Measures...)
	if len(cols) > v.opts.AttributeLimit {
		cols = cols[:v.opts.AttributeLimit]
	}
	for _, col := range cols {
		if col.Hidden {
			continue
		}
		q.Fields = append(q.Fields, col.Name)
		if val, ok := v.opts.FieldDefaults[col.Name]; ok {
			q.Filters[col.Name] = val
		}
	}
	for name, val := range v.opts.ExploreDefaults[e.Name] {
		q.Filters[name] = val
	}

	if v.opts.FastCheck {
		if field := fastCheckField(e); field != "" {
			q.Filters[field] = noMatch
		} else {
			v.log.Warn().Str("explore", e.Name).Msg("no string dimension on base view, fast check disabled")
		}
	}
	return q
}

// fastCheckField returns the first string dimension of the explore's base
// view. The base view is the alias ending sql_table_name.
func fastCheckField(e *looker.Explore) string {
	parts := strings.Fields(e.SQLTableName)
	if len(parts) == 0 {
		return ""
	}
	alias := parts[len(parts)-1]
	for _, f := range e.Fields.Dimensions {
		if f.View == alias && f.Type == "string" {
			return f.Name
		}
	}
	return ""
}

// ExploreTarget names one explore to check.
type ExploreTarget struct {
	Model   string
	Explore string
}

// ExploreTargets returns the configured explores, or every explore of the
// selected models when none are configured.
func (v *Validator) ExploreTargets(ctx context.Context) ([]ExploreTarget, error) {
	var targets []ExploreTarget
	if len(v.opts.Explores) > 0 {
		for _, p := range v.opts.Explores {
			targets = append(targets, ExploreTarget{Model: p.From, Explore: p.To})
		}
		return targets, nil
	}

	models, err := v.models(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if !v.wantModel(m.Name) {
			continue
		}
		for _, e := range m.Explores {
			if e.Hidden && !v.opts.IncludeHidden {
				continue
			}
			targets = append(targets, ExploreTarget{Model: m.Name, Explore: e.Name})
		}
	}
	return targets, nil
}

// Explore checks a single explore.
func (v *Validator) Explore(ctx context.Context, t ExploreTarget) *Check {
	c := &Check{Kind: "explore", Target: t.Model + "::" + t.Explore}
	e, err := v.p.GetExplore(ctx, t.Model, t.Explore)
	if err != nil {
		v.log.Error().Err(err).Str("explore", c.Target).Msg("cannot get explore")
		return c.fail(err)
	}
	if e.ModelName == "" {
		e.ModelName = t.Model
	}
	if e.ID != "" {
		c.Target = e.ID
	}
	v.log.Info().
		Str("explore", c.Target).
		Int("attributes", len(e.Fields.Dimensions)+len(e.Fields.Measures)).
		Msg("checking explore")
	return v.run(ctx, c, v.ExploreQuery(e), fileStem(c.Target))
}

// Explores checks every target explore. The error is non-nil only when the
// targets cannot be listed.
func (v *Validator) Explores(ctx context.Context) ([]*Check, error) {
	targets, err := v.ExploreTargets(ctx)
	if err != nil {
		return nil, err
	}
	checks := make([]*Check, 0, len(targets))
	for _, t := range targets {
		if ctx.Err() != nil {
			return checks, ctx.Err()
		}
		checks = append(checks, v.Explore(ctx, t))
	}
	return checks, nil
}
