package validate

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lherron/lkmig/internal/looker"
)

// Keys the instance rejects on an inline query.
var inlineQueryStrip = []string{"client_id", "share_url", "expanded_share_url", "url"}

// Dashboards checks the configured dashboards, or every dashboard whose
// model is selected. The error is non-nil only when targets cannot be listed.
func (v *Validator) Dashboards(ctx context.Context) ([]*Check, error) {
	var modelNames []string
	if len(v.opts.Models) > 0 && len(v.opts.Dashboards) == 0 {
		modelNames = v.opts.Models
	} else {
		models, err := v.models(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			modelNames = append(modelNames, m.Name)
		}
	}

	type target struct {
		id    looker.ID
		model string
	}
	var targets []target
	if len(v.opts.Dashboards) > 0 {
		for _, p := range v.opts.Dashboards {
			targets = append(targets, target{id: looker.StringID(p.From + "::" + p.To), model: p.From})
		}
	} else {
		all, err := v.p.ListDashboards(ctx)
		if err != nil {
			return nil, fmt.Errorf("list dashboards: %w", err)
		}
		for _, d := range all {
			targets = append(targets, target{id: d.ID, model: dashboardModel(&d)})
		}
	}

	var checks []*Check
	for _, t := range targets {
		if t.model == "" || !slices.Contains(modelNames, t.model) {
			continue
		}
		if ctx.Err() != nil {
			return checks, ctx.Err()
		}
		v.log.Info().Str("dashboard", t.id.String()).Msg("checking dashboard")
		d, err := v.p.GetDashboard(ctx, t.id)
		if err != nil {
			c := &Check{Kind: "dashboard", Target: t.id.String()}
			v.log.Error().Err(err).Str("dashboard", c.Target).Msg("cannot get dashboard")
			checks = append(checks, c.fail(err))
			continue
		}
		if _, err := v.save(fileStem(d.ID.String())+"_dash.json", d); err != nil {
			v.log.Warn().Err(err).Msg("cannot save dashboard")
		}
		checks = append(checks, v.Dashboard(ctx, d)...)
	}
	return checks, nil
}

// dashboardModel returns the model of a LookML dashboard, "" for user
// defined dashboards.
func dashboardModel(d *looker.Dashboard) string {
	raw, ok := d.Attrs.Get("model")
	if !ok {
		return ""
	}
	return gjson.GetBytes(raw, "id").String()
}

// Dashboard runs every element query of d with the dashboard filter defaults
// applied through each element's listen bindings.
func (v *Validator) Dashboard(ctx context.Context, d *looker.Dashboard) []*Check {
	var checks []*Check
	for i := range d.Elements {
		el := &d.Elements[i]
		if el.Query == nil {
			v.log.Debug().Str("element", el.Title).Msg("skipping element without query")
			continue
		}
		c := &Check{Kind: "element", Target: d.ID.String() + "/" + el.Title}
		q := v.ElementQuery(d, el)
		stem := fileStem(d.ID.String()) + "_" + elementStem(el.Title)
		checks = append(checks, v.run(ctx, c, q, stem))
	}
	return checks
}

// ElementQuery copies the element's query and sets filter values from the
// dashboard filter defaults and the configured dashboard defaults.
func (v *Validator) ElementQuery(d *looker.Dashboard, el *looker.DashboardElement) *looker.Query {
	q := el.Query.Clone()
	q.ID = looker.ID{}
	q.Attrs.Delete(inlineQueryStrip...)
	if q.Filters == nil {
		q.Filters = map[string]string{}
	}

	listen := v.listen(el)
	for _, f := range d.Filters {
		field, ok := listen[f.Name]
		if !ok || f.DefaultValue == "" {
			continue
		}
		value, ok := filterDefault(&f)
		if !ok {
			v.log.Warn().
				Str("filter", f.Name).
				Str("default", f.DefaultValue).
				Msg("default value matches no enumeration")
			continue
		}
		q.Filters[field] = value
	}
	for _, field := range listen {
		if val, ok := v.opts.DashboardDefaults[field]; ok {
			q.Filters[field] = val
		}
	}
	return q
}

// listen maps dashboard filter names to the fields an element binds them to.
// From 5.18 the bindings live on the result maker's filterables.
func (v *Validator) listen(el *looker.DashboardElement) map[string]string {
	out := map[string]string{}
	if versionAtLeast(v.opts.ServerVersion, 5, 18) {
		if el.ResultMaker == nil {
			return out
		}
		raw, ok := el.ResultMaker.Attrs.Get("filterables")
		if !ok {
			return out
		}
		gjson.GetBytes(raw, "0.listen").ForEach(func(_, l gjson.Result) bool {
			out[l.Get("dashboard_filter_name").String()] = l.Get("field").String()
			return true
		})
		return out
	}

	raw, ok := el.Attrs.Get("listen")
	if !ok {
		v.log.Warn().Str("element", el.Title).Msg("listen bindings not found, check server_version")
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(k, field gjson.Result) bool {
		out[k.String()] = field.String()
		return true
	})
	return out
}

// filterDefault returns the value to send for a filter's default. Fields with
// enumerations only accept an enumerated value, matched by label or value
// after escaping underscores.
func filterDefault(f *looker.DashboardFilter) (string, bool) {
	enums := gjson.GetBytes(f.Field, "enumerations")
	if len(enums.Array()) == 0 {
		return f.DefaultValue, true
	}
	want := strings.ReplaceAll(f.DefaultValue, "_", "^_")
	match := ""
	enums.ForEach(func(_, en gjson.Result) bool {
		if en.Get("label").String() == want {
			match = en.Get("value").String()
		}
		if en.Get("value").String() == want {
			match = want
		}
		return true
	})
	return match, match != ""
}

func elementStem(title string) string {
	return strings.NewReplacer(" ", "", "\\", "", "/", "").Replace(title)
}

// versionAtLeast compares a dotted version against major.minor. Unparsable
// versions compare lower.
func versionAtLeast(version string, major, minor int) bool {
	parts := strings.SplitN(version, ".", 3)
	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	if maj != major {
		return maj > major
	}
	if len(parts) < 2 {
		return minor == 0
	}
	mnr, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return mnr >= minor
}
