// Package validate runs content checks against an instance: every explore
// is queried with a generated field list, and every dashboard element query
// is run with the dashboard's default filter values applied. Queries and
// their results are saved as JSON files for inspection.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/lherron/lkmig/internal/catalog"
	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/remap"
)

// Platform is the subset of the API the checks use.
type Platform interface {
	ListLookMLModels(ctx context.Context) ([]looker.LookMLModel, error)
	GetExplore(ctx context.Context, model, explore string) (*looker.Explore, error)
	RunInlineQuery(ctx context.Context, format string, q *looker.Query) (json.RawMessage, error)
	ListDashboards(ctx context.Context) ([]looker.Dashboard, error)
	GetDashboard(ctx context.Context, id looker.ID) (*looker.Dashboard, error)
	DeleteLookMLModel(ctx context.Context, name string) error
}

// Options controls which content is checked and how queries are built.
type Options struct {
	// ProjectName limits model discovery to one LookML project.
	ProjectName string
	// Models limits checks to these models. Empty means all.
	Models []string
	// Explores lists model -> explore pairs to check instead of discovering
	// them.
	Explores remap.Table
	// Dashboards lists model -> dashboard name pairs to check instead of
	// listing every dashboard.
	Dashboards remap.Table
	// FieldDefaults are filter values for fields selected by explore queries.
	FieldDefaults map[string]string
	// ExploreDefaults are filter values keyed by explore name.
	ExploreDefaults map[string]map[string]string
	// DashboardDefaults override filter values of dashboard element queries,
	// keyed by field.
	DashboardDefaults map[string]string
	// AttributeLimit caps the number of fields an explore query selects.
	AttributeLimit int
	// FastCheck adds a filter that matches nothing, so the database only
	// compiles the query.
	FastCheck bool
	// IncludeHidden checks hidden explores too.
	IncludeHidden bool
	// ServerVersion selects where element listen bindings are read from.
	ServerVersion string
	// DataDir receives the query and result files. Empty disables saving.
	DataDir string
}

// Check is the outcome of one query.
type Check struct {
	Kind   string   `json:"kind"`
	Target string   `json:"target"`
	Rows   int      `json:"rows"`
	Files  []string `json:"files,omitempty"`
	Err    error    `json:"-"`
	Error  string   `json:"error,omitempty"`
}

// OK reports whether the query ran without errors.
func (c *Check) OK() bool { return c.Err == nil }

func (c *Check) fail(err error) *Check {
	c.Err = err
	c.Error = err.Error()
	return c
}

// Validator runs checks against one instance.
type Validator struct {
	p    Platform
	opts Options
	log  zerolog.Logger
}

// New returns a Validator.
func New(p Platform, opts Options, log zerolog.Logger) *Validator {
	if opts.AttributeLimit <= 0 {
		opts.AttributeLimit = 10000
	}
	return &Validator{p: p, opts: opts, log: log}
}

// models returns the models of the configured project.
func (v *Validator) models(ctx context.Context) ([]looker.LookMLModel, error) {
	all, err := v.p.ListLookMLModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	var out []looker.LookMLModel
	for _, m := range all {
		if v.opts.ProjectName == "" || m.ProjectName == v.opts.ProjectName {
			out = append(out, m)
		}
	}
	return out, nil
}

func (v *Validator) wantModel(name string) bool {
	return len(v.opts.Models) == 0 || slices.Contains(v.opts.Models, name)
}

// run executes q and counts the returned rows. Row-level SQL errors reported
// by the instance fail the check.
func (v *Validator) run(ctx context.Context, c *Check, q *looker.Query, stem string) *Check {
	if f, err := v.save(stem+"_query.json", q); err != nil {
		v.log.Warn().Err(err).Msg("cannot save query")
	} else if f != "" {
		c.Files = append(c.Files, f)
	}

	raw, err := v.p.RunInlineQuery(ctx, "json", q)
	if err != nil {
		return c.fail(fmt.Errorf("run query: %w", err))
	}
	rows := gjson.ParseBytes(raw)
	c.Rows = len(rows.Array())
	var sqlErrs []string
	rows.ForEach(func(_, row gjson.Result) bool {
		if e := row.Get("looker_error"); e.Exists() {
			sqlErrs = append(sqlErrs, e.String())
		}
		return true
	})
	if len(sqlErrs) > 0 {
		return c.fail(fmt.Errorf("sql error: %s", strings.Join(sqlErrs, "; ")))
	}

	if f, err := v.save(stem+"_result.json", raw); err != nil {
		v.log.Warn().Err(err).Msg("cannot save result")
	} else if f != "" {
		c.Files = append(c.Files, f)
	}
	v.log.Info().Str("target", c.Target).Int("rows", c.Rows).Msg("query ok")
	return c
}

func (v *Validator) save(name string, data interface{}) (string, error) {
	if v.opts.DataDir == "" {
		return "", nil
	}
	out, err := catalog.PrettyJSON(data)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(v.opts.DataDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(v.opts.DataDir, name)
	return path, os.WriteFile(path, append(out, '\n'), 0644)
}

// fileStem turns an id such as "model::name" into a file name prefix.
func fileStem(id string) string {
	return strings.ReplaceAll(id, ":", "_")
}
