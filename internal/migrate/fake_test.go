package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lherron/lkmig/internal/looker"
)

// call is one recorded platform operation.
type call struct {
	op string
	id string
}

// fakePlatform is an in-memory target instance. It hands out numeric ids,
// generates one default layout per dashboard and one layout component per
// element when a layout is created, and can fail the nth call of any op.
type fakePlatform struct {
	mu     sync.Mutex
	nextID int64
	calls  []call
	counts map[string]int
	failOn map[string]int
	// onCall runs before an op is handled.
	onCall func(op string)
	// strayComponent adds a component for an unknown element to new layouts.
	strayComponent bool
	// failRollback makes DeleteDashboard fail.
	failRollback bool

	live     map[string]string // object key -> owning dashboard id
	elements map[string][]looker.ID

	queries    []*looker.Query
	looks      []*looker.Look
	dashboards []*looker.Dashboard
	filters    []*looker.DashboardFilter
	elemSent   []*looker.DashboardElement
	layouts    []*looker.DashboardLayout
	patches    []*looker.DashboardLayoutComponent
}

var errInjected = errors.New("injected failure")

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		nextID:   1000,
		counts:   make(map[string]int),
		failOn:   make(map[string]int),
		live:     make(map[string]string),
		elements: make(map[string][]looker.ID),
	}
}

func (f *fakePlatform) begin(ctx context.Context, op, id string) error {
	f.calls = append(f.calls, call{op: op, id: id})
	f.counts[op]++
	if f.onCall != nil {
		f.onCall(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n, ok := f.failOn[op]; ok && n == f.counts[op] {
		return fmt.Errorf("%s #%d: %w", op, n, errInjected)
	}
	return nil
}

func (f *fakePlatform) newID() looker.ID {
	f.nextID++
	return looker.NumericID(f.nextID)
}

func (f *fakePlatform) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func (f *fakePlatform) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

// liveOwned returns the objects still alive that belong to dashboard id.
func (f *fakePlatform) liveOwned(id looker.ID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k, owner := range f.live {
		if owner == id.String() {
			out = append(out, k)
		}
	}
	return out
}

func (f *fakePlatform) CreateQuery(ctx context.Context, q *looker.Query) (*looker.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "CreateQuery", ""); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, q)
	out := q.Clone()
	out.ID = f.newID()
	f.live["query:"+out.ID.String()] = ""
	return out, nil
}

func (f *fakePlatform) CreateLook(ctx context.Context, l *looker.Look) (*looker.Look, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "CreateLook", ""); err != nil {
		return nil, err
	}
	f.looks = append(f.looks, l)
	out := *l
	out.ID = f.newID()
	f.live["look:"+out.ID.String()] = ""
	return &out, nil
}

func (f *fakePlatform) CreateDashboard(ctx context.Context, d *looker.Dashboard) (*looker.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "CreateDashboard", ""); err != nil {
		return nil, err
	}
	f.dashboards = append(f.dashboards, d)
	out := *d
	out.ID = f.newID()
	def := looker.DashboardLayout{ID: f.newID(), DashboardID: out.ID, Active: true}
	out.Layouts = []looker.DashboardLayout{def}
	f.live["dashboard:"+out.ID.String()] = out.ID.String()
	f.live["layout:"+def.ID.String()] = out.ID.String()
	return &out, nil
}

func (f *fakePlatform) DeleteDashboard(ctx context.Context, id looker.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "DeleteDashboard", id.String()); err != nil {
		return err
	}
	if f.failRollback {
		return errInjected
	}
	for k, owner := range f.live {
		if owner == id.String() {
			delete(f.live, k)
		}
	}
	return nil
}

func (f *fakePlatform) CreateDashboardFilter(ctx context.Context, flt *looker.DashboardFilter) (*looker.DashboardFilter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "CreateDashboardFilter", ""); err != nil {
		return nil, err
	}
	f.filters = append(f.filters, flt)
	out := *flt
	out.ID = f.newID()
	f.live["filter:"+out.ID.String()] = flt.DashboardID.String()
	return &out, nil
}

func (f *fakePlatform) CreateDashboardElement(ctx context.Context, e *looker.DashboardElement) (*looker.DashboardElement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "CreateDashboardElement", ""); err != nil {
		return nil, err
	}
	f.elemSent = append(f.elemSent, e)
	out := *e
	out.ID = f.newID()
	dash := e.DashboardID.String()
	f.elements[dash] = append(f.elements[dash], out.ID)
	f.live["element:"+out.ID.String()] = dash
	return &out, nil
}

func (f *fakePlatform) CreateDashboardLayout(ctx context.Context, l *looker.DashboardLayout) (*looker.DashboardLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "CreateDashboardLayout", ""); err != nil {
		return nil, err
	}
	f.layouts = append(f.layouts, l)
	out := *l
	out.ID = f.newID()
	dash := l.DashboardID.String()
	for _, el := range f.elements[dash] {
		out.Components = append(out.Components, looker.DashboardLayoutComponent{
			ID: f.newID(), DashboardLayoutID: out.ID, DashboardElementID: el,
		})
	}
	if f.strayComponent {
		out.Components = append(out.Components, looker.DashboardLayoutComponent{
			ID: f.newID(), DashboardLayoutID: out.ID, DashboardElementID: looker.NumericID(9999),
		})
	}
	f.live["layout:"+out.ID.String()] = dash
	return &out, nil
}

func (f *fakePlatform) UpdateDashboardLayoutComponent(ctx context.Context, id looker.ID, c *looker.DashboardLayoutComponent) (*looker.DashboardLayoutComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "UpdateDashboardLayoutComponent", id.String()); err != nil {
		return nil, err
	}
	f.patches = append(f.patches, c)
	out := *c
	return &out, nil
}

func (f *fakePlatform) DeleteDashboardLayout(ctx context.Context, id looker.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, "DeleteDashboardLayout", id.String()); err != nil {
		return err
	}
	delete(f.live, "layout:"+id.String())
	return nil
}

func intp(n int64) *int64 { return &n }

// sampleDashboard returns a dashboard in space "Ops" with one filter, a look
// element, a query element and one layout placing both.
func sampleDashboard() *looker.Dashboard {
	comp := func(id, el string, row, col int64) looker.DashboardLayoutComponent {
		return looker.DashboardLayoutComponent{
			ID:                 looker.StringID(id),
			DashboardLayoutID:  looker.StringID("L1"),
			DashboardElementID: looker.StringID(el),
			Row:                intp(row),
			Column:             intp(col),
			Width:              intp(12),
			Height:             intp(6 + row),
		}
	}
	return &looker.Dashboard{
		ID:    looker.StringID("D1"),
		Title: "Operations",
		Space: &looker.SpaceRef{ID: looker.StringID("S1"), Name: "Ops"},
		Attrs: looker.Attrs{
			"refresh_interval": []byte(`"1h"`),
			"background_color": []byte(`"#fff"`),
			"user_id":          []byte(`17`),
		},
		Filters: []looker.DashboardFilter{
			{ID: looker.StringID("F1"), DashboardID: looker.StringID("D1"), Name: "date", Model: "ops_model"},
		},
		Elements: []looker.DashboardElement{
			{
				ID:            looker.StringID("E1"),
				DashboardID:   looker.StringID("D1"),
				Title:         "Tickets",
				LookID:        looker.StringID("LK1"),
				Look:          &looker.Look{ID: looker.StringID("LK1"), Title: "Tickets"},
				ResultMakerID: looker.StringID("RM1"),
				ResultMaker:   &looker.ResultMaker{ID: looker.StringID("RM1"), Attrs: looker.Attrs{"filterables": []byte(`[]`)}},
			},
			{
				ID:          looker.StringID("E2"),
				DashboardID: looker.StringID("D1"),
				Title:       "Backlog",
				Query: &looker.Query{
					ID: looker.StringID("Q2"), Model: "ops_model", View: "tickets",
					Attrs: looker.Attrs{"client_id": []byte(`"abc"`), "share_url": []byte(`"x"`), "limit": []byte(`"10"`)},
				},
			},
		},
		Layouts: []looker.DashboardLayout{
			{
				ID:          looker.StringID("L1"),
				DashboardID: looker.StringID("D1"),
				Type:        "newspaper",
				Active:      true,
				Components:  []looker.DashboardLayoutComponent{comp("C1", "E1", 0, 0), comp("C2", "E2", 6, 0)},
			},
		},
	}
}

// targetLooks is the target snapshot sampleDashboard's look element resolves
// against when the prefix is "ACME " and Ops maps to space 70.
func targetLooks() []looker.Look {
	return []looker.Look{
		{ID: looker.NumericID(501), Title: "ACME Tickets", SpaceID: looker.NumericID(71)},
		{ID: looker.NumericID(502), Title: "Tickets", SpaceID: looker.NumericID(70)},
		{ID: looker.NumericID(503), Title: "ACME Tickets", SpaceID: looker.NumericID(70)},
		{ID: looker.NumericID(504), Title: "ACME Tickets", SpaceID: looker.NumericID(70)},
	}
}
