package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/remap"
)

type fakeSource struct {
	looks      []looker.Look
	dashboards []looker.Dashboard
	failGet    map[string]bool
	gets       []string
}

func (f *fakeSource) ListLooks(context.Context) ([]looker.Look, error) { return f.looks, nil }

func (f *fakeSource) GetLook(_ context.Context, id looker.ID) (*looker.Look, error) {
	f.gets = append(f.gets, "look:"+id.String())
	if f.failGet[id.String()] {
		return nil, errors.New("boom")
	}
	for _, l := range f.looks {
		if l.ID.Equal(id) {
			full := l
			full.Query = &looker.Query{Model: "sales", View: "orders"}
			return &full, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeSource) ListDashboards(context.Context) ([]looker.Dashboard, error) {
	return f.dashboards, nil
}

func (f *fakeSource) GetDashboard(_ context.Context, id looker.ID) (*looker.Dashboard, error) {
	f.gets = append(f.gets, "dash:"+id.String())
	for _, d := range f.dashboards {
		if d.ID.Equal(id) {
			full := d
			return &full, nil
		}
	}
	return nil, errors.New("not found")
}

func look(id int64, title, space string, deleted bool) looker.Look {
	return looker.Look{ID: looker.NumericID(id), Title: title, Space: &looker.SpaceRef{Name: space}, Deleted: deleted}
}

func titles(looks []looker.Look) []string {
	var out []string
	for _, l := range looks {
		out = append(out, l.Title)
	}
	return out
}

func TestCollectLooks_FiltersBySpace(t *testing.T) {
	src := &fakeSource{looks: []looker.Look{
		look(1, "Revenue", "Sales", false),
		look(2, "Churn", "Marketing", false),
		look(3, "Old", "Sales", true),
	}}
	c := NewCollector(src, zerolog.Nop())

	tests := []struct {
		name   string
		spaces remap.Table
		want   []string
	}{
		{"empty table selects all", nil, []string{"Revenue", "Churn"}},
		{"wildcard selects all", remap.Table{{From: "", To: "X"}}, []string{"Revenue", "Churn"}},
		{"exact key", remap.Table{{From: "Sales", To: "Sales_T"}}, []string{"Revenue"}},
		{"no match", remap.Table{{From: "Finance", To: ""}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CollectLooks(context.Background(), tt.spaces)
			if err != nil {
				t.Fatalf("CollectLooks: %v", err)
			}
			if diff := cmp.Diff(tt.want, titles(got)); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
			for _, l := range got {
				if l.Query == nil {
					t.Errorf("look %q has no query detail", l.Title)
				}
			}
		})
	}
}

func TestCollectLooks_SkipsFailedDetail(t *testing.T) {
	src := &fakeSource{
		looks:   []looker.Look{look(1, "A", "S", false), look(2, "B", "S", false)},
		failGet: map[string]bool{"1": true},
	}
	got, err := NewCollector(src, zerolog.Nop()).CollectLooks(context.Background(), nil)
	if err != nil {
		t.Fatalf("CollectLooks: %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, titles(got)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
}

func TestAllLooks_IgnoresSpaceButDropsDeleted(t *testing.T) {
	src := &fakeSource{looks: []looker.Look{
		look(1, "A", "S1", false),
		look(2, "B", "S2", true),
		look(3, "C", "S3", false),
	}}
	got, err := NewCollector(src, zerolog.Nop()).AllLooks(context.Background())
	if err != nil {
		t.Fatalf("AllLooks: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "C"}, titles(got)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if len(src.gets) != 0 {
		t.Errorf("AllLooks fetched detail: %v", src.gets)
	}
}

func TestCollectDashboards_RequiresSpace(t *testing.T) {
	src := &fakeSource{dashboards: []looker.Dashboard{
		{ID: looker.NumericID(1), Title: "Ops", Space: &looker.SpaceRef{Name: "Shared"}},
		{ID: looker.NumericID(2), Title: "Orphan"},
		{ID: looker.NumericID(3), Title: "Gone", Space: &looker.SpaceRef{Name: "Shared"}, Deleted: true},
	}}
	got, err := NewCollector(src, zerolog.Nop()).CollectDashboards(context.Background(), nil)
	if err != nil {
		t.Fatalf("CollectDashboards: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Ops" {
		t.Fatalf("got %+v, want only Ops", got)
	}
	if diff := cmp.Diff([]string{"dash:1"}, src.gets); diff != "" {
		t.Errorf("detail fetches mismatch (-want +got):\n%s", diff)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		kind         Kind
		space, title string
		want         string
	}{
		{KindLook, "Sales Team", "Monthly Revenue", "Sales_Team__Monthly_Revenue_look.json"},
		{KindDashboard, "Ops", "Q1/Q2 Review", "Ops__Q1_Q2_Review_dash.json"},
	}
	for _, tt := range tests {
		if got := FileName(tt.kind, tt.space, tt.title); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.space, tt.title, got, tt.want)
		}
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	var l looker.Look
	if err := json.Unmarshal([]byte(`{"id": 12345678901234, "title": "Revenue", "space": {"id": 3, "name": "Sales"},
		"query": {"model": "sales", "view": "orders", "limit": "500"}, "is_run_on_load": true}`), &l); err != nil {
		t.Fatal(err)
	}
	var d looker.Dashboard
	if err := json.Unmarshal([]byte(`{"id": "9", "title": "Ops", "space": {"name": "Shared"},
		"dashboard_elements": [{"id": "1", "query": {"model": "ops", "view": "tickets"}}],
		"dashboard_layouts": [{"id": "2", "dashboard_layout_components": [{"id": "3", "dashboard_element_id": "1", "row": 0}]}]}`), &d); err != nil {
		t.Fatal(err)
	}

	saved, err := Save(dir, []looker.Look{l}, []looker.Dashboard{d})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saved.Files) != 2 || len(saved.Renamed) != 0 {
		t.Fatalf("Save wrote %v, renamed %v", saved.Files, saved.Renamed)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Sales__Revenue_look.json"))
	if err != nil {
		t.Fatalf("read look doc: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "\n   \"id\": 12345678901234,") {
		t.Errorf("look doc not indented with three spaces or id altered:\n%s", text)
	}
	if strings.Index(text, `"id"`) > strings.Index(text, `"title"`) {
		t.Errorf("keys not sorted:\n%s", text)
	}

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Looks) != 1 || len(cat.Dashboards) != 1 {
		t.Fatalf("Load got %d looks, %d dashboards", len(cat.Looks), len(cat.Dashboards))
	}
	if got := cat.Looks[0].ID.String(); got != "12345678901234" {
		t.Errorf("look id = %s", got)
	}
	if got := cat.Dashboards[0].Elements[0].Query.View; got != "tickets" {
		t.Errorf("element query view = %q", got)
	}

	single, err := LoadFile(filepath.Join(dir, "Shared__Ops_dash.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(single.Dashboards) != 1 || len(single.Looks) != 0 {
		t.Errorf("LoadFile got %+v", single)
	}
}

func TestLoad_SkipsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "Sales__Broken_look.json")
	if err := os.WriteFile(bad, []byte(`{"title": "Broken", "space": {"name": "Sales"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	good := `{"title": "Revenue", "space": {"name": "Sales"}, "query": {"model": "sales", "view": "orders"}}`
	if err := os.WriteFile(filepath.Join(dir, "Sales__Revenue_look.json"), []byte(good), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Shared__Torn_dash.json"), []byte(`{"title": `), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Looks) != 1 || cat.Looks[0].Title != "Revenue" {
		t.Errorf("valid look not loaded: %+v", cat.Looks)
	}
	if len(cat.Rejected) != 2 {
		t.Fatalf("Rejected = %+v, want 2 entries", cat.Rejected)
	}
	if cat.Rejected[0].Path != bad || cat.Rejected[0].Kind != KindLook {
		t.Errorf("first rejection = %+v", cat.Rejected[0])
	}
	if !strings.Contains(cat.Rejected[0].Err.Error(), "Sales__Broken_look.json") {
		t.Errorf("error does not name the file: %v", cat.Rejected[0].Err)
	}
	if cat.Rejected[1].Kind != KindDashboard {
		t.Errorf("second rejection = %+v", cat.Rejected[1])
	}

	if _, err := LoadFile(bad); err == nil {
		t.Error("LoadFile accepted a look without a query")
	}
}

func TestSave_CollidingNamesKeepEveryObject(t *testing.T) {
	dir := t.TempDir()
	q := &looker.Query{Model: "m", View: "v"}
	looks := []looker.Look{
		{ID: looker.NumericID(1), Title: "Q1 Revenue", Space: &looker.SpaceRef{Name: "Sales"}, Query: q},
		{ID: looker.NumericID(2), Title: "Q1_Revenue", Space: &looker.SpaceRef{Name: "Sales"}, Query: q},
		{Title: "Q1/Revenue", Space: &looker.SpaceRef{Name: "Sales"}, Query: q},
	}

	saved, err := Save(dir, looks, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := []string{
		filepath.Join(dir, "Sales__Q1_Revenue_look.json"),
		filepath.Join(dir, "Sales__Q1_Revenue_2_look.json"),
		// No id, and "_2" is taken by the id-suffixed name.
		filepath.Join(dir, "Sales__Q1_Revenue_3_look.json"),
	}
	if diff := cmp.Diff(want, saved.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if len(saved.Renamed) != 2 || saved.Renamed[0].Title != "Q1_Revenue" {
		t.Errorf("Renamed = %+v", saved.Renamed)
	}

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Looks) != 3 {
		t.Errorf("loaded %d looks, want 3", len(cat.Looks))
	}
}

func TestLoadFile_RejectsUnknownName(t *testing.T) {
	if _, err := LoadFile("/tmp/whatever.json"); err == nil {
		t.Fatal("LoadFile accepted a file without a look/dash suffix")
	}
}
