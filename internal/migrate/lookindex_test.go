package migrate

import (
	"testing"

	"github.com/lherron/lkmig/internal/looker"
)

func TestLookIndex_Find(t *testing.T) {
	idx := NewLookIndex([]looker.Look{
		{ID: looker.NumericID(1), Title: "ACME Revenue", SpaceID: looker.NumericID(7)},
		{ID: looker.NumericID(2), Title: "ACME Revenue", SpaceID: looker.NumericID(8)},
		{ID: looker.NumericID(3), Title: "ACME Revenue", SpaceID: looker.NumericID(7)},
		{ID: looker.NumericID(4), Title: "ACME Churn", Space: &looker.SpaceRef{ID: looker.StringID("7")}},
		{ID: looker.NumericID(5), Title: "No space"},
	})

	tests := []struct {
		name   string
		space  looker.ID
		title  string
		want   string
		wantOK bool
	}{
		{"first match wins", looker.NumericID(7), "ACME Revenue", "1", true},
		{"other space", looker.NumericID(8), "ACME Revenue", "2", true},
		{"id encoding ignored", looker.StringID("7"), "ACME Revenue", "1", true},
		{"space from embedded ref", looker.NumericID(7), "ACME Churn", "4", true},
		{"title must match exactly", looker.NumericID(7), "acme revenue", "", false},
		{"space must match", looker.NumericID(9), "ACME Revenue", "", false},
		{"zero space never matches", looker.ID{}, "No space", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.Find(tt.space, tt.title)
			if ok != tt.wantOK || got.String() != tt.want {
				t.Errorf("Find(%s, %q) = %s, %v; want %s, %v", tt.space, tt.title, got, ok, tt.want, tt.wantOK)
			}
		})
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
}

func TestLookIndex_NilIsEmpty(t *testing.T) {
	var idx *LookIndex
	if _, ok := idx.Find(looker.NumericID(1), "x"); ok {
		t.Error("nil index found a look")
	}
	if idx.Len() != 0 {
		t.Error("nil index has entries")
	}
}

func TestElementMap(t *testing.T) {
	m := newElementMap()
	m.Add(looker.NumericID(100), looker.StringID("7"))
	m.Add(looker.NumericID(101), looker.StringID("8"))

	if old, ok := m.Old(looker.StringID("100")); !ok || old.String() != "7" {
		t.Errorf("Old(100) = %s, %v", old, ok)
	}
	if nw, ok := m.New(looker.NumericID(8)); !ok || nw.String() != "101" {
		t.Errorf("New(8) = %s, %v", nw, ok)
	}
	if _, ok := m.Old(looker.NumericID(7)); ok {
		t.Error("Old resolved a source id")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d", m.Len())
	}
}
