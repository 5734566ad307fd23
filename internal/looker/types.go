package looker

import "encoding/json"

// Space is a folder-like container that owns looks and dashboards.
type Space struct {
	ID       ID     `json:"id,omitzero"`
	Name     string `json:"name"`
	ParentID ID     `json:"parent_id,omitzero"`
}

// SpaceRef is the space summary embedded in looks and dashboards.
type SpaceRef struct {
	ID   ID     `json:"id,omitzero"`
	Name string `json:"name"`
}

// User is the authenticated principal.
type User struct {
	ID          ID     `json:"id,omitzero"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Query is a saved query definition. Queries are immutable on the server, so
// copying one means creating a new query from its attributes.
type Query struct {
	ID      ID                `json:"id,omitzero"`
	Model   string            `json:"model"`
	View    string            `json:"view"`
	Fields  []string          `json:"fields,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	Sorts   []string          `json:"sorts,omitempty"`
	Attrs   Attrs             `json:"-"`
}

func (q *Query) UnmarshalJSON(data []byte) error {
	type plain Query
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*q = Query(p)
	q.Attrs = attrs
	return nil
}

func (q Query) MarshalJSON() ([]byte, error) {
	type plain Query
	return encodeRecord(plain(q), q.Attrs)
}

// Clone returns a deep copy of q.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	out := *q
	out.Fields = append([]string(nil), q.Fields...)
	out.Sorts = append([]string(nil), q.Sorts...)
	if q.Filters != nil {
		out.Filters = make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			out.Filters[k] = v
		}
	}
	out.Attrs = q.Attrs.Clone()
	return &out
}

// Look is a saved visualization of one query.
type Look struct {
	ID      ID        `json:"id,omitzero"`
	Title   string    `json:"title"`
	SpaceID ID        `json:"space_id,omitzero"`
	Space   *SpaceRef `json:"space,omitempty"`
	QueryID ID        `json:"query_id,omitzero"`
	Query   *Query    `json:"query,omitempty"`
	Deleted bool      `json:"deleted,omitempty"`
	Attrs   Attrs     `json:"-"`
}

func (l *Look) UnmarshalJSON(data []byte) error {
	type plain Look
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*l = Look(p)
	l.Attrs = attrs
	return nil
}

func (l Look) MarshalJSON() ([]byte, error) {
	type plain Look
	return encodeRecord(plain(l), l.Attrs)
}

// SpaceName returns the name of the embedded space, or "" when absent.
func (l *Look) SpaceName() string {
	if l.Space == nil {
		return ""
	}
	return l.Space.Name
}

// Dashboard is a titled collection of elements with filters and layouts.
type Dashboard struct {
	ID       ID                 `json:"id,omitzero"`
	Title    string             `json:"title"`
	SpaceID  ID                 `json:"space_id,omitzero"`
	Space    *SpaceRef          `json:"space,omitempty"`
	Deleted  bool               `json:"deleted,omitempty"`
	Filters  []DashboardFilter  `json:"dashboard_filters,omitempty"`
	Elements []DashboardElement `json:"dashboard_elements,omitempty"`
	Layouts  []DashboardLayout  `json:"dashboard_layouts,omitempty"`
	Attrs    Attrs              `json:"-"`
}

func (d *Dashboard) UnmarshalJSON(data []byte) error {
	type plain Dashboard
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*d = Dashboard(p)
	d.Attrs = attrs
	return nil
}

func (d Dashboard) MarshalJSON() ([]byte, error) {
	type plain Dashboard
	return encodeRecord(plain(d), d.Attrs)
}

// SpaceName returns the name of the embedded space, or "" when absent.
func (d *Dashboard) SpaceName() string {
	if d.Space == nil {
		return ""
	}
	return d.Space.Name
}

// DashboardFilter is a named filter control on a dashboard.
type DashboardFilter struct {
	ID           ID              `json:"id,omitzero"`
	DashboardID  ID              `json:"dashboard_id,omitzero"`
	Name         string          `json:"name"`
	Title        string          `json:"title,omitempty"`
	Model        string          `json:"model,omitempty"`
	Explore      string          `json:"explore,omitempty"`
	Dimension    string          `json:"dimension,omitempty"`
	DefaultValue string          `json:"default_value,omitempty"`
	Field        json.RawMessage `json:"field,omitempty"`
	Attrs        Attrs           `json:"-"`
}

func (f *DashboardFilter) UnmarshalJSON(data []byte) error {
	type plain DashboardFilter
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*f = DashboardFilter(p)
	f.Attrs = attrs
	return nil
}

func (f DashboardFilter) MarshalJSON() ([]byte, error) {
	type plain DashboardFilter
	return encodeRecord(plain(f), f.Attrs)
}

// ResultMaker describes the merged result behind an element. Its filterables
// list which dashboard filters the element listens to.
type ResultMaker struct {
	ID    ID    `json:"id,omitzero"`
	Attrs Attrs `json:"-"`
}

func (r *ResultMaker) UnmarshalJSON(data []byte) error {
	type plain ResultMaker
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*r = ResultMaker(p)
	r.Attrs = attrs
	return nil
}

func (r ResultMaker) MarshalJSON() ([]byte, error) {
	type plain ResultMaker
	return encodeRecord(plain(r), r.Attrs)
}

// DashboardElement is one tile on a dashboard. It either references a look,
// embeds a query, or carries neither (text tiles).
type DashboardElement struct {
	ID            ID           `json:"id,omitzero"`
	DashboardID   ID           `json:"dashboard_id,omitzero"`
	Title         string       `json:"title,omitempty"`
	Type          string       `json:"type,omitempty"`
	LookID        ID           `json:"look_id,omitzero"`
	Look          *Look        `json:"look,omitempty"`
	QueryID       ID           `json:"query_id,omitzero"`
	Query         *Query       `json:"query,omitempty"`
	ResultMakerID ID           `json:"result_maker_id,omitzero"`
	ResultMaker   *ResultMaker `json:"result_maker,omitempty"`
	Attrs         Attrs        `json:"-"`
}

func (e *DashboardElement) UnmarshalJSON(data []byte) error {
	type plain DashboardElement
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*e = DashboardElement(p)
	e.Attrs = attrs
	return nil
}

func (e DashboardElement) MarshalJSON() ([]byte, error) {
	type plain DashboardElement
	return encodeRecord(plain(e), e.Attrs)
}

// DashboardLayout is a named arrangement of a dashboard's elements.
type DashboardLayout struct {
	ID          ID                         `json:"id,omitzero"`
	DashboardID ID                         `json:"dashboard_id,omitzero"`
	Type        string                     `json:"type,omitempty"`
	Active      bool                       `json:"active,omitempty"`
	Components  []DashboardLayoutComponent `json:"dashboard_layout_components,omitempty"`
	Attrs       Attrs                      `json:"-"`
}

func (l *DashboardLayout) UnmarshalJSON(data []byte) error {
	type plain DashboardLayout
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*l = DashboardLayout(p)
	l.Attrs = attrs
	return nil
}

func (l DashboardLayout) MarshalJSON() ([]byte, error) {
	type plain DashboardLayout
	return encodeRecord(plain(l), l.Attrs)
}

// DashboardLayoutComponent positions one element within a layout.
type DashboardLayoutComponent struct {
	ID                 ID     `json:"id,omitzero"`
	DashboardLayoutID  ID     `json:"dashboard_layout_id,omitzero"`
	DashboardElementID ID     `json:"dashboard_element_id,omitzero"`
	Row                *int64 `json:"row,omitempty"`
	Column             *int64 `json:"column,omitempty"`
	Width              *int64 `json:"width,omitempty"`
	Height             *int64 `json:"height,omitempty"`
	Attrs              Attrs  `json:"-"`
}

func (c *DashboardLayoutComponent) UnmarshalJSON(data []byte) error {
	type plain DashboardLayoutComponent
	var p plain
	attrs, err := decodeRecord(data, &p)
	if err != nil {
		return err
	}
	*c = DashboardLayoutComponent(p)
	c.Attrs = attrs
	return nil
}

func (c DashboardLayoutComponent) MarshalJSON() ([]byte, error) {
	type plain DashboardLayoutComponent
	return encodeRecord(plain(c), c.Attrs)
}

// LookMLModel is a deployed semantic model.
type LookMLModel struct {
	Name        string           `json:"name"`
	ProjectName string           `json:"project_name,omitempty"`
	HasContent  bool             `json:"has_content"`
	Explores    []ExploreSummary `json:"explores,omitempty"`
}

// ExploreSummary is an explore as listed on its model.
type ExploreSummary struct {
	Name   string `json:"name"`
	Hidden bool   `json:"hidden,omitempty"`
}

// Explore is a queryable view within a model, with its field catalog.
type Explore struct {
	// ID is "model::explore".
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name"`
	ModelName    string        `json:"model_name,omitempty"`
	Hidden       bool          `json:"hidden,omitempty"`
	SQLTableName string        `json:"sql_table_name,omitempty"`
	Fields       ExploreFields `json:"fields"`
}

// ExploreFields groups an explore's fields by kind.
type ExploreFields struct {
	Dimensions []ExploreField `json:"dimensions,omitempty"`
	Measures   []ExploreField `json:"measures,omitempty"`
	Filters    []ExploreField `json:"filters,omitempty"`
	Parameters []ExploreField `json:"parameters,omitempty"`
}

// ExploreField is one field of an explore.
type ExploreField struct {
	Name   string `json:"name"`
	View   string `json:"view,omitempty"`
	Type   string `json:"type,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}
