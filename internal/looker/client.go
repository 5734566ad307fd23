// Package looker is a typed client for the subset of the BI platform REST API
// that content migration needs.
package looker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTimeout = 60 * time.Second

// Config describes how to reach and authenticate against one instance.
type Config struct {
	// BaseURL is the API root, e.g. https://bi.example.com:19999/api/3.1/.
	BaseURL            string
	ClientID           string
	ClientSecret       string
	InsecureSkipVerify bool
	Timeout            time.Duration
	Logger             zerolog.Logger
}

// Client talks to one platform instance. It is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	log  zerolog.Logger
}

// New returns a client that obtains bearer tokens from the login endpoint
// with the configured API credentials and refreshes them as they expire.
func New(ctx context.Context, cfg Config) (*Client, error) {
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed instances
	}
	baseClient := &http.Client{Timeout: timeout, Transport: transport}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base.ResolveReference(&url.URL{Path: "login"}).String(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, baseClient)
	hc := cc.Client(tokenCtx)
	hc.Timeout = timeout

	return &Client{base: base, http: hc, log: cfg.Logger}, nil
}

// NewWithHTTPClient returns a client that sends requests through hc as is.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger zerolog.Logger) (*Client, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, http: hc, log: logger}, nil
}

// Host returns the host:port the client targets.
func (c *Client) Host() string { return c.base.Host }

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q: scheme and host are required", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	c.log.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func idPath(collection string, id ID) string {
	return collection + "/" + url.PathEscape(id.String())
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListSpaces returns every space visible to the caller.
func (c *Client) ListSpaces(ctx context.Context) ([]Space, error) {
	var spaces []Space
	if err := c.do(ctx, http.MethodGet, "spaces", nil, &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

// ListLooks returns every look with its embedded space.
func (c *Client) ListLooks(ctx context.Context) ([]Look, error) {
	var looks []Look
	if err := c.do(ctx, http.MethodGet, "looks", nil, &looks); err != nil {
		return nil, err
	}
	return looks, nil
}

// GetLook returns one look with its full query.
func (c *Client) GetLook(ctx context.Context, id ID) (*Look, error) {
	var l Look
	if err := c.do(ctx, http.MethodGet, idPath("looks", id), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListDashboards returns dashboard summaries.
func (c *Client) ListDashboards(ctx context.Context) ([]Dashboard, error) {
	var dashboards []Dashboard
	if err := c.do(ctx, http.MethodGet, "dashboards", nil, &dashboards); err != nil {
		return nil, err
	}
	return dashboards, nil
}

// GetDashboard returns a dashboard with its filters, elements and layouts.
func (c *Client) GetDashboard(ctx context.Context, id ID) (*Dashboard, error) {
	var d Dashboard
	if err := c.do(ctx, http.MethodGet, idPath("dashboards", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateQuery saves q and returns the stored query.
func (c *Client) CreateQuery(ctx context.Context, q *Query) (*Query, error) {
	var out Query
	if err := c.do(ctx, http.MethodPost, "queries", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLook saves l and returns the stored look.
func (c *Client) CreateLook(ctx context.Context, l *Look) (*Look, error) {
	var out Look
	if err := c.do(ctx, http.MethodPost, "looks", l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDashboard creates an empty dashboard. The server also creates a
// default layout for it.
func (c *Client) CreateDashboard(ctx context.Context, d *Dashboard) (*Dashboard, error) {
	var out Dashboard
	if err := c.do(ctx, http.MethodPost, "dashboards", d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDashboard removes a dashboard and everything it owns.
func (c *Client) DeleteDashboard(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, idPath("dashboards", id), nil, nil)
}

// CreateDashboardFilter adds a filter to a dashboard.
func (c *Client) CreateDashboardFilter(ctx context.Context, f *DashboardFilter) (*DashboardFilter, error) {
	var out DashboardFilter
	if err := c.do(ctx, http.MethodPost, "dashboard_filters", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDashboardElement adds an element to a dashboard.
func (c *Client) CreateDashboardElement(ctx context.Context, e *DashboardElement) (*DashboardElement, error) {
	var out DashboardElement
	if err := c.do(ctx, http.MethodPost, "dashboard_elements", e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDashboardLayout adds a layout. The server fills in one component per
// element currently on the dashboard.
func (c *Client) CreateDashboardLayout(ctx context.Context, l *DashboardLayout) (*DashboardLayout, error) {
	var out DashboardLayout
	if err := c.do(ctx, http.MethodPost, "dashboard_layouts", l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDashboardLayout removes a layout.
func (c *Client) DeleteDashboardLayout(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, idPath("dashboard_layouts", id), nil, nil)
}

// UpdateDashboardLayoutComponent patches a component's placement.
func (c *Client) UpdateDashboardLayoutComponent(ctx context.Context, id ID, comp *DashboardLayoutComponent) (*DashboardLayoutComponent, error) {
	var out DashboardLayoutComponent
	if err := c.do(ctx, http.MethodPatch, idPath("dashboard_layout_components", id), comp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLookMLModels returns every deployed model.
func (c *Client) ListLookMLModels(ctx context.Context) ([]LookMLModel, error) {
	var models []LookMLModel
	if err := c.do(ctx, http.MethodGet, "lookml_models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// DeleteLookMLModel removes a model configuration.
func (c *Client) DeleteLookMLModel(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "lookml_models/"+url.PathEscape(name), nil, nil)
}

// GetExplore returns an explore with its field catalog.
func (c *Client) GetExplore(ctx context.Context, model, explore string) (*Explore, error) {
	path := "lookml_models/" + url.PathEscape(model) + "/explores/" + url.PathEscape(explore)
	var out Explore
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunInlineQuery runs q without saving it and returns the raw result in the
// requested format (json, csv, ...).
func (c *Client) RunInlineQuery(ctx context.Context, format string, q *Query) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "queries/run/"+url.PathEscape(format), q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
