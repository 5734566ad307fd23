package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/testutil"
)

// fakeInstance serves the API endpoints the commands use.
type fakeInstance struct {
	mu      sync.Mutex
	created map[string][]json.RawMessage
	nextID  int
}

func newFakeInstance(t *testing.T) *httptest.Server {
	t.Helper()
	f := &fakeInstance{created: map[string][]json.RawMessage{}, nextID: 900}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/3.1/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /api/3.1/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 3, "display_name": "Migrator", "email": "m@example.com"}`)
	})
	mux.HandleFunc("GET /api/3.1/spaces", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 10, "name": "Ops"}, {"id": 20, "name": "Ops ACME", "parent_id": 1}, {"id": 1, "name": "Shared"}]`)
	})
	mux.HandleFunc("GET /api/3.1/looks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id": 1, "title": "Tickets", "space": {"id": 10, "name": "Ops"}},
			{"id": 2, "title": "Old", "space": {"id": 10, "name": "Ops"}, "deleted": true},
			{"id": 3, "title": "Revenue", "space": {"id": 1, "name": "Shared"}}
		]`)
	})
	mux.HandleFunc("GET /api/3.1/looks/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 1, "title": "Tickets", "space_id": 10, "space": {"id": 10, "name": "Ops"},
			"query_id": 55, "description": "open tickets",
			"query": {"id": 55, "model": "support", "view": "tickets", "fields": ["tickets.count"], "client_id": "abc"}}`)
	})
	mux.HandleFunc("GET /api/3.1/dashboards", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	mux.HandleFunc("POST /api/3.1/{kind}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.nextID++
		id := f.nextID
		f.created[r.PathValue("kind")] = append(f.created[r.PathValue("kind")], body)
		f.mu.Unlock()

		var obj map[string]interface{}
		_ = json.Unmarshal(body, &obj)
		obj["id"] = id
		_ = json.NewEncoder(w).Encode(obj)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupEnv points the configuration at srv and isolates HOME and cwd.
func setupEnv(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	t.Setenv("LKMIG_CONFIG", "")
	t.Setenv("LKMIG_API_HOST", srv.URL)
	t.Setenv("LKMIG_API_ENDPOINT", "api/3.1")
	t.Setenv("LKMIG_CLIENT_ID", "abc")
	t.Setenv("LKMIG_CLIENT_SECRET", "s3cret")
	t.Setenv("LKMIG_SPACE_REMAP", `{Ops: "Ops ACME"}`)
	t.Setenv("LKMIG_NAME_PREFIX", "ACME ")
	t.Setenv("LKMIG_DATA_DIR", filepath.Join(home, "data"))
	t.Setenv("LKMIG_LEDGER_PATH", filepath.Join(home, "ledger.db"))
	t.Setenv("LKMIG_LOG_LEVEL", "error")
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"exit", exitError(5, errors.New("partial")), 5},
		{"wrapped", fmt.Errorf("run: %w", exitError(2, errors.New("bad input"))), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequireSpaces(t *testing.T) {
	spaces := map[string]looker.ID{"Ops": looker.NumericID(10)}

	if err := requireSpaces(spaces, []string{"Ops", ""}, "source"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := requireSpaces(spaces, []string{"Ops", "Finance"}, "destination")
	if err == nil {
		t.Fatal("expected an error for a missing space")
	}
	if !strings.Contains(err.Error(), `destination space "Finance"`) {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestDiffDocuments(t *testing.T) {
	a := []byte(`{"title": "Tickets", "id": 1, "query": {"id": 55, "model": "support"}}`)
	b := []byte(`{"query": {"model": "support", "id": 901}, "title": "ACME Tickets", "id": 77}`)

	text, err := diffDocuments(a, b, "a.json", "b.json", []string{"id"}, 3)
	require.NoError(t, err)
	require.Contains(t, text, "--- a.json")
	require.Contains(t, text, "+++ b.json")
	require.Contains(t, text, `-   "title": "Tickets"`)
	require.Contains(t, text, `+   "title": "ACME Tickets"`)
	require.NotContains(t, text, `"id"`)

	text, err = diffDocuments(a, a, "a.json", "a.json", nil, 3)
	require.NoError(t, err)
	require.Empty(t, text)

	_, err = diffDocuments([]byte(`{`), a, "broken.json", "a.json", nil, 3)
	require.ErrorContains(t, err, "broken.json")
}

func TestDiffCommand_ExitCode(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a.json", `{"title": "A", "id": 1}`)
	b := testutil.WriteFile(t, dir, "b.json", `{"title": "A", "id": 2}`)

	out, err := execute(t, "diff", "--exit-code", "--ignore-ids=false", a, b)
	require.Equal(t, 1, ExitCode(err))
	require.Contains(t, out, `+   "id": 2`)

	out, err = execute(t, "diff", "--exit-code", "--ignore-ids", a, b)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Equal(t, "lkmig", v["binary"])
	require.Equal(t, Version, v["version"])
}

func TestSpacesCommand(t *testing.T) {
	srv := newFakeInstance(t)
	setupEnv(t, srv)

	out, err := execute(t, "spaces", "--json")
	require.NoError(t, err)

	var spaces []looker.Space
	require.NoError(t, json.Unmarshal([]byte(out), &spaces))
	require.Len(t, spaces, 3)
	require.Equal(t, "Ops ACME", spaces[1].Name)
}

func TestExportThenImport(t *testing.T) {
	srv := newFakeInstance(t)
	home := setupEnv(t, srv)
	dataDir := filepath.Join(home, "data")

	out, err := execute(t, "export", "--json")
	require.NoError(t, err)

	var report exportReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, 1, report.Looks)
	require.Equal(t, 0, report.Dashboards)
	require.Len(t, report.Files, 1)
	doc := testutil.ReadFile(t, filepath.Join(dataDir, "Ops__Tickets_look.json"))
	require.Contains(t, doc, `"description": "open tickets"`)

	out, err = execute(t, "import", "--from", dataDir, "--json")
	require.NoError(t, err)

	var imported importReport
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	require.Equal(t, 0, imported.ExitCode)
	require.Len(t, imported.Results, 1)
	r := imported.Results[0]
	require.Equal(t, "created", r.Status)
	require.Equal(t, "ACME Tickets", r.TargetTitle)
	require.Equal(t, "Ops ACME", r.TargetSpace)
	require.NotEmpty(t, imported.RunID)
}

func TestExport_MissingSourceSpace(t *testing.T) {
	srv := newFakeInstance(t)
	setupEnv(t, srv)
	t.Setenv("LKMIG_SPACE_REMAP", `{Finance: "Finance ACME"}`)

	_, err := execute(t, "export", "--json")
	require.Error(t, err)
	require.Equal(t, 2, ExitCode(err))
	require.ErrorContains(t, err, `source space "Finance"`)
}

func TestImport_SkipImportedPerTenant(t *testing.T) {
	srv := newFakeInstance(t)
	home := setupEnv(t, srv)
	dataDir := filepath.Join(home, "data")

	_, err := execute(t, "export", "--json")
	require.NoError(t, err)

	runImport := func() importReport {
		t.Helper()
		out, err := execute(t, "import", "--from", dataDir, "--skip-imported", "--json")
		require.NoError(t, err)
		var report importReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		require.Len(t, report.Results, 1)
		return report
	}

	first := runImport()
	require.Equal(t, "created", first.Results[0].Status)

	again := runImport()
	require.Equal(t, "skipped", again.Results[0].Status)
	require.Equal(t, 0, again.ExitCode)

	// A second tenant on the same instance still gets its own copy.
	t.Setenv("LKMIG_NAME_PREFIX", "BETA ")
	beta := runImport()
	require.Equal(t, "created", beta.Results[0].Status)
	require.Equal(t, "BETA Tickets", beta.Results[0].TargetTitle)
}

func TestImport_InvalidDocumentFailsOnlyItself(t *testing.T) {
	srv := newFakeInstance(t)
	home := setupEnv(t, srv)
	dataDir := filepath.Join(home, "data")

	_, err := execute(t, "export", "--json")
	require.NoError(t, err)
	testutil.WriteFile(t, dataDir, "Ops__Broken_look.json", `{"title": "Broken", "space": {"name": "Ops"}}`)

	out, err := execute(t, "import", "--from", dataDir, "--skip-imported=false", "--json")
	require.Equal(t, 5, ExitCode(err))

	var report importReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 2)
	require.Equal(t, "created", report.Results[0].Status)
	require.Equal(t, "failed", report.Results[1].Status)
	require.Equal(t, "Ops__Broken_look.json", report.Results[1].Title)
	require.Contains(t, report.Results[1].Message, "invalid source object")
	require.Equal(t, 5, report.ExitCode)
}
