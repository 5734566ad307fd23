package appctx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/ledger"
)

func newCmd(t *testing.T, ledgerPath string) *cobra.Command {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LKMIG_CONFIG", "")
	t.Setenv("LKMIG_API_HOST", "")
	t.Setenv("LKMIG_CLIENT_ID", "")
	t.Setenv("LKMIG_CLIENT_SECRET", "")
	t.Chdir(t.TempDir())

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("ledger", ledgerPath, "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("log-json", false, "")
	return cmd
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	cmd := newCmd(t, "")

	app, err := Bootstrap(cmd, Options{})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil {
		t.Error("Config should not be nil")
	}
	if app.API != nil {
		t.Error("API should be nil when NeedsAPI is false")
	}
	if app.Ledger != nil {
		t.Error("Ledger should be nil when NeedsLedger is false")
	}
}

func TestBootstrap_CreatesLedger(t *testing.T) {
	ledgerPath := filepath.Join(t.TempDir(), "state", "ledger.db")
	cmd := newCmd(t, ledgerPath)

	app, err := Bootstrap(cmd, LedgerOnly())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Ledger == nil {
		t.Fatal("Ledger should not be nil")
	}
	if app.Config.LedgerPath != ledgerPath {
		t.Errorf("LedgerPath = %q, want %q", app.Config.LedgerPath, ledgerPath)
	}
	if _, err := os.Stat(ledgerPath); err != nil {
		t.Errorf("ledger file not created: %v", err)
	}
	if _, err := app.Ledger.ListRuns(1); err != nil {
		t.Errorf("ledger schema missing: %v", err)
	}
}

func TestOpenLedger_PendingMigrations(t *testing.T) {
	ledgerPath := filepath.Join(t.TempDir(), "ledger.db")

	// An existing ledger that was never migrated.
	db, err := ledger.Open(ledgerPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS unrelated (id INTEGER)`); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	db.Close()

	_, err = OpenLedger(ledgerPath)
	if err == nil {
		t.Fatal("expected an error for pending migrations")
	}
	if !strings.Contains(err.Error(), "lkmigadm db migrate") {
		t.Errorf("error should point at 'lkmigadm db migrate', got: %v", err)
	}
}

func TestBootstrap_APIRequiresCredentials(t *testing.T) {
	cmd := newCmd(t, "")

	_, err := Bootstrap(cmd, APIOnly())
	if err == nil {
		t.Fatal("expected an error without credentials")
	}
	if !strings.Contains(err.Error(), "client_id") {
		t.Errorf("error should name the missing setting, got: %v", err)
	}
}

func TestBootstrap_APIFromEnv(t *testing.T) {
	cmd := newCmd(t, "")
	t.Setenv("LKMIG_API_HOST", "https://bi.example.com:19999")
	t.Setenv("LKMIG_CLIENT_ID", "abc")
	t.Setenv("LKMIG_CLIENT_SECRET", "s3cret")

	app, err := Bootstrap(cmd, APIOnly())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.API == nil {
		t.Fatal("API should not be nil")
	}
	if got := app.API.Host(); got != "bi.example.com:19999" {
		t.Errorf("Host() = %q", got)
	}
}

func TestBootstrap_LogLevelFlag(t *testing.T) {
	cmd := newCmd(t, "")
	if err := cmd.Flags().Set("log-level", "bogus"); err != nil {
		t.Fatal(err)
	}
	if _, err := Bootstrap(cmd, Options{}); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestApp_CloseTwice(t *testing.T) {
	cmd := newCmd(t, filepath.Join(t.TempDir(), "ledger.db"))
	app, err := Bootstrap(cmd, LedgerOnly())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	app.Close()
	app.Close()
	if app.Ledger != nil {
		t.Error("Ledger should be nil after Close")
	}
}

func TestWithApp_ClosesLedger(t *testing.T) {
	cmd := newCmd(t, filepath.Join(t.TempDir(), "ledger.db"))

	var seen *App
	run := WithApp(LedgerOnly(), func(app *App, cmd *cobra.Command, args []string) error {
		seen = app
		if app.Ledger == nil {
			t.Error("Ledger should be open inside the run function")
		}
		return nil
	})
	if err := run(cmd, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if seen == nil || seen.Ledger != nil {
		t.Error("Ledger should be closed after the run function returns")
	}
}
