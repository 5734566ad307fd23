// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction, API login and ledger
// opening to reduce boilerplate across commands.
package appctx

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/config"
	"github.com/lherron/lkmig/internal/ledger"
	"github.com/lherron/lkmig/internal/logger"
	"github.com/lherron/lkmig/internal/looker"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	Log zerolog.Logger

	// API is the instance client (nil if NeedsAPI is false)
	API *looker.Client

	// Ledger is the opened run ledger (nil if NeedsLedger is false)
	Ledger *ledger.DB
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Ledger != nil {
		a.Ledger.Close()
		a.Ledger = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsAPI builds an authenticated instance client.
	NeedsAPI bool

	// NeedsLedger opens the run ledger. A new ledger is created and migrated;
	// an existing one with pending migrations is rejected.
	NeedsLedger bool
}

// APIOnly returns options for commands that only talk to the instance.
func APIOnly() Options {
	return Options{NeedsAPI: true}
}

// LedgerOnly returns options for commands that only read the ledger.
func LedgerOnly() Options {
	return Options{NeedsLedger: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The ledger is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load(flagString(cmd, "config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if v := flagString(cmd, "ledger"); v != "" {
		cfg.LedgerPath = v
	}
	if v := flagString(cmd, "log-level"); v != "" {
		cfg.LogLevel = v
	}
	if f := cmd.Flag("log-json"); f != nil && f.Changed {
		cfg.LogJSON = f.Value.String() == "true"
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		JSON:   cfg.LogJSON,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	app.Log = log

	if opts.NeedsAPI {
		client, err := NewClient(cmd.Context(), cfg, log)
		if err != nil {
			return nil, err
		}
		app.API = client
	}

	if opts.NeedsLedger {
		db, err := OpenLedger(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		app.Ledger = db
	}

	return app, nil
}

// NewClient builds an instance client from cfg.
func NewClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*looker.Client, error) {
	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}
	base, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := looker.New(ctx, looker.Config{
		BaseURL:            base,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.RequestTimeout,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// OpenLedger opens the ledger at path. A ledger that does not exist yet is
// created with the current schema.
func OpenLedger(path string) (*ledger.DB, error) {
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	db, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	if fresh {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize ledger: %w", err)
		}
		return db, nil
	}
	if err := db.RequiresMigrationError(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
