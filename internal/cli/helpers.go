package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/render"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode returns the exit code for err: 0 for nil, the carried code for an
// ExitError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// requireSpaces checks that every non-empty name exists on the instance.
func requireSpaces(spaces map[string]looker.ID, names []string, side string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := spaces[name]; !ok {
			return fmt.Errorf("%s space %q does not exist on the instance", side, name)
		}
	}
	return nil
}

// outputFormat picks the render format from the --json/--yaml flags.
func outputFormat(jsonOut, yamlOut bool) render.Format {
	switch {
	case jsonOut:
		return render.FormatJSON
	case yamlOut:
		return render.FormatYAML
	}
	return render.FormatTable
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func newRenderer(cmd *cobra.Command, format render.Format) *render.Renderer {
	out := cmd.OutOrStdout()
	return render.NewRenderer(out, render.Options{Format: format, Color: isTerminal(out)})
}
