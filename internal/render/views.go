package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/lherron/lkmig/internal/ledger"
	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/migrate"
)

// ResultView is the serializable form of a migrate.Result.
type ResultView struct {
	Kind        string `json:"kind"`
	SourceID    string `json:"source_id,omitempty"`
	SourceSpace string `json:"source_space"`
	Title       string `json:"title"`
	TargetTitle string `json:"target_title"`
	TargetSpace string `json:"target_space,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	Status      string `json:"status"`
	State       string `json:"state"`
	FailedStep  string `json:"failed_step,omitempty"`
	Message     string `json:"message,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

// NewResultView flattens r.
func NewResultView(r *migrate.Result) ResultView {
	v := ResultView{
		Kind:        string(r.Kind),
		SourceID:    r.SourceID.String(),
		SourceSpace: r.SourceSpace,
		Title:       r.Title,
		TargetTitle: r.TargetTitle,
		TargetSpace: r.TargetSpace,
		TargetID:    r.TargetID.String(),
		Status:      string(r.Status),
		State:       r.State.String(),
		Message:     r.Message(),
		ElapsedMS:   r.Elapsed.Milliseconds(),
	}
	if r.Err != nil {
		v.FailedStep = r.FailedStep.String()
	}
	return v
}

// ResultViews flattens a slice of results.
func ResultViews(results []*migrate.Result) []ResultView {
	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, NewResultView(r))
	}
	return views
}

// ResultTable returns the table form of import results.
func ResultTable(results []*migrate.Result) ([]string, [][]string) {
	headers := []string{"KIND", "STATUS", "SOURCE", "TARGET", "ID", "STEP", "MESSAGE"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		v := NewResultView(r)
		rows = append(rows, []string{
			v.Kind,
			v.Status,
			v.SourceSpace + "/" + v.Title,
			v.TargetSpace + "/" + v.TargetTitle,
			v.TargetID,
			v.FailedStep,
			v.Message,
		})
	}
	return headers, rows
}

// SpaceTable returns spaces sorted by name.
func SpaceTable(spaces []looker.Space) ([]string, [][]string) {
	sorted := append([]looker.Space(nil), spaces...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	rows := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, []string{s.ID.String(), s.Name, s.ParentID.String()})
	}
	return []string{"ID", "NAME", "PARENT"}, rows
}

// RunTable lists ledger runs.
func RunTable(runs []ledger.Run) ([]string, [][]string) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		exit := "running"
		if r.ExitCode != nil {
			exit = strconv.Itoa(*r.ExitCode)
		}
		dry := ""
		if r.DryRun {
			dry = "dry-run"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Command,
			r.TargetHost,
			r.Source,
			dry,
			exit,
		})
	}
	return []string{"RUN", "STARTED", "COMMAND", "TARGET", "SOURCE", "MODE", "EXIT"}, rows
}

// EntryTable lists the recorded results of one run.
func EntryTable(entries []ledger.Entry) ([]string, [][]string) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Kind,
			e.Status,
			e.SourceSpace + "/" + e.Title,
			e.TargetSpace + "/" + e.TargetTitle,
			e.TargetID,
			e.FailedStep,
			e.Message,
		})
	}
	return []string{"KIND", "STATUS", "SOURCE", "TARGET", "ID", "STEP", "MESSAGE"}, rows
}

// PrintSummary writes the per-status totals of an import.
func PrintSummary(w io.Writer, sum *migrate.Summary, colored bool) {
	statuses := []migrate.Status{
		migrate.StatusCreated,
		migrate.StatusPlanned,
		migrate.StatusSkipped,
		migrate.StatusFailed,
		migrate.StatusRolledBack,
	}
	fmt.Fprintf(w, "\n%d objects:", len(sum.Results))
	for _, s := range statuses {
		n := sum.Count(s)
		if n == 0 {
			continue
		}
		label := fmt.Sprintf("%s %d", s, n)
		if colored {
			label = StatusColor(string(s)).Sprint(label)
		}
		fmt.Fprintf(w, " %s", label)
	}
	fmt.Fprintln(w)
}
