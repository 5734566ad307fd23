package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/catalog"
)

var diffCmd = &cobra.Command{
	Use:   "diff <A> <B>",
	Short: "Compare two exported documents",
	Long: `Compare two exported look or dashboard documents and print a unified diff.
Both documents are normalized first (sorted keys, three-space indent), so
only content differences show.

Examples:
  lkmig diff src/Ops__Tickets_look.json dst/Ops_ACME__ACME_Tickets_look.json
  lkmig diff --ignore-ids a_dash.json b_dash.json   # Skip server-assigned ids
  lkmig diff --ignore title a_look.json b_look.json
`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var (
	diffUnified   int
	diffIgnore    []string
	diffIgnoreIDs bool
	diffExitCode  bool
)

// Keys an instance assigns on creation.
var serverAssignedKeys = []string{
	"id", "dashboard_id", "dashboard_layout_id", "dashboard_element_id",
	"query_id", "look_id", "result_maker_id", "space_id", "folder_id",
	"client_id", "share_url", "expanded_share_url", "short_url", "url", "slug",
	"created_at", "updated_at", "last_updater_id", "user_id",
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().IntVar(&diffUnified, "unified", 3, "Lines of unified context")
	diffCmd.Flags().StringSliceVar(&diffIgnore, "ignore", nil, "Drop these keys at any depth before comparing")
	diffCmd.Flags().BoolVar(&diffIgnoreIDs, "ignore-ids", false, "Drop server-assigned ids and urls before comparing")
	diffCmd.Flags().BoolVar(&diffExitCode, "exit-code", false, "Exit with 1 when the documents differ")
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := os.ReadFile(args[0])
	if err != nil {
		return exitError(2, err)
	}
	b, err := os.ReadFile(args[1])
	if err != nil {
		return exitError(2, err)
	}

	ignore := diffIgnore
	if diffIgnoreIDs {
		ignore = append(append([]string(nil), ignore...), serverAssignedKeys...)
	}
	text, err := diffDocuments(a, b, args[0], args[1], ignore, diffUnified)
	if err != nil {
		return exitError(2, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	if text != "" && diffExitCode {
		return exitError(1, errors.New("documents differ"))
	}
	return nil
}

// diffDocuments returns the unified diff of two normalized JSON documents,
// "" when they are equal.
func diffDocuments(a, b []byte, nameA, nameB string, ignore []string, context int) (string, error) {
	normA, err := normalizeDocument(a, ignore)
	if err != nil {
		return "", fmt.Errorf("%s: %w", nameA, err)
	}
	normB, err := normalizeDocument(b, ignore)
	if err != nil {
		return "", fmt.Errorf("%s: %w", nameB, err)
	}
	if bytes.Equal(normA, normB) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(normA) + "\n"),
		B:        difflib.SplitLines(string(normB) + "\n"),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  context,
	})
}

func normalizeDocument(data []byte, ignore []string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(ignore) > 0 {
		drop := make(map[string]bool, len(ignore))
		for _, k := range ignore {
			drop[k] = true
		}
		doc = dropKeys(doc, drop)
	}
	return catalog.PrettyJSON(doc)
}

func dropKeys(v interface{}, drop map[string]bool) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if drop[k] {
				delete(t, k)
				continue
			}
			t[k] = dropKeys(child, drop)
		}
	case []interface{}:
		for i, child := range t {
			t[i] = dropKeys(child, drop)
		}
	}
	return v
}
