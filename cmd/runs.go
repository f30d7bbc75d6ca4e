package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adkeyword-cli/internal/export"
	"github.com/sells-group/adkeyword-cli/internal/model"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
	"github.com/sells-group/adkeyword-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved analysis runs",
	Long:  "Commands for listing, viewing, annotating, comparing, exporting, and deleting saved analysis runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Source: source, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a run's recommendations as an .xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("run-%s.xlsx", truncateID(args[0]))
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}

		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "runs export: create %s", output)
		}
		if err := export.WriteXLSX(f, pipeline.ResultOf(run)); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "runs export: close %s", output)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
		return nil
	},
}

// -- runs update --

var runsUpdateCmd = &cobra.Command{
	Use:   "update <run-id>",
	Short: "Rename a run or set its memo and tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		upd, err := runUpdateFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpdateRun(ctx, args[0], upd); err != nil {
			return eris.Wrap(err, "runs update")
		}
		fmt.Fprintf(os.Stderr, "Updated run %s\n", args[0])
		return nil
	},
}

// runUpdateFromFlags builds an update from the flags the user set.
func runUpdateFromFlags(cmd *cobra.Command) (store.RunUpdate, error) {
	var upd store.RunUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		upd.Name = &name
	}
	if flags.Changed("memo") {
		memo, _ := flags.GetString("memo")
		upd.Memo = &memo
	}
	if flags.Changed("tags") {
		tags, _ := flags.GetStringSlice("tags")
		upd.Tags = model.NormalizeTags(tags)
	}
	if upd.IsEmpty() {
		return upd, eris.New("runs update: set at least one of --name, --memo or --tags")
	}
	return upd, nil
}

// -- runs compare --

var runsCompareCmd = &cobra.Command{
	Use:   "compare <current-run-id> <previous-run-id>",
	Short: "Compare a run with an earlier one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		withInsights, _ := cmd.Flags().GetBool("insights")
		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "json" {
			return eris.Errorf("runs compare: unknown format %q (want table or json)", format)
		}

		env, err := initEnv(ctx, envOptions{Store: true, Insights: withInsights})
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Pipeline.Compare(ctx, args[0], args[1], withInsights)
		if err != nil {
			return eris.Wrap(err, "runs compare")
		}

		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		}
		formatComparison(os.Stdout, c)
		return nil
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("source", "", "filter by report file name")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsExportCmd.Flags().String("output", "", "workbook path (default run-<id>.xlsx)")

	runsUpdateCmd.Flags().String("name", "", "new run name")
	runsUpdateCmd.Flags().String("memo", "", "free-form memo; pass an empty value to clear it")
	runsUpdateCmd.Flags().StringSlice("tags", nil, "comma-separated tags; replaces the existing tags")

	runsCompareCmd.Flags().Bool("insights", false, "add a narrative comparison")
	runsCompareCmd.Flags().String("format", "table", "output format: table or json")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsUpdateCmd)
	runsCmd.AddCommand(runsCompareCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSOURCE\tTARGET\tEXCLUDE\tSAVINGS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t-------\t-------\t-------")

	for _, r := range runs {
		name := r.Name
		if rs := []rune(name); len(rs) > 30 {
			name = string(rs[:27]) + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%d\t%.1f%%\t%s\n",
			truncateID(r.ID),
			name,
			r.Source,
			r.TargetROAS,
			r.Summary.KeywordsToExclude,
			r.Summary.PotentialSavings,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatComparison writes the metric table, the summary, and the narrative
// when present.
func formatComparison(out io.Writer, c *pipeline.Comparison) {
	_, _ = fmt.Fprintf(out, "%s (%s) vs %s (%s)\n\n",
		truncateID(c.Current.ID), c.Current.Name, truncateID(c.Previous.ID), c.Previous.Name)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tPREVIOUS\tCURRENT\tCHANGE\tTREND")
	_, _ = fmt.Fprintln(w, "------\t--------\t-------\t------\t-----")
	for _, mc := range c.Metrics {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%+.1f%%\t%s\n",
			mc.Label, mc.Previous, mc.Current, mc.ChangePct, trendMark(mc.Trend))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%s\n", c.Summary)
	if c.Insight != nil {
		_, _ = fmt.Fprintf(out, "\n%s\n", c.Insight.Text)
	}
}

func trendMark(t model.Trend) string {
	switch t {
	case model.TrendUp:
		return "▲ 개선"
	case model.TrendDown:
		return "▼ 하락"
	}
	return "-"
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
