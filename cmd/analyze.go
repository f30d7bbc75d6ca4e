package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adkeyword-cli/internal/export"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatXLSX  = "xlsx"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score the keywords in one ad performance report",
	Long:  "Reads an .xlsx or .csv keyword report, aggregates it, and prints exclusion recommendations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")
		withInsights, _ := cmd.Flags().GetBool("insights")
		name, _ := cmd.Flags().GetString("name")

		format = strings.ToLower(format)
		if err := checkFormat(format, output); err != nil {
			return err
		}
		target, err := targetROASFlag(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, envOptions{Store: save, Insights: withInsights})
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Pipeline.AnalyzeFile(ctx, file, pipeline.Options{
			TargetROAS: target,
			Insights:   withInsights,
			Save:       save,
			Name:       name,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		out := io.Writer(os.Stdout)
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return eris.Wrapf(err, "analyze: create %s", output)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := writeAnalysis(out, a, format); err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("file", "", "path to the .xlsx or .csv keyword report")
	analyzeCmd.Flags().Float64("target-roas", 0, "benchmark ROAS in percent (default from config)")
	analyzeCmd.Flags().String("format", formatTable, "output format: table, csv, json, xlsx")
	analyzeCmd.Flags().String("output", "", "write output to this path instead of stdout")
	analyzeCmd.Flags().Bool("save", false, "persist the analysis as a run")
	analyzeCmd.Flags().Bool("insights", false, "add a narrative summary")
	analyzeCmd.Flags().String("name", "", "run name when saving (default: file name)")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}

// targetROASFlag returns --target-roas, or 0 when the flag was not given so
// the configured benchmark applies. An explicit value must be positive.
func targetROASFlag(cmd *cobra.Command) (float64, error) {
	target, _ := cmd.Flags().GetFloat64("target-roas")
	if cmd.Flags().Changed("target-roas") && target <= 0 {
		return 0, eris.Errorf("%s: --target-roas must be > 0 (got %v)", cmd.Name(), target)
	}
	return target, nil
}

// checkFormat rejects unknown formats and binary output to a terminal.
func checkFormat(format, output string) error {
	switch format {
	case formatTable, formatCSV, formatJSON:
		return nil
	case formatXLSX:
		if output == "" {
			return eris.New("analyze: --format xlsx requires --output")
		}
		return nil
	default:
		return eris.Errorf("analyze: unknown format %q (want table, csv, json or xlsx)", format)
	}
}

// writeAnalysis renders a in the requested format.
func writeAnalysis(w io.Writer, a *pipeline.Analysis, format string) error {
	switch format {
	case formatCSV:
		return export.WriteCSV(w, a.Result.Recommendations)
	case formatXLSX:
		return export.WriteXLSX(w, a.Result)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	case formatTable:
		return writeAnalysisTable(w, a)
	default:
		return eris.Errorf("analyze: unknown format %q", format)
	}
}

func writeAnalysisTable(w io.Writer, a *pipeline.Analysis) error {
	_, _ = fmt.Fprintf(w, "Report: %s (%d rows)\n\n", a.Source, a.Report.Rows)
	if a.Result.Empty {
		_, _ = fmt.Fprintln(w, "No search keywords to score.")
	} else {
		if err := export.WriteSummary(w, a.Result); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
		if err := export.WriteTable(w, a.Result.Recommendations); err != nil {
			return err
		}
	}
	if a.Insight != nil {
		_, _ = fmt.Fprintf(w, "\n%s\n", a.Insight.Text)
	}
	if a.RunID != "" {
		_, _ = fmt.Fprintf(w, "\nSaved run %s\n", a.RunID)
	}
	return nil
}
