package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adkeyword-cli/internal/export"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score several keyword reports in parallel",
	Long:  "Each file is an independent batch with its own statistics. Failures are reported per file and do not stop the others.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		files, _ := cmd.Flags().GetStringSlice("files")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		save, _ := cmd.Flags().GetBool("save")
		target, err := targetROASFlag(cmd)
		if err != nil {
			return err
		}

		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentFiles
		}
		if timeout <= 0 {
			timeout = time.Duration(cfg.Batch.TimeoutSecs) * time.Second
		}

		env, err := initEnv(ctx, envOptions{Store: save})
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipeline.Options{TargetROAS: target, Save: save}
		results := processBatch(ctx, files, concurrency, timeout, func(ctx context.Context, path string) (*pipeline.Analysis, error) {
			return env.Pipeline.AnalyzeFile(ctx, path, opts)
		})

		if outputDir != "" {
			if err := writeBatchOutputs(outputDir, results); err != nil {
				return err
			}
		}
		formatBatchResults(os.Stdout, results)

		if failed := countFailed(results); failed > 0 {
			return eris.Errorf("batch: %d of %d files failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringSlice("files", nil, "comma-separated report paths")
	batchCmd.Flags().Int("concurrency", 0, "files processed at once (default from config)")
	batchCmd.Flags().Duration("timeout", 0, "wall-clock limit per file (default from config)")
	batchCmd.Flags().String("output-dir", "", "write one recommendation workbook per file here")
	batchCmd.Flags().Float64("target-roas", 0, "benchmark ROAS in percent (default from config)")
	batchCmd.Flags().Bool("save", false, "persist each analysis as a run")
	_ = batchCmd.MarkFlagRequired("files")
	rootCmd.AddCommand(batchCmd)
}

// analyzeFunc analyzes the report at path.
type analyzeFunc func(ctx context.Context, path string) (*pipeline.Analysis, error)

// batchResult is the outcome for one file.
type batchResult struct {
	Path     string
	Analysis *pipeline.Analysis
	Err      error
	Duration time.Duration
}

// processBatch analyzes files concurrently. Results keep the input order;
// one file failing or timing out does not affect the others.
func processBatch(ctx context.Context, files []string, concurrency int, timeout time.Duration, analyze analyzeFunc) []batchResult {
	results := make([]batchResult, len(files))
	if len(files) == 0 {
		zap.L().Info("no files to process")
		return results
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("files", len(files)),
		zap.Int("concurrency", concurrency),
		zap.Duration("timeout", timeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, path := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", path))
			start := time.Now()

			res := analyzeWithTimeout(gctx, path, timeout, analyze)
			res.Duration = time.Since(start)
			results[i] = res

			if res.Err != nil {
				failed.Add(1)
				log.Error("batch: file failed", zap.Error(res.Err))
				return nil // don't abort the batch on one file
			}

			succeeded.Add(1)
			log.Info("batch: file complete",
				zap.Int("keywords", len(res.Analysis.Result.Recommendations)),
				zap.Int("to_exclude", res.Analysis.Result.Summary.KeywordsToExclude),
				zap.Int64("duration_ms", res.Duration.Milliseconds()),
			)
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

// analyzeWithTimeout stops waiting for analyze once timeout elapses.
func analyzeWithTimeout(ctx context.Context, path string, timeout time.Duration, analyze analyzeFunc) batchResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan batchResult, 1)
	go func() {
		a, err := analyze(ctx, path)
		done <- batchResult{Path: path, Analysis: a, Err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return batchResult{Path: path, Err: eris.Wrapf(ctx.Err(), "batch: %s", path)}
	}
}

// writeBatchOutputs writes <name>_recommendations.xlsx for each successful file.
func writeBatchOutputs(dir string, results []batchResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "batch: create %s", dir)
	}
	for _, res := range results {
		if res.Err != nil || res.Analysis == nil {
			continue
		}
		path := filepath.Join(dir, outputName(res.Path))
		if err := writeWorkbook(path, res.Analysis); err != nil {
			return err
		}
	}
	return nil
}

func writeWorkbook(path string, a *pipeline.Analysis) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "batch: create %s", path)
	}
	if err := export.WriteXLSX(f, a.Result); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "batch: close %s", path)
}

func outputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_recommendations.xlsx"
}

func countFailed(results []batchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// formatBatchResults writes one line per file to w.
func formatBatchResults(out io.Writer, results []batchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tKEYWORDS\tEXCLUDE\tSAVINGS\tDURATION\tSTATUS")
	_, _ = fmt.Fprintln(w, "----\t--------\t-------\t-------\t--------\t------")

	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t%s\tfailed: %v\n",
				filepath.Base(r.Path), r.Duration.Round(time.Millisecond), r.Err)
			continue
		}
		s := r.Analysis.Result.Summary
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%s\tok\n",
			filepath.Base(r.Path),
			len(r.Analysis.Result.Recommendations),
			s.KeywordsToExclude,
			s.PotentialSavings,
			r.Duration.Round(time.Millisecond),
		)
	}
	_ = w.Flush()
}
