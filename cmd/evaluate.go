package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/placematch/internal/answer"
	"github.com/kozaktomas/placematch/internal/config"
	"github.com/kozaktomas/placematch/internal/evaluate"
	"github.com/kozaktomas/placematch/internal/groundtruth"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score an answer file against ground-truth positions",
	Long: `Read an answer file and an evaluation sheet mapping "{id}_query" and
"{id}_database" keys to camera positions. A query is correct when its answer
lies within --radius of the query position; answers of None are incorrect.
Prints Recall@1, the share of correct queries.

Image ids are the last six characters of each file name without extension.

Examples:
  placematch evaluate --answer answer.txt --ground-truth evaluation_sheet.json

  # Per-query distances
  placematch evaluate --verbose

  # Machine readable report
  placematch evaluate --json`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	defaults := config.Defaults()
	evaluateCmd.Flags().String("answer", defaults.Paths.Output, "Answer file to evaluate")
	evaluateCmd.Flags().String("ground-truth", defaults.Paths.GroundTruth, "Evaluation sheet (JSON or YAML)")
	evaluateCmd.Flags().Float64("radius", defaults.Evaluation.Radius, "Largest distance counted as correct")
	evaluateCmd.Flags().Bool("json", false, "Output as JSON")
	evaluateCmd.Flags().Bool("verbose", false, "List every query with its distance")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	verbose := mustGetBool(cmd, "verbose")

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	answerPath := stringFlagOr(cmd, "answer", cfg.Paths.Output)
	sheetPath := stringFlagOr(cmd, "ground-truth", cfg.Paths.GroundTruth)
	cfg.Evaluation.Radius = float64FlagOr(cmd, "radius", cfg.Evaluation.Radius)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sheet, err := groundtruth.Load(sheetPath)
	if err != nil {
		return err
	}
	lines, err := answer.ReadFile(answerPath)
	if err != nil {
		return fmt.Errorf("%s: %w", answerPath, err)
	}
	log.Debug("loaded evaluation inputs", "answers", len(lines), "sheet_entries", sheet.Len())

	report, err := evaluate.Evaluator{Sheet: sheet, Radius: cfg.Evaluation.Radius}.Evaluate(lines)
	if err != nil {
		return err
	}

	if jsonOutput {
		if !verbose {
			report.Entries = nil
		}
		return outputJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	if verbose {
		printEvaluationEntries(out, report)
	}
	fmt.Fprintf(out, "Recall@1: %.4f (%d/%d within %g)\n", report.Recall, report.Correct, report.Total, report.Radius)
	return nil
}

func printEvaluationEntries(out io.Writer, report *evaluate.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUERY\tDATABASE\tDISTANCE\tCORRECT")
	for _, e := range report.Entries {
		db, dist := answer.NoMatch, "-"
		if e.Matched {
			db = e.Database
			dist = fmt.Sprintf("%.2f", e.Distance)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", e.Query, db, dist, e.Correct)
	}
	_ = w.Flush()
	fmt.Fprintln(out)
}
