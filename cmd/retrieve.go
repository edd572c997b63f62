package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/placematch/internal/answer"
	"github.com/kozaktomas/placematch/internal/config"
	"github.com/kozaktomas/placematch/internal/constants"
	"github.com/kozaktomas/placematch/internal/features"
	"github.com/kozaktomas/placematch/internal/gallery"
	"github.com/kozaktomas/placematch/internal/metrics"
	"github.com/kozaktomas/placematch/internal/retrieval"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Find the most similar database image for every query image",
	Long: `Extract features from every image in the query and database folders, score
each query against the whole database and write one answer line per query:

  query/<query file> database/<best database file or None>

Lines are ordered by query file name.

Examples:
  # Default answer.txt in the working directory
  placematch retrieve --query-dir data/query --database-dir data/database

  # Reuse extracted features between runs and export metrics
  placematch retrieve --query-dir q --database-dir d --cache-dir .cache --metrics-file run.prom

  # Inspect scores as JSON
  placematch retrieve --query-dir q --database-dir d --json`,
	Args: cobra.NoArgs,
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)

	defaults := config.Defaults()
	retrieveCmd.Flags().String("query-dir", "", "Folder with query images (env PLACEMATCH_QUERY_DIR)")
	retrieveCmd.Flags().String("database-dir", "", "Folder with database images (env PLACEMATCH_DATABASE_DIR)")
	retrieveCmd.Flags().String("output", defaults.Paths.Output, "Answer file to write")
	retrieveCmd.Flags().Int("workers", defaults.Workers, "Parallel workers (0 = one per CPU)")
	retrieveCmd.Flags().Int("features", defaults.Extractor.Features, "Maximum keypoints per image")
	retrieveCmd.Flags().String("channel", defaults.Extractor.Channel, "Image channel to extract from: red, green, blue or luma")
	retrieveCmd.Flags().Int("max-dimension", defaults.Extractor.MaxDimension, "Downscale images larger than this before extraction (0 = never)")
	retrieveCmd.Flags().Float64("max-angle", defaults.Matching.MaxAngle, "Largest keypoint orientation difference in degrees")
	retrieveCmd.Flags().Float64("alpha", defaults.Matching.Alpha, "Exponent applied to the match count when scoring")
	retrieveCmd.Flags().StringSlice("extensions", defaults.Extensions, "Image file extensions to load")
	retrieveCmd.Flags().String("cache-dir", "", "Cache extracted features in this folder")
	retrieveCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	retrieveCmd.Flags().Bool("json", false, "Print results as JSON")
	retrieveCmd.Flags().Bool("quiet", false, "Hide progress bars")
}

// retrieveOutput is the --json document.
type retrieveOutput struct {
	RunID          string             `json:"run_id"`
	Output         string             `json:"output"`
	QueryCount     int                `json:"query_count"`
	DatabaseCount  int                `json:"database_count"`
	Matched        int                `json:"matched"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	Results        []retrieval.Result `json:"results"`
}

func applyRetrieveFlags(cmd *cobra.Command, cfg *config.Config) {
	cfg.Paths.QueryDir = stringFlagOr(cmd, "query-dir", cfg.Paths.QueryDir)
	cfg.Paths.DatabaseDir = stringFlagOr(cmd, "database-dir", cfg.Paths.DatabaseDir)
	cfg.Paths.Output = stringFlagOr(cmd, "output", cfg.Paths.Output)
	cfg.Paths.CacheDir = stringFlagOr(cmd, "cache-dir", cfg.Paths.CacheDir)
	cfg.Workers = intFlagOr(cmd, "workers", cfg.Workers)
	cfg.Extensions = stringSliceFlagOr(cmd, "extensions", cfg.Extensions)
	cfg.Extractor.Features = intFlagOr(cmd, "features", cfg.Extractor.Features)
	cfg.Extractor.Channel = stringFlagOr(cmd, "channel", cfg.Extractor.Channel)
	cfg.Extractor.MaxDimension = intFlagOr(cmd, "max-dimension", cfg.Extractor.MaxDimension)
	cfg.Matching.MaxAngle = float64FlagOr(cmd, "max-angle", cfg.Matching.MaxAngle)
	cfg.Matching.Alpha = float64FlagOr(cmd, "alpha", cfg.Matching.Alpha)
}

func runRetrieve(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	jsonOutput := mustGetBool(cmd, "json")
	quiet := mustGetBool(cmd, "quiet") || jsonOutput
	metricsFile := mustGetString(cmd, "metrics-file")

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRetrieveFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Paths.QueryDir == "" || cfg.Paths.DatabaseDir == "" {
		return errors.New("both --query-dir and --database-dir are required")
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	fc, err := cfg.FeatureConfig()
	if err != nil {
		return err
	}
	extractor := features.NewExtractor(fc)
	recorder := metrics.New()
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	log.Info("starting retrieval",
		"query_dir", cfg.Paths.QueryDir,
		"database_dir", cfg.Paths.DatabaseDir,
		"channel", fc.Channel,
		"features", fc.MaxFeatures,
		"fingerprint", fc.Fingerprint())

	load := func(dir, set, description string) ([]*features.Record, error) {
		paths, err := gallery.Scan(dir, cfg.Extensions)
		if err != nil {
			return nil, err
		}
		bar := newProgressBar(len(paths), description, constants.ProgressUnitImages, quiet)
		records, err := gallery.Load(cmd.Context(), dir, extractor, gallery.Options{
			Extensions: cfg.Extensions,
			Workers:    cfg.Workers,
			CacheDir:   cfg.Paths.CacheDir,
			Logger:     log,
			OnProgress: progressFunc(bar),
			Observer:   recorder.Set(set),
		})
		finishProgress(bar)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s images: %w", set, err)
		}
		log.Info("extracted features", "set", set, "images", len(records), "skipped", len(paths)-len(records))
		return records, nil
	}

	database, err := load(cfg.Paths.DatabaseDir, constants.DatabaseSet, "Extracting database")
	if err != nil {
		return err
	}
	queries, err := load(cfg.Paths.QueryDir, constants.QuerySet, "Extracting queries")
	if err != nil {
		return err
	}

	bar := newProgressBar(len(queries), "Matching", constants.ProgressUnitQueries, quiet)
	engine := retrieval.New(cfg.Pipeline(), retrieval.Options{
		Workers:    cfg.Workers,
		OnProgress: progressFunc(bar),
		Observer:   recorder,
	})
	results, err := engine.Retrieve(cmd.Context(), queries, database)
	finishProgress(bar)
	if err != nil {
		return err
	}

	if err := answer.WriteFile(cfg.Paths.Output, answer.FromResults(results)); err != nil {
		return err
	}

	matched := 0
	for _, r := range results {
		if r.Found {
			matched++
		}
	}
	elapsed := time.Since(start)
	log.Info("retrieval finished",
		"queries", len(results),
		"matched", matched,
		"output", cfg.Paths.Output,
		"elapsed", elapsed.Round(time.Millisecond))

	if metricsFile != "" {
		if err := recorder.WriteFile(metricsFile); err != nil {
			return err
		}
		log.Debug("wrote metrics", "path", metricsFile)
	}

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), retrieveOutput{
			RunID:          runID,
			Output:         cfg.Paths.Output,
			QueryCount:     len(queries),
			DatabaseCount:  len(database),
			Matched:        matched,
			ElapsedSeconds: elapsed.Seconds(),
			Results:        results,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d answers to %s (%d matched, %d without match)\n",
		len(results), cfg.Paths.Output, matched, len(results)-matched)
	fmt.Fprintf(cmd.OutOrStdout(), "Execution time: %.2f seconds\n", elapsed.Seconds())
	return nil
}
