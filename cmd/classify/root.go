package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/medinventory/internal/config"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/keywords"
	"github.com/kiranshivaraju/medinventory/internal/pipeline"
	"github.com/kiranshivaraju/medinventory/internal/store"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// providerFactory builds the completion provider from configuration.
type providerFactory func(cfg config.AIConfig) (models.CompletionProvider, error)

type classifyFlags struct {
	input            string
	output           string
	skipFacility     bool
	skipDescriptions bool
	preserveExisting bool
	batchSize        int
	descriptionBatch int
	keywordsFile     string
	envFile          string
}

func newRootCmd(newProvider providerFactory) *cobra.Command {
	var f classifyFlags

	cmd := &cobra.Command{
		Use:          "classify",
		Short:        "Categorize, grade and describe a medical inventory CSV",
		SilenceUsage: true,
		Long: `classify reads an inventory CSV with ITEM_NO, DESCRIPTION and VENDOR_NAME
columns and adds Product Category, Facility Suitability and SIMPLE_DESCRIPTION.
Keyword rules are tried first; the configured completion service handles the rest.

The completion service is configured through the same environment variables
as the server (AI_PROVIDER, OPENAI_API_KEY, ...), optionally from a .env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClassify(cmd, f, newProvider)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "Input CSV file (required)")
	fl.StringVarP(&f.output, "output", "o", "", "Output CSV file (default <input>_processed.csv)")
	fl.BoolVar(&f.skipFacility, "skip-facility", false, "Skip the facility suitability stage")
	fl.BoolVar(&f.skipDescriptions, "skip-descriptions", false, "Skip the simple description stage")
	fl.BoolVar(&f.preserveExisting, "preserve-existing", true, "Keep values already present in output columns")
	fl.IntVar(&f.batchSize, "batch-size", 50, "Rows between pacing pauses")
	fl.IntVar(&f.descriptionBatch, "description-batch", 0, "Only describe the first N rows (0 means all)")
	fl.StringVar(&f.keywordsFile, "keywords", "", "YAML keyword tables overriding the built-ins")
	fl.StringVar(&f.envFile, "env-file", ".env", "Environment file to load before reading configuration")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runClassify(cmd *cobra.Command, f classifyFlags, newProvider providerFactory) error {
	if f.batchSize <= 0 {
		return fmt.Errorf("--batch-size must be greater than 0, got %d", f.batchSize)
	}
	if f.descriptionBatch < 0 {
		return fmt.Errorf("--description-batch must not be negative, got %d", f.descriptionBatch)
	}

	if err := config.LoadDotEnv(f.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	keywordsFile := f.keywordsFile
	if keywordsFile == "" {
		keywordsFile = cfg.Pipeline.KeywordsFile
	}
	tables := keywords.Default()
	if keywordsFile != "" {
		if tables, err = keywords.LoadFile(keywordsFile); err != nil {
			return fmt.Errorf("load keywords: %w", err)
		}
	}

	// Unset flags fall back to the environment configuration.
	if !cmd.Flags().Changed("preserve-existing") {
		f.preserveExisting = cfg.Pipeline.PreserveExisting
	}
	if !cmd.Flags().Changed("batch-size") {
		f.batchSize = cfg.Pipeline.BatchSize
	}

	ds, err := dataset.ReadCSVFile(f.input)
	if err != nil {
		return err
	}
	if err := ds.Validate(models.RequiredColumns...); err != nil {
		return err
	}

	output := f.output
	if output == "" {
		output = strings.TrimSuffix(f.input, filepath.Ext(f.input)) + "_processed.csv"
	}
	files, err := store.NewFileStore("", filepath.Dir(output))
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}

	p := pipeline.New(provider, tables, files, pipeline.Config{
		CategoryPause:    cfg.Pipeline.CategoryPause,
		FacilityPause:    cfg.Pipeline.FacilityPause,
		DescriptionPause: cfg.Pipeline.DescriptionPause,
		DescriptionRPM:   cfg.Pipeline.DescriptionRPM,
		DescriptionModel: cfg.AI.DescriptionModel,
		DescribeAttempts: cfg.Pipeline.DescribeAttempts,
		CostPer1KTokens:  cfg.Pipeline.CostPer1KTokens,
	})

	slog.Info("processing inventory", "input", f.input, "rows", ds.Len(), "provider", provider.Name())

	_, summary, err := p.Run(cmd.Context(), ds, pipeline.Options{
		SkipFacility:     f.skipFacility,
		SkipDescriptions: f.skipDescriptions,
		PreserveExisting: f.preserveExisting,
		BatchSize:        f.batchSize,
		DescriptionLimit: f.descriptionBatch,
		InputName:        filepath.Base(f.input),
		OutputName:       filepath.Base(output),
	}, newLogReporter(f.batchSize))
	if err != nil {
		if ctxErr := cmd.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	printDistributions(out, summary)
	fmt.Fprintf(out, "\nResults saved to %s\n", output)
	fmt.Fprintf(out, "Summary saved to %s\n", filepath.Join(filepath.Dir(output), summary.SummaryName))
	return nil
}

func printDistributions(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "Processed %d items in %.1fs\n", s.TotalItems, s.Elapsed.Seconds())

	fmt.Fprintln(w, "\nProduct Category distribution:")
	for _, c := range s.Categories {
		fmt.Fprintf(w, "  %-36s %5d (%.1f%%)\n", c.Label, c.Count, c.Percent)
	}
	if s.Facilities != nil {
		fmt.Fprintln(w, "\nFacility Suitability distribution:")
		for _, c := range s.Facilities {
			fmt.Fprintf(w, "  %-36s %5d (%.1f%%)\n", c.Label, c.Count, c.Percent)
		}
	}
	fmt.Fprintf(w, "\nAPI usage: %d requests, %d tokens, estimated cost $%.4f\n",
		s.Usage.Requests, s.Usage.Tokens, s.Usage.EstimatedCost)
}

// logReporter logs step changes and every nth processed row.
type logReporter struct {
	every int
	done  map[string]int
}

func newLogReporter(every int) *logReporter {
	if every <= 0 {
		every = 1
	}
	return &logReporter{every: every, done: make(map[string]int)}
}

func (r *logReporter) SetStep(step, status string) {
	slog.Info(status, "step", step)
}

func (r *logReporter) Advance(step, status string) {
	r.done[step]++
	if r.done[step]%r.every == 0 {
		slog.Info("progress", "step", step, "status", status)
	}
}
