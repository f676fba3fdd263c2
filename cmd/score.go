package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/placescore/affordability-cli/internal/engine"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Run a full affordability scoring pass",
	Long: `Computes burden ratios (housing, cost of living, tax) for every
geography with usable data, converts each into an inverted percentile
sub-score across the full population, combines them under the selected
weighting policy, upserts one score row per geography, and finally
re-ranks all composites so the persisted distribution is uniform with
a median of 50.

Examples:
  # Full run with the configured policy
  affordability-cli score

  # Preview without writing anything
  affordability-cli score --dry-run

  # Weight components by each geography's own cost structure
  affordability-cli score --policy burden`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.Bool("dry-run", false, "compute scores and the projected distribution without writing")
	f.String("policy", "", "weighting policy: fixed or burden (overrides config)")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if policy, _ := cmd.Flags().GetString("policy"); policy != "" {
		cfg.Engine.Policy = policy
	}

	log := zap.L().With(zap.String("command", "score"))

	pool, err := dbPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Ensure the afford schema and score tables exist.
	if err := engine.Migrate(ctx, pool); err != nil {
		return eris.Wrap(err, "score: migrate")
	}

	eng, err := engine.New(pool, cfg.Engine, engine.WithDryRun(dryRun))
	if err != nil {
		return err
	}

	report, err := eng.Run(ctx)
	if err != nil {
		return eris.Wrap(err, "score: run")
	}

	log.Info("run complete",
		zap.String("policy", report.Policy),
		zap.Int64("records_written", report.Counts.RecordsWritten),
	)
	printRunReport(report)
	return nil
}

func printRunReport(r *engine.RunReport) {
	if r.DryRun {
		fmt.Println("DRY RUN — nothing written")
	} else {
		fmt.Printf("Run %s complete\n", r.RunID)
	}
	fmt.Printf("Policy:          %s\n", r.Policy)
	fmt.Printf("Housing scores:  %d\n", r.Counts.Housing)
	fmt.Printf("COL scores:      %d\n", r.Counts.COL)
	fmt.Printf("Tax scores:      %d\n", r.Counts.Tax)
	fmt.Printf("Records written: %d\n", r.Counts.RecordsWritten)
	for _, comp := range r.SkippedComponents {
		fmt.Printf("Skipped component (degenerate population): %s\n", comp)
	}
	fmt.Printf("Composite distribution:\n%s", r.Distribution)
}
